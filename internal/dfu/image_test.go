package dfu

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceReadsSequentially(t *testing.T) {
	src := NewSource([]byte{1, 2, 3, 4, 5})
	assert.EqualValues(t, 5, src.Len())

	buf := make([]byte, 2)
	n, err := src.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{1, 2}, buf)

	n, err = src.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{3, 4}, buf)

	n, err = src.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = src.Read(buf)
	assert.Equal(t, io.EOF, err)
}

func TestSourceSeek(t *testing.T) {
	src := NewSource([]byte{1, 2, 3, 4, 5})
	assert.NoError(t, src.Seek(3))

	buf := make([]byte, 2)
	n, err := src.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{4, 5}, buf)
}

func TestSourceSeekOutOfRange(t *testing.T) {
	src := NewSource([]byte{1, 2, 3})
	assert.Error(t, src.Seek(-1))
	assert.Error(t, src.Seek(4))
}

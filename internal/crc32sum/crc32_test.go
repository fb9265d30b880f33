package crc32sum

import (
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksumMatchesStdlib(t *testing.T) {
	data := []byte("The quick brown fox jumps over the lazy dog")
	assert.Equal(t, crc32.ChecksumIEEE(data), Checksum(data))
}

func TestUpdateIsIncremental(t *testing.T) {
	data := []byte("nRF52 Secure DFU bootloader test vector")

	whole := Checksum(data)

	split := len(data) / 3
	partial := Update(Seed, data[:split])
	incremental := Update(partial, data[split:])

	assert.Equal(t, whole, incremental)
}

func TestEmptyInputIsSeed(t *testing.T) {
	assert.Equal(t, Seed, Checksum(nil))
}

package dfu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildObjectCreate(t *testing.T) {
	frame := buildObjectCreate(ObjectTypeData, 0x01020304)
	assert.Equal(t, []byte{byte(OpObjectCreate), byte(ObjectTypeData), 0x04, 0x03, 0x02, 0x01}, frame)
}

func TestBuildPRNSet(t *testing.T) {
	frame := buildPRNSet(0)
	assert.Equal(t, []byte{byte(OpPRNSet), 0x00, 0x00}, frame)
}

func TestParseResponseSuccess(t *testing.T) {
	frame := []byte{byte(OpResponse), byte(OpCRCGet), byte(ResultSuccess), 0xAA, 0xBB}
	payload, err := parseResponse(OpCRCGet, frame)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, payload)
}

func TestParseResponseWrongOpcode(t *testing.T) {
	frame := []byte{byte(OpResponse), byte(OpPing), byte(ResultSuccess)}
	_, err := parseResponse(OpCRCGet, frame)
	assert.Error(t, err)
	_, ok := err.(*ProtocolError)
	assert.True(t, ok)
}

func TestParseResponseRemoteError(t *testing.T) {
	frame := []byte{byte(OpResponse), byte(OpObjectCreate), byte(ResultInsufficientResources)}
	_, err := parseResponse(OpObjectCreate, frame)
	re, ok := err.(*RemoteError)
	assert.True(t, ok)
	assert.Equal(t, ResultInsufficientResources, re.Result)
}

func TestParseResponseExtError(t *testing.T) {
	frame := []byte{byte(OpResponse), byte(OpObjectCreate), byte(ResultExtError), 0x07}
	_, err := parseResponse(OpObjectCreate, frame)
	re, ok := err.(*RemoteError)
	assert.True(t, ok)
	assert.Equal(t, byte(0x07), re.Ext)
}

func TestParseObjectStatus(t *testing.T) {
	payload := []byte{
		0x00, 0x01, 0x00, 0x00, // MaxSize = 256
		0x10, 0x00, 0x00, 0x00, // Offset = 16
		0x78, 0x56, 0x34, 0x12, // CRC32 = 0x12345678
	}
	status, err := parseObjectStatus(payload)
	assert.NoError(t, err)
	assert.Equal(t, ObjectStatus{MaxSize: 256, Offset: 16, CRC32: 0x12345678}, status)
}

func TestParseObjectStatusShort(t *testing.T) {
	_, err := parseObjectStatus([]byte{0x00, 0x01})
	assert.Error(t, err)
}

func TestParseMTU(t *testing.T) {
	mtu, err := parseMTU([]byte{0x40, 0x00})
	assert.NoError(t, err)
	assert.EqualValues(t, 0x40, mtu)
}

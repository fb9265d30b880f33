package slip

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		{0x01},
		{0x01, 0x02, 0x03},
		{end},
		{esc},
		{end, esc, end, esc, esc, end},
		{0x60, 0x06, 0x01, 0x00, 0x00, 0x01, 0x00, 0xC0, 0x00},
	}

	for _, payload := range cases {
		encoded := Encode(payload)
		assert.Equal(t, end, encoded[len(encoded)-1], "encoded frame must end with END")

		decoded, err := DecodeFrame(encoded)
		assert.NoError(t, err)
		assert.Equal(t, payload, decoded)
	}
}

func TestEncodeEscapesReservedBytes(t *testing.T) {
	encoded := Encode([]byte{end, esc})
	assert.Equal(t, []byte{esc, escEnd, esc, escEsc, end}, encoded)
}

func TestDecoderFeedsByteAtATime(t *testing.T) {
	dec := NewDecoder()
	payload := []byte{0x09, 0x2A}
	encoded := Encode(payload)

	var got []byte
	for i, b := range encoded {
		frame, ok, err := dec.Feed(b)
		assert.NoError(t, err)
		if i == len(encoded)-1 {
			assert.True(t, ok)
			got = frame
		} else {
			assert.False(t, ok)
		}
	}
	assert.Equal(t, payload, got)
}

func TestDecoderResyncsAfterBadEscape(t *testing.T) {
	dec := NewDecoder()

	_, _, err := dec.Feed(0x01)
	assert.NoError(t, err)
	_, _, err = dec.Feed(esc)
	assert.NoError(t, err)
	_, ok, err := dec.Feed(0x42) // neither ESC_END nor ESC_ESC
	assert.Equal(t, ErrBadEscape, err)
	assert.False(t, ok)

	// The rest of the broken frame, up to its END, is discarded.
	for _, b := range []byte{0x55, end} {
		_, ok, err := dec.Feed(b)
		assert.NoError(t, err)
		assert.False(t, ok)
	}

	// Decoder must then be ready to decode the next frame cleanly.
	payload := []byte{0x07, 0x08}
	encoded := Encode(payload)
	var got []byte
	for _, b := range encoded {
		frame, ok, err := dec.Feed(b)
		assert.NoError(t, err)
		if ok {
			got = frame
		}
	}
	assert.Equal(t, payload, got)
}

func TestDecoderIgnoresLeadingEnd(t *testing.T) {
	dec := NewDecoder()
	_, ok, err := dec.Feed(end)
	assert.NoError(t, err)
	assert.False(t, ok)

	payload := []byte{0xAA, 0xBB}
	var got []byte
	for _, b := range Encode(payload) {
		frame, ok, err := dec.Feed(b)
		assert.NoError(t, err)
		if ok {
			got = frame
		}
	}
	assert.Equal(t, payload, got)
}

// Copyright (C) 2018 Rob Caelers <rob.caelers@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package slip implements classic SLIP framing (RFC 1055) as used to
// delimit DFU request/response frames on the serial transport.
package slip

import (
	"github.com/pkg/errors"
)

const (
	end    byte = 0xC0
	esc    byte = 0xDB
	escEnd byte = 0xDC
	escEsc byte = 0xDD
)

// ErrBadEscape is returned by Decoder.Feed when an ESC byte is
// followed by anything other than ESC_END or ESC_ESC.
var ErrBadEscape = errors.New("slip: invalid escape sequence")

// Encode wraps payload in a SLIP frame. Only a trailing END is emitted;
// there is no leading END, matching the nRF bootloader's framing.
func Encode(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+2)
	for _, b := range payload {
		switch b {
		case end:
			out = append(out, esc, escEnd)
		case esc:
			out = append(out, esc, escEsc)
		default:
			out = append(out, b)
		}
	}
	out = append(out, end)
	return out
}

type decoderState int

const (
	stateNormal decoderState = iota
	stateEscaped
	stateResync
)

// Decoder consumes a byte stream one byte at a time and reassembles
// SLIP frames. It keeps just enough state to survive spurious END
// bytes and bad escape sequences between frames: a decode error
// discards the in-progress frame and resynchronizes on the next END.
type Decoder struct {
	state decoderState
	buf   []byte
}

// NewDecoder returns an empty, ready to use Decoder.
func NewDecoder() *Decoder {
	return &Decoder{state: stateNormal}
}

// Feed processes a single byte. It returns ok=true with the completed
// frame payload when b is the END byte of a frame. A non-nil err means
// the in-progress frame was malformed; the decoder discards it and every
// byte up to and including the next END, then accepts the next frame.
func (d *Decoder) Feed(b byte) (frame []byte, ok bool, err error) {
	switch d.state {
	case stateResync:
		if b == end {
			d.state = stateNormal
		}
		return nil, false, nil
	case stateEscaped:
		d.state = stateNormal
		switch b {
		case escEnd:
			d.buf = append(d.buf, end)
		case escEsc:
			d.buf = append(d.buf, esc)
		default:
			d.buf = nil
			d.state = stateResync
			return nil, false, ErrBadEscape
		}
		return nil, false, nil
	default:
		switch b {
		case end:
			if len(d.buf) == 0 {
				// leading/duplicate END, or empty frame: ignore
				return nil, false, nil
			}
			frame = d.buf
			d.buf = nil
			return frame, true, nil
		case esc:
			d.state = stateEscaped
			return nil, false, nil
		default:
			d.buf = append(d.buf, b)
			return nil, false, nil
		}
	}
}

// Reset discards any partially decoded frame.
func (d *Decoder) Reset() {
	d.state = stateNormal
	d.buf = nil
}

// DecodeFrame decodes a single complete SLIP frame, terminated by its
// trailing END, in one call; input that does not end with END and holds
// no complete frame is reported as a truncated frame. Used in tests and
// for short, self-contained payloads.
func DecodeFrame(framed []byte) ([]byte, error) {
	dec := NewDecoder()
	var out []byte
	for _, b := range framed {
		frame, ok, err := dec.Feed(b)
		if err != nil {
			return nil, err
		}
		if ok {
			out = frame
		}
	}
	if out == nil && len(framed) > 0 && framed[len(framed)-1] != end {
		return nil, errors.New("slip: truncated frame")
	}
	return out, nil
}

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

package transport

import (
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"

	"github.com/rcaelers/nrf-dfu/internal/slip"
)

// defaultBaud and the 8N1/no-flow-control configuration are the
// bootloader's fixed serial parameters; they are a pre-condition of
// the link, not negotiated.
const defaultBaud = 115200

// serialMaxPayload bounds a single OBJECT_WRITE payload so that, after
// worst-case 2x SLIP expansion plus the trailing END byte, the encoded
// frame still fits comfortably under common USB-CDC buffer sizes. It
// is superseded by the MTU the bootloader reports via MTU_GET.
const serialMaxPayload = 512

type serialTransport struct {
	port    serial.Port
	dec     *slip.Decoder
	chunk   int
}

// OpenSerial opens path at 115200 8N1, raw, no flow control, and
// returns a Transport that frames every request/response with SLIP.
func OpenSerial(path string) (Transport, error) {
	mode := &serial.Mode{
		BaudRate: defaultBaud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, &TransportError{Op: "open", Reason: err.Error()}
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, &TransportError{Op: "reset-input", Reason: err.Error()}
	}

	return &serialTransport{
		port:  port,
		dec:   slip.NewDecoder(),
		chunk: serialMaxPayload,
	}, nil
}

// SetMaxChunkSize narrows the OBJECT_WRITE payload ceiling once the
// engine has learned the bootloader's MTU via MTU_GET.
func (t *serialTransport) SetMaxChunkSize(n int) {
	t.chunk = n
}

func (t *serialTransport) SendControl(frame []byte) error {
	encoded := slip.Encode(frame)
	if _, err := t.port.Write(encoded); err != nil {
		return &TransportError{Op: "write", Reason: err.Error()}
	}
	return nil
}

// opcodeObjectWrite mirrors dfu.OpObjectWrite; duplicated as an
// untyped constant here so the transport layer does not need to
// import the protocol package just for one opcode byte.
const opcodeObjectWrite = 0x08

// SendData on serial has no separate data channel: the OBJECT_WRITE
// opcode is prefixed here and the whole frame is SLIP-framed exactly
// like a control request.
func (t *serialTransport) SendData(payload []byte) error {
	frame := make([]byte, 0, len(payload)+1)
	frame = append(frame, opcodeObjectWrite)
	frame = append(frame, payload...)
	return t.SendControl(frame)
}

func (t *serialTransport) RecvResponse(timeout time.Duration) ([]byte, error) {
	if err := t.port.SetReadTimeout(timeout); err != nil {
		return nil, &TransportError{Op: "set-timeout", Reason: err.Error()}
	}

	t.dec.Reset()
	buf := make([]byte, 1)
	deadline := time.Now().Add(timeout)
	for {
		n, err := t.port.Read(buf)
		if err != nil {
			return nil, &TransportError{Op: "read", Reason: err.Error()}
		}
		if n == 0 {
			if time.Now().After(deadline) {
				return nil, &TransportError{Op: "read", Reason: "timeout waiting for response"}
			}
			continue
		}

		frame, ok, err := t.dec.Feed(buf[0])
		if err != nil {
			// malformed escape: resynchronize on the next END and keep
			// waiting within the same deadline
			continue
		}
		if ok {
			return frame, nil
		}
	}
}

func (t *serialTransport) MaxChunkSize() int {
	return t.chunk
}

func (t *serialTransport) Close() error {
	if err := t.port.Close(); err != nil {
		return errors.Wrap(err, "failed to close serial port")
	}
	return nil
}

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

// Package transport provides the two concrete Transport backends (SLIP
// framed serial, and BLE GATT) the DFU protocol engine is polymorphic
// over, plus the capability set it consumes.
package transport

import (
	"fmt"
	"time"
)

// Transport is the capability set the protocol engine consumes. It
// hides whether requests travel over a SLIP-framed serial link or two
// BLE GATT characteristics.
type Transport interface {
	// SendControl sends one DFU request frame (opcode + params).
	SendControl(frame []byte) error
	// SendData sends raw OBJECT_WRITE payload bytes. On serial this is
	// identical to SendControl with the OBJECT_WRITE opcode prefixed;
	// on BLE it writes to the data characteristic with no opcode and
	// no framing.
	SendData(payload []byte) error
	// RecvResponse blocks for the next response frame, or returns a
	// TransportError if timeout elapses first.
	RecvResponse(timeout time.Duration) ([]byte, error)
	// MaxChunkSize is the largest payload SendData can carry in one
	// call: MTU-derived on serial, ATT-payload-derived on BLE.
	MaxChunkSize() int
	// Close releases the underlying link.
	Close() error
}

// TransportError covers connect failure, read/write failure, and
// timeout — anything below the framing/protocol layer.
type TransportError struct {
	Op     string
	Reason string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %s", e.Op, e.Reason)
}

// FramingError covers SLIP decode failure, short frames, and bad
// escape sequences.
type FramingError struct {
	Reason string
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("transport: framing error: %s", e.Reason)
}

// Default per-response timeouts, per spec: BLE matches its 10s
// indication/notification wait, serial is tighter since it has no
// connection-layer retries underneath it.
const (
	DefaultSerialTimeout = 1 * time.Second
	DefaultBLETimeout    = 10 * time.Second
)

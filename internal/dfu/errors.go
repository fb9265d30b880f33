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

package dfu

import "fmt"

// ProtocolError covers a malformed or mismatched response: wrong
// response code, echoed opcode mismatch, or a result-specific payload
// of the wrong length.
type ProtocolError struct {
	Opcode Opcode
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("dfu: protocol error on %s: %s", e.Opcode, e.Reason)
}

// RemoteError wraps a non-SUCCESS ResultCode returned by the target.
type RemoteError struct {
	Opcode Opcode
	Result ResultCode
	Ext    byte
}

func (e *RemoteError) Error() string {
	if e.Result == ResultExtError {
		return fmt.Sprintf("dfu: %s failed: %s (ext=0x%02x)", e.Opcode, e.Result, e.Ext)
	}
	return fmt.Sprintf("dfu: %s failed: %s", e.Opcode, e.Result)
}

// CrcMismatch means the host's running CRC/offset disagree with what
// the target reported after an object was streamed.
type CrcMismatch struct {
	WantOffset, GotOffset uint32
	WantCRC, GotCRC       uint32
}

func (e *CrcMismatch) Error() string {
	return fmt.Sprintf("dfu: crc mismatch: offset %d != %d or crc 0x%08x != 0x%08x",
		e.WantOffset, e.GotOffset, e.WantCRC, e.GotCRC)
}

// ResourceError means the image source could not supply the bytes the
// protocol engine needed.
type ResourceError struct {
	Reason string
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("dfu: resource error: %s", e.Reason)
}

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

import (
	"bytes"
	"encoding/binary"
)

// buildPing builds a PING request with a rotating 8-bit id.
func buildPing(id byte) []byte {
	return []byte{byte(OpPing), id}
}

func buildPRNSet(n uint16) []byte {
	buf := make([]byte, 3)
	buf[0] = byte(OpPRNSet)
	binary.LittleEndian.PutUint16(buf[1:], n)
	return buf
}

func buildMTUGet() []byte {
	return []byte{byte(OpMTUGet)}
}

func buildObjectSelect(t ObjectType) []byte {
	return []byte{byte(OpObjectSelect), byte(t)}
}

func buildObjectCreate(t ObjectType, size uint32) []byte {
	buf := make([]byte, 6)
	buf[0] = byte(OpObjectCreate)
	buf[1] = byte(t)
	binary.LittleEndian.PutUint32(buf[2:], size)
	return buf
}

func buildCRCGet() []byte {
	return []byte{byte(OpCRCGet)}
}

func buildObjectExecute() []byte {
	return []byte{byte(OpObjectExecute)}
}

func buildAbort() []byte {
	return []byte{byte(OpAbort)}
}

func buildHardwareVersionGet() []byte {
	return []byte{byte(OpHardwareVersion)}
}

func buildFirmwareVersionGet(index byte) []byte {
	return []byte{byte(OpFirmwareVersion), index}
}

// parseResponse validates the [0x60][opcode][result] header of a
// response frame against the opcode that was just sent, and returns
// the result-specific bytes that follow. A response is valid iff the
// first byte is RESPONSE and the echoed opcode matches; any other byte
// sequence is a fatal protocol error.
func parseResponse(want Opcode, frame []byte) ([]byte, error) {
	if len(frame) < 3 {
		return nil, &ProtocolError{Opcode: want, Reason: "short response frame"}
	}
	if Opcode(frame[0]) != OpResponse {
		return nil, &ProtocolError{Opcode: want, Reason: "response code is not RESPONSE"}
	}
	if Opcode(frame[1]) != want {
		return nil, &ProtocolError{Opcode: want, Reason: "echoed opcode mismatch"}
	}

	result := ResultCode(frame[2])
	if result != ResultSuccess {
		re := &RemoteError{Opcode: want, Result: result}
		if result == ResultExtError && len(frame) >= 4 {
			re.Ext = frame[3]
		}
		return nil, re
	}

	return frame[3:], nil
}

func parseObjectStatus(payload []byte) (ObjectStatus, error) {
	var s ObjectStatus
	if len(payload) < 12 {
		return s, &ProtocolError{Opcode: OpObjectSelect, Reason: "short select response"}
	}
	r := bytes.NewReader(payload)
	if err := binary.Read(r, binary.LittleEndian, &s); err != nil {
		return s, &ProtocolError{Opcode: OpObjectSelect, Reason: err.Error()}
	}
	return s, nil
}

func parseChecksumStatus(payload []byte) (ChecksumStatus, error) {
	var s ChecksumStatus
	if len(payload) < 8 {
		return s, &ProtocolError{Opcode: OpCRCGet, Reason: "short crc response"}
	}
	r := bytes.NewReader(payload)
	if err := binary.Read(r, binary.LittleEndian, &s); err != nil {
		return s, &ProtocolError{Opcode: OpCRCGet, Reason: err.Error()}
	}
	return s, nil
}

func parseMTU(payload []byte) (uint16, error) {
	if len(payload) < 2 {
		return 0, &ProtocolError{Opcode: OpMTUGet, Reason: "short mtu response"}
	}
	return binary.LittleEndian.Uint16(payload), nil
}

func parsePingID(payload []byte) (byte, error) {
	if len(payload) < 1 {
		return 0, &ProtocolError{Opcode: OpPing, Reason: "short ping response"}
	}
	return payload[0], nil
}

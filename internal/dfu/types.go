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

// Package dfu implements the Nordic Secure DFU protocol engine: request
// framing, the object-write state machine, and the driver that
// sequences a full upgrade over a transport.Transport.
package dfu

import "fmt"

// Opcode identifies a DFU request or response.
type Opcode byte

const (
	OpProtocolVersion Opcode = 0x00
	OpObjectCreate    Opcode = 0x01
	OpPRNSet          Opcode = 0x02
	OpCRCGet          Opcode = 0x03
	OpObjectExecute   Opcode = 0x04
	OpObjectSelect    Opcode = 0x06
	OpMTUGet          Opcode = 0x07
	OpObjectWrite     Opcode = 0x08
	OpPing            Opcode = 0x09
	OpHardwareVersion Opcode = 0x0A
	OpFirmwareVersion Opcode = 0x0B
	OpAbort           Opcode = 0x0C
	OpResponse        Opcode = 0x60
)

func (o Opcode) String() string {
	switch o {
	case OpProtocolVersion:
		return "PROTOCOL_VERSION"
	case OpObjectCreate:
		return "OBJECT_CREATE"
	case OpPRNSet:
		return "PRN_SET"
	case OpCRCGet:
		return "CRC_GET"
	case OpObjectExecute:
		return "OBJECT_EXECUTE"
	case OpObjectSelect:
		return "OBJECT_SELECT"
	case OpMTUGet:
		return "MTU_GET"
	case OpObjectWrite:
		return "OBJECT_WRITE"
	case OpPing:
		return "PING"
	case OpHardwareVersion:
		return "HW_VERSION"
	case OpFirmwareVersion:
		return "FW_VERSION"
	case OpAbort:
		return "ABORT"
	case OpResponse:
		return "RESPONSE"
	default:
		return fmt.Sprintf("OPCODE(0x%02x)", byte(o))
	}
}

// ResultCode is the status byte of a DFU response.
type ResultCode byte

const (
	ResultInvalid                ResultCode = 0x00
	ResultSuccess                ResultCode = 0x01
	ResultOpCodeUnknown          ResultCode = 0x02
	ResultParamInvalid           ResultCode = 0x03
	ResultInsufficientResources  ResultCode = 0x04
	ResultObjectInvalid          ResultCode = 0x05
	ResultUnsupportedType        ResultCode = 0x07
	ResultOperationDenied        ResultCode = 0x08
	ResultOperationFailed        ResultCode = 0x0A
	ResultExtError               ResultCode = 0x0B
)

func (r ResultCode) String() string {
	switch r {
	case ResultInvalid:
		return "INVALID"
	case ResultSuccess:
		return "SUCCESS"
	case ResultOpCodeUnknown:
		return "OPCODE_UNKNOWN"
	case ResultParamInvalid:
		return "PARAM_INVALID"
	case ResultInsufficientResources:
		return "INSUFFICIENT_RESOURCES"
	case ResultObjectInvalid:
		return "OBJECT_INVALID"
	case ResultUnsupportedType:
		return "UNSUPPORTED_TYPE"
	case ResultOperationDenied:
		return "OPERATION_DENIED"
	case ResultOperationFailed:
		return "OPERATION_FAILED"
	case ResultExtError:
		return "EXT_ERROR"
	default:
		return fmt.Sprintf("RESULT(0x%02x)", byte(r))
	}
}

// ObjectType distinguishes the init packet from the firmware image.
type ObjectType byte

const (
	ObjectTypeCommand ObjectType = 0x01
	ObjectTypeData    ObjectType = 0x02
)

func (t ObjectType) String() string {
	switch t {
	case ObjectTypeCommand:
		return "COMMAND"
	case ObjectTypeData:
		return "DATA"
	default:
		return fmt.Sprintf("OBJECT_TYPE(0x%02x)", byte(t))
	}
}

// ObjectStatus is the payload of an OBJECT_SELECT response.
type ObjectStatus struct {
	MaxSize uint32
	Offset  uint32
	CRC32   uint32
}

// ChecksumStatus is the payload of a CRC_GET response.
type ChecksumStatus struct {
	Offset uint32
	CRC32  uint32
}

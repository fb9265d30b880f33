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
	"time"

	jww "github.com/spf13/jwalterweatherman"

	"github.com/rcaelers/nrf-dfu/internal/crc32sum"
	"github.com/rcaelers/nrf-dfu/internal/transport"
)

// chunkSizeSetter is implemented by transports (serial) whose usable
// OBJECT_WRITE chunk size is only known after MTU_GET; BLE supplies its
// chunk size directly at construction and doesn't need this.
type chunkSizeSetter interface {
	SetMaxChunkSize(n int)
}

// Engine is the DFU protocol state machine of spec §4.G, bound to one
// Transport for the duration of a single upgrade.
type Engine struct {
	t       transport.Transport
	timeout time.Duration
	pingID  byte
}

// NewEngine binds a new protocol engine to t. timeout is the
// per-response deadline (transport.DefaultSerialTimeout or
// transport.DefaultBLETimeout, depending on which transport t is).
func NewEngine(t transport.Transport, timeout time.Duration) *Engine {
	return &Engine{t: t, timeout: timeout}
}

// NeedsMTU reports whether the bound transport requires MTU_GET
// (serial only, per spec §4.G.3): BLE reports its chunk size directly
// from the negotiated ATT MTU and never implements chunkSizeSetter.
func (e *Engine) NeedsMTU() bool {
	_, ok := e.t.(chunkSizeSetter)
	return ok
}

func (e *Engine) roundtrip(op Opcode, req []byte) ([]byte, error) {
	if err := e.t.SendControl(req); err != nil {
		return nil, err
	}
	frame, err := e.t.RecvResponse(e.timeout)
	if err != nil {
		return nil, err
	}
	return parseResponse(op, frame)
}

// Ping issues a PING with a rotating 8-bit id and reports liveness. A
// timeout or non-SUCCESS result aborts only this attempt; it is not
// fatal to the engine, since the driver is expected to retry.
func (e *Engine) Ping() (bool, error) {
	id := e.pingID
	e.pingID++

	payload, err := e.roundtrip(OpPing, buildPing(id))
	if err != nil {
		switch err.(type) {
		case *transport.TransportError, *RemoteError:
			jww.DEBUG.Printf("ping attempt failed: %v\n", err)
			return false, nil
		default:
			return false, err
		}
	}

	gotID, err := parsePingID(payload)
	if err != nil {
		return false, err
	}
	return gotID == id, nil
}

// SetPRN disables (n=0) or configures packet-receipt notifications.
// An early OPERATION_DENIED is tolerated: the engine proceeds assuming
// PRN=0, which is this client's only supported mode anyway.
func (e *Engine) SetPRN(n uint16) error {
	_, err := e.roundtrip(OpPRNSet, buildPRNSet(n))
	if re, ok := err.(*RemoteError); ok && re.Result == ResultOperationDenied {
		jww.INFO.Println("PRN_SET denied by target, continuing with PRN=0")
		return nil
	}
	return err
}

// GetMTU queries the bootloader's serial MTU and narrows the
// transport's OBJECT_WRITE chunk size so that, after worst-case 2x
// SLIP expansion plus the trailing END byte, an encoded frame still
// fits. Not used on BLE, which reports its chunk size directly.
func (e *Engine) GetMTU() (uint16, error) {
	payload, err := e.roundtrip(OpMTUGet, buildMTUGet())
	if err != nil {
		return 0, err
	}
	mtu, err := parseMTU(payload)
	if err != nil {
		return 0, err
	}

	if setter, ok := e.t.(chunkSizeSetter); ok {
		effective := int(mtu-2) / 2
		if effective < 1 {
			effective = 1
		}
		setter.SetMaxChunkSize(effective)
	}

	return mtu, nil
}

func (e *Engine) selectObject(t ObjectType) (ObjectStatus, error) {
	payload, err := e.roundtrip(OpObjectSelect, buildObjectSelect(t))
	if err != nil {
		return ObjectStatus{}, err
	}
	return parseObjectStatus(payload)
}

func (e *Engine) createObject(t ObjectType, size uint32) error {
	_, err := e.roundtrip(OpObjectCreate, buildObjectCreate(t, size))
	return err
}

func (e *Engine) crcGet() (ChecksumStatus, error) {
	payload, err := e.roundtrip(OpCRCGet, buildCRCGet())
	if err != nil {
		return ChecksumStatus{}, err
	}
	return parseChecksumStatus(payload)
}

func (e *Engine) execute() error {
	_, err := e.roundtrip(OpObjectExecute, buildObjectExecute())
	return err
}

func (e *Engine) abort() error {
	_, err := e.roundtrip(OpAbort, buildAbort())
	return err
}

// Progress reports bytes transferred so far and the total for the
// object type currently being written.
type Progress func(sent, total int64)

// WriteObject performs a full object-type transfer per spec §4.G: it
// selects the type, attempts a resume if the target reports a nonzero
// offset, then creates/streams/verifies/executes objects until
// totalSize bytes have been committed.
func (e *Engine) WriteObject(objType ObjectType, src Source, totalSize int64, progress Progress) error {
	status, err := e.selectObject(objType)
	if err != nil {
		return err
	}

	runningOffset := int64(status.Offset)
	runningCRC := status.CRC32

	if runningOffset > totalSize {
		return &ResourceError{Reason: "target reports more bytes stored than the image contains"}
	}

	if runningOffset > 0 {
		resumed, err := e.tryResume(src, runningOffset, runningCRC)
		if err != nil {
			return err
		}
		if !resumed {
			if err := e.abort(); err != nil {
				jww.DEBUG.Printf("abort before fresh restart failed: %v\n", err)
			}
			if err := src.Seek(0); err != nil {
				return &ResourceError{Reason: err.Error()}
			}
			runningOffset = 0
			runningCRC = crc32sum.Seed
		}
	}

	for runningOffset < totalSize {
		remaining := totalSize - runningOffset
		objectSize := remaining
		if objectSize > int64(status.MaxSize) {
			objectSize = int64(status.MaxSize)
		}

		objectStartOffset := runningOffset
		objectStartCRC := runningCRC
		wantOffset := uint32(objectStartOffset + objectSize)

		hostCRC, target, err := e.streamObject(objType, src, objectSize, objectStartCRC, objectStartOffset, totalSize, progress)
		if err != nil {
			return err
		}

		if target.Offset != wantOffset || target.CRC32 != hostCRC {
			if err := e.abort(); err != nil {
				jww.DEBUG.Printf("abort before object retry failed: %v\n", err)
			}
			if err := src.Seek(objectStartOffset); err != nil {
				return &ResourceError{Reason: err.Error()}
			}
			hostCRC, target, err = e.streamObject(objType, src, objectSize, objectStartCRC, objectStartOffset, totalSize, progress)
			if err != nil {
				return err
			}
			if target.Offset != wantOffset || target.CRC32 != hostCRC {
				return &CrcMismatch{
					WantOffset: wantOffset,
					GotOffset:  target.Offset,
					WantCRC:    hostCRC,
					GotCRC:     target.CRC32,
				}
			}
		}

		if err := e.execute(); err != nil {
			return err
		}

		runningOffset = objectStartOffset + objectSize
		runningCRC = hostCRC
	}

	return nil
}

// tryResume verifies the target's reported (offset, crc) against the
// host's own CRC over source[0:offset]. Either way the source is left
// positioned at offset. If they agree, resume succeeds; otherwise it
// reports false and the caller aborts, rewinds the source to the start
// and restarts from scratch.
func (e *Engine) tryResume(src Source, offset int64, targetCRC uint32) (bool, error) {
	if err := src.Seek(0); err != nil {
		return false, &ResourceError{Reason: err.Error()}
	}

	hostCRC := crc32sum.Seed
	buf := make([]byte, 4096)
	var read int64
	for read < offset {
		n := int64(len(buf))
		if remaining := offset - read; remaining < n {
			n = remaining
		}
		got, err := src.Read(buf[:n])
		if got > 0 {
			hostCRC = crc32sum.Update(hostCRC, buf[:got])
			read += int64(got)
		}
		if err != nil {
			return false, &ResourceError{Reason: err.Error()}
		}
	}

	if hostCRC != targetCRC {
		return false, nil
	}
	return true, nil
}

// streamObject creates one object and streams exactly size bytes from
// src (which must already be positioned at startOffset), returning the
// host-computed running CRC over the whole object type so far and the
// target's CRC_GET report for the caller to compare against it.
func (e *Engine) streamObject(objType ObjectType, src Source, size int64, startCRC uint32, startOffset int64, totalSize int64, progress Progress) (hostCRC uint32, target ChecksumStatus, err error) {
	if err = e.createObject(objType, uint32(size)); err != nil {
		return 0, ChecksumStatus{}, err
	}

	hostCRC = startCRC
	var sent int64

	for sent < size {
		chunkLen := int64(e.t.MaxChunkSize())
		if remaining := size - sent; remaining < chunkLen {
			chunkLen = remaining
		}

		buf := make([]byte, chunkLen)
		n, rerr := src.Read(buf)
		if n > 0 {
			payload := buf[:n]
			hostCRC = crc32sum.Update(hostCRC, payload)
			sent += int64(n)

			if err := e.t.SendData(payload); err != nil {
				return 0, ChecksumStatus{}, err
			}
			if progress != nil {
				progress(startOffset+sent, totalSize)
			}
		}
		if rerr != nil {
			return 0, ChecksumStatus{}, &ResourceError{Reason: rerr.Error()}
		}
	}

	target, err = e.crcGet()
	if err != nil {
		return 0, ChecksumStatus{}, err
	}

	return hostCRC, target, nil
}

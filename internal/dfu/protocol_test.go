package dfu

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rcaelers/nrf-dfu/internal/crc32sum"
)

// fakeTransport simulates just enough bootloader behavior (OBJECT_SELECT,
// OBJECT_CREATE, OBJECT_WRITE, CRC_GET, OBJECT_EXECUTE, ABORT, PING,
// PRN_SET, MTU_GET) for the Engine's state machine to be exercised
// end-to-end without a real serial or BLE link.
type fakeTransport struct {
	maxSize   uint32
	chunkSize int
	mtu       uint16

	committed    map[ObjectType][]byte
	selectedType ObjectType
	pendingType  ObjectType
	pending      []byte

	// corruptWrites, when nonzero, inverts the first byte of the next N
	// SendData payloads before they are accumulated, simulating line
	// corruption.
	corruptWrites int

	resp []byte
}

func newFakeTransport(maxSize uint32) *fakeTransport {
	return &fakeTransport{
		maxSize:   maxSize,
		chunkSize: 64,
		mtu:       64,
		committed: map[ObjectType][]byte{},
	}
}

func (f *fakeTransport) SendControl(frame []byte) error {
	op := Opcode(frame[0])
	switch op {
	case OpPing:
		f.resp = []byte{byte(OpResponse), byte(OpPing), byte(ResultSuccess), frame[1]}

	case OpPRNSet:
		f.resp = []byte{byte(OpResponse), byte(OpPRNSet), byte(ResultSuccess)}

	case OpMTUGet:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, f.mtu)
		f.resp = append([]byte{byte(OpResponse), byte(OpMTUGet), byte(ResultSuccess)}, buf...)

	case OpObjectSelect:
		t := ObjectType(frame[1])
		f.selectedType = t
		committed := f.committed[t]
		buf := make([]byte, 12)
		binary.LittleEndian.PutUint32(buf[0:4], f.maxSize)
		binary.LittleEndian.PutUint32(buf[4:8], uint32(len(committed)))
		binary.LittleEndian.PutUint32(buf[8:12], crc32sum.Checksum(committed))
		f.resp = append([]byte{byte(OpResponse), byte(OpObjectSelect), byte(ResultSuccess)}, buf...)

	case OpObjectCreate:
		f.pendingType = ObjectType(frame[1])
		f.pending = nil
		f.resp = []byte{byte(OpResponse), byte(OpObjectCreate), byte(ResultSuccess)}

	case OpCRCGet:
		full := append(append([]byte{}, f.committed[f.pendingType]...), f.pending...)
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint32(buf[0:4], uint32(len(full)))
		binary.LittleEndian.PutUint32(buf[4:8], crc32sum.Checksum(full))
		f.resp = append([]byte{byte(OpResponse), byte(OpCRCGet), byte(ResultSuccess)}, buf...)

	case OpObjectExecute:
		f.committed[f.pendingType] = append(f.committed[f.pendingType], f.pending...)
		f.pending = nil
		f.resp = []byte{byte(OpResponse), byte(OpObjectExecute), byte(ResultSuccess)}

	case OpAbort:
		// An abort with nothing pending means no object has been created
		// since the last SELECT: this is the "resume offer rejected"
		// abort, and per the reference bootloader's behavior the whole
		// in-flight object type is invalidated, not just the last chunk.
		if len(f.pending) == 0 {
			f.committed[f.selectedType] = nil
		}
		f.pending = nil
		f.resp = []byte{byte(OpResponse), byte(OpAbort), byte(ResultSuccess)}

	default:
		f.resp = []byte{byte(OpResponse), byte(op), byte(ResultOpCodeUnknown)}
	}
	return nil
}

func (f *fakeTransport) SendData(payload []byte) error {
	chunk := append([]byte{}, payload...)
	if f.corruptWrites > 0 {
		f.corruptWrites--
		chunk[0] ^= 0xFF
	}
	f.pending = append(f.pending, chunk...)
	return nil
}

func (f *fakeTransport) RecvResponse(timeout time.Duration) ([]byte, error) {
	return f.resp, nil
}

func (f *fakeTransport) MaxChunkSize() int     { return f.chunkSize }
func (f *fakeTransport) SetMaxChunkSize(n int) { f.chunkSize = n }
func (f *fakeTransport) Close() error          { return nil }

func makeImage(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i)
	}
	return data
}

func TestWriteObjectFreshTransfer(t *testing.T) {
	ft := newFakeTransport(32)
	ft.chunkSize = 8
	e := NewEngine(ft, time.Second)

	image := makeImage(100)
	var lastSent int64
	err := e.WriteObject(ObjectTypeData, NewSource(image), int64(len(image)), func(sent, total int64) {
		lastSent = sent
		assert.Equal(t, int64(len(image)), total)
	})

	assert.NoError(t, err)
	assert.Equal(t, image, ft.committed[ObjectTypeData])
	assert.Equal(t, int64(len(image)), lastSent)
}

func TestWriteObjectResumesFromOffset(t *testing.T) {
	ft := newFakeTransport(32)
	image := makeImage(64)

	// Pre-seed the target as if the first 32 bytes were already
	// committed in an earlier, interrupted run.
	ft.committed[ObjectTypeData] = append([]byte{}, image[:32]...)

	e := NewEngine(ft, time.Second)
	err := e.WriteObject(ObjectTypeData, NewSource(image), int64(len(image)), nil)

	assert.NoError(t, err)
	assert.Equal(t, image, ft.committed[ObjectTypeData])
}

func TestWriteObjectRestartsOnResumeCrcMismatch(t *testing.T) {
	ft := newFakeTransport(32)
	image := makeImage(64)

	// Target reports 40 bytes committed, but with a CRC that doesn't
	// match this image's first 40 bytes: resume must fail and the
	// transfer must restart from scratch rather than erroring out.
	corrupted := append([]byte{}, image[:40]...)
	corrupted[5] ^= 0xFF
	ft.committed[ObjectTypeData] = corrupted

	e := NewEngine(ft, time.Second)
	err := e.WriteObject(ObjectTypeData, NewSource(image), int64(len(image)), nil)

	assert.NoError(t, err)
	assert.Equal(t, image, ft.committed[ObjectTypeData])
}

func TestWriteObjectRetriesOnceAfterCrcMismatch(t *testing.T) {
	ft := newFakeTransport(16)
	ft.corruptWrites = 1 // corrupt only the first attempt's first chunk
	image := makeImage(16)

	e := NewEngine(ft, time.Second)
	err := e.WriteObject(ObjectTypeData, NewSource(image), int64(len(image)), nil)

	assert.NoError(t, err)
	assert.Equal(t, image, ft.committed[ObjectTypeData])
}

func TestWriteObjectFailsAfterTwoConsecutiveMismatches(t *testing.T) {
	ft := newFakeTransport(16)
	ft.corruptWrites = 2 // corrupt both the original attempt and its one retry
	image := makeImage(16)

	e := NewEngine(ft, time.Second)
	err := e.WriteObject(ObjectTypeData, NewSource(image), int64(len(image)), nil)

	assert.Error(t, err)
	_, ok := err.(*CrcMismatch)
	assert.True(t, ok)
}

func TestPingRotatesID(t *testing.T) {
	ft := newFakeTransport(32)
	e := NewEngine(ft, time.Second)

	ok, err := e.Ping()
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, byte(1), e.pingID)

	ok, err = e.Ping()
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, byte(2), e.pingID)
}

func TestGetMTUNarrowsSerialChunkSize(t *testing.T) {
	ft := newFakeTransport(32)
	ft.mtu = 40
	ft.chunkSize = 512
	e := NewEngine(ft, time.Second)

	mtu, err := e.GetMTU()
	assert.NoError(t, err)
	assert.EqualValues(t, 40, mtu)
	assert.Equal(t, 19, ft.MaxChunkSize()) // (40-2)/2
}

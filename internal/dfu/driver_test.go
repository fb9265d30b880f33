package dfu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDriverRunTransfersInitPacketAndImage(t *testing.T) {
	ft := newFakeTransport(32)
	closed := false
	driver := &Driver{
		engine:  NewEngine(ft, time.Second),
		onClose: func() error { closed = true; return nil },
	}

	fw := Firmware{
		InitPacket: makeImage(10),
		Image:      makeImage(70),
	}

	var progressCalls int
	err := driver.Run(fw, func(sent, total int64) {
		progressCalls++
		assert.LessOrEqual(t, sent, total)
	})

	assert.NoError(t, err)
	assert.Equal(t, fw.InitPacket, ft.committed[ObjectTypeCommand])
	assert.Equal(t, fw.Image, ft.committed[ObjectTypeData])
	assert.Greater(t, progressCalls, 0)

	assert.NoError(t, driver.Close())
	assert.True(t, closed)
}

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

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"github.com/rcaelers/nrf-dfu/internal/transport"
)

// pingRetries and pingInterval bound how long the driver waits for a
// freshly connected bootloader to start answering PING; a bootloader
// that just rebooted into DFU mode can take a moment to settle.
const (
	pingRetries  = 10
	pingInterval = 500 * time.Millisecond
)

// Firmware is one init-packet/image pair ready to be streamed: the
// archive's "application" or "softdevice" bundle, already extracted
// from the zip.
type Firmware struct {
	InitPacket []byte
	Image      []byte
}

// ProgressFunc reports overall byte progress across both the init
// packet and the firmware image, in that order.
type ProgressFunc func(sent, total int64)

// Driver sequences a full upgrade over one Transport: wait for the
// bootloader to come up, disable receipt notifications, narrow the
// chunk size on serial, then write the init packet followed by the
// firmware image.
type Driver struct {
	engine  *Engine
	onClose func() error
}

// NewDriver binds a Driver to t. timeout is the per-response deadline
// passed to the underlying Engine.
func NewDriver(t transport.Transport, timeout time.Duration) *Driver {
	return &Driver{
		engine:  NewEngine(t, timeout),
		onClose: t.Close,
	}
}

// Run performs the upgrade described by fw, reporting combined
// progress across the init packet and the image through progress.
func (d *Driver) Run(fw Firmware, progress ProgressFunc) error {
	if err := d.awaitReady(); err != nil {
		return errors.Wrap(err, "bootloader did not respond to PING")
	}

	if err := d.engine.SetPRN(0); err != nil {
		return errors.Wrap(err, "failed to disable packet receipt notifications")
	}

	// MTU_GET is serial only (spec §4.G.3); the Nordic BLE bootloader
	// doesn't implement it on the control characteristic, and BLE's
	// chunk size already comes from the negotiated ATT MTU.
	if d.engine.NeedsMTU() {
		if _, err := d.engine.GetMTU(); err != nil {
			return errors.Wrap(err, "MTU_GET failed")
		}
	}

	total := int64(len(fw.InitPacket)) + int64(len(fw.Image))

	initProgress := func(sent, _ int64) {
		if progress != nil {
			progress(sent, total)
		}
	}
	jww.INFO.Println("Sending init packet")
	if err := d.engine.WriteObject(ObjectTypeCommand, NewSource(fw.InitPacket), int64(len(fw.InitPacket)), initProgress); err != nil {
		return errors.Wrap(err, "failed to transfer init packet")
	}

	base := int64(len(fw.InitPacket))
	imageProgress := func(sent, _ int64) {
		if progress != nil {
			progress(base+sent, total)
		}
	}
	jww.INFO.Println("Sending firmware image")
	if err := d.engine.WriteObject(ObjectTypeData, NewSource(fw.Image), int64(len(fw.Image)), imageProgress); err != nil {
		return errors.Wrap(err, "failed to transfer firmware image")
	}

	jww.INFO.Println("DFU transfer complete")
	return nil
}

// Close releases the underlying transport.
func (d *Driver) Close() error {
	return d.onClose()
}

// awaitReady polls PING until the bootloader answers or the retry
// budget is exhausted.
func (d *Driver) awaitReady() error {
	for attempt := 0; attempt < pingRetries; attempt++ {
		ok, err := d.engine.Ping()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		time.Sleep(pingInterval)
	}
	return errors.New("no response to PING")
}

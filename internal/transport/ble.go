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
	"encoding/hex"
	"strings"
	"sync"
	"time"

	jww "github.com/spf13/jwalterweatherman"

	"github.com/rcaelers/nrf-dfu/internal/ble"
)

const (
	dfuServiceUUID    = "0000fe59-0000-1000-8000-00805f9b34fb"
	dfuControlUUID    = "8ec90001-f315-4f60-9fb8-838830daea50"
	dfuDataUUID       = "8ec90002-f315-4f60-9fb8-838830daea50"
	dfuButtonlessUUID = "8ec90003-f315-4f60-9fb8-838830daea50"

	bleConnectRetries  = 3
	bleConnectBackoff  = 5 * time.Second
	bleButtonlessWait  = 10 * time.Second
	bleATTOverhead     = 3
	bleDefaultATTMTU   = 23
)

// notifyBox is a single-slot mailbox the BLE library's notification
// callback writes into and RecvResponse drains. The protocol engine
// guarantees at most one outstanding request, so the slot is cleared
// before every send; a callback that still fires after RecvResponse
// has already timed out simply overwrites a slot nobody reads, per the
// "overflow is undefined" note in the spec's concurrency model.
type notifyBox struct {
	mu   sync.Mutex
	data []byte
	ch   chan struct{}
}

func newNotifyBox() *notifyBox {
	return &notifyBox{ch: make(chan struct{}, 1)}
}

// put stores data and wakes exactly one waiter. Memory ordering between
// the payload write and the wake-up is provided by the mutex acquired
// in both put and wait.
func (b *notifyBox) put(data []byte) {
	b.mu.Lock()
	b.data = data
	b.mu.Unlock()
	select {
	case b.ch <- struct{}{}:
	default:
	}
}

func (b *notifyBox) clear() {
	b.mu.Lock()
	b.data = nil
	b.mu.Unlock()
	select {
	case <-b.ch:
	default:
	}
}

// wait blocks until a value is posted or timeout elapses.
func (b *notifyBox) wait(timeout time.Duration) ([]byte, bool) {
	select {
	case <-b.ch:
		b.mu.Lock()
		data := b.data
		b.mu.Unlock()
		return data, true
	case <-time.After(timeout):
		return nil, false
	}
}

type bleTransport struct {
	peripheral ble.Peripheral
	control    ble.Characteristic
	data       ble.Characteristic

	mailbox *notifyBox
	chunk   int
}

// OpenBLE runs the full connect sequence of spec §4.D: connect to
// address, try buttonless DFU entry if present, reconnect to DfuTarg
// (MAC incremented by one), and discover the control/data
// characteristics. attMTU is the negotiated ATT MTU reported by the
// BLE library; the usable chunk size is attMTU-3.
func OpenBLE(client ble.Client, address string, atype ble.AddressType, attMTU int) (Transport, error) {
	if attMTU <= bleATTOverhead {
		attMTU = bleDefaultATTMTU
	}

	peripheral, err := connectWithRetry(client, address, atype, bleConnectBackoff, 30*time.Second)
	if err != nil {
		return nil, err
	}

	service := peripheral.FindService(dfuServiceUUID)
	if service == nil {
		peripheral.Disconnect()
		return nil, &TransportError{Op: "connect", Reason: "DFU service not found"}
	}

	t := &bleTransport{
		peripheral: peripheral,
		mailbox:    newNotifyBox(),
		chunk:      attMTU - bleATTOverhead,
	}

	if boot := service.FindCharacteristic(dfuButtonlessUUID); boot != nil {
		if err := t.enterBootloader(boot); err != nil {
			peripheral.Disconnect()
			return nil, err
		}

		dfutargAddr, err := incrementMACFirstByte(address)
		if err != nil {
			return nil, &TransportError{Op: "connect", Reason: err.Error()}
		}

		peripheral, err = connectWithRetry(client, dfutargAddr, atype, bleConnectBackoff, 30*time.Second)
		if err != nil {
			return nil, err
		}
		t.peripheral = peripheral

		service = peripheral.FindService(dfuServiceUUID)
		if service == nil {
			peripheral.Disconnect()
			return nil, &TransportError{Op: "connect", Reason: "DFU service not found on DfuTarg"}
		}
	}

	t.control = service.FindCharacteristic(dfuControlUUID)
	t.data = service.FindCharacteristic(dfuDataUUID)
	if t.control == nil || t.data == nil {
		t.peripheral.Disconnect()
		return nil, &TransportError{Op: "connect", Reason: "DFU control/data characteristics not found"}
	}

	if err := t.control.Subscribe(false, func(d []byte) {
		t.mailbox.put(d)
	}); err != nil {
		t.peripheral.Disconnect()
		return nil, &TransportError{Op: "subscribe", Reason: err.Error()}
	}

	return t, nil
}

func connectWithRetry(client ble.Client, address string, atype ble.AddressType, backoff, timeout time.Duration) (ble.Peripheral, error) {
	var lastErr error
	for attempt := 0; attempt < bleConnectRetries; attempt++ {
		if attempt > 0 {
			jww.INFO.Printf("Retrying connection to %s (attempt %d/%d)\n", address, attempt+1, bleConnectRetries)
			time.Sleep(backoff)
		}
		peripheral, err := client.ConnectAddress(address, atype, timeout)
		if err == nil {
			return peripheral, nil
		}
		lastErr = err
	}
	return nil, &TransportError{Op: "connect", Reason: lastErr.Error()}
}

func (t *bleTransport) enterBootloader(boot ble.Characteristic) error {
	box := newNotifyBox()
	if err := boot.Subscribe(true, func(d []byte) { box.put(d) }); err != nil {
		return &TransportError{Op: "subscribe", Reason: err.Error()}
	}
	defer boot.Unsubscribe(true)

	if err := boot.WriteCharacteristic([]byte{0x01}, false); err != nil {
		return &TransportError{Op: "write", Reason: err.Error()}
	}

	data, ok := box.wait(bleButtonlessWait)
	if !ok {
		return &TransportError{Op: "buttonless-entry", Reason: "timeout waiting for indication"}
	}
	// First byte after the opcode is the result; anything but SUCCESS
	// is logged but does not abort the reboot, per spec.
	if len(data) < 3 || data[2] != 0x01 {
		jww.ERROR.Printf("Unexpected buttonless DFU response: % x\n", data)
	}

	return nil
}

// SendControl clears the mailbox before writing, per spec §5: the flag
// is cleared by the engine before each send and set by the callback on
// receipt. Clearing here, rather than at the start of RecvResponse,
// closes the window where a notification delivered between this write
// returning and the next RecvResponse call would otherwise be drained
// by a late clear instead of woken up.
func (t *bleTransport) SendControl(frame []byte) error {
	t.mailbox.clear()
	if err := t.control.WriteCharacteristic(frame, false); err != nil {
		return &TransportError{Op: "write", Reason: err.Error()}
	}
	return nil
}

// SendData writes raw OBJECT_WRITE payload bytes to the data
// characteristic without response and without any opcode prefix or
// SLIP framing; BLE packets are already self-delimiting.
func (t *bleTransport) SendData(payload []byte) error {
	if err := t.data.WriteCharacteristic(payload, true); err != nil {
		return &TransportError{Op: "write", Reason: err.Error()}
	}
	return nil
}

func (t *bleTransport) RecvResponse(timeout time.Duration) ([]byte, error) {
	data, ok := t.mailbox.wait(timeout)
	if !ok {
		return nil, &TransportError{Op: "read", Reason: "timeout waiting for notification"}
	}
	return data, nil
}

func (t *bleTransport) MaxChunkSize() int {
	return t.chunk
}

func (t *bleTransport) Close() error {
	t.control.Unsubscribe(false)
	if err := t.peripheral.Disconnect(); err != nil {
		return &TransportError{Op: "close", Reason: err.Error()}
	}
	return nil
}

// incrementMACFirstByte derives the DfuTarg address by incrementing
// byte index 0 of the MAC by one, with wrap — the behavior observed in
// the bootloader's reference host tool, not the least-significant-byte
// increment some Nordic documentation describes (see DESIGN.md).
func incrementMACFirstByte(address string) (string, error) {
	clean := strings.ReplaceAll(address, ":", "")
	clean = strings.ReplaceAll(clean, "-", "")
	raw, err := hex.DecodeString(clean)
	if err != nil || len(raw) == 0 {
		return "", &TransportError{Op: "mac-increment", Reason: "invalid MAC address: " + address}
	}
	raw[0]++

	if !strings.Contains(address, ":") {
		return hex.EncodeToString(raw), nil
	}

	parts := make([]string, len(raw))
	for i, b := range raw {
		parts[i] = hex.EncodeToString([]byte{b})
	}
	return strings.Join(parts, ":"), nil
}

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

package cmd

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"gopkg.in/cheggaaa/pb.v2"

	"github.com/rcaelers/nrf-dfu/internal/archive"
	"github.com/rcaelers/nrf-dfu/internal/ble"
	"github.com/rcaelers/nrf-dfu/internal/dfu"
	"github.com/rcaelers/nrf-dfu/internal/transport"
)

type dfuCommand struct {
	*baseCommand

	transportKind    string
	timeout          time.Duration
	address          string
	port             string
	firmwareFilename string
}

func newDfuCommand() *dfuCommand {
	c := &dfuCommand{}

	c.baseCommand = newBaseCommand(&cobra.Command{
		Use:   "dfu",
		Short: "Perform a device firmware upgrade",
		Args:  cobra.NoArgs,
		Long: `This command performs a firmware upgrade of an nRF51 or nRF52 device.
Over BLE, if the device exposes the Buttonless DFU service, it is used first to
reboot the device into DFU mode. Over serial, the device is assumed to already
be running the DFU bootloader.`,
		Example: `nrfdfu dfu --transport ble --address 4b668b2e16e41429fca7af1b0dc50644 --firmware FW.zip
nrfdfu dfu --transport serial --port /dev/ttyACM0 --firmware FW.zip`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDfu()
		},
	})

	c.cmd.Flags().StringVarP(&c.transportKind, "transport", "T", "ble", "Transport to use: ble or serial")
	c.cmd.Flags().DurationVarP(&c.timeout, "timeout", "t", 30*time.Second, "Not used: each BLE connect attempt has a fixed 30s timeout")
	c.cmd.Flags().StringVarP(&c.firmwareFilename, "firmware", "f", "", "Filename of the firmware archive")
	c.cmd.Flags().StringVarP(&c.address, "address", "a", "", "Address of device to be upgraded (BLE transport)")
	c.cmd.Flags().StringVarP(&c.port, "port", "p", "", "Serial port the device is attached to (serial transport)")
	return c
}

func (c *dfuCommand) runDfu() error {
	if c.firmwareFilename == "" {
		return errors.New("no firmware filename specified, use --firmware to specify the firmware archive")
	}

	pkg, err := archive.Open(c.firmwareFilename)
	if err != nil {
		return errors.Wrap(err, "failed to open firmware archive")
	}
	defer pkg.Close()

	initPacket, image, err := pkg.Firmware()
	if err != nil {
		return errors.Wrap(err, "failed to read firmware archive")
	}

	t, timeout, err := c.openTransport()
	if err != nil {
		return err
	}

	driver := dfu.NewDriver(t, timeout)
	defer driver.Close()

	var bar *pb.ProgressBar
	err = driver.Run(dfu.Firmware{InitPacket: initPacket, Image: image}, func(sent, total int64) {
		if bar == nil {
			bar = pb.ProgressBarTemplate(`{{ white "DFU:" }} {{bar . | green}} {{speed . "%s byte/s" | white }}`).Start(100)
		}
		if bar.Total() != total {
			bar.SetTotal(total)
		}
		bar.SetCurrent(sent)
	})
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return errors.Wrap(err, "failed to upgrade device firmware")
	}

	return nil
}

func (c *dfuCommand) openTransport() (transport.Transport, time.Duration, error) {
	switch c.transportKind {
	case "serial":
		if c.port == "" {
			return nil, 0, errors.New("no serial port specified, use --port to specify it")
		}
		jww.INFO.Printf("Upgrading firmware of device on '%s' with '%s'\n", c.port, c.firmwareFilename)
		t, err := transport.OpenSerial(c.port)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to open serial port")
		}
		return t, transport.DefaultSerialTimeout, nil

	case "ble":
		if c.address == "" {
			return nil, 0, errors.New("no address specified, use --address to specify the device address")
		}
		jww.INFO.Printf("Upgrading firmware of device '%s' with '%s'\n", c.address, c.firmwareFilename)
		client, err := newBLEClient()
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to create new BLE client")
		}
		t, err := transport.OpenBLE(client, c.address, ble.AddressTypeRandom, 0)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to connect to device")
		}
		return t, transport.DefaultBLETimeout, nil

	default:
		return nil, 0, errors.Errorf("unknown transport %q, expected ble or serial", c.transportKind)
	}
}

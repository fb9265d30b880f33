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

	"github.com/rcaelers/nrf-dfu/internal/ble"
	"github.com/rcaelers/nrf-dfu/internal/transport"
)

type bootCommand struct {
	*baseCommand

	timeout time.Duration
	address string
}

func newBootCommand() *bootCommand {
	c := &bootCommand{}

	c.baseCommand = newBaseCommand(&cobra.Command{
		Use:   "boot",
		Short: "Reboot device into DFU mode",
		Long: `This command reboots an nRF51 or nRF52 device that exposes the
Buttonless DFU service into DFU mode. The dfu command does this automatically
when needed, so boot is only useful on its own.`,
		Example: `nrfdfu boot --address 4b668b2e16e41429fca7af1b0dc50644
nrfdfu boot --address 4b668b2e16e41429fca7af1b0dc50644 --timeout=20s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBoot()
		},
	})

	c.cmd.Flags().DurationVarP(&c.timeout, "timeout", "t", 30*time.Second, "Not used: each BLE connect attempt has a fixed 30s timeout")
	c.cmd.Flags().StringVarP(&c.address, "address", "a", "", "Address of device to be rebooted")

	return c
}

func (c *bootCommand) runBoot() error {
	if c.address == "" {
		return errors.New("no address specified, use --address to specify the device address")
	}

	jww.INFO.Printf("Rebooting device '%s' into DFU mode\n", c.address)

	client, err := newBLEClient()
	if err != nil {
		return errors.Wrap(err, "failed to create new BLE client")
	}

	t, err := transport.OpenBLE(client, c.address, ble.AddressTypeRandom, 0)
	if err != nil {
		return errors.Wrap(err, "failed to boot device into DFU mode")
	}
	return t.Close()
}

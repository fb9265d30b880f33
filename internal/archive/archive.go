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

// Package archive reads a Nordic DFU distribution package: a zip file
// containing manifest.json plus the init packet (.dat) and firmware
// image (.bin) it names. This is external-collaborator glue, not part
// of the protocol core: it hands the core two plain byte slices.
package archive

import (
	"archive/zip"
	"encoding/json"
	"io/ioutil"

	"github.com/pkg/errors"
)

// manifestEntry is one firmware unit inside manifest.json, e.g. the
// "application" or "softdevice_bootloader" key.
type manifestEntry struct {
	DatFile string `json:"dat_file"`
	BinFile string `json:"bin_file"`
}

type manifestBody struct {
	Application          *manifestEntry `json:"application"`
	Bootloader           *manifestEntry `json:"bootloader"`
	Softdevice           *manifestEntry `json:"softdevice"`
	SoftdeviceBootloader *manifestEntry `json:"softdevice_bootloader"`
}

type manifest struct {
	Manifest manifestBody `json:"manifest"`
}

// Package is one opened distribution archive.
type Package struct {
	zr *zip.ReadCloser
}

// Open opens the zip container at path. manifest.json and the firmware
// payloads it names are read lazily by Firmware.
func Open(path string) (*Package, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open firmware archive")
	}
	return &Package{zr: zr}, nil
}

// Close releases the underlying zip reader.
func (p *Package) Close() error {
	return p.zr.Close()
}

// Firmware reads the init packet and firmware image for the first
// manifest entry present, in the order application, softdevice,
// bootloader, softdevice_bootloader — the order the reference
// bootloader itself prefers when more than one unit is bundled.
func (p *Package) Firmware() (initPacket, image []byte, err error) {
	entry, err := p.readManifestEntry()
	if err != nil {
		return nil, nil, err
	}

	initPacket, err = p.readFile(entry.DatFile)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read init packet")
	}
	image, err = p.readFile(entry.BinFile)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read firmware image")
	}
	return initPacket, image, nil
}

func (p *Package) readManifestEntry() (*manifestEntry, error) {
	raw, err := p.readFile("manifest.json")
	if err != nil {
		return nil, errors.Wrap(err, "archive does not contain manifest.json")
	}

	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrap(err, "failed to parse manifest.json")
	}

	for _, entry := range []*manifestEntry{
		m.Manifest.Application,
		m.Manifest.Softdevice,
		m.Manifest.Bootloader,
		m.Manifest.SoftdeviceBootloader,
	} {
		if entry != nil && entry.DatFile != "" && entry.BinFile != "" {
			return entry, nil
		}
	}
	return nil, errors.New("manifest.json names no usable firmware unit")
}

func (p *Package) readFile(name string) ([]byte, error) {
	for _, f := range p.zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return ioutil.ReadAll(rc)
		}
	}
	return nil, errors.Errorf("%s not found in archive", name)
}

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

// Package crc32sum computes the IEEE 802.3 CRC-32 used to verify DFU
// object transfers, incrementally so the running checksum can be
// carried across chunk and resume boundaries.
package crc32sum

import "hash/crc32"

// Seed is the running CRC-32 value before any bytes have been seen.
const Seed uint32 = 0

// Update folds data into a running CRC-32/IEEE checksum. Calling it
// repeatedly with the previous return value as seed produces the same
// result as computing the checksum over the concatenation of all data
// passed in, so it can be resumed from any known offset/crc pair the
// target reports.
func Update(seed uint32, data []byte) uint32 {
	return crc32.Update(seed, crc32.IEEETable, data)
}

// Checksum computes the CRC-32/IEEE of data in one call.
func Checksum(data []byte) uint32 {
	return Update(Seed, data)
}

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

import "io"

// Source is the minimal read/seek surface WriteObject needs over an
// init packet or firmware image: sequential reads for streaming, plus
// the ability to rewind to an arbitrary offset for resume and retry.
type Source interface {
	Read(p []byte) (int, error)
	Seek(offset int64) error
	Len() int64
}

// memSource adapts an in-memory byte slice, the shape both the init
// packet and a firmware image take once read out of the archive.
type memSource struct {
	data []byte
	pos  int64
}

// NewSource wraps data (the full contents of an init packet or
// firmware image) as a Source.
func NewSource(data []byte) Source {
	return &memSource{data: data}
}

func (s *memSource) Read(p []byte) (int, error) {
	if s.pos >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *memSource) Seek(offset int64) error {
	if offset < 0 || offset > int64(len(s.data)) {
		return &ResourceError{Reason: "seek offset out of range"}
	}
	s.pos = offset
	return nil
}

func (s *memSource) Len() int64 {
	return int64(len(s.data))
}

// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cformat

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-lpc/citiroc/board"
	"github.com/go-lpc/citiroc/internal/crc16"
)

// Decoder reads (and validates) acquisition cycles from an underlying
// data source.
// Decoder computes CRC-16 checksums on the fly, while reading cycles.
type Decoder struct {
	r io.Reader

	buf []byte
	err error
	crc crc16.Hash16
}

// NewDecoder creates a decoder that reads and validates data from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:   r,
		buf: make([]byte, 8),
		crc: crc16.New(nil),
	}
}

// ReadHeader reads the stream header and returns its run number.
func (dec *Decoder) ReadHeader() (uint32, error) {
	v := dec.readU8()
	if dec.err != nil {
		return 0, fmt.Errorf("cformat: could not read stream header marker: %w", dec.err)
	}
	if v != fileHeader {
		return 0, fmt.Errorf("cformat: invalid stream header marker (got=0x%x, want=0x%x)", v, fileHeader)
	}
	run := dec.readU32()
	if dec.err != nil {
		return 0, fmt.Errorf("cformat: could not read run number: %w", dec.err)
	}
	return run, nil
}

// Decode reads the next cycle record from the stream.
// Decode returns io.EOF at the end of the stream.
func (dec *Decoder) Decode(cy *board.Cycle) error {
	dec.crc.Reset()

	v := dec.readU8()
	if dec.err != nil {
		return fmt.Errorf("cformat: could not read cycle header marker: %w", dec.err)
	}
	switch v {
	case cyHeader:
		// ok.
	case endMarker:
		return io.EOF
	default:
		return fmt.Errorf("cformat: invalid cycle header marker (got=0x%x, want=0x%x)", v, cyHeader)
	}

	idx := dec.readU32()
	acq := dec.readU16()
	chn := dec.readU8()
	n := dec.readU32()
	if dec.err != nil {
		return fmt.Errorf("cformat: could not read cycle header: %w", dec.err)
	}

	if want := (uint64(chn) + 1) * uint64(acq); uint64(n) != want {
		return fmt.Errorf(
			"cformat: invalid number of samples in cycle %d (got=%d, want=%d)",
			idx, n, want,
		)
	}

	hg := make([]uint16, n)
	for i := range hg {
		hg[i] = dec.readU16()
	}
	lg := make([]uint16, n)
	for i := range lg {
		lg[i] = dec.readU16()
	}
	if dec.err != nil {
		return fmt.Errorf("cformat: could not read samples of cycle %d: %w", idx, dec.err)
	}

	v = dec.readU8()
	if dec.err != nil {
		return fmt.Errorf("cformat: could not read cycle trailer marker: %w", dec.err)
	}
	if v != cyTrailer {
		return fmt.Errorf("cformat: invalid cycle trailer marker (got=0x%x, want=0x%x)", v, cyTrailer)
	}

	comp := dec.crc.Sum16()
	crc := dec.readU16()
	if dec.err != nil {
		return fmt.Errorf("cformat: could not read CRC-16 of cycle %d: %w", idx, dec.err)
	}
	if crc != comp {
		return fmt.Errorf(
			"cformat: inconsistent CRC of cycle %d: recv=0x%04x comp=0x%04x",
			idx, crc, comp,
		)
	}

	*cy = board.Cycle{
		Index:        int(idx),
		Acquisitions: int(acq),
		Channels:     int(chn),
		HG:           hg,
		LG:           lg,
	}
	return nil
}

func (dec *Decoder) read(p []byte) {
	if dec.err != nil {
		return
	}
	_, dec.err = io.ReadFull(dec.r, p)
	if dec.err == nil {
		_, _ = dec.crc.Write(p) // can not fail.
	}
}

func (dec *Decoder) readU8() uint8 {
	dec.read(dec.buf[:1])
	return dec.buf[0]
}

func (dec *Decoder) readU16() uint16 {
	dec.read(dec.buf[:2])
	return binary.BigEndian.Uint16(dec.buf[:2])
}

func (dec *Decoder) readU32() uint32 {
	dec.read(dec.buf[:4])
	return binary.BigEndian.Uint32(dec.buf[:4])
}

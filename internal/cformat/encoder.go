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

// Encoder writes acquisition cycles to an output stream.
// Encoder computes the CRC-16 checksum of each cycle on the fly and
// appends it at the end of the cycle record.
type Encoder struct {
	w   io.Writer
	buf []byte
	err error
	crc crc16.Hash16
}

// NewEncoder returns a new Encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w:   w,
		buf: make([]byte, 8),
		crc: crc16.New(nil),
	}
}

func (enc *Encoder) crcw(p []byte) {
	_, _ = enc.crc.Write(p) // can not fail.
}

// WriteHeader writes the stream header for the provided run number.
func (enc *Encoder) WriteHeader(run uint32) error {
	enc.writeU8(fileHeader)
	enc.writeU32(run)
	if enc.err != nil {
		return fmt.Errorf("cformat: could not write stream header: %w", enc.err)
	}
	return nil
}

// Encode writes the cycle record to the stream, computes the
// corresponding CRC-16 checksum on the fly and appends it to the record.
func (enc *Encoder) Encode(cy board.Cycle) error {
	n := (cy.Channels + 1) * cy.Acquisitions
	switch {
	case cy.Index < 0 || uint64(cy.Index) > 0xffffffff:
		return fmt.Errorf("cformat: invalid cycle index %d", cy.Index)
	case cy.Acquisitions < 0 || cy.Acquisitions > 0xffff:
		return fmt.Errorf("cformat: invalid number of acquisitions %d", cy.Acquisitions)
	case cy.Channels < 0 || cy.Channels > 0xff:
		return fmt.Errorf("cformat: invalid number of channels %d", cy.Channels)
	case len(cy.HG) != n || len(cy.LG) != n:
		return fmt.Errorf(
			"cformat: invalid number of samples (hg=%d, lg=%d, want=%d)",
			len(cy.HG), len(cy.LG), n,
		)
	}

	enc.crc.Reset()

	enc.writeU8(cyHeader)
	if enc.err != nil {
		return fmt.Errorf("cformat: could not write cycle header marker: %w", enc.err)
	}

	enc.writeU32(uint32(cy.Index))
	enc.writeU16(uint16(cy.Acquisitions))
	enc.writeU8(uint8(cy.Channels))
	enc.writeU32(uint32(n))
	for _, v := range cy.HG {
		enc.writeU16(v)
	}
	for _, v := range cy.LG {
		enc.writeU16(v)
	}
	enc.writeU8(cyTrailer)

	crc := enc.crc.Sum16()
	enc.writeU16(crc)

	if enc.err != nil {
		return fmt.Errorf("cformat: could not write cycle %d: %w", cy.Index, enc.err)
	}
	return nil
}

// Close writes the end of stream marker.
// Close does not close the underlying writer.
func (enc *Encoder) Close() error {
	enc.writeU8(endMarker)
	if enc.err != nil {
		return fmt.Errorf("cformat: could not write end of stream marker: %w", enc.err)
	}
	return nil
}

func (enc *Encoder) write(p []byte) {
	if enc.err != nil {
		return
	}
	_, enc.err = enc.w.Write(p)
	enc.crcw(p)
}

func (enc *Encoder) writeU8(v uint8) {
	const n = 1
	enc.buf[0] = v
	enc.write(enc.buf[:n])
}

func (enc *Encoder) writeU16(v uint16) {
	const n = 2
	binary.BigEndian.PutUint16(enc.buf[:n], v)
	enc.write(enc.buf[:n])
}

func (enc *Encoder) writeU32(v uint32) {
	const n = 4
	binary.BigEndian.PutUint32(enc.buf[:n], v)
	enc.write(enc.buf[:n])
}

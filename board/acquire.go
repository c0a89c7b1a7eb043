// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package board

import (
	"context"
	"fmt"
	"time"

	"github.com/go-lpc/citiroc/asic"
	"github.com/go-lpc/citiroc/internal/regs"
)

// DefaultCapacity is the default number of acquisitions per FIFO cycle.
const DefaultCapacity = 100

// Request describes an acquisition.
type Request struct {
	Total    int  // total number of acquisitions
	Capacity int  // number of acquisitions per FIFO cycle (DefaultCapacity if zero)
	Channels int  // channel count; each acquisition holds Channels+1 samples
	TimeMode bool // time acquisition mode: a single full-capacity cycle
}

func (req Request) capacity() int {
	if req.Capacity == 0 {
		return DefaultCapacity
	}
	return req.Capacity
}

// Validate checks the request parameters.
func (req Request) Validate() error {
	capa := req.capacity()
	switch {
	case capa < 1 || capa > 0xff:
		return fmt.Errorf("%w: FIFO cycle capacity %d out of range [1,255]", asic.ErrConfig, capa)
	case req.Channels < 0 || req.Channels > asic.NChans:
		return fmt.Errorf("%w: channel count %d out of range [0,%d]", asic.ErrConfig, req.Channels, asic.NChans)
	case req.Total < 0:
		return fmt.Errorf("%w: negative number of acquisitions %d", asic.ErrConfig, req.Total)
	case req.Total == 0 && !req.TimeMode:
		return fmt.Errorf("%w: no acquisition requested", asic.ErrConfig)
	}
	return nil
}

// Cycles returns the number of FIFO cycles needed to serve the request.
// At least one cycle is always run.
func (req Request) Cycles() int {
	if req.TimeMode {
		return 1
	}
	capa := req.capacity()
	n := (req.Total + capa - 1) / capa
	if n < 1 {
		n = 1
	}
	return n
}

// acquisitions returns the number of acquisitions of the i-th cycle.
func (req Request) acquisitions(i int) int {
	capa := req.capacity()
	if req.TimeMode {
		return capa
	}
	remaining := req.Total - i*capa
	if remaining > capa {
		return capa
	}
	if remaining < 1 {
		return 1
	}
	return remaining
}

// NbData returns the number of bytes read from each FIFO for a cycle of
// acq acquisitions.
func (req Request) NbData(acq int) int {
	return (req.Channels + 1) * acq
}

// Cycle holds the samples read during one FIFO cycle.
type Cycle struct {
	Index        int // cycle number within the acquisition
	Acquisitions int // number of acquisitions in the cycle
	Channels     int // channel count of the request

	HG []uint16 // high-gain samples
	LG []uint16 // low-gain samples

	Raw [4][]byte // FIFO content of sub-addresses 20, 21, 23 and 24
}

// Event returns the high-gain and low-gain samples of the i-th
// acquisition of the cycle.
func (cy Cycle) Event(i int) (hg, lg []uint16) {
	n := cy.Channels + 1
	return cy.HG[i*n : (i+1)*n], cy.LG[i*n : (i+1)*n]
}

// interleave builds the 16-bit samples from the FIFO bytes.
// Sample j is made of byte j of the least significant FIFO and byte j
// of the most significant FIFO.
func interleave(hgLSB, hgMSB, lgLSB, lgMSB []byte) (hg, lg []uint16) {
	hg = make([]uint16, len(hgLSB))
	lg = make([]uint16, len(lgLSB))
	for j := range hg {
		hg[j] = uint16(hgLSB[j]) | uint16(hgMSB[j])<<8
		lg[j] = uint16(lgLSB[j]) | uint16(lgMSB[j])<<8
	}
	return hg, lg
}

// Acquire runs the acquisition described by req and returns the cycles
// in the order they were read.
func (brd *Board) Acquire(ctx context.Context, req Request) ([]Cycle, error) {
	var cycles []Cycle
	err := brd.AcquireFunc(ctx, req, func(cy Cycle) error {
		cycles = append(cycles, cy)
		return nil
	})
	return cycles, err
}

// AcquireFunc runs the acquisition described by req and calls f with
// each cycle, in the order they were read.
// An error returned by f stops the acquisition and is returned as is.
func (brd *Board) AcquireFunc(ctx context.Context, req Request, f func(cy Cycle) error) error {
	const op = "acquire"
	err := req.Validate()
	if err != nil {
		return newError(KindConfiguration, op, err)
	}

	end, err := brd.begin(op)
	if err != nil {
		return err
	}
	defer end()

	n := req.Cycles()
	for i := 0; i < n; i++ {
		cy, err := brd.cycle(ctx, req, i)
		if err != nil {
			return err
		}
		err = f(cy)
		if err != nil {
			return err
		}
	}
	return nil
}

func (brd *Board) cycle(ctx context.Context, req Request, i int) (Cycle, error) {
	const op = "acquire"
	var (
		acq = req.acquisitions(i)
		cy  = Cycle{Index: i, Acquisitions: acq, Channels: req.Channels}
	)

	bits, err := asic.ToBits(int64(acq), 8)
	if err != nil {
		return cy, newError(KindConfiguration, op, err)
	}
	count := uint8(asic.FromBits(bits))

	e := brd.waitReady(ctx, op, count)
	if e != nil {
		return cy, e
	}

	nb := req.NbData(acq)
	for j, sub := range []uint8{
		regs.SUB_FIFO_HG_LSB, regs.SUB_FIFO_HG_MSB,
		regs.SUB_FIFO_LG_LSB, regs.SUB_FIFO_LG_MSB,
	} {
		if e := brd.check(ctx, op); e != nil {
			return cy, e
		}
		cy.Raw[j] = make([]byte, nb)
		brd.read(sub, cy.Raw[j])
	}
	if e := brd.check(ctx, op); e != nil {
		return cy, e
	}
	cy.HG, cy.LG = interleave(cy.Raw[0], cy.Raw[1], cy.Raw[2], cy.Raw[3])

	brd.writeU8(regs.SUB_DAQ_CTRL, regs.DAQ_OFF)
	if e := brd.check(ctx, op); e != nil {
		return cy, e
	}
	return cy, nil
}

// waitReady arms a cycle of count acquisitions and polls the FIFO ready
// flag, re-arming the cycle on each not-ready answer.
func (brd *Board) waitReady(ctx context.Context, op string, count uint8) *Error {
	var (
		deadline = time.Now().Add(brd.cfg.timeout)
		retries  = 0
	)
	for {
		if e := brd.check(ctx, op); e != nil {
			return e
		}
		brd.writeU8(regs.SUB_ACQ_COUNT, count)
		if e := brd.check(ctx, op); e != nil {
			return e
		}
		brd.writeU8(regs.SUB_DAQ_CTRL, regs.DAQ_ON)
		if e := brd.check(ctx, op); e != nil {
			return e
		}
		ready := brd.readU8(regs.SUB_DAQ_READY)
		if e := brd.check(ctx, op); e != nil {
			return e
		}
		if ready == 0 {
			return nil
		}

		retries++
		if retries > brd.cfg.retries || time.Now().After(deadline) {
			// best effort: leave the DAQ disabled.
			brd.writeU8(regs.SUB_DAQ_CTRL, regs.DAQ_OFF)
			return newError(KindAcquisitionTimeout, op, fmt.Errorf(
				"FIFO not ready after %d polls (ready=0x%02x)", retries, ready,
			))
		}

		timer := time.NewTimer(brd.cfg.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return brd.check(ctx, op)
		case <-timer.C:
		}
	}
}

// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package board

import (
	"context"
	"fmt"

	"github.com/go-lpc/citiroc/asic"
	"github.com/go-lpc/citiroc/internal/regs"
)

// State is a step of the slow-control handshake.
type State uint8

const (
	Idle State = iota
	PreparedSelect
	BytesSent
	Shifted
	Stopped
	ChecksumTriggered
	BytesResent
	ReShifted
	ReStopped
	ChecksumRead
	Restored
	Done
	Failed
)

var stateNames = [...]string{
	Idle:              "idle",
	PreparedSelect:    "prepared-select",
	BytesSent:         "bytes-sent",
	Shifted:           "shifted",
	Stopped:           "stopped",
	ChecksumTriggered: "checksum-triggered",
	BytesResent:       "bytes-resent",
	ReShifted:         "re-shifted",
	ReStopped:         "re-stopped",
	ChecksumRead:      "checksum-read",
	Restored:          "restored",
	Done:              "done",
	Failed:            "failed",
}

func (st State) String() string {
	if int(st) < len(stateNames) {
		return stateNames[st]
	}
	return fmt.Sprintf("State(%d)", uint8(st))
}

// errChecksum is the underlying error of a checksum failure.
var errChecksum = fmt.Errorf("slow-control self-test reported a mismatch")

// LoadConfiguration loads the slow-control configuration into the ASIC
// and verifies it with the controller self-test.
//
// The packed configuration is shifted in twice: the controller compares
// the bits shifted out by the second load with the new ones.
// The firmware control words are re-applied afterwards.
//
// LoadConfiguration returns nil only if the configuration was loaded and
// verified. A failed verification returns ErrChecksum and leaves the
// firmware settings restored; a transport failure or a cancelled context
// returns ErrTransport. No retry is attempted: callers may call
// LoadConfiguration again.
func (brd *Board) LoadConfiguration(ctx context.Context, cfg asic.Config) error {
	const op = "load slow-control"
	if !cfg.Valid() {
		return newError(KindConfiguration, op, fmt.Errorf("%w: empty configuration", asic.ErrConfig))
	}
	p := asic.Pack(cfg.Vector())

	end, err := brd.begin(op)
	if err != nil {
		return err
	}
	defer end()

	brd.msg.Printf("loading slow-control configuration...")
	brd.state = Idle
	e := brd.handshake(ctx, op, p)
	if e != nil {
		e.State = brd.state
		brd.state = Failed
		brd.msg.Printf("slow-control handshake failed in state %v: %+v", e.State, e)
		return e
	}
	brd.state = Done
	brd.msg.Printf("slow-control configuration loaded and verified")
	return nil
}

// step runs one register operation of the handshake, moving to state next
// on success.
func (brd *Board) step(ctx context.Context, op string, next State, f func()) *Error {
	if e := brd.check(ctx, op); e != nil {
		return e
	}
	f()
	if e := brd.check(ctx, op); e != nil {
		return e
	}
	brd.state = next
	return nil
}

func (brd *Board) handshake(ctx context.Context, op string, p asic.Payload) *Error {
	var (
		word0 = brd.fw.Word(regs.SUB_WORD0)
		word1 = brd.fw.Word(regs.SUB_WORD1) &^ (regs.O_SELECT_SC | regs.O_SHIFT_LOAD)

		load = func(sent, shifted, stopped State) *Error {
			if e := brd.step(ctx, op, sent, func() { brd.write(regs.SUB_SC_DATA, p[:]) }); e != nil {
				return e
			}
			if e := brd.step(ctx, op, shifted, func() { brd.writeU8(regs.SUB_WORD1, word1|regs.O_SHIFT_LOAD) }); e != nil {
				return e
			}
			return brd.step(ctx, op, stopped, func() { brd.writeU8(regs.SUB_WORD1, word1) })
		}
		sum uint8
	)

	if e := brd.step(ctx, op, PreparedSelect, func() { brd.writeU8(regs.SUB_WORD1, word1) }); e != nil {
		return e
	}

	if e := load(BytesSent, Shifted, Stopped); e != nil {
		return e
	}

	if e := brd.step(ctx, op, ChecksumTriggered, func() { brd.writeU8(regs.SUB_WORD0, word0|regs.O_SELF_TEST) }); e != nil {
		return e
	}

	if e := load(BytesResent, ReShifted, ReStopped); e != nil {
		return e
	}

	if e := brd.step(ctx, op, ChecksumRead, func() { sum = brd.readU8(regs.SUB_SC_CHECK) }); e != nil {
		return e
	}

	if e := brd.step(ctx, op, ChecksumRead, func() { brd.writeU8(regs.SUB_WORD0, word0&^regs.O_SELF_TEST) }); e != nil {
		return e
	}
	if e := brd.applyFirmware(ctx, op); e != nil {
		return e
	}
	brd.state = Restored

	if sum&regs.SC_CHECK_FAIL != 0 {
		return newError(KindChecksum, op, fmt.Errorf("%w (readback=0x%02x)", errChecksum, sum))
	}
	return nil
}

// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package board drives a CITIROC1A front-end board through its controller:
// slow-control loading and verification, firmware settings and FIFO
// acquisition cycles.
//
// A Board is a single session with one controller. All protocol
// operations on a Board are serialized; an operation started while
// another one is in progress fails with ErrProtocolState.
package board // import "github.com/go-lpc/citiroc/board"

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/go-lpc/citiroc/asic"
	"github.com/go-lpc/citiroc/internal/devlock"
	"github.com/go-lpc/citiroc/internal/regs"
	"github.com/go-lpc/citiroc/usb"
)

// Transport is the byte-level link to a board controller.
//
// Write and Read return the number of bytes transferred. A count
// different from len(p) is a failure of the enclosing operation.
type Transport interface {
	Write(sub uint8, p []byte) (int, error)
	Read(sub uint8, p []byte) (int, error)
}

// Board is a session with a CITIROC1A board controller.
type Board struct {
	mu  sync.Mutex
	tr  Transport
	msg *log.Logger
	cfg config

	fw    Firmware
	state State
	lock  *devlock.Lock

	closed bool
	err    error // first transport error of the current operation
	buf    [1]byte
}

type config struct {
	poll    time.Duration // delay between two ready-flag polls
	retries int           // maximum number of not-ready polls per cycle
	timeout time.Duration // maximum duration of a cycle ready-poll
}

func newConfig() config {
	return config{
		poll:    time.Millisecond,
		retries: 1000,
		timeout: 10 * time.Second,
	}
}

// Option configures a Board.
type Option func(*Board)

// WithLogger sets the logger used by the board.
func WithLogger(msg *log.Logger) Option {
	return func(brd *Board) {
		brd.msg = msg
	}
}

// WithFirmware sets the firmware settings applied by the board.
func WithFirmware(fw Firmware) Option {
	return func(brd *Board) {
		brd.fw = fw
	}
}

// WithPollInterval sets the delay between two polls of the FIFO ready flag.
func WithPollInterval(d time.Duration) Option {
	return func(brd *Board) {
		brd.cfg.poll = d
	}
}

// WithMaxRetries sets the maximum number of not-ready answers to the
// FIFO ready-flag poll, per acquisition cycle.
func WithMaxRetries(n int) Option {
	return func(brd *Board) {
		brd.cfg.retries = n
	}
}

// WithReadyTimeout sets the maximum duration of the FIFO ready-flag poll,
// per acquisition cycle.
func WithReadyTimeout(d time.Duration) Option {
	return func(brd *Board) {
		brd.cfg.timeout = d
	}
}

// New creates a new session over the provided transport.
func New(tr Transport, opts ...Option) *Board {
	brd := &Board{
		tr:  tr,
		msg: log.New(os.Stdout, "citiroc: ", 0),
		cfg: newConfig(),
	}
	for _, opt := range opts {
		opt(brd)
	}
	return brd
}

// Open opens the USB link to the board described by cfg and creates a
// new session over it. Only one process may open a given board.
func Open(cfg usb.Config, opts ...Option) (*Board, error) {
	name := cfg.Serial
	if name == "" {
		name = "default"
	}
	lock, err := devlock.Acquire(name)
	if err != nil {
		return nil, fmt.Errorf("board: could not lock board %q: %w", name, err)
	}

	dev, err := usb.Open(cfg)
	if err != nil {
		_ = lock.Release()
		return nil, fmt.Errorf("board: could not open board %q: %w", name, err)
	}

	brd := New(dev, opts...)
	brd.lock = lock
	return brd, nil
}

// Close ends the session and releases the underlying transport.
func (brd *Board) Close() error {
	brd.mu.Lock()
	defer brd.mu.Unlock()

	if brd.closed {
		return nil
	}
	brd.closed = true

	var err error
	if c, ok := brd.tr.(io.Closer); ok {
		e := c.Close()
		if e != nil {
			err = fmt.Errorf("board: could not close transport: %w", e)
		}
	}
	if brd.lock != nil {
		e := brd.lock.Release()
		if e != nil && err == nil {
			err = fmt.Errorf("board: could not release board lock: %w", e)
		}
	}
	return err
}

// State returns the state reached by the last slow-control handshake.
func (brd *Board) State() State {
	brd.mu.Lock()
	defer brd.mu.Unlock()
	return brd.state
}

// Firmware returns the firmware settings of the board.
func (brd *Board) Firmware() Firmware {
	brd.mu.Lock()
	defer brd.mu.Unlock()
	return brd.fw
}

// SetFirmware sets the firmware settings applied by the board.
// The settings are sent to the controller by ApplyFirmwareSettings and
// at the end of LoadConfiguration.
func (brd *Board) SetFirmware(fw Firmware) error {
	if !brd.mu.TryLock() {
		return newError(KindProtocolState, "set firmware", errBusy)
	}
	defer brd.mu.Unlock()
	brd.fw = fw
	return nil
}

var (
	errBusy   = fmt.Errorf("session busy")
	errClosed = fmt.Errorf("session closed")
)

// begin starts a protocol operation.
// The returned function must be called at the end of the operation.
func (brd *Board) begin(op string) (func(), error) {
	if !brd.mu.TryLock() {
		return nil, newError(KindProtocolState, op, errBusy)
	}
	if brd.closed {
		brd.mu.Unlock()
		return nil, newError(KindProtocolState, op, errClosed)
	}
	brd.err = nil
	return brd.mu.Unlock, nil
}

func (brd *Board) write(sub uint8, p []byte) {
	if brd.err != nil {
		return
	}
	n, err := brd.tr.Write(sub, p)
	switch {
	case err != nil:
		brd.err = fmt.Errorf("could not write sub-address %d: %w", sub, err)
	case n != len(p):
		brd.err = fmt.Errorf(
			"could not write sub-address %d (n=%d, want=%d): %w",
			sub, n, len(p), io.ErrShortWrite,
		)
	}
}

func (brd *Board) writeU8(sub uint8, v uint8) {
	brd.buf[0] = v
	brd.write(sub, brd.buf[:])
}

func (brd *Board) read(sub uint8, p []byte) {
	if brd.err != nil {
		return
	}
	n, err := brd.tr.Read(sub, p)
	switch {
	case err != nil:
		brd.err = fmt.Errorf("could not read sub-address %d: %w", sub, err)
	case n != len(p):
		brd.err = fmt.Errorf(
			"could not read sub-address %d (n=%d, want=%d): %w",
			sub, n, len(p), io.ErrUnexpectedEOF,
		)
	}
}

func (brd *Board) readU8(sub uint8) uint8 {
	brd.buf[0] = 0
	brd.read(sub, brd.buf[:])
	return brd.buf[0]
}

// check turns the pending transport or context error into a board error.
func (brd *Board) check(ctx context.Context, op string) *Error {
	if brd.err != nil {
		return newError(KindTransport, op, brd.err)
	}
	if err := ctx.Err(); err != nil {
		brd.err = err
		return newError(KindTransport, op, err)
	}
	return nil
}

// Initialize configures the temperature sensor of the board.
func (brd *Board) Initialize(ctx context.Context) error {
	const op = "initialize board"
	end, err := brd.begin(op)
	if err != nil {
		return err
	}
	defer end()

	brd.msg.Printf("initializing temperature sensor...")
	for _, cmd := range []struct {
		sub uint8
		v   uint8
	}{
		{regs.SUB_TEMP_CFG, regs.TEMP_CFG_INIT},
		{regs.SUB_TEMP_CMD, regs.TEMP_CMD_INIT},
		{regs.SUB_TEMP_CMD, regs.TEMP_CMD_START},
	} {
		if e := brd.check(ctx, op); e != nil {
			return e
		}
		brd.writeU8(cmd.sub, cmd.v)
	}
	if e := brd.check(ctx, op); e != nil {
		return e
	}
	return nil
}

// ApplyFirmwareSettings writes the five firmware control words to the
// controller, without touching the slow-control register.
func (brd *Board) ApplyFirmwareSettings(ctx context.Context) error {
	const op = "apply firmware settings"
	end, err := brd.begin(op)
	if err != nil {
		return err
	}
	defer end()

	if e := brd.applyFirmware(ctx, op); e != nil {
		return e
	}
	return nil
}

func (brd *Board) applyFirmware(ctx context.Context, op string) *Error {
	words := brd.fw.Words()
	for i, sub := range regs.Words {
		if e := brd.check(ctx, op); e != nil {
			return e
		}
		brd.writeU8(sub, words[i])
	}
	return brd.check(ctx, op)
}

// ReadFirmwareWords reads back the five control words from the controller,
// in the order of the sub-addresses 0, 1, 2, 3 and 5.
func (brd *Board) ReadFirmwareWords(ctx context.Context) ([5]uint8, error) {
	const op = "read firmware settings"
	var words [5]uint8

	end, err := brd.begin(op)
	if err != nil {
		return words, err
	}
	defer end()

	for i, sub := range regs.Words {
		if e := brd.check(ctx, op); e != nil {
			return words, e
		}
		words[i] = brd.readU8(sub)
	}
	if e := brd.check(ctx, op); e != nil {
		return words, e
	}
	return words, nil
}

// NewSettings validates raw configuration values read from a
// configuration store. Invalid values are reported as ErrConfiguration.
func NewSettings(fields map[string][]int64, fwflags map[string]int64) (asic.Config, Firmware, error) {
	cfg, err := asic.NewConfig(fields)
	if err != nil {
		return cfg, Firmware{}, newError(KindConfiguration, "validate slow-control", err)
	}
	fw, err := NewFirmware(fwflags)
	if err != nil {
		return cfg, fw, newError(KindConfiguration, "validate firmware", err)
	}
	return cfg, fw, nil
}

// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regs holds the sub-address map of the CITIROC1A board controller.
package regs // import "github.com/go-lpc/citiroc/internal/regs"

// Control words.
const (
	SUB_WORD0 = 0
	SUB_WORD1 = 1
	SUB_WORD2 = 2
	SUB_WORD3 = 3
	SUB_WORD5 = 5
)

// Slow-control.
const (
	SUB_SC_CHECK = 4  // checksum result, bit 0 set on mismatch
	SUB_SC_DATA  = 10 // slow-control burst (143 bytes)
)

// Acquisition.
const (
	SUB_FIFO_HG_LSB = 20
	SUB_FIFO_HG_MSB = 21
	SUB_FIFO_LG_LSB = 23
	SUB_FIFO_LG_MSB = 24

	SUB_ACQ_COUNT = 42 // number of acquisitions per cycle
	SUB_DAQ_CTRL  = 43
	SUB_DAQ_READY = 44 // zero when FIFO data is available
)

// Temperature sensor.
const (
	SUB_TEMP_CMD = 62
	SUB_TEMP_CFG = 63
)

// DAQ commands written to SUB_DAQ_CTRL.
const (
	DAQ_OFF = 0x00
	DAQ_ON  = 0x01
)

// Temperature sensor start-up sequence.
const (
	TEMP_CFG_INIT  = 0x34
	TEMP_CMD_INIT  = 0x03
	TEMP_CMD_START = 0x02
)

// Control word bits owned by the slow-control handshake.
const (
	O_SELF_TEST  = 1 << 7 // word 0: enable the checksum self-test
	O_SELECT_SC  = 1 << 0 // word 1: 0 selects the slow-control register
	O_SHIFT_LOAD = 1 << 1 // word 1: shift the loaded burst into the ASIC
)

// SC_CHECK_FAIL is set in SUB_SC_CHECK when the two loads differ.
const SC_CHECK_FAIL = 1 << 0

// Words lists the sub-addresses of all control words.
var Words = [...]uint8{SUB_WORD0, SUB_WORD1, SUB_WORD2, SUB_WORD3, SUB_WORD5}

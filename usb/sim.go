// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package usb

import (
	"fmt"
	"io"
	"sync"

	"github.com/go-lpc/citiroc/asic"
	"github.com/go-lpc/citiroc/internal/regs"
)

// Op is a sub-address operation seen by the simulator.
type Op struct {
	Write bool
	Sub   uint8
	Data  []byte // written bytes, or number of requested bytes for reads
}

func (op Op) String() string {
	if op.Write {
		return fmt.Sprintf("w(%d, %x)", op.Sub, op.Data)
	}
	return fmt.Sprintf("r(%d, n=%d)", op.Sub, len(op.Data))
}

// Fault replaces the outcome of a simulated operation.
type Fault struct {
	N   int
	Err error
}

// Sim simulates a CITIROC1A board controller.
//
// Sim keeps the control words, shifts slow-control bursts into a
// simulated ASIC register on each rising edge of the shift bit and
// computes the self-test checksum when the self-test bit is set.
// Acquisition cycles are served from a deterministic sample generator.
type Sim struct {
	mu sync.Mutex

	words [6]uint8 // control words, by sub-address
	burst []byte   // last slow-control burst
	reg   asic.Vector
	check uint8
	loads int

	acq    uint8
	daq    bool
	cycles int
	temp   []uint8

	// NotReady is the number of ready-flag polls answered with a
	// not-ready flag before the FIFO is reported ready.
	NotReady int

	// CorruptLoads is the number of upcoming shifts whose first bit is
	// flipped on its way into the ASIC.
	CorruptLoads int

	// Sample generates the high-gain and low-gain values of the j-th
	// sample of a cycle.
	Sample func(cycle, j int) (hg, lg uint16)

	// Fault, when non-nil, is called before each operation.
	// A non-nil returned Fault replaces the outcome of the operation.
	Fault func(op Op) *Fault

	// Ops records all the operations.
	Ops []Op
}

// NewSim returns a new controller simulator.
func NewSim() *Sim {
	return &Sim{Sample: DefaultSample}
}

// DefaultSample is the default sample generator of the simulator.
func DefaultSample(cycle, j int) (hg, lg uint16) {
	hg = uint16(cycle<<12 | j&0xfff)
	lg = ^hg
	return hg, lg
}

// Write implements a write to a sub-address of the controller.
func (sim *Sim) Write(sub uint8, p []byte) (int, error) {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	op := Op{Write: true, Sub: sub, Data: append([]byte(nil), p...)}
	sim.Ops = append(sim.Ops, op)
	if sim.Fault != nil {
		if f := sim.Fault(op); f != nil {
			return f.N, f.Err
		}
	}

	switch sub {
	case regs.SUB_WORD0, regs.SUB_WORD2, regs.SUB_WORD3, regs.SUB_WORD5:
		if len(p) != 1 {
			return 0, fmt.Errorf("usb-sim: invalid control word size %d", len(p))
		}
		sim.words[sub] = p[0]

	case regs.SUB_WORD1:
		if len(p) != 1 {
			return 0, fmt.Errorf("usb-sim: invalid control word size %d", len(p))
		}
		old := sim.words[sub]
		sim.words[sub] = p[0]
		if old&regs.O_SHIFT_LOAD == 0 && p[0]&regs.O_SHIFT_LOAD != 0 {
			sim.shift()
		}

	case regs.SUB_SC_DATA:
		sim.burst = append(sim.burst[:0], p...)

	case regs.SUB_ACQ_COUNT:
		if len(p) != 1 {
			return 0, fmt.Errorf("usb-sim: invalid acquisition count size %d", len(p))
		}
		sim.acq = p[0]

	case regs.SUB_DAQ_CTRL:
		if len(p) != 1 {
			return 0, fmt.Errorf("usb-sim: invalid DAQ command size %d", len(p))
		}
		switch p[0] {
		case regs.DAQ_ON:
			sim.daq = true
		case regs.DAQ_OFF:
			if sim.daq {
				sim.cycles++
			}
			sim.daq = false
		default:
			return 0, fmt.Errorf("usb-sim: invalid DAQ command 0x%x", p[0])
		}

	case regs.SUB_TEMP_CFG, regs.SUB_TEMP_CMD:
		sim.temp = append(sim.temp, p...)

	default:
		return 0, fmt.Errorf("usb-sim: sub-address %d is not writable", sub)
	}

	return len(p), nil
}

// shift loads the last burst into the ASIC register.
func (sim *Sim) shift() {
	var p asic.Payload
	copy(p[:], sim.burst)
	out := sim.reg
	sim.reg = asic.Unpack(p)
	if sim.CorruptLoads > 0 {
		sim.CorruptLoads--
		sim.reg[0] ^= 1
	}
	sim.loads++

	if sim.words[regs.SUB_WORD0]&regs.O_SELF_TEST == 0 {
		return
	}
	sim.check = 0
	if len(sim.burst) != asic.NBytes || out != sim.reg {
		sim.check = regs.SC_CHECK_FAIL
	}
}

// Read implements a read from a sub-address of the controller.
func (sim *Sim) Read(sub uint8, p []byte) (int, error) {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	op := Op{Sub: sub, Data: make([]byte, len(p))}
	sim.Ops = append(sim.Ops, op)
	if sim.Fault != nil {
		if f := sim.Fault(op); f != nil {
			return f.N, f.Err
		}
	}

	switch sub {
	case regs.SUB_WORD0, regs.SUB_WORD1, regs.SUB_WORD2, regs.SUB_WORD3, regs.SUB_WORD5:
		return sim.fill(p, sim.words[sub])

	case regs.SUB_SC_CHECK:
		return sim.fill(p, sim.check)

	case regs.SUB_DAQ_READY:
		if !sim.daq || sim.NotReady > 0 {
			if sim.NotReady > 0 {
				sim.NotReady--
			}
			return sim.fill(p, 1)
		}
		return sim.fill(p, 0)

	case regs.SUB_FIFO_HG_LSB, regs.SUB_FIFO_HG_MSB, regs.SUB_FIFO_LG_LSB, regs.SUB_FIFO_LG_MSB:
		if !sim.daq {
			return 0, io.EOF
		}
		for j := range p {
			hg, lg := sim.Sample(sim.cycles, j)
			switch sub {
			case regs.SUB_FIFO_HG_LSB:
				p[j] = uint8(hg)
			case regs.SUB_FIFO_HG_MSB:
				p[j] = uint8(hg >> 8)
			case regs.SUB_FIFO_LG_LSB:
				p[j] = uint8(lg)
			case regs.SUB_FIFO_LG_MSB:
				p[j] = uint8(lg >> 8)
			}
		}
		return len(p), nil
	}

	return 0, fmt.Errorf("usb-sim: sub-address %d is not readable", sub)
}

func (sim *Sim) fill(p []byte, v uint8) (int, error) {
	for i := range p {
		p[i] = v
	}
	return len(p), nil
}

// Close implements io.Closer.
func (sim *Sim) Close() error { return nil }

// Register returns the content of the simulated ASIC register.
func (sim *Sim) Register() asic.Vector {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return sim.reg
}

// Word returns the current value of the control word at sub-address sub.
func (sim *Sim) Word(sub uint8) uint8 {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return sim.words[sub]
}

// Loads returns the number of bursts shifted into the ASIC.
func (sim *Sim) Loads() int {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return sim.loads
}

// Temperature returns the bytes written to the temperature sensor.
func (sim *Sim) Temperature() []uint8 {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return append([]uint8(nil), sim.temp...)
}

// DAQ reports whether the acquisition is enabled and the last
// acquisition count.
func (sim *Sim) DAQ() (on bool, acq uint8) {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return sim.daq, sim.acq
}

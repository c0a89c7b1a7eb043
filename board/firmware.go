// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package board

import (
	"fmt"
	"sort"

	"github.com/go-lpc/citiroc/asic"
	"github.com/go-lpc/citiroc/internal/regs"
)

// Flag describes a firmware setting stored in a controller control word.
type Flag struct {
	Name  string
	Word  uint8 // sub-address of the control word
	Bit   uint8 // position of the least significant bit
	Width uint8
}

func (f Flag) max() int64  { return 1<<f.Width - 1 }
func (f Flag) mask() uint8 { return uint8(f.max()) << f.Bit }

var flags = []Flag{
	{Name: "powerOn", Word: regs.SUB_WORD0, Bit: 0, Width: 1},
	{Name: "powerPulsing", Word: regs.SUB_WORD0, Bit: 1, Width: 1},
	{Name: "resetPreamp", Word: regs.SUB_WORD0, Bit: 2, Width: 1},
	{Name: "resetPSC", Word: regs.SUB_WORD0, Bit: 3, Width: 1},

	{Name: "selectMode", Word: regs.SUB_WORD1, Bit: 0, Width: 1},
	{Name: "readoutSpeed", Word: regs.SUB_WORD1, Bit: 2, Width: 2},
	{Name: "holdSelect", Word: regs.SUB_WORD1, Bit: 4, Width: 1},
	{Name: "polarity", Word: regs.SUB_WORD1, Bit: 5, Width: 1},

	{Name: "holdDelay", Word: regs.SUB_WORD2, Bit: 0, Width: 8},

	{Name: "triggerSelect", Word: regs.SUB_WORD3, Bit: 0, Width: 2},
	{Name: "enableExtTrigger", Word: regs.SUB_WORD3, Bit: 2, Width: 1},
	{Name: "enableValEvt", Word: regs.SUB_WORD3, Bit: 3, Width: 1},
	{Name: "enableRazChn", Word: regs.SUB_WORD3, Bit: 4, Width: 1},

	{Name: "timeAcquisition", Word: regs.SUB_WORD5, Bit: 0, Width: 1},
	{Name: "enableHoldExt", Word: regs.SUB_WORD5, Bit: 1, Width: 1},
	{Name: "enableOr32", Word: regs.SUB_WORD5, Bit: 2, Width: 1},
}

// Flags returns the list of firmware flags.
func Flags() []Flag {
	return append([]Flag(nil), flags...)
}

// Firmware holds the firmware settings of a board, one value per flag.
type Firmware struct {
	vals []int64 // indexed like flags
}

// NewFirmware creates firmware settings from a set of named flag values.
// All flags must be present and fit in their width.
func NewFirmware(raw map[string]int64) (Firmware, error) {
	names := make(map[string]int, len(flags))
	for i, f := range flags {
		names[f.Name] = i
	}
	for name := range raw {
		if _, ok := names[name]; !ok {
			return Firmware{}, fmt.Errorf("%w: unknown firmware flag %q", asic.ErrConfig, name)
		}
	}

	fw := Firmware{vals: make([]int64, len(flags))}
	for i, f := range flags {
		v, ok := raw[f.Name]
		if !ok {
			return Firmware{}, fmt.Errorf("%w: missing firmware flag %q", asic.ErrConfig, f.Name)
		}
		if v < 0 || v > f.max() {
			return Firmware{}, fmt.Errorf(
				"%w: firmware flag %q: value %d does not fit in %d bits",
				asic.ErrConfig, f.Name, v, f.Width,
			)
		}
		fw.vals[i] = v
	}
	return fw, nil
}

// Get returns the value of the named flag.
func (fw Firmware) Get(name string) (int64, bool) {
	for i, f := range flags {
		if f.Name != name {
			continue
		}
		if fw.vals == nil {
			return 0, true
		}
		return fw.vals[i], true
	}
	return 0, false
}

// Values returns a copy of all the flag values, keyed by flag name.
func (fw Firmware) Values() map[string]int64 {
	o := make(map[string]int64, len(flags))
	for i, f := range flags {
		var v int64
		if fw.vals != nil {
			v = fw.vals[i]
		}
		o[f.Name] = v
	}
	return o
}

// Word returns the value of the control word at sub-address sub.
func (fw Firmware) Word(sub uint8) uint8 {
	var w uint8
	if fw.vals == nil {
		return w
	}
	for i, f := range flags {
		if f.Word != sub {
			continue
		}
		w &^= f.mask()
		w |= uint8(fw.vals[i]) << f.Bit & f.mask()
	}
	return w
}

// Words returns the five control words, in the order of regs.Words.
func (fw Firmware) Words() [len(regs.Words)]uint8 {
	var o [len(regs.Words)]uint8
	for i, sub := range regs.Words {
		o[i] = fw.Word(sub)
	}
	return o
}

// FlagNames returns the sorted list of firmware flag names.
func FlagNames() []string {
	o := make([]string, len(flags))
	for i, f := range flags {
		o[i] = f.Name
	}
	sort.Strings(o)
	return o
}

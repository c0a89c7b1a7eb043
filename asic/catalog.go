// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asic

import (
	"fmt"
	"sort"
)

// Field describes a named configuration field of the slow-control register.
//
// A field holds Count values of Width bits each. Value i is stored
// MSB-first at bits [Offset+i*Stride, Offset+i*Stride+Width).
type Field struct {
	Name   string
	Offset int
	Width  int
	Count  int
	Stride int
}

// Max returns the largest value the field can hold.
func (f Field) Max() int64 { return 1<<f.Width - 1 }

func (f Field) pos(i int) int { return f.Offset + i*f.Stride }

func bit(name string, offset int) Field {
	return Field{Name: name, Offset: offset, Width: 1, Count: 1, Stride: 1}
}

func word(name string, offset, width int) Field {
	return Field{Name: name, Offset: offset, Width: width, Count: 1, Stride: width}
}

func bits(offset int, names ...string) []Field {
	o := make([]Field, len(names))
	for i, name := range names {
		o[i] = bit(name, offset+i)
	}
	return o
}

// preamplifier group: 15 bits per channel.
const paStride = 15

var catalog = concat(
	[]Field{
		{Name: "chn", Offset: 0, Width: 4, Count: NChans, Stride: 4},
		{Name: "calibDacQ", Offset: 128, Width: 4, Count: NChans, Stride: 4},
	},
	bits(256,
		"enDiscri", "ppDiscri", "latchDiscri",
		"enDiscriT", "ppDiscriT",
		"enCalibDacQ", "ppCalibDacQ",
		"enCalibDacT", "ppCalibDacT",
	),
	[]Field{
		{Name: "mask", Offset: 265, Width: 1, Count: NChans, Stride: 1},
	},
	bits(297,
		"ppThHg", "enThHg", "ppThLg", "enThLg",
		"biasSca", "ppPdetHg", "enPdetHg", "ppPdetLg", "enPdetLg",
		"scaOrPdHg", "scaOrPdLg", "bypassPd", "selTrigExtPd",
		"ppFshBuffer", "enFsh", "ppFsh", "ppSshLg", "enSshLg",
	),
	[]Field{
		word("shapingTimeLg", 315, 3),
		bit("ppSshHg", 318),
		bit("enSshHg", 319),
		word("shapingTimeHg", 320, 3),
	},
	bits(323,
		"paLgBias", "ppPaHg", "enPaHg", "ppPaLg", "enPaLg",
		"fshOnLg", "enInputDac", "dacRef",
	),
	[]Field{
		{Name: "inputDac", Offset: 331, Width: 8, Count: NChans, Stride: 9},
		{Name: "cmdInputDac", Offset: 339, Width: 1, Count: NChans, Stride: 9},

		{Name: "paHgGain", Offset: 619, Width: 6, Count: NChans, Stride: paStride},
		{Name: "paLgGain", Offset: 625, Width: 6, Count: NChans, Stride: paStride},
		{Name: "CtestHg", Offset: 631, Width: 1, Count: NChans, Stride: paStride},
		{Name: "CtestLg", Offset: 632, Width: 1, Count: NChans, Stride: paStride},
		{Name: "enPa", Offset: 633, Width: 1, Count: NChans, Stride: paStride},
	},
	bits(1099,
		"ppTemp", "enTemp", "ppBg", "enBg",
		"enThresholdDac1", "ppThresholdDac1",
		"enThresholdDac2", "ppThresholdDac2",
	),
	[]Field{
		word("threshold1", 1107, 10),
		word("threshold2", 1117, 10),
	},
	bits(1127,
		"enHgOtaQ", "ppHgOtaQ", "enLgOtaQ", "ppLgOtaQ",
		"enProbeOtaQ", "ppProbeOtaQ", "testBitOtaQ",
		"enValEvtReceiver", "ppValEvtReceiver",
		"enRazChnReceiver", "ppRazChnReceiver",
		"enDigitalMuxOutput", "enOr32", "enNor32Oc",
		"triggerPolarity", "enNor32TOc", "enTriggersOutput",
	),
)

var byName = make(map[string]int, len(catalog))

func init() {
	err := checkCatalog(catalog)
	if err != nil {
		panic(err)
	}
	for i, f := range catalog {
		byName[f.Name] = i
	}
}

func concat(vs ...[]Field) []Field {
	var o []Field
	for _, v := range vs {
		o = append(o, v...)
	}
	return o
}

// Catalog returns the list of fields of the slow-control register,
// sorted by offset.
func Catalog() []Field {
	o := make([]Field, len(catalog))
	copy(o, catalog)
	return o
}

// Lookup returns the field named name.
func Lookup(name string) (Field, bool) {
	i, ok := byName[name]
	if !ok {
		return Field{}, false
	}
	return catalog[i], true
}

// checkCatalog makes sure no two fields share a bit of the register,
// that every field fits inside it, and that all bits are claimed.
func checkCatalog(fields []Field) error {
	var (
		owner [NBits]int16
		names = make(map[string]struct{}, len(fields))
	)
	for i := range owner {
		owner[i] = -1
	}

	for i, f := range fields {
		if _, dup := names[f.Name]; dup {
			return fmt.Errorf("asic: duplicate field %q", f.Name)
		}
		names[f.Name] = struct{}{}

		switch {
		case f.Width < 1 || f.Width > maxWidth:
			return fmt.Errorf("asic: field %q: invalid width %d", f.Name, f.Width)
		case f.Count < 1:
			return fmt.Errorf("asic: field %q: invalid count %d", f.Name, f.Count)
		case f.Count > 1 && f.Stride < f.Width:
			return fmt.Errorf("asic: field %q: stride %d smaller than width %d", f.Name, f.Stride, f.Width)
		case f.Offset < 0 || f.pos(f.Count-1)+f.Width > NBits:
			return fmt.Errorf("asic: field %q: out of register bounds", f.Name)
		}

		for j := 0; j < f.Count; j++ {
			beg := f.pos(j)
			for k := beg; k < beg+f.Width; k++ {
				if o := owner[k]; o >= 0 {
					return fmt.Errorf(
						"asic: field %q[%d] overlaps field %q at bit %d",
						f.Name, j, fields[o].Name, k,
					)
				}
				owner[k] = int16(i)
			}
		}
	}

	for k, o := range owner {
		if o < 0 {
			return fmt.Errorf("asic: bit %d not claimed by any field", k)
		}
	}

	if !sort.SliceIsSorted(fields, func(i, j int) bool {
		return fields[i].Offset < fields[j].Offset
	}) {
		return fmt.Errorf("asic: fields not sorted by offset")
	}

	return nil
}

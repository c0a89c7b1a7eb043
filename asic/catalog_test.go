// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asic

import (
	"strings"
	"testing"
)

func TestCatalog(t *testing.T) {
	fields := Catalog()
	if got, want := len(fields), len(catalog); got != want {
		t.Fatalf("invalid catalog size: got=%d, want=%d", got, want)
	}

	nbits := 0
	for _, f := range fields {
		nbits += f.Width * f.Count
	}
	if got, want := nbits, NBits; got != want {
		t.Fatalf("invalid number of bits: got=%d, want=%d", got, want)
	}

	for _, tc := range []Field{
		{Name: "chn", Offset: 0, Width: 4, Count: 32, Stride: 4},
		{Name: "calibDacQ", Offset: 128, Width: 4, Count: 32, Stride: 4},
		{Name: "enDiscri", Offset: 256, Width: 1, Count: 1, Stride: 1},
		{Name: "ppCalibDacT", Offset: 264, Width: 1, Count: 1, Stride: 1},
		{Name: "mask", Offset: 265, Width: 1, Count: 32, Stride: 1},
		{Name: "ppThHg", Offset: 297, Width: 1, Count: 1, Stride: 1},
		{Name: "enSshLg", Offset: 314, Width: 1, Count: 1, Stride: 1},
		{Name: "shapingTimeLg", Offset: 315, Width: 3, Count: 1, Stride: 3},
		{Name: "ppSshHg", Offset: 318, Width: 1, Count: 1, Stride: 1},
		{Name: "enSshHg", Offset: 319, Width: 1, Count: 1, Stride: 1},
		{Name: "shapingTimeHg", Offset: 320, Width: 3, Count: 1, Stride: 3},
		{Name: "paLgBias", Offset: 323, Width: 1, Count: 1, Stride: 1},
		{Name: "dacRef", Offset: 330, Width: 1, Count: 1, Stride: 1},
		{Name: "inputDac", Offset: 331, Width: 8, Count: 32, Stride: 9},
		{Name: "cmdInputDac", Offset: 339, Width: 1, Count: 32, Stride: 9},
		{Name: "paHgGain", Offset: 619, Width: 6, Count: 32, Stride: 15},
		{Name: "paLgGain", Offset: 625, Width: 6, Count: 32, Stride: 15},
		{Name: "CtestHg", Offset: 631, Width: 1, Count: 32, Stride: 15},
		{Name: "CtestLg", Offset: 632, Width: 1, Count: 32, Stride: 15},
		{Name: "enPa", Offset: 633, Width: 1, Count: 32, Stride: 15},
		{Name: "ppTemp", Offset: 1099, Width: 1, Count: 1, Stride: 1},
		{Name: "ppThresholdDac2", Offset: 1106, Width: 1, Count: 1, Stride: 1},
		{Name: "threshold1", Offset: 1107, Width: 10, Count: 1, Stride: 10},
		{Name: "threshold2", Offset: 1117, Width: 10, Count: 1, Stride: 10},
		{Name: "enHgOtaQ", Offset: 1127, Width: 1, Count: 1, Stride: 1},
		{Name: "triggerPolarity", Offset: 1141, Width: 1, Count: 1, Stride: 1},
		{Name: "enTriggersOutput", Offset: 1143, Width: 1, Count: 1, Stride: 1},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			got, ok := Lookup(tc.Name)
			if !ok {
				t.Fatalf("could not find field %q", tc.Name)
			}
			if got != tc {
				t.Fatalf("invalid field:\ngot= %+v\nwant=%+v", got, tc)
			}
		})
	}

	if _, ok := Lookup("not-there"); ok {
		t.Fatalf("expected unknown field to be missing")
	}
}

func TestCheckCatalog(t *testing.T) {
	full := func(fs ...Field) []Field {
		o := append([]Field(nil), fs...)
		last := fs[len(fs)-1]
		end := last.pos(last.Count-1) + last.Width
		if end < NBits {
			o = append(o, Field{Name: "pad", Offset: end, Width: 1, Count: NBits - end, Stride: 1})
		}
		return o
	}

	for _, tc := range []struct {
		name   string
		fields []Field
		err    string
	}{
		{
			name:   "valid",
			fields: full(word("a", 0, 4), word("b", 4, 4)),
		},
		{
			name:   "overlap",
			fields: full(word("a", 0, 4), word("b", 3, 4)),
			err:    `asic: field "b"[0] overlaps field "a" at bit 3`,
		},
		{
			name:   "overlap-stride",
			fields: full(Field{Name: "a", Offset: 0, Width: 4, Count: 2, Stride: 3}),
			err:    "stride 3 smaller than width 4",
		},
		{
			name:   "duplicate",
			fields: full(word("a", 0, 4), word("a", 4, 4)),
			err:    `asic: duplicate field "a"`,
		},
		{
			name:   "width",
			fields: full(word("a", 0, 33)),
			err:    "invalid width 33",
		},
		{
			name:   "bounds",
			fields: []Field{word("a", 1140, 8)},
			err:    "out of register bounds",
		},
		{
			name:   "gap",
			fields: full(word("a", 0, 4), word("b", 5, 4)),
			err:    "asic: bit 4 not claimed by any field",
		},
		{
			name:   "unsorted",
			fields: []Field{
				word("b", 4, 4),
				word("a", 0, 4),
				{Name: "pad", Offset: 8, Width: 1, Count: NBits - 8, Stride: 1},
			},
			err:    "asic: fields not sorted by offset",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := checkCatalog(tc.fields)
			switch {
			case err == nil && tc.err == "":
				// ok
			case err == nil && tc.err != "":
				t.Fatalf("expected an error (%s)", tc.err)
			case err != nil && tc.err == "":
				t.Fatalf("could not check catalog: %+v", err)
			case !strings.Contains(err.Error(), tc.err):
				t.Fatalf("invalid error:\ngot= %v\nwant=%v", err, tc.err)
			}
		})
	}
}

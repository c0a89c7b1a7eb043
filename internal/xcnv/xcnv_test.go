// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xcnv

import (
	"bytes"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/go-lpc/citiroc/board"
	"github.com/go-lpc/citiroc/internal/cformat"
	"go-hep.org/x/hep/lcio"
)

func newCycle(idx, acq, chn int) board.Cycle {
	n := (chn + 1) * acq
	cy := board.Cycle{
		Index:        idx,
		Acquisitions: acq,
		Channels:     chn,
		HG:           make([]uint16, n),
		LG:           make([]uint16, n),
	}
	for i := range cy.HG {
		cy.HG[i] = uint16(idx<<12 | i)
		cy.LG[i] = ^cy.HG[i]
	}
	return cy
}

func TestRaw2LCIO(t *testing.T) {
	tmp := t.TempDir()

	for _, tc := range []struct {
		name   string
		run    uint32
		cycles []board.Cycle
	}{
		{
			name: "run-063",
			run:  63,
			cycles: []board.Cycle{
				newCycle(0, 100, 32),
				newCycle(1, 50, 32),
			},
		},
		{
			name: "single-channel",
			run:  64,
			cycles: []board.Cycle{
				newCycle(0, 3, 0),
			},
		},
		{
			name: "no-cycles",
			run:  65,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			msg := log.New(io.Discard, "", 0)

			var raw bytes.Buffer
			enc := cformat.NewEncoder(&raw)
			if err := enc.WriteHeader(tc.run); err != nil {
				t.Fatalf("could not write raw header: %+v", err)
			}
			for _, cy := range tc.cycles {
				if err := enc.Encode(cy); err != nil {
					t.Fatalf("could not encode cycle: %+v", err)
				}
			}
			if err := enc.Close(); err != nil {
				t.Fatalf("could not close raw stream: %+v", err)
			}

			fname := filepath.Join(tmp, tc.name+".lcio")
			lw, err := lcio.Create(fname)
			if err != nil {
				t.Fatalf("could not create LCIO file: %+v", err)
			}
			defer lw.Close()

			err = Raw2LCIO(lw, cformat.NewDecoder(bytes.NewReader(raw.Bytes())), 1, msg)
			if err != nil {
				t.Fatalf("could not convert to LCIO: %+v", err)
			}
			err = lw.Close()
			if err != nil {
				t.Fatalf("could not close LCIO file: %+v", err)
			}

			lr, err := lcio.Open(fname)
			if err != nil {
				t.Fatalf("could not open LCIO file: %+v", err)
			}
			defer lr.Close()

			var out bytes.Buffer
			err = LCIO2Raw(cformat.NewEncoder(&out), lr, 1, msg)
			if err != nil {
				t.Fatalf("could not convert to raw: %+v", err)
			}

			if got, want := out.Bytes(), raw.Bytes(); !bytes.Equal(got, want) {
				dec := cformat.NewDecoder(bytes.NewReader(got))
				run, err := dec.ReadHeader()
				if err != nil {
					t.Fatalf("could not read raw header: %+v", err)
				}
				if run != tc.run {
					t.Fatalf("invalid run number: got=%d, want=%d", run, tc.run)
				}
				var cycles []board.Cycle
				for {
					var cy board.Cycle
					err := dec.Decode(&cy)
					if errors.Is(err, io.EOF) {
						break
					}
					if err != nil {
						t.Fatalf("could not decode cycle: %+v", err)
					}
					cycles = append(cycles, cy)
				}
				if !reflect.DeepEqual(cycles, tc.cycles) {
					t.Fatalf("round-trip failed")
				}
				t.Fatalf("round-trip failed: raw streams differ")
			}
		})
	}
}

func TestCycleFromErrors(t *testing.T) {
	hg, lg := genericObjects(newCycle(0, 2, 1))
	short := &lcio.GenericObject{Data: []lcio.GenericObjectData{{I32s: []int32{1}}}}

	for _, tc := range []struct {
		name string
		evt  func() *lcio.Event
	}{
		{
			name: "no-channels",
			evt: func() *lcio.Event {
				return &lcio.Event{}
			},
		},
		{
			name: "no-hg",
			evt: func() *lcio.Event {
				evt := &lcio.Event{Params: lcio.Params{Ints: map[string][]int32{"Channels": {1}}}}
				evt.Add(lgName, lg)
				return evt
			},
		},
		{
			name: "no-lg",
			evt: func() *lcio.Event {
				evt := &lcio.Event{Params: lcio.Params{Ints: map[string][]int32{"Channels": {1}}}}
				evt.Add(hgName, hg)
				return evt
			},
		},
		{
			name: "mismatch",
			evt: func() *lcio.Event {
				evt := &lcio.Event{Params: lcio.Params{Ints: map[string][]int32{"Channels": {1}}}}
				evt.Add(hgName, hg)
				evt.Add(lgName, short)
				return evt
			},
		},
		{
			name: "samples",
			evt: func() *lcio.Event {
				evt := &lcio.Event{Params: lcio.Params{Ints: map[string][]int32{"Channels": {4}}}}
				evt.Add(hgName, hg)
				evt.Add(lgName, lg)
				return evt
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := cycleFrom(tc.evt())
			if err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestRaw2LCIOInvalid(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "bad.lcio")
	lw, err := lcio.Create(fname)
	if err != nil {
		t.Fatalf("could not create LCIO file: %+v", err)
	}
	defer lw.Close()

	msg := log.New(os.Stderr, "", 0)
	err = Raw2LCIO(lw, cformat.NewDecoder(bytes.NewReader([]byte{0xff})), 1, msg)
	if err == nil {
		t.Fatalf("expected an error")
	}
}

// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"compress/flate"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-lpc/citiroc/board"
	"github.com/go-lpc/citiroc/internal/cformat"
	"go-hep.org/x/hep/lcio"
)

func TestCITIROC2LCIO(t *testing.T) {
	tmp := t.TempDir()

	fname := filepath.Join(tmp, "citiroc_000063.raw")
	f, err := os.Create(fname)
	if err != nil {
		t.Fatalf("could not create raw file: %+v", err)
	}
	defer f.Close()

	enc := cformat.NewEncoder(f)
	err = enc.WriteHeader(63)
	if err != nil {
		t.Fatalf("could not write raw header: %+v", err)
	}
	for i := 0; i < 3; i++ {
		cy := board.Cycle{
			Index:        i,
			Acquisitions: 2,
			Channels:     3,
			HG:           make([]uint16, 8),
			LG:           make([]uint16, 8),
		}
		for j := range cy.HG {
			cy.HG[j] = uint16(i*100 + j)
			cy.LG[j] = uint16(i*1000 + j)
		}
		err = enc.Encode(cy)
		if err != nil {
			t.Fatalf("could not encode cycle: %+v", err)
		}
	}
	err = enc.Close()
	if err != nil {
		t.Fatalf("could not close raw stream: %+v", err)
	}
	err = f.Close()
	if err != nil {
		t.Fatalf("could not close raw file: %+v", err)
	}

	oname := fname + ".lcio"
	err = process(oname, flate.DefaultCompression, fname, 1)
	if err != nil {
		t.Fatalf("could not convert CITIROC file: %+v", err)
	}

	r, err := lcio.Open(oname)
	if err != nil {
		t.Fatalf("could not open LCIO file: %+v", err)
	}
	defer r.Close()

	n := 0
	for r.Next() {
		evt := r.Event()
		if got, want := evt.RunNumber, int32(63); got != want {
			t.Fatalf("invalid run number: got=%d, want=%d", got, want)
		}
		hg := evt.Get("CITIROC_HG").(*lcio.GenericObject)
		if got, want := len(hg.Data), 2; got != want {
			t.Fatalf("invalid number of acquisitions: got=%d, want=%d", got, want)
		}
		if got, want := hg.Data[1].I32s[0], int32(n*100+4); got != want {
			t.Fatalf("invalid sample: got=%d, want=%d", got, want)
		}
		n++
	}
	if got, want := n, 3; got != want {
		t.Fatalf("invalid number of events: got=%d, want=%d", got, want)
	}

	err = process(oname, flate.DefaultCompression, filepath.Join(tmp, "not-there.raw"), 1)
	if err == nil {
		t.Fatalf("expected an error")
	}
}

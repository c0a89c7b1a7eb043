// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xcnv

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/go-lpc/citiroc/asic"
	"github.com/go-lpc/citiroc/board"
	"github.com/go-lpc/citiroc/internal/cformat"
	"go-hep.org/x/hep/lcio"
)

// Raw2LCIO converts the raw data stream read by dec into LCIO events
// written to w.
func Raw2LCIO(w *lcio.Writer, dec *cformat.Decoder, freq int, msg *log.Logger) error {
	if freq <= 0 {
		freq = 1
	}

	run, err := dec.ReadHeader()
	if err != nil {
		return fmt.Errorf("could not read raw header: %w", err)
	}

	err = w.WriteRunHeader(&lcio.RunHeader{
		RunNumber: int32(run),
		Detector:  detector,
		Params: lcio.Params{
			Ints: map[string][]int32{
				"Channels": {int32(asic.NChans)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("could not write run header: %w", err)
	}

loop:
	for i := 0; ; i++ {
		if i%freq == 0 {
			msg.Printf("processing cycle %d...", i)
		}
		var cy board.Cycle
		err := dec.Decode(&cy)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break loop
			}
			return fmt.Errorf("could not decode raw cycle: %w", err)
		}

		evt := lcio.Event{
			RunNumber:   int32(run),
			EventNumber: int32(cy.Index),
			Detector:    detector,
			Params: lcio.Params{
				Ints: map[string][]int32{
					"Acquisitions": {int32(cy.Acquisitions)},
					"Channels":     {int32(cy.Channels)},
				},
			},
		}
		hg, lg := genericObjects(cy)
		evt.Add(hgName, hg)
		evt.Add(lgName, lg)

		err = w.WriteEvent(&evt)
		if err != nil {
			return fmt.Errorf("could not write LCIO event for cycle %d: %w", cy.Index, err)
		}
	}

	return nil
}

func genericObjects(cy board.Cycle) (hg, lg *lcio.GenericObject) {
	hg = &lcio.GenericObject{Data: make([]lcio.GenericObjectData, cy.Acquisitions)}
	lg = &lcio.GenericObject{Data: make([]lcio.GenericObjectData, cy.Acquisitions)}
	for i := 0; i < cy.Acquisitions; i++ {
		h, l := cy.Event(i)
		hg.Data[i].I32s = i32sFrom(h)
		lg.Data[i].I32s = i32sFrom(l)
	}
	return hg, lg
}

func i32sFrom(vs []uint16) []int32 {
	o := make([]int32, len(vs))
	for i, v := range vs {
		o[i] = int32(v)
	}
	return o
}

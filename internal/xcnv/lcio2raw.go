// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xcnv

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/go-lpc/citiroc/board"
	"github.com/go-lpc/citiroc/internal/cformat"
	"go-hep.org/x/hep/lcio"
)

// LCIO2Raw converts the LCIO events read from r into a raw data stream
// written with enc.
func LCIO2Raw(enc *cformat.Encoder, r *lcio.Reader, freq int, msg *log.Logger) error {
	if freq <= 0 {
		freq = 1
	}

	var (
		i   = 0
		run = int32(-1)
	)
	for r.Next() {
		if i%freq == 0 {
			msg.Printf("processing evt %d...", i)
		}
		evt := r.Event()
		if run < 0 {
			run = evt.RunNumber
			err := enc.WriteHeader(uint32(run))
			if err != nil {
				return fmt.Errorf("could not write raw header: %w", err)
			}
		}

		cy, err := cycleFrom(&evt)
		if err != nil {
			return fmt.Errorf("could not convert event %d: %w", evt.EventNumber, err)
		}

		err = enc.Encode(cy)
		if err != nil {
			return fmt.Errorf("could not encode cycle %d: %w", cy.Index, err)
		}
		i++
	}

	if err := r.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("could not read LCIO events: %w", err)
	}

	if run < 0 {
		err := enc.WriteHeader(uint32(r.RunHeader().RunNumber))
		if err != nil {
			return fmt.Errorf("could not write raw header: %w", err)
		}
	}

	err := enc.Close()
	if err != nil {
		return fmt.Errorf("could not close raw stream: %w", err)
	}
	return nil
}

func cycleFrom(evt *lcio.Event) (board.Cycle, error) {
	var cy board.Cycle

	chans := evt.Params.Ints["Channels"]
	if len(chans) != 1 {
		return cy, fmt.Errorf("missing channels parameter")
	}

	hg, ok := evt.Get(hgName).(*lcio.GenericObject)
	if !ok || hg == nil {
		return cy, fmt.Errorf("missing %s collection", hgName)
	}
	lg, ok := evt.Get(lgName).(*lcio.GenericObject)
	if !ok || lg == nil {
		return cy, fmt.Errorf("missing %s collection", lgName)
	}
	if len(hg.Data) != len(lg.Data) {
		return cy, fmt.Errorf(
			"inconsistent number of acquisitions (hg=%d, lg=%d)",
			len(hg.Data), len(lg.Data),
		)
	}

	cy = board.Cycle{
		Index:        int(evt.EventNumber),
		Acquisitions: len(hg.Data),
		Channels:     int(chans[0]),
	}
	n := cy.Channels + 1
	cy.HG = make([]uint16, 0, n*cy.Acquisitions)
	cy.LG = make([]uint16, 0, n*cy.Acquisitions)
	for i := range hg.Data {
		h := hg.Data[i].I32s
		l := lg.Data[i].I32s
		if len(h) != n || len(l) != n {
			return cy, fmt.Errorf(
				"invalid number of samples in acquisition %d (hg=%d, lg=%d, want=%d)",
				i, len(h), len(l), n,
			)
		}
		cy.HG = appendU16s(cy.HG, h)
		cy.LG = appendU16s(cy.LG, l)
	}

	return cy, nil
}

func appendU16s(dst []uint16, vs []int32) []uint16 {
	for _, v := range vs {
		dst = append(dst, uint16(v))
	}
	return dst
}

// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// citiroc-dump decodes and displays CITIROC1A raw data files, or the
// CITIROC1A data embedded in LCIO files.
//
// Usage: citiroc-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> citiroc-dump ./citiroc_000042.raw
//	=== run 42 ===
//	=== cycle 0 ===
//	Acquisitions:        100
//	Channels:             32
//	  acq=  0 hg=[ 100  101  102 ...] lg=[ 200  201  202 ...]
//	  acq=  1 hg=[ 100  101  102 ...] lg=[ 200  201  202 ...]
//	[...]
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-lpc/citiroc/board"
	"github.com/go-lpc/citiroc/internal/cformat"
	"github.com/go-lpc/citiroc/internal/xcnv"
	"go-hep.org/x/hep/lcio"
)

func main() {
	log.SetPrefix("citiroc-dump: ")
	log.SetFlags(0)

	var (
		summary = flag.Bool("s", false, "only display cycle summaries")
		isLCIO  = flag.Bool("lcio", false, "input files are LCIO files")
	)

	flag.Usage = func() {
		fmt.Printf(`citiroc-dump decodes and displays CITIROC1A raw data files.

Usage: citiroc-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> citiroc-dump ./citiroc_000042.raw
 === run 42 ===
 === cycle 0 ===
 Acquisitions:        100
 Channels:             32
   acq=  0 hg=[ 100  101  102 ...] lg=[ 200  201  202 ...]
   acq=  1 hg=[ 100  101  102 ...] lg=[ 200  201  202 ...]
 [...]

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing path to input file")
	}

	proc := process
	if *isLCIO {
		proc = processLCIO
	}

	for _, fname := range flag.Args() {
		err := proc(os.Stdout, fname, *summary)
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

func process(w io.Writer, fname string, summary bool) error {
	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	return dump(w, cformat.NewDecoder(bufio.NewReader(f)), summary)
}

func processLCIO(w io.Writer, fname string, summary bool) error {
	r, err := lcio.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open LCIO file: %w", err)
	}
	defer r.Close()

	rp, wp := io.Pipe()
	defer rp.Close()
	defer wp.Close()

	msg := log.New(io.Discard, "", 0)
	ch := make(chan error, 1)
	go func() {
		defer wp.Close()
		ch <- xcnv.LCIO2Raw(cformat.NewEncoder(wp), r, 100, msg)
	}()

	err = dump(w, cformat.NewDecoder(rp), summary)
	if err != nil {
		return err
	}

	err = <-ch
	if err != nil {
		return fmt.Errorf("could not convert LCIO file: %w", err)
	}
	return nil
}

func dump(w io.Writer, dec *cformat.Decoder, summary bool) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	run, err := dec.ReadHeader()
	if err != nil {
		return fmt.Errorf("could not read run header: %w", err)
	}
	fmt.Fprintf(wbuf, "=== run %d ===\n", run)

	var (
		ncycles int
		nacqs   int
	)
loop:
	for {
		var cy board.Cycle
		err := dec.Decode(&cy)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break loop
			}
			return fmt.Errorf("could not decode cycle: %w", err)
		}
		ncycles++
		nacqs += cy.Acquisitions

		fmt.Fprintf(wbuf, "=== cycle %d ===\n", cy.Index)
		fmt.Fprintf(wbuf, "Acquisitions: % 10d\n", cy.Acquisitions)
		fmt.Fprintf(wbuf, "Channels:     % 10d\n", cy.Channels)
		if summary {
			continue
		}

		for i := 0; i < cy.Acquisitions; i++ {
			hg, lg := cy.Event(i)
			fmt.Fprintf(wbuf, "  acq=% 3d hg=%4d lg=%4d\n", i, hg, lg)
		}
	}
	fmt.Fprintf(wbuf, "=== %d cycles, %d acquisitions ===\n", ncycles, nacqs)

	return nil
}

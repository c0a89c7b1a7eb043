// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command citiroc2lcio converts a CITIROC raw data file to an LCIO one.
package main // import "github.com/go-lpc/citiroc/cmd/citiroc2lcio"

import (
	"bufio"
	"compress/flate"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-lpc/citiroc/internal/cformat"
	"github.com/go-lpc/citiroc/internal/xcnv"
	"go-hep.org/x/hep/lcio"
)

var (
	msg = log.New(os.Stdout, "citiroc2lcio: ", 0)
)

func main() {
	var (
		oname = flag.String("o", "out.lcio", "path to output LCIO file")
		compr = flag.Int("lvl", flate.DefaultCompression, "compression level for output LCIO file")
		freq  = flag.Int("freq", 100, "printout frequency")
	)

	flag.Usage = func() {
		fmt.Printf(`Usage: citiroc2lcio [OPTIONS] file.raw

ex:
 $> citiroc2lcio -o out.lcio -lvl=9 ./citiroc_000042.raw

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		msg.Fatalf("missing input CITIROC raw file")
	}

	if *oname == "" {
		flag.Usage()
		msg.Fatalf("invalid output LCIO file name")
	}

	err := process(*oname, *compr, flag.Arg(0), *freq)
	if err != nil {
		msg.Fatalf("could not convert CITIROC file: %+v", err)
	}
}

func process(oname string, lvl int, fname string, freq int) error {
	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open CITIROC file: %w", err)
	}
	defer f.Close()

	w, err := lcio.Create(oname)
	if err != nil {
		return fmt.Errorf("could not create output LCIO file: %w", err)
	}
	defer w.Close()

	w.SetCompressionLevel(lvl)

	dec := cformat.NewDecoder(bufio.NewReader(f))
	err = xcnv.Raw2LCIO(w, dec, freq, msg)
	if err != nil {
		return fmt.Errorf("could not convert CITIROC to LCIO: %w", err)
	}

	err = w.Close()
	if err != nil {
		return fmt.Errorf("could not close output LCIO file: %w", err)
	}

	return nil
}

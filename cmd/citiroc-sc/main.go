// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command citiroc-sc inspects and loads CITIROC1A slow-control
// configurations.
//
// Usage: citiroc-sc <command> [OPTIONS] [ARGS]
//
// Commands:
//
//	catalog            display the slow-control field catalog
//	dump   cfg.yaml    display the slow-control values of a configuration
//	load   cfg.yaml    load a configuration onto one or more boards
//
// ex:
//
//	$> citiroc-sc catalog
//	$> citiroc-sc dump ./citiroc.yaml
//	$> citiroc-sc dump -csv ./citiroc.yaml > citiroc.csv
//	$> citiroc-sc load -serials CT1A0001,CT1A0002 ./citiroc.yaml
package main // import "github.com/go-lpc/citiroc/cmd/citiroc-sc"

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/go-lpc/citiroc/asic"
	"github.com/go-lpc/citiroc/board"
	"github.com/go-lpc/citiroc/config"
	"github.com/go-lpc/citiroc/usb"
	"github.com/pterm/pterm"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.SetPrefix("citiroc-sc: ")
	log.SetFlags(0)

	err := run(context.Background(), os.Stdout, os.Args[1:])
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func usage() {
	fmt.Printf(`Usage: citiroc-sc <command> [OPTIONS] [ARGS]

commands:
 catalog            display the slow-control field catalog
 dump   cfg.yaml    display the slow-control values of a configuration
 load   cfg.yaml    load a configuration onto one or more boards
`)
}

func run(ctx context.Context, w io.Writer, args []string) error {
	if len(args) < 1 {
		usage()
		return fmt.Errorf("missing command")
	}

	switch cmd, args := args[0], args[1:]; cmd {
	case "catalog":
		return doCatalog(w)
	case "dump":
		return doDump(w, args)
	case "load":
		return doLoad(ctx, w, args)
	case "help", "-h", "-help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func doCatalog(w io.Writer) error {
	data := pterm.TableData{
		{"Field", "Offset", "Width", "Count", "Stride", "Max"},
	}
	for _, f := range asic.Catalog() {
		data = append(data, []string{
			f.Name,
			strconv.Itoa(f.Offset),
			strconv.Itoa(f.Width),
			strconv.Itoa(f.Count),
			strconv.Itoa(f.Stride),
			strconv.FormatInt(f.Max(), 10),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
}

func doDump(w io.Writer, args []string) error {
	var (
		fset  = flag.NewFlagSet("dump", flag.ContinueOnError)
		toCSV = fset.Bool("csv", false, "dump the slow-control bit vector as CSV")
	)
	err := fset.Parse(args)
	if err != nil {
		return err
	}
	if fset.NArg() != 1 {
		return fmt.Errorf("dump: missing configuration file")
	}

	f, err := config.Load(fset.Arg(0))
	if err != nil {
		return fmt.Errorf("dump: could not load configuration: %w", err)
	}

	cfg, fw, err := f.Settings()
	if err != nil {
		return fmt.Errorf("dump: invalid configuration: %w", err)
	}

	if *toCSV {
		return asic.WriteCSV(w, cfg.Vector())
	}

	data := pterm.TableData{{"Field", "Values"}}
	for _, field := range asic.Catalog() {
		vs, err := cfg.Get(field.Name)
		if err != nil {
			return fmt.Errorf("dump: %w", err)
		}
		data = append(data, []string{field.Name, fmtValues(vs)})
	}
	err = pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
	if err != nil {
		return fmt.Errorf("dump: could not render slow-control table: %w", err)
	}

	data = pterm.TableData{{"Flag", "Word", "Bit", "Width", "Value"}}
	for _, fl := range board.Flags() {
		v, _ := fw.Get(fl.Name)
		data = append(data, []string{
			fl.Name,
			strconv.Itoa(int(fl.Word)),
			strconv.Itoa(int(fl.Bit)),
			strconv.Itoa(int(fl.Width)),
			strconv.FormatInt(v, 10),
		})
	}
	err = pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
	if err != nil {
		return fmt.Errorf("dump: could not render firmware table: %w", err)
	}

	words := fw.Words()
	pterm.Info.WithWriter(w).Printfln("control words: % x", words[:])
	return nil
}

func fmtValues(vs []int64) string {
	o := make([]string, len(vs))
	for i, v := range vs {
		o[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(o, " ")
}

var openBoard = board.Open

func doLoad(ctx context.Context, w io.Writer, args []string) error {
	var (
		fset    = flag.NewFlagSet("load", flag.ContinueOnError)
		serials = fset.String("serials", "", "comma-separated list of board serial numbers (default: from configuration)")
		sim     = fset.Bool("sim", false, "load simulated boards")
	)
	err := fset.Parse(args)
	if err != nil {
		return err
	}
	if fset.NArg() != 1 {
		return fmt.Errorf("load: missing configuration file")
	}

	f, err := config.Load(fset.Arg(0))
	if err != nil {
		return fmt.Errorf("load: could not load configuration: %w", err)
	}

	cfg, fw, err := f.Settings()
	if err != nil {
		return fmt.Errorf("load: invalid configuration: %w", err)
	}

	names := []string{f.USB.Serial}
	if *serials != "" {
		names = strings.Split(*serials, ",")
	}

	open := openBoard
	if *sim {
		open = func(cfg usb.Config, opts ...board.Option) (*board.Board, error) {
			return board.New(usb.NewSim(), opts...), nil
		}
	}

	var (
		mu     sync.Mutex
		states = make(map[string]board.State, len(names))
	)
	grp, ctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := strings.TrimSpace(name)
		grp.Go(func() error {
			dev := f.USB
			dev.Serial = name
			state, err := load(ctx, open, dev, cfg, fw, f.Options())
			mu.Lock()
			states[name] = state
			mu.Unlock()
			if err != nil {
				return fmt.Errorf("load: board %q: %w", name, err)
			}
			return nil
		})
	}
	err = grp.Wait()

	for _, name := range names {
		name = strings.TrimSpace(name)
		state, ok := states[name]
		switch {
		case !ok:
			pterm.Warning.WithWriter(w).Printfln("board %q: not loaded", name)
		case state == board.Done:
			pterm.Success.WithWriter(w).Printfln("board %q: configuration loaded and verified", name)
		default:
			pterm.Error.WithWriter(w).Printfln("board %q: configuration failed (state=%v)", name, state)
		}
	}

	return err
}

func load(ctx context.Context, open func(usb.Config, ...board.Option) (*board.Board, error), dev usb.Config, cfg asic.Config, fw board.Firmware, opts []board.Option) (board.State, error) {
	msg := log.New(os.Stdout, fmt.Sprintf("citiroc[%s]: ", dev.Serial), 0)
	opts = append([]board.Option{
		board.WithLogger(msg),
		board.WithFirmware(fw),
	}, opts...)

	brd, err := open(dev, opts...)
	if err != nil {
		return board.Idle, fmt.Errorf("could not open board: %w", err)
	}
	defer brd.Close()

	err = brd.Initialize(ctx)
	if err != nil {
		return brd.State(), fmt.Errorf("could not initialize board: %w", err)
	}

	err = brd.LoadConfiguration(ctx, cfg)
	if err != nil {
		return brd.State(), fmt.Errorf("could not load configuration: %w", err)
	}

	err = brd.ApplyFirmwareSettings(ctx)
	if err != nil {
		return brd.State(), fmt.Errorf("could not apply firmware settings: %w", err)
	}

	err = brd.Close()
	if err != nil {
		return brd.State(), fmt.Errorf("could not close board: %w", err)
	}
	return brd.State(), nil
}

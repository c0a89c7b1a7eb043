// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main // import "github.com/go-lpc/citiroc/cmd/citiroc-ctl"

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/go-lpc/citiroc/asic"
	"github.com/go-lpc/citiroc/board"
	"github.com/go-lpc/citiroc/config"
	"github.com/go-lpc/citiroc/usb"
	"github.com/pterm/pterm"
)

// shell holds the state of an interactive board session.
type shell struct {
	w   io.Writer
	msg *log.Logger

	file config.File
	asic asic.Config
	fw   board.Firmware
	brd  *board.Board

	open func(cfg usb.Config, opts ...board.Option) (*board.Board, error)
	last error // error of the last board operation
}

type command struct {
	args string
	help string
	run  func(sh *shell, ctx context.Context, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":    {"", "display this help message", (*shell).cmdHelp},
		"open":    {"", "open the board session", (*shell).cmdOpen},
		"close":   {"", "close the board session", (*shell).cmdClose},
		"init":    {"", "initialize the board", (*shell).cmdInit},
		"load":    {"", "load the slow-control configuration", (*shell).cmdLoad},
		"fw":      {"[read]", "apply (or read back) the firmware settings", (*shell).cmdFirmware},
		"get":     {"<field|flag>", "display the value(s) of a field or firmware flag", (*shell).cmdGet},
		"set":     {"<field> <index> <value>", "modify a slow-control field element", (*shell).cmdSet},
		"flag":    {"<flag> <value>", "modify a firmware flag", (*shell).cmdFlag},
		"acquire": {"[total]", "run an acquisition", (*shell).cmdAcquire},
		"state":   {"", "display the handshake state and last status", (*shell).cmdState},
		"csv":     {"<file>", "write the slow-control bit vector to a CSV file", (*shell).cmdCSV},
	}
}

func newShell(w io.Writer, f config.File, sim bool) (*shell, error) {
	cfg, fw, err := f.Settings()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	sh := &shell{
		w:    w,
		msg:  log.New(w, "citiroc: ", 0),
		file: f,
		asic: cfg,
		fw:   fw,
		open: board.Open,
	}
	if sim {
		sh.open = func(cfg usb.Config, opts ...board.Option) (*board.Board, error) {
			return board.New(usb.NewSim(), opts...), nil
		}
	}
	return sh, nil
}

func (sh *shell) close() {
	if sh.brd == nil {
		return
	}
	err := sh.brd.Close()
	if err != nil {
		sh.msg.Printf("could not close board: %+v", err)
	}
	sh.brd = nil
}

// exec runs a command line and reports whether the shell should exit.
func (sh *shell) exec(ctx context.Context, line string) bool {
	toks := strings.Fields(line)
	if len(toks) == 0 {
		return false
	}

	switch name := toks[0]; name {
	case "quit", "exit":
		sh.close()
		return true
	default:
		cmd, ok := commands[name]
		if !ok {
			pterm.Error.WithWriter(sh.w).Printfln("unknown command %q (try \"help\")", name)
			return false
		}
		err := cmd.run(sh, ctx, toks[1:])
		if err != nil {
			pterm.Error.WithWriter(sh.w).Printfln("%s: %+v", name, err)
		}
	}
	return false
}

// complete returns the completions of a command line.
func (sh *shell) complete(line string) []string {
	var (
		toks  = strings.Fields(line)
		o     []string
		names []string
	)
	switch {
	case len(toks) == 0, len(toks) == 1 && !strings.HasSuffix(line, " "):
		names = append(names, "quit", "exit")
		for name := range commands {
			names = append(names, name)
		}
		for _, name := range names {
			if strings.HasPrefix(name, line) {
				o = append(o, name)
			}
		}
	case len(toks) == 2 && !strings.HasSuffix(line, " "):
		switch toks[0] {
		case "get":
			names = append(asic.Names(), board.FlagNames()...)
		case "set":
			names = asic.Names()
		case "flag":
			names = board.FlagNames()
		}
		for _, name := range names {
			if strings.HasPrefix(name, toks[1]) {
				o = append(o, toks[0]+" "+name)
			}
		}
	}
	sort.Strings(o)
	return o
}

func (sh *shell) session() (*board.Board, error) {
	if sh.brd == nil {
		return nil, fmt.Errorf("no board session (try \"open\")")
	}
	return sh.brd, nil
}

func (sh *shell) cmdHelp(ctx context.Context, args []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	data := pterm.TableData{{"Command", "Arguments", "Description"}}
	for _, name := range names {
		cmd := commands[name]
		data = append(data, []string{name, cmd.args, cmd.help})
	}
	data = append(data, []string{"quit", "", "close the board session and exit"})
	return pterm.DefaultTable.WithHasHeader().WithWriter(sh.w).WithData(data).Render()
}

func (sh *shell) cmdOpen(ctx context.Context, args []string) error {
	if sh.brd != nil {
		return fmt.Errorf("board session already opened")
	}
	opts := append([]board.Option{
		board.WithLogger(sh.msg),
		board.WithFirmware(sh.fw),
	}, sh.file.Options()...)

	brd, err := sh.open(sh.file.USB, opts...)
	if err != nil {
		return err
	}
	sh.brd = brd
	pterm.Success.WithWriter(sh.w).Printfln("board session opened")
	return nil
}

func (sh *shell) cmdClose(ctx context.Context, args []string) error {
	if sh.brd == nil {
		return fmt.Errorf("no board session")
	}
	sh.close()
	return nil
}

func (sh *shell) cmdInit(ctx context.Context, args []string) error {
	brd, err := sh.session()
	if err != nil {
		return err
	}
	sh.last = brd.Initialize(ctx)
	if sh.last != nil {
		return sh.last
	}
	pterm.Success.WithWriter(sh.w).Printfln("board initialized")
	return nil
}

func (sh *shell) cmdLoad(ctx context.Context, args []string) error {
	brd, err := sh.session()
	if err != nil {
		return err
	}
	sh.last = brd.LoadConfiguration(ctx, sh.asic)
	if sh.last != nil {
		return sh.last
	}
	pterm.Success.WithWriter(sh.w).Printfln("slow-control configuration loaded and verified")
	return nil
}

func (sh *shell) cmdFirmware(ctx context.Context, args []string) error {
	brd, err := sh.session()
	if err != nil {
		return err
	}
	switch {
	case len(args) == 0:
		sh.last = brd.ApplyFirmwareSettings(ctx)
		if sh.last != nil {
			return sh.last
		}
		pterm.Success.WithWriter(sh.w).Printfln("firmware settings applied")
	case len(args) == 1 && args[0] == "read":
		words, err := brd.ReadFirmwareWords(ctx)
		sh.last = err
		if err != nil {
			return err
		}
		pterm.Info.WithWriter(sh.w).Printfln("control words: % x", words[:])
	default:
		return fmt.Errorf("invalid arguments %q", args)
	}
	return nil
}

func (sh *shell) cmdGet(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("missing field or flag name")
	}
	name := args[0]
	if v, ok := sh.fw.Get(name); ok {
		pterm.Info.WithWriter(sh.w).Printfln("%s = %d", name, v)
		return nil
	}
	vs, err := sh.asic.Get(name)
	if err != nil {
		return err
	}
	pterm.Info.WithWriter(sh.w).Printfln("%s = %v", name, vs)
	return nil
}

func (sh *shell) cmdSet(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("expected 3 arguments, got %d", len(args))
	}
	i, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", args[1], err)
	}
	v, err := strconv.ParseInt(args[2], 0, 64)
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", args[2], err)
	}
	return sh.asic.Set(args[0], i, v)
}

func (sh *shell) cmdFlag(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("expected 2 arguments, got %d", len(args))
	}
	v, err := strconv.ParseInt(args[1], 0, 64)
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", args[1], err)
	}
	vals := sh.fw.Values()
	if _, ok := vals[args[0]]; !ok {
		return fmt.Errorf("unknown firmware flag %q", args[0])
	}
	vals[args[0]] = v
	fw, err := board.NewFirmware(vals)
	if err != nil {
		return err
	}
	if sh.brd != nil {
		err = sh.brd.SetFirmware(fw)
		if err != nil {
			return err
		}
	}
	sh.fw = fw
	return nil
}

func (sh *shell) cmdAcquire(ctx context.Context, args []string) error {
	brd, err := sh.session()
	if err != nil {
		return err
	}
	req := sh.file.DAQ
	switch len(args) {
	case 0:
	case 1:
		req.Total, err = strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid number of acquisitions %q: %w", args[0], err)
		}
	default:
		return fmt.Errorf("invalid arguments %q", args)
	}

	var (
		n    int
		data = pterm.TableData{{"Cycle", "Acquisitions", "HG[0]", "LG[0]"}}
	)
	sh.last = brd.AcquireFunc(ctx, req, func(cy board.Cycle) error {
		n += cy.Acquisitions
		hg, lg := cy.Event(0)
		data = append(data, []string{
			strconv.Itoa(cy.Index),
			strconv.Itoa(cy.Acquisitions),
			strconv.Itoa(int(hg[0])),
			strconv.Itoa(int(lg[0])),
		})
		return nil
	})
	if sh.last != nil {
		return sh.last
	}

	err = pterm.DefaultTable.WithHasHeader().WithWriter(sh.w).WithData(data).Render()
	if err != nil {
		return err
	}
	pterm.Success.WithWriter(sh.w).Printfln("%d acquisitions read", n)
	return nil
}

func (sh *shell) cmdState(ctx context.Context, args []string) error {
	state := board.Idle
	if sh.brd != nil {
		state = sh.brd.State()
	}
	pterm.Info.WithWriter(sh.w).Printfln("state=%v status=%v", state, board.StatusOf(sh.last))
	return nil
}

func (sh *shell) cmdCSV(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("missing output file name")
	}
	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("could not create CSV file: %w", err)
	}
	defer f.Close()

	err = asic.WriteCSV(f, sh.asic.Vector())
	if err != nil {
		return err
	}
	err = f.Close()
	if err != nil {
		return fmt.Errorf("could not close CSV file: %w", err)
	}
	pterm.Success.WithWriter(sh.w).Printfln("slow-control vector written to %q", args[0])
	return nil
}

// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command citiroc-ctl is an interactive shell driving a single CITIROC1A
// board session.
//
// Usage: citiroc-ctl [OPTIONS]
//
// ex:
//
//	$> citiroc-ctl -cfg ./citiroc.yaml
//	citiroc> open
//	citiroc> init
//	citiroc> set dac_code 0 250
//	citiroc> load
//	citiroc> acquire 200
//	citiroc> quit
//
// Options:
//
//	-cfg string
//	    path to configuration file (default "citiroc.yaml")
//	-hist string
//	    path to the shell history file (default "$HOME/.citiroc-ctl.history")
//	-sim
//	    drive a simulated board
package main // import "github.com/go-lpc/citiroc/cmd/citiroc-ctl"

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-lpc/citiroc/config"
	"github.com/peterh/liner"
)

func main() {
	log.SetPrefix("citiroc-ctl: ")
	log.SetFlags(0)

	var (
		fname = flag.String("cfg", "citiroc.yaml", "path to configuration file")
		hist  = flag.String("hist", defaultHistory(), "path to the shell history file")
		sim   = flag.Bool("sim", false, "drive a simulated board")
	)

	flag.Parse()

	err := xmain(*fname, *hist, *sim)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func defaultHistory() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".citiroc-ctl.history")
}

func xmain(fname, hist string, sim bool) error {
	cfg, err := config.Load(fname)
	if err != nil {
		return err
	}

	sh, err := newShell(os.Stdout, cfg, sim)
	if err != nil {
		return err
	}
	defer sh.close()

	term := liner.NewLiner()
	defer term.Close()

	term.SetCtrlCAborts(true)
	term.SetCompleter(sh.complete)

	if hist != "" {
		if f, err := os.Open(hist); err == nil {
			_, _ = term.ReadHistory(f)
			_ = f.Close()
		}
		defer func() {
			f, err := os.Create(hist)
			if err != nil {
				log.Printf("could not create history file: %+v", err)
				return
			}
			defer f.Close()
			_, _ = term.WriteHistory(f)
		}()
	}

	ctx := context.Background()
	for {
		line, err := term.Prompt("citiroc> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		term.AppendHistory(line)

		quit := sh.exec(ctx, line)
		if quit {
			return nil
		}
	}
}

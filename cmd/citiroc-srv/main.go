// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command citiroc-srv starts a TDAQ server driving a CITIROC1A board.
//
// The server handles the /config, /init, /reset, /start, /stop and /quit
// run-control commands and publishes the acquired cycles on its /citiroc
// output, in the CITIROC raw data format.
//
// Usage: citiroc-srv [OPTIONS] -cfg citiroc.yaml -id citiroc-srv
//
// ex:
//
//	$> citiroc-srv -cfg ./citiroc.yaml -o /data/citiroc -run 42 -id citiroc-srv -rc-addr :44000
//	$> citiroc-srv -cfg ./citiroc.yaml -sim -id citiroc-srv
package main // import "github.com/go-lpc/citiroc/cmd/citiroc-srv"

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/citiroc"
	"github.com/sbinet/pmon"
)

var (
	cfgFlag  = flag.String("cfg", "citiroc.yaml", "path to the configuration file")
	odirFlag = flag.String("o", ".", "output directory for raw data files")
	runFlag  = flag.Uint("run", 0, "number of the first run")
	simFlag  = flag.Bool("sim", false, "drive a simulated board")

	doMon  = flag.Bool("pmon", false, "enable pmon monitoring")
	doFreq = flag.Duration("freq", 1*time.Second, "pmon frequency")
)

func main() {
	log.SetPrefix("citiroc-srv: ")
	log.SetFlags(0)

	cmd := flags.New()

	if version, sum := citiroc.Version(); version != "" {
		log.Printf("version: %s (sum=%s)", version, sum)
	}

	srv := newServer(*cfgFlag, *odirFlag, uint32(*runFlag), *simFlag)
	defer srv.close()

	if *doMon {
		stop, err := monitor(*odirFlag, *doFreq)
		if err != nil {
			log.Fatalf("could not start process monitoring: %+v", err)
		}
		defer stop()
	}

	dev := tdaq.New(cmd, os.Stdout)
	dev.CmdHandle("/config", srv.OnConfig)
	dev.CmdHandle("/init", srv.OnInit)
	dev.CmdHandle("/reset", srv.OnReset)
	dev.CmdHandle("/start", srv.OnStart)
	dev.CmdHandle("/stop", srv.OnStop)
	dev.CmdHandle("/quit", srv.OnQuit)

	dev.OutputHandle("/citiroc", srv.output)

	dev.RunHandle(srv.run)

	err := dev.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

func monitor(dir string, freq time.Duration) (func(), error) {
	p, err := pmon.Monitor(os.Getpid())
	if err != nil {
		return nil, err
	}
	f, err := os.Create(filepath.Join(dir, "citiroc-srv-pmon.log"))
	if err != nil {
		return nil, err
	}
	p.W = f
	p.Freq = freq

	go func() {
		log.Printf("run pmon...")
		err := p.Run()
		if err != nil {
			log.Printf("could not start monitoring: %+v", err)
		}
	}()

	return func() {
		err := p.Kill()
		if err != nil {
			log.Printf("could not stop monitoring: %+v", err)
		}
		_ = f.Close()
	}, nil
}

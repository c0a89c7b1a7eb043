// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command citiroc-sql inspects the CITIROC configuration database.
//
// Usage: citiroc-sql [OPTIONS]
//
// ex:
//
//	$> citiroc-sql -list
//	$> citiroc-sql -cfg LPC2026_3
//	$> citiroc-sql -cfg LPC2026_3 -export ./citiroc.yaml
//	$> citiroc-sql -cfg LPC2026_4 -import ./citiroc.yaml
package main // import "github.com/go-lpc/citiroc/cmd/citiroc-sql"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/go-lpc/citiroc/asic"
	"github.com/go-lpc/citiroc/board"
	"github.com/go-lpc/citiroc/conddb"
	"github.com/go-lpc/citiroc/config"
)

type dbase interface {
	Configs(ctx context.Context) ([]string, error)
	LastConfig(ctx context.Context) (string, error)
	ASICFields(ctx context.Context, cfg string) (map[string][]int64, error)
	FirmwareFlags(ctx context.Context, cfg string) (map[string]int64, error)
	DAQParams(ctx context.Context, cfg string) (conddb.DAQParams, error)
	SaveConfig(ctx context.Context, cfg string, fields map[string][]int64, flags map[string]int64, params conddb.DAQParams) error
}

func main() {
	log.SetPrefix("citiroc-sql: ")
	log.SetFlags(0)

	var (
		dbname = flag.String("db", "citiroc", "name of the configuration database")
		cfg    = flag.String("cfg", "", "configuration to inspect (default: last one)")
		list   = flag.Bool("list", false, "list all configurations")
		export = flag.String("export", "", "export the configuration to the provided file")
		load   = flag.String("import", "", "import the configuration from the provided file")
	)

	flag.Parse()

	db, err := conddb.Open(*dbname)
	if err != nil {
		log.Fatalf("could not open CITIROC db: %+v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch {
	case *list:
		err = doList(ctx, db)
	case *load != "":
		err = doImport(ctx, db, *cfg, *load)
	default:
		err = doQuery(ctx, db, *cfg, *export)
	}
	if err != nil {
		log.Fatalf("could not do query: %+v", err)
	}
}

func doList(ctx context.Context, db dbase) error {
	names, err := db.Configs(ctx)
	if err != nil {
		return fmt.Errorf("could not list configurations: %w", err)
	}
	for _, name := range names {
		log.Printf("config: %q", name)
	}
	return nil
}

func doQuery(ctx context.Context, db dbase, cfg, oname string) error {
	if cfg == "" {
		v, err := db.LastConfig(ctx)
		if err != nil {
			return fmt.Errorf("could not get last config value: %w", err)
		}
		cfg = v
	}
	log.Printf("config: %q", cfg)

	fields, err := db.ASICFields(ctx, cfg)
	if err != nil {
		return fmt.Errorf("could not get slow-control fields (cfg=%q): %w", cfg, err)
	}
	flags, err := db.FirmwareFlags(ctx, cfg)
	if err != nil {
		return fmt.Errorf("could not get firmware flags (cfg=%q): %w", cfg, err)
	}
	params, err := db.DAQParams(ctx, cfg)
	if err != nil {
		return fmt.Errorf("could not get daq params (cfg=%q): %w", cfg, err)
	}

	_, _, err = board.NewSettings(fields, flags)
	if err != nil {
		log.Printf("invalid configuration: %+v", err)
	}

	log.Printf("fields: %d", len(fields))
	for _, name := range asic.Names() {
		vs, ok := fields[name]
		if !ok {
			log.Printf(">>> %-20s <missing>", name)
			continue
		}
		log.Printf(">>> %-20s %v", name, vs)
	}

	log.Printf("flags: %d", len(flags))
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		log.Printf(">>> %-20s %d", name, flags[name])
	}

	log.Printf("daq: %+v", params)

	if oname == "" {
		return nil
	}

	f := config.File{
		DB:       config.DB{Config: cfg},
		Fields:   fields,
		Firmware: flags,
		DAQ: board.Request{
			Total:    params.Total,
			Capacity: params.Capacity,
			Channels: params.Channels,
			TimeMode: params.TimeMode,
		},
	}
	err = config.Save(oname, f)
	if err != nil {
		return fmt.Errorf("could not export configuration %q: %w", cfg, err)
	}
	log.Printf("exported %q to %q", cfg, oname)
	return nil
}

func doImport(ctx context.Context, db dbase, cfg, fname string) error {
	if cfg == "" {
		return fmt.Errorf("missing configuration name")
	}

	f, err := config.Load(fname)
	if err != nil {
		return fmt.Errorf("could not load configuration file: %w", err)
	}

	sc, fw, err := f.Settings()
	if err != nil {
		return fmt.Errorf("invalid configuration in %q: %w", fname, err)
	}

	err = f.DAQ.Validate()
	if err != nil {
		return fmt.Errorf("invalid daq parameters in %q: %w", fname, err)
	}

	params := conddb.DAQParams{
		Total:    f.DAQ.Total,
		Capacity: f.DAQ.Capacity,
		Channels: f.DAQ.Channels,
		TimeMode: f.DAQ.TimeMode,
	}
	err = db.SaveConfig(ctx, cfg, sc.Values(), fw.Values(), params)
	if err != nil {
		return fmt.Errorf("could not import configuration %q: %w", cfg, err)
	}
	log.Printf("imported %q from %q", cfg, fname)
	return nil
}

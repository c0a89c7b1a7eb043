// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-daq/tdaq"
	"github.com/go-lpc/citiroc/asic"
	"github.com/go-lpc/citiroc/board"
	"github.com/go-lpc/citiroc/conddb"
	"github.com/go-lpc/citiroc/config"
	"github.com/go-lpc/citiroc/internal/cformat"
	"github.com/go-lpc/citiroc/usb"
)

// store is a configuration database.
type store interface {
	LastConfig(ctx context.Context) (string, error)
	ASICFields(ctx context.Context, cfg string) (map[string][]int64, error)
	FirmwareFlags(ctx context.Context, cfg string) (map[string]int64, error)
	DAQParams(ctx context.Context, cfg string) (conddb.DAQParams, error)
	Close() error
}

// alerter notifies operators about failures.
type alerter interface {
	Alert(subject, body string)
}

type server struct {
	fname  string // configuration file
	odir   string // output directory for raw data files
	runNbr uint32 // number of the next run
	sim    bool

	msg *log.Logger
	lw  io.WriteCloser

	openDB    func(name string) (store, error)
	openBoard func(cfg usb.Config, opts ...board.Option) (*board.Board, error)
	alert     alerter

	cfg  config.File
	asic asic.Config
	fw   board.Firmware

	brd *board.Board

	mu  sync.Mutex
	f   *os.File
	enc *cformat.Encoder
	n   int // number of cycles acquired during the current run

	data chan []byte
}

func newServer(fname, odir string, run uint32, sim bool) *server {
	srv := &server{
		fname:     fname,
		odir:      odir,
		runNbr:    run,
		sim:       sim,
		msg:       log.New(os.Stdout, "citiroc: ", 0),
		openDB:    openDB,
		openBoard: board.Open,
		alert:     newMailAlert(),
		data:      make(chan []byte, 1024),
	}
	if sim {
		srv.openBoard = func(cfg usb.Config, opts ...board.Option) (*board.Board, error) {
			return board.New(usb.NewSim(), opts...), nil
		}
	}
	return srv
}

func openDB(name string) (store, error) {
	db, err := conddb.Open(name)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// load reads the configuration file and, when the file names a
// configuration database, the slow-control fields, firmware flags and
// acquisition parameters from that database.
func (srv *server) load(ctx context.Context) (config.File, error) {
	cfg, err := config.Load(srv.fname)
	if err != nil {
		return cfg, fmt.Errorf("could not load configuration file: %w", err)
	}

	if cfg.DB.Name == "" {
		return cfg, nil
	}

	db, err := srv.openDB(cfg.DB.Name)
	if err != nil {
		return cfg, fmt.Errorf("could not open configuration db %q: %w", cfg.DB.Name, err)
	}
	defer db.Close()

	name := cfg.DB.Config
	if name == "" {
		name, err = db.LastConfig(ctx)
		if err != nil {
			return cfg, fmt.Errorf("could not retrieve last configuration: %w", err)
		}
		cfg.DB.Config = name
	}

	cfg.Fields, err = db.ASICFields(ctx, name)
	if err != nil {
		return cfg, fmt.Errorf("could not retrieve slow-control fields: %w", err)
	}

	cfg.Firmware, err = db.FirmwareFlags(ctx, name)
	if err != nil {
		return cfg, fmt.Errorf("could not retrieve firmware flags: %w", err)
	}

	params, err := db.DAQParams(ctx, name)
	if err != nil {
		return cfg, fmt.Errorf("could not retrieve acquisition parameters: %w", err)
	}
	cfg.DAQ = board.Request{
		Total:    params.Total,
		Capacity: params.Capacity,
		Channels: params.Channels,
		TimeMode: params.TimeMode,
	}

	return cfg, nil
}

func (srv *server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")

	cfg, err := srv.load(ctx.Ctx)
	if err != nil {
		ctx.Msg.Errorf("could not load configuration: %+v", err)
		return fmt.Errorf("could not load configuration: %w", err)
	}

	sc, fw, err := cfg.Settings()
	if err != nil {
		ctx.Msg.Errorf("invalid configuration: %+v", err)
		return fmt.Errorf("invalid configuration: %w", err)
	}

	err = cfg.DAQ.Validate()
	if err != nil {
		ctx.Msg.Errorf("invalid acquisition parameters: %+v", err)
		return fmt.Errorf("invalid acquisition parameters: %w", err)
	}

	if srv.lw != nil {
		_ = srv.lw.Close()
	}
	srv.lw = cfg.Log.Writer()
	srv.msg = log.New(srv.lw, "citiroc: ", 0)

	srv.cfg = cfg
	srv.asic = sc
	srv.fw = fw

	if cfg.DB.Name != "" {
		ctx.Msg.Infof("loaded configuration %q from db %q", cfg.DB.Config, cfg.DB.Name)
	}
	ctx.Msg.Infof("daq: %d acquisitions, %d channels, %d cycles",
		cfg.DAQ.Total, cfg.DAQ.Channels, cfg.DAQ.Cycles(),
	)
	return nil
}

func (srv *server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")

	if !srv.asic.Valid() {
		return fmt.Errorf("could not initialize board: no configuration loaded")
	}

	srv.release()

	opts := append([]board.Option{
		board.WithLogger(srv.msg),
		board.WithFirmware(srv.fw),
	}, srv.cfg.Options()...)

	brd, err := srv.openBoard(srv.cfg.USB, opts...)
	if err != nil {
		ctx.Msg.Errorf("could not open board: %+v", err)
		return fmt.Errorf("could not open board: %w", err)
	}
	srv.brd = brd

	err = brd.Initialize(ctx.Ctx)
	if err != nil {
		ctx.Msg.Errorf("could not initialize board: %+v", err)
		return fmt.Errorf("could not initialize board: %w", err)
	}

	err = brd.LoadConfiguration(ctx.Ctx, srv.asic)
	if err != nil {
		ctx.Msg.Errorf("could not load slow-control configuration (status=%v): %+v", board.StatusOf(err), err)
		if errors.Is(err, board.ErrChecksum) {
			srv.alert.Alert(
				"slow-control verification failed",
				fmt.Sprintf("board: %q\nconfig: %q\nerror: %+v", srv.cfg.USB.Serial, srv.fname, err),
			)
		}
		return fmt.Errorf("could not load slow-control configuration: %w", err)
	}

	err = brd.ApplyFirmwareSettings(ctx.Ctx)
	if err != nil {
		ctx.Msg.Errorf("could not apply firmware settings: %+v", err)
		return fmt.Errorf("could not apply firmware settings: %w", err)
	}

	ctx.Msg.Infof("board initialized (state=%v)", brd.State())
	return nil
}

func (srv *server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	srv.release()
	return nil
}

func (srv *server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")

	if srv.brd == nil {
		return fmt.Errorf("could not start run: board not initialized")
	}

	fname := filepath.Join(srv.odir, fmt.Sprintf("citiroc_%06d.raw", srv.runNbr))
	f, err := os.Create(fname)
	if err != nil {
		ctx.Msg.Errorf("could not create raw data file: %+v", err)
		return fmt.Errorf("could not create raw data file: %w", err)
	}

	enc := cformat.NewEncoder(f)
	err = enc.WriteHeader(srv.runNbr)
	if err != nil {
		_ = f.Close()
		ctx.Msg.Errorf("could not write raw data header: %+v", err)
		return fmt.Errorf("could not write raw data header: %w", err)
	}

	srv.mu.Lock()
	srv.f = f
	srv.enc = enc
	srv.n = 0
	srv.mu.Unlock()

	ctx.Msg.Infof("starting run %d (file=%q)", srv.runNbr, fname)
	return nil
}

func (srv *server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	srv.mu.Lock()
	n := srv.n
	srv.mu.Unlock()
	ctx.Msg.Debugf("received /stop command... -> n=%d", n)

	err := srv.closeRun()
	if err != nil {
		ctx.Msg.Errorf("could not close run %d: %+v", srv.runNbr, err)
		return fmt.Errorf("could not close run %d: %w", srv.runNbr, err)
	}
	srv.runNbr++
	return nil
}

func (srv *server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	srv.close()
	return nil
}

func (srv *server) output(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-srv.data:
		dst.Body = data
	}
	return nil
}

// run acquires cycles until the run is stopped, writing them to the raw
// data file and publishing them on the output.
func (srv *server) run(ctx tdaq.Context) error {
	if srv.brd == nil {
		return fmt.Errorf("could not run: board not initialized")
	}

	buf := new(bytes.Buffer)
	pub := cformat.NewEncoder(buf)
	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		default:
		}

		err := srv.brd.AcquireFunc(ctx.Ctx, srv.cfg.DAQ, func(cy board.Cycle) error {
			return srv.record(pub, buf, cy)
		})
		switch {
		case err == nil:
		case ctx.Ctx.Err() != nil:
			return nil
		default:
			ctx.Msg.Errorf("could not acquire data (status=%v): %+v", board.StatusOf(err), err)
			srv.alert.Alert(
				"acquisition failed",
				fmt.Sprintf("board: %q\nrun: %d\nerror: %+v", srv.cfg.USB.Serial, srv.runNbr, err),
			)
			return fmt.Errorf("could not acquire data: %w", err)
		}
	}
}

func (srv *server) record(pub *cformat.Encoder, buf *bytes.Buffer, cy board.Cycle) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.enc != nil {
		err := srv.enc.Encode(cy)
		if err != nil {
			return fmt.Errorf("could not write cycle %d: %w", cy.Index, err)
		}
	}
	srv.n++

	buf.Reset()
	err := pub.Encode(cy)
	if err != nil {
		return fmt.Errorf("could not encode cycle %d: %w", cy.Index, err)
	}
	select {
	case srv.data <- append([]byte(nil), buf.Bytes()...):
	default:
		srv.msg.Printf("output queue full: dropping cycle %d", cy.Index)
	}
	return nil
}

func (srv *server) closeRun() error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.f == nil {
		return nil
	}
	defer func() {
		srv.f = nil
		srv.enc = nil
	}()

	err := srv.enc.Close()
	if err != nil {
		_ = srv.f.Close()
		return err
	}

	err = srv.f.Close()
	if err != nil {
		return fmt.Errorf("could not close raw data file: %w", err)
	}
	return nil
}

func (srv *server) release() {
	if srv.brd == nil {
		return
	}
	err := srv.brd.Close()
	if err != nil {
		srv.msg.Printf("could not close board: %+v", err)
	}
	srv.brd = nil
}

func (srv *server) close() {
	err := srv.closeRun()
	if err != nil {
		srv.msg.Printf("could not close run: %+v", err)
	}
	srv.release()
	if srv.lw != nil {
		_ = srv.lw.Close()
		srv.lw = nil
	}
}

// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the run configuration of a CITIROC1A front-end
// from a YAML, TOML or JSON file.
//
// A configuration file looks like:
//
//	usb:
//	  serial: CT1A0042
//	  read-timeout: 200ms
//	board:
//	  poll: 1ms
//	  retries: 1000
//	  ready-timeout: 10s
//	daq:
//	  total: 250
//	  channels: 32
//	asic:
//	  threshold1: 250
//	  calibDacQ: [0, 1, 2, ...]
//	firmware:
//	  powerOn: 1
//	log:
//	  file: /var/log/citiroc/citiroc-srv.log
//	  max-size: 10
//
// Slow-control fields and firmware flags are matched by name, ignoring case.
// Single-element fields may be given as a scalar.
package config // import "github.com/go-lpc/citiroc/config"

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-lpc/citiroc/asic"
	"github.com/go-lpc/citiroc/board"
	"github.com/go-lpc/citiroc/usb"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// File is the content of a configuration file.
type File struct {
	USB   usb.Config
	Board Board
	DAQ   board.Request
	Log   Log
	DB    DB

	Fields   map[string][]int64 // slow-control field values
	Firmware map[string]int64   // firmware flags
}

// Board holds the session parameters of the board.
type Board struct {
	Poll         time.Duration // ready-flag poll interval
	Retries      int           // maximum number of ready-flag polls
	ReadyTimeout time.Duration // maximum duration of a ready-flag poll
}

// Log describes the log file of a front-end.
type Log struct {
	File       string // log file name; standard output when empty
	MaxSize    int    // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// DB names a configuration stored in the configuration database.
type DB struct {
	Name   string // database name
	Config string // configuration name; the most recent one when empty
}

func setDefaults(v *viper.Viper) {
	def := usb.DefaultConfig()
	v.SetDefault("usb.vendor-id", def.VendorID)
	v.SetDefault("usb.product-id", def.ProductID)
	v.SetDefault("usb.write-chunk", def.WriteChunk)
	v.SetDefault("usb.read-chunk", def.ReadChunk)
	v.SetDefault("usb.write-timeout", def.WriteTimeout)
	v.SetDefault("usb.read-timeout", def.ReadTimeout)

	v.SetDefault("board.poll", time.Millisecond)
	v.SetDefault("board.retries", 1000)
	v.SetDefault("board.ready-timeout", 10*time.Second)

	v.SetDefault("daq.capacity", board.DefaultCapacity)

	v.SetDefault("log.max-size", 10)
	v.SetDefault("log.max-backups", 4)
	v.SetDefault("log.max-age", 180)
	v.SetDefault("log.compress", true)
}

// Load reads the configuration file fname.
// The file format is inferred from the file extension.
func Load(fname string) (File, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(fname)

	var f File
	err := v.ReadInConfig()
	if err != nil {
		return f, fmt.Errorf("config: could not read %q: %w", fname, err)
	}

	f, err = decode(v)
	if err != nil {
		return f, fmt.Errorf("config: could not decode %q: %w", fname, err)
	}
	return f, nil
}

func decode(v *viper.Viper) (File, error) {
	f := File{
		USB: usb.Config{
			Serial:       v.GetString("usb.serial"),
			VendorID:     v.GetUint16("usb.vendor-id"),
			ProductID:    v.GetUint16("usb.product-id"),
			WriteChunk:   v.GetInt("usb.write-chunk"),
			ReadChunk:    v.GetInt("usb.read-chunk"),
			WriteTimeout: v.GetDuration("usb.write-timeout"),
			ReadTimeout:  v.GetDuration("usb.read-timeout"),
		},
		Board: Board{
			Poll:         v.GetDuration("board.poll"),
			Retries:      v.GetInt("board.retries"),
			ReadyTimeout: v.GetDuration("board.ready-timeout"),
		},
		DAQ: board.Request{
			Total:    v.GetInt("daq.total"),
			Capacity: v.GetInt("daq.capacity"),
			Channels: v.GetInt("daq.channels"),
			TimeMode: v.GetBool("daq.time-mode"),
		},
		Log: Log{
			File:       v.GetString("log.file"),
			MaxSize:    v.GetInt("log.max-size"),
			MaxBackups: v.GetInt("log.max-backups"),
			MaxAge:     v.GetInt("log.max-age"),
			Compress:   v.GetBool("log.compress"),
		},
		DB: DB{
			Name:   v.GetString("db.name"),
			Config: v.GetString("db.config"),
		},
	}

	var err error
	f.Fields, err = decodeFields(v.GetStringMap("asic"))
	if err != nil {
		return f, err
	}

	f.Firmware, err = decodeFlags(v.GetStringMap("firmware"))
	if err != nil {
		return f, err
	}

	return f, nil
}

func canonical(names []string) map[string]string {
	o := make(map[string]string, len(names))
	for _, name := range names {
		o[strings.ToLower(name)] = name
	}
	return o
}

func decodeFields(raw map[string]interface{}) (map[string][]int64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	names := canonical(asic.Names())
	fields := make(map[string][]int64, len(raw))
	for key, val := range raw {
		name, ok := names[strings.ToLower(key)]
		if !ok {
			return nil, fmt.Errorf("%w: unknown slow-control field %q", asic.ErrConfig, key)
		}
		vs, err := toInt64s(val)
		if err != nil {
			return nil, fmt.Errorf("could not decode slow-control field %q: %w", name, err)
		}
		fields[name] = vs
	}
	return fields, nil
}

func decodeFlags(raw map[string]interface{}) (map[string]int64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	names := canonical(board.FlagNames())
	flags := make(map[string]int64, len(raw))
	for key, val := range raw {
		name, ok := names[strings.ToLower(key)]
		if !ok {
			return nil, fmt.Errorf("%w: unknown firmware flag %q", asic.ErrConfig, key)
		}
		v, err := cast.ToInt64E(val)
		if err != nil {
			return nil, fmt.Errorf("could not decode firmware flag %q: %w", name, err)
		}
		flags[name] = v
	}
	return flags, nil
}

func toInt64s(val interface{}) ([]int64, error) {
	if val == nil {
		return nil, fmt.Errorf("missing value")
	}
	switch reflect.TypeOf(val).Kind() {
	case reflect.Slice, reflect.Array:
		return cast.ToInt64SliceE(val)
	default:
		v, err := cast.ToInt64E(val)
		if err != nil {
			return nil, err
		}
		return []int64{v}, nil
	}
}

// Settings validates the slow-control fields and firmware flags of the
// configuration file.
func (f File) Settings() (asic.Config, board.Firmware, error) {
	return board.NewSettings(f.Fields, f.Firmware)
}

// Options returns the session options described by the configuration file.
// Unset (zero or negative) settings keep the session defaults.
func (f File) Options() []board.Option {
	var opts []board.Option
	if f.Board.Poll > 0 {
		opts = append(opts, board.WithPollInterval(f.Board.Poll))
	}
	if f.Board.Retries > 0 {
		opts = append(opts, board.WithMaxRetries(f.Board.Retries))
	}
	if f.Board.ReadyTimeout > 0 {
		opts = append(opts, board.WithReadyTimeout(f.Board.ReadyTimeout))
	}
	return opts
}

// Writer returns the destination of the log messages.
// Log files are rotated once they reach MaxSize megabytes.
func (l Log) Writer() io.WriteCloser {
	if l.File == "" {
		return nopCloser{os.Stdout}
	}
	return &lumberjack.Logger{
		Filename:   l.File,
		MaxSize:    l.MaxSize,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAge,
		Compress:   l.Compress,
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// Save writes the settings of f to the configuration file fname.
// The file format is inferred from the file extension.
// Unset USB, board and DAQ settings are not written, so that Load
// falls back to their defaults.
func Save(fname string, f File) error {
	v := viper.New()
	set(v, "usb.serial", f.USB.Serial)
	set(v, "usb.vendor-id", f.USB.VendorID)
	set(v, "usb.product-id", f.USB.ProductID)
	set(v, "usb.write-chunk", f.USB.WriteChunk)
	set(v, "usb.read-chunk", f.USB.ReadChunk)
	set(v, "usb.write-timeout", f.USB.WriteTimeout)
	set(v, "usb.read-timeout", f.USB.ReadTimeout)

	set(v, "board.poll", f.Board.Poll)
	set(v, "board.retries", f.Board.Retries)
	set(v, "board.ready-timeout", f.Board.ReadyTimeout)

	set(v, "daq.total", f.DAQ.Total)
	set(v, "daq.capacity", f.DAQ.Capacity)
	set(v, "daq.channels", f.DAQ.Channels)
	set(v, "daq.time-mode", f.DAQ.TimeMode)

	if f.Log.File != "" {
		v.Set("log.file", f.Log.File)
		v.Set("log.max-size", f.Log.MaxSize)
		v.Set("log.max-backups", f.Log.MaxBackups)
		v.Set("log.max-age", f.Log.MaxAge)
		v.Set("log.compress", f.Log.Compress)
	}

	set(v, "db.name", f.DB.Name)
	set(v, "db.config", f.DB.Config)

	for _, name := range sortedKeys(f.Fields) {
		v.Set("asic."+name, f.Fields[name])
	}
	for _, name := range sortedKeys(f.Firmware) {
		v.Set("firmware."+name, f.Firmware[name])
	}

	err := v.WriteConfigAs(fname)
	if err != nil {
		return fmt.Errorf("config: could not write %q: %w", fname, err)
	}
	return nil
}

func set[T comparable](v *viper.Viper, key string, val T) {
	var zero T
	if val == zero {
		return
	}
	switch val := any(val).(type) {
	case time.Duration:
		v.Set(key, val.String())
	default:
		v.Set(key, val)
	}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package usb provides the byte-level link to the CITIROC1A board
// controller, reached through an FTDI USB bridge.
//
// The controller exposes sub-addresses: small registers and FIFOs,
// each written or read as a burst of bytes.
package usb // import "github.com/go-lpc/citiroc/usb"

import (
	"time"
)

const (
	VendorID  = 0x0403 // FTDI vendor ID
	ProductID = 0x6001 // FT245 USB-1 bridge

	SerialPrefix = "CT1A" // serial number prefix of CITIROC1A boards
)

// Config describes how to open and configure a board link.
type Config struct {
	Serial    string // serial number of the board (first board when empty)
	VendorID  uint16
	ProductID uint16

	WriteChunk int // USB transfer size for writes, in bytes
	ReadChunk  int // USB transfer size for reads, in bytes

	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

// DefaultConfig returns the default link configuration.
func DefaultConfig() Config {
	return Config{
		VendorID:     VendorID,
		ProductID:    ProductID,
		WriteChunk:   8192,
		ReadChunk:    32768,
		WriteTimeout: 200 * time.Millisecond,
		ReadTimeout:  200 * time.Millisecond,
	}
}

func (cfg *Config) defaults() {
	def := DefaultConfig()
	if cfg.VendorID == 0 {
		cfg.VendorID = def.VendorID
	}
	if cfg.ProductID == 0 {
		cfg.ProductID = def.ProductID
	}
	if cfg.WriteChunk <= 0 {
		cfg.WriteChunk = def.WriteChunk
	}
	if cfg.ReadChunk <= 0 {
		cfg.ReadChunk = def.ReadChunk
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
}

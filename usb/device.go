// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package usb

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ziutek/ftdi"
)

type ftdiDevice interface {
	Reset() error

	SetBitmode(iomask byte, mode ftdi.Mode) error
	SetFlowControl(flowctrl ftdi.FlowCtrl) error
	SetLatencyTimer(lt int) error
	SetWriteChunkSize(cs int) error
	SetReadChunkSize(cs int) error
	PurgeBuffers() error

	io.Writer
	io.Reader
	io.Closer
}

const (
	hdrSize  = 3    // sub-address + 16b length
	readFlag = 0x80 // set on the sub-address byte of read requests
	maxBurst = 0xffff
)

// Device is a link to a board controller through an FTDI bridge.
type Device struct {
	cfg Config
	ft  ftdiDevice
	buf []byte
}

var (
	ftdiOpen = ftdiOpenImpl
)

func ftdiOpenImpl(cfg Config) (ftdiDevice, error) {
	if cfg.Serial == "" {
		dev, err := ftdi.OpenFirst(int(cfg.VendorID), int(cfg.ProductID), ftdi.ChannelAny)
		return dev, err
	}
	dev, err := ftdi.Open(int(cfg.VendorID), int(cfg.ProductID), "", cfg.Serial, 0, ftdi.ChannelAny)
	return dev, err
}

// Open opens and initializes the link described by cfg.
func Open(cfg Config) (*Device, error) {
	cfg.defaults()
	ft, err := ftdiOpen(cfg)
	if err != nil {
		return nil, fmt.Errorf(
			"usb: could not open FTDI device (vid=0x%x, pid=0x%x, serial=%q): %w",
			cfg.VendorID, cfg.ProductID, cfg.Serial, err,
		)
	}

	dev := &Device{cfg: cfg, ft: ft, buf: make([]byte, hdrSize)}
	err = dev.init()
	if err != nil {
		ft.Close()
		return nil, fmt.Errorf(
			"usb: could not initialize FTDI device (vid=0x%x, pid=0x%x, serial=%q): %w",
			cfg.VendorID, cfg.ProductID, cfg.Serial, err,
		)
	}

	return dev, nil
}

func (dev *Device) init() error {
	var err error

	err = dev.ft.Reset()
	if err != nil {
		return fmt.Errorf("could not reset USB: %w", err)
	}

	err = dev.ft.SetBitmode(0, ftdi.ModeReset)
	if err != nil {
		return fmt.Errorf("could not reset bit mode: %w", err)
	}

	err = dev.ft.SetFlowControl(ftdi.FlowCtrlDisable)
	if err != nil {
		return fmt.Errorf("could not disable flow control: %w", err)
	}

	err = dev.ft.SetLatencyTimer(2)
	if err != nil {
		return fmt.Errorf("could not set latency timer to 2: %w", err)
	}

	err = dev.ft.SetWriteChunkSize(dev.cfg.WriteChunk)
	if err != nil {
		return fmt.Errorf("could not set write chunk-size to %d: %w", dev.cfg.WriteChunk, err)
	}

	err = dev.ft.SetReadChunkSize(dev.cfg.ReadChunk)
	if err != nil {
		return fmt.Errorf("could not set read chunk-size to %d: %w", dev.cfg.ReadChunk, err)
	}

	err = dev.ft.PurgeBuffers()
	if err != nil {
		return fmt.Errorf("could not purge USB buffers: %w", err)
	}

	return nil
}

// Close closes the link.
func (dev *Device) Close() error {
	return dev.ft.Close()
}

// Serial returns the serial number the link was opened with.
func (dev *Device) Serial() string { return dev.cfg.Serial }

func (dev *Device) header(sub uint8, n int) []byte {
	dev.buf[0] = sub
	dev.buf[1] = uint8(n >> 8)
	dev.buf[2] = uint8(n)
	return dev.buf[:hdrSize]
}

// Write writes p to the sub-address sub.
// Write returns the number of bytes of p that were sent.
func (dev *Device) Write(sub uint8, p []byte) (int, error) {
	if len(p) > maxBurst {
		return 0, fmt.Errorf("usb: burst too long for sub-address %d (n=%d)", sub, len(p))
	}

	frame := make([]byte, 0, hdrSize+len(p))
	frame = append(frame, dev.header(sub&^readFlag, len(p))...)
	frame = append(frame, p...)

	start := time.Now()
	n, err := dev.ft.Write(frame)
	n -= hdrSize
	if n < 0 {
		n = 0
	}
	switch {
	case err != nil:
		return n, fmt.Errorf("usb: could not write to sub-address %d: %w", sub, err)
	case n != len(p):
		return n, fmt.Errorf("usb: could not write to sub-address %d: %w", sub, io.ErrShortWrite)
	case time.Since(start) > dev.cfg.WriteTimeout:
		return n, fmt.Errorf("usb: write to sub-address %d timed out: %w", sub, os.ErrDeadlineExceeded)
	}
	return n, nil
}

// Read reads len(p) bytes from the sub-address sub.
// Read returns the number of bytes read into p.
func (dev *Device) Read(sub uint8, p []byte) (int, error) {
	if len(p) > maxBurst {
		return 0, fmt.Errorf("usb: burst too long for sub-address %d (n=%d)", sub, len(p))
	}

	req := dev.header(sub|readFlag, len(p))
	n, err := dev.ft.Write(req)
	switch {
	case err != nil:
		return 0, fmt.Errorf("usb: could not request sub-address %d: %w", sub, err)
	case n != len(req):
		return 0, fmt.Errorf("usb: could not request sub-address %d: %w", sub, io.ErrShortWrite)
	}

	var (
		deadline = time.Now().Add(dev.cfg.ReadTimeout)
		o        = 0
	)
	for o < len(p) {
		n, err := dev.ft.Read(p[o:])
		o += n
		if err != nil && err != io.EOF {
			return o, fmt.Errorf("usb: could not read sub-address %d: %w", sub, err)
		}
		if o == len(p) {
			break
		}
		if time.Now().After(deadline) {
			return o, fmt.Errorf(
				"usb: read of sub-address %d timed out (got=%d, want=%d): %w",
				sub, o, len(p), os.ErrDeadlineExceeded,
			)
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
		}
	}

	return o, nil
}

// DeviceInfo describes a board found on the USB bus.
type DeviceInfo struct {
	VendorID  uint16
	ProductID uint16
	Serial    string
}

var ftdiFindAll = ftdiFindAllImpl

func ftdiFindAllImpl(vid, pid uint16) ([]string, error) {
	lst, err := ftdi.FindAll(int(vid), int(pid))
	if err != nil {
		return nil, err
	}
	serials := make([]string, 0, len(lst))
	for _, dev := range lst {
		serials = append(serials, dev.Serial)
		dev.Close()
	}
	return serials, nil
}

// List returns the CITIROC1A boards connected to the USB bus.
func List() ([]DeviceInfo, error) {
	var devs []DeviceInfo
	for _, pid := range []uint16{0x6001, 0x6014} {
		serials, err := ftdiFindAll(VendorID, pid)
		if err != nil {
			return nil, fmt.Errorf(
				"usb: could not build list of connected FTDI devices (pid=0x%x): %w",
				pid, err,
			)
		}
		for _, serial := range serials {
			if !strings.HasPrefix(serial, SerialPrefix) {
				continue
			}
			devs = append(devs, DeviceInfo{
				VendorID:  VendorID,
				ProductID: pid,
				Serial:    serial,
			})
		}
	}
	return devs, nil
}

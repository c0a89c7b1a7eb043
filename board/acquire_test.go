// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package board

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/go-lpc/citiroc/asic"
	"github.com/go-lpc/citiroc/internal/regs"
	"github.com/go-lpc/citiroc/usb"
)

func TestRequestCycles(t *testing.T) {
	for _, tc := range []struct {
		req  Request
		want int
		acqs []int
	}{
		{req: Request{Total: 250, Capacity: 100}, want: 3, acqs: []int{100, 100, 50}},
		{req: Request{Total: 250}, want: 3, acqs: []int{100, 100, 50}},
		{req: Request{Total: 100}, want: 1, acqs: []int{100}},
		{req: Request{Total: 1}, want: 1, acqs: []int{1}},
		{req: Request{Total: 101}, want: 2, acqs: []int{100, 1}},
		{req: Request{Total: 1000, TimeMode: true}, want: 1, acqs: []int{100}},
		{req: Request{Total: 0, Capacity: 20, TimeMode: true}, want: 1, acqs: []int{20}},
	} {
		t.Run(fmt.Sprintf("%+v", tc.req), func(t *testing.T) {
			if got, want := tc.req.Cycles(), tc.want; got != want {
				t.Fatalf("invalid number of cycles: got=%d, want=%d", got, want)
			}
			var acqs []int
			for i := 0; i < tc.req.Cycles(); i++ {
				acqs = append(acqs, tc.req.acquisitions(i))
			}
			if !reflect.DeepEqual(acqs, tc.acqs) {
				t.Fatalf("invalid acquisitions: got=%v, want=%v", acqs, tc.acqs)
			}
		})
	}
}

func TestRequestNbData(t *testing.T) {
	req := Request{Channels: 1}
	if got, want := req.NbData(100), 200; got != want {
		t.Fatalf("invalid nbData: got=%d, want=%d", got, want)
	}
	req.Channels = 31
	if got, want := req.NbData(10), 320; got != want {
		t.Fatalf("invalid nbData: got=%d, want=%d", got, want)
	}
}

func TestRequestValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		req  Request
	}{
		{"no-acquisition", Request{Total: 0}},
		{"negative", Request{Total: -1}},
		{"capacity", Request{Total: 10, Capacity: 256}},
		{"channels", Request{Total: 10, Channels: 33}},
		{"negative-channels", Request{Total: 10, Channels: -1}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if !errors.Is(err, asic.ErrConfig) {
				t.Fatalf("expected a configuration error, got: %+v", err)
			}
		})
	}
}

func TestInterleave(t *testing.T) {
	hg, lg := interleave(
		[]byte{0x01, 0x02, 0x03},
		[]byte{0xa0, 0xb0, 0xc0},
		[]byte{0x11, 0x12, 0x13},
		[]byte{0x0a, 0x0b, 0x0c},
	)
	if got, want := hg, []uint16{0xa001, 0xb002, 0xc003}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid HG samples: got=%x, want=%x", got, want)
	}
	if got, want := lg, []uint16{0x0a11, 0x0b12, 0x0c13}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid LG samples: got=%x, want=%x", got, want)
	}
}

func TestAcquire(t *testing.T) {
	brd, sim := newTestBoard(t, WithPollInterval(0))
	sim.NotReady = 2

	req := Request{Total: 250, Channels: 1}
	cycles, err := brd.Acquire(context.Background(), req)
	if err != nil {
		t.Fatalf("could not acquire: %+v", err)
	}

	if got, want := len(cycles), 3; got != want {
		t.Fatalf("invalid number of cycles: got=%d, want=%d", got, want)
	}

	for i, cy := range cycles {
		acq := []int{100, 100, 50}[i]
		if got, want := cy.Index, i; got != want {
			t.Fatalf("invalid cycle index: got=%d, want=%d", got, want)
		}
		if got, want := cy.Acquisitions, acq; got != want {
			t.Fatalf("invalid cycle acquisitions: got=%d, want=%d", got, want)
		}
		nb := req.NbData(acq)
		for j, raw := range cy.Raw {
			if got, want := len(raw), nb; got != want {
				t.Fatalf("invalid FIFO-%d size: got=%d, want=%d", j, got, want)
			}
		}
		if got, want := len(cy.HG), nb; got != want {
			t.Fatalf("invalid number of HG samples: got=%d, want=%d", got, want)
		}
		for j := range cy.HG {
			hg, lg := usb.DefaultSample(i, j)
			if cy.HG[j] != hg || cy.LG[j] != lg {
				t.Fatalf(
					"invalid sample (cycle=%d, j=%d): got=(0x%x, 0x%x), want=(0x%x, 0x%x)",
					i, j, cy.HG[j], cy.LG[j], hg, lg,
				)
			}
		}

		hg, lg := cy.Event(acq - 1)
		if got, want := len(hg), req.Channels+1; got != want {
			t.Fatalf("invalid event size: got=%d, want=%d", got, want)
		}
		if got, want := hg[1], cy.HG[nb-1]; got != want {
			t.Fatalf("invalid last HG sample: got=0x%x, want=0x%x", got, want)
		}
		if got, want := lg[0], cy.LG[nb-2]; got != want {
			t.Fatalf("invalid LG sample: got=0x%x, want=0x%x", got, want)
		}
	}

	if on, _ := sim.DAQ(); on {
		t.Fatalf("DAQ left enabled")
	}

	// first cycle: 3 arming attempts, then 4 FIFO reads and DAQ off.
	var subs []uint8
	for _, op := range sim.Ops[:14] {
		subs = append(subs, op.Sub)
	}
	want := []uint8{
		42, 43, 44,
		42, 43, 44,
		42, 43, 44,
		20, 21, 23, 24,
		43,
	}
	if !reflect.DeepEqual(subs, want) {
		t.Fatalf("invalid cycle sequence:\ngot= %v\nwant=%v", subs, want)
	}
	if got, want := sim.Ops[0].Data, []byte{100}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid acquisition count: got=%v, want=%v", got, want)
	}
}

func TestAcquireTimeout(t *testing.T) {
	for _, tc := range []struct {
		name  string
		opts  []Option
		polls int
	}{
		{
			name:  "retries",
			opts:  []Option{WithPollInterval(0), WithMaxRetries(3)},
			polls: 4,
		},
		{
			name:  "deadline",
			opts:  []Option{WithPollInterval(time.Millisecond), WithReadyTimeout(0)},
			polls: 1,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			brd, sim := newTestBoard(t, tc.opts...)
			sim.NotReady = 1 << 20

			_, err := brd.Acquire(context.Background(), Request{Total: 10, Channels: 1})
			if !errors.Is(err, ErrAcquisitionTimeout) {
				t.Fatalf("expected an acquisition timeout, got: %+v", err)
			}
			if got, want := StatusOf(err), StatusTimeout; got != want {
				t.Fatalf("invalid status: got=%v, want=%v", got, want)
			}

			polls := 0
			for _, op := range sim.Ops {
				if op.Sub == regs.SUB_DAQ_READY {
					polls++
				}
			}
			if got, want := polls, tc.polls; got != want {
				t.Fatalf("invalid number of polls: got=%d, want=%d", got, want)
			}
			if on, _ := sim.DAQ(); on {
				t.Fatalf("DAQ left enabled")
			}
		})
	}
}

func TestAcquireErrors(t *testing.T) {
	t.Run("config", func(t *testing.T) {
		brd, sim := newTestBoard(t)
		_, err := brd.Acquire(context.Background(), Request{})
		if !errors.Is(err, ErrConfiguration) {
			t.Fatalf("expected a configuration error, got: %+v", err)
		}
		if got := len(sim.Ops); got != 0 {
			t.Fatalf("unexpected transport operations: %v", sim.Ops)
		}
	})

	t.Run("short-fifo", func(t *testing.T) {
		brd, sim := newTestBoard(t)
		sim.Fault = func(op usb.Op) *usb.Fault {
			if op.Sub == regs.SUB_FIFO_LG_LSB {
				return &usb.Fault{N: len(op.Data) - 1}
			}
			return nil
		}
		cycles, err := brd.Acquire(context.Background(), Request{Total: 150, Channels: 3})
		if !errors.Is(err, ErrTransport) {
			t.Fatalf("expected a transport error, got: %+v", err)
		}
		if len(cycles) != 0 {
			t.Fatalf("unexpected cycles: %d", len(cycles))
		}
		if got, want := len(sim.Ops), 6; got != want {
			t.Fatalf("invalid number of operations: got=%d, want=%d", got, want)
		}
	})

	t.Run("callback", func(t *testing.T) {
		brd, _ := newTestBoard(t)
		stop := fmt.Errorf("stop")
		n := 0
		err := brd.AcquireFunc(context.Background(), Request{Total: 500, Channels: 1}, func(cy Cycle) error {
			n++
			if cy.Index == 1 {
				return stop
			}
			return nil
		})
		if err != stop {
			t.Fatalf("invalid error: got=%+v, want=%v", err, stop)
		}
		if n != 2 {
			t.Fatalf("invalid number of cycles: got=%d, want=2", n)
		}
	})

	t.Run("cancel", func(t *testing.T) {
		brd, sim := newTestBoard(t, WithPollInterval(time.Hour))
		sim.NotReady = 1

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := brd.Acquire(ctx, Request{Total: 10})
		if !errors.Is(err, ErrTransport) || !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected a cancelled acquisition, got: %+v", err)
		}
	})
}

func TestAcquireCancelReady(t *testing.T) {
	for _, tc := range []struct {
		name  string
		write bool
		sub   uint8
	}{
		{name: "acq-count", write: true, sub: regs.SUB_ACQ_COUNT},
		{name: "daq-on", write: true, sub: regs.SUB_DAQ_CTRL},
		{name: "ready", write: false, sub: regs.SUB_DAQ_READY},
	} {
		t.Run(tc.name, func(t *testing.T) {
			brd, sim := newTestBoard(t)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sim.Fault = func(op usb.Op) *usb.Fault {
				if op.Write == tc.write && op.Sub == tc.sub {
					cancel()
				}
				return nil
			}

			_, err := brd.Acquire(ctx, Request{Total: 10, Channels: 1})
			if !errors.Is(err, ErrTransport) {
				t.Fatalf("expected a transport error, got: %+v", err)
			}
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("expected a cancelled context, got: %+v", err)
			}
			if len(sim.Ops) == 0 {
				t.Fatalf("no transport operation recorded")
			}
			last := sim.Ops[len(sim.Ops)-1]
			if got, want := last.Sub, tc.sub; got != want {
				t.Fatalf("invalid last sub-address: got=%d, want=%d (ops=%v)", got, want, sim.Ops)
			}
			if got, want := last.Write, tc.write; got != want {
				t.Fatalf("invalid last operation: got=%v, want=%v", got, want)
			}
		})
	}
}

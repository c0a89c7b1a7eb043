// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package board

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestError(t *testing.T) {
	err := newError(KindTransport, "load slow-control", io.ErrShortWrite)
	if got, want := err.Error(), "board: could not load slow-control: transport error: short write"; got != want {
		t.Fatalf("invalid error message:\ngot= %q\nwant=%q", got, want)
	}
	if got, want := ErrChecksum.Error(), "board: checksum error"; got != want {
		t.Fatalf("invalid error message:\ngot= %q\nwant=%q", got, want)
	}

	wrapped := fmt.Errorf("daq: %w", err)
	for _, tc := range []struct {
		target error
		want   bool
	}{
		{ErrTransport, true},
		{ErrChecksum, false},
		{ErrProtocolState, false},
		{ErrConfiguration, false},
		{ErrAcquisitionTimeout, false},
		{io.ErrShortWrite, true},
		{newError(KindTransport, "other", nil), false},
	} {
		if got := errors.Is(wrapped, tc.target); got != tc.want {
			t.Fatalf("invalid errors.Is(%v): got=%v, want=%v", tc.target, got, tc.want)
		}
	}
}

func TestStatusOf(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want Status
		name string
	}{
		{nil, StatusOK, "ok"},
		{newError(KindTransport, "x", nil), StatusTransport, "transport-failure"},
		{newError(KindChecksum, "x", nil), StatusChecksum, "checksum-failure"},
		{newError(KindProtocolState, "x", nil), StatusProtocolState, "protocol-state-failure"},
		{newError(KindConfiguration, "x", nil), StatusConfiguration, "configuration-failure"},
		{fmt.Errorf("wrap: %w", newError(KindAcquisitionTimeout, "x", nil)), StatusTimeout, "acquisition-timeout"},
		{io.EOF, StatusUnknown, "unknown-failure"},
	} {
		got := StatusOf(tc.err)
		if got != tc.want {
			t.Fatalf("invalid status for %v: got=%v, want=%v", tc.err, got, tc.want)
		}
		if got, want := got.String(), tc.name; got != want {
			t.Fatalf("invalid status name: got=%q, want=%q", got, want)
		}
	}

	if got, want := Kind(42).String(), "Kind(42)"; got != want {
		t.Fatalf("invalid kind name: got=%q, want=%q", got, want)
	}
}

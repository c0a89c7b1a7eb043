// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package board

import (
	"errors"
	"fmt"
)

// Kind classifies the errors returned by a Board.
type Kind uint8

const (
	KindTransport          Kind = iota + 1 // transport failure or byte-count mismatch
	KindChecksum                           // configuration loaded but did not verify
	KindProtocolState                      // operation attempted in the wrong session state
	KindConfiguration                      // invalid configuration values
	KindAcquisitionTimeout                 // FIFO never became ready
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport error"
	case KindChecksum:
		return "checksum error"
	case KindProtocolState:
		return "protocol state error"
	case KindConfiguration:
		return "configuration error"
	case KindAcquisitionTimeout:
		return "acquisition timeout"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Error describes a failed board operation.
type Error struct {
	Kind  Kind
	Op    string // operation that failed
	State State  // handshake state reached when the error occurred
	Err   error  // underlying error, if any
}

var (
	ErrTransport          = &Error{Kind: KindTransport}
	ErrChecksum           = &Error{Kind: KindChecksum}
	ErrProtocolState      = &Error{Kind: KindProtocolState}
	ErrConfiguration      = &Error{Kind: KindConfiguration}
	ErrAcquisitionTimeout = &Error{Kind: KindAcquisitionTimeout}
)

func (e *Error) Error() string {
	msg := "board: " + e.Kind.String()
	if e.Op != "" {
		msg = "board: could not " + e.Op + ": " + e.Kind.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Status is the outcome of a board operation, as reported to hosts.
type Status uint8

const (
	StatusOK Status = iota
	StatusTransport
	StatusChecksum
	StatusProtocolState
	StatusConfiguration
	StatusTimeout
	StatusUnknown
)

func (st Status) String() string {
	switch st {
	case StatusOK:
		return "ok"
	case StatusTransport:
		return "transport-failure"
	case StatusChecksum:
		return "checksum-failure"
	case StatusProtocolState:
		return "protocol-state-failure"
	case StatusConfiguration:
		return "configuration-failure"
	case StatusTimeout:
		return "acquisition-timeout"
	}
	return "unknown-failure"
}

// StatusOf maps the error returned by a board operation to its status.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var e *Error
	if !errors.As(err, &e) {
		return StatusUnknown
	}
	switch e.Kind {
	case KindTransport:
		return StatusTransport
	case KindChecksum:
		return StatusChecksum
	case KindProtocolState:
		return StatusProtocolState
	case KindConfiguration:
		return StatusConfiguration
	case KindAcquisitionTimeout:
		return StatusTimeout
	}
	return StatusUnknown
}

// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package devlock provides advisory locks on boards, shared between
// processes of the same host.
package devlock // import "github.com/go-lpc/citiroc/internal/devlock"

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// Dir is the directory holding the lock files.
var Dir = os.TempDir()

// ErrLocked is returned when a board is already locked.
var ErrLocked = errors.New("devlock: board already in use")

// Lock is an exclusive lock on a board.
type Lock struct {
	f *os.File
}

// Path returns the path of the lock file for the named board.
func Path(name string) string {
	name = strings.NewReplacer("/", "_", string(os.PathSeparator), "_").Replace(name)
	return filepath.Join(Dir, "citiroc-"+name+".lock")
}

// Acquire takes the lock of the named board.
// Acquire does not block: it returns ErrLocked if the board is in use.
func Acquire(name string) (*Lock, error) {
	fname := Path(name)
	f, err := os.OpenFile(fname, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("devlock: could not open lock file %q: %w", fname, err)
	}

	err = unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w (lock=%q)", ErrLocked, fname)
		}
		return nil, fmt.Errorf("devlock: could not lock %q: %w", fname, err)
	}

	_ = f.Truncate(0)
	fmt.Fprintf(f, "%d\n", os.Getpid())

	return &Lock{f: f}, nil
}

// Release releases the lock.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	defer func() { l.f = nil }()

	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	if err != nil {
		_ = l.f.Close()
		return fmt.Errorf("devlock: could not unlock %q: %w", l.f.Name(), err)
	}

	err = l.f.Close()
	if err != nil {
		return fmt.Errorf("devlock: could not close lock file %q: %w", l.f.Name(), err)
	}
	return nil
}

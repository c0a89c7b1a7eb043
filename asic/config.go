// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asic

import (
	"fmt"
	"sort"
)

// Config holds the values of all the fields of the slow-control register.
// A Config is validated against the Catalog when it is created.
type Config struct {
	vals [][]int64 // values, indexed like the catalog
}

// NewConfig creates a configuration from a set of named field values.
// Every field of the Catalog must be present with exactly Count values,
// each fitting in the field width. Unknown names are rejected.
// Negative values are accepted and encoded as zeros.
func NewConfig(raw map[string][]int64) (Config, error) {
	for name := range raw {
		if _, ok := byName[name]; !ok {
			return Config{}, fmt.Errorf("%w: unknown field %q", ErrConfig, name)
		}
	}

	cfg := Config{vals: make([][]int64, len(catalog))}
	for i, f := range catalog {
		vs, ok := raw[f.Name]
		if !ok {
			return Config{}, fmt.Errorf("%w: missing field %q", ErrConfig, f.Name)
		}
		if len(vs) != f.Count {
			return Config{}, fmt.Errorf(
				"%w: field %q: invalid number of values (got=%d, want=%d)",
				ErrConfig, f.Name, len(vs), f.Count,
			)
		}
		for j, v := range vs {
			if v > f.Max() {
				return Config{}, fmt.Errorf(
					"%w: field %q[%d]: value %d overflows %d bits",
					ErrConfig, f.Name, j, v, f.Width,
				)
			}
		}
		cfg.vals[i] = append([]int64(nil), vs...)
	}

	return cfg, nil
}

// Zero returns a configuration with all fields set to zero.
func Zero() Config {
	cfg := Config{vals: make([][]int64, len(catalog))}
	for i, f := range catalog {
		cfg.vals[i] = make([]int64, f.Count)
	}
	return cfg
}

// Valid reports whether cfg was created by NewConfig, Zero or Decode.
func (cfg Config) Valid() bool { return len(cfg.vals) == len(catalog) }

// Get returns the values of the named field.
func (cfg Config) Get(name string) ([]int64, error) {
	i, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown field %q", ErrConfig, name)
	}
	if !cfg.Valid() {
		return make([]int64, catalog[i].Count), nil
	}
	return append([]int64(nil), cfg.vals[i]...), nil
}

// Set sets the value of the i-th element of the named field.
func (cfg *Config) Set(name string, i int, v int64) error {
	j, ok := byName[name]
	if !ok {
		return fmt.Errorf("%w: unknown field %q", ErrConfig, name)
	}
	f := catalog[j]
	if i < 0 || i >= f.Count {
		return fmt.Errorf("%w: field %q: index %d out of range [0,%d)", ErrConfig, name, i, f.Count)
	}
	if v > f.Max() {
		return fmt.Errorf("%w: field %q[%d]: value %d overflows %d bits", ErrConfig, name, i, v, f.Width)
	}
	if !cfg.Valid() {
		*cfg = Zero()
	}
	cfg.vals[j][i] = v
	return nil
}

// Values returns a copy of all the field values, keyed by field name.
func (cfg Config) Values() map[string][]int64 {
	if !cfg.Valid() {
		cfg = Zero()
	}
	o := make(map[string][]int64, len(catalog))
	for i, f := range catalog {
		o[f.Name] = append([]int64(nil), cfg.vals[i]...)
	}
	return o
}

// Names returns the sorted list of field names.
func Names() []string {
	o := make([]string, 0, len(catalog))
	for _, f := range catalog {
		o = append(o, f.Name)
	}
	sort.Strings(o)
	return o
}

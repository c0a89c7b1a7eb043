// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asic

import (
	"fmt"
)

// Vector is the content of the slow-control register, one bit per element.
// Element i holds bit i of the register, as laid out by the Catalog.
type Vector [NBits]uint8

// Vector encodes the configuration into a fresh slow-control vector.
func (cfg Config) Vector() Vector {
	if !cfg.Valid() {
		cfg = Zero()
	}

	var (
		vec  Vector
		used [NBits]bool
	)
	for i, f := range catalog {
		for j, v := range cfg.vals[i] {
			beg := f.pos(j)
			for k := beg; k < beg+f.Width; k++ {
				if used[k] {
					panic(fmt.Errorf("asic: field %q[%d] encoded twice at bit %d", f.Name, j, k))
				}
				used[k] = true
			}
			putBits(vec[beg:beg+f.Width], v)
		}
	}
	return vec
}

// Encode validates the provided field values and encodes them into a
// slow-control vector.
func Encode(raw map[string][]int64) (Vector, error) {
	cfg, err := NewConfig(raw)
	if err != nil {
		return Vector{}, err
	}
	return cfg.Vector(), nil
}

// Decode extracts field values from a slow-control vector.
func Decode(vec Vector) Config {
	cfg := Config{vals: make([][]int64, len(catalog))}
	for i, f := range catalog {
		vs := make([]int64, f.Count)
		for j := range vs {
			beg := f.pos(j)
			vs[j] = int64(FromBits(vec[beg : beg+f.Width]))
		}
		cfg.vals[i] = vs
	}
	return cfg
}

// Bit returns the value of the i-th bit of the vector.
func (vec *Vector) Bit(i int) uint8 { return vec[i] & 1 }

// SetBit sets the i-th bit of the vector.
func (vec *Vector) SetBit(i int, v uint8) { vec[i] = v & 1 }

// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asic

import (
	"fmt"
)

// ToBits returns the width-bit big-endian representation of v.
// Negative values are encoded as all zeros.
// ToBits returns an error if width is not in [1,32] or if v does not
// fit into width bits.
func ToBits(v int64, width int) ([]uint8, error) {
	if width < 1 || width > maxWidth {
		return nil, fmt.Errorf("asic: invalid bit width %d", width)
	}
	if v > 1<<width-1 {
		return nil, fmt.Errorf("asic: value %d overflows %d bits", v, width)
	}
	o := make([]uint8, width)
	putBits(o, v)
	return o, nil
}

// FromBits decodes a big-endian sequence of bits.
func FromBits(bits []uint8) uint64 {
	var v uint64
	for _, b := range bits {
		v = v<<1 | uint64(b&1)
	}
	return v
}

// putBits writes v MSB-first into dst, filling from the last position.
func putBits(dst []uint8, v int64) {
	for i := len(dst) - 1; i >= 0; i-- {
		if v <= 0 {
			dst[i] = 0
			continue
		}
		dst[i] = uint8(v & 1)
		v >>= 1
	}
}

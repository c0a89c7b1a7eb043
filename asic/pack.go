// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asic

// Payload is the slow-control vector as sent to the board controller.
//
// The controller shifts bits into the ASIC tail first: the vector is
// reversed end to end and each group of 8 consecutive bits of the
// reversed vector forms one byte, most significant bit first.
type Payload [NBytes]byte

// Pack converts a slow-control vector into its wire representation.
func Pack(vec Vector) Payload {
	var p Payload
	for k := 0; k < NBits; k++ {
		// bit k of the register is bit NBits-1-k of the stream.
		r := NBits - 1 - k
		p[r/8] |= (vec[k] & 1) << (7 - r%8)
	}
	return p
}

// Unpack converts a wire payload back into a slow-control vector.
func Unpack(p Payload) Vector {
	var vec Vector
	for r := 0; r < NBits; r++ {
		vec[NBits-1-r] = (p[r/8] >> (7 - r%8)) & 1
	}
	return vec
}

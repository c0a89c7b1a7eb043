// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cformat describes and handles acquisition cycles in the
// CITIROC raw data format.
//
// A raw data stream is made of a header, a sequence of cycle records and
// an end-of-stream marker:
//
//	header: 0xc1, run number (u32)
//	cycle:  0xcc, index (u32), acquisitions (u16), channels (u8), nbData (u32),
//	        high-gain samples (u16 x nbData), low-gain samples (u16 x nbData),
//	        0xca, CRC-16 of the record (u16)
//	end:    0xce
//
// All values are big-endian.
package cformat // import "github.com/go-lpc/citiroc/internal/cformat"

const (
	fileHeader = 0xc1 // stream header marker
	cyHeader   = 0xcc // cycle header marker
	cyTrailer  = 0xca // cycle trailer marker
	endMarker  = 0xce // end of stream marker
)

// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package asic describes the slow-control register of the CITIROC1A ASIC
// and encodes configuration values into the bitstream loaded into it.
//
// The whole configuration of the ASIC is a single 1144-bit shift register.
// Named fields are placed at fixed bit offsets by the Catalog; a Config
// holds validated values for every field and is turned into a Vector,
// which is packed into the 143-byte Payload sent to the board controller.
package asic // import "github.com/go-lpc/citiroc/asic"

import (
	"errors"
)

const (
	NBits  = 1144      // number of bits in the slow-control register
	NBytes = NBits / 8 // number of bytes in a packed payload
	NChans = 32        // number of input channels

	maxWidth = 32
)

// ErrConfig is returned when configuration values do not match the Catalog.
var ErrConfig = errors.New("asic: invalid configuration")

// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xcnv provides tools to convert CITIROC raw data to/from LCIO.
//
// Each acquisition cycle is stored as one LCIO event holding two
// GenericObject collections, CITIROC_HG and CITIROC_LG, with one entry
// per acquisition. Each entry holds the Channels+1 samples of that
// acquisition.
package xcnv // import "github.com/go-lpc/citiroc/internal/xcnv"

const (
	detector = "CITIROC1A"

	hgName = "CITIROC_HG"
	lgName = "CITIROC_LG"
)

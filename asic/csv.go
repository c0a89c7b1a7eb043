// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asic

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteCSV writes the vector as a list of "address;bit" lines,
// from the last bit of the register down to bit 0.
func WriteCSV(w io.Writer, vec Vector) error {
	bw := bufio.NewWriter(w)
	for i := NBits - 1; i >= 0; i-- {
		fmt.Fprintf(bw, "%d;%d\n", i, vec.Bit(i))
	}

	err := bw.Flush()
	if err != nil {
		return fmt.Errorf("asic: could not flush slow-control bits: %w", err)
	}
	return nil
}

// ReadCSV reads a vector in the format written by WriteCSV.
// Lines starting with '#' are ignored.
func ReadCSV(r io.Reader) (Vector, error) {
	var (
		vec  Vector
		cnt  = NBits - 1
		sc   = bufio.NewScanner(r)
		line int
	)

	for sc.Scan() {
		line++
		txt := strings.TrimSpace(sc.Text())
		if txt == "" || strings.HasPrefix(txt, "#") {
			continue
		}
		toks := strings.Split(txt, ";")
		if len(toks) != 2 {
			return vec, fmt.Errorf("asic: invalid slow-control file:%d: line=%q", line, txt)
		}

		addr, err := strconv.ParseUint(strings.TrimSpace(toks[0]), 10, 32)
		if err != nil {
			return vec, fmt.Errorf("asic: could not parse address %q in %q: %w", toks[0], txt, err)
		}

		v, err := strconv.ParseUint(strings.TrimSpace(toks[1]), 10, 8)
		if err != nil {
			return vec, fmt.Errorf("asic: could not parse bit %q in %q: %w", toks[1], txt, err)
		}
		if v > 1 {
			return vec, fmt.Errorf("asic: invalid bit value line:%d: got=%d", line, v)
		}

		if int(addr) != cnt {
			return vec, fmt.Errorf(
				"asic: invalid bit address line:%d: got=%d, want=%d",
				line, addr, cnt,
			)
		}

		vec.SetBit(cnt, uint8(v))
		if cnt == 0 {
			return vec, nil
		}
		cnt--
	}

	err := sc.Err()
	if err != nil {
		return vec, fmt.Errorf("asic: could not scan slow-control file: %w", err)
	}

	return vec, fmt.Errorf("asic: reached end of slow-control file before last bit")
}

// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asic

import (
	"bytes"
	"strings"
	"testing"
)

func TestCSV(t *testing.T) {
	cfg := Zero()
	_ = cfg.Set("threshold1", 0, 300)
	_ = cfg.Set("inputDac", 7, 129)
	_ = cfg.Set("enTriggersOutput", 0, 1)
	want := cfg.Vector()

	buf := new(bytes.Buffer)
	err := WriteCSV(buf, want)
	if err != nil {
		t.Fatalf("could not write csv: %+v", err)
	}

	if !strings.HasPrefix(buf.String(), "1143;1\n1142;0\n") {
		t.Fatalf("invalid csv header: %q", buf.String()[:16])
	}

	got, err := ReadCSV(strings.NewReader("# slow-control\n" + buf.String()))
	if err != nil {
		t.Fatalf("could not read csv: %+v", err)
	}

	if got != want {
		t.Fatalf("invalid csv round-trip")
	}
}

func TestReadCSVErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		txt  string
		err  string
	}{
		{
			name: "tokens",
			txt:  "1143;1;0\n",
			err:  `asic: invalid slow-control file:1: line="1143;1;0"`,
		},
		{
			name: "address",
			txt:  "1142;1\n",
			err:  "asic: invalid bit address line:1: got=1142, want=1143",
		},
		{
			name: "bit",
			txt:  "1143;2\n",
			err:  "asic: invalid bit value line:1: got=2",
		},
		{
			name: "parse",
			txt:  "x;1\n",
			err:  `asic: could not parse address "x"`,
		},
		{
			name: "eof",
			txt:  "1143;1\n1142;1\n",
			err:  "asic: reached end of slow-control file before last bit",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tc.txt))
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !strings.Contains(err.Error(), tc.err) {
				t.Fatalf("invalid error:\ngot= %v\nwant=%v", err, tc.err)
			}
		})
	}
}

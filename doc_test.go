// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package citiroc

import (
	"runtime/debug"
	"testing"
)

func TestVersionOf(t *testing.T) {
	for _, tc := range []struct {
		name    string
		info    *debug.BuildInfo
		version string
		sum     string
	}{
		{
			name: "nil",
		},
		{
			name: "main",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: modulePath, Version: "v0.3.0", Sum: "h1:main"},
			},
			version: "v0.3.0",
			sum:     "h1:main",
		},
		{
			name: "devel",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: modulePath, Version: "(devel)"},
			},
		},
		{
			name: "dep",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "example.org/daq"},
				Deps: []*debug.Module{
					{Path: "github.com/go-daq/tdaq", Version: "v0.14.2"},
					{Path: modulePath, Version: "v0.2.1", Sum: "h1:dep"},
				},
			},
			version: "v0.2.1",
			sum:     "h1:dep",
		},
		{
			name: "replace-path-version",
			info: &debug.BuildInfo{
				Deps: []*debug.Module{
					{
						Path:    modulePath,
						Version: "v0.2.1",
						Replace: &debug.Module{Path: "example.org/fork", Version: "v0.2.2", Sum: "h1:fork"},
					},
				},
			},
			version: "example.org/fork v0.2.2",
			sum:     "h1:fork",
		},
		{
			name: "replace-local",
			info: &debug.BuildInfo{
				Deps: []*debug.Module{
					{
						Path:    modulePath,
						Version: "v0.2.1",
						Replace: &debug.Module{},
					},
				},
			},
			version: "v0.2.1*",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			version, sum := versionOf(tc.info)
			if got, want := version, tc.version; got != want {
				t.Fatalf("invalid version: got=%q, want=%q", got, want)
			}
			if got, want := sum, tc.sum; got != want {
				t.Fatalf("invalid sum: got=%q, want=%q", got, want)
			}
		})
	}
}

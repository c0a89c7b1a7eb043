// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package conddb

import (
	"context"
	"fmt"
	"time"
)

var now = time.Now

// DAQParams describes the acquisition parameters of a configuration.
type DAQParams struct {
	Total    int  // total number of acquisitions
	Capacity int  // number of acquisitions per FIFO cycle
	Channels int  // number of channels per acquisition
	TimeMode bool // acquire until stopped
}

// DAQParams returns the acquisition parameters of the named configuration.
func (db *DB) DAQParams(ctx context.Context, cfg string) (DAQParams, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		params DAQParams
		found  bool
	)
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT total, capacity, channels, time_mode FROM daq_params WHERE config=?",
		cfg,
	)
	if err != nil {
		return params, fmt.Errorf("conddb: could not query daq params for config=%q: %w", cfg, err)
	}
	defer rows.Close()

	for rows.Next() {
		var mode int
		err = rows.Scan(&params.Total, &params.Capacity, &params.Channels, &mode)
		if err != nil {
			return params, fmt.Errorf("conddb: could not scan daq params for config=%q: %w", cfg, err)
		}
		params.TimeMode = mode != 0
		found = true
	}

	if err := rows.Err(); err != nil {
		return params, fmt.Errorf("conddb: could not scan db for daq params (config=%q): %w", cfg, err)
	}

	if err := ctx.Err(); err != nil {
		return params, fmt.Errorf("conddb: context error while retrieving daq params (config=%q): %w", cfg, err)
	}

	if !found {
		return params, fmt.Errorf("conddb: no daq params for config=%q", cfg)
	}

	return params, nil
}

// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package conddb

import (
	"context"
	"fmt"
	"sort"
)

// ASICFields returns the slow-control field values of the named
// configuration, keyed by field name.
// Each field holds one value per element, ordered by element index.
func (db *DB) ASICFields(ctx context.Context, cfg string) (map[string][]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := db.db.QueryContext(
		ctx,
		"SELECT name, idx, value FROM asic_fields WHERE config=? ORDER BY name, idx",
		cfg,
	)
	if err != nil {
		return nil, fmt.Errorf("conddb: could not query asic fields for config=%q: %w", cfg, err)
	}
	defer rows.Close()

	elems := make(map[string]map[int]int64)
	for rows.Next() {
		var (
			name string
			idx  int
			v    int64
		)
		err = rows.Scan(&name, &idx, &v)
		if err != nil {
			return nil, fmt.Errorf("conddb: could not scan asic field for config=%q: %w", cfg, err)
		}
		if idx < 0 {
			return nil, fmt.Errorf("conddb: invalid index %d for asic field %q (config=%q)", idx, name, cfg)
		}
		m, ok := elems[name]
		if !ok {
			m = make(map[int]int64)
			elems[name] = m
		}
		if _, dup := m[idx]; dup {
			return nil, fmt.Errorf("conddb: duplicate index %d for asic field %q (config=%q)", idx, name, cfg)
		}
		m[idx] = v
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conddb: could not scan db for asic fields (config=%q): %w", cfg, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("conddb: context error while retrieving asic fields (config=%q): %w", cfg, err)
	}

	if len(elems) == 0 {
		return nil, fmt.Errorf("conddb: no asic fields for config=%q", cfg)
	}

	fields := make(map[string][]int64, len(elems))
	for name, m := range elems {
		vs := make([]int64, len(m))
		for idx, v := range m {
			if idx >= len(vs) {
				return nil, fmt.Errorf("conddb: missing elements for asic field %q (config=%q)", name, cfg)
			}
			vs[idx] = v
		}
		fields[name] = vs
	}

	return fields, nil
}

// FirmwareFlags returns the firmware flag values of the named
// configuration, keyed by flag name.
func (db *DB) FirmwareFlags(ctx context.Context, cfg string) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := db.db.QueryContext(
		ctx,
		"SELECT name, value FROM firmware_flags WHERE config=?",
		cfg,
	)
	if err != nil {
		return nil, fmt.Errorf("conddb: could not query firmware flags for config=%q: %w", cfg, err)
	}
	defer rows.Close()

	flags := make(map[string]int64)
	for rows.Next() {
		var (
			name string
			v    int64
		)
		err = rows.Scan(&name, &v)
		if err != nil {
			return nil, fmt.Errorf("conddb: could not scan firmware flag for config=%q: %w", cfg, err)
		}
		flags[name] = v
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conddb: could not scan db for firmware flags (config=%q): %w", cfg, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("conddb: context error while retrieving firmware flags (config=%q): %w", cfg, err)
	}

	return flags, nil
}

// SaveConfig stores a complete configuration under the name cfg: the
// slow-control field values, the firmware flags and the DAQ parameters.
// All rows are written in a single transaction.
func (db *DB) SaveConfig(ctx context.Context, cfg string, fields map[string][]int64, flags map[string]int64, params DAQParams) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("conddb: could not start transaction for config=%q: %w", cfg, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, "INSERT INTO configs (name, datetime) VALUES (?, ?)", cfg, now())
	if err != nil {
		return fmt.Errorf("conddb: could not insert config=%q: %w", cfg, err)
	}

	for _, name := range sortedKeys(fields) {
		for idx, v := range fields[name] {
			_, err = tx.ExecContext(
				ctx,
				"INSERT INTO asic_fields (config, name, idx, value) VALUES (?, ?, ?, ?)",
				cfg, name, idx, v,
			)
			if err != nil {
				return fmt.Errorf("conddb: could not insert asic field %q[%d] (config=%q): %w", name, idx, cfg, err)
			}
		}
	}

	for _, name := range sortedKeys(flags) {
		_, err = tx.ExecContext(
			ctx,
			"INSERT INTO firmware_flags (config, name, value) VALUES (?, ?, ?)",
			cfg, name, flags[name],
		)
		if err != nil {
			return fmt.Errorf("conddb: could not insert firmware flag %q (config=%q): %w", name, cfg, err)
		}
	}

	mode := 0
	if params.TimeMode {
		mode = 1
	}
	_, err = tx.ExecContext(
		ctx,
		"INSERT INTO daq_params (config, total, capacity, channels, time_mode) VALUES (?, ?, ?, ?, ?)",
		cfg, params.Total, params.Capacity, params.Channels, mode,
	)
	if err != nil {
		return fmt.Errorf("conddb: could not insert daq params (config=%q): %w", cfg, err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("conddb: could not commit config=%q: %w", cfg, err)
	}

	return nil
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

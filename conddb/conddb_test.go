// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package conddb

import (
	"context"
	"database/sql/driver"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-lpc/citiroc/internal/fakedb"
)

func init() {
	drvName = "fakedb"
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open conddb: %+v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen(t *testing.T) {
	db := openTestDB(t)
	if got, want := db.Name(), "fakedb"; got != want {
		t.Fatalf("invalid db name: got=%q, want=%q", got, want)
	}
}

func TestLastConfig(t *testing.T) {
	db := openTestDB(t)

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"name"},
		Values: [][]driver.Value{
			{"LPC2026_3"},
		},
	}, func(ctx context.Context) error {
		cfg, err := db.LastConfig(ctx)
		if err != nil {
			t.Fatalf("could not retrieve last cfg: %+v", err)
		}

		if got, want := cfg, "LPC2026_3"; got != want {
			t.Fatalf("invalid last cfg: got=%q, want=%q", got, want)
		}
		return nil
	})

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"name"},
	}, func(ctx context.Context) error {
		_, err := db.LastConfig(ctx)
		if err == nil {
			t.Fatalf("expected an error on an empty db")
		}
		if got, want := err.Error(), `conddb: no configuration in "fakedb" db`; got != want {
			t.Fatalf("invalid error: got=%q, want=%q", got, want)
		}
		return nil
	})
}

func TestConfigs(t *testing.T) {
	db := openTestDB(t)

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"name"},
		Values: [][]driver.Value{
			{"cfg-2"}, {"cfg-1"}, {"cfg-0"},
		},
	}, func(ctx context.Context) error {
		names, err := db.Configs(ctx)
		if err != nil {
			t.Fatalf("could not retrieve configs: %+v", err)
		}
		if got, want := names, []string{"cfg-2", "cfg-1", "cfg-0"}; !reflect.DeepEqual(got, want) {
			t.Fatalf("invalid configs: got=%q, want=%q", got, want)
		}
		return nil
	})
}

func TestQueryContext(t *testing.T) {
	db := openTestDB(t)

	const queryLastCfg = "SELECT name FROM configs ORDER BY datetime DESC LIMIT 1"

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"name"},
		Values: [][]driver.Value{
			{"LPC2026_3"},
		},
	}, func(ctx context.Context) error {
		rows, err := db.QueryContext(ctx, queryLastCfg)
		if err != nil {
			t.Fatalf("could not execute query %q: %+v", queryLastCfg, err)
		}
		defer rows.Close()

		var name string
		for rows.Next() {
			err = rows.Scan(&name)
			if err != nil {
				t.Fatalf("could not scan name: %+v", err)
			}
		}

		if err := rows.Err(); err != nil {
			t.Fatalf("could not scan name: %+v", err)
		}

		if got, want := name, "LPC2026_3"; got != want {
			t.Fatalf("invalid last cfg: got=%q, want=%q", got, want)
		}
		return nil
	})
}

func TestASICFields(t *testing.T) {
	db := openTestDB(t)

	for _, tc := range []struct {
		name string
		rows [][]driver.Value
		want map[string][]int64
		err  string
	}{
		{
			name: "ok",
			rows: [][]driver.Value{
				{"calibDacQ", int64(0), int64(3)},
				{"calibDacQ", int64(1), int64(4)},
				{"enDiscri", int64(0), int64(1)},
				{"threshold1", int64(0), int64(250)},
			},
			want: map[string][]int64{
				"calibDacQ":  {3, 4},
				"enDiscri":   {1},
				"threshold1": {250},
			},
		},
		{
			name: "unordered-elements",
			rows: [][]driver.Value{
				{"calibDacQ", int64(1), int64(4)},
				{"calibDacQ", int64(0), int64(3)},
			},
			want: map[string][]int64{
				"calibDacQ": {3, 4},
			},
		},
		{
			name: "hole",
			rows: [][]driver.Value{
				{"calibDacQ", int64(0), int64(3)},
				{"calibDacQ", int64(2), int64(4)},
			},
			err: `conddb: missing elements for asic field "calibDacQ" (config="cfg")`,
		},
		{
			name: "duplicate",
			rows: [][]driver.Value{
				{"threshold1", int64(0), int64(3)},
				{"threshold1", int64(0), int64(4)},
			},
			err: `conddb: duplicate index 0 for asic field "threshold1" (config="cfg")`,
		},
		{
			name: "negative-index",
			rows: [][]driver.Value{
				{"threshold1", int64(-1), int64(3)},
			},
			err: `conddb: invalid index -1 for asic field "threshold1" (config="cfg")`,
		},
		{
			name: "empty",
			err:  `conddb: no asic fields for config="cfg"`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_ = fakedb.Run(context.Background(), fakedb.Rows{
				Names:  []string{"name", "idx", "value"},
				Values: tc.rows,
			}, func(ctx context.Context) error {
				got, err := db.ASICFields(ctx, "cfg")
				switch {
				case err != nil && tc.err != "":
					if got, want := err.Error(), tc.err; got != want {
						t.Fatalf("invalid error: got=%q, want=%q", got, want)
					}
					return nil
				case err != nil:
					t.Fatalf("could not retrieve asic fields: %+v", err)
				case tc.err != "":
					t.Fatalf("expected an error (%s)", tc.err)
				}
				if !reflect.DeepEqual(got, tc.want) {
					t.Fatalf("invalid asic fields:\ngot= %v\nwant=%v", got, tc.want)
				}
				return nil
			})
		})
	}
}

func TestFirmwareFlags(t *testing.T) {
	db := openTestDB(t)

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"name", "value"},
		Values: [][]driver.Value{
			{"enableHoldExt", int64(1)},
			{"enableExtTrigger", int64(0)},
		},
	}, func(ctx context.Context) error {
		flags, err := db.FirmwareFlags(ctx, "cfg")
		if err != nil {
			t.Fatalf("could not retrieve firmware flags: %+v", err)
		}
		want := map[string]int64{"enableHoldExt": 1, "enableExtTrigger": 0}
		if !reflect.DeepEqual(flags, want) {
			t.Fatalf("invalid firmware flags: got=%v, want=%v", flags, want)
		}
		return nil
	})
}

func TestDAQParams(t *testing.T) {
	db := openTestDB(t)

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"total", "capacity", "channels", "time_mode"},
		Values: [][]driver.Value{
			{int64(250), int64(100), int64(32), int64(0)},
		},
	}, func(ctx context.Context) error {
		params, err := db.DAQParams(ctx, "cfg")
		if err != nil {
			t.Fatalf("could not retrieve daq params: %+v", err)
		}
		want := DAQParams{Total: 250, Capacity: 100, Channels: 32}
		if params != want {
			t.Fatalf("invalid daq params: got=%+v, want=%+v", params, want)
		}
		return nil
	})

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"total", "capacity", "channels", "time_mode"},
	}, func(ctx context.Context) error {
		_, err := db.DAQParams(ctx, "cfg")
		if err == nil {
			t.Fatalf("expected an error")
		}
		if got, want := err.Error(), `conddb: no daq params for config="cfg"`; got != want {
			t.Fatalf("invalid error: got=%q, want=%q", got, want)
		}
		return nil
	})
}

func TestSaveConfig(t *testing.T) {
	db := openTestDB(t)

	date := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return date }
	defer func() { now = time.Now }()

	var log fakedb.Log
	err := fakedb.RunLog(context.Background(), fakedb.Rows{}, &log, func(ctx context.Context) error {
		return db.SaveConfig(
			ctx, "cfg",
			map[string][]int64{
				"threshold1": {250},
				"calibDacQ":  {3, 4},
			},
			map[string]int64{
				"powerOn":   1,
				"holdDelay": 42,
			},
			DAQParams{Total: 250, Capacity: 100, Channels: 32, TimeMode: true},
		)
	})
	if err != nil {
		t.Fatalf("could not save config: %+v", err)
	}

	if got, want := log.Commits, 1; got != want {
		t.Fatalf("invalid number of commits: got=%d, want=%d", got, want)
	}

	want := []struct {
		query string
		args  []driver.Value
	}{
		{"INSERT INTO configs", []driver.Value{"cfg", date}},
		{"INSERT INTO asic_fields", []driver.Value{"cfg", "calibDacQ", int64(0), int64(3)}},
		{"INSERT INTO asic_fields", []driver.Value{"cfg", "calibDacQ", int64(1), int64(4)}},
		{"INSERT INTO asic_fields", []driver.Value{"cfg", "threshold1", int64(0), int64(250)}},
		{"INSERT INTO firmware_flags", []driver.Value{"cfg", "holdDelay", int64(42)}},
		{"INSERT INTO firmware_flags", []driver.Value{"cfg", "powerOn", int64(1)}},
		{"INSERT INTO daq_params", []driver.Value{"cfg", int64(250), int64(100), int64(32), int64(1)}},
	}

	if got, want := len(log.Execs), len(want); got != want {
		t.Fatalf("invalid number of statements: got=%d, want=%d", got, want)
	}

	for i, want := range want {
		exec := log.Execs[i]
		if !strings.HasPrefix(exec.Query, want.query) {
			t.Fatalf("invalid statement %d: got=%q, want=%q", i, exec.Query, want.query)
		}
		if got := exec.Args; !reflect.DeepEqual(got, want.args) {
			t.Fatalf("invalid statement %d args: got=%v, want=%v", i, got, want.args)
		}
	}
}

func TestDBErrors(t *testing.T) {
	db := openTestDB(t)

	errBoom := errors.New("boom")
	_ = fakedb.RunFail(context.Background(), errBoom, func(ctx context.Context) error {
		for _, tc := range []struct {
			name string
			f    func() error
		}{
			{"last-config", func() error { _, err := db.LastConfig(ctx); return err }},
			{"configs", func() error { _, err := db.Configs(ctx); return err }},
			{"asic-fields", func() error { _, err := db.ASICFields(ctx, "cfg"); return err }},
			{"firmware-flags", func() error { _, err := db.FirmwareFlags(ctx, "cfg"); return err }},
			{"daq-params", func() error { _, err := db.DAQParams(ctx, "cfg"); return err }},
			{"save", func() error { return db.SaveConfig(ctx, "cfg", nil, nil, DAQParams{}) }},
		} {
			err := tc.f()
			if err == nil {
				t.Fatalf("%s: expected an error", tc.name)
			}
			if !errors.Is(err, errBoom) {
				t.Fatalf("%s: invalid error: got=%+v, want=%+v", tc.name, err, errBoom)
			}
		}
		return nil
	})
}

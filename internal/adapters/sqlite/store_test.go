package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/scenegov/internal/ports/secondary"
)

func TestStore_CompareAndSwapConfig(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	cas := func(expected int64, value string) (int64, error) {
		var version int64
		err := store.Update(ctx, func(tx secondary.WriteTx) error {
			v, err := tx.CompareAndSwapConfig(ctx, "governance/state/global", expected, value)
			version = v
			return err
		})
		return version, err
	}

	v, err := cas(0, `{"channel":"beta"}`)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if v != 1 {
		t.Errorf("version after create = %d, want 1", v)
	}

	if _, err := cas(0, `{"channel":"dev"}`); !errors.Is(err, secondary.ErrVersionConflict) {
		t.Errorf("second create: expected ErrVersionConflict, got %v", err)
	}

	v, err = cas(1, `{"channel":"dev"}`)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if v != 2 {
		t.Errorf("version after update = %d, want 2", v)
	}

	if _, err := cas(1, `{"channel":"stable"}`); !errors.Is(err, secondary.ErrVersionConflict) {
		t.Errorf("stale update: expected ErrVersionConflict, got %v", err)
	}

	var got *secondary.ConfigRecord
	err = store.View(ctx, func(tx secondary.ReadTx) error {
		var err error
		got, err = tx.GetConfig(ctx, "governance/state/global")
		return err
	})
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if got == nil || got.Value != `{"channel":"dev"}` || got.Version != 2 {
		t.Errorf("GetConfig = %+v, want dev at version 2", got)
	}
}

func TestStore_GetConfigMissing(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.View(ctx, func(tx secondary.ReadTx) error {
		rec, err := tx.GetConfig(ctx, "nope")
		if err != nil {
			return err
		}
		if rec != nil {
			t.Errorf("expected nil record, got %+v", rec)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func TestStore_ListConfigEscapesPrefix(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.Update(ctx, func(tx secondary.WriteTx) error {
		for _, key := range []string{"governance/state/global", "governance/state/company:7", "governance_state", "pinned"} {
			if _, err := tx.CompareAndSwapConfig(ctx, key, 0, "{}"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	var keys []string
	err = store.View(ctx, func(tx secondary.ReadTx) error {
		recs, err := tx.ListConfig(ctx, "governance/state/")
		for _, r := range recs {
			keys = append(keys, r.Key)
		}
		return err
	})
	if err != nil {
		t.Fatalf("ListConfig failed: %v", err)
	}
	want := []string{"governance/state/company:7", "governance/state/global"}
	if len(keys) != len(want) || keys[0] != want[0] || keys[1] != want[1] {
		t.Errorf("ListConfig keys = %v, want %v", keys, want)
	}
}

func TestStore_UpdateRollsBackOnError(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Update(ctx, func(tx secondary.WriteTx) error {
		if _, err := tx.CompareAndSwapConfig(ctx, "k", 0, "v"); err != nil {
			return err
		}
		if err := tx.AppendLog(ctx, &secondary.GovernanceLogRecord{Action: "rollback", TraceID: "t1", Scope: "global"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	err = store.View(ctx, func(tx secondary.ReadTx) error {
		rec, err := tx.GetConfig(ctx, "k")
		if err != nil {
			return err
		}
		if rec != nil {
			t.Errorf("config write survived a failed transaction: %+v", rec)
		}
		n, err := tx.CountLogs(ctx)
		if err != nil {
			return err
		}
		if n != 0 {
			t.Errorf("log count = %d, want 0", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func TestStore_AppendAndListLogs(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := &secondary.GovernanceLogRecord{
		Action:      "set_channel",
		TraceID:     "trace-1",
		Scope:       "company:7",
		CompanyID:   7,
		FromChannel: "stable",
		ToChannel:   "beta",
		Reason:      "try beta",
		CreatedAt:   "2026-03-01T10:00:00.000000000Z",
	}
	second := &secondary.GovernanceLogRecord{
		Action:    "rollback",
		TraceID:   "trace-2",
		Scope:     "global",
		ToRef:     "stable/PINNED.json",
		Reason:    "incident",
		Payload:   `{"auto":false}`,
		CreatedAt: "2026-03-02T10:00:00.000000000Z",
	}
	appendTestLog(t, store, first)
	appendTestLog(t, store, second)

	if first.ID == 0 || second.ID <= first.ID {
		t.Fatalf("expected increasing IDs, got %d then %d", first.ID, second.ID)
	}
	if first.Payload != "{}" {
		t.Errorf("empty payload stored as %q, want {}", first.Payload)
	}

	tests := []struct {
		name    string
		filters secondary.GovernanceLogFilters
		want    []string
	}{
		{"all newest first", secondary.GovernanceLogFilters{}, []string{"trace-2", "trace-1"}},
		{"by scope", secondary.GovernanceLogFilters{Scope: "company:7"}, []string{"trace-1"}},
		{"by action", secondary.GovernanceLogFilters{Action: "rollback"}, []string{"trace-2"}},
		{"by trace", secondary.GovernanceLogFilters{TraceID: "trace-1"}, []string{"trace-1"}},
		{"since", secondary.GovernanceLogFilters{Since: "2026-03-02T00:00:00.000000000Z"}, []string{"trace-2"}},
		{"limit", secondary.GovernanceLogFilters{Limit: 1}, []string{"trace-2"}},
		{"any of scopes", secondary.GovernanceLogFilters{Scopes: []string{"company:7", "global"}}, []string{"trace-2", "trace-1"}},
		{"scopes since", secondary.GovernanceLogFilters{Scopes: []string{"company:7", "global"}, Since: "2026-03-02T00:00:00.000000000Z"}, []string{"trace-2"}},
		{"scopes no match", secondary.GovernanceLogFilters{Scopes: []string{"company:8"}}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			err := store.View(ctx, func(tx secondary.ReadTx) error {
				recs, err := tx.ListLogs(ctx, tt.filters)
				for _, r := range recs {
					got = append(got, r.TraceID)
				}
				return err
			})
			if err != nil {
				t.Fatalf("ListLogs failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}

	err := store.View(ctx, func(tx secondary.ReadTx) error {
		recs, err := tx.ListLogs(ctx, secondary.GovernanceLogFilters{TraceID: "trace-1"})
		if err != nil {
			return err
		}
		r := recs[0]
		if r.CompanyID != 7 || r.FromChannel != "stable" || r.ToChannel != "beta" || r.Reason != "try beta" {
			t.Errorf("round-trip mismatch: %+v", r)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func TestStore_LogIsAppendOnly(t *testing.T) {
	testDB := setupTestDB(t)

	_, err := testDB.Exec(`INSERT INTO governance_logs (action, trace_id, scope, created_at) VALUES ('rollback', 't', 'global', '2026-01-01T00:00:00.000000000Z')`)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := testDB.Exec(`UPDATE governance_logs SET reason = 'x'`); err == nil {
		t.Error("expected UPDATE to be rejected")
	}
	if _, err := testDB.Exec(`DELETE FROM governance_logs`); err == nil {
		t.Error("expected DELETE to be rejected")
	}
}

func TestStore_ActivatePackageKeepsOneActive(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	activate := func(version string) {
		t.Helper()
		err := store.Update(ctx, func(tx secondary.WriteTx) error {
			return tx.ActivatePackage(ctx, &secondary.InstalledPackageRecord{
				PackageName:      "crm",
				InstalledVersion: version,
				Checksum:         "sum-" + version,
				SceneChannel:     "stable",
				SceneKeys:        []string{"crm.list"},
			})
		})
		if err != nil {
			t.Fatalf("ActivatePackage(%s) failed: %v", version, err)
		}
	}

	activate("1.0.0")
	activate("1.1.0")
	activate("1.0.0")

	var rows []*secondary.InstalledPackageRecord
	err := store.View(ctx, func(tx secondary.ReadTx) error {
		var err error
		rows, err = tx.ListPackages(ctx, secondary.PackageFilters{PackageName: "crm"})
		return err
	})
	if err != nil {
		t.Fatalf("ListPackages failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	active := 0
	for _, r := range rows {
		if r.Active {
			active++
			if r.InstalledVersion != "1.0.0" {
				t.Errorf("active version = %s, want 1.0.0", r.InstalledVersion)
			}
		}
		if len(r.SceneKeys) != 1 || r.SceneKeys[0] != "crm.list" {
			t.Errorf("scene keys = %v", r.SceneKeys)
		}
	}
	if active != 1 {
		t.Errorf("active rows = %d, want 1", active)
	}

	err = store.View(ctx, func(tx secondary.ReadTx) error {
		recs, err := tx.ListPackages(ctx, secondary.PackageFilters{ActiveOnly: true})
		if err != nil {
			return err
		}
		if len(recs) != 1 {
			t.Errorf("ActiveOnly returned %d rows, want 1", len(recs))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func TestStore_ReplacePackageScenes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	replace := func(version string, keys ...string) error {
		return store.Update(ctx, func(tx secondary.WriteTx) error {
			var recs []*secondary.SceneRecord
			for _, k := range keys {
				recs = append(recs, &secondary.SceneRecord{
					Key:            k,
					Route:          "/" + k,
					Payload:        `{"key":"` + k + `"}`,
					PackageVersion: version,
				})
			}
			return tx.ReplacePackageScenes(ctx, "crm", "beta", recs)
		})
	}

	if err := replace("1.0.0", "crm.list", "crm.detail"); err != nil {
		t.Fatalf("first replace failed: %v", err)
	}
	if err := replace("1.1.0", "crm.list"); err != nil {
		t.Fatalf("second replace failed: %v", err)
	}

	err := store.View(ctx, func(tx secondary.ReadTx) error {
		recs, err := tx.ListScenes(ctx, "beta")
		if err != nil {
			return err
		}
		if len(recs) != 1 {
			t.Fatalf("expected 1 scene, got %d", len(recs))
		}
		if recs[0].Key != "crm.list" || recs[0].PackageVersion != "1.1.0" || recs[0].PackageName != "crm" {
			t.Errorf("unexpected scene: %+v", recs[0])
		}
		other, err := tx.ListScenes(ctx, "stable")
		if err != nil {
			return err
		}
		if len(other) != 0 {
			t.Errorf("stable channel should be empty, got %d", len(other))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func TestStore_ReplacePackageScenes_AcrossChannels(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	install := func(version, channel, key string) {
		t.Helper()
		err := store.Update(ctx, func(tx secondary.WriteTx) error {
			return tx.ReplacePackageScenes(ctx, "crm", channel, []*secondary.SceneRecord{
				{Key: key, Route: "/" + key, Payload: "{}", PackageVersion: version},
			})
		})
		if err != nil {
			t.Fatalf("install %s failed: %v", version, err)
		}
	}
	install("1.0.0", "stable", "crm.a")
	install("2.0.0", "beta", "crm.b")

	err := store.View(ctx, func(tx secondary.ReadTx) error {
		stable, err := tx.ListScenes(ctx, "stable")
		if err != nil {
			return err
		}
		if len(stable) != 0 {
			t.Errorf("scenes of crm@1.0.0 still on stable: %+v", stable[0])
		}
		beta, err := tx.ListScenes(ctx, "beta")
		if err != nil {
			return err
		}
		if len(beta) != 1 || beta[0].Key != "crm.b" || beta[0].PackageVersion != "2.0.0" {
			t.Errorf("unexpected beta scenes: %+v", beta)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func TestStore_DuplicateRouteRejected(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.Update(ctx, func(tx secondary.WriteTx) error {
		return tx.ReplacePackageScenes(ctx, "crm", "stable", []*secondary.SceneRecord{
			{Key: "a", Route: "/same", Payload: "{}", PackageVersion: "1"},
			{Key: "b", Route: "/same", Payload: "{}", PackageVersion: "1"},
		})
	})
	if err == nil {
		t.Fatal("expected unique route violation")
	}

	err = store.View(ctx, func(tx secondary.ReadTx) error {
		recs, err := tx.ListScenes(ctx, "")
		if err != nil {
			return err
		}
		if len(recs) != 0 {
			t.Errorf("partial write survived: %d scenes", len(recs))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

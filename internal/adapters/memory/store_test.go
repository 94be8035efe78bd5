package memory

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/example/scenegov/internal/ports/secondary"
)

func TestStore_CompareAndSwapConfig(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	cas := func(expected int64, value string) (int64, error) {
		var v int64
		err := store.Update(ctx, func(tx secondary.WriteTx) error {
			var err error
			v, err = tx.CompareAndSwapConfig(ctx, "k", expected, value)
			return err
		})
		return v, err
	}

	if _, err := cas(3, "x"); !errors.Is(err, secondary.ErrVersionConflict) {
		t.Errorf("missing key with version: expected conflict, got %v", err)
	}
	if v, err := cas(0, "a"); err != nil || v != 1 {
		t.Fatalf("create = %d, %v", v, err)
	}
	if _, err := cas(0, "b"); !errors.Is(err, secondary.ErrVersionConflict) {
		t.Errorf("duplicate create: expected conflict, got %v", err)
	}
	if v, err := cas(1, "b"); err != nil || v != 2 {
		t.Fatalf("update = %d, %v", v, err)
	}
}

func TestStore_FailedUpdateIsNotPublished(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.Update(ctx, func(tx secondary.WriteTx) error {
		if _, err := tx.CompareAndSwapConfig(ctx, "k", 0, "v"); err != nil {
			return err
		}
		if err := tx.AppendLog(ctx, &secondary.GovernanceLogRecord{Action: "rollback", TraceID: "t", Scope: "global"}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	_ = store.View(ctx, func(tx secondary.ReadTx) error {
		rec, _ := tx.GetConfig(ctx, "k")
		n, _ := tx.CountLogs(ctx)
		if rec != nil || n != 0 {
			t.Errorf("failed update leaked: config=%v logs=%d", rec, n)
		}
		return nil
	})
}

func TestStore_ViewIsASnapshot(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_ = store.View(ctx, func(tx secondary.ReadTx) error {
		err := store.Update(ctx, func(w secondary.WriteTx) error {
			_, err := w.CompareAndSwapConfig(ctx, "k", 0, "v")
			return err
		})
		if err != nil {
			t.Fatalf("Update during View failed: %v", err)
		}
		rec, _ := tx.GetConfig(ctx, "k")
		if rec != nil {
			t.Errorf("snapshot observed a later write: %+v", rec)
		}
		return nil
	})
}

func TestStore_ConcurrentCASLosesNoUpdate(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	const workers = 16

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Update(ctx, func(tx secondary.WriteTx) error {
				rec, err := tx.GetConfig(ctx, "counter")
				if err != nil {
					return err
				}
				var version int64
				n := 0
				if rec != nil {
					version = rec.Version
					n, _ = strconv.Atoi(rec.Value)
				}
				_, err = tx.CompareAndSwapConfig(ctx, "counter", version, strconv.Itoa(n+1))
				return err
			})
			if err != nil {
				t.Errorf("Update failed: %v", err)
			}
		}()
	}
	wg.Wait()

	_ = store.View(ctx, func(tx secondary.ReadTx) error {
		rec, _ := tx.GetConfig(ctx, "counter")
		if rec == nil || rec.Value != strconv.Itoa(workers) {
			t.Errorf("counter = %+v, want %d", rec, workers)
		}
		return nil
	})
}

func TestStore_PackagesAndScenes(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	for _, version := range []string{"1.0.0", "2.0.0"} {
		err := store.Update(ctx, func(tx secondary.WriteTx) error {
			if err := tx.ReplacePackageScenes(ctx, "crm", "stable", []*secondary.SceneRecord{
				{Key: "crm.list", Route: "/crm", Payload: "{}", PackageVersion: version},
			}); err != nil {
				return err
			}
			return tx.ActivatePackage(ctx, &secondary.InstalledPackageRecord{
				PackageName:      "crm",
				InstalledVersion: version,
				Checksum:         "c" + version,
				SceneChannel:     "stable",
				SceneKeys:        []string{"crm.list"},
			})
		})
		if err != nil {
			t.Fatalf("import %s failed: %v", version, err)
		}
	}

	_ = store.View(ctx, func(tx secondary.ReadTx) error {
		pkgs, _ := tx.ListPackages(ctx, secondary.PackageFilters{})
		var got []string
		for _, p := range pkgs {
			got = append(got, p.InstalledVersion+":"+strconv.FormatBool(p.Active))
		}
		if diff := cmp.Diff([]string{"1.0.0:false", "2.0.0:true"}, got); diff != "" {
			t.Errorf("packages mismatch (-want +got):\n%s", diff)
		}

		scenes, _ := tx.ListScenes(ctx, "stable")
		if len(scenes) != 1 || scenes[0].PackageVersion != "2.0.0" || scenes[0].PackageName != "crm" {
			t.Errorf("scenes = %+v", scenes)
		}
		return nil
	})

	err := store.Update(ctx, func(tx secondary.WriteTx) error {
		return tx.ReplacePackageScenes(ctx, "other", "stable", []*secondary.SceneRecord{
			{Key: "other.list", Route: "/crm", Payload: "{}", PackageVersion: "1"},
		})
	})
	if err == nil {
		t.Error("expected route collision with another package to fail")
	}
}

func TestStore_ReplacePackageScenes_AcrossChannels(t *testing.T) {
	store := NewStore()
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

	_ = store.View(ctx, func(tx secondary.ReadTx) error {
		all, _ := tx.ListScenes(ctx, "")
		var got []string
		for _, s := range all {
			got = append(got, s.Channel+"/"+s.Key+"@"+s.PackageVersion)
		}
		if diff := cmp.Diff([]string{"beta/crm.b@2.0.0"}, got); diff != "" {
			t.Errorf("scenes mismatch (-want +got):\n%s", diff)
		}
		return nil
	})
}

func TestStore_ListLogsFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	entries := []secondary.GovernanceLogRecord{
		{Action: "set_channel", TraceID: "a", Scope: "global", CreatedAt: "2026-01-01T00:00:00.000000000Z"},
		{Action: "rollback", TraceID: "b", Scope: "company:3", CreatedAt: "2026-01-02T00:00:00.000000000Z"},
		{Action: "rollback", TraceID: "c", Scope: "global", CreatedAt: "2026-01-03T00:00:00.000000000Z"},
	}
	err := store.Update(ctx, func(tx secondary.WriteTx) error {
		for i := range entries {
			if err := tx.AppendLog(ctx, &entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		filters secondary.GovernanceLogFilters
		want    []string
	}{
		{"newest first", secondary.GovernanceLogFilters{}, []string{"c", "b", "a"}},
		{"action", secondary.GovernanceLogFilters{Action: "rollback"}, []string{"c", "b"}},
		{"scope and limit", secondary.GovernanceLogFilters{Scope: "global", Limit: 1}, []string{"c"}},
		{"since", secondary.GovernanceLogFilters{Since: "2026-01-02T00:00:00.000000000Z"}, []string{"c", "b"}},
		{"any of scopes with limit", secondary.GovernanceLogFilters{Scopes: []string{"company:3", "global"}, Limit: 2}, []string{"c", "b"}},
		{"one of scopes", secondary.GovernanceLogFilters{Scopes: []string{"company:9", "global"}}, []string{"c", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			_ = store.View(ctx, func(tx secondary.ReadTx) error {
				recs, _ := tx.ListLogs(ctx, tt.filters)
				for _, r := range recs {
					got = append(got, r.TraceID)
				}
				return nil
			})
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ListLogs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

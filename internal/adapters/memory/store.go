// Package memory contains an in-process implementation of the governance store.
// It backs the "memory" store setting and the application tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/scenegov/internal/ports/secondary"
)

type sceneID struct {
	channel string
	key     string
}

type packageID struct {
	name    string
	version string
}

// state is an immutable snapshot once published.
type state struct {
	config    map[string]secondary.ConfigRecord
	scenes    map[sceneID]secondary.SceneRecord
	packages  map[packageID]secondary.InstalledPackageRecord
	logs      []secondary.GovernanceLogRecord
	nextLogID int64
}

func emptyState() *state {
	return &state{
		config:    map[string]secondary.ConfigRecord{},
		scenes:    map[sceneID]secondary.SceneRecord{},
		packages:  map[packageID]secondary.InstalledPackageRecord{},
		nextLogID: 1,
	}
}

func (s *state) clone() *state {
	out := &state{
		config:    make(map[string]secondary.ConfigRecord, len(s.config)),
		scenes:    make(map[sceneID]secondary.SceneRecord, len(s.scenes)),
		packages:  make(map[packageID]secondary.InstalledPackageRecord, len(s.packages)),
		logs:      append([]secondary.GovernanceLogRecord(nil), s.logs...),
		nextLogID: s.nextLogID,
	}
	for k, v := range s.config {
		out.config[k] = v
	}
	for k, v := range s.scenes {
		out.scenes[k] = v
	}
	for k, v := range s.packages {
		v.SceneKeys = append([]string(nil), v.SceneKeys...)
		out.packages[k] = v
	}
	return out
}

// Store implements secondary.Store in memory.
// Readers load the current snapshot without locking; writers are serialized
// and publish a modified copy only when their transaction succeeds.
type Store struct {
	current atomic.Pointer[state]
	mu      sync.Mutex
	now     func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	s := &Store{now: time.Now}
	s.current.Store(emptyState())
	return s
}

var _ secondary.Store = (*Store)(nil)

// View runs fn against the current snapshot.
func (s *Store) View(ctx context.Context, fn func(tx secondary.ReadTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&readTx{st: s.current.Load()})
}

// Update runs fn against a private copy and publishes it when fn succeeds.
func (s *Store) Update(ctx context.Context, fn func(tx secondary.WriteTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	next := s.current.Load().clone()
	if err := fn(&writeTx{readTx: readTx{st: next}, now: s.now}); err != nil {
		return err
	}
	s.current.Store(next)
	return nil
}

type readTx struct {
	st *state
}

func (t *readTx) GetConfig(_ context.Context, key string) (*secondary.ConfigRecord, error) {
	rec, ok := t.st.config[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (t *readTx) ListConfig(_ context.Context, prefix string) ([]*secondary.ConfigRecord, error) {
	var out []*secondary.ConfigRecord
	for k, v := range t.st.config {
		if strings.HasPrefix(k, prefix) {
			rec := v
			out = append(out, &rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (t *readTx) ListScenes(_ context.Context, channel string) ([]*secondary.SceneRecord, error) {
	var out []*secondary.SceneRecord
	for id, v := range t.st.scenes {
		if channel == "" || id.channel == channel {
			rec := v
			out = append(out, &rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Channel != out[j].Channel {
			return out[i].Channel < out[j].Channel
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (t *readTx) ListPackages(_ context.Context, filters secondary.PackageFilters) ([]*secondary.InstalledPackageRecord, error) {
	var out []*secondary.InstalledPackageRecord
	for id, v := range t.st.packages {
		if filters.PackageName != "" && id.name != filters.PackageName {
			continue
		}
		if filters.ActiveOnly && !v.Active {
			continue
		}
		rec := v
		rec.SceneKeys = append([]string{}, v.SceneKeys...)
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PackageName != out[j].PackageName {
			return out[i].PackageName < out[j].PackageName
		}
		return out[i].InstalledVersion < out[j].InstalledVersion
	})
	return out, nil
}

func (t *readTx) ListLogs(_ context.Context, filters secondary.GovernanceLogFilters) ([]*secondary.GovernanceLogRecord, error) {
	var out []*secondary.GovernanceLogRecord
	for i := len(t.st.logs) - 1; i >= 0; i-- {
		v := t.st.logs[i]
		if filters.Scope != "" && v.Scope != filters.Scope {
			continue
		}
		if len(filters.Scopes) > 0 && !slices.Contains(filters.Scopes, v.Scope) {
			continue
		}
		if filters.Action != "" && v.Action != filters.Action {
			continue
		}
		if filters.TraceID != "" && v.TraceID != filters.TraceID {
			continue
		}
		if filters.Since != "" && v.CreatedAt < filters.Since {
			continue
		}
		rec := v
		out = append(out, &rec)
		if filters.Limit > 0 && len(out) == filters.Limit {
			break
		}
	}
	return out, nil
}

func (t *readTx) CountLogs(_ context.Context) (int, error) {
	return len(t.st.logs), nil
}

type writeTx struct {
	readTx
	now func() time.Time
}

func (t *writeTx) timestamp() string {
	return t.now().UTC().Format(secondary.TimeLayout)
}

func (t *writeTx) CompareAndSwapConfig(_ context.Context, key string, expectedVersion int64, value string) (int64, error) {
	cur, ok := t.st.config[key]
	switch {
	case !ok && expectedVersion != 0:
		return 0, fmt.Errorf("config %s does not exist: %w", key, secondary.ErrVersionConflict)
	case ok && cur.Version != expectedVersion:
		return 0, fmt.Errorf("config %s at version %d: %w", key, expectedVersion, secondary.ErrVersionConflict)
	}
	next := expectedVersion + 1
	t.st.config[key] = secondary.ConfigRecord{Key: key, Value: value, Version: next, UpdatedAt: t.timestamp()}
	return next, nil
}

func (t *writeTx) ReplacePackageScenes(_ context.Context, packageName, channel string, scenes []*secondary.SceneRecord) error {
	for id, v := range t.st.scenes {
		if v.PackageName == packageName {
			delete(t.st.scenes, id)
		}
	}

	routes := make(map[string]string, len(t.st.scenes))
	for id, v := range t.st.scenes {
		if id.channel == channel {
			routes[v.Route] = id.key
		}
	}

	now := t.timestamp()
	for _, r := range scenes {
		id := sceneID{channel: channel, key: r.Key}
		if _, taken := t.st.scenes[id]; taken {
			return fmt.Errorf("failed to insert scene %s: key already taken on %s", r.Key, channel)
		}
		if owner, taken := routes[r.Route]; taken {
			return fmt.Errorf("failed to insert scene %s: route %s already owned by %s", r.Key, r.Route, owner)
		}
		rec := *r
		rec.Channel = channel
		rec.PackageName = packageName
		if rec.CreatedAt == "" {
			rec.CreatedAt = now
		}
		t.st.scenes[id] = rec
		routes[r.Route] = r.Key
	}
	return nil
}

func (t *writeTx) ActivatePackage(_ context.Context, pkg *secondary.InstalledPackageRecord) error {
	for id, v := range t.st.packages {
		if id.name == pkg.PackageName && v.Active {
			v.Active = false
			t.st.packages[id] = v
		}
	}

	if pkg.InstalledAt == "" {
		pkg.InstalledAt = t.timestamp()
	}
	pkg.Active = true
	rec := *pkg
	rec.SceneKeys = append([]string{}, pkg.SceneKeys...)
	t.st.packages[packageID{name: pkg.PackageName, version: pkg.InstalledVersion}] = rec
	return nil
}

func (t *writeTx) AppendLog(_ context.Context, entry *secondary.GovernanceLogRecord) error {
	if entry.CreatedAt == "" {
		entry.CreatedAt = t.timestamp()
	}
	if entry.Payload == "" {
		entry.Payload = "{}"
	}
	entry.ID = t.st.nextLogID
	t.st.nextLogID++
	t.st.logs = append(t.st.logs, *entry)
	return nil
}

package app

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/example/scenegov/internal/adapters/memory"
	"github.com/example/scenegov/internal/core/degrade"
	"github.com/example/scenegov/internal/core/diagnostics"
	"github.com/example/scenegov/internal/core/resolver"
	"github.com/example/scenegov/internal/core/scene"
	"github.com/example/scenegov/internal/metrics"
	"github.com/example/scenegov/internal/ports/primary"
	"github.com/example/scenegov/internal/ports/secondary"
)

var testCriticalScenes = []string{"projects.list", "projects.ledger"}

// fakeSources implements every file-backed source port for testing.
type fakeSources struct {
	mu        sync.Mutex
	scenes    []scene.Scene
	nodes     []resolver.Node
	debt      []diagnostics.DebtEntry
	policy    degrade.Policy
	policyErr error
}

var (
	_ secondary.SceneSource      = (*fakeSources)(nil)
	_ secondary.NavigationSource = (*fakeSources)(nil)
	_ secondary.DebtSource       = (*fakeSources)(nil)
	_ secondary.PolicySource     = (*fakeSources)(nil)
)

func (f *fakeSources) LoadScenes(ctx context.Context) ([]scene.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]scene.Scene, len(f.scenes))
	for i, s := range f.scenes {
		out[i] = s.Clone()
	}
	return out, nil
}

func (f *fakeSources) LoadNavigation(ctx context.Context) ([]resolver.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]resolver.Node(nil), f.nodes...), nil
}

func (f *fakeSources) LoadDebt(ctx context.Context) ([]diagnostics.DebtEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]diagnostics.DebtEntry(nil), f.debt...), nil
}

func (f *fakeSources) LoadPolicy(ctx context.Context) (degrade.Policy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.policy, f.policyErr
}

func (f *fakeSources) setScenes(scenes ...scene.Scene) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scenes = scenes
}

func (f *fakeSources) setPolicy(p degrade.Policy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.policy = p
}

// dropNode removes the navigation node bound to a scene key.
func (f *fakeSources) dropNode(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.nodes[:0]
	for _, n := range f.nodes {
		if n.ID != "node-"+key {
			kept = append(kept, n)
		}
	}
	f.nodes = kept
}

// fakeArtifacts implements secondary.ArtifactStore in memory.
type fakeArtifacts struct {
	mu    sync.Mutex
	files map[string][]byte
}

var _ secondary.ArtifactStore = (*fakeArtifacts)(nil)

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{files: map[string][]byte{}}
}

func (f *fakeArtifacts) Write(ctx context.Context, ref string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[ref] = append([]byte(nil), data...)
	return nil
}

func (f *fakeArtifacts) Read(ctx context.Context, ref string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[ref]
	if !ok {
		return nil, secondary.ErrArtifactNotFound
	}
	return data, nil
}

func (f *fakeArtifacts) Exists(ctx context.Context, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[ref]
	return ok, nil
}

func (f *fakeArtifacts) Location(ref string) string {
	return "mem://" + ref
}

// fakeDispatcher records dispatched payloads. A non-nil err rejects every payload.
type fakeDispatcher struct {
	mu       sync.Mutex
	payloads []secondary.NotificationPayload
	err      error
}

func (f *fakeDispatcher) Dispatch(p secondary.NotificationPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, p)
	return nil
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func listScene(key, route string) scene.Scene {
	return scene.Scene{
		Key:         key,
		Label:       "Label " + key,
		Route:       route,
		Target:      &scene.Target{MenuXMLID: "menu." + key},
		Layout:      scene.Layout{Kind: scene.LayoutList},
		ListProfile: &scene.ListProfile{Columns: []string{"name", "code"}},
	}
}

func menuNode(key string) resolver.Node {
	return resolver.Node{ID: "node-" + key, MenuXMLID: "menu." + key}
}

type testEnv struct {
	store       *memory.Store
	sources     *fakeSources
	artifacts   *fakeArtifacts
	dispatcher  *fakeDispatcher
	metrics     *metrics.Metrics
	governance  *GovernanceServiceImpl
	diagnostics *DiagnosticsServiceImpl
	packages    *PackageServiceImpl
	health      *HealthServiceImpl
	logs        *LogServiceImpl
}

// newTestEnv wires every service over a memory store. Each scene gets a
// navigation node binding its menu target.
func newTestEnv(t *testing.T, scenes ...scene.Scene) *testEnv {
	t.Helper()

	nodes := make([]resolver.Node, 0, len(scenes))
	for _, s := range scenes {
		nodes = append(nodes, menuNode(s.Key))
	}
	env := &testEnv{
		store:      memory.NewStore(),
		sources:    &fakeSources{scenes: scenes, nodes: nodes, policy: degrade.DefaultPolicy()},
		artifacts:  newFakeArtifacts(),
		dispatcher: &fakeDispatcher{},
		metrics:    metrics.New(prometheus.NewRegistry()),
	}

	logger := zap.NewNop()
	executor := NewEffectExecutor(logger, env.artifacts, env.dispatcher, env.metrics)
	catalog := NewSceneCatalog(env.sources, env.sources, env.sources, env.artifacts,
		CatalogSettings{CriticalScenes: testCriticalScenes}, logger)
	controller := NewDegradeController(env.store, env.sources, executor, logger)

	env.governance = NewGovernanceService(env.store, catalog, env.artifacts, executor, logger)
	env.diagnostics = NewDiagnosticsService(env.store, catalog, controller, logger, env.metrics)
	env.packages = NewPackageService(env.store, catalog, env.artifacts, env.diagnostics, executor, logger)
	env.health = NewHealthService(env.store, env.diagnostics)
	env.logs = NewLogService(env.store)
	return env
}

// logActions returns the governance log actions oldest first.
func (e *testEnv) logActions(t *testing.T) []string {
	t.Helper()
	entries, err := e.logs.ListLogs(context.Background(), primary.LogFilters{})
	if err != nil {
		t.Fatalf("ListLogs failed: %v", err)
	}
	out := make([]string, len(entries))
	for i, entry := range entries {
		out[len(entries)-1-i] = entry.Action
	}
	return out
}

func (e *testEnv) fingerprint(t *testing.T) string {
	t.Helper()
	fp, err := Fingerprint(context.Background(), e.store)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	return fp
}

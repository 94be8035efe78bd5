package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/example/scenegov/internal/core/health"
	"github.com/example/scenegov/internal/core/scene"
	"github.com/example/scenegov/internal/core/scenepkg"
	"github.com/example/scenegov/internal/ports/primary"
)

// mockPackageService implements primary.PackageService for testing
type mockPackageService struct {
	importFn    func(ctx context.Context, req primary.ImportPackageRequest) (*primary.ImportReport, error)
	installedFn func(ctx context.Context, filters primary.InstalledFilters) ([]*primary.InstalledPackage, error)
}

func (m *mockPackageService) Export(ctx context.Context, req primary.ExportPackageRequest) (*primary.ExportPackageResponse, error) {
	return &primary.ExportPackageResponse{
		Ref:      "packages/crm-1.0.0.json",
		Location: "/tmp/artifacts/packages/crm-1.0.0.json",
		Package: scenepkg.Package{
			PackageName:    req.PackageName,
			PackageVersion: req.PackageVersion,
			SceneChannel:   req.SceneChannel,
			Checksum:       "deadbeef",
			Scenes:         []scene.Scene{{Key: "crm.leads"}},
		},
	}, nil
}

func (m *mockPackageService) DryRunImport(ctx context.Context, req primary.ImportPackageRequest) (*primary.ImportReport, error) {
	return &primary.ImportReport{
		DryRun: true,
		Plan: scenepkg.Plan{
			PackageName:    "crm",
			PackageVersion: "1.0.0",
			SceneChannel:   "beta",
			Conflicts: []scenepkg.Conflict{
				{SceneKey: "projects.list", Fields: []string{"key"}, ExistingKeys: []string{"projects.list"}, Resolution: scenepkg.ResolutionUnresolved},
			},
		},
		Summary: primary.ImportSummary{Summary: scenepkg.Summary{SceneCount: 1, ConflictsCount: 1}},
	}, nil
}

func (m *mockPackageService) Import(ctx context.Context, req primary.ImportPackageRequest) (*primary.ImportReport, error) {
	if m.importFn != nil {
		return m.importFn(ctx, req)
	}
	return &primary.ImportReport{
		Plan: scenepkg.Plan{PackageName: "crm", PackageVersion: "1.0.0", SceneChannel: "beta", Strategy: scenepkg.StrategyRename},
		Summary: primary.ImportSummary{
			Summary:       scenepkg.Summary{SceneCount: 1, RenamedCount: 1},
			ImportedCount: 1,
		},
	}, nil
}

func (m *mockPackageService) Installed(ctx context.Context, filters primary.InstalledFilters) ([]*primary.InstalledPackage, error) {
	if m.installedFn != nil {
		return m.installedFn(ctx, filters)
	}
	return []*primary.InstalledPackage{}, nil
}

func TestPackageAdapter_Export(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewPackageAdapter(&mockPackageService{}, &buf)

	_, err := adapter.Export(context.Background(), primary.ExportPackageRequest{PackageName: "crm", PackageVersion: "1.0.0", SceneChannel: "beta"})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(buf.String(), "crm@1.0.0 from beta (1 scenes)") {
		t.Errorf("unexpected output '%s'", buf.String())
	}
}

func TestPackageAdapter_DryRun_ShowsConflicts(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewPackageAdapter(&mockPackageService{}, &buf)

	report, err := adapter.DryRun(context.Background(), primary.ImportPackageRequest{Ref: "packages/crm-1.0.0.json"})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !report.DryRun {
		t.Error("expected a dry-run report")
	}
	output := buf.String()
	if !strings.Contains(output, "nothing written") {
		t.Errorf("expected dry-run banner, got '%s'", output)
	}
	if !strings.Contains(output, "projects.list conflicts on [key]") {
		t.Errorf("expected conflict line, got '%s'", output)
	}
}

func TestPackageAdapter_Import(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewPackageAdapter(&mockPackageService{}, &buf)

	if _, err := adapter.Import(context.Background(), primary.ImportPackageRequest{}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "Imported crm@1.0.0 into beta") {
		t.Errorf("unexpected output '%s'", output)
	}
	if !strings.Contains(output, "rename_on_conflict") {
		t.Errorf("expected strategy in output, got '%s'", output)
	}
}

func TestPackageAdapter_Import_AlreadyInstalled(t *testing.T) {
	mock := &mockPackageService{
		importFn: func(ctx context.Context, req primary.ImportPackageRequest) (*primary.ImportReport, error) {
			return &primary.ImportReport{
				AlreadyInstalled: true,
				Plan:             scenepkg.Plan{PackageName: "crm", PackageVersion: "1.0.0"},
			}, nil
		},
	}
	var buf bytes.Buffer
	adapter := NewPackageAdapter(mock, &buf)

	if _, err := adapter.Import(context.Background(), primary.ImportPackageRequest{}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(buf.String(), "already installed") {
		t.Errorf("unexpected output '%s'", buf.String())
	}
}

func TestPackageAdapter_Import_Error(t *testing.T) {
	mock := &mockPackageService{
		importFn: func(ctx context.Context, req primary.ImportPackageRequest) (*primary.ImportReport, error) {
			return nil, primary.ErrConflict
		},
	}
	var buf bytes.Buffer
	adapter := NewPackageAdapter(mock, &buf)

	_, err := adapter.Import(context.Background(), primary.ImportPackageRequest{})

	if !errors.Is(err, primary.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestPackageAdapter_Installed(t *testing.T) {
	var captured primary.InstalledFilters
	mock := &mockPackageService{
		installedFn: func(ctx context.Context, filters primary.InstalledFilters) ([]*primary.InstalledPackage, error) {
			captured = filters
			return []*primary.InstalledPackage{
				{PackageName: "crm", InstalledVersion: "1.0.0", SceneChannel: "beta", SceneKeys: []string{"crm.leads"}, Active: false},
				{PackageName: "crm", InstalledVersion: "1.1.0", SceneChannel: "beta", SceneKeys: []string{"crm.leads"}, Active: true},
			}, nil
		},
	}
	var buf bytes.Buffer
	adapter := NewPackageAdapter(mock, &buf)

	pkgs, err := adapter.Installed(context.Background(), primary.InstalledFilters{PackageName: "crm"})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(pkgs) != 2 {
		t.Errorf("expected 2 packages, got %d", len(pkgs))
	}
	if captured.PackageName != "crm" {
		t.Errorf("expected package filter 'crm', got '%s'", captured.PackageName)
	}
	if !strings.Contains(buf.String(), "1.1.0") {
		t.Errorf("expected versions in output, got '%s'", buf.String())
	}
}

func TestPackageAdapter_Installed_Empty(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewPackageAdapter(&mockPackageService{}, &buf)

	if _, err := adapter.Installed(context.Background(), primary.InstalledFilters{}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(buf.String(), "No packages installed") {
		t.Errorf("expected empty notice, got '%s'", buf.String())
	}
}

// mockHealthService implements primary.HealthService for testing
type mockHealthService struct {
	resp *primary.HealthResponse
}

func (m *mockHealthService) Health(ctx context.Context, req primary.HealthRequest) (*primary.HealthResponse, error) {
	return m.resp, nil
}

// mockDiagnosticsService implements primary.DiagnosticsService for testing
type mockDiagnosticsService struct{}

func (m *mockDiagnosticsService) Evaluate(ctx context.Context, req primary.EvaluateRequest) (*primary.Evaluation, error) {
	return nil, errors.New("not implemented in mock")
}

func (m *mockDiagnosticsService) AppInit(ctx context.Context, req primary.AppInitRequest) (*primary.AppInitResponse, error) {
	return &primary.AppInitResponse{
		SceneChannel: "stable",
		Scenes: []scene.Scene{
			{Key: "projects.list", Route: "/projects", Layout: scene.Layout{Kind: "list"}},
		},
	}, nil
}

func TestHealthAdapter_Health(t *testing.T) {
	mock := &mockHealthService{resp: &primary.HealthResponse{
		CompanyID:      3,
		SceneChannel:   "stable",
		RollbackActive: true,
		Summary:        health.Summary{CriticalResolveErrorsCount: 2},
		AutoDegrade:    primary.AutoDegradeOutcome{Triggered: true, ReasonCodes: []string{"resolve_error:target_missing:2"}},
		Details: &primary.HealthDetails{
			RecentActions: []*primary.LogEntry{{Action: "auto_degrade_triggered", Scope: "company:3"}},
		},
	}}
	var buf bytes.Buffer
	adapter := NewHealthAdapter(mock, &mockDiagnosticsService{}, &buf)

	if _, err := adapter.Health(context.Background(), primary.HealthRequest{CompanyID: 3, Mode: "full"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	output := buf.String()
	for _, want := range []string{"company:3", "UNHEALTHY", "[rollback]", "resolve_error:target_missing:2", "auto_degrade_triggered"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got '%s'", want, output)
		}
	}
}

func TestHealthAdapter_AppInit(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewHealthAdapter(&mockHealthService{}, &mockDiagnosticsService{}, &buf)

	resp, err := adapter.AppInit(context.Background(), primary.AppInitRequest{})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(resp.Scenes) != 1 {
		t.Errorf("expected 1 scene, got %d", len(resp.Scenes))
	}
	if !strings.Contains(buf.String(), "/projects") {
		t.Errorf("expected route in output, got '%s'", buf.String())
	}
}

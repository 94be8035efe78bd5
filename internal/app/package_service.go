package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/example/scenegov/internal/core/diagnostics"
	"github.com/example/scenegov/internal/core/effects"
	"github.com/example/scenegov/internal/core/governance"
	"github.com/example/scenegov/internal/core/scene"
	"github.com/example/scenegov/internal/core/scenepkg"
	"github.com/example/scenegov/internal/ctxutil"
	"github.com/example/scenegov/internal/metrics"
	"github.com/example/scenegov/internal/ports/primary"
	"github.com/example/scenegov/internal/ports/secondary"
)

// Import errors.
var (
	ErrUnresolvedConflicts = errors.New("import has unresolved conflicts")
	ErrCriticalRegression  = errors.New("import would introduce critical resolve errors")
)

// PackageServiceImpl implements the PackageService interface.
type PackageServiceImpl struct {
	store       secondary.Store
	catalog     *SceneCatalog
	artifacts   secondary.ArtifactStore
	diagnostics *DiagnosticsServiceImpl
	executor    EffectExecutor
	logger      *zap.Logger
	validate    *validator.Validate
}

// NewPackageService creates a new PackageService with injected dependencies.
func NewPackageService(
	store secondary.Store,
	catalog *SceneCatalog,
	artifacts secondary.ArtifactStore,
	diagnostics *DiagnosticsServiceImpl,
	executor EffectExecutor,
	logger *zap.Logger,
) *PackageServiceImpl {
	return &PackageServiceImpl{
		store:       store,
		catalog:     catalog,
		artifacts:   artifacts,
		diagnostics: diagnostics,
		executor:    executor,
		logger:      logger,
		validate:    validator.New(),
	}
}

// Export builds a package from the live scenes of a channel and writes it to
// packages/<name>-<version>.json.
func (s *PackageServiceImpl) Export(ctx context.Context, req primary.ExportPackageRequest) (*primary.ExportPackageResponse, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validate.Struct(req); err != nil {
		return nil, invalidParams(err)
	}
	ch, _ := scene.ParseChannel(req.SceneChannel)
	traceID := ctxutil.EnsureTraceID(ctx, req.TraceID)

	var scenes []scene.Scene
	err := s.store.View(ctx, func(tx secondary.ReadTx) error {
		set, err := s.catalog.liveScenes(ctx, tx, ch, "")
		if err != nil {
			return err
		}
		scenes = scene.NewRegistry(set.Scenes).Scenes()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export package: %w", err)
	}

	pkg, err := scenepkg.Build(req.PackageName, req.PackageVersion, ch, scenes)
	if err != nil {
		return nil, invalidParams(err)
	}
	data, err := pkg.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to export package: %w", err)
	}
	ref := scenepkg.Ref(pkg.PackageName, pkg.PackageVersion)
	if err := s.executor.Execute(ctx, []effects.Effect{effects.ArtifactEffect{Operation: "write", Ref: ref, Content: data}}); err != nil {
		return nil, fmt.Errorf("failed to export package: %w", err)
	}

	var entry *primary.LogEntry
	err = s.store.Update(ctx, func(tx secondary.WriteTx) error {
		var err error
		entry, err = appendLog(ctx, tx, &secondary.GovernanceLogRecord{
			Action:    governance.ActionPackageExport,
			TraceID:   traceID,
			Scope:     governance.ScopeGlobal,
			ToChannel: string(ch),
			ToRef:     ref,
			Reason:    req.Reason,
		}, map[string]any{
			"package_name":    pkg.PackageName,
			"package_version": pkg.PackageVersion,
			"checksum":        pkg.Checksum,
			"scene_count":     len(pkg.Scenes),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export package: %w", err)
	}
	s.audit(ctx, entry)

	return &primary.ExportPackageResponse{
		TraceID:  traceID,
		Ref:      ref,
		Location: s.artifacts.Location(ref),
		Package:  pkg,
		Entry:    entry,
	}, nil
}

// DryRunImport computes the same report as Import without writing anything.
func (s *PackageServiceImpl) DryRunImport(ctx context.Context, req primary.ImportPackageRequest) (*primary.ImportReport, error) {
	in, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	report := &primary.ImportReport{DryRun: true, TraceID: in.traceID}
	if report.FingerprintBefore, err = Fingerprint(ctx, s.store); err != nil {
		return nil, err
	}
	err = s.store.View(ctx, func(tx secondary.ReadTx) error {
		return s.plan(ctx, tx, in, report)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to plan import: %w", err)
	}
	if report.FingerprintAfter, err = Fingerprint(ctx, s.store); err != nil {
		return nil, err
	}

	s.countImport("dry_run", report, nil)
	return report, nil
}

// Import applies a package to the scene overlay of its channel, then re-runs
// diagnostics. Re-importing the active version with the same checksum is a no-op.
func (s *PackageServiceImpl) Import(ctx context.Context, req primary.ImportPackageRequest) (*primary.ImportReport, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validate.StructPartial(req, "Reason"); err != nil {
		return nil, invalidParams(err)
	}
	in, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	report := &primary.ImportReport{TraceID: in.traceID}
	if report.FingerprintBefore, err = Fingerprint(ctx, s.store); err != nil {
		return nil, err
	}

	err = s.store.Update(ctx, func(tx secondary.WriteTx) error {
		if err := s.plan(ctx, tx, in, report); err != nil {
			return err
		}
		if report.AlreadyInstalled {
			return nil
		}
		if n := report.Plan.Unresolved(); n > 0 {
			return fmt.Errorf("%w: %d conflicts, choose %s or %s",
				ErrUnresolvedConflicts, n, scenepkg.StrategyRename, scenepkg.StrategySkip)
		}
		if len(report.CriticalRegressions) > 0 {
			return fmt.Errorf("%w: %s", ErrCriticalRegression, describeRegressions(report.CriticalRegressions))
		}
		return s.apply(ctx, tx, in, report)
	})
	if err != nil {
		s.countImport("import", report, err)
		if errors.Is(err, ErrUnresolvedConflicts) || errors.Is(err, ErrCriticalRegression) {
			return nil, fmt.Errorf("%w: %w", primary.ErrConflict, err)
		}
		return nil, fmt.Errorf("failed to import package: %w", err)
	}
	if report.FingerprintAfter, err = Fingerprint(ctx, s.store); err != nil {
		return nil, err
	}
	s.countImport("import", report, nil)
	if report.AlreadyInstalled {
		return report, nil
	}
	s.audit(ctx, report.Entry)

	report.Health, err = s.diagnostics.Evaluate(ctx, primary.EvaluateRequest{TraceID: in.traceID})
	if err != nil {
		s.logger.Warn("post-import diagnostics failed", zap.String("trace_id", in.traceID), zap.Error(err))
	}
	return report, nil
}

// importInput is a verified package plus the request parameters.
type importInput struct {
	pkg      scenepkg.Package
	ref      string
	strategy scenepkg.Strategy
	reason   string
	traceID  string
}

func (s *PackageServiceImpl) prepare(ctx context.Context, req primary.ImportPackageRequest) (importInput, error) {
	if req.Package == nil && strings.TrimSpace(req.Ref) == "" {
		return importInput{}, invalidParams(errors.New("either package or ref is required"))
	}
	strategy, err := scenepkg.ParseStrategy(req.Strategy)
	if err != nil {
		return importInput{}, invalidParams(err)
	}

	in := importInput{strategy: strategy, reason: req.Reason, traceID: ctxutil.EnsureTraceID(ctx, req.TraceID)}
	if req.Package != nil {
		in.pkg = *req.Package
	} else {
		data, err := s.artifacts.Read(ctx, req.Ref)
		if errors.Is(err, secondary.ErrArtifactNotFound) {
			return importInput{}, fmt.Errorf("%w: package %s", primary.ErrNotFound, req.Ref)
		}
		if err != nil {
			return importInput{}, fmt.Errorf("failed to read package: %w", err)
		}
		if in.pkg, err = scenepkg.Decode(data); err != nil {
			return importInput{}, invalidParams(err)
		}
		in.ref = req.Ref
	}
	if err := in.pkg.Verify(); err != nil {
		return importInput{}, invalidParams(err)
	}
	if in.ref == "" {
		in.ref = scenepkg.Ref(in.pkg.PackageName, in.pkg.PackageVersion)
	}
	return in, nil
}

// plan fills the report from the store as seen by tx. It never writes.
func (s *PackageServiceImpl) plan(ctx context.Context, tx secondary.ReadTx, in importInput, report *primary.ImportReport) error {
	ch := scene.Channel(in.pkg.SceneChannel)

	active, err := tx.ListPackages(ctx, secondary.PackageFilters{PackageName: in.pkg.PackageName, ActiveOnly: true})
	if err != nil {
		return fmt.Errorf("failed to list installed packages: %w", err)
	}
	for _, p := range active {
		if p.InstalledVersion == in.pkg.PackageVersion && p.Checksum == in.pkg.Checksum && p.SceneChannel == in.pkg.SceneChannel {
			report.AlreadyInstalled = true
			report.Installed = recordToInstalled(p)
		}
	}

	current, err := s.catalog.liveScenes(ctx, tx, ch, "")
	if err != nil {
		return err
	}
	others, err := s.catalog.liveScenes(ctx, tx, ch, in.pkg.PackageName)
	if err != nil {
		return err
	}

	report.Plan = scenepkg.PlanImport(scenepkg.PlanInput{
		Package:  in.pkg,
		Existing: others.Scenes,
		Strategy: in.strategy,
	})
	report.Summary = primary.ImportSummary{Summary: report.Plan.Summary}
	report.ImportedSceneKeys = []string{}
	report.CriticalRegressions = []primary.CriticalRegression{}
	if report.AlreadyInstalled {
		return nil
	}

	inputs, err := s.catalog.loadInputs(ctx)
	if err != nil {
		return err
	}
	proposed := sceneSet{
		Channel: ch,
		Scenes:  append(append([]scene.Scene{}, others.Scenes...), report.Plan.Scenes()...),
		Sources: others.Sources,
	}
	before := s.catalog.diagnose(inputs, current, nil)
	after := s.catalog.diagnose(inputs, proposed, nil)
	report.CriticalRegressions = criticalRegressions(before.Report, after.Report)
	return nil
}

// apply writes the planned additions and activates the package version.
func (s *PackageServiceImpl) apply(ctx context.Context, tx secondary.WriteTx, in importInput, report *primary.ImportReport) error {
	pkg := in.pkg
	records := make([]*secondary.SceneRecord, 0, len(report.Plan.Additions))
	keys := make([]string, 0, len(report.Plan.Additions))
	for _, a := range report.Plan.Additions {
		rec, err := encodeSceneRecord(a.Scene, pkg.PackageVersion)
		if err != nil {
			return err
		}
		records = append(records, rec)
		keys = append(keys, a.SceneKey)
	}
	sort.Strings(keys)

	if err := tx.ReplacePackageScenes(ctx, pkg.PackageName, pkg.SceneChannel, records); err != nil {
		return fmt.Errorf("failed to write package scenes: %w", err)
	}
	installed := &secondary.InstalledPackageRecord{
		PackageName:      pkg.PackageName,
		InstalledVersion: pkg.PackageVersion,
		Checksum:         pkg.Checksum,
		SceneChannel:     pkg.SceneChannel,
		SceneKeys:        keys,
	}
	if err := tx.ActivatePackage(ctx, installed); err != nil {
		return fmt.Errorf("failed to activate package: %w", err)
	}

	entry, err := appendLog(ctx, tx, &secondary.GovernanceLogRecord{
		Action:    governance.ActionPackageImport,
		TraceID:   in.traceID,
		Scope:     governance.ScopeGlobal,
		ToChannel: pkg.SceneChannel,
		FromRef:   in.ref,
		Reason:    in.reason,
	}, map[string]any{
		"package_name":    pkg.PackageName,
		"package_version": pkg.PackageVersion,
		"checksum":        pkg.Checksum,
		"strategy":        string(in.strategy),
		"imported_keys":   keys,
		"conflicts":       len(report.Plan.Conflicts),
	})
	if err != nil {
		return err
	}

	report.ImportedSceneKeys = keys
	report.Summary.ImportedCount = len(keys)
	report.Installed = recordToInstalled(installed)
	report.Entry = entry
	return nil
}

// Installed lists installed package versions. It is a pure read.
func (s *PackageServiceImpl) Installed(ctx context.Context, filters primary.InstalledFilters) ([]*primary.InstalledPackage, error) {
	var records []*secondary.InstalledPackageRecord
	err := s.store.View(ctx, func(tx secondary.ReadTx) error {
		var err error
		records, err = tx.ListPackages(ctx, secondary.PackageFilters{
			PackageName: filters.PackageName,
			ActiveOnly:  filters.ActiveOnly,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list installed packages: %w", err)
	}

	out := make([]*primary.InstalledPackage, len(records))
	for i, r := range records {
		out[i] = recordToInstalled(r)
	}
	return out, nil
}

func (s *PackageServiceImpl) countImport(mode string, report *primary.ImportReport, err error) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "rejected"
	case report.AlreadyInstalled:
		outcome = "noop"
	}
	eff := effects.MetricEffect{Name: metrics.PackageImport, Labels: []string{mode, outcome}}
	if err := s.executor.Execute(context.Background(), []effects.Effect{eff}); err != nil {
		s.logger.Debug("failed to count import", zap.Error(err))
	}
}

func (s *PackageServiceImpl) audit(ctx context.Context, entry *primary.LogEntry) {
	if err := s.executor.Execute(ctx, auditEffects(entry)); err != nil {
		s.logger.Warn("failed to record package action", zap.String("trace_id", entry.TraceID), zap.Error(err))
	}
}

// criticalRegressions returns the critical resolve errors of after that before did not have.
func criticalRegressions(before, after diagnostics.Report) []primary.CriticalRegression {
	known := map[string]bool{}
	for _, e := range before.ResolveErrors {
		if e.Severity == diagnostics.SeverityCritical {
			known[e.SceneKey+"/"+e.Code+"/"+e.Ref] = true
		}
	}
	out := []primary.CriticalRegression{}
	for _, e := range after.ResolveErrors {
		if e.Severity != diagnostics.SeverityCritical || known[e.SceneKey+"/"+e.Code+"/"+e.Ref] {
			continue
		}
		out = append(out, primary.CriticalRegression{SceneKey: e.SceneKey, Code: e.Code, Ref: e.Ref})
	}
	return out
}

func describeRegressions(rs []primary.CriticalRegression) string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = r.SceneKey + " " + r.Code
	}
	return strings.Join(parts, ", ")
}

func recordToInstalled(r *secondary.InstalledPackageRecord) *primary.InstalledPackage {
	return &primary.InstalledPackage{
		PackageName:      r.PackageName,
		InstalledVersion: r.InstalledVersion,
		Checksum:         r.Checksum,
		SceneChannel:     r.SceneChannel,
		SceneKeys:        append([]string{}, r.SceneKeys...),
		Active:           r.Active,
		InstalledAt:      r.InstalledAt,
	}
}

// Ensure PackageServiceImpl implements the interface
var _ primary.PackageService = (*PackageServiceImpl)(nil)

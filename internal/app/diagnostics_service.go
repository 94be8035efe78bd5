package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/scenegov/internal/core/governance"
	"github.com/example/scenegov/internal/core/resolver"
	"github.com/example/scenegov/internal/core/scene"
	"github.com/example/scenegov/internal/core/scenepkg"
	"github.com/example/scenegov/internal/ctxutil"
	"github.com/example/scenegov/internal/metrics"
	"github.com/example/scenegov/internal/ports/primary"
	"github.com/example/scenegov/internal/ports/secondary"
)

// SkipPinnedPreview is reported when an explicit pinned evaluation bypassed the controller.
const SkipPinnedPreview = "pinned_preview"

// DiagnosticsServiceImpl implements the DiagnosticsService interface.
type DiagnosticsServiceImpl struct {
	store      secondary.Store
	catalog    *SceneCatalog
	controller *DegradeController
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewDiagnosticsService creates a new DiagnosticsService with injected dependencies.
func NewDiagnosticsService(
	store secondary.Store,
	catalog *SceneCatalog,
	controller *DegradeController,
	logger *zap.Logger,
	m *metrics.Metrics,
) *DiagnosticsServiceImpl {
	return &DiagnosticsServiceImpl{
		store:      store,
		catalog:    catalog,
		controller: controller,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// Evaluate runs one diagnostics pass for a scope.
//
// A rolled back scope is evaluated on the pinned contract; otherwise the
// scope's channel, or the requested override, is evaluated on its live scenes.
// The pinned contract is the drift baseline. The auto-degrade step runs on
// every pass except an explicit pinned preview.
func (s *DiagnosticsServiceImpl) Evaluate(ctx context.Context, req primary.EvaluateRequest) (*primary.Evaluation, error) {
	start := s.now()
	if req.CompanyID < 0 {
		return nil, invalidParams(fmt.Errorf("company_id must not be negative"))
	}
	var override scene.Channel
	if req.SceneChannel != "" {
		ch, ok := scene.ParseChannel(req.SceneChannel)
		if !ok {
			return nil, invalidParams(fmt.Errorf("unknown scene channel %q", req.SceneChannel))
		}
		override = ch
	}
	traceID := ctxutil.EnsureTraceID(ctx, req.TraceID)
	scope := governance.ScopeFor(req.CompanyID)

	pinned, err := s.catalog.pinned(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate: %w", err)
	}
	inputs, err := s.catalog.loadInputs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate: %w", err)
	}

	var (
		st  scopeState
		set sceneSet
	)
	usePinned := false
	err = s.store.View(ctx, func(tx secondary.ReadTx) error {
		var err error
		st, err = loadScopeState(ctx, tx, scope)
		if err != nil {
			return err
		}
		usePinned = st.Effective.RollbackActive || req.UsePinned
		channel := st.Effective.Channel
		switch {
		case usePinned:
			channel = scene.ChannelStable
		case override != "":
			channel = override
		}
		set, err = s.catalog.liveScenes(ctx, tx, channel, "")
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate: %w", err)
	}

	contractRef := governance.LatestRef(set.Channel)
	warnings := []resolver.Warning{}
	if usePinned {
		if pinned != nil {
			set = pinnedSet(pinned)
			contractRef = governance.PinnedRef
		} else {
			warnings = append(warnings, resolver.Warning{
				Code:    WarnPinnedContractMissing,
				Message: "no pinned stable contract exists; evaluating live stable scenes",
				Ref:     governance.PinnedRef,
			})
		}
	}

	var baseline []scene.Scene
	if pinned != nil {
		baseline = pinned.Scenes
	}
	d := s.catalog.diagnose(inputs, set, baseline)
	warnings = append(warnings, d.Resolution.Warnings...)

	contract, err := scenepkg.BuildContract(set.Channel, d.Scenes())
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate: %w", err)
	}

	state := st.Effective
	outcome := primary.AutoDegradeOutcome{Skip: SkipPinnedPreview}
	if !req.UsePinned || st.Effective.RollbackActive {
		outcome, state, err = s.controller.Step(ctx, degradeInput{
			Scope:     scope,
			CompanyID: req.CompanyID,
			TraceID:   traceID,
			Report:    d.Report,
			State:     st.Effective,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate: %w", err)
		}
	}

	bindings := make(map[string]string, len(d.Resolution.Scenes))
	for _, rs := range d.Resolution.Scenes {
		bindings[rs.Scene.Key] = rs.Binding.Status
	}

	s.metrics.ObserveEvaluation(d.Report.Healthy(), s.now().Sub(start))
	s.logger.Debug("diagnostics evaluated",
		zap.String("trace_id", traceID),
		zap.String("scope", scope),
		zap.String("channel", string(set.Channel)),
		zap.Bool("healthy", d.Report.Healthy()),
		zap.Bool("auto_degrade_triggered", outcome.Triggered))

	return &primary.Evaluation{
		TraceID:           traceID,
		State:             toPrimaryState(state),
		SceneChannel:      string(set.Channel),
		ContractRef:       contractRef,
		SchemaVersion:     contract.SchemaVersion,
		SceneVersion:      contract.SceneVersion,
		Checksum:          contract.Checksum,
		Scenes:            contract.Scenes,
		Report:            d.Report,
		NormalizeWarnings: warnings,
		Coverage:          d.Resolution.Coverage,
		AutoDegrade:       outcome,
		EvaluatedAt:       s.now().UTC().Format(secondary.TimeLayout),
		Bindings:          bindings,
		Exempted:          d.Resolution.Exempted,
	}, nil
}

// AppInit evaluates the scope and returns the scenes a client should render.
func (s *DiagnosticsServiceImpl) AppInit(ctx context.Context, req primary.AppInitRequest) (*primary.AppInitResponse, error) {
	ev, err := s.Evaluate(ctx, primary.EvaluateRequest{
		CompanyID:    req.CompanyID,
		SceneChannel: req.SceneChannel,
		UsePinned:    req.SceneUsePinned,
		TraceID:      req.TraceID,
	})
	if err != nil {
		return nil, err
	}

	return &primary.AppInitResponse{
		TraceID:        ev.TraceID,
		SceneChannel:   ev.SceneChannel,
		RollbackActive: ev.State.RollbackActive,
		ContractRef:    ev.ContractRef,
		Scenes:         ev.Scenes,
		SceneDiagnostics: primary.SceneDiagnostics{
			SchemaVersion:     ev.SchemaVersion,
			SceneVersion:      ev.SceneVersion,
			ResolveErrors:     ev.Report.ResolveErrors,
			Drift:             ev.Report.Drift,
			NormalizeWarnings: ev.NormalizeWarnings,
			Coverage:          ev.Coverage,
		},
	}, nil
}

// Ensure DiagnosticsServiceImpl implements the interface
var _ primary.DiagnosticsService = (*DiagnosticsServiceImpl)(nil)

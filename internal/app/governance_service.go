package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/scenegov/internal/core/effects"
	"github.com/example/scenegov/internal/core/governance"
	"github.com/example/scenegov/internal/core/scene"
	"github.com/example/scenegov/internal/core/scenepkg"
	"github.com/example/scenegov/internal/ctxutil"
	"github.com/example/scenegov/internal/ports/primary"
	"github.com/example/scenegov/internal/ports/secondary"
)

// GovernanceServiceImpl implements the GovernanceService interface.
type GovernanceServiceImpl struct {
	store     secondary.Store
	catalog   *SceneCatalog
	artifacts secondary.ArtifactStore
	executor  EffectExecutor
	logger    *zap.Logger
}

// NewGovernanceService creates a new GovernanceService with injected dependencies.
func NewGovernanceService(
	store secondary.Store,
	catalog *SceneCatalog,
	artifacts secondary.ArtifactStore,
	executor EffectExecutor,
	logger *zap.Logger,
) *GovernanceServiceImpl {
	return &GovernanceServiceImpl{
		store:     store,
		catalog:   catalog,
		artifacts: artifacts,
		executor:  executor,
		logger:    logger,
	}
}

// GetState returns the effective channel state of a scope.
func (s *GovernanceServiceImpl) GetState(ctx context.Context, companyID int64) (*primary.ChannelState, error) {
	if companyID < 0 {
		return nil, invalidParams(fmt.Errorf("company_id must not be negative"))
	}
	scope := governance.ScopeFor(companyID)

	var st scopeState
	err := s.store.View(ctx, func(tx secondary.ReadTx) error {
		var err error
		st, err = loadScopeState(ctx, tx, scope)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get state: %w", err)
	}
	out := toPrimaryState(st.Effective)
	return &out, nil
}

// SetChannel records a channel selection. While a rollback is active the
// selection is deferred until the rollback is cleared.
func (s *GovernanceServiceImpl) SetChannel(ctx context.Context, req primary.SetChannelRequest) (*primary.GovernanceActionResponse, error) {
	guard := governance.CanSetChannel(governance.SetChannelContext{Channel: req.Channel, Reason: req.Reason})
	if err := guard.Error(); err != nil {
		return nil, invalidParams(err)
	}
	ch, _ := scene.ParseChannel(req.Channel)

	return s.apply(ctx, transitionRequest{
		action:    governance.ActionSetChannel,
		companyID: req.CompanyID,
		traceID:   req.TraceID,
		reason:    req.Reason,
		payload:   map[string]any{"requested_channel": string(ch)},
		transit: func(own governance.ChannelState) governance.Transition {
			return governance.ApplySetChannel(own, ch)
		},
		deferred: func(after governance.ChannelState) bool {
			return after.RollbackActive && ch != scene.ChannelStable
		},
	})
}

// Rollback pins a scope to the stable snapshot. A repeated rollback changes
// nothing but is still logged.
func (s *GovernanceServiceImpl) Rollback(ctx context.Context, req primary.RollbackRequest) (*primary.GovernanceActionResponse, error) {
	guard := governance.CanRollback(governance.ReasonContext{Action: governance.ActionRollback, Reason: req.Reason})
	if err := guard.Error(); err != nil {
		return nil, invalidParams(err)
	}

	return s.apply(ctx, transitionRequest{
		action:    governance.ActionRollback,
		companyID: req.CompanyID,
		traceID:   req.TraceID,
		reason:    req.Reason,
		transit:   governance.ApplyRollback,
	})
}

// ClearRollback releases the pin and restores the requested channel. A scope
// stays rolled back while the global scope is.
func (s *GovernanceServiceImpl) ClearRollback(ctx context.Context, req primary.RollbackRequest) (*primary.GovernanceActionResponse, error) {
	guard := governance.CanRollback(governance.ReasonContext{Action: governance.ActionRollbackCleared, Reason: req.Reason})
	if err := guard.Error(); err != nil {
		return nil, invalidParams(err)
	}

	return s.apply(ctx, transitionRequest{
		action:    governance.ActionRollbackCleared,
		companyID: req.CompanyID,
		traceID:   req.TraceID,
		reason:    req.Reason,
		transit:   governance.ApplyClearRollback,
		deferred: func(after governance.ChannelState) bool {
			return after.RollbackActive
		},
	})
}

type transitionRequest struct {
	action    string
	companyID int64
	traceID   string
	reason    string
	payload   map[string]any
	transit   func(governance.ChannelState) governance.Transition
	deferred  func(after governance.ChannelState) bool
}

// apply runs one state transition and its log entry in a single transaction.
func (s *GovernanceServiceImpl) apply(ctx context.Context, req transitionRequest) (*primary.GovernanceActionResponse, error) {
	if req.companyID < 0 {
		return nil, invalidParams(fmt.Errorf("company_id must not be negative"))
	}
	traceID := ctxutil.EnsureTraceID(ctx, req.traceID)
	scope := governance.ScopeFor(req.companyID)

	var resp *primary.GovernanceActionResponse
	err := s.store.Update(ctx, func(tx secondary.WriteTx) error {
		st, err := loadScopeState(ctx, tx, scope)
		if err != nil {
			return err
		}

		tr := req.transit(st.Own)
		after := st.Effective
		if tr.Changed {
			after, err = writeOwnState(ctx, tx, st, tr.To)
			if err != nil {
				return err
			}
		}
		deferred := req.deferred != nil && req.deferred(after)

		payload := map[string]any{"changed": tr.Changed, "deferred": deferred}
		for k, v := range req.payload {
			payload[k] = v
		}
		entry, err := appendLog(ctx, tx, &secondary.GovernanceLogRecord{
			Action:      req.action,
			TraceID:     traceID,
			Scope:       scope,
			CompanyID:   req.companyID,
			FromChannel: string(st.Effective.Channel),
			ToChannel:   string(after.Channel),
			FromRef:     st.Effective.ContractRef,
			ToRef:       after.ContractRef,
			Reason:      req.reason,
		}, payload)
		if err != nil {
			return err
		}

		resp = &primary.GovernanceActionResponse{
			Action:      req.action,
			TraceID:     traceID,
			Scope:       scope,
			FromChannel: string(st.Effective.Channel),
			ToChannel:   string(after.Channel),
			Changed:     tr.Changed,
			Deferred:    deferred,
			State:       toPrimaryState(after),
			Entry:       entry,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", req.action, err)
	}

	s.audit(ctx, resp.Entry)
	return resp, nil
}

// PinStable snapshots the live stable contract into the pinned artifact.
// Channel and rollback state are left untouched.
func (s *GovernanceServiceImpl) PinStable(ctx context.Context, req primary.PinStableRequest) (*primary.PinStableResponse, error) {
	traceID := ctxutil.EnsureTraceID(ctx, req.TraceID)

	contract, err := s.liveContract(ctx, scene.ChannelStable)
	if err != nil {
		return nil, fmt.Errorf("failed to pin stable: %w", err)
	}
	guard := governance.CanPinStable(governance.PinStableContext{Reason: req.Reason, StableSceneCount: len(contract.Scenes)})
	if err := guard.Error(); err != nil {
		return nil, invalidParams(err)
	}

	entry, err := s.writeContract(ctx, governance.PinnedRef, contract, &secondary.GovernanceLogRecord{
		Action:      governance.ActionPinStable,
		TraceID:     traceID,
		Scope:       governance.ScopeGlobal,
		FromChannel: string(scene.ChannelStable),
		ToChannel:   string(scene.ChannelStable),
		FromRef:     governance.LatestRef(scene.ChannelStable),
		ToRef:       governance.PinnedRef,
		Reason:      req.Reason,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pin stable: %w", err)
	}

	return &primary.PinStableResponse{
		Action:       governance.ActionPinStable,
		TraceID:      traceID,
		Ref:          governance.PinnedRef,
		Location:     s.artifacts.Location(governance.PinnedRef),
		Checksum:     contract.Checksum,
		SceneVersion: contract.SceneVersion,
		SceneCount:   len(contract.Scenes),
		Entry:        entry,
	}, nil
}

// ExportContract writes the live contract of a channel to its LATEST artifact.
func (s *GovernanceServiceImpl) ExportContract(ctx context.Context, req primary.ExportContractRequest) (*primary.ExportContractResponse, error) {
	guard := governance.CanExportContract(governance.ExportContractContext{Channel: req.Channel, Reason: req.Reason})
	if err := guard.Error(); err != nil {
		return nil, invalidParams(err)
	}
	ch, _ := scene.ParseChannel(req.Channel)
	traceID := ctxutil.EnsureTraceID(ctx, req.TraceID)
	ref := governance.LatestRef(ch)

	contract, err := s.liveContract(ctx, ch)
	if err != nil {
		return nil, fmt.Errorf("failed to export contract: %w", err)
	}
	entry, err := s.writeContract(ctx, ref, contract, &secondary.GovernanceLogRecord{
		Action:    governance.ActionExportContract,
		TraceID:   traceID,
		Scope:     governance.ScopeGlobal,
		ToChannel: string(ch),
		ToRef:     ref,
		Reason:    req.Reason,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export contract: %w", err)
	}

	return &primary.ExportContractResponse{
		Action:   governance.ActionExportContract,
		TraceID:  traceID,
		Ref:      ref,
		Location: s.artifacts.Location(ref),
		Contract: contract,
		Entry:    entry,
	}, nil
}

func (s *GovernanceServiceImpl) liveContract(ctx context.Context, ch scene.Channel) (scenepkg.Contract, error) {
	var contract scenepkg.Contract
	err := s.store.View(ctx, func(tx secondary.ReadTx) error {
		set, err := s.catalog.liveScenes(ctx, tx, ch, "")
		if err != nil {
			return err
		}
		contract, err = s.catalog.contract(set)
		return err
	})
	return contract, err
}

// writeContract writes the artifact first and logs it afterwards, so a logged
// artifact always exists.
func (s *GovernanceServiceImpl) writeContract(ctx context.Context, ref string, contract scenepkg.Contract, rec *secondary.GovernanceLogRecord) (*primary.LogEntry, error) {
	data, err := contract.Encode()
	if err != nil {
		return nil, err
	}
	write := []effects.Effect{effects.ArtifactEffect{Operation: "write", Ref: ref, Content: data}}
	if err := s.executor.Execute(ctx, write); err != nil {
		return nil, err
	}

	var entry *primary.LogEntry
	err = s.store.Update(ctx, func(tx secondary.WriteTx) error {
		var err error
		entry, err = appendLog(ctx, tx, rec, map[string]any{
			"checksum":      contract.Checksum,
			"scene_version": contract.SceneVersion,
			"scene_count":   len(contract.Scenes),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, entry)
	return entry, nil
}

func (s *GovernanceServiceImpl) audit(ctx context.Context, entry *primary.LogEntry) {
	if err := s.executor.Execute(ctx, auditEffects(entry)); err != nil {
		s.logger.Warn("failed to record governance action", zap.String("trace_id", entry.TraceID), zap.Error(err))
	}
}

// Ensure GovernanceServiceImpl implements the interface
var _ primary.GovernanceService = (*GovernanceServiceImpl)(nil)

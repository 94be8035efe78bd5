package app

import (
	"context"
	"fmt"

	"github.com/example/scenegov/internal/core/governance"
	"github.com/example/scenegov/internal/core/health"
	"github.com/example/scenegov/internal/ports/primary"
	"github.com/example/scenegov/internal/ports/secondary"
)

// HealthServiceImpl implements the HealthService interface.
type HealthServiceImpl struct {
	store       secondary.Store
	diagnostics *DiagnosticsServiceImpl
}

// NewHealthService creates a new HealthService with injected dependencies.
func NewHealthService(store secondary.Store, diagnostics *DiagnosticsServiceImpl) *HealthServiceImpl {
	return &HealthServiceImpl{
		store:       store,
		diagnostics: diagnostics,
	}
}

// Health runs one evaluation for the scope and projects it. Summary counts and
// detail arrays come from the same pass.
func (s *HealthServiceImpl) Health(ctx context.Context, req primary.HealthRequest) (*primary.HealthResponse, error) {
	q, err := health.NormalizeQuery(health.RawQuery{
		CompanyID: req.CompanyID,
		Mode:      req.Mode,
		Limit:     req.Limit,
		Offset:    req.Offset,
		Since:     req.Since,
	})
	if err != nil {
		return nil, invalidParams(err)
	}

	ev, err := s.diagnostics.Evaluate(ctx, primary.EvaluateRequest{CompanyID: q.CompanyID, TraceID: req.TraceID})
	if err != nil {
		return nil, err
	}

	full := q.Mode == health.ModeFull
	latest, recent, err := s.scopeActions(ctx, q, full)
	if err != nil {
		return nil, err
	}
	lastUpdated := ev.EvaluatedAt
	if latest != nil {
		lastUpdated = latest.CreatedAt
	}

	resp := &primary.HealthResponse{
		CompanyID:      q.CompanyID,
		SceneChannel:   ev.SceneChannel,
		RollbackActive: ev.State.RollbackActive,
		SceneVersion:   ev.SceneVersion,
		SchemaVersion:  ev.SchemaVersion,
		ContractRef:    ev.ContractRef,
		Summary:        health.Summarize(ev.Report, len(ev.NormalizeWarnings)),
		Query:          q,
		LastUpdatedAt:  lastUpdated,
		TraceID:        ev.TraceID,
		AutoDegrade:    ev.AutoDegrade,
	}
	if !full {
		return resp, nil
	}

	resp.Details = &primary.HealthDetails{
		ResolveErrors:     health.Page(ev.Report.ResolveErrors, q.Offset, q.Limit),
		Drift:             health.Page(ev.Report.Drift, q.Offset, q.Limit),
		Debt:              health.Page(ev.Report.Debt, q.Offset, q.Limit),
		MissingDebt:       health.Page(ev.Report.MissingDebt, q.Offset, q.Limit),
		NormalizeWarnings: health.Page(ev.NormalizeWarnings, q.Offset, q.Limit),
		RecentActions:     health.Page(recent, q.Offset, q.Limit),
	}
	return resp, nil
}

// scopeActions reads the newest log entry affecting the query's scope and,
// when withRecent is set, the entries since q.Since up to the end of the
// requested page, newest first. A company scope sees its own entries plus
// global ones.
func (s *HealthServiceImpl) scopeActions(ctx context.Context, q health.Query, withRecent bool) (*primary.LogEntry, []*primary.LogEntry, error) {
	filters := secondary.GovernanceLogFilters{}
	if scope := governance.ScopeFor(q.CompanyID); scope != governance.ScopeGlobal {
		filters.Scopes = []string{scope, governance.ScopeGlobal}
	}

	var latest, recent []*secondary.GovernanceLogRecord
	err := s.store.View(ctx, func(tx secondary.ReadTx) error {
		head := filters
		head.Limit = 1
		var err error
		if latest, err = tx.ListLogs(ctx, head); err != nil || !withRecent {
			return err
		}

		page := filters
		page.Limit = q.Offset + q.Limit
		if q.Since != nil {
			page.Since = q.Since.UTC().Format(secondary.TimeLayout)
		}
		recent, err = tx.ListLogs(ctx, page)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list recent actions: %w", err)
	}

	var newest *primary.LogEntry
	if len(latest) > 0 {
		newest = recordToLogEntry(latest[0])
	}
	out := make([]*primary.LogEntry, len(recent))
	for i, r := range recent {
		out[i] = recordToLogEntry(r)
	}
	return newest, out, nil
}

// Ensure HealthServiceImpl implements the interface
var _ primary.HealthService = (*HealthServiceImpl)(nil)

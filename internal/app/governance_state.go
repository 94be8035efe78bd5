package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/scenegov/internal/core/effects"
	"github.com/example/scenegov/internal/core/governance"
	"github.com/example/scenegov/internal/ctxutil"
	"github.com/example/scenegov/internal/metrics"
	"github.com/example/scenegov/internal/ports/primary"
	"github.com/example/scenegov/internal/ports/secondary"
)

const stateKeyPrefix = "governance/state/"

func stateKey(scope string) string {
	return stateKeyPrefix + scope
}

// scopeState is the governance state of one scope as read inside a transaction.
// Own is the scope's own state; a scope that was never written inherits the
// global channel but not the global rollback. Effective folds Own over Global.
type scopeState struct {
	Scope     string
	Global    governance.ChannelState
	Own       governance.ChannelState
	Version   int64
	Effective governance.ChannelState
}

func readState(ctx context.Context, tx secondary.ReadTx, scope string) (governance.ChannelState, int64, error) {
	rec, err := tx.GetConfig(ctx, stateKey(scope))
	if err != nil {
		return governance.ChannelState{}, 0, fmt.Errorf("failed to read state of %s: %w", scope, err)
	}
	if rec == nil {
		return governance.DefaultState(scope), 0, nil
	}
	var st governance.ChannelState
	if err := json.Unmarshal([]byte(rec.Value), &st); err != nil {
		return governance.ChannelState{}, 0, fmt.Errorf("failed to decode state of %s: %w", scope, err)
	}
	st.Scope = scope
	return st, rec.Version, nil
}

func loadScopeState(ctx context.Context, tx secondary.ReadTx, scope string) (scopeState, error) {
	global, globalVersion, err := readState(ctx, tx, governance.ScopeGlobal)
	if err != nil {
		return scopeState{}, err
	}
	if scope == governance.ScopeGlobal {
		return scopeState{Scope: scope, Global: global, Own: global, Version: globalVersion, Effective: global}, nil
	}

	own, version, err := readState(ctx, tx, scope)
	if err != nil {
		return scopeState{}, err
	}
	var scoped *governance.ChannelState
	if version > 0 {
		scoped = &own
	} else {
		own = governance.ApplyClearRollback(global).To
		own.Scope = scope
	}
	return scopeState{
		Scope:     scope,
		Global:    global,
		Own:       own,
		Version:   version,
		Effective: governance.Effective(global, scoped, scope),
	}, nil
}

// writeOwnState stores next as the scope's own state and returns the new effective state.
func writeOwnState(ctx context.Context, tx secondary.WriteTx, st scopeState, next governance.ChannelState) (governance.ChannelState, error) {
	next.Scope = st.Scope
	value, err := json.Marshal(next)
	if err != nil {
		return governance.ChannelState{}, fmt.Errorf("failed to encode state: %w", err)
	}
	if _, err := tx.CompareAndSwapConfig(ctx, stateKey(st.Scope), st.Version, string(value)); err != nil {
		return governance.ChannelState{}, fmt.Errorf("failed to write state of %s: %w", st.Scope, err)
	}
	if st.Scope == governance.ScopeGlobal {
		return next, nil
	}
	return governance.Effective(st.Global, &next, st.Scope), nil
}

func toPrimaryState(s governance.ChannelState) primary.ChannelState {
	companyID, _ := governance.CompanyFromScope(s.Scope)
	return primary.ChannelState{
		CompanyID:        companyID,
		Scope:            s.Scope,
		Channel:          string(s.Channel),
		RequestedChannel: string(s.RequestedChannel),
		RollbackActive:   s.RollbackActive,
		RollbackRef:      s.RollbackRef,
		ContractRef:      s.ContractRef,
	}
}

// appendLog writes a governance log entry, stamping the operator from ctx into its payload.
func appendLog(ctx context.Context, tx secondary.WriteTx, rec *secondary.GovernanceLogRecord, payload map[string]any) (*primary.LogEntry, error) {
	if actor := ctxutil.ActorFromContext(ctx); actor != "" {
		if payload == nil {
			payload = map[string]any{}
		}
		payload["actor"] = actor
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode log payload: %w", err)
		}
		rec.Payload = string(data)
	}
	if err := tx.AppendLog(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to append %s log entry: %w", rec.Action, err)
	}
	return recordToLogEntry(rec), nil
}

func recordToLogEntry(r *secondary.GovernanceLogRecord) *primary.LogEntry {
	entry := &primary.LogEntry{
		ID:          r.ID,
		Action:      r.Action,
		TraceID:     r.TraceID,
		Scope:       r.Scope,
		CompanyID:   r.CompanyID,
		FromChannel: r.FromChannel,
		ToChannel:   r.ToChannel,
		FromRef:     r.FromRef,
		ToRef:       r.ToRef,
		Reason:      r.Reason,
		CreatedAt:   r.CreatedAt,
	}
	if r.Payload != "" && r.Payload != "{}" {
		var payload map[string]any
		if err := json.Unmarshal([]byte(r.Payload), &payload); err == nil {
			entry.Payload = payload
		}
	}
	return entry
}

// auditEffects are the effects every committed governance log entry produces.
func auditEffects(entry *primary.LogEntry) []effects.Effect {
	return []effects.Effect{
		effects.LogEffect{
			Level:   "info",
			Message: "governance action recorded",
			Fields: map[string]any{
				"action":   entry.Action,
				"trace_id": entry.TraceID,
				"scope":    entry.Scope,
			},
		},
		effects.MetricEffect{Name: metrics.GovernanceAction, Labels: []string{entry.Action}},
	}
}

func invalidParams(err error) error {
	return fmt.Errorf("%w: %w", primary.ErrInvalidParams, err)
}

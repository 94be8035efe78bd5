package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/scenegov/internal/core/degrade"
	"github.com/example/scenegov/internal/core/diagnostics"
	"github.com/example/scenegov/internal/core/effects"
	"github.com/example/scenegov/internal/core/governance"
	"github.com/example/scenegov/internal/metrics"
	"github.com/example/scenegov/internal/ports/primary"
	"github.com/example/scenegov/internal/ports/secondary"
)

// SkipPolicyUnavailable is reported when the policy file cannot be read.
const SkipPolicyUnavailable = "policy_unavailable"

// DegradeController runs the auto-degrade step of a diagnostics evaluation.
type DegradeController struct {
	store    secondary.Store
	policies secondary.PolicySource
	executor EffectExecutor
	logger   *zap.Logger
}

// NewDegradeController creates a DegradeController with injected dependencies.
func NewDegradeController(
	store secondary.Store,
	policies secondary.PolicySource,
	executor EffectExecutor,
	logger *zap.Logger,
) *DegradeController {
	return &DegradeController{
		store:    store,
		policies: policies,
		executor: executor,
		logger:   logger,
	}
}

// degradeInput is what one evaluation hands to the controller.
type degradeInput struct {
	Scope     string
	CompanyID int64
	TraceID   string
	Report    diagnostics.Report
	State     governance.ChannelState
}

// Step decides on the report and, when a threshold is breached, rolls the scope
// back and logs the trigger in one transaction. Follow-up effects run after
// commit and never fail the step. It returns the outcome and the state after the step.
func (c *DegradeController) Step(ctx context.Context, in degradeInput) (primary.AutoDegradeOutcome, governance.ChannelState, error) {
	policy, err := c.policies.LoadPolicy(ctx)
	if err != nil {
		c.logger.Error("auto-degrade policy unavailable", zap.String("trace_id", in.TraceID), zap.Error(err))
		return primary.AutoDegradeOutcome{Skip: SkipPolicyUnavailable}, in.State, nil
	}

	outcome := primary.AutoDegradeOutcome{Enabled: policy.Enabled}
	decision := degrade.Decide(policy, degrade.Observe(in.Report, in.State.RollbackActive))
	if !decision.Trigger {
		outcome.Skip = decision.Skip
		outcome.ReasonCodes = decision.ReasonCodes
		return outcome, in.State, nil
	}

	after := in.State
	err = c.store.Update(ctx, func(tx secondary.WriteTx) error {
		st, err := loadScopeState(ctx, tx, in.Scope)
		if err != nil {
			return err
		}
		// A concurrent evaluation may have rolled back since the report was computed.
		if st.Effective.RollbackActive {
			decision = degrade.Decision{Skip: degrade.SkipAlreadyRolled, ReasonCodes: decision.ReasonCodes}
			after = st.Effective
			return nil
		}

		after, err = writeOwnState(ctx, tx, st, governance.ApplyRollback(st.Own).To)
		if err != nil {
			return err
		}
		outcome.Entry, err = appendLog(ctx, tx, &secondary.GovernanceLogRecord{
			Action:      governance.ActionAutoDegradeTriggered,
			TraceID:     in.TraceID,
			Scope:       in.Scope,
			CompanyID:   in.CompanyID,
			FromChannel: string(st.Effective.Channel),
			ToChannel:   string(after.Channel),
			FromRef:     st.Effective.ContractRef,
			ToRef:       after.ContractRef,
			Reason:      "critical threshold reached",
		}, map[string]any{
			"action_taken": decision.Action,
			"reason_codes": decision.ReasonCodes,
		})
		return err
	})
	if err != nil {
		return outcome, in.State, fmt.Errorf("failed to apply auto-degrade rollback: %w", err)
	}

	outcome.ReasonCodes = decision.ReasonCodes
	if !decision.Trigger {
		outcome.Skip = decision.Skip
		return outcome, after, nil
	}
	outcome.Triggered = true

	effs := degrade.PlanFollowUp(degrade.PlanInput{
		Policy:   policy,
		Decision: decision,
		TraceID:  in.TraceID,
		Scope:    in.Scope,
	})
	effs = append(effs, effects.MetricEffect{Name: metrics.GovernanceAction, Labels: []string{governance.ActionAutoDegradeTriggered}})
	for _, eff := range effs {
		err := c.executor.Execute(ctx, []effects.Effect{eff})
		if err == nil {
			continue
		}
		c.logger.Warn("auto-degrade follow-up failed", zap.String("trace_id", in.TraceID), zap.Error(err))
		if n, ok := eff.(effects.NotifyEffect); ok {
			c.recordUndelivered(ctx, n, err)
		}
	}
	return outcome, after, nil
}

// recordUndelivered logs a notification that never reached the dispatcher
// as one failed auto_degrade_notify entry per channel.
func (c *DegradeController) recordUndelivered(ctx context.Context, n effects.NotifyEffect, cause error) {
	payload := secondary.NotificationPayload{
		TraceID:     n.TraceID,
		Scope:       n.Scope,
		ActionTaken: n.ActionTaken,
		ReasonCodes: n.ReasonCodes,
		Channels:    n.Channels,
	}
	err := c.store.Update(ctx, func(tx secondary.WriteTx) error {
		for _, ch := range n.Channels {
			r := secondary.DeliveryResult{Channel: ch, Payload: payload, Err: cause}
			if err := appendNotifyOutcome(ctx, tx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("failed to record undelivered notification", zap.String("trace_id", n.TraceID), zap.Error(err))
	}
}

package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/scenegov/internal/core/governance"
	"github.com/example/scenegov/internal/ports/secondary"
)

// NotifyAuditor records notification delivery outcomes as auto_degrade_notify
// log entries. Recording is best-effort; failures are only logged.
type NotifyAuditor struct {
	store   secondary.Store
	logger  *zap.Logger
	timeout time.Duration
}

// NewNotifyAuditor creates a NotifyAuditor.
func NewNotifyAuditor(store secondary.Store, logger *zap.Logger) *NotifyAuditor {
	return &NotifyAuditor{store: store, logger: logger, timeout: 5 * time.Second}
}

// Record appends one delivery result to the governance log.
func (a *NotifyAuditor) Record(r secondary.DeliveryResult) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	err := a.store.Update(ctx, func(tx secondary.WriteTx) error {
		return appendNotifyOutcome(ctx, tx, r)
	})
	if err != nil {
		a.logger.Warn("failed to record notification outcome",
			zap.String("trace_id", r.Payload.TraceID),
			zap.String("channel", r.Channel),
			zap.Error(err))
	}
}

// appendNotifyOutcome writes the auto_degrade_notify entry for one channel.
func appendNotifyOutcome(ctx context.Context, tx secondary.WriteTx, r secondary.DeliveryResult) error {
	payload := map[string]any{
		"channel":      r.Channel,
		"delivered":    r.Err == nil,
		"reason_codes": r.Payload.ReasonCodes,
	}
	if r.Err != nil {
		payload["error"] = r.Err.Error()
	}
	companyID, _ := governance.CompanyFromScope(r.Payload.Scope)

	_, err := appendLog(ctx, tx, &secondary.GovernanceLogRecord{
		Action:    governance.ActionAutoDegradeNotify,
		TraceID:   r.Payload.TraceID,
		Scope:     r.Payload.Scope,
		CompanyID: companyID,
		Reason:    r.Payload.ActionTaken,
	}, payload)
	return err
}

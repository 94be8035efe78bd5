// Package app contains the application layer - service implementations and effect execution.
package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/example/scenegov/internal/core/effects"
	"github.com/example/scenegov/internal/metrics"
	"github.com/example/scenegov/internal/ports/secondary"
)

// EffectExecutor interprets and executes effects.
// This is the "Imperative Shell" - the only place I/O happens.
type EffectExecutor interface {
	Execute(ctx context.Context, effs []effects.Effect) error
}

// DefaultEffectExecutor implements EffectExecutor with real I/O.
type DefaultEffectExecutor struct {
	logger     *zap.Logger
	artifacts  secondary.ArtifactStore
	dispatcher secondary.NotificationDispatcher
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewEffectExecutor creates a new DefaultEffectExecutor.
// A nil dispatcher drops notify effects with a warning.
func NewEffectExecutor(
	logger *zap.Logger,
	artifacts secondary.ArtifactStore,
	dispatcher secondary.NotificationDispatcher,
	m *metrics.Metrics,
) *DefaultEffectExecutor {
	return &DefaultEffectExecutor{
		logger:     logger,
		artifacts:  artifacts,
		dispatcher: dispatcher,
		metrics:    m,
		now:        time.Now,
	}
}

var _ EffectExecutor = (*DefaultEffectExecutor)(nil)

// Execute processes a slice of effects, executing each in sequence.
func (e *DefaultEffectExecutor) Execute(ctx context.Context, effs []effects.Effect) error {
	for _, eff := range effs {
		if err := e.executeOne(ctx, eff); err != nil {
			return fmt.Errorf("failed to execute %s effect: %w", eff.EffectType(), err)
		}
	}
	return nil
}

func (e *DefaultEffectExecutor) executeOne(ctx context.Context, eff effects.Effect) error {
	switch typed := eff.(type) {
	case effects.ArtifactEffect:
		return e.executeArtifact(ctx, typed)
	case effects.NotifyEffect:
		return e.executeNotify(typed)
	case effects.MetricEffect:
		return e.metrics.Inc(typed.Name, typed.Labels...)
	case effects.LogEffect:
		e.executeLog(typed)
		return nil
	default:
		return fmt.Errorf("unknown effect type: %T", eff)
	}
}

func (e *DefaultEffectExecutor) executeArtifact(ctx context.Context, eff effects.ArtifactEffect) error {
	switch eff.Operation {
	case "write":
		return e.artifacts.Write(ctx, eff.Ref, eff.Content)
	default:
		return fmt.Errorf("unknown artifact operation: %s", eff.Operation)
	}
}

// executeNotify only enqueues; delivery outcomes reach the dispatcher's result handler.
func (e *DefaultEffectExecutor) executeNotify(eff effects.NotifyEffect) error {
	if e.dispatcher == nil {
		e.logger.Warn("notification dropped: no dispatcher configured", zap.String("trace_id", eff.TraceID))
		return nil
	}
	return e.dispatcher.Dispatch(secondary.NotificationPayload{
		TraceID:     eff.TraceID,
		Scope:       eff.Scope,
		ActionTaken: eff.ActionTaken,
		ReasonCodes: eff.ReasonCodes,
		Channels:    eff.Channels,
		TriggeredAt: e.now().UTC().Format(time.RFC3339),
	})
}

func (e *DefaultEffectExecutor) executeLog(eff effects.LogEffect) {
	keys := make([]string, 0, len(eff.Fields))
	for k := range eff.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, zap.Any(k, eff.Fields[k]))
	}

	switch eff.Level {
	case "debug":
		e.logger.Debug(eff.Message, fields...)
	case "warn":
		e.logger.Warn(eff.Message, fields...)
	case "error":
		e.logger.Error(eff.Message, fields...)
	default:
		e.logger.Info(eff.Message, fields...)
	}
}

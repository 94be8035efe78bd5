package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/scenegov/internal/ctxutil"
	"github.com/example/scenegov/internal/ports/primary"
)

// Error codes returned in the envelope.
const (
	CodeInvalidParams = "INVALID_PARAMS"
	CodeConflict      = "CONFLICT"
	CodeNotFound      = "NOT_FOUND"
	CodeInternal      = "INTERNAL"
)

// IntentRequest is the body of POST /api/intent.
type IntentRequest struct {
	Intent string          `json:"intent" binding:"required"`
	Params json.RawMessage `json:"params"`
}

// Envelope is the body of every intent response.
type Envelope struct {
	OK    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Meta  Meta       `json:"meta"`
	Error *ErrorBody `json:"error,omitempty"`
}

// Meta carries request metadata.
type Meta struct {
	TraceID string `json:"trace_id"`
	Intent  string `json:"intent,omitempty"`
}

// ErrorBody describes a failed intent.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type intentHandler func(ctx context.Context, params json.RawMessage) (any, error)

// logParams are the params of scene.governance.log.
type logParams struct {
	Scope   string `json:"scope"`
	Action  string `json:"action"`
	TraceID string `json:"trace_id"`
	Since   string `json:"since"`
	Limit   int    `json:"limit"`
}

// installedParams are the params of scene.packages.installed.
type installedParams struct {
	PackageName string `json:"package_name"`
	ActiveOnly  bool   `json:"active_only"`
}

func (s *Server) registerIntents() map[string]intentHandler {
	svc := s.services
	return map[string]intentHandler{
		"scene.health":                     handle(svc.Health.Health),
		"scene.governance.set_channel":     handle(svc.Governance.SetChannel),
		"scene.governance.rollback":        handle(svc.Governance.Rollback),
		"scene.governance.clear_rollback":  handle(svc.Governance.ClearRollback),
		"scene.governance.pin_stable":      handle(svc.Governance.PinStable),
		"scene.governance.export_contract": handle(svc.Governance.ExportContract),
		"scene.governance.log": handle(func(ctx context.Context, p logParams) ([]*primary.LogEntry, error) {
			return svc.Logs.ListLogs(ctx, primary.LogFilters{
				Scope:   p.Scope,
				Action:  p.Action,
				TraceID: p.TraceID,
				Since:   p.Since,
				Limit:   p.Limit,
			})
		}),
		"scene.package.export":         handle(svc.Packages.Export),
		"scene.package.dry_run_import": handle(svc.Packages.DryRunImport),
		"scene.package.import":         handle(svc.Packages.Import),
		"scene.packages.installed": handle(func(ctx context.Context, p installedParams) ([]*primary.InstalledPackage, error) {
			return svc.Packages.Installed(ctx, primary.InstalledFilters{
				PackageName: p.PackageName,
				ActiveOnly:  p.ActiveOnly,
			})
		}),
		"app.init": handle(svc.Diagnostics.AppInit),
	}
}

// handle adapts a typed service call into an intent handler. Params are
// decoded strictly; unknown fields are rejected.
func handle[T, R any](fn func(context.Context, T) (R, error)) intentHandler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params T
		if err := decodeParams(raw, &params); err != nil {
			return nil, err
		}
		return fn(ctx, params)
	}
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid params: %w", primary.ErrInvalidParams, err)
	}
	return nil
}

func (s *Server) handleIntent(c *gin.Context) {
	ctx := c.Request.Context()
	if actor := strings.TrimSpace(c.GetHeader(HeaderActor)); actor != "" {
		ctx = ctxutil.WithActorID(ctx, actor)
	}
	ctx = ctxutil.WithTraceID(ctx, ctxutil.EnsureTraceID(ctx, c.GetHeader(HeaderTraceID)))

	var req IntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respond(ctx, c, "", nil, fmt.Errorf("%w: invalid request body: %w", primary.ErrInvalidParams, err))
		return
	}

	handler, ok := s.intents[req.Intent]
	if !ok {
		s.respond(ctx, c, req.Intent, nil, fmt.Errorf("%w: unknown intent %q", primary.ErrNotFound, req.Intent))
		return
	}

	// An explicit trace_id param wins over the header.
	var traced struct {
		TraceID string `json:"trace_id"`
	}
	_ = json.Unmarshal(req.Params, &traced)
	ctx = ctxutil.WithTraceID(ctx, ctxutil.EnsureTraceID(ctx, traced.TraceID))

	data, err := handler(ctx, req.Params)
	s.respond(ctx, c, req.Intent, data, err)
}

func (s *Server) respond(ctx context.Context, c *gin.Context, intent string, data any, err error) {
	env := Envelope{Meta: Meta{TraceID: ctxutil.TraceIDFromContext(ctx), Intent: intent}}
	c.Header(HeaderTraceID, env.Meta.TraceID)

	if err == nil {
		env.OK = true
		env.Data = data
		s.metrics.ObserveIntent(intent, "OK")
		c.JSON(http.StatusOK, env)
		return
	}

	status, code := classify(err)
	message := err.Error()
	if code == CodeInternal {
		s.logger.Error("intent failed",
			zap.String("intent", intent),
			zap.String("trace_id", env.Meta.TraceID),
			zap.Error(err))
		message = "internal error"
	}
	env.Error = &ErrorBody{Code: code, Message: message}
	s.metrics.ObserveIntent(intent, code)
	c.JSON(status, env)
}

// classify maps an error to an HTTP status and envelope code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, primary.ErrInvalidParams):
		return http.StatusBadRequest, CodeInvalidParams
	case errors.Is(err, primary.ErrConflict):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, primary.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// Package httpapi exposes the primary ports over a single intent endpoint.
//
// Every call is a POST /api/intent with body {"intent": name, "params": {...}}.
// Responses use one envelope: {"ok", "data", "meta": {"trace_id"}, "error": {"code", "message"}}.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/example/scenegov/internal/metrics"
	"github.com/example/scenegov/internal/ports/primary"
)

// Headers read from incoming requests.
const (
	HeaderTraceID = "X-Trace-ID"
	HeaderActor   = "X-Actor"
)

// Services are the primary ports the transport dispatches to.
type Services struct {
	Governance  primary.GovernanceService
	Diagnostics primary.DiagnosticsService
	Packages    primary.PackageService
	Health      primary.HealthService
	Logs        primary.LogService
}

// Server routes intents to services.
type Server struct {
	services Services
	logger   *zap.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	intents  map[string]intentHandler
	engine   *gin.Engine
}

// New creates a Server. A nil gatherer disables GET /metrics.
func New(services Services, logger *zap.Logger, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		services: services,
		logger:   logger,
		metrics:  m,
		gatherer: gatherer,
	}
	s.intents = s.registerIntents()
	s.engine = s.newEngine()
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Intents lists the registered intent names.
func (s *Server) Intents() []string {
	names := make([]string, 0, len(s.intents))
	for name := range s.intents {
		names = append(names, name)
	}
	return names
}

func (s *Server) newEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), s.accessLog())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	api := engine.Group("/api")
	api.POST("/intent", s.handleIntent)
	return engine
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("intent server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// Package wire provides dependency injection for scenegov.
// It creates singleton services with lazy initialization.
package wire

import (
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	cliadapter "github.com/example/scenegov/internal/adapters/cli"
	"github.com/example/scenegov/internal/adapters/filesystem"
	"github.com/example/scenegov/internal/adapters/httpapi"
	"github.com/example/scenegov/internal/adapters/memory"
	"github.com/example/scenegov/internal/adapters/notify"
	"github.com/example/scenegov/internal/adapters/sqlite"
	"github.com/example/scenegov/internal/app"
	"github.com/example/scenegov/internal/config"
	"github.com/example/scenegov/internal/db"
	"github.com/example/scenegov/internal/logging"
	"github.com/example/scenegov/internal/metrics"
	"github.com/example/scenegov/internal/ports/primary"
	"github.com/example/scenegov/internal/ports/secondary"
)

var (
	workDir = "."

	cfg        *config.Config
	logger     *zap.Logger
	registry   *prometheus.Registry
	m          *metrics.Metrics
	dispatcher *notify.Dispatcher

	governanceService  primary.GovernanceService
	diagnosticsService primary.DiagnosticsService
	packageService     primary.PackageService
	healthService      primary.HealthService
	logService         primary.LogService

	once sync.Once
)

// SetWorkDir selects the workspace whose .scenegov/config.json is loaded.
// Call it before the first service accessor.
func SetWorkDir(dir string) {
	workDir = dir
}

// GovernanceService returns the singleton GovernanceService instance.
func GovernanceService() primary.GovernanceService {
	once.Do(initServices)
	return governanceService
}

// DiagnosticsService returns the singleton DiagnosticsService instance.
func DiagnosticsService() primary.DiagnosticsService {
	once.Do(initServices)
	return diagnosticsService
}

// PackageService returns the singleton PackageService instance.
func PackageService() primary.PackageService {
	once.Do(initServices)
	return packageService
}

// HealthService returns the singleton HealthService instance.
func HealthService() primary.HealthService {
	once.Do(initServices)
	return healthService
}

// LogService returns the singleton LogService instance.
func LogService() primary.LogService {
	once.Do(initServices)
	return logService
}

// Config returns the resolved workspace configuration.
func Config() *config.Config {
	once.Do(initServices)
	return cfg
}

// Logger returns the process logger.
func Logger() *zap.Logger {
	once.Do(initServices)
	return logger
}

// HTTPServer returns a new intent server over the singleton services.
func HTTPServer() *httpapi.Server {
	once.Do(initServices)
	return httpapi.New(httpapi.Services{
		Governance:  governanceService,
		Diagnostics: diagnosticsService,
		Packages:    packageService,
		Health:      healthService,
		Logs:        logService,
	}, logger, m, registry)
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	loaded, err := config.LoadOrDefault(workDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg = loaded.Resolve(workDir)

	logger, err = logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	store, err := newStore(cfg)
	if err != nil {
		log.Fatalf("failed to initialize store: %v", err)
	}

	artifacts, err := filesystem.NewArtifactStore(cfg.ArtifactsDir)
	if err != nil {
		log.Fatalf("failed to initialize artifact store: %v", err)
	}
	sources := &filesystem.Sources{
		RegistryPath:   cfg.RegistryPath,
		NavigationPath: cfg.NavigationPath,
		DebtPath:       cfg.DebtBaselinePath,
		PolicyPath:     cfg.PolicyPath,
	}

	registry = prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m = metrics.New(registry)

	// Notification outcomes are audited back into the governance log.
	auditor := app.NewNotifyAuditor(store, logger)
	timeout := time.Duration(cfg.Notify.TimeoutSeconds) * time.Second
	dispatcher = notify.NewDispatcher(
		notify.NewResolver(logger, &http.Client{Timeout: timeout}),
		logger,
		notify.DispatcherOptions{
			QueueSize:   cfg.Notify.QueueSize,
			Timeout:     timeout,
			MaxParallel: cfg.Notify.MaxParallel,
			OnResult:    auditor.Record,
			Metrics:     m,
		},
	)

	executor := app.NewEffectExecutor(logger, artifacts, dispatcher, m)
	catalog := app.NewSceneCatalog(sources, sources, sources, artifacts, app.CatalogSettings{
		CriticalScenes: cfg.CriticalScenes,
		Exemptions:     cfg.Exemptions,
		Customizations: cfg.AcceptedCustomizations,
	}, logger)
	controller := app.NewDegradeController(store, sources, executor, logger)

	diagnostics := app.NewDiagnosticsService(store, catalog, controller, logger, m)
	diagnosticsService = diagnostics
	governanceService = app.NewGovernanceService(store, catalog, artifacts, executor, logger)
	packageService = app.NewPackageService(store, catalog, artifacts, diagnostics, executor, logger)
	healthService = app.NewHealthService(store, diagnostics)
	logService = app.NewLogService(store)
}

func newStore(c *config.Config) (secondary.Store, error) {
	if c.Store == config.StoreMemory {
		return memory.NewStore(), nil
	}
	db.SetPath(c.DBPath)
	database, err := db.GetDB()
	if err != nil {
		return nil, err
	}
	return sqlite.NewStore(database), nil
}

// Shutdown drains pending notifications and releases the database.
// It is safe to call when no service was ever requested.
func Shutdown() {
	if dispatcher != nil {
		dispatcher.Close()
	}
	if err := db.Close(); err != nil && logger != nil {
		logger.Warn("failed to close database", zap.Error(err))
	}
	if logger != nil {
		_ = logger.Sync()
	}
}

// GovernanceAdapter returns a new GovernanceAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func GovernanceAdapter() *cliadapter.GovernanceAdapter {
	return GovernanceAdapterWithOutput(os.Stdout)
}

// GovernanceAdapterWithOutput returns a new GovernanceAdapter writing to the given output.
func GovernanceAdapterWithOutput(out io.Writer) *cliadapter.GovernanceAdapter {
	once.Do(initServices)
	return cliadapter.NewGovernanceAdapter(governanceService, logService, out)
}

// HealthAdapter returns a new HealthAdapter writing to stdout.
func HealthAdapter() *cliadapter.HealthAdapter {
	once.Do(initServices)
	return cliadapter.NewHealthAdapter(healthService, diagnosticsService, os.Stdout)
}

// PackageAdapter returns a new PackageAdapter writing to stdout.
func PackageAdapter() *cliadapter.PackageAdapter {
	once.Do(initServices)
	return cliadapter.NewPackageAdapter(packageService, os.Stdout)
}

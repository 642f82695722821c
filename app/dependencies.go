package app

import (
	"context"
	"fmt"
	"time"

	"github.com/upb/llm-router/config"
	"github.com/upb/llm-router/internal/observability"
	"github.com/upb/llm-router/middleware"
	"github.com/upb/llm-router/repositories"
	"github.com/upb/llm-router/repositories/postgres"
	"github.com/upb/llm-router/services/audit"
	"github.com/upb/llm-router/services/providers"
	"github.com/upb/llm-router/services/providers/codex"
	"github.com/upb/llm-router/services/providers/openai"
	"github.com/upb/llm-router/services/routing"
	"go.uber.org/zap"
)

const auditStopTimeout = 5 * time.Second

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB // nil when DATABASE_URL is not set
	Logger *zap.Logger

	// Repositories
	DispatchEvents repositories.DispatchEventRepository

	// Services
	Registry *providers.Registry
	Audit    *audit.AuditService
	Router   *routing.RoutingService

	// Auth
	AuthMiddleware *middleware.AuthMiddleware

	// Observability
	Metrics *observability.Metrics // nil when METRICS_ENABLED=false

	stopRetention context.CancelFunc
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initAudit(ctx); err != nil {
		deps.closeDatabase()
		return nil, fmt.Errorf("failed to initialize audit: %w", err)
	}

	deps.initProviders()
	deps.initRouter()
	deps.initAuth()
	deps.initMetrics()

	logger.Info("all dependencies initialized successfully",
		zap.Strings("models", deps.Router.ListModels()),
		zap.Bool("audit_persistent", deps.Audit.Enabled()),
		zap.Bool("auth_enabled", deps.AuthMiddleware.Enabled()))
	return deps, nil
}

// NewLocalDependencies wires the dispatcher without database or auth, for
// command line use
func NewLocalDependencies(cfg *config.Config, logger *zap.Logger) *Dependencies {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}
	deps.Audit = audit.NewAuditService(nil, logger, audit.DefaultConfig())
	_ = deps.Audit.Start()
	deps.initProviders()
	deps.initRouter()
	deps.AuthMiddleware = middleware.NewAuthMiddleware(nil, logger)
	return deps
}

// initDatabase opens the audit database when one is configured
func (d *Dependencies) initDatabase(ctx context.Context) error {
	if d.Config.Database == nil {
		d.Logger.Info("no database configured, dispatch events will only be logged")
		return nil
	}

	db, err := postgres.NewDB(*d.Config.Database, d.Logger)
	if err != nil {
		return err
	}

	if err := db.InitSchema(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.DB = db
	d.DispatchEvents = postgres.NewDispatchEventRepository(db, d.Logger)
	return nil
}

// initAudit starts the dispatch event recorder and, with a database, the
// retention worker
func (d *Dependencies) initAudit(ctx context.Context) error {
	d.Audit = audit.NewAuditService(d.DispatchEvents, d.Logger, audit.DefaultConfig())
	if err := d.Audit.Start(); err != nil {
		return err
	}

	if d.Config.Database != nil && d.Config.Database.Retention > 0 {
		workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		d.stopRetention = cancel
		go d.Audit.StartRetentionWorker(workerCtx, d.Config.Database.CleanupInterval, d.Config.Database.Retention)
	}
	return nil
}

// initProviders creates the backend registry with one builder per backend kind
func (d *Dependencies) initProviders() {
	d.Registry = providers.NewRegistry(d.Config, d.Logger,
		providers.WithTimeout(d.Config.Router.BackendTimeout),
		providers.WithBuilder(providers.KindOAuth, codex.NewBuilder(d.Logger)),
		providers.WithBuilder(providers.KindDirect, openai.NewDirectBuilder(d.Logger)),
		providers.WithBuilder(providers.KindGateway, openai.NewGatewayBuilder(d.Logger)),
	)

	if len(d.Config.Providers) == 0 {
		d.Logger.Warn("no LLM providers configured")
	}
}

// initRouter creates the fallback dispatcher
func (d *Dependencies) initRouter() {
	d.Router = routing.NewRoutingService(routing.RoutingConfig{
		Models:       d.Config.Router.Models,
		DefaultModel: d.Config.Router.DefaultModel,
		MaxTokens:    d.Config.Router.MaxTokens,
		Temperature:  d.Config.Router.Temperature,
	}, d.Registry, d.Audit, d.Logger)
}

// initMetrics registers the prometheus collectors
func (d *Dependencies) initMetrics() {
	if !d.Config.Observability.MetricsEnabled {
		return
	}
	d.Metrics = observability.NewMetrics(d.Router, d.Audit)
}

// initAuth enables bearer authentication when a JWT secret is configured
func (d *Dependencies) initAuth() {
	if d.Config.Auth.JWTSecret == "" {
		d.Logger.Warn("AUTH_JWT_SECRET not set, chat endpoints are unauthenticated")
		d.AuthMiddleware = middleware.NewAuthMiddleware(nil, d.Logger)
		return
	}
	validator := middleware.NewHMACValidator(d.Config.Auth.JWTSecret, d.Config.Auth.Issuer)
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.stopRetention != nil {
		d.stopRetention()
	}

	if d.Audit != nil {
		timeout := auditStopTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Audit.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if err := d.closeDatabase(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

func (d *Dependencies) closeDatabase() error {
	if d.DB == nil {
		return nil
	}
	err := d.DB.Close()
	d.DB = nil
	return err
}

package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/fieldops/accessctl/auth"
	"github.com/fieldops/accessctl/config"
	"github.com/fieldops/accessctl/handlers"
	abac "github.com/fieldops/accessctl/internal/policy"
	"github.com/fieldops/accessctl/middleware"
	"github.com/fieldops/accessctl/repositories"
	"github.com/fieldops/accessctl/repositories/postgres"
	"github.com/fieldops/accessctl/services/audit"
	policysvc "github.com/fieldops/accessctl/services/policy"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies holds every wired component of the service.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Redis  *redis.Client
	Logger *zap.Logger

	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Companies repositories.CompanyRepository
	Profiles  repositories.ProfileRepository
	Policies  repositories.PolicyRepository
	AuditLogs repositories.AuditRepository
	TxManager repositories.TransactionManager

	// Services
	RuleCache     policysvc.RuleCache
	PolicyService *policysvc.PolicyService
	AuditService  *audit.AuditService

	// HTTP
	AuthMiddleware *middleware.AuthMiddleware
	PermissionGate *middleware.PermissionGate
	PolicyHandler  *handlers.PolicyHandler
	ProfileHandler *handlers.ProfileHandler
	AuditHandler   *handlers.AuditHandler
	HealthHandler  *handlers.HealthHandler

	stopCleanup chan struct{}
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()

	if err := deps.initCache(ctx, cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize rule cache: %w", err)
	}

	if err := deps.initServices(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.initHTTP(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(ctx, cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()
	return nil
}

func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Companies = repos.Companies
	d.Profiles = repos.Profiles
	d.Policies = repos.Policies
	d.AuditLogs = repos.AuditLogs
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initCache selects the rule-set cache backend
func (d *Dependencies) initCache(ctx context.Context, cfg *config.Config) error {
	if cfg.Cache.Backend != config.CacheBackendRedis {
		d.RuleCache = policysvc.NewPolicyCache(cfg.Cache.Size, cfg.Cache.TTL)
		d.Logger.Info("in-memory rule cache enabled",
			zap.Int("size", cfg.Cache.Size),
			zap.Duration("ttl", cfg.Cache.TTL))
		return nil
	}

	d.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})
	if err := d.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	d.RuleCache = policysvc.NewRedisRuleCache(d.Redis, cfg.Cache.Redis.KeyPrefix, cfg.Cache.TTL, d.Logger)
	d.Logger.Info("redis rule cache enabled",
		zap.String("addr", cfg.Cache.Redis.Addr),
		zap.Duration("ttl", cfg.Cache.TTL))
	return nil
}

func (d *Dependencies) initServices(cfg *config.Config) error {
	d.PolicyService = policysvc.NewPolicyService(d.Policies, d.AuditLogs, d.TxManager, d.RuleCache, d.Logger)
	if cfg.Cache.CleanupInterval > 0 {
		d.stopCleanup = make(chan struct{})
		go d.PolicyService.StartCacheCleanup(cfg.Cache.CleanupInterval, d.stopCleanup)
	}

	d.AuditService = audit.NewAuditService(d.AuditLogs, d.Logger, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.Workers,
		Decisions:   audit.DecisionMode(cfg.Policy.AuditDecisions),
	})
	if err := d.AuditService.Start(); err != nil {
		return err
	}

	d.Logger.Info("services initialized",
		zap.String("audit_decisions", cfg.Policy.AuditDecisions))
	return nil
}

func (d *Dependencies) initHTTP(cfg *config.Config) {
	d.AuthMiddleware = middleware.NewAuthMiddleware(newTokenValidator(cfg, d.Logger), d.Profiles, d.Logger)
	d.PermissionGate = middleware.NewPermissionGate(
		d.PolicyService,
		abac.NewResolver(cfg.Policy.APIRoot),
		d.AuditService,
		d.Logger,
	)

	d.PolicyHandler = handlers.NewPolicyHandler(d.PolicyService, d.Logger)
	d.ProfileHandler = handlers.NewProfileHandler(d.Companies, d.Logger)
	d.AuditHandler = handlers.NewAuditHandler(d.AuditService, d.Logger)

	d.HealthHandler = handlers.NewHealthHandler(d.DB.DB, d.PolicyService, d.Logger).WithAudit(d.AuditService)
}

// newTokenValidator returns the bearer token validator, or one that rejects
// every token when no secret is configured.
func newTokenValidator(cfg *config.Config, logger *zap.Logger) middleware.TokenValidator {
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("JWT secret not configured, every authenticated route will return 401")
		return rejectAllValidator{}
	}
	return auth.NewTokenValidator(auth.Config{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		Leeway:   cfg.Auth.Leeway,
	})
}

type rejectAllValidator struct{}

func (rejectAllValidator) ValidateToken(context.Context, string) (*auth.ParsedClaims, error) {
	return nil, fmt.Errorf("authentication not configured")
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.AuditService != nil {
		if err := d.AuditService.Stop(d.Config.Audit.ShutdownTimeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain audit queue: %w", err))
		}
	}

	if d.stopCleanup != nil {
		close(d.stopCleanup)
		d.stopCleanup = nil
	}

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}

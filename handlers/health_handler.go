package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/fieldops/accessctl/services/audit"
	policysvc "github.com/fieldops/accessctl/services/policy"
	"github.com/fieldops/accessctl/utils"
	"go.uber.org/zap"
)

const readinessTimeout = 5 * time.Second

// CachePinger reports whether the rule-set cache backend is reachable
type CachePinger interface {
	PingCache(ctx context.Context) error
}

// CacheStatsReporter is implemented by cache owners that keep hit counters.
type CacheStatsReporter interface {
	CacheStats() (policysvc.CacheStats, bool)
}

// AuditStatsReporter exposes the audit queue state.
type AuditStatsReporter interface {
	GetStats() audit.Stats
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                `json:"status"`
	Timestamp string                `json:"timestamp"`
	Checks    map[string]string     `json:"checks,omitempty"`
	Cache     *policysvc.CacheStats `json:"cache,omitempty"`
	Audit     *audit.Stats          `json:"audit,omitempty"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db     *sql.DB
	cache  CachePinger
	audit  AuditStatsReporter
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. cache may be nil.
func NewHealthHandler(db *sql.DB, cache CachePinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		cache:  cache,
		logger: logger,
	}
}

// WithAudit adds the audit queue state to readiness responses.
func (h *HealthHandler) WithAudit(reporter AuditStatsReporter) *HealthHandler {
	h.audit = reporter
	return h
}

// HandleHealth handles GET /healthz
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles GET /readyz
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	check := func(name string, fn func(context.Context) error) {
		if err := fn(ctx); err != nil {
			h.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			checks[name] = "unhealthy"
			allHealthy = false
			return
		}
		checks[name] = "healthy"
	}

	check("database", h.checkDatabase)
	if h.cache != nil {
		check("cache", h.cache.PingCache)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)

	var err error
	if allHealthy {
		response := HealthResponse{Status: "healthy", Timestamp: timestamp, Checks: checks}
		if reporter, ok := h.cache.(CacheStatsReporter); ok {
			if stats, ok := reporter.CacheStats(); ok {
				response.Cache = &stats
			}
		}
		if h.audit != nil {
			stats := h.audit.GetStats()
			response.Audit = &stats
		}
		err = utils.WriteOK(w, response)
	} else {
		err = utils.WriteServiceUnavailable(w, "service not ready", map[string]interface{}{
			"status":    "unhealthy",
			"timestamp": timestamp,
			"checks":    checks,
		})
	}
	if err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if h.db == nil {
		return nil
	}
	if err := h.db.PingContext(ctx); err != nil {
		return err
	}

	var result int
	return h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
}

package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	abac "github.com/fieldops/accessctl/internal/policy"
	"github.com/fieldops/accessctl/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PolicyService is the evaluation entry point and the administrative surface
// over a company's access policies.
type PolicyService struct {
	policyRepo repositories.PolicyRepository
	auditRepo  repositories.AuditRepository
	txManager  repositories.TransactionManager
	cache      RuleCache
	engine     *abac.Engine
	logger     *zap.Logger

	// fillMu orders cache fills against invalidations; generations counts
	// invalidations per company so a fill started before one is dropped.
	fillMu      sync.Mutex
	generations map[uuid.UUID]uint64
}

// NewPolicyService creates a new PolicyService instance
func NewPolicyService(
	policyRepo repositories.PolicyRepository,
	auditRepo repositories.AuditRepository,
	txManager repositories.TransactionManager,
	cache RuleCache,
	logger *zap.Logger,
) *PolicyService {
	s := &PolicyService{
		policyRepo:  policyRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		cache:       cache,
		logger:      logger,
		generations: make(map[uuid.UUID]uint64),
	}
	s.engine = abac.NewEngine(s, logger)
	return s
}

// ActiveRuleSet returns a company's compiled active rule set, served from the
// cache when possible.
func (s *PolicyService) ActiveRuleSet(ctx context.Context, companyID uuid.UUID) (*abac.RuleSet, error) {
	if cached, ok := s.cache.GetRules(ctx, companyID); ok {
		s.logger.Debug("cache hit for rule set",
			zap.String("company_id", companyID.String()),
			zap.Int("count", cached.Len()))
		return cached, nil
	}

	generation := s.generation(companyID)

	rules, err := s.policyRepo.ListActiveByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active rules: %w", err)
	}
	set := abac.NewRuleSet(companyID, rules, s.logger)

	s.fillMu.Lock()
	if s.generations[companyID] == generation {
		s.cache.SetRules(ctx, companyID, set)
	} else {
		s.logger.Debug("rule set changed during load, not caching",
			zap.String("company_id", companyID.String()))
	}
	s.fillMu.Unlock()

	s.logger.Debug("cache miss for rule set, fetched from database",
		zap.String("company_id", companyID.String()),
		zap.Int("count", set.Len()))

	return set, nil
}

func (s *PolicyService) generation(companyID uuid.UUID) uint64 {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	return s.generations[companyID]
}

// Evaluate decides req against the actor's company rule set
func (s *PolicyService) Evaluate(ctx context.Context, req *abac.EvaluationRequest) (*abac.Decision, error) {
	decision, err := s.engine.Evaluate(ctx, req)
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("action", req.Action),
		zap.Bool("allowed", decision.Allowed),
		zap.String("reason", string(decision.Reason)),
		zap.String("principal_id", req.Actor.PrincipalID),
	}
	if req.Actor.CompanyID != nil {
		fields = append(fields, zap.String("company_id", req.Actor.CompanyID.String()))
	}
	if decision.PolicyID != nil {
		fields = append(fields, zap.String("policy_id", decision.PolicyID.String()))
	}
	s.logger.Debug("access evaluated", fields...)

	return decision, nil
}

// InvalidateCompany drops the cached rule set of a company
func (s *PolicyService) InvalidateCompany(ctx context.Context, companyID uuid.UUID) {
	s.fillMu.Lock()
	s.generations[companyID]++
	s.cache.Invalidate(ctx, companyID)
	s.fillMu.Unlock()

	s.logger.Debug("invalidated rule set cache", zap.String("company_id", companyID.String()))
}

// PingCache checks the cache backend
func (s *PolicyService) PingCache(ctx context.Context) error {
	return s.cache.Ping(ctx)
}

// CacheStats reports the counters of the in-process cache. ok is false for
// other backends.
func (s *PolicyService) CacheStats() (CacheStats, bool) {
	memory, ok := s.cache.(*PolicyCache)
	if !ok {
		return CacheStats{}, false
	}
	return memory.Stats(), true
}

// StartCacheCleanup runs the expiry worker of the in-process cache until
// stopCh is closed. Other backends expire entries themselves.
func (s *PolicyService) StartCacheCleanup(interval time.Duration, stopCh <-chan struct{}) {
	memory, ok := s.cache.(*PolicyCache)
	if !ok {
		return
	}
	s.logger.Info("started cache cleanup worker", zap.Duration("interval", interval))
	memory.StartCleanupWorker(interval, stopCh)
}

package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fieldops/accessctl/internal/policy"
	"github.com/fieldops/accessctl/models"
	"github.com/fieldops/accessctl/repositories"
	"github.com/fieldops/accessctl/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const resourceEndpoint = "endpoint"

// DecisionMode selects which gate decisions are written to the audit trail
type DecisionMode string

const (
	DecisionsOff    DecisionMode = "off"
	DecisionsDenied DecisionMode = "denied"
	DecisionsAll    DecisionMode = "all"
)

// AuditEvent represents an event to be audited
type AuditEvent struct {
	Log *models.AuditLog
}

// DecisionEvent is one permission gate decision
type DecisionEvent struct {
	Actor     policy.Actor
	Decision  *policy.Decision
	Method    string
	Path      string
	SitecID   string
	RequestID string
	IPAddress string
	UserAgent string
}

// AuditService writes audit entries asynchronously so request handling never
// waits on the audit store.
type AuditService struct {
	auditRepo   repositories.AuditRepository
	logger      *zap.Logger
	eventChan   chan *AuditEvent
	workerCount int
	bufferSize  int
	decisions   DecisionMode
	wg          sync.WaitGroup
	mu          sync.RWMutex
	started     bool
	stopped     bool
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize  int          // Size of the event buffer channel
	WorkerCount int          // Number of concurrent workers
	Decisions   DecisionMode // Which gate decisions are recorded
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1000,
		WorkerCount: 3,
		Decisions:   DecisionsDenied,
	}
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repositories.AuditRepository, logger *zap.Logger, config Config) *AuditService {
	if config.Decisions == "" {
		config.Decisions = DecisionsDenied
	}
	return &AuditService{
		auditRepo:   auditRepo,
		logger:      logger,
		eventChan:   make(chan *AuditEvent, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		decisions:   config.Decisions,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize),
		zap.String("decisions", string(s.decisions)))

	return nil
}

// Stop stops accepting events and waits for the queued ones to be written
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("audit service not running")
	}
	s.stopped = true
	close(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// LogEvent queues an event without blocking. A full buffer drops the event.
func (s *AuditService) LogEvent(event *AuditEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started || s.stopped {
		return fmt.Errorf("audit service not running")
	}

	select {
	case s.eventChan <- event:
		return nil
	default:
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("action", string(event.Log.Action)),
			zap.String("company_id", companyField(event.Log.CompanyID)))
		return fmt.Errorf("audit event buffer full")
	}
}

// LogDecision records a gate decision according to the configured mode
func (s *AuditService) LogDecision(event DecisionEvent) error {
	if !s.ShouldRecord(event.Decision) {
		return nil
	}

	action := models.AuditActionAccessDenied
	if event.Decision.Allowed {
		action = models.AuditActionAccessAllowed
	}

	log := models.NewAuditLog(action, resourceEndpoint).
		WithActor(event.Actor.PrincipalID, event.Actor.ProfileID).
		WithRequest(event.RequestID, event.IPAddress, event.UserAgent)
	if event.Actor.CompanyID != nil {
		log.WithCompany(*event.Actor.CompanyID)
	}
	if event.Decision.PolicyID != nil {
		log.WithResource(*event.Decision.PolicyID)
	}
	log.WithDetails(map[string]interface{}{
		"action":   event.Decision.Action,
		"reason":   event.Decision.Reason,
		"role":     event.Actor.Role,
		"method":   event.Method,
		"path":     event.Path,
		"sitec_id": event.SitecID,
	})

	return s.LogEvent(&AuditEvent{Log: log})
}

// ShouldRecord reports whether a decision is written under the current mode
func (s *AuditService) ShouldRecord(decision *policy.Decision) bool {
	if decision == nil {
		return false
	}
	switch s.decisions {
	case DecisionsAll:
		return true
	case DecisionsDenied:
		return !decision.Allowed
	default:
		return false
	}
}

// ListLogs returns a company's audit trail, newest first
func (s *AuditService) ListLogs(ctx context.Context, companyID uuid.UUID, filter repositories.AuditFilter) ([]*models.AuditLog, error) {
	logs, err := s.auditRepo.ListByCompany(ctx, companyID, filter)
	if err != nil {
		return nil, services.FromRepository(err, services.ErrAuditLogNotFound)
	}
	return logs, nil
}

// worker processes events from the channel
func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for event := range s.eventChan {
		if err := s.processEvent(event); err != nil {
			s.logger.Error("failed to process audit event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", string(event.Log.Action)),
				zap.String("company_id", companyField(event.Log.CompanyID)))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

func (s *AuditService) processEvent(event *AuditEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.auditRepo.Insert(ctx, event.Log); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started && !s.stopped,
		Decisions:     s.decisions,
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int          `json:"buffer_size"`
	PendingEvents int          `json:"pending_events"`
	WorkerCount   int          `json:"worker_count"`
	Started       bool         `json:"started"`
	Decisions     DecisionMode `json:"decisions"`
}

func companyField(companyID *uuid.UUID) string {
	if companyID == nil {
		return ""
	}
	return companyID.String()
}

package repositories

import (
	"context"
	"errors"

	"github.com/fieldops/accessctl/models"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is wrapped by repositories when a row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is wrapped by repositories when a write hits a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes fn within a transaction. Repositories called with
	// the ctx handed to fn run inside it. Commits if fn succeeds, rolls back
	// on error.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	Context() context.Context
}

// PolicyRepository handles access policy data operations
type PolicyRepository interface {
	// Create creates a new access policy
	Create(ctx context.Context, policy *models.AccessPolicy) error

	// GetByID retrieves an access policy by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.AccessPolicy, error)

	// ListByCompany retrieves a company's policies in evaluation order,
	// optionally filtered on is_active
	ListByCompany(ctx context.Context, companyID uuid.UUID, active *bool) ([]*models.AccessPolicy, error)

	// ListActiveByCompany retrieves the active policies of a company ordered
	// by priority DESC, created_at ASC, id ASC
	ListActiveByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.AccessPolicy, error)

	// Update updates an access policy
	Update(ctx context.Context, policy *models.AccessPolicy) error

	// Delete deletes an access policy
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProfileRepository handles actor profile data operations
type ProfileRepository interface {
	// Create creates a new profile
	Create(ctx context.Context, profile *models.ActorProfile) error

	// GetByID retrieves a profile by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.ActorProfile, error)

	// FindByPrincipal returns the oldest profile of a principal, or nil when
	// the principal has none
	FindByPrincipal(ctx context.Context, principalID string) (*models.ActorProfile, error)
}

// CompanyRepository handles company data operations
type CompanyRepository interface {
	// Create creates a new company
	Create(ctx context.Context, company *models.Company) error

	// GetByID retrieves a company by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error)

	// GetBySlug retrieves a company by slug
	GetBySlug(ctx context.Context, slug string) (*models.Company, error)

	// UpdateStatus changes the lifecycle state of a company
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.CompanyStatus) error
}

// AuditRepository handles audit log data operations
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// GetByID retrieves an audit log by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error)

	// ListByCompany retrieves audit logs for a company, newest first
	ListByCompany(ctx context.Context, companyID uuid.UUID, filter AuditFilter) ([]*models.AuditLog, error)
}

// AuditFilter narrows an audit log listing
type AuditFilter struct {
	Action models.AuditAction
	Limit  int
	Offset int
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Companies CompanyRepository
	Profiles  ProfileRepository
	Policies  PolicyRepository
	AuditLogs AuditRepository
}

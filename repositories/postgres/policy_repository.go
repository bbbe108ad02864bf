package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fieldops/accessctl/models"
	"github.com/fieldops/accessctl/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const policyColumns = `id, company_id, action, conditions, effect, priority, is_active, created_at, updated_at`

// evaluationOrder is the order the engine walks a rule set in. Equal
// priorities fall back to insertion order.
const evaluationOrder = `ORDER BY priority DESC, created_at ASC, id ASC`

// PolicyRepository implements the repositories.PolicyRepository interface
type PolicyRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewPolicyRepository creates a new access policy repository
func NewPolicyRepository(db *DB, logger *zap.Logger) repositories.PolicyRepository {
	return &PolicyRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new access policy
func (r *PolicyRepository) Create(ctx context.Context, policy *models.AccessPolicy) error {
	query := `
		INSERT INTO access_policies (` + policyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		policy.ID,
		policy.CompanyID,
		policy.Action,
		nullableJSON(policy.Conditions),
		policy.Effect,
		policy.Priority,
		policy.IsActive,
		policy.CreatedAt,
		policy.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create access policy: %w", classifyWriteError(err))
	}

	r.logger.Debug("access policy created",
		zap.String("id", policy.ID.String()),
		zap.String("company_id", policy.CompanyID.String()),
	)
	return nil
}

// GetByID retrieves an access policy by ID
func (r *PolicyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AccessPolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM access_policies WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	policy, err := scanPolicy(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("access policy %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get access policy: %w", err)
	}

	return policy, nil
}

// ListByCompany retrieves a company's policies, optionally filtered on is_active
func (r *PolicyRepository) ListByCompany(ctx context.Context, companyID uuid.UUID, active *bool) ([]*models.AccessPolicy, error) {
	if active == nil {
		query := `SELECT ` + policyColumns + ` FROM access_policies WHERE company_id = $1 ` + evaluationOrder
		return r.queryPolicies(ctx, query, companyID)
	}

	query := `SELECT ` + policyColumns + ` FROM access_policies WHERE company_id = $1 AND is_active = $2 ` + evaluationOrder
	return r.queryPolicies(ctx, query, companyID, *active)
}

// ListActiveByCompany retrieves the rule set the engine evaluates
func (r *PolicyRepository) ListActiveByCompany(ctx context.Context, companyID uuid.UUID) ([]*models.AccessPolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM access_policies WHERE company_id = $1 AND is_active = true ` + evaluationOrder
	return r.queryPolicies(ctx, query, companyID)
}

// Update updates an access policy. The owning company never changes.
func (r *PolicyRepository) Update(ctx context.Context, policy *models.AccessPolicy) error {
	query := `
		UPDATE access_policies
		SET action = $2,
		    conditions = $3,
		    effect = $4,
		    priority = $5,
		    is_active = $6,
		    updated_at = $7
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		policy.ID,
		policy.Action,
		nullableJSON(policy.Conditions),
		policy.Effect,
		policy.Priority,
		policy.IsActive,
		policy.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update access policy: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("access policy %s: %w", policy.ID, repositories.ErrNotFound)
	}

	r.logger.Debug("access policy updated", zap.String("id", policy.ID.String()))
	return nil
}

// Delete deletes an access policy
func (r *PolicyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM access_policies WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete access policy: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("access policy %s: %w", id, repositories.ErrNotFound)
	}

	r.logger.Debug("access policy deleted", zap.String("id", id.String()))
	return nil
}

func (r *PolicyRepository) queryPolicies(ctx context.Context, query string, args ...interface{}) ([]*models.AccessPolicy, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query access policies: %w", err)
	}
	defer rows.Close()

	policies := make([]*models.AccessPolicy, 0)
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access policy: %w", err)
		}
		policies = append(policies, policy)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating access policy rows: %w", err)
	}

	return policies, nil
}

func scanPolicy(row rowScanner) (*models.AccessPolicy, error) {
	policy := &models.AccessPolicy{}
	var conditions []byte
	err := row.Scan(
		&policy.ID,
		&policy.CompanyID,
		&policy.Action,
		&conditions,
		&policy.Effect,
		&policy.Priority,
		&policy.IsActive,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if conditions != nil {
		policy.Conditions = conditions
	}
	return policy, nil
}

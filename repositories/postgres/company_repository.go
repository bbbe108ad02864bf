package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldops/accessctl/models"
	"github.com/fieldops/accessctl/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CompanyRepository implements the repositories.CompanyRepository interface
type CompanyRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *DB, logger *zap.Logger) repositories.CompanyRepository {
	return &CompanyRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new company
func (r *CompanyRepository) Create(ctx context.Context, company *models.Company) error {
	query := `
		INSERT INTO companies (id, name, slug, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		company.ID,
		company.Name,
		company.Slug,
		company.Status,
		company.CreatedAt,
		company.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create company: %w", classifyWriteError(err))
	}

	r.logger.Debug("company created", zap.String("id", company.ID.String()), zap.String("slug", company.Slug))
	return nil
}

// GetByID retrieves a company by ID
func (r *CompanyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	query := `SELECT id, name, slug, status, created_at, updated_at FROM companies WHERE id = $1`
	return r.getOne(ctx, query, id.String(), id)
}

// GetBySlug retrieves a company by slug
func (r *CompanyRepository) GetBySlug(ctx context.Context, slug string) (*models.Company, error) {
	query := `SELECT id, name, slug, status, created_at, updated_at FROM companies WHERE slug = $1`
	return r.getOne(ctx, query, slug, slug)
}

// UpdateStatus changes the lifecycle state of a company
func (r *CompanyRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.CompanyStatus) error {
	query := `UPDATE companies SET status = $2, updated_at = $3 WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update company status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("company %s: %w", id, repositories.ErrNotFound)
	}

	r.logger.Info("company status changed", zap.String("id", id.String()), zap.String("status", string(status)))
	return nil
}

func (r *CompanyRepository) getOne(ctx context.Context, query, key string, arg interface{}) (*models.Company, error) {
	executor := GetExecutor(ctx, r.db)
	company := &models.Company{}

	err := executor.QueryRowContext(ctx, query, arg).Scan(
		&company.ID,
		&company.Name,
		&company.Slug,
		&company.Status,
		&company.CreatedAt,
		&company.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("company %s: %w", key, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}

	return company, nil
}

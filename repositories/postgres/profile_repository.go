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

// profileSelect joins the owning company so callers see its status.
const profileSelect = `
	SELECT p.id, p.principal_id, p.company_id, p.role, p.department, p.location,
	       p.preferences, p.created_at, p.updated_at, COALESCE(c.status, '')
	FROM actor_profiles p
	LEFT JOIN companies c ON c.id = p.company_id
`

// ProfileRepository implements the repositories.ProfileRepository interface
type ProfileRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewProfileRepository creates a new actor profile repository
func NewProfileRepository(db *DB, logger *zap.Logger) repositories.ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new profile
func (r *ProfileRepository) Create(ctx context.Context, profile *models.ActorProfile) error {
	query := `
		INSERT INTO actor_profiles (id, principal_id, company_id, role, department, location, preferences, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		profile.ID,
		profile.PrincipalID,
		profile.CompanyID,
		profile.Role,
		profile.Department,
		profile.Location,
		nullableJSON(profile.Preferences),
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", classifyWriteError(err))
	}

	r.logger.Debug("profile created", zap.String("id", profile.ID.String()), zap.String("principal_id", profile.PrincipalID))
	return nil
}

// GetByID retrieves a profile by ID
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ActorProfile, error) {
	query := profileSelect + ` WHERE p.id = $1`

	executor := GetExecutor(ctx, r.db)
	profile, err := scanProfile(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// FindByPrincipal returns the oldest profile of a principal. A principal
// without a profile is not an error: nil, nil is returned.
func (r *ProfileRepository) FindByPrincipal(ctx context.Context, principalID string) (*models.ActorProfile, error) {
	query := profileSelect + ` WHERE p.principal_id = $1 ORDER BY p.created_at ASC, p.id ASC LIMIT 1`

	executor := GetExecutor(ctx, r.db)
	profile, err := scanProfile(executor.QueryRowContext(ctx, query, principalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return profile, nil
}

func scanProfile(row rowScanner) (*models.ActorProfile, error) {
	profile := &models.ActorProfile{}
	var (
		companyID   uuid.NullUUID
		preferences []byte
		status      string
	)
	err := row.Scan(
		&profile.ID,
		&profile.PrincipalID,
		&companyID,
		&profile.Role,
		&profile.Department,
		&profile.Location,
		&preferences,
		&profile.CreatedAt,
		&profile.UpdatedAt,
		&status,
	)
	if err != nil {
		return nil, err
	}
	if companyID.Valid {
		id := companyID.UUID
		profile.CompanyID = &id
	}
	if preferences != nil {
		profile.Preferences = preferences
	}
	profile.CompanyStatus = models.CompanyStatus(status)
	return profile, nil
}

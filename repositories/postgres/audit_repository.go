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

const (
	auditColumns = `id, company_id, profile_id, principal_id, action, resource_type, resource_id,
		details, ip_address, user_agent, request_id, timestamp`

	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new audit log entry. Inside InTransaction the row commits
// or rolls back with the surrounding change.
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		log.ID,
		log.CompanyID,
		log.ProfileID,
		log.PrincipalID,
		log.Action,
		log.ResourceType,
		log.ResourceID,
		nullableJSON(log.Details),
		log.IPAddress,
		log.UserAgent,
		log.RequestID,
		log.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	r.logger.Debug("audit log inserted", zap.String("id", log.ID.String()), zap.String("action", string(log.Action)))
	return nil
}

// GetByID retrieves an audit log by ID
func (r *AuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	log, err := scanAuditLog(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("audit log %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get audit log: %w", err)
	}
	return log, nil
}

// ListByCompany retrieves audit logs for a company, newest first
func (r *AuditRepository) ListByCompany(ctx context.Context, companyID uuid.UUID, filter repositories.AuditFilter) ([]*models.AuditLog, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	if filter.Action != "" {
		query := `SELECT ` + auditColumns + ` FROM audit_logs
			WHERE company_id = $1 AND action = $2
			ORDER BY timestamp DESC, id DESC
			LIMIT $3 OFFSET $4`
		return r.queryAuditLogs(ctx, query, companyID, filter.Action, limit, offset)
	}

	query := `SELECT ` + auditColumns + ` FROM audit_logs
		WHERE company_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2 OFFSET $3`
	return r.queryAuditLogs(ctx, query, companyID, limit, offset)
}

func (r *AuditRepository) queryAuditLogs(ctx context.Context, query string, args ...interface{}) ([]*models.AuditLog, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*models.AuditLog, 0)
	for rows.Next() {
		log, err := scanAuditLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log rows: %w", err)
	}

	return logs, nil
}

func scanAuditLog(row rowScanner) (*models.AuditLog, error) {
	log := &models.AuditLog{}
	var (
		companyID  uuid.NullUUID
		profileID  uuid.NullUUID
		resourceID uuid.NullUUID
		details    []byte
		ipAddress  sql.NullString
		userAgent  sql.NullString
		requestID  sql.NullString
	)
	err := row.Scan(
		&log.ID,
		&companyID,
		&profileID,
		&log.PrincipalID,
		&log.Action,
		&log.ResourceType,
		&resourceID,
		&details,
		&ipAddress,
		&userAgent,
		&requestID,
		&log.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	if companyID.Valid {
		log.CompanyID = &companyID.UUID
	}
	if profileID.Valid {
		log.ProfileID = &profileID.UUID
	}
	if resourceID.Valid {
		log.ResourceID = &resourceID.UUID
	}
	if details != nil {
		log.Details = details
	}
	log.IPAddress = ipAddress.String
	log.UserAgent = userAgent.String
	log.RequestID = requestID.String
	return log, nil
}

package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/fieldops/accessctl/models"
	"github.com/fieldops/accessctl/repositories"
	"github.com/fieldops/accessctl/services"
	"github.com/fieldops/accessctl/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditLister reads a company's audit trail
type AuditLister interface {
	ListLogs(ctx context.Context, companyID uuid.UUID, filter repositories.AuditFilter) ([]*models.AuditLog, error)
}

// AuditHandler handles audit trail HTTP requests
type AuditHandler struct {
	audit  AuditLister
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(audit AuditLister, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		audit:  audit,
		logger: logger,
	}
}

// HandleListLogs handles GET /api/audit/logs/?action=&limit=&offset=
func (h *AuditHandler) HandleListLogs(w http.ResponseWriter, r *http.Request) {
	caller := callerFromRequest(r)
	if caller.CompanyID == nil {
		HandleServiceError(w, services.ErrNoTenant, h.logger)
		return
	}

	query := r.URL.Query()
	filter := repositories.AuditFilter{Action: models.AuditAction(query.Get("action"))}

	var err error
	if filter.Limit, err = queryInt(query.Get("limit")); err != nil {
		_ = utils.WriteBadRequest(w, "limit must be a non-negative integer", nil)
		return
	}
	if filter.Offset, err = queryInt(query.Get("offset")); err != nil {
		_ = utils.WriteBadRequest(w, "offset must be a non-negative integer", nil)
		return
	}

	logs, err := h.audit.ListLogs(r.Context(), *caller.CompanyID, filter)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, logs)
}

func queryInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

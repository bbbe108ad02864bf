package handlers

import (
	"context"
	"net/http"

	abac "github.com/fieldops/accessctl/internal/policy"
	"github.com/fieldops/accessctl/middleware"
	"github.com/fieldops/accessctl/models"
	"github.com/fieldops/accessctl/services"
	"github.com/fieldops/accessctl/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CompanyFinder loads the company a profile belongs to
type CompanyFinder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error)
}

// ProfileResponse describes the calling actor as the policy engine sees it
type ProfileResponse struct {
	Profile    *models.ActorProfile `json:"profile"`
	Company    *models.Company      `json:"company,omitempty"`
	Attributes abac.Attributes      `json:"attributes"`
}

// ProfileHandler handles profile HTTP requests
type ProfileHandler struct {
	companies CompanyFinder
	logger    *zap.Logger
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(companies CompanyFinder, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		companies: companies,
		logger:    logger,
	}
}

// HandleMe handles GET /api/profile/me/
func (h *ProfileHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile := middleware.GetProfileFromContext(ctx)
	if profile == nil {
		HandleServiceError(w, services.ErrProfileNotFound, h.logger)
		return
	}

	response := ProfileResponse{
		Profile: profile,
		Attributes: abac.BuildContext(profile, abac.RequestInfo{
			SitecID: middleware.GetSitecFromContext(ctx),
			Method:  r.Method,
			Path:    r.URL.Path,
		}),
	}

	if profile.CompanyID != nil {
		company, err := h.companies.GetByID(ctx, *profile.CompanyID)
		if err != nil {
			HandleServiceError(w, services.FromRepository(err, services.ErrCompanyNotFound), h.logger)
			return
		}
		response.Company = company
	}

	_ = utils.WriteOK(w, response)
}

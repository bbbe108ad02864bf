package handlers

import (
	"context"
	"net/http"
	"strconv"

	abac "github.com/fieldops/accessctl/internal/policy"
	"github.com/fieldops/accessctl/middleware"
	"github.com/fieldops/accessctl/models"
	"github.com/fieldops/accessctl/services"
	policysvc "github.com/fieldops/accessctl/services/policy"
	"github.com/fieldops/accessctl/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PolicyService defines the access policy operations the handler needs
type PolicyService interface {
	ListPolicies(ctx context.Context, companyID uuid.UUID, active *bool) ([]*models.AccessPolicy, error)
	GetPolicy(ctx context.Context, companyID, id uuid.UUID) (*models.AccessPolicy, error)
	CreatePolicy(ctx context.Context, caller policysvc.Caller, input policysvc.PolicyInput) (*models.AccessPolicy, error)
	ReplacePolicy(ctx context.Context, caller policysvc.Caller, id uuid.UUID, input policysvc.PolicyInput) (*models.AccessPolicy, error)
	PatchPolicy(ctx context.Context, caller policysvc.Caller, id uuid.UUID, patch policysvc.PolicyPatch) (*models.AccessPolicy, error)
	DeletePolicy(ctx context.Context, caller policysvc.Caller, id uuid.UUID) error
	DryRun(ctx context.Context, req *abac.EvaluationRequest) (*abac.Decision, error)
}

// EvaluateRequest is the body of a dry-run evaluation
type EvaluateRequest struct {
	Action  string `json:"action" validate:"required"`
	SitecID string `json:"sitec_id"`
	Method  string `json:"method"`
	Path    string `json:"path"`
}

// PolicyHandler handles access policy HTTP requests
type PolicyHandler struct {
	service PolicyService
	logger  *zap.Logger
}

// NewPolicyHandler creates a new PolicyHandler
func NewPolicyHandler(service PolicyService, logger *zap.Logger) *PolicyHandler {
	return &PolicyHandler{
		service: service,
		logger:  logger,
	}
}

// HandleListPolicies handles GET /api/policies/
func (h *PolicyHandler) HandleListPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := callerFromRequest(r)
	if caller.CompanyID == nil {
		HandleServiceError(w, services.ErrNoTenant, h.logger)
		return
	}

	var active *bool
	if raw := r.URL.Query().Get("active"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			_ = utils.WriteBadRequest(w, "active must be a boolean", nil)
			return
		}
		active = &parsed
	}

	policies, err := h.service.ListPolicies(ctx, *caller.CompanyID, active)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Debug("listed policies",
		zap.String("request_id", caller.RequestID),
		zap.String("company_id", caller.CompanyID.String()),
		zap.Int("count", len(policies)))

	_ = utils.WriteOK(w, policies)
}

// HandleCreatePolicy handles POST /api/policies/
func (h *PolicyHandler) HandleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	var input policysvc.PolicyInput
	if !h.decode(w, r, &input) {
		return
	}

	policy, err := h.service.CreatePolicy(r.Context(), callerFromRequest(r), input)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, policy)
}

// HandleGetPolicy handles GET /api/policies/{id}/
func (h *PolicyHandler) HandleGetPolicy(w http.ResponseWriter, r *http.Request) {
	policyID, ok := h.policyID(w, r)
	if !ok {
		return
	}
	caller := callerFromRequest(r)
	if caller.CompanyID == nil {
		HandleServiceError(w, services.ErrNoTenant, h.logger)
		return
	}

	policy, err := h.service.GetPolicy(r.Context(), *caller.CompanyID, policyID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, policy)
}

// HandleReplacePolicy handles PUT /api/policies/{id}/
func (h *PolicyHandler) HandleReplacePolicy(w http.ResponseWriter, r *http.Request) {
	policyID, ok := h.policyID(w, r)
	if !ok {
		return
	}
	var input policysvc.PolicyInput
	if !h.decode(w, r, &input) {
		return
	}

	policy, err := h.service.ReplacePolicy(r.Context(), callerFromRequest(r), policyID, input)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, policy)
}

// HandlePatchPolicy handles PATCH /api/policies/{id}/
func (h *PolicyHandler) HandlePatchPolicy(w http.ResponseWriter, r *http.Request) {
	policyID, ok := h.policyID(w, r)
	if !ok {
		return
	}
	var patch policysvc.PolicyPatch
	if !h.decode(w, r, &patch) {
		return
	}

	policy, err := h.service.PatchPolicy(r.Context(), callerFromRequest(r), policyID, patch)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, policy)
}

// HandleDeletePolicy handles DELETE /api/policies/{id}/
func (h *PolicyHandler) HandleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	policyID, ok := h.policyID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeletePolicy(r.Context(), callerFromRequest(r), policyID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}

// HandleEvaluate handles POST /api/policies/evaluate/. It answers for the
// calling actor without side effects and returns the bare decision.
func (h *PolicyHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	var body EvaluateRequest
	if !h.decode(w, r, &body) {
		return
	}

	sitec := body.SitecID
	if sitec == "" {
		sitec = middleware.GetSitecFromContext(r.Context())
	}
	profile := middleware.GetProfileFromContext(r.Context())
	req := &abac.EvaluationRequest{
		Actor:  actorFromRequest(r),
		Action: body.Action,
		Attributes: abac.BuildContext(profile, abac.RequestInfo{
			SitecID: sitec,
			Method:  body.Method,
			Path:    body.Path,
		}),
	}

	decision, err := h.service.DryRun(r.Context(), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Debug("dry-run evaluation",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("action", decision.Action),
		zap.Bool("allowed", decision.Allowed),
		zap.String("reason", string(decision.Reason)))

	_ = utils.WriteJSON(w, http.StatusOK, decision)
}

func (h *PolicyHandler) policyID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := utils.ParseUUID(chi.URLParam(r, "id"), "policy id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return uuid.Nil, false
	}
	return id, true
}

// decode parses and validates a request body, writing the 400 itself
func (h *PolicyHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := utils.DecodeJSON(r, v); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", map[string]interface{}{"body": err.Error()})
		return false
	}
	if err := utils.ValidateStruct(v); err != nil {
		HandleValidationError(w, err, h.logger)
		return false
	}
	return true
}

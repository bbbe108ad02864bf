package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	abac "github.com/fieldops/accessctl/internal/policy"
	"github.com/fieldops/accessctl/middleware"
	"github.com/fieldops/accessctl/models"
	"github.com/fieldops/accessctl/services"
	policysvc "github.com/fieldops/accessctl/services/policy"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockPolicyService is a mock implementation of PolicyService
type MockPolicyService struct {
	mock.Mock
}

func (m *MockPolicyService) ListPolicies(ctx context.Context, companyID uuid.UUID, active *bool) ([]*models.AccessPolicy, error) {
	args := m.Called(ctx, companyID, active)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AccessPolicy), args.Error(1)
}

func (m *MockPolicyService) GetPolicy(ctx context.Context, companyID, id uuid.UUID) (*models.AccessPolicy, error) {
	args := m.Called(ctx, companyID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AccessPolicy), args.Error(1)
}

func (m *MockPolicyService) CreatePolicy(ctx context.Context, caller policysvc.Caller, input policysvc.PolicyInput) (*models.AccessPolicy, error) {
	args := m.Called(ctx, caller, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AccessPolicy), args.Error(1)
}

func (m *MockPolicyService) ReplacePolicy(ctx context.Context, caller policysvc.Caller, id uuid.UUID, input policysvc.PolicyInput) (*models.AccessPolicy, error) {
	args := m.Called(ctx, caller, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AccessPolicy), args.Error(1)
}

func (m *MockPolicyService) PatchPolicy(ctx context.Context, caller policysvc.Caller, id uuid.UUID, patch policysvc.PolicyPatch) (*models.AccessPolicy, error) {
	args := m.Called(ctx, caller, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AccessPolicy), args.Error(1)
}

func (m *MockPolicyService) DeletePolicy(ctx context.Context, caller policysvc.Caller, id uuid.UUID) error {
	args := m.Called(ctx, caller, id)
	return args.Error(0)
}

func (m *MockPolicyService) DryRun(ctx context.Context, req *abac.EvaluationRequest) (*abac.Decision, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*abac.Decision), args.Error(1)
}

type policyEnvelope struct {
	Data *models.AccessPolicy `json:"data"`
}

type policyListEnvelope struct {
	Data []*models.AccessPolicy `json:"data"`
}

// newPolicyRequest builds a request as the /api middleware chain leaves it
func newPolicyRequest(method, target string, body []byte, profile *models.ActorProfile, id string) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	ctx := context.WithValue(req.Context(), chimw.RequestIDKey, "req-123")
	if profile != nil {
		ctx = middleware.WithProfile(ctx, profile)
	}
	if id != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func callerMatching(profile *models.ActorProfile) interface{} {
	return mock.MatchedBy(func(c policysvc.Caller) bool {
		return c.PrincipalID == profile.PrincipalID &&
			c.CompanyID != nil && *c.CompanyID == *profile.CompanyID &&
			c.ProfileID != nil && *c.ProfileID == profile.ID &&
			c.RequestID == "req-123"
	})
}

func TestHandleListPolicies(t *testing.T) {
	logger := zap.NewNop()
	companyID := uuid.New()
	admin := models.NewActorProfile("auth0|admin", companyID, models.RoleCompanyAdmin)

	t.Run("list company policies", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		policies := []*models.AccessPolicy{
			models.NewAccessPolicy(companyID, "wizard.*", json.RawMessage(`{"role":"tecnico"}`), models.EffectAllow, 10),
			models.NewAccessPolicy(companyID, "*", nil, models.EffectDeny, 0),
		}
		svc.On("ListPolicies", mock.Anything, companyID, (*bool)(nil)).Return(policies, nil)

		w := httptest.NewRecorder()
		handler.HandleListPolicies(w, newPolicyRequest(http.MethodGet, "/api/policies/", nil, admin, ""))

		assert.Equal(t, http.StatusOK, w.Code)

		var response policyListEnvelope
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		require.Len(t, response.Data, 2)
		assert.Equal(t, "wizard.*", response.Data[0].Action)
		assert.Equal(t, models.EffectDeny, response.Data[1].Effect)
		svc.AssertExpectations(t)
	})

	t.Run("active filter", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		svc.On("ListPolicies", mock.Anything, companyID, mock.MatchedBy(func(active *bool) bool {
			return active != nil && !*active
		})).Return([]*models.AccessPolicy{}, nil)

		w := httptest.NewRecorder()
		handler.HandleListPolicies(w, newPolicyRequest(http.MethodGet, "/api/policies/?active=false", nil, admin, ""))

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("invalid active filter", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		w := httptest.NewRecorder()
		handler.HandleListPolicies(w, newPolicyRequest(http.MethodGet, "/api/policies/?active=maybe", nil, admin, ""))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "ListPolicies", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no company", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		w := httptest.NewRecorder()
		handler.HandleListPolicies(w, newPolicyRequest(http.MethodGet, "/api/policies/", nil, nil, ""))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("store error", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		svc.On("ListPolicies", mock.Anything, companyID, (*bool)(nil)).
			Return(nil, services.WrapInternal("database error", errors.New("connection refused")))

		w := httptest.NewRecorder()
		handler.HandleListPolicies(w, newPolicyRequest(http.MethodGet, "/api/policies/", nil, admin, ""))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})
}

func TestHandleCreatePolicy(t *testing.T) {
	logger := zap.NewNop()
	companyID := uuid.New()
	admin := models.NewActorProfile("auth0|admin", companyID, models.RoleCompanyAdmin)

	t.Run("successful creation", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		created := models.NewAccessPolicy(companyID, "wizard.save", json.RawMessage(`{"role":["tecnico","supervisor"]}`), models.EffectAllow, 5)
		svc.On("CreatePolicy", mock.Anything, callerMatching(admin), mock.MatchedBy(func(in policysvc.PolicyInput) bool {
			return in.Action == "wizard.save" && in.Effect == models.EffectAllow && in.Priority == 5
		})).Return(created, nil)

		body := []byte(`{"action":"wizard.save","conditions":{"role":["tecnico","supervisor"]},"effect":"allow","priority":5}`)
		w := httptest.NewRecorder()
		handler.HandleCreatePolicy(w, newPolicyRequest(http.MethodPost, "/api/policies/", body, admin, ""))

		assert.Equal(t, http.StatusCreated, w.Code)

		var response policyEnvelope
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		require.NotNil(t, response.Data)
		assert.Equal(t, created.ID, response.Data.ID)
		svc.AssertExpectations(t)
	})

	t.Run("invalid json", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		w := httptest.NewRecorder()
		handler.HandleCreatePolicy(w, newPolicyRequest(http.MethodPost, "/api/policies/", []byte(`{"action":`), admin, ""))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "CreatePolicy", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown field", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		body := []byte(`{"action":"wizard.save","effect":"allow","tenant":"other"}`)
		w := httptest.NewRecorder()
		handler.HandleCreatePolicy(w, newPolicyRequest(http.MethodPost, "/api/policies/", body, admin, ""))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("validation errors", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		body := []byte(`{"action":"wizard*","effect":"maybe"}`)
		w := httptest.NewRecorder()
		handler.HandleCreatePolicy(w, newPolicyRequest(http.MethodPost, "/api/policies/", body, admin, ""))

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response struct {
			Details map[string]interface{} `json:"details"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Contains(t, response.Details, "action")
		assert.Contains(t, response.Details, "effect")
		svc.AssertNotCalled(t, "CreatePolicy", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("service rejects conditions", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		svc.On("CreatePolicy", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, services.NewDomainError(services.ErrorTypeValidation, "invalid policy conditions", nil))

		body := []byte(`{"action":"wizard.save","conditions":[1,2],"effect":"allow"}`)
		w := httptest.NewRecorder()
		handler.HandleCreatePolicy(w, newPolicyRequest(http.MethodPost, "/api/policies/", body, admin, ""))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleGetPolicy(t *testing.T) {
	logger := zap.NewNop()
	companyID := uuid.New()
	admin := models.NewActorProfile("auth0|admin", companyID, models.RoleCompanyAdmin)

	t.Run("found", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		policy := models.NewAccessPolicy(companyID, "report.*", nil, models.EffectAllow, 1)
		svc.On("GetPolicy", mock.Anything, companyID, policy.ID).Return(policy, nil)

		w := httptest.NewRecorder()
		handler.HandleGetPolicy(w, newPolicyRequest(http.MethodGet, "/api/policies/"+policy.ID.String()+"/", nil, admin, policy.ID.String()))

		assert.Equal(t, http.StatusOK, w.Code)

		var response policyEnvelope
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "report.*", response.Data.Action)
	})

	t.Run("other company", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		id := uuid.New()
		svc.On("GetPolicy", mock.Anything, companyID, id).Return(nil, services.ErrOrgMismatch)

		w := httptest.NewRecorder()
		handler.HandleGetPolicy(w, newPolicyRequest(http.MethodGet, "/api/policies/x/", nil, admin, id.String()))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		id := uuid.New()
		svc.On("GetPolicy", mock.Anything, companyID, id).Return(nil, services.ErrPolicyNotFound)

		w := httptest.NewRecorder()
		handler.HandleGetPolicy(w, newPolicyRequest(http.MethodGet, "/api/policies/x/", nil, admin, id.String()))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		w := httptest.NewRecorder()
		handler.HandleGetPolicy(w, newPolicyRequest(http.MethodGet, "/api/policies/nope/", nil, admin, "nope"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "GetPolicy", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandleReplacePolicy(t *testing.T) {
	logger := zap.NewNop()
	companyID := uuid.New()
	admin := models.NewActorProfile("auth0|admin", companyID, models.RoleCompanyAdmin)

	t.Run("successful replace", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		policy := models.NewAccessPolicy(companyID, "wizard.*", nil, models.EffectDeny, 7)
		svc.On("ReplacePolicy", mock.Anything, callerMatching(admin), policy.ID, mock.MatchedBy(func(in policysvc.PolicyInput) bool {
			return in.Action == "wizard.*" && in.Effect == models.EffectDeny && in.IsActive != nil && !*in.IsActive
		})).Return(policy, nil)

		body := []byte(`{"action":"wizard.*","effect":"deny","priority":7,"is_active":false}`)
		w := httptest.NewRecorder()
		handler.HandleReplacePolicy(w, newPolicyRequest(http.MethodPut, "/api/policies/x/", body, admin, policy.ID.String()))

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("missing required fields", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		w := httptest.NewRecorder()
		handler.HandleReplacePolicy(w, newPolicyRequest(http.MethodPut, "/api/policies/x/", []byte(`{"priority":3}`), admin, uuid.New().String()))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "ReplacePolicy", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandlePatchPolicy(t *testing.T) {
	logger := zap.NewNop()
	companyID := uuid.New()
	admin := models.NewActorProfile("auth0|admin", companyID, models.RoleCompanyAdmin)

	t.Run("partial update", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		policy := models.NewAccessPolicy(companyID, "wizard.*", nil, models.EffectAllow, 20)
		svc.On("PatchPolicy", mock.Anything, callerMatching(admin), policy.ID, mock.MatchedBy(func(p policysvc.PolicyPatch) bool {
			return p.Priority != nil && *p.Priority == 20 && p.Action == nil && p.Effect == nil
		})).Return(policy, nil)

		w := httptest.NewRecorder()
		handler.HandlePatchPolicy(w, newPolicyRequest(http.MethodPatch, "/api/policies/x/", []byte(`{"priority":20}`), admin, policy.ID.String()))

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("invalid effect", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		w := httptest.NewRecorder()
		handler.HandlePatchPolicy(w, newPolicyRequest(http.MethodPatch, "/api/policies/x/", []byte(`{"effect":"grant"}`), admin, uuid.New().String()))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleDeletePolicy(t *testing.T) {
	logger := zap.NewNop()
	companyID := uuid.New()
	admin := models.NewActorProfile("auth0|admin", companyID, models.RoleCompanyAdmin)

	t.Run("successful deletion", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		id := uuid.New()
		svc.On("DeletePolicy", mock.Anything, callerMatching(admin), id).Return(nil)

		w := httptest.NewRecorder()
		handler.HandleDeletePolicy(w, newPolicyRequest(http.MethodDelete, "/api/policies/x/", nil, admin, id.String()))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
		svc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		id := uuid.New()
		svc.On("DeletePolicy", mock.Anything, mock.Anything, id).Return(services.ErrPolicyNotFound)

		w := httptest.NewRecorder()
		handler.HandleDeletePolicy(w, newPolicyRequest(http.MethodDelete, "/api/policies/x/", nil, admin, id.String()))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandleEvaluate(t *testing.T) {
	logger := zap.NewNop()
	companyID := uuid.New()
	tech := models.NewActorProfile("auth0|tech", companyID, models.RoleTechnician)
	tech.Department = "field"

	t.Run("returns bare decision", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		policyID := uuid.New()
		svc.On("DryRun", mock.Anything, mock.MatchedBy(func(req *abac.EvaluationRequest) bool {
			return req.Action == "wizard.save" &&
				req.Actor.PrincipalID == "auth0|tech" &&
				req.Attributes["role"] == "tecnico" &&
				req.Attributes["department"] == "field" &&
				req.Attributes["sitec_id"] == "sitec-9" &&
				req.Attributes["method"] == "post"
		})).Return(&abac.Decision{
			Action:       "wizard.save",
			Allowed:      true,
			PolicyID:     &policyID,
			PolicyAction: "wizard.*",
			PolicyEffect: models.EffectAllow,
			Reason:       abac.ReasonMatched,
		}, nil)

		body := []byte(`{"action":"wizard.save","sitec_id":"sitec-9","method":"POST","path":"/api/wizard/save/"}`)
		w := httptest.NewRecorder()
		handler.HandleEvaluate(w, newPolicyRequest(http.MethodPost, "/api/policies/evaluate/", body, tech, ""))

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "wizard.save", response["action"])
		assert.Equal(t, true, response["allowed"])
		assert.Equal(t, policyID.String(), response["policy_id"])
		assert.Equal(t, "wizard.*", response["policy_action"])
		assert.Equal(t, "allow", response["policy_effect"])
		assert.NotContains(t, response, "reason")
		assert.NotContains(t, response, "data")
		svc.AssertExpectations(t)
	})

	t.Run("sitec from context", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		svc.On("DryRun", mock.Anything, mock.MatchedBy(func(req *abac.EvaluationRequest) bool {
			return req.Attributes["sitec_id"] == "from-header"
		})).Return(&abac.Decision{Action: "report.view", Reason: abac.ReasonNoMatch}, nil)

		req := newPolicyRequest(http.MethodPost, "/api/policies/evaluate/", []byte(`{"action":"report.view"}`), tech, "")
		req = req.WithContext(middleware.WithSitec(req.Context(), "from-header"))

		w := httptest.NewRecorder()
		handler.HandleEvaluate(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("missing action", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		w := httptest.NewRecorder()
		handler.HandleEvaluate(w, newPolicyRequest(http.MethodPost, "/api/policies/evaluate/", []byte(`{"method":"GET"}`), tech, ""))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "DryRun", mock.Anything, mock.Anything)
	})

	t.Run("store failure", func(t *testing.T) {
		svc := new(MockPolicyService)
		handler := NewPolicyHandler(svc, logger)

		svc.On("DryRun", mock.Anything, mock.Anything).
			Return(nil, services.WrapInternal("failed to load policies", errors.New("timeout")))

		w := httptest.NewRecorder()
		handler.HandleEvaluate(w, newPolicyRequest(http.MethodPost, "/api/policies/evaluate/", []byte(`{"action":"x.y"}`), tech, ""))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fieldops/accessctl/middleware"
	"github.com/fieldops/accessctl/models"
	"github.com/fieldops/accessctl/repositories"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockCompanyFinder is a mock implementation of CompanyFinder
type MockCompanyFinder struct {
	mock.Mock
}

func (m *MockCompanyFinder) GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Company), args.Error(1)
}

func TestHandleMe(t *testing.T) {
	logger := zap.NewNop()

	t.Run("profile with company", func(t *testing.T) {
		company := models.NewCompany("Acme Field Services", "acme")
		profile := models.NewActorProfile("auth0|sup", company.ID, models.RoleSupervisor)
		profile.Location = "north"

		companies := new(MockCompanyFinder)
		companies.On("GetByID", mock.Anything, company.ID).Return(company, nil)
		handler := NewProfileHandler(companies, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/profile/me/", nil)
		ctx := middleware.WithProfile(req.Context(), profile)
		ctx = middleware.WithSitec(ctx, "sitec-1")

		w := httptest.NewRecorder()
		handler.HandleMe(w, req.WithContext(ctx))

		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Data ProfileResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, profile.ID, response.Data.Profile.ID)
		require.NotNil(t, response.Data.Company)
		assert.Equal(t, "acme", response.Data.Company.Slug)
		assert.Equal(t, "supervisor", response.Data.Attributes["role"])
		assert.Equal(t, "north", response.Data.Attributes["location"])
		assert.Equal(t, company.ID.String(), response.Data.Attributes["company_id"])
		assert.Equal(t, "sitec-1", response.Data.Attributes["sitec_id"])
		assert.Equal(t, "get", response.Data.Attributes["method"])
		assert.Equal(t, "/api/profile/me/", response.Data.Attributes["path"])
		companies.AssertExpectations(t)
	})

	t.Run("profile without company", func(t *testing.T) {
		profile := &models.ActorProfile{ID: uuid.New(), PrincipalID: "auth0|orphan", Role: models.RoleClient}

		companies := new(MockCompanyFinder)
		handler := NewProfileHandler(companies, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/profile/me/", nil)
		w := httptest.NewRecorder()
		handler.HandleMe(w, req.WithContext(middleware.WithProfile(req.Context(), profile)))

		assert.Equal(t, http.StatusOK, w.Code)
		companies.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("no profile", func(t *testing.T) {
		handler := NewProfileHandler(new(MockCompanyFinder), logger)

		w := httptest.NewRecorder()
		handler.HandleMe(w, httptest.NewRequest(http.MethodGet, "/api/profile/me/", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("company lookup fails", func(t *testing.T) {
		companyID := uuid.New()
		profile := models.NewActorProfile("auth0|tech", companyID, models.RoleTechnician)

		companies := new(MockCompanyFinder)
		companies.On("GetByID", mock.Anything, companyID).Return(nil, repositories.ErrNotFound)
		handler := NewProfileHandler(companies, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/profile/me/", nil)
		w := httptest.NewRecorder()
		handler.HandleMe(w, req.WithContext(middleware.WithProfile(req.Context(), profile)))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("store error", func(t *testing.T) {
		companyID := uuid.New()
		profile := models.NewActorProfile("auth0|tech", companyID, models.RoleTechnician)

		companies := new(MockCompanyFinder)
		companies.On("GetByID", mock.Anything, companyID).Return(nil, errors.New("connection reset"))
		handler := NewProfileHandler(companies, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/profile/me/", nil)
		w := httptest.NewRecorder()
		handler.HandleMe(w, req.WithContext(middleware.WithProfile(req.Context(), profile)))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

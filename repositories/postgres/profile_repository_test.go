package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fieldops/accessctl/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var profileRowColumns = []string{"id", "principal_id", "company_id", "role", "department", "location", "preferences", "created_at", "updated_at", "status"}

func TestProfileRepository_FindByPrincipal(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("oldest profile wins", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewProfileRepository(db, zap.NewNop())
		id, companyID := uuid.New(), uuid.New()

		mock.ExpectQuery(regexp.QuoteMeta("WHERE p.principal_id = $1 ORDER BY p.created_at ASC, p.id ASC LIMIT 1")).
			WithArgs("sub-1").
			WillReturnRows(sqlmock.NewRows(profileRowColumns).
				AddRow(id.String(), "sub-1", companyID.String(), "supervisor", "ops", "north", []byte(`{"lang":"es"}`), now, now, "active"))

		profile, err := repo.FindByPrincipal(ctx, "sub-1")
		require.NoError(t, err)
		require.NotNil(t, profile)

		assert.Equal(t, id, profile.ID)
		assert.Equal(t, models.RoleSupervisor, profile.Role)
		assert.Equal(t, companyID, *profile.CompanyID)
		assert.Equal(t, models.CompanyStatusActive, profile.CompanyStatus)
		assert.Equal(t, "north", profile.Location)
		assert.JSONEq(t, `{"lang":"es"}`, string(profile.Preferences))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no profile is not an error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewProfileRepository(db, zap.NewNop())

		mock.ExpectQuery(regexp.QuoteMeta("FROM actor_profiles p")).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(profileRowColumns))

		profile, err := repo.FindByPrincipal(ctx, "ghost")
		assert.NoError(t, err)
		assert.Nil(t, profile)
	})

	t.Run("profile without company", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewProfileRepository(db, zap.NewNop())

		mock.ExpectQuery(regexp.QuoteMeta("FROM actor_profiles p")).
			WillReturnRows(sqlmock.NewRows(profileRowColumns).
				AddRow(uuid.New().String(), "sub-2", nil, "cliente", "", "", nil, now, now, ""))

		profile, err := repo.FindByPrincipal(ctx, "sub-2")
		require.NoError(t, err)
		assert.Nil(t, profile.CompanyID)
		assert.Nil(t, profile.MemberCompanyID())
	})

	t.Run("suspended company", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewProfileRepository(db, zap.NewNop())

		mock.ExpectQuery(regexp.QuoteMeta("FROM actor_profiles p")).
			WillReturnRows(sqlmock.NewRows(profileRowColumns).
				AddRow(uuid.New().String(), "sub-3", uuid.New().String(), "pm", "", "", nil, now, now, "suspended"))

		profile, err := repo.FindByPrincipal(ctx, "sub-3")
		require.NoError(t, err)
		assert.NotNil(t, profile.CompanyID)
		assert.Nil(t, profile.MemberCompanyID())
	})

	t.Run("query failure", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewProfileRepository(db, zap.NewNop())

		mock.ExpectQuery(regexp.QuoteMeta("FROM actor_profiles p")).
			WillReturnError(errors.New("connection reset"))

		profile, err := repo.FindByPrincipal(ctx, "sub-4")
		assert.Nil(t, profile)
		assert.Error(t, err)
	})
}

package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCompany(t *testing.T) {
	company := NewCompany("Acme Field Ops", "acme")

	assert.NotEqual(t, uuid.Nil, company.ID)
	assert.Equal(t, "acme", company.Slug)
	assert.Equal(t, CompanyStatusActive, company.Status)
	assert.Equal(t, company.CreatedAt, company.UpdatedAt)
}

func TestRole_Valid(t *testing.T) {
	for _, role := range Roles {
		assert.True(t, role.Valid(), string(role))
	}
	assert.False(t, Role("superuser").Valid())
	assert.False(t, Role("").Valid())
}

func TestActorProfile_MemberCompanyID(t *testing.T) {
	companyID := uuid.New()

	t.Run("active company", func(t *testing.T) {
		p := NewActorProfile("sub-1", companyID, RoleTechnician)
		require.NotNil(t, p.MemberCompanyID())
		assert.Equal(t, companyID, *p.MemberCompanyID())
	})

	t.Run("suspended company", func(t *testing.T) {
		p := NewActorProfile("sub-1", companyID, RoleTechnician)
		p.CompanyStatus = CompanyStatusSuspended
		assert.Nil(t, p.MemberCompanyID())
	})

	t.Run("no company", func(t *testing.T) {
		p := &ActorProfile{PrincipalID: "sub-2", Role: RoleClient}
		assert.Nil(t, p.MemberCompanyID())
	})
}

func TestNewAccessPolicy(t *testing.T) {
	companyID := uuid.New()
	conditions := json.RawMessage(`{"role":"tecnico"}`)

	p := NewAccessPolicy(companyID, "reports.*", conditions, EffectDeny, 10)

	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, companyID, p.CompanyID)
	assert.Equal(t, "reports.*", p.Action)
	assert.JSONEq(t, `{"role":"tecnico"}`, string(p.Conditions))
	assert.Equal(t, 10, p.Priority)
	assert.True(t, p.IsActive)
	assert.False(t, p.Allows())
	assert.Equal(t, "access_policies", p.TableName())
}

func TestEffect_Valid(t *testing.T) {
	assert.True(t, EffectAllow.Valid())
	assert.True(t, EffectDeny.Valid())
	assert.False(t, Effect("maybe").Valid())
}

func TestAuditLog_Builders(t *testing.T) {
	companyID := uuid.New()
	resourceID := uuid.New()
	profileID := uuid.New()

	log := NewAuditLog(AuditActionPolicyCreated, "access_policy").
		WithCompany(companyID).
		WithActor("sub-1", &profileID).
		WithResource(resourceID).
		WithDetails(map[string]string{"action": "reports.create"}).
		WithRequest("req-1", "10.0.0.1", "curl/8.0")

	assert.NotEqual(t, uuid.Nil, log.ID)
	assert.Equal(t, companyID, *log.CompanyID)
	assert.Equal(t, profileID, *log.ProfileID)
	assert.Equal(t, "sub-1", log.PrincipalID)
	assert.Equal(t, resourceID, *log.ResourceID)
	assert.JSONEq(t, `{"action":"reports.create"}`, string(log.Details))
	assert.Equal(t, "req-1", log.RequestID)
	assert.False(t, log.Timestamp.IsZero())
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role is the job function of an actor inside its company
type Role string

const (
	RoleCompanyAdmin   Role = "admin_empresa"
	RoleProjectManager Role = "pm"
	RoleSupervisor     Role = "supervisor"
	RoleTechnician     Role = "tecnico"
	RoleClient         Role = "cliente"
)

// Roles lists every known role.
var Roles = []Role{
	RoleCompanyAdmin,
	RoleProjectManager,
	RoleSupervisor,
	RoleTechnician,
	RoleClient,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// ActorProfile links an authenticated principal to a company with the
// attributes the policy engine evaluates against.
type ActorProfile struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	PrincipalID string          `json:"principal_id" db:"principal_id"` // subject of the bearer token
	CompanyID   *uuid.UUID      `json:"company_id,omitempty" db:"company_id"`
	Role        Role            `json:"role" db:"role"`
	Department  string          `json:"department" db:"department"`
	Location    string          `json:"location" db:"location"`
	Preferences json.RawMessage `json:"preferences,omitempty" db:"preferences"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`

	// Loaded from the joined company row, not stored on the profile.
	CompanyStatus CompanyStatus `json:"company_status,omitempty" db:"-"`
}

// TableName returns the table name for the ActorProfile model
func (ActorProfile) TableName() string {
	return "actor_profiles"
}

// NewActorProfile creates a profile for principalID inside companyID
func NewActorProfile(principalID string, companyID uuid.UUID, role Role) *ActorProfile {
	now := time.Now()
	return &ActorProfile{
		ID:            uuid.New(),
		PrincipalID:   principalID,
		CompanyID:     &companyID,
		Role:          role,
		CompanyStatus: CompanyStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// MemberCompanyID returns the company the actor may act for. A profile
// attached to a suspended company has no membership.
func (p *ActorProfile) MemberCompanyID() *uuid.UUID {
	if p.CompanyID == nil || p.CompanyStatus == CompanyStatusSuspended {
		return nil
	}
	return p.CompanyID
}

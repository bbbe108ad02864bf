package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Effect is the outcome an access policy produces when it matches
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Valid reports whether e is allow or deny.
func (e Effect) Valid() bool {
	return e == EffectAllow || e == EffectDeny
}

// AccessPolicy is one rule of a company's ordered rule set.
//
// Action is an exact action name, "*" or a prefix pattern ending in ".*".
// Conditions is a JSON object of attribute name to a string or a list of
// strings; null or {} matches every request.
type AccessPolicy struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	CompanyID  uuid.UUID       `json:"company_id" db:"company_id"`
	Action     string          `json:"action" db:"action"`
	Conditions json.RawMessage `json:"conditions" db:"conditions"` // JSONB
	Effect     Effect          `json:"effect" db:"effect"`
	Priority   int             `json:"priority" db:"priority"`
	IsActive   bool            `json:"is_active" db:"is_active"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the AccessPolicy model
func (AccessPolicy) TableName() string {
	return "access_policies"
}

// NewAccessPolicy creates an active rule for companyID
func NewAccessPolicy(companyID uuid.UUID, action string, conditions json.RawMessage, effect Effect, priority int) *AccessPolicy {
	now := time.Now()
	return &AccessPolicy{
		ID:         uuid.New(),
		CompanyID:  companyID,
		Action:     action,
		Conditions: conditions,
		Effect:     effect,
		Priority:   priority,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Allows reports whether a match on this rule grants access.
func (p *AccessPolicy) Allows() bool {
	return p.Effect == EffectAllow
}

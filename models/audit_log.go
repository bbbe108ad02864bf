package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionPolicyCreated AuditAction = "policy_created"
	AuditActionPolicyUpdated AuditAction = "policy_updated"
	AuditActionPolicyDeleted AuditAction = "policy_deleted"
	AuditActionAccessDenied  AuditAction = "access_denied"
	AuditActionAccessAllowed AuditAction = "access_allowed"
)

// AuditLog represents an audit trail entry
type AuditLog struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	CompanyID    *uuid.UUID      `json:"company_id,omitempty" db:"company_id"`
	ProfileID    *uuid.UUID      `json:"profile_id,omitempty" db:"profile_id"`
	PrincipalID  string          `json:"principal_id" db:"principal_id"`
	Action       AuditAction     `json:"action" db:"action"`
	ResourceType string          `json:"resource_type" db:"resource_type"` // access_policy, endpoint
	ResourceID   *uuid.UUID      `json:"resource_id,omitempty" db:"resource_id"`
	Details      json.RawMessage `json:"details" db:"details"`
	IPAddress    string          `json:"ip_address" db:"ip_address"`
	UserAgent    string          `json:"user_agent" db:"user_agent"`
	RequestID    string          `json:"request_id" db:"request_id"`
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(action AuditAction, resourceType string) *AuditLog {
	return &AuditLog{
		ID:           uuid.New(),
		Action:       action,
		ResourceType: resourceType,
		Timestamp:    time.Now(),
	}
}

// WithCompany sets the company ID
func (a *AuditLog) WithCompany(companyID uuid.UUID) *AuditLog {
	a.CompanyID = &companyID
	return a
}

// WithActor sets the acting principal and, when known, its profile
func (a *AuditLog) WithActor(principalID string, profileID *uuid.UUID) *AuditLog {
	a.PrincipalID = principalID
	a.ProfileID = profileID
	return a
}

// WithResource sets the resource ID
func (a *AuditLog) WithResource(resourceID uuid.UUID) *AuditLog {
	a.ResourceID = &resourceID
	return a
}

// WithDetails sets the details
func (a *AuditLog) WithDetails(details interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithRequest sets request metadata
func (a *AuditLog) WithRequest(requestID, ipAddress, userAgent string) *AuditLog {
	a.RequestID = requestID
	a.IPAddress = ipAddress
	a.UserAgent = userAgent
	return a
}

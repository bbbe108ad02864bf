package policy

import (
	"context"

	"github.com/fieldops/accessctl/models"
	"github.com/google/uuid"
)

// Attribute keys produced by BuildContext.
const (
	AttrRole       = "role"
	AttrDepartment = "department"
	AttrLocation   = "location"
	AttrCompanyID  = "company_id"
	AttrSitecID    = "sitec_id"
	AttrMethod     = "method"
	AttrPath       = "path"
)

// Attributes is the flat string map conditions are evaluated against.
type Attributes map[string]string

// Merge returns a new map with other's entries overlaid on a.
func (a Attributes) Merge(other Attributes) Attributes {
	merged := make(Attributes, len(a)+len(other))
	for k, v := range a {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// RuleSource loads the active rule set of a company.
type RuleSource interface {
	ActiveRuleSet(ctx context.Context, companyID uuid.UUID) (*RuleSet, error)
}

// Evaluator decides whether a request is allowed.
type Evaluator interface {
	Evaluate(ctx context.Context, req *EvaluationRequest) (*Decision, error)
}

// Actor is the evaluated principal.
type Actor struct {
	PrincipalID string
	ProfileID   *uuid.UUID
	CompanyID   *uuid.UUID
	Role        models.Role
	Department  string
	Location    string
}

// ActorFromProfile converts a stored profile into an Actor. A nil profile
// produces an actor with no company and no role.
func ActorFromProfile(profile *models.ActorProfile) Actor {
	if profile == nil {
		return Actor{}
	}
	id := profile.ID
	return Actor{
		PrincipalID: profile.PrincipalID,
		ProfileID:   &id,
		CompanyID:   profile.MemberCompanyID(),
		Role:        profile.Role,
		Department:  profile.Department,
		Location:    profile.Location,
	}
}

// IsCompanyAdmin reports whether the actor bypasses rule evaluation.
func (a Actor) IsCompanyAdmin() bool {
	return a.Role == models.RoleCompanyAdmin
}

// Attributes returns the actor-derived attributes.
func (a Actor) Attributes() Attributes {
	companyID := ""
	if a.CompanyID != nil {
		companyID = a.CompanyID.String()
	}
	return Attributes{
		AttrRole:       string(a.Role),
		AttrDepartment: a.Department,
		AttrLocation:   a.Location,
		AttrCompanyID:  companyID,
	}
}

// EvaluationRequest is one authorization question.
type EvaluationRequest struct {
	Actor      Actor
	Action     string
	Attributes Attributes
}

// mergedAttributes overlays the request attributes on the actor's.
func (r *EvaluationRequest) mergedAttributes() Attributes {
	return r.Actor.Attributes().Merge(r.Attributes)
}

// Reason explains how a decision was reached. It is never sent to clients.
type Reason string

const (
	ReasonAdminBypass Reason = "admin_bypass"
	ReasonNoTenant    Reason = "no_tenant"
	ReasonNoPolicies  Reason = "no_policies"
	ReasonMatched     Reason = "matched"
	ReasonNoMatch     Reason = "no_match"
)

// Decision is the result of an evaluation.
type Decision struct {
	Action       string        `json:"action"`
	Allowed      bool          `json:"allowed"`
	PolicyID     *uuid.UUID    `json:"policy_id"`
	PolicyAction string        `json:"policy_action"`
	PolicyEffect models.Effect `json:"policy_effect"`
	Reason       Reason        `json:"-"`
}

// Matched reports whether a rule produced the decision.
func (d *Decision) Matched() bool {
	return d.PolicyID != nil
}

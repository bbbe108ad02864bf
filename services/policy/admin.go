package policy

import (
	"context"
	"encoding/json"
	"time"

	abac "github.com/fieldops/accessctl/internal/policy"
	"github.com/fieldops/accessctl/models"
	"github.com/fieldops/accessctl/repositories"
	"github.com/fieldops/accessctl/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const auditResourcePolicy = "access_policy"

// Caller identifies who performs an administrative change
type Caller struct {
	PrincipalID string
	ProfileID   *uuid.UUID
	CompanyID   *uuid.UUID
	RequestID   string
	IPAddress   string
	UserAgent   string
}

// PolicyInput is the full writable state of an access policy
type PolicyInput struct {
	Action     string          `json:"action" validate:"required,action_pattern"`
	Conditions json.RawMessage `json:"conditions"`
	Effect     models.Effect   `json:"effect" validate:"required,oneof=allow deny"`
	Priority   int             `json:"priority"`
	IsActive   *bool           `json:"is_active"`
}

// PolicyPatch changes only the fields that are set
type PolicyPatch struct {
	Action     *string          `json:"action" validate:"omitempty,action_pattern"`
	Conditions *json.RawMessage `json:"conditions"`
	Effect     *models.Effect   `json:"effect" validate:"omitempty,oneof=allow deny"`
	Priority   *int             `json:"priority"`
	IsActive   *bool            `json:"is_active"`
}

func (p PolicyPatch) changes() map[string]interface{} {
	changes := make(map[string]interface{})
	if p.Action != nil {
		changes["action"] = *p.Action
	}
	if p.Conditions != nil {
		changes["conditions"] = *p.Conditions
	}
	if p.Effect != nil {
		changes["effect"] = *p.Effect
	}
	if p.Priority != nil {
		changes["priority"] = *p.Priority
	}
	if p.IsActive != nil {
		changes["is_active"] = *p.IsActive
	}
	return changes
}

// ListPolicies returns a company's policies in evaluation order
func (s *PolicyService) ListPolicies(ctx context.Context, companyID uuid.UUID, active *bool) ([]*models.AccessPolicy, error) {
	policies, err := s.policyRepo.ListByCompany(ctx, companyID, active)
	if err != nil {
		return nil, services.FromRepository(err, services.ErrPolicyNotFound)
	}
	return policies, nil
}

// GetPolicy returns a policy owned by companyID
func (s *PolicyService) GetPolicy(ctx context.Context, companyID, id uuid.UUID) (*models.AccessPolicy, error) {
	policy, err := s.policyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, services.FromRepository(err, services.ErrPolicyNotFound)
	}
	if policy.CompanyID != companyID {
		return nil, services.ErrOrgMismatch
	}
	return policy, nil
}

// CreatePolicy adds a rule to the caller's company
func (s *PolicyService) CreatePolicy(ctx context.Context, caller Caller, input PolicyInput) (*models.AccessPolicy, error) {
	if caller.CompanyID == nil {
		return nil, services.ErrNoTenant
	}
	if err := validateRule(input.Action, input.Conditions, input.Effect); err != nil {
		return nil, err
	}

	policy := models.NewAccessPolicy(*caller.CompanyID, input.Action, input.Conditions, input.Effect, input.Priority)
	if input.IsActive != nil {
		policy.IsActive = *input.IsActive
	}

	err := s.txManager.InTransaction(ctx, func(ctx context.Context, _ repositories.Transaction) error {
		if err := s.policyRepo.Create(ctx, policy); err != nil {
			return services.FromRepository(err, services.ErrPolicyNotFound)
		}
		return s.recordChange(ctx, caller, models.AuditActionPolicyCreated, policy, map[string]interface{}{
			"action":   policy.Action,
			"effect":   policy.Effect,
			"priority": policy.Priority,
		})
	})
	if err != nil {
		return nil, err
	}

	s.InvalidateCompany(ctx, policy.CompanyID)
	s.logger.Info("access policy created",
		zap.String("policy_id", policy.ID.String()),
		zap.String("company_id", policy.CompanyID.String()),
		zap.String("action", policy.Action),
		zap.String("effect", string(policy.Effect)),
		zap.Int("priority", policy.Priority))

	return policy, nil
}

// ReplacePolicy overwrites every writable field of a policy
func (s *PolicyService) ReplacePolicy(ctx context.Context, caller Caller, id uuid.UUID, input PolicyInput) (*models.AccessPolicy, error) {
	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}
	conditions := input.Conditions
	return s.PatchPolicy(ctx, caller, id, PolicyPatch{
		Action:     &input.Action,
		Conditions: &conditions,
		Effect:     &input.Effect,
		Priority:   &input.Priority,
		IsActive:   &isActive,
	})
}

// PatchPolicy applies the set fields of patch to a policy
func (s *PolicyService) PatchPolicy(ctx context.Context, caller Caller, id uuid.UUID, patch PolicyPatch) (*models.AccessPolicy, error) {
	if caller.CompanyID == nil {
		return nil, services.ErrNoTenant
	}

	var updated *models.AccessPolicy
	err := s.txManager.InTransaction(ctx, func(ctx context.Context, _ repositories.Transaction) error {
		policy, err := s.GetPolicy(ctx, *caller.CompanyID, id)
		if err != nil {
			return err
		}

		if patch.Action != nil {
			policy.Action = *patch.Action
		}
		if patch.Conditions != nil {
			policy.Conditions = *patch.Conditions
		}
		if patch.Effect != nil {
			policy.Effect = *patch.Effect
		}
		if patch.Priority != nil {
			policy.Priority = *patch.Priority
		}
		if patch.IsActive != nil {
			policy.IsActive = *patch.IsActive
		}
		if err := validateRule(policy.Action, policy.Conditions, policy.Effect); err != nil {
			return err
		}
		policy.UpdatedAt = time.Now()

		if err := s.policyRepo.Update(ctx, policy); err != nil {
			return services.FromRepository(err, services.ErrPolicyNotFound)
		}
		updated = policy
		return s.recordChange(ctx, caller, models.AuditActionPolicyUpdated, policy, map[string]interface{}{
			"changes": patch.changes(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.InvalidateCompany(ctx, updated.CompanyID)
	s.logger.Info("access policy updated",
		zap.String("policy_id", updated.ID.String()),
		zap.String("company_id", updated.CompanyID.String()))

	return updated, nil
}

// DeletePolicy removes a policy owned by the caller's company
func (s *PolicyService) DeletePolicy(ctx context.Context, caller Caller, id uuid.UUID) error {
	if caller.CompanyID == nil {
		return services.ErrNoTenant
	}

	var deleted *models.AccessPolicy
	err := s.txManager.InTransaction(ctx, func(ctx context.Context, _ repositories.Transaction) error {
		policy, err := s.GetPolicy(ctx, *caller.CompanyID, id)
		if err != nil {
			return err
		}
		if err := s.policyRepo.Delete(ctx, id); err != nil {
			return services.FromRepository(err, services.ErrPolicyNotFound)
		}
		deleted = policy
		return s.recordChange(ctx, caller, models.AuditActionPolicyDeleted, policy, map[string]interface{}{
			"action":   policy.Action,
			"effect":   policy.Effect,
			"priority": policy.Priority,
		})
	})
	if err != nil {
		return err
	}

	s.InvalidateCompany(ctx, deleted.CompanyID)
	s.logger.Info("access policy deleted",
		zap.String("policy_id", id.String()),
		zap.String("company_id", deleted.CompanyID.String()))

	return nil
}

// DryRun evaluates an action for an actor without any side effect
func (s *PolicyService) DryRun(ctx context.Context, req *abac.EvaluationRequest) (*abac.Decision, error) {
	if req.Action == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "action is required", nil).
			WithDetail("field", "action")
	}
	return s.Evaluate(ctx, req)
}

func (s *PolicyService) recordChange(ctx context.Context, caller Caller, action models.AuditAction, policy *models.AccessPolicy, details map[string]interface{}) error {
	entry := models.NewAuditLog(action, auditResourcePolicy).
		WithCompany(policy.CompanyID).
		WithActor(caller.PrincipalID, caller.ProfileID).
		WithResource(policy.ID).
		WithDetails(details).
		WithRequest(caller.RequestID, caller.IPAddress, caller.UserAgent)

	if err := s.auditRepo.Insert(ctx, entry); err != nil {
		return services.WrapInternal("failed to record audit entry", err)
	}
	return nil
}

// validateRule checks the invariants the engine relies on
func validateRule(action string, conditions json.RawMessage, effect models.Effect) error {
	if !abac.ValidActionPattern(action) {
		return services.NewDomainError(services.ErrorTypeValidation, services.ErrInvalidActionPattern.Message, nil).
			WithDetail("action", action)
	}
	if !effect.Valid() {
		return services.NewDomainError(services.ErrorTypeValidation, "effect must be allow or deny", nil).
			WithDetail("effect", effect)
	}
	if _, err := abac.ParseConditions(conditions); err != nil {
		return services.NewDomainError(services.ErrorTypeValidation, services.ErrInvalidConditions.Message, err)
	}
	return nil
}

package policy

import (
	"context"
	"fmt"

	"github.com/fieldops/accessctl/models"
	"go.uber.org/zap"
)

// Engine evaluates requests against the rule set of the actor's company.
type Engine struct {
	rules  RuleSource
	logger *zap.Logger
}

// NewEngine creates an engine reading rules from source.
func NewEngine(source RuleSource, logger *zap.Logger) *Engine {
	return &Engine{
		rules:  source,
		logger: logger,
	}
}

// Evaluate answers req. Only a rule source failure produces an error.
func (e *Engine) Evaluate(ctx context.Context, req *EvaluationRequest) (*Decision, error) {
	if req.Actor.IsCompanyAdmin() || req.Actor.CompanyID == nil {
		return e.DecideSet(req, nil), nil
	}

	set, err := e.rules.ActiveRuleSet(ctx, *req.Actor.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules for company %s: %w", req.Actor.CompanyID, err)
	}

	return e.DecideSet(req, set), nil
}

// Decide evaluates req against a list of stored rules. Rules of other
// companies and inactive rules are ignored.
func (e *Engine) Decide(req *EvaluationRequest, rules []*models.AccessPolicy) *Decision {
	var set *RuleSet
	if req.Actor.CompanyID != nil && !req.Actor.IsCompanyAdmin() {
		set = NewRuleSet(*req.Actor.CompanyID, rules, e.logger)
	}
	return e.DecideSet(req, set)
}

// DecideSet evaluates req against an already built rule set of the actor's
// company.
func (e *Engine) DecideSet(req *EvaluationRequest, set *RuleSet) *Decision {
	if req.Actor.IsCompanyAdmin() {
		return &Decision{Action: req.Action, Allowed: true, Reason: ReasonAdminBypass}
	}
	if req.Actor.CompanyID == nil {
		return &Decision{Action: req.Action, Allowed: false, Reason: ReasonNoTenant}
	}
	if set.Len() == 0 {
		return &Decision{Action: req.Action, Allowed: true, Reason: ReasonNoPolicies}
	}

	rule := set.first(req.Action, req.mergedAttributes())
	if rule == nil {
		return &Decision{Action: req.Action, Allowed: false, Reason: ReasonNoMatch}
	}

	id := rule.ID
	return &Decision{
		Action:       req.Action,
		Allowed:      rule.Allows(),
		PolicyID:     &id,
		PolicyAction: rule.Action,
		PolicyEffect: rule.Effect,
		Reason:       ReasonMatched,
	}
}

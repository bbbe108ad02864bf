package policy

import (
	"sort"

	"github.com/fieldops/accessctl/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type compiledRule struct {
	policy *models.AccessPolicy
	conds  Conditions
}

// RuleSet is a company's active rules in evaluation order with their
// conditions decoded. It is immutable once built and safe to share.
type RuleSet struct {
	policies []*models.AccessPolicy
	rules    []compiledRule
}

// NewRuleSet keeps the active rules of companyID, orders them by priority
// descending and decodes their conditions. The sort is stable so rules of
// equal priority keep the order they were given in. Rules with malformed
// conditions are logged here and never match.
func NewRuleSet(companyID uuid.UUID, policies []*models.AccessPolicy, logger *zap.Logger) *RuleSet {
	set := &RuleSet{policies: make([]*models.AccessPolicy, 0, len(policies))}
	for _, p := range policies {
		if p == nil || !p.IsActive || p.CompanyID != companyID {
			continue
		}
		set.policies = append(set.policies, p)
	}
	sort.SliceStable(set.policies, func(i, j int) bool {
		return set.policies[i].Priority > set.policies[j].Priority
	})

	set.rules = make([]compiledRule, 0, len(set.policies))
	for _, p := range set.policies {
		conds, err := ParseConditions(p.Conditions)
		if err != nil {
			if logger != nil {
				logger.Warn("skipping rule with malformed conditions",
					zap.String("policy_id", p.ID.String()),
					zap.String("company_id", p.CompanyID.String()),
					zap.Error(err),
				)
			}
			continue
		}
		set.rules = append(set.rules, compiledRule{policy: p, conds: conds})
	}
	return set
}

// Len counts the active rules, including those with malformed conditions.
func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.policies)
}

// Policies returns the active rules in evaluation order.
func (s *RuleSet) Policies() []*models.AccessPolicy {
	if s == nil {
		return nil
	}
	return append([]*models.AccessPolicy(nil), s.policies...)
}

// first returns the first well-formed rule matching action and attrs.
func (s *RuleSet) first(action string, attrs Attributes) *models.AccessPolicy {
	if s == nil {
		return nil
	}
	for _, r := range s.rules {
		if MatchAction(r.policy.Action, action) && r.conds.Match(attrs) {
			return r.policy
		}
	}
	return nil
}

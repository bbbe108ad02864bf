// Package policy provides the attribute-based access control core.
//
// A company owns an ordered set of access policies. For every API action the
// engine walks that set by priority and returns the effect of the first rule
// whose action pattern and conditions match the request:
//   - company admins bypass the rule set entirely
//   - actors without a company are denied
//   - a company with no active rules allows everything
//   - a request that matches no rule is denied
//
// Rule sets are supplied by a RuleSource so the engine itself never touches
// storage. A RuleSet decodes conditions once when it is built; DecideSet
// evaluates such a snapshot and Decide builds one from stored rules.
package policy

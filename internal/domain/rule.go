package domain

import "time"

// Action is the advisory outcome a rule suggests when it matches.
// Actions never block a transaction on their own; analysts decide.
type Action string

const (
	ActionApprove Action = "Approve"
	ActionReview  Action = "Review"
	ActionDeny    Action = "Deny"
)

// Rule defines a deterministic fraud detection rule.
type Rule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// Conditions is the predicate tree evaluated against a transaction.
	// The common case is a single leaf clause (field, operator, value).
	Conditions *Condition `json:"conditions"`

	// ScoreImpact is added to the rule score when the predicate matches.
	ScoreImpact int `json:"scoreImpact"`

	// Advisory action suggested on match.
	Action Action `json:"action"`

	// Priority orders evaluation, ascending. Ties break by ID ascending
	// so evaluation order is always total and deterministic.
	Priority int `json:"priority"`

	// Whether rule is active. Inactive rules are soft-disabled, not deleted.
	IsActive bool `json:"isActive"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Condition is a tagged predicate expression. Exactly one of the forms is
// set: a leaf clause (Field/Operator/Value), All (conjunction), Any
// (disjunction), or Not (negation).
type Condition struct {
	Field    string `json:"field,omitempty"`
	Operator string `json:"operator,omitempty"` // > < >= <= == !=
	Value    any    `json:"value,omitempty"`

	All []*Condition `json:"all,omitempty"`
	Any []*Condition `json:"any,omitempty"`
	Not *Condition   `json:"not,omitempty"`
}

// IsLeaf reports whether the condition is a single field clause.
func (c *Condition) IsLeaf() bool {
	return c != nil && len(c.All) == 0 && len(c.Any) == 0 && c.Not == nil
}

// TriggeredRule records a single rule match within a rule evaluation.
type TriggeredRule struct {
	RuleID      string `json:"ruleId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ScoreImpact int    `json:"scoreImpact"`
	Action      Action `json:"action"`
}

// RuleEvaluation is the output of evaluating the active rule set.
type RuleEvaluation struct {
	// RuleScore is the uncapped sum of matched score impacts.
	// Callers clamp when combining.
	RuleScore int `json:"ruleScore"`

	// TriggeredRules lists matches in evaluation order.
	TriggeredRules []TriggeredRule `json:"triggeredRules"`

	// SuggestedAction is the action of the highest-priority matched rule,
	// or Approve when nothing matched.
	SuggestedAction Action `json:"suggestedAction"`

	// SkippedRules counts rules dropped for invalid expressions.
	SkippedRules int `json:"skippedRules,omitempty"`

	ProcessMs int64 `json:"processMs,omitempty"`
}

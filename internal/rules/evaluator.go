// Package rules provides the deterministic rule evaluation engine.
package rules

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/opensource-finance/shrike/internal/domain"
)

// Fields a rule condition may reference. velocity_count and hour are derived
// at evaluation time, the rest map directly to transaction fields.
const (
	FieldAmount         = "amount"
	FieldCategory       = "category"
	FieldType           = "transaction_type"
	FieldCustomerID     = "customer_id"
	FieldMerchantID     = "merchant_id"
	FieldOldBalanceOrig = "old_balance_orig"
	FieldNewBalanceOrig = "new_balance_orig"
	FieldOldBalanceDest = "old_balance_dest"
	FieldNewBalanceDest = "new_balance_dest"
	FieldHour           = "hour"
	FieldVelocityCount  = "velocity_count"
)

// Evaluator applies the ordered active rule set to transactions.
// It holds a sorted snapshot of rules guarded for hot reload; evaluation
// itself is pure and side-effect free.
type Evaluator struct {
	mu    sync.RWMutex
	rules []*domain.Rule
}

// Input holds the transaction data for rule evaluation.
type Input struct {
	Tx *domain.Transaction

	// VelocityCount is the customer's transaction count in the velocity
	// window, supplied by the velocity service.
	VelocityCount int64
}

// NewEvaluator creates an empty rule evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// LoadRules replaces the loaded rule set with the active subset of configs,
// sorted by priority ascending, ties broken by ID ascending. The order is
// total, so evaluation is deterministic across runs.
func (e *Evaluator) LoadRules(configs []*domain.Rule) {
	active := make([]*domain.Rule, 0, len(configs))
	for _, r := range configs {
		if r.IsActive {
			active = append(active, r)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority < active[j].Priority
		}
		return active[i].ID < active[j].ID
	})

	e.mu.Lock()
	e.rules = active
	e.mu.Unlock()
}

// RulesCount returns the number of loaded rules.
func (e *Evaluator) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// LoadedRules returns the currently loaded rules in evaluation order.
func (e *Evaluator) LoadedRules() []*domain.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*domain.Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate applies every loaded rule to the input in order. Rules with
// invalid expressions are skipped and logged; they never abort evaluation.
func (e *Evaluator) Evaluate(in *Input) *domain.RuleEvaluation {
	start := time.Now()

	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	result := &domain.RuleEvaluation{
		SuggestedAction: domain.ActionApprove,
	}

	for _, rule := range rules {
		matched, err := evalCondition(in, rule.Conditions)
		if err != nil {
			result.SkippedRules++
			slog.Warn("skipping rule with invalid expression",
				"rule_id", rule.ID,
				"rule_name", rule.Name,
				"error", err,
			)
			continue
		}
		if !matched {
			continue
		}

		result.RuleScore += rule.ScoreImpact
		result.TriggeredRules = append(result.TriggeredRules, domain.TriggeredRule{
			RuleID:      rule.ID,
			Name:        rule.Name,
			Description: rule.Description,
			ScoreImpact: rule.ScoreImpact,
			Action:      rule.Action,
		})

		// First match is the highest-priority one; its action wins.
		if len(result.TriggeredRules) == 1 {
			result.SuggestedAction = rule.Action
		}
	}

	result.ProcessMs = time.Since(start).Milliseconds()
	return result
}

// ValidateRule walks a rule's condition tree and rejects unknown fields,
// malformed operators, and empty composites. Used at the write boundary so
// bad rules never reach the evaluator.
func ValidateRule(rule *domain.Rule) error {
	if rule == nil || rule.Conditions == nil {
		return fmt.Errorf("%w: conditions are required", domain.ErrInvalidRuleExpression)
	}
	if rule.Action != domain.ActionApprove && rule.Action != domain.ActionReview && rule.Action != domain.ActionDeny {
		return fmt.Errorf("%w: unknown action %q", domain.ErrValidation, rule.Action)
	}
	return validateCondition(rule.Conditions)
}

func validateCondition(c *domain.Condition) error {
	switch {
	case c == nil:
		return fmt.Errorf("%w: nil condition", domain.ErrInvalidRuleExpression)

	case len(c.All) > 0:
		for _, sub := range c.All {
			if err := validateCondition(sub); err != nil {
				return err
			}
		}
		return nil

	case len(c.Any) > 0:
		for _, sub := range c.Any {
			if err := validateCondition(sub); err != nil {
				return err
			}
		}
		return nil

	case c.Not != nil:
		return validateCondition(c.Not)

	default:
		if !knownField(c.Field) {
			return fmt.Errorf("%w: unknown field %q", domain.ErrInvalidRuleExpression, c.Field)
		}
		switch c.Operator {
		case ">", "<", ">=", "<=", "==", "!=":
		default:
			return fmt.Errorf("%w: malformed operator %q", domain.ErrInvalidRuleExpression, c.Operator)
		}
		if c.Value == nil {
			return fmt.Errorf("%w: missing comparison value", domain.ErrInvalidRuleExpression)
		}
		return nil
	}
}

// evalCondition evaluates a predicate tree against the input.
func evalCondition(in *Input, c *domain.Condition) (bool, error) {
	switch {
	case c == nil:
		return false, fmt.Errorf("%w: nil condition", domain.ErrInvalidRuleExpression)

	case len(c.All) > 0:
		for _, sub := range c.All {
			ok, err := evalCondition(in, sub)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case len(c.Any) > 0:
		for _, sub := range c.Any {
			ok, err := evalCondition(in, sub)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case c.Not != nil:
		ok, err := evalCondition(in, c.Not)
		if err != nil {
			return false, err
		}
		return !ok, nil

	default:
		return evalClause(in, c)
	}
}

func evalClause(in *Input, c *domain.Condition) (bool, error) {
	if num, ok := numericField(in, c.Field); ok {
		threshold, err := toFloat(c.Value)
		if err != nil {
			return false, fmt.Errorf("%w: field %s: %v", domain.ErrInvalidRuleExpression, c.Field, err)
		}
		return compareFloat(num, c.Operator, threshold)
	}

	if str, ok := stringField(in, c.Field); ok {
		threshold, isStr := c.Value.(string)
		if !isStr {
			return false, fmt.Errorf("%w: field %s requires a string value", domain.ErrInvalidRuleExpression, c.Field)
		}
		return compareString(str, c.Operator, threshold)
	}

	return false, fmt.Errorf("%w: unknown field %q", domain.ErrInvalidRuleExpression, c.Field)
}

func numericField(in *Input, field string) (float64, bool) {
	switch field {
	case FieldAmount:
		return in.Tx.Amount, true
	case FieldOldBalanceOrig:
		return in.Tx.OldBalanceOrig, true
	case FieldNewBalanceOrig:
		return in.Tx.NewBalanceOrig, true
	case FieldOldBalanceDest:
		return in.Tx.OldBalanceDest, true
	case FieldNewBalanceDest:
		return in.Tx.NewBalanceDest, true
	case FieldHour:
		return float64(in.Tx.Timestamp.UTC().Hour()), true
	case FieldVelocityCount:
		return float64(in.VelocityCount), true
	default:
		return 0, false
	}
}

func stringField(in *Input, field string) (string, bool) {
	switch field {
	case FieldCategory:
		return in.Tx.Category, true
	case FieldType:
		return in.Tx.Type, true
	case FieldCustomerID:
		return in.Tx.CustomerID, true
	case FieldMerchantID:
		return in.Tx.MerchantID, true
	default:
		return "", false
	}
}

func knownField(field string) bool {
	if _, ok := numericField(&Input{Tx: &domain.Transaction{}}, field); ok {
		return true
	}
	_, ok := stringField(&Input{Tx: &domain.Transaction{}}, field)
	return ok
}

func compareFloat(val float64, op string, threshold float64) (bool, error) {
	switch op {
	case ">":
		return val > threshold, nil
	case "<":
		return val < threshold, nil
	case ">=":
		return val >= threshold, nil
	case "<=":
		return val <= threshold, nil
	case "==":
		return val == threshold, nil
	case "!=":
		return val != threshold, nil
	default:
		return false, fmt.Errorf("%w: malformed operator %q", domain.ErrInvalidRuleExpression, op)
	}
}

func compareString(val, op, threshold string) (bool, error) {
	cmp := strings.Compare(val, threshold)
	switch op {
	case ">":
		return cmp > 0, nil
	case "<":
		return cmp < 0, nil
	case ">=":
		return cmp >= 0, nil
	case "<=":
		return cmp <= 0, nil
	case "==":
		return cmp == 0, nil
	case "!=":
		return cmp != 0, nil
	default:
		return false, fmt.Errorf("%w: malformed operator %q", domain.ErrInvalidRuleExpression, op)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("value %v is not numeric", v)
	}
}

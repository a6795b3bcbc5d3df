package domain

import "errors"

// Error taxonomy. Per-transaction errors degrade that transaction's result;
// configuration errors are rejected synchronously at the write boundary.
var (
	// ErrInvalidRuleExpression marks a rule whose condition references an
	// unknown field or malformed operator. The rule is skipped, not fatal.
	ErrInvalidRuleExpression = errors.New("invalid rule expression")

	// ErrModelUnavailable means no trained artifact is present for the
	// configured model. Hybrid and model modes fall back to rules-only.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrUnconfiguredThresholds means the risk bands do not cover a score.
	// Caught at config save time; a per-transaction occurrence is a bug.
	ErrUnconfiguredThresholds = errors.New("unconfigured risk thresholds")

	// ErrInvalidStateTransition rejects a case or SAR mutation. The entity
	// is returned unchanged.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrValidation marks malformed input at the API boundary.
	ErrValidation = errors.New("validation error")

	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict is returned when an optimistic write loses the
	// race; the caller should re-read and retry.
	ErrVersionConflict = errors.New("version conflict")
)

// ErrorKind maps a taxonomy error to its machine-readable API kind.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRuleExpression):
		return "invalid_rule_expression"
	case errors.Is(err, ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, ErrUnconfiguredThresholds):
		return "unconfigured_thresholds"
	case errors.Is(err, ErrInvalidStateTransition):
		return "invalid_state_transition"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrVersionConflict):
		return "version_conflict"
	default:
		return "internal"
	}
}

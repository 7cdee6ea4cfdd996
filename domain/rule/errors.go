package rule

import "errors"

// Domain errors for the rule model.
var (
	// ErrInvalidRule indicates a structurally invalid rule definition.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrRuleNotFound indicates the repository has no such rule.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrRuleExists indicates a create with an ID already in use.
	ErrRuleExists = errors.New("rule already exists")

	// ErrUnknownTriggerKind indicates an unrecognized trigger tag.
	ErrUnknownTriggerKind = errors.New("unknown trigger kind")

	// ErrUnknownActionKind indicates an unrecognized action tag.
	ErrUnknownActionKind = errors.New("unknown action kind")

	// ErrUnknownOperator indicates an unrecognized condition operator.
	ErrUnknownOperator = errors.New("unknown condition operator")

	// ErrFieldUnknown indicates a condition referenced a field absent
	// from the candidate snapshot. The condition evaluates to false.
	ErrFieldUnknown = errors.New("condition field unknown")

	// ErrTypeMismatch indicates a condition operand type mismatch. The
	// condition evaluates to false.
	ErrTypeMismatch = errors.New("condition type mismatch")
)

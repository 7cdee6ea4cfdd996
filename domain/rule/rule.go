// Package rule provides the automation rule model: triggers, conditions
// and actions as tagged variants, plus the pure condition evaluator.
package rule

import (
	"context"
	"fmt"
)

// Rule is one automation rule. Rules are owned by the organization's
// configuration and are read-only to the engine during evaluation.
type Rule struct {
	ID         string      `json:"id" yaml:"id"`
	Name       string      `json:"name" yaml:"name"`
	IsActive   bool        `json:"is_active" yaml:"is_active"`
	Trigger    Trigger     `json:"trigger" yaml:"trigger"`
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Actions    []Action    `json:"actions" yaml:"actions"`
}

// Validate checks the rule for structural problems.
func (r Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if err := r.Trigger.Validate(); err != nil {
		return fmt.Errorf("%w: trigger: %w", ErrInvalidRule, err)
	}
	if len(r.Actions) == 0 {
		return fmt.Errorf("%w: at least one action is required", ErrInvalidRule)
	}
	for i, a := range r.Actions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("%w: action %d: %w", ErrInvalidRule, i, err)
		}
	}
	for i, c := range r.Conditions {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: condition %d: %w", ErrInvalidRule, i, err)
		}
	}
	return nil
}

// Repository holds the active rule set. The engine reads from it on
// every dispatch; mutations happen only through the explicit CRUD
// operations and take effect for subsequent dispatches.
type Repository interface {
	// Create stores a new rule. The rule ID is assigned if empty.
	Create(ctx context.Context, r *Rule) error

	// Update replaces an existing rule.
	Update(ctx context.Context, r *Rule) error

	// Delete removes a rule.
	Delete(ctx context.Context, id string) error

	// SetActive toggles a rule without touching its definition.
	SetActive(ctx context.Context, id string, active bool) error

	// Get returns a rule by ID.
	Get(ctx context.Context, id string) (*Rule, error)

	// List returns all rules.
	List(ctx context.Context) ([]*Rule, error)

	// ListActive returns only active rules, ordered by rule ID so that
	// evaluation order is deterministic.
	ListActive(ctx context.Context) ([]*Rule, error)
}

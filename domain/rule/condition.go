package rule

import (
	"fmt"
	"strings"

	"github.com/hirewire/pipeline-go/domain/candidate"
)

// Operator is a condition comparison operator.
type Operator string

const (
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpEquals      Operator = "equals"
	OpContains    Operator = "contains"
)

// Condition is an additional predicate over candidate data that must
// hold for a matched rule to act. All conditions on a rule are ANDed.
type Condition struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value" yaml:"value"`
}

// Validate checks the condition shape.
func (c Condition) Validate() error {
	if c.Field == "" {
		return ErrInvalidRule
	}
	switch c.Operator {
	case OpGreaterThan, OpLessThan, OpEquals, OpContains:
		return nil
	default:
		return ErrUnknownOperator
	}
}

// Evaluate applies the condition to a candidate snapshot. It is pure
// and total: unknown fields and type mismatches yield false, never a
// panic or error.
func (c Condition) Evaluate(snap candidate.Snapshot) bool {
	ok, _ := c.Check(snap)
	return ok
}

// Check evaluates the condition and additionally reports why a false
// result was a data problem rather than a legitimate non-match, so the
// caller can log the mismatch. The boolean result is identical to
// Evaluate.
func (c Condition) Check(snap candidate.Snapshot) (bool, error) {
	actual, found := snap.Field(c.Field)
	if !found {
		return false, fmt.Errorf("%w: field %q", ErrFieldUnknown, c.Field)
	}

	switch c.Operator {
	case OpGreaterThan, OpLessThan:
		left, okL := toFloat(actual)
		right, okR := toFloat(c.Value)
		if !okL || !okR {
			// Numeric operators fail closed on non-numeric operands.
			return false, fmt.Errorf("%w: field %q is not numeric", ErrTypeMismatch, c.Field)
		}
		if c.Operator == OpGreaterThan {
			return left > right, nil
		}
		return left < right, nil

	case OpEquals:
		if left, okL := toFloat(actual); okL {
			if right, okR := toFloat(c.Value); okR {
				return left == right, nil
			}
		}
		return toString(actual) == toString(c.Value), nil

	case OpContains:
		needle := toString(c.Value)
		switch v := actual.(type) {
		case string:
			return strings.Contains(v, needle), nil
		case []string:
			for _, item := range v {
				if item == needle {
					return true, nil
				}
			}
			return false, nil
		case []any:
			for _, item := range v {
				if toString(item) == needle {
					return true, nil
				}
			}
			return false, nil
		default:
			return false, fmt.Errorf("%w: field %q is not a string or list", ErrTypeMismatch, c.Field)
		}

	default:
		return false, ErrUnknownOperator
	}
}

// toFloat coerces numeric types produced by JSON and YAML decoding.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

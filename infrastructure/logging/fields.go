package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/hirewire/pipeline-go/domain/candidate"
	"github.com/hirewire/pipeline-go/domain/event"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// Common field constructors for pipeline logging.

// CandidateID adds a candidate ID field.
func CandidateID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("candidate_id", id)
	}
}

// RuleID adds a rule ID field.
func RuleID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("rule_id", id)
	}
}

// RequestID adds an approval request ID field.
func RequestID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("request_id", id)
	}
}

// EventType adds an event type field.
func EventType(t event.Type) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("event_type", string(t))
	}
}

// Status adds a candidate status field.
func Status(s candidate.Status) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("status", string(s))
	}
}

// FromStatus adds a from_status field for transitions.
func FromStatus(s candidate.Status) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("from_status", string(s))
	}
}

// ToStatus adds a to_status field for transitions.
func ToStatus(s candidate.Status) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("to_status", string(s))
	}
}

// ActionKind adds an action kind field.
func ActionKind(kind string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("action", kind)
	}
}

// ActionIndex adds an action index field.
func ActionIndex(i int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("action_index", i)
	}
}

// Depth adds a cascade depth field.
func Depth(d int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("depth", d)
	}
}

// Attempts adds a retry attempt count field.
func Attempts(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("attempts", n)
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Component adds a component field for categorization.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// Str adds a string field with custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}

// Int adds an int field with custom key.
func Int(key string, value int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int(key, value)
	}
}

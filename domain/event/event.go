// Package event provides domain types for pipeline events feeding the
// rule engine.
package event

import (
	"encoding/json"
	"time"
)

// Event is one observation entering rule evaluation: a status change, a
// time tick, or an external signal.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// CandidateID is the candidate this event concerns.
	CandidateID string `json:"candidate_id"`

	// Type classifies the event.
	Type Type `json:"type"`

	// OccurredAt is when the event was observed.
	OccurredAt time.Time `json:"occurred_at"`

	// Payload contains the event-specific data.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Depth counts how many cascades produced this event. Zero for
	// externally submitted events.
	Depth int `json:"depth,omitempty"`
}

// New creates a new event with the given type and payload.
func New(candidateID string, eventType Type, payload any) (Event, error) {
	var data json.RawMessage
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}
	}

	return Event{
		CandidateID: candidateID,
		Type:        eventType,
		OccurredAt:  time.Now(),
		Payload:     data,
	}, nil
}

// UnmarshalPayload decodes the event payload into the given value.
func (e *Event) UnmarshalPayload(v any) error {
	if e.Payload == nil {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

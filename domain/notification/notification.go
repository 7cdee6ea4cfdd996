// Package notification provides the contract with the notification
// delivery collaborator.
package notification

import "time"

// Message is one templated notification to deliver.
type Message struct {
	// ID is assigned at dispatch and echoed in the acknowledgment.
	ID string `json:"id,omitempty"`

	// Template names the notification template to render.
	Template string `json:"template"`

	// Recipients are user IDs or role names to deliver to.
	Recipients []string `json:"recipients"`

	// CandidateID scopes the notification to a candidate.
	CandidateID string `json:"candidate_id,omitempty"`

	// Context carries template variables.
	Context map[string]any `json:"context,omitempty"`
}

// Ack is the delivery acknowledgment reported back by the collaborator.
type Ack struct {
	MessageID   string    `json:"message_id"`
	Delivered   bool      `json:"delivered"`
	Error       string    `json:"error,omitempty"`
	DeliveredAt time.Time `json:"delivered_at,omitempty"`
}

// AckFunc receives delivery acknowledgments. Dispatch is
// fire-and-forget; failures feed the executor's retry policy.
type AckFunc func(Ack)

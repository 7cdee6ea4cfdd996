package ledger

import "errors"

// Domain errors for status transitions.
var (
	// ErrNoopTransition is returned when the target status equals the
	// current status. No-op transitions are errors, not silent skips.
	ErrNoopTransition = errors.New("transition to current status")

	// ErrTerminalStatus is returned when the current status permits no
	// further transition.
	ErrTerminalStatus = errors.New("candidate status is terminal")

	// ErrNoHistory is returned when a candidate has no transition
	// records.
	ErrNoHistory = errors.New("candidate has no status history")
)

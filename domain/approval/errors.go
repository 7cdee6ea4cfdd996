package approval

import "errors"

// Domain errors for approval workflows.
var (
	// ErrStepOutOfOrder is returned when a step other than the current
	// one is resolved. No state changes.
	ErrStepOutOfOrder = errors.New("approval step resolved out of order")

	// ErrUnauthorizedApprover is returned when the caller does not
	// satisfy the step's approver resolution. No state changes.
	ErrUnauthorizedApprover = errors.New("caller is not an eligible approver")

	// ErrRequestResolved is returned for operations on a terminal
	// request.
	ErrRequestResolved = errors.New("approval request already resolved")

	// ErrRequestNotFound is returned when no such request exists.
	ErrRequestNotFound = errors.New("approval request not found")

	// ErrStepNotFound is returned when no step has the given ID.
	ErrStepNotFound = errors.New("approval step not found")

	// ErrInvalidDecision is returned for decisions other than approve
	// or reject.
	ErrInvalidDecision = errors.New("invalid approval decision")

	// ErrNoSteps is returned when creating a request without steps.
	ErrNoSteps = errors.New("approval request requires at least one step")

	// ErrFlowNotFound is returned when no flow definition matches.
	ErrFlowNotFound = errors.New("approval flow not found")
)

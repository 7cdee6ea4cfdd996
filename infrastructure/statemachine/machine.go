// Package statemachine provides the statekit chart for the approval
// request lifecycle.
package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/hirewire/pipeline-go/domain/approval"
)

// Context carries the request through the state machine.
type Context struct {
	Request *approval.Request
}

// State IDs as StateID type for statekit.
const (
	statePending   statekit.StateID = statekit.StateID(approval.RequestPending)
	stateApproved  statekit.StateID = statekit.StateID(approval.RequestApproved)
	stateRejected  statekit.StateID = statekit.StateID(approval.RequestRejected)
	stateCancelled statekit.StateID = statekit.StateID(approval.RequestCancelled)
)

// NewRequestMachine creates the canonical approval request statechart:
// pending -> (approved | rejected | cancelled), terminal once resolved.
func NewRequestMachine() (*statekit.MachineConfig[*Context], error) {
	return statekit.NewMachine[*Context]("approval-request").
		WithInitial(statePending).
		WithContext(&Context{}).
		WithAction("recordResolution", recordResolution).
		WithGuard("isPending", guardIsPending).
		State(statePending).
			On("APPROVE").Target(stateApproved).Guard("isPending").Do("recordResolution").
			On("REJECT").Target(stateRejected).Guard("isPending").Do("recordResolution").
			On("CANCEL").Target(stateCancelled).Guard("isPending").Do("recordResolution").
			Done().
		State(stateApproved).
			Final().
			Done().
		State(stateRejected).
			Final().
			Done().
		State(stateCancelled).
			Final().
			Done().
		Build()
}

// EventForOutcome returns the machine event for a terminal status.
func EventForOutcome(status approval.RequestStatus) statekit.EventType {
	switch status {
	case approval.RequestApproved:
		return "APPROVE"
	case approval.RequestRejected:
		return "REJECT"
	case approval.RequestCancelled:
		return "CANCEL"
	default:
		return statekit.EventType(status)
	}
}

// ResolutionPayload carries the resolution outcome with a machine event.
type ResolutionPayload struct {
	Status approval.RequestStatus
}

// recordResolution syncs the request status with the machine state.
// In statekit, actions receive a pointer to the context; since our
// context is *Context, actions receive **Context.
func recordResolution(ctx **Context, event statekit.Event) {
	if ctx == nil || *ctx == nil || (*ctx).Request == nil {
		return
	}
	if payload, ok := event.Payload.(ResolutionPayload); ok {
		(*ctx).Request.Status = payload.Status
	}
}

// guardIsPending blocks resolution of an already terminal request.
func guardIsPending(ctx *Context, _ statekit.Event) bool {
	if ctx == nil || ctx.Request == nil {
		return false
	}
	return !ctx.Request.Status.Terminal()
}

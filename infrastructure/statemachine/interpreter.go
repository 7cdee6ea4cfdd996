package statemachine

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/hirewire/pipeline-go/domain/approval"
)

// Interpreter wraps the statekit interpreter with approval-specific
// functionality.
type Interpreter struct {
	interp *statekit.Interpreter[*Context]
	ctx    *Context
}

// NewInterpreter creates a new interpreter for an approval request.
func NewInterpreter(machine *statekit.MachineConfig[*Context], ctx *Context) *Interpreter {
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **Context) {
		*c = ctx
	})
	return &Interpreter{
		interp: interp,
		ctx:    ctx,
	}
}

// Start initializes the interpreter in the pending state.
func (i *Interpreter) Start() {
	i.interp.Start()
}

// State returns the current lifecycle state.
func (i *Interpreter) State() approval.RequestStatus {
	state := i.interp.State()
	return approval.RequestStatus(state.Value)
}

// Resolve transitions the request to a terminal status.
func (i *Interpreter) Resolve(to approval.RequestStatus) error {
	if !to.Terminal() {
		return approval.ErrInvalidDecision
	}
	if i.ctx.Request != nil && i.ctx.Request.Status.Terminal() {
		return approval.ErrRequestResolved
	}

	i.interp.Send(statekit.Event{
		Type:    EventForOutcome(to),
		Payload: ResolutionPayload{Status: to},
	})
	return nil
}

// IsTerminal returns true if the request reached a final state.
func (i *Interpreter) IsTerminal() bool {
	return i.interp.Done()
}

// ResumeFrom restores the interpreter to a stored request's state.
func (i *Interpreter) ResumeFrom(status approval.RequestStatus) error {
	snapshot := statekit.Snapshot[*Context]{
		MachineID:    "approval-request",
		CurrentState: statekit.StateID(string(status)),
		Context:      i.ctx,
		CreatedAt:    time.Now(),
	}
	if err := i.interp.Restore(snapshot); err != nil {
		return fmt.Errorf("failed to restore state: %w", err)
	}
	return nil
}

// Package flow implements the tool-call loop: a small state machine that
// alternates between asking the reasoning service for a decision and
// executing the capability calls it requested, until a turn arrives that
// requests nothing.
//
//	DECIDE ──tool calls──▶ EXECUTE_TOOLS
//	  ▲                         │
//	  └─────────────────────────┘
//	DECIDE ──no tool calls / ceiling──▶ DONE
//
// Requests are assembled by an ordered chain of RequestProcessors
// (instructions, history, capability definitions) before every decision.
package flow

import (
	"context"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
)

// State is a node of the loop's state machine.
type State int

const (
	// StateDecide asks the reasoning service for the next turn.
	StateDecide State = iota
	// StateExecuteTools runs the capability calls of the last assistant turn.
	StateExecuteTools
	// StateDone is terminal.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateDecide:
		return "DECIDE"
	case StateExecuteTools:
		return "EXECUTE_TOOLS"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// UnknownToolPolicy selects how a call naming an unregistered capability is handled.
type UnknownToolPolicy int

const (
	// RecoverUnknownTool records an error tool-result and lets the model recover.
	RecoverUnknownTool UnknownToolPolicy = iota
	// FailOnUnknownTool aborts the run with a *core.CapabilityNotFoundError.
	FailOnUnknownTool
)

func (p UnknownToolPolicy) String() string {
	if p == FailOnUnknownTool {
		return "fail"
	}
	return "recover"
}

// RequestProcessor mutates the model request before each decision.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the request before it is sent to the model.
	ProcessRequest(ctx context.Context, state *core.ConversationState, req *model.Request) error
}

package core

import (
	"context"

	"github.com/hupe1980/agentflow/logging"
)

// ToolContext provides a constrained surface for capability implementations
// invoked by a loop: the run's context (deadline, cancellation), the
// originating call and stage identity, and a logger.
type ToolContext struct {
	ctx    context.Context
	call   CapabilityCall
	stage  string
	logger logging.Logger
}

// NewToolContext constructs a tool context bound to ctx for one capability
// call. The logger is scoped with the stage, tool and call id.
func NewToolContext(ctx context.Context, stage string, call CapabilityCall, logger logging.Logger) *ToolContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ToolContext{
		ctx:    ctx,
		call:   call,
		stage:  stage,
		logger: logging.With(logging.OrNoOp(logger), "stage", stage, "tool", call.Name, "call_id", call.ID),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// Logger returns the call-scoped logger; never nil.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }

// FunctionCallID returns the correlation id of the originating call.
func (tc *ToolContext) FunctionCallID() string { return tc.call.ID }

// ToolName returns the name the capability was invoked under.
func (tc *ToolContext) ToolName() string { return tc.call.Name }

// StageName returns the stage the invocation belongs to.
func (tc *ToolContext) StageName() string { return tc.stage }

package flow

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/model"
)

// CallbackType names a lifecycle point of a loop run.
type CallbackType string

const (
	// CallbackBeforeModel runs before every decision request. An error aborts
	// the run; callbacks may modify the request.
	CallbackBeforeModel CallbackType = "before_model"
	// CallbackAfterModel runs after every reply was appended.
	CallbackAfterModel CallbackType = "after_model"
	// CallbackBeforeTool runs before a capability is invoked. An error
	// replaces the invocation with an error tool-result.
	CallbackBeforeTool CallbackType = "before_tool"
	// CallbackAfterTool runs after a tool-result message was produced.
	CallbackAfterTool CallbackType = "after_tool"
	// CallbackOnError runs when a run fails. Its errors are only logged.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries what is known at the callback's lifecycle point.
// Fields that do not apply are nil. Iteration is the decision turn and is
// only set for model and error callbacks.
type CallbackContext struct {
	Type      CallbackType
	Stage     string
	Iteration int
	Request   *model.Request
	Response  *model.Response
	Call      *core.CapabilityCall
	Result    *core.Message
	Err       error
}

// Callback is a lifecycle hook. Callbacks run synchronously on the loop's
// goroutine (or the tool's goroutine for parallel tool execution) and must be
// safe for concurrent use.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, cc *CallbackContext) error
}

// FunctionCallback adapts a function to Callback.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, cc *CallbackContext) error
}

// NewFunctionCallback creates a callback of type t backed by fn.
//
// Example:
//
//	audit := flow.NewFunctionCallback(flow.CallbackBeforeTool,
//	    func(ctx context.Context, cc *flow.CallbackContext) error {
//	        if cc.Call.Name == "delete_account" {
//	            return errors.New("not allowed")
//	        }
//	        return nil
//	    })
func NewFunctionCallback(t CallbackType, fn func(ctx context.Context, cc *CallbackContext) error) *FunctionCallback {
	return &FunctionCallback{callbackType: t, fn: fn}
}

// Type implements Callback.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *FunctionCallback) Execute(ctx context.Context, cc *CallbackContext) error {
	return c.fn(ctx, cc)
}

// CallbackManager dispatches callbacks by type in registration order.
// Register everything before the first run; dispatch is safe for concurrent
// use afterwards. A nil manager dispatches nothing.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates a manager holding callbacks.
func NewCallbackManager(callbacks ...Callback) *CallbackManager {
	cm := &CallbackManager{callbacks: make(map[CallbackType][]Callback)}
	for _, cb := range callbacks {
		cm.Register(cb)
	}
	return cm
}

// Register adds a callback.
func (cm *CallbackManager) Register(cb Callback) {
	cm.callbacks[cb.Type()] = append(cm.callbacks[cb.Type()], cb)
}

// Execute runs the callbacks registered for cc.Type and stops at the first
// error.
func (cm *CallbackManager) Execute(ctx context.Context, cc *CallbackContext) error {
	if cm == nil {
		return nil
	}
	for _, cb := range cm.callbacks[cc.Type] {
		if err := cb.Execute(ctx, cc); err != nil {
			return fmt.Errorf("callback %s: %w", cc.Type, err)
		}
	}
	return nil
}

// LoggingCallback writes one debug line per lifecycle event.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback logs events of type t to logger.
func NewLoggingCallback(t CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{callbackType: t, logger: logging.OrNoOp(logger)}
}

// Type implements Callback.
func (c *LoggingCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *LoggingCallback) Execute(_ context.Context, cc *CallbackContext) error {
	args := []any{"stage", cc.Stage, "iteration", cc.Iteration}
	if cc.Call != nil {
		args = append(args, "tool", cc.Call.Name, "call_id", cc.Call.ID)
	}
	if cc.Response != nil {
		args = append(args, "finish_reason", cc.Response.FinishReason)
	}
	if cc.Err != nil {
		args = append(args, "error", cc.Err.Error())
	}
	c.logger.Debug("flow.callback."+string(cc.Type), args...)
	return nil
}

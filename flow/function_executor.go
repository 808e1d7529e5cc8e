package flow

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/metrics"
	"github.com/hupe1980/agentflow/tool"
)

// FunctionExecutor runs the capability calls of one assistant turn and
// returns exactly one tool-result message per call, in the calls' order.
// Implementations must:
//   - Respect ctx cancellation
//   - Never panic (recover internally and produce error results)
//   - Resolve every call before executing any of them
type FunctionExecutor interface {
	Execute(ctx context.Context, calls []core.CapabilityCall) ([]core.Message, error)
}

// FunctionExecutorConfig configures the default executor.
type FunctionExecutorConfig struct {
	Registry      *tool.Registry
	Policy        UnknownToolPolicy
	MaxParallel   int // 0 or 1 => sequential in listed order
	Stage         string
	Logger        logging.Logger
	Metrics       *metrics.Collector
	Callbacks     *CallbackManager
	LogStartCalls bool // log a start line per call
}

type functionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewFunctionExecutor constructs the default executor.
func NewFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	cfg.Logger = logging.OrNoOp(cfg.Logger)
	return &functionExecutor{cfg: cfg}
}

type resolvedCall struct {
	call core.CapabilityCall
	impl tool.Tool // nil when unknown
}

func (e *functionExecutor) Execute(ctx context.Context, calls []core.CapabilityCall) ([]core.Message, error) {
	n := len(calls)
	if n == 0 {
		return nil, nil
	}

	resolved := make([]resolvedCall, n)
	for i, call := range calls {
		impl, err := e.cfg.Registry.Resolve(call.Name)
		if err != nil {
			e.cfg.Logger.Warn("flow.tool.unknown", "stage", e.cfg.Stage, "tool", call.Name, "policy", e.cfg.Policy.String())
			e.cfg.Metrics.IncToolCall(e.cfg.Stage, call.Name, metrics.OutcomeNotFound)
			if e.cfg.Policy == FailOnUnknownTool {
				return nil, err
			}
		}
		resolved[i] = resolvedCall{call: call, impl: impl}
	}

	results := make([]core.Message, n)
	batchStart := time.Now()

	if e.cfg.MaxParallel <= 1 || n == 1 {
		for i, rc := range resolved {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = e.executeSingle(ctx, rc)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.cfg.MaxParallel)
		for i, rc := range resolved {
			g.Go(func() error {
				results[i] = e.executeSingle(gctx, rc)
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	e.cfg.Logger.Debug(
		"flow.tools.batch.complete",
		"stage", e.cfg.Stage,
		"count", n,
		"parallelism", max(e.cfg.MaxParallel, 1),
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results, nil
}

func (e *functionExecutor) executeSingle(ctx context.Context, rc resolvedCall) core.Message {
	call := rc.call
	if rc.impl == nil {
		return core.NewToolResultMessage(call, nil, fmt.Errorf("capability %s is not available", call.Name))
	}

	if e.cfg.LogStartCalls {
		e.cfg.Logger.Info("flow.tool.start", "stage", e.cfg.Stage, "tool", call.Name, "call_id", call.ID)
	}

	if err := e.cfg.Callbacks.Execute(ctx, &CallbackContext{Type: CallbackBeforeTool, Stage: e.cfg.Stage, Call: &call}); err != nil {
		e.cfg.Logger.Warn("flow.tool.blocked", "stage", e.cfg.Stage, "tool", call.Name, "error", err.Error())
		return e.finish(ctx, call, core.NewToolResultMessage(call, nil, err))
	}

	toolCtx := core.NewToolContext(ctx, e.cfg.Stage, call, e.cfg.Logger)

	start := time.Now()
	var (
		result any
		err    error
	)
	func() { // panic safety
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
				e.cfg.Logger.Error("flow.tool.panic", "stage", e.cfg.Stage, "tool", call.Name, "recover", r)
			}
		}()
		args := call.Arguments
		if args == nil {
			args = map[string]any{}
		}
		result, err = rc.impl.Call(toolCtx, args)
	}()
	dur := time.Since(start)

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
		herr := &core.HandlerError{Tool: call.Name, CallID: call.ID, Err: err}
		e.cfg.Logger.Warn("flow.tool.failed", "stage", e.cfg.Stage, "tool", call.Name, "error", herr.Error())
	}
	e.cfg.Metrics.IncToolCall(e.cfg.Stage, call.Name, outcome)

	e.cfg.Logger.Info(
		"flow.tool.executed",
		"stage", e.cfg.Stage,
		"tool", call.Name,
		"call_id", call.ID,
		"duration_ms", dur.Milliseconds(),
		"error", err != nil,
	)

	return e.finish(ctx, call, core.NewToolResultMessage(call, result, err))
}

// finish runs the after_tool callbacks. Their errors are logged; the result
// message stands.
func (e *functionExecutor) finish(ctx context.Context, call core.CapabilityCall, msg core.Message) core.Message {
	if err := e.cfg.Callbacks.Execute(ctx, &CallbackContext{Type: CallbackAfterTool, Stage: e.cfg.Stage, Call: &call, Result: &msg}); err != nil {
		e.cfg.Logger.Warn("flow.callback.failed", "stage", e.cfg.Stage, "tool", call.Name, "error", err.Error())
	}
	return msg
}

// panicError converts a recovered panic value to an error.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }

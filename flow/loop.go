package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/metrics"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

// DefaultMaxIterations bounds the decision turns of one run.
const DefaultMaxIterations = 25

// TruncationMessage is the assistant text appended when a run hits its ceiling.
func TruncationMessage(limit int) string {
	return fmt.Sprintf("[truncated: iteration limit %d reached]", limit)
}

// Options configure a Loop.
type Options struct {
	// Instructions is the system instruction; template markers are rendered with Vars.
	Instructions string
	Vars         map[string]any

	// MaxIterations caps decision turns. Zero or negative selects DefaultMaxIterations.
	MaxIterations int

	// StrictLimit reports the ceiling as core.ErrIterationLimit instead of
	// finishing with a truncation marker.
	StrictLimit bool

	UnknownToolPolicy UnknownToolPolicy

	// MaxParallelTools > 1 runs the calls of one turn concurrently.
	// Results are still recorded in listed order.
	MaxParallelTools int

	// MaxHistory > 0 bounds the messages sent per decision.
	MaxHistory int

	// RequestProcessors run after the built-in ones.
	RequestProcessors []RequestProcessor

	// Callbacks observe or veto model and tool steps.
	Callbacks *CallbackManager

	StageName string
	Logger    logging.Logger
	Metrics   *metrics.Collector
}

// Result is what a finished run produced.
type Result struct {
	Text       string
	Iterations int
	Truncated  bool
	History    []core.Message
	Usage      model.TokenUsage
}

// Loop drives one conversation through DECIDE ⇄ EXECUTE_TOOLS → DONE. A Loop
// is immutable after construction and may run many conversations concurrently.
type Loop struct {
	model      model.Model
	registry   *tool.Registry
	opts       Options
	processors []RequestProcessor
	executor   FunctionExecutor
}

// NewLoop creates a loop over m and the capabilities in registry (may be nil).
func NewLoop(m model.Model, registry *tool.Registry, optFns ...func(o *Options)) *Loop {
	opts := Options{
		MaxIterations:     DefaultMaxIterations,
		UnknownToolPolicy: RecoverUnknownTool,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	processors := []RequestProcessor{
		NewInstructionsProcessor(opts.Instructions, opts.Vars),
		NewContentsProcessor(opts.MaxHistory),
		NewToolsProcessor(registry),
	}
	processors = append(processors, opts.RequestProcessors...)

	return &Loop{
		model:      m,
		registry:   registry,
		opts:       opts,
		processors: processors,
		executor: NewFunctionExecutor(FunctionExecutorConfig{
			Registry:    registry,
			Policy:      opts.UnknownToolPolicy,
			MaxParallel: opts.MaxParallelTools,
			Stage:       opts.StageName,
			Logger:      opts.Logger,
			Metrics:     opts.Metrics,
			Callbacks:   opts.Callbacks,
		}),
	}
}

// MaxIterations returns the effective ceiling.
func (l *Loop) MaxIterations() int { return l.opts.MaxIterations }

// run carries the mutable state of one Run call.
type run struct {
	state     *core.ConversationState
	truncated bool
	usage     model.TokenUsage
}

// Run drives state to DONE. The state is mutated in place: every model turn
// and tool result is appended. Errors are returned unwrapped by stage so the
// caller can attach its own identity.
func (l *Loop) Run(ctx context.Context, state *core.ConversationState) (Result, error) {
	if l.model == nil {
		return Result{}, errors.New("flow: loop has no model")
	}
	if state == nil {
		return Result{}, fmt.Errorf("flow: %w: nil conversation state", core.ErrMalformedResult)
	}

	start := time.Now()
	r := &run{state: state}

	current := StateDecide
	for current != StateDone {
		next, err := l.step(ctx, r, current)
		if err != nil {
			l.opts.Logger.Warn("flow.failed", "stage", l.opts.StageName, "state", current.String(), "iterations", state.IterationCount, "error", err.Error())
			cc := &CallbackContext{Type: CallbackOnError, Stage: l.opts.StageName, Iteration: state.IterationCount, Err: err}
			if cbErr := l.opts.Callbacks.Execute(ctx, cc); cbErr != nil {
				l.opts.Logger.Warn("flow.callback.failed", "stage", l.opts.StageName, "error", cbErr.Error())
			}
			l.opts.Metrics.ObserveIterations(l.opts.StageName, state.IterationCount)
			return Result{}, err
		}
		current = next
	}

	last, ok := state.Last()
	if !ok {
		return Result{}, fmt.Errorf("flow: %w: empty history", core.ErrMalformedResult)
	}

	l.opts.Metrics.ObserveIterations(l.opts.StageName, state.IterationCount)
	l.opts.Logger.Info(
		"flow.done",
		"stage", l.opts.StageName,
		"iterations", state.IterationCount,
		"truncated", r.truncated,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return Result{
		Text:       core.Extract(last),
		Iterations: state.IterationCount,
		Truncated:  r.truncated,
		History:    state.Snapshot(),
		Usage:      r.usage,
	}, nil
}

// step is the transition function of the state machine.
func (l *Loop) step(ctx context.Context, r *run, current State) (State, error) {
	switch current {
	case StateDecide:
		return l.decide(ctx, r)
	case StateExecuteTools:
		return l.executeTools(ctx, r)
	default:
		return StateDone, fmt.Errorf("flow: invalid state %d", current)
	}
}

func (l *Loop) decide(ctx context.Context, r *run) (State, error) {
	if err := ctx.Err(); err != nil {
		return StateDone, err
	}

	if r.state.IterationCount >= l.opts.MaxIterations {
		if l.opts.StrictLimit {
			return StateDone, fmt.Errorf("%w: %d decision turns", core.ErrIterationLimit, l.opts.MaxIterations)
		}
		l.opts.Logger.Warn("flow.truncated", "stage", l.opts.StageName, "limit", l.opts.MaxIterations)
		r.state.Append(core.NewAssistantMessage(TruncationMessage(l.opts.MaxIterations)))
		r.truncated = true
		return StateDone, nil
	}

	req := model.Request{}
	for _, p := range l.processors {
		if err := p.ProcessRequest(ctx, r.state, &req); err != nil {
			return StateDone, fmt.Errorf("request processor %s failed: %w", p.Name(), err)
		}
	}

	l.opts.Logger.Debug(
		"flow.decide",
		"stage", l.opts.StageName,
		"iteration", r.state.IterationCount+1,
		"messages", len(req.Messages),
		"tools", len(req.Tools),
	)

	iteration := r.state.IterationCount + 1
	if err := l.opts.Callbacks.Execute(ctx, &CallbackContext{Type: CallbackBeforeModel, Stage: l.opts.StageName, Iteration: iteration, Request: &req}); err != nil {
		return StateDone, err
	}

	resp, err := l.model.Generate(ctx, req)
	if err != nil {
		return StateDone, fmt.Errorf("reasoning service: %w", err)
	}

	reply := resp.Message
	reply.Role = core.RoleAssistant
	r.state.Append(reply)
	r.state.IterationCount++
	if resp.Usage != nil {
		r.usage.PromptTokens += resp.Usage.PromptTokens
		r.usage.CompletionTokens += resp.Usage.CompletionTokens
		r.usage.TotalTokens += resp.Usage.TotalTokens
	}

	if err := l.opts.Callbacks.Execute(ctx, &CallbackContext{Type: CallbackAfterModel, Stage: l.opts.StageName, Iteration: iteration, Request: &req, Response: &resp}); err != nil {
		return StateDone, err
	}

	if reply.HasToolCalls() {
		return StateExecuteTools, nil
	}
	return StateDone, nil
}

func (l *Loop) executeTools(ctx context.Context, r *run) (State, error) {
	last, ok := r.state.Last()
	if !ok || !last.HasToolCalls() {
		return StateDecide, nil
	}

	results, err := l.executor.Execute(ctx, last.ToolCalls)
	if err != nil {
		return StateDone, err
	}
	r.state.Append(results...)
	return StateDecide, nil
}

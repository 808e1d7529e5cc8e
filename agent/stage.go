package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/flow"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/metrics"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

const tracerName = "github.com/hupe1980/agentflow/agent"

// Runner is anything that turns a prompt into a stage result. *Stage is the
// production implementation; coordinators accept Runner so they can be
// composed and tested in isolation.
type Runner interface {
	Name() string
	Run(ctx context.Context, prompt string) (StageResult, error)
}

// StageResult is the settled output of one stage run.
type StageResult struct {
	Stage      string         `json:"stage"`
	Text       string         `json:"text"`
	Iterations int            `json:"iterations"`
	Truncated  bool           `json:"truncated,omitempty"`
	History    []core.Message `json:"-"`
	Usage      model.TokenUsage
}

// StageOptions configures a Stage.
//
// Use functional options with NewStage to override defaults.
type StageOptions struct {
	Instruction        Instruction
	Vars               map[string]any
	Description        string
	Tools              []tool.Tool
	MaxIterations      int
	StrictLimit        bool
	UnknownToolPolicy  flow.UnknownToolPolicy
	MaxParallelTools   int
	MaxHistoryMessages int
	Callbacks          *flow.CallbackManager
	Logger             logging.Logger
	Metrics            *metrics.Collector
	Tracer             trace.Tracer
}

// Stage is one configured reasoning+tool-call unit. It is immutable after
// construction and safe to run concurrently; every Run starts from a fresh
// conversation.
type Stage struct {
	name     string
	llm      model.Model
	registry *tool.Registry
	opts     StageOptions
}

// NewStage creates a stage named name over llm. The capability registry is
// built once here; duplicate tool names are rejected.
func NewStage(name string, llm model.Model, optFns ...func(o *StageOptions)) (*Stage, error) {
	if name == "" {
		return nil, errors.New("agent: stage name is empty")
	}
	if llm == nil {
		return nil, fmt.Errorf("agent: stage %s has no model", name)
	}

	opts := StageOptions{
		Instruction:       NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		MaxIterations:     flow.DefaultMaxIterations,
		UnknownToolPolicy: flow.RecoverUnknownTool,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	registry, err := tool.NewRegistry(opts.Tools...)
	if err != nil {
		return nil, fmt.Errorf("agent: stage %s: %w", name, err)
	}

	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	return &Stage{name: name, llm: llm, registry: registry, opts: opts}, nil
}

// MustStage is like NewStage but panics on error.
func MustStage(name string, llm model.Model, optFns ...func(o *StageOptions)) *Stage {
	s, err := NewStage(name, llm, optFns...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the stage name, used as its label in coordinators.
func (s *Stage) Name() string { return s.name }

// Description returns the optional human readable description.
func (s *Stage) Description() string { return s.opts.Description }

// Tools returns the names of the stage's capabilities in sorted order.
func (s *Stage) Tools() []string { return s.registry.Names() }

// Run executes the tool-call loop over a fresh conversation seeded with
// prompt as the user message. Failures are reported as *core.StageFailure.
func (s *Stage) Run(ctx context.Context, prompt string) (StageResult, error) {
	ctx, span := s.opts.Tracer.Start(ctx, "agent.stage.run", trace.WithAttributes(
		attribute.String("agent.stage", s.name),
		attribute.String("agent.model", s.llm.Info().String()),
		attribute.Int("agent.tools", s.registry.Len()),
	))
	defer span.End()

	start := time.Now()
	s.opts.Logger.Info("agent.stage.start", "stage", s.name, "prompt_length", len(prompt))

	res, err := s.run(ctx, prompt)
	dur := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.opts.Metrics.ObserveStage(s.name, metrics.OutcomeError, dur)
		s.opts.Logger.Error("agent.stage.failed", "stage", s.name, "duration_ms", dur.Milliseconds(), "error", err.Error())
		return StageResult{}, core.NewStageFailure(s.name, err)
	}

	outcome := metrics.OutcomeSuccess
	if res.Truncated {
		outcome = metrics.OutcomeTruncated
	}
	span.SetAttributes(
		attribute.Int("agent.iterations", res.Iterations),
		attribute.Bool("agent.truncated", res.Truncated),
	)
	s.opts.Metrics.ObserveStage(s.name, outcome, dur)
	s.opts.Logger.Info(
		"agent.stage.complete",
		"stage", s.name,
		"iterations", res.Iterations,
		"truncated", res.Truncated,
		"duration_ms", dur.Milliseconds(),
	)

	return res, nil
}

func (s *Stage) run(ctx context.Context, prompt string) (StageResult, error) {
	instructions, err := s.opts.Instruction.Resolve(ctx)
	if err != nil {
		return StageResult{}, fmt.Errorf("failed to resolve instruction: %w", err)
	}

	loop := flow.NewLoop(s.llm, s.registry, func(o *flow.Options) {
		o.Instructions = instructions
		o.Vars = s.opts.Vars
		o.MaxIterations = s.opts.MaxIterations
		o.StrictLimit = s.opts.StrictLimit
		o.UnknownToolPolicy = s.opts.UnknownToolPolicy
		o.MaxParallelTools = s.opts.MaxParallelTools
		o.MaxHistory = s.opts.MaxHistoryMessages
		o.Callbacks = s.opts.Callbacks
		o.StageName = s.name
		o.Logger = s.opts.Logger
		o.Metrics = s.opts.Metrics
	})

	res, err := loop.Run(ctx, core.NewConversationState(core.NewUserMessage(prompt)))
	if err != nil {
		return StageResult{}, err
	}

	return StageResult{
		Stage:      s.name,
		Text:       res.Text,
		Iterations: res.Iterations,
		Truncated:  res.Truncated,
		History:    res.History,
		Usage:      res.Usage,
	}, nil
}

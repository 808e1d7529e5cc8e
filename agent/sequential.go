package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/logging"
)

// ErrNoStages is returned by coordinators built without stages.
var ErrNoStages = errors.New("no stages")

// StageOutput is the labelled output of one completed stage.
type StageOutput struct {
	Stage      string `json:"stage"`
	Text       string `json:"text"`
	Iterations int    `json:"iterations"`
}

// PipelineResult is the final stage's text plus every stage's output in order.
type PipelineResult struct {
	Final   string        `json:"final"`
	Outputs []StageOutput `json:"outputs"`
}

// PromptBuilder derives the prompt of the named stage from the raw input and
// the outputs of the stages before it.
type PromptBuilder func(stage, input string, prior []StageOutput) string

// FormatLabelled renders outputs as "[<stage>]\n<text>" blocks joined by a
// blank line.
func FormatLabelled(outputs []StageOutput) string {
	blocks := make([]string, len(outputs))
	for i, o := range outputs {
		blocks[i] = "[" + o.Stage + "]\n" + o.Text
	}
	return strings.Join(blocks, "\n\n")
}

// DefaultPromptBuilder is the accumulator: the raw input followed by every
// prior stage's labelled output.
func DefaultPromptBuilder(_ string, input string, prior []StageOutput) string {
	if len(prior) == 0 {
		return input
	}
	return input + "\n\n" + FormatLabelled(prior)
}

// PipelineOptions configures a SequentialPipeline.
type PipelineOptions struct {
	PromptBuilder PromptBuilder
	Logger        logging.Logger
	Tracer        trace.Tracer
}

// SequentialPipeline runs stages in strict order. Stage k sees the original
// input and the labelled outputs of stages 0..k-1. The first failure aborts
// the run and no partial result is returned.
type SequentialPipeline struct {
	name   string
	stages []Runner
	opts   PipelineOptions
}

// NewSequentialPipeline creates a pipeline over stages, executed in the order given.
func NewSequentialPipeline(name string, stages ...Runner) *SequentialPipeline {
	return &SequentialPipeline{
		name:   name,
		stages: stages,
		opts: PipelineOptions{
			PromptBuilder: DefaultPromptBuilder,
			Logger:        logging.NoOpLogger{},
			Tracer:        otel.Tracer(tracerName),
		},
	}
}

// WithOptions returns a copy of the pipeline with optFns applied.
func (p *SequentialPipeline) WithOptions(optFns ...func(o *PipelineOptions)) *SequentialPipeline {
	cp := *p
	for _, fn := range optFns {
		fn(&cp.opts)
	}
	if cp.opts.PromptBuilder == nil {
		cp.opts.PromptBuilder = DefaultPromptBuilder
	}
	cp.opts.Logger = logging.OrNoOp(cp.opts.Logger)
	if cp.opts.Tracer == nil {
		cp.opts.Tracer = otel.Tracer(tracerName)
	}
	return &cp
}

// WithPromptBuilder returns a copy of the pipeline using b to build stage prompts.
func (p *SequentialPipeline) WithPromptBuilder(b PromptBuilder) *SequentialPipeline {
	return p.WithOptions(func(o *PipelineOptions) { o.PromptBuilder = b })
}

// Name returns the pipeline name.
func (p *SequentialPipeline) Name() string { return p.name }

// Stages returns the stage names in execution order.
func (p *SequentialPipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Run executes every stage in order. Cancellation is checked between stages.
func (p *SequentialPipeline) Run(ctx context.Context, input string) (PipelineResult, error) {
	if len(p.stages) == 0 {
		return PipelineResult{}, fmt.Errorf("pipeline %s: %w", p.name, ErrNoStages)
	}

	ctx, span := p.opts.Tracer.Start(ctx, "agent.pipeline.run", trace.WithAttributes(
		attribute.String("agent.pipeline", p.name),
		attribute.Int("agent.stages", len(p.stages)),
	))
	defer span.End()

	start := time.Now()
	outputs := make([]StageOutput, 0, len(p.stages))

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return PipelineResult{}, p.fail(span, stage.Name(), err)
		}

		prompt := p.opts.PromptBuilder(stage.Name(), input, outputs)
		p.opts.Logger.Debug("agent.pipeline.stage", "pipeline", p.name, "stage", stage.Name(), "position", len(outputs))

		res, err := stage.Run(ctx, prompt)
		if err != nil {
			return PipelineResult{}, p.fail(span, stage.Name(), err)
		}

		outputs = append(outputs, StageOutput{Stage: stage.Name(), Text: res.Text, Iterations: res.Iterations})
	}

	p.opts.Logger.Info(
		"agent.pipeline.complete",
		"pipeline", p.name,
		"stages", len(outputs),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return PipelineResult{
		Final:   outputs[len(outputs)-1].Text,
		Outputs: outputs,
	}, nil
}

func (p *SequentialPipeline) fail(span trace.Span, stage string, err error) error {
	err = core.NewStageFailure(stage, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	p.opts.Logger.Error("agent.pipeline.failed", "pipeline", p.name, "stage", stage, "error", err.Error())
	return fmt.Errorf("sequential execution failed at stage %s: %w", stage, err)
}

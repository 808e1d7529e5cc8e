package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/metrics"
)

// Branch is one independent analysis of a fan-out.
type Branch struct {
	Stage Runner
	// Label names the outcome; defaults to the stage name.
	Label string
	// Prompt derives the branch prompt from the raw input; nil passes the input through.
	Prompt func(input string) string
	// Fallback is the default message used when the branch fails.
	Fallback string
}

func (b Branch) label() string {
	if b.Label != "" {
		return b.Label
	}
	return b.Stage.Name()
}

func (b Branch) fallback() string {
	if b.Fallback != "" {
		return b.Fallback
	}
	return b.label() + " unavailable"
}

// Outcome is the normalized, settled result of one branch. Text is the
// extracted output when OK, otherwise "<fallback>: <reason>".
type Outcome struct {
	Label    string        `json:"label"`
	Text     string        `json:"text"`
	OK       bool          `json:"ok"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// FanOutResult is the synthesized answer plus every branch outcome in
// branch order. Metadata maps each label to its outcome text.
type FanOutResult struct {
	Final    string            `json:"final"`
	Outcomes []Outcome         `json:"outcomes"`
	Metadata map[string]string `json:"metadata"`
}

// FanOutOptions configures a FanOut.
type FanOutOptions struct {
	// Timeout bounds the branch phase. Branches still running at the deadline
	// are cancelled and reported with their fallback. Zero disables it.
	Timeout time.Duration
	// MaxConcurrency limits concurrently running branches; 0 means unlimited.
	MaxConcurrency int
	// SynthesisPrompt builds the synthesis prompt from the input and outcomes.
	SynthesisPrompt func(input string, outcomes []Outcome) string
	Logger          logging.Logger
	Metrics         *metrics.Collector
	Tracer          trace.Tracer
}

// FanOut runs independent branches concurrently, joins all of them, and
// invokes a synthesis stage exactly once with the labelled outcomes. A branch
// failure never cancels its siblings or fails the coordinator.
type FanOut struct {
	name      string
	branches  []Branch
	synthesis Runner
	opts      FanOutOptions
}

// NewFanOut creates a fan-out coordinator.
func NewFanOut(name string, branches []Branch, synthesis Runner, optFns ...func(o *FanOutOptions)) (*FanOut, error) {
	if len(branches) == 0 {
		return nil, fmt.Errorf("fan-out %s: %w", name, ErrNoStages)
	}
	if synthesis == nil {
		return nil, fmt.Errorf("fan-out %s: synthesis stage is nil", name)
	}
	seen := make(map[string]struct{}, len(branches))
	for i, b := range branches {
		if b.Stage == nil {
			return nil, fmt.Errorf("fan-out %s: branch %d has no stage", name, i)
		}
		if _, dup := seen[b.label()]; dup {
			return nil, fmt.Errorf("fan-out %s: duplicate branch label %q", name, b.label())
		}
		seen[b.label()] = struct{}{}
	}

	opts := FanOutOptions{SynthesisPrompt: DefaultSynthesisPrompt}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.SynthesisPrompt == nil {
		opts.SynthesisPrompt = DefaultSynthesisPrompt
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	return &FanOut{
		name:      name,
		branches:  append([]Branch(nil), branches...),
		synthesis: synthesis,
		opts:      opts,
	}, nil
}

// DefaultSynthesisPrompt is the input followed by every outcome as a
// "[<label>]\n<text>" block.
func DefaultSynthesisPrompt(input string, outcomes []Outcome) string {
	outputs := make([]StageOutput, len(outcomes))
	for i, o := range outcomes {
		outputs[i] = StageOutput{Stage: o.Label, Text: o.Text}
	}
	return DefaultPromptBuilder("", input, outputs)
}

// FallbackText formats a failed outcome as "<fallback>: <reason>".
func FallbackText(fallback string, err error) string {
	return fallback + ": " + failureReason(err)
}

// failureReason extracts the most specific text of err. Stage identity is
// dropped because the outcome is already labelled.
func failureReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var sf *core.StageFailure
	if errors.As(err, &sf) && sf.Err != nil {
		return sf.Err.Error()
	}
	return err.Error()
}

// Name returns the coordinator name.
func (f *FanOut) Name() string { return f.name }

// Labels returns the branch labels in branch order.
func (f *FanOut) Labels() []string {
	labels := make([]string, len(f.branches))
	for i, b := range f.branches {
		labels[i] = b.label()
	}
	return labels
}

// Run executes all branches, then the synthesis stage. Only a synthesis
// failure is returned as an error.
func (f *FanOut) Run(ctx context.Context, input string) (FanOutResult, error) {
	ctx, span := f.opts.Tracer.Start(ctx, "agent.fanout.run", trace.WithAttributes(
		attribute.String("agent.fanout", f.name),
		attribute.Int("agent.branches", len(f.branches)),
	))
	defer span.End()

	start := time.Now()
	outcomes := f.runBranches(ctx, input)

	metadata := make(map[string]string, len(outcomes))
	failed := 0
	for _, o := range outcomes {
		metadata[o.Label] = o.Text
		if !o.OK {
			failed++
			f.opts.Metrics.IncFallback(f.name, o.Label)
		}
	}
	span.SetAttributes(attribute.Int("agent.branches.failed", failed))

	res, err := f.synthesis.Run(ctx, f.opts.SynthesisPrompt(input, outcomes))
	if err != nil {
		err = core.NewStageFailure(f.synthesis.Name(), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		f.opts.Logger.Error("agent.fanout.synthesis.failed", "fanout", f.name, "error", err.Error())
		return FanOutResult{}, fmt.Errorf("fan-out %s: %w", f.name, err)
	}

	f.opts.Logger.Info(
		"agent.fanout.complete",
		"fanout", f.name,
		"branches", len(outcomes),
		"failed", failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return FanOutResult{Final: res.Text, Outcomes: outcomes, Metadata: metadata}, nil
}

// runBranches launches every branch and waits until all settled or the
// deadline passed. Every slot of the returned slice is filled.
func (f *FanOut) runBranches(ctx context.Context, input string) []Outcome {
	branchCtx, cancel := ctx, context.CancelFunc(func() {})
	if f.opts.Timeout > 0 {
		branchCtx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
	}
	defer cancel()

	var (
		mu      sync.Mutex
		results = make([]Outcome, len(f.branches))
		settled = make([]bool, len(f.branches))
	)

	g := new(errgroup.Group)
	if f.opts.MaxConcurrency > 0 {
		g.SetLimit(f.opts.MaxConcurrency)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, b := range f.branches {
			if branchCtx.Err() != nil {
				break
			}
			g.Go(func() error {
				o := f.runBranch(branchCtx, b, input)
				mu.Lock()
				results[i], settled[i] = o, true
				mu.Unlock()
				// Never return the branch error: one failure must not affect siblings.
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-branchCtx.Done():
	}

	mu.Lock()
	outcomes := make([]Outcome, len(f.branches))
	copy(outcomes, results)
	for i, b := range f.branches {
		if settled[i] {
			continue
		}
		err := branchCtx.Err()
		if err == nil {
			err = context.Canceled
		}
		outcomes[i] = Outcome{Label: b.label(), Text: FallbackText(b.fallback(), err), Err: err}
		f.opts.Logger.Warn("agent.fanout.branch.abandoned", "fanout", f.name, "branch", b.label(), "error", err.Error())
	}
	mu.Unlock()

	return outcomes
}

// runBranch runs one branch and normalizes its result. It never panics.
func (f *FanOut) runBranch(ctx context.Context, b Branch, input string) (out Outcome) {
	label := b.label()
	ctx, span := f.opts.Tracer.Start(ctx, "agent.fanout.branch", trace.WithAttributes(
		attribute.String("agent.branch", buildBranchPath(f.name, label)),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = f.failed(span, b, fmt.Errorf("panic: %v", r))
		}
		out.Duration = time.Since(start)
	}()

	prompt := input
	if b.Prompt != nil {
		prompt = b.Prompt(input)
	}

	res, err := b.Stage.Run(ctx, prompt)
	if err != nil {
		return f.failed(span, b, err)
	}
	if len(res.History) == 0 {
		return f.failed(span, b, core.ErrMalformedResult)
	}

	f.opts.Logger.Debug("agent.fanout.branch.complete", "fanout", f.name, "branch", label, "iterations", res.Iterations)
	return Outcome{Label: label, Text: res.Text, OK: true}
}

func (f *FanOut) failed(span trace.Span, b Branch, err error) Outcome {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	f.opts.Logger.Warn("agent.fanout.branch.failed", "fanout", f.name, "branch", b.label(), "error", err.Error())
	return Outcome{Label: b.label(), Text: FallbackText(b.fallback(), err), Err: err}
}

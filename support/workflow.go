package support

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentflow/agent"
	"github.com/hupe1980/agentflow/config"
	"github.com/hupe1980/agentflow/flow"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/metrics"
	"github.com/hupe1980/agentflow/model"
)

// Ticket is an inbound support request.
type Ticket struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	Message    string `json:"message"`
}

// Validate reports missing fields.
func (t Ticket) Validate() error {
	var missing []string
	if strings.TrimSpace(t.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(t.CustomerID) == "" {
		missing = append(missing, "customer_id")
	}
	if strings.TrimSpace(t.Message) == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Result is the processed ticket.
type Result struct {
	TicketID       string         `json:"ticket_id"`
	Response       string         `json:"response"`
	Metadata       map[string]any `json:"metadata"`
	ProcessingTime string         `json:"processing_time,omitempty"`
}

// Metadata keys of the fan-out branches.
const (
	LabelSentiment       = "sentiment"
	LabelSolutions       = "solutions"
	LabelCustomerContext = "customer_context"
	LabelSystemStatus    = "system_status"
)

// Options configures a Workflow.
type Options struct {
	// Overrides replace stage defaults by stage name.
	Overrides map[string]config.StageConfig
	// MaxIterations caps every stage's tool-call loop; 0 keeps the default.
	MaxIterations int
	// FanOutTimeout bounds the branch phase of Process; 0 disables it.
	FanOutTimeout time.Duration
	// MaxConcurrency limits concurrently running branches; 0 is unlimited.
	MaxConcurrency int
	// Callbacks observe every stage's model and tool steps.
	Callbacks *flow.CallbackManager
	Logger    logging.Logger
	Metrics   *metrics.Collector
}

// Workflow holds the stages of both support flows. It is safe for
// concurrent use.
type Workflow struct {
	fanOut   map[string]*agent.Stage
	pipeline *agent.SequentialPipeline
	opts     Options
}

// New builds all support stages over llm.
func New(llm model.Model, optFns ...func(o *Options)) (*Workflow, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	fanOut, err := buildStages(llm, fanOutDefs, opts)
	if err != nil {
		return nil, fmt.Errorf("support: %w", err)
	}
	steps, err := buildStages(llm, pipelineDefs, opts)
	if err != nil {
		return nil, fmt.Errorf("support: %w", err)
	}

	runners := make([]agent.Runner, len(pipelineDefs))
	for i, def := range pipelineDefs {
		runners[i] = steps[def.name]
	}
	pipeline := agent.NewSequentialPipeline("support_pipeline", runners...).WithOptions(func(o *agent.PipelineOptions) {
		o.Logger = opts.Logger
	})

	return &Workflow{fanOut: fanOut, pipeline: pipeline, opts: opts}, nil
}

// Agents lists the fan-out stages followed by the pipeline steps.
func (w *Workflow) Agents() []string {
	names := make([]string, 0, len(fanOutDefs)+len(pipelineDefs))
	for _, s := range fanOutDefs {
		names = append(names, s.name)
	}
	return append(names, w.pipeline.Stages()...)
}

// Process handles a ticket with the parallel fan-out. Failed branches are
// replaced by their fallback text; only a synthesis failure is an error.
func (w *Workflow) Process(ctx context.Context, t Ticket) (Result, error) {
	if err := t.Validate(); err != nil {
		return Result{}, err
	}

	coordinator, err := w.newFanOut(t)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	res, err := coordinator.Run(ctx, t.Message)
	if err != nil {
		return Result{}, err
	}

	metadata := make(map[string]any, len(res.Metadata))
	for k, v := range res.Metadata {
		metadata[k] = v
	}

	return Result{
		TicketID:       t.ID,
		Response:       res.Final,
		Metadata:       metadata,
		ProcessingTime: time.Since(start).Round(time.Millisecond).String(),
	}, nil
}

func (w *Workflow) newFanOut(t Ticket) (*agent.FanOut, error) {
	ov := w.opts.Overrides
	branches := []agent.Branch{
		{
			Stage:    w.fanOut[StageSentiment],
			Label:    LabelSentiment,
			Prompt:   func(msg string) string { return "Analyze: " + msg },
			Fallback: overrideFallback(ov, StageSentiment, "Sentiment analysis unavailable"),
		},
		{
			Stage:    w.fanOut[StageKnowledgeBase],
			Label:    LabelSolutions,
			Prompt:   func(msg string) string { return "Find solutions for: " + msg },
			Fallback: overrideFallback(ov, StageKnowledgeBase, "Solutions unavailable"),
		},
		{
			Stage:    w.fanOut[StageCustomerContext],
			Label:    LabelCustomerContext,
			Prompt:   func(string) string { return "Get context for customer: " + t.CustomerID },
			Fallback: overrideFallback(ov, StageCustomerContext, "Customer context unavailable"),
		},
		{
			Stage:    w.fanOut[StageStatus],
			Label:    LabelSystemStatus,
			Prompt:   func(string) string { return "Check current service status" },
			Fallback: overrideFallback(ov, StageStatus, "Status check unavailable"),
		},
	}

	return agent.NewFanOut("support_fanout", branches, w.fanOut[StageResponse], func(o *agent.FanOutOptions) {
		o.Timeout = w.opts.FanOutTimeout
		o.MaxConcurrency = w.opts.MaxConcurrency
		o.SynthesisPrompt = SynthesisPrompt
		o.Logger = w.opts.Logger
		o.Metrics = w.opts.Metrics
	})
}

// SynthesisPrompt lays the branch outcomes out for the response stage.
func SynthesisPrompt(message string, outcomes []agent.Outcome) string {
	byLabel := make(map[string]string, len(outcomes))
	for _, o := range outcomes {
		byLabel[o.Label] = o.Text
	}
	return fmt.Sprintf(`Generate support response using:

Original Ticket: %s
Sentiment Analysis: %s
Recommended Solutions: %s
Customer Context: %s
System Status: %s`,
		message,
		byLabel[LabelSentiment],
		byLabel[LabelSolutions],
		byLabel[LabelCustomerContext],
		byLabel[LabelSystemStatus],
	)
}

// RunPipeline handles a ticket with the six-step sequential pipeline. The
// first failing step aborts the run.
func (w *Workflow) RunPipeline(ctx context.Context, t Ticket) (Result, error) {
	if err := t.Validate(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	res, err := w.pipeline.WithPromptBuilder(PipelinePrompts(t)).Run(ctx, t.Message)
	if err != nil {
		return Result{}, err
	}

	iterations := 0
	steps := make(map[string]string, len(res.Outputs))
	for _, o := range res.Outputs {
		iterations += o.Iterations
		steps[o.Stage] = o.Text
	}

	return Result{
		TicketID: t.ID,
		Response: res.Final,
		Metadata: map[string]any{
			"customer_id":     t.CustomerID,
			"processing_type": "synchronous_pipeline",
			"steps":           len(res.Outputs),
			"iterations":      iterations,
			"outputs":         steps,
		},
		ProcessingTime: time.Since(start).Round(time.Millisecond).String(),
	}, nil
}

// PipelinePrompts returns the prompt builder that feeds each step the
// findings it depends on.
func PipelinePrompts(t Ticket) agent.PromptBuilder {
	return func(stage, input string, prior []agent.StageOutput) string {
		out := func(name string) string {
			for _, p := range prior {
				if p.Stage == name {
					return p.Text
				}
			}
			return ""
		}

		switch stage {
		case StepSentiment:
			return input
		case StepUrgency:
			return fmt.Sprintf("Message: %s\n\nSentiment Analysis: %s", input, out(StepSentiment))
		case StepKnowledge:
			return fmt.Sprintf("Message: %s\n\nUrgency Info: %s\n\nPlease search for relevant solutions.", input, out(StepUrgency))
		case StepCustomer:
			return fmt.Sprintf("Customer ID: %s\n\nKnowledge Info: %s\n\nRetrieve full customer context.", t.CustomerID, out(StepKnowledge))
		case StepStatus:
			return fmt.Sprintf("Customer Context: %s\n\nCheck if there are any system issues related to this customer.", out(StepCustomer))
		case StepResponse:
			return fmt.Sprintf(`Original Message: %s

Sentiment Analysis: %s

Urgency Assessment: %s

Knowledge & Solutions: %s

Customer Context: %s

System Status: %s

Generate a comprehensive, personalized support response that addresses the customer's issue.
Apply appropriate tone based on sentiment and provide clear next steps based on urgency.`,
				input, out(StepSentiment), out(StepUrgency), out(StepKnowledge), out(StepCustomer), out(StepStatus))
		default:
			return agent.DefaultPromptBuilder(stage, input, prior)
		}
	}
}

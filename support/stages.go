package support

import (
	"fmt"

	"github.com/hupe1980/agentflow/agent"
	"github.com/hupe1980/agentflow/config"
	"github.com/hupe1980/agentflow/internal/demotools"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

// Fan-out stage names.
const (
	StageSentiment       = "sentiment"
	StageKnowledgeBase   = "knowledge_base"
	StageCustomerContext = "customer_context"
	StageStatus          = "status"
	StageResponse        = "response_generation"
)

// Pipeline stage names, in execution order.
const (
	StepSentiment = "sentiment_analysis"
	StepUrgency   = "urgency_detection"
	StepKnowledge = "knowledge_search"
	StepCustomer  = "customer_lookup"
	StepStatus    = "status_check"
	StepResponse  = "response_writer"
)

type stageDef struct {
	name        string
	description string
	instruction string
	tools       func() []tool.Tool
}

var fanOutDefs = []stageDef{
	{
		name:        StageSentiment,
		description: "Sentiment and urgency of the ticket",
		instruction: "Analyze customer sentiment and urgency from support messages.",
		tools:       demotools.SentimentTools,
	},
	{
		name:        StageKnowledgeBase,
		description: "Knowledge base search",
		instruction: "Search knowledge base for relevant solutions and documentation.",
		tools:       demotools.KnowledgeTools,
	},
	{
		name:        StageCustomerContext,
		description: "Customer profile and history",
		instruction: "Retrieve customer context and history.",
		tools:       demotools.CustomerTools,
	},
	{
		name:        StageStatus,
		description: "Service health",
		instruction: "Check product/service health and known issues.",
		tools:       demotools.StatusTools,
	},
	{
		name:        StageResponse,
		description: "Response synthesis",
		instruction: "Generate contextual, empathetic customer responses.",
		tools:       demotools.ResponseTools,
	},
}

var pipelineDefs = []stageDef{
	{
		name:        StepSentiment,
		description: "Step 1: sentiment and emotion",
		instruction: "You are a sentiment analysis expert. Analyze customer messages to understand " +
			"their emotional state. Use analyze_sentiment to get overall sentiment and " +
			"classify_emotion to understand specific emotions.",
		tools: func() []tool.Tool { return []tool.Tool{demotools.AnalyzeSentiment(), demotools.ClassifyEmotion()} },
	},
	{
		name:        StepUrgency,
		description: "Step 2: urgency from message and sentiment",
		instruction: "You are an urgency detection expert. Analyze support tickets to determine " +
			"their urgency level. Consider both the message content and any sentiment " +
			"information provided to assess priority accurately.",
		tools: func() []tool.Tool { return []tool.Tool{demotools.DetectUrgency()} },
	},
	{
		name:        StepKnowledge,
		description: "Step 3: solutions prioritized by urgency",
		instruction: "You are a knowledge base expert. Search documentation, find similar past " +
			"tickets, and retrieve solution steps. Use urgency information to prioritize " +
			"the most relevant and effective solutions.",
		tools: demotools.KnowledgeTools,
	},
	{
		name:        StepCustomer,
		description: "Step 4: customer context",
		instruction: "You are a customer context specialist. Retrieve comprehensive customer " +
			"information including profile, purchase history, and subscription status. " +
			"Use this to personalize the support experience.",
		tools: demotools.CustomerTools,
	},
	{
		name:        StepStatus,
		description: "Step 5: system status",
		instruction: "You are a system status monitor. Check current service status and known issues " +
			"to determine if customer problems might be related to system-wide problems.",
		tools: func() []tool.Tool { return []tool.Tool{demotools.CheckServiceStatus(), demotools.GetKnownIssues()} },
	},
	{
		name:        StepResponse,
		description: "Step 6: final response",
		instruction: "You are a response generation expert. Create comprehensive, personalized support " +
			"responses using all available context: sentiment, urgency, solutions, customer info, " +
			"and system status. Apply appropriate tone and suggest clear next steps.",
		tools: demotools.ResponseTools,
	},
}

// buildStage creates the stage described by def with any configured
// override applied on top.
func buildStage(llm model.Model, def stageDef, opts Options) (*agent.Stage, error) {
	ov := opts.Overrides[def.name]

	instruction := def.instruction
	if ov.Instruction != "" {
		instruction = ov.Instruction
	}
	description := def.description
	if ov.Description != "" {
		description = ov.Description
	}
	tools := def.tools()
	if len(ov.Tools) > 0 {
		var err error
		if tools, err = demotools.Lookup(ov.Tools...); err != nil {
			return nil, fmt.Errorf("stage %s: %w", def.name, err)
		}
	}
	maxIterations := opts.MaxIterations
	if ov.MaxIterations > 0 {
		maxIterations = ov.MaxIterations
	}

	return agent.NewStage(def.name, llm, func(o *agent.StageOptions) {
		o.Instruction = agent.NewInstructionFromText(instruction)
		o.Description = description
		o.Tools = tools
		if maxIterations > 0 {
			o.MaxIterations = maxIterations
		}
		o.Callbacks = opts.Callbacks
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})
}

func buildStages(llm model.Model, defs []stageDef, opts Options) (map[string]*agent.Stage, error) {
	stages := make(map[string]*agent.Stage, len(defs))
	for _, def := range defs {
		s, err := buildStage(llm, def, opts)
		if err != nil {
			return nil, err
		}
		stages[def.name] = s
	}
	return stages, nil
}

// overrideFallback returns the configured fallback of a stage or fallback.
func overrideFallback(overrides map[string]config.StageConfig, stage, fallback string) string {
	if fb := overrides[stage].Fallback; fb != "" {
		return fb
	}
	return fallback
}

package agentflow

import (
	"fmt"
	"slices"

	"github.com/hupe1980/agentflow/agent"
	"github.com/hupe1980/agentflow/config"
	"github.com/hupe1980/agentflow/flow"
	"github.com/hupe1980/agentflow/internal/demotools"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/metrics"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

// Stage names of the delegating general agent and its specialists.
const (
	GeneralStage  = "general"
	MathAgent     = "math_agent"
	WeatherAgent  = "weather_agent"
	ResearchAgent = "research_agent"
)

// stageDef describes the defaults of an app level stage.
type stageDef struct {
	name        string
	instruction string
	description string
	tools       []string
}

var specialistDefs = []struct {
	stageDef
	toolName string
}{
	{
		stageDef: stageDef{
			name:        MathAgent,
			instruction: "You are a math expert. Use your tools to solve mathematical problems and analyze numerical data.",
			description: "Perform mathematical calculations",
			tools:       []string{"calculator", "advanced_calculator", "analyze_data", "filter_data"},
		},
		toolName: "math_tool",
	},
	{
		stageDef: stageDef{
			name:        WeatherAgent,
			instruction: "You are a weather specialist. Provide detailed weather information and forecasts.",
			description: "Return weather information",
			tools:       []string{"get_weather", "get_forecast"},
		},
		toolName: "weather_tool",
	},
	{
		stageDef: stageDef{
			name:        ResearchAgent,
			instruction: "You are a research assistant. Search databases and analyze text to answer questions.",
			description: "As a research assistant, search databases and analyze text to answer questions",
			tools:       []string{"search_database", "text_analyzer"},
		},
		toolName: "research_tool",
	},
}

const generalInstruction = "You are a general assistant with access to multiple tools. Choose the right tools for the task."

// stageBuilder applies configuration overrides and shared wiring to app
// level stages.
type stageBuilder struct {
	llm       model.Model
	cfg       *config.Config
	overrides map[string]config.StageConfig
	callbacks *flow.CallbackManager
	logger    logging.Logger
	metrics   *metrics.Collector
}

// build creates the stage described by def. available resolves tool names;
// nil selects the demo catalog.
func (b *stageBuilder) build(def stageDef, available map[string]tool.Tool) (*agent.Stage, error) {
	ov := b.overrides[def.name]

	instruction := def.instruction
	if ov.Instruction != "" {
		instruction = ov.Instruction
	}
	description := def.description
	if ov.Description != "" {
		description = ov.Description
	}
	names := def.tools
	if len(ov.Tools) > 0 {
		names = ov.Tools
	}

	var (
		tools []tool.Tool
		err   error
	)
	if available == nil {
		tools, err = demotools.Lookup(names...)
	} else {
		tools, err = pick(available, names)
	}
	if err != nil {
		return nil, fmt.Errorf("agentflow: stage %s: %w", def.name, err)
	}

	maxIterations := b.cfg.MaxIterations
	if ov.MaxIterations > 0 {
		maxIterations = ov.MaxIterations
	}

	return agent.NewStage(def.name, b.llm, func(o *agent.StageOptions) {
		o.Instruction = agent.NewInstructionFromText(instruction)
		o.Description = description
		o.Tools = tools
		o.MaxIterations = maxIterations
		o.Callbacks = b.callbacks
		o.Logger = b.logger
		o.Metrics = b.metrics
	})
}

func pick(available map[string]tool.Tool, names []string) ([]tool.Tool, error) {
	out := make([]tool.Tool, 0, len(names))
	for _, n := range names {
		t, ok := available[n]
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", n)
		}
		out = append(out, t)
	}
	return out, nil
}

// newGeneral builds the specialists, exposes each as a delegation tool and
// returns the general stage that chooses among them.
func (b *stageBuilder) newGeneral() (*agent.Stage, []string, error) {
	delegates := make(map[string]tool.Tool, len(specialistDefs))
	toolNames := make([]string, 0, len(specialistDefs))
	specialists := make([]string, 0, len(specialistDefs))

	for _, def := range specialistDefs {
		s, err := b.build(def.stageDef, nil)
		if err != nil {
			return nil, nil, err
		}
		delegates[def.toolName] = agent.NewRunnerTool(s, def.toolName, def.description)
		toolNames = append(toolNames, def.toolName)
		specialists = append(specialists, s.Name())
	}

	general, err := b.build(stageDef{
		name:        GeneralStage,
		instruction: generalInstruction,
		description: "General assistant delegating to the math, weather and research agents",
		tools:       toolNames,
	}, delegates)
	if err != nil {
		return nil, nil, err
	}

	slices.Sort(specialists)
	return general, specialists, nil
}

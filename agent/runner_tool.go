package agent

import (
	"errors"
	"strings"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/tool"
)

// runnerTool exposes a Runner as a capability so a stage can delegate a
// sub-request to another stage and read back its extracted answer.
type runnerTool struct {
	name        string
	description string
	runner      Runner
}

// NewRunnerTool wraps r as a tool named name. The tool takes a single
// "query" argument, runs r with it as the prompt and returns the result text.
// A failing run becomes an error tool-result for the calling stage.
func NewRunnerTool(r Runner, name, description string) tool.Tool {
	if name == "" {
		name = r.Name()
	}
	return &runnerTool{name: name, description: description, runner: r}
}

func (t *runnerTool) Name() string { return t.name }

func (t *runnerTool) Description() string { return t.description }

func (t *runnerTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "The request for the " + t.runner.Name() + " agent"},
		},
		"required": []string{"query"},
	}
}

func (t *runnerTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("field 'query' must be a non-empty string")
	}

	tc.Logger().Debug("agent.delegate.start", "agent", t.runner.Name())
	res, err := t.runner.Run(tc.Context(), query)
	if err != nil {
		return nil, err
	}
	return res.Text, nil
}

package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/flow"
	"github.com/hupe1980/agentflow/metrics"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

func weatherTool() tool.Tool {
	type args struct {
		Location string `json:"location" description:"City name"`
	}
	return tool.NewTypedTool("get_weather", "Gets the current weather", func(_ *core.ToolContext, a args) (any, error) {
		return map[string]any{"location": a.Location, "condition": "sunny"}, nil
	})
}

func TestNewStage_Validation(t *testing.T) {
	_, err := NewStage("", model.NewScriptedModel())
	assert.Error(t, err)

	_, err = NewStage("s", nil)
	assert.Error(t, err)

	_, err = NewStage("s", model.NewScriptedModel(), func(o *StageOptions) {
		o.Tools = []tool.Tool{weatherTool(), weatherTool()}
	})
	assert.Error(t, err)
	assert.Panics(t, func() { MustStage("", nil) })
}

func TestStage_RunWithTool(t *testing.T) {
	m := model.NewScriptedModel(
		model.Call(core.CapabilityCall{ID: "1", Name: "get_weather", Arguments: map[string]any{"location": "Paris"}}),
		model.Reply("It is sunny in Paris."),
	)
	reg := prometheus.NewRegistry()
	stage := MustStage("assistant", m, func(o *StageOptions) {
		o.Instruction = NewInstructionFromText("You answer weather questions for {{.user}}.")
		o.Vars = map[string]any{"user": "Ada"}
		o.Tools = []tool.Tool{weatherTool()}
		o.Metrics = metrics.MustNew(reg)
	})

	res, err := stage.Run(context.Background(), "Weather in Paris?")
	require.NoError(t, err)

	assert.Equal(t, "assistant", res.Stage)
	assert.Equal(t, "It is sunny in Paris.", res.Text)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, []string{"get_weather"}, stage.Tools())
	assert.Equal(t, "You answer weather questions for Ada.", m.Requests()[0].Instructions)
	assert.JSONEq(t, `{"condition":"sunny","location":"Paris"}`, core.Extract(res.History[2]))

	count, err := promtestutil.GatherAndCount(reg, metrics.MetricStageRuns)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStage_FreshStatePerRun(t *testing.T) {
	m := model.NewFuncModel(func(_ context.Context, req model.Request) (core.Message, error) {
		return core.NewAssistantMessage(model.LastUserText(req)), nil
	})
	stage := MustStage("echo", m)

	for _, prompt := range []string{"one", "two"} {
		res, err := stage.Run(context.Background(), prompt)
		require.NoError(t, err)
		assert.Equal(t, prompt, res.Text)
	}
	for _, req := range m.Requests() {
		assert.Len(t, req.Messages, 1)
	}
}

func TestStage_FailureIsStageFailure(t *testing.T) {
	boom := errors.New("service down")
	stage := MustStage("analyst", model.NewScriptedModel(model.Fail(boom)))

	_, err := stage.Run(context.Background(), "x")
	require.Error(t, err)

	var sf *core.StageFailure
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, "analyst", sf.Stage)
	assert.ErrorIs(t, err, boom)
}

func TestStage_StrictLimit(t *testing.T) {
	m := model.NewFuncModel(func(context.Context, model.Request) (core.Message, error) {
		return core.NewAssistantMessage("", core.CapabilityCall{ID: core.NewID(), Name: "get_weather"}), nil
	})
	stage := MustStage("looping", m, func(o *StageOptions) {
		o.Tools = []tool.Tool{weatherTool()}
		o.MaxIterations = 2
		o.StrictLimit = true
	})

	_, err := stage.Run(context.Background(), "x")
	assert.ErrorIs(t, err, core.ErrIterationLimit)
}

func TestStage_UnknownToolPolicy(t *testing.T) {
	turns := func() *model.ScriptedModel {
		return model.NewScriptedModel(
			model.Call(core.CapabilityCall{ID: "1", Name: "nonexistent"}),
			model.Reply("recovered"),
		)
	}

	res, err := MustStage("recover", turns()).Run(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "recovered", res.Text)

	_, err = MustStage("strict", turns(), func(o *StageOptions) {
		o.UnknownToolPolicy = flow.FailOnUnknownTool
	}).Run(context.Background(), "x")
	assert.ErrorIs(t, err, core.ErrCapabilityNotFound)
}

func TestStage_DynamicInstruction(t *testing.T) {
	m := model.NewScriptedModel(model.Reply("ok"))
	stage := MustStage("dyn", m, func(o *StageOptions) {
		o.Instruction = NewInstructionFromFunc(func(context.Context) (string, error) {
			return "generated at " + time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), nil
		})
	})

	_, err := stage.Run(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "generated at 2024-01-02", m.Requests()[0].Instructions)

	failing := MustStage("dyn", m, func(o *StageOptions) {
		o.Instruction = NewInstructionFromFunc(func(context.Context) (string, error) {
			return "", errors.New("no instruction")
		})
	})
	_, err = failing.Run(context.Background(), "x")
	assert.Error(t, err)
}

func TestInstruction(t *testing.T) {
	static := NewInstructionFromText("hello")
	assert.True(t, static.IsStatic())
	text, err := static.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	dynamic := NewInstructionFromProvider(Func(func(context.Context) (string, error) { return "dyn", nil }))
	assert.False(t, dynamic.IsStatic())
	text, err = dynamic.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dyn", text)
}

func TestBuildBranchPath(t *testing.T) {
	assert.Equal(t, "child", buildBranchPath("", "child"))
	assert.Equal(t, "parent", buildBranchPath("parent", ""))
	assert.Equal(t, "parent.child", buildBranchPath("parent", "child"))
}

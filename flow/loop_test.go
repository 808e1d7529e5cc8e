package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

func echoTool(name string) tool.Tool {
	return tool.NewFunctionTool(name, "echoes its input", nil, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return name + ":" + core.RenderResult(args["input"]), nil
	})
}

func call(id, name string) core.CapabilityCall {
	return core.CapabilityCall{ID: id, Name: name, Arguments: map[string]any{"input": id}}
}

func TestLoop_TwoIterationTermination(t *testing.T) {
	m := model.NewScriptedModel(
		model.Call(call("c1", "lookup")),
		model.Reply("final answer"),
	)
	loop := NewLoop(m, tool.MustRegistry(echoTool("lookup")))
	state := core.NewConversationState(core.NewUserMessage("question"))

	res, err := loop.Run(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, "final answer", res.Text)
	assert.Equal(t, 2, res.Iterations)
	assert.False(t, res.Truncated)
	require.Len(t, res.History, 4)
	assert.Equal(t, core.RoleUser, res.History[0].Role)
	assert.Equal(t, core.RoleAssistant, res.History[1].Role)
	assert.Equal(t, core.RoleTool, res.History[2].Role)
	assert.Equal(t, "c1", res.History[2].ToolCallID)
	assert.Equal(t, "lookup:c1", core.Extract(res.History[2]))
	assert.Equal(t, 2, m.Calls())

	// Second decision sees the tool result.
	second := m.Requests()[1]
	require.Len(t, second.Messages, 3)
	assert.Equal(t, core.RoleTool, second.Messages[2].Role)
	require.Len(t, second.Tools, 1)
	assert.Equal(t, "lookup", second.Tools[0].Function.Name)
}

func TestLoop_PreservesCallOrder(t *testing.T) {
	for _, parallel := range []int{0, 4} {
		m := model.NewScriptedModel(
			model.Call(call("a", "one"), call("b", "two"), call("c", "one")),
			model.Reply("done"),
		)
		loop := NewLoop(m, tool.MustRegistry(echoTool("one"), echoTool("two")), func(o *Options) {
			o.MaxParallelTools = parallel
		})

		res, err := loop.Run(context.Background(), core.NewConversationState(core.NewUserMessage("go")))
		require.NoError(t, err)

		var ids []string
		for _, msg := range res.History {
			if msg.Role == core.RoleTool {
				ids = append(ids, msg.ToolCallID)
			}
		}
		assert.Equal(t, []string{"a", "b", "c"}, ids, "parallel=%d", parallel)
	}
}

func TestLoop_UnknownToolRecovers(t *testing.T) {
	m := model.NewScriptedModel(
		model.Call(call("x", "teleport")),
		model.Reply("sorry, I cannot do that"),
	)
	loop := NewLoop(m, tool.MustRegistry(echoTool("lookup")))

	res, err := loop.Run(context.Background(), core.NewConversationState(core.NewUserMessage("beam me up")))
	require.NoError(t, err)

	assert.Equal(t, "sorry, I cannot do that", res.Text)
	result := res.History[2]
	assert.True(t, result.IsError)
	assert.Equal(t, "x", result.ToolCallID)
	assert.Equal(t, "capability teleport is not available", core.Extract(result))
}

func TestLoop_UnknownToolFails(t *testing.T) {
	m := model.NewScriptedModel(model.Call(call("ok", "lookup"), call("x", "teleport")))
	executed := 0
	counting := tool.NewFunctionTool("lookup", "", nil, func(*core.ToolContext, map[string]any) (any, error) {
		executed++
		return "ok", nil
	})
	loop := NewLoop(m, tool.MustRegistry(counting), func(o *Options) {
		o.UnknownToolPolicy = FailOnUnknownTool
	})

	_, err := loop.Run(context.Background(), core.NewConversationState(core.NewUserMessage("go")))
	require.Error(t, err)

	var nf *core.CapabilityNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "teleport", nf.Name)
	assert.ErrorIs(t, err, core.ErrCapabilityNotFound)
	assert.Zero(t, executed, "no call runs when one is unresolvable")
}

func TestLoop_IterationCeilingTruncates(t *testing.T) {
	m := model.NewFuncModel(func(context.Context, model.Request) (core.Message, error) {
		return core.NewAssistantMessage("", call(core.NewID(), "lookup")), nil
	})
	loop := NewLoop(m, tool.MustRegistry(echoTool("lookup")), func(o *Options) { o.MaxIterations = 3 })

	res, err := loop.Run(context.Background(), core.NewConversationState(core.NewUserMessage("loop forever")))
	require.NoError(t, err)

	assert.True(t, res.Truncated)
	assert.Equal(t, 3, res.Iterations)
	assert.Equal(t, 3, m.Calls())
	assert.Equal(t, TruncationMessage(3), res.Text)
	assert.Equal(t, "[truncated: iteration limit 3 reached]", res.Text)
}

func TestLoop_StrictLimit(t *testing.T) {
	m := model.NewFuncModel(func(context.Context, model.Request) (core.Message, error) {
		return core.NewAssistantMessage("", call("c", "lookup")), nil
	})
	loop := NewLoop(m, tool.MustRegistry(echoTool("lookup")), func(o *Options) {
		o.MaxIterations = 2
		o.StrictLimit = true
	})

	_, err := loop.Run(context.Background(), core.NewConversationState(core.NewUserMessage("go")))
	assert.ErrorIs(t, err, core.ErrIterationLimit)
}

func TestLoop_DefaultCeiling(t *testing.T) {
	assert.Equal(t, DefaultMaxIterations, NewLoop(nil, nil).MaxIterations())
	assert.Equal(t, 25, NewLoop(nil, nil, func(o *Options) { o.MaxIterations = -1 }).MaxIterations())
}

func TestLoop_HandlerErrorBecomesToolResult(t *testing.T) {
	failing := tool.NewFunctionTool("flaky", "", nil, func(*core.ToolContext, map[string]any) (any, error) {
		return nil, errors.New("upstream unavailable")
	})
	panicking := tool.NewFunctionTool("broken", "", nil, func(*core.ToolContext, map[string]any) (any, error) {
		panic("boom")
	})
	m := model.NewScriptedModel(
		model.Call(call("f", "flaky"), call("p", "broken")),
		model.Reply("recovered"),
	)

	res, err := NewLoop(m, tool.MustRegistry(failing, panicking)).Run(
		context.Background(), core.NewConversationState(core.NewUserMessage("go")))
	require.NoError(t, err)

	assert.Equal(t, "recovered", res.Text)
	assert.True(t, res.History[2].IsError)
	assert.Contains(t, core.Extract(res.History[2]), "upstream unavailable")
	assert.True(t, res.History[3].IsError)
	assert.Contains(t, core.Extract(res.History[3]), "boom")
}

func TestLoop_ModelErrorPropagates(t *testing.T) {
	boom := errors.New("rate limited")
	m := model.NewScriptedModel(model.Fail(boom))

	_, err := NewLoop(m, nil).Run(context.Background(), core.NewConversationState(core.NewUserMessage("go")))
	assert.ErrorIs(t, err, boom)
}

func TestLoop_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	blocking := tool.NewFunctionTool("cancel", "", nil, func(*core.ToolContext, map[string]any) (any, error) {
		cancel()
		return "cancelled", nil
	})
	m := model.NewScriptedModel(model.Call(call("c", "cancel")), model.Reply("never"))

	_, err := NewLoop(m, tool.MustRegistry(blocking)).Run(ctx, core.NewConversationState(core.NewUserMessage("go")))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, m.Calls())
}

func TestLoop_InstructionsRendered(t *testing.T) {
	m := model.NewScriptedModel(model.Reply("ok"))
	loop := NewLoop(m, nil, func(o *Options) {
		o.Instructions = "You help {{.customer}}."
		o.Vars = map[string]any{"customer": "ACME"}
	})

	_, err := loop.Run(context.Background(), core.NewConversationState(core.NewUserMessage("hi")))
	require.NoError(t, err)
	assert.Equal(t, "You help ACME.", m.Requests()[0].Instructions)
	assert.Empty(t, m.Requests()[0].Tools)
}

func TestLoop_NilState(t *testing.T) {
	_, err := NewLoop(model.NewScriptedModel(), nil).Run(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrMalformedResult)
}

func TestLoop_UsageAccumulates(t *testing.T) {
	m := model.NewFuncModel(func(_ context.Context, req model.Request) (core.Message, error) {
		if len(req.Messages) == 1 {
			return core.NewAssistantMessage("", call("c", "lookup")), nil
		}
		return core.NewAssistantMessage("done"), nil
	})
	res, err := NewLoop(m, tool.MustRegistry(echoTool("lookup"))).Run(
		context.Background(), core.NewConversationState(core.NewUserMessage("go")))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Iterations)
	assert.Zero(t, res.Usage.TotalTokens)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "DECIDE", StateDecide.String())
	assert.Equal(t, "EXECUTE_TOOLS", StateExecuteTools.String())
	assert.Equal(t, "DONE", StateDone.String())
	assert.Equal(t, "recover", RecoverUnknownTool.String())
	assert.Equal(t, "fail", FailOnUnknownTool.String())
}

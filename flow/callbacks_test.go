package flow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

func TestCallbacks_LifecycleOrder(t *testing.T) {
	var (
		mu     sync.Mutex
		events []string
	)
	record := func(t CallbackType) Callback {
		return NewFunctionCallback(t, func(_ context.Context, cc *CallbackContext) error {
			mu.Lock()
			defer mu.Unlock()
			name := string(cc.Type)
			if cc.Call != nil {
				name += ":" + cc.Call.Name
			}
			events = append(events, name)
			return nil
		})
	}
	cm := NewCallbackManager(
		record(CallbackBeforeModel), record(CallbackAfterModel),
		record(CallbackBeforeTool), record(CallbackAfterTool),
		NewLoggingCallback(CallbackAfterModel, logging.NoOpLogger{}),
	)

	m := model.NewScriptedModel(model.Call(call("c1", "lookup")), model.Reply("done"))
	loop := NewLoop(m, tool.MustRegistry(echoTool("lookup")), func(o *Options) { o.Callbacks = cm })

	_, err := loop.Run(context.Background(), core.NewConversationState(core.NewUserMessage("go")))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"before_model", "after_model",
		"before_tool:lookup", "after_tool:lookup",
		"before_model", "after_model",
	}, events)
}

func TestCallbacks_BeforeModelCanRewriteRequest(t *testing.T) {
	cm := NewCallbackManager(NewFunctionCallback(CallbackBeforeModel, func(_ context.Context, cc *CallbackContext) error {
		cc.Request.Instructions += " Answer in French."
		return nil
	}))
	m := model.NewScriptedModel(model.Reply("oui"))
	loop := NewLoop(m, nil, func(o *Options) {
		o.Instructions = "Be brief."
		o.Callbacks = cm
	})

	_, err := loop.Run(context.Background(), core.NewConversationState(core.NewUserMessage("hi")))
	require.NoError(t, err)
	assert.Equal(t, "Be brief. Answer in French.", m.Requests()[0].Instructions)
}

func TestCallbacks_BeforeModelVeto(t *testing.T) {
	veto := errors.New("budget exhausted")
	var seen error
	cm := NewCallbackManager(
		NewFunctionCallback(CallbackBeforeModel, func(context.Context, *CallbackContext) error { return veto }),
		NewFunctionCallback(CallbackOnError, func(_ context.Context, cc *CallbackContext) error {
			seen = cc.Err
			return errors.New("ignored")
		}),
	)
	m := model.NewScriptedModel(model.Reply("never"))
	loop := NewLoop(m, nil, func(o *Options) { o.Callbacks = cm })

	_, err := loop.Run(context.Background(), core.NewConversationState(core.NewUserMessage("hi")))
	require.ErrorIs(t, err, veto)
	assert.ErrorIs(t, seen, veto)
	assert.Equal(t, 0, m.Calls())
}

func TestCallbacks_BeforeToolBlocksCall(t *testing.T) {
	executed := false
	guarded := tool.NewFunctionTool("delete_account", "", nil, func(*core.ToolContext, map[string]any) (any, error) {
		executed = true
		return "deleted", nil
	})
	cm := NewCallbackManager(NewFunctionCallback(CallbackBeforeTool, func(_ context.Context, cc *CallbackContext) error {
		if cc.Call.Name == "delete_account" {
			return errors.New("not allowed")
		}
		return nil
	}))

	m := model.NewScriptedModel(model.Call(call("c1", "delete_account")), model.Reply("ok"))
	loop := NewLoop(m, tool.MustRegistry(guarded), func(o *Options) { o.Callbacks = cm })

	res, err := loop.Run(context.Background(), core.NewConversationState(core.NewUserMessage("go")))
	require.NoError(t, err)
	assert.False(t, executed)
	assert.True(t, res.History[2].IsError)
	assert.Equal(t, "callback before_tool: not allowed", core.Extract(res.History[2]))
}

func TestCallbackManager_NilIsNoop(t *testing.T) {
	var cm *CallbackManager
	assert.NoError(t, cm.Execute(context.Background(), &CallbackContext{Type: CallbackBeforeModel}))
}

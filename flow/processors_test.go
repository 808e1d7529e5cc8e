package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/internal/testutil"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

func TestContentsProcessor_Window(t *testing.T) {
	c := call("c1", "lookup")
	state := core.NewConversationState(
		core.NewUserMessage("q"),
		core.NewAssistantMessage("", c),
		core.NewToolResultMessage(c, "r", nil),
		core.NewAssistantMessage("a"),
	)

	req := model.Request{}
	require.NoError(t, NewContentsProcessor(0).ProcessRequest(context.Background(), state, &req))
	assert.Len(t, req.Messages, 4)

	req = model.Request{}
	require.NoError(t, NewContentsProcessor(2).ProcessRequest(context.Background(), state, &req))
	require.Len(t, req.Messages, 1, "window must not start on an orphaned tool result")
	assert.Equal(t, "a", core.Extract(req.Messages[0]))
}

func TestContentsProcessor_WindowSkipsToolResults(t *testing.T) {
	state := testutil.NewConversationBuilder().
		User("q").
		Calls(testutil.Call("lookup", "k", "v"), testutil.Call("lookup", "k", "w")).
		Result("r1").
		Result("r2").
		Assistant("a").
		State()

	req := model.Request{}
	require.NoError(t, NewContentsProcessor(3).ProcessRequest(context.Background(), state, &req))
	require.Len(t, req.Messages, 1)
	assert.Equal(t, core.RoleAssistant, req.Messages[0].Role)
}

func TestToolsProcessor(t *testing.T) {
	req := model.Request{}
	require.NoError(t, NewToolsProcessor(tool.MustRegistry(echoTool("b"), echoTool("a"))).ProcessRequest(context.Background(), nil, &req))
	require.Len(t, req.Tools, 2)
	assert.Equal(t, "a", req.Tools[0].Function.Name)

	req = model.Request{}
	require.NoError(t, NewToolsProcessor(nil).ProcessRequest(context.Background(), nil, &req))
	assert.Nil(t, req.Tools)
}

func TestInstructionsProcessor_BadTemplate(t *testing.T) {
	req := model.Request{}
	err := NewInstructionsProcessor("{{.broken", nil).ProcessRequest(context.Background(), nil, &req)
	assert.Error(t, err)
}

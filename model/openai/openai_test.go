package openai

import (
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
)

func TestBuildMessages(t *testing.T) {
	call := core.CapabilityCall{ID: "call_1", Name: "calculator", Arguments: map[string]any{"expression": "2+2"}}
	req := model.Request{
		Instructions: "be helpful",
		Messages: []core.Message{
			core.NewUserMessage("what is 2+2?"),
			core.NewAssistantMessage("", call),
			core.NewToolResultMessage(call, "4", nil),
			core.NewAssistantMessage("4"),
		},
	}

	msgs := buildMessages(req)
	require.Len(t, msgs, 5)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	require.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	assert.Equal(t, "call_1", msgs[2].OfAssistant.ToolCalls[0].ID)
	assert.JSONEq(t, `{"expression":"2+2"}`, msgs[2].OfAssistant.ToolCalls[0].Function.Arguments)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "call_1", msgs[3].OfTool.ToolCallID)
	assert.NotNil(t, msgs[4].OfAssistant)
}

func TestBuildParams_Tools(t *testing.T) {
	m := NewModelFromClient(nil, func(o *Options) { o.Model = "gpt-test" })
	params := m.buildParams(model.Request{Tools: []model.ToolDefinition{{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:       "get_weather",
			Parameters: map[string]any{"type": "object"},
		},
	}}}, nil)

	assert.Equal(t, "gpt-test", params.Model)
	require.Len(t, params.Tools, 1)
	assert.Equal(t, "get_weather", params.Tools[0].Function.Name)
}

func TestFromCompletion(t *testing.T) {
	resp := &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{
			FinishReason: "tool_calls",
			Message: openai.ChatCompletionMessage{
				ToolCalls: []openai.ChatCompletionMessageToolCall{{
					Function: openai.ChatCompletionMessageToolCallFunction{
						Name:      "get_weather",
						Arguments: `{"location":"Paris"}`,
					},
				}},
			},
		}},
	}

	out, err := fromCompletion(resp)
	require.NoError(t, err)
	assert.Equal(t, "tool_calls", out.FinishReason)
	require.Len(t, out.Message.ToolCalls, 1)
	assert.NotEmpty(t, out.Message.ToolCalls[0].ID, "missing ids are generated")
	assert.Equal(t, "Paris", out.Message.ToolCalls[0].Arguments["location"])
	assert.Nil(t, out.Usage)

	_, err = fromCompletion(&openai.ChatCompletion{})
	assert.Error(t, err)
}

func TestInfo(t *testing.T) {
	info := NewModelFromClient(nil).Info()
	assert.Equal(t, "openai", info.Provider)
	assert.Equal(t, openai.ChatModelGPT4oMini, info.Name)
}

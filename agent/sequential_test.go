package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
)

func TestSequentialPipeline_PropagatesLabelledOutputs(t *testing.T) {
	first := &echoRunner{name: "sentiment", fn: func(context.Context, string) (string, error) {
		return "negative", nil
	}}
	var seen string
	second := &echoRunner{name: "urgency", fn: func(_ context.Context, prompt string) (string, error) {
		seen = prompt
		return "echo: " + prompt, nil
	}}

	res, err := NewSequentialPipeline("support", first, second).Run(context.Background(), "my order is late")
	require.NoError(t, err)

	assert.Equal(t, "my order is late\n\n[sentiment]\nnegative", seen)
	assert.Contains(t, res.Final, "[sentiment]\nnegative")
	require.Len(t, res.Outputs, 2)
	assert.Equal(t, StageOutput{Stage: "sentiment", Text: "negative", Iterations: 1}, res.Outputs[0])
	assert.Equal(t, "urgency", res.Outputs[1].Stage)
}

func TestSequentialPipeline_AccumulatesAllPriorStages(t *testing.T) {
	var prompts []string
	mk := func(name string) Runner {
		return &echoRunner{name: name, fn: func(_ context.Context, prompt string) (string, error) {
			prompts = append(prompts, prompt)
			return name + "-out", nil
		}}
	}

	_, err := NewSequentialPipeline("p", mk("a"), mk("b"), mk("c")).Run(context.Background(), "in")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"in",
		"in\n\n[a]\na-out",
		"in\n\n[a]\na-out\n\n[b]\nb-out",
	}, prompts)
}

func TestSequentialPipeline_FailureAborts(t *testing.T) {
	first := NewMockRunner("first")
	second := NewMockRunner("second")
	third := NewMockRunner("third")

	boom := errors.New("model unavailable")
	first.On("Run", mock.Anything, "input").Return(ok("first", "1"), nil)
	second.On("Run", mock.Anything, mock.Anything).Return(StageResult{}, boom)

	res, err := NewSequentialPipeline("p", first, second, third).Run(context.Background(), "input")
	require.Error(t, err)

	assert.Empty(t, res.Outputs, "no partial result")
	assert.ErrorIs(t, err, boom)
	var sf *core.StageFailure
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, "second", sf.Stage)

	first.AssertExpectations(t)
	second.AssertExpectations(t)
	third.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestSequentialPipeline_CancelledBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &echoRunner{name: "first", fn: func(context.Context, string) (string, error) {
		cancel()
		return "done", nil
	}}
	second := NewMockRunner("second")

	_, err := NewSequentialPipeline("p", first, second).Run(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
	second.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestSequentialPipeline_CustomPromptBuilder(t *testing.T) {
	var got []string
	capture := func(name string) Runner {
		return &echoRunner{name: name, fn: func(_ context.Context, prompt string) (string, error) {
			got = append(got, prompt)
			return name, nil
		}}
	}

	p := NewSequentialPipeline("p", capture("sentiment"), capture("urgency")).
		WithPromptBuilder(func(stage, input string, prior []StageOutput) string {
			if stage == "urgency" {
				return "Message: " + input + "\nSentiment Analysis: " + prior[0].Text
			}
			return "Message: " + input
		})

	res, err := p.Run(context.Background(), "help")
	require.NoError(t, err)
	assert.Equal(t, []string{"Message: help", "Message: help\nSentiment Analysis: sentiment"}, got)
	assert.Equal(t, "urgency", res.Final)
	assert.Equal(t, []string{"sentiment", "urgency"}, p.Stages())
}

func TestSequentialPipeline_Empty(t *testing.T) {
	_, err := NewSequentialPipeline("p").Run(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoStages)
}

func TestSequentialPipeline_WithStages(t *testing.T) {
	echo := model.NewFuncModel(func(_ context.Context, req model.Request) (core.Message, error) {
		return core.NewAssistantMessage(model.LastUserText(req)), nil
	})
	p := NewSequentialPipeline("p", MustStage("a", echo), MustStage("b", echo))

	res, err := p.Run(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n\n[a]\nhello", res.Final)
}

func TestFormatLabelled(t *testing.T) {
	assert.Equal(t, "", FormatLabelled(nil))
	assert.Equal(t, "[a]\n1\n\n[b]\n2", FormatLabelled([]StageOutput{{Stage: "a", Text: "1"}, {Stage: "b", Text: "2"}}))
}

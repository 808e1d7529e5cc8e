package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToolResultMessage(t *testing.T) {
	call := CapabilityCall{ID: "c1", Name: "calculator"}

	ok := NewToolResultMessage(call, map[string]any{"result": 4}, nil)
	assert.Equal(t, RoleTool, ok.Role)
	assert.Equal(t, "c1", ok.ToolCallID)
	assert.Equal(t, "calculator", ok.Name)
	assert.False(t, ok.IsError)
	assert.Equal(t, `{"result":4}`, Extract(ok))

	failed := NewToolResultMessage(call, nil, errors.New("division by zero"))
	assert.True(t, failed.IsError)
	assert.Equal(t, "division by zero", Extract(failed))
}

func TestParseArguments(t *testing.T) {
	args, err := ParseArguments("")
	require.NoError(t, err)
	assert.Empty(t, args)

	args, err = ParseArguments(`{"a": 1, "city": "Paris"}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, args["a"])
	assert.Equal(t, "Paris", args["city"])

	_, err = ParseArguments("{not json")
	assert.Error(t, err)
}

func TestCapabilityCall_ArgumentsJSON(t *testing.T) {
	assert.Equal(t, "{}", CapabilityCall{}.ArgumentsJSON())
	assert.Equal(t, `{"x":2}`, CapabilityCall{Arguments: map[string]any{"x": 2}}.ArgumentsJSON())
}

func TestConversationState_AppendOnly(t *testing.T) {
	s := NewConversationState(NewUserMessage("hi"))
	s.Append(NewAssistantMessage("hello"), NewUserMessage("again"))

	require.Equal(t, 3, s.Len())
	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, "again", Extract(last))

	snap := s.Snapshot()
	snap[0] = NewUserMessage("mutated")
	assert.Equal(t, "hi", Extract(s.History[0]))

	_, ok = NewConversationState().Last()
	assert.False(t, ok)
}

func TestErrorTaxonomy(t *testing.T) {
	var err error = &CapabilityNotFoundError{Name: "nonexistent"}
	assert.ErrorIs(t, err, ErrCapabilityNotFound)
	assert.Contains(t, err.Error(), "nonexistent")

	cause := errors.New("boom")
	he := &HandlerError{Tool: "t", CallID: "1", Err: cause}
	assert.ErrorIs(t, he, cause)

	sf := NewStageFailure("sentiment", ErrIterationLimit)
	assert.ErrorIs(t, sf, ErrIterationLimit)
	var target *StageFailure
	require.ErrorAs(t, sf, &target)
	assert.Equal(t, "sentiment", target.Stage)

	// Already a stage failure: not double wrapped.
	assert.Same(t, sf, NewStageFailure("outer", sf))
	assert.NoError(t, NewStageFailure("x", nil))
}

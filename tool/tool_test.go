package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newToolCtx(callID string) *core.ToolContext {
	return core.NewToolContext(context.Background(), "test", core.CapabilityCall{ID: callID}, logging.NoOpLogger{})
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		a := args["a"].(float64)
		b := args["b"].(float64)
		return a + b, nil
	})

	result, err := sumTool.Call(newToolCtx("fc1"), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type":       "object",
		"properties": map[string]any{"a": map[string]any{"type": "number"}},
		"required":   []any{"a"},
	}
	called := false
	tTool := NewFunctionTool("test", "Test", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		called = true
		return 0, nil
	})

	_, err := tTool.Call(newToolCtx("fc2"), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
	assert.False(t, called)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	tTool := NewFunctionTool("lookup", "Lookup", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("backend unavailable")
	})

	_, err := tTool.Call(newToolCtx("fc3"), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "tool error [EXECUTION_ERROR] in lookup: backend unavailable", err.Error())
}

func TestFunctionTool_CustomToolErrorPreserved(t *testing.T) {
	tTool := NewFunctionTool("lookup", "Lookup", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, NewToolError("lookup", "not found", "NOT_FOUND")
	})

	_, err := tTool.Call(newToolCtx("fc4"), nil)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "NOT_FOUND", toolErr.Code)
}

type forecastArgs struct {
	City string `json:"city" description:"City name"`
	Days int    `json:"days" description:"Number of days (1-7)"`
}

func TestTypedTool_DecodesArguments(t *testing.T) {
	var got forecastArgs
	forecast := NewTypedTool("get_forecast", "Gets weather forecast", func(_ *core.ToolContext, args forecastArgs) (any, error) {
		got = args
		return map[string]any{"city": args.City}, nil
	})

	props := forecast.Parameters()["properties"].(map[string]any)
	assert.Contains(t, props, "city")
	assert.Equal(t, "integer", props["days"].(map[string]any)["type"])

	// JSON decoded numbers arrive as float64.
	res, err := forecast.Call(newToolCtx("fc5"), map[string]any{"city": "Paris", "days": 3.0})
	require.NoError(t, err)
	assert.Equal(t, forecastArgs{City: "Paris", Days: 3}, got)
	assert.Equal(t, map[string]any{"city": "Paris"}, res)
}

func TestToolErrorFormatting(t *testing.T) {
	assert.Equal(t, "tool error in calc: bad", (&ToolError{Tool: "calc", Message: "bad"}).Error())
	assert.Equal(t, "tool error [X] in calc: bad", NewToolError("calc", "bad", "X").Error())
}

// -------------------- Registry Tests --------------------

func echoTool(name string) Tool {
	return NewFunctionTool(name, "echo "+name, nil, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args, nil
	})
}

func TestRegistry_Resolve(t *testing.T) {
	r, err := NewRegistry(echoTool("b"), echoTool("a"))
	require.NoError(t, err)

	got, err := r.Resolve("a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name())
	assert.True(t, r.Has("b"))
	assert.Equal(t, []string{"a", "b"}, r.Names())
	assert.Equal(t, 2, r.Len())

	_, err = r.Resolve("nonexistent")
	assert.ErrorIs(t, err, core.ErrCapabilityNotFound)
	var nf *core.CapabilityNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nonexistent", nf.Name)
}

func TestRegistry_RejectsDuplicatesAndEmptyNames(t *testing.T) {
	_, err := NewRegistry(echoTool("a"), echoTool("a"))
	assert.ErrorContains(t, err, "duplicate tool")

	_, err = NewRegistry(echoTool(""))
	assert.Error(t, err)

	assert.Panics(t, func() { MustRegistry(echoTool("x"), echoTool("x")) })
}

func TestRegistry_Definitions(t *testing.T) {
	r := MustRegistry(echoTool("zeta"), echoTool("alpha"))
	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "alpha", defs[0].Function.Name)
	assert.Equal(t, "echo alpha", defs[0].Function.Description)
	assert.Equal(t, "function", defs[0].Type)

	var empty *Registry
	assert.Nil(t, empty.Definitions())
	assert.Equal(t, 0, empty.Len())
	_, err := empty.Resolve("x")
	assert.ErrorIs(t, err, core.ErrCapabilityNotFound)
}

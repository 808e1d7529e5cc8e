package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/agentflow/core"
)

// ToolDefinition declaratively exposes a callable capability to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual capability exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by the tool loop.
type Request struct {
	Instructions string           `json:"instructions"` // System instruction for the model
	Messages     []core.Message   `json:"messages"`     // Full conversation history, oldest first
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the model's next turn.
type Response struct {
	Message      core.Message `json:"message"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "scripted", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the reasoning service: given the history, a system instruction and
// the available capabilities it produces the next assistant message, possibly
// requesting capability calls. Implementations must be safe for concurrent
// use by independent runs.
type Model interface {
	Generate(ctx context.Context, req Request) (Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrScriptExhausted is returned by ScriptedModel when no scripted turn is left.
var ErrScriptExhausted = errors.New("scripted model: no more turns")

// Turn is one scripted reply: either a message or an error.
type Turn struct {
	Message core.Message
	Err     error
}

// Reply scripts a plain assistant answer.
func Reply(text string) Turn { return Turn{Message: core.NewAssistantMessage(text)} }

// Call scripts an assistant turn requesting the given capability calls.
func Call(calls ...core.CapabilityCall) Turn {
	return Turn{Message: core.NewAssistantMessage("", calls...)}
}

// Fail scripts a reasoning-service error.
func Fail(err error) Turn { return Turn{Err: err} }

// ScriptedModel is a deterministic in-memory Model for tests and examples.
// It either replays a fixed list of turns or delegates to a responder
// function, and records every request it receives. It is safe for
// concurrent use.
type ScriptedModel struct {
	info      Info
	mu        sync.Mutex
	turns     []Turn
	next      int
	responder func(context.Context, Request) (core.Message, error)
	requests  []Request
}

// NewScriptedModel replays turns in order, one per Generate call.
func NewScriptedModel(turns ...Turn) *ScriptedModel {
	return &ScriptedModel{
		info:  Info{Name: "scripted", Provider: "scripted", SupportsTools: true},
		turns: turns,
	}
}

// NewFuncModel answers every request with fn.
func NewFuncModel(fn func(ctx context.Context, req Request) (core.Message, error)) *ScriptedModel {
	return &ScriptedModel{
		info:      Info{Name: "func", Provider: "scripted", SupportsTools: true},
		responder: fn,
	}
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	m.mu.Lock()
	m.requests = append(m.requests, cloneRequest(req))
	responder := m.responder
	var (
		turn Turn
		ok   bool
	)
	if responder == nil && m.next < len(m.turns) {
		turn, ok = m.turns[m.next], true
		m.next++
	}
	m.mu.Unlock()

	if responder != nil {
		msg, err := responder(ctx, req)
		if err != nil {
			return Response{}, err
		}
		return newResponse(msg), nil
	}

	if !ok {
		return Response{}, ErrScriptExhausted
	}
	if turn.Err != nil {
		return Response{}, turn.Err
	}
	return newResponse(turn.Message), nil
}

// Requests returns a copy of every request received so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns the number of Generate invocations.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }

func newResponse(msg core.Message) Response {
	if msg.Role == "" {
		msg.Role = core.RoleAssistant
	}
	reason := "stop"
	if msg.HasToolCalls() {
		reason = "tool_calls"
	}
	return Response{Message: msg, FinishReason: reason}
}

func cloneRequest(req Request) Request {
	msgs := make([]core.Message, len(req.Messages))
	copy(msgs, req.Messages)
	req.Messages = msgs
	return req
}

// LastUserText returns the text of the most recent user message in req, or "".
func LastUserText(req Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == core.RoleUser {
			return core.Extract(req.Messages[i])
		}
	}
	return ""
}

// String renders the info as provider/name.
func (i Info) String() string { return fmt.Sprintf("%s/%s", i.Provider, i.Name) }

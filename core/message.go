package core

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser marks caller supplied input.
	RoleUser Role = "user"
	// RoleAssistant marks a reasoning-service reply.
	RoleAssistant Role = "assistant"
	// RoleTool marks the result of a capability invocation.
	RoleTool Role = "tool"
)

// CapabilityCall is a single requested invocation of a named capability.
// ID correlates the call with its tool-result message and is unique within
// one decision turn.
type CapabilityCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ArgumentsJSON serializes the call arguments. Nil arguments encode as "{}".
func (c CapabilityCall) ArgumentsJSON() string {
	if len(c.Arguments) == 0 {
		return "{}"
	}
	b, err := json.Marshal(c.Arguments)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ParseArguments decodes a serialized argument payload as produced by model
// providers. An empty payload yields an empty map.
func ParseArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}
	return args, nil
}

// Message is one turn in a conversation.
//
// ToolCalls is only populated on assistant turns requesting capability use.
// Tool-result messages carry the originating call id in ToolCallID and the
// capability name in Name; IsError marks results describing a failure.
type Message struct {
	Role       Role             `json:"role"`
	Content    Content          `json:"-"`
	ToolCalls  []CapabilityCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
	IsError    bool             `json:"is_error,omitempty"`
}

// NewTextMessage creates a message with a single text body.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: TextContent(text)}
}

// NewUserMessage creates a user-authored text message.
func NewUserMessage(text string) Message { return NewTextMessage(RoleUser, text) }

// NewAssistantMessage creates an assistant message with optional text and
// capability calls.
func NewAssistantMessage(text string, calls ...CapabilityCall) Message {
	m := Message{Role: RoleAssistant, ToolCalls: calls}
	if text != "" {
		m.Content = TextContent(text)
	}
	return m
}

// NewToolResultMessage wraps the outcome of a capability invocation. When err
// is non-nil its text becomes the message body and IsError is set.
func NewToolResultMessage(call CapabilityCall, result any, err error) Message {
	m := Message{Role: RoleTool, ToolCallID: call.ID, Name: call.Name}
	if err != nil {
		m.Content = TextContent(err.Error())
		m.IsError = true
		return m
	}
	m.Content = TextContent(RenderResult(result))
	return m
}

// RenderResult renders a tool return value as text. Strings pass through,
// everything else is JSON encoded with a fmt fallback.
func RenderResult(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	case fmt.Stringer:
		return r.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// HasToolCalls reports whether the message requests capability invocations.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// NewID generates a new unique identifier for runs, tickets and call ids a
// provider did not supply.
func NewID() string { return uuid.NewString() }

package testutil

import (
	"fmt"

	"github.com/hupe1980/agentflow/core"
)

// ConversationBuilder provides a fluent helper for constructing
// conversation histories in tests.
// Example:
//
//	state := NewConversationBuilder().
//	    User("weather in Paris?").
//	    Calls(Call("get_weather", "city", "Paris")).
//	    Result(`{"temp":18}`).
//	    Assistant("It is 18 degrees.").
//	    State()
//
// Result answers the oldest call that has no result yet.
type ConversationBuilder struct {
	messages   []core.Message
	pending    []core.CapabilityCall
	iterations int
	nextID     int
}

// NewConversationBuilder creates an empty builder.
func NewConversationBuilder() *ConversationBuilder { return &ConversationBuilder{} }

// User appends a user message (chainable).
func (b *ConversationBuilder) User(text string) *ConversationBuilder {
	b.messages = append(b.messages, core.NewUserMessage(text))
	return b
}

// Assistant appends a final assistant reply and counts a decision turn
// (chainable).
func (b *ConversationBuilder) Assistant(text string) *ConversationBuilder {
	b.messages = append(b.messages, core.NewAssistantMessage(text))
	b.iterations++
	return b
}

// Calls appends an assistant turn requesting calls. Calls without an ID get
// a deterministic one ("call-1", "call-2", ...) (chainable).
func (b *ConversationBuilder) Calls(calls ...core.CapabilityCall) *ConversationBuilder {
	for i := range calls {
		if calls[i].ID == "" {
			b.nextID++
			calls[i].ID = fmt.Sprintf("call-%d", b.nextID)
		}
	}
	b.messages = append(b.messages, core.NewAssistantMessage("", calls...))
	b.pending = append(b.pending, calls...)
	b.iterations++
	return b
}

// Result answers the oldest pending call with result (chainable).
func (b *ConversationBuilder) Result(result any) *ConversationBuilder {
	return b.answer(result, nil)
}

// Failure answers the oldest pending call with an error result (chainable).
func (b *ConversationBuilder) Failure(err error) *ConversationBuilder {
	return b.answer(nil, err)
}

func (b *ConversationBuilder) answer(result any, err error) *ConversationBuilder {
	if len(b.pending) == 0 {
		panic("testutil: no pending call to answer")
	}
	call := b.pending[0]
	b.pending = b.pending[1:]
	b.messages = append(b.messages, core.NewToolResultMessage(call, result, err))
	return b
}

// Messages returns a copy of the built history.
func (b *ConversationBuilder) Messages() []core.Message {
	out := make([]core.Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// State returns a conversation state holding the history, with
// IterationCount set to the number of assistant turns.
func (b *ConversationBuilder) State() *core.ConversationState {
	state := core.NewConversationState(b.Messages()...)
	state.IterationCount = b.iterations
	return state
}

// Call creates a capability call from alternating key/value pairs.
func Call(name string, kv ...any) core.CapabilityCall {
	args := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		args[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return core.CapabilityCall{Name: name, Arguments: args}
}

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type unknownContent struct{ v int }

func (unknownContent) isContent() {}

func TestExtract_TextContent(t *testing.T) {
	assert.Equal(t, "Hello world", Extract(NewUserMessage("Hello world")))
}

func TestExtract_ShapeInvariance(t *testing.T) {
	plain := NewTextMessage(RoleAssistant, "Hello world")
	asParts := Message{Role: RoleAssistant, Content: Parts(TextPart{Text: "Hello world"})}
	asMap := Message{Role: RoleAssistant, Content: Parts(DataPart{Data: map[string]any{"type": "text", "text": "Hello world"}})}

	assert.Equal(t, "Hello world", Extract(plain))
	assert.Equal(t, Extract(plain), Extract(asParts))
	assert.Equal(t, Extract(plain), Extract(asMap))
}

func TestExtract_PartsJoinedAndFiltered(t *testing.T) {
	m := Message{Role: RoleAssistant, Content: Parts(
		TextPart{Text: "first"},
		FunctionCallPart{Call: CapabilityCall{ID: "1", Name: "calc"}},
		DataPart{Data: map[string]any{"type": "text", "text": "second"}},
		DataPart{Data: map[string]any{"type": "image", "url": "x"}},
		OpaquePart{Kind: "reasoning", Value: "hidden"},
		&TextPart{Text: "third"},
	)}

	assert.Equal(t, "first second third", Extract(m))
}

func TestExtract_MissingTextField(t *testing.T) {
	m := Message{Content: Parts(
		DataPart{Data: map[string]any{"type": "text"}},
		TextPart{Text: "after"},
	)}
	assert.Equal(t, " after", Extract(m))
}

func TestExtract_EmptyAndNil(t *testing.T) {
	assert.Equal(t, "", Extract(Message{}))
	assert.Equal(t, "", Extract(Message{Content: Parts()}))
	assert.Equal(t, "", Extract(Message{Content: TextContent("")}))
}

func TestExtract_NilPointerPartDoesNotPanic(t *testing.T) {
	var p *TextPart
	m := Message{Content: Parts(p)}
	assert.NotPanics(t, func() { _ = Extract(m) })
}

func TestExtract_NilPointerPartKeepsSiblings(t *testing.T) {
	m := Message{Content: Parts(TextPart{Text: "hello"}, (*TextPart)(nil), TextPart{Text: "world"})}
	assert.Equal(t, "hello world", Extract(m))
}

func TestExtract_UnknownContentFallsBack(t *testing.T) {
	m := Message{Content: unknownContent{v: 7}}
	assert.Equal(t, "{7}", Extract(m))
}

func TestExtract_Idempotence(t *testing.T) {
	cases := []Message{
		NewUserMessage("plain"),
		{Content: Parts(TextPart{Text: "a"}, TextPart{Text: "b"})},
		{Content: Parts(FunctionCallPart{Call: CapabilityCall{Name: "x"}})},
		{},
	}
	for _, m := range cases {
		once := Extract(m)
		twice := Extract(NewTextMessage(RoleAssistant, once))
		assert.Equal(t, once, twice)
	}
}

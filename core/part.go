package core

// Part represents a polymorphic segment of message content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextBearer is implemented by parts that carry a type tag and a text field.
// Extraction treats every TextBearer tagged "text" uniformly regardless of
// its concrete shape.
type TextBearer interface {
	PartType() string
	PartText() string
}

// PartTypeText is the type tag of textual parts.
const PartTypeText = "text"

// TextPart is a plain text content segment.
type TextPart struct {
	Text     string         // Plain UTF-8 text
	Metadata map[string]any // Optional producer-provided metadata
}

func (TextPart) isPart() {}

// PartType implements TextBearer.
func (TextPart) PartType() string { return PartTypeText }

// PartText implements TextBearer.
func (p TextPart) PartText() string { return p.Text }

// DataPart is a mapping-shaped segment, as produced by providers that return
// content blocks as loosely typed objects (e.g. {"type": "text", "text": "..."}).
type DataPart struct {
	Data     map[string]any
	Metadata map[string]any
}

func (DataPart) isPart() {}

// PartType returns the "type" entry of the mapping, or "" when absent.
func (p DataPart) PartType() string {
	s, _ := p.Data["type"].(string)
	return s
}

// PartText returns the "text" entry of the mapping. A missing or non-string
// entry yields the empty string.
func (p DataPart) PartText() string {
	s, _ := p.Data["text"].(string)
	return s
}

// FunctionCallPart wraps a CapabilityCall as an inline content part.
type FunctionCallPart struct {
	Call     CapabilityCall
	Metadata map[string]any
}

func (FunctionCallPart) isPart() {}

// OpaquePart carries provider-specific content the engine does not interpret
// (images, reasoning traces, citations...).
type OpaquePart struct {
	Kind  string
	Value any
}

func (OpaquePart) isPart() {}

// Content is the tagged variant holding a message body: either TextContent or
// PartsContent. A nil Content means the message has no body.
type Content interface{ isContent() }

// TextContent is a single text blob.
type TextContent string

func (TextContent) isContent() {}

// PartsContent is an ordered sequence of heterogeneous parts.
type PartsContent []Part

func (PartsContent) isContent() {}

// Text is a convenience constructor for a TextContent.
func Text(s string) Content { return TextContent(s) }

// Parts is a convenience constructor for a PartsContent.
func Parts(parts ...Part) Content { return PartsContent(parts) }

package core

import (
	"fmt"
	"strings"
)

// Extract normalizes the content of a message into plain text.
//
//   - TextContent is returned unchanged.
//   - PartsContent yields the text of every part tagged "text", in order,
//     joined by a single space. Capability-call and opaque parts are skipped.
//   - Absent content yields "".
//   - Any other Content implementation falls back to its fmt rendering.
//
// Extract never panics.
func Extract(m Message) string {
	return ExtractContent(m.Content)
}

// ExtractContent applies the Extract rules to a bare Content value.
func ExtractContent(c Content) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	switch v := c.(type) {
	case nil:
		return ""
	case TextContent:
		return string(v)
	case PartsContent:
		texts := make([]string, 0, len(v))
		for _, p := range v {
			if t, ok := partText(p); ok {
				texts = append(texts, t)
			}
		}
		return strings.Join(texts, " ")
	default:
		return fmt.Sprint(v)
	}
}

// partText returns the text of a text-tagged part. A part that panics while
// being inspected is skipped.
func partText(p Part) (text string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			text, ok = "", false
		}
	}()
	tb, isText := p.(TextBearer)
	if !isText || tb.PartType() != PartTypeText {
		return "", false
	}
	return tb.PartText(), true
}

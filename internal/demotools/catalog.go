package demotools

import (
	"fmt"

	"github.com/hupe1980/agentflow/tool"
)

// Catalog returns every capability of the package keyed by name.
func Catalog() map[string]tool.Tool {
	sets := [][]tool.Tool{All(), SentimentTools(), KnowledgeTools(), CustomerTools(), StatusTools(), ResponseTools()}
	out := make(map[string]tool.Tool)
	for _, set := range sets {
		for _, t := range set {
			out[t.Name()] = t
		}
	}
	return out
}

// Lookup returns the named capabilities in the given order.
func Lookup(names ...string) ([]tool.Tool, error) {
	catalog := Catalog()
	out := make([]tool.Tool, 0, len(names))
	for _, name := range names {
		t, ok := catalog[name]
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", name)
		}
		out = append(out, t)
	}
	return out, nil
}

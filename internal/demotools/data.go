package demotools

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/tool"
)

// DataArgs are the arguments of analyze_data.
type DataArgs struct {
	Data []float64 `json:"data" description:"List of numbers"`
}

// AnalyzeData returns count, sum, average, min and max of a series.
func AnalyzeData() tool.Tool {
	return tool.NewTypedTool("analyze_data", "Analyzes numerical data and returns statistics",
		func(_ *core.ToolContext, args DataArgs) (any, error) {
			if len(args.Data) == 0 {
				return map[string]any{"error": "Empty data"}, nil
			}
			sum, lo, hi := 0.0, args.Data[0], args.Data[0]
			for _, v := range args.Data {
				sum += v
				lo = min(lo, v)
				hi = max(hi, v)
			}
			return map[string]any{
				"count":   len(args.Data),
				"sum":     sum,
				"average": sum / float64(len(args.Data)),
				"min":     lo,
				"max":     hi,
			}, nil
		})
}

// FilterArgs are the arguments of filter_data.
type FilterArgs struct {
	Data      []float64 `json:"data" description:"List of numbers"`
	Threshold float64   `json:"threshold" description:"Threshold value"`
	Operation string    `json:"operation" description:"Comparison to apply" enum:"greater,less,equal"`
}

// FilterData keeps the values matching a threshold comparison.
func FilterData() tool.Tool {
	return tool.NewTypedTool("filter_data", "Filters data based on threshold",
		func(_ *core.ToolContext, args FilterArgs) (any, error) {
			var keep func(float64) bool
			switch args.Operation {
			case "greater":
				keep = func(x float64) bool { return x > args.Threshold }
			case "less":
				keep = func(x float64) bool { return x < args.Threshold }
			case "equal":
				keep = func(x float64) bool { return x == args.Threshold }
			default:
				return nil, fmt.Errorf("unknown operation %q", args.Operation)
			}
			filtered := []float64{}
			for _, v := range args.Data {
				if keep(v) {
					filtered = append(filtered, v)
				}
			}
			return map[string]any{"filtered_data": filtered, "count": len(filtered)}, nil
		})
}

// TextArgs are the arguments of text_analyzer.
type TextArgs struct {
	Text string `json:"text" description:"Text to analyze"`
}

// TextAnalyzer returns character, word and sentence counts.
func TextAnalyzer() tool.Tool {
	return tool.NewTypedTool("text_analyzer", "Analyzes text and returns statistics",
		func(_ *core.ToolContext, args TextArgs) (any, error) {
			words := strings.Fields(args.Text)
			avg := 0.0
			if len(words) > 0 {
				total := 0
				for _, w := range words {
					total += len([]rune(w))
				}
				avg = float64(total) / float64(len(words))
			}
			return map[string]any{
				"character_count":     len([]rune(args.Text)),
				"word_count":          len(words),
				"sentence_count":      strings.Count(args.Text, ".") + strings.Count(args.Text, "!") + strings.Count(args.Text, "?"),
				"average_word_length": avg,
			}, nil
		})
}

// SearchArgs are the arguments of search_database.
type SearchArgs struct {
	Query string `json:"query" description:"Search query"`
}

type record map[string]any

var mockDatabase = map[string][]record{
	"users": {
		{"id": 1, "name": "Alice", "role": "Admin"},
		{"id": 2, "name": "Bob", "role": "User"},
		{"id": 3, "name": "Charlie", "role": "Manager"},
	},
	"products": {
		{"id": 1, "name": "Laptop", "price": 1200},
		{"id": 2, "name": "Phone", "price": 800},
		{"id": 3, "name": "Tablet", "price": 500},
	},
}

// SearchDatabase looks up users or products in a fixed in-memory table.
func SearchDatabase() tool.Tool {
	return tool.NewTypedTool("search_database", "Searches mock database for information",
		func(_ *core.ToolContext, args SearchArgs) (any, error) {
			q := strings.ToLower(args.Query)
			switch {
			case strings.Contains(q, "user"):
				return map[string]any{"results": mockDatabase["users"]}, nil
			case strings.Contains(q, "product"):
				return map[string]any{"results": mockDatabase["products"]}, nil
			default:
				return map[string]any{"results": []record{}}, nil
			}
		})
}

// DataTools returns the data and text capabilities.
func DataTools() []tool.Tool {
	return []tool.Tool{AnalyzeData(), FilterData(), TextAnalyzer(), SearchDatabase()}
}

// All returns every general-purpose capability (not the support back-office).
func All() []tool.Tool {
	all := append(MathTools(), WeatherTools()...)
	return append(all, DataTools()...)
}

// Package offline provides a rule-based Model that needs no network access.
// It maps recognizable requests onto the demo capabilities by name and
// summarizes their results, which is enough to drive every flow end to end
// without a provider account.
package offline

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
)

const (
	cityEnd    = `(?:\s+(?:for|in|over|next|and)\b|\s*\d|\s*[?.!,]|\s*$)`
	number     = `-?\d+(?:\.\d+)?`
	numberList = `(` + number + `(?:\s*,\s*` + number + `)+)`
)

var (
	arithmeticRe = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*(\+|-|\*|/|x|plus|minus|times|divided by)\s*(-?\d+(?:\.\d+)?)`)
	expressionRe = regexp.MustCompile(`(?i)calculate\s+([\d\s.+\-*/%^()]+)`)
	weatherRe    = regexp.MustCompile(`(?i)weather\s+(?:in|for|of)\s+([a-z][a-z ]*?)` + cityEnd)
	forecastRe   = regexp.MustCompile(`(?i)forecast\s+(?:in|for|of)\s+([a-z][a-z ]*?)` + cityEnd)
	daysRe       = regexp.MustCompile(`(?i)(\d+)\s*days?`)
	customerRe   = regexp.MustCompile(`(?i)customer(?:\s+id)?:\s*([\w-]+)`)
	analyzeRe    = regexp.MustCompile(`(?i)(?:analyze|statistics\s+(?:of|for))\s+(?:data\s*:?\s*)?` + numberList)
	filterRe     = regexp.MustCompile(`(?i)filter\s+` + numberList + `\s+(?:values\s+)?(greater|less|equal)(?:\s+(?:than|to))?\s+(` + number + `)`)
	textRe       = regexp.MustCompile(`(?i)analyze\s+text\s*:\s*(.+)`)
	searchRe     = regexp.MustCompile(`(?i)\b(?:search|find|list|show)\b.*\b(?:users?|products?)\b`)
)

// delegates maps the agent tools of the general stage to the capabilities of
// the stage behind them.
var delegates = map[string][]string{
	"math_tool":     {"calculator", "advanced_calculator", "analyze_data", "filter_data"},
	"weather_tool":  {"get_weather", "get_forecast"},
	"research_tool": {"search_database", "text_analyzer"},
}

var operations = map[string]string{
	"+": "add", "plus": "add",
	"-": "subtract", "minus": "subtract",
	"*": "multiply", "x": "multiply", "times": "multiply",
	"/": "divide", "divided by": "divide",
}

// Model is the offline rule-based model. The zero value is ready to use and
// safe for concurrent use.
type Model struct{}

// New returns an offline model.
func New() *Model { return &Model{} }

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: "rules", Provider: "offline", SupportsTools: true}
}

// Generate implements model.Model. Trailing tool results are summarized;
// otherwise every offered tool whose arguments can be read from the latest
// user message is called.
func (m *Model) Generate(ctx context.Context, req model.Request) (model.Response, error) {
	if err := ctx.Err(); err != nil {
		return model.Response{}, err
	}
	if len(req.Messages) == 0 {
		return model.Response{}, errors.New("offline: empty conversation")
	}

	if req.Messages[len(req.Messages)-1].Role == core.RoleTool {
		return reply(summarize(req.Messages)), nil
	}

	text := model.LastUserText(req)
	var calls []core.CapabilityCall
	for _, def := range req.Tools {
		if args, ok := Arguments(def.Function.Name, text); ok {
			calls = append(calls, core.CapabilityCall{ID: core.NewID(), Name: def.Function.Name, Arguments: args})
		}
	}
	if len(calls) > 0 {
		return model.Response{Message: core.NewAssistantMessage("", calls...), FinishReason: "tool_calls"}, nil
	}

	return reply(text), nil
}

func reply(text string) model.Response {
	return model.Response{Message: core.NewAssistantMessage(text), FinishReason: "stop"}
}

// summarize renders the trailing run of tool results as "name: result"
// clauses.
func summarize(history []core.Message) string {
	start := len(history)
	for start > 0 && history[start-1].Role == core.RoleTool {
		start--
	}
	parts := make([]string, 0, len(history)-start)
	for _, m := range history[start:] {
		parts = append(parts, m.Name+": "+core.Extract(m))
	}
	return strings.Join(parts, "; ")
}

// Arguments derives call arguments for the named capability from text. The
// second result is false when text gives no reason to call it.
func Arguments(name, text string) (map[string]any, bool) {
	switch name {
	case "calculator":
		m := arithmeticRe.FindStringSubmatch(strings.ToLower(text))
		if m == nil {
			return nil, false
		}
		a, _ := strconv.ParseFloat(m[1], 64)
		b, _ := strconv.ParseFloat(m[3], 64)
		return map[string]any{"operation": operations[m[2]], "a": a, "b": b}, true
	case "advanced_calculator":
		if m := expressionRe.FindStringSubmatch(text); m != nil {
			return map[string]any{"expression": strings.TrimSpace(m[1])}, true
		}
	case "get_weather":
		if m := weatherRe.FindStringSubmatch(text); m != nil {
			return map[string]any{"city": m[1]}, true
		}
	case "get_forecast":
		m := forecastRe.FindStringSubmatch(text)
		if m == nil {
			return nil, false
		}
		days := 3
		if d := daysRe.FindStringSubmatch(text); d != nil {
			days, _ = strconv.Atoi(d[1])
		}
		return map[string]any{"city": m[1], "days": days}, true
	case "analyze_sentiment", "classify_emotion", "detect_urgency":
		return map[string]any{"text": text}, text != ""
	case "search_docs", "find_similar_tickets", "get_solution_steps", "generate_response", "suggest_next_steps":
		return map[string]any{"query": text}, text != ""
	case "apply_tone_guidelines":
		return map[string]any{"draft": text}, text != ""
	case "get_customer_profile", "fetch_purchase_history", "check_subscription_status":
		if m := customerRe.FindStringSubmatch(text); m != nil {
			return map[string]any{"customer_id": m[1]}, true
		}
	case "check_service_status", "get_known_issues", "check_outages":
		return map[string]any{}, true
	case "analyze_data":
		if m := analyzeRe.FindStringSubmatch(text); m != nil {
			return map[string]any{"data": parseList(m[1])}, true
		}
	case "filter_data":
		m := filterRe.FindStringSubmatch(text)
		if m == nil {
			return nil, false
		}
		threshold, _ := strconv.ParseFloat(m[3], 64)
		return map[string]any{"data": parseList(m[1]), "operation": strings.ToLower(m[2]), "threshold": threshold}, true
	case "text_analyzer":
		if m := textRe.FindStringSubmatch(text); m != nil {
			return map[string]any{"text": strings.TrimSpace(m[1])}, true
		}
	case "search_database":
		if searchRe.MatchString(text) {
			return map[string]any{"query": text}, true
		}
	default:
		for _, sub := range delegates[name] {
			if _, ok := Arguments(sub, text); ok {
				return map[string]any{"query": text}, true
			}
		}
	}
	return nil, false
}

func parseList(s string) []any {
	fields := strings.Split(s, ",")
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		v, _ := strconv.ParseFloat(strings.TrimSpace(f), 64)
		out = append(out, v)
	}
	return out
}

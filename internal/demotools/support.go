package demotools

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/tool"
)

var (
	negativeWords = []string{"angry", "frustrated", "terrible", "broken", "not working", "doesn't work", "refund", "worst", "disappointed", "charged twice"}
	positiveWords = []string{"thanks", "thank you", "great", "love", "happy", "appreciate"}
	urgentWords   = []string{"urgent", "asap", "immediately", "down", "outage", "cannot access", "can't access", "critical"}
)

func countMatches(text string, words []string) int {
	text = strings.ToLower(text)
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}

// MessageArgs carry a customer message.
type MessageArgs struct {
	Text string `json:"text" description:"Customer message"`
}

// QueryArgs carry a free text query.
type QueryArgs struct {
	Query string `json:"query" description:"Issue description or search query"`
}

// CustomerArgs identify a customer.
type CustomerArgs struct {
	CustomerID string `json:"customer_id" description:"Customer identifier"`
}

// ServiceArgs optionally name a service.
type ServiceArgs struct {
	Service string `json:"service,omitempty" description:"Service name; all services when empty"`
}

// DraftArgs carry a draft reply.
type DraftArgs struct {
	Draft string `json:"draft" description:"Draft response text"`
}

// AnalyzeSentiment scores a message with a keyword lexicon.
func AnalyzeSentiment() tool.Tool {
	return tool.NewTypedTool("analyze_sentiment", "Scores the sentiment of a customer message",
		func(_ *core.ToolContext, args MessageArgs) (any, error) {
			neg, pos := countMatches(args.Text, negativeWords), countMatches(args.Text, positiveWords)
			label := "neutral"
			switch {
			case neg > pos:
				label = "negative"
			case pos > neg:
				label = "positive"
			}
			return map[string]any{"sentiment": label, "score": float64(pos-neg) / float64(max(1, pos+neg))}, nil
		})
}

// ClassifyEmotion maps a message to a dominant emotion.
func ClassifyEmotion() tool.Tool {
	return tool.NewTypedTool("classify_emotion", "Classifies the dominant emotion of a customer message",
		func(_ *core.ToolContext, args MessageArgs) (any, error) {
			text := strings.ToLower(args.Text)
			emotion := "calm"
			switch {
			case strings.Contains(text, "angry") || strings.Contains(text, "worst"):
				emotion = "anger"
			case strings.Contains(text, "frustrat") || strings.Contains(text, "again"):
				emotion = "frustration"
			case strings.Contains(text, "worried") || strings.Contains(text, "concern"):
				emotion = "anxiety"
			case countMatches(text, positiveWords) > 0:
				emotion = "satisfaction"
			}
			return map[string]any{"emotion": emotion}, nil
		})
}

// DetectUrgency rates how quickly a message needs attention.
func DetectUrgency() tool.Tool {
	return tool.NewTypedTool("detect_urgency", "Detects the urgency level of a customer message",
		func(_ *core.ToolContext, args MessageArgs) (any, error) {
			level := "low"
			switch n := countMatches(args.Text, urgentWords); {
			case n >= 2:
				level = "high"
			case n == 1:
				level = "medium"
			}
			return map[string]any{"urgency": level}, nil
		})
}

type article struct {
	Topic    string
	Keywords []string
	Title    string
	Steps    []string
}

var knowledgeBase = []article{
	{Topic: "login", Keywords: []string{"login", "log in", "sign in", "password"}, Title: "Resolving login problems", Steps: []string{"Reset your password from the sign-in page", "Clear browser cookies and cache", "Check that two-factor codes are in sync"}},
	{Topic: "payment", Keywords: []string{"payment", "charge", "billing", "refund", "invoice"}, Title: "Billing and duplicate charges", Steps: []string{"Verify the charge in the billing history", "Open a refund request for duplicate charges", "Update the payment method if the card expired"}},
	{Topic: "slow", Keywords: []string{"slow", "performance", "lag"}, Title: "Improving performance", Steps: []string{"Check the status page for degradations", "Disable browser extensions", "Retry on a different network"}},
	{Topic: "crash", Keywords: []string{"crash", "freeze", "won't start"}, Title: "App crashes on start", Steps: []string{"Update to the latest version", "Reinstall the application", "Send the crash report to support"}},
}

func matchArticles(query string) []article {
	var out []article
	for _, a := range knowledgeBase {
		if countMatches(query, a.Keywords) > 0 {
			out = append(out, a)
		}
	}
	return out
}

// SearchDocs finds knowledge base articles for an issue.
func SearchDocs() tool.Tool {
	return tool.NewTypedTool("search_docs", "Searches documentation for relevant articles",
		func(_ *core.ToolContext, args QueryArgs) (any, error) {
			titles := []string{}
			for _, a := range matchArticles(args.Query) {
				titles = append(titles, a.Title)
			}
			return map[string]any{"articles": titles}, nil
		})
}

// FindSimilarTickets returns resolved tickets about the same topic.
func FindSimilarTickets() tool.Tool {
	return tool.NewTypedTool("find_similar_tickets", "Finds previously resolved tickets with similar issues",
		func(_ *core.ToolContext, args QueryArgs) (any, error) {
			tickets := []map[string]any{}
			for i, a := range matchArticles(args.Query) {
				tickets = append(tickets, map[string]any{
					"id":         fmt.Sprintf("T-%04d", 1001+i),
					"topic":      a.Topic,
					"resolution": a.Steps[0],
				})
			}
			return map[string]any{"tickets": tickets}, nil
		})
}

// GetSolutionSteps returns step-by-step instructions for an issue.
func GetSolutionSteps() tool.Tool {
	return tool.NewTypedTool("get_solution_steps", "Returns step-by-step solution instructions",
		func(_ *core.ToolContext, args QueryArgs) (any, error) {
			matches := matchArticles(args.Query)
			if len(matches) == 0 {
				return map[string]any{"steps": []string{"Escalate to a support specialist"}}, nil
			}
			return map[string]any{"title": matches[0].Title, "steps": matches[0].Steps}, nil
		})
}

type customer struct {
	Name         string
	Tier         string
	Since        string
	Purchases    []string
	Subscription string
}

var customers = map[string]customer{
	"C-100": {Name: "Alice Johnson", Tier: "premium", Since: "2019-04-12", Purchases: []string{"Pro plan (annual)", "Extra storage 1TB"}, Subscription: "active"},
	"C-200": {Name: "Bob Smith", Tier: "standard", Since: "2022-09-01", Purchases: []string{"Basic plan (monthly)"}, Subscription: "past_due"},
	"C-300": {Name: "Carol Diaz", Tier: "enterprise", Since: "2017-01-20", Purchases: []string{"Enterprise seats x50", "Priority support"}, Subscription: "active"},
}

func lookupCustomer(id string) (customer, bool) {
	c, ok := customers[strings.ToUpper(strings.TrimSpace(id))]
	return c, ok
}

// GetCustomerProfile returns the profile of a customer.
func GetCustomerProfile() tool.Tool {
	return tool.NewTypedTool("get_customer_profile", "Retrieves the customer profile",
		func(_ *core.ToolContext, args CustomerArgs) (any, error) {
			c, ok := lookupCustomer(args.CustomerID)
			if !ok {
				return map[string]any{"customer_id": args.CustomerID, "tier": "unknown"}, nil
			}
			return map[string]any{"customer_id": args.CustomerID, "name": c.Name, "tier": c.Tier, "customer_since": c.Since}, nil
		})
}

// FetchPurchaseHistory lists the purchases of a customer.
func FetchPurchaseHistory() tool.Tool {
	return tool.NewTypedTool("fetch_purchase_history", "Fetches the purchase history of a customer",
		func(_ *core.ToolContext, args CustomerArgs) (any, error) {
			c, ok := lookupCustomer(args.CustomerID)
			if !ok {
				return map[string]any{"purchases": []string{}}, nil
			}
			return map[string]any{"purchases": c.Purchases}, nil
		})
}

// CheckSubscriptionStatus reports whether a subscription is in good standing.
func CheckSubscriptionStatus() tool.Tool {
	return tool.NewTypedTool("check_subscription_status", "Checks the subscription status of a customer",
		func(_ *core.ToolContext, args CustomerArgs) (any, error) {
			c, ok := lookupCustomer(args.CustomerID)
			if !ok {
				return map[string]any{"status": "none"}, nil
			}
			return map[string]any{"status": c.Subscription}, nil
		})
}

var services = map[string]string{
	"api":       "operational",
	"dashboard": "operational",
	"billing":   "degraded",
	"login":     "operational",
}

// CheckServiceStatus reports the health of one or all services.
func CheckServiceStatus() tool.Tool {
	return tool.NewTypedTool("check_service_status", "Checks product and service health",
		func(_ *core.ToolContext, args ServiceArgs) (any, error) {
			if args.Service == "" {
				return map[string]any{"services": services}, nil
			}
			status, ok := services[strings.ToLower(args.Service)]
			if !ok {
				status = "unknown"
			}
			return map[string]any{"service": args.Service, "status": status}, nil
		})
}

// GetKnownIssues lists open incidents.
func GetKnownIssues() tool.Tool {
	return tool.NewTypedTool("get_known_issues", "Lists currently known issues",
		func(_ *core.ToolContext, _ ServiceArgs) (any, error) {
			return map[string]any{"issues": []map[string]string{
				{"service": "billing", "summary": "Delayed invoice generation", "status": "investigating"},
			}}, nil
		})
}

// CheckOutages reports active outages.
func CheckOutages() tool.Tool {
	return tool.NewTypedTool("check_outages", "Checks for active service outages",
		func(_ *core.ToolContext, _ ServiceArgs) (any, error) {
			return map[string]any{"outages": []string{}, "all_clear": true}, nil
		})
}

// GenerateResponse drafts a reply from the gathered context.
func GenerateResponse() tool.Tool {
	return tool.NewTypedTool("generate_response", "Drafts a customer response from the supplied context",
		func(_ *core.ToolContext, args QueryArgs) (any, error) {
			return map[string]any{"draft": "Thank you for reaching out. We have reviewed your request: " + strings.TrimSpace(args.Query)}, nil
		})
}

// ApplyToneGuidelines makes a draft empathetic and polite.
func ApplyToneGuidelines() tool.Tool {
	return tool.NewTypedTool("apply_tone_guidelines", "Applies empathetic tone guidelines to a draft",
		func(_ *core.ToolContext, args DraftArgs) (any, error) {
			draft := strings.TrimSpace(args.Draft)
			if !strings.HasPrefix(strings.ToLower(draft), "we're sorry") {
				draft = "We're sorry for the trouble. " + draft
			}
			return map[string]any{"response": draft}, nil
		})
}

// SuggestNextSteps proposes follow-up actions for an issue.
func SuggestNextSteps() tool.Tool {
	return tool.NewTypedTool("suggest_next_steps", "Suggests next steps for the customer",
		func(_ *core.ToolContext, args QueryArgs) (any, error) {
			steps := []string{"Reply to this message if the issue persists"}
			if countMatches(args.Query, urgentWords) > 0 {
				steps = append([]string{"A specialist will contact you within one hour"}, steps...)
			}
			return map[string]any{"next_steps": steps}, nil
		})
}

// SentimentTools back the sentiment and urgency stages.
func SentimentTools() []tool.Tool {
	return []tool.Tool{AnalyzeSentiment(), DetectUrgency(), ClassifyEmotion()}
}

// KnowledgeTools back the knowledge base stage.
func KnowledgeTools() []tool.Tool {
	return []tool.Tool{SearchDocs(), FindSimilarTickets(), GetSolutionSteps()}
}

// CustomerTools back the customer context stage.
func CustomerTools() []tool.Tool {
	return []tool.Tool{GetCustomerProfile(), FetchPurchaseHistory(), CheckSubscriptionStatus()}
}

// StatusTools back the system status stage.
func StatusTools() []tool.Tool {
	return []tool.Tool{CheckServiceStatus(), GetKnownIssues(), CheckOutages()}
}

// ResponseTools back the response generation stage.
func ResponseTools() []tool.Tool {
	return []tool.Tool{GenerateResponse(), ApplyToneGuidelines(), SuggestNextSteps()}
}

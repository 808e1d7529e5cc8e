package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hupe1980/agentflow/agent"
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/support"
)

// AgentRequest is the body of POST /agent.
type AgentRequest struct {
	Query string `json:"query"`
}

// AgentResponse is the reply of POST /agent. ToolUsed and ToolResult
// describe the last capability invoked, if any.
type AgentResponse struct {
	Answer     string          `json:"answer"`
	ToolUsed   string          `json:"tool_used,omitempty"`
	ToolResult json.RawMessage `json:"tool_result,omitempty"`
	Iterations int             `json:"iterations"`
	Truncated  bool            `json:"truncated,omitempty"`
}

// HealthResponse is the reply of GET /health.
type HealthResponse struct {
	Status  string   `json:"status"`
	Service string   `json:"service"`
	Agents  []string `json:"agents"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Service: ServiceName, Agents: s.Agents()})
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	s.handleQuery(w, r, s.assistant)
}

func (s *Server) handleGeneral(w http.ResponseWriter, r *http.Request) {
	s.handleQuery(w, r, s.opts.General)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request, runner agent.Runner) {
	var req AgentRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	res, err := runner.Run(r.Context(), req.Query)
	if err != nil {
		s.opts.Logger.Error("server.agent.failed", "agent", runner.Name(), "error", err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := AgentResponse{Answer: res.Text, Iterations: res.Iterations, Truncated: res.Truncated}
	if used, ok := lastToolResult(res.History); ok {
		resp.ToolUsed = used.Name
		resp.ToolResult = toolResultObject(used)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSupportProcess(w http.ResponseWriter, r *http.Request) {
	s.handleTicket(w, r, s.workflow.Process)
}

func (s *Server) handleSupportPipeline(w http.ResponseWriter, r *http.Request) {
	s.handleTicket(w, r, s.workflow.RunPipeline)
}

func (s *Server) handleTicket(w http.ResponseWriter, r *http.Request, run func(context.Context, support.Ticket) (support.Result, error)) {
	var ticket support.Ticket
	if !s.decode(w, r, &ticket) {
		return
	}
	if err := ticket.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := run(r.Context(), ticket)
	if err != nil {
		s.opts.Logger.Error("server.support.failed", "path", r.URL.Path, "ticket_id", ticket.ID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// lastToolResult returns the most recent tool-result message of history.
func lastToolResult(history []core.Message) (core.Message, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == core.RoleTool {
			return history[i], true
		}
	}
	return core.Message{}, false
}

// toolResultObject renders a tool-result message as a JSON object. Object
// output is embedded as is; failures become {"error": ...}, other JSON
// values {"result": ...} and plain text {"text": ...}.
func toolResultObject(m core.Message) json.RawMessage {
	text := core.Extract(m)
	var wrapped map[string]any
	switch {
	case m.IsError:
		wrapped = map[string]any{"error": text}
	case json.Valid([]byte(text)):
		var v any
		_ = json.Unmarshal([]byte(text), &v)
		if _, isObject := v.(map[string]any); isObject {
			return json.RawMessage(text)
		}
		wrapped = map[string]any{"result": v}
	default:
		wrapped = map[string]any{"text": text}
	}
	b, _ := json.Marshal(wrapped)
	return b
}

// Package server exposes the assistant stage and the support workflows over
// HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hupe1980/agentflow/agent"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/support"
)

// ServiceName identifies the service in health responses and spans.
const ServiceName = "agentflow"

// Options configures a Server.
type Options struct {
	Logger logging.Logger
	// General serves POST /agent/multi when set.
	General agent.Runner
	// Specialists are the stages General delegates to, listed by /health.
	Specialists []string
	// Gatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// MaxBodyBytes limits request bodies; 0 selects 1 MiB.
	MaxBodyBytes int64
}

// Server routes HTTP requests to the assistant stage and the support
// workflows.
type Server struct {
	assistant agent.Runner
	workflow  *support.Workflow
	opts      Options
}

// New creates a server. workflow may be nil, which disables the /support
// routes.
func New(assistant agent.Runner, workflow *support.Workflow, optFns ...func(o *Options)) (*Server, error) {
	if assistant == nil {
		return nil, errors.New("server: assistant stage is required")
	}

	opts := Options{MaxBodyBytes: 1 << 20}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	return &Server{assistant: assistant, workflow: workflow, opts: opts}, nil
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	r.Post("/agent", s.handleAgent)
	if s.opts.General != nil {
		r.Post("/agent/multi", s.handleGeneral)
	}

	if s.workflow != nil {
		r.Route("/support", func(r chi.Router) {
			r.Post("/process", s.handleSupportProcess)
			r.Post("/pipeline", s.handleSupportPipeline)
		})
	}

	return otelhttp.NewHandler(r, ServiceName)
}

// Agents lists every stage the server can run.
func (s *Server) Agents() []string {
	agents := []string{s.assistant.Name()}
	if s.opts.General != nil {
		agents = append(agents, s.opts.General.Name())
		agents = append(agents, s.opts.Specialists...)
	}
	if s.workflow != nil {
		agents = append(agents, s.workflow.Agents()...)
	}
	return agents
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.opts.Logger.Info(
			"server.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", chiMiddleware.GetReqID(r.Context()),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// decode reads a JSON body into v and answers 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err := dec.Decode(v); err != nil {
		s.opts.Logger.Warn("server.request.invalid", "path", r.URL.Path, "error", err.Error())
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"detail": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

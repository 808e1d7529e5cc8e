// Package agentflow assembles the orchestration building blocks into a ready
// application: a reasoning model chosen by configuration, a general assistant
// stage, the customer support workflows and the HTTP server exposing them.
//
// Most programs only need:
//  1. config.Load() to read the environment
//  2. agentflow.New() to build the application
//  3. App.Server() or App.Ask() to serve or run a single query
//
// Lower level packages (agent, flow, tool, model) can be used directly for
// custom pipelines.
package agentflow

import (
	"context"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/agentflow/agent"
	"github.com/hupe1980/agentflow/config"
	"github.com/hupe1980/agentflow/flow"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/metrics"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/model/anthropic"
	"github.com/hupe1980/agentflow/model/offline"
	"github.com/hupe1980/agentflow/model/openai"
	"github.com/hupe1980/agentflow/server"
	"github.com/hupe1980/agentflow/support"
)

// Version of the agentflow module.
const Version = "0.1.0"

// AssistantStage is the name of the general purpose stage behind POST /agent.
const AssistantStage = "assistant"

const assistantInstruction = "You are a helpful assistant. Use the calculator for arithmetic and the weather tools for weather questions, then answer concisely."

// Options configures New.
type Options struct {
	// Config supplies provider, limits and the stage file. Defaults to
	// config.Load().
	Config *config.Config
	// Model overrides the configured provider.
	Model model.Model
	// Logger defaults to a slog logger built from Config.
	Logger logging.Logger
	// Registerer receives the metric collectors. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	// Gatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// App is an assembled application.
type App struct {
	Config    *config.Config
	Model     model.Model
	Assistant *agent.Stage
	// General delegates to the specialist stages through agent tools.
	General     *agent.Stage
	Specialists []string
	Support     *support.Workflow
	Metrics     *metrics.Collector
	Logger      logging.Logger

	gatherer prometheus.Gatherer
}

// New builds the application from options.
func New(optFns ...func(o *Options)) (*App, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.Load(); err != nil {
			return nil, err
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = NewLogger(cfg)
	}

	llm := opts.Model
	if llm == nil {
		var err error
		if llm, err = NewModel(cfg); err != nil {
			return nil, err
		}
	}

	collector, err := metrics.New(opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("agentflow: %w", err)
	}

	overrides, err := config.LoadStages(cfg.StagesFile)
	if err != nil {
		return nil, fmt.Errorf("agentflow: %w", err)
	}

	callbacks := newCallbacks(cfg, logger)

	builder := &stageBuilder{
		llm:       llm,
		cfg:       cfg,
		overrides: overrides,
		callbacks: callbacks,
		logger:    logger,
		metrics:   collector,
	}

	assistant, err := builder.build(stageDef{
		name:        AssistantStage,
		instruction: assistantInstruction,
		description: "General assistant with arithmetic and weather tools",
		tools:       []string{"calculator", "advanced_calculator", "get_weather", "get_forecast"},
	}, nil)
	if err != nil {
		return nil, err
	}

	general, specialists, err := builder.newGeneral()
	if err != nil {
		return nil, err
	}

	workflow, err := support.New(llm, func(o *support.Options) {
		o.Overrides = overrides
		o.MaxIterations = cfg.MaxIterations
		o.FanOutTimeout = cfg.FanOutTimeout
		o.MaxConcurrency = cfg.MaxConcurrency
		o.Callbacks = callbacks
		o.Logger = logger
		o.Metrics = collector
	})
	if err != nil {
		return nil, err
	}

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	logger.Info("agentflow.ready", "model", llm.Info().String(), "stages", len(workflow.Agents())+len(specialists)+2)

	return &App{
		Config:      cfg,
		Model:       llm,
		Assistant:   assistant,
		General:     general,
		Specialists: specialists,
		Support:     workflow,
		Metrics:     collector,
		Logger:      logger,
		gatherer:    gatherer,
	}, nil
}

// newCallbacks traces every model and tool step when debug logging is on.
func newCallbacks(cfg *config.Config, logger logging.Logger) *flow.CallbackManager {
	if level, err := logging.ParseLevel(cfg.LogLevel); err != nil || level != logging.LogLevelDebug {
		return nil
	}
	cm := flow.NewCallbackManager()
	for _, t := range []flow.CallbackType{
		flow.CallbackBeforeModel,
		flow.CallbackAfterModel,
		flow.CallbackBeforeTool,
		flow.CallbackAfterTool,
		flow.CallbackOnError,
	} {
		cm.Register(flow.NewLoggingCallback(t, logger))
	}
	return cm
}

// NewModel selects the reasoning provider named by cfg and applies the
// configured rate limit.
func NewModel(cfg *config.Config) (model.Model, error) {
	var llm model.Model
	switch cfg.Provider {
	case config.ProviderScripted:
		llm = offline.New()
	case config.ProviderOpenAI:
		llm = openai.NewModel(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.Temperature = cfg.Temperature
			o.APIKey = cfg.APIKey
		})
	case config.ProviderAnthropic:
		llm = anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
			o.Temperature = cfg.Temperature
			o.APIKey = cfg.APIKey
		})
	default:
		return nil, fmt.Errorf("agentflow: unsupported provider %q", cfg.Provider)
	}

	if cfg.RateLimit > 0 {
		llm = model.NewRateLimited(llm, cfg.RateLimit, cfg.RateBurst)
	}
	return llm, nil
}

// NewLogger builds the slog backed logger described by cfg.
func NewLogger(cfg *config.Config) logging.Logger {
	level, err := logging.ParseLevel(cfg.LogLevel)
	logger := logging.NewSlogLogger(level, cfg.LogFormat, false)
	if err != nil {
		logger.Warn("agentflow.config.log_level", "value", cfg.LogLevel, "error", err.Error())
	}
	return logger
}

// Server returns the HTTP server over the app's stages.
func (a *App) Server() (*server.Server, error) {
	return server.New(a.Assistant, a.Support, func(o *server.Options) {
		o.General = a.General
		o.Specialists = a.Specialists
		o.Logger = a.Logger
		o.Gatherer = a.gatherer
	})
}

// Ask runs the assistant stage once.
func (a *App) Ask(ctx context.Context, query string) (agent.StageResult, error) {
	if query == "" {
		return agent.StageResult{}, errors.New("agentflow: empty query")
	}
	return a.Assistant.Run(ctx, query)
}

// AskGeneral runs the delegating general stage once.
func (a *App) AskGeneral(ctx context.Context, query string) (agent.StageResult, error) {
	if query == "" {
		return agent.StageResult{}, errors.New("agentflow: empty query")
	}
	return a.General.Run(ctx, query)
}

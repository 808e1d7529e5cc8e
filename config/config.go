// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported reasoning providers.
const (
	ProviderScripted  = "scripted"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	Provider    string // "scripted" (offline demo), "openai" or "anthropic"
	Model       string // provider model id; empty selects the adapter default
	Temperature float64
	APIKey      string

	MaxIterations  int
	FanOutTimeout  time.Duration
	MaxConcurrency int

	// RateLimit caps reasoning calls per second across all stages; 0 disables it.
	RateLimit float64
	RateBurst int

	LogLevel  string
	LogFormat string

	StagesFile string
}

// LoadDotEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	provider := strings.ToLower(getEnv("AGENTFLOW_PROVIDER", ProviderScripted))

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Provider:       provider,
		Model:          getEnv("AGENTFLOW_MODEL", ""),
		Temperature:    getEnvFloat("AGENTFLOW_TEMPERATURE", 0.7),
		APIKey:         getEnv("AGENTFLOW_API_KEY", ""),
		MaxIterations:  getEnvInt("AGENTFLOW_MAX_ITERATIONS", 25),
		FanOutTimeout:  getEnvDuration("AGENTFLOW_FANOUT_TIMEOUT", 30*time.Second),
		MaxConcurrency: getEnvInt("AGENTFLOW_MAX_CONCURRENCY", 0),
		RateLimit:      getEnvFloat("AGENTFLOW_RATE_LIMIT", 0),
		RateBurst:      getEnvInt("AGENTFLOW_RATE_BURST", 1),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		StagesFile:     getEnv("AGENTFLOW_STAGES_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.Provider {
	case ProviderScripted, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("AGENTFLOW_PROVIDER %q is not supported", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("AGENTFLOW_TEMPERATURE must be within [0, 2]")
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("AGENTFLOW_MAX_ITERATIONS must be > 0")
	}
	if c.FanOutTimeout < 0 {
		return fmt.Errorf("AGENTFLOW_FANOUT_TIMEOUT cannot be negative")
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("AGENTFLOW_MAX_CONCURRENCY cannot be negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("AGENTFLOW_RATE_LIMIT cannot be negative")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json")
	}
	return nil
}

// Addr returns the listen address for Port.
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

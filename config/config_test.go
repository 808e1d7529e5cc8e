package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "AGENTFLOW_PROVIDER", "AGENTFLOW_MAX_ITERATIONS", "AGENTFLOW_FANOUT_TIMEOUT", "LOG_FORMAT"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, ProviderScripted, cfg.Provider)
	assert.Equal(t, 25, cfg.MaxIterations)
	assert.Equal(t, 30*time.Second, cfg.FanOutTimeout)
	assert.Equal(t, 0.7, cfg.Temperature)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("AGENTFLOW_PROVIDER", "OpenAI")
	t.Setenv("AGENTFLOW_MAX_ITERATIONS", "5")
	t.Setenv("AGENTFLOW_FANOUT_TIMEOUT", "2s")
	t.Setenv("AGENTFLOW_MAX_CONCURRENCY", "3")
	t.Setenv("AGENTFLOW_TEMPERATURE", "0.2")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("AGENTFLOW_RATE_LIMIT", "2.5")
	t.Setenv("AGENTFLOW_RATE_BURST", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, 5, cfg.MaxIterations)
	assert.Equal(t, 2*time.Second, cfg.FanOutTimeout)
	assert.Equal(t, 3, cfg.MaxConcurrency)
	assert.Equal(t, 0.2, cfg.Temperature)
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, 4, cfg.RateBurst)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("AGENTFLOW_PROVIDER", "llama")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("AGENTFLOW_PROVIDER", "scripted")
	t.Setenv("AGENTFLOW_MAX_ITERATIONS", "0")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("AGENTFLOW_TEST_VALUE=from-file\n"), 0o600))
	t.Setenv("AGENTFLOW_TEST_VALUE", "")
	require.NoError(t, os.Unsetenv("AGENTFLOW_TEST_VALUE"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("AGENTFLOW_TEST_VALUE"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "nope.env")))
}

func TestLoadStages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stages.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stages:
  - name: sentiment
    instruction: Classify the sentiment.
    max_iterations: 3
  - name: knowledge
    tools: [search_knowledge_base]
    fallback: Solutions unavailable
  - instruction: ignored without a name
`), 0o600))

	stages, err := LoadStages(path)
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, 3, stages["sentiment"].MaxIterations)
	assert.Equal(t, []string{"search_knowledge_base"}, stages["knowledge"].Tools)
	assert.Equal(t, "Solutions unavailable", stages["knowledge"].Fallback)

	jsonPath := filepath.Join(dir, "stages.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"stages":[{"name":"status","description":"checks systems"}]}`), 0o600))
	stages, err = LoadStages(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "checks systems", stages["status"].Description)

	stages, err = LoadStages(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, stages)

	dup := filepath.Join(dir, "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte("stages:\n  - name: a\n  - name: a\n"), 0o600))
	_, err = LoadStages(dup)
	assert.Error(t, err)
}

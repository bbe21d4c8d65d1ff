package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikisqleval/internal/adapter"
	"wikisqleval/internal/llm"
	"wikisqleval/internal/testutil"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Data.Split)
	assert.Equal(t, string(adapter.SQLite), cfg.Database.Type)
	assert.Equal(t, llm.ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 120*time.Second, cfg.Heavy.Timeout)
	assert.Equal(t, 4, cfg.Heavy.Workers)
	assert.Equal(t, 300*time.Second, cfg.Eval.Timeout)
	assert.Empty(t, cfg.Eval.Tier)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "wikisql.yaml", `
data:
  split: test
  limit: 10
llm:
  model: from-file
  token: file-token
heavy:
  enabled: true
  timeout: 45s
metrics_file: run.prom
`)
	t.Setenv("WIKISQL_LLM_MODEL", "from-env")
	t.Setenv("WIKISQL_DATA_LIMIT", "20")
	t.Setenv("WIKISQL_LLM_BASE_URL", "http://localhost:8000/v1")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("limit", 0, "")
	flags.String("model", "", "")
	flags.String("tier", "", "")
	require.NoError(t, flags.Parse([]string{"--limit", "5", "--tier", "validator"}))

	cfg, err := Load(Options{File: path, Flags: flags})
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Data.Split)
	assert.Equal(t, 5, cfg.Data.Limit, "flag wins over env and file")
	assert.Equal(t, "from-env", cfg.LLM.ModelName, "unset flag does not override env")
	assert.Equal(t, "file-token", cfg.LLM.Token)
	assert.Equal(t, "http://localhost:8000/v1", cfg.LLM.BaseURL)
	assert.True(t, cfg.Heavy.Enabled)
	assert.Equal(t, 45*time.Second, cfg.Heavy.Timeout)
	assert.Equal(t, "validator", cfg.Eval.Tier)
	assert.Equal(t, "run.prom", cfg.MetricsFile)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := testutil.WriteFile(t, dir, ".env", "WIKISQL_LLM_TOKEN=from-dotenv\n")
	// Register for cleanup; godotenv sets the variable directly.
	t.Setenv("WIKISQL_LLM_TOKEN", "")
	require.NoError(t, os.Unsetenv("WIKISQL_LLM_TOKEN"))

	cfg, err := Load(Options{EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.LLM.Token)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "bad.yaml", "database:\n  type: oracle\neval:\n  tier: fancy\n")
	_, err := Load(Options{File: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
	assert.Contains(t, err.Error(), "fancy")

	_, err = Load(Options{File: dir + "/missing.yaml"})
	assert.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "llm.token", envKey("WIKISQL_LLM_TOKEN"))
	assert.Equal(t, "llm.base_url", envKey("WIKISQL_LLM_BASE_URL"))
	assert.Equal(t, "database.sslmode", envKey("WIKISQL_DATABASE_SSLMODE"))
	assert.Equal(t, "data.wikisql_path", envKey("WIKISQL_DATA_WIKISQL_PATH"))
	assert.Equal(t, "metrics_file", envKey("WIKISQL_METRICS_FILE"))
}

func TestModelLabel(t *testing.T) {
	c := &Config{LLM: llm.ModelConfig{ModelName: "qwen/qwen3:max"}}
	assert.Equal(t, "qwen-qwen3-max", c.ModelLabel())
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "GENAI_SURVEY_ANALYSIS.RAW.EMPLOYEES", cfg.QualifiedTableName())
	assert.Equal(t, DefaultDescription, cfg.Table.Description)
	assert.Equal(t, "SELECT AGE FROM GENAI_SURVEY_ANALYSIS.RAW.EMPLOYEES;", cfg.Enrichment.Query)
	assert.Equal(t, "AGE", cfg.Enrichment.Column)
	assert.False(t, cfg.Enrichment.Disabled)
	assert.Equal(t, DefaultDriver, cfg.Warehouse.Driver)
	assert.Equal(t, sq.Question, cfg.PlaceholderFormat())
	assert.Equal(t, time.Duration(0), cfg.Cache.TTL)
	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, "openai", cfg.LLM.Provider)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SCHEMA_PATH", "RAW.SURVEY")
	t.Setenv("WAREHOUSE_DRIVER", "postgres")
	t.Setenv("ENRICHMENT_DISABLED", "true")
	t.Setenv("CONTEXT_CACHE_TTL", "10m")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "RAW.SURVEY.EMPLOYEES", cfg.QualifiedTableName())
	assert.Equal(t, "SELECT AGE FROM RAW.SURVEY.EMPLOYEES;", cfg.Enrichment.Query)
	assert.True(t, cfg.Enrichment.Disabled)
	assert.Equal(t, sq.Dollar, cfg.PlaceholderFormat())
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
}

func TestLoad_ColumnWithoutQuery(t *testing.T) {
	t.Setenv("ENRICHMENT_COLUMN", "DEPT")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "DEPT", cfg.Enrichment.Column)
	assert.Equal(t, "SELECT DEPT FROM GENAI_SURVEY_ANALYSIS.RAW.EMPLOYEES;", cfg.Enrichment.Query)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surveybot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
warehouse:
  driver: duckdb
  dsn: survey.duckdb
schema_path: LOCAL.MAIN
table:
  name: RESPONSES
  description: Pulse survey
enrichment:
  query: SELECT DISTINCT DEPT FROM LOCAL.MAIN.RESPONSES
  column: DEPT
cache:
  ttl: 1h
`), 0o600))
	t.Setenv("TABLE_NAME", "RESPONSES_2024")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "duckdb", cfg.Warehouse.Driver)
	assert.Equal(t, "survey.duckdb", cfg.Warehouse.DSN)
	assert.Equal(t, "LOCAL.MAIN.RESPONSES_2024", cfg.QualifiedTableName())
	assert.Equal(t, "Pulse survey", cfg.Table.Description)
	assert.Equal(t, "SELECT DISTINCT DEPT FROM LOCAL.MAIN.RESPONSES", cfg.Enrichment.Query)
	assert.Equal(t, "DEPT", cfg.Enrichment.Column)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
}

func TestLoad_LLM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surveybot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: Anthropic
  model: claude-sonnet-4-20250514
  max_tokens: 2048
`), 0o600))
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.LLM.Enabled())
	assert.Equal(t, LLMConfig{
		Provider:  "anthropic",
		APIKey:    "sk-test",
		Model:     "claude-sonnet-4-20250514",
		MaxTokens: 2048,
	}, cfg.LLM)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.ErrorContains(t, err, "reading config file")
	})

	t.Run("bad ttl", func(t *testing.T) {
		t.Setenv("CONTEXT_CACHE_TTL", "soon")
		_, err := Load("")
		require.ErrorContains(t, err, "CONTEXT_CACHE_TTL")
	})

	t.Run("bad placeholder", func(t *testing.T) {
		t.Setenv("WAREHOUSE_PLACEHOLDER", "colon")
		_, err := Load("")
		require.ErrorContains(t, err, "unknown placeholder format")
	})

	t.Run("custom query without column", func(t *testing.T) {
		t.Setenv("ENRICHMENT_QUERY", "SELECT DEPT FROM T")
		_, err := Load("")
		require.ErrorContains(t, err, "enrichment column is empty")
	})
}

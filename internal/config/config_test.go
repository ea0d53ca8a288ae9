package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"PORT", "ENV", "ASK_TIMEOUT", "DATABASE_URL", "MAX_ROWS", "QUERY_TIMEOUT",
	"OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL",
	"DEEPSEEK_API_KEY", "DEEPSEEK_MODEL", "ANTHROPIC_API_KEY", "ANTHROPIC_MODEL",
	"MAPBOX_TOKEN", "MAPBOX_TIMEOUT", "GEOCODE_CACHE_TTL",
	"SCHEMA_CONTEXT_PATH", "QUERY_PRIMARY_PATH", "SQL_REQUIRE_LIMIT", "NEAREST_CELLS", "NER_BACKEND",
}

// clearEnv blanks every variable Load reads; an empty value counts as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/hazards")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "development", c.Env)
	assert.False(t, c.IsProduction())
	assert.Equal(t, 120*time.Second, c.AskTimeout)
	assert.Equal(t, 200, c.MaxRows)
	assert.Equal(t, 10*time.Second, c.QueryTimeout)
	assert.Equal(t, "gpt-4o-mini", c.OpenAIModel)
	assert.Equal(t, "https://api.openai.com/v1", c.OpenAIBaseURL)
	assert.Equal(t, "deepseek-chat", c.DeepSeekModel)
	assert.Equal(t, "claude-sonnet-4-5", c.AnthropicModel)
	assert.Equal(t, 5*time.Second, c.MapboxTimeout)
	assert.Equal(t, 24*time.Hour, c.GeocodeCacheTTL)
	assert.Equal(t, "Beehive_DB_Context_Summary.docx", c.SchemaContextPath)
	assert.Equal(t, "templated", c.QueryPrimaryPath)
	assert.True(t, c.SQLRequireLimit)
	assert.Equal(t, 20, c.NearestCells)
	assert.Equal(t, "prose", c.NERBackend)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/hazards")
	t.Setenv("ANTHROPIC_API_KEY", "ak-test")
	t.Setenv("ENV", "production")
	t.Setenv("QUERY_PRIMARY_PATH", "MODEL")
	t.Setenv("SQL_REQUIRE_LIMIT", "false")
	t.Setenv("NEAREST_CELLS", "50")
	t.Setenv("QUERY_TIMEOUT", "3")
	t.Setenv("ASK_TIMEOUT", "90s")
	t.Setenv("NER_BACKEND", "pattern")

	c, err := Load()
	require.NoError(t, err)

	assert.True(t, c.IsProduction())
	assert.Equal(t, "model", c.QueryPrimaryPath)
	assert.False(t, c.SQLRequireLimit)
	assert.Equal(t, 50, c.NearestCells)
	assert.Equal(t, 3*time.Second, c.QueryTimeout)
	assert.Equal(t, 90*time.Second, c.AskTimeout)
	assert.Equal(t, "pattern", c.NERBackend)
}

func TestLoad_ReportsEveryProblem(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUERY_PRIMARY_PATH", "llm")
	t.Setenv("NER_BACKEND", "spacy")
	t.Setenv("MAX_ROWS", "-1")

	_, err := Load()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "DATABASE_URL")
	assert.Contains(t, msg, "OPENAI_API_KEY")
	assert.Contains(t, msg, "QUERY_PRIMARY_PATH")
	assert.Contains(t, msg, "NER_BACKEND")
	assert.Contains(t, msg, "MAX_ROWS")
}

func TestLoadDotEnv_RealEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(`
# comment
HQ_TEST_FROM_FILE="quoted value"
HQ_TEST_SHADOWED=file
not a pair
`), 0o600))

	t.Setenv("HQ_TEST_FROM_FILE", "")
	t.Setenv("HQ_TEST_SHADOWED", "env")

	loadDotEnv(path)

	assert.Equal(t, "quoted value", os.Getenv("HQ_TEST_FROM_FILE"))
	assert.Equal(t, "env", os.Getenv("HQ_TEST_SHADOWED"))
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Setenv("HQ_TEST_DURATION", "")
	assert.Equal(t, time.Minute, getEnvAsDuration("HQ_TEST_DURATION", time.Minute))

	t.Setenv("HQ_TEST_DURATION", "15")
	assert.Equal(t, 15*time.Second, getEnvAsDuration("HQ_TEST_DURATION", time.Minute))

	t.Setenv("HQ_TEST_DURATION", "250ms")
	assert.Equal(t, 250*time.Millisecond, getEnvAsDuration("HQ_TEST_DURATION", time.Minute))

	t.Setenv("HQ_TEST_DURATION", "soon")
	assert.Equal(t, time.Minute, getEnvAsDuration("HQ_TEST_DURATION", time.Minute))
}

func TestGetEnvAsBool(t *testing.T) {
	t.Setenv("HQ_TEST_BOOL", "")
	assert.True(t, getEnvAsBool("HQ_TEST_BOOL", true))

	t.Setenv("HQ_TEST_BOOL", "0")
	assert.False(t, getEnvAsBool("HQ_TEST_BOOL", true))

	t.Setenv("HQ_TEST_BOOL", "maybe")
	assert.True(t, getEnvAsBool("HQ_TEST_BOOL", true))
}

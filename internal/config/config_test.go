package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg := Defaults()
	assert.Equal(t, DefaultIndexPath, cfg.Index.Path)
	assert.Equal(t, DefaultBaseURL, cfg.TickTick.BaseURL)
	assert.Equal(t, 24*time.Hour, cfg.TickTick.ContainerTTL)
	assert.Equal(t, 3, cfg.Dispatch.RetryAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Dispatch.RetryBackoff)
	assert.Equal(t, DefaultModel, cfg.Parser.Model)
	require.NoError(t, cfg.Validate())
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Index:    IndexConfig{Path: "/tmp/x.db"},
		Dispatch: DispatchConfig{RetryAttempts: 5, RetryBackoff: time.Second},
		Server:   ServerConfig{Addr: ":9000"},
	}
	cfg.ApplyDefaults()
	assert.Equal(t, "/tmp/x.db", cfg.Index.Path)
	assert.Equal(t, 5, cfg.Dispatch.RetryAttempts)
	assert.Equal(t, time.Second, cfg.Dispatch.RetryBackoff)
	assert.Equal(t, ":9000", cfg.Server.Addr)
}

func TestSecrets_FallBackToEnv(t *testing.T) {
	t.Setenv("TW_TEST_TOKEN", " from-env ")
	t.Setenv("TW_TEST_KEY", "key-env")

	cfg := Config{
		TickTick: TickTickConfig{AccessTokenEnv: "TW_TEST_TOKEN"},
		Parser:   ParserConfig{APIKey: "inline", APIKeyEnv: "TW_TEST_KEY"},
	}
	assert.Equal(t, "from-env", cfg.TickTickToken())
	assert.Equal(t, "inline", cfg.ParserKey())
}

func TestLocation(t *testing.T) {
	t.Parallel()

	loc, err := Config{Parser: ParserConfig{Timezone: "Europe/Berlin"}}.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())

	_, err = Config{Parser: ParserConfig{Timezone: "Mars/Olympus"}}.Location()
	require.Error(t, err)
}

func TestValidate_RejectsBadBaseURL(t *testing.T) {
	t.Parallel()

	cfg := Defaults()
	cfg.TickTick.BaseURL = "api.ticktick.com"
	require.ErrorContains(t, cfg.Validate(), "base_url")
}

func TestValidate_RejectsZeroRetryAttempts(t *testing.T) {
	t.Parallel()

	cfg := Defaults()
	cfg.Dispatch.RetryAttempts = 0
	require.EqualError(t, cfg.Validate(), "dispatch.retry_attempts must be > 0")
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateSettings(map[string]any{
		"index":    map[string]any{"path": "idx.db", "include_completed": true},
		"ticktick": map[string]any{"timeout": "10s", "container_ttl": "1h30m"},
		"dispatch": map[string]any{"retry_attempts": 2, "retry_backoff": "250ms"},
	}))

	cases := map[string]map[string]any{
		"unknown section":  {"agents": map[string]any{}},
		"unknown key":      {"index": map[string]any{"file": "x"}},
		"bad duration":     {"ticktick": map[string]any{"timeout": "soon"}},
		"attempts too low": {"dispatch": map[string]any{"retry_attempts": 0}},
		"empty addr":       {"server": map[string]any{"addr": ""}},
	}
	for name, settings := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			require.ErrorContains(t, ValidateSettings(settings), "config schema validation failed")
		})
	}
}

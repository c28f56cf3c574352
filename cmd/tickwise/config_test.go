package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/metalagman/tickwise/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfigPath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	assert.Equal(t, filepath.Join(root, defaultConfigPath), resolveConfigPath(root, ""))
	assert.Equal(t, filepath.Join(root, "x.json"), resolveConfigPath(root, "x.json"))
	assert.Equal(t, "/etc/tickwise.yaml", resolveConfigPath(root, "/etc/tickwise.yaml"))
}

func TestLoadConfig_UsesYAML(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, writeTestFile(filepath.Join(root, defaultConfigPath), `index:
  path: data/index.db
  include_completed: true
ticktick:
  default_container: inbox123
  timeout: 5s
  container_ttl: 2h
dispatch:
  retry_attempts: 4
  retry_backoff: 100ms
`))
	useConfigFlag(t, defaultConfigPath)

	cfg, err := loadConfig(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "data/index.db"), cfg.Index.Path)
	assert.True(t, cfg.Index.IncludeCompleted)
	assert.Equal(t, "inbox123", cfg.TickTick.DefaultContainer)
	assert.Equal(t, 5*time.Second, cfg.TickTick.Timeout)
	assert.Equal(t, 2*time.Hour, cfg.TickTick.ContainerTTL)
	assert.Equal(t, 4, cfg.Dispatch.RetryAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Dispatch.RetryBackoff)
	assert.Equal(t, config.DefaultBaseURL, cfg.TickTick.BaseURL)
}

func TestLoadConfig_UsesJSON(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, writeTestFile(filepath.Join(root, "conf.json"), `{"server":{"addr":":9999"},"parser":{"timezone":"Europe/Berlin"}}`))
	useConfigFlag(t, "conf.json")

	cfg, err := loadConfig(root)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "Europe/Berlin", cfg.Parser.Timezone)
}

func TestLoadConfig_MissingDefaultUsesDefaults(t *testing.T) {
	root := t.TempDir()
	useConfigFlag(t, defaultConfigPath)

	cfg, err := loadConfig(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, config.DefaultIndexPath), cfg.Index.Path)
	assert.Equal(t, 3, cfg.Dispatch.RetryAttempts)
}

func TestLoadConfig_MissingExplicitFileFails(t *testing.T) {
	useConfigFlag(t, "nope.yaml")
	_, err := loadConfig(t.TempDir())
	require.Error(t, err)
}

func TestLoadConfig_RejectsUnknownKeys(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, writeTestFile(filepath.Join(root, defaultConfigPath), "ticktick:\n  token: abc\n"))
	useConfigFlag(t, defaultConfigPath)

	_, err := loadConfig(root)
	require.ErrorContains(t, err, "config schema validation failed")
}

func TestLoadConfig_RejectsBadTimezone(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, writeTestFile(filepath.Join(root, defaultConfigPath), "parser:\n  timezone: Mars/Olympus\n"))
	useConfigFlag(t, defaultConfigPath)

	_, err := loadConfig(root)
	require.ErrorContains(t, err, "parser.timezone")
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, writeTestFile(path, "TW_CMD_TEST_TOKEN=from-dotenv\n"))
	t.Setenv("TW_CMD_TEST_TOKEN", "")
	require.NoError(t, os.Unsetenv("TW_CMD_TEST_TOKEN"))

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-dotenv", os.Getenv("TW_CMD_TEST_TOKEN"))
	require.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}

func useConfigFlag(t *testing.T, path string) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("config", path)
}

func writeTestFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

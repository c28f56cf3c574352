// Package config provides configuration loading and management for tickwise.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the root configuration.
type Config struct {
	Index    IndexConfig    `json:"index"    mapstructure:"index"`
	TickTick TickTickConfig `json:"ticktick" mapstructure:"ticktick"`
	Parser   ParserConfig   `json:"parser"   mapstructure:"parser"`
	Dispatch DispatchConfig `json:"dispatch" mapstructure:"dispatch"`
	Server   ServerConfig   `json:"server"   mapstructure:"server"`
}

// IndexConfig locates the local task index.
type IndexConfig struct {
	Path             string `json:"path"                        mapstructure:"path"`
	IncludeCompleted bool   `json:"include_completed,omitempty" mapstructure:"include_completed"`
}

// TickTickConfig describes the remote tracker.
type TickTickConfig struct {
	BaseURL          string        `json:"base_url"                    mapstructure:"base_url"`
	AccessToken      string        `json:"access_token,omitempty"      mapstructure:"access_token"`
	AccessTokenEnv   string        `json:"access_token_env,omitempty"  mapstructure:"access_token_env"`
	DefaultContainer string        `json:"default_container,omitempty" mapstructure:"default_container"`
	Timeout          time.Duration `json:"timeout"                     mapstructure:"timeout"`
	ContainerTTL     time.Duration `json:"container_ttl"               mapstructure:"container_ttl"`
}

// ParserConfig describes the natural-language parser.
type ParserConfig struct {
	Model     string        `json:"model"                 mapstructure:"model"`
	APIKey    string        `json:"api_key,omitempty"     mapstructure:"api_key"`
	APIKeyEnv string        `json:"api_key_env,omitempty" mapstructure:"api_key_env"`
	BaseURL   string        `json:"base_url,omitempty"    mapstructure:"base_url"`
	Timeout   time.Duration `json:"timeout"               mapstructure:"timeout"`
	Timezone  string        `json:"timezone,omitempty"    mapstructure:"timezone"`
}

// DispatchConfig bounds retries of idempotent remote calls.
type DispatchConfig struct {
	RetryAttempts int           `json:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoff  time.Duration `json:"retry_backoff"  mapstructure:"retry_backoff"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr string `json:"addr" mapstructure:"addr"`
}

const (
	DefaultIndexPath      = ".tickwise/index.db"
	DefaultBaseURL        = "https://api.ticktick.com"
	DefaultAccessTokenEnv = "TICKTICK_ACCESS_TOKEN"
	DefaultAPIKeyEnv      = "GEMINI_API_KEY"
	DefaultModel          = "gemini-2.5-flash"
	DefaultAddr           = "127.0.0.1:8080"
)

// Defaults returns a config with every default filled in.
func Defaults() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero values with defaults.
func (c *Config) ApplyDefaults() {
	setString(&c.Index.Path, DefaultIndexPath)
	setString(&c.TickTick.BaseURL, DefaultBaseURL)
	setString(&c.TickTick.AccessTokenEnv, DefaultAccessTokenEnv)
	setDuration(&c.TickTick.Timeout, 15*time.Second)
	setDuration(&c.TickTick.ContainerTTL, 24*time.Hour)
	setString(&c.Parser.Model, DefaultModel)
	setString(&c.Parser.APIKeyEnv, DefaultAPIKeyEnv)
	setDuration(&c.Parser.Timeout, 30*time.Second)
	setString(&c.Parser.Timezone, "UTC")
	if c.Dispatch.RetryAttempts <= 0 {
		c.Dispatch.RetryAttempts = 3
	}
	setDuration(&c.Dispatch.RetryBackoff, 500*time.Millisecond)
	setString(&c.Server.Addr, DefaultAddr)
}

// TickTickToken returns the configured token, falling back to the env var.
func (c Config) TickTickToken() string {
	return secret(c.TickTick.AccessToken, c.TickTick.AccessTokenEnv)
}

// ParserKey returns the configured API key, falling back to the env var.
func (c Config) ParserKey() string {
	return secret(c.Parser.APIKey, c.Parser.APIKeyEnv)
}

// Location loads the parser timezone.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Parser.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("parser.timezone: %w", err)
	}
	return loc, nil
}

func secret(value, env string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	if env == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(env))
}

func setString(dst *string, def string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = def
	}
}

func setDuration(dst *time.Duration, def time.Duration) {
	if *dst <= 0 {
		*dst = def
	}
}

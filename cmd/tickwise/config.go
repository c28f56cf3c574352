package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/metalagman/tickwise/internal/config"
	"github.com/spf13/viper"
)

const defaultConfigPath = ".tickwise/config.yaml"

func resolveConfigPath(root, path string) string {
	if strings.TrimSpace(path) == "" {
		path = defaultConfigPath
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	return path
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	default:
		return "yaml"
	}
}

// loadConfig reads, validates and defaults the config. Only the default
// path may be missing.
func loadConfig(root string) (config.Config, error) {
	requested := viper.GetString("config")
	path := resolveConfigPath(root, requested)

	v := viper.New()
	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		v.SetConfigFile(path)
		v.SetConfigType(configType(path))
		if err := v.ReadInConfig(); err != nil {
			return config.Config{}, fmt.Errorf("read config: %w", err)
		}
	case errors.Is(statErr, fs.ErrNotExist) && path == resolveConfigPath(root, defaultConfigPath):
	default:
		return config.Config{}, fmt.Errorf("read config: %w", statErr)
	}

	if err := config.ValidateSettings(v.AllSettings()); err != nil {
		return config.Config{}, err
	}
	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return config.Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if !filepath.IsAbs(cfg.Index.Path) {
		cfg.Index.Path = filepath.Join(root, cfg.Index.Path)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// Package config loads the CLI's runtime configuration: log level/format,
// the default workspace file path and the oplog purge keep-last count,
// from a YAML file overridable by environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Workspace WorkspaceConfig `yaml:"workspace"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type WorkspaceConfig struct {
	DefaultPath string `yaml:"default_path"`
	PurgeKeep   int    `yaml:"purge_keep"`
}

func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Workspace: WorkspaceConfig{
			PurgeKeep: 10000,
		},
	}
}

// Load loads configuration using the real environment.
func Load() (*Config, error) {
	return LoadWithEnv(os.Getenv)
}

// LoadWithEnv loads configuration using the provided environment lookup
// function, so tests can supply isolated environment values.
func LoadWithEnv(getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPathWithEnv(getenv)
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
	}

	if level := getenv("KRILLNOTES_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if path := getenv("KRILLNOTES_WORKSPACE"); path != "" {
		cfg.Workspace.DefaultPath = path
	}

	return cfg, nil
}

func getConfigPathWithEnv(getenv func(string) string) string {
	if xdgConfig := getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "krillnotes", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "krillnotes", "config.yaml")
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func mockEnv(env map[string]string) func(string) string {
	return func(key string) string {
		return env[key]
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("DefaultConfig() Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Workspace.PurgeKeep != 10000 {
		t.Errorf("DefaultConfig() Workspace.PurgeKeep = %d, want 10000", cfg.Workspace.PurgeKeep)
	}
	if cfg.Workspace.DefaultPath != "" {
		t.Errorf("DefaultConfig() Workspace.DefaultPath = %q, want empty", cfg.Workspace.DefaultPath)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, "krillnotes")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	configContent := `
log:
  level: debug
  json: true
workspace:
  default_path: /data/notes.db
  purge_keep: 500
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	env := mockEnv(map[string]string{"XDG_CONFIG_HOME": tmpDir})

	cfg, err := LoadWithEnv(env)
	if err != nil {
		t.Fatalf("LoadWithEnv() error: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("LoadWithEnv() Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if !cfg.Log.JSON {
		t.Error("LoadWithEnv() Log.JSON should be true")
	}
	if cfg.Workspace.DefaultPath != "/data/notes.db" {
		t.Errorf("LoadWithEnv() Workspace.DefaultPath = %q, want %q", cfg.Workspace.DefaultPath, "/data/notes.db")
	}
	if cfg.Workspace.PurgeKeep != 500 {
		t.Errorf("LoadWithEnv() Workspace.PurgeKeep = %d, want 500", cfg.Workspace.PurgeKeep)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, "krillnotes")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(`workspace:
  default_path: /from/file.db
`), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	env := mockEnv(map[string]string{
		"XDG_CONFIG_HOME":      tmpDir,
		"KRILLNOTES_WORKSPACE": "/from/env.db",
	})

	cfg, err := LoadWithEnv(env)
	if err != nil {
		t.Fatalf("LoadWithEnv() error: %v", err)
	}
	if cfg.Workspace.DefaultPath != "/from/env.db" {
		t.Errorf("LoadWithEnv() Workspace.DefaultPath = %q, want env override %q",
			cfg.Workspace.DefaultPath, "/from/env.db")
	}
}

func TestLoadNoConfigFile(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	env := mockEnv(map[string]string{"XDG_CONFIG_HOME": tmpDir})

	cfg, err := LoadWithEnv(env)
	if err != nil {
		t.Fatalf("LoadWithEnv() error: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("LoadWithEnv() without file should use default Log.Level, got %q", cfg.Log.Level)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, "krillnotes")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("log: [this is invalid"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	env := mockEnv(map[string]string{"XDG_CONFIG_HOME": tmpDir})
	if _, err := LoadWithEnv(env); err == nil {
		t.Error("LoadWithEnv() with invalid YAML should return error")
	}
}

func TestGetConfigPathXDG(t *testing.T) {
	t.Parallel()
	env := mockEnv(map[string]string{"XDG_CONFIG_HOME": "/custom/config/path"})

	path := getConfigPathWithEnv(env)
	expected := filepath.Join("/custom/config/path", "krillnotes", "config.yaml")
	if path != expected {
		t.Errorf("getConfigPathWithEnv() = %q, want %q", path, expected)
	}
}

func TestGetConfigPathFallback(t *testing.T) {
	t.Parallel()
	env := mockEnv(map[string]string{})

	path := getConfigPathWithEnv(env)
	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".config", "krillnotes", "config.yaml")
	if path != expected {
		t.Errorf("getConfigPathWithEnv() = %q, want %q", path, expected)
	}
}

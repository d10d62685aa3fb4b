// Package config handles the server's persistent configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultModels is the starter set used when a comparison request names no
// models.
var DefaultModels = []string{
	"gpt-4o",
	"claude-3-5-sonnet-20241022",
	"llama-3.1-70b-versatile",
}

// Config holds the server's persistent configuration preferences.
// Provider API keys are read from the environment only and never stored.
type Config struct {
	Addr          string   `json:"addr,omitempty"`           // HTTP listen address
	DBPath        string   `json:"db_path,omitempty"`        // SQLite database file
	DefaultModels []string `json:"default_models,omitempty"` // Models used when a request names none
	Verbose       bool     `json:"verbose"`                  // Debug logging
}

// Manager handles loading and saving the configuration.
type Manager struct {
	configDir string
}

// NewManager creates a new configuration manager.
func NewManager() (*Manager, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config dir: %w", err)
	}

	return &Manager{
		configDir: filepath.Join(configDir, "modelarena"),
	}, nil
}

// GetConfigPath returns the absolute path to the config.json file.
func (m *Manager) GetConfigPath() string {
	return filepath.Join(m.configDir, "config.json")
}

// Load reads the configuration from disk, fills in defaults, and applies
// environment overrides (ARENA_ADDR, ARENA_DB). A missing file is not an
// error.
func (m *Manager) Load() (*Config, error) {
	var cfg Config

	path := m.GetConfigPath()
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config json: %w", err)
		}
	}

	if addr := os.Getenv("ARENA_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if dbPath := os.Getenv("ARENA_DB"); dbPath != "" {
		cfg.DBPath = dbPath
	}

	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(m.configDir, "arena.db")
	}
	if len(cfg.DefaultModels) == 0 {
		cfg.DefaultModels = append([]string(nil), DefaultModels...)
	}

	return &cfg, nil
}

// Save writes the configuration to disk with restricted permissions (0600).
func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(m.configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.GetConfigPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Exists checks if the configuration file has been created.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.GetConfigPath())
	return !os.IsNotExist(err)
}

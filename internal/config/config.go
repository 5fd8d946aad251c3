// Package config reads and writes the per-repository loom
// configuration stored at .loom/config.json.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Backend name constants.
const (
	BackendLocal  = "local"
	BackendKnot   = "knot"
	BackendMemory = "memory"
)

// Config is the flat loom configuration.
type Config struct {
	Version string `json:"version"`

	// DefaultBackend is used when marker-directory detection finds
	// nothing for a repository.
	DefaultBackend string `json:"default_backend,omitempty"`

	// WorkflowsFile points at the workflow descriptor file, relative
	// to the .loom directory.
	WorkflowsFile string `json:"workflows_file,omitempty"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Version:        "1",
		DefaultBackend: BackendLocal,
		WorkflowsFile:  "workflows.yaml",
	}
}

// LoadConfig reads .loom/config.json from the given directory.
// A missing file yields the defaults; a malformed file is an error.
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, ".loom", "config.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.DefaultBackend == "" {
		cfg.DefaultBackend = BackendLocal
	}
	if cfg.WorkflowsFile == "" {
		cfg.WorkflowsFile = "workflows.yaml"
	}
	return cfg, nil
}

// SaveConfig writes config.json under the directory's .loom dir,
// creating it if needed.
func SaveConfig(dir string, cfg *Config) error {
	loomDir := filepath.Join(dir, ".loom")
	if err := os.MkdirAll(loomDir, 0755); err != nil {
		return fmt.Errorf("failed to create .loom dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(loomDir, "config.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// WorkflowsPath resolves the absolute path of the workflow descriptor
// file for a directory.
func (c *Config) WorkflowsPath(dir string) string {
	return filepath.Join(dir, ".loom", c.WorkflowsFile)
}

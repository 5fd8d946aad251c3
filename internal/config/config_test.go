package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.DefaultBackend != BackendLocal {
		t.Errorf("DefaultBackend = %q, want local", cfg.DefaultBackend)
	}
	if cfg.WorkflowsFile != "workflows.yaml" {
		t.Errorf("WorkflowsFile = %q, want workflows.yaml", cfg.WorkflowsFile)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{Version: "1", DefaultBackend: BackendKnot, WorkflowsFile: "flows.yaml"}

	if err := SaveConfig(dir, cfg); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}
	loaded, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if loaded.DefaultBackend != BackendKnot || loaded.WorkflowsFile != "flows.yaml" {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestLoadConfigFillsMissingFields(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".loom"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".loom", "config.json"), []byte(`{"version":"1"}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.DefaultBackend != BackendLocal || cfg.WorkflowsFile != "workflows.yaml" {
		t.Errorf("cfg = %+v, want defaults filled in", cfg)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".loom"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".loom", "config.json"), []byte(`{not json`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(dir); err == nil {
		t.Fatal("LoadConfig() error = nil, want parse failure")
	}
}

func TestWorkflowsPath(t *testing.T) {
	cfg := Default()
	got := cfg.WorkflowsPath("/repo")
	want := filepath.Join("/repo", ".loom", "workflows.yaml")
	if got != want {
		t.Errorf("WorkflowsPath() = %q, want %q", got, want)
	}
}

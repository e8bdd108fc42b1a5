package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if len(cfg.Parse.SearchPath) != 0 {
		t.Errorf("expected empty search path, got %v", cfg.Parse.SearchPath)
	}
	if !cfg.Parse.IncludePrivate {
		t.Error("expected private members included by default")
	}
	if !cfg.Parse.IncludeImports {
		t.Error("expected imports included by default")
	}
	if cfg.Output.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Output.LogLevel)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "unknown log level",
			modify:  func(c *Config) { c.Output.LogLevel = "verbose" },
			wantErr: true,
		},
		{
			name:    "empty log level",
			modify:  func(c *Config) { c.Output.LogLevel = "" },
			wantErr: true,
		},
		{
			name:    "empty search path entry",
			modify:  func(c *Config) { c.Parse.SearchPath = []string{"src", ""} },
			wantErr: true,
		},
		{
			name:    "explicit search path",
			modify:  func(c *Config) { c.Parse.SearchPath = []string{"src"} },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docspec.yaml")
	content := `parse:
  search_path:
    - src
  exclude:
    - "generated/"
  include_private: false
output:
  log_level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if len(cfg.Parse.SearchPath) != 1 || cfg.Parse.SearchPath[0] != "src" {
		t.Errorf("search path = %v", cfg.Parse.SearchPath)
	}
	if len(cfg.Parse.Exclude) != 1 || cfg.Parse.Exclude[0] != "generated/" {
		t.Errorf("exclude = %v", cfg.Parse.Exclude)
	}
	if cfg.Parse.IncludePrivate {
		t.Error("include_private should be overridden to false")
	}
	// Fields absent from the file keep their defaults.
	if !cfg.Parse.IncludeImports {
		t.Error("include_imports should keep its default")
	}
	if cfg.Output.LogLevel != "debug" {
		t.Errorf("log level = %s", cfg.Output.LogLevel)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("parse: [unclosed"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	other := DefaultConfig()
	other.Parse.SearchPath = []string{"lib"}
	other.Parse.Exclude = []string{"vendor/"}
	other.Parse.IncludePrivate = false
	other.Output.LogLevel = "warn"

	base.Merge(other)

	if len(base.Parse.SearchPath) != 1 || base.Parse.SearchPath[0] != "lib" {
		t.Errorf("search path = %v", base.Parse.SearchPath)
	}
	if len(base.Parse.Exclude) != 1 || base.Parse.Exclude[0] != "vendor/" {
		t.Errorf("exclude = %v", base.Parse.Exclude)
	}
	if base.Parse.IncludePrivate {
		t.Error("include_private should take the merged value")
	}
	if base.Output.LogLevel != "warn" {
		t.Errorf("log level = %s", base.Output.LogLevel)
	}

	// Merging nil is a no-op.
	base.Merge(nil)
	if base.Output.LogLevel != "warn" {
		t.Error("nil merge should not change anything")
	}
}

func TestSaveToFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.Parse.SearchPath = []string{"src"}
	cfg.Output.LogLevel = "error"
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if len(loaded.Parse.SearchPath) != 1 || loaded.Parse.SearchPath[0] != "src" {
		t.Errorf("search path = %v", loaded.Parse.SearchPath)
	}
	if loaded.Output.LogLevel != "error" {
		t.Errorf("log level = %s", loaded.Output.LogLevel)
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad source", func(c *Config) { c.Trends.Source = "twitter" }, "trends.source"},
		{"bad category", func(c *Config) { c.Trends.Source = "gnews"; c.Trends.Category = "politics" }, "trends.category"},
		{"bad storage", func(c *Config) { c.Storage.Type = "parquet" }, "storage.type"},
		{"inverted wait", func(c *Config) { c.Chat.Waits.Response = Window{Min: 5 * time.Second, Max: time.Second} }, "chat.waits.response"},
		{"bad template", func(c *Config) { c.Chat.PromptTemplate = "{{.Headline" }, "chat.prompt_template"},
		{"bad chat url", func(c *Config) { c.Chat.URL = "ftp://example.com" }, "chat.url"},
		{"empty prompt box", func(c *Config) { c.Chat.Selectors.PromptBox = "" }, "prompt_box"},
		{"bad exclude", func(c *Config) { c.Trends.Exclude = []string{"("} }, "trends.exclude"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad rotation", func(c *Config) {
			c.Browser.Proxies = []string{"http://127.0.0.1:8080"}
			c.Browser.ProxyRotation = "sticky"
		}, "proxy_rotation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chatprobe.yaml")
	yaml := `
trends:
  source: gnews
  category: technology
  limit: 3
chat:
  waits:
    response:
      min: 2s
      max: 4s
storage:
  type: jsonl
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Trends.Source != "gnews" || cfg.Trends.Category != "technology" {
		t.Errorf("trends not loaded: %+v", cfg.Trends)
	}
	if cfg.Trends.Limit != 3 {
		t.Errorf("expected limit 3, got %d", cfg.Trends.Limit)
	}
	if cfg.Chat.Waits.Response.Max != 4*time.Second {
		t.Errorf("expected response max 4s, got %s", cfg.Chat.Waits.Response.Max)
	}
	if cfg.Storage.Type != "jsonl" {
		t.Errorf("expected jsonl storage, got %q", cfg.Storage.Type)
	}
	// Untouched keys keep their defaults.
	if cfg.Chat.Selectors.PromptBox != "#prompt-textarea" {
		t.Errorf("expected default prompt box selector, got %q", cfg.Chat.Selectors.PromptBox)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CHATPROBE_TRENDS_GEO", "GB")
	t.Setenv("GNEWS_API_KEY", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		// An explicit path that does not exist is an error.
		t.Fatal("expected error for missing explicit config file")
	}

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Trends.Geo != "GB" {
		t.Errorf("expected geo override GB, got %q", cfg.Trends.Geo)
	}
	if cfg.Trends.GNewsAPIKey != "secret" {
		t.Errorf("expected api key from GNEWS_API_KEY, got %q", cfg.Trends.GNewsAPIKey)
	}
}

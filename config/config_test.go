package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("NOTION_TOKEN", "")
	t.Setenv("NOTION_DATABASE_ID", "")
	t.Setenv("FOLIO_ADDR", "")
	t.Setenv("FOLIO_PROVIDER", "")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Relay.Addr != defaultRelayAddr {
		t.Fatalf("Relay.Addr = %q, want %q", cfg.Relay.Addr, defaultRelayAddr)
	}
	if cfg.Gateway.Provider != "gateway" || cfg.Gateway.Model != "groq/llama-3.3-70b-versatile" {
		t.Fatalf("unexpected gateway defaults: %+v", cfg.Gateway)
	}
	if cfg.Relay.MaxInputTokens != defaultMaxInputTokens {
		t.Fatalf("MaxInputTokens = %d", cfg.Relay.MaxInputTokens)
	}
	if cfg.Notion.Configured() {
		t.Fatal("notion should not be configured by default")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("FOLIO_ADDR", "")
	t.Setenv("FOLIO_PROVIDER", "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Gateway.Provider = "openrouter"
	cfg.Gateway.Model = "meta-llama/llama-3.3-70b-instruct"
	cfg.Relay.Addr = "0.0.0.0:9000"
	if err := cfg.SaveFile(path); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if loaded.Gateway.Provider != "openrouter" {
		t.Fatalf("Provider = %q", loaded.Gateway.Provider)
	}
	if loaded.Relay.Addr != "0.0.0.0:9000" {
		t.Fatalf("Addr = %q", loaded.Relay.Addr)
	}
}

func TestApplyDefaultsFillsPartialFile(t *testing.T) {
	t.Setenv("FOLIO_ADDR", "")
	t.Setenv("FOLIO_PROVIDER", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("relay:\n  addr: ':8081'\nlogging:\n  level: debug\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Relay.Addr != ":8081" {
		t.Fatalf("Addr = %q", cfg.Relay.Addr)
	}
	if cfg.Relay.RateLimitPerMinute != defaultRateLimitPerMinute {
		t.Fatalf("RateLimitPerMinute = %d", cfg.Relay.RateLimitPerMinute)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Enabled == nil || !*cfg.Logging.Enabled {
		t.Fatalf("unexpected logging: %+v", cfg.Logging)
	}
	if cfg.Gateway.Model != defaultModel {
		t.Fatalf("Model = %q", cfg.Gateway.Model)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FOLIO_ADDR", "127.0.0.1:4000")
	t.Setenv("NOTION_TOKEN", "secret_abc")
	t.Setenv("NOTION_DATABASE_ID", "db123")
	t.Setenv("FOLIO_PROVIDER", "anthropic")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Relay.Addr != "127.0.0.1:4000" {
		t.Fatalf("Addr = %q", cfg.Relay.Addr)
	}
	if !cfg.Notion.Configured() {
		t.Fatal("notion should be configured from env")
	}
	if cfg.Gateway.Provider != "anthropic" {
		t.Fatalf("Provider = %q", cfg.Gateway.Provider)
	}
}

func TestRedacted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gateway.APIKey = "vck_1234567890abcdef"
	cfg.Notion.Token = "short"

	r := cfg.Redacted()
	if r.Gateway.APIKey != "vck_****cdef" {
		t.Fatalf("APIKey = %q", r.Gateway.APIKey)
	}
	if r.Notion.Token != "****" {
		t.Fatalf("Token = %q", r.Notion.Token)
	}
	if cfg.Gateway.APIKey != "vck_1234567890abcdef" {
		t.Fatal("Redacted() must not modify the receiver")
	}
}

func TestPreferencesPathRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	SetConfigDir(dir)
	t.Cleanup(func() { SetConfigDir("") })

	cfg := DefaultConfig()
	got, err := cfg.PreferencesPath()
	if err != nil {
		t.Fatalf("PreferencesPath() error = %v", err)
	}
	if want := filepath.Join(dir, "preferences.json"); got != want {
		t.Fatalf("PreferencesPath() = %q, want %q", got, want)
	}
}

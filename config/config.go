// Package config handles configuration loading and saving.
package config

import (
	"strings"
)

const (
	configFileName = "config.yaml"
)

var configDirOverride string

// SetConfigDir overrides the config directory for the current process.
// Empty value clears the override.
func SetConfigDir(dir string) {
	configDirOverride = strings.TrimSpace(dir)
}

// Config is the root configuration structure.
type Config struct {
	Relay   RelayConfig   `json:"relay" yaml:"relay"`
	Gateway GatewayConfig `json:"gateway" yaml:"gateway"`
	Notion  NotionConfig  `json:"notion,omitempty" yaml:"notion,omitempty"`
	Client  ClientConfig  `json:"client,omitempty" yaml:"client,omitempty"`
	Logging LoggingConfig `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// RelayConfig configures the HTTP relay (POST /api/chat and friends).
type RelayConfig struct {
	Addr               string   `json:"addr" yaml:"addr"`                                                 // default: 127.0.0.1:3000
	AllowedOrigins     []string `json:"allowedOrigins,omitempty" yaml:"allowedOrigins,omitempty"`         // default: ["*"]
	RateLimitPerMinute int      `json:"rateLimitPerMinute,omitempty" yaml:"rateLimitPerMinute,omitempty"` // per client IP, 0 = default
	RateLimitBurst     int      `json:"rateLimitBurst,omitempty" yaml:"rateLimitBurst,omitempty"`
	MaxBodyBytes       int64    `json:"maxBodyBytes,omitempty" yaml:"maxBodyBytes,omitempty"`
	MaxInputTokens     int      `json:"maxInputTokens,omitempty" yaml:"maxInputTokens,omitempty"`
	ShutdownTimeout    int      `json:"shutdownTimeout,omitempty" yaml:"shutdownTimeout,omitempty"` // seconds
}

// GatewayConfig selects the upstream model provider.
type GatewayConfig struct {
	Provider         string  `json:"provider" yaml:"provider"` // gateway, openrouter, anthropic
	Model            string  `json:"model" yaml:"model"`
	APIKey           string  `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`   // falls back to the provider's env var
	APIBase          string  `json:"apiBase,omitempty" yaml:"apiBase,omitempty"` // optional custom base URL
	MaxTokens        int     `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
	Temperature      float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	SystemPromptFile string  `json:"systemPromptFile,omitempty" yaml:"systemPromptFile,omitempty"` // overrides the built-in persona
}

// NotionConfig points the project directory at a Notion database.
type NotionConfig struct {
	Token      string `json:"token,omitempty" yaml:"token,omitempty"`
	DatabaseID string `json:"databaseId,omitempty" yaml:"databaseId,omitempty"`
	APIBase    string `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
}

// Configured reports whether both Notion credentials are present.
func (n NotionConfig) Configured() bool {
	return strings.TrimSpace(n.Token) != "" && strings.TrimSpace(n.DatabaseID) != ""
}

// ClientConfig configures the terminal chat client.
type ClientConfig struct {
	RelayURL        string `json:"relayUrl,omitempty" yaml:"relayUrl,omitempty"`               // default: http://127.0.0.1:3000
	PreferencesFile string `json:"preferencesFile,omitempty" yaml:"preferencesFile,omitempty"` // relative to the config dir
	RequestTimeout  int    `json:"requestTimeout,omitempty" yaml:"requestTimeout,omitempty"`   // seconds, 0 = none
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Level   string `json:"level,omitempty" yaml:"level,omitempty"`   // debug, info, warn, error
	Format  string `json:"format,omitempty" yaml:"format,omitempty"` // text, json
	Stdout  bool   `json:"stdout,omitempty" yaml:"stdout,omitempty"` // log to stdout
	File    string `json:"file,omitempty" yaml:"file,omitempty"`     // log file path
}

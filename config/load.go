package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fbarrios/folio/logger"
)

const (
	envConfigDir = "FOLIO_CONFIG_DIR"
	envRelayAddr = "FOLIO_ADDR"
	envRelayURL  = "FOLIO_RELAY_URL"
	envNotionKey = "NOTION_TOKEN"
	envNotionDB  = "NOTION_DATABASE_ID"
	envLogLevel  = "FOLIO_LOG_LEVEL"
	envProvider  = "FOLIO_PROVIDER"
)

// ConfigDir returns the configuration directory (~/.folio unless overridden
// by SetConfigDir or FOLIO_CONFIG_DIR).
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return expandHome(configDirOverride)
	}
	if dir := strings.TrimSpace(os.Getenv(envConfigDir)); dir != "" {
		return expandHome(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".folio"), nil
}

// ConfigPath returns the path of config.yaml.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads config.yaml, fills defaults, and applies environment overrides.
// A missing file is not an error: the relay can run on environment alone.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile is Load for an explicit path.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg = DefaultConfig()
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

// Save writes the config to config.yaml, creating the directory if needed.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile is Save for an explicit path.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// applyEnv lets the environment override file values. Provider credentials
// are resolved later by the provider registry, which knows each env key.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(envProvider)); v != "" {
		c.Gateway.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv(envRelayAddr)); v != "" {
		c.Relay.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(envRelayURL)); v != "" {
		c.Client.RelayURL = v
	}
	if v := strings.TrimSpace(os.Getenv(envNotionKey)); v != "" {
		c.Notion.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(envNotionDB)); v != "" {
		c.Notion.DatabaseID = v
	}
	if v := strings.TrimSpace(os.Getenv(envLogLevel)); v != "" {
		c.Logging.Level = v
	}
}

// PreferencesPath returns the absolute path of the panel preferences file.
func (c *Config) PreferencesPath() (string, error) {
	return c.resolve(c.Client.PreferencesFile)
}

// SystemPromptPath returns the absolute path of the system prompt override,
// or "" when none is configured.
func (c *Config) SystemPromptPath() (string, error) {
	if strings.TrimSpace(c.Gateway.SystemPromptFile) == "" {
		return "", nil
	}
	return c.resolve(c.Gateway.SystemPromptFile)
}

func (c *Config) resolve(p string) (string, error) {
	p, err := expandHome(p)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(p) {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, p), nil
}

// BuildLoggerConfig converts the logging section into logger settings.
func (c *Config) BuildLoggerConfig() logger.Config {
	enabled := true
	if c.Logging.Enabled != nil {
		enabled = *c.Logging.Enabled
	}
	return logger.Config{
		Enabled: enabled,
		Level:   c.Logging.Level,
		Format:  c.Logging.Format,
		Stdout:  c.Logging.Stdout,
		File:    c.Logging.File,
	}
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.Relay.AllowedOrigins = append([]string(nil), c.Relay.AllowedOrigins...)
	out.Gateway.APIKey = mask(c.Gateway.APIKey)
	out.Notion.Token = mask(c.Notion.Token)
	return &out
}

func mask(secret string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}

func expandHome(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}

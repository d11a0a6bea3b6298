package config

const (
	defaultProvider           = "gateway"
	defaultModel              = "groq/llama-3.3-70b-versatile"
	defaultMaxTokens          = 1024
	defaultTemperature        = 0.7
	defaultRelayAddr          = "127.0.0.1:3000"
	defaultRelayURL           = "http://127.0.0.1:3000"
	defaultRateLimitPerMinute = 20
	defaultRateLimitBurst     = 5
	defaultMaxBodyBytes       = 1 << 20
	defaultMaxInputTokens     = 24000
	defaultShutdownTimeout    = 10
	defaultPreferencesFile    = "preferences.json"
	defaultNotionAPIBase      = "https://api.notion.com/v1"
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Relay: RelayConfig{
			Addr:               defaultRelayAddr,
			AllowedOrigins:     []string{"*"},
			RateLimitPerMinute: defaultRateLimitPerMinute,
			RateLimitBurst:     defaultRateLimitBurst,
			MaxBodyBytes:       defaultMaxBodyBytes,
			MaxInputTokens:     defaultMaxInputTokens,
			ShutdownTimeout:    defaultShutdownTimeout,
		},
		Gateway: GatewayConfig{
			Provider:    defaultProvider,
			Model:       defaultModel,
			MaxTokens:   defaultMaxTokens,
			Temperature: defaultTemperature,
		},
		Notion: NotionConfig{
			APIBase: defaultNotionAPIBase,
		},
		Client: ClientConfig{
			RelayURL:        defaultRelayURL,
			PreferencesFile: defaultPreferencesFile,
		},
		Logging: defaultLoggingConfig(),
	}
}

func defaultLoggingConfig() LoggingConfig {
	enabled := true
	return LoggingConfig{
		Enabled: &enabled,
		Level:   "info",
		Format:  "text",
		Stdout:  true,
		File:    "logs/folio.log",
	}
}

func (c *Config) applyDefaults() {
	if c.Relay.Addr == "" {
		c.Relay.Addr = defaultRelayAddr
	}
	if len(c.Relay.AllowedOrigins) == 0 {
		c.Relay.AllowedOrigins = []string{"*"}
	}
	if c.Relay.RateLimitPerMinute <= 0 {
		c.Relay.RateLimitPerMinute = defaultRateLimitPerMinute
	}
	if c.Relay.RateLimitBurst <= 0 {
		c.Relay.RateLimitBurst = defaultRateLimitBurst
	}
	if c.Relay.MaxBodyBytes <= 0 {
		c.Relay.MaxBodyBytes = defaultMaxBodyBytes
	}
	if c.Relay.MaxInputTokens <= 0 {
		c.Relay.MaxInputTokens = defaultMaxInputTokens
	}
	if c.Relay.ShutdownTimeout <= 0 {
		c.Relay.ShutdownTimeout = defaultShutdownTimeout
	}

	if c.Gateway.Provider == "" {
		c.Gateway.Provider = defaultProvider
	}
	if c.Gateway.Model == "" && c.Gateway.Provider == defaultProvider {
		c.Gateway.Model = defaultModel
	}
	if c.Gateway.MaxTokens <= 0 {
		c.Gateway.MaxTokens = defaultMaxTokens
	}
	if c.Gateway.Temperature == 0 {
		c.Gateway.Temperature = defaultTemperature
	}

	if c.Notion.APIBase == "" {
		c.Notion.APIBase = defaultNotionAPIBase
	}

	if c.Client.RelayURL == "" {
		c.Client.RelayURL = defaultRelayURL
	}
	if c.Client.PreferencesFile == "" {
		c.Client.PreferencesFile = defaultPreferencesFile
	}

	def := defaultLoggingConfig()
	if c.Logging == (LoggingConfig{}) {
		c.Logging = def
		return
	}

	hasAny := c.Logging.Level != "" || c.Logging.File != "" || c.Logging.Stdout
	if c.Logging.Enabled == nil && hasAny {
		enabled := true
		c.Logging.Enabled = &enabled
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Format
	}
	if c.Logging.File == "" {
		c.Logging.File = def.File
	}
	if !c.Logging.Stdout && c.Logging.File == "" {
		c.Logging.Stdout = def.Stdout
	}
	if c.Logging.Enabled == nil {
		c.Logging.Enabled = def.Enabled
	}
}

// Package provider defines the upstream model interface, the provider
// registry, and the streaming implementations behind the chat relay.
package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Provider streams a completion from an upstream model.
type Provider interface {
	// Name is the registry name (gateway, openrouter, anthropic).
	Name() string
	// Model is the concrete model identifier sent upstream.
	Model() string
	// Stream starts a completion. Transport failures may surface either here
	// or from the returned stream's Err.
	Stream(ctx context.Context, req *Request) (Stream, error)
}

// Stream iterates text deltas of a streaming completion.
type Stream interface {
	// Next advances to the next non-empty text delta.
	Next() bool
	// Delta returns the text delta Next advanced to.
	Delta() string
	// Err returns the first error encountered, nil on a clean end.
	Err() error
	Close() error
}

// Request is a completion request.
type Request struct {
	System   string
	Messages []Message
}

// Message is one conversation turn in the canonical upstream format.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ErrMissingCredential is returned by Build when no API key is configured.
var ErrMissingCredential = errors.New("provider credential is not configured")

// Settings selects and parameterises a provider.
type Settings struct {
	Provider    string
	Model       string
	APIKey      string
	APIBase     string
	MaxTokens   int
	Temperature float64
}

// ProviderConstructor builds a provider for the requested model/runtime settings.
type ProviderConstructor func(apiKey, apiBase, model string, maxTokens int, temperature float64) Provider

// ProviderRegistration defines metadata and constructor for a provider.
type ProviderRegistration struct {
	Models      []string
	EnvKey      string
	EnvBase     string
	DefaultBase string
	KeyURL      string // where users create a key
	Constructor ProviderConstructor
}

// supportedModels is the whitelist of supported models across providers.
var supportedModels = map[string]bool{}

// providerModels maps providers to their supported models.
var providerModels = map[string][]string{}

var providerRegistry = map[string]ProviderRegistration{}

// RegisterProvider registers provider metadata and constructor.
func RegisterProvider(name string, reg ProviderRegistration) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}

	models := make([]string, 0, len(reg.Models))
	for _, model := range reg.Models {
		model = strings.TrimSpace(model)
		if model == "" {
			continue
		}
		models = append(models, model)
		supportedModels[model] = true
	}

	reg.Models = models
	reg.EnvKey = strings.TrimSpace(reg.EnvKey)
	reg.EnvBase = strings.TrimSpace(reg.EnvBase)
	providerRegistry[name] = reg
	providerModels[name] = append([]string(nil), models...)
}

// Registration returns the registration for name.
func Registration(name string) (ProviderRegistration, bool) {
	reg, ok := providerRegistry[strings.TrimSpace(name)]
	return reg, ok
}

// SupportedProviders returns all supported provider names in sorted order.
func SupportedProviders() []string {
	names := make([]string, 0, len(providerModels))
	for name := range providerModels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SupportedModelsForProvider returns supported models for the given provider.
func SupportedModelsForProvider(providerName string) []string {
	models, ok := providerModels[providerName]
	if !ok {
		return nil
	}
	out := make([]string, len(models))
	copy(out, models)
	return out
}

// ValidateProviderModel checks if a model is valid for a provider.
func ValidateProviderModel(providerName, model string) error {
	allowed, ok := providerModels[providerName]
	if !ok {
		return errors.New("unknown provider: " + providerName)
	}
	if !supportedModels[model] {
		return errors.New("unsupported model: " + model)
	}
	for _, m := range allowed {
		if m == model {
			return nil
		}
	}
	return errors.New("model " + model + " is not supported by provider " + providerName)
}

// CredentialEnv returns the env var that carries the provider's API key.
func CredentialEnv(providerName string) string {
	if reg, ok := providerRegistry[providerName]; ok {
		return reg.EnvKey
	}
	return ""
}

// ResolveAPIKey returns the configured key, falling back to the provider's
// env var.
func ResolveAPIKey(providerName, configured string) string {
	if key := strings.TrimSpace(configured); key != "" {
		return key
	}
	if env := CredentialEnv(providerName); env != "" {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

// Build constructs the provider named in s. A missing API key yields an
// error wrapping ErrMissingCredential.
func Build(s Settings) (Provider, error) {
	name := strings.TrimSpace(s.Provider)
	reg, ok := providerRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (supported: %s)", name, strings.Join(SupportedProviders(), ", "))
	}

	model := strings.TrimSpace(s.Model)
	if model == "" && len(reg.Models) > 0 {
		model = reg.Models[0]
	}
	if err := ValidateProviderModel(name, model); err != nil {
		return nil, err
	}

	apiKey := ResolveAPIKey(name, s.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set %s or gateway.apiKey", ErrMissingCredential, reg.EnvKey)
	}

	apiBase := strings.TrimSpace(s.APIBase)
	if apiBase == "" && reg.EnvBase != "" {
		apiBase = strings.TrimSpace(os.Getenv(reg.EnvBase))
	}
	if apiBase == "" {
		apiBase = reg.DefaultBase
	}

	return reg.Constructor(apiKey, apiBase, model, s.MaxTokens, s.Temperature), nil
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// SystemMessage creates a system message.
func SystemMessage(content string) Message {
	return Message{Role: "system", Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}

package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/fbarrios/folio/logger"
)

const (
	anthropicAPIBase          = "https://api.anthropic.com"
	anthropicDefaultMaxTokens = 1024
)

func init() {
	RegisterProvider("anthropic", ProviderRegistration{
		Models:      []string{"claude-3-5-haiku-latest", "claude-sonnet-4-5"},
		EnvKey:      "ANTHROPIC_API_KEY",
		EnvBase:     "ANTHROPIC_API_BASE",
		DefaultBase: anthropicAPIBase,
		KeyURL:      "https://console.anthropic.com",
		Constructor: func(apiKey, apiBase, model string, maxTokens int, temperature float64) Provider {
			return newAnthropicProvider(apiKey, apiBase, model, maxTokens, temperature)
		},
	})
}

// AnthropicProvider streams from the Anthropic Messages API.
type AnthropicProvider struct {
	model       string
	maxTokens   int
	temperature float64
	client      anthropic.Client
}

func newAnthropicProvider(apiKey, apiBase, model string, maxTokens int, temperature float64) *AnthropicProvider {
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	client := anthropic.NewClient(
		aoption.WithAPIKey(apiKey),
		aoption.WithBaseURL(normalizeSDKBaseURL(apiBase, anthropicAPIBase, "/v1/messages")),
		aoption.WithMaxRetries(sdkMaxRetries),
	)
	return &AnthropicProvider{
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		client:      client,
	}
}

func (p *AnthropicProvider) Name() string  { return "anthropic" }
func (p *AnthropicProvider) Model() string { return p.model }

// Stream starts a streaming Messages request.
func (p *AnthropicProvider) Stream(ctx context.Context, req *Request) (Stream, error) {
	system, messages, err := toAnthropicMessages(req)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}

	logger.Info(
		"upstream request",
		"provider", "anthropic",
		"model", p.model,
		"messages", len(req.Messages),
		"inputChars", inputChars(req),
	)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(p.maxTokens),
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if p.temperature != 0 {
		params.Temperature = anthropic.Float(p.temperature)
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	return newTextStream("anthropic", p.model, stream, func(ev anthropic.MessageStreamEventUnion) string {
		delta, ok := ev.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			return ""
		}
		text, ok := delta.Delta.AsAny().(anthropic.TextDelta)
		if !ok {
			return ""
		}
		return text.Text
	}), nil
}

// toAnthropicMessages folds system turns into the system prompt, since the
// Messages API only accepts user and assistant turns.
func toAnthropicMessages(req *Request) (string, []anthropic.MessageParam, error) {
	var system []string
	if s := strings.TrimSpace(req.System); s != "" {
		system = append(system, s)
	}
	out := make([]anthropic.MessageParam, 0, len(req.Messages))
	for i, m := range req.Messages {
		switch m.Role {
		case "system":
			if s := strings.TrimSpace(m.Content); s != "" {
				system = append(system, s)
			}
		case "user":
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case "assistant":
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			return "", nil, fmt.Errorf("message %d: unsupported role %q", i, m.Role)
		}
	}
	return strings.Join(system, "\n\n"), out, nil
}

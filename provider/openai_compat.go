package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/fbarrios/folio/logger"
	openai "github.com/openai/openai-go/v3"
	oaioption "github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	gatewayAPIBase    = "https://ai-gateway.vercel.sh/v1"
	openRouterAPIBase = "https://openrouter.ai/api/v1"

	// The relay reports upstream failures to the client instead of retrying.
	sdkMaxRetries = 0
)

func init() {
	RegisterProvider("gateway", ProviderRegistration{
		Models: []string{
			"groq/llama-3.3-70b-versatile",
			"openai/gpt-4o-mini",
			"anthropic/claude-3.5-haiku",
			"google/gemini-2.0-flash",
		},
		EnvKey:      "AI_GATEWAY_API_KEY",
		EnvBase:     "AI_GATEWAY_API_BASE",
		DefaultBase: gatewayAPIBase,
		KeyURL:      "https://vercel.com/docs/ai-gateway",
		Constructor: func(apiKey, apiBase, model string, maxTokens int, temperature float64) Provider {
			return newOpenAICompatProvider("gateway", apiKey, apiBase, gatewayAPIBase, model, maxTokens, temperature)
		},
	})

	RegisterProvider("openrouter", ProviderRegistration{
		Models: []string{
			"meta-llama/llama-3.3-70b-instruct",
			"openai/gpt-4o-mini",
			"anthropic/claude-3.5-haiku",
		},
		EnvKey:      "OPENROUTER_API_KEY",
		EnvBase:     "OPENROUTER_API_BASE",
		DefaultBase: openRouterAPIBase,
		KeyURL:      "https://openrouter.ai/keys",
		Constructor: func(apiKey, apiBase, model string, maxTokens int, temperature float64) Provider {
			return newOpenAICompatProvider("openrouter", apiKey, apiBase, openRouterAPIBase, model, maxTokens, temperature)
		},
	})
}

// OpenAICompatProvider streams from any OpenAI-compatible chat completions
// endpoint (the AI gateway, OpenRouter).
type OpenAICompatProvider struct {
	providerName string
	apiBase      string
	model        string
	maxTokens    int
	temperature  float64
	client       openai.Client
}

func newOpenAICompatProvider(providerName, apiKey, apiBase, defaultBase, model string, maxTokens int, temperature float64) *OpenAICompatProvider {
	baseURL := normalizeSDKBaseURL(apiBase, defaultBase, "/chat/completions")
	client := openai.NewClient(
		oaioption.WithAPIKey(apiKey),
		oaioption.WithBaseURL(baseURL),
		oaioption.WithMaxRetries(sdkMaxRetries),
	)

	return &OpenAICompatProvider{
		providerName: providerName,
		apiBase:      baseURL,
		model:        model,
		maxTokens:    maxTokens,
		temperature:  temperature,
		client:       client,
	}
}

func (p *OpenAICompatProvider) Name() string  { return p.providerName }
func (p *OpenAICompatProvider) Model() string { return p.model }

// Stream starts a streaming chat completion.
func (p *OpenAICompatProvider) Stream(ctx context.Context, req *Request) (Stream, error) {
	messages, err := toOpenAIChatMessages(req)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}

	logger.Info(
		"upstream request",
		"provider", p.providerName,
		"model", p.model,
		"messages", len(req.Messages),
		"inputChars", inputChars(req),
	)

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
	}
	if p.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.maxTokens))
	}
	if p.temperature != 0 {
		params.Temperature = openai.Float(p.temperature)
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	return newTextStream(p.providerName, p.model, stream, func(chunk openai.ChatCompletionChunk) string {
		if len(chunk.Choices) == 0 {
			return ""
		}
		return chunk.Choices[0].Delta.Content
	}), nil
}

func toOpenAIChatMessages(req *Request) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.System) != "" {
		out = append(out, openai.SystemMessage(req.System))
	}
	for i, m := range req.Messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "user":
			out = append(out, openai.UserMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			return nil, fmt.Errorf("message %d: unsupported role %q", i, m.Role)
		}
	}
	return out, nil
}

// normalizeSDKBaseURL strips an endpoint suffix users sometimes paste into
// apiBase, since the SDK appends it itself.
func normalizeSDKBaseURL(apiBase, defaultBase, endpointSuffix string) string {
	base := strings.TrimSpace(apiBase)
	if base == "" {
		base = defaultBase
	}
	base = strings.TrimRight(base, "/")
	base = strings.TrimSuffix(base, endpointSuffix)
	return strings.TrimRight(base, "/")
}

func inputChars(req *Request) int {
	n := len(req.System)
	for _, m := range req.Messages {
		n += len(m.Content)
	}
	return n
}

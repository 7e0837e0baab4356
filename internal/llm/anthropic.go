package llm

import (
	"context"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	anthropicEnvKey = "ANTHROPIC_API_KEY"
	anthropicModel  = "claude-sonnet-4-5"
)

// AnthropicProvider streams from the Anthropic Messages API.
type AnthropicProvider struct {
	client *anthropic.Client
	apiKey string
	log    *slog.Logger
}

func NewAnthropicProvider(opts ProviderOptions) *AnthropicProvider {
	apiKey := apiKeyOrEnv(opts.APIKey, anthropicEnvKey)
	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	client := anthropic.NewClient(clientOpts...)
	return &AnthropicProvider{
		client: &client,
		apiKey: apiKey,
		log:    opts.logger(),
	}
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

func (p *AnthropicProvider) Chat(ctx context.Context, cfg GenerationConfig, history []Message) (*Response, error) {
	if p.apiKey == "" {
		return nil, &ConfigError{Provider: "anthropic", EnvVar: anthropicEnvKey}
	}

	system, messages := buildAnthropicMessages(history)
	maxTokens := int64(cfg.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = int64(DefaultGenerationConfig().MaxOutputTokens)
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(chooseModel(cfg.Model, anthropicModel)),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	// The API rejects requests that set both temperature and top_p on
	// newer models, so only temperature is forwarded.
	if cfg.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(min(cfg.Temperature, 1)))
	}

	return startSDKStream(ctx, "anthropic", p.log, func(ctx context.Context, emit func(string) bool) error {
		stream := p.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()
		for stream.Next() {
			event := stream.Current()
			delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			text, ok := delta.Delta.AsAny().(anthropic.TextDelta)
			if !ok {
				continue
			}
			if !emit(text.Text) {
				return nil
			}
		}
		return stream.Err()
	}), nil
}

func buildAnthropicMessages(history []Message) (string, []anthropic.MessageParam) {
	system, rest := splitSystem(history)
	out := make([]anthropic.MessageParam, 0, len(rest))
	for _, msg := range rest {
		if msg.Content == "" {
			continue
		}
		block := anthropic.NewTextBlock(msg.Content)
		if msg.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
			continue
		}
		out = append(out, anthropic.NewUserMessage(block))
	}
	return system, out
}

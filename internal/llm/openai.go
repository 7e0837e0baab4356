package llm

import (
	"context"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

const (
	openAIEnvKey = "OPENAI_API_KEY"
	openAIModel  = "gpt-4o-mini"
)

// OpenAIProvider implements Provider using the OpenAI Responses API.
type OpenAIProvider struct {
	client *openai.Client
	apiKey string
	log    *slog.Logger
}

func NewOpenAIProvider(opts ProviderOptions) *OpenAIProvider {
	apiKey := apiKeyOrEnv(opts.APIKey, openAIEnvKey)
	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	client := openai.NewClient(clientOpts...)
	return &OpenAIProvider{
		client: &client,
		apiKey: apiKey,
		log:    opts.logger(),
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Chat(ctx context.Context, cfg GenerationConfig, history []Message) (*Response, error) {
	if p.apiKey == "" {
		return nil, &ConfigError{Provider: "openai", EnvVar: openAIEnvKey}
	}

	system, items := buildOpenAIInput(history)
	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(chooseModel(cfg.Model, openAIModel)),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: items,
		},
	}
	if system != "" {
		params.Instructions = openai.String(system)
	}
	if cfg.MaxOutputTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(cfg.MaxOutputTokens))
	}
	if cfg.Temperature > 0 {
		params.Temperature = openai.Float(float64(cfg.Temperature))
	}
	if cfg.TopP > 0 {
		params.TopP = openai.Float(float64(cfg.TopP))
	}

	return startSDKStream(ctx, "openai", p.log, func(ctx context.Context, emit func(string) bool) error {
		stream := p.client.Responses.NewStreaming(ctx, params)
		defer stream.Close()
		for stream.Next() {
			event := stream.Current()
			if event.Type != "response.output_text.delta" {
				continue
			}
			if !emit(event.AsResponseOutputTextDelta().Delta) {
				return nil
			}
		}
		return stream.Err()
	}), nil
}

func buildOpenAIInput(messages []Message) (string, responses.ResponseInputParam) {
	system, rest := splitSystem(messages)
	items := make(responses.ResponseInputParam, 0, len(rest))
	for _, msg := range rest {
		if msg.Content == "" {
			continue
		}
		role := responses.EasyInputMessageRoleUser
		if msg.Role == RoleAssistant {
			role = responses.EasyInputMessageRoleAssistant
		}
		items = append(items, responses.ResponseInputItemParamOfMessage(msg.Content, role))
	}
	return system, items
}

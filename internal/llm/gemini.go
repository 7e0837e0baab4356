package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/genai"
)

const (
	geminiEnvKey = "GEMINI_API_KEY"
	geminiModel  = "gemini-2.5-flash"
)

// GeminiProvider streams from the Gemini API.
type GeminiProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

func NewGeminiProvider(opts ProviderOptions) *GeminiProvider {
	return &GeminiProvider{
		apiKey:     apiKeyOrEnv(opts.APIKey, geminiEnvKey),
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
		log:        opts.logger(),
	}
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) Chat(ctx context.Context, cfg GenerationConfig, history []Message) (*Response, error) {
	if p.apiKey == "" {
		return nil, &ConfigError{Provider: "gemini", EnvVar: geminiEnvKey}
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     p.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	}
	if p.baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	system, contents := buildGeminiContents(history)
	genCfg := &genai.GenerateContentConfig{}
	if system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if cfg.Temperature > 0 {
		genCfg.Temperature = genai.Ptr(cfg.Temperature)
	}
	if cfg.TopP > 0 {
		genCfg.TopP = genai.Ptr(cfg.TopP)
	}
	if cfg.MaxOutputTokens > 0 {
		genCfg.MaxOutputTokens = int32(cfg.MaxOutputTokens)
	}
	model := chooseModel(cfg.Model, geminiModel)

	return startSDKStream(ctx, "gemini", p.log, func(ctx context.Context, emit func(string) bool) error {
		for resp, err := range client.Models.GenerateContentStream(ctx, model, contents, genCfg) {
			if err != nil {
				return err
			}
			if !emit(resp.Text()) {
				return nil
			}
		}
		return nil
	}), nil
}

func buildGeminiContents(history []Message) (string, []*genai.Content) {
	system, rest := splitSystem(history)
	out := make([]*genai.Content, 0, len(rest))
	for _, msg := range rest {
		if msg.Content == "" {
			continue
		}
		var role genai.Role = genai.RoleUser
		if msg.Role == RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(msg.Content, role))
	}
	return system, out
}

package llm

import (
	"context"
	"encoding/json"
	"strings"
)

const (
	qwenEnvKey     = "DASHSCOPE_API_KEY"
	qwenDefaultURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	qwenModel      = "qwen-turbo"

	openRouterEnvKey     = "OPENROUTER_API_KEY"
	openRouterDefaultURL = "https://openrouter.ai/api/v1/chat/completions"
	openRouterModel      = "openrouter/auto"

	compatDone       = "data: [DONE]"
	compatDataPrefix = "data: "
)

// OpenAICompatProvider speaks the OpenAI chat completions streaming format
// over the line transport. DashScope (qwen) and OpenRouter both expose it.
type OpenAICompatProvider struct {
	lineBackend
	url    string
	envKey string
	model  string
}

// NewQwenProvider targets DashScope's compatible-mode endpoint.
func NewQwenProvider(opts ProviderOptions) *OpenAICompatProvider {
	return newOpenAICompatProvider("qwen", qwenDefaultURL, qwenEnvKey, qwenModel, nil, opts)
}

// NewOpenRouterProvider targets OpenRouter.
func NewOpenRouterProvider(opts ProviderOptions) *OpenAICompatProvider {
	headers := map[string]string{"X-Title": "floatchat"}
	return newOpenAICompatProvider("openrouter", openRouterDefaultURL, openRouterEnvKey, openRouterModel, headers, opts)
}

func newOpenAICompatProvider(name, url, envKey, model string, headers map[string]string, opts ProviderOptions) *OpenAICompatProvider {
	if opts.BaseURL != "" {
		url = opts.BaseURL
	}
	return &OpenAICompatProvider{
		lineBackend: lineBackend{
			name:    name,
			apiKey:  apiKeyOrEnv(opts.APIKey, envKey),
			client:  opts.HTTPClient,
			headers: headers,
			log:     opts.logger(),
		},
		url:    url,
		envKey: envKey,
		model:  model,
	}
}

func (p *OpenAICompatProvider) Name() string {
	return p.name
}

type compatRequest struct {
	Model       string          `json:"model"`
	Messages    []compatMessage `json:"messages"`
	Stream      bool            `json:"stream"`
	Temperature float32         `json:"temperature"`
	TopP        float32         `json:"top_p"`
	MaxTokens   int             `json:"max_tokens"`
}

type compatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type compatChunk struct {
	ID      string `json:"id"`
	Choices []struct {
		Delta struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	} `json:"error"`
}

func (p *OpenAICompatProvider) Chat(ctx context.Context, cfg GenerationConfig, history []Message) (*Response, error) {
	if p.apiKey == "" {
		return nil, &ConfigError{Provider: p.name, EnvVar: p.envKey}
	}

	req := compatRequest{
		Model:       chooseModel(cfg.Model, p.model),
		Messages:    make([]compatMessage, 0, len(history)),
		Stream:      true,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		MaxTokens:   cfg.MaxOutputTokens,
	}
	for _, msg := range history {
		req.Messages = append(req.Messages, compatMessage{Role: msg.Role.String(), Content: msg.Content})
	}

	name := p.name
	return startLineStream(ctx, p.lineBackend, p.url, req, struct{}{}, func(_ *struct{}, line string) (bool, []Message, error) {
		return compatLineProcessor(name, line)
	})
}

// QwenLineProcessor handles one line of a qwen chat completions stream.
// Every "data: " line carries one JSON chunk; other lines are ignored. The
// done marker yields the end message and stops.
func QwenLineProcessor(line string) (cont bool, msgs []Message, err error) {
	return compatLineProcessor("qwen", line)
}

func compatLineProcessor(provider, line string) (bool, []Message, error) {
	if line == "" {
		return true, nil, nil
	}
	if line == compatDone {
		return false, []Message{EndMessage()}, nil
	}
	if !strings.HasPrefix(line, compatDataPrefix) {
		return true, nil, nil
	}

	var chunk compatChunk
	if err := json.Unmarshal([]byte(line[len(compatDataPrefix):]), &chunk); err != nil {
		return false, nil, &ParseError{Provider: provider, Line: line, Err: err}
	}
	if chunk.Error != nil {
		code := strings.Trim(string(chunk.Error.Code), `"`)
		if (code != "" && code != "null") || chunk.Error.Message != "" {
			return false, nil, &ProviderError{
				Provider: provider,
				Code:     code,
				Message:  chunk.Error.Message,
				Raw:      line,
			}
		}
	}

	var msgs []Message
	for _, choice := range chunk.Choices {
		if choice.Delta.Content == "" {
			continue
		}
		msgs = append(msgs, AssistantMessage(choice.Delta.Content))
	}
	return true, msgs, nil
}

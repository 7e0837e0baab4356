package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	cozeEnvKey     = "COZE_ACCESS_TOKEN"
	cozeDefaultURL = "https://api.coze.cn/v3/chat"

	cozeDone       = `data:"[DONE]"`
	cozeDeltaEvent = "event:conversation.message.delta"
	cozeDataPrefix = "data:"
)

// CozeProvider talks to the Coze v3 chat API. The configured model is the
// Coze bot id.
type CozeProvider struct {
	lineBackend
	url string
}

func NewCozeProvider(opts ProviderOptions) *CozeProvider {
	url := opts.BaseURL
	if url == "" {
		url = cozeDefaultURL
	}
	return &CozeProvider{
		lineBackend: lineBackend{
			name:   "coze",
			apiKey: apiKeyOrEnv(opts.APIKey, cozeEnvKey),
			client: opts.HTTPClient,
			log:    opts.logger(),
		},
		url: url,
	}
}

func (p *CozeProvider) Name() string {
	return "coze"
}

type cozeRequest struct {
	BotID              string        `json:"bot_id"`
	UserID             string        `json:"user_id"`
	Stream             bool          `json:"stream"`
	AutoSaveHistory    bool          `json:"auto_save_history"`
	AdditionalMessages []cozeMessage `json:"additional_messages"`
}

type cozeMessage struct {
	Role        string `json:"role"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

type cozeDelta struct {
	Code        int    `json:"code"`
	Msg         string `json:"msg"`
	Role        string `json:"role"`
	Type        string `json:"type"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

func (p *CozeProvider) Chat(ctx context.Context, cfg GenerationConfig, history []Message) (*Response, error) {
	if p.apiKey == "" {
		return nil, &ConfigError{Provider: p.name, EnvVar: cozeEnvKey}
	}

	req := cozeRequest{
		BotID:           cfg.Model,
		UserID:          cfg.ExtendValue("user_id", "default"),
		Stream:          true,
		AutoSaveHistory: false,
	}
	for _, msg := range history {
		req.AdditionalMessages = append(req.AdditionalMessages, cozeMessage{
			Role:        msg.Role.String(),
			Content:     msg.Content,
			ContentType: "text",
		})
	}

	return startLineStream(ctx, p.lineBackend, p.url, req, false, cozeProcess)
}

func cozeProcess(inDelta *bool, line string) (bool, []Message, error) {
	cont, msg, err := CozeLineProcessor(inDelta, line)
	if msg == nil {
		return cont, nil, err
	}
	return cont, []Message{*msg}, err
}

// CozeLineProcessor handles one line of a Coze event stream. A delta event
// spans two lines: an "event:" line that arms inDelta, then a "data:" line
// carrying the JSON payload. It returns the fragment to emit, if any, and
// whether reading should continue. The done marker yields the end message
// and stops.
func CozeLineProcessor(inDelta *bool, line string) (cont bool, msg *Message, err error) {
	if line == cozeDone {
		end := EndMessage()
		return false, &end, nil
	}

	if !*inDelta {
		if line == cozeDeltaEvent {
			*inDelta = true
			return true, nil, nil
		}
		if strings.HasPrefix(line, "{") {
			// A non-streaming error body sent with a 200 status.
			if perr := cozeInlineError(line); perr != nil {
				return false, nil, perr
			}
		}
		return true, nil, nil
	}

	*inDelta = false
	if !strings.HasPrefix(line, cozeDataPrefix) {
		return false, nil, &ParseError{Provider: "coze", Line: line, Err: errors.New("missing data prefix")}
	}

	var delta cozeDelta
	if err := json.Unmarshal([]byte(line[len(cozeDataPrefix):]), &delta); err != nil {
		return false, nil, &ParseError{Provider: "coze", Line: line, Err: err}
	}
	if delta.Code != 0 {
		return false, nil, &ProviderError{
			Provider: "coze",
			Code:     fmt.Sprint(delta.Code),
			Message:  delta.Msg,
			Raw:      line,
		}
	}
	if delta.Content == "" {
		return true, nil, nil
	}

	role := RoleAssistant
	if delta.Role != "" {
		role = ParseRole(delta.Role)
	}
	out := NewMessage(role, delta.Content)
	return true, &out, nil
}

func cozeInlineError(line string) error {
	var body struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal([]byte(line), &body); err != nil || body.Code == 0 {
		return nil
	}
	return &ProviderError{Provider: "coze", Code: fmt.Sprint(body.Code), Message: body.Msg, Raw: line}
}

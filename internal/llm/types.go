package llm

import (
	"maps"
	"strings"
)

// Role identifies who authored a message. Values other than the four
// named roles are kept verbatim so provider-supplied roles survive a
// round trip.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ParseRole maps a provider role string onto a Role. Matching is case
// insensitive; unknown roles are returned lowercased.
func ParseRole(s string) Role {
	return Role(strings.ToLower(s))
}

// Known reports whether r is one of the named roles.
func (r Role) Known() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// Message is a single chat message. An empty Content marks the end of a
// response stream.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	CallID  string `json:"call_id,omitempty"`
}

func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

func SystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

func UserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

func AssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// EndMessage is the end-of-stream sentinel pushed by adapters.
func EndMessage() Message {
	return Message{Role: RoleAssistant}
}

// IsEnd reports whether m is the end-of-stream sentinel.
func (m Message) IsEnd() bool {
	return m.Content == ""
}

// History is a small builder for message lists.
//
//	msgs := llm.NewHistory("you are terse").User("hi").Messages()
type History struct {
	list []Message
}

// NewHistory starts a history with a system message. An empty system
// prompt starts an empty history.
func NewHistory(system string) *History {
	h := &History{}
	if system != "" {
		h.list = append(h.list, SystemMessage(system))
	}
	return h
}

func (h *History) User(content string) *History {
	h.list = append(h.list, UserMessage(content))
	return h
}

func (h *History) Assistant(content string) *History {
	h.list = append(h.list, AssistantMessage(content))
	return h
}

// Messages returns a copy of the accumulated messages.
func (h *History) Messages() []Message {
	out := make([]Message, len(h.list))
	copy(out, h.list)
	return out
}

// GenerationConfig holds per-request generation parameters. Extend
// carries provider-specific keys (e.g. Coze's user_id).
type GenerationConfig struct {
	Model           string            `json:"model" yaml:"model"`
	Temperature     float32           `json:"temperature" yaml:"temperature"`
	TopP            float32           `json:"top_p" yaml:"top_p"`
	MaxOutputTokens int               `json:"max_output_tokens" yaml:"max_output_tokens"`
	Stream          bool              `json:"stream" yaml:"stream"` // adapters always stream
	Extend          map[string]string `json:"extend,omitempty" yaml:"extend,omitempty"`
}

// DefaultGenerationConfig returns temperature 1.0, top_p 0.9, 512 output
// tokens and streaming enabled.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     1.0,
		TopP:            0.9,
		MaxOutputTokens: 512,
		Stream:          true,
	}
}

// Clone returns a deep copy so callers can hand the config to a provider
// without sharing the Extend map.
func (c GenerationConfig) Clone() GenerationConfig {
	out := c
	if c.Extend != nil {
		out.Extend = maps.Clone(c.Extend)
	}
	return out
}

func (c GenerationConfig) WithModel(model string) GenerationConfig {
	out := c.Clone()
	out.Model = model
	return out
}

func (c GenerationConfig) WithTemperature(t float32) GenerationConfig {
	out := c.Clone()
	out.Temperature = t
	return out
}

func (c GenerationConfig) WithStream(stream bool) GenerationConfig {
	out := c.Clone()
	out.Stream = stream
	return out
}

func (c GenerationConfig) WithExtend(key, value string) GenerationConfig {
	out := c.Clone()
	if out.Extend == nil {
		out.Extend = make(map[string]string)
	}
	out.Extend[key] = value
	return out
}

// ExtendValue returns Extend[key] or fallback when unset or empty.
func (c GenerationConfig) ExtendValue(key, fallback string) string {
	if v, ok := c.Extend[key]; ok && v != "" {
		return v
	}
	return fallback
}

package serve

import (
	"context"
	"errors"

	"github.com/floatchat/floatchat/internal/agent"
	"github.com/floatchat/floatchat/internal/llm"
)

// WireEvent is the JSON envelope sent server->client.
// Every stream event has a monotonic Seq for catchup replay.
type WireEvent struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"`

	// session_ready
	SessionID string        `json:"session_id,omitempty"`
	Backend   string        `json:"backend,omitempty"`
	History   []HistoryItem `json:"history,omitempty"`

	// catchup
	Events []WireEvent `json:"events,omitempty"`

	// text_delta / error
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

type HistoryItem struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ClientEvent is the JSON envelope sent client->server.
type ClientEvent struct {
	Type string `json:"type"`

	// message
	Text string `json:"text,omitempty"`
}

const (
	EventSessionReady = "session_ready"
	EventCatchup      = "catchup"
	EventTextDelta    = "text_delta"
	EventMessageDone  = "message_done"
	EventError        = "error"
	EventCancelled    = "cancelled"
	EventReset        = "reset_done"

	ClientMessage   = "message"
	ClientInterrupt = "interrupt"
	ClientReset     = "reset"
)

// Error codes carried by error events.
const (
	CodeBusy      = "busy"
	CodeConfig    = "config"
	CodeTransport = "transport"
	CodeProvider  = "provider"
	CodeRateLimit = "rate_limited"
	CodeParse     = "parse"
	CodeInvalid   = "invalid"
	CodeInternal  = "internal"
)

func errorCode(err error) string {
	var perr *llm.ProviderError
	switch {
	case errors.Is(err, agent.ErrBusy):
		return CodeBusy
	case errors.Is(err, llm.ErrConfiguration):
		return CodeConfig
	case errors.As(err, &perr) && perr.IsRateLimited():
		return CodeRateLimit
	case errors.Is(err, llm.ErrProvider):
		return CodeProvider
	case errors.Is(err, llm.ErrParse):
		return CodeParse
	case errors.Is(err, llm.ErrTransport), errors.Is(err, context.Canceled):
		return CodeTransport
	case errors.Is(err, agent.ErrEmptyQuery):
		return CodeInvalid
	}
	return CodeInternal
}

func errorEvent(err error) WireEvent {
	return WireEvent{Type: EventError, Message: err.Error(), Code: errorCode(err)}
}

func historyItems(msgs []llm.Message) []HistoryItem {
	items := make([]HistoryItem, 0, len(msgs))
	for _, msg := range msgs {
		items = append(items, HistoryItem{Role: msg.Role.String(), Text: msg.Content})
	}
	return items
}

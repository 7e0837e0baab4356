package exitcode

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/floatchat/floatchat/internal/agent"
	"github.com/floatchat/floatchat/internal/llm"
)

func TestFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, Success},
		{"plain", errors.New("x"), Error},
		{"explicit", ExitError{Code: Usage, Message: "bad flag"}, Usage},
		{"cancel", Cancel(), Cancelled},
		{"turn cancelled", agent.ErrCancelled, Cancelled},
		{"context", fmt.Errorf("ask: %w", context.Canceled), Cancelled},
		{"config", &llm.ConfigError{Provider: "qwen", EnvVar: "DASHSCOPE_API_KEY"}, Config},
		{"busy", &agent.BusyError{Status: agent.StatusBusy}, Busy},
		{"provider", &llm.ProviderError{Provider: "coze", Code: "4000"}, Provider},
		{"parse", &llm.ParseError{Provider: "qwen", Line: "data: {"}, Parse},
		{"transport", fmt.Errorf("turn: %w", &llm.TransportError{Provider: "coze", Err: errors.New("reset")}), Transport},
		{"transport wrapping cancel", &llm.TransportError{Provider: "mock", Err: context.Canceled}, Cancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := For(tt.err); got != tt.want {
				t.Errorf("For(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

package llm

import (
	"context"
	"errors"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

// sdkRun drives a vendor SDK stream, calling emit for every text delta.
// emit returns false once the consumer is gone; run should stop then.
type sdkRun func(ctx context.Context, emit func(text string) bool) error

// startSDKStream runs fn on a goroutine and adapts it to the Response
// contract: fragments in order, then the end marker or one error. The
// sender is closed on every exit.
func startSDKStream(ctx context.Context, name string, log *slog.Logger, fn sdkRun) *Response {
	if log == nil {
		log = ProviderOptions{}.logger()
	}
	streamCtx, resp, sender := NewResponseContext(ctx)

	go func() {
		defer sender.Close()

		dropped := false
		emit := func(text string) bool {
			if text == "" {
				return true
			}
			if err := sender.SendMessage(AssistantMessage(text)); err != nil {
				log.Warn("dropping stream item", "backend", name, "error", err)
				dropped = true
				return false
			}
			return true
		}

		err := fn(streamCtx, emit)
		if dropped {
			return
		}
		if err != nil {
			_ = sender.SendError(sdkError(name, err))
			return
		}
		_ = sender.SendMessage(EndMessage())
	}()

	return resp
}

// sdkError maps vendor API errors to ProviderError and everything else to
// TransportError. Errors already in the taxonomy pass through.
func sdkError(provider string, err error) error {
	if errors.Is(err, ErrProvider) || errors.Is(err, ErrParse) || errors.Is(err, ErrTransport) {
		return err
	}
	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return &ProviderError{
			Provider:   provider,
			StatusCode: oaiErr.StatusCode,
			Code:       oaiErr.Code,
			Message:    oaiErr.Message,
		}
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return &ProviderError{
			Provider:   provider,
			StatusCode: antErr.StatusCode,
			Message:    antErr.Error(),
		}
	}
	return &TransportError{Provider: provider, Err: err}
}

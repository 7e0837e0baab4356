package llm

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrTransport     = errors.New("transport error")
	ErrParse         = errors.New("parse error")
	ErrProvider      = errors.New("provider error")

	// ErrStreamClosed is returned by Response.Next once the producer has
	// finished and every queued item was consumed.
	ErrStreamClosed = errors.New("response stream closed")

	// ErrConsumerClosed is returned by Sender.Send after the consumer
	// dropped the response.
	ErrConsumerClosed = errors.New("response consumer closed")
)

// ConfigError reports a provider that cannot run, typically because no
// credential is configured. It is returned before any network I/O.
type ConfigError struct {
	Provider string
	EnvVar   string
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("%s: api key is empty, please set env[%s]", e.Provider, e.EnvVar)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

// TransportError wraps network and connection failures.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ParseError reports a malformed or unexpected wire frame.
type ParseError struct {
	Provider string
	Line     string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: parse %q: %v", e.Provider, truncate(e.Line, 120), e.Err)
	}
	return fmt.Sprintf("%s: parse %q", e.Provider, truncate(e.Line, 120))
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// ProviderError is an application-level failure reported by the backend,
// either as an HTTP status or as an error code inside a stream frame. Raw
// holds the frame verbatim when the error came from the stream.
type ProviderError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
	Raw        string
}

func (e *ProviderError) Error() string {
	switch {
	case e.Raw != "":
		return fmt.Sprintf("%s: %s", e.Provider, e.Raw)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
	case e.Code != "":
		return fmt.Sprintf("%s: code %s: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// IsRateLimited reports an HTTP 429 response.
func (e *ProviderError) IsRateLimited() bool {
	return e.StatusCode == 429
}

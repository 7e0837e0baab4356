package exitcode

import (
	"context"
	"errors"

	"github.com/floatchat/floatchat/internal/agent"
	"github.com/floatchat/floatchat/internal/llm"
)

// Exit codes for floatchat commands
const (
	Success   = 0
	Error     = 1
	Usage     = 2
	Config    = 3
	Transport = 4
	Provider  = 5
	Parse     = 6
	Busy      = 7
	Cancelled = 130 // 128 + SIGINT
)

// ExitError is an error that carries a specific exit code
type ExitError struct {
	Code    int
	Message string
}

func (e ExitError) Error() string {
	return e.Message
}

func Cancel() ExitError { return ExitError{Code: Cancelled, Message: "cancelled"} }

// For maps an error to an exit code using the error taxonomy.
func For(err error) int {
	var exitErr ExitError
	switch {
	case err == nil:
		return Success
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, agent.ErrCancelled), errors.Is(err, context.Canceled):
		return Cancelled
	case errors.Is(err, llm.ErrConfiguration):
		return Config
	case errors.Is(err, agent.ErrBusy):
		return Busy
	case errors.Is(err, llm.ErrProvider):
		return Provider
	case errors.Is(err, llm.ErrParse):
		return Parse
	case errors.Is(err, llm.ErrTransport):
		return Transport
	}
	return Error
}

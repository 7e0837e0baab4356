package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/floatchat/floatchat/internal/httpstream"
)

var errIncompleteStream = errors.New("stream ended before completion")

// lineProcessor interprets one line of a backend's wire protocol. It returns
// whether reading should continue, any fragments to emit (an end marker
// included), and an error that terminates the stream.
type lineProcessor[S any] func(state *S, line string) (cont bool, msgs []Message, err error)

// lineBackend is the transport configuration shared by adapters that speak
// a hand-rolled line protocol.
type lineBackend struct {
	name    string
	apiKey  string
	client  *http.Client
	headers map[string]string
	log     *slog.Logger
}

// startLineStream POSTs body as JSON to url and feeds each response line to
// process on the transport's read loop. The returned Response is closed on
// the producer side whenever the loop exits.
func startLineStream[S any](ctx context.Context, b lineBackend, url string, body any, state S, process lineProcessor[S]) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", b.name, err)
	}

	reqCtx, resp, sender := NewResponseContext(ctx)
	err = httpstream.Open(reqCtx, b.client, httpstream.Request{
		Method: http.MethodPost,
		URL:    url,
		Prepare: func(req *http.Request) error {
			req.Body = io.NopCloser(bytes.NewReader(payload))
			req.ContentLength = int64(len(payload))
			req.Header.Set("Authorization", "Bearer "+b.apiKey)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "text/event-stream")
			for k, v := range b.headers {
				req.Header.Set(k, v)
			}
			return nil
		},
		OnExit: sender.Close,
	}, state, lineHandler(b, sender, process))
	if err != nil {
		resp.Close()
		return nil, openError(b.name, err)
	}
	return resp, nil
}

func lineHandler[S any](b lineBackend, sender *Sender, process lineProcessor[S]) httpstream.Handler[S] {
	send := func(res Result) bool {
		if err := sender.Send(res); err != nil {
			b.log.Warn("dropping stream item", "backend", b.name, "error", err)
			return false
		}
		return true
	}

	return func(state *S, line httpstream.Line) bool {
		switch {
		case line.Err != nil:
			send(Result{Err: &TransportError{Provider: b.name, Err: line.Err}})
			return false
		case line.End:
			send(Result{Err: &TransportError{Provider: b.name, Err: errIncompleteStream}})
			return false
		}

		cont, msgs, err := process(state, line.Text)
		for _, msg := range msgs {
			if !send(Result{Message: msg}) {
				return false
			}
		}
		if err != nil {
			var perr *ParseError
			if errors.As(err, &perr) {
				b.log.Debug("malformed stream line", "backend", b.name, "line", truncate(line.Text, 200))
			}
			send(Result{Err: err})
			return false
		}
		return cont
	}
}

// openError converts a transport failure from Open into the error taxonomy.
func openError(provider string, err error) error {
	var status *httpstream.StatusError
	if errors.As(err, &status) {
		return &ProviderError{
			Provider:   provider,
			StatusCode: status.StatusCode,
			Message:    statusMessage(status),
		}
	}
	return &TransportError{Provider: provider, Err: err}
}

func statusMessage(status *httpstream.StatusError) string {
	if status.Body != "" {
		return status.Body
	}
	return status.Status
}

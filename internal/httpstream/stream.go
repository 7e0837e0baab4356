// Package httpstream opens a streaming HTTP request and feeds the response
// body, line by line, to a handler running in a background goroutine.
//
// It is the shared transport under every line-oriented backend adapter:
// adapters own the wire protocol, this package owns the connection and
// the read loop.
package httpstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultClient is used when Open is given a nil client. There is no
// overall timeout because responses stream for as long as the backend
// keeps generating.
var DefaultClient = &http.Client{
	Transport: &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: 2 * time.Minute,
		IdleConnTimeout:       90 * time.Second,
	},
}

const (
	readBufferSize = 4096
	errorBodyLimit = 4096
)

// Line is one unit delivered to a Handler.
//
// A regular line has End == false and Err == nil; its Text may be empty
// (SSE uses blank lines as separators). End is set exactly once, with empty
// Text, when the server closes the body. Err is set at most once, when a
// read fails.
type Line struct {
	Text string
	End  bool
	Err  error
}

// Handler receives each line together with the per-connection state.
// Returning false stops the read loop. The handler runs on the read loop
// goroutine and must not block for long.
type Handler[S any] func(state *S, line Line) bool

// Request describes the connection to open.
type Request struct {
	Method string
	URL    string

	// Prepare customises the request (headers, body) before it is sent.
	Prepare func(*http.Request) error

	// OnExit runs exactly once when the stream is finished with, whether
	// the request failed to send, the handler stopped the loop, the body
	// ended or a read failed.
	OnExit func()
}

// Error is a failure to build or send the request.
type Error struct {
	Op  string
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("httpstream: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("httpstream: unexpected status %s", e.Status)
	}
	return fmt.Sprintf("httpstream: unexpected status %s: %s", e.Status, e.Body)
}

// Open sends the request and, on a 2xx response, starts a goroutine that
// reads the body one chunk at a time and hands each complete line to
// handle. Errors that occur before the goroutine starts are returned
// directly and the handler is never called.
func Open[S any](ctx context.Context, client *http.Client, req Request, state S, handle Handler[S]) (err error) {
	started := false
	defer func() {
		if !started && req.OnExit != nil {
			req.OnExit()
		}
	}()

	if client == nil {
		client = DefaultClient
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, nil)
	if err != nil {
		return &Error{Op: "build", URL: req.URL, Err: err}
	}
	if req.Prepare != nil {
		if err := req.Prepare(httpReq); err != nil {
			return &Error{Op: "prepare", URL: req.URL, Err: err}
		}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return &Error{Op: "send", URL: req.URL, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	started = true
	go readLoop(resp.Body, req.OnExit, state, handle)
	return nil
}

func readLoop[S any](body io.ReadCloser, onExit func(), state S, handle Handler[S]) {
	defer func() {
		if onExit != nil {
			onExit()
		}
	}()
	defer body.Close()

	var (
		buf     = make([]byte, readBufferSize)
		pending []byte
	)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for {
				idx := bytes.IndexByte(pending, '\n')
				if idx < 0 {
					break
				}
				text := decodeLine(pending[:idx])
				pending = pending[idx+1:]
				if !handle(&state, Line{Text: text}) {
					return
				}
			}
		}
		if err == io.EOF {
			if len(pending) > 0 {
				if !handle(&state, Line{Text: decodeLine(pending)}) {
					return
				}
			}
			handle(&state, Line{End: true})
			return
		}
		if err != nil {
			handle(&state, Line{Err: err})
			return
		}
	}
}

// decodeLine converts raw bytes to text, replacing invalid UTF-8 and
// dropping a trailing carriage return.
func decodeLine(raw []byte) string {
	raw = bytes.TrimSuffix(raw, []byte{'\r'})
	return strings.ToValidUTF8(string(raw), "�")
}

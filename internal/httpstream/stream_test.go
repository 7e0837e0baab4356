package httpstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	lines []Line
}

func collect(t *testing.T, srv *httptest.Server, stopAfter int) ([]Line, int32) {
	t.Helper()

	var exits atomic.Int32
	done := make(chan []Line, 1)
	handle := func(r *recorder, line Line) bool {
		r.lines = append(r.lines, line)
		if line.End || line.Err != nil {
			done <- r.lines
			return false
		}
		if stopAfter > 0 && len(r.lines) >= stopAfter {
			done <- r.lines
			return false
		}
		return true
	}

	err := Open(context.Background(), srv.Client(), Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		OnExit: func() { exits.Add(1) },
	}, recorder{}, handle)
	require.NoError(t, err)

	select {
	case lines := <-done:
		require.Eventually(t, func() bool { return exits.Load() == 1 }, time.Second, 5*time.Millisecond)
		return lines, exits.Load()
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not finish")
		return nil, 0
	}
}

func texts(lines []Line) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.End {
			out = append(out, "<end>")
			continue
		}
		out = append(out, l.Text)
	}
	return out
}

func TestOpenDeliversLinesThenEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "one\r\n\ntwo\nthree")
	}))
	defer srv.Close()

	lines, exits := collect(t, srv, 0)
	assert.Equal(t, []string{"one", "", "two", "three", "<end>"}, texts(lines))
	assert.Equal(t, int32(1), exits)
}

func TestOpenJoinsLinesSplitAcrossWrites(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for _, part := range []string{"data: {\"a\"", ":1}\ndata", ": [DONE]\n"} {
			fmt.Fprint(w, part)
			flusher.Flush()
			time.Sleep(5 * time.Millisecond)
		}
	}))
	defer srv.Close()

	lines, _ := collect(t, srv, 0)
	assert.Equal(t, []string{`data: {"a":1}`, "data: [DONE]", "<end>"}, texts(lines))
}

func TestOpenHandlesLongLines(t *testing.T) {
	long := strings.Repeat("x", 3*readBufferSize+17)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s\nshort\n", long)
	}))
	defer srv.Close()

	lines, _ := collect(t, srv, 0)
	require.Len(t, lines, 3)
	assert.Equal(t, long, lines[0].Text)
	assert.Equal(t, "short", lines[1].Text)
	assert.True(t, lines[2].End)
}

func TestOpenReplacesInvalidUTF8(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\xff\xfe\n"))
	}))
	defer srv.Close()

	lines, _ := collect(t, srv, 0)
	require.NotEmpty(t, lines)
	assert.Equal(t, "ok�", lines[0].Text)
}

func TestOpenHandlerStopsLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "a\nb\nc\nd\n")
	}))
	defer srv.Close()

	lines, exits := collect(t, srv, 2)
	assert.Equal(t, []string{"a", "b"}, texts(lines))
	assert.Equal(t, int32(1), exits)
}

func TestOpenStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, strings.Repeat("e", 2*errorBodyLimit))
	}))
	defer srv.Close()

	var exits atomic.Int32
	called := false
	err := Open(context.Background(), srv.Client(), Request{
		URL:    srv.URL,
		OnExit: func() { exits.Add(1) },
	}, 0, func(*int, Line) bool {
		called = true
		return true
	})

	var status *StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusTooManyRequests, status.StatusCode)
	assert.Len(t, status.Body, errorBodyLimit)
	assert.Equal(t, int32(1), exits.Load())
	assert.False(t, called)
}

func TestOpenSendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	var exits atomic.Int32
	err := Open(context.Background(), nil, Request{
		URL:    url,
		OnExit: func() { exits.Add(1) },
	}, 0, func(*int, Line) bool { return true })

	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "send", serr.Op)
	assert.Equal(t, int32(1), exits.Load())
}

func TestOpenPrepareError(t *testing.T) {
	var exits atomic.Int32
	prepErr := errors.New("no body")
	err := Open(context.Background(), nil, Request{
		URL:     "http://127.0.0.1:0",
		Prepare: func(*http.Request) error { return prepErr },
		OnExit:  func() { exits.Add(1) },
	}, 0, func(*int, Line) bool { return true })

	require.ErrorIs(t, err, prepErr)
	assert.Equal(t, int32(1), exits.Load())
}

func TestOpenPrepareSetsHeaders(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- r.Header.Get("Authorization") + " " + string(body)
	}))
	defer srv.Close()

	done := make(chan struct{})
	err := Open(context.Background(), srv.Client(), Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		Prepare: func(req *http.Request) error {
			req.Header.Set("Authorization", "Bearer x")
			req.Body = io.NopCloser(strings.NewReader("payload"))
			return nil
		},
		OnExit: func() { close(done) },
	}, 0, func(*int, Line) bool { return true })
	require.NoError(t, err)

	assert.Equal(t, "Bearer x payload", <-got)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("OnExit not called")
	}
}

func TestOpenReadErrorDeliveredOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		fmt.Fprint(w, "partial\n")
		w.(http.Flusher).Flush()
		hj, ok := w.(http.Hijacker)
		if !ok {
			return
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer srv.Close()

	var errs atomic.Int32
	exited := make(chan struct{})
	err := Open(context.Background(), srv.Client(), Request{
		URL:    srv.URL,
		OnExit: func() { close(exited) },
	}, 0, func(_ *int, line Line) bool {
		if line.Err != nil {
			errs.Add(1)
		}
		return true
	})
	require.NoError(t, err)

	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("OnExit not called")
	}
	assert.Equal(t, int32(1), errs.Load())
}

func TestOpenContextCancelStopsRead(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "first\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan struct{})
	exited := make(chan struct{})
	var sawErr atomic.Bool
	err := Open(ctx, srv.Client(), Request{
		URL:    srv.URL,
		OnExit: func() { close(exited) },
	}, 0, func(_ *int, line Line) bool {
		switch {
		case line.Text == "first":
			close(first)
		case line.Err != nil:
			sawErr.Store(true)
		}
		return true
	})
	require.NoError(t, err)

	<-first
	cancel()
	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not stop the read loop")
	}
	assert.True(t, sawErr.Load())
}

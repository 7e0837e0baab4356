package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/floatchat/floatchat/internal/llm"
	"github.com/floatchat/floatchat/internal/session"
)

var errNoEndMarker = errors.New("response closed without an end marker")

// watcher drains one turn's response, forwards fragments to the live view
// and commits or rolls back the turn. It holds its own references to the
// store and status cell so it does not depend on the Agent.
type watcher struct {
	store  *session.Store
	status *statusCell
	resp   *llm.Response
	view   *LiveView
	log    *slog.Logger
	start  time.Time
}

// run settles the history and releases the status cell before the terminal
// item reaches the live view, so a caller that sees the end of a turn can
// start the next one straight away.
func (w *watcher) run() {
	reply, fragments, err := w.drain()
	w.resp.Close()

	switch {
	case err != nil:
		w.store.PopLast()
		w.log.Warn("turn rolled back", "error", err, "fragments", fragments)
	case w.status.Load() == StatusCancelRequested:
		err = ErrCancelled
		w.store.PopLast()
		w.log.Info("turn cancelled", "fragments", fragments)
	default:
		// an empty reply still commits
		w.store.Append(llm.AssistantMessage(reply))
		w.log.Debug("turn committed", "fragments", fragments, "chars", len(reply), "elapsed", time.Since(w.start))
	}
	w.status.release()

	if err != nil {
		w.view.pushErr(err)
		return
	}
	w.view.pushEnd()
}

// drain forwards fragments until the end marker or a failure.
func (w *watcher) drain() (string, int, error) {
	var reply strings.Builder
	fragments := 0
	for {
		msg, err := w.resp.Next(context.Background())
		if err != nil {
			if errors.Is(err, llm.ErrStreamClosed) {
				err = &llm.TransportError{Provider: "agent", Err: errNoEndMarker}
			}
			return reply.String(), fragments, err
		}
		if msg.IsEnd() {
			return reply.String(), fragments, nil
		}
		fragments++
		reply.WriteString(msg.Content)
		w.view.pushText(msg.Content)
	}
}

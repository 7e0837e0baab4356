// Package agent runs conversations against an llm.Provider. An Agent owns
// one history and allows at most one turn in flight; output streams to the
// caller through a LiveView while the turn is running, and the history only
// changes once the turn commits or rolls back.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/floatchat/floatchat/internal/llm"
	"github.com/floatchat/floatchat/internal/session"
)

const (
	// DefaultMaxHistory is the number of prior messages sent with a turn.
	DefaultMaxHistory = 30

	// DefaultPrompt is the system prompt used when none is configured.
	DefaultPrompt = "## ROLE: you are a ai assistant."
)

// Option configures an Agent.
type Option func(*Agent)

// WithPrompt sets the system prompt. An empty prompt sends no system
// message.
func WithPrompt(prompt string) Option {
	return func(a *Agent) { a.prompt = prompt }
}

// WithMaxHistory bounds how many prior messages are sent with each turn.
func WithMaxHistory(n int) Option {
	return func(a *Agent) {
		if n >= 0 {
			a.maxHistory = n
		}
	}
}

// WithConfig sets the generation parameters.
func WithConfig(cfg llm.GenerationConfig) Option {
	return func(a *Agent) { a.cfg = cfg.Clone() }
}

// WithHistory seeds the conversation.
func WithHistory(msgs []llm.Message) Option {
	return func(a *Agent) { a.store.Replace(msgs) }
}

func WithLogger(log *slog.Logger) Option {
	return func(a *Agent) {
		if log != nil {
			a.log = log
		}
	}
}

func WithID(id string) Option {
	return func(a *Agent) {
		if id != "" {
			a.id = id
		}
	}
}

// Agent is a single conversation bound to one provider.
type Agent struct {
	id       string
	provider llm.Provider
	store    *session.Store
	status   *statusCell
	log      *slog.Logger

	mu         sync.RWMutex
	prompt     string
	cfg        llm.GenerationConfig
	maxHistory int

	deleted atomic.Bool
	turns   atomic.Int64
}

// New creates an agent with the default prompt, a history window of
// DefaultMaxHistory and llm.DefaultGenerationConfig.
func New(p llm.Provider, opts ...Option) *Agent {
	a := &Agent{
		id:         session.NewID(),
		provider:   p,
		store:      session.NewStore(),
		status:     newStatusCell(),
		log:        slog.New(slog.DiscardHandler),
		prompt:     DefaultPrompt,
		cfg:        llm.DefaultGenerationConfig(),
		maxHistory: DefaultMaxHistory,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With("agent", session.ShortID(a.id), "backend", p.Name())
	return a
}

func (a *Agent) ID() string { return a.id }

// Backend returns the provider name.
func (a *Agent) Backend() string { return a.provider.Name() }

func (a *Agent) Status() Status { return a.status.Load() }

// Usable reports whether a new turn may start.
func (a *Agent) Usable() bool {
	return !a.deleted.Load() && a.status.Load() == StatusUsable
}

// Config returns a copy of the generation parameters.
func (a *Agent) Config() llm.GenerationConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg.Clone()
}

func (a *Agent) Prompt() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.prompt
}

// History returns a snapshot of the committed conversation. It never
// contains a half-finished turn.
func (a *Agent) History() []llm.Message {
	return a.store.Snapshot()
}

// Chat starts a turn. Errors that occur before the turn is accepted
// (deleted, busy, provider configuration or connection failures) are
// returned directly and leave the history untouched. Everything after that
// is reported through the returned LiveView.
//
// ctx governs the whole turn: cancelling it stops the backend stream and
// rolls the turn back.
func (a *Agent) Chat(ctx context.Context, query string) (*LiveView, error) {
	if a.deleted.Load() {
		return nil, ErrDeleted
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if !a.status.reserve() {
		return nil, &BusyError{Status: a.status.Load()}
	}
	if a.deleted.Load() {
		a.status.release()
		return nil, ErrDeleted
	}

	a.mu.RLock()
	prompt, cfg, maxHistory := a.prompt, a.cfg.Clone(), a.maxHistory
	a.mu.RUnlock()

	window := buildWindow(a.store.Window(maxHistory), prompt, query)
	turn := a.turns.Add(1)
	log := a.log.With("turn", turn)

	resp, err := a.provider.Chat(ctx, cfg, window)
	if err != nil {
		a.status.release()
		log.Warn("turn rejected", "error", err)
		return nil, err
	}

	a.store.Append(llm.UserMessage(query))
	log.Debug("turn started", "window", len(window))

	view := newLiveView()
	w := &watcher{
		store:  a.store,
		status: a.status,
		resp:   resp,
		view:   view,
		log:    log,
		start:  time.Now(),
	}
	go w.run()
	return view, nil
}

// buildWindow assembles the prompt: system prompt, prior messages oldest
// first, then the new user message.
func buildWindow(prior []llm.Message, prompt, query string) []llm.Message {
	window := make([]llm.Message, 0, len(prior)+2)
	if prompt != "" {
		window = append(window, llm.SystemMessage(prompt))
	}
	window = append(window, prior...)
	return append(window, llm.UserMessage(query))
}

// Cancel asks the running turn to discard its reply. Network reads
// continue until the backend finishes; the history is left as it was
// before the turn. It reports false when no turn is running.
func (a *Agent) Cancel() bool {
	if !a.status.requestCancel() {
		return false
	}
	a.log.Debug("cancel requested")
	return true
}

// Wait blocks until no turn is running.
func (a *Agent) Wait(ctx context.Context) error {
	select {
	case <-a.status.idleCh():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// gated runs fn while holding the turn reservation so no turn can start
// concurrently. It fails with a BusyError while a turn is running.
func (a *Agent) gated(fn func() error) error {
	if a.deleted.Load() {
		return ErrDeleted
	}
	if !a.status.reserve() {
		return &BusyError{Status: a.status.Load()}
	}
	defer a.status.release()
	if a.deleted.Load() {
		return ErrDeleted
	}
	return fn()
}

// ClearHistory drops every message.
func (a *Agent) ClearHistory() error {
	return a.gated(func() error {
		a.store.Clear()
		a.log.Debug("history cleared")
		return nil
	})
}

// Save serializes the conversation, prompt and config to a JSON snapshot.
func (a *Agent) Save() (string, error) {
	var out string
	err := a.gated(func() error {
		a.mu.RLock()
		snap := session.Snapshot{
			Version:  session.SnapshotVersion,
			ID:       a.id,
			Backend:  a.provider.Name(),
			Prompt:   a.prompt,
			Config:   a.cfg.Clone(),
			SavedAt:  time.Now().UTC(),
			Messages: a.store.Snapshot(),
		}
		a.mu.RUnlock()

		data, err := snap.Marshal()
		if err != nil {
			return err
		}
		out = data
		return nil
	})
	return out, err
}

// Restore replaces the conversation, prompt and config with a snapshot
// produced by Save.
func (a *Agent) Restore(data string) error {
	snap, err := session.ParseSnapshot(data)
	if err != nil {
		return err
	}
	return a.gated(func() error {
		a.mu.Lock()
		a.prompt = snap.Prompt
		a.cfg = snap.Config.Clone()
		a.mu.Unlock()
		a.store.Replace(snap.Messages)
		a.log.Debug("history restored", "messages", len(snap.Messages))
		return nil
	})
}

// Delete clears the history and retires the agent. Every later call
// fails with ErrDeleted.
func (a *Agent) Delete() error {
	return a.gated(func() error {
		a.store.Clear()
		a.deleted.Store(true)
		a.log.Debug("agent deleted")
		return nil
	})
}

// SetConfig edits the generation parameters between turns.
func (a *Agent) SetConfig(edit func(*llm.GenerationConfig)) error {
	return a.gated(func() error {
		a.mu.Lock()
		defer a.mu.Unlock()
		cfg := a.cfg.Clone()
		edit(&cfg)
		a.cfg = cfg
		return nil
	})
}

// SetPrompt replaces the system prompt between turns.
func (a *Agent) SetPrompt(prompt string) error {
	return a.gated(func() error {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.prompt = prompt
		return nil
	})
}

// SetMaxHistory changes the history window between turns.
func (a *Agent) SetMaxHistory(n int) error {
	if n < 0 {
		return fmt.Errorf("max history must be >= 0, got %d", n)
	}
	return a.gated(func() error {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.maxHistory = n
		return nil
	})
}

package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"
)

// MockTurn represents a single response turn from the mock provider.
type MockTurn struct {
	Text    string        // Text to emit (will be chunked for realistic streaming)
	Chunks  []string      // Explicit fragments; takes precedence over Text
	Delay   time.Duration // Optional delay before the first fragment
	ChatErr error         // Returned synchronously from Chat
	Err     error         // Pushed on the stream after FailAfter fragments
	// FailAfter is the number of fragments emitted before Err.
	FailAfter int
	// Hold, when non-nil, delays the end marker (or Err) until it is closed.
	Hold <-chan struct{}
}

// MockRequest is one recorded Chat call.
type MockRequest struct {
	Config  GenerationConfig
	History []Message
}

// MockProvider is a configurable provider for testing.
// It returns scripted responses and records all requests for verification.
type MockProvider struct {
	name      string
	turns     []MockTurn
	turnIndex int
	Requests  []MockRequest // Recorded requests for verification
	mu        sync.Mutex
}

// NewMockProvider creates a new mock provider with the given name.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name}
}

// Name returns the provider name.
func (m *MockProvider) Name() string {
	return m.name
}

// AddTurn adds a response turn and returns the provider for chaining.
func (m *MockProvider) AddTurn(t MockTurn) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, t)
	return m
}

// AddTextResponse is a convenience method to add a simple text response.
func (m *MockProvider) AddTextResponse(text string) *MockProvider {
	return m.AddTurn(MockTurn{Text: text})
}

// AddError adds a turn whose stream fails after emitting the given
// fragments.
func (m *MockProvider) AddError(err error, chunks ...string) *MockProvider {
	return m.AddTurn(MockTurn{Chunks: chunks, Err: err, FailAfter: len(chunks)})
}

// AddChatError adds a turn that fails synchronously.
func (m *MockProvider) AddChatError(err error) *MockProvider {
	return m.AddTurn(MockTurn{ChatErr: err})
}

// AddHeldTurn adds a turn that emits text and then waits for the returned
// release function before sending the end marker.
func (m *MockProvider) AddHeldTurn(text string) (release func()) {
	hold := make(chan struct{})
	var once sync.Once
	m.AddTurn(MockTurn{Text: text, Hold: hold})
	return func() { once.Do(func() { close(hold) }) }
}

// Reset clears recorded requests and resets the turn index.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turnIndex = 0
	m.Requests = nil
}

// TurnCount returns the number of scripted turns.
func (m *MockProvider) TurnCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}

// CurrentTurn returns the current turn index (0-based).
func (m *MockProvider) CurrentTurn() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turnIndex
}

// LastRequest returns the most recent recorded request.
func (m *MockProvider) LastRequest() (MockRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return MockRequest{}, false
	}
	return m.Requests[len(m.Requests)-1], true
}

// Chat implements the Provider interface.
func (m *MockProvider) Chat(ctx context.Context, cfg GenerationConfig, history []Message) (*Response, error) {
	m.mu.Lock()
	recorded := make([]Message, len(history))
	copy(recorded, history)
	m.Requests = append(m.Requests, MockRequest{Config: cfg.Clone(), History: recorded})

	if m.turnIndex >= len(m.turns) {
		m.mu.Unlock()
		return nil, fmt.Errorf("mock provider: no more turns configured (expected turn %d, have %d)", m.turnIndex, len(m.turns))
	}

	turn := m.turns[m.turnIndex]
	m.turnIndex++
	m.mu.Unlock()

	if turn.ChatErr != nil {
		return nil, turn.ChatErr
	}

	chunks := turn.Chunks
	if len(chunks) == 0 {
		chunks = chunkText(turn.Text, 10)
	}

	return startSDKStream(ctx, m.name, nil, func(ctx context.Context, emit func(string) bool) error {
		if turn.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(turn.Delay):
			}
		}

		for i, chunk := range chunks {
			if turn.Err != nil && i >= turn.FailAfter {
				break
			}
			if !emit(chunk) {
				return nil
			}
		}

		if turn.Hold != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-turn.Hold:
			}
		}

		return turn.Err
	}), nil
}

// chunkText splits text into chunks of approximately the given size.
// It tries to break at word boundaries when possible.
func chunkText(text string, chunkSize int) []string {
	if len(text) == 0 {
		return nil
	}
	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= chunkSize {
			chunks = append(chunks, text)
			break
		}

		// Find a good break point (space) near the chunk size
		breakPoint := chunkSize
		for i := chunkSize; i > chunkSize/2; i-- {
			if text[i] == ' ' {
				breakPoint = i + 1 // include the space in current chunk
				break
			}
		}

		// never split a multibyte rune
		for breakPoint > 0 && !utf8.RuneStart(text[breakPoint]) {
			breakPoint--
		}
		if breakPoint == 0 {
			_, size := utf8.DecodeRuneInString(text)
			breakPoint = size
		}

		chunks = append(chunks, text[:breakPoint])
		text = text[breakPoint:]
	}
	return chunks
}

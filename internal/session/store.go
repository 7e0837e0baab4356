// Package session holds conversation history for a single agent.
package session

import (
	"sync"

	"github.com/floatchat/floatchat/internal/llm"
)

// Store is an append-only, in-memory message list guarded by a
// reader/writer lock. Each method takes the lock for one step only; callers
// never hold it across network I/O.
type Store struct {
	mu       sync.RWMutex
	messages []llm.Message
}

// NewStore returns a store seeded with a copy of initial.
func NewStore(initial ...llm.Message) *Store {
	s := &Store{}
	s.messages = append(s.messages, initial...)
	return s
}

// Append adds messages in order.
func (s *Store) Append(msgs ...llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msgs...)
}

// PopLast removes and returns the newest message.
func (s *Store) PopLast() (llm.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return llm.Message{}, false
	}
	last := s.messages[len(s.messages)-1]
	s.messages[len(s.messages)-1] = llm.Message{}
	s.messages = s.messages[:len(s.messages)-1]
	return last, true
}

// Window returns a copy of the newest n messages, oldest first. An n of
// zero or less returns nothing.
func (s *Store) Window(n int) []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	start := max(0, len(s.messages)-n)
	out := make([]llm.Message, len(s.messages)-start)
	copy(out, s.messages[start:])
	return out
}

// Snapshot returns a copy of every message.
func (s *Store) Snapshot() []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]llm.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

// Replace swaps the whole history for a copy of msgs.
func (s *Store) Replace(msgs []llm.Message) {
	cp := make([]llm.Message, len(msgs))
	copy(cp, msgs)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = cp
}

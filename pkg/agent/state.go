package agent

import (
	"context"
	"sync"

	"github.com/xhad/campus/pkg/index"
)

// SessionState is the content store and semantic index of one session.
// Readers see either the old pair or the new one, never a mix.
type SessionState struct {
	ingest sync.Mutex // serializes ingestions

	mu      sync.RWMutex
	content string
	index   index.Index
}

func NewSessionState() *SessionState {
	return &SessionState{}
}

// Snapshot returns the current content and index together.
func (s *SessionState) Snapshot() (string, index.Index) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.content, s.index
}

func (s *SessionState) Content() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.content
}

// replace stores content and, when idx is not nil, swaps the index. It
// returns the index that was replaced, if any.
func (s *SessionState) replace(content string, idx index.Index) index.Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content = content
	if idx == nil {
		return nil
	}
	old := s.index
	s.index = idx
	return old
}

// Close empties the state and releases its index. It waits for a running
// ingestion to finish first.
func (s *SessionState) Close(ctx context.Context) error {
	s.ingest.Lock()
	defer s.ingest.Unlock()

	s.mu.Lock()
	old := s.index
	s.content, s.index = "", nil
	s.mu.Unlock()

	return release(ctx, old)
}

func release(ctx context.Context, idx index.Index) error {
	if releaser, ok := idx.(index.Releaser); ok {
		return releaser.Release(ctx)
	}
	return nil
}

// Sessions holds one SessionState per session key.
type Sessions struct {
	mu     sync.Mutex
	states map[string]*SessionState
}

func NewSessions() *Sessions {
	return &Sessions{states: make(map[string]*SessionState)}
}

// Get returns the state for key, creating it on first use.
func (s *Sessions) Get(key string) *SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[key]
	if !ok {
		state = NewSessionState()
		s.states[key] = state
	}
	return state
}

// Drop forgets the state for key and returns it, or nil if there was none.
func (s *Sessions) Drop(key string) *SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.states[key]
	delete(s.states, key)
	return state
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

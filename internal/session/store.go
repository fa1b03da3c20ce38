package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Store persists session state between requests.
type Store interface {
	Create(ctx context.Context) (*State, error)
	Get(ctx context.Context, id string) (*State, error)
	Save(ctx context.Context, state *State) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps sessions in process memory. Callers always receive
// copies, so a state is only changed by Save.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
	expires  map[string]time.Time
	ttl      time.Duration
}

// NewMemoryStore creates a memory store. A zero ttl never expires sessions.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]byte),
		expires:  make(map[string]time.Time),
		ttl:      ttl,
	}
}

func (s *MemoryStore) Create(ctx context.Context) (*State, error) {
	state := New()
	if err := s.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*State, error) {
	s.mu.RLock()
	data, ok := s.sessions[id]
	expiry := s.expires[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if !expiry.IsZero() && time.Now().After(expiry) {
		_ = s.Delete(ctx, id)
		return nil, ErrNotFound
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &state, nil
}

func (s *MemoryStore) Save(ctx context.Context, state *State) error {
	state.UpdatedAt = time.Now()
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[state.ID] = data
	if s.ttl > 0 {
		s.expires[state.ID] = state.UpdatedAt.Add(s.ttl)
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	delete(s.expires, id)
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Prune drops every session that expired before now and returns how many
// were removed.
func (s *MemoryStore) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, expiry := range s.expires {
		if now.After(expiry) {
			delete(s.sessions, id)
			delete(s.expires, id)
			n++
		}
	}
	return n
}

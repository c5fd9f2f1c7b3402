package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/katakuxiko/agrochat/internal/model"
)

// LRUStore is an in-process Store. Sessions idle longer than the TTL expire
// and the least recently used one is evicted past maxSessions.
type LRUStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, []model.Turn]
}

func NewLRUStore(maxSessions int, ttl time.Duration) *LRUStore {
	return &LRUStore{cache: expirable.NewLRU[string, []model.Turn](maxSessions, nil, ttl)}
}

func (s *LRUStore) History(_ context.Context, sessionID string) ([]model.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns, _ := s.cache.Get(sessionID)
	out := make([]model.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *LRUStore) Append(_ context.Context, sessionID string, turns ...model.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, _ := s.cache.Get(sessionID)
	next := make([]model.Turn, 0, len(prev)+len(turns))
	next = append(next, prev...)
	next = append(next, turns...)
	// Add refreshes the expiry
	s.cache.Add(sessionID, next)
	return nil
}

func (s *LRUStore) Reset(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(sessionID)
	return nil
}

// Len reports live sessions.
func (s *LRUStore) Len() int {
	return s.cache.Len()
}

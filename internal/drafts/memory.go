package drafts

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a thread-safe in-memory store with TTL expiry.
type MemoryStore struct {
	mu     sync.Mutex
	drafts map[string]Draft
	ttl    time.Duration
	now    func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{drafts: make(map[string]Draft), ttl: ttl, now: time.Now}
}

func (s *MemoryStore) expired(d Draft) bool {
	return s.now().Sub(d.CreatedAt) > s.ttl
}

func (s *MemoryStore) Put(_ context.Context, d Draft) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[d.Token] = d
	return nil
}

func (s *MemoryStore) Get(_ context.Context, token string) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(token)
}

func (s *MemoryStore) Take(_ context.Context, token string) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.lookup(token)
	if err != nil {
		return Draft{}, err
	}
	delete(s.drafts, token)
	return d, nil
}

// lookup must be called with mu held.
func (s *MemoryStore) lookup(token string) (Draft, error) {
	d, ok := s.drafts[token]
	if !ok {
		return Draft{}, ErrNotFound
	}
	if s.expired(d) {
		delete(s.drafts, token)
		return Draft{}, ErrNotFound
	}
	return d, nil
}

func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, token)
	return nil
}

// StartPurge evicts expired drafts every interval until ctx is done.
func (s *MemoryStore) StartPurge(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.purge()
			}
		}
	}()
}

func (s *MemoryStore) purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, d := range s.drafts {
		if s.expired(d) {
			delete(s.drafts, token)
		}
	}
}

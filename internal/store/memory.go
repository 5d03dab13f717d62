package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	// ErrNotFound is returned when a key is absent or has expired.
	ErrNotFound = errors.New("key not found")
)

type transientItem struct {
	value   []byte
	expires time.Time // zero means no expiry
}

// TransientStore is a concurrency-safe in-memory key-value store whose
// entries expire after a per-key TTL.
type TransientStore struct {
	mu    sync.Mutex
	clock clockwork.Clock
	data  map[string]transientItem
}

// NewTransientStore creates a TransientStore. A nil clock uses real time.
func NewTransientStore(clock clockwork.Clock) *TransientStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TransientStore{
		clock: clock,
		data:  make(map[string]transientItem),
	}
}

// Set stores value under key. A ttl <= 0 keeps the value until deleted.
func (s *TransientStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	item := transientItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expires = s.clock.Now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = item
	return nil
}

// Get returns the value for key, or ErrNotFound if it is missing or expired.
func (s *TransientStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !item.expires.IsZero() && !s.clock.Now().Before(item.expires) {
		delete(s.data, key)
		return nil, ErrNotFound
	}
	return append([]byte(nil), item.value...), nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *TransientStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Purge drops every expired entry and reports how many were removed.
func (s *TransientStore) Purge() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, item := range s.data {
		if !item.expires.IsZero() && !now.Before(item.expires) {
			delete(s.data, k)
			n++
		}
	}
	return n
}

// PurgeEvery calls Purge once per interval until ctx is done.
func (s *TransientStore) PurgeEvery(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.Purge()
		}
	}
}

package services

import (
	"context"
	"sync"
)

// FavoritesStore is the durable key-value store behind favorite sets.
// Subscribe delivers the new value of key after every write by any
// consumer; the returned func unsubscribes and closes the channel.
type FavoritesStore interface {
	Read(ctx context.Context, key string) (string, bool, error)
	Write(ctx context.Context, key, value string) error
	Subscribe(ctx context.Context, key string) (<-chan string, func(), error)
}

// FavoritesUpdater is implemented by stores that can run a read-modify-write
// cycle atomically with respect to other writers of the same key
type FavoritesUpdater interface {
	Update(ctx context.Context, key string, fn func(current string, ok bool) (string, error)) error
}

// updateValue runs fn against the stored value, atomically when the store
// supports it
func updateValue(ctx context.Context, store FavoritesStore, key string, fn func(current string, ok bool) (string, error)) error {
	if u, ok := store.(FavoritesUpdater); ok {
		return u.Update(ctx, key, fn)
	}

	current, ok, err := store.Read(ctx, key)
	if err != nil {
		return err
	}
	next, err := fn(current, ok)
	if err != nil {
		return err
	}
	return store.Write(ctx, key, next)
}

// MemoryFavoritesStore keeps values in process memory. It is the store used
// by tests and single-node development setups.
type MemoryFavoritesStore struct {
	mu     sync.Mutex
	values map[string]string
	fanout *Fanout
}

// NewMemoryFavoritesStore creates an empty store
func NewMemoryFavoritesStore() *MemoryFavoritesStore {
	return &MemoryFavoritesStore{
		values: make(map[string]string),
		fanout: NewFanout(),
	}
}

// Read implements FavoritesStore
func (s *MemoryFavoritesStore) Read(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	return v, ok, nil
}

// Write implements FavoritesStore
func (s *MemoryFavoritesStore) Write(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	s.fanout.Publish(key, value)
	return nil
}

// Update implements FavoritesUpdater
func (s *MemoryFavoritesStore) Update(_ context.Context, key string, fn func(string, bool) (string, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.values[key]
	next, err := fn(current, ok)
	if err != nil {
		return err
	}

	s.values[key] = next
	s.fanout.Publish(key, next)
	return nil
}

// Subscribe implements FavoritesStore
func (s *MemoryFavoritesStore) Subscribe(ctx context.Context, key string) (<-chan string, func(), error) {
	ch, cancel := s.fanout.Subscribe(ctx, key)
	return ch, cancel, nil
}

// Subscribers returns the number of active subscriptions for key
func (s *MemoryFavoritesStore) Subscribers(key string) int {
	return s.fanout.Subscribers(key)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
)

// redisUpdateRetries bounds optimistic WATCH retries on contended keys
const redisUpdateRetries = 5

// redisChannelPrefix namespaces the pub/sub channel of every key
const redisChannelPrefix = "favorites:"

// RedisFavoritesStore persists favorite sets as Redis strings and announces
// every write on a pub/sub channel derived from the key. All subscriptions
// share one pattern subscription.
type RedisFavoritesStore struct {
	client *redis.Client
	logger *slog.Logger
	fanout *Fanout

	mu     sync.Mutex
	pubsub *redis.PubSub
}

// ConnectRedis creates a client and verifies the server answers
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to ping redis at %s: %w", addr, err)
	}

	return client, nil
}

// NewRedisFavoritesStore wraps an existing client
func NewRedisFavoritesStore(client *redis.Client, logger *slog.Logger) *RedisFavoritesStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisFavoritesStore{
		client: client,
		logger: logger.With("component", "redis_favorites"),
		fanout: NewFanout(),
	}
}

func redisChannel(key string) string {
	return redisChannelPrefix + key
}

// Read implements FavoritesStore
func (s *RedisFavoritesStore) Read(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, true, nil
}

// Write implements FavoritesStore
func (s *RedisFavoritesStore) Write(ctx context.Context, key, value string) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key, value, 0)
		p.Publish(ctx, redisChannel(key), value)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Update implements FavoritesUpdater with WATCH/MULTI
func (s *RedisFavoritesStore) Update(ctx context.Context, key string, fn func(string, bool) (string, error)) error {
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		ok := true
		if errors.Is(err, redis.Nil) {
			current, ok = "", false
		} else if err != nil {
			return err
		}

		next, err := fn(current, ok)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, next, 0)
			p.Publish(ctx, redisChannel(key), next)
			return nil
		})
		return err
	}

	for i := 0; i < redisUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to update %s: %w", key, err)
		}
		return nil
	}

	return fmt.Errorf("failed to update %s: too much contention", key)
}

// Subscribe implements FavoritesStore
func (s *RedisFavoritesStore) Subscribe(ctx context.Context, key string) (<-chan string, func(), error) {
	if err := s.listen(ctx); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.fanout.Subscribe(ctx, key)
	return ch, cancel, nil
}

// listen starts the shared pattern subscription on first use
func (s *RedisFavoritesStore) listen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pubsub != nil {
		return nil
	}

	ps := s.client.PSubscribe(ctx, redisChannelPrefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return fmt.Errorf("failed to subscribe to favorites: %w", err)
	}
	s.pubsub = ps

	go func() {
		for msg := range ps.Channel() {
			s.fanout.Publish(strings.TrimPrefix(msg.Channel, redisChannelPrefix), msg.Payload)
		}
		s.logger.Debug("favorites subscription closed")
	}()

	return nil
}

// Close ends the shared subscription and closes every subscriber channel
func (s *RedisFavoritesStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fanout.Close()
	if s.pubsub == nil {
		return nil
	}
	err := s.pubsub.Close()
	s.pubsub = nil
	return err
}

package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/foxxcyber/property-listing/internal/services"
)

// clientStateChannel carries the key of every changed client_state row
const clientStateChannel = "client_state"

// listenerRetryDelay is the pause before a failed listener reconnects
const listenerRetryDelay = 2 * time.Second

// ClientStateStore keeps per-client values in the client_state table and
// announces writes with NOTIFY so every subscribed server sees them. One
// pooled connection listens on behalf of all subscribers.
type ClientStateStore struct {
	db     *DB
	fanout *services.Fanout

	mu      sync.Mutex
	running bool
	stop    context.CancelFunc
	done    chan struct{}
}

// NewClientStateStore creates a store backed by db
func NewClientStateStore(db *DB) *ClientStateStore {
	return &ClientStateStore{db: db, fanout: services.NewFanout()}
}

// Read returns the value stored under key
func (s *ClientStateStore) Read(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.Pool.QueryRow(ctx, `SELECT value FROM client_state WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

// Write stores value under key and notifies subscribers
func (s *ClientStateStore) Write(ctx context.Context, key, value string) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := writeClientState(ctx, tx, key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	return tx.Commit(ctx)
}

// Update applies fn to the current value while holding a per-key lock
func (s *ClientStateStore) Update(ctx context.Context, key string, fn func(string, bool) (string, error)) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// the row may not exist yet, so lock the key rather than the row
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("failed to lock %s: %w", key, err)
	}

	var current string
	ok := true
	err = tx.QueryRow(ctx, `SELECT value FROM client_state WHERE key = $1`, key).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		current, ok = "", false
	} else if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}

	next, err := fn(current, ok)
	if err != nil {
		return err
	}

	if err := writeClientState(ctx, tx, key, next); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	return tx.Commit(ctx)
}

func writeClientState(ctx context.Context, tx pgx.Tx, key, value string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO client_state (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return err
	}

	// NOTIFY is delivered on commit
	_, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, clientStateChannel, key)
	return err
}

// Subscribe delivers the value of key after every committed write
func (s *ClientStateStore) Subscribe(ctx context.Context, key string) (<-chan string, func(), error) {
	s.mu.Lock()
	if !s.running {
		conn, err := s.db.Pool.Acquire(ctx)
		if err != nil {
			s.mu.Unlock()
			return nil, nil, fmt.Errorf("failed to acquire listener connection: %w", err)
		}
		if err := listen(ctx, conn); err != nil {
			conn.Release()
			s.mu.Unlock()
			return nil, nil, err
		}

		listenCtx, stop := context.WithCancel(context.Background())
		s.running = true
		s.stop = stop
		s.done = make(chan struct{})
		go s.dispatch(listenCtx, conn, s.done)
	}
	s.mu.Unlock()

	ch, cancel := s.fanout.Subscribe(ctx, key)
	return ch, cancel, nil
}

func listen(ctx context.Context, conn *pgxpool.Conn) error {
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{clientStateChannel}.Sanitize()); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", clientStateChannel, err)
	}
	return nil
}

// dispatch forwards notifications to subscribers, reconnecting until ctx ends
func (s *ClientStateStore) dispatch(ctx context.Context, conn *pgxpool.Conn, done chan struct{}) {
	defer close(done)

	for {
		err := s.forward(ctx, conn)
		releaseListener(conn)
		if ctx.Err() != nil {
			return
		}
		s.db.logger.Warn("client state listener lost, reconnecting", "error", err)

		conn = nil
		for conn == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(listenerRetryDelay):
			}

			c, err := s.db.Pool.Acquire(ctx)
			if err != nil {
				s.db.logger.Warn("failed to acquire listener connection", "error", err)
				continue
			}
			if err := listen(ctx, c); err != nil {
				c.Release()
				s.db.logger.Warn("failed to restart listener", "error", err)
				continue
			}
			conn = c
		}
	}
}

func (s *ClientStateStore) forward(ctx context.Context, conn *pgxpool.Conn) error {
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		key := n.Payload
		if s.fanout.Subscribers(key) == 0 {
			continue
		}

		value, ok, err := s.Read(ctx, key)
		if err != nil {
			s.db.logger.Warn("failed to read notified client state", "key", key, "error", err)
			continue
		}
		if !ok {
			value = ""
		}
		s.fanout.Publish(key, value)
	}
}

func releaseListener(conn *pgxpool.Conn) {
	if !conn.Conn().IsClosed() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		conn.Exec(ctx, "UNLISTEN *")
		cancel()
	}
	conn.Release()
}

// Close stops the listener and closes every subscriber channel
func (s *ClientStateStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fanout.Close()
	if s.running {
		s.stop()
		<-s.done
		s.running = false
	}
}

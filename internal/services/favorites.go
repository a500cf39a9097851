package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/foxxcyber/property-listing/internal/models"
)

var ErrFavoritesClosed = errors.New("favorites closed")

// Favorites is one client's favorite set mirrored from a FavoritesStore.
// The persisted value is the source of truth: every toggle re-reads it,
// writes the complete new set, and the count is always the set size.
type Favorites struct {
	store  FavoritesStore
	key    string
	logger *slog.Logger

	mu        sync.Mutex
	ids       []string
	listeners map[int]chan models.FavoritesSnapshot
	nextID    int
	stopWatch func()
	closed    bool
}

// NewFavorites loads the persisted set for key. A missing or malformed value
// yields an empty set; only a failing store is reported.
func NewFavorites(ctx context.Context, store FavoritesStore, key string, logger *slog.Logger) (*Favorites, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f := &Favorites{
		store:     store,
		key:       key,
		logger:    logger.With("component", "favorites", "key", key),
		listeners: make(map[int]chan models.FavoritesSnapshot),
	}

	raw, ok, err := store.Read(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read favorites: %w", err)
	}
	if ok {
		f.ids = f.decodeOrEmpty(raw)
	}

	return f, nil
}

// Toggle adds id when absent and removes it when present
func (f *Favorites) Toggle(ctx context.Context, id string) (models.FavoriteToggle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return models.FavoriteToggle{}, ErrFavoritesClosed
	}

	var next []string
	var member bool
	err := updateValue(ctx, f.store, f.key, func(current string, ok bool) (string, error) {
		var ids []string
		if ok {
			ids = f.decodeOrEmpty(current)
		}
		next, member = toggleID(ids, id)
		return EncodeFavoriteIDs(next)
	})
	if err != nil {
		return models.FavoriteToggle{}, fmt.Errorf("failed to persist favorites: %w", err)
	}

	f.ids = next
	f.notifyLocked()

	return models.FavoriteToggle{PropertyID: id, IsFavorite: member, Count: len(next)}, nil
}

// Contains implements FavoriteSet
func (f *Favorites) Contains(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, v := range f.ids {
		if v == id {
			return true
		}
	}
	return false
}

// Count returns the number of favorites
func (f *Favorites) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ids)
}

// IDs returns the favorites in the order they were added
func (f *Favorites) IDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.ids...)
}

// Snapshot returns the ids and count together
func (f *Favorites) Snapshot() models.FavoritesSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Set returns a point-in-time FavoriteSet for a search
func (f *Favorites) Set() StaticFavorites {
	return NewStaticFavorites(f.IDs()...)
}

// Refresh re-reads the persisted set
func (f *Favorites) Refresh(ctx context.Context) error {
	raw, ok, err := f.store.Read(ctx, f.key)
	if err != nil {
		return fmt.Errorf("failed to read favorites: %w", err)
	}
	if !ok {
		raw = ""
	}
	f.apply(raw)
	return nil
}

// Watch follows changes made through the store by other views until ctx is
// done or Close is called
func (f *Favorites) Watch(ctx context.Context) error {
	updates, cancel, err := f.store.Subscribe(ctx, f.key)
	if err != nil {
		return fmt.Errorf("failed to subscribe to favorites: %w", err)
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		cancel()
		return ErrFavoritesClosed
	}
	if f.stopWatch != nil {
		f.stopWatch()
	}
	f.stopWatch = cancel
	f.mu.Unlock()

	go func() {
		for raw := range updates {
			f.apply(raw)
		}
		f.logger.Debug("favorites watch stopped")
	}()

	return nil
}

// Listen returns a channel receiving a snapshot whenever the set changes.
// The channel keeps only the latest snapshot.
func (f *Favorites) Listen() (<-chan models.FavoritesSnapshot, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan models.FavoritesSnapshot, 1)
	if f.closed {
		close(ch)
		return ch, func() {}
	}

	id := f.nextID
	f.nextID++
	f.listeners[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if l, ok := f.listeners[id]; ok {
				delete(f.listeners, id)
				close(l)
			}
		})
	}
}

// Listeners returns the number of active listeners
func (f *Favorites) Listeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

// Close stops watching and closes every listener
func (f *Favorites) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true

	if f.stopWatch != nil {
		f.stopWatch()
		f.stopWatch = nil
	}
	for id, ch := range f.listeners {
		delete(f.listeners, id)
		close(ch)
	}
}

// apply replaces the in-memory set with a persisted value and notifies
// listeners when it differs
func (f *Favorites) apply(raw string) {
	ids := f.decodeOrEmpty(raw)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || sameIDs(f.ids, ids) {
		return
	}
	f.ids = ids
	f.notifyLocked()
}

func (f *Favorites) notifyLocked() {
	snap := f.snapshotLocked()
	for _, ch := range f.listeners {
		sendLatest(ch, snap)
	}
}

func (f *Favorites) snapshotLocked() models.FavoritesSnapshot {
	return models.FavoritesSnapshot{IDs: append([]string{}, f.ids...), Count: len(f.ids)}
}

func (f *Favorites) decodeOrEmpty(raw string) []string {
	ids, err := DecodeFavoriteIDs(raw)
	if err != nil {
		f.logger.Warn("discarding unreadable favorites", "error", err)
		return nil
	}
	return ids
}

// DecodeFavoriteIDs parses a persisted favorite set. Numeric ids are
// converted to their decimal string form and duplicates are dropped.
func DecodeFavoriteIDs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var values []any
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("invalid favorites payload: %w", err)
	}

	ids := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		var id string
		switch t := v.(type) {
		case string:
			id = t
		case json.Number:
			id = t.String()
		default:
			return nil, fmt.Errorf("invalid favorite id %v", v)
		}
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	return ids, nil
}

// EncodeFavoriteIDs renders a favorite set in its persisted form
func EncodeFavoriteIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func toggleID(ids []string, id string) ([]string, bool) {
	out := make([]string, 0, len(ids)+1)
	found := false
	for _, v := range ids {
		if v == id {
			found = true
			continue
		}
		out = append(out, v)
	}
	if found {
		return out, false
	}
	return append(out, id), true
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ClientFavoritesKey namespaces the favorites key by client
func ClientFavoritesKey(clientID string) string {
	return "clients/" + clientID + "/" + models.FavoritesKey
}

// FavoritesRegistry gives handlers access to per-client favorites. Reads and
// toggles go straight to the store; only clients with an open listener keep a
// watched Favorites, and it is released with the last listener.
type FavoritesRegistry struct {
	store  FavoritesStore
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	watched map[string]*watchedFavorites
}

type watchedFavorites struct {
	favorites *Favorites
	refs      int
}

// NewFavoritesRegistry creates a registry over store
func NewFavoritesRegistry(store FavoritesStore, logger *slog.Logger) *FavoritesRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &FavoritesRegistry{
		store:   store,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		watched: make(map[string]*watchedFavorites),
	}
}

// load reads the persisted set of clientID into an unwatched Favorites
func (r *FavoritesRegistry) load(ctx context.Context, clientID string) (*Favorites, error) {
	if r.ctx.Err() != nil {
		return nil, ErrFavoritesClosed
	}
	return NewFavorites(ctx, r.store, ClientFavoritesKey(clientID), r.logger)
}

// Snapshot returns the persisted favorites of clientID
func (r *FavoritesRegistry) Snapshot(ctx context.Context, clientID string) (models.FavoritesSnapshot, error) {
	f, err := r.load(ctx, clientID)
	if err != nil {
		return models.FavoritesSnapshot{}, err
	}
	return f.Snapshot(), nil
}

// Set returns the persisted favorites of clientID as a FavoriteSet
func (r *FavoritesRegistry) Set(ctx context.Context, clientID string) (StaticFavorites, error) {
	f, err := r.load(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return f.Set(), nil
}

// Toggle flips id in the favorites of clientID. A watched instance is used
// when one exists so its listeners see the change without a store round trip.
func (r *FavoritesRegistry) Toggle(ctx context.Context, clientID, id string) (models.FavoriteToggle, error) {
	r.mu.Lock()
	w := r.watched[clientID]
	r.mu.Unlock()

	if w != nil {
		res, err := w.favorites.Toggle(ctx, id)
		if !errors.Is(err, ErrFavoritesClosed) {
			return res, err
		}
		// released concurrently; fall through to the store
	}

	f, err := r.load(ctx, clientID)
	if err != nil {
		return models.FavoriteToggle{}, err
	}
	return f.Toggle(ctx, id)
}

// Acquire returns the watched favorites of clientID, loading and watching
// them on first use. The returned func releases the reference; the instance
// is closed when the last reference is released.
func (r *FavoritesRegistry) Acquire(ctx context.Context, clientID string) (*Favorites, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx.Err() != nil {
		return nil, nil, ErrFavoritesClosed
	}

	w, ok := r.watched[clientID]
	if !ok {
		f, err := NewFavorites(ctx, r.store, ClientFavoritesKey(clientID), r.logger)
		if err != nil {
			return nil, nil, err
		}
		if err := f.Watch(r.ctx); err != nil {
			f.Close()
			return nil, nil, err
		}
		// a write may have landed between the initial read and the subscription
		if err := f.Refresh(ctx); err != nil {
			r.logger.Warn("favorites refresh failed", "client_id", clientID, "error", err)
		}

		w = &watchedFavorites{favorites: f}
		r.watched[clientID] = w
	}
	w.refs++

	var once sync.Once
	return w.favorites, func() {
		once.Do(func() { r.release(clientID, w) })
	}, nil
}

func (r *FavoritesRegistry) release(clientID string, w *watchedFavorites) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w.refs--
	if w.refs > 0 {
		return
	}
	if r.watched[clientID] == w {
		delete(r.watched, clientID)
	}
	w.favorites.Close()
}

// Len returns the number of watched clients
func (r *FavoritesRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.watched)
}

// Listeners returns the number of listeners on the watched favorites of
// clientID
func (r *FavoritesRegistry) Listeners(clientID string) int {
	r.mu.Lock()
	w, ok := r.watched[clientID]
	r.mu.Unlock()

	if !ok {
		return 0
	}
	return w.favorites.Listeners()
}

// Close releases every client subscription
func (r *FavoritesRegistry) Close() {
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, w := range r.watched {
		w.favorites.Close()
		delete(r.watched, id)
	}
}

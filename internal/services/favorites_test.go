package services

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	. "gopkg.in/check.v1"

	"github.com/foxxcyber/property-listing/internal/logging"
	"github.com/foxxcyber/property-listing/internal/models"
)

type FavoritesSuite struct {
	store *MemoryFavoritesStore
	ctx   context.Context
}

var _ = Suite(&FavoritesSuite{})

func (s *FavoritesSuite) SetUpTest(c *C) {
	s.store = NewMemoryFavoritesStore()
	s.ctx = context.Background()
}

func (s *FavoritesSuite) newFavorites(c *C) *Favorites {
	f, err := NewFavorites(s.ctx, s.store, models.FavoritesKey, logging.Discard())
	c.Assert(err, IsNil)
	return f
}

func (s *FavoritesSuite) persisted(c *C) string {
	v, ok, err := s.store.Read(s.ctx, models.FavoritesKey)
	c.Assert(err, IsNil)
	c.Assert(ok, Equals, true)
	return v
}

// writeOnlyStore hides the Update method of the wrapped store
type writeOnlyStore struct {
	FavoritesStore
}

type failingStore struct {
	*MemoryFavoritesStore
	readErr  error
	writeErr error
}

func (f *failingStore) Read(ctx context.Context, key string) (string, bool, error) {
	if f.readErr != nil {
		return "", false, f.readErr
	}
	return f.MemoryFavoritesStore.Read(ctx, key)
}

func (f *failingStore) Write(ctx context.Context, key, value string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.MemoryFavoritesStore.Write(ctx, key, value)
}

func (f *failingStore) Update(ctx context.Context, key string, fn func(string, bool) (string, error)) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.MemoryFavoritesStore.Update(ctx, key, fn)
}

func receive(c *C, ch <-chan models.FavoritesSnapshot) models.FavoritesSnapshot {
	select {
	case snap, ok := <-ch:
		c.Assert(ok, Equals, true, Commentf("listener closed"))
		return snap
	case <-time.After(2 * time.Second):
		c.Fatal("timed out waiting for favorites update")
	}
	return models.FavoritesSnapshot{}
}

func (s *FavoritesSuite) TestStartsEmpty(c *C) {
	f := s.newFavorites(c)
	c.Assert(f.Count(), Equals, 0)
	c.Assert(f.IDs(), HasLen, 0)
	c.Assert(f.Contains("1"), Equals, false)
}

func (s *FavoritesSuite) TestToggleAddsAndRemoves(c *C) {
	f := s.newFavorites(c)

	res, err := f.Toggle(s.ctx, "7")
	c.Assert(err, IsNil)
	c.Assert(res, Equals, models.FavoriteToggle{PropertyID: "7", IsFavorite: true, Count: 1})
	c.Assert(s.persisted(c), Equals, `["7"]`)

	res, err = f.Toggle(s.ctx, "3")
	c.Assert(err, IsNil)
	c.Assert(res.Count, Equals, 2)
	c.Assert(f.IDs(), DeepEquals, []string{"7", "3"})
	c.Assert(s.persisted(c), Equals, `["7","3"]`)

	res, err = f.Toggle(s.ctx, "7")
	c.Assert(err, IsNil)
	c.Assert(res, Equals, models.FavoriteToggle{PropertyID: "7", IsFavorite: false, Count: 1})
	c.Assert(f.Contains("7"), Equals, false)
	c.Assert(s.persisted(c), Equals, `["3"]`)
}

func (s *FavoritesSuite) TestToggleTwiceRestoresState(c *C) {
	c.Assert(s.store.Write(s.ctx, models.FavoritesKey, `["1","2"]`), IsNil)
	f := s.newFavorites(c)

	for _, id := range []string{"2", "5"} {
		before := f.Snapshot()
		_, err := f.Toggle(s.ctx, id)
		c.Assert(err, IsNil)
		_, err = f.Toggle(s.ctx, id)
		c.Assert(err, IsNil)

		after := f.Snapshot()
		c.Assert(after.Count, Equals, before.Count)
		c.Assert(f.Contains(id), Equals, contains(before.IDs, id))
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (s *FavoritesSuite) TestCountMatchesPersistedSet(c *C) {
	f := s.newFavorites(c)
	for _, id := range []string{"1", "2", "3", "2", "4", "1"} {
		res, err := f.Toggle(s.ctx, id)
		c.Assert(err, IsNil)

		ids, err := DecodeFavoriteIDs(s.persisted(c))
		c.Assert(err, IsNil)
		c.Assert(res.Count, Equals, len(ids))
		c.Assert(f.Count(), Equals, len(ids))
	}
	c.Assert(f.IDs(), DeepEquals, []string{"3", "4"})
}

func (s *FavoritesSuite) TestMalformedValueYieldsEmptySet(c *C) {
	for _, raw := range []string{`not json`, `{"a":1}`, `[true]`, `[["1"]]`} {
		c.Assert(s.store.Write(s.ctx, models.FavoritesKey, raw), IsNil)

		f := s.newFavorites(c)
		c.Assert(f.Count(), Equals, 0, Commentf("payload %s", raw))

		res, err := f.Toggle(s.ctx, "4")
		c.Assert(err, IsNil)
		c.Assert(res.Count, Equals, 1)
		c.Assert(s.persisted(c), Equals, `["4"]`)
	}
}

func (s *FavoritesSuite) TestNumericIDsAreNormalized(c *C) {
	c.Assert(s.store.Write(s.ctx, models.FavoritesKey, `[1, "2", 2, 10]`), IsNil)
	f := s.newFavorites(c)

	c.Assert(f.IDs(), DeepEquals, []string{"1", "2", "10"})
	c.Assert(f.Contains("1"), Equals, true)

	res, err := f.Toggle(s.ctx, "10")
	c.Assert(err, IsNil)
	c.Assert(res.IsFavorite, Equals, false)
	c.Assert(s.persisted(c), Equals, `["1","2"]`)
}

func (s *FavoritesSuite) TestDecodeFavoriteIDs(c *C) {
	ids, err := DecodeFavoriteIDs("")
	c.Assert(err, IsNil)
	c.Assert(ids, HasLen, 0)

	ids, err = DecodeFavoriteIDs(`[]`)
	c.Assert(err, IsNil)
	c.Assert(ids, HasLen, 0)

	ids, err = DecodeFavoriteIDs(`["a","","a","b"]`)
	c.Assert(err, IsNil)
	c.Assert(ids, DeepEquals, []string{"a", "b"})

	_, err = DecodeFavoriteIDs(`[null]`)
	c.Assert(err, NotNil)

	out, err := EncodeFavoriteIDs(nil)
	c.Assert(err, IsNil)
	c.Assert(out, Equals, `[]`)
}

func (s *FavoritesSuite) TestStoreWithoutUpdate(c *C) {
	f, err := NewFavorites(s.ctx, writeOnlyStore{s.store}, models.FavoritesKey, logging.Discard())
	c.Assert(err, IsNil)

	_, err = f.Toggle(s.ctx, "1")
	c.Assert(err, IsNil)
	_, err = f.Toggle(s.ctx, "2")
	c.Assert(err, IsNil)
	c.Assert(s.persisted(c), Equals, `["1","2"]`)
}

func (s *FavoritesSuite) TestToggleRereadsPersistedValue(c *C) {
	a := s.newFavorites(c)
	b := s.newFavorites(c)

	_, err := a.Toggle(s.ctx, "1")
	c.Assert(err, IsNil)

	// b has not watched, but its toggle starts from the stored set
	res, err := b.Toggle(s.ctx, "2")
	c.Assert(err, IsNil)
	c.Assert(res.Count, Equals, 2)
	c.Assert(s.persisted(c), Equals, `["1","2"]`)
}

func (s *FavoritesSuite) TestStoreErrors(c *C) {
	boom := errors.New("boom")

	_, err := NewFavorites(s.ctx, &failingStore{MemoryFavoritesStore: s.store, readErr: boom}, models.FavoritesKey, logging.Discard())
	c.Assert(errors.Is(err, boom), Equals, true)

	store := &failingStore{MemoryFavoritesStore: s.store}
	f, err := NewFavorites(s.ctx, store, models.FavoritesKey, logging.Discard())
	c.Assert(err, IsNil)

	store.writeErr = boom
	_, err = f.Toggle(s.ctx, "1")
	c.Assert(errors.Is(err, boom), Equals, true)
	c.Assert(f.Count(), Equals, 0)
}

func (s *FavoritesSuite) TestWatchFollowsOtherViews(c *C) {
	card := s.newFavorites(c)
	details := s.newFavorites(c)
	defer card.Close()
	defer details.Close()

	c.Assert(card.Watch(s.ctx), IsNil)
	updates, cancel := card.Listen()
	defer cancel()

	_, err := details.Toggle(s.ctx, "8")
	c.Assert(err, IsNil)

	snap := receive(c, updates)
	c.Assert(snap, DeepEquals, models.FavoritesSnapshot{IDs: []string{"8"}, Count: 1})
	c.Assert(card.Contains("8"), Equals, true)

	_, err = details.Toggle(s.ctx, "8")
	c.Assert(err, IsNil)

	snap = receive(c, updates)
	c.Assert(snap.Count, Equals, 0)
	c.Assert(card.Contains("8"), Equals, false)
}

func (s *FavoritesSuite) TestListenersSeeLocalToggles(c *C) {
	f := s.newFavorites(c)
	defer f.Close()

	first, cancelFirst := f.Listen()
	second, cancelSecond := f.Listen()
	defer cancelSecond()
	c.Assert(f.Listeners(), Equals, 2)

	_, err := f.Toggle(s.ctx, "5")
	c.Assert(err, IsNil)

	c.Assert(receive(c, first).IDs, DeepEquals, []string{"5"})
	c.Assert(receive(c, second).IDs, DeepEquals, []string{"5"})

	cancelFirst()
	cancelFirst()
	c.Assert(f.Listeners(), Equals, 1)

	_, ok := <-first
	c.Assert(ok, Equals, false)
}

func (s *FavoritesSuite) TestListenerKeepsLatestSnapshot(c *C) {
	f := s.newFavorites(c)
	defer f.Close()

	updates, cancel := f.Listen()
	defer cancel()

	for _, id := range []string{"1", "2", "3"} {
		_, err := f.Toggle(s.ctx, id)
		c.Assert(err, IsNil)
	}

	c.Assert(receive(c, updates).IDs, DeepEquals, []string{"1", "2", "3"})
	select {
	case snap := <-updates:
		c.Fatalf("unexpected stale snapshot %v", snap)
	default:
	}
}

func (s *FavoritesSuite) TestCloseReleasesEverything(c *C) {
	f := s.newFavorites(c)
	c.Assert(f.Watch(s.ctx), IsNil)
	c.Assert(s.store.Subscribers(models.FavoritesKey), Equals, 1)

	updates, _ := f.Listen()
	f.Close()
	f.Close()

	c.Assert(s.store.Subscribers(models.FavoritesKey), Equals, 0)
	c.Assert(f.Listeners(), Equals, 0)
	_, ok := <-updates
	c.Assert(ok, Equals, false)

	_, err := f.Toggle(s.ctx, "1")
	c.Assert(errors.Is(err, ErrFavoritesClosed), Equals, true)
	c.Assert(f.Watch(s.ctx), Equals, ErrFavoritesClosed)

	late, _ := f.Listen()
	_, ok = <-late
	c.Assert(ok, Equals, false)
}

func (s *FavoritesSuite) TestWatchStopsWithContext(c *C) {
	f := s.newFavorites(c)
	defer f.Close()

	ctx, cancel := context.WithCancel(s.ctx)
	c.Assert(f.Watch(ctx), IsNil)
	c.Assert(s.store.Subscribers(models.FavoritesKey), Equals, 1)

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for s.store.Subscribers(models.FavoritesKey) != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Assert(s.store.Subscribers(models.FavoritesKey), Equals, 0)
}

func (s *FavoritesSuite) TestRegistryReadsAndTogglesWithoutWatching(c *C) {
	r := NewFavoritesRegistry(s.store, logging.Discard())
	defer r.Close()

	res, err := r.Toggle(s.ctx, "alice", "1")
	c.Assert(err, IsNil)
	c.Assert(res, Equals, models.FavoriteToggle{PropertyID: "1", IsFavorite: true, Count: 1})

	v, ok, err := s.store.Read(s.ctx, ClientFavoritesKey("alice"))
	c.Assert(err, IsNil)
	c.Assert(ok, Equals, true)
	c.Assert(v, Equals, `["1"]`)
	c.Assert(ClientFavoritesKey("alice"), Equals, "clients/alice/propertyFavorites")

	snap, err := r.Snapshot(s.ctx, "alice")
	c.Assert(err, IsNil)
	c.Assert(snap, DeepEquals, models.FavoritesSnapshot{IDs: []string{"1"}, Count: 1})

	set, err := r.Set(s.ctx, "alice")
	c.Assert(err, IsNil)
	c.Assert(set.Contains("1"), Equals, true)

	bob, err := r.Snapshot(s.ctx, "bob")
	c.Assert(err, IsNil)
	c.Assert(bob.Count, Equals, 0)

	c.Assert(r.Len(), Equals, 0)
	c.Assert(s.store.Subscribers(ClientFavoritesKey("alice")), Equals, 0)
}

func (s *FavoritesSuite) TestRegistryDoesNotGrowWithAnonymousReads(c *C) {
	r := NewFavoritesRegistry(s.store, logging.Discard())
	defer r.Close()

	before := runtime.NumGoroutine()
	for i := 0; i < 500; i++ {
		_, err := r.Set(s.ctx, fmt.Sprintf("anon-%d", i))
		c.Assert(err, IsNil)
	}

	c.Assert(r.Len(), Equals, 0)
	c.Assert(runtime.NumGoroutine()-before < 10, Equals, true)
}

func (s *FavoritesSuite) TestRegistryReleasesWithLastReference(c *C) {
	r := NewFavoritesRegistry(s.store, logging.Discard())
	defer r.Close()

	first, releaseFirst, err := r.Acquire(s.ctx, "alice")
	c.Assert(err, IsNil)
	second, releaseSecond, err := r.Acquire(s.ctx, "alice")
	c.Assert(err, IsNil)
	c.Assert(second, Equals, first)
	c.Assert(r.Len(), Equals, 1)
	c.Assert(s.store.Subscribers(ClientFavoritesKey("alice")), Equals, 1)

	releaseFirst()
	releaseFirst()
	c.Assert(r.Len(), Equals, 1)

	releaseSecond()
	c.Assert(r.Len(), Equals, 0)
	c.Assert(s.store.Subscribers(ClientFavoritesKey("alice")), Equals, 0)

	again, release, err := r.Acquire(s.ctx, "alice")
	c.Assert(err, IsNil)
	c.Assert(again, Not(Equals), first)
	release()
	c.Assert(r.Len(), Equals, 0)
}

func (s *FavoritesSuite) TestRegistryToggleNotifiesWatchers(c *C) {
	r := NewFavoritesRegistry(s.store, logging.Discard())
	defer r.Close()

	f, release, err := r.Acquire(s.ctx, "alice")
	c.Assert(err, IsNil)
	defer release()

	updates, cancel := f.Listen()
	defer cancel()
	c.Assert(r.Listeners("alice"), Equals, 1)
	c.Assert(r.Listeners("bob"), Equals, 0)

	_, err = r.Toggle(s.ctx, "alice", "5")
	c.Assert(err, IsNil)
	c.Assert(receive(c, updates).IDs, DeepEquals, []string{"5"})
}

func (s *FavoritesSuite) TestRegistryPicksUpWritesFromOtherServers(c *C) {
	r := NewFavoritesRegistry(s.store, logging.Discard())
	defer r.Close()

	f, release, err := r.Acquire(s.ctx, "alice")
	c.Assert(err, IsNil)
	defer release()
	updates, cancel := f.Listen()
	defer cancel()

	c.Assert(s.store.Write(s.ctx, ClientFavoritesKey("alice"), `["3",4]`), IsNil)

	snap := receive(c, updates)
	c.Assert(snap.IDs, DeepEquals, []string{"3", "4"})
}

func (s *FavoritesSuite) TestRegistryClose(c *C) {
	r := NewFavoritesRegistry(s.store, logging.Discard())

	f, release, err := r.Acquire(s.ctx, "alice")
	c.Assert(err, IsNil)
	updates, _ := f.Listen()

	r.Close()
	c.Assert(r.Len(), Equals, 0)
	c.Assert(s.store.Subscribers(ClientFavoritesKey("alice")), Equals, 0)
	_, ok := <-updates
	c.Assert(ok, Equals, false)
	release()

	_, _, err = r.Acquire(s.ctx, "carol")
	c.Assert(err, Equals, ErrFavoritesClosed)
	_, err = r.Toggle(s.ctx, "carol", "1")
	c.Assert(err, Equals, ErrFavoritesClosed)
	_, err = r.Snapshot(s.ctx, "carol")
	c.Assert(err, Equals, ErrFavoritesClosed)
}

type FanoutSuite struct{}

var _ = Suite(&FanoutSuite{})

func (s *FanoutSuite) TestPublishReachesOnlyKeySubscribers(c *C) {
	f := NewFanout()
	a, cancelA := f.Subscribe(context.Background(), "a")
	b, cancelB := f.Subscribe(context.Background(), "b")
	defer cancelA()
	defer cancelB()

	f.Publish("a", "1")
	f.Publish("a", "2")

	c.Assert(<-a, Equals, "2")
	select {
	case v := <-b:
		c.Fatalf("unexpected value %q", v)
	default:
	}
	c.Assert(f.Subscribers("a"), Equals, 1)
}

func (s *FanoutSuite) TestCloseClosesSubscribers(c *C) {
	f := NewFanout()
	ch, cancel := f.Subscribe(context.Background(), "a")

	f.Close()
	_, ok := <-ch
	c.Assert(ok, Equals, false)
	cancel()

	late, _ := f.Subscribe(context.Background(), "a")
	_, ok = <-late
	c.Assert(ok, Equals, false)
	c.Assert(f.Subscribers("a"), Equals, 0)
}

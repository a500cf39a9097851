package services

import (
	"context"
	"sync"
)

// Fanout hands published values to the subscribers of a key. Every
// subscriber channel holds only the latest value, so a slow reader skips
// intermediate states but always ends on the newest one.
type Fanout struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan string
	nextID int
	closed bool
}

// NewFanout creates an empty fanout
func NewFanout() *Fanout {
	return &Fanout{subs: make(map[string]map[int]chan string)}
}

// Subscribe registers a channel for key. It is closed by the returned func,
// by ctx ending, or by Close.
func (f *Fanout) Subscribe(ctx context.Context, key string) (<-chan string, func()) {
	ch := make(chan string, 1)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := f.nextID
	f.nextID++
	if f.subs[key] == nil {
		f.subs[key] = make(map[int]chan string)
	}
	f.subs[key][id] = ch
	f.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(done)
			f.remove(key, id)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	return ch, cancel
}

func (f *Fanout) remove(key string, id int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch, ok := f.subs[key][id]
	if !ok {
		return
	}
	delete(f.subs[key], id)
	if len(f.subs[key]) == 0 {
		delete(f.subs, key)
	}
	close(ch)
}

// Publish delivers value to every subscriber of key
func (f *Fanout) Publish(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subs[key] {
		sendLatest(ch, value)
	}
}

// Subscribers returns the number of active subscriptions for key
func (f *Fanout) Subscribers(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[key])
}

// Close closes every subscriber channel. Later subscriptions receive an
// already closed channel.
func (f *Fanout) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	for key, subs := range f.subs {
		for id, ch := range subs {
			delete(subs, id)
			close(ch)
		}
		delete(f.subs, key)
	}
}

// sendLatest puts v on ch, replacing a value nobody has received yet
func sendLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Package broadcast implements best-effort group-addressed publish/subscribe keyed by room.
// Nothing is persisted or replayed; a subscriber that cannot keep up loses messages.
package broadcast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("broadcast bus closed")

// DefaultBuffer is the per-subscription queue length when none is configured.
const DefaultBuffer = 64

// Bus is the publish/subscribe contract shared by the local and Redis backends.
type Bus interface {
	Publish(ctx context.Context, env Envelope) error
	Subscribe(key string) *Subscription
	Close() error
}

// Observer receives delivery statistics. Metrics implements it.
type Observer interface {
	ObserveBroadcast(key string, delivered, dropped int)
}

// Subscription is one connection's view of a key. C is never closed; wait on Done.
type Subscription struct {
	ID  string
	Key string

	ch      chan Envelope
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
	release func(*Subscription)
}

// C delivers envelopes in publish order.
func (s *Subscription) C() <-chan Envelope {
	return s.ch
}

// Done is closed once the subscription ends.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Dropped counts envelopes lost because the queue was full.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		if s.release != nil {
			s.release(s)
		}
	})
}

func (s *Subscription) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// offer enqueues env without blocking.
func (s *Subscription) offer(env Envelope) bool {
	if s.closed() {
		return false
	}
	select {
	case s.ch <- env:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// topic guards the subscriber set of one key.
type topic struct {
	mu   sync.Mutex
	subs map[string]*Subscription
}

// LocalBus is the in-process bus: a registry of topics, each behind its own mutex.
type LocalBus struct {
	mu       sync.RWMutex
	topics   map[string]*topic
	buffer   int
	observer Observer
	closed   bool
}

// NewLocalBus creates a bus whose subscriptions buffer up to buffer envelopes.
func NewLocalBus(buffer int, observer Observer) *LocalBus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &LocalBus{
		topics:   make(map[string]*topic),
		buffer:   buffer,
		observer: observer,
	}
}

// Subscribe registers a new subscription for key.
func (b *LocalBus) Subscribe(key string) *Subscription {
	sub := &Subscription{
		ID:   uuid.NewString(),
		Key:  key,
		ch:   make(chan Envelope, b.buffer),
		done: make(chan struct{}),
	}
	sub.release = b.unsubscribe

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.Close()
		return sub
	}
	t := b.topics[key]
	if t == nil {
		t = &topic{subs: make(map[string]*Subscription)}
		b.topics[key] = t
	}
	b.mu.Unlock()

	t.mu.Lock()
	t.subs[sub.ID] = sub
	t.mu.Unlock()
	return sub
}

func (b *LocalBus) unsubscribe(sub *Subscription) {
	b.mu.RLock()
	t := b.topics[sub.Key]
	b.mu.RUnlock()
	if t == nil {
		return
	}
	t.mu.Lock()
	delete(t.subs, sub.ID)
	t.mu.Unlock()
}

// Publish fans env out to the current subscribers of env.Key. It holds the topic mutex only
// to snapshot subscribers and never waits on a slow one.
func (b *LocalBus) Publish(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	t := b.topics[env.Key]
	b.mu.RUnlock()
	if t == nil {
		return nil
	}

	t.mu.Lock()
	subs := make([]*Subscription, 0, len(t.subs))
	for _, sub := range t.subs {
		subs = append(subs, sub)
	}
	t.mu.Unlock()

	delivered, dropped := 0, 0
	for _, sub := range subs {
		if sub.offer(env) {
			delivered++
		} else if !sub.closed() {
			dropped++
		}
	}
	if b.observer != nil {
		b.observer.ObserveBroadcast(env.Key, delivered, dropped)
	}
	return nil
}

// Subscribers returns how many subscriptions key currently has.
func (b *LocalBus) Subscribers(key string) int {
	b.mu.RLock()
	t := b.topics[key]
	b.mu.RUnlock()
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Close ends every subscription and rejects further publishes.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	topics := b.topics
	b.topics = make(map[string]*topic)
	b.mu.Unlock()

	for _, t := range topics {
		t.mu.Lock()
		subs := make([]*Subscription, 0, len(t.subs))
		for _, sub := range t.subs {
			subs = append(subs, sub)
		}
		t.subs = make(map[string]*Subscription)
		t.mu.Unlock()
		for _, sub := range subs {
			sub.Close()
		}
	}
	return nil
}

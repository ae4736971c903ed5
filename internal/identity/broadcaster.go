// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package identity

import (
	"log/slog"
	"sync"
)

// subscriberBuffer bounds the pending notifications per subscriber.
const subscriberBuffer = 16

// Broadcaster fans session changes out to subscribers. Each subscriber gets
// its own goroutine so a slow callback never blocks the publisher.
type Broadcaster struct {
	mu      sync.Mutex
	subs    map[uint64]*subscriber
	nextID  uint64
	current SessionChange
	closed  bool
	logger  *slog.Logger
}

type subscriber struct {
	ch   chan SessionChange
	done chan struct{}
	once sync.Once
}

// NewBroadcaster creates a broadcaster. A nil logger uses slog.Default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subs:   make(map[uint64]*subscriber),
		logger: logger,
	}
}

// Current returns the last published change.
func (b *Broadcaster) Current() SessionChange {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Subscribe calls fn with the current state before returning, then delivers
// every later Publish on a dedicated goroutine. Unsubscribe waits for that
// goroutine to exit and must not be called from fn.
func (b *Broadcaster) Subscribe(fn func(SessionChange)) Subscription {
	b.mu.Lock()
	current := b.current
	if b.closed {
		b.mu.Unlock()
		fn(current)
		return SubscriptionFunc(func() {})
	}
	id := b.nextID
	b.nextID++
	sub := &subscriber{
		ch:   make(chan SessionChange, subscriberBuffer),
		done: make(chan struct{}),
	}
	b.subs[id] = sub
	b.mu.Unlock()

	fn(current)

	go func() {
		defer close(sub.done)
		for change := range sub.ch {
			fn(change)
		}
	}()

	return SubscriptionFunc(func() {
		b.mu.Lock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			sub.stop()
		}
		b.mu.Unlock()
		<-sub.done
	})
}

// Publish records change as current and queues it for every subscriber.
// A subscriber whose buffer is full misses the change.
func (b *Broadcaster) Publish(change SessionChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.current = change
	for id, sub := range b.subs {
		select {
		case sub.ch <- change:
		default:
			b.logger.Warn("session change dropped: subscriber buffer full",
				"subscriber", id,
				"authenticated", change.Authenticated,
			)
		}
	}
}

// Close stops every subscriber goroutine and waits for them to exit.
// Later Subscribe calls only receive the initial callback.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[uint64]*subscriber)
	for _, sub := range subs {
		sub.stop()
	}
	b.mu.Unlock()

	for _, sub := range subs {
		<-sub.done
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.ch) })
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package identity_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/oryen/oryen/internal/identity"
	"github.com/oryen/oryen/internal/logging"
)

type changeLog struct {
	mu      sync.Mutex
	changes []identity.SessionChange
}

func (l *changeLog) record(c identity.SessionChange) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, c)
}

func (l *changeLog) snapshot() []identity.SessionChange {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]identity.SessionChange(nil), l.changes...)
}

func TestBroadcasterInitialCallIsSynchronous(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := identity.NewBroadcaster(logging.Discard())
	b.Publish(identity.SessionChange{Authenticated: true, UserID: "u1"})

	var log changeLog
	sub := b.Subscribe(log.record)
	defer sub.Unsubscribe()

	require.Equal(t, []identity.SessionChange{{Authenticated: true, UserID: "u1"}}, log.snapshot())
}

func TestBroadcasterDeliversInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := identity.NewBroadcaster(logging.Discard())
	var log changeLog
	sub := b.Subscribe(log.record)

	b.Publish(identity.SessionChange{Authenticated: true, UserID: "u1"})
	b.Publish(identity.SessionChange{})

	require.Eventually(t, func() bool { return len(log.snapshot()) == 3 }, time.Second, 5*time.Millisecond)
	sub.Unsubscribe()

	assert.Equal(t, []identity.SessionChange{
		{},
		{Authenticated: true, UserID: "u1"},
		{},
	}, log.snapshot())
	assert.Equal(t, identity.SessionChange{}, b.Current())
}

func TestBroadcasterUnsubscribeStopsDelivery(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := identity.NewBroadcaster(logging.Discard())
	var log changeLog
	sub := b.Subscribe(log.record)
	sub.Unsubscribe()
	sub.Unsubscribe()

	b.Publish(identity.SessionChange{Authenticated: true, UserID: "u1"})
	assert.Len(t, log.snapshot(), 1)
}

func TestBroadcasterCloseWaitsForSubscribers(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := identity.NewBroadcaster(logging.Discard())
	var a, c changeLog
	subA := b.Subscribe(a.record)
	b.Subscribe(c.record)

	b.Close()
	b.Close()
	subA.Unsubscribe()

	b.Publish(identity.SessionChange{Authenticated: true})
	assert.Len(t, a.snapshot(), 1)
	assert.Len(t, c.snapshot(), 1)

	var late changeLog
	b.Subscribe(late.record).Unsubscribe()
	assert.Len(t, late.snapshot(), 1)
}

func TestBroadcasterDropsWhenSubscriberIsSlow(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := identity.NewBroadcaster(logging.Discard())
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	sub := b.Subscribe(func(identity.SessionChange) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if !first {
			<-release
		}
	})

	for range 100 {
		b.Publish(identity.SessionChange{Authenticated: true})
	}
	close(release)
	sub.Unsubscribe()

	mu.Lock()
	defer mu.Unlock()
	assert.Less(t, calls, 101)
}

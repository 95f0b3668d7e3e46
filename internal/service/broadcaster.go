package service

import (
	"sync"

	"github.com/forgo/gather/api/internal/model"
)

// Broadcaster fans availability snapshots out to per-event subscribers.
//
// Publish never blocks: each subscription buffers snapshots in an
// unbounded in-order queue drained by its own pump goroutine, so a slow
// watcher delays nobody. Because the allocator publishes while still
// holding the event's serialization domain, the queue order for every
// subscriber is the commit order of the decisions that produced the
// snapshots.
type Broadcaster struct {
	mu     sync.Mutex
	topics map[string]map[*Subscription]struct{}
}

// Subscription is one watcher's feed for a single event. Snapshots
// arrive on C in publish order; C is closed when the subscription is
// cancelled or the event is deleted.
type Subscription struct {
	C <-chan model.Snapshot

	eventID string
	ch      chan model.Snapshot

	mu     sync.Mutex
	queue  []model.Snapshot
	wake   chan struct{}
	done   chan struct{}
	closed sync.Once
}

// NewBroadcaster creates a new broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{topics: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers a new watcher for an event
func (b *Broadcaster) Subscribe(eventID string) *Subscription {
	sub := &Subscription{
		eventID: eventID,
		ch:      make(chan model.Snapshot),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	sub.C = sub.ch

	b.mu.Lock()
	subs, ok := b.topics[eventID]
	if !ok {
		subs = make(map[*Subscription]struct{})
		b.topics[eventID] = subs
	}
	subs[sub] = struct{}{}
	b.mu.Unlock()

	go sub.pump()
	return sub
}

// Unsubscribe removes a watcher and closes its channel. Safe to call
// more than once.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if subs, ok := b.topics[sub.eventID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.topics, sub.eventID)
		}
	}
	b.mu.Unlock()

	sub.close()
}

// Publish enqueues a snapshot for every current subscriber of the event.
// It only touches memory and returns immediately.
func (b *Broadcaster) Publish(snapshot model.Snapshot) {
	b.mu.Lock()
	for sub := range b.topics[snapshot.EventID] {
		sub.enqueue(snapshot)
	}
	b.mu.Unlock()
}

// CloseTopic terminates every subscription for an event. Used when the
// event is deleted.
func (b *Broadcaster) CloseTopic(eventID string) {
	b.mu.Lock()
	subs := b.topics[eventID]
	delete(b.topics, eventID)
	b.mu.Unlock()

	for sub := range subs {
		sub.close()
	}
}

// SubscriberCount reports the number of active watchers for an event
func (b *Broadcaster) SubscriberCount(eventID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[eventID])
}

func (s *Subscription) enqueue(snapshot model.Snapshot) {
	s.mu.Lock()
	s.queue = append(s.queue, snapshot)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// pump drains the queue onto the delivery channel, preserving order. It
// exits once the subscription closes and the queue is flushed or the
// receiver is gone.
func (s *Subscription) pump() {
	defer close(s.ch)
	for {
		s.mu.Lock()
		var next model.Snapshot
		have := len(s.queue) > 0
		if have {
			next = s.queue[0]
			s.queue = s.queue[1:]
		}
		s.mu.Unlock()

		if !have {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}

		select {
		case s.ch <- next:
		case <-s.done:
			return
		}
	}
}

func (s *Subscription) close() {
	s.closed.Do(func() { close(s.done) })
}

package service

import (
	"context"

	"github.com/forgo/gather/api/internal/model"
)

// AllocationStore persists the registration ledger and its roster
// projection. Create and Delete must write both atomically; PurgeEvent
// must remove the event record together with its registrations and
// roster entries in one commit.
type AllocationStore interface {
	IsRegistered(ctx context.Context, eventID, userID string) (bool, error)
	Count(ctx context.Context, eventID string) (int, error)
	Create(ctx context.Context, reg *model.Registration) error
	Delete(ctx context.Context, eventID, userID string) error
	PurgeEvent(ctx context.Context, eventID string) error
	Registrants(ctx context.Context, eventID string) ([]string, error)
}

// EventGetter looks up events for admission decisions
type EventGetter interface {
	Get(ctx context.Context, eventID string) (*model.Event, error)
}

// SeatAllocator decides who holds an event's seats.
//
// Every decision for an event runs inside that event's serialization
// domain: the full read-decide-write cycle holds the per-event lock, so
// two concurrent registrations for the last seat cannot both read the
// same count. Decisions for different events proceed in parallel.
//
// After a decision commits, and before the domain is released, the
// allocator publishes the resulting snapshot. The snapshot's counts come
// from the committed state the decision itself produced, never from a
// re-read that could observe later writes.
type SeatAllocator struct {
	store       AllocationStore
	events      EventGetter
	broadcaster *Broadcaster
	locks       *eventLocks
}

// NewSeatAllocator creates a new seat allocator
func NewSeatAllocator(store AllocationStore, events EventGetter, broadcaster *Broadcaster) *SeatAllocator {
	return &SeatAllocator{
		store:       store,
		events:      events,
		broadcaster: broadcaster,
		locks:       newEventLocks(),
	}
}

// Register grants the user one of the event's seats. Fails with
// ErrEventFull when no seat is free, ErrAlreadyRegistered when the user
// already holds one, and ErrEventNotFound when the event does not exist.
// On success it returns the snapshot produced by this admission.
func (a *SeatAllocator) Register(ctx context.Context, eventID, userID string) (*model.Snapshot, error) {
	release, err := a.locks.Acquire(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer release()

	event, err := a.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrEventNotFound
	}

	registered, err := a.store.IsRegistered(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if registered {
		return nil, ErrAlreadyRegistered
	}

	count, err := a.store.Count(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if count >= event.Seats {
		return nil, ErrEventFull
	}

	reg := &model.Registration{EventID: eventID, UserID: userID}
	if err := a.store.Create(ctx, reg); err != nil {
		return nil, err
	}

	snapshot := makeSnapshot(event, count+1)
	a.broadcaster.Publish(snapshot)
	return &snapshot, nil
}

// Unregister releases the user's seat. Fails with ErrNotRegistered when
// the user holds no seat, so a double cancel is reported rather than
// silently succeeding.
func (a *SeatAllocator) Unregister(ctx context.Context, eventID, userID string) (*model.Snapshot, error) {
	release, err := a.locks.Acquire(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer release()

	event, err := a.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrEventNotFound
	}

	registered, err := a.store.IsRegistered(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if !registered {
		return nil, ErrNotRegistered
	}

	count, err := a.store.Count(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if err := a.store.Delete(ctx, eventID, userID); err != nil {
		return nil, err
	}

	snapshot := makeSnapshot(event, count-1)
	a.broadcaster.Publish(snapshot)
	return &snapshot, nil
}

// Purge removes the event and every registration it holds in one commit,
// then terminates all watcher subscriptions. Callers are responsible for
// the ownership check.
func (a *SeatAllocator) Purge(ctx context.Context, eventID string) error {
	release, err := a.locks.Acquire(ctx, eventID)
	if err != nil {
		return err
	}
	defer release()

	if err := a.store.PurgeEvent(ctx, eventID); err != nil {
		return err
	}

	a.broadcaster.CloseTopic(eventID)
	return nil
}

// Resize persists a capacity change inside the event's serialization
// domain, so the change cannot interleave with an admission decision,
// and publishes the resulting snapshot. persist runs with the domain
// held and must commit the new seat count.
func (a *SeatAllocator) Resize(ctx context.Context, eventID string, persist func(ctx context.Context) (*model.Event, error)) (*model.Event, error) {
	release, err := a.locks.Acquire(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer release()

	event, err := persist(ctx)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrEventNotFound
	}

	count, err := a.store.Count(ctx, eventID)
	if err != nil {
		return nil, err
	}

	a.broadcaster.Publish(makeSnapshot(event, count))
	return event, nil
}

// Availability returns the committed seat state of an event
func (a *SeatAllocator) Availability(ctx context.Context, eventID string) (*model.Snapshot, error) {
	event, err := a.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrEventNotFound
	}

	count, err := a.store.Count(ctx, eventID)
	if err != nil {
		return nil, err
	}

	snapshot := makeSnapshot(event, count)
	return &snapshot, nil
}

// Snapshot derives the committed snapshot for an already-loaded event,
// skipping the lookup Availability would repeat.
func (a *SeatAllocator) Snapshot(ctx context.Context, event *model.Event) (*model.Snapshot, error) {
	count, err := a.store.Count(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	snapshot := makeSnapshot(event, count)
	return &snapshot, nil
}

// IsRegistered reports whether the user holds a seat at the event
func (a *SeatAllocator) IsRegistered(ctx context.Context, eventID, userID string) (bool, error) {
	return a.store.IsRegistered(ctx, eventID, userID)
}

// Registrants returns the display names on the event's roster
func (a *SeatAllocator) Registrants(ctx context.Context, eventID string) ([]string, error) {
	return a.store.Registrants(ctx, eventID)
}

// makeSnapshot derives a snapshot from an event and a committed count.
// Available seats clamp at zero: reducing capacity below the current
// count never invalidates registrations, it only stops new admissions.
func makeSnapshot(event *model.Event, count int) model.Snapshot {
	available := event.Seats - count
	if available < 0 {
		available = 0
	}
	return model.Snapshot{
		EventID:         event.ID,
		RegisteredCount: count,
		AvailableSeats:  available,
	}
}

// Package memstore provides an in-memory implementation of Gather's
// repository interfaces for tests that exercise the full service and
// handler stack without a database.
//
// The store honors the same contracts as the SurrealDB repositories:
// lookups return (nil, nil) when nothing matches, duplicate emails fail,
// and a purge removes the event with its registrations in one step.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forgo/gather/api/internal/database"
	"github.com/forgo/gather/api/internal/model"
)

// Store is an in-memory backing store for users, events, and
// registrations. Safe for concurrent use. The Users, Events, and
// Registrations views satisfy the corresponding repository interfaces.
type Store struct {
	mu         sync.Mutex
	users      map[string]*model.User
	emailIndex map[string]string
	events     map[string]*model.Event
	regs       map[string]map[string]*model.Registration // eventID -> userID
}

// New creates an empty store
func New() *Store {
	return &Store{
		users:      make(map[string]*model.User),
		emailIndex: make(map[string]string),
		events:     make(map[string]*model.Event),
		regs:       make(map[string]map[string]*model.Registration),
	}
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Users returns the user repository view
func (s *Store) Users() *Users { return &Users{s: s} }

// Events returns the event repository view
func (s *Store) Events() *Events { return &Events{s: s} }

// Registrations returns the registration repository view
func (s *Store) Registrations() *Registrations { return &Registrations{s: s} }

// ===== Users =====

// Users is the user repository view of a Store
type Users struct {
	s *Store
}

// Create stores a new user, rejecting duplicate emails
func (u *Users) Create(ctx context.Context, user *model.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if _, exists := u.s.emailIndex[user.Email]; exists {
		return fmt.Errorf("%w: email already exists", database.ErrDuplicate)
	}
	if user.Role == "" {
		user.Role = model.UserRoleUser
	}
	user.ID = "user:" + uuid.NewString()
	user.CreatedOn = time.Now()
	user.UpdatedOn = user.CreatedOn
	copy := *user
	u.s.users[user.ID] = &copy
	u.s.emailIndex[user.Email] = user.ID
	return nil
}

// GetByID retrieves a user by ID
func (u *Users) GetByID(ctx context.Context, id string) (*model.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return nil, nil
	}
	copy := *user
	return &copy, nil
}

// GetByEmail retrieves a user by email
func (u *Users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	id, ok := u.s.emailIndex[email]
	if !ok {
		return nil, nil
	}
	copy := *u.s.users[id]
	return &copy, nil
}

// ===== Events =====

// Events is the event repository view of a Store
type Events struct {
	s *Store
}

// Create stores a new event
func (e *Events) Create(ctx context.Context, event *model.Event) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	event.ID = "event:" + uuid.NewString()
	event.CreatedOn = time.Now()
	event.UpdatedOn = event.CreatedOn
	copy := *event
	e.s.events[event.ID] = &copy
	return nil
}

// Get retrieves an event by ID
func (e *Events) Get(ctx context.Context, eventID string) (*model.Event, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	event, ok := e.s.events[eventID]
	if !ok {
		return nil, nil
	}
	copy := *event
	return &copy, nil
}

// List retrieves all events ordered by date
func (e *Events) List(ctx context.Context) ([]*model.Event, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	out := make([]*model.Event, 0, len(e.s.events))
	for _, event := range e.s.events {
		copy := *event
		out = append(out, &copy)
	}
	sortByDate(out)
	return out, nil
}

// ListByOrganizer retrieves the events owned by an organizer
func (e *Events) ListByOrganizer(ctx context.Context, organizerID string) ([]*model.Event, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	var out []*model.Event
	for _, event := range e.s.events {
		if event.OrganizerID == organizerID {
			copy := *event
			out = append(out, &copy)
		}
	}
	sortByDate(out)
	return out, nil
}

// Update applies field updates to an event
func (e *Events) Update(ctx context.Context, eventID string, updates map[string]interface{}) (*model.Event, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	event, ok := e.s.events[eventID]
	if !ok {
		return nil, nil
	}
	if title, ok := updates["title"].(string); ok {
		event.Title = title
	}
	if description, ok := updates["description"].(string); ok {
		event.Description = description
	}
	if date, ok := updates["date"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, date); err == nil {
			event.Date = parsed
		}
	}
	if seats, ok := updates["seats"].(int); ok {
		event.Seats = seats
	}
	event.UpdatedOn = time.Now()
	copy := *event
	return &copy, nil
}

// UpcomingWithin retrieves events whose date falls inside [from, until)
func (e *Events) UpcomingWithin(ctx context.Context, from, until time.Time) ([]*model.Event, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	var out []*model.Event
	for _, event := range e.s.events {
		if !event.Date.Before(from) && event.Date.Before(until) {
			copy := *event
			out = append(out, &copy)
		}
	}
	sortByDate(out)
	return out, nil
}

func sortByDate(events []*model.Event) {
	sort.Slice(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })
}

// ===== Registrations =====

// Registrations is the registration repository view of a Store
type Registrations struct {
	s *Store
}

// Create stores a registration
func (r *Registrations) Create(ctx context.Context, reg *model.Registration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	users, ok := r.s.regs[reg.EventID]
	if !ok {
		users = make(map[string]*model.Registration)
		r.s.regs[reg.EventID] = users
	}
	reg.ID = "registration:" + uuid.NewString()
	reg.CreatedOn = time.Now()
	copy := *reg
	users[reg.UserID] = &copy
	return nil
}

// Delete removes a registration; a missing pair is a no-op
func (r *Registrations) Delete(ctx context.Context, eventID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.regs[eventID], userID)
	return nil
}

// PurgeEvent removes an event with all of its registrations
func (r *Registrations) PurgeEvent(ctx context.Context, eventID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.regs, eventID)
	delete(r.s.events, eventID)
	return nil
}

// IsRegistered reports whether a user holds a seat at an event
func (r *Registrations) IsRegistered(ctx context.Context, eventID, userID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.regs[eventID][userID]
	return ok, nil
}

// Count returns the number of registrations for an event
func (r *Registrations) Count(ctx context.Context, eventID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.regs[eventID]), nil
}

// Registrants returns the display names of an event's attendees
func (r *Registrations) Registrants(ctx context.Context, eventID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	names := make([]string, 0, len(r.s.regs[eventID]))
	for userID := range r.s.regs[eventID] {
		if user, ok := r.s.users[userID]; ok {
			names = append(names, user.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// ListByEvent returns an event's registrations in commit order
func (r *Registrations) ListByEvent(ctx context.Context, eventID string) ([]*model.Registration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.Registration, 0, len(r.s.regs[eventID]))
	for _, reg := range r.s.regs[eventID] {
		copy := *reg
		out = append(out, &copy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedOn.Before(out[j].CreatedOn) })
	return out, nil
}

// ListByUser returns a user's registrations with their events, newest
// first.
func (r *Registrations) ListByUser(ctx context.Context, userID string) ([]*model.RegistrationWithEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.RegistrationWithEvent
	for eventID, users := range r.s.regs {
		reg, ok := users[userID]
		if !ok {
			continue
		}
		item := &model.RegistrationWithEvent{Registration: *reg}
		if event, ok := r.s.events[eventID]; ok {
			copy := *event
			item.Event = &copy
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Registration.CreatedOn.After(out[j].Registration.CreatedOn)
	})
	return out, nil
}

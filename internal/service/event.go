package service

import (
	"context"
	"time"

	"github.com/forgo/gather/api/internal/model"
)

// EventRepositoryInterface defines the repository interface
type EventRepositoryInterface interface {
	Create(ctx context.Context, event *model.Event) error
	Get(ctx context.Context, eventID string) (*model.Event, error)
	List(ctx context.Context) ([]*model.Event, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]*model.Event, error)
	Update(ctx context.Context, eventID string, updates map[string]interface{}) (*model.Event, error)
}

// EventService handles event lifecycle. Mutations are guarded: only the
// event's organizer may edit or delete it, and deletion cascades through
// the allocator so registrations never outlive their event.
type EventService struct {
	repo      EventRepositoryInterface
	allocator *SeatAllocator
}

// NewEventService creates a new event service
func NewEventService(repo EventRepositoryInterface, allocator *SeatAllocator) *EventService {
	return &EventService{repo: repo, allocator: allocator}
}

// CreateEvent publishes a new event owned by the organizer
func (s *EventService) CreateEvent(ctx context.Context, organizerID string, req *model.CreateEventRequest) (*model.Event, error) {
	event := &model.Event{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Seats:       req.Seats,
		OrganizerID: organizerID,
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// GetEvent retrieves an event with its committed seat availability
func (s *EventService) GetEvent(ctx context.Context, eventID string) (*model.EventWithAvailability, error) {
	event, err := s.repo.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrEventNotFound
	}

	return s.withAvailability(ctx, event)
}

// ListEvents retrieves all events with their seat availability
func (s *EventService) ListEvents(ctx context.Context) ([]*model.EventWithAvailability, error) {
	events, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*model.EventWithAvailability, 0, len(events))
	for _, event := range events {
		item, err := s.withAvailability(ctx, event)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// ListByOrganizer retrieves the organizer's own events with availability
func (s *EventService) ListByOrganizer(ctx context.Context, organizerID string) ([]*model.EventWithAvailability, error) {
	events, err := s.repo.ListByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, err
	}

	out := make([]*model.EventWithAvailability, 0, len(events))
	for _, event := range events {
		item, err := s.withAvailability(ctx, event)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// UpdateEvent edits an event. Only the organizer may edit; a seat
// capacity change is applied through the allocator's serialization
// domain and broadcast to watchers.
func (s *EventService) UpdateEvent(ctx context.Context, eventID, userID string, req *model.UpdateEventRequest) (*model.Event, error) {
	event, err := s.repo.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	if event.OrganizerID != userID {
		return nil, ErrNotOrganizer
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Date != nil {
		updates["date"] = req.Date.UTC().Format(time.RFC3339)
	}
	if req.Seats != nil {
		updates["seats"] = *req.Seats
	}

	if len(updates) == 0 {
		return event, nil
	}

	if req.Seats != nil {
		return s.allocator.Resize(ctx, eventID, func(ctx context.Context) (*model.Event, error) {
			return s.repo.Update(ctx, eventID, updates)
		})
	}

	updated, err := s.repo.Update(ctx, eventID, updates)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrEventNotFound
	}
	return updated, nil
}

// DeleteEvent removes an event and everything registered to it. Only the
// organizer may delete. Watchers of the event are disconnected.
func (s *EventService) DeleteEvent(ctx context.Context, eventID, userID string) error {
	event, err := s.repo.Get(ctx, eventID)
	if err != nil {
		return err
	}
	if event == nil {
		return ErrEventNotFound
	}
	if event.OrganizerID != userID {
		return ErrNotOrganizer
	}

	return s.allocator.Purge(ctx, eventID)
}

// Stats summarises an event's registrations for its organizer
func (s *EventService) Stats(ctx context.Context, eventID, userID string) (*model.EventStats, error) {
	event, err := s.repo.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	if event.OrganizerID != userID {
		return nil, ErrNotOrganizer
	}

	snapshot, err := s.allocator.Availability(ctx, eventID)
	if err != nil {
		return nil, err
	}

	registrants, err := s.allocator.Registrants(ctx, eventID)
	if err != nil {
		return nil, err
	}

	return &model.EventStats{
		EventID:            eventID,
		TotalRegistrations: snapshot.RegisteredCount,
		AvailableSeats:     snapshot.AvailableSeats,
		Registrants:        registrants,
	}, nil
}

func (s *EventService) withAvailability(ctx context.Context, event *model.Event) (*model.EventWithAvailability, error) {
	snapshot, err := s.allocator.Snapshot(ctx, event)
	if err != nil {
		return nil, err
	}
	return &model.EventWithAvailability{
		Event:           *event,
		RegisteredCount: snapshot.RegisteredCount,
		AvailableSeats:  snapshot.AvailableSeats,
	}, nil
}

package service

import (
	"context"

	"github.com/forgo/gather/api/internal/model"
)

// RegistrationLister reads registration listings
type RegistrationLister interface {
	ListByEvent(ctx context.Context, eventID string) ([]*model.Registration, error)
	ListByUser(ctx context.Context, userID string) ([]*model.RegistrationWithEvent, error)
}

// RegistrationService fronts the seat allocator for the HTTP surface and
// guards the listing endpoints.
type RegistrationService struct {
	allocator *SeatAllocator
	lister    RegistrationLister
	events    EventGetter
}

// NewRegistrationService creates a new registration service
func NewRegistrationService(allocator *SeatAllocator, lister RegistrationLister, events EventGetter) *RegistrationService {
	return &RegistrationService{allocator: allocator, lister: lister, events: events}
}

// Register claims a seat for the user
func (s *RegistrationService) Register(ctx context.Context, eventID, userID string) (*model.Snapshot, error) {
	return s.allocator.Register(ctx, eventID, userID)
}

// Unregister releases the user's seat
func (s *RegistrationService) Unregister(ctx context.Context, eventID, userID string) (*model.Snapshot, error) {
	return s.allocator.Unregister(ctx, eventID, userID)
}

// ListByEvent returns an event's registrations. Only the organizer may
// see who registered.
func (s *RegistrationService) ListByEvent(ctx context.Context, eventID, userID string) ([]*model.Registration, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	if event.OrganizerID != userID {
		return nil, ErrNotOrganizer
	}

	return s.lister.ListByEvent(ctx, eventID)
}

// MyRegistrations returns the caller's registrations with their events
func (s *RegistrationService) MyRegistrations(ctx context.Context, userID string) ([]*model.RegistrationWithEvent, error) {
	return s.lister.ListByUser(ctx, userID)
}

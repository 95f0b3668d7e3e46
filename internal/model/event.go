package model

import (
	"strings"
	"time"
)

// Event represents a schedulable activity with a fixed seat capacity,
// owned by its organizer.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
	Seats       int       `json:"seats"`
	OrganizerID string    `json:"organizer_id"`
	CreatedOn   time.Time `json:"created_on"`
	UpdatedOn   time.Time `json:"updated_on"`
}

// Constraints
const (
	MaxEventTitleLength       = 100
	MaxEventDescriptionLength = 2000
	MaxEventSeats             = 100_000
)

// CreateEventRequest is the payload for publishing a new event
type CreateEventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
	Seats       int       `json:"seats"`
}

// Validate validates a CreateEventRequest
func (r *CreateEventRequest) Validate() []FieldError {
	var errs []FieldError

	if strings.TrimSpace(r.Title) == "" {
		errs = append(errs, FieldError{Field: "title", Message: "title is required"})
	} else if len(r.Title) > MaxEventTitleLength {
		errs = append(errs, FieldError{Field: "title", Message: "title too long"})
	}

	if len(r.Description) > MaxEventDescriptionLength {
		errs = append(errs, FieldError{Field: "description", Message: "description too long"})
	}

	if r.Date.IsZero() {
		errs = append(errs, FieldError{Field: "date", Message: "date is required"})
	}

	if r.Seats < 0 {
		errs = append(errs, FieldError{Field: "seats", Message: "seats must be non-negative"})
	} else if r.Seats > MaxEventSeats {
		errs = append(errs, FieldError{Field: "seats", Message: "seats exceeds maximum"})
	}

	return errs
}

// UpdateEventRequest is the payload for editing an event. Nil fields are
// left unchanged. Seats may be reduced below the current registration
// count; existing registrations are never invalidated by an edit.
type UpdateEventRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
	Seats       *int       `json:"seats,omitempty"`
}

// Validate validates an UpdateEventRequest
func (r *UpdateEventRequest) Validate() []FieldError {
	var errs []FieldError

	if r.Title != nil {
		if strings.TrimSpace(*r.Title) == "" {
			errs = append(errs, FieldError{Field: "title", Message: "title cannot be empty"})
		} else if len(*r.Title) > MaxEventTitleLength {
			errs = append(errs, FieldError{Field: "title", Message: "title too long"})
		}
	}

	if r.Description != nil && len(*r.Description) > MaxEventDescriptionLength {
		errs = append(errs, FieldError{Field: "description", Message: "description too long"})
	}

	if r.Seats != nil {
		if *r.Seats < 0 {
			errs = append(errs, FieldError{Field: "seats", Message: "seats must be non-negative"})
		} else if *r.Seats > MaxEventSeats {
			errs = append(errs, FieldError{Field: "seats", Message: "seats exceeds maximum"})
		}
	}

	return errs
}

// Snapshot is a point-in-time view of an event's seat allocation, produced
// by a committed allocator decision and fanned out to watchers.
type Snapshot struct {
	EventID         string `json:"event_id"`
	RegisteredCount int    `json:"registered_count"`
	AvailableSeats  int    `json:"available_seats"`
}

// EventWithAvailability pairs an event with its committed seat state
type EventWithAvailability struct {
	Event           Event `json:"event"`
	RegisteredCount int   `json:"registered_count"`
	AvailableSeats  int   `json:"available_seats"`
}

// EventStats summarises registrations for an organizer's dashboard
type EventStats struct {
	EventID            string   `json:"event_id"`
	TotalRegistrations int      `json:"total_registrations"`
	AvailableSeats     int      `json:"available_seats"`
	Registrants        []string `json:"registrants"`
}

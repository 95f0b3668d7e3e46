package model

import "time"

// Registration is the durable fact that a user holds one of an event's
// seats. Exactly one registration may exist per (event, user) pair.
// Registrations are created and deleted only by the seat allocator; a
// cancel deletes the record rather than flagging it inactive.
type Registration struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	CreatedOn time.Time `json:"created_on"`
}

// RosterEntry is the display-oriented projection of a registration. The
// roster is a cache of the ledger: an entry exists if and only if the
// matching registration does, and both are written in the same commit.
type RosterEntry struct {
	ID      string `json:"id"`
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
}

// RegistrationWithEvent pairs a registration with its event for the
// my-registrations listing.
type RegistrationWithEvent struct {
	Registration Registration `json:"registration"`
	Event        *Event       `json:"event,omitempty"`
}

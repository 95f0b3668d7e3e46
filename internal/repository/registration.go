package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/forgo/gather/api/internal/database"
	"github.com/forgo/gather/api/internal/model"
)

// RegistrationRepository handles registration ledger and roster data
// access. Every write pairs the ledger record with its roster entry in
// one AtomicBatch, so the two tables never disagree at a commit boundary.
type RegistrationRepository struct {
	db database.Database
}

// NewRegistrationRepository creates a new registration repository
func NewRegistrationRepository(db database.Database) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create writes a registration and its roster entry atomically. IDs are
// generated client-side because a batched CREATE returns no rows.
func (r *RegistrationRepository) Create(ctx context.Context, reg *model.Registration) error {
	regID := uuid.NewString()
	rosterID := uuid.NewString()

	batch := database.NewAtomicBatch()
	batch.Add(`
		CREATE type::thing('registration', $reg_id) CONTENT {
			event_id: type::record($event_id),
			user_id: type::record($user_id),
			created_on: time::now()
		}
	`, map[string]interface{}{
		"reg_id":   regID,
		"event_id": reg.EventID,
		"user_id":  reg.UserID,
	})
	batch.Add(`
		CREATE type::thing('roster', $roster_id) CONTENT {
			event_id: type::record($event_id),
			user_id: type::record($user_id)
		}
	`, map[string]interface{}{
		"roster_id": rosterID,
		"event_id":  reg.EventID,
		"user_id":   reg.UserID,
	})

	if err := batch.Execute(ctx, r.db); err != nil {
		return err
	}

	reg.ID = "registration:" + regID
	reg.CreatedOn = time.Now().UTC()
	return nil
}

// Delete removes a registration and its roster entry atomically. Deleting
// a pair that does not exist is a no-op.
func (r *RegistrationRepository) Delete(ctx context.Context, eventID, userID string) error {
	batch := database.NewAtomicBatch()
	batch.Add(`
		DELETE registration
		WHERE event_id = type::record($event_id)
		AND user_id = type::record($user_id)
	`, map[string]interface{}{
		"event_id": eventID,
		"user_id":  userID,
	})
	batch.Add(`
		DELETE roster
		WHERE event_id = type::record($event_id)
		AND user_id = type::record($user_id)
	`, map[string]interface{}{
		"event_id": eventID,
		"user_id":  userID,
	})

	return batch.Execute(ctx, r.db)
}

// PurgeEvent removes an event together with all of its registrations and
// roster entries in a single transaction.
func (r *RegistrationRepository) PurgeEvent(ctx context.Context, eventID string) error {
	batch := database.NewAtomicBatch()
	batch.Add(`DELETE registration WHERE event_id = type::record($event_id)`,
		map[string]interface{}{"event_id": eventID})
	batch.Add(`DELETE roster WHERE event_id = type::record($event_id)`,
		map[string]interface{}{"event_id": eventID})
	batch.Add(`DELETE type::record($event_id)`,
		map[string]interface{}{"event_id": eventID})

	return batch.Execute(ctx, r.db)
}

// IsRegistered reports whether a user holds a seat at an event
func (r *RegistrationRepository) IsRegistered(ctx context.Context, eventID, userID string) (bool, error) {
	query := `
		SELECT count() as count FROM registration
		WHERE event_id = type::record($event_id)
		AND user_id = type::record($user_id)
		GROUP ALL
	`
	vars := map[string]interface{}{
		"event_id": eventID,
		"user_id":  userID,
	}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if data, ok := result.(map[string]interface{}); ok {
		return getInt(data, "count") > 0, nil
	}
	return false, nil
}

// Count returns the number of committed registrations for an event
func (r *RegistrationRepository) Count(ctx context.Context, eventID string) (int, error) {
	query := `
		SELECT count() as count FROM registration
		WHERE event_id = type::record($event_id)
		GROUP ALL
	`
	vars := map[string]interface{}{"event_id": eventID}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	if data, ok := result.(map[string]interface{}); ok {
		return getInt(data, "count"), nil
	}
	return 0, nil
}

// Registrants returns the display names of an event's attendees, read
// from the roster projection rather than the ledger.
func (r *RegistrationRepository) Registrants(ctx context.Context, eventID string) ([]string, error) {
	query := `
		SELECT user_id.name AS name FROM roster
		WHERE event_id = type::record($event_id)
		ORDER BY name ASC
	`
	vars := map[string]interface{}{"event_id": eventID}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows, ok := extractQueryResults(result)
	if !ok {
		return []string{}, nil
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if data, ok := row.(map[string]interface{}); ok {
			if name := getString(data, "name"); name != "" {
				names = append(names, name)
			}
		}
	}
	return names, nil
}

// ListByEvent returns an event's registrations in commit order
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]*model.Registration, error) {
	query := `
		SELECT * FROM registration
		WHERE event_id = type::record($event_id)
		ORDER BY created_on ASC
	`
	vars := map[string]interface{}{"event_id": eventID}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows, ok := extractQueryResults(result)
	if !ok {
		return []*model.Registration{}, nil
	}

	regs := make([]*model.Registration, 0, len(rows))
	for _, row := range rows {
		reg, err := parseRegistrationResult(row)
		if err != nil {
			continue
		}
		regs = append(regs, reg)
	}
	return regs, nil
}

// ListByUser returns a user's registrations with their events, newest
// first.
func (r *RegistrationRepository) ListByUser(ctx context.Context, userID string) ([]*model.RegistrationWithEvent, error) {
	query := `
		SELECT *, event_id.* AS event FROM registration
		WHERE user_id = type::record($user_id)
		ORDER BY created_on DESC
	`
	vars := map[string]interface{}{"user_id": userID}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows, ok := extractQueryResults(result)
	if !ok {
		return []*model.RegistrationWithEvent{}, nil
	}

	out := make([]*model.RegistrationWithEvent, 0, len(rows))
	for _, row := range rows {
		reg, err := parseRegistrationResult(row)
		if err != nil {
			continue
		}
		item := &model.RegistrationWithEvent{Registration: *reg}
		if data, ok := row.(map[string]interface{}); ok {
			if eventData, ok := data["event"].(map[string]interface{}); ok {
				if event, err := parseEventResult(eventData); err == nil {
					item.Event = event
				}
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// parseRegistrationResult converts a raw query result into a Registration
func parseRegistrationResult(result interface{}) (*model.Registration, error) {
	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected registration result format")
	}

	reg := &model.Registration{}
	if id, ok := data["id"]; ok {
		reg.ID = extractRecordID(id)
	}
	if eventID, ok := data["event_id"]; ok {
		reg.EventID = extractRecordID(eventID)
	}
	if userID, ok := data["user_id"]; ok {
		reg.UserID = extractRecordID(userID)
	}
	reg.CreatedOn = parseTime(data["created_on"])

	return reg, nil
}

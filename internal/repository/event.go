package repository

import (
	"context"
	"errors"
	"time"

	"github.com/forgo/gather/api/internal/database"
	"github.com/forgo/gather/api/internal/model"
)

// EventRepository handles event data access
type EventRepository struct {
	db database.Database
}

// NewEventRepository creates a new event repository
func NewEventRepository(db database.Database) *EventRepository {
	return &EventRepository{db: db}
}

// Create creates a new event
func (r *EventRepository) Create(ctx context.Context, event *model.Event) error {
	query := `
		CREATE event CONTENT {
			title: $title,
			description: $description,
			date: <datetime>$date,
			seats: $seats,
			organizer_id: type::record($organizer_id),
			created_on: time::now(),
			updated_on: time::now()
		}
	`

	vars := map[string]interface{}{
		"title":        event.Title,
		"description":  event.Description,
		"date":         event.Date.UTC().Format(time.RFC3339),
		"seats":        event.Seats,
		"organizer_id": event.OrganizerID,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}

	event.ID = created.ID
	event.CreatedOn = created.CreatedOn
	event.UpdatedOn = created.UpdatedOn
	return nil
}

// Get retrieves an event by ID. Returns (nil, nil) when no such event
// exists.
func (r *EventRepository) Get(ctx context.Context, eventID string) (*model.Event, error) {
	query := `SELECT * FROM type::record($event_id)`
	vars := map[string]interface{}{"event_id": eventID}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseEventResult(result)
}

// List retrieves all events ordered by date
func (r *EventRepository) List(ctx context.Context) ([]*model.Event, error) {
	query := `SELECT * FROM event ORDER BY date ASC`

	result, err := r.db.Query(ctx, query, nil)
	if err != nil {
		return nil, err
	}

	return parseEventsResult(result)
}

// ListByOrganizer retrieves the events owned by an organizer
func (r *EventRepository) ListByOrganizer(ctx context.Context, organizerID string) ([]*model.Event, error) {
	query := `
		SELECT * FROM event
		WHERE organizer_id = type::record($organizer_id)
		ORDER BY date ASC
	`
	vars := map[string]interface{}{"organizer_id": organizerID}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	return parseEventsResult(result)
}

// Update applies field updates to an event and returns the updated record
func (r *EventRepository) Update(ctx context.Context, eventID string, updates map[string]interface{}) (*model.Event, error) {
	query := `UPDATE event SET updated_on = time::now()`
	vars := map[string]interface{}{"event_id": eventID}

	for key, value := range updates {
		query += ", " + key + " = $" + key
		vars[key] = value
	}

	query += ` WHERE id = type::record($event_id) RETURN AFTER`

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseEventResult(result)
}

// UpcomingWithin retrieves events whose date falls inside [from, until),
// used by the reminder scanner.
func (r *EventRepository) UpcomingWithin(ctx context.Context, from, until time.Time) ([]*model.Event, error) {
	query := `
		SELECT * FROM event
		WHERE date >= <datetime>$from AND date < <datetime>$until
		ORDER BY date ASC
	`
	vars := map[string]interface{}{
		"from":  from.UTC().Format(time.RFC3339),
		"until": until.UTC().Format(time.RFC3339),
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	return parseEventsResult(result)
}

// parseEventResult converts a raw query result into an Event
func parseEventResult(result interface{}) (*model.Event, error) {
	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected event result format")
	}

	event := &model.Event{
		Title:       getString(data, "title"),
		Description: getString(data, "description"),
		Seats:       getInt(data, "seats"),
	}
	if id, ok := data["id"]; ok {
		event.ID = extractRecordID(id)
	}
	if organizerID, ok := data["organizer_id"]; ok {
		event.OrganizerID = extractRecordID(organizerID)
	}
	event.Date = parseTime(data["date"])
	event.CreatedOn = parseTime(data["created_on"])
	event.UpdatedOn = parseTime(data["updated_on"])

	return event, nil
}

// parseEventsResult converts a raw query result into a list of events
func parseEventsResult(result interface{}) ([]*model.Event, error) {
	rows, ok := extractQueryResults(result)
	if !ok {
		return []*model.Event{}, nil
	}

	events := make([]*model.Event, 0, len(rows))
	for _, row := range rows {
		event, err := parseEventResult(row)
		if err != nil {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/forgo/gather/api/internal/model"
	"github.com/forgo/gather/api/internal/service"
)

// EventSource lists events due for a reminder
type EventSource interface {
	UpcomingWithin(ctx context.Context, from, until time.Time) ([]*model.Event, error)
}

// RegistrationSource lists who registered for an event
type RegistrationSource interface {
	ListByEvent(ctx context.Context, eventID string) ([]*model.Registration, error)
}

// UserSource resolves registrants to their email addresses
type UserSource interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// ReminderScanner periodically emails every registrant of events that
// start within the reminder window.
//
// Deduplication is in-memory only: an event is reminded at most once per
// process lifetime, but a restart may repeat reminders for events still
// inside the window.
type ReminderScanner struct {
	events   EventSource
	regs     RegistrationSource
	users    UserSource
	mailer   service.Mailer
	interval time.Duration
	window   time.Duration

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex

	sent map[string]bool
}

// NewReminderScanner creates a new reminder scanner job
func NewReminderScanner(events EventSource, regs RegistrationSource, users UserSource, mailer service.Mailer, interval, window time.Duration) *ReminderScanner {
	if interval == 0 {
		interval = time.Hour
	}
	if window == 0 {
		window = 6 * time.Hour
	}
	return &ReminderScanner{
		events:   events,
		regs:     regs,
		users:    users,
		mailer:   mailer,
		interval: interval,
		window:   window,
		stopCh:   make(chan struct{}),
		sent:     make(map[string]bool),
	}
}

// Start begins the reminder scanner job
func (s *ReminderScanner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()
	slog.Info("reminder scanner started",
		slog.Duration("interval", s.interval),
		slog.Duration("window", s.window))
}

// Stop gracefully stops the reminder scanner job
func (s *ReminderScanner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	slog.Info("reminder scanner stopped")
}

// IsRunning returns whether the scanner is running
func (s *ReminderScanner) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *ReminderScanner) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.scan()
		case <-s.stopCh:
			return
		}
	}
}

func (s *ReminderScanner) scan() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := s.RunOnce(ctx); err != nil {
		slog.Error("reminder scan failed", slog.Any("error", err))
	}
}

// RunOnce performs a single reminder pass (for testing or manual
// triggering). Individual send failures are logged and skipped; the
// pass continues with the remaining registrants.
func (s *ReminderScanner) RunOnce(ctx context.Context) error {
	now := time.Now()
	events, err := s.events.UpcomingWithin(ctx, now, now.Add(s.window))
	if err != nil {
		return err
	}

	for _, event := range events {
		s.mu.Lock()
		done := s.sent[event.ID]
		s.mu.Unlock()
		if done {
			continue
		}

		if err := s.remindEvent(ctx, event); err != nil {
			slog.Error("failed to remind event",
				slog.String("event_id", event.ID),
				slog.Any("error", err))
			continue
		}

		s.mu.Lock()
		s.sent[event.ID] = true
		s.mu.Unlock()
	}

	return nil
}

func (s *ReminderScanner) remindEvent(ctx context.Context, event *model.Event) error {
	regs, err := s.regs.ListByEvent(ctx, event.ID)
	if err != nil {
		return err
	}

	for _, reg := range regs {
		user, err := s.users.GetByID(ctx, reg.UserID)
		if err != nil || user == nil {
			slog.Warn("skipping reminder for unknown user",
				slog.String("user_id", reg.UserID),
				slog.String("event_id", event.ID))
			continue
		}

		if err := s.mailer.SendEventReminder(ctx, user.Email, user.Name, event); err != nil {
			slog.Error("failed to send reminder",
				slog.String("user_id", user.ID),
				slog.String("event_id", event.ID),
				slog.Any("error", err))
		}
	}

	slog.Info("event reminders sent",
		slog.String("event_id", event.ID),
		slog.Int("registrants", len(regs)))
	return nil
}

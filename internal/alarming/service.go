package alarming

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/smukkama/weather-alarms/internal/alarm"
)

// AlarmScheduler mirrors alarm mutations into wake-ups
type AlarmScheduler interface {
	Schedule(ctx context.Context, a *alarm.Alarm)
	Cancel(ctx context.Context, a *alarm.Alarm)
	Pending(id int64) (time.Time, bool)
}

// AlertControl stops and forgets ringing alerts
type AlertControl interface {
	Clear(ctx context.Context, alarmID int64) error
}

// Service is the alarm front end: every store mutation is mirrored into the scheduler
type Service struct {
	store         alarm.Store
	scheduler     AlarmScheduler
	alerts        AlertControl
	snoozeMinutes int
	logger        zerolog.Logger
	now           func() time.Time
}

// NewService creates the alarm service
func NewService(store alarm.Store, scheduler AlarmScheduler, alerts AlertControl, snoozeMinutes int, logger zerolog.Logger) *Service {
	if snoozeMinutes <= 0 {
		snoozeMinutes = 10
	}
	return &Service{
		store:         store,
		scheduler:     scheduler,
		alerts:        alerts,
		snoozeMinutes: snoozeMinutes,
		logger:        logger.With().Str("component", "alarm_service").Logger(),
		now:           time.Now,
	}
}

// Create validates and stores a new alarm and schedules it when active
func (s *Service) Create(ctx context.Context, a *alarm.Alarm) (*alarm.Alarm, error) {
	if err := a.Validate(s.now()); err != nil {
		return nil, err
	}

	created := *a
	id, err := s.store.Insert(ctx, &created)
	if err != nil {
		return nil, fmt.Errorf("failed to create alarm: %w", err)
	}
	created.ID = id

	if created.Active {
		s.scheduler.Schedule(ctx, &created)
	}

	s.logger.Info().Int64("alarm_id", id).Str("city", created.City).Time("fire_time", created.FireTime).Msg("alarm created")
	return &created, nil
}

// Edit replaces alarm id with a. The replacement gets a new id; the old
// alarm's wake-up and pending work are cancelled first.
func (s *Service) Edit(ctx context.Context, id int64, a *alarm.Alarm) (*alarm.Alarm, error) {
	if err := a.Validate(s.now()); err != nil {
		return nil, err
	}

	old, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.scheduler.Cancel(ctx, old)
	s.clearAlert(ctx, id)
	if err := s.store.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete alarm %d: %w", id, err)
	}

	edited := *a
	edited.ID = 0
	newID, err := s.store.Insert(ctx, &edited)
	if err != nil {
		return nil, fmt.Errorf("failed to insert edited alarm: %w", err)
	}
	edited.ID = newID

	if edited.Active {
		s.scheduler.Schedule(ctx, &edited)
	}

	s.logger.Info().Int64("old_id", id).Int64("alarm_id", newID).Msg("alarm edited")
	return &edited, nil
}

// Delete cancels and removes the alarm. Deleting an unknown id is a no-op.
func (s *Service) Delete(ctx context.Context, id int64) error {
	s.scheduler.Cancel(ctx, &alarm.Alarm{ID: id})
	s.clearAlert(ctx, id)

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete alarm %d: %w", id, err)
	}

	s.logger.Info().Int64("alarm_id", id).Msg("alarm deleted")
	return nil
}

// Toggle flips the active flag in place. Enabling schedules the stored fire
// time; disabling cancels without deleting.
func (s *Service) Toggle(ctx context.Context, id int64, active bool) (*alarm.Alarm, error) {
	if err := s.store.SetActive(ctx, id, active); err != nil {
		return nil, fmt.Errorf("failed to toggle alarm %d: %w", id, err)
	}

	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if active {
		s.scheduler.Schedule(ctx, a)
	} else {
		s.scheduler.Cancel(ctx, a)
		s.clearAlert(ctx, id)
	}

	return a, nil
}

// List returns every stored alarm, earliest fire time first
func (s *Service) List(ctx context.Context) ([]*alarm.Alarm, error) {
	alarms, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list alarms: %w", err)
	}
	return alarms, nil
}

// Get returns the alarm or alarm.ErrNotFound
func (s *Service) Get(ctx context.Context, id int64) (*alarm.Alarm, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get alarm %d: %w", id, err)
	}
	if a == nil {
		return nil, fmt.Errorf("%w: %d", alarm.ErrNotFound, id)
	}
	return a, nil
}

// Pending returns the fire time of the alarm's outstanding wake-up
func (s *Service) Pending(id int64) (time.Time, bool) {
	return s.scheduler.Pending(id)
}

// Dismiss stops the alert and consumes the alarm. Nothing is rescheduled.
func (s *Service) Dismiss(ctx context.Context, id int64) error {
	s.clearAlert(ctx, id)
	s.scheduler.Cancel(ctx, &alarm.Alarm{ID: id})
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete dismissed alarm %d: %w", id, err)
	}

	s.logger.Info().Int64("alarm_id", id).Msg("alert dismissed")
	return nil
}

// Snooze stops the alert and moves the alarm to now+minutes, keeping its id
// and conditions. Only Alert alarms snooze. minutes <= 0 uses the configured
// snooze length.
func (s *Service) Snooze(ctx context.Context, id int64, minutes int) (*alarm.Alarm, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Kind != alarm.KindAlert {
		return nil, fmt.Errorf("%w: alarm %d is a %s, only alerts snooze", alarm.ErrInvalidKind, id, a.Kind)
	}

	s.clearAlert(ctx, id)

	if minutes <= 0 {
		minutes = s.snoozeMinutes
	}

	a.FireTime = s.now().Add(time.Duration(minutes) * time.Minute)
	a.Active = true

	if err := s.store.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to snooze alarm %d: %w", id, err)
	}
	s.scheduler.Schedule(ctx, a)

	s.logger.Info().Int64("alarm_id", id).Time("fire_time", a.FireTime).Msg("alert snoozed")
	return a, nil
}

// Restore reschedules every active stored alarm, e.g. after a restart.
// Alarms already past their fire time fire straight away. Returns the
// number of alarms scheduled.
func (s *Service) Restore(ctx context.Context) (int, error) {
	alarms, err := s.store.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load alarms: %w", err)
	}

	now := s.now()
	scheduled, overdue := 0, 0
	for _, a := range alarms {
		if !a.Active {
			continue
		}
		if !a.FireTime.After(now) {
			overdue++
		}
		s.scheduler.Schedule(ctx, a)
		scheduled++
	}

	s.logger.Info().Int("scheduled", scheduled).Int("overdue", overdue).Msg("alarms restored")
	return scheduled, nil
}

// clearAlert silences and forgets a ringing alert for id, if any
func (s *Service) clearAlert(ctx context.Context, id int64) {
	if err := s.alerts.Clear(ctx, id); err != nil {
		s.logger.Warn().Err(err).Int64("alarm_id", id).Msg("failed to clear alert state")
	}
}

// IsValidation reports whether err is a client input error
func IsValidation(err error) bool {
	return errors.Is(err, alarm.ErrFireTimeInPast) ||
		errors.Is(err, alarm.ErrInvalidKind) ||
		errors.Is(err, alarm.ErrInvalidCondition) ||
		errors.Is(err, alarm.ErrInvalidLocation)
}

package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/smukkama/weather-alarms/internal/alarm"
	"github.com/smukkama/weather-alarms/internal/logging"
)

// Timer holds at most one wake-up per alarm id
type Timer interface {
	Schedule(p alarm.Payload, fireAt time.Time) error
	Cancel(alarmID int64) bool
	Pending(alarmID int64) (time.Time, bool)
}

// TaggedWork is the deferred-work side that must be purged on cancel
type TaggedWork interface {
	CancelTag(tag string) int
}

// Scheduler turns alarms into timed wake-ups
type Scheduler struct {
	timer      Timer
	work       TaggedWork
	permission Permission
	logger     zerolog.Logger
}

// New creates a scheduler
func New(timer Timer, work TaggedWork, permission Permission, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		timer:      timer,
		work:       work,
		permission: permission,
		logger:     logger.With().Str("component", "scheduler").Logger(),
	}
}

// Schedule registers a wake-up at a.FireTime carrying the alarm payload. A
// wake-up already pending for the id is replaced. Without exact-scheduling
// authorization nothing is scheduled and authorization is requested; errors
// are logged, never returned.
func (s *Scheduler) Schedule(ctx context.Context, a *alarm.Alarm) {
	logger := s.loggerFor(ctx).With().Int64("alarm_id", a.ID).Logger()

	if s.permission != nil && !s.permission.Granted() {
		logger.Warn().Msg("exact scheduling not authorized, requesting authorization")
		s.permission.Request()
		return
	}

	if err := s.timer.Schedule(a.Payload(), a.FireTime); err != nil {
		logger.Error().Err(err).Msg("failed to schedule wake-up")
		return
	}

	logger.Debug().Time("fire_time", a.FireTime).Msg("wake-up scheduled")
}

// Cancel drops the pending wake-up for the alarm and any deferred work
// already enqueued for it. Cancelling nothing is a no-op.
func (s *Scheduler) Cancel(ctx context.Context, a *alarm.Alarm) {
	hadWakeup := s.timer.Cancel(a.ID)
	cancelledWork := s.work.CancelTag(alarm.Tag(a.ID))

	logger := s.loggerFor(ctx)
	logger.Debug().
		Int64("alarm_id", a.ID).
		Bool("wakeup", hadWakeup).
		Int("work_items", cancelledWork).
		Msg("alarm cancelled")
}

// Pending returns the fire time of the outstanding wake-up for id
func (s *Scheduler) Pending(id int64) (time.Time, bool) {
	return s.timer.Pending(id)
}

func (s *Scheduler) loggerFor(ctx context.Context) zerolog.Logger {
	if l, ok := logging.LoggerFromContext(ctx); ok {
		return l.With().Str("component", "scheduler").Logger()
	}
	return s.logger
}

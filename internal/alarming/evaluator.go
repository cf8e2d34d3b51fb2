package alarming

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/smukkama/weather-alarms/internal/alarm"
	"github.com/smukkama/weather-alarms/internal/logging"
	"github.com/smukkama/weather-alarms/internal/metrics"
	"github.com/smukkama/weather-alarms/internal/notification"
	"github.com/smukkama/weather-alarms/internal/weather"
)

// WeatherFetcher returns current conditions for a coordinate
type WeatherFetcher interface {
	Fetch(ctx context.Context, lat, lon float64) (*weather.Conditions, error)
}

// Notifier posts a notification, replacing any earlier one for the same alarm
type Notifier interface {
	PostNotification(ctx context.Context, n notification.Notification) error
}

// AlertRaiser raises a full-screen alert
type AlertRaiser interface {
	Raise(ctx context.Context, p alarm.Payload, failOpen bool) error
}

// Evaluator decides, at fire time, what an alarm turns into
type Evaluator struct {
	store    alarm.Store
	weather  WeatherFetcher
	notifier Notifier
	alerts   AlertRaiser
	metrics  *metrics.AlarmMetrics
	logger   zerolog.Logger
	now      func() time.Time
}

// NewEvaluator creates a new alarm evaluator. m may be nil.
func NewEvaluator(store alarm.Store, fetcher WeatherFetcher, notifier Notifier, alerts AlertRaiser, m *metrics.AlarmMetrics, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		store:    store,
		weather:  fetcher,
		notifier: notifier,
		alerts:   alerts,
		metrics:  m,
		logger:   logger.With().Str("component", "evaluator").Logger(),
		now:      time.Now,
	}
}

// Evaluate fetches weather for the fired alarm, applies its condition and
// delivers the outcome. Consumed alarms are deleted, except a raised alert,
// which stays until dismissed. A fetch failure still delivers the fallback
// before it is returned.
func (e *Evaluator) Evaluate(ctx context.Context, p alarm.Payload) error {
	logger := e.loggerFor(ctx).With().Int64("alarm_id", p.AlarmID).Str("kind", string(p.Kind)).Logger()

	stored, err := e.store.GetByID(ctx, p.AlarmID)
	if err != nil {
		return fmt.Errorf("failed to load alarm %d: %w", p.AlarmID, err)
	}
	if stored == nil || !stored.Active {
		// deleted or disabled after the wake-up was taken
		logger.Debug().Msg("alarm gone or inactive, nothing to do")
		e.countOutcome("skipped")
		return nil
	}

	conditions, err := e.weather.Fetch(ctx, p.Lat, p.Lon)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// cancelled by edit/delete, the alarm is no longer ours to deliver
			return ctxErr
		}
		return e.fallback(ctx, logger, p, err)
	}

	outcome := decide(p, conditions)
	logger.Info().
		Str("condition", string(p.Condition)).
		Float64("temperature", conditions.Temperature).
		Float64("wind_speed", conditions.WindSpeed).
		Str("description", conditions.Description).
		Str("outcome", outcome.String()).
		Msg("alarm evaluated")

	var deliverErr error
	switch outcome {
	case OutcomeRaiseAlert:
		deliverErr = e.alerts.Raise(ctx, p, false)
	case OutcomePostNotification:
		deliverErr = e.notifier.PostNotification(ctx, summary(p, conditions, e.now()))
	}
	e.countOutcome(outcome.String())

	if outcome != OutcomeRaiseAlert {
		if err := e.store.Delete(ctx, p.AlarmID); err != nil {
			return errors.Join(deliverErr, fmt.Errorf("failed to delete consumed alarm %d: %w", p.AlarmID, err))
		}
	}

	return deliverErr
}

func (e *Evaluator) fallback(ctx context.Context, logger zerolog.Logger, p alarm.Payload, fetchErr error) error {
	if e.metrics != nil {
		e.metrics.FetchFailuresTotal.Inc()
	}
	fetchErr = fmt.Errorf("weather fetch failed for alarm %d: %w", p.AlarmID, fetchErr)

	if p.Kind == alarm.KindAlert {
		// fail open: the user asked to be woken
		logger.Warn().Err(fetchErr).Msg("raising alert without weather data")
		e.countOutcome("alert")
		if err := e.alerts.Raise(ctx, p, true); err != nil {
			return errors.Join(fetchErr, err)
		}
		return fetchErr
	}

	logger.Warn().Err(fetchErr).Msg("posting degraded notification")
	e.countOutcome("degraded")

	n := notification.Degraded(p)
	n.PostedAt = e.now().UTC()
	errs := []error{fetchErr}
	if err := e.notifier.PostNotification(ctx, n); err != nil {
		errs = append(errs, err)
	}
	if err := e.store.Delete(ctx, p.AlarmID); err != nil {
		errs = append(errs, fmt.Errorf("failed to delete consumed alarm %d: %w", p.AlarmID, err))
	}
	return errors.Join(errs...)
}

func summary(p alarm.Payload, c *weather.Conditions, now time.Time) notification.Notification {
	return notification.Notification{
		AlarmID:     p.AlarmID,
		City:        p.City,
		Temperature: c.Temperature,
		FeelsLike:   c.FeelsLike,
		Description: c.Description,
		Humidity:    c.Humidity,
		WindSpeed:   c.WindSpeed,
		TempHigh:    c.TempHigh,
		TempLow:     c.TempLow,
		PostedAt:    now.UTC(),
	}
}

func (e *Evaluator) countOutcome(outcome string) {
	if e.metrics != nil {
		e.metrics.OutcomesTotal.WithLabelValues(outcome).Inc()
	}
}

func (e *Evaluator) loggerFor(ctx context.Context) zerolog.Logger {
	if l, ok := logging.LoggerFromContext(ctx); ok {
		return l.With().Str("component", "evaluator").Logger()
	}
	return e.logger
}

package alarming

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/smukkama/weather-alarms/internal/alarm"
	"github.com/smukkama/weather-alarms/internal/metrics"
	"github.com/smukkama/weather-alarms/internal/notification"
	"github.com/smukkama/weather-alarms/internal/protocol"
)

// RingingStore holds alerts raised but not yet dismissed or snoozed
type RingingStore interface {
	SetRinging(ctx context.Context, a RingingAlert) error
	GetRinging(ctx context.Context, alarmID int64) (*RingingAlert, error)
	ClearRinging(ctx context.Context, alarmID int64) (bool, error)
	ListRinging(ctx context.Context) ([]RingingAlert, error)
}

// AlertCenter raises and clears full-screen alerts
type AlertCenter struct {
	sound   *AlertSound
	state   RingingStore
	events  notification.EventPublisher
	metrics *metrics.AlarmMetrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewAlertCenter creates an alert center. m may be nil.
func NewAlertCenter(sound *AlertSound, state RingingStore, events notification.EventPublisher, m *metrics.AlarmMetrics, logger zerolog.Logger) *AlertCenter {
	return &AlertCenter{
		sound:   sound,
		state:   state,
		events:  events,
		metrics: m,
		logger:  logger.With().Str("component", "alert_center").Logger(),
		now:     time.Now,
	}
}

// Raise starts the alert sound for the alarm, records it as ringing and
// announces it. The sound always starts; a state or publish failure is
// returned after the alert is already audible.
func (c *AlertCenter) Raise(ctx context.Context, p alarm.Payload, failOpen bool) error {
	c.sound.Start(p.AlarmID)

	ringing := RingingAlert{
		AlarmID:   p.AlarmID,
		City:      p.City,
		Lat:       p.Lat,
		Lon:       p.Lon,
		Condition: string(p.Condition),
		RaisedAt:  c.now().UTC(),
		FailOpen:  failOpen,
	}

	existing, err := c.state.GetRinging(ctx, p.AlarmID)
	if err != nil {
		c.logger.Warn().Err(err).Int64("alarm_id", p.AlarmID).Msg("failed to read alert state")
	}
	if err := c.state.SetRinging(ctx, ringing); err != nil {
		return fmt.Errorf("failed to record ringing alert %d: %w", p.AlarmID, err)
	}
	if existing == nil && c.metrics != nil {
		c.metrics.RingingAlerts.Inc()
	}

	event := &protocol.AlarmEvent{
		Type:       protocol.EventAlertRaised,
		AlarmID:    p.AlarmID,
		City:       p.City,
		Lat:        p.Lat,
		Lon:        p.Lon,
		Kind:       string(p.Kind),
		Condition:  string(p.Condition),
		OccurredAt: ringing.RaisedAt,
		Degraded:   failOpen,
	}
	if err := c.events.PublishEvent(ctx, event); err != nil {
		c.logger.Error().Err(err).Int64("alarm_id", p.AlarmID).Msg("failed to publish alert event")
	}

	c.logger.Info().
		Int64("alarm_id", p.AlarmID).
		Str("city", p.City).
		Bool("fail_open", failOpen).
		Msg("alert raised")

	return nil
}

// Clear stops the alert sound for the alarm and forgets the ringing alert
func (c *AlertCenter) Clear(ctx context.Context, alarmID int64) error {
	c.sound.Stop(alarmID)

	cleared, err := c.state.ClearRinging(ctx, alarmID)
	if err != nil {
		return fmt.Errorf("failed to clear alert %d: %w", alarmID, err)
	}
	if cleared && c.metrics != nil {
		c.metrics.RingingAlerts.Dec()
	}

	return nil
}

// Ringing lists alerts awaiting dismiss or snooze
func (c *AlertCenter) Ringing(ctx context.Context) ([]RingingAlert, error) {
	return c.state.ListRinging(ctx)
}

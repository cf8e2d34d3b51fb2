package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/smukkama/weather-alarms/internal/protocol"
)

// TrayStore is where posted notifications are kept
type TrayStore interface {
	Post(ctx context.Context, n Notification) error
}

// EventPublisher sends alarm events downstream
type EventPublisher interface {
	PublishEvent(ctx context.Context, e *protocol.AlarmEvent) error
}

// Publisher posts notifications to the tray and announces them on the event stream
type Publisher struct {
	tray   TrayStore
	events EventPublisher
	logger zerolog.Logger
	now    func() time.Time
}

// NewPublisher creates a notification publisher
func NewPublisher(tray TrayStore, events EventPublisher, logger zerolog.Logger) *Publisher {
	return &Publisher{
		tray:   tray,
		events: events,
		logger: logger.With().Str("component", "notification_publisher").Logger(),
		now:    time.Now,
	}
}

// PostNotification stores n, replacing any earlier notification for the same
// alarm, then publishes a NOTIFICATION_POSTED event. The tray write is what
// the user sees, so a publish failure is logged and not returned.
func (p *Publisher) PostNotification(ctx context.Context, n Notification) error {
	if n.PostedAt.IsZero() {
		n.PostedAt = p.now().UTC()
	}

	if err := p.tray.Post(ctx, n); err != nil {
		return fmt.Errorf("failed to post notification for alarm %d: %w", n.AlarmID, err)
	}

	event := &protocol.AlarmEvent{
		Type:        protocol.EventNotificationPosted,
		AlarmID:     n.AlarmID,
		City:        n.City,
		Kind:        "Notification",
		OccurredAt:  n.PostedAt,
		Temperature: n.Temperature,
		FeelsLike:   n.FeelsLike,
		Description: n.Description,
		Humidity:    n.Humidity,
		WindSpeed:   n.WindSpeed,
		TempHigh:    n.TempHigh,
		TempLow:     n.TempLow,
		Degraded:    n.Degraded,
	}
	if err := p.events.PublishEvent(ctx, event); err != nil {
		p.logger.Error().Err(err).Int64("alarm_id", n.AlarmID).Msg("failed to publish notification event")
	}

	return nil
}

// RequestAuthorization asks the user to allow exact wake-ups
func (p *Publisher) RequestAuthorization(ctx context.Context) {
	event := &protocol.AlarmEvent{
		Type:       protocol.EventAuthorizationRequired,
		OccurredAt: p.now().UTC(),
	}
	if err := p.events.PublishEvent(ctx, event); err != nil {
		p.logger.Error().Err(err).Msg("failed to publish authorization request")
	}
}

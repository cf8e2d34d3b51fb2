package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/segmentio/kafka-go"

	"github.com/smukkama/weather-alarms/internal/alarm"
	"github.com/smukkama/weather-alarms/internal/protocol"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestPublishEvent_KeyedByAlarm(t *testing.T) {
	is := is.New(t)
	w := &fakeWriter{}
	p := &Producer{writer: w}

	err := p.PublishEvent(context.Background(), &protocol.AlarmEvent{
		Type:       protocol.EventAlertRaised,
		AlarmID:    17,
		City:       "Tokyo",
		OccurredAt: time.Now(),
	})
	is.NoErr(err)
	is.Equal(len(w.msgs), 1)
	is.Equal(string(w.msgs[0].Key), alarm.Tag(17))

	decoded, err := protocol.DecodeAlarmEvent(w.msgs[0].Value)
	is.NoErr(err)
	is.Equal(decoded.Type, protocol.EventAlertRaised)
	is.Equal(decoded.City, "Tokyo")
}

func TestPublishEvent_AuthorizationKeyedByType(t *testing.T) {
	is := is.New(t)
	w := &fakeWriter{}
	p := &Producer{writer: w}

	is.NoErr(p.PublishEvent(context.Background(), &protocol.AlarmEvent{Type: protocol.EventAuthorizationRequired}))
	is.Equal(string(w.msgs[0].Key), string(protocol.EventAuthorizationRequired))
}

func TestPublishEvent_WriteFailure(t *testing.T) {
	is := is.New(t)
	p := &Producer{writer: &fakeWriter{err: errors.New("leader not available")}}

	err := p.PublishEvent(context.Background(), &protocol.AlarmEvent{Type: protocol.EventAlertRaised, AlarmID: 1})
	is.True(err != nil)
}

package alarming

import (
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/smukkama/weather-alarms/internal/alarm"
	"github.com/smukkama/weather-alarms/internal/metrics"
	"github.com/smukkama/weather-alarms/internal/protocol"
)

func newTestAlertCenter() (*AlertCenter, *recordingRinger, *memRinging, *fakeEvents, *metrics.AlarmMetrics) {
	ringer := &recordingRinger{}
	state := newMemRinging()
	events := &fakeEvents{}
	m := metrics.NewAlarmMetrics(prometheus.NewRegistry())
	c := NewAlertCenter(NewAlertSound(ringer, zerolog.Nop()), state, events, m, zerolog.Nop())
	return c, ringer, state, events, m
}

func TestRaise_RecordsAndAnnounces(t *testing.T) {
	is := is.New(t)
	c, ringer, state, events, m := newTestAlertCenter()
	ctx := context.Background()

	p := alarm.Payload{AlarmID: 7, City: "Tokyo", Lat: 35.68, Lon: 139.65, Kind: alarm.KindAlert, Condition: alarm.ConditionStorm}
	is.NoErr(c.Raise(ctx, p, false))

	is.Equal(ringer.played, []int64{7})

	ringing, err := state.GetRinging(ctx, 7)
	is.NoErr(err)
	is.Equal(ringing.City, "Tokyo")
	is.Equal(ringing.Lat, 35.68)
	is.Equal(ringing.Condition, "Storm")

	is.Equal(len(events.events), 1)
	is.Equal(events.events[0].Type, protocol.EventAlertRaised)
	is.Equal(events.events[0].AlarmID, int64(7))
	is.Equal(testutil.ToFloat64(m.RingingAlerts), 1.0)

	// raising the same alarm again does not double count
	is.NoErr(c.Raise(ctx, p, false))
	is.Equal(testutil.ToFloat64(m.RingingAlerts), 1.0)
}

func TestRaise_PublishFailureIsNotFatal(t *testing.T) {
	is := is.New(t)
	c, _, state, events, _ := newTestAlertCenter()
	events.err = errors.New("broker unavailable")

	is.NoErr(c.Raise(context.Background(), alarm.Payload{AlarmID: 1, Kind: alarm.KindAlert}, true))

	ringing, _ := state.GetRinging(context.Background(), 1)
	is.True(ringing.FailOpen)
}

func TestClear_StopsSoundAndForgets(t *testing.T) {
	is := is.New(t)
	c, ringer, _, _, m := newTestAlertCenter()
	ctx := context.Background()

	is.NoErr(c.Raise(ctx, alarm.Payload{AlarmID: 1, Kind: alarm.KindAlert}, false))
	is.NoErr(c.Raise(ctx, alarm.Payload{AlarmID: 2, Kind: alarm.KindAlert}, false))
	is.Equal(testutil.ToFloat64(m.RingingAlerts), 2.0)

	is.NoErr(c.Clear(ctx, 2))
	is.Equal(ringer.silenced, []int64{1, 2})

	list, err := c.Ringing(ctx)
	is.NoErr(err)
	is.Equal(len(list), 1)
	is.Equal(list[0].AlarmID, int64(1))
	is.Equal(testutil.ToFloat64(m.RingingAlerts), 1.0)

	is.NoErr(c.Clear(ctx, 2)) // already cleared
	is.Equal(testutil.ToFloat64(m.RingingAlerts), 1.0)
}

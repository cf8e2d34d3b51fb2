package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/smukkama/weather-alarms/internal/alarm"
	"github.com/smukkama/weather-alarms/internal/alarming"
	"github.com/smukkama/weather-alarms/internal/notification"
)

type fakeService struct {
	alarms  map[int64]*alarm.Alarm
	nextID  int64
	snoozed map[int64]int
	failAll error
}

func newFakeService() *fakeService {
	return &fakeService{alarms: make(map[int64]*alarm.Alarm), snoozed: make(map[int64]int)}
}

func (f *fakeService) Create(ctx context.Context, a *alarm.Alarm) (*alarm.Alarm, error) {
	if f.failAll != nil {
		return nil, f.failAll
	}
	if err := a.Validate(time.Now()); err != nil {
		return nil, err
	}
	f.nextID++
	a.ID = f.nextID
	f.alarms[a.ID] = a
	return a, nil
}

func (f *fakeService) Edit(ctx context.Context, id int64, a *alarm.Alarm) (*alarm.Alarm, error) {
	if _, ok := f.alarms[id]; !ok {
		return nil, alarm.ErrNotFound
	}
	delete(f.alarms, id)
	return f.Create(ctx, a)
}

func (f *fakeService) Delete(ctx context.Context, id int64) error {
	delete(f.alarms, id)
	return nil
}

func (f *fakeService) Toggle(ctx context.Context, id int64, active bool) (*alarm.Alarm, error) {
	a, ok := f.alarms[id]
	if !ok {
		return nil, alarm.ErrNotFound
	}
	a.Active = active
	return a, nil
}

func (f *fakeService) List(ctx context.Context) ([]*alarm.Alarm, error) {
	if f.failAll != nil {
		return nil, f.failAll
	}
	list := make([]*alarm.Alarm, 0, len(f.alarms))
	for id := int64(1); id <= f.nextID; id++ {
		if a, ok := f.alarms[id]; ok {
			list = append(list, a)
		}
	}
	return list, nil
}

func (f *fakeService) Get(ctx context.Context, id int64) (*alarm.Alarm, error) {
	a, ok := f.alarms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", alarm.ErrNotFound, id)
	}
	return a, nil
}

func (f *fakeService) Pending(id int64) (time.Time, bool) {
	a, ok := f.alarms[id]
	if !ok || !a.Active {
		return time.Time{}, false
	}
	return a.FireTime, true
}

func (f *fakeService) Dismiss(ctx context.Context, id int64) error {
	delete(f.alarms, id)
	return nil
}

func (f *fakeService) Snooze(ctx context.Context, id int64, minutes int) (*alarm.Alarm, error) {
	a, ok := f.alarms[id]
	if !ok {
		return nil, alarm.ErrNotFound
	}
	f.snoozed[id] = minutes
	return a, nil
}

type fakeAlerts []alarming.RingingAlert

func (f fakeAlerts) Ringing(ctx context.Context) ([]alarming.RingingAlert, error) {
	return f, nil
}

type fakeTray []notification.Notification

func (f fakeTray) List(ctx context.Context) ([]notification.Notification, error) {
	return f, nil
}

type fakeGate struct{ granted bool }

func (g *fakeGate) Grant()        { g.granted = true }
func (g *fakeGate) Granted() bool { return g.granted }

func setupTest(t *testing.T) (*httptest.Server, *fakeService, *fakeGate) {
	svc := newFakeService()
	gate := &fakeGate{}

	router := RegisterHandlers(New(zerolog.Nop()), Handlers{
		Alarms:        svc,
		Alerts:        fakeAlerts{{AlarmID: 3, City: "Tokyo"}},
		Notifications: fakeTray{{AlarmID: 4, City: "Lisbon", Description: "clear sky"}},
		Authorization: gate,
		Metrics:       http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("# metrics")) }),
	})

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts, svc, gate
}

func testRequest(is *is.I, ts *httptest.Server, method, path string, body io.Reader) (*http.Response, string) {
	req, _ := http.NewRequest(method, ts.URL+path, body)
	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err)
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	return resp, string(respBody)
}

func alarmJSON(fireTime time.Time, extra string) io.Reader {
	return strings.NewReader(fmt.Sprintf(`{"city":"Lisbon","lat":38.72,"lon":-9.14,"fire_time":%q,"kind":"Notification"%s}`,
		fireTime.Format(time.RFC3339), extra))
}

func TestHealth(t *testing.T) {
	is := is.New(t)
	ts, _, _ := setupTest(t)

	resp, _ := testRequest(is, ts, http.MethodGet, "/health", nil)
	is.Equal(resp.StatusCode, http.StatusNoContent)
}

func TestCreateAndGetAlarm(t *testing.T) {
	is := is.New(t)
	ts, svc, _ := setupTest(t)

	fireTime := time.Now().Add(time.Hour)
	resp, body := testRequest(is, ts, http.MethodPost, "/alarms", alarmJSON(fireTime, ""))
	is.Equal(resp.StatusCode, http.StatusCreated)

	var created struct {
		ID         int64      `json:"id"`
		Active     bool       `json:"active"`
		NextWakeup *time.Time `json:"next_wakeup"`
	}
	is.NoErr(json.Unmarshal([]byte(body), &created))
	is.Equal(created.ID, int64(1))
	is.True(created.Active) // active by default
	is.True(created.NextWakeup != nil)
	is.Equal(svc.alarms[1].City, "Lisbon")

	resp, body = testRequest(is, ts, http.MethodGet, "/alarms/1", nil)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.True(strings.Contains(body, `"city":"Lisbon"`))
}

func TestCreateAlarm_Inactive(t *testing.T) {
	is := is.New(t)
	ts, svc, _ := setupTest(t)

	resp, body := testRequest(is, ts, http.MethodPost, "/alarms", alarmJSON(time.Now().Add(time.Hour), `,"active":false`))
	is.Equal(resp.StatusCode, http.StatusCreated)
	is.True(!svc.alarms[1].Active)
	is.True(!strings.Contains(body, "next_wakeup"))
}

func TestCreateAlarm_Validation(t *testing.T) {
	is := is.New(t)
	ts, _, _ := setupTest(t)

	resp, _ := testRequest(is, ts, http.MethodPost, "/alarms", alarmJSON(time.Now().Add(-time.Hour), ""))
	is.Equal(resp.StatusCode, http.StatusBadRequest)

	resp, _ = testRequest(is, ts, http.MethodPost, "/alarms", strings.NewReader(`{not json`))
	is.Equal(resp.StatusCode, http.StatusBadRequest)
}

func TestGetAlarm_NotFound(t *testing.T) {
	is := is.New(t)
	ts, _, _ := setupTest(t)

	resp, _ := testRequest(is, ts, http.MethodGet, "/alarms/42", nil)
	is.Equal(resp.StatusCode, http.StatusNotFound)

	resp, _ = testRequest(is, ts, http.MethodGet, "/alarms/abc", nil)
	is.Equal(resp.StatusCode, http.StatusBadRequest)
}

func TestEditAlarm(t *testing.T) {
	is := is.New(t)
	ts, svc, _ := setupTest(t)

	fireTime := time.Now().Add(time.Hour)
	testRequest(is, ts, http.MethodPost, "/alarms", alarmJSON(fireTime, ""))

	resp, body := testRequest(is, ts, http.MethodPut, "/alarms/1", alarmJSON(fireTime.Add(time.Hour), `,"condition":"Rain"`))
	is.Equal(resp.StatusCode, http.StatusOK)
	is.True(strings.Contains(body, `"id":2`))
	_, ok := svc.alarms[1]
	is.True(!ok)
	is.Equal(svc.alarms[2].Condition, alarm.ConditionRain)

	resp, _ = testRequest(is, ts, http.MethodPut, "/alarms/1", alarmJSON(fireTime, ""))
	is.Equal(resp.StatusCode, http.StatusNotFound)
}

func TestToggleAndDelete(t *testing.T) {
	is := is.New(t)
	ts, svc, _ := setupTest(t)

	testRequest(is, ts, http.MethodPost, "/alarms", alarmJSON(time.Now().Add(time.Hour), ""))

	resp, _ := testRequest(is, ts, http.MethodPost, "/alarms/1/active", strings.NewReader(`{"active":false}`))
	is.Equal(resp.StatusCode, http.StatusOK)
	is.True(!svc.alarms[1].Active)

	resp, _ = testRequest(is, ts, http.MethodPost, "/alarms/1/active", strings.NewReader(`{}`))
	is.Equal(resp.StatusCode, http.StatusBadRequest)

	resp, _ = testRequest(is, ts, http.MethodDelete, "/alarms/1", nil)
	is.Equal(resp.StatusCode, http.StatusNoContent)
	is.Equal(len(svc.alarms), 0)
}

func TestListAlarms(t *testing.T) {
	is := is.New(t)
	ts, _, _ := setupTest(t)

	testRequest(is, ts, http.MethodPost, "/alarms", alarmJSON(time.Now().Add(time.Hour), ""))
	testRequest(is, ts, http.MethodPost, "/alarms", alarmJSON(time.Now().Add(2*time.Hour), ""))

	resp, body := testRequest(is, ts, http.MethodGet, "/alarms", nil)
	is.Equal(resp.StatusCode, http.StatusOK)

	var list []map[string]any
	is.NoErr(json.Unmarshal([]byte(body), &list))
	is.Equal(len(list), 2)
}

func TestListAlarms_InternalError(t *testing.T) {
	is := is.New(t)
	ts, svc, _ := setupTest(t)
	svc.failAll = errors.New("database is locked")

	resp, body := testRequest(is, ts, http.MethodGet, "/alarms", nil)
	is.Equal(resp.StatusCode, http.StatusInternalServerError)
	is.True(!strings.Contains(body, "locked")) // internals stay internal
}

func TestSnoozeAndDismiss(t *testing.T) {
	is := is.New(t)
	ts, svc, _ := setupTest(t)

	testRequest(is, ts, http.MethodPost, "/alarms", alarmJSON(time.Now().Add(time.Hour), ""))

	resp, _ := testRequest(is, ts, http.MethodPost, "/alerts/1/snooze", bytes.NewBufferString(`{"minutes":5}`))
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(svc.snoozed[1], 5)

	resp, _ = testRequest(is, ts, http.MethodPost, "/alerts/1/snooze", nil)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(svc.snoozed[1], 0) // service default

	resp, _ = testRequest(is, ts, http.MethodPost, "/alerts/1/snooze", bytes.NewBufferString(`{"minutes":-1}`))
	is.Equal(resp.StatusCode, http.StatusBadRequest)

	resp, _ = testRequest(is, ts, http.MethodPost, "/alerts/1/dismiss", nil)
	is.Equal(resp.StatusCode, http.StatusNoContent)
	is.Equal(len(svc.alarms), 0)

	resp, _ = testRequest(is, ts, http.MethodPost, "/alerts/1/snooze", nil)
	is.Equal(resp.StatusCode, http.StatusNotFound)
}

func TestListAlertsAndNotifications(t *testing.T) {
	is := is.New(t)
	ts, _, _ := setupTest(t)

	resp, body := testRequest(is, ts, http.MethodGet, "/alerts", nil)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.True(strings.Contains(body, `"city":"Tokyo"`))

	resp, body = testRequest(is, ts, http.MethodGet, "/notifications", nil)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.True(strings.Contains(body, `"description":"clear sky"`))
}

func TestAuthorization(t *testing.T) {
	is := is.New(t)
	ts, _, gate := setupTest(t)

	resp, body := testRequest(is, ts, http.MethodPost, "/authorization", nil)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.True(gate.granted)
	is.True(strings.Contains(body, `"granted":true`))
}

func TestMetrics(t *testing.T) {
	is := is.New(t)
	ts, _, _ := setupTest(t)

	resp, body := testRequest(is, ts, http.MethodGet, "/metrics", nil)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(body, "# metrics")
}

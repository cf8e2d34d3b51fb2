package alarming

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/smukkama/weather-alarms/internal/alarm"
	"github.com/smukkama/weather-alarms/internal/notification"
	"github.com/smukkama/weather-alarms/internal/protocol"
	"github.com/smukkama/weather-alarms/internal/weather"
)

type memStore struct {
	mu     sync.Mutex
	nextID int64
	alarms map[int64]alarm.Alarm
}

func newMemStore() *memStore {
	return &memStore{alarms: make(map[int64]alarm.Alarm)}
}

func (s *memStore) Insert(ctx context.Context, a *alarm.Alarm) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	stored := *a
	stored.ID = s.nextID
	s.alarms[stored.ID] = stored
	return stored.ID, nil
}

func (s *memStore) GetAll(ctx context.Context) ([]*alarm.Alarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*alarm.Alarm, 0, len(s.alarms))
	for _, a := range s.alarms {
		a := a
		all = append(all, &a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].FireTime.Before(all[j].FireTime) })
	return all, nil
}

func (s *memStore) GetByID(ctx context.Context, id int64) (*alarm.Alarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alarms[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *memStore) Update(ctx context.Context, a *alarm.Alarm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alarms[a.ID]; !ok {
		return alarm.ErrNotFound
	}
	s.alarms[a.ID] = *a
	return nil
}

func (s *memStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.alarms, id)
	return nil
}

func (s *memStore) SetActive(ctx context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alarms[id]
	if !ok {
		return alarm.ErrNotFound
	}
	a.Active = active
	s.alarms[id] = a
	return nil
}

func (s *memStore) has(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.alarms[id]
	return ok
}

type fakeWeather struct {
	conditions *weather.Conditions
	err        error
}

func (f *fakeWeather) Fetch(ctx context.Context, lat, lon float64) (*weather.Conditions, error) {
	if f.err != nil {
		return nil, f.err
	}
	c := *f.conditions
	return &c, nil
}

var errFetch = errors.New("weather service unavailable")

type fakeNotifier struct {
	mu     sync.Mutex
	posted []notification.Notification
	err    error
}

func (f *fakeNotifier) PostNotification(ctx context.Context, n notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.posted = append(f.posted, n)
	return nil
}

type raised struct {
	payload  alarm.Payload
	failOpen bool
}

type fakeAlerts struct {
	mu      sync.Mutex
	raised  []raised
	cleared []int64
}

func (f *fakeAlerts) Raise(ctx context.Context, p alarm.Payload, failOpen bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raised = append(f.raised, raised{payload: p, failOpen: failOpen})
	return nil
}

func (f *fakeAlerts) Clear(ctx context.Context, alarmID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, alarmID)
	return nil
}

type memRinging struct {
	mu     sync.Mutex
	alerts map[int64]RingingAlert
}

func newMemRinging() *memRinging {
	return &memRinging{alerts: make(map[int64]RingingAlert)}
}

func (m *memRinging) SetRinging(ctx context.Context, a RingingAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[a.AlarmID] = a
	return nil
}

func (m *memRinging) GetRinging(ctx context.Context, alarmID int64) (*RingingAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[alarmID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *memRinging) ClearRinging(ctx context.Context, alarmID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.alerts[alarmID]
	delete(m.alerts, alarmID)
	return ok, nil
}

func (m *memRinging) ListRinging(ctx context.Context) ([]RingingAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]RingingAlert, 0, len(m.alerts))
	for _, a := range m.alerts {
		list = append(list, a)
	}
	return list, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []*protocol.AlarmEvent
	err    error
}

func (f *fakeEvents) PublishEvent(ctx context.Context, e *protocol.AlarmEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func inOneHour() time.Time {
	return time.Now().Add(time.Hour).Truncate(time.Millisecond)
}

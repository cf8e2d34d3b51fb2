package alarming

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// RingingAlert is a raised alert waiting for the user to dismiss or snooze it.
// It carries what the full-screen view needs to re-fetch live detail.
type RingingAlert struct {
	AlarmID   int64     `json:"alarm_id"`
	City      string    `json:"city"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Condition string    `json:"condition,omitempty"`
	RaisedAt  time.Time `json:"raised_at"`
	FailOpen  bool      `json:"fail_open,omitempty"` // raised because the weather fetch failed
}

const ringingKeyPrefix = "alert_state:"

// StateManager keeps ringing alerts in Redis
type StateManager struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewStateManager creates a new state manager
func NewStateManager(redisClient *redis.Client) *StateManager {
	return &StateManager{redis: redisClient, ttl: 7 * 24 * time.Hour}
}

func ringingKey(alarmID int64) string {
	return fmt.Sprintf("%s%d", ringingKeyPrefix, alarmID)
}

// SetRinging records the alert as ringing
func (sm *StateManager) SetRinging(ctx context.Context, a RingingAlert) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// expire so an alert nobody answers does not linger forever
	if err := sm.redis.Set(ctx, ringingKey(a.AlarmID), data, sm.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set state in Redis: %w", err)
	}

	return nil
}

// GetRinging returns the ringing alert for the alarm id, or nil
func (sm *StateManager) GetRinging(ctx context.Context, alarmID int64) (*RingingAlert, error) {
	data, err := sm.redis.Get(ctx, ringingKey(alarmID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state from Redis: %w", err)
	}

	var a RingingAlert
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return &a, nil
}

// ClearRinging removes the alert. Reports whether one was ringing.
func (sm *StateManager) ClearRinging(ctx context.Context, alarmID int64) (bool, error) {
	n, err := sm.redis.Del(ctx, ringingKey(alarmID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete state from Redis: %w", err)
	}
	return n > 0, nil
}

// ListRinging returns every ringing alert, oldest first
func (sm *StateManager) ListRinging(ctx context.Context) ([]RingingAlert, error) {
	var keys []string
	iter := sm.redis.Scan(ctx, 0, ringingKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan states: %w", err)
	}

	alerts := make([]RingingAlert, 0, len(keys))
	for _, key := range keys {
		data, err := sm.redis.Get(ctx, key).Result()
		if err != nil {
			continue
		}

		var a RingingAlert
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			continue
		}
		alerts = append(alerts, a)
	}

	sort.Slice(alerts, func(i, j int) bool { return alerts[i].RaisedAt.Before(alerts[j].RaisedAt) })
	return alerts, nil
}

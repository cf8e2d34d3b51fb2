package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smukkama/weather-alarms/internal/alarm"
)

// Notification is the weather summary posted for a fired Notification alarm
type Notification struct {
	AlarmID     int64     `json:"alarm_id"`
	City        string    `json:"city"`
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feels_like"`
	Description string    `json:"description"`
	Humidity    float64   `json:"humidity"`
	WindSpeed   float64   `json:"wind_speed"`
	TempHigh    float64   `json:"temp_high"`
	TempLow     float64   `json:"temp_low"`
	Degraded    bool      `json:"degraded,omitempty"`
	PostedAt    time.Time `json:"posted_at"`
}

// DegradedDescription is shown when current weather could not be fetched
const DegradedDescription = "Check the weather"

// Degraded returns the zero-valued notification posted when the fetch failed
func Degraded(p alarm.Payload) Notification {
	return Notification{
		AlarmID:     p.AlarmID,
		City:        p.City,
		Description: DegradedDescription,
		Degraded:    true,
	}
}

const trayKeyPrefix = "notification:"

// Tray keeps the latest notification per alarm id in Redis. Posting for an
// id that already has one replaces it.
type Tray struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewTray creates a notification tray
func NewTray(redisClient *redis.Client, ttl time.Duration) *Tray {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tray{redis: redisClient, ttl: ttl}
}

func trayKey(alarmID int64) string {
	return fmt.Sprintf("%s%d", trayKeyPrefix, alarmID)
}

// Post stores the notification under its alarm id
func (t *Tray) Post(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := t.redis.Set(ctx, trayKey(n.AlarmID), data, t.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store notification in Redis: %w", err)
	}

	return nil
}

// Get returns the notification for the alarm id, or nil
func (t *Tray) Get(ctx context.Context, alarmID int64) (*Notification, error) {
	data, err := t.redis.Get(ctx, trayKey(alarmID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification from Redis: %w", err)
	}

	var n Notification
	if err := json.Unmarshal([]byte(data), &n); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
	}

	return &n, nil
}

// Remove clears the notification for the alarm id
func (t *Tray) Remove(ctx context.Context, alarmID int64) error {
	return t.redis.Del(ctx, trayKey(alarmID)).Err()
}

// List returns every notification in the tray, newest first
func (t *Tray) List(ctx context.Context) ([]Notification, error) {
	var keys []string
	iter := t.redis.Scan(ctx, 0, trayKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan notifications: %w", err)
	}

	list := make([]Notification, 0, len(keys))
	for _, key := range keys {
		data, err := t.redis.Get(ctx, key).Result()
		if err != nil {
			continue // expired between scan and get
		}

		var n Notification
		if err := json.Unmarshal([]byte(data), &n); err != nil {
			continue
		}
		list = append(list, n)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].PostedAt.After(list[j].PostedAt) })
	return list, nil
}

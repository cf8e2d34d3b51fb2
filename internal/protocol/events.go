package protocol

import (
	"encoding/json"
	"time"

	"github.com/smukkama/weather-alarms/internal/alarm"
)

// EventType identifies an alarm outcome event
type EventType string

const (
	EventAlertRaised           EventType = "ALERT_RAISED"
	EventNotificationPosted    EventType = "NOTIFICATION_POSTED"
	EventAuthorizationRequired EventType = "AUTHORIZATION_REQUIRED"
)

// AlarmEvent is the message format for alarm outcomes on Kafka
type AlarmEvent struct {
	Type       EventType `json:"type"`
	AlarmID    int64     `json:"alarm_id,omitempty"`
	City       string    `json:"city,omitempty"`
	Lat        float64   `json:"lat,omitempty"`
	Lon        float64   `json:"lon,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Condition  string    `json:"condition,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`

	// Weather summary, set on NOTIFICATION_POSTED
	Temperature float64 `json:"temperature,omitempty"`
	FeelsLike   float64 `json:"feels_like,omitempty"`
	Description string  `json:"description,omitempty"`
	Humidity    float64 `json:"humidity,omitempty"`
	WindSpeed   float64 `json:"wind_speed,omitempty"`
	TempHigh    float64 `json:"temp_high,omitempty"`
	TempLow     float64 `json:"temp_low,omitempty"`
	Degraded    bool    `json:"degraded,omitempty"`
}

// Key returns the partition key for the event
func (e *AlarmEvent) Key() string {
	if e.AlarmID == 0 {
		return string(e.Type)
	}
	return alarm.Tag(e.AlarmID)
}

// EncodeAlarmEvent encodes an AlarmEvent to JSON
func EncodeAlarmEvent(e *AlarmEvent) ([]byte, error) {
	return json.Marshal(e)
}

// DecodeAlarmEvent decodes JSON to AlarmEvent
func DecodeAlarmEvent(data []byte) (*AlarmEvent, error) {
	var e AlarmEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

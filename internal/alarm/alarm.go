package alarm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// DeliveryKind decides how a triggered alarm reaches the user
type DeliveryKind string

const (
	KindAlert        DeliveryKind = "Alert"
	KindNotification DeliveryKind = "Notification"
)

// ConditionKind is the weather dimension gating a fired alarm. Empty means unconditional.
type ConditionKind string

const (
	ConditionNone  ConditionKind = ""
	ConditionTemp  ConditionKind = "Temp"
	ConditionWind  ConditionKind = "Wind"
	ConditionRain  ConditionKind = "Rain"
	ConditionStorm ConditionKind = "Storm"
)

var (
	ErrNotFound         = errors.New("alarm not found")
	ErrFireTimeInPast   = errors.New("fire time must be in the future")
	ErrInvalidKind      = errors.New("invalid delivery kind")
	ErrInvalidCondition = errors.New("invalid condition kind")
	ErrInvalidLocation  = errors.New("invalid coordinates")
)

// Alarm is a user-defined rule pairing a location, a fire time, a delivery
// kind and an optional weather condition.
type Alarm struct {
	ID        int64         `json:"id"`
	City      string        `json:"city"`
	Lat       float64       `json:"lat"`
	Lon       float64       `json:"lon"`
	FireTime  time.Time     `json:"fire_time"`
	Kind      DeliveryKind  `json:"kind"`
	Active    bool          `json:"active"`
	Condition ConditionKind `json:"condition,omitempty"`
	Threshold *float64      `json:"threshold,omitempty"`
}

// Validate checks the alarm against now. The store does not enforce any of this.
func (a *Alarm) Validate(now time.Time) error {
	if !a.FireTime.After(now) {
		return ErrFireTimeInPast
	}
	if a.Kind != KindAlert && a.Kind != KindNotification {
		return fmt.Errorf("%w: %q", ErrInvalidKind, a.Kind)
	}
	switch a.Condition {
	case ConditionNone, ConditionTemp, ConditionWind, ConditionRain, ConditionStorm:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCondition, a.Condition)
	}
	if a.Lat < -90 || a.Lat > 90 || a.Lon < -180 || a.Lon > 180 {
		return ErrInvalidLocation
	}
	return nil
}

// Tag is the work-queue tag for everything enqueued on behalf of this alarm id.
func Tag(id int64) string {
	return "alarm-" + strconv.FormatInt(id, 10)
}

// Payload is the data carried by a scheduled wake-up
type Payload struct {
	AlarmID   int64         `json:"alarm_id"`
	City      string        `json:"city"`
	Lat       float64       `json:"lat"`
	Lon       float64       `json:"lon"`
	Kind      DeliveryKind  `json:"kind"`
	Condition ConditionKind `json:"condition,omitempty"`
	Threshold *float64      `json:"threshold,omitempty"`
}

// Payload returns the wake-up payload for the alarm
func (a *Alarm) Payload() Payload {
	p := Payload{
		AlarmID:   a.ID,
		City:      a.City,
		Lat:       a.Lat,
		Lon:       a.Lon,
		Kind:      a.Kind,
		Condition: a.Condition,
	}
	if a.Threshold != nil {
		t := *a.Threshold
		p.Threshold = &t
	}
	return p
}

// Store persists alarms. Every method is a single-row atomic operation.
type Store interface {
	Insert(ctx context.Context, a *Alarm) (int64, error)
	GetAll(ctx context.Context) ([]*Alarm, error)
	GetByID(ctx context.Context, id int64) (*Alarm, error)
	Update(ctx context.Context, a *Alarm) error
	Delete(ctx context.Context, id int64) error
	SetActive(ctx context.Context, id int64, active bool) error
}

package alarming

import (
	"strings"

	"github.com/smukkama/weather-alarms/internal/alarm"
	"github.com/smukkama/weather-alarms/internal/weather"
)

// Outcome is what a fired alarm turns into. It is computed on every fire and never stored.
type Outcome int

const (
	OutcomeDiscard Outcome = iota
	OutcomeRaiseAlert
	OutcomePostNotification
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRaiseAlert:
		return "alert"
	case OutcomePostNotification:
		return "notification"
	default:
		return "discard"
	}
}

var (
	rainKeywords  = []string{"rain", "drizzle"}
	stormKeywords = []string{"storm", "thunder"}
)

// shouldTrigger applies the condition rule table to current conditions.
func shouldTrigger(p alarm.Payload, c *weather.Conditions) bool {
	switch p.Condition {
	case alarm.ConditionNone:
		return true
	case alarm.ConditionTemp:
		return atLeast(c.Temperature, p.Threshold)
	case alarm.ConditionWind:
		return atLeast(c.WindSpeed, p.Threshold)
	case alarm.ConditionRain:
		return containsAny(c.Description, rainKeywords)
	case alarm.ConditionStorm:
		return containsAny(c.Description, stormKeywords)
	default:
		// unrecognized conditions fire rather than silently drop the alarm
		return true
	}
}

// decide maps a rule result onto the alarm's delivery kind
func decide(p alarm.Payload, c *weather.Conditions) Outcome {
	if !shouldTrigger(p, c) {
		return OutcomeDiscard
	}
	if p.Kind == alarm.KindAlert {
		return OutcomeRaiseAlert
	}
	return OutcomePostNotification
}

// a missing or negative threshold means "any value"
func atLeast(value float64, threshold *float64) bool {
	if threshold == nil || *threshold < 0 {
		return true
	}
	return value >= *threshold
}

func containsAny(description string, keywords []string) bool {
	d := strings.ToLower(description)
	for _, k := range keywords {
		if strings.Contains(d, k) {
			return true
		}
	}
	return false
}

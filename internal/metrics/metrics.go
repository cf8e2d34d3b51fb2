package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AlarmMetrics holds the Prometheus metrics for the alarm daemon.
type AlarmMetrics struct {
	FiresTotal         *prometheus.CounterVec
	OutcomesTotal      *prometheus.CounterVec
	FetchFailuresTotal prometheus.Counter
	WorkItemsTotal     *prometheus.CounterVec
	WorkItemDuration   prometheus.Histogram
	RingingAlerts      prometheus.Gauge
	AuthorizationGate  prometheus.Gauge
}

// NewAlarmMetrics creates the metrics and registers them with reg.
// A nil reg registers with the default registry.
func NewAlarmMetrics(reg prometheus.Registerer) *AlarmMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &AlarmMetrics{
		FiresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_alarms",
			Subsystem: "scheduler",
			Name:      "fires_total",
			Help:      "Total number of alarm wake-ups by delivery kind.",
		}, []string{"kind"}), // kind: Alert, Notification
		OutcomesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_alarms",
			Subsystem: "evaluator",
			Name:      "outcomes_total",
			Help:      "Total number of evaluated alarms by outcome.",
		}, []string{"outcome"}), // outcome: alert, notification, discard, degraded, skipped
		FetchFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_alarms",
			Subsystem: "evaluator",
			Name:      "fetch_failures_total",
			Help:      "Total number of failed weather fetches at fire time.",
		}),
		WorkItemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_alarms",
			Subsystem: "workqueue",
			Name:      "items_total",
			Help:      "Total number of finished work items by terminal status.",
		}, []string{"status"}),
		WorkItemDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weather_alarms",
			Subsystem: "workqueue",
			Name:      "item_duration_seconds",
			Help:      "Run time of work items.",
			Buckets:   prometheus.DefBuckets,
		}),
		RingingAlerts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_alarms",
			Subsystem: "alerts",
			Name:      "ringing",
			Help:      "Number of alerts waiting for dismiss or snooze.",
		}),
		AuthorizationGate: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_alarms",
			Subsystem: "scheduler",
			Name:      "exact_authorized",
			Help:      "1 when exact scheduling is authorized, 0 otherwise.",
		}),
	}
}

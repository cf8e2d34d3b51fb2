package alarming

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smukkama/weather-alarms/internal/alarm"
	"github.com/smukkama/weather-alarms/internal/logging"
	"github.com/smukkama/weather-alarms/internal/metrics"
	"github.com/smukkama/weather-alarms/internal/workqueue"
)

// WorkEnqueuer accepts tagged deferred work
type WorkEnqueuer interface {
	Enqueue(tag string, job workqueue.Job) (uuid.UUID, error)
}

// PayloadEvaluator runs the fire-time evaluation for a payload
type PayloadEvaluator interface {
	Evaluate(ctx context.Context, p alarm.Payload) error
}

// FireHandler receives timer wake-ups and hands them to the work queue.
// OnWake does no I/O.
type FireHandler struct {
	work      WorkEnqueuer
	evaluator PayloadEvaluator
	metrics   *metrics.AlarmMetrics
	logger    zerolog.Logger
}

// NewFireHandler creates a fire handler. m may be nil.
func NewFireHandler(work WorkEnqueuer, evaluator PayloadEvaluator, m *metrics.AlarmMetrics, logger zerolog.Logger) *FireHandler {
	return &FireHandler{
		work:      work,
		evaluator: evaluator,
		metrics:   m,
		logger:    logger.With().Str("component", "fire_handler").Logger(),
	}
}

// OnWake enqueues evaluation of the payload under the alarm's tag
func (h *FireHandler) OnWake(p alarm.Payload) {
	if h.metrics != nil {
		h.metrics.FiresTotal.WithLabelValues(string(p.Kind)).Inc()
	}

	logger := h.logger.With().Int64("alarm_id", p.AlarmID).Logger()

	id, err := h.work.Enqueue(alarm.Tag(p.AlarmID), func(ctx context.Context) error {
		ctx = logging.NewContextWithLogger(ctx, logger)
		return h.evaluator.Evaluate(ctx, p)
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to enqueue alarm evaluation")
		return
	}

	logger.Debug().Str("work_id", id.String()).Msg("alarm evaluation enqueued")
}

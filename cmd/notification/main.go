package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/smukkama/weather-alarms/internal/logging"
	"github.com/smukkama/weather-alarms/internal/notification"
	"github.com/smukkama/weather-alarms/internal/protocol"
	"github.com/smukkama/weather-alarms/internal/queue"
	"github.com/smukkama/weather-alarms/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, logger := logging.NewLogger(context.Background(), "weather-alarms-notification", cfg.LogLevel)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	notifier := notification.NewEmailNotifier(&cfg.SMTP, logger)

	// optional, without SMTP events are only logged
	if err := notifier.TestConnection(); err != nil {
		logger.Warn().Err(err).Msg("email delivery disabled, events will be logged only")
	}

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlarms, "notification-group")
	defer consumer.Close()

	logger.Info().Str("topic", cfg.Kafka.TopicAlarms).Msg("notification service is running")

	go func() {
		for {
			msg, err := consumer.Consume(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Error().Err(err).Msg("failed to consume message")
				continue
			}

			event, err := protocol.DecodeAlarmEvent(msg.Value)
			if err != nil {
				logger.Error().Err(err).Msg("failed to decode alarm event")
				consumer.Commit(ctx, msg)
				continue
			}

			if err := notifier.SendAlarmEvent(event); err != nil {
				// not committed, redelivered on restart
				logger.Error().Err(err).Str("type", string(event.Type)).Int64("alarm_id", event.AlarmID).Msg("failed to send notification")
				continue
			}

			if err := consumer.Commit(ctx, msg); err != nil {
				logger.Error().Err(err).Msg("failed to commit offset")
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	stats := consumer.Stats()
	logger.Info().
		Int64("messages", stats.Messages).
		Int64("errors", stats.Errors).
		Int64("lag", stats.Lag).
		Msg("shutting down gracefully")
	cancel()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/smukkama/weather-alarms/internal/alarming"
	"github.com/smukkama/weather-alarms/internal/api"
	"github.com/smukkama/weather-alarms/internal/database"
	"github.com/smukkama/weather-alarms/internal/logging"
	"github.com/smukkama/weather-alarms/internal/metrics"
	"github.com/smukkama/weather-alarms/internal/notification"
	"github.com/smukkama/weather-alarms/internal/queue"
	"github.com/smukkama/weather-alarms/internal/scheduler"
	"github.com/smukkama/weather-alarms/internal/timer"
	"github.com/smukkama/weather-alarms/internal/weather"
	"github.com/smukkama/weather-alarms/internal/workqueue"
	"github.com/smukkama/weather-alarms/pkg/config"
)

const serviceName string = "weather-alarms"

// meteredGate mirrors the authorization flag into a gauge
type meteredGate struct {
	*scheduler.Gate
	gauge prometheus.Gauge
}

func (g meteredGate) Grant() {
	g.Gate.Grant()
	g.gauge.Set(1)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, logger := logging.NewLogger(context.Background(), serviceName, cfg.LogLevel)
	logger.Info().Str("db_driver", cfg.Database.Driver).Msg("starting alarm daemon")

	db, err := database.Connect(cfg.Database.Driver, cfg.Database.ConnectionString(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")

	if err := queue.CreateTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicAlarms, 3, 1, logger); err != nil {
		logger.Warn().Err(err).Str("topic", cfg.Kafka.TopicAlarms).Msg("could not create topic, assuming it exists")
	}

	producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlarms)
	defer producer.Close()

	m := metrics.NewAlarmMetrics(prometheus.DefaultRegisterer)

	tray := notification.NewTray(redisClient, cfg.Alerts.NotificationTTL)
	publisher := notification.NewPublisher(tray, producer, logger)

	gate := meteredGate{
		Gate: scheduler.NewGate(cfg.Scheduler.ExactAllowed, func() {
			m.AuthorizationGate.Set(0)
			publisher.RequestAuthorization(ctx)
		}),
		gauge: m.AuthorizationGate,
	}
	if cfg.Scheduler.ExactAllowed {
		m.AuthorizationGate.Set(1)
	}

	timers := timer.NewTimerManager(nil)
	work := workqueue.New(cfg.Scheduler.Workers, logger, func(r workqueue.Result) {
		m.WorkItemsTotal.WithLabelValues(string(r.Status)).Inc()
		m.WorkItemDuration.Observe(r.Duration.Seconds())
		if r.Status == workqueue.StatusFailed {
			logger.Warn().Err(r.Err).Str("tag", r.Tag).Str("work_id", r.ID.String()).Msg("alarm evaluation failed")
		}
	})
	sched := scheduler.New(timers, work, gate, logger)

	sound := alarming.NewAlertSound(alarming.NewLogRinger(logger), logger)
	alerts := alarming.NewAlertCenter(sound, alarming.NewStateManager(redisClient), producer, m, logger)
	evaluator := alarming.NewEvaluator(db, weather.NewClient(cfg.Weather), publisher, alerts, m, logger)
	handler := alarming.NewFireHandler(work, evaluator, m, logger)

	timers.SetFireFunc(handler.OnWake)
	work.Start()
	timers.Start()

	svc := alarming.NewService(db, sched, alerts, cfg.Alerts.SnoozeMinutes, logger)
	if _, err := svc.Restore(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to restore alarms")
	}

	router := api.RegisterHandlers(api.New(logger), api.Handlers{
		Alarms:        svc,
		Alerts:        alerts,
		Notifications: tray,
		Authorization: gate,
		Metrics:       promhttp.Handler(),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.HTTP.Port).Msg("starting http server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}

	timers.Stop()
	work.Stop()
	sound.StopAll()

	logger.Info().Msg("alarm daemon stopped")
}

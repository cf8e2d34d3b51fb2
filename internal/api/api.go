package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/smukkama/weather-alarms/internal/alarm"
	"github.com/smukkama/weather-alarms/internal/alarming"
	"github.com/smukkama/weather-alarms/internal/logging"
	"github.com/smukkama/weather-alarms/internal/notification"
)

// AlarmService is the alarm front end the API drives
type AlarmService interface {
	Create(ctx context.Context, a *alarm.Alarm) (*alarm.Alarm, error)
	Edit(ctx context.Context, id int64, a *alarm.Alarm) (*alarm.Alarm, error)
	Delete(ctx context.Context, id int64) error
	Toggle(ctx context.Context, id int64, active bool) (*alarm.Alarm, error)
	List(ctx context.Context) ([]*alarm.Alarm, error)
	Get(ctx context.Context, id int64) (*alarm.Alarm, error)
	Pending(id int64) (time.Time, bool)
	Dismiss(ctx context.Context, id int64) error
	Snooze(ctx context.Context, id int64, minutes int) (*alarm.Alarm, error)
}

// AlertLister lists alerts waiting for dismiss or snooze
type AlertLister interface {
	Ringing(ctx context.Context) ([]alarming.RingingAlert, error)
}

// NotificationLister lists the notification tray
type NotificationLister interface {
	List(ctx context.Context) ([]notification.Notification, error)
}

// Authorizer grants exact scheduling
type Authorizer interface {
	Grant()
	Granted() bool
}

// Handlers groups what the routes need
type Handlers struct {
	Alarms        AlarmService
	Alerts        AlertLister
	Notifications NotificationLister
	Authorization Authorizer
	Metrics       http.Handler
}

func New(logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))
	return r
}

// RegisterHandlers mounts the alarm API on router
func RegisterHandlers(router *chi.Mux, h Handlers) *chi.Mux {
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if h.Metrics != nil {
		router.Handle("/metrics", h.Metrics)
	}

	router.Route("/alarms", func(r chi.Router) {
		r.Get("/", listAlarmsHandler(h.Alarms))
		r.Post("/", createAlarmHandler(h.Alarms))
		r.Get("/{alarmID}", getAlarmHandler(h.Alarms))
		r.Put("/{alarmID}", editAlarmHandler(h.Alarms))
		r.Delete("/{alarmID}", deleteAlarmHandler(h.Alarms))
		r.Post("/{alarmID}/active", toggleAlarmHandler(h.Alarms))
	})

	router.Route("/alerts", func(r chi.Router) {
		r.Get("/", listAlertsHandler(h.Alerts))
		r.Post("/{alarmID}/dismiss", dismissHandler(h.Alarms))
		r.Post("/{alarmID}/snooze", snoozeHandler(h.Alarms))
	})

	router.Get("/notifications", listNotificationsHandler(h.Notifications))
	router.Post("/authorization", authorizationHandler(h.Authorization))

	return router
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := logger.With().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger()

			ctx := logging.NewContextWithLogger(r.Context(), l)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type alarmRequest struct {
	City      string              `json:"city"`
	Lat       float64             `json:"lat"`
	Lon       float64             `json:"lon"`
	FireTime  time.Time           `json:"fire_time"`
	Kind      alarm.DeliveryKind  `json:"kind"`
	Active    *bool               `json:"active,omitempty"`
	Condition alarm.ConditionKind `json:"condition,omitempty"`
	Threshold *float64            `json:"threshold,omitempty"`
}

func (req alarmRequest) toAlarm() *alarm.Alarm {
	a := &alarm.Alarm{
		City:      req.City,
		Lat:       req.Lat,
		Lon:       req.Lon,
		FireTime:  req.FireTime,
		Kind:      req.Kind,
		Active:    true,
		Condition: req.Condition,
		Threshold: req.Threshold,
	}
	if req.Active != nil {
		a.Active = *req.Active
	}
	return a
}

type alarmResponse struct {
	*alarm.Alarm
	NextWakeup *time.Time `json:"next_wakeup,omitempty"`
}

func toResponse(svc AlarmService, a *alarm.Alarm) alarmResponse {
	resp := alarmResponse{Alarm: a}
	if at, ok := svc.Pending(a.ID); ok {
		resp.NextWakeup = &at
	}
	return resp
}

func listAlarmsHandler(svc AlarmService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alarms, err := svc.List(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}

		resp := make([]alarmResponse, 0, len(alarms))
		for _, a := range alarms {
			resp = append(resp, toResponse(svc, a))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createAlarmHandler(svc AlarmService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req alarmRequest
		if !decode(w, r, &req) {
			return
		}

		a, err := svc.Create(r.Context(), req.toAlarm())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toResponse(svc, a))
	}
}

func getAlarmHandler(svc AlarmService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := alarmID(w, r)
		if !ok {
			return
		}

		a, err := svc.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(svc, a))
	}
}

func editAlarmHandler(svc AlarmService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := alarmID(w, r)
		if !ok {
			return
		}

		var req alarmRequest
		if !decode(w, r, &req) {
			return
		}

		a, err := svc.Edit(r.Context(), id, req.toAlarm())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(svc, a))
	}
}

func deleteAlarmHandler(svc AlarmService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := alarmID(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func toggleAlarmHandler(svc AlarmService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := alarmID(w, r)
		if !ok {
			return
		}

		var req struct {
			Active *bool `json:"active"`
		}
		if !decode(w, r, &req) {
			return
		}
		if req.Active == nil {
			http.Error(w, "active is required", http.StatusBadRequest)
			return
		}

		a, err := svc.Toggle(r.Context(), id, *req.Active)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(svc, a))
	}
}

func listAlertsHandler(alerts AlertLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := alerts.Ringing(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func dismissHandler(svc AlarmService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := alarmID(w, r)
		if !ok {
			return
		}

		if err := svc.Dismiss(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func snoozeHandler(svc AlarmService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := alarmID(w, r)
		if !ok {
			return
		}

		// an empty body snoozes for the default length
		var req struct {
			Minutes int `json:"minutes"`
		}
		if r.ContentLength != 0 && !decode(w, r, &req) {
			return
		}
		if req.Minutes < 0 {
			http.Error(w, "minutes must not be negative", http.StatusBadRequest)
			return
		}

		a, err := svc.Snooze(r.Context(), id, req.Minutes)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(svc, a))
	}
}

func listNotificationsHandler(tray NotificationLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := tray.List(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func authorizationHandler(auth Authorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth.Grant()
		logging.GetLoggerFromContext(r.Context()).Info().Msg("exact scheduling authorized")
		writeJSON(w, http.StatusOK, map[string]bool{"granted": auth.Granted()})
	}
}

func alarmID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "alarmID"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid alarm id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logging.GetLoggerFromContext(r.Context()).Debug().Err(err).Msg("unable to decode body")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.GetLoggerFromContext(r.Context())

	switch {
	case errors.Is(err, alarm.ErrNotFound):
		logger.Debug().Err(err).Msg("alarm not found")
		http.Error(w, err.Error(), http.StatusNotFound)
	case alarming.IsValidation(err):
		logger.Debug().Err(err).Msg("invalid alarm")
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logger.Error().Err(err).Msg("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

package alarming

import (
	"sync"

	"github.com/rs/zerolog"
)

// Ringer is the device that plays the alert tone
type Ringer interface {
	Play(alarmID int64) error
	Silence(alarmID int64) error
}

// LogRinger is a Ringer for headless hosts; it only logs.
type LogRinger struct {
	logger zerolog.Logger
}

func NewLogRinger(logger zerolog.Logger) *LogRinger {
	return &LogRinger{logger: logger.With().Str("component", "ringer").Logger()}
}

func (r *LogRinger) Play(alarmID int64) error {
	r.logger.Info().Int64("alarm_id", alarmID).Msg("alert sound playing")
	return nil
}

func (r *LogRinger) Silence(alarmID int64) error {
	r.logger.Info().Int64("alarm_id", alarmID).Msg("alert sound stopped")
	return nil
}

// AlertSound is the single process-wide alert tone. Starting a new alert
// stops whichever one is playing.
type AlertSound struct {
	mu      sync.Mutex
	ringer  Ringer
	owner   int64
	playing bool
	logger  zerolog.Logger
}

// NewAlertSound creates the alert sound slot
func NewAlertSound(ringer Ringer, logger zerolog.Logger) *AlertSound {
	return &AlertSound{
		ringer: ringer,
		logger: logger.With().Str("component", "alert_sound").Logger(),
	}
}

// Start plays the tone for alarmID, taking the slot from any current owner
func (s *AlertSound) Start(alarmID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playing {
		s.silence(s.owner)
	}

	if err := s.ringer.Play(alarmID); err != nil {
		s.logger.Error().Err(err).Int64("alarm_id", alarmID).Msg("failed to play alert sound")
		s.playing = false
		return
	}

	s.owner = alarmID
	s.playing = true
}

// Stop silences the tone if alarmID owns it. Reports whether it did.
func (s *AlertSound) Stop(alarmID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playing || s.owner != alarmID {
		return false
	}

	s.silence(alarmID)
	s.playing = false
	return true
}

// StopAll silences the tone whoever owns it
func (s *AlertSound) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playing {
		s.silence(s.owner)
		s.playing = false
	}
}

// Current returns the alarm id owning the tone
func (s *AlertSound) Current() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner, s.playing
}

func (s *AlertSound) silence(alarmID int64) {
	if err := s.ringer.Silence(alarmID); err != nil {
		s.logger.Error().Err(err).Int64("alarm_id", alarmID).Msg("failed to stop alert sound")
	}
}

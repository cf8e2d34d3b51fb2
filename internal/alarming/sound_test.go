package alarming

import (
	"errors"
	"sync"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

type recordingRinger struct {
	mu       sync.Mutex
	played   []int64
	silenced []int64
	playErr  error
}

func (r *recordingRinger) Play(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.playErr != nil {
		return r.playErr
	}
	r.played = append(r.played, id)
	return nil
}

func (r *recordingRinger) Silence(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.silenced = append(r.silenced, id)
	return nil
}

func TestAlertSound_LastAlertWins(t *testing.T) {
	is := is.New(t)
	r := &recordingRinger{}
	s := NewAlertSound(r, zerolog.Nop())

	s.Start(1)
	s.Start(2)

	owner, playing := s.Current()
	is.True(playing)
	is.Equal(owner, int64(2))
	is.Equal(r.silenced, []int64{1}) // first alert stopped before the second plays
}

func TestAlertSound_StopOnlyByOwner(t *testing.T) {
	is := is.New(t)
	r := &recordingRinger{}
	s := NewAlertSound(r, zerolog.Nop())

	s.Start(1)
	s.Start(2)

	is.True(!s.Stop(1)) // no longer the owner
	_, playing := s.Current()
	is.True(playing)

	is.True(s.Stop(2))
	_, playing = s.Current()
	is.True(!playing)
	is.True(!s.Stop(2))
}

func TestAlertSound_StopAll(t *testing.T) {
	is := is.New(t)
	r := &recordingRinger{}
	s := NewAlertSound(r, zerolog.Nop())

	s.StopAll()
	is.Equal(len(r.silenced), 0)

	s.Start(4)
	s.StopAll()
	is.Equal(r.silenced, []int64{4})
}

func TestAlertSound_PlayFailure(t *testing.T) {
	is := is.New(t)
	r := &recordingRinger{playErr: errors.New("no audio device")}
	s := NewAlertSound(r, zerolog.Nop())

	s.Start(1)
	_, playing := s.Current()
	is.True(!playing)
}

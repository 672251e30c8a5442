//go:build nocgo

package speaker

import (
	"errors"

	"github.com/MrWong99/joytutor/pkg/audio"
	"github.com/MrWong99/joytutor/pkg/audio/cue"
)

// Speaker is unavailable in nocgo builds.
type Speaker struct{}

var _ cue.Player = (*Speaker)(nil)

// New always fails in nocgo builds.
func New(audio.Format) (*Speaker, error) {
	return nil, errors.New("speaker: audio output not available in nocgo build")
}

// Format returns the zero format.
func (s *Speaker) Format() audio.Format { return audio.Format{} }

// PlayPCM does nothing.
func (s *Speaker) PlayPCM([]byte, audio.Format) {}

// Play does nothing.
func (s *Speaker) Play(cue.Kind) {}

// Close does nothing.
func (s *Speaker) Close() error { return nil }

//go:build nocgo

package portaudio

import (
	"context"
	"fmt"

	"github.com/MrWong99/joytutor/pkg/audio"
)

// Microphone is unavailable in nocgo builds.
type Microphone struct{}

var _ audio.Microphone = (*Microphone)(nil)

// Option configures a [Microphone].
type Option func(*Microphone)

// WithFormat is a no-op in nocgo builds.
func WithFormat(audio.Format) Option { return func(*Microphone) {} }

// WithFrameDuration is a no-op in nocgo builds.
func WithFrameDuration(int) Option { return func(*Microphone) {} }

// New creates a Microphone that always fails.
func New(...Option) *Microphone { return &Microphone{} }

// Request always fails with [audio.ErrNoDevice].
func (m *Microphone) Request(context.Context) (audio.Stream, error) {
	return nil, fmt.Errorf("portaudio: not available in nocgo build: %w", audio.ErrNoDevice)
}

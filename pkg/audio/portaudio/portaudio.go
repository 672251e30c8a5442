//go:build !nocgo

// Package portaudio captures the local default input device through the
// PortAudio C library.
package portaudio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/MrWong99/joytutor/pkg/audio"
)

// Microphone opens the default input device on each request.
type Microphone struct {
	format  audio.Format
	frameMs int
}

var _ audio.Microphone = (*Microphone)(nil)

// Option configures a [Microphone].
type Option func(*Microphone)

// WithFormat sets the capture format. Default: 48 kHz mono.
func WithFormat(f audio.Format) Option {
	return func(m *Microphone) { m.format = f }
}

// WithFrameDuration sets the capture buffer duration in milliseconds.
// Default: 20.
func WithFrameDuration(ms int) Option {
	return func(m *Microphone) { m.frameMs = ms }
}

// New creates a Microphone.
func New(opts ...Option) *Microphone {
	m := &Microphone{
		format:  audio.Format{SampleRate: 48000, Channels: 1},
		frameMs: 20,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Request implements [audio.Microphone]. A local device has no permission
// prompt, so failures are reported as [audio.ErrNoDevice].
func (m *Microphone) Request(ctx context.Context) (audio.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w: %w", audio.ErrNoDevice, err)
	}

	s := &stream{
		format: m.format,
		frames: make(chan audio.Frame, 64),
		start:  time.Now(),
	}
	perBuffer := m.format.SampleRate * m.frameMs / 1000
	pa, err := portaudio.OpenDefaultStream(m.format.Channels, 0, float64(m.format.SampleRate), perBuffer, s.capture)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("portaudio: open input: %w: %w", audio.ErrNoDevice, err)
	}
	if err := pa.Start(); err != nil {
		_ = pa.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("portaudio: start input: %w: %w", audio.ErrNoDevice, err)
	}
	s.pa = pa
	slog.Debug("portaudio: capture started", "format", m.format.String(), "buffer_ms", m.frameMs)
	return s, nil
}

type stream struct {
	pa     *portaudio.Stream
	format audio.Format
	frames chan audio.Frame
	start  time.Time

	mu      sync.Mutex
	stopped bool
	dropped int
}

func (s *stream) Format() audio.Format      { return s.format }
func (s *stream) Frames() <-chan audio.Frame { return s.frames }

// capture runs on the PortAudio callback thread.
func (s *stream) capture(in []int16) {
	f := audio.Frame{
		Data:       audio.PCM(in),
		SampleRate: s.format.SampleRate,
		Channels:   s.format.Channels,
		Timestamp:  time.Since(s.start),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	select {
	case s.frames <- f:
	default:
		s.dropped++
	}
}

func (s *stream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	dropped := s.dropped
	s.mu.Unlock()

	// Pa_StopStream returns after the last callback has completed.
	err := s.pa.Stop()
	if cerr := s.pa.Close(); err == nil {
		err = cerr
	}
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	close(s.frames)
	if dropped > 0 {
		slog.Warn("portaudio: frames dropped during capture", "count", dropped)
	}
	if err != nil {
		return fmt.Errorf("portaudio: stop: %w", err)
	}
	return nil
}

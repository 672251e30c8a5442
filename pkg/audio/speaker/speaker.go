//go:build !nocgo

// Package speaker plays PCM on the local output device through oto.
//
// A [Speaker] implements [cue.Player] so practice cues can be heard when
// the pipeline runs against a local microphone, and plays synthesized
// speech through [Speaker.PlayPCM].
package speaker

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/MrWong99/joytutor/pkg/audio"
	"github.com/MrWong99/joytutor/pkg/audio/cue"
)

// readyTimeout bounds the wait for the audio driver to come up.
const readyTimeout = 5 * time.Second

// Speaker is a local output device. oto allows one context per process, so
// create a single Speaker and share it.
type Speaker struct {
	ctx    *oto.Context
	format audio.Format

	mu      sync.Mutex
	players []*oto.Player
	closed  bool
}

var _ cue.Player = (*Speaker)(nil)

// New opens the default output device in the given mono or stereo format.
func New(format audio.Format) (*Speaker, error) {
	if !format.Valid() || format.Channels > 2 {
		return nil, fmt.Errorf("speaker: unsupported format %s", format)
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   50 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("speaker: create audio context: %w", err)
	}
	select {
	case <-ready:
	case <-time.After(readyTimeout):
		return nil, errors.New("speaker: audio context initialization timeout")
	}
	slog.Debug("speaker: output ready", "format", format.String())
	return &Speaker{ctx: ctx, format: format}, nil
}

// Format returns the device format.
func (s *Speaker) Format() audio.Format { return s.format }

// PlayPCM queues 16-bit PCM in format from and returns immediately.
func (s *Speaker) PlayPCM(pcm []byte, from audio.Format) {
	conv := audio.Converter{Target: s.format}
	pcm = conv.Convert(pcm, from)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.reapLocked()
	p := s.ctx.NewPlayer(bytes.NewReader(pcm))
	p.Play()
	s.players = append(s.players, p)
}

// Play implements [cue.Player].
func (s *Speaker) Play(k cue.Kind) {
	mono := audio.Format{SampleRate: s.format.SampleRate, Channels: 1}
	s.PlayPCM(audio.PCM(cue.Render(k, mono.SampleRate)), mono)
}

// reapLocked closes players that finished. The caller holds s.mu.
func (s *Speaker) reapLocked() {
	live := s.players[:0]
	for _, p := range s.players {
		if p.IsPlaying() {
			live = append(live, p)
			continue
		}
		if err := p.Close(); err != nil {
			slog.Debug("speaker: close player", "err", err)
		}
	}
	clear(s.players[len(live):])
	s.players = live
}

// Close stops all playback. The oto context itself lives until process exit.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	var errs []error
	for _, p := range s.players {
		errs = append(errs, p.Close())
	}
	s.players = nil
	return errors.Join(errs...)
}

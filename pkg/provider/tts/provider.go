// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., Gemini or
// ElevenLabs) and turns one short text, typically a vocabulary word or a
// lesson sentence, into a complete PCM clip the caller can play.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"time"

	"github.com/MrWong99/joytutor/pkg/audio"
)

// Speech is a synthesised clip: signed 16-bit little-endian PCM in Format.
type Speech struct {
	PCM    []byte
	Format audio.Format
}

// Duration returns the playback length of the clip.
func (s *Speech) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return s.Format.Duration(len(s.PCM))
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text with the given voice. A nil Speech with a nil
	// error means the backend answered without audio; callers treat that as
	// "nothing to play" rather than a failure.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) (*Speech, error)

	// ListVoices returns all voice profiles available from this provider.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}

// Package mock provides in-memory implementations of [audio.Microphone] and
// [audio.Stream] for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts, and they expose exported fields that the
// test can set to control return values.
//
// Typical usage:
//
//	stream := mock.NewStream(audio.Format{SampleRate: 48000, Channels: 1})
//	mic := &mock.Microphone{Stream: stream}
//	s, err := mic.Request(ctx)
//	...
//	if stream.StopCount() != 1 { ... }
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/joytutor/pkg/audio"
)

// ─── Stream ───────────────────────────────────────────────────────────────────

// Stream is a mock implementation of [audio.Stream]. Frames queued with
// [Stream.Push] are delivered in order; [Stream.Stop] closes the channel on
// its first call and counts every call.
type Stream struct {
	mu      sync.Mutex
	format  audio.Format
	frames  chan audio.Frame
	stopped bool

	// StopErr is returned by every call to Stop.
	StopErr error

	stopCount int
}

var _ audio.Stream = (*Stream)(nil)

// NewStream creates a Stream in the given format, pre-loaded with frames.
func NewStream(format audio.Format, frames ...audio.Frame) *Stream {
	s := &Stream{
		format: format,
		frames: make(chan audio.Frame, len(frames)+256),
	}
	for _, f := range frames {
		s.frames <- f
	}
	return s
}

// Format implements [audio.Stream].
func (s *Stream) Format() audio.Format { return s.format }

// Frames implements [audio.Stream].
func (s *Stream) Frames() <-chan audio.Frame { return s.frames }

// Push queues a frame. It reports false once the stream has been stopped.
func (s *Stream) Push(f audio.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	select {
	case s.frames <- f:
		return true
	default:
		return false
	}
}

// Stop implements [audio.Stream].
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCount++
	if !s.stopped {
		s.stopped = true
		close(s.frames)
	}
	return s.StopErr
}

// StopCount returns how many times Stop has been called.
func (s *Stream) StopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCount
}

// Stopped reports whether Stop has been called at least once.
func (s *Stream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// ─── Microphone ───────────────────────────────────────────────────────────────

// Microphone is a mock implementation of [audio.Microphone].
type Microphone struct {
	mu sync.Mutex

	// Stream is returned by Request when Err is nil.
	Stream *Stream

	// Err is returned by Request when non-nil.
	Err error

	// Gate, when non-nil, blocks Request until a value is received or ctx is
	// cancelled. Use it to simulate a pending permission prompt.
	Gate chan struct{}

	// CallCount records how many times Request was called.
	CallCount int
}

var _ audio.Microphone = (*Microphone)(nil)

// Request implements [audio.Microphone].
func (m *Microphone) Request(ctx context.Context) (audio.Stream, error) {
	m.mu.Lock()
	m.CallCount++
	gate, stream, err := m.Gate, m.Stream, m.Err
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if stream == nil {
		return nil, audio.ErrNoDevice
	}
	return stream, nil
}

// Calls returns how many times Request was called.
func (m *Microphone) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// Package audio defines the microphone contract and PCM helpers used by the
// voice practice pipeline.
//
// The two primary abstractions are:
//
//   - [Microphone]: asks the platform for access to an input device and
//     returns a live [Stream] once the learner grants permission.
//   - [Stream]: a live capture owned by exactly one practice session, giving
//     the owner a frame channel and a single release call.
//
// Implementations live in platform-specific adapter packages (audio/portaudio
// for a local device, audio/wsmic for a browser). This package lives under
// pkg/ because other front ends are expected to implement [Microphone].
package audio

import (
	"context"
	"errors"
)

// ErrPermissionDenied is returned by [Microphone.Request] when the learner or
// the platform refuses access to the input device.
var ErrPermissionDenied = errors.New("audio: microphone permission denied")

// ErrNoDevice is returned by [Microphone.Request] when no input device exists.
var ErrNoDevice = errors.New("audio: no input device available")

// Microphone is the platform collaborator that grants access to an input
// device.
//
// Implementations must be safe for concurrent use.
type Microphone interface {
	// Request acquires the input device and returns a live stream. It may
	// block for as long as the platform waits on the learner's permission
	// decision; ctx cancels the wait.
	//
	// On error no partial resources remain: any intermediate acquisition is
	// released before Request returns.
	Request(ctx context.Context) (Stream, error)
}

// Stream is a live microphone capture.
//
// A Stream is owned by one consumer. Frames arrive on [Stream.Frames] until
// [Stream.Stop] is called or the device goes away, after which the channel
// is closed.
type Stream interface {
	// Format reports the PCM format of every frame on this stream.
	Format() Format

	// Frames returns the receive-only channel of captured frames. The same
	// channel is returned on every call.
	Frames() <-chan Frame

	// Stop releases the underlying device tracks and closes the frame
	// channel. Callers must invoke it exactly once.
	Stop() error
}

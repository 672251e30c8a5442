// Package practice implements the voice practice pipeline: a single
// recording attempt is captured from a microphone, stopped on sustained
// silence or a hard cap, encoded, sent to a pronunciation evaluator and
// rendered as tutor feedback.
//
// The pieces compose bottom-up:
//
//   - [Monitor] decides per display frame when the learner stopped speaking.
//   - [Session] owns the microphone stream and encoder for one attempt and
//     drives the state machine from Requesting to Completed or Failed.
//   - [Dispatcher] submits the artifact and normalizes the evaluator answer,
//     falling back to a deterministic [Result] when the answer is malformed.
//   - [Controller] holds the single-flight gate and turns outcomes into
//     cues, transcript entries and celebrations.
package practice

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mode selects the timing profile of an attempt.
type Mode string

const (
	// ModeWord is a single-word attempt.
	ModeWord Mode = "word"

	// ModeSentence is a full-sentence attempt.
	ModeSentence Mode = "sentence"
)

// ParseMode converts a wire or flag value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeWord, ModeSentence:
		return m, nil
	default:
		return "", fmt.Errorf("practice: unknown mode %q (want word or sentence)", s)
	}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m == ModeWord || m == ModeSentence }

// label is the Vietnamese noun used in learner transcript entries.
func (m Mode) label() string {
	if m == ModeSentence {
		return "câu"
	}
	return "từ"
}

// Request is the target of one attempt. Two requests with the same text and
// mode address the same target.
type Request struct {
	Text string
	Mode Mode
}

// Validate reports whether r can start an attempt.
func (r Request) Validate() error {
	var errs []error
	if strings.TrimSpace(r.Text) == "" {
		errs = append(errs, errors.New("practice: request text must not be empty"))
	}
	if !r.Mode.Valid() {
		errs = append(errs, fmt.Errorf("practice: unknown mode %q", r.Mode))
	}
	return errors.Join(errs...)
}

// ─── Timing ───────────────────────────────────────────────────────────────────

// Window is the silence window and hard cap of one mode.
type Window struct {
	Silence time.Duration
	Max     time.Duration
}

// Timing holds the monitor thresholds for both modes.
type Timing struct {
	// EnergyThreshold is the mean spectrum magnitude, on the 0..255 byte
	// scale, above which a frame counts as voice activity.
	EnergyThreshold float64

	Word     Window
	Sentence Window
}

// DefaultTiming returns the built-in thresholds: energy 15, words stop after
// 1.2 s of silence or 4 s total, sentences after 2 s of silence or 8 s total.
func DefaultTiming() Timing {
	return Timing{
		EnergyThreshold: 15,
		Word:            Window{Silence: 1200 * time.Millisecond, Max: 4000 * time.Millisecond},
		Sentence:        Window{Silence: 2000 * time.Millisecond, Max: 8000 * time.Millisecond},
	}
}

// Validate reports every invalid threshold.
func (t Timing) Validate() error {
	var errs []error
	if t.EnergyThreshold < 0 || t.EnergyThreshold > 255 {
		errs = append(errs, fmt.Errorf("practice: energy threshold %v must be in [0, 255]", t.EnergyThreshold))
	}
	for _, w := range []struct {
		name string
		win  Window
	}{{"word", t.Word}, {"sentence", t.Sentence}} {
		if w.win.Silence <= 0 {
			errs = append(errs, fmt.Errorf("practice: %s silence window must be positive", w.name))
		}
		if w.win.Max <= 0 {
			errs = append(errs, fmt.Errorf("practice: %s max duration must be positive", w.name))
		}
	}
	return errors.Join(errs...)
}

// For returns the monitor configuration for mode. Unknown modes use the
// word profile.
func (t Timing) For(mode Mode) MonitorConfig {
	w := t.Word
	if mode == ModeSentence {
		w = t.Sentence
	}
	return MonitorConfig{
		EnergyThreshold: t.EnergyThreshold,
		SilenceWindow:   w.Silence,
		MaxDuration:     w.Max,
	}
}

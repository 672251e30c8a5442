// Package cue synthesizes the short acoustic affordances of a practice
// attempt: the "listening" blip when capture starts, a rising two-tone
// chime for a correct answer and a falling buzz otherwise.
//
// Cues are rendered locally as 16-bit mono PCM; no external service is
// involved. A [Player] decides where the samples go.
package cue

import (
	"math"
)

// Kind identifies a cue.
type Kind int

const (
	// Listening is the fixed-pitch blip played when recording starts.
	Listening Kind = iota

	// Success is the two-tone rising chime played for a correct attempt.
	Success

	// Failure is the single falling tone played for an incorrect attempt.
	Failure
)

// String returns the wire name of the cue.
func (k Kind) String() string {
	switch k {
	case Listening:
		return "listening"
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// Player plays cues. Play must return promptly; implementations queue or
// hand off the audio instead of waiting for playback to finish.
type Player interface {
	Play(k Kind)
}

// PlayerFunc adapts a function to [Player].
type PlayerFunc func(Kind)

// Play implements [Player].
func (f PlayerFunc) Play(k Kind) { f(k) }

// Nop discards every cue.
var Nop Player = PlayerFunc(func(Kind) {})

type waveform int

const (
	sine waveform = iota
	sawtooth
)

// tone describes an oscillator with exponential frequency and gain ramps.
type tone struct {
	wave waveform

	startHz, endHz float64
	glide          float64 // seconds over which the frequency ramps

	startGain, endGain float64
	fade               float64 // seconds over which the gain ramps

	length float64 // seconds
}

var tones = map[Kind]tone{
	Listening: {wave: sine, startHz: 1000, endHz: 1000, glide: 0.1, startGain: 0.05, endGain: 0.01, fade: 0.1, length: 0.1},
	Success:   {wave: sine, startHz: 523.25, endHz: 880, glide: 0.1, startGain: 0.1, endGain: 0.01, fade: 0.3, length: 0.3},
	Failure:   {wave: sawtooth, startHz: 220, endHz: 110, glide: 0.2, startGain: 0.05, endGain: 0.01, fade: 0.4, length: 0.4},
}

// Duration returns the playback length of the cue in seconds.
func Duration(k Kind) float64 { return tones[k].length }

// expRamp interpolates exponentially from a to b as t goes 0..1, holding b
// afterwards.
func expRamp(a, b, t float64) float64 {
	if t >= 1 {
		return b
	}
	return a * math.Pow(b/a, t)
}

// Render synthesizes the cue as mono 16-bit samples at sampleRate. Unknown
// kinds render as silence of zero length.
func Render(k Kind, sampleRate int) []int16 {
	tn, ok := tones[k]
	if !ok || sampleRate <= 0 {
		return nil
	}
	n := int(math.Round(tn.length * float64(sampleRate)))
	out := make([]int16, n)
	dt := 1 / float64(sampleRate)
	phase := 0.0
	for i := range out {
		t := float64(i) * dt
		freq := expRamp(tn.startHz, tn.endHz, t/tn.glide)
		gain := expRamp(tn.startGain, tn.endGain, t/tn.fade)

		var v float64
		switch tn.wave {
		case sine:
			v = math.Sin(2 * math.Pi * phase)
		case sawtooth:
			v = 2*phase - 1
		}
		out[i] = int16(math.Round(v * gain * 32767))

		phase += freq * dt
		phase -= math.Floor(phase)
	}
	return out
}

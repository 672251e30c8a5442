// Package spectrum computes the coarse frequency-domain loudness used for
// voice activity detection.
//
// [Analyser] mirrors a browser AnalyserNode: it keeps the most recent
// FFTSize samples of a live stream, applies a Blackman window, smooths the
// magnitude spectrum over time and maps it onto a 0..255 byte scale between
// MinDecibels and MaxDecibels. [Analyser.Level] is the mean of those bytes,
// which is the energy reading the silence monitor compares against its
// threshold.
package spectrum

import (
	"fmt"
	"math"
	"sync"

	"github.com/MrWong99/joytutor/pkg/audio"
)

// Config controls the analyser.
type Config struct {
	// FFTSize is the transform length; a power of two in [32, 32768].
	// The analyser reports FFTSize/2 frequency bins.
	FFTSize int

	// Smoothing is the time constant in [0, 1) blending each reading with
	// the previous one.
	Smoothing float64

	// MinDecibels maps to byte 0.
	MinDecibels float64

	// MaxDecibels maps to byte 255.
	MaxDecibels float64
}

// DefaultConfig returns the browser defaults for a 256-point analyser.
func DefaultConfig() Config {
	return Config{
		FFTSize:     256,
		Smoothing:   0.8,
		MinDecibels: -100,
		MaxDecibels: -30,
	}
}

// Validate reports whether c is usable.
func (c Config) Validate() error {
	if c.FFTSize < 32 || c.FFTSize > 32768 || c.FFTSize&(c.FFTSize-1) != 0 {
		return fmt.Errorf("spectrum: fft size %d must be a power of two in [32, 32768]", c.FFTSize)
	}
	if c.Smoothing < 0 || c.Smoothing >= 1 {
		return fmt.Errorf("spectrum: smoothing %v must be in [0, 1)", c.Smoothing)
	}
	if c.MinDecibels >= c.MaxDecibels {
		return fmt.Errorf("spectrum: min decibels %v must be below max decibels %v", c.MinDecibels, c.MaxDecibels)
	}
	return nil
}

// Analyser tracks the spectrum of a live PCM stream. Write and the read
// methods may be called from different goroutines.
type Analyser struct {
	cfg    Config
	window []float64

	mu       sync.Mutex
	ring     []float64
	pos      int
	smoothed []float64
	re, im   []float64
	bytes    []byte
}

// New creates an Analyser. It returns an error if cfg is invalid.
func New(cfg Config) (*Analyser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := cfg.FFTSize
	return &Analyser{
		cfg:      cfg,
		window:   blackman(n),
		ring:     make([]float64, n),
		smoothed: make([]float64, n/2),
		re:       make([]float64, n),
		im:       make([]float64, n),
		bytes:    make([]byte, n/2),
	}, nil
}

// BinCount returns the number of frequency bins, FFTSize/2.
func (a *Analyser) BinCount() int { return a.cfg.FFTSize / 2 }

// Write appends 16-bit interleaved PCM in the given format. Multi-channel
// input is averaged down to mono first.
func (a *Analyser) Write(pcm []byte, format audio.Format) {
	samples := audio.Downmix(audio.Int16s(pcm), format.Channels)

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range samples {
		a.ring[a.pos] = float64(s) / 32768
		a.pos = (a.pos + 1) % len(a.ring)
	}
}

// ByteFrequencyData computes the current spectrum and copies it into dst,
// growing dst to BinCount bytes when needed. It advances the smoothing
// state, exactly like one AnalyserNode read.
func (a *Analyser) ByteFrequencyData(dst []byte) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.compute()
	if cap(dst) < len(a.bytes) {
		dst = make([]byte, len(a.bytes))
	}
	dst = dst[:len(a.bytes)]
	copy(dst, a.bytes)
	return dst
}

// Level computes the current spectrum and returns the mean byte magnitude
// across all bins, in [0, 255].
func (a *Analyser) Level() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.compute()
	var sum int
	for _, b := range a.bytes {
		sum += int(b)
	}
	return float64(sum) / float64(len(a.bytes))
}

// compute refreshes a.bytes from the ring buffer. The caller holds a.mu.
func (a *Analyser) compute() {
	n := len(a.ring)
	for i := range n {
		// Oldest sample first.
		a.re[i] = a.ring[(a.pos+i)%n] * a.window[i]
		a.im[i] = 0
	}
	fft(a.re, a.im)

	tau := a.cfg.Smoothing
	scale := 255 / (a.cfg.MaxDecibels - a.cfg.MinDecibels)
	for k := range a.smoothed {
		mag := math.Hypot(a.re[k], a.im[k]) / float64(n)
		a.smoothed[k] = tau*a.smoothed[k] + (1-tau)*mag
		if math.IsNaN(a.smoothed[k]) || math.IsInf(a.smoothed[k], 0) {
			a.smoothed[k] = 0
		}

		db := 20 * math.Log10(a.smoothed[k])
		v := math.Floor(scale * (db - a.cfg.MinDecibels))
		switch {
		case math.IsNaN(v) || v < 0:
			a.bytes[k] = 0
		case v > 255:
			a.bytes[k] = 255
		default:
			a.bytes[k] = byte(v)
		}
	}
}

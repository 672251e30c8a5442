package spectrum_test

import (
	"math"
	"testing"

	"github.com/MrWong99/joytutor/pkg/audio"
	"github.com/MrWong99/joytutor/pkg/audio/spectrum"
)

var mono48k = audio.Format{SampleRate: 48000, Channels: 1}

func sine(freq, amp float64, n int) []byte {
	s := make([]int16, n)
	for i := range s {
		s[i] = int16(amp * 32767 * math.Sin(2*math.Pi*freq*float64(i)/48000))
	}
	return audio.PCM(s)
}

func newAnalyser(t *testing.T) *spectrum.Analyser {
	t.Helper()
	a, err := spectrum.New(spectrum.DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestDefaultBinCount(t *testing.T) {
	t.Parallel()
	a := newAnalyser(t)
	if got := a.BinCount(); got != 128 {
		t.Errorf("BinCount = %d, want 128", got)
	}
	if got := len(a.ByteFrequencyData(nil)); got != 128 {
		t.Errorf("len(ByteFrequencyData) = %d, want 128", got)
	}
}

func TestSilenceIsZero(t *testing.T) {
	t.Parallel()
	a := newAnalyser(t)
	a.Write(make([]byte, 512), mono48k)
	if got := a.Level(); got != 0 {
		t.Errorf("Level on silence = %v, want 0", got)
	}
}

func noise(amp int32, n int) []int16 {
	s := make([]int16, n)
	seed := uint32(7)
	for i := range s {
		seed = seed*1664525 + 1013904223
		s[i] = int16(int32(seed>>16)%(2*amp+1) - amp)
	}
	return s
}

func TestLoudNoiseExceedsThreshold(t *testing.T) {
	t.Parallel()
	a := newAnalyser(t)
	a.Write(audio.PCM(noise(8000, 1024)), mono48k)
	if got := a.Level(); got <= 15 {
		t.Errorf("Level on loud noise = %v, want > 15", got)
	}
}

func TestTonePeaksInItsBin(t *testing.T) {
	t.Parallel()
	a := newAnalyser(t)
	a.Write(sine(1000, 0.8, 1024), mono48k)
	data := a.ByteFrequencyData(nil)
	// 1 kHz at 48 kHz with 256 points lands between bins 5 and 6.
	if data[5] < 200 && data[6] < 200 {
		t.Errorf("peak bins = %d, %d, want a strong peak", data[5], data[6])
	}
	if data[60] >= data[5] {
		t.Errorf("bin 60 = %d should be far below the peak %d", data[60], data[5])
	}
}

func TestFaintNoiseStaysBelowThreshold(t *testing.T) {
	t.Parallel()
	a := newAnalyser(t)
	s := make([]int16, 1024)
	seed := uint32(1)
	for i := range s {
		seed = seed*1664525 + 1013904223
		s[i] = int16(seed>>29) - 4 // within [-4, 3]
	}
	a.Write(audio.PCM(s), mono48k)
	if got := a.Level(); got >= 15 {
		t.Errorf("Level on faint noise = %v, want < 15", got)
	}
}

func TestSmoothingDecays(t *testing.T) {
	t.Parallel()
	a := newAnalyser(t)
	a.Write(audio.PCM(noise(8000, 256)), mono48k)
	loud := a.Level()
	a.Write(make([]byte, 512), mono48k)
	first := a.Level()
	for range 60 {
		a.Level()
	}
	last := a.Level()
	if !(loud > first && first > last) {
		t.Errorf("levels loud=%v first=%v last=%v, want strictly decaying", loud, first, last)
	}
}

func TestStereoDownmix(t *testing.T) {
	t.Parallel()
	a := newAnalyser(t)
	a.Write(audio.PCM(audio.Upmix(noise(8000, 512), 2)), audio.Format{SampleRate: 48000, Channels: 2})
	if got := a.Level(); got <= 15 {
		t.Errorf("Level on stereo noise = %v, want > 15", got)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     spectrum.Config
		wantErr bool
	}{
		{name: "default", cfg: spectrum.DefaultConfig()},
		{name: "not power of two", cfg: spectrum.Config{FFTSize: 100, Smoothing: 0.5, MinDecibels: -100, MaxDecibels: -30}, wantErr: true},
		{name: "too small", cfg: spectrum.Config{FFTSize: 16, Smoothing: 0.5, MinDecibels: -100, MaxDecibels: -30}, wantErr: true},
		{name: "smoothing one", cfg: spectrum.Config{FFTSize: 256, Smoothing: 1, MinDecibels: -100, MaxDecibels: -30}, wantErr: true},
		{name: "inverted range", cfg: spectrum.Config{FFTSize: 256, Smoothing: 0.8, MinDecibels: -30, MaxDecibels: -100}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

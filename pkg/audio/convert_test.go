package audio_test

import (
	"testing"
	"time"

	"github.com/MrWong99/joytutor/pkg/audio"
)

func TestInt16sRoundTrip(t *testing.T) {
	t.Parallel()
	in := []int16{0, 1, -1, 32767, -32768}
	got := audio.Int16s(audio.PCM(in))
	if len(got) != len(in) {
		t.Fatalf("len = %d, want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], in[i])
		}
	}
}

func TestDownmix(t *testing.T) {
	t.Parallel()
	got := audio.Downmix([]int16{100, 200, -100, -200, 32767, 32767}, 2)
	want := []int16{150, -150, 32767}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestUpmix(t *testing.T) {
	t.Parallel()
	got := audio.Upmix([]int16{1, 2}, 2)
	want := []int16{1, 1, 2, 2}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestResample(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		in      []int16
		src     int
		dst     int
		wantLen int
	}{
		{name: "same rate", in: make([]int16, 480), src: 48000, dst: 48000, wantLen: 480},
		{name: "down 48k to 16k", in: make([]int16, 480), src: 48000, dst: 16000, wantLen: 160},
		{name: "up 24k to 48k", in: make([]int16, 240), src: 24000, dst: 48000, wantLen: 480},
		{name: "invalid rate", in: make([]int16, 10), src: 0, dst: 16000, wantLen: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := len(audio.Resample(tt.in, tt.src, tt.dst)); got != tt.wantLen {
				t.Errorf("len = %d, want %d", got, tt.wantLen)
			}
		})
	}
}

func TestConverter(t *testing.T) {
	t.Parallel()
	c := audio.Converter{Target: audio.Format{SampleRate: 24000, Channels: 1}}

	same := audio.PCM([]int16{1, 2, 3})
	if got := c.Convert(same, c.Target); &got[0] != &same[0] {
		t.Error("matching format should return the input slice")
	}

	stereo48 := audio.PCM(make([]int16, 960)) // 480 stereo frames
	got := c.Convert(stereo48, audio.Format{SampleRate: 48000, Channels: 2})
	if len(got) != 240*2 {
		t.Errorf("converted bytes = %d, want %d", len(got), 480)
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()
	f := audio.Format{SampleRate: 16000, Channels: 1}
	if got := f.Duration(32000); got != time.Second {
		t.Errorf("Duration = %v, want 1s", got)
	}
	if got := f.String(); got != "16000Hz mono" {
		t.Errorf("String = %q", got)
	}
	if (audio.Format{}).Valid() {
		t.Error("zero format should be invalid")
	}
}

package practice_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/joytutor/internal/practice"
	"github.com/MrWong99/joytutor/pkg/audio"
	"github.com/MrWong99/joytutor/pkg/audio/cue"
)

// transcript records delivered entries.
type transcript struct {
	mu      sync.Mutex
	entries []practice.TranscriptEntry
}

func (r *transcript) Append(e practice.TranscriptEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *transcript) Entries() []practice.TranscriptEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]practice.TranscriptEntry(nil), r.entries...)
}

type rig struct {
	*harness
	ctrl       *practice.Controller
	transcript *transcript

	mu         sync.Mutex
	bursts     []practice.Burst
	indicators []string
}

func newRig(t *testing.T, level func(int) float64, answer string) *rig {
	t.Helper()
	r := &rig{harness: newHarness(level, answer), transcript: &transcript{}}
	ctrl, err := practice.NewController(practice.ControllerConfig{
		Session:    r.config(),
		Transcript: r.transcript,
		Celebrator: practice.CelebratorFunc(func(b practice.Burst) {
			r.mu.Lock()
			r.bursts = append(r.bursts, b)
			r.mu.Unlock()
		}),
		OnRecording: func(target string) {
			r.mu.Lock()
			r.indicators = append(r.indicators, target)
			r.mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	r.ctrl = ctrl
	return r
}

func (r *rig) Bursts() []practice.Burst {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]practice.Burst(nil), r.bursts...)
}

func (r *rig) Indicators() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.indicators...)
}

func awaitAttempt(t *testing.T, a *practice.Attempt) practice.Outcome {
	t.Helper()
	select {
	case <-a.Done():
		return a.Outcome()
	case <-time.After(5 * time.Second):
		t.Fatal("attempt did not finish")
	}
	return practice.Outcome{}
}

func TestController_EndToEndCorrectWord(t *testing.T) {
	t.Parallel()
	r := newRig(t, silent, correctAnswer)

	a, err := r.ctrl.Start(context.Background(), catRequest)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if target, ok := r.ctrl.RecordingTarget(); !ok || target != "cat" {
		t.Errorf("RecordingTarget = %q, %v", target, ok)
	}
	r.clk.WaitForWaiters(t, 2)
	r.clk.Advance(5 * time.Second)
	out := awaitAttempt(t, a)

	if out.StopReason != practice.StopSilence {
		t.Errorf("stop reason = %v, want silence", out.StopReason)
	}
	if d := out.CaptureDuration; d <= 1200*time.Millisecond || d > 1200*time.Millisecond+practice.DefaultFrameInterval {
		t.Errorf("capture = %v, want ~1200ms", d)
	}

	if got := r.cues.Kinds(); len(got) != 2 || got[0] != cue.Listening || got[1] != cue.Success {
		t.Errorf("cues = %v, want [listening success]", got)
	}

	entries := r.transcript.Entries()
	if len(entries) != 2 {
		t.Fatalf("transcript entries = %d, want 2: %+v", len(entries), entries)
	}
	if entries[0].Speaker != practice.Learner || entries[0].Text != "[Âm thanh luyện đọc từ: cat]" {
		t.Errorf("learner entry = %+v", entries[0])
	}
	wantTutor := "**Điểm: 95%**\n\nTuyệt vời! Con đọc rất chuẩn.\n\n* **Trôi chảy:** Rất trôi chảy\n* **Gợi ý:** Tiếp tục phát huy nhé"
	if entries[1].Speaker != practice.Tutor || entries[1].Text != wantTutor {
		t.Errorf("tutor entry = %q, want %q", entries[1].Text, wantTutor)
	}

	if got := r.Bursts(); len(got) != 1 || got[0] != practice.CorrectBurst {
		t.Errorf("bursts = %+v, want one CorrectBurst", got)
	}
	if r.ctrl.IsRecording() {
		t.Error("still recording after completion")
	}
	if got := r.Indicators(); len(got) != 2 || got[0] != "cat" || got[1] != "" {
		t.Errorf("indicator changes = %q, want [cat \"\"]", got)
	}
	if got := r.stream.StopCount(); got != 1 {
		t.Errorf("stream stopped %d times, want 1", got)
	}
}

func TestController_IncorrectAttempt(t *testing.T) {
	t.Parallel()
	r := newRig(t, silent, `{"accuracy":40,"feedback":"Gần đúng rồi","fluency":"Hơi ngập ngừng","suggestion":"Đọc chậm lại nhé"}`)

	a, err := r.ctrl.Start(context.Background(), catRequest)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	r.clk.WaitForWaiters(t, 2)
	r.clk.Advance(5 * time.Second)
	awaitAttempt(t, a)

	if got := r.cues.Kinds(); len(got) != 2 || got[1] != cue.Failure {
		t.Errorf("cues = %v, want failure last", got)
	}
	if len(r.Bursts()) != 0 {
		t.Error("celebrated an incorrect attempt")
	}
	if entries := r.transcript.Entries(); len(entries) != 2 || !strings.HasPrefix(entries[1].Text, "**Điểm: 40%**") {
		t.Errorf("entries = %+v", entries)
	}
}

func TestController_SingleFlight(t *testing.T) {
	t.Parallel()
	r := newRig(t, loud, correctAnswer)
	r.mic.Gate = make(chan struct{})
	ctx := context.Background()

	a, err := r.ctrl.Start(ctx, catRequest)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { return r.mic.Calls() == 1 })

	again, err := r.ctrl.Start(ctx, catRequest)
	if err != nil || again != a {
		t.Errorf("Start(same target) = %p, %v, want the running attempt", again, err)
	}
	dog := practice.Request{Text: "dog", Mode: practice.ModeWord}
	if _, err := r.ctrl.Start(ctx, dog); !errors.Is(err, practice.ErrSessionActive) {
		t.Errorf("Start(other target) err = %v, want ErrSessionActive", err)
	}
	if got := r.mic.Calls(); got != 1 {
		t.Errorf("microphone requested %d times, want 1", got)
	}

	r.ctrl.Stop()
	r.ctrl.Stop()
	out := awaitAttempt(t, a)
	var perm *practice.PermissionError
	if !errors.As(out.Err, &perm) {
		t.Errorf("err = %v, want PermissionError", out.Err)
	}
	if r.ctrl.IsRecording() {
		t.Error("gate not released after failure")
	}

	// The gate is free again.
	r.mic.Gate = nil
	b, err := r.ctrl.Start(ctx, dog)
	if err != nil {
		t.Fatalf("Start after release: %v", err)
	}
	r.clk.WaitForWaiters(t, 2)
	r.ctrl.Stop()
	awaitAttempt(t, b)
}

func TestController_IdleIndicatorKeepsNextTarget(t *testing.T) {
	t.Parallel()
	h := newHarness(silent, correctAnswer)
	h.mic.Err = audio.ErrPermissionDenied

	var (
		mu   sync.Mutex
		last string
		once sync.Once
	)
	paused := make(chan struct{})
	resume := make(chan struct{})
	ctrl, err := practice.NewController(practice.ControllerConfig{
		Session:    h.config(),
		Transcript: &transcript{},
		OnRecording: func(target string) {
			if target == "" {
				once.Do(func() {
					close(paused)
					<-resume
				})
			}
			mu.Lock()
			last = target
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	ctx := context.Background()

	a, err := ctrl.Start(ctx, catRequest)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-paused:
	case <-time.After(5 * time.Second):
		t.Fatal("first attempt never went idle")
	}

	// The next attempt waits on a permission prompt so it stays active.
	h.mic.Err = nil
	h.mic.Gate = make(chan struct{})
	dog := practice.Request{Text: "dog", Mode: practice.ModeWord}
	started := make(chan error, 1)
	var b *practice.Attempt
	go func() {
		var err error
		b, err = ctrl.Start(ctx, dog)
		started <- err
	}()
	select {
	case err := <-started:
		started <- err
	case <-time.After(20 * time.Millisecond):
	}
	close(resume)
	if err := <-started; err != nil {
		t.Fatalf("Start(dog): %v", err)
	}
	awaitAttempt(t, a)

	target, ok := ctrl.RecordingTarget()
	mu.Lock()
	shown := last
	mu.Unlock()
	if !ok || target != "dog" || shown != "dog" {
		t.Errorf("RecordingTarget = %q, %v; indicator = %q, want both dog", target, ok, shown)
	}

	ctrl.Stop()
	awaitAttempt(t, b)
}

func TestController_ToggleStopsSameTarget(t *testing.T) {
	t.Parallel()
	r := newRig(t, loud, correctAnswer)
	ctx := context.Background()

	a, err := r.ctrl.Toggle(ctx, catRequest)
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	r.clk.WaitForWaiters(t, 2)
	r.clk.Advance(500 * time.Millisecond)
	if b, err := r.ctrl.Toggle(ctx, catRequest); err != nil || b != a {
		t.Fatalf("second Toggle = %p, %v", b, err)
	}
	out := awaitAttempt(t, a)
	if out.State != practice.Completed || out.StopReason != practice.StopManual {
		t.Errorf("outcome = %v / %v, err = %v", out.State, out.StopReason, out.Err)
	}
	if got := r.stream.StopCount(); got != 1 {
		t.Errorf("stream stopped %d times, want 1", got)
	}
}

func TestController_FailureMessages(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		setup func(r *rig)
		want  string
	}{
		{
			name:  "permission denied",
			setup: func(r *rig) { r.mic.Err = audio.ErrPermissionDenied },
			want:  practice.MessagePermission,
		},
		{
			name:  "evaluator down",
			setup: func(r *rig) { r.eval.Err = errors.New("503 service unavailable") },
			want:  practice.MessageEvaluation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := newRig(t, silent, correctAnswer)
			tt.setup(r)

			a, err := r.ctrl.Start(context.Background(), catRequest)
			if err != nil {
				t.Fatalf("Start: %v", err)
			}
			go func() {
				for {
					select {
					case <-a.Done():
						return
					default:
						r.clk.Advance(practice.DefaultFrameInterval)
						time.Sleep(time.Millisecond)
					}
				}
			}()
			out := awaitAttempt(t, a)
			if out.State != practice.Failed {
				t.Fatalf("state = %v, want failed", out.State)
			}

			entries := r.transcript.Entries()
			if len(entries) != 1 || entries[0].Speaker != practice.Tutor || entries[0].Text != tt.want {
				t.Errorf("entries = %+v, want one tutor entry %q", entries, tt.want)
			}
			for _, k := range r.cues.Kinds() {
				if k != cue.Listening {
					t.Errorf("unexpected cue %v on failure", k)
				}
			}
			if len(r.Bursts()) != 0 {
				t.Error("celebrated a failure")
			}
			if r.ctrl.IsRecording() {
				t.Error("gate not released")
			}
		})
	}
}

func TestNewController_RequiresCollaborators(t *testing.T) {
	t.Parallel()
	if _, err := practice.NewController(practice.ControllerConfig{}); err == nil {
		t.Error("NewController accepted an empty config")
	}
}

func TestLearnerText(t *testing.T) {
	t.Parallel()
	got := practice.LearnerText(practice.Request{Text: "I like apples.", Mode: practice.ModeSentence})
	if got != "[Âm thanh luyện đọc câu: I like apples.]" {
		t.Errorf("LearnerText = %q", got)
	}
}

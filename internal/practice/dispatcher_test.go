package practice_test

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/joytutor/internal/practice"
	"github.com/MrWong99/joytutor/pkg/provider/evaluator/mock"
)

var catArtifact = practice.Artifact{
	Data:     []byte("RIFF....WAVE"),
	MIMEType: "audio/wav",
	Duration: 1200 * time.Millisecond,
}

var catRequest = practice.Request{Text: "cat", Mode: practice.ModeWord}

func TestDispatcherEvaluate_Parsed(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{Response: `{"accuracy":130,"feedback":"Hay quá","fluency":"Tốt","suggestion":"Tiếp tục","isCorrect":true}`}
	d := practice.NewDispatcher(p)

	res, err := d.Evaluate(context.Background(), catArtifact, catRequest)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Accuracy != 100 || !res.IsCorrect || res.Fallback {
		t.Errorf("result = %+v", res)
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("provider calls = %d, want 1", len(calls))
	}
	got := calls[0]
	if got.ExpectedText != "cat" || got.Mode != "word" || got.MIMEType != "audio/wav" {
		t.Errorf("request = %+v", got)
	}
	if got.AudioBase64 != base64.StdEncoding.EncodeToString(catArtifact.Data) {
		t.Errorf("AudioBase64 = %q", got.AudioBase64)
	}
}

func TestDispatcherEvaluate_Fallback(t *testing.T) {
	t.Parallel()
	d := practice.NewDispatcher(&mock.Provider{Response: "Con đọc chính xác rồi!"})

	res, err := d.Evaluate(context.Background(), catArtifact, catRequest)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Accuracy != 70 || !res.IsCorrect || !res.Fallback {
		t.Errorf("result = %+v, want fallback 70 correct", res)
	}
}

func TestDispatcherEvaluate_TransportErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("connection refused")
	tests := []struct {
		name    string
		p       *mock.Provider
		wantErr error
	}{
		{name: "provider error", p: &mock.Provider{Err: boom}, wantErr: boom},
		{name: "blank answer", p: &mock.Provider{Response: "  \n"}, wantErr: practice.ErrEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := practice.NewDispatcher(tt.p).Evaluate(context.Background(), catArtifact, catRequest)
			var te *practice.TransportError
			if !errors.As(err, &te) {
				t.Fatalf("err = %v, want *TransportError", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want wrapping %v", err, tt.wantErr)
			}
		})
	}
}

func TestDispatcherEvaluate_Timeout(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{Gate: make(chan struct{})}
	d := practice.NewDispatcher(p, practice.WithTimeout(20*time.Millisecond))

	_, err := d.Evaluate(context.Background(), catArtifact, catRequest)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

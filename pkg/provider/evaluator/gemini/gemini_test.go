package gemini_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/joytutor/pkg/provider/evaluator"
	"github.com/MrWong99/joytutor/pkg/provider/evaluator/gemini"
)

// fakeGemini answers generateContent calls with text and records the last
// request body.
func fakeGemini(t *testing.T, status int, text string, got *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got != nil {
			_ = json.NewDecoder(r.Body).Decode(got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"code":500,"message":"boom","status":"INTERNAL"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": text}},
				},
				"finishReason": "STOP",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEvaluate(t *testing.T) {
	t.Parallel()
	var body map[string]any
	answer := `{"accuracy":95,"feedback":"Tuyệt vời!","fluency":"Tốt","suggestion":"Tiếp tục","isCorrect":true}`
	srv := fakeGemini(t, http.StatusOK, answer, &body)

	p, err := gemini.New(context.Background(), "test-key",
		gemini.WithBaseURL(srv.URL),
		gemini.WithHTTPClient(srv.Client()),
		gemini.WithSystemInstruction("Teacher Joy"),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	raw, err := p.Evaluate(context.Background(), evaluator.Request{
		AudioBase64:  "AQID",
		MIMEType:     "audio/ogg;codecs=opus",
		ExpectedText: "cat",
		Mode:         "word",
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if raw != answer {
		t.Errorf("raw = %q, want %q", raw, answer)
	}

	encoded, _ := json.Marshal(body)
	for _, want := range []string{`"mimeType":"audio/ogg"`, `"data":"AQID"`, `cat`, `application/json`, `Teacher Joy`} {
		if !strings.Contains(string(encoded), want) {
			t.Errorf("request body missing %s: %s", want, encoded)
		}
	}
}

func TestEvaluateServerError(t *testing.T) {
	t.Parallel()
	srv := fakeGemini(t, http.StatusInternalServerError, "", nil)
	p, err := gemini.New(context.Background(), "test-key", gemini.WithBaseURL(srv.URL), gemini.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Evaluate(context.Background(), evaluator.Request{AudioBase64: "AQID", MIMEType: "audio/wav", ExpectedText: "dog"}); err == nil {
		t.Fatal("expected error on HTTP 500")
	}
}

func TestEvaluateBadAudio(t *testing.T) {
	t.Parallel()
	p, err := gemini.New(context.Background(), "test-key", gemini.WithBaseURL("http://127.0.0.1:0"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Evaluate(context.Background(), evaluator.Request{AudioBase64: "%%%"}); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}

func TestNewRequiresKey(t *testing.T) {
	t.Parallel()
	if _, err := gemini.New(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

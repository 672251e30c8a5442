package gemini_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/joytutor/pkg/provider/tts"
	"github.com/MrWong99/joytutor/pkg/provider/tts/gemini"
)

func fakeGemini(t *testing.T, parts []any, got *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "gemini-2.5-flash-preview-tts:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got != nil {
			_ = json.NewDecoder(r.Body).Decode(got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"role": "model", "parts": parts},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newProvider(t *testing.T, srv *httptest.Server) *gemini.Provider {
	t.Helper()
	p, err := gemini.New(context.Background(), "test-key",
		gemini.WithBaseURL(srv.URL),
		gemini.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestSynthesize(t *testing.T) {
	t.Parallel()
	var body map[string]any
	srv := fakeGemini(t, []any{map[string]any{
		"inlineData": map[string]any{"mimeType": "audio/L16;codec=pcm;rate=24000", "data": "AQIDBA=="},
	}}, &body)

	speech, err := newProvider(t, srv).Synthesize(context.Background(), "apple", tts.VoiceProfile{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if speech == nil {
		t.Fatal("expected speech, got nil")
	}
	if string(speech.PCM) != "\x01\x02\x03\x04" {
		t.Errorf("PCM = %v, want [1 2 3 4]", speech.PCM)
	}
	if speech.Format.SampleRate != 24000 || speech.Format.Channels != 1 {
		t.Errorf("format = %v, want 24000Hz mono", speech.Format)
	}

	encoded, _ := json.Marshal(body)
	for _, want := range []string{"Say clearly: apple", `"voiceName":"Kore"`, "AUDIO"} {
		if !strings.Contains(string(encoded), want) {
			t.Errorf("request body missing %s: %s", want, encoded)
		}
	}
}

func TestSynthesizeWithoutAudio(t *testing.T) {
	t.Parallel()
	srv := fakeGemini(t, []any{map[string]any{"text": "sorry"}}, nil)

	speech, err := newProvider(t, srv).Synthesize(context.Background(), "apple", tts.VoiceProfile{ID: "Puck"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if speech != nil {
		t.Errorf("expected nil speech, got %d bytes", len(speech.PCM))
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	t.Parallel()
	srv := fakeGemini(t, nil, nil)
	if _, err := newProvider(t, srv).Synthesize(context.Background(), "  ", tts.VoiceProfile{}); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestListVoices(t *testing.T) {
	t.Parallel()
	srv := fakeGemini(t, nil, nil)
	voices, err := newProvider(t, srv).ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) == 0 || voices[0].ID != "Kore" {
		t.Errorf("voices = %+v, want Kore first", voices)
	}
}

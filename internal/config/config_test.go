package config_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/joytutor/internal/config"
	"github.com/MrWong99/joytutor/internal/practice"
	"github.com/MrWong99/joytutor/pkg/audio"
	audiomock "github.com/MrWong99/joytutor/pkg/audio/mock"
	"github.com/MrWong99/joytutor/pkg/audio/encode"
	"github.com/MrWong99/joytutor/pkg/provider/evaluator"
	evalmock "github.com/MrWong99/joytutor/pkg/provider/evaluator/mock"
	"github.com/MrWong99/joytutor/pkg/provider/llm"
	llmmock "github.com/MrWong99/joytutor/pkg/provider/llm/mock"
	"github.com/MrWong99/joytutor/pkg/provider/tts"
	ttsmock "github.com/MrWong99/joytutor/pkg/provider/tts/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: ":8443"
  log_level: info
  tls:
    cert_file: /etc/joytutor/tls.crt
    key_file: /etc/joytutor/tls.key

providers:
  evaluator:
    name: gemini
    api_key: gm-test
    model: gemini-2.5-flash
    fallbacks:
      - name: whisper
        base_url: http://localhost:8081
  tts:
    name: elevenlabs
    api_key: el-test
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  microphone:
    name: portaudio

practice:
  energy_threshold: 20
  word:
    silence: 1500ms
    max: 5s
  sentence:
    silence: 2s
    max: 10s
  preferred_formats:
    - audio/wav
  permission_timeout: 30s
  evaluation_timeout: 20s
  cues: true

tutor:
  voice: Kore
  grade: 2
  preload: true
`

const minimalYAML = `
providers:
  evaluator:
    name: gemini
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8443" {
		t.Errorf("server.listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":8443")
	}
	if cfg.Server.TLS == nil || cfg.Server.TLS.KeyFile != "/etc/joytutor/tls.key" {
		t.Errorf("server.tls: got %+v", cfg.Server.TLS)
	}
	if cfg.Providers.Evaluator.Name != "gemini" {
		t.Errorf("providers.evaluator.name: got %q, want %q", cfg.Providers.Evaluator.Name, "gemini")
	}
	if len(cfg.Providers.Evaluator.Fallbacks) != 1 || cfg.Providers.Evaluator.Fallbacks[0].Name != "whisper" {
		t.Errorf("providers.evaluator.fallbacks: got %+v", cfg.Providers.Evaluator.Fallbacks)
	}
	if cfg.Practice.EnergyThreshold != 20 {
		t.Errorf("practice.energy_threshold: got %v, want 20", cfg.Practice.EnergyThreshold)
	}
	if cfg.Practice.Word.Silence != 1500*time.Millisecond {
		t.Errorf("practice.word.silence: got %v, want 1.5s", cfg.Practice.Word.Silence)
	}
	if cfg.Practice.Sentence.Max != 10*time.Second {
		t.Errorf("practice.sentence.max: got %v, want 10s", cfg.Practice.Sentence.Max)
	}
	if len(cfg.Practice.PreferredFormats) != 1 || cfg.Practice.PreferredFormats[0] != encode.MIMEWAV {
		t.Errorf("practice.preferred_formats: got %v", cfg.Practice.PreferredFormats)
	}
	if !cfg.Practice.Cues {
		t.Error("practice.cues: got false, want true")
	}
	if cfg.Tutor.Grade != 2 || cfg.Tutor.Voice != "Kore" || !cfg.Tutor.Preload {
		t.Errorf("tutor: got %+v", cfg.Tutor)
	}
}

func TestLoadFromReader_AppliesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr: got %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q, want info", cfg.Server.LogLevel)
	}
	if got, want := cfg.Practice.Timing(), practice.DefaultTiming(); got != want {
		t.Errorf("timing: got %+v, want %+v", got, want)
	}
	if cfg.Practice.FrameInterval != practice.DefaultFrameInterval {
		t.Errorf("frame_interval: got %v, want %v", cfg.Practice.FrameInterval, practice.DefaultFrameInterval)
	}
	if len(cfg.Practice.PreferredFormats) != len(encode.DefaultPreferred) {
		t.Errorf("preferred_formats: got %v, want %v", cfg.Practice.PreferredFormats, encode.DefaultPreferred)
	}
	if cfg.Practice.PermissionTimeout != 0 || cfg.Practice.EvaluationTimeout != 0 {
		t.Errorf("timeouts should default to 0, got %v / %v", cfg.Practice.PermissionTimeout, cfg.Practice.EvaluationTimeout)
	}
	if cfg.Tutor.Grade != 3 {
		t.Errorf("tutor.grade: got %d, want 3", cfg.Tutor.Grade)
	}
}

func TestApplyDefaults_DoesNotAliasDefaultFormats(t *testing.T) {
	t.Parallel()
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	cfg.Practice.PreferredFormats[0] = "audio/flac"
	if encode.DefaultPreferred[0] == "audio/flac" {
		t.Fatal("ApplyDefaults shares the DefaultPreferred backing array")
	}
}

func TestLoadFromReader_EmptyRequiresEvaluator(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(""))
	if err == nil {
		t.Fatal("expected error for empty config, got nil")
	}
	if !strings.Contains(err.Error(), "providers.evaluator.name") {
		t.Errorf("error should mention providers.evaluator.name, got: %v", err)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
npcs:
  - name: Greymantle
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown top-level field, got nil")
	}
}

// ── Validation ────────────────────────────────────────────────────────────────

func TestValidate_Rejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		yaml    string
		mention string
	}{
		{
			name:    "log level",
			yaml:    "server:\n  log_level: verbose\n",
			mention: "log_level",
		},
		{
			name:    "incomplete tls",
			yaml:    "server:\n  tls:\n    cert_file: a.crt\n",
			mention: "key_file",
		},
		{
			name:    "energy threshold",
			yaml:    "practice:\n  energy_threshold: 300\n",
			mention: "energy threshold",
		},
		{
			name:    "negative silence",
			yaml:    "practice:\n  word:\n    silence: -1s\n",
			mention: "word silence",
		},
		{
			name:    "no known format",
			yaml:    "practice:\n  preferred_formats: [audio/flac]\n",
			mention: "preferred_formats",
		},
		{
			name:    "negative timeout",
			yaml:    "practice:\n  evaluation_timeout: -5s\n",
			mention: "evaluation_timeout",
		},
		{
			name:    "grade",
			yaml:    "tutor:\n  grade: 13\n",
			mention: "tutor.grade",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(minimalYAML + tt.yaml))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.mention) {
				t.Errorf("error should mention %q, got: %v", tt.mention, err)
			}
		})
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: "loud"},
		Tutor:  config.TutorConfig{Grade: 40},
	}
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{"log_level", "providers.evaluator.name", "tutor.grade"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %q, got: %v", want, err)
		}
	}
}

func TestValidate_SilenceNotShorterThanMaxIsAllowed(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
practice:
  word:
    silence: 5s
    max: 4s
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("silence >= max should only warn, got: %v", err)
	}
}

func TestValidate_UnknownFormatAmongKnownIsAllowed(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
practice:
  preferred_formats: [audio/webm, audio/wav]
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("one supported format should be enough, got: %v", err)
	}
}

// ── Registry ──────────────────────────────────────────────────────────────────

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	entry := config.ProviderEntry{Name: "nope"}

	checks := map[string]func() error{
		"evaluator": func() error { _, err := reg.CreateEvaluator(entry); return err },
		"tts":       func() error { _, err := reg.CreateTTS(entry); return err },
		"llm":       func() error { _, err := reg.CreateLLM(entry); return err },
		"microphone": func() error {
			_, err := reg.CreateMicrophone(entry)
			return err
		},
	}
	for kind, create := range checks {
		err := create()
		if !errors.Is(err, config.ErrProviderNotRegistered) {
			t.Errorf("%s: expected ErrProviderNotRegistered, got %v", kind, err)
		}
		if err != nil && !strings.Contains(err.Error(), kind) {
			t.Errorf("%s: error should name the kind, got %v", kind, err)
		}
	}
}

func TestRegistry_Registered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	var gotEntry config.ProviderEntry
	reg.RegisterEvaluator("gemini", func(e config.ProviderEntry) (evaluator.Provider, error) {
		gotEntry = e
		return &evalmock.Provider{Response: `{"accuracy":90}`}, nil
	})
	reg.RegisterTTS("elevenlabs", func(config.ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{}, nil
	})
	reg.RegisterLLM("openai", func(config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{}, nil
	})
	reg.RegisterMicrophone("portaudio", func(config.ProviderEntry) (audio.Microphone, error) {
		return &audiomock.Microphone{}, nil
	})

	ev, err := reg.CreateEvaluator(config.ProviderEntry{Name: "gemini", Model: "gemini-2.5-flash"})
	if err != nil {
		t.Fatalf("CreateEvaluator: %v", err)
	}
	if gotEntry.Model != "gemini-2.5-flash" {
		t.Errorf("factory entry model: got %q", gotEntry.Model)
	}
	raw, err := ev.Evaluate(context.Background(), evaluator.Request{ExpectedText: "cat"})
	if err != nil || raw != `{"accuracy":90}` {
		t.Errorf("Evaluate: got (%q, %v)", raw, err)
	}

	if _, err := reg.CreateTTS(config.ProviderEntry{Name: "elevenlabs"}); err != nil {
		t.Errorf("CreateTTS: %v", err)
	}
	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "openai"}); err != nil {
		t.Errorf("CreateLLM: %v", err)
	}
	if _, err := reg.CreateMicrophone(config.ProviderEntry{Name: "portaudio"}); err != nil {
		t.Errorf("CreateMicrophone: %v", err)
	}

	if !reg.Has("evaluator", "gemini") || reg.Has("evaluator", "whisper") {
		t.Error("Has(evaluator) mismatch")
	}
	if !reg.Has("microphone", "portaudio") || reg.Has("speaker", "portaudio") {
		t.Error("Has(microphone) mismatch")
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	sentinel := errors.New("missing api key")
	reg.RegisterLLM("openai", func(config.ProviderEntry) (llm.Provider, error) {
		return nil, sentinel
	})
	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "openai"}); !errors.Is(err, sentinel) {
		t.Fatalf("expected factory error, got %v", err)
	}
}

func TestRegistry_OverwritesRegistration(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	first := &ttsmock.Provider{}
	second := &ttsmock.Provider{}
	reg.RegisterTTS("gemini", func(config.ProviderEntry) (tts.Provider, error) { return first, nil })
	reg.RegisterTTS("gemini", func(config.ProviderEntry) (tts.Provider, error) { return second, nil })

	p, err := reg.CreateTTS(config.ProviderEntry{Name: "gemini"})
	if err != nil {
		t.Fatalf("CreateTTS: %v", err)
	}
	if p != tts.Provider(second) {
		t.Error("second registration should win")
	}
}

package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/joytutor/internal/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Providers: config.ProvidersConfig{
			Evaluator: config.ProviderEntry{
				Name:      "gemini",
				Fallbacks: []config.ProviderEntry{{Name: "whisper"}},
			},
			TTS: config.ProviderEntry{Name: "gemini"},
		},
		Tutor: config.TutorConfig{Voice: "Kore"},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	d := config.Diff(baseConfig(), baseConfig())
	if !d.Empty() {
		t.Errorf("expected empty diff for identical configs, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if d.PracticeChanged || d.TutorChanged || len(d.RestartRequired) != 0 {
		t.Errorf("only the log level should change, got %+v", d)
	}
}

func TestDiff_PracticeChanged(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*config.PracticeConfig)
	}{
		{"threshold", func(p *config.PracticeConfig) { p.EnergyThreshold = 25 }},
		{"word silence", func(p *config.PracticeConfig) { p.Word.Silence = time.Second }},
		{"sentence max", func(p *config.PracticeConfig) { p.Sentence.Max = 12 * time.Second }},
		{"formats", func(p *config.PracticeConfig) { p.PreferredFormats = []string{"audio/wav"} }},
		{"evaluation timeout", func(p *config.PracticeConfig) { p.EvaluationTimeout = 15 * time.Second }},
		{"cues", func(p *config.PracticeConfig) { p.Cues = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			old, new := baseConfig(), baseConfig()
			tt.mutate(&new.Practice)
			d := config.Diff(old, new)
			if !d.PracticeChanged {
				t.Error("expected PracticeChanged=true")
			}
			if len(d.RestartRequired) != 0 {
				t.Errorf("practice changes are hot-reloadable, got RestartRequired=%v", d.RestartRequired)
			}
		})
	}
}

func TestDiff_TutorChanged(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.Tutor.Voice = "Puck"

	d := config.Diff(old, new)
	if !d.TutorChanged {
		t.Error("expected TutorChanged=true")
	}
	if d.PracticeChanged {
		t.Error("expected PracticeChanged=false")
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   []string
	}{
		{
			name:   "listen addr",
			mutate: func(c *config.Config) { c.Server.ListenAddr = ":9090" },
			want:   []string{"server"},
		},
		{
			name: "tls enabled",
			mutate: func(c *config.Config) {
				c.Server.TLS = &config.TLSConfig{CertFile: "a.crt", KeyFile: "a.key"}
			},
			want: []string{"server"},
		},
		{
			name:   "evaluator model",
			mutate: func(c *config.Config) { c.Providers.Evaluator.Model = "gemini-2.5-pro" },
			want:   []string{"providers"},
		},
		{
			name: "fallback chain",
			mutate: func(c *config.Config) {
				c.Providers.Evaluator.Fallbacks = append(c.Providers.Evaluator.Fallbacks, config.ProviderEntry{Name: "gemini"})
			},
			want: []string{"providers"},
		},
		{
			name: "both",
			mutate: func(c *config.Config) {
				c.Server.ListenAddr = ":9090"
				c.Providers.TTS.Name = "elevenlabs"
			},
			want: []string{"server", "providers"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			old, new := baseConfig(), baseConfig()
			tt.mutate(new)
			d := config.Diff(old, new)
			if !slices.Equal(d.RestartRequired, tt.want) {
				t.Errorf("RestartRequired: got %v, want %v", d.RestartRequired, tt.want)
			}
		})
	}
}

func TestDiff_ProviderOptionsIgnored(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.Providers.TTS.Options = map[string]any{"speed": 0.9}

	if d := config.Diff(old, new); !d.Empty() {
		t.Errorf("options-only change should not be reported, got %+v", d)
	}
}

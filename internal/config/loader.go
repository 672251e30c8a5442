package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/joytutor/pkg/audio/encode"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"evaluator":  {"gemini", "whisper"},
	"tts":        {"gemini", "elevenlabs"},
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"microphone": {"portaudio"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	if cfg.Providers.Evaluator.Name == "" {
		errs = append(errs, errors.New("providers.evaluator.name is required; practice attempts cannot be scored without an evaluator"))
	}
	validateProvider("evaluator", cfg.Providers.Evaluator)
	validateProvider("tts", cfg.Providers.TTS)
	validateProvider("llm", cfg.Providers.LLM)
	validateProvider("microphone", cfg.Providers.Microphone)

	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; lessons and tutor chat are disabled")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no TTS provider configured; words will not be read aloud")
	}

	// Practice
	p := cfg.Practice
	if err := p.Timing().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("practice: %w", err))
	}
	for _, w := range []struct {
		name string
		win  WindowConfig
	}{{"word", p.Word}, {"sentence", p.Sentence}} {
		if w.win.Silence > 0 && w.win.Max > 0 && w.win.Silence >= w.win.Max {
			slog.Warn("practice silence window is not shorter than the hard cap; silence never ends a recording",
				"mode", w.name, "silence", w.win.Silence, "max", w.win.Max)
		}
	}
	known := 0
	for i, mime := range p.PreferredFormats {
		if encode.Known(mime) {
			known++
			continue
		}
		slog.Warn("unknown practice encoding is ignored", "index", i, "mime", mime)
	}
	if len(p.PreferredFormats) > 0 && known == 0 {
		errs = append(errs, fmt.Errorf("practice.preferred_formats %v has no supported encoding; valid values: %v", p.PreferredFormats, encode.DefaultPreferred))
	}
	if p.FrameInterval < 0 {
		errs = append(errs, fmt.Errorf("practice.frame_interval %v must not be negative", p.FrameInterval))
	}
	if p.PermissionTimeout < 0 {
		errs = append(errs, fmt.Errorf("practice.permission_timeout %v must not be negative", p.PermissionTimeout))
	}
	if p.EvaluationTimeout < 0 {
		errs = append(errs, fmt.Errorf("practice.evaluation_timeout %v must not be negative", p.EvaluationTimeout))
	}

	// Tutor
	if g := cfg.Tutor.Grade; g != 0 && (g < 1 || g > 12) {
		errs = append(errs, fmt.Errorf("tutor.grade %d is out of range [1, 12]", g))
	}

	return errors.Join(errs...)
}

// validateProvider logs a warning for every entry in e's fallback chain
// whose name is not in the [ValidProviderNames] list for kind.
func validateProvider(kind string, e ProviderEntry) {
	validateProviderName(kind, e.Name)
	for _, fb := range e.Fallbacks {
		validateProvider(kind, fb)
	}
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

// Package config provides the configuration schema, loader, and provider
// registry for the joytutor practice server.
package config

import (
	"time"

	"github.com/MrWong99/joytutor/internal/practice"
	"github.com/MrWong99/joytutor/pkg/audio/encode"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Practice  PracticeConfig  `yaml:"practice"`
	Tutor     TutorConfig     `yaml:"tutor"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	// Browsers only grant microphone access to secure origins, so TLS is
	// required unless the tutor is served from localhost.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation serves each
// collaborator. Each field selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	Evaluator  ProviderEntry `yaml:"evaluator"`
	TTS        ProviderEntry `yaml:"tts"`
	LLM        ProviderEntry `yaml:"llm"`
	Microphone ProviderEntry `yaml:"microphone"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "gemini", "whisper").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`

	// Fallbacks are tried in order when this provider fails or its circuit
	// breaker is open.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// WindowConfig is the stop timing of one practice mode.
type WindowConfig struct {
	// Silence ends the recording after this much continuous quiet.
	Silence time.Duration `yaml:"silence"`

	// Max is the hard cap on recording length.
	Max time.Duration `yaml:"max"`
}

// PracticeConfig tunes the recording pipeline.
type PracticeConfig struct {
	// EnergyThreshold is the mean spectrum byte level above which a frame
	// counts as speech. Default: 15.
	EnergyThreshold float64 `yaml:"energy_threshold"`

	Word     WindowConfig `yaml:"word"`
	Sentence WindowConfig `yaml:"sentence"`

	// PreferredFormats is the ordered encoding preference, e.g.
	// ["audio/ogg;codecs=opus", "audio/wav"].
	PreferredFormats []string `yaml:"preferred_formats"`

	// FrameInterval is the silence monitor cadence. Default: 1/60 s.
	FrameInterval time.Duration `yaml:"frame_interval"`

	// PermissionTimeout bounds the microphone request. 0 waits forever.
	PermissionTimeout time.Duration `yaml:"permission_timeout"`

	// EvaluationTimeout bounds the evaluator call. 0 waits forever.
	EvaluationTimeout time.Duration `yaml:"evaluation_timeout"`

	// Cues plays the listening, success and failure tones on the local
	// speaker in CLI practice.
	Cues bool `yaml:"cues"`
}

// Timing converts the practice thresholds for the pipeline.
func (p PracticeConfig) Timing() practice.Timing {
	return practice.Timing{
		EnergyThreshold: p.EnergyThreshold,
		Word:            practice.Window{Silence: p.Word.Silence, Max: p.Word.Max},
		Sentence:        practice.Window{Silence: p.Sentence.Silence, Max: p.Sentence.Max},
	}
}

// TutorConfig configures lesson content and the tutor voice.
type TutorConfig struct {
	// Voice is the TTS voice ID. Empty uses the provider default.
	Voice string `yaml:"voice"`

	// Grade is the default school grade for generated lessons (1-12).
	Grade int `yaml:"grade"`

	// SystemInstruction overrides the built-in tutor persona.
	SystemInstruction string `yaml:"system_instruction"`

	// Preload synthesizes every lesson word and sentence right after the
	// lesson is generated.
	Preload bool `yaml:"preload"`
}

// ApplyDefaults fills every unset field with its built-in default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	def := practice.DefaultTiming()
	p := &cfg.Practice
	if p.EnergyThreshold == 0 {
		p.EnergyThreshold = def.EnergyThreshold
	}
	if p.Word.Silence == 0 {
		p.Word.Silence = def.Word.Silence
	}
	if p.Word.Max == 0 {
		p.Word.Max = def.Word.Max
	}
	if p.Sentence.Silence == 0 {
		p.Sentence.Silence = def.Sentence.Silence
	}
	if p.Sentence.Max == 0 {
		p.Sentence.Max = def.Sentence.Max
	}
	if len(p.PreferredFormats) == 0 {
		p.PreferredFormats = append([]string(nil), encode.DefaultPreferred...)
	}
	if p.FrameInterval == 0 {
		p.FrameInterval = practice.DefaultFrameInterval
	}

	if cfg.Tutor.Grade == 0 {
		cfg.Tutor.Grade = 3
	}
}

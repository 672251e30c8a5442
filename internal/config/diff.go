package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PracticeChanged is true if any practice threshold, encoding preference
	// or timeout changed. Running attempts keep their settings; the next
	// attempt uses the new ones.
	PracticeChanged bool

	// TutorChanged is true if the tutor voice, grade, persona or preload
	// setting changed.
	TutorChanged bool

	// RestartRequired lists top-level sections that changed but cannot be
	// applied without a restart.
	RestartRequired []string
}

// Empty reports whether d carries no change at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.PracticeChanged && !d.TutorChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !practiceEqual(old.Practice, new.Practice) {
		d.PracticeChanged = true
	}
	if old.Tutor != new.Tutor {
		d.TutorChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr || !tlsEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !providersEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}

	return d
}

func practiceEqual(a, b PracticeConfig) bool {
	return a.EnergyThreshold == b.EnergyThreshold &&
		a.Word == b.Word &&
		a.Sentence == b.Sentence &&
		slices.Equal(a.PreferredFormats, b.PreferredFormats) &&
		a.FrameInterval == b.FrameInterval &&
		a.PermissionTimeout == b.PermissionTimeout &&
		a.EvaluationTimeout == b.EvaluationTimeout &&
		a.Cues == b.Cues
}

func tlsEqual(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func providersEqual(a, b ProvidersConfig) bool {
	return entryEqual(a.Evaluator, b.Evaluator) &&
		entryEqual(a.TTS, b.TTS) &&
		entryEqual(a.LLM, b.LLM) &&
		entryEqual(a.Microphone, b.Microphone)
}

// entryEqual compares the identifying fields of two entries and their
// fallback chains. Options are not compared.
func entryEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	return slices.EqualFunc(a.Fallbacks, b.Fallbacks, entryEqual)
}

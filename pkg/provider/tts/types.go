package tts

// VoiceProfile selects a voice for synthesis.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier ("Kore" for Gemini, a
	// voice_id for ElevenLabs). Empty means the provider's default voice.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// Metadata holds provider-specific voice attributes (gender, accent, etc.).
	Metadata map[string]string
}

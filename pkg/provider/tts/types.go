package tts

// VoiceProfile selects and tunes the synthetic voice.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// SpeedFactor adjusts speaking rate (0.5–2.0, 0 or 1.0 = default).
	SpeedFactor float64

	// Language is the language code for multilingual models.
	Language string

	// Metadata holds provider-specific voice attributes (gender, accent, ...).
	Metadata map[string]string
}

package resilience

import (
	"context"

	"github.com/MrWong99/sortinghat/pkg/audio"
	"github.com/MrWong99/sortinghat/pkg/provider/tts"
)

// ttsBackend is one TTS provider of a [TTSFallback]. A nil voice means the
// caller's voice is used unchanged.
type ttsBackend struct {
	provider tts.Provider
	voice    *tts.VoiceProfile
}

// TTSFallback implements [tts.Provider] with automatic failover across multiple
// TTS backends. Each backend has its own circuit breaker.
//
// Backends rarely share an output format, so audio from a fallback is
// converted to the primary's [tts.Provider.Format] and callers see a single
// format whichever backend spoke.
type TTSFallback struct {
	group  *FallbackGroup[ttsBackend]
	format audio.Format
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group:  NewFallbackGroup(ttsBackend{provider: primary}, primaryName, cfg),
		format: primary.Format(),
	}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, ttsBackend{provider: provider})
}

// AddFallbackWithVoice registers a fallback that always speaks with voice,
// for providers that do not know the primary's voice IDs.
func (f *TTSFallback) AddFallbackWithVoice(name string, provider tts.Provider, voice tts.VoiceProfile) {
	f.group.AddFallback(name, ttsBackend{provider: provider, voice: &voice})
}

// Synthesize speaks text on the first healthy provider. Only starting the
// synthesis is covered by failover; a stream that breaks off mid-line ends
// early.
func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (<-chan []byte, error) {
	var src audio.Format
	ch, err := ExecuteWithResult(ctx, f.group, func(b ttsBackend) (<-chan []byte, error) {
		v := voice
		if b.voice != nil {
			v = *b.voice
		}
		src = b.provider.Format()
		return b.provider.Synthesize(ctx, text, v)
	})
	if err != nil {
		return nil, err
	}
	return audio.ConvertChunks(ch, src, f.format), nil
}

// Format returns the primary's output format.
func (f *TTSFallback) Format() audio.Format {
	return f.format
}

// ListVoices returns available voices from the first healthy provider.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return ExecuteWithResult(ctx, f.group, func(b ttsBackend) ([]tts.VoiceProfile, error) {
		return b.provider.ListVoices(ctx)
	})
}

// Healthy reports whether at least one backend's circuit is not open.
func (f *TTSFallback) Healthy() bool {
	return f.group.Healthy()
}

// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (ElevenLabs, OpenAI, a
// local Coqui server) and presents a uniform streaming interface: one line of
// text in, a channel of raw 16-bit PCM chunks out, so playback can begin
// before synthesis has finished.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/MrWong99/sortinghat/pkg/audio"
)

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize starts synthesising text with voice and returns a channel
	// of PCM chunks in the provider's [Provider.Format]. The channel is
	// closed when synthesis completes, fails, or ctx is cancelled; callers
	// must drain it.
	//
	// Returns a non-nil error only if synthesis cannot be started.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) (<-chan []byte, error)

	// Format reports the sample rate and channel count of the emitted PCM.
	Format() audio.Format

	// ListVoices returns the voices this provider can speak with.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}

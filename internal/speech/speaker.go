package speech

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/sortinghat/internal/observe"
	"github.com/MrWong99/sortinghat/pkg/audio"
	"github.com/MrWong99/sortinghat/pkg/provider/tts"
)

// SpeakerOption configures a [Speaker].
type SpeakerOption func(*Speaker)

// WithOutputFormat sets the device format lines are converted to before
// playback. Defaults to the provider's own format.
func WithOutputFormat(f audio.Format) SpeakerOption {
	return func(s *Speaker) { s.out = f }
}

// WithSpeakerMetrics records TTS latency and provider counters on m.
func WithSpeakerMetrics(m *observe.Metrics, provider string) SpeakerOption {
	return func(s *Speaker) {
		s.metrics = m
		s.provider = provider
	}
}

// Speaker implements [Output] with a TTS provider and an audio player.
type Speaker struct {
	tts      tts.Provider
	player   audio.Player
	voice    tts.VoiceProfile
	out      audio.Format
	metrics  *observe.Metrics
	provider string
}

var _ Output = (*Speaker)(nil)

// NewSpeaker returns a Speaker that says every line with voice.
func NewSpeaker(p tts.Provider, player audio.Player, voice tts.VoiceProfile, opts ...SpeakerOption) *Speaker {
	s := &Speaker{tts: p, player: player, voice: voice, provider: "tts"}
	for _, o := range opts {
		o(s)
	}
	if s.out.SampleRate == 0 {
		s.out = p.Format()
	}
	return s
}

// Speak synthesises text and plays it, blocking until playback finished.
// Blank lines are skipped.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	start := time.Now()

	chunks, err := s.tts.Synthesize(ctx, text, s.voice)
	if err != nil {
		s.record(ctx, start, err)
		return fmt.Errorf("speech: synthesize: %w", err)
	}

	pcm := audio.ConvertChunks(chunks, s.tts.Format(), s.out)
	err = s.player.Play(ctx, s.out, pcm)
	// Play may return early on cancellation; unblock the pipeline.
	audio.Drain[[]byte](pcm)
	s.record(ctx, start, err)
	if err != nil {
		return fmt.Errorf("speech: play: %w", err)
	}
	slog.Debug("spoke line", "text", text, "duration", time.Since(start))
	return nil
}

func (s *Speaker) record(ctx context.Context, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
		s.metrics.RecordProviderError(ctx, s.provider, "tts")
	}
	s.metrics.RecordProviderRequest(ctx, s.provider, "tts", status)
}

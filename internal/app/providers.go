package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/sortinghat/internal/config"
	"github.com/MrWong99/sortinghat/internal/health"
	"github.com/MrWong99/sortinghat/internal/observe"
	"github.com/MrWong99/sortinghat/internal/resilience"
	"github.com/MrWong99/sortinghat/pkg/audio"
	"github.com/MrWong99/sortinghat/pkg/provider/stt"
	"github.com/MrWong99/sortinghat/pkg/provider/tts"
)

// Providers holds the speech providers and audio devices. Nil means the slot
// is not configured. Populated by main.go via [BuildProviders] and the
// platform's audio device.
type Providers struct {
	STT     stt.Provider
	TTS     tts.Provider
	Capture audio.Capture
	Player  audio.Player

	// Checkers report provider health on /readyz.
	Checkers []health.Checker
}

// fallbackConfig returns the breaker settings for a chain of kind. State
// changes are counted on the default metrics.
func fallbackConfig(kind string) resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:   3,
			ResetTimeout:  30 * time.Second,
			OnStateChange: func(name string, _, to resilience.State) {
				observe.DefaultMetrics().RecordCircuitTransition(context.Background(), name, kind, to.String())
			},
		},
	}
}

// BuildProviders instantiates the STT and TTS providers named in cfg using
// reg. An entry with fallbacks is wrapped in a circuit-breaking fallback
// chain whose state is reported by a readiness checker.
func BuildProviders(cfg *config.Config, reg *config.Registry) (*Providers, error) {
	ps := &Providers{}

	if entry := cfg.Providers.STT; entry.Name != "" {
		p, err := buildSTT(entry, reg)
		if err != nil {
			return nil, err
		}
		ps.STT = p
		if fb, ok := p.(*resilience.STTFallback); ok {
			ps.Checkers = append(ps.Checkers, health.StateChecker("stt", fb.Healthy, "every stt provider is failing"))
		}
	}

	if entry := cfg.Providers.TTS; entry.Name != "" {
		p, err := buildTTS(entry, reg)
		if err != nil {
			return nil, err
		}
		ps.TTS = p
		if fb, ok := p.(*resilience.TTSFallback); ok {
			ps.Checkers = append(ps.Checkers, health.StateChecker("tts", fb.Healthy, "every tts provider is failing"))
		}
	}

	return ps, nil
}

func buildSTT(entry config.ProviderEntry, reg *config.Registry) (stt.Provider, error) {
	primary, err := reg.CreateSTT(entry)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "stt", "name", entry.Name)
	if len(entry.Fallbacks) == 0 {
		return primary, nil
	}

	fb := resilience.NewSTTFallback(primary, entry.Name, fallbackConfig("stt"))
	for _, f := range entry.Fallbacks {
		p, err := reg.CreateSTT(f)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("fallback provider not available, skipping", "kind", "stt", "name", f.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create stt fallback %q: %w", f.Name, err)
		}
		fb.AddFallback(f.Name, p)
		slog.Info("fallback provider added", "kind", "stt", "name", f.Name)
	}
	return fb, nil
}

func buildTTS(entry config.ProviderEntry, reg *config.Registry) (tts.Provider, error) {
	primary, err := reg.CreateTTS(entry)
	if err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "tts", "name", entry.Name)
	if len(entry.Fallbacks) == 0 {
		return primary, nil
	}

	fb := resilience.NewTTSFallback(primary, entry.Name, fallbackConfig("tts"))
	for _, f := range entry.Fallbacks {
		p, err := reg.CreateTTS(f)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("fallback provider not available, skipping", "kind", "tts", "name", f.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create tts fallback %q: %w", f.Name, err)
		}
		// Voice IDs are provider specific.
		if id := OptString(f.Options, "voice_id"); id != "" {
			fb.AddFallbackWithVoice(f.Name, p, tts.VoiceProfile{ID: id, Provider: f.Name})
		} else {
			fb.AddFallback(f.Name, p)
		}
		slog.Info("fallback provider added", "kind", "tts", "name", f.Name)
	}
	return fb, nil
}

// OptString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func OptString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

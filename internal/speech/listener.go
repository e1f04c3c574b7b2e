package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/sortinghat/internal/observe"
	"github.com/MrWong99/sortinghat/pkg/audio"
	"github.com/MrWong99/sortinghat/pkg/provider/stt"
)

const (
	defaultThreshold       = 300.0
	defaultDynamicRatio    = 1.5
	minThreshold           = 50.0
	defaultPhraseLimit     = 15 * time.Second
	defaultCaptureRate     = 16000
	defaultCaptureChannels = 1
)

// ListenerOption configures a [Listener].
type ListenerOption func(*Listener)

// WithLanguage sets the recognition language passed to every session.
func WithLanguage(lang string) ListenerOption {
	return func(l *Listener) { l.language = lang }
}

// WithKeywords sets the vocabulary hint passed to every session.
func WithKeywords(words []string) ListenerOption {
	return func(l *Listener) { l.keywords = words }
}

// WithPhraseLimit caps how long one answer may run once speech started.
// Defaults to 15 s.
func WithPhraseLimit(d time.Duration) ListenerOption {
	return func(l *Listener) { l.phraseLimit = d }
}

// WithThreshold sets the initial speech energy threshold (RMS of 16-bit
// PCM). [Listener.Calibrate] replaces it.
func WithThreshold(rms float64) ListenerOption {
	return func(l *Listener) { l.threshold = rms }
}

// WithListenerMetrics records STT latency and provider counters on m.
func WithListenerMetrics(m *observe.Metrics, provider string) ListenerOption {
	return func(l *Listener) {
		l.metrics = m
		l.provider = provider
	}
}

// Listener implements [Input] with a microphone and an STT provider. Each
// Listen call opens a fresh capture stream and STT session.
type Listener struct {
	mic         audio.Capture
	stt         stt.Provider
	format      audio.Format
	language    string
	keywords    []string
	phraseLimit time.Duration
	metrics     *observe.Metrics
	provider    string

	mu        sync.Mutex
	threshold float64
}

var _ Input = (*Listener)(nil)

// NewListener returns a Listener capturing 16 kHz mono audio from mic.
func NewListener(mic audio.Capture, p stt.Provider, opts ...ListenerOption) *Listener {
	l := &Listener{
		mic:         mic,
		stt:         p,
		format:      audio.Format{SampleRate: defaultCaptureRate, Channels: defaultCaptureChannels},
		phraseLimit: defaultPhraseLimit,
		threshold:   defaultThreshold,
		provider:    "stt",
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Threshold returns the current speech energy threshold.
func (l *Listener) Threshold() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.threshold
}

// Calibrate measures the mean energy of d of ambient audio and sets the
// speech threshold to 1.5 times that level, never below a small floor.
func (l *Listener) Calibrate(ctx context.Context, d time.Duration) error {
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	frames, err := l.mic.Capture(cctx, l.format)
	if err != nil {
		return fmt.Errorf("speech: calibrate: %w", err)
	}
	var sum float64
	var n int
	for f := range frames {
		sum += audio.RMS(f.Data)
		n++
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if n == 0 {
		slog.Warn("speech: calibration captured no audio, keeping threshold", "threshold", l.Threshold())
		return nil
	}
	threshold := max(sum/float64(n)*defaultDynamicRatio, minThreshold)

	l.mu.Lock()
	l.threshold = threshold
	l.mu.Unlock()
	slog.Info("calibrated for ambient noise", "frames", n, "threshold", threshold)
	return nil
}

// Listen opens the microphone, waits up to window for speech to start and
// returns the first non-empty final transcript. Once speech started the
// answer may run until the phrase limit, after which whatever was
// recognised is returned.
func (l *Listener) Listen(ctx context.Context, window time.Duration) (text string, err error) {
	start := time.Now()
	defer func() { l.record(ctx, start, err) }()

	threshold := l.Threshold()
	session, err := l.stt.StartStream(ctx, stt.StreamConfig{
		SampleRate:      l.format.SampleRate,
		Channels:        l.format.Channels,
		Language:        l.language,
		Keywords:        l.keywords,
		EnergyThreshold: threshold,
	})
	if err != nil {
		return "", fmt.Errorf("speech: start stt: %w", err)
	}
	defer session.Close()

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	frames, err := l.mic.Capture(cctx, l.format)
	if err != nil {
		return "", fmt.Errorf("speech: capture: %w", err)
	}
	// The capture goroutine closes frames once cctx is cancelled.
	defer audio.Drain(frames)
	defer cancel()

	startTimer := time.NewTimer(window)
	defer startTimer.Stop()
	phraseTimer := time.NewTimer(l.phraseLimit)
	phraseTimer.Stop()
	defer phraseTimer.Stop()
	var limit <-chan time.Time
	heard := false

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()

		case f, ok := <-frames:
			if !ok {
				return l.finish(session, heard)
			}
			if err := session.SendAudio(f.Data); err != nil {
				return "", fmt.Errorf("speech: send audio: %w", err)
			}
			if !heard && audio.RMS(f.Data) >= threshold {
				heard = true
				phraseTimer.Reset(l.phraseLimit)
				limit = phraseTimer.C
			}

		case tr, ok := <-session.Finals():
			if !ok {
				return l.finish(session, heard)
			}
			if t := strings.TrimSpace(tr.Text); t != "" {
				return t, nil
			}

		case <-startTimer.C:
			if !heard {
				return l.finish(session, heard)
			}

		case <-limit:
			return l.finish(session, heard)
		}
	}
}

// finish closes the session, which flushes buffered audio, and collects any
// last final transcripts.
func (l *Listener) finish(session stt.SessionHandle, heard bool) (string, error) {
	if err := session.Close(); err != nil {
		slog.Warn("speech: closing stt session", "err", err)
	}
	var parts []string
	for tr := range session.Finals() {
		if t := strings.TrimSpace(tr.Text); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		if !heard {
			return "", ErrNoSpeech
		}
		return "", nil
	}
	return strings.Join(parts, " "), nil
}

func (l *Listener) record(ctx context.Context, start time.Time, err error) {
	if l.metrics == nil {
		return
	}
	l.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	status := "ok"
	if err != nil && !errors.Is(err, ErrNoSpeech) {
		status = "error"
		l.metrics.RecordProviderError(ctx, l.provider, "stt")
	}
	l.metrics.RecordProviderRequest(ctx, l.provider, "stt", status)
}

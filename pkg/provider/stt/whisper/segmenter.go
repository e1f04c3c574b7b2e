package whisper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/sortinghat/pkg/audio"
	"github.com/MrWong99/sortinghat/pkg/provider/stt"
)

const (
	// defaultRMSThreshold is the energy level below which audio is treated as
	// silence when the caller has not calibrated one.
	defaultRMSThreshold = 300.0

	defaultLanguage     = "en"
	defaultSampleRate   = 16000
	defaultSilence      = 800 * time.Millisecond
	defaultMaxUtterance = 30 * time.Second
	finalFlushTimeout   = 30 * time.Second
)

var errSessionClosed = errors.New("whisper: session is closed")

// inferFunc transcribes one utterance of PCM audio.
type inferFunc func(ctx context.Context, pcm []byte, format audio.Format) (string, error)

// segmentConfig controls utterance segmentation.
type segmentConfig struct {
	format       audio.Format
	threshold    float64
	silence      time.Duration
	maxUtterance time.Duration
}

// session buffers incoming PCM, cuts it into utterances on trailing silence
// and transcribes each utterance with infer. It implements stt.SessionHandle
// for both the HTTP and the native provider. All buffer state is confined to
// the loop goroutine.
type session struct {
	cfg   segmentConfig
	infer inferFunc

	audioCh  chan []byte
	partials chan stt.Transcript
	finals   chan stt.Transcript

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

var _ stt.SessionHandle = (*session)(nil)

func newSession(ctx context.Context, cfg segmentConfig, infer inferFunc) *session {
	s := &session{
		cfg:      cfg,
		infer:    infer,
		audioCh:  make(chan []byte, 256),
		partials: make(chan stt.Transcript, 16),
		finals:   make(chan stt.Transcript, 16),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop(ctx)
	return s
}

// SendAudio queues a chunk of 16-bit PCM for segmentation.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errSessionClosed
	default:
	}
	select {
	case s.audioCh <- chunk:
		return nil
	case <-s.done:
		return errSessionClosed
	}
}

// Partials returns the interim transcript channel. whisper.cpp is a batch
// engine, so every partial carries the same text as the final that follows.
func (s *session) Partials() <-chan stt.Transcript { return s.partials }

// Finals returns the committed transcript channel.
func (s *session) Finals() <-chan stt.Transcript { return s.finals }

// Close transcribes whatever speech is still buffered, then closes both
// transcript channels.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

func (s *session) loop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.partials)
	defer close(s.finals)

	var (
		buffer    []byte
		hadSpeech bool
		silence   time.Duration
	)
	maxBytes := int(s.cfg.maxUtterance.Seconds() * float64(s.cfg.format.BytesPerSecond()))

	flush := func(fctx context.Context) {
		pcm, speech := buffer, hadSpeech
		buffer, hadSpeech, silence = nil, false, 0
		if !speech || len(pcm) == 0 {
			return
		}

		text, err := s.infer(fctx, pcm, s.cfg.format)
		if err != nil {
			slog.Warn("whisper: inference failed", "err", err)
			return
		}
		if text == "" {
			return
		}
		d := s.cfg.format.Duration(len(pcm))
		select {
		case s.partials <- stt.Transcript{Text: text, Duration: d}:
		default:
		}
		select {
		case s.finals <- stt.Transcript{Text: text, IsFinal: true, Duration: d}:
		default:
		}
	}

	// The caller's ctx may already be cancelled when the session ends, so
	// the last utterance gets its own deadline.
	finalFlush := func() {
		fctx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
		defer cancel()
		flush(fctx)
	}

	for {
		select {
		case <-ctx.Done():
			finalFlush()
			return
		case <-s.done:
			s.drainQueued(&buffer, &hadSpeech)
			finalFlush()
			return
		case chunk := <-s.audioCh:
			if audio.RMS(chunk) < s.cfg.threshold {
				// Leading silence is discarded.
				if hadSpeech {
					buffer = append(buffer, chunk...)
					silence += s.cfg.format.Duration(len(chunk))
					if silence >= s.cfg.silence {
						flush(ctx)
					}
				}
				continue
			}
			hadSpeech = true
			silence = 0
			buffer = append(buffer, chunk...)
			if maxBytes > 0 && len(buffer) >= maxBytes {
				flush(ctx)
			}
		}
	}
}

// drainQueued appends audio that was sent before Close but not yet consumed.
func (s *session) drainQueued(buffer *[]byte, hadSpeech *bool) {
	for {
		select {
		case chunk := <-s.audioCh:
			if audio.RMS(chunk) >= s.cfg.threshold {
				*hadSpeech = true
			}
			if *hadSpeech {
				*buffer = append(*buffer, chunk...)
			}
		default:
			return
		}
	}
}

// resolveConfig fills zero fields of cfg from the provider defaults.
func resolveConfig(cfg stt.StreamConfig, sampleRate int, silence, maxUtterance time.Duration) segmentConfig {
	sc := segmentConfig{
		format:       audio.Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels},
		threshold:    cfg.EnergyThreshold,
		silence:      silence,
		maxUtterance: maxUtterance,
	}
	if sc.format.SampleRate <= 0 {
		sc.format.SampleRate = sampleRate
	}
	if sc.format.Channels <= 0 {
		sc.format.Channels = 1
	}
	if sc.threshold <= 0 {
		sc.threshold = defaultRMSThreshold
	}
	return sc
}

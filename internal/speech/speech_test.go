package speech_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/sortinghat/internal/speech"
	"github.com/MrWong99/sortinghat/pkg/audio"
	audiomock "github.com/MrWong99/sortinghat/pkg/audio/mock"
	sttmock "github.com/MrWong99/sortinghat/pkg/provider/stt/mock"
	"github.com/MrWong99/sortinghat/pkg/provider/tts"
	ttsmock "github.com/MrWong99/sortinghat/pkg/provider/tts/mock"
)

// constantPCM returns n mono samples that all have the value v.
func constantPCM(n int, v int16) []byte {
	b := make([]byte, n*2)
	for i := range n {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
	}
	return b
}

func frame(pcm []byte) audio.AudioFrame {
	return audio.AudioFrame{Data: pcm, SampleRate: 16000, Channels: 1}
}

// ─── Speaker ─────────────────────────────────────────────────────────────────

func TestSpeaker_ConvertsToDeviceFormat(t *testing.T) {
	t.Parallel()

	provider := &ttsmock.Provider{
		Chunks:       [][]byte{constantPCM(1200, 100), constantPCM(1200, 100)},
		OutputFormat: audio.Format{SampleRate: 24000, Channels: 1},
	}
	player := &audiomock.Player{}
	device := audio.Format{SampleRate: 48000, Channels: 2}
	voice := tts.VoiceProfile{ID: "hat"}

	s := speech.NewSpeaker(provider, player, voice, speech.WithOutputFormat(device))
	if err := s.Speak(context.Background(), "  Welcome to Hogwarts!  "); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	calls := player.Calls()
	if len(calls) != 1 {
		t.Fatalf("Play called %d times, want 1", len(calls))
	}
	if calls[0].Format != device {
		t.Errorf("Play format = %+v, want %+v", calls[0].Format, device)
	}
	// 2400 samples at 24 kHz become 4800 stereo frames of 4 bytes.
	if got, want := len(calls[0].Data), 4800*4; got != want {
		t.Errorf("played %d bytes, want %d", got, want)
	}
	if got := provider.SynthesizeCalls; len(got) != 1 || got[0].Text != "Welcome to Hogwarts!" || got[0].Voice.ID != "hat" {
		t.Errorf("SynthesizeCalls = %+v", got)
	}
}

func TestSpeaker_DefaultsToProviderFormat(t *testing.T) {
	t.Parallel()

	provider := &ttsmock.Provider{Chunks: [][]byte{constantPCM(160, 1)}}
	player := &audiomock.Player{}
	s := speech.NewSpeaker(provider, player, tts.VoiceProfile{})
	if err := s.Speak(context.Background(), "Hello"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	calls := player.Calls()
	if len(calls) != 1 || calls[0].Format != provider.Format() || len(calls[0].Data) != 320 {
		t.Errorf("Play calls = %+v, want one unconverted call", calls)
	}
}

func TestSpeaker_Errors(t *testing.T) {
	t.Parallel()

	errSynth := errors.New("quota exceeded")
	errPlay := errors.New("device gone")

	tests := []struct {
		name     string
		provider *ttsmock.Provider
		player   *audiomock.Player
		text     string
		wantErr  error
		wantPlay int
	}{
		{name: "synthesis fails", provider: &ttsmock.Provider{SynthesizeErr: errSynth}, player: &audiomock.Player{}, text: "hi", wantErr: errSynth},
		{name: "playback fails", provider: &ttsmock.Provider{}, player: &audiomock.Player{PlayErr: errPlay}, text: "hi", wantErr: errPlay, wantPlay: 1},
		{name: "blank line skipped", provider: &ttsmock.Provider{}, player: &audiomock.Player{}, text: "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := speech.NewSpeaker(tt.provider, tt.player, tts.VoiceProfile{})
			err := s.Speak(context.Background(), tt.text)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Speak error = %v, want %v", err, tt.wantErr)
			}
			if got := len(tt.player.Calls()); got != tt.wantPlay {
				t.Errorf("Play calls = %d, want %d", got, tt.wantPlay)
			}
		})
	}
}

// ─── Listener ────────────────────────────────────────────────────────────────

func TestListener_ReturnsFirstFinal(t *testing.T) {
	t.Parallel()

	mic := &audiomock.Capture{Frames: []audio.AudioFrame{frame(constantPCM(1600, 2000))}}
	provider := &sttmock.Provider{Script: []string{"  Harry  "}}
	l := speech.NewListener(mic, provider,
		speech.WithLanguage("en"),
		speech.WithKeywords([]string{"gryffindor", "owl"}),
	)

	got, err := l.Listen(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if got != "Harry" {
		t.Errorf("Listen = %q, want %q", got, "Harry")
	}

	if provider.CallCount() != 1 {
		t.Fatalf("StartStream calls = %d, want 1", provider.CallCount())
	}
	cfg := provider.StartStreamCalls[0]
	if cfg.SampleRate != 16000 || cfg.Channels != 1 || cfg.Language != "en" {
		t.Errorf("StreamConfig = %+v", cfg)
	}
	if len(cfg.Keywords) != 2 || cfg.EnergyThreshold != 300 {
		t.Errorf("StreamConfig keywords/threshold = %v/%v", cfg.Keywords, cfg.EnergyThreshold)
	}
	if mic.CallCount() != 1 {
		t.Errorf("Capture calls = %d, want 1", mic.CallCount())
	}
}

func TestListener_SilentWindow(t *testing.T) {
	t.Parallel()

	mic := &audiomock.Capture{}
	provider := &sttmock.Provider{}
	l := speech.NewListener(mic, provider)

	start := time.Now()
	_, err := l.Listen(context.Background(), 50*time.Millisecond)
	if !errors.Is(err, speech.ErrNoSpeech) {
		t.Fatalf("Listen error = %v, want ErrNoSpeech", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Listen took %v, want about the window", elapsed)
	}
}

func TestListener_ProviderError(t *testing.T) {
	t.Parallel()

	errDown := errors.New("whisper server down")
	l := speech.NewListener(&audiomock.Capture{}, &sttmock.Provider{StartStreamErr: errDown})
	if _, err := l.Listen(context.Background(), time.Second); !errors.Is(err, errDown) {
		t.Errorf("Listen error = %v, want %v", err, errDown)
	}

	errMic := errors.New("no microphone")
	l = speech.NewListener(&audiomock.Capture{CaptureErr: errMic}, &sttmock.Provider{})
	if _, err := l.Listen(context.Background(), time.Second); !errors.Is(err, errMic) {
		t.Errorf("Listen error = %v, want %v", err, errMic)
	}
}

func TestListener_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := speech.NewListener(&audiomock.Capture{}, &sttmock.Provider{})
	if _, err := l.Listen(ctx, time.Second); err == nil {
		t.Error("Listen with cancelled context: want error")
	}
}

func TestListener_Calibrate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		frames []audio.AudioFrame
		want   float64
	}{
		{name: "ambient noise", frames: []audio.AudioFrame{frame(constantPCM(160, 400)), frame(constantPCM(160, 400))}, want: 600},
		{name: "silence floors", frames: []audio.AudioFrame{frame(constantPCM(160, 0))}, want: 50},
		{name: "no audio keeps threshold", want: 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mic := &audiomock.Capture{Frames: tt.frames, CloseAfter: true}
			l := speech.NewListener(mic, &sttmock.Provider{})
			if err := l.Calibrate(context.Background(), time.Second); err != nil {
				t.Fatalf("Calibrate: %v", err)
			}
			if got := l.Threshold(); math.Abs(got-tt.want) > 0.5 {
				t.Errorf("Threshold = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListener_CalibratedThresholdReachesSession(t *testing.T) {
	t.Parallel()

	mic := &audiomock.Capture{Frames: []audio.AudioFrame{frame(constantPCM(160, 1000))}, CloseAfter: true}
	provider := &sttmock.Provider{Script: []string{"owl"}}
	l := speech.NewListener(mic, provider)
	if err := l.Calibrate(context.Background(), time.Second); err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if _, err := l.Listen(context.Background(), time.Second); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if got := provider.StartStreamCalls[0].EnergyThreshold; math.Abs(got-1500) > 0.5 {
		t.Errorf("EnergyThreshold = %v, want 1500", got)
	}
}

// ─── TextIO ──────────────────────────────────────────────────────────────────

func TestTextIO(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	tio := speech.NewTextIO(strings.NewReader("Harry\n\n red \n"), &out, speech.WithPrefix("Hat"))
	ctx := context.Background()

	if err := tio.Speak(ctx, "What is your name?"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if !strings.Contains(out.String(), "Hat: What is your name?") {
		t.Errorf("output = %q, want prefixed line", out.String())
	}

	want := []struct {
		text string
		err  error
	}{
		{text: "Harry"},
		{err: speech.ErrNoSpeech},
		{text: "red"},
		{err: io.EOF},
	}
	for i, w := range want {
		got, err := tio.Listen(ctx, time.Second)
		if !errors.Is(err, w.err) {
			t.Errorf("Listen #%d error = %v, want %v", i, err, w.err)
		}
		if got != w.text {
			t.Errorf("Listen #%d = %q, want %q", i, got, w.text)
		}
	}
	if err := tio.Calibrate(ctx, time.Second); err != nil {
		t.Errorf("Calibrate: %v", err)
	}
}

func TestTextIO_Timeout(t *testing.T) {
	t.Parallel()

	r, w := io.Pipe()
	defer w.Close()
	tio := speech.NewTextIO(r, io.Discard, speech.WithWindowScale(1))
	if _, err := tio.Listen(context.Background(), 20*time.Millisecond); !errors.Is(err, speech.ErrNoSpeech) {
		t.Errorf("Listen error = %v, want ErrNoSpeech", err)
	}
}

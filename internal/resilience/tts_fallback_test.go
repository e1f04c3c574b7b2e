package resilience

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/sortinghat/pkg/audio"
	"github.com/MrWong99/sortinghat/pkg/provider/tts"
	ttsmock "github.com/MrWong99/sortinghat/pkg/provider/tts/mock"
)

var hat = tts.VoiceProfile{ID: "hat-voice", Name: "Sorting Hat"}

func drain(ch <-chan []byte) []byte {
	var buf bytes.Buffer
	for c := range ch {
		buf.Write(c)
	}
	return buf.Bytes()
}

func TestTTSFallback_Synthesize_PrimarySuccess(t *testing.T) {
	primary := &ttsmock.Provider{Chunks: [][]byte{{1, 0}, {2, 0}}}
	secondary := &ttsmock.Provider{}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	ch, err := fb.Synthesize(context.Background(), "Welcome!", hat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := drain(ch); !bytes.Equal(got, []byte{1, 0, 2, 0}) {
		t.Errorf("audio = %v, want primary chunks unchanged", got)
	}
	if len(secondary.SynthesizeCalls) != 0 {
		t.Errorf("secondary called %d times, want 0", len(secondary.SynthesizeCalls))
	}
}

func TestTTSFallback_Synthesize_FailoverConvertsFormat(t *testing.T) {
	primary := &ttsmock.Provider{
		SynthesizeErr: errors.New("primary down"),
		OutputFormat:  audio.Format{SampleRate: 16000, Channels: 1},
	}
	// Two 16-bit stereo frames.
	secondary := &ttsmock.Provider{
		Chunks:       [][]byte{{10, 0, 20, 0, 30, 0, 40, 0}},
		OutputFormat: audio.Format{SampleRate: 16000, Channels: 2},
	}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	if got := fb.Format(); got != primary.Format() {
		t.Errorf("Format() = %+v, want primary's %+v", got, primary.Format())
	}
	ch, err := fb.Synthesize(context.Background(), "Welcome!", hat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := drain(ch)
	// Stereo to mono halves the byte count.
	if len(got) != 4 {
		t.Errorf("converted audio = %v (%d bytes), want 4 bytes of mono PCM", got, len(got))
	}
}

func TestTTSFallback_Synthesize_FallbackVoice(t *testing.T) {
	primary := &ttsmock.Provider{SynthesizeErr: errors.New("primary down")}
	secondary := &ttsmock.Provider{Chunks: [][]byte{{0, 0}}}
	local := tts.VoiceProfile{ID: "p225", Name: "Coqui"}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{})
	fb.AddFallbackWithVoice("secondary", secondary, local)

	ch, err := fb.Synthesize(context.Background(), "Hmm.", hat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	drain(ch)
	if len(primary.SynthesizeCalls) != 1 || primary.SynthesizeCalls[0].Voice.ID != hat.ID {
		t.Errorf("primary calls = %+v, want the caller's voice", primary.SynthesizeCalls)
	}
	if len(secondary.SynthesizeCalls) != 1 || secondary.SynthesizeCalls[0].Voice.ID != local.ID {
		t.Errorf("secondary calls = %+v, want voice %q", secondary.SynthesizeCalls, local.ID)
	}
}

func TestTTSFallback_Synthesize_AllFail(t *testing.T) {
	fb := NewTTSFallback(&ttsmock.Provider{SynthesizeErr: errors.New("a down")}, "a", FallbackConfig{})
	fb.AddFallback("b", &ttsmock.Provider{SynthesizeErr: errors.New("b down")})

	_, err := fb.Synthesize(context.Background(), "Welcome!", hat)
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("expected ErrAllFailed, got: %v", err)
	}
}

func TestTTSFallback_ListVoices_Failover(t *testing.T) {
	primary := &ttsmock.Provider{ListVoicesErr: errors.New("primary down")}
	secondary := &ttsmock.Provider{Voices: []tts.VoiceProfile{hat}}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	voices, err := fb.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(voices) != 1 || voices[0].ID != hat.ID {
		t.Errorf("voices = %+v, want [%s]", voices, hat.ID)
	}
}

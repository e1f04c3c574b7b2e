package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/sortinghat/pkg/provider/stt"
	sttmock "github.com/MrWong99/sortinghat/pkg/provider/stt/mock"
)

func answer(t *testing.T, h stt.SessionHandle) string {
	t.Helper()
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	tr, ok := <-h.Finals()
	if !ok {
		return ""
	}
	return tr.Text
}

func TestSTTFallback_StartStream_PrimarySuccess(t *testing.T) {
	primary := &sttmock.Provider{Script: []string{"Harry"}}
	secondary := &sttmock.Provider{Script: []string{"Ron"}}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	handle, err := fb.StartStream(context.Background(), stt.StreamConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := answer(t, handle); got != "Harry" {
		t.Errorf("answer = %q, want %q", got, "Harry")
	}
	if primary.CallCount() != 1 {
		t.Fatalf("primary called %d times, want 1", primary.CallCount())
	}
	if secondary.CallCount() != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.CallCount())
	}
}

func TestSTTFallback_StartStream_Failover(t *testing.T) {
	primary := &sttmock.Provider{StartStreamErr: errors.New("primary down")}
	secondary := &sttmock.Provider{Script: []string{"Ron"}}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	cfg := stt.StreamConfig{SampleRate: 16000, Channels: 1, Keywords: []string{"Gryffindor"}}
	handle, err := fb.StartStream(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := answer(t, handle); got != "Ron" {
		t.Errorf("answer = %q, want %q", got, "Ron")
	}
	if len(secondary.StartStreamCalls) != 1 || secondary.StartStreamCalls[0].Keywords[0] != "Gryffindor" {
		t.Errorf("secondary calls = %+v, want the original config", secondary.StartStreamCalls)
	}
}

func TestSTTFallback_StartStream_AllFail(t *testing.T) {
	fb := NewSTTFallback(&sttmock.Provider{StartStreamErr: errors.New("a down")}, "a", FallbackConfig{})
	fb.AddFallback("b", &sttmock.Provider{StartStreamErr: errors.New("b down")})

	_, err := fb.StartStream(context.Background(), stt.StreamConfig{SampleRate: 16000, Channels: 1})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("expected ErrAllFailed, got: %v", err)
	}
}

func TestSTTFallback_Healthy(t *testing.T) {
	fb := NewSTTFallback(&sttmock.Provider{StartStreamErr: errors.New("down")}, "only", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1},
	})
	if !fb.Healthy() {
		t.Fatal("fresh fallback should be healthy")
	}
	_, _ = fb.StartStream(context.Background(), stt.StreamConfig{})
	if fb.Healthy() {
		t.Error("fallback should be unhealthy once its only breaker opened")
	}
}

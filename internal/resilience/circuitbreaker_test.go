package resilience

import (
	"errors"
	"slices"
	"sync"
	"testing"
	"time"
)

var errTest = errors.New("test error")

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// transitionLog records OnStateChange calls.
type transitionLog struct {
	mu    sync.Mutex
	moves []string
}

func (l *transitionLog) record(name string, from, to State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.moves = append(l.moves, name+":"+from.String()+">"+to.String())
}

func (l *transitionLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.moves)
}

func newTestBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *fakeClock, *transitionLog) {
	clock := &fakeClock{t: time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)}
	log := &transitionLog{}
	cfg.OnStateChange = log.record
	cb := NewCircuitBreaker(cfg)
	cb.now = clock.Now
	return cb, clock, log
}

func fail() error { return errTest }
func pass() error { return nil }

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "whisper"})
	if cb.cfg.MaxFailures != 5 || cb.cfg.ResetTimeout != 30*time.Second || cb.cfg.HalfOpenMax != 3 {
		t.Errorf("defaults = %+v", cb.cfg)
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		calls []func() error
		want  State
	}{
		{name: "below threshold", calls: []func() error{fail, fail}, want: StateClosed},
		{name: "at threshold", calls: []func() error{fail, fail, fail}, want: StateOpen},
		{name: "success resets count", calls: []func() error{fail, fail, pass, fail, fail}, want: StateClosed},
		{name: "only successes", calls: []func() error{pass, pass, pass, pass}, want: StateClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cb, _, _ := newTestBreaker(CircuitBreakerConfig{Name: "elevenlabs", MaxFailures: 3})
			for _, fn := range tt.calls {
				_ = cb.Execute(fn)
			}
			if got := cb.State(); got != tt.want {
				t.Errorf("State = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCircuitBreaker_OpenRefusesCalls(t *testing.T) {
	t.Parallel()

	cb, clock, _ := newTestBreaker(CircuitBreakerConfig{Name: "coqui", MaxFailures: 1, ResetTimeout: time.Minute})
	_ = cb.Execute(fail)

	clock.Advance(59 * time.Second)
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute error = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("fn called while the circuit was open")
	}
}

func TestCircuitBreaker_TrialsCloseTheCircuit(t *testing.T) {
	t.Parallel()

	cb, clock, log := newTestBreaker(CircuitBreakerConfig{Name: "coqui", MaxFailures: 1, ResetTimeout: time.Minute, HalfOpenMax: 2})
	_ = cb.Execute(fail)
	clock.Advance(time.Minute)

	if got := cb.State(); got != StateHalfOpen {
		t.Fatalf("State after cool-down = %v, want half-open", got)
	}
	for i := range 2 {
		if err := cb.Execute(pass); err != nil {
			t.Fatalf("trial %d: %v", i, err)
		}
	}
	if got := cb.State(); got != StateClosed {
		t.Errorf("State after trials = %v, want closed", got)
	}

	want := []string{"coqui:closed>open", "coqui:open>half-open", "coqui:half-open>closed"}
	if got := log.all(); !slices.Equal(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
}

func TestCircuitBreaker_FailedTrialReopens(t *testing.T) {
	t.Parallel()

	cb, clock, log := newTestBreaker(CircuitBreakerConfig{Name: "whisper", MaxFailures: 2, ResetTimeout: time.Minute})
	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	clock.Advance(time.Minute)

	_ = cb.Execute(pass)
	if err := cb.Execute(fail); !errors.Is(err, errTest) {
		t.Fatalf("trial error = %v, want %v", err, errTest)
	}
	if got := cb.State(); got != StateOpen {
		t.Errorf("State after failed trial = %v, want open", got)
	}
	// The cool-down restarts from the failed trial.
	clock.Advance(30 * time.Second)
	if err := cb.Execute(pass); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute during new cool-down = %v, want ErrCircuitOpen", err)
	}

	want := []string{"whisper:closed>open", "whisper:open>half-open", "whisper:half-open>open"}
	if got := log.all(); !slices.Equal(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
}

func TestCircuitBreaker_HalfOpenLimitsInFlightTrials(t *testing.T) {
	t.Parallel()

	cb, clock, _ := newTestBreaker(CircuitBreakerConfig{Name: "openai", MaxFailures: 1, ResetTimeout: time.Second, HalfOpenMax: 1})
	_ = cb.Execute(fail)
	clock.Advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := cb.Execute(pass); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second trial = %v, want ErrCircuitOpen", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first trial: %v", err)
	}
	if got := cb.State(); got != StateClosed {
		t.Errorf("State = %v, want closed", got)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	for s, want := range map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(42):     "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}

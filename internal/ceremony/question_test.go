package ceremony

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/MrWong99/sortinghat/internal/observe"
	presentmock "github.com/MrWong99/sortinghat/internal/present/mock"
	speechmock "github.com/MrWong99/sortinghat/internal/speech/mock"
)

func newTestRun(answers ...string) (*run, *speechmock.Input, *speechmock.Output) {
	in := &speechmock.Input{Answers: answers}
	out := &speechmock.Output{}
	c := New(DefaultConfig(), out, in, &presentmock.Surface{}, nil, WithMetrics(observe.DefaultMetrics()))
	return &run{c: c, log: slog.Default()}, in, out
}

func TestAsk_CapturesNPlusOneTimes(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 3, 5} {
		r, in, out := newTestRun("nope", "nope", "nope", "nope", "nope", "nope", "nope")
		answer, ok, err := r.ask(context.Background(), question{
			name:     "test",
			prompt:   "prompt",
			reprompt: func(string) string { return "again" },
			giveUp:   "give up",
			settings: Settings{Window: time.Second, MaxRetries: n},
			validate: func(string) (string, bool) { return "", false },
		})
		if err != nil {
			t.Fatalf("N=%d: ask: %v", n, err)
		}
		if ok || answer != "" {
			t.Errorf("N=%d: ask = (%q, %v), want not determined", n, answer, ok)
		}
		if got := in.ListenCount(); got != n+1 {
			t.Errorf("N=%d: captured %d times, want %d", n, got, n+1)
		}
		// prompt + N re-prompts + give-up line
		if got := len(out.Spoken()); got != n+2 {
			t.Errorf("N=%d: spoke %d lines, want %d", n, got, n+2)
		}
	}
}

func TestAsk_Reduce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reduce Reduce
		heard  string
		want   string
	}{
		{reduce: KeepAll, heard: "  brave and clever ", want: "brave and clever"},
		{reduce: KeepLastWord, heard: "My name is Harry.", want: "harry"},
		{reduce: KeepFirstWord, heard: "Yes, please", want: "yes"},
	}
	for _, tt := range tests {
		r, _, _ := newTestRun(tt.heard)
		got, ok, err := r.ask(context.Background(), question{
			name:     "test",
			prompt:   "prompt",
			settings: Settings{Window: time.Second},
			reduce:   tt.reduce,
		})
		if err != nil || !ok {
			t.Fatalf("ask(%q) = (%q, %v, %v)", tt.heard, got, ok, err)
		}
		if got != tt.want {
			t.Errorf("ask(%q) with reduce %d = %q, want %q", tt.heard, tt.reduce, got, tt.want)
		}
	}
}

func TestAsk_RepromptSeesRejectedAnswer(t *testing.T) {
	t.Parallel()

	r, _, out := newTestRun("banana", "teal")
	answer, ok, err := r.ask(context.Background(), question{
		name:     "color",
		prompt:   "colour?",
		reprompt: lineRetryColor,
		settings: Settings{Window: time.Second, MaxRetries: 3},
		validate: func(h string) (string, bool) { return h, h == "teal" },
	})
	if err != nil || !ok || answer != "teal" {
		t.Fatalf("ask = (%q, %v, %v), want teal", answer, ok, err)
	}
	spoken := out.Spoken()
	if len(spoken) != 2 || spoken[1] != lineRetryColor("banana") {
		t.Errorf("spoken = %q", spoken)
	}
}

func TestAsk_Cancelled(t *testing.T) {
	t.Parallel()

	r, in, _ := newTestRun("Harry")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := r.ask(ctx, question{name: "name", prompt: "name?"}); err == nil {
		t.Fatal("ask with cancelled context: err = nil")
	}
	if in.ListenCount() != 0 {
		t.Error("listened after cancellation")
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	if got := stateAdjectives.String(); got != "adjectives" {
		t.Errorf("stateAdjectives = %q", got)
	}
	if got := state(42).String(); got != "state(42)" {
		t.Errorf("state(42) = %q", got)
	}
	for st := stateSetup; st < stateDone; st++ {
		if steps[st] == nil {
			t.Errorf("no step for %v", st)
		}
	}
}

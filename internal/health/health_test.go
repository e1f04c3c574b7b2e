package health

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type fakeLedger struct{ err error }

func (f fakeLedger) Ping(context.Context) error { return f.err }

func get(t *testing.T, ctx context.Context, h *Handler, path string) (int, report) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil).WithContext(ctx))
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want JSON", ct)
	}
	var rep report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return rec.Code, rep
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	h := New(PingChecker("ledger", fakeLedger{err: errors.New("down")}))
	code, rep := get(t, context.Background(), h, "/healthz")
	if code != http.StatusOK || rep.Status != "ok" || rep.Checks != nil {
		t.Errorf("healthz = %d %+v, want 200 ok without checks", code, rep)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{},
		},
		{
			name: "all pass",
			checkers: []Checker{
				PingChecker("ledger", fakeLedger{}),
				StateChecker("tts", func() bool { return true }, "down"),
			},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{"ledger": "ok", "tts": "ok"},
		},
		{
			name: "ledger unreachable",
			checkers: []Checker{
				PingChecker("ledger", fakeLedger{err: errors.New("connection refused")}),
				StateChecker("stt", func() bool { return true }, "down"),
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]string{"ledger": "fail: connection refused", "stt": "ok"},
		},
		{
			name: "everything failing",
			checkers: []Checker{
				StateChecker("tts", func() bool { return false }, "every tts provider is failing"),
				StateChecker("presentation", func() bool { return false }, "no presentation client connected"),
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]string{
				"tts":          "fail: every tts provider is failing",
				"presentation": "fail: no presentation client connected",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, rep := get(t, context.Background(), New(tt.checkers...), "/readyz")
			if code != tt.wantCode || rep.Status != tt.wantStatus {
				t.Errorf("readyz = %d %q, want %d %q", code, rep.Status, tt.wantCode, tt.wantStatus)
			}
			if rep.Checks == nil {
				rep.Checks = map[string]string{}
			}
			if !maps.Equal(rep.Checks, tt.wantChecks) {
				t.Errorf("checks = %v, want %v", rep.Checks, tt.wantChecks)
			}
		})
	}
}

func TestReadyz_ChecksRunConcurrently(t *testing.T) {
	t.Parallel()

	var running atomic.Int32
	both := make(chan struct{})
	wait := func(ctx context.Context) error {
		if running.Add(1) == 2 {
			close(both)
		}
		select {
		case <-both:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	code, rep := get(t, ctx, New(Checker{Name: "a", Check: wait}, Checker{Name: "b", Check: wait}), "/readyz")
	if code != http.StatusOK {
		t.Errorf("readyz = %d %+v, want both checks to meet", code, rep)
	}
}

func TestReadyz_CancelledRequestFailsChecks(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := Checker{Name: "ledger", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	code, rep := get(t, ctx, New(slow), "/readyz")
	if code != http.StatusServiceUnavailable || rep.Checks["ledger"] != "fail: context canceled" {
		t.Errorf("readyz = %d %+v, want 503 with cancelled ledger check", code, rep)
	}
}

func TestNew_CopiesCheckers(t *testing.T) {
	t.Parallel()

	checkers := []Checker{PingChecker("ledger", fakeLedger{})}
	h := New(checkers...)
	checkers[0] = PingChecker("ledger", fakeLedger{err: errors.New("swapped")})

	if code, _ := get(t, context.Background(), h, "/readyz"); code != http.StatusOK {
		t.Errorf("readyz = %d after caller mutated its slice, want 200", code)
	}
}

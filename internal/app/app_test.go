package app_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/sortinghat/internal/app"
	"github.com/MrWong99/sortinghat/internal/ceremony"
	"github.com/MrWong99/sortinghat/internal/config"
	"github.com/MrWong99/sortinghat/internal/house"
	"github.com/MrWong99/sortinghat/internal/ledger"
	ledgermock "github.com/MrWong99/sortinghat/internal/ledger/mock"
	"github.com/MrWong99/sortinghat/internal/observe"
	presentmock "github.com/MrWong99/sortinghat/internal/present/mock"
	speechmock "github.com/MrWong99/sortinghat/internal/speech/mock"
)

// testConfig returns a console-mode config with an in-memory ledger and no
// calibration pause.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Audio.Mode = config.AudioConsole
	cfg.Ledger.Driver = ledger.DriverMemory
	cfg.Ceremony.Calibration = 0
	return cfg
}

func testTelemetry(t *testing.T) *observe.Telemetry {
	t.Helper()
	tel, err := observe.InitProvider(context.Background(), observe.ProviderConfig{ServiceName: "sortinghat-test"})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })
	return tel
}

func openerFor(l *ledgermock.Ledger) ledger.Opener {
	return func(context.Context) (ledger.Ledger, error) { return l, nil }
}

// waitingInput never hears anything until the ceremony is cancelled.
type waitingInput struct{}

func (waitingInput) Listen(ctx context.Context, _ time.Duration) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (waitingInput) Calibrate(context.Context, time.Duration) error { return nil }

func TestRun_ConsoleCeremony(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	l := &ledgermock.Ledger{}
	a, err := app.New(context.Background(), testConfig(), nil,
		app.WithConsole(strings.NewReader("Harry\nred\nowl\nbrave\ngryffindor\n"), &out),
		app.WithOpener(openerFor(l)),
		app.WithSurface(&presentmock.Surface{}),
		app.WithTelemetry(testTelemetry(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	res, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != ceremony.OutcomeSorted || res.House != house.Gryffindor {
		t.Errorf("result = %s/%v, want sorted into Gryffindor", res.Outcome, res.House)
	}
	if l.UpsertCount() != 1 {
		t.Errorf("UpsertCount = %d, want 1", l.UpsertCount())
	}
	if !strings.Contains(out.String(), "Sorting Hat: GRYFFINDOR!") {
		t.Errorf("console output lacks the announcement:\n%s", out.String())
	}
}

func TestNew_PortAudioModeNeedsProviders(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Audio.Mode = config.AudioPortAudio
	_, err := app.New(context.Background(), cfg, &app.Providers{}, app.WithTelemetry(testTelemetry(t)))
	if err == nil {
		t.Fatal("New without providers in portaudio mode: want error")
	}
}

func TestRun_ServesAdminAndPresentation(t *testing.T) {
	t.Parallel()

	adminLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	webLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	surface := &presentmock.Surface{}
	l := &ledgermock.Ledger{}
	var opens atomic.Int32
	opened := make(chan struct{})
	open := func(context.Context) (ledger.Ledger, error) {
		if opens.Add(1) == 1 {
			close(opened)
		}
		return l, nil
	}
	a, err := app.New(context.Background(), testConfig(), nil,
		app.WithOutput(&speechmock.Output{}),
		app.WithInput(waitingInput{}),
		app.WithSurface(surface),
		app.WithOpener(open),
		app.WithTelemetry(testTelemetry(t)),
		app.WithListeners(adminLn, webLn),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	type runResult struct {
		res ceremony.Result
		err error
	}
	done := make(chan runResult, 1)
	go func() {
		res, err := a.Run(ctx)
		done <- runResult{res, err}
	}()
	<-a.Ready()

	get := func(base net.Listener, path string) (int, string) {
		t.Helper()
		resp, err := http.Get("http://" + base.Addr().String() + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	tests := []struct {
		name     string
		ln       net.Listener
		path     string
		wantCode int
		wantBody string
	}{
		{name: "liveness", ln: adminLn, path: "/healthz", wantCode: http.StatusOK, wantBody: "ok"},
		{name: "metrics", ln: adminLn, path: "/metrics", wantCode: http.StatusOK, wantBody: "target_info"},
		{name: "ceremony page", ln: webLn, path: "/", wantCode: http.StatusOK, wantBody: "<html"},
	}
	for _, tt := range tests {
		code, body := get(tt.ln, tt.path)
		if code != tt.wantCode {
			t.Errorf("%s: status = %d, want %d", tt.name, code, tt.wantCode)
		}
		if !strings.Contains(body, tt.wantBody) {
			t.Errorf("%s: body lacks %q:\n%s", tt.name, tt.wantBody, body)
		}
	}

	select {
	case <-opened:
	case <-time.After(5 * time.Second):
		t.Fatal("ceremony never opened the ledger")
	}
	// No browser is attached, so readiness reports the presentation check.
	// The ledger check pings the ceremony's handle without reopening it.
	for range 3 {
		code, body := get(adminLn, "/readyz")
		if code != http.StatusServiceUnavailable || !strings.Contains(body, "presentation") {
			t.Errorf("readyz = %d %s, want 503 naming presentation", code, body)
		}
		if !strings.Contains(body, `"ledger":"ok"`) {
			t.Errorf("readyz body lacks a passing ledger check: %s", body)
		}
	}
	if n := opens.Load(); n != 1 {
		t.Errorf("ledger opened %d times, want 1", n)
	}
	if n := l.Pings(); n != 3 {
		t.Errorf("ledger pinged %d times, want 3", n)
	}

	cancel()
	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("Run: %v", r.err)
		}
		if r.res.Outcome != ceremony.OutcomeCancelled {
			t.Errorf("Outcome = %q, want %q", r.res.Outcome, ceremony.OutcomeCancelled)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if n := l.Closed(); n != 1 {
		t.Errorf("ledger closed %d times, want 1", n)
	}
	if _, err := http.Get("http://" + adminLn.Addr().String() + "/healthz"); err == nil {
		t.Error("admin server still serving after Run returned")
	}
}

func TestRun_LedgerOpenFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	a, err := app.New(context.Background(), testConfig(), nil,
		app.WithOutput(&speechmock.Output{}),
		app.WithInput(&speechmock.Input{}),
		app.WithSurface(&presentmock.Surface{}),
		app.WithOpener(func(context.Context) (ledger.Ledger, error) { return nil, boom }),
		app.WithTelemetry(testTelemetry(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := a.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want %v", err, boom)
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	t.Parallel()

	surface := &presentmock.Surface{}
	a, err := app.New(context.Background(), testConfig(), nil,
		app.WithOutput(&speechmock.Output{}),
		app.WithInput(&speechmock.Input{}),
		app.WithSurface(surface),
		app.WithTelemetry(testTelemetry(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for range 2 {
		if err := a.Shutdown(context.Background()); err != nil {
			t.Fatalf("Shutdown: %v", err)
		}
	}
	if n := surface.CloseCount(); n != 1 {
		t.Errorf("surface closed %d times, want 1", n)
	}
}

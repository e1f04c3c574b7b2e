// Package app wires the Sorting Hat subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run holds one ceremony while the admin and presentation servers
// are up, and Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithOutput, WithInput, WithSurface, etc.). When an option is not
// provided, New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/sortinghat/internal/ceremony"
	"github.com/MrWong99/sortinghat/internal/classify"
	"github.com/MrWong99/sortinghat/internal/config"
	"github.com/MrWong99/sortinghat/internal/health"
	"github.com/MrWong99/sortinghat/internal/ledger"
	"github.com/MrWong99/sortinghat/internal/observe"
	"github.com/MrWong99/sortinghat/internal/present"
	"github.com/MrWong99/sortinghat/internal/present/web"
	"github.com/MrWong99/sortinghat/internal/speech"
	"github.com/MrWong99/sortinghat/pkg/audio"
	"github.com/MrWong99/sortinghat/pkg/provider/tts"
)

// shutdownGrace bounds how long an HTTP server may take to drain.
const shutdownGrace = 5 * time.Second

// App owns all subsystem lifetimes and runs the ceremony.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems, initialised in New and torn down in Shutdown.
	out       speech.Output
	in        speech.Input
	surface   present.Surface
	web       *web.Surface
	opener    ledger.Opener
	ledger    *ledgerHandle
	files     ceremony.FilePlayer
	telemetry *observe.Telemetry
	metrics   *observe.Metrics

	stdin  io.Reader
	stdout io.Writer

	// listeners are pre-bound by tests; empty entries bind from the config.
	adminLn net.Listener
	webLn   net.Listener

	// ready is closed once every server is listening.
	ready chan struct{}

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithOutput injects the hat's voice instead of building one from config.
func WithOutput(o speech.Output) Option {
	return func(a *App) { a.out = o }
}

// WithInput injects the answer source instead of building one from config.
func WithInput(i speech.Input) Option {
	return func(a *App) { a.in = i }
}

// WithSurface injects a presentation surface. The web surface is still added
// when presentation.listen_addr is set.
func WithSurface(s present.Surface) Option {
	return func(a *App) { a.surface = s }
}

// WithOpener injects a ledger opener instead of the configured driver.
func WithOpener(o ledger.Opener) Option {
	return func(a *App) { a.opener = o }
}

// WithFilePlayer injects the player used for house themes.
func WithFilePlayer(p ceremony.FilePlayer) Option {
	return func(a *App) { a.files = p }
}

// WithTelemetry injects an initialised telemetry provider.
func WithTelemetry(t *observe.Telemetry) Option {
	return func(a *App) { a.telemetry = t }
}

// WithConsole sets the terminal used in console audio mode.
// Defaults to stdin and stdout.
func WithConsole(r io.Reader, w io.Writer) Option {
	return func(a *App) {
		a.stdin = r
		a.stdout = w
	}
}

// WithListeners serves the admin and presentation endpoints on pre-bound
// listeners. A nil listener falls back to the configured address.
func WithListeners(admin, presentation net.Listener) Option {
	return func(a *App) {
		a.adminLn = admin
		a.webLn = presentation
	}
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		ready:     make(chan struct{}),
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Telemetry ─────────────────────────────────────────────────────
	if err := a.initTelemetry(ctx); err != nil {
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}

	// ── 2. Speech ────────────────────────────────────────────────────────
	if err := a.initSpeech(); err != nil {
		return nil, fmt.Errorf("app: init speech: %w", err)
	}

	// ── 3. Presentation ──────────────────────────────────────────────────
	a.initPresentation()

	// ── 4. Ledger ────────────────────────────────────────────────────────
	if a.opener == nil {
		a.opener = ledger.NewOpener(ledger.Options{
			Driver: cfg.Ledger.Driver,
			Path:   cfg.Ledger.Path,
			DSN:    cfg.Ledger.DSN,
		})
	}
	a.ledger = &ledgerHandle{open: a.opener}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) initTelemetry(ctx context.Context) error {
	if a.telemetry == nil {
		t, err := observe.InitProvider(ctx, observe.ProviderConfig{})
		if err != nil {
			return err
		}
		a.telemetry = t
		a.closers = append(a.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return t.Shutdown(ctx)
		})
	}
	a.metrics = observe.DefaultMetrics()
	return nil
}

// initSpeech builds the hat's voice and ears for the configured audio mode.
func (a *App) initSpeech() error {
	if a.out != nil && a.in != nil {
		return nil // both injected
	}

	if a.cfg.Audio.Mode == config.AudioConsole {
		tio := speech.NewTextIO(a.stdin, a.stdout, speech.WithPrefix("Sorting Hat"))
		a.closers = append(a.closers, tio.Close)
		if a.out == nil {
			a.out = tio
		}
		if a.in == nil {
			a.in = tio
		}
		return nil
	}

	ps := a.providers
	if a.out == nil {
		if ps.TTS == nil || ps.Player == nil {
			return errors.New("portaudio mode requires a tts provider and an output device")
		}
		a.out = speech.NewSpeaker(ps.TTS, ps.Player, a.voice(),
			speech.WithSpeakerMetrics(a.metrics, a.cfg.Providers.TTS.Name))
	}
	if a.in == nil {
		if ps.STT == nil || ps.Capture == nil {
			return errors.New("portaudio mode requires an stt provider and an input device")
		}
		a.in = speech.NewListener(ps.Capture, ps.STT,
			speech.WithLanguage(a.cfg.Voice.Language),
			speech.WithKeywords(classify.Vocabulary()),
			speech.WithListenerMetrics(a.metrics, a.cfg.Providers.STT.Name))
	}
	if a.files == nil && ps.Player != nil {
		a.files = audio.NewFilePlayer(ps.Player)
	}
	return nil
}

// initPresentation assembles the surfaces the ceremony draws on.
func (a *App) initPresentation() {
	var surfaces present.Multi
	if a.surface != nil {
		surfaces = append(surfaces, a.surface)
	} else {
		surfaces = append(surfaces, present.NewLog(slog.Default()))
		if a.cfg.Presentation.Notifications {
			surfaces = append(surfaces, present.NewNotify())
		}
	}
	if a.cfg.Presentation.ListenAddr != "" || a.webLn != nil {
		a.web = web.New(a.cfg.Ceremony.AssetDir)
		surfaces = append(surfaces, a.web)
	}
	if len(surfaces) == 1 {
		a.surface = surfaces[0]
	} else {
		a.surface = surfaces
	}
	a.closers = append(a.closers, a.surface.Close)
}

func (a *App) voice() tts.VoiceProfile {
	return tts.VoiceProfile{
		ID:          a.cfg.Voice.ID,
		Name:        a.cfg.Voice.Name,
		Provider:    a.cfg.Providers.TTS.Name,
		SpeedFactor: a.cfg.Voice.SpeedFactor,
		Language:    a.cfg.Voice.Language,
	}
}

// ceremonyConfig converts the validated config section.
func (a *App) ceremonyConfig() ceremony.Config {
	cc := a.cfg.Ceremony
	q := cc.Questions
	neg, err := classify.ParseNegationMode(cc.Negation)
	if err != nil {
		neg = classify.NegationExclusive
	}
	return ceremony.Config{
		Occasion:       cc.Occasion,
		AssetDir:       cc.AssetDir,
		Calibration:    cc.Calibration,
		Negation:       neg,
		PhoneticRepair: cc.PhoneticRepair,
		Questions: ceremony.Questions{
			Name:       ceremony.Settings{Window: q.Name.Window, MaxRetries: q.Name.MaxRetries},
			Color:      ceremony.Settings{Window: q.Color.Window, MaxRetries: q.Color.MaxRetries},
			Pet:        ceremony.Settings{Window: q.Pet.Window, MaxRetries: q.Pet.MaxRetries},
			Adjectives: ceremony.Settings{Window: q.Adjectives.Window, MaxRetries: q.Adjectives.MaxRetries},
			YesNo:      ceremony.Settings{Window: q.YesNo.Window},
			Final:      ceremony.Settings{Window: q.Final.Window},
		},
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the admin and presentation servers, holds one ceremony and
// returns its result. The servers stop when the ceremony ends or ctx is
// cancelled. A cancelled ceremony is not an error. Run must be called once.
func (a *App) Run(ctx context.Context) (ceremony.Result, error) {
	adminLn, webLn, err := a.listen()
	if err != nil {
		return ceremony.Result{}, fmt.Errorf("app: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	if adminLn != nil {
		srv := &http.Server{Handler: a.AdminHandler(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error { return a.serve(gctx, done, "admin", srv, adminLn, a.cfg.Admin.TLS) })
	}
	if webLn != nil {
		srv := &http.Server{Handler: observe.Middleware(a.metrics)(a.web.Handler()), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error { return a.serve(gctx, done, "presentation", srv, webLn, nil) })
	}
	close(a.ready)

	var res ceremony.Result
	g.Go(func() error {
		defer close(done)
		opts := []ceremony.Option{ceremony.WithMetrics(a.metrics)}
		if a.files != nil {
			opts = append(opts, ceremony.WithFilePlayer(a.files))
		}
		c := ceremony.New(a.ceremonyConfig(), a.out, a.in, a.surface, a.ledger.Open, opts...)
		slog.Info("ceremony starting", "occasion", a.cfg.Ceremony.Occasion)
		var err error
		res, err = c.Run(gctx)
		if err != nil {
			return fmt.Errorf("app: ceremony: %w", err)
		}
		slog.Info("ceremony finished", "outcome", res.Outcome, "name", res.Name, "saved", res.Saved)
		return nil
	})

	err = g.Wait()
	return res, err
}

// Ready is closed once Run has bound every server.
func (a *App) Ready() <-chan struct{} {
	return a.ready
}

// AdminHandler serves /metrics, /healthz and /readyz behind the telemetry
// middleware.
func (a *App) AdminHandler() http.Handler {
	checkers := []health.Checker{health.PingChecker("ledger", a.ledger)}
	checkers = append(checkers, a.providers.Checkers...)
	if a.web != nil {
		checkers = append(checkers, health.StateChecker("presentation", func() bool { return a.web.Clients() > 0 }, "no presentation client connected"))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", a.telemetry.MetricsHandler())
	health.New(checkers...).Register(mux)
	return observe.Middleware(a.metrics)(mux)
}

// listen binds the configured server addresses unless listeners were injected.
func (a *App) listen() (admin, presentation net.Listener, err error) {
	admin, presentation = a.adminLn, a.webLn
	if admin == nil && a.cfg.Admin.ListenAddr != "" {
		if admin, err = net.Listen("tcp", a.cfg.Admin.ListenAddr); err != nil {
			return nil, nil, fmt.Errorf("listen admin: %w", err)
		}
	}
	if a.web != nil && presentation == nil {
		if presentation, err = net.Listen("tcp", a.cfg.Presentation.ListenAddr); err != nil {
			if admin != nil {
				admin.Close()
			}
			return nil, nil, fmt.Errorf("listen presentation: %w", err)
		}
	}
	return admin, presentation, nil
}

// serve runs srv on ln until ctx is cancelled or done is closed, then shuts
// it down gracefully.
func (a *App) serve(ctx context.Context, done <-chan struct{}, name string, srv *http.Server, ln net.Listener, tlsCfg *config.TLSConfig) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "server", name, "addr", ln.Addr().String())
		if tlsCfg != nil {
			errCh <- srv.ServeTLS(ln, tlsCfg.CertFile, tlsCfg.KeyFile)
		} else {
			errCh <- srv.Serve(ln)
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("app: %s server: %w", name, err)
	case <-ctx.Done():
	case <-done:
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server shutdown error", "server", name, "err", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("app: %s server: %w", name, err)
	}
	return nil
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// errLedgerClosed is reported by readiness while no ceremony holds the
// ledger open.
var errLedgerClosed = errors.New("ledger not open")

// ledgerHandle opens the ceremony's ledger and keeps a reference to it while
// it is open, so readiness pings that handle instead of opening another.
type ledgerHandle struct {
	open ledger.Opener

	mu  sync.Mutex
	cur ledger.Ledger
}

// Open opens the ledger and tracks it until the returned handle is closed.
func (h *ledgerHandle) Open(ctx context.Context) (ledger.Ledger, error) {
	l, err := h.open(ctx)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.cur = l
	h.mu.Unlock()
	return &trackedLedger{Ledger: l, h: h}, nil
}

// Ping pings the open ledger when its backend supports it.
func (h *ledgerHandle) Ping(ctx context.Context) error {
	h.mu.Lock()
	l := h.cur
	h.mu.Unlock()
	if l == nil {
		return errLedgerClosed
	}
	if p, ok := l.(health.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

type trackedLedger struct {
	ledger.Ledger
	h *ledgerHandle
}

func (t *trackedLedger) Close() error {
	t.h.mu.Lock()
	if t.h.cur == t.Ledger {
		t.h.cur = nil
	}
	t.h.mu.Unlock()
	return t.Ledger.Close()
}

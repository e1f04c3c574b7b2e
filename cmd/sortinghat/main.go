// Command sortinghat holds a voice-driven Sorting Hat ceremony.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/MrWong99/sortinghat/internal/app"
	"github.com/MrWong99/sortinghat/internal/config"
	"github.com/MrWong99/sortinghat/pkg/audio/portaudio"
	"github.com/MrWong99/sortinghat/pkg/provider/stt"
	"github.com/MrWong99/sortinghat/pkg/provider/stt/whisper"
	"github.com/MrWong99/sortinghat/pkg/provider/tts"
	"github.com/MrWong99/sortinghat/pkg/provider/tts/coqui"
	"github.com/MrWong99/sortinghat/pkg/provider/tts/elevenlabs"
	"github.com/MrWong99/sortinghat/pkg/provider/tts/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "sortinghat.yaml", "path to the YAML configuration file")
	listVoices := flag.Bool("list-voices", false, "print the voices of the configured TTS provider and exit")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "sortinghat: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "sortinghat: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.LogLevel))
	slog.Info("sortinghat starting",
		"config", *configPath,
		"audio", cfg.Audio.Mode,
		"ledger", cfg.Ledger.Driver,
	)

	// ── Providers ─────────────────────────────────────────────────────────────
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				slog.Warn("close error", "err", err)
			}
		}
	}()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg, &closers)

	providers, err := app.BuildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *listVoices {
		return printVoices(ctx, providers.TTS)
	}

	// ── Audio device ──────────────────────────────────────────────────────────
	if cfg.Audio.Mode == config.AudioPortAudio {
		dev, err := portaudio.Open(
			portaudio.WithInputDevice(cfg.Audio.InputDevice),
			portaudio.WithOutputDevice(cfg.Audio.OutputDevice),
		)
		if err != nil {
			slog.Error("failed to open audio device", "err", err)
			return 1
		}
		closers = append(closers, dev)
		providers.Capture = dev
		providers.Player = dev
	}

	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	res, runErr := application.Run(ctx)

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}

	if runErr != nil {
		slog.Error("ceremony failed", "err", runErr)
		return 1
	}
	slog.Info("goodbye", "outcome", res.Outcome)
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Providers that hold native resources are appended to closers.
func registerBuiltinProviders(reg *config.Registry, closers *[]io.Closer) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := app.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		if d := optDuration(entry.Options, "silence"); d > 0 {
			opts = append(opts, whisper.WithSilence(d))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = app.OptString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := app.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		if d := optDuration(entry.Options, "silence"); d > 0 {
			opts = append(opts, whisper.WithNativeSilence(d))
		}
		p, err := whisper.NewNative(modelPath, opts...)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, p)
		return p, nil
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := app.OptString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := app.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if rate := app.OptString(entry.Options, "sample_rate"); rate != "" {
			n, err := strconv.Atoi(rate)
			if err != nil {
				return nil, fmt.Errorf("coqui: sample_rate: %w", err)
			}
			opts = append(opts, coqui.WithOutputSampleRate(n))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if instr := app.OptString(entry.Options, "instructions"); instr != "" {
			opts = append(opts, openai.WithInstructions(instr))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, kind := range []string{"stt", "tts"} {
		for _, name := range reg.Names(kind) {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

func printVoices(ctx context.Context, p tts.Provider) int {
	if p == nil {
		fmt.Fprintln(os.Stderr, "sortinghat: no tts provider configured")
		return 1
	}
	voices, err := p.ListVoices(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sortinghat: list voices: %v\n", err)
		return 1
	}
	for _, v := range voices {
		fmt.Printf("%-24s %s\n", v.ID, v.Name)
	}
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       Sorting Hat, startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Occasion", cfg.Ceremony.Occasion)
	printRow("Audio", string(cfg.Audio.Mode))
	if cfg.Audio.Mode == config.AudioPortAudio {
		printRow("STT", providerLabel(cfg.Providers.STT))
		printRow("TTS", providerLabel(cfg.Providers.TTS))
	}
	printRow("Ledger", cfg.Ledger.Driver)
	if cfg.Presentation.ListenAddr != "" {
		printRow("Presentation", cfg.Presentation.ListenAddr)
	}
	if cfg.Admin.ListenAddr != "" {
		printRow("Admin", cfg.Admin.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func providerLabel(e config.ProviderEntry) string {
	switch {
	case e.Name == "":
		return "(not configured)"
	case len(e.Fallbacks) > 0:
		return fmt.Sprintf("%s +%d", e.Name, len(e.Fallbacks))
	default:
		return e.Name
	}
}

func printRow(label, value string) {
	if r := []rune(value); len(r) > 19 {
		value = string(r[:18]) + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optDuration parses a duration string such as "800ms" from provider options.
func optDuration(opts map[string]any, key string) time.Duration {
	d, err := time.ParseDuration(app.OptString(opts, key))
	if err != nil {
		return 0
	}
	return d
}

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/sortinghat/internal/classify"
	"github.com/MrWong99/sortinghat/internal/ledger"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper", "whisper-native"},
	"tts": {"elevenlabs", "coqui", "openai"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over [Default], applies
// defaults to emptied values and validates the result. An empty document
// yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills settings that are empty but must not be.
func ApplyDefaults(cfg *Config) {
	def := Default()
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.Audio.Mode == "" {
		cfg.Audio.Mode = def.Audio.Mode
	}
	if cfg.Voice.SpeedFactor == 0 {
		cfg.Voice.SpeedFactor = def.Voice.SpeedFactor
	}
	if cfg.Ledger.Driver == "" {
		cfg.Ledger.Driver = def.Ledger.Driver
	}
	if cfg.Ledger.Driver == ledger.DriverSQLite && cfg.Ledger.Path == "" {
		cfg.Ledger.Path = def.Ledger.Path
	}
	if cfg.Ceremony.AssetDir == "" {
		cfg.Ceremony.AssetDir = def.Ceremony.AssetDir
	}
	if cfg.Ceremony.Negation == "" {
		cfg.Ceremony.Negation = def.Ceremony.Negation
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if tls := cfg.Admin.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("admin.tls requires both cert_file and key_file"))
	}

	if !cfg.Audio.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("audio.mode %q is invalid; valid values: portaudio, console", cfg.Audio.Mode))
	}

	// Speech providers are only needed when the hat really talks.
	if cfg.Audio.Mode == AudioPortAudio {
		if cfg.Providers.STT.Name == "" {
			errs = append(errs, errors.New("audio.mode portaudio requires providers.stt"))
		}
		if cfg.Providers.TTS.Name == "" {
			errs = append(errs, errors.New("audio.mode portaudio requires providers.tts"))
		}
	}
	errs = append(errs, validateEntry("stt", cfg.Providers.STT)...)
	errs = append(errs, validateEntry("tts", cfg.Providers.TTS)...)

	if sf := cfg.Voice.SpeedFactor; sf != 0 && (sf < 0.5 || sf > 2.0) {
		errs = append(errs, fmt.Errorf("voice.speed_factor %.2f is out of range [0.5, 2.0]", sf))
	}

	switch cfg.Ledger.Driver {
	case ledger.DriverSQLite, ledger.DriverMemory:
	case ledger.DriverPostgres:
		if cfg.Ledger.DSN == "" {
			errs = append(errs, errors.New("ledger.dsn is required when driver is postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("ledger.driver %q is invalid; valid values: sqlite, postgres, memory", cfg.Ledger.Driver))
	}
	if cfg.Ledger.Driver == ledger.DriverMemory {
		slog.Warn("ledger.driver is memory; returning students will not be recognised after a restart")
	}

	if cfg.Presentation.ListenAddr != "" && cfg.Presentation.ListenAddr == cfg.Admin.ListenAddr {
		errs = append(errs, fmt.Errorf("presentation.listen_addr and admin.listen_addr are both %q", cfg.Admin.ListenAddr))
	}

	errs = append(errs, validateCeremony(&cfg.Ceremony)...)

	return errors.Join(errs...)
}

func validateCeremony(c *CeremonyConfig) []error {
	var errs []error
	if _, err := classify.ParseNegationMode(c.Negation); err != nil {
		errs = append(errs, fmt.Errorf("ceremony.negation %q is invalid; valid values: exclusive, overlapping", c.Negation))
	}
	if c.Calibration < 0 {
		errs = append(errs, fmt.Errorf("ceremony.calibration %s must not be negative", c.Calibration))
	}

	q := c.Questions
	for _, qc := range []struct {
		name string
		cfg  QuestionConfig
	}{
		{"name", q.Name},
		{"color", q.Color},
		{"pet", q.Pet},
		{"adjectives", q.Adjectives},
	} {
		if qc.cfg.Window <= 0 {
			errs = append(errs, fmt.Errorf("ceremony.questions.%s.window must be positive", qc.name))
		}
		if qc.cfg.MaxRetries < 0 {
			errs = append(errs, fmt.Errorf("ceremony.questions.%s.max_retries %d must not be negative", qc.name, qc.cfg.MaxRetries))
		}
	}
	if q.YesNo.Window <= 0 {
		errs = append(errs, errors.New("ceremony.questions.yes_no.window must be positive"))
	}
	if q.Final.Window <= 0 {
		errs = append(errs, errors.New("ceremony.questions.final.window must be positive"))
	}
	return errs
}

// validateEntry checks a provider entry and its fallbacks.
func validateEntry(kind string, e ProviderEntry) []error {
	var errs []error
	validateProviderName(kind, e.Name)
	for i, fb := range e.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.%s.fallbacks[%d].name is required", kind, i))
			continue
		}
		if len(fb.Fallbacks) > 0 {
			slog.Warn("nested provider fallbacks are ignored", "kind", kind, "name", fb.Name)
		}
		validateProviderName(kind, fb.Name)
	}
	if e.Name == "" && len(e.Fallbacks) > 0 {
		errs = append(errs, fmt.Errorf("providers.%s.fallbacks require providers.%s.name", kind, kind))
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

package config_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/sortinghat/internal/config"
)

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want []string
	}{
		{
			name: "invalid log level",
			yaml: "log_level: verbose\naudio: {mode: console}\n",
			want: []string{"log_level"},
		},
		{
			name: "portaudio without providers",
			yaml: "audio: {mode: portaudio}\n",
			want: []string{"requires providers.stt", "requires providers.tts"},
		},
		{
			name: "invalid audio mode",
			yaml: "audio: {mode: bluetooth}\n",
			want: []string{"audio.mode"},
		},
		{
			name: "postgres without dsn",
			yaml: "audio: {mode: console}\nledger: {driver: postgres}\n",
			want: []string{"ledger.dsn"},
		},
		{
			name: "unknown ledger driver",
			yaml: "audio: {mode: console}\nledger: {driver: mongodb}\n",
			want: []string{"ledger.driver"},
		},
		{
			name: "speed factor out of range",
			yaml: "audio: {mode: console}\nvoice: {speed_factor: 3}\n",
			want: []string{"voice.speed_factor"},
		},
		{
			name: "half configured tls",
			yaml: "audio: {mode: console}\nadmin: {listen_addr: ':9090', tls: {cert_file: cert.pem}}\n",
			want: []string{"admin.tls"},
		},
		{
			name: "shared listen address",
			yaml: "audio: {mode: console}\nadmin: {listen_addr: ':8080'}\npresentation: {listen_addr: ':8080'}\n",
			want: []string{"both"},
		},
		{
			name: "bad negation mode",
			yaml: "audio: {mode: console}\nceremony: {negation: sometimes}\n",
			want: []string{"ceremony.negation"},
		},
		{
			name: "bad question settings",
			yaml: "audio: {mode: console}\nceremony: {questions: {name: {window: 0s}, pet: {max_retries: -1}, final: {window: -1s}}}\n",
			want: []string{"questions.name.window", "questions.pet.max_retries", "questions.final.window"},
		},
		{
			name: "fallback without name",
			yaml: "audio: {mode: console}\nproviders: {tts: {name: coqui, fallbacks: [{base_url: 'http://x'}]}}\n",
			want: []string{"fallbacks[0].name"},
		},
		{
			name: "fallbacks without primary",
			yaml: "audio: {mode: console}\nproviders: {stt: {fallbacks: [{name: whisper}]}}\n",
			want: []string{"require providers.stt.name"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error should mention %q, got: %v", w, err)
				}
			}
		})
	}
}

func TestValidate_ProvidersConfiguredIsValid(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: whisper
    base_url: http://localhost:8080
  tts:
    name: openai
    api_key: sk-test
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
log_level: loud
audio:
  mode: console
ledger:
  driver: postgres
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") || !strings.Contains(errStr, "ledger.dsn") {
		t.Errorf("error should mention every problem, got: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if !slices.Contains(config.ValidProviderNames["stt"], "whisper") {
		t.Error(`ValidProviderNames["stt"] should contain "whisper"`)
	}
	if !slices.Contains(config.ValidProviderNames["tts"], "elevenlabs") {
		t.Error(`ValidProviderNames["tts"] should contain "elevenlabs"`)
	}
}

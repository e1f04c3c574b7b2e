// Package coqui provides a TTS provider backed by a local Coqui TTS server
// (ghcr.io/coqui-ai/tts-cpu). Synthesis uses GET /api/tts, which answers with
// a complete WAV file; the voice catalogue comes from GET /details.
//
// The server works in batch mode, so Synthesize issues one request per line
// and emits the decoded PCM in short chunks, resampled to the configured
// output rate when the model renders at a different one.
//
// Typical usage:
//
//	p, err := coqui.New("http://localhost:5002", coqui.WithLanguage("en"))
//	audio, err := p.Synthesize(ctx, "Welcome!", tts.VoiceProfile{ID: "p225"})
package coqui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/MrWong99/sortinghat/pkg/audio"
	"github.com/MrWong99/sortinghat/pkg/provider/tts"
)

const (
	apiTTSEndpoint    = "/api/tts"
	detailsEndpoint   = "/details"
	defaultTimeout    = 30 * time.Second
	defaultOutputRate = 22050
	chunkMs           = 100
)

// Option is a functional option for configuring the Coqui Provider.
type Option func(*Provider)

// WithLanguage sets the language_id sent with every request (multilingual
// models only).
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// WithOutputSampleRate sets the rate of the emitted PCM. Defaults to
// 22050 Hz, the native rate of most Coqui single-speaker models.
func WithOutputSampleRate(rate int) Option {
	return func(p *Provider) { p.outputRate = rate }
}

// Provider implements tts.Provider for a standard Coqui TTS server.
type Provider struct {
	serverURL  string
	language   string
	outputRate int
	httpClient *http.Client
}

var _ tts.Provider = (*Provider)(nil)

// New creates a Provider for the Coqui server at serverURL
// (e.g., "http://localhost:5002").
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		outputRate: defaultOutputRate,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	if p.outputRate <= 0 {
		return nil, fmt.Errorf("coqui: invalid output sample rate %d", p.outputRate)
	}
	return p, nil
}

// Format reports mono PCM at the configured output rate.
func (p *Provider) Format() audio.Format {
	return audio.Format{SampleRate: p.outputRate, Channels: 1}
}

// Synthesize renders text with one GET /api/tts request and streams the
// resulting PCM. An empty voice ID selects the model's default speaker.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (<-chan []byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("coqui: text must not be empty")
	}
	pcm, err := p.synthesize(ctx, text, voice)
	if err != nil {
		return nil, err
	}
	return audio.Chunks(pcm, p.Format(), chunkMs), nil
}

func (p *Provider) synthesize(ctx context.Context, text string, voice tts.VoiceProfile) ([]byte, error) {
	params := url.Values{}
	params.Set("text", text)
	if voice.ID != "" {
		params.Set("speaker_id", voice.ID)
	}
	lang := voice.Language
	if lang == "" {
		lang = p.language
	}
	if lang != "" {
		params.Set("language_id", lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+apiTTSEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: GET %s: %w", apiTTSEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: GET %s returned status %d", apiTTSEndpoint, resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read WAV response: %w", err)
	}
	pcm, f, err := audio.DecodeWAV(bytes.NewReader(wav))
	if err != nil {
		return nil, fmt.Errorf("coqui: %w", err)
	}
	return audio.ConvertPCM(pcm, f, p.Format()), nil
}

// detailsResponse is the subset of GET /details the provider reads.
type detailsResponse struct {
	ModelName string   `json:"model_name"`
	Speakers  []string `json:"speakers"`
}

// ListVoices returns one profile per speaker of a multi-speaker model, or a
// single profile named after the model otherwise.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+detailsEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create list-voices request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: GET %s: %w", detailsEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: GET %s returned status %d", detailsEndpoint, resp.StatusCode)
	}

	var details detailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("coqui: decode details response: %w", err)
	}

	if len(details.Speakers) == 0 {
		name := details.ModelName
		if name == "" {
			name = "default"
		}
		return []tts.VoiceProfile{{
			Name:     name,
			Provider: "coqui",
			Metadata: map[string]string{"type": "single-speaker", "model_name": name},
		}}, nil
	}

	speakers := slices.Clone(details.Speakers)
	slices.Sort(speakers)
	profiles := make([]tts.VoiceProfile, 0, len(speakers))
	for _, spk := range speakers {
		profiles = append(profiles, tts.VoiceProfile{
			ID:       spk,
			Name:     spk,
			Provider: "coqui",
			Metadata: map[string]string{"type": "speaker", "model_name": details.ModelName},
		})
	}
	return profiles, nil
}

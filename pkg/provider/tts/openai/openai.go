// Package openai provides a TTS provider backed by the OpenAI speech API
// (POST /v1/audio/speech) with raw PCM output.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/sortinghat/pkg/audio"
	"github.com/MrWong99/sortinghat/pkg/provider/tts"
)

const (
	// DefaultModel is the default OpenAI speech model.
	DefaultModel = string(oai.SpeechModelGPT4oMiniTTS)

	// DefaultVoice is used when the profile carries no voice ID.
	DefaultVoice = "fable"

	// sampleRate is fixed by the API for response_format=pcm.
	sampleRate = 24000

	readChunk = 4800
)

// voices is the fixed catalogue of built-in OpenAI voices.
var voices = []string{"alloy", "ash", "ballad", "coral", "echo", "fable", "nova", "onyx", "sage", "shimmer"}

// Ensure Provider implements the tts.Provider interface.
var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider using the OpenAI API.
type Provider struct {
	client       oai.Client
	model        string
	instructions string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL      string
	instructions string
	timeout      time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithInstructions sets the delivery instructions sent with each line
// (e.g., "Speak like an ancient, slightly theatrical hat.").
func WithInstructions(s string) Option {
	return func(c *config) {
		c.instructions = s
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI TTS Provider.
// If model is empty, DefaultModel is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai tts: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Provider{
		client:       oai.NewClient(reqOpts...),
		model:        model,
		instructions: cfg.instructions,
	}, nil
}

// Format reports the 24 kHz mono PCM the API returns.
func (p *Provider) Format() audio.Format {
	return audio.Format{SampleRate: sampleRate, Channels: 1}
}

// Synthesize requests PCM for text and streams the response body as it
// arrives.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (<-chan []byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("openai tts: text must not be empty")
	}
	voiceID := voice.ID
	if voiceID == "" {
		voiceID = DefaultVoice
	}

	params := oai.AudioSpeechNewParams{
		Input:          text,
		Model:          oai.SpeechModel(p.model),
		Voice:          oai.AudioSpeechNewParamsVoice(voiceID),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	}
	if voice.SpeedFactor > 0 {
		params.Speed = oai.Float(voice.SpeedFactor)
	}
	if p.instructions != "" {
		params.Instructions = oai.String(p.instructions)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai tts: speech request: %w", err)
	}

	ch := make(chan []byte, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		var carry []byte
		for {
			buf := make([]byte, readChunk)
			n, err := resp.Body.Read(buf)
			if n > 0 {
				// Keep chunks sample-aligned.
				data := append(carry, buf[:n]...)
				even := len(data) &^ 1
				carry = append([]byte(nil), data[even:]...)
				if even > 0 {
					select {
					case ch <- data[:even]:
					case <-ctx.Done():
						return
					}
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return ch, nil
}

// ListVoices returns the built-in voice catalogue. The API has no listing
// endpoint.
func (p *Provider) ListVoices(context.Context) ([]tts.VoiceProfile, error) {
	out := make([]tts.VoiceProfile, 0, len(voices))
	for _, v := range voices {
		out = append(out, tts.VoiceProfile{
			ID:       v,
			Name:     v,
			Provider: "openai",
			Metadata: map[string]string{"model": p.model},
		})
	}
	return out, nil
}

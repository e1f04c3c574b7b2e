// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription engine (a whisper.cpp server, an
// in-process whisper model, ...) behind a uniform streaming interface. Once a
// session is opened it accepts raw PCM audio and emits [Transcript] values:
// partials for live feedback and finals for the answer that is acted upon.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// StreamConfig describes the audio format and recognition hints for a new
// session. Zero values select the provider's defaults.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. Speech engines expect 16000.
	SampleRate int

	// Channels is the number of audio channels; 1 = mono.
	Channels int

	// Language is the language code for recognition (e.g., "en").
	Language string

	// Keywords is the vocabulary the caller expects to hear (house names,
	// pets, colours). Providers that support an initial prompt use it to bias
	// recognition.
	Keywords []string

	// EnergyThreshold is the RMS level (16-bit PCM units) below which audio
	// counts as silence. Usually the result of ambient-noise calibration.
	EnergyThreshold float64
}

// SessionHandle represents an open STT streaming session.
//
// Callers must call Close when the session is no longer needed. All methods
// must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw 16-bit PCM matching StreamConfig.
	// Calling SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Partials emits interim transcripts. The channel is closed when the
	// session ends.
	Partials() <-chan Transcript

	// Finals emits committed transcripts. The channel is closed when the
	// session ends.
	Finals() <-chan Transcript

	// Close flushes buffered audio, emits any last final, and closes both
	// channels before returning. Calling Close more than once is safe.
	Close() error
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// StartStream opens a new transcription session. The caller owns the
	// returned handle and must Close it.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}

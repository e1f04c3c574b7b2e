package stt

import "time"

// Transcript is a speech-to-text result. Partial and final results share
// this type.
type Transcript struct {
	// Text is the transcribed speech.
	Text string

	// IsFinal distinguishes committed results from interim guesses.
	IsFinal bool

	// Confidence is in [0, 1]; zero when the provider does not report it.
	Confidence float64

	// Duration is the length of the transcribed audio.
	Duration time.Duration
}

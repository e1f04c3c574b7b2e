package audio

import "time"

// AudioFrame is a chunk of 16-bit signed little-endian PCM audio, as read
// from a [Capture] device or handed to a [Player].
type AudioFrame struct {
	// PCM audio data.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for speech recognition).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Format returns the sample rate and channel count of f.
func (f AudioFrame) Format() Format {
	return Format{SampleRate: f.SampleRate, Channels: f.Channels}
}

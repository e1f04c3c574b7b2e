// Package audio provides microphone capture, PCM playback and the PCM/WAV
// helpers shared by the speech providers.
//
// The two device abstractions are:
//
//   - [Capture] opens an input device and streams [AudioFrame]
//     values until the context is cancelled.
//   - [Player] plays a stream of PCM chunks and blocks until the last one
//     has been handed to the device.
//
// The PortAudio implementation lives in audio/portaudio; tests use
// audio/mock.
package audio

import "context"

// Capture opens an audio input stream.
//
// Implementations must be safe for concurrent use, but at most one capture
// stream is expected to be open at a time.
type Capture interface {
	// Capture opens the input device with the requested format and returns
	// a channel of frames. The channel is closed once ctx is cancelled or the
	// device fails. The caller must drain the channel.
	Capture(ctx context.Context, format Format) (<-chan AudioFrame, error)
}

// Player plays raw PCM audio.
type Player interface {
	// Play writes every chunk received from pcm to the output device using
	// format, and returns after pcm is closed and the audio was queued.
	// Cancelling ctx stops playback early and returns ctx.Err().
	Play(ctx context.Context, format Format, pcm <-chan []byte) error
}

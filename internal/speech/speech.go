// Package speech connects the ceremony to the speaker and the microphone.
//
// [Output] and [Input] are the two contracts the ceremony depends on.
// [Speaker] implements Output by synthesising each line with a TTS provider
// and playing it on an [audio.Player]; [Listener] implements Input by
// streaming microphone audio into an STT session until the first final
// transcript arrives. [TextIO] implements both on a terminal for running
// without audio hardware.
package speech

import (
	"context"
	"errors"
	"time"
)

// ErrNoSpeech is returned by [Input.Listen] when nothing was said within the
// listening window.
var ErrNoSpeech = errors.New("speech: no speech detected")

// Output speaks one line and blocks until it has been played.
type Output interface {
	Speak(ctx context.Context, text string) error
}

// Input captures one spoken answer.
type Input interface {
	// Listen waits up to window for the user to start speaking and returns
	// the recognised text. A silent window yields [ErrNoSpeech].
	Listen(ctx context.Context, window time.Duration) (string, error)

	// Calibrate samples ambient noise for d and adjusts the speech
	// detection threshold.
	Calibrate(ctx context.Context, d time.Duration) error
}

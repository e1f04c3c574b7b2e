// Package mock provides test doubles for the speech package interfaces.
//
// Output records every spoken line. Input replays a script of answers, one
// per Listen call, and records the windows it was asked to listen for.
//
// Example:
//
//	in := &mock.Input{Answers: []string{"Harry", "red"}}
//	out := &mock.Output{}
//	answer, _ := in.Listen(ctx, 3*time.Second) // "Harry"
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/sortinghat/internal/speech"
)

// Output is a mock implementation of speech.Output.
type Output struct {
	mu sync.Mutex

	// SpeakErr, if non-nil, is returned by every Speak call. The line is
	// still recorded.
	SpeakErr error

	// Lines records every spoken line in order.
	Lines []string
}

// Speak records text.
func (o *Output) Speak(_ context.Context, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Lines = append(o.Lines, text)
	return o.SpeakErr
}

// Spoken returns a copy of the recorded lines. Thread-safe.
func (o *Output) Spoken() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.Lines...)
}

// Reset clears the recorded lines. Thread-safe.
func (o *Output) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Lines = nil
}

var _ speech.Output = (*Output)(nil)

// Input is a mock implementation of speech.Input.
type Input struct {
	mu sync.Mutex

	// Answers are returned by successive Listen calls. Once exhausted,
	// Listen returns speech.ErrNoSpeech.
	Answers []string

	// Errs maps a Listen call index to an error returned instead of the
	// answer at that index.
	Errs map[int]error

	// CalibrateErr, if non-nil, is returned by Calibrate.
	CalibrateErr error

	// Windows records the window of every Listen call.
	Windows []time.Duration

	// CalibrateCalls records the duration of every Calibrate call.
	CalibrateCalls []time.Duration
}

// Listen returns the next scripted answer.
func (i *Input) Listen(ctx context.Context, window time.Duration) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	n := len(i.Windows)
	i.Windows = append(i.Windows, window)
	if err, ok := i.Errs[n]; ok {
		return "", err
	}
	if n >= len(i.Answers) {
		return "", speech.ErrNoSpeech
	}
	return i.Answers[n], nil
}

// Calibrate records d.
func (i *Input) Calibrate(_ context.Context, d time.Duration) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.CalibrateCalls = append(i.CalibrateCalls, d)
	return i.CalibrateErr
}

// ListenCount returns the number of Listen calls. Thread-safe.
func (i *Input) ListenCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.Windows)
}

var _ speech.Input = (*Input)(nil)

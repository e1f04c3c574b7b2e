// Package mock provides in-memory implementations of [audio.Capture] and
// [audio.Player] for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	mic := &mock.Capture{Frames: []audio.AudioFrame{{Data: pcm, SampleRate: 16000, Channels: 1}}}
//	ch, err := mic.Capture(ctx, audio.Format{SampleRate: 16000, Channels: 1})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/sortinghat/pkg/audio"
)

// ─── Capture ─────────────────────────────────────────────────────────────────

// Capture is a mock implementation of [audio.Capture].
type Capture struct {
	mu sync.Mutex

	// Frames are delivered on every opened stream, in order. After the last
	// frame the stream stays open until ctx is cancelled, unless CloseAfter
	// is set.
	Frames []audio.AudioFrame

	// CloseAfter closes the stream right after Frames were delivered.
	CloseAfter bool

	// CaptureErr, if non-nil, is returned by Capture.
	CaptureErr error

	// CaptureCalls records the format of every Capture call.
	CaptureCalls []audio.Format
}

// Capture records the call and streams Frames.
func (c *Capture) Capture(ctx context.Context, format audio.Format) (<-chan audio.AudioFrame, error) {
	c.mu.Lock()
	c.CaptureCalls = append(c.CaptureCalls, format)
	err := c.CaptureErr
	frames := append([]audio.AudioFrame(nil), c.Frames...)
	closeAfter := c.CloseAfter
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}

	out := make(chan audio.AudioFrame, len(frames))
	go func() {
		defer close(out)
		for _, f := range frames {
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
		}
		if !closeAfter {
			<-ctx.Done()
		}
	}()
	return out, nil
}

// CallCount returns the number of Capture calls. Thread-safe.
func (c *Capture) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.CaptureCalls)
}

var _ audio.Capture = (*Capture)(nil)

// ─── Player ──────────────────────────────────────────────────────────────────

// PlayCall records a single invocation of [Player.Play].
type PlayCall struct {
	Format audio.Format
	// Data is every chunk received, concatenated.
	Data []byte
}

// Player is a mock implementation of [audio.Player].
type Player struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned by Play after draining the input.
	PlayErr error

	// PlayCalls records every call to Play.
	PlayCalls []PlayCall
}

// Play drains pcm, records what it received and returns PlayErr.
func (p *Player) Play(ctx context.Context, format audio.Format, pcm <-chan []byte) error {
	var data []byte
	for {
		select {
		case chunk, ok := <-pcm:
			if !ok {
				p.mu.Lock()
				defer p.mu.Unlock()
				p.PlayCalls = append(p.PlayCalls, PlayCall{Format: format, Data: data})
				return p.PlayErr
			}
			data = append(data, chunk...)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Calls returns a copy of the recorded calls. Thread-safe.
func (p *Player) Calls() []PlayCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PlayCall(nil), p.PlayCalls...)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Player) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PlayCalls = nil
}

var _ audio.Player = (*Player)(nil)

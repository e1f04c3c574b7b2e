// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to verify that the caller starts sessions with the expected
// StreamConfig. Use Session to feed controlled Transcript values and inspect
// which audio chunks were delivered. Script makes each new session answer
// with the next scripted line, which is how a multi-question conversation is
// simulated.
//
// Example:
//
//	p := &mock.Provider{Script: []string{"Harry", "red"}}
//	handle, _ := p.StartStream(ctx, cfg)
//	handle.Close()
//	tr := <-handle.Finals() // "Harry"
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/sortinghat/pkg/provider/stt"
)

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is returned by StartStream when set.
	Session stt.SessionHandle

	// Script holds one answer per session, consumed in order. A session
	// created after the script is exhausted answers nothing.
	Script []string

	// StartStreamErr, if non-nil, is returned as the error from StartStream.
	StartStreamErr error

	// StartStreamCalls records the config of every StartStream call.
	StartStreamCalls []stt.StreamConfig
}

// StartStream records the call and returns Session or a scripted session.
func (p *Provider) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = append(p.StartStreamCalls, cfg)
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	if p.Session != nil {
		return p.Session, nil
	}
	s := NewSession()
	if len(p.Script) > 0 {
		s.Answer = p.Script[0]
		p.Script = p.Script[1:]
	}
	return s, nil
}

// CallCount returns the number of StartStream calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.StartStreamCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = nil
}

var _ stt.Provider = (*Provider)(nil)

// Session is a mock implementation of stt.SessionHandle.
//
// When Answer is non-empty it is delivered as a final transcript as soon as
// the first audio chunk arrives, or on Close if no audio was sent.
type Session struct {
	mu sync.Mutex

	// Answer is the transcript this session produces.
	Answer string

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// AudioBytes counts the PCM bytes received.
	AudioBytes int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	partials chan stt.Transcript
	finals   chan stt.Transcript
	answered bool
	closed   bool
}

// NewSession returns a Session with buffered channels.
func NewSession() *Session {
	return &Session{
		partials: make(chan stt.Transcript, 4),
		finals:   make(chan stt.Transcript, 4),
	}
}

// SendAudio records the chunk and emits Answer on the first call.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SendAudioErr != nil {
		return s.SendAudioErr
	}
	if s.closed {
		return errClosed
	}
	s.AudioBytes += len(chunk)
	s.answerLocked()
	return nil
}

// Partials returns the partial transcript channel.
func (s *Session) Partials() <-chan stt.Transcript { return s.partials }

// Finals returns the final transcript channel.
func (s *Session) Finals() <-chan stt.Transcript { return s.finals }

// Close emits a pending Answer and closes both channels.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	if !s.closed {
		s.answerLocked()
		s.closed = true
		close(s.partials)
		close(s.finals)
	}
	return s.CloseErr
}

func (s *Session) answerLocked() {
	if s.answered || s.Answer == "" {
		return
	}
	s.answered = true
	s.partials <- stt.Transcript{Text: s.Answer}
	s.finals <- stt.Transcript{Text: s.Answer, IsFinal: true}
}

var _ stt.SessionHandle = (*Session)(nil)

type mockErr string

func (e mockErr) Error() string { return string(e) }

const errClosed = mockErr("mock: session is closed")

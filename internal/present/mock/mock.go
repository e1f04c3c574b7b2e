// Package mock provides a recording present.Surface for tests.
package mock

import (
	"slices"
	"sync"

	"github.com/MrWong99/sortinghat/internal/present"
)

var _ present.Surface = (*Surface)(nil)

// Surface records every call.
type Surface struct {
	mu sync.Mutex

	// CloseErr is returned by Close.
	CloseErr error

	texts       []string
	images      [][]string
	backgrounds []string
	highlights  []bool
	idle        bool
	closeCount  int
}

func (s *Surface) ShowText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
}

func (s *Surface) ShowImage(path string) { s.ShowImages([]string{path}) }

func (s *Surface) ShowImages(paths []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = append(s.images, slices.Clone(paths))
}

func (s *Surface) HideImages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = append(s.images, nil)
}

func (s *Surface) PlayIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idle = true
}

func (s *Surface) StopIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idle = false
}

func (s *Surface) SetBackground(color string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backgrounds = append(s.backgrounds, color)
}

func (s *Surface) SetHighlight(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.highlights = append(s.highlights, on)
}

func (s *Surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCount++
	return s.CloseErr
}

// Texts returns every text shown, in order.
func (s *Surface) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.texts)
}

// Images returns every image set shown, in order. A nil entry records
// HideImages.
func (s *Surface) Images() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.images)
}

// Backgrounds returns every background colour set, in order.
func (s *Surface) Backgrounds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.backgrounds)
}

// Highlights returns every highlight change, in order.
func (s *Surface) Highlights() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.highlights)
}

// Idle reports whether the idle animation is playing.
func (s *Surface) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idle
}

// CloseCount returns how often Close was called.
func (s *Surface) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount
}

// Reset clears all recorded calls.
func (s *Surface) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = nil
	s.images = nil
	s.backgrounds = nil
	s.highlights = nil
	s.idle = false
	s.closeCount = 0
}

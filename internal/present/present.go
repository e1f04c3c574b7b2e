// Package present drives what the ceremony shows while it talks: the current
// line, images of pets and houses, the background colour and the listening
// highlight.
//
// A [Surface] must never block the ceremony. Implementations either do their
// work inline and cheaply ([Log]) or hand it off to a goroutine ([Notify],
// the browser surface in present/web). [Multi] fans calls out to several
// surfaces.
package present

// Surface is the presentation contract of the ceremony. Every method returns
// immediately; presentation failures are the surface's own business.
type Surface interface {
	// ShowText displays the line currently being spoken.
	ShowText(text string)

	// ShowImage displays a single image, replacing any shown before.
	ShowImage(path string)

	// ShowImages displays several images side by side.
	ShowImages(paths []string)

	// HideImages removes every displayed image.
	HideImages()

	// PlayIdle starts the idle animation.
	PlayIdle()

	// StopIdle stops the idle animation.
	StopIdle()

	// SetBackground sets the background colour by name or #rrggbb value.
	SetBackground(color string)

	// SetHighlight turns the listening indicator on or off.
	SetHighlight(on bool)

	// Close releases the surface. Calls after Close are ignored.
	Close() error
}

// Standard background colours of the ceremony.
const (
	// SpeakingBackground is shown while the hat talks.
	SpeakingBackground = "black"

	// ListeningBackground is shown while the hat listens.
	ListeningBackground = "green"
)

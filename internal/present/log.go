package present

import "log/slog"

// Log is a Surface that writes every call to a [slog.Logger]. Lines are
// logged at info level; everything else at debug.
type Log struct {
	l *slog.Logger
}

var _ Surface = (*Log)(nil)

// NewLog returns a Log surface writing to l, or to the default logger when l
// is nil.
func NewLog(l *slog.Logger) *Log {
	if l == nil {
		l = slog.Default()
	}
	return &Log{l: l.With("surface", "log")}
}

func (s *Log) ShowText(text string) { s.l.Info("hat says", "text", text) }
func (s *Log) ShowImage(path string) { s.l.Debug("show image", "path", path) }
func (s *Log) ShowImages(paths []string) { s.l.Debug("show images", "paths", paths) }
func (s *Log) HideImages() { s.l.Debug("hide images") }
func (s *Log) PlayIdle() { s.l.Debug("idle animation", "playing", true) }
func (s *Log) StopIdle() { s.l.Debug("idle animation", "playing", false) }
func (s *Log) SetBackground(color string) { s.l.Debug("background", "color", color) }
func (s *Log) SetHighlight(on bool) { s.l.Debug("highlight", "on", on) }
func (s *Log) Close() error { return nil }

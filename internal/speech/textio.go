package speech

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// TextIO implements [Output] and [Input] on a terminal: lines are printed
// to w and answers are read line by line from r.
type TextIO struct {
	w      io.Writer
	prefix string
	scale  float64

	r     io.Reader
	once  sync.Once
	lines chan string
	wmu   sync.Mutex

	done      chan struct{}
	closeOnce sync.Once

	// stopped is closed when the reader goroutine exits.
	stopped chan struct{}
}

var (
	_ Output = (*TextIO)(nil)
	_ Input  = (*TextIO)(nil)
)

// TextOption configures a [TextIO].
type TextOption func(*TextIO)

// WithPrefix sets the speaker label printed before every line.
func WithPrefix(p string) TextOption {
	return func(t *TextIO) { t.prefix = p }
}

// WithWindowScale multiplies every listening window. Typing takes longer
// than speaking; the default scale is 5.
func WithWindowScale(f float64) TextOption {
	return func(t *TextIO) { t.scale = f }
}

// NewTextIO returns a TextIO reading answers from r and printing to w.
func NewTextIO(r io.Reader, w io.Writer, opts ...TextOption) *TextIO {
	t := &TextIO{r: r, w: w, prefix: "Sorting Hat", scale: 5, done: make(chan struct{}), stopped: make(chan struct{})}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Speak prints text.
func (t *TextIO) Speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.wmu.Lock()
	defer t.wmu.Unlock()
	_, err := fmt.Fprintf(t.w, "%s: %s\n", t.prefix, text)
	return err
}

// Listen prints a prompt marker and returns the next line typed within the
// scaled window. A line typed after the window expired is returned by the
// following Listen call.
func (t *TextIO) Listen(ctx context.Context, window time.Duration) (string, error) {
	select {
	case <-t.done:
		return "", io.EOF
	default:
	}
	t.once.Do(t.startReader)

	t.wmu.Lock()
	_, _ = fmt.Fprint(t.w, "> ")
	t.wmu.Unlock()

	timer := time.NewTimer(time.Duration(float64(window) * t.scale))
	defer timer.Stop()
	select {
	case line, ok := <-t.lines:
		if !ok {
			return "", io.EOF
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return "", ErrNoSpeech
		}
		return line, nil
	case <-timer.C:
		t.wmu.Lock()
		_, _ = fmt.Fprintln(t.w)
		t.wmu.Unlock()
		return "", ErrNoSpeech
	case <-ctx.Done():
		return "", ctx.Err()
	case <-t.done:
		return "", io.EOF
	}
}

// Close stops the line reader. A reader blocked on r exits after its next
// line; r itself is not closed. Listen returns [io.EOF] afterwards.
func (t *TextIO) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}

// Calibrate is a no-op; there is no ambient noise on a keyboard.
func (t *TextIO) Calibrate(context.Context, time.Duration) error { return nil }

func (t *TextIO) startReader() {
	t.lines = make(chan string, 1)
	go func() {
		defer close(t.stopped)
		defer close(t.lines)
		sc := bufio.NewScanner(t.r)
		for sc.Scan() {
			select {
			case t.lines <- sc.Text():
			case <-t.done:
				return
			}
		}
	}()
}

package present

import (
	"log/slog"
	"sync"

	"github.com/gen2brain/beeep"
)

const notifyTitle = "Sorting Hat"

// notifyFunc matches [beeep.Notify].
type notifyFunc func(title, message, icon string) error

// Notify is a Surface that raises a desktop notification for every spoken
// line, using the most recently shown image as the notification icon.
// Notifications are delivered in order on a background goroutine; when the
// queue is full new lines are dropped.
type Notify struct {
	send notifyFunc

	mu     sync.Mutex
	icon   string
	closed bool
	queue  chan [2]string
	done   chan struct{}
}

var _ Surface = (*Notify)(nil)

// NewNotify starts a Notify surface.
func NewNotify() *Notify {
	return newNotify(beeep.Notify)
}

func newNotify(send notifyFunc) *Notify {
	n := &Notify{
		send:  send,
		queue: make(chan [2]string, 8),
		done:  make(chan struct{}),
	}
	go n.loop()
	return n
}

func (n *Notify) loop() {
	defer close(n.done)
	for msg := range n.queue {
		if err := n.send(notifyTitle, msg[0], msg[1]); err != nil {
			slog.Debug("desktop notification failed", "err", err)
		}
	}
}

// ShowText queues a notification with text.
func (n *Notify) ShowText(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- [2]string{text, n.icon}:
	default:
		slog.Debug("notification queue full, dropping line")
	}
}

// ShowImage remembers path as the icon of following notifications.
func (n *Notify) ShowImage(path string) {
	n.mu.Lock()
	n.icon = path
	n.mu.Unlock()
}

// ShowImages uses the first image as icon.
func (n *Notify) ShowImages(paths []string) {
	if len(paths) > 0 {
		n.ShowImage(paths[0])
	}
}

// HideImages clears the icon.
func (n *Notify) HideImages() { n.ShowImage("") }

func (n *Notify) PlayIdle() {}
func (n *Notify) StopIdle() {}
func (n *Notify) SetBackground(string) {}
func (n *Notify) SetHighlight(bool) {}

// Close delivers queued notifications and stops the goroutine.
func (n *Notify) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()
	<-n.done
	return nil
}

// Package web is a browser presentation surface. It serves a single page
// that renders the ceremony full screen, and pushes every presentation
// change to connected pages as JSON over a websocket.
//
// Routes:
//
//	GET /          the ceremony page
//	GET /ws        websocket stream of [Command] values
//	GET /assets/*  files from the asset directory (pet and house images)
//
// A page that connects late first receives a "state" command carrying the
// current [State], so reloading the browser mid-ceremony is harmless.
package web

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/sortinghat/internal/present"
)

//go:embed index.html
var indexHTML []byte

const (
	clientBuffer = 32
	writeTimeout = 5 * time.Second
)

// State is the full presentation state.
type State struct {
	Text       string   `json:"text"`
	Images     []string `json:"images"`
	Idle       bool     `json:"idle"`
	Background string   `json:"background"`
	Highlight  bool     `json:"highlight"`
}

// Command is one message on the websocket.
type Command struct {
	// Type is one of "state", "text", "images", "idle", "background",
	// "highlight".
	Type string `json:"type"`

	Text   string   `json:"text,omitempty"`
	Images []string `json:"images,omitempty"`
	Color  string   `json:"color,omitempty"`
	On     bool     `json:"on,omitempty"`
	State  *State   `json:"state,omitempty"`
}

type client struct {
	send chan []byte
}

// Surface implements [present.Surface] for browsers.
type Surface struct {
	assetDir string

	mu      sync.Mutex
	state   State
	clients map[*client]struct{}
	closed  bool
}

var _ present.Surface = (*Surface)(nil)

// New returns a Surface serving images from assetDir.
func New(assetDir string) *Surface {
	return &Surface{
		assetDir: assetDir,
		state:    State{Background: present.SpeakingBackground},
		clients:  make(map[*client]struct{}),
	}
}

// Handler returns the HTTP handler serving the page, the websocket and the
// assets.
func (s *Surface) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServer(http.Dir(s.assetDir))))
	return mux
}

// Snapshot returns a copy of the current state.
func (s *Surface) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Images = append([]string(nil), s.state.Images...)
	return st
}

// Clients returns the number of connected pages.
func (s *Surface) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Surface) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Surface) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("web surface: websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	c := &client{send: make(chan []byte, clientBuffer)}
	if !s.register(c) {
		conn.Close(websocket.StatusGoingAway, "ceremony over")
		return
	}
	defer s.unregister(c)

	// The page never sends anything; CloseRead notices when it goes away.
	ctx := conn.CloseRead(r.Context())
	slog.Debug("web surface: page connected", "remote", r.RemoteAddr)

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "ceremony over")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				slog.Debug("web surface: write failed", "err", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// register adds c and queues the state snapshot as its first message.
func (s *Surface) register(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	st := s.state
	c.send <- encode(Command{Type: "state", State: &st})
	s.clients[c] = struct{}{}
	return true
}

func (s *Surface) unregister(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
}

// apply mutates the state and broadcasts cmd while holding the lock, so
// snapshots and broadcasts are never interleaved.
func (s *Surface) apply(cmd Command, mutate func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	mutate(&s.state)
	msg := encode(cmd)
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			slog.Debug("web surface: client too slow, dropping command", "type", cmd.Type)
		}
	}
}

func encode(cmd Command) []byte {
	b, _ := json.Marshal(cmd)
	return b
}

// assetURL maps a file path below the asset directory to its URL.
func (s *Surface) assetURL(p string) string {
	rel, err := filepath.Rel(s.assetDir, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(p)
	}
	return path.Join("/assets", filepath.ToSlash(rel))
}

func (s *Surface) ShowText(text string) {
	s.apply(Command{Type: "text", Text: text}, func(st *State) { st.Text = text })
}

func (s *Surface) ShowImage(p string) {
	s.ShowImages([]string{p})
}

func (s *Surface) ShowImages(paths []string) {
	urls := make([]string, len(paths))
	for i, p := range paths {
		urls[i] = s.assetURL(p)
	}
	s.apply(Command{Type: "images", Images: urls}, func(st *State) { st.Images = urls })
}

func (s *Surface) HideImages() {
	s.apply(Command{Type: "images"}, func(st *State) { st.Images = nil })
}

func (s *Surface) PlayIdle() {
	s.apply(Command{Type: "idle", On: true}, func(st *State) { st.Idle = true })
}

func (s *Surface) StopIdle() {
	s.apply(Command{Type: "idle"}, func(st *State) { st.Idle = false })
}

func (s *Surface) SetBackground(color string) {
	s.apply(Command{Type: "background", Color: color}, func(st *State) { st.Background = color })
}

func (s *Surface) SetHighlight(on bool) {
	s.apply(Command{Type: "highlight", On: on}, func(st *State) { st.Highlight = on })
}

// Close disconnects every page. Later calls are ignored.
func (s *Surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for c := range s.clients {
		close(c.send)
		delete(s.clients, c)
	}
	return nil
}

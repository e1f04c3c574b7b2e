package web_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/sortinghat/internal/present/web"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) web.Command {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var cmd web.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return cmd
}

func waitClients(t *testing.T, s *web.Surface, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", s.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSurface_SnapshotThenCommands(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := web.New(dir)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	s.ShowText("Welcome to Hogwarts!")
	s.SetBackground("green")
	s.ShowImages([]string{filepath.Join(dir, "owl.png"), filepath.Join(dir, "cat.png")})

	conn := dial(t, srv)
	snap := read(t, conn)
	if snap.Type != "state" || snap.State == nil {
		t.Fatalf("first command = %+v, want state snapshot", snap)
	}
	if snap.State.Text != "Welcome to Hogwarts!" || snap.State.Background != "green" {
		t.Errorf("snapshot = %+v", snap.State)
	}
	if len(snap.State.Images) != 2 || snap.State.Images[0] != "/assets/owl.png" {
		t.Errorf("snapshot images = %v", snap.State.Images)
	}

	waitClients(t, s, 1)
	s.SetHighlight(true)
	if cmd := read(t, conn); cmd.Type != "highlight" || !cmd.On {
		t.Errorf("command = %+v, want highlight on", cmd)
	}
	s.ShowText("What is your name?")
	if cmd := read(t, conn); cmd.Type != "text" || cmd.Text != "What is your name?" {
		t.Errorf("command = %+v, want text", cmd)
	}
	s.HideImages()
	if cmd := read(t, conn); cmd.Type != "images" || len(cmd.Images) != 0 {
		t.Errorf("command = %+v, want empty images", cmd)
	}
	if got := s.Snapshot(); !got.Highlight || got.Images != nil {
		t.Errorf("Snapshot() = %+v", got)
	}
}

func TestSurface_CloseDisconnects(t *testing.T) {
	t.Parallel()

	s := web.New(t.TempDir())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	read(t, conn)
	waitClients(t, s, 1)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		t.Errorf("read after Close: %v, want normal closure", err)
	}
	if s.Clients() != 0 {
		t.Errorf("Clients() = %d after Close", s.Clients())
	}
	// Calls after Close are ignored.
	s.ShowText("ignored")
	if got := s.Snapshot().Text; got != "" {
		t.Errorf("text after Close = %q", got)
	}
}

func TestSurface_PageAndAssets(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "owl.png"), []byte("not really a png"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := web.New(dir)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{path: "/", wantStatus: http.StatusOK, wantBody: "<title>Sorting Hat</title>"},
		{path: "/assets/owl.png", wantStatus: http.StatusOK, wantBody: "not really a png"},
		{path: "/assets/missing.png", wantStatus: http.StatusNotFound},
		{path: "/nope", wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if !strings.Contains(string(body), tt.wantBody) {
				t.Errorf("body missing %q", tt.wantBody)
			}
		})
	}
}

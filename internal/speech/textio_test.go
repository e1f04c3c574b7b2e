package speech

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestTextIO_CloseStopsReader(t *testing.T) {
	t.Parallel()

	tio := NewTextIO(strings.NewReader("owl\ncat\nrat\n"), io.Discard)
	ctx := context.Background()
	if got, err := tio.Listen(ctx, time.Second); err != nil || got != "owl" {
		t.Fatalf("Listen = %q, %v, want owl", got, err)
	}

	// "cat" sits in the buffer and nobody will ask for "rat".
	if err := tio.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-tio.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("reader still blocked after Close")
	}

	if _, err := tio.Listen(ctx, time.Second); !errors.Is(err, io.EOF) {
		t.Errorf("Listen after Close = %v, want io.EOF", err)
	}
	if err := tio.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

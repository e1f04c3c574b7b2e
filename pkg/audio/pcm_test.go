package audio_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/sortinghat/pkg/audio"
	"github.com/MrWong99/sortinghat/pkg/audio/mock"
)

func TestWAVRoundTrip(t *testing.T) {
	t.Parallel()

	pcm := samplesToBytes([]int16{0, 1000, -1000, 32767, -32768, 5})
	f := audio.Format{SampleRate: 22050, Channels: 1}

	gotPCM, gotFormat, err := audio.DecodeWAV(bytes.NewReader(audio.EncodeWAV(pcm, f)))
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if gotFormat != f {
		t.Errorf("format = %+v, want %+v", gotFormat, f)
	}
	if !bytes.Equal(gotPCM, pcm) {
		t.Errorf("pcm = %v, want %v", gotPCM, pcm)
	}
}

func TestDecodeWAV_SkipsUnknownChunks(t *testing.T) {
	t.Parallel()

	pcm := samplesToBytes([]int16{1, 2, 3})
	wav := audio.EncodeWAV(pcm, audio.Format{SampleRate: 16000, Channels: 1})

	// Insert an odd-sized LIST chunk between fmt and data.
	var b bytes.Buffer
	b.Write(wav[:36])
	b.WriteString("LIST")
	b.Write([]byte{3, 0, 0, 0, 'a', 'b', 'c', 0})
	b.Write(wav[36:])

	got, _, err := audio.DecodeWAV(&b)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("pcm = %v, want %v", got, pcm)
	}
}

func TestDecodeWAV_RejectsNonWAV(t *testing.T) {
	t.Parallel()

	_, _, err := audio.DecodeWAV(bytes.NewReader([]byte("ID3\x04\x00\x00\x00\x00\x00\x00\x00\x00")))
	if !errors.Is(err, audio.ErrNotWAV) {
		t.Errorf("DecodeWAV(mp3) err = %v, want ErrNotWAV", err)
	}
}

func TestRMS(t *testing.T) {
	t.Parallel()

	if got := audio.RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %f, want 0", got)
	}
	if got := audio.RMS(samplesToBytes([]int16{300, -300, 300, -300})); got != 300 {
		t.Errorf("RMS(±300) = %f, want 300", got)
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	f := audio.Format{SampleRate: 16000, Channels: 1}
	if got := f.Duration(32000); got != time.Second {
		t.Errorf("Duration(32000) = %v, want 1s", got)
	}
	if got := (audio.Format{}).Duration(100); got != 0 {
		t.Errorf("Duration on zero format = %v, want 0", got)
	}
}

func TestFloat32Mono(t *testing.T) {
	t.Parallel()

	stereo := samplesToBytes([]int16{16384, 0, -16384, -16384})
	got := audio.Float32Mono(stereo, 2)
	want := []float32{0.25, -0.5}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestChunks(t *testing.T) {
	t.Parallel()

	f := audio.Format{SampleRate: 1000, Channels: 1} // 2000 B/s
	pcm := make([]byte, 450)
	var sizes []int
	for c := range audio.Chunks(pcm, f, 100) {
		sizes = append(sizes, len(c))
	}
	want := []int{200, 200, 50}
	if len(sizes) != len(want) {
		t.Fatalf("chunk sizes = %v, want %v", sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("chunk sizes = %v, want %v", sizes, want)
			break
		}
	}
}

func TestFilePlayer(t *testing.T) {
	t.Parallel()

	pcm := samplesToBytes(make([]int16, 4000))
	f := audio.Format{SampleRate: 8000, Channels: 1}
	path := filepath.Join(t.TempDir(), "Gryffindor.wav")
	if err := os.WriteFile(path, audio.EncodeWAV(pcm, f), 0o600); err != nil {
		t.Fatal(err)
	}

	p := &mock.Player{}
	if err := audio.NewFilePlayer(p).PlayFile(context.Background(), path); err != nil {
		t.Fatalf("PlayFile: %v", err)
	}
	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("Play calls = %d, want 1", len(calls))
	}
	if calls[0].Format != f || !bytes.Equal(calls[0].Data, pcm) {
		t.Errorf("played %d bytes at %+v, want %d bytes at %+v", len(calls[0].Data), calls[0].Format, len(pcm), f)
	}

	if err := audio.NewFilePlayer(p).PlayFile(context.Background(), filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("PlayFile(missing): expected error")
	}
}

package audio

import (
	"context"
	"fmt"
	"os"
)

// chunkMs is the amount of audio handed to the device per write when
// playing a file.
const chunkMs = 100

// FilePlayer plays WAV files through a [Player].
type FilePlayer struct {
	player Player
}

// NewFilePlayer returns a [FilePlayer] writing to p.
func NewFilePlayer(p Player) *FilePlayer {
	return &FilePlayer{player: p}
}

// PlayFile decodes the WAV file at path and plays it, blocking until
// playback finishes or ctx is cancelled.
func (fp *FilePlayer) PlayFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("audio: open %q: %w", path, err)
	}
	defer f.Close()

	pcm, format, err := DecodeWAV(f)
	if err != nil {
		return fmt.Errorf("audio: decode %q: %w", path, err)
	}
	return fp.player.Play(ctx, format, Chunks(pcm, format, chunkMs))
}

// Chunks splits pcm into frame-aligned pieces of roughly ms milliseconds and
// returns them on a closed, fully buffered channel.
func Chunks(pcm []byte, f Format, ms int) <-chan []byte {
	size := f.BytesPerSecond() * ms / 1000
	align := f.Channels * BitsPerSample / 8
	if align <= 0 {
		align = 2
	}
	size -= size % align
	if size <= 0 {
		size = len(pcm)
	}

	n := 0
	if size > 0 {
		n = (len(pcm) + size - 1) / size
	}
	ch := make(chan []byte, n)
	for off := 0; off < len(pcm); off += size {
		end := min(off+size, len(pcm))
		ch <- pcm[off:end]
	}
	close(ch)
	return ch
}

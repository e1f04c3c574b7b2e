package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// Format describes the layout of a 16-bit little-endian PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// String renders f as e.g. "22050Hz mono".
func (f Format) String() string {
	switch f.Channels {
	case 1:
		return fmt.Sprintf("%dHz mono", f.SampleRate)
	case 2:
		return fmt.Sprintf("%dHz stereo", f.SampleRate)
	default:
		return fmt.Sprintf("%dHz %dch", f.SampleRate, f.Channels)
	}
}

// aligned reports whether n bytes hold a whole number of sample frames.
func (f Format) aligned(n int) bool {
	return f.Channels > 0 && n%(2*f.Channels) == 0
}

// FormatConverter rewrites frames into Target. Frames whose length is not a
// whole number of sample frames are dropped. One converter per stream.
type FormatConverter struct {
	Target Format

	mismatch sync.Once
	corrupt  sync.Once
}

// Convert returns frame in the target format. Frames already in the target
// format are returned as is.
func (c *FormatConverter) Convert(frame AudioFrame) AudioFrame {
	src := frame.Format()
	if !src.aligned(len(frame.Data)) {
		c.corrupt.Do(func() {
			slog.Warn("dropping misaligned pcm frame", "bytes", len(frame.Data), "format", src.String())
		})
		return AudioFrame{SampleRate: c.Target.SampleRate, Channels: c.Target.Channels, Timestamp: frame.Timestamp}
	}
	if src == c.Target {
		return frame
	}
	c.mismatch.Do(func() {
		slog.Debug("converting pcm", "from", src.String(), "to", c.Target.String())
	})
	return AudioFrame{
		Data:       ConvertPCM(frame.Data, src, c.Target),
		SampleRate: c.Target.SampleRate,
		Channels:   c.Target.Channels,
		Timestamp:  frame.Timestamp,
	}
}

// ConvertChunks converts a stream of raw PCM chunks from src to dst. The
// returned channel closes when in closes. Chunks that convert to nothing are
// skipped. When src equals dst, in is returned.
func ConvertChunks(in <-chan []byte, src, dst Format) <-chan []byte {
	if src == dst {
		return in
	}
	out := make(chan []byte, cap(in))
	go func() {
		defer close(out)
		conv := FormatConverter{Target: dst}
		for c := range in {
			f := conv.Convert(AudioFrame{Data: c, SampleRate: src.SampleRate, Channels: src.Channels})
			if len(f.Data) > 0 {
				out <- f.Data
			}
		}
	}()
	return out
}

// ConvertPCM converts a PCM buffer from src to dst. A trailing partial
// sample frame is discarded. Channels are folded down before resampling and
// spread out after it, so the resampler always runs on the narrower layout.
func ConvertPCM(pcm []byte, src, dst Format) []byte {
	if src == dst || src.Channels <= 0 || dst.Channels <= 0 {
		return pcm
	}
	s := decode(pcm, src.Channels)
	if dst.Channels < src.Channels {
		s = remix(s, src.Channels, dst.Channels)
		s = resample(s, dst.Channels, src.SampleRate, dst.SampleRate)
	} else {
		s = resample(s, src.Channels, src.SampleRate, dst.SampleRate)
		s = remix(s, src.Channels, dst.Channels)
	}
	return encode(s)
}

func decode(pcm []byte, channels int) []int16 {
	n := len(pcm) / (2 * channels) * channels
	s := make([]int16, n)
	for i := range s {
		s[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return s
}

func encode(s []int16) []byte {
	out := make([]byte, 2*len(s))
	for i, v := range s {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

// remix maps interleaved samples from one channel count to another. Folding
// to mono averages every channel; other layouts copy channel j from source
// channel j modulo the source count.
func remix(s []int16, from, to int) []int16 {
	if from == to {
		return s
	}
	frames := len(s) / from
	out := make([]int16, frames*to)
	for f := range frames {
		in := s[f*from : (f+1)*from]
		if to == 1 {
			var sum int32
			for _, v := range in {
				sum += int32(v)
			}
			out[f] = int16(sum / int32(from))
			continue
		}
		for j := range to {
			out[f*to+j] = in[j%from]
		}
	}
	return out
}

// resample converts interleaved samples between rates by linear
// interpolation. Non-positive rates leave the input untouched.
func resample(s []int16, channels, src, dst int) []int16 {
	if src <= 0 || dst <= 0 || src == dst {
		return s
	}
	in := len(s) / channels
	if in == 0 {
		return s
	}
	n := int(int64(in) * int64(dst) / int64(src))
	out := make([]int16, n*channels)
	step := float64(src) / float64(dst)
	for i := range n {
		pos := float64(i) * step
		k := int(pos)
		frac := pos - float64(k)
		next := min(k+1, in-1)
		for ch := range channels {
			a := float64(s[k*channels+ch])
			b := float64(s[next*channels+ch])
			out[i*channels+ch] = int16(math.Round(a + (b-a)*frac))
		}
	}
	return out
}

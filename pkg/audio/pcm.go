package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

// BitsPerSample is fixed at 16: every PCM buffer in this module is 16-bit
// signed little-endian.
const BitsPerSample = 16

// ErrNotWAV is returned by [DecodeWAV] for input without a RIFF/WAVE header.
var ErrNotWAV = errors.New("audio: not a RIFF/WAVE stream")

// BytesPerSecond returns the PCM byte rate of f.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * BitsPerSample / 8
}

// Duration returns how long n bytes of PCM in format f play for. It returns
// 0 for an invalid format.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// RMS returns the root-mean-square energy of a 16-bit PCM buffer in sample
// units (0–32 767). Returns 0 for buffers shorter than one sample.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// Float32Mono down-mixes 16-bit PCM with the given channel count to mono
// float32 samples in [-1, 1].
func Float32Mono(pcm []byte, channels int) []float32 {
	if channels < 1 {
		channels = 1
	}
	frames := len(pcm) / (2 * channels)
	mono := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			idx := (i*channels + ch) * 2
			sum += float32(int16(binary.LittleEndian.Uint16(pcm[idx:]))) / 32768.0
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// EncodeWAV wraps pcm in a canonical 44-byte RIFF/WAVE header.
func EncodeWAV(pcm []byte, f Format) []byte {
	blockAlign := f.Channels * BitsPerSample / 8
	buf := make([]byte, 44+len(pcm))

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(f.BytesPerSecond()))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], BitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[44:], pcm)
	return buf
}

// DecodeWAV reads a 16-bit PCM WAV stream and returns its samples and format.
// Chunks other than "fmt " and "data" are skipped.
func DecodeWAV(r io.Reader) ([]byte, Format, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, Format{}, fmt.Errorf("audio: read wav header: %w", err)
	}
	if string(hdr[0:4]) != "RIFF" || string(hdr[8:12]) != "WAVE" {
		return nil, Format{}, ErrNotWAV
	}

	var (
		f       Format
		haveFmt bool
	)
	for {
		var ch [8]byte
		if _, err := io.ReadFull(r, ch[:]); err != nil {
			return nil, Format{}, fmt.Errorf("audio: read wav chunk: %w", err)
		}
		id := string(ch[0:4])
		size := int64(binary.LittleEndian.Uint32(ch[4:8]))

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, Format{}, fmt.Errorf("audio: read wav fmt: %w", err)
			}
			if size < 16 {
				return nil, Format{}, fmt.Errorf("audio: wav fmt chunk too short (%d bytes)", size)
			}
			if tag := binary.LittleEndian.Uint16(body[0:2]); tag != 1 {
				return nil, Format{}, fmt.Errorf("audio: unsupported wav encoding %d", tag)
			}
			if bits := binary.LittleEndian.Uint16(body[14:16]); bits != BitsPerSample {
				return nil, Format{}, fmt.Errorf("audio: unsupported wav bit depth %d", bits)
			}
			f.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			f.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, Format{}, errors.New("audio: wav data chunk before fmt chunk")
			}
			pcm := make([]byte, size)
			if _, err := io.ReadFull(r, pcm); err != nil {
				return nil, Format{}, fmt.Errorf("audio: read wav data: %w", err)
			}
			return pcm, f, nil
		default:
			// RIFF chunks are word aligned.
			if _, err := io.CopyN(io.Discard, r, size+size%2); err != nil {
				return nil, Format{}, fmt.Errorf("audio: skip wav chunk %q: %w", id, err)
			}
		}
	}
}

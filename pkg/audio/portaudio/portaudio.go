// Package portaudio implements [audio.Capture] and [audio.Player] on system
// audio devices through PortAudio.
//
// [Open] initialises the PortAudio library; [Device.Close] terminates it.
// Exactly one Device should exist per process.
package portaudio

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/MrWong99/sortinghat/pkg/audio"
)

// defaultFramesPerBuffer is the PortAudio buffer size in frames.
const defaultFramesPerBuffer = 1024

// Option configures a [Device].
type Option func(*Device)

// WithFramesPerBuffer sets the PortAudio buffer size. Defaults to 1024.
func WithFramesPerBuffer(n int) Option {
	return func(d *Device) {
		if n > 0 {
			d.framesPerBuffer = n
		}
	}
}

// WithInputDevice selects the microphone whose name contains name
// (case-insensitive). Empty selects the system default.
func WithInputDevice(name string) Option {
	return func(d *Device) { d.inputName = name }
}

// WithOutputDevice selects the speaker whose name contains name
// (case-insensitive). Empty selects the system default.
func WithOutputDevice(name string) Option {
	return func(d *Device) { d.outputName = name }
}

// Device is a PortAudio input and output device pair.
type Device struct {
	framesPerBuffer int
	inputName       string
	outputName      string

	// playMu serialises playback; two overlapping voices are never wanted.
	playMu sync.Mutex

	closeOnce sync.Once
}

var (
	_ audio.Capture = (*Device)(nil)
	_ audio.Player  = (*Device)(nil)
)

// Open initialises PortAudio and returns a Device.
func Open(opts ...Option) (*Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	d := &Device{framesPerBuffer: defaultFramesPerBuffer}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Capture opens the default input device. Frames are read on a dedicated
// goroutine that stops and closes the stream once ctx is cancelled.
func (d *Device) Capture(ctx context.Context, format audio.Format) (<-chan audio.AudioFrame, error) {
	buf := make([]int16, d.framesPerBuffer*format.Channels)
	stream, err := d.open(d.inputName, true, format, buf)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open input: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("portaudio: start input: %w", err)
	}

	out := make(chan audio.AudioFrame, 64)
	go func() {
		defer close(out)
		defer func() {
			if err := stream.Stop(); err != nil {
				slog.Debug("portaudio: stop input", "err", err)
			}
			stream.Close()
		}()

		start := time.Now()
		for ctx.Err() == nil {
			if err := stream.Read(); err != nil {
				// Overflow is recoverable: the read still filled buf.
				if err != portaudio.InputOverflowed {
					slog.Warn("portaudio: read input", "err", err)
					return
				}
			}
			frame := audio.AudioFrame{
				Data:       int16ToBytes(buf),
				SampleRate: format.SampleRate,
				Channels:   format.Channels,
				Timestamp:  time.Since(start),
			}
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Play opens the default output device for format and writes every chunk from
// pcm. Partial buffers are padded with silence.
func (d *Device) Play(ctx context.Context, format audio.Format, pcm <-chan []byte) error {
	d.playMu.Lock()
	defer d.playMu.Unlock()

	buf := make([]int16, d.framesPerBuffer*format.Channels)
	stream, err := d.open(d.outputName, false, format, buf)
	if err != nil {
		audio.Drain(pcm)
		return fmt.Errorf("portaudio: open output: %w", err)
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		audio.Drain(pcm)
		return fmt.Errorf("portaudio: start output: %w", err)
	}
	defer stream.Stop()

	var pending []int16
	flush := func(final bool) error {
		for len(pending) >= len(buf) || (final && len(pending) > 0) {
			n := copy(buf, pending)
			clear(buf[n:])
			pending = pending[n:]
			if err := stream.Write(); err != nil && err != portaudio.OutputUnderflowed {
				return fmt.Errorf("portaudio: write output: %w", err)
			}
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			go audio.Drain(pcm)
			return ctx.Err()
		case chunk, ok := <-pcm:
			if !ok {
				return flush(true)
			}
			pending = append(pending, bytesToInt16(chunk)...)
			if err := flush(false); err != nil {
				go audio.Drain(pcm)
				return err
			}
		}
	}
}

// Close terminates PortAudio. Calling Close more than once is safe.
func (d *Device) Close() error {
	var err error
	d.closeOnce.Do(func() {
		err = portaudio.Terminate()
	})
	return err
}

// open opens a one-directional stream on the device called name, or on the
// default device when name is empty.
func (d *Device) open(name string, input bool, format audio.Format, buf []int16) (*portaudio.Stream, error) {
	if name == "" {
		if input {
			return portaudio.OpenDefaultStream(format.Channels, 0, float64(format.SampleRate), d.framesPerBuffer, buf)
		}
		return portaudio.OpenDefaultStream(0, format.Channels, float64(format.SampleRate), d.framesPerBuffer, buf)
	}
	dev, err := findDevice(name, input)
	if err != nil {
		return nil, err
	}
	var p portaudio.StreamParameters
	if input {
		p = portaudio.LowLatencyParameters(dev, nil)
		p.Input.Channels = format.Channels
	} else {
		p = portaudio.LowLatencyParameters(nil, dev)
		p.Output.Channels = format.Channels
	}
	p.SampleRate = float64(format.SampleRate)
	p.FramesPerBuffer = d.framesPerBuffer
	return portaudio.OpenStream(p, buf)
}

func findDevice(name string, input bool) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	want := strings.ToLower(name)
	for _, dev := range devices {
		if input && dev.MaxInputChannels == 0 || !input && dev.MaxOutputChannels == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(dev.Name), want) {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("no device matching %q", name)
}

func int16ToBytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func bytesToInt16(b []byte) []int16 {
	s := make([]int16, len(b)/2)
	for i := range s {
		s[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return s
}

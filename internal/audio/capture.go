package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// FrameBytes is one 20 ms frame at 16 kHz mono s16.
const FrameBytes = 640

// Capture records one Pulse source and pushes fixed-size frames to a sink.
type Capture struct {
	device Device

	client *pulse.Client
	stream *pulse.RecordStream

	frames chan []byte
	stopCh chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	pending []byte
	stopped bool

	inflight sync.WaitGroup
	bytes    atomic.Int64
}

func newCapture(device Device, onFrame func([]byte)) *Capture {
	c := &Capture{
		device: device,
		frames: make(chan []byte, 128),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(c.done)
		for frame := range c.frames {
			if onFrame != nil {
				onFrame(frame)
			}
		}
	}()
	return c
}

// StartCapture opens a 16 kHz mono s16 record stream on the selected source.
// onFrame runs on a dedicated goroutine in arrival order.
func StartCapture(ctx context.Context, selected Device, onFrame func([]byte)) (*Capture, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	capture := newCapture(selected, onFrame)
	capture.client = client

	writer := pulse.NewWriter(writerFunc(capture.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(DefaultFormat.SampleRate),
		pulse.RecordBufferFragmentSize(FrameBytes),
		pulse.RecordMediaName("voyc dictation"),
	)
	if err != nil {
		_ = capture.Stop()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	capture.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			_ = capture.Stop()
		case <-capture.stopCh:
		}
	}()

	return capture, nil
}

// Device returns the source being recorded.
func (c *Capture) Device() Device {
	return c.device
}

// BytesCaptured reports total bytes accepted from Pulse.
func (c *Capture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// Stop halts the stream, flushes the trailing partial frame, and returns once
// every frame has been handed to the sink. It is safe to call repeatedly.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		<-c.done
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.inflight.Wait()

	c.mu.Lock()
	tail := c.pending
	c.pending = nil
	c.mu.Unlock()
	if len(tail) > 0 {
		c.frames <- tail
	}

	close(c.frames)
	<-c.done
	return nil
}

func (c *Capture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Add under the same lock that guards stopped so Stop's Wait cannot race it.
	c.inflight.Add(1)
	defer c.inflight.Done()

	c.pending = append(c.pending, buffer...)
	var ready [][]byte
	for len(c.pending) >= FrameBytes {
		frame := make([]byte, FrameBytes)
		copy(frame, c.pending[:FrameBytes])
		c.pending = c.pending[FrameBytes:]
		ready = append(ready, frame)
	}
	c.mu.Unlock()

	c.bytes.Add(int64(len(buffer)))

	for _, frame := range ready {
		select {
		case <-c.stopCh:
			return 0, io.EOF
		case c.frames <- frame:
		}
	}
	return len(buffer), nil
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}

// PulseSource is the capture collaborator used by the dictation loop. It
// resolves the configured device on every Start.
type PulseSource struct {
	Input    string
	Fallback string
	Logger   *slog.Logger

	mu      sync.Mutex
	capture *Capture
}

// Start selects a device and begins pushing frames to onFrame. It returns
// once the record stream is running.
func (s *PulseSource) Start(ctx context.Context, onFrame func([]byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture != nil {
		return fmt.Errorf("capture already running on %q", s.capture.Device().ID)
	}

	selection, err := SelectDevice(ctx, s.Input, s.Fallback)
	if err != nil {
		return err
	}
	if selection.Warning != "" && s.Logger != nil {
		s.Logger.Warn(selection.Warning)
	}

	capture, err := StartCapture(ctx, selection.Device, onFrame)
	if err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Info("capture started",
			"device", selection.Device.ID,
			"description", selection.Device.Description,
			"fallback", selection.Fallback,
		)
	}
	s.capture = capture
	return nil
}

// Configure changes the device preference used by the next Start.
func (s *PulseSource) Configure(input string, fallback string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Input = input
	s.Fallback = fallback
}

// Stop ends the active capture, if any.
func (s *PulseSource) Stop() error {
	s.mu.Lock()
	capture := s.capture
	s.capture = nil
	s.mu.Unlock()

	if capture == nil {
		return nil
	}
	err := capture.Stop()
	if s.Logger != nil {
		s.Logger.Info("capture stopped",
			"device", capture.Device().ID,
			"bytes_captured", capture.BytesCaptured(),
		)
	}
	return err
}

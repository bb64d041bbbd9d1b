package audio

import (
	"sync"
	"time"
)

// Format describes interleaved little-endian PCM.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultFormat is what Pulse capture produces.
var DefaultFormat = Format{SampleRate: 16000, Channels: 1, BitsPerSample: 16}

// BytesPerSecond is the PCM data rate for f.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / 8
}

// Duration converts a PCM byte count to playback time.
func (f Format) Duration(pcmBytes int) time.Duration {
	rate := f.BytesPerSecond()
	if rate <= 0 {
		return 0
	}
	return time.Duration(int64(pcmBytes) * int64(time.Second) / int64(rate))
}

// Snapshot is an immutable copy of accumulated audio.
type Snapshot struct {
	PCM    []byte
	Format Format
}

// Container serializes the snapshot as RIFF/WAVE.
func (s Snapshot) Container() []byte {
	return EncodeWAV(s.PCM, s.Format)
}

// Duration is the playback length of the snapshot.
func (s Snapshot) Duration() time.Duration {
	return s.Format.Duration(len(s.PCM))
}

// Empty reports whether no audio was captured.
func (s Snapshot) Empty() bool {
	return len(s.PCM) == 0
}

// Accumulator buffers captured frames for one dictation in memory.
type Accumulator struct {
	format Format
	now    func() time.Time

	mu          sync.Mutex
	pcm         []byte
	firstAppend time.Time
}

// NewAccumulator returns an empty buffer for the given format.
func NewAccumulator(format Format) *Accumulator {
	return &Accumulator{format: format, now: time.Now}
}

// Append copies frame onto the buffer.
func (a *Accumulator) Append(frame []byte) {
	if len(frame) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.firstAppend.IsZero() {
		a.firstAppend = a.now()
	}
	a.pcm = append(a.pcm, frame...)
}

// Clear discards all buffered audio.
func (a *Accumulator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pcm = nil
	a.firstAppend = time.Time{}
}

// Len returns the number of buffered PCM bytes.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pcm)
}

// Snapshot copies the buffered audio.
func (a *Accumulator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	pcm := make([]byte, len(a.pcm))
	copy(pcm, a.pcm)
	return Snapshot{PCM: pcm, Format: a.format}
}

// Container returns the buffered audio as RIFF/WAVE bytes.
func (a *Accumulator) Container() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return EncodeWAV(a.pcm, a.format)
}

// Duration is the playback length derived from byte count and format.
func (a *Accumulator) Duration() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.format.Duration(len(a.pcm))
}

// Elapsed is wall time since the first append, or zero when empty.
func (a *Accumulator) Elapsed() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.firstAppend.IsZero() {
		return 0
	}
	return a.now().Sub(a.firstAppend)
}

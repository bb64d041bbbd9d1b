// Package endpoint classifies PCM frames as speech or silence and reports
// when a speaker has gone quiet for long enough to end a dictation.
package endpoint

import (
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// State is the detector's current classification.
type State int

const (
	StateUnknown State = iota
	StateSpeaking
	StateSilent
)

func (s State) String() string {
	switch s {
	case StateSpeaking:
		return "speaking"
	case StateSilent:
		return "silent"
	default:
		return "unknown"
	}
}

const (
	DefaultThresholdDB     = -40.0
	DefaultMinSilentFrames = 10
	DefaultTimeout         = 30 * time.Second
)

// Config tunes silence detection. A zero Timeout disables the silence timeout.
type Config struct {
	ThresholdDB     float64
	MinSilentFrames int
	Timeout         time.Duration
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		ThresholdDB:     DefaultThresholdDB,
		MinSilentFrames: DefaultMinSilentFrames,
		Timeout:         DefaultTimeout,
	}
}

// Callbacks are invoked outside the detector lock. OnSilenceTimeout runs on
// a timer goroutine; the rest run on the caller of ProcessFrame.
type Callbacks struct {
	OnSilenceStart   func()
	OnSilenceEnd     func()
	OnSilenceTimeout func()
	OnLevel          func(levelDB float64, silent bool)
}

type stopper interface {
	Stop() bool
}

// Detector tracks speech/silence across a stream of frames.
type Detector struct {
	cfg       Config
	cb        Callbacks
	afterFunc func(time.Duration, func()) stopper
	now       func() time.Time

	mu           sync.Mutex
	enabled      bool
	state        State
	silentFrames int
	silenceStart time.Time
	timer        stopper
	generation   uint64
}

// NewDetector builds an enabled detector. Non-positive MinSilentFrames falls
// back to the default.
func NewDetector(cfg Config, cb Callbacks) *Detector {
	if cfg.MinSilentFrames <= 0 {
		cfg.MinSilentFrames = DefaultMinSilentFrames
	}
	if cfg.Timeout < 0 {
		cfg.Timeout = 0
	}
	return &Detector{
		cfg: cfg,
		cb:  cb,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		now:     time.Now,
		enabled: true,
	}
}

// LevelDB returns the RMS level of little-endian int16 samples in dBFS.
// Silence and empty frames report -Inf.
func LevelDB(frame []byte) float64 {
	samples := len(frame) / 2
	if samples == 0 {
		return math.Inf(-1)
	}

	var energy float64
	for i := 0; i < samples; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(frame[i*2:])))
		energy += v * v
	}
	rms := math.Sqrt(energy / float64(samples))
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms/32768)
}

// State returns the current classification.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SilenceStart returns when the current silent period began, or zero.
func (d *Detector) SilenceStart() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.silenceStart
}

// ProcessFrame classifies one frame and fires the resulting callbacks.
func (d *Detector) ProcessFrame(frame []byte) {
	level := LevelDB(frame)
	silent := level < d.cfg.ThresholdDB

	d.mu.Lock()
	if !d.enabled {
		d.mu.Unlock()
		return
	}

	var fire []func()
	if silent {
		d.silentFrames++
		if d.state != StateSilent && d.silentFrames >= d.cfg.MinSilentFrames {
			d.state = StateSilent
			d.silenceStart = d.now()
			d.armLocked()
			fire = append(fire, d.cb.OnSilenceStart)
		}
	} else {
		d.silentFrames = 0
		if d.state == StateSilent {
			d.disarmLocked()
			d.silenceStart = time.Time{}
			fire = append(fire, d.cb.OnSilenceEnd)
		}
		d.state = StateSpeaking
	}
	d.mu.Unlock()

	if d.cb.OnLevel != nil {
		d.cb.OnLevel(level, silent)
	}
	for _, fn := range fire {
		if fn != nil {
			fn()
		}
	}
}

// Reset returns to unknown and cancels any pending timeout.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
}

// SetEnabled toggles frame processing. Disabling cancels pending timeouts and
// re-enabling starts from a fresh unknown state.
func (d *Detector) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enabled == enabled {
		return
	}
	d.enabled = enabled
	d.resetLocked()
}

func (d *Detector) resetLocked() {
	d.disarmLocked()
	d.state = StateUnknown
	d.silentFrames = 0
	d.silenceStart = time.Time{}
}

func (d *Detector) armLocked() {
	d.disarmLocked()
	if d.cfg.Timeout <= 0 {
		return
	}
	gen := d.generation
	d.timer = d.afterFunc(d.cfg.Timeout, func() { d.expire(gen) })
}

// disarmLocked stops the timer and invalidates any callback already queued.
func (d *Detector) disarmLocked() {
	d.generation++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Detector) expire(gen uint64) {
	d.mu.Lock()
	if gen != d.generation || !d.enabled || d.state != StateSilent {
		d.mu.Unlock()
		return
	}
	// Invalidate so a second expiry of this period is impossible.
	d.generation++
	d.timer = nil
	d.mu.Unlock()

	if d.cb.OnSilenceTimeout != nil {
		d.cb.OnSilenceTimeout()
	}
}

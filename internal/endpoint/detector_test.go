package endpoint

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func silentFrame() []byte {
	return make([]byte, 640)
}

func toneFrame(amplitude int16) []byte {
	frame := make([]byte, 640)
	for i := 0; i < len(frame)/2; i++ {
		v := amplitude
		if i%2 == 1 {
			v = -amplitude
		}
		binary.LittleEndian.PutUint16(frame[i*2:], uint16(v))
	}
	return frame
}

type fakeTimer struct {
	mu       sync.Mutex
	delay    time.Duration
	fn       func()
	stopped  bool
	armCount int
}

func (f *fakeTimer) afterFunc(d time.Duration, fn func()) stopper {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
	f.fn = fn
	f.stopped = false
	f.armCount++
	return f
}

func (f *fakeTimer) Stop() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return true
}

func (f *fakeTimer) fire() {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

type counters struct {
	start   atomic.Int32
	end     atomic.Int32
	timeout atomic.Int32
}

func newTestDetector(cfg Config) (*Detector, *counters, *fakeTimer) {
	c := &counters{}
	ft := &fakeTimer{}
	d := NewDetector(cfg, Callbacks{
		OnSilenceStart:   func() { c.start.Add(1) },
		OnSilenceEnd:     func() { c.end.Add(1) },
		OnSilenceTimeout: func() { c.timeout.Add(1) },
	})
	d.afterFunc = ft.afterFunc
	return d, c, ft
}

func TestLevelDB(t *testing.T) {
	require.True(t, math.IsInf(LevelDB(silentFrame()), -1))
	require.True(t, math.IsInf(LevelDB(nil), -1))

	full := LevelDB(toneFrame(32767))
	require.InDelta(t, 0, full, 0.01)

	quiet := LevelDB(toneFrame(100))
	require.InDelta(t, 20*math.Log10(100.0/32768), quiet, 0.01)
	require.Less(t, quiet, DefaultThresholdDB)

	loud := LevelDB(toneFrame(8000))
	require.Greater(t, loud, DefaultThresholdDB)
}

func TestDetectorNeedsMinimumSilentFrames(t *testing.T) {
	d, c, _ := newTestDetector(DefaultConfig())

	for i := 0; i < DefaultMinSilentFrames-1; i++ {
		d.ProcessFrame(silentFrame())
	}
	require.Equal(t, StateUnknown, d.State())
	require.Zero(t, c.start.Load())

	d.ProcessFrame(silentFrame())
	require.Equal(t, StateSilent, d.State())
	require.Equal(t, int32(1), c.start.Load())
	require.False(t, d.SilenceStart().IsZero())

	for i := 0; i < 5; i++ {
		d.ProcessFrame(silentFrame())
	}
	require.Equal(t, int32(1), c.start.Load())
}

func TestDetectorLoudFrameResetsCounter(t *testing.T) {
	d, c, _ := newTestDetector(DefaultConfig())

	for i := 0; i < DefaultMinSilentFrames-1; i++ {
		d.ProcessFrame(silentFrame())
	}
	d.ProcessFrame(toneFrame(8000))
	require.Equal(t, StateSpeaking, d.State())

	for i := 0; i < DefaultMinSilentFrames-1; i++ {
		d.ProcessFrame(silentFrame())
	}
	require.Equal(t, StateSpeaking, d.State())
	require.Zero(t, c.start.Load())
}

func TestDetectorSilenceEndCancelsTimeout(t *testing.T) {
	d, c, ft := newTestDetector(DefaultConfig())

	d.ProcessFrame(toneFrame(8000))
	for i := 0; i < DefaultMinSilentFrames; i++ {
		d.ProcessFrame(silentFrame())
	}
	require.Equal(t, DefaultTimeout, ft.delay)

	d.ProcessFrame(toneFrame(8000))
	require.Equal(t, StateSpeaking, d.State())
	require.Equal(t, int32(1), c.end.Load())
	require.True(t, ft.stopped)

	ft.fire()
	require.Zero(t, c.timeout.Load())
}

func TestDetectorTimeoutFiresOncePerSilentPeriod(t *testing.T) {
	d, c, ft := newTestDetector(DefaultConfig())

	for i := 0; i < DefaultMinSilentFrames; i++ {
		d.ProcessFrame(silentFrame())
	}
	ft.fire()
	ft.fire()
	require.Equal(t, int32(1), c.timeout.Load())

	d.ProcessFrame(toneFrame(8000))
	for i := 0; i < DefaultMinSilentFrames; i++ {
		d.ProcessFrame(silentFrame())
	}
	require.Equal(t, 2, ft.armCount)
	ft.fire()
	require.Equal(t, int32(2), c.timeout.Load())
}

func TestDetectorZeroTimeoutNeverArms(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 0
	d, c, ft := newTestDetector(cfg)

	for i := 0; i < DefaultMinSilentFrames*3; i++ {
		d.ProcessFrame(silentFrame())
	}
	require.Equal(t, StateSilent, d.State())
	require.Equal(t, int32(1), c.start.Load())
	require.Zero(t, ft.armCount)
}

func TestDetectorDisableSuppressesFramesAndTimers(t *testing.T) {
	d, c, ft := newTestDetector(DefaultConfig())

	for i := 0; i < DefaultMinSilentFrames; i++ {
		d.ProcessFrame(silentFrame())
	}
	d.SetEnabled(false)
	require.True(t, ft.stopped)
	require.Equal(t, StateUnknown, d.State())

	ft.fire()
	for i := 0; i < DefaultMinSilentFrames*2; i++ {
		d.ProcessFrame(silentFrame())
	}
	require.Zero(t, c.timeout.Load())
	require.Equal(t, int32(1), c.start.Load())

	d.SetEnabled(true)
	for i := 0; i < DefaultMinSilentFrames-1; i++ {
		d.ProcessFrame(silentFrame())
	}
	require.Equal(t, StateUnknown, d.State())
}

func TestDetectorResetReturnsToUnknown(t *testing.T) {
	d, c, ft := newTestDetector(DefaultConfig())
	for i := 0; i < DefaultMinSilentFrames; i++ {
		d.ProcessFrame(silentFrame())
	}

	d.Reset()
	require.Equal(t, StateUnknown, d.State())
	require.True(t, d.SilenceStart().IsZero())
	ft.fire()
	require.Zero(t, c.timeout.Load())
}

func TestDetectorReportsLevels(t *testing.T) {
	var levels []float64
	var silent []bool
	d := NewDetector(DefaultConfig(), Callbacks{
		OnLevel: func(level float64, isSilent bool) {
			levels = append(levels, level)
			silent = append(silent, isSilent)
		},
	})

	d.ProcessFrame(toneFrame(8000))
	d.ProcessFrame(silentFrame())
	require.Len(t, levels, 2)
	require.Equal(t, []bool{false, true}, silent)
}

func TestDetectorRealTimerFiresAfterTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 40 * time.Millisecond

	fired := make(chan time.Time, 2)
	d := NewDetector(cfg, Callbacks{
		OnSilenceTimeout: func() { fired <- time.Now() },
	})

	for i := 0; i < DefaultMinSilentFrames; i++ {
		d.ProcessFrame(silentFrame())
	}
	start := d.SilenceStart()

	select {
	case at := <-fired:
		require.GreaterOrEqual(t, at.Sub(start), cfg.Timeout)
	case <-time.After(time.Second):
		t.Fatal("silence timeout did not fire")
	}

	select {
	case <-fired:
		t.Fatal("silence timeout fired twice")
	case <-time.After(3 * cfg.Timeout):
	}
}

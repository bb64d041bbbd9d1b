package dictation

import (
	"time"

	"github.com/rbright/voyc/internal/config"
)

// Threshold names used in alerts and metrics.
const (
	ThresholdSTT                = "stt"
	ThresholdTotal              = "total"
	ThresholdBasetenPostProcess = "baseten_post_process"
)

// LatencyRecord holds the timestamps of one cycle. Every timestamp carries
// a monotonic reading from time.Now.
type LatencyRecord struct {
	CaptureStart        time.Time
	CaptureEnd          time.Time
	STTComplete         time.Time
	PostProcessComplete time.Time
	InjectionComplete   time.Time

	// BasetenPostProcess is set only when the baseten stage ran.
	BasetenPostProcess time.Duration
	BasetenRan         bool
}

// Capture is how long audio was recorded.
func (r LatencyRecord) Capture() time.Duration { return since(r.CaptureStart, r.CaptureEnd) }

// STT is the time from end of capture to a transcript.
func (r LatencyRecord) STT() time.Duration { return since(r.CaptureEnd, r.STTComplete) }

// PostProcess is the refinement time.
func (r LatencyRecord) PostProcess() time.Duration { return since(r.STTComplete, r.PostProcessComplete) }

// Delivery is the clipboard and paste time.
func (r LatencyRecord) Delivery() time.Duration {
	return since(r.PostProcessComplete, r.InjectionComplete)
}

// Total is the time from end of capture to text in the clipboard.
func (r LatencyRecord) Total() time.Duration { return since(r.CaptureEnd, r.InjectionComplete) }

// Complete reports whether all five timestamps were recorded.
func (r LatencyRecord) Complete() bool {
	return !r.CaptureStart.IsZero() && !r.CaptureEnd.IsZero() && !r.STTComplete.IsZero() &&
		!r.PostProcessComplete.IsZero() && !r.InjectionComplete.IsZero()
}

func since(from time.Time, to time.Time) time.Duration {
	if from.IsZero() || to.IsZero() {
		return 0
	}
	return to.Sub(from)
}

// ThresholdConfig holds alert limits. A zero limit disables its check.
type ThresholdConfig struct {
	BasetenPostProcess time.Duration
	Total              time.Duration
	STT                time.Duration
}

// ThresholdsFrom converts configured milliseconds.
func ThresholdsFrom(cfg config.LatencyConfig) ThresholdConfig {
	return ThresholdConfig{
		BasetenPostProcess: time.Duration(cfg.BasetenPostProcessMS) * time.Millisecond,
		Total:              time.Duration(cfg.TotalMS) * time.Millisecond,
		STT:                time.Duration(cfg.STTMS) * time.Millisecond,
	}
}

// Alert reports one exceeded threshold.
type Alert struct {
	Threshold string
	Actual    time.Duration
	Limit     time.Duration
}

// Evaluate returns an alert for every enabled threshold that r exceeds.
func (t ThresholdConfig) Evaluate(r LatencyRecord) []Alert {
	var alerts []Alert
	check := func(name string, actual time.Duration, limit time.Duration) {
		if limit > 0 && actual > limit {
			alerts = append(alerts, Alert{Threshold: name, Actual: actual, Limit: limit})
		}
	}
	check(ThresholdSTT, r.STT(), t.STT)
	if r.BasetenRan {
		check(ThresholdBasetenPostProcess, r.BasetenPostProcess, t.BasetenPostProcess)
	}
	check(ThresholdTotal, r.Total(), t.Total)
	return alerts
}

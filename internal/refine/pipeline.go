// Package refine runs transcribed text through an ordered chain of
// refinement stages, tolerating the failure of any of them.
package refine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/voyc/internal/provider"
)

// Stage is one refinement step. provider.Refiner satisfies it.
type Stage interface {
	Name() string
	Process(ctx context.Context, text string, rc provider.RefineContext) (provider.ProcessResult, error)
}

// StageResult records one stage attempt.
type StageResult struct {
	Name    string
	Latency time.Duration
	Err     error
	// Text is empty when Err is set.
	Text string
}

// Result is the outcome of a pipeline run.
type Result struct {
	Text       string
	Latency    time.Duration
	Modified   bool
	TokenCount int
	Model      string
	Stages     []StageResult
}

// StageLatency returns the latency of the named stage and whether it ran.
func (r Result) StageLatency(name string) (time.Duration, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s.Latency, true
		}
	}
	return 0, false
}

// ErrEmptyOutput marks a stage that succeeded without returning text.
var ErrEmptyOutput = errors.New("stage returned empty text")

// Pipeline applies stages in order.
type Pipeline struct {
	logger  *slog.Logger
	enabled bool
	stages  []Stage
	now     func() time.Time
}

// New builds a pipeline. A disabled pipeline returns input unchanged.
func New(logger *slog.Logger, enabled bool, stages ...Stage) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{logger: logger, enabled: enabled, stages: stages, now: time.Now}
}

// Enabled reports whether any stage would run.
func (p *Pipeline) Enabled() bool {
	return p.enabled && len(p.stages) > 0
}

// Run feeds text through each stage. Failed stages are skipped and the
// previous text carries forward.
func (p *Pipeline) Run(ctx context.Context, text string, rc provider.RefineContext) Result {
	if strings.TrimSpace(text) == "" {
		return Result{}
	}
	if !p.Enabled() {
		return Result{Text: text}
	}

	started := p.now()
	result := Result{Text: text, Stages: make([]StageResult, 0, len(p.stages))}
	current := text
	succeeded := false

	for _, stage := range p.stages {
		if ctx.Err() != nil {
			break
		}

		stageStart := p.now()
		out, err := stage.Process(ctx, current, rc)
		if err == nil && strings.TrimSpace(out.Text) == "" {
			err = &provider.Error{Kind: provider.KindGeneric, Provider: stage.Name(), Err: ErrEmptyOutput}
		}
		record := StageResult{Name: stage.Name(), Latency: p.now().Sub(stageStart), Err: err}

		if err != nil {
			p.logger.Warn("refinement stage failed",
				"stage", stage.Name(),
				"kind", provider.KindOf(err).String(),
				"error", err.Error(),
			)
			result.Stages = append(result.Stages, record)
			continue
		}

		record.Text = out.Text
		result.Stages = append(result.Stages, record)
		current = out.Text
		succeeded = true
		result.TokenCount += out.TokenCount
		if out.Model != "" {
			result.Model = out.Model
		}
	}

	result.Latency = p.now().Sub(started)
	if !succeeded {
		result.Text = text
		result.TokenCount = 0
		return result
	}
	result.Text = current
	result.Modified = current != text
	return result
}

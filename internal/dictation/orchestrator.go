// Package dictation drives one dictation cycle at a time: capture, silence
// endpointing, transcription, refinement, and delivery.
package dictation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/rbright/voyc/internal/audio"
	"github.com/rbright/voyc/internal/config"
	"github.com/rbright/voyc/internal/endpoint"
	"github.com/rbright/voyc/internal/fsm"
	"github.com/rbright/voyc/internal/output"
	"github.com/rbright/voyc/internal/provider"
	"github.com/rbright/voyc/internal/provider/baseten"
	"github.com/rbright/voyc/internal/refine"
	"github.com/rbright/voyc/internal/telemetry"
	"github.com/rbright/voyc/internal/transcript"
)

var (
	// ErrNotRunning is returned by commands issued outside Run.
	ErrNotRunning = errors.New("dictation loop is not running")
	// ErrBusy rejects a toggle while a cycle is past listening.
	ErrBusy = errors.New("dictation cycle is still processing")
	// ErrResetRequired rejects a toggle while in the error state.
	ErrResetRequired = errors.New("dictation is in error state; reset required")
)

// Capture is the audio source collaborator.
type Capture interface {
	Start(ctx context.Context, onFrame func([]byte)) error
	Stop() error
}

// Deliverer hands finished text to the desktop.
type Deliverer interface {
	Deliver(ctx context.Context, text string) (output.Outcome, error)
}

// Providers resolves the providers selected by the live configuration.
type Providers interface {
	Transcriber() (provider.Transcriber, error)
	Refiner() (provider.Refiner, error)
}

// Settings supplies a configuration snapshot per cycle.
type Settings interface {
	Current() config.Config
}

// Cycle outcomes reported in CycleReport and metrics.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeNoAudio = "no_audio"
	OutcomeAborted = "aborted"
	OutcomeError   = "error"
)

// CycleReport summarizes one finished cycle.
type CycleReport struct {
	ID            string
	Outcome       string
	StopReason    fsm.Reason
	Text          string
	Delivery      output.Outcome
	DeliveryErr   error
	Err           error
	Latency       LatencyRecord
	Alerts        []Alert
	AudioDuration time.Duration
	Refinement    refine.Result
}

// Deps are the orchestrator's collaborators. Machine, Settings, Providers,
// Capture, and Deliverer are required.
type Deps struct {
	Logger    *slog.Logger
	Machine   *fsm.Machine
	Settings  Settings
	Providers Providers
	Capture   Capture
	Deliverer Deliverer
	Metrics   *telemetry.Metrics
	Tracer    trace.Tracer

	OnAlert   func(Alert)
	OnCycle   func(CycleReport)
	OnLevel   func(levelDB float64, silent bool)
	OnPartial func(text string)
}

// Status is a point-in-time view for status queries.
type Status struct {
	State   fsm.State
	Error   string
	CycleID string
	Last    *CycleReport
}

type commandKind int

const (
	cmdToggle commandKind = iota + 1
	cmdStop
	cmdAbort
	cmdReset
	cmdStatus
)

type command struct {
	kind   commandKind
	reason fsm.Reason
	reply  chan commandReply
}

type commandReply struct {
	status Status
	err    error
}

// Events posted back to the loop, each tagged with the cycle that caused it.
type (
	captureStarted struct {
		id  string
		err error
	}
	captureStopped struct {
		id  string
		err error
	}
	streamOpened struct {
		id   string
		conn provider.StreamConnection
		err  error
	}
	silenceTimeout struct{ id string }
	transcribed    struct {
		id     string
		result provider.TranscribeResult
		err    error
	}
	refined struct {
		id     string
		result refine.Result
	}
	delivered struct {
		id      string
		outcome output.Outcome
		err     error
	}
	autoReset struct{ gen uint64 }
)

// Orchestrator owns the dictation cycle. All state changes happen on the
// goroutine running Run.
type Orchestrator struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time

	commands chan command
	events   chan any
	done     chan struct{}
	running  atomic.Bool

	// Loop-owned state.
	cycle      *cycle
	lastStop   chan struct{}
	last       *CycleReport
	resetGen   uint64
	resetTimer *time.Timer
}

// New builds an orchestrator. Call Run to start its loop.
func New(deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer("")
	}
	released := make(chan struct{})
	close(released)

	return &Orchestrator{
		deps:     deps,
		logger:   deps.Logger,
		now:      time.Now,
		commands: make(chan command),
		events:   make(chan any, 64),
		done:     make(chan struct{}),
		lastStop: released,
	}
}

// Run processes commands and events until ctx ends. Any open cycle is
// aborted on exit.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return errors.New("dictation loop already running")
	}
	defer close(o.done)

	if o.deps.Metrics != nil {
		unsubscribe := o.deps.Machine.Subscribe(func(tr fsm.Transition) {
			o.deps.Metrics.Transition(string(tr.From), string(tr.To))
		})
		defer unsubscribe()
	}

	for {
		select {
		case <-ctx.Done():
			if o.cycle != nil {
				o.abortCycle()
			}
			o.stopResetTimer()
			return nil
		case cmd := <-o.commands:
			cmd.reply <- o.handleCommand(cmd)
		case ev := <-o.events:
			o.handleEvent(ev)
		}
	}
}

// Toggle starts a cycle when idle and stops capture when listening.
func (o *Orchestrator) Toggle(ctx context.Context, reason fsm.Reason) (Status, error) {
	return o.send(ctx, cmdToggle, reason)
}

// StopCapture ends listening and moves on to transcription.
func (o *Orchestrator) StopCapture(ctx context.Context) (Status, error) {
	return o.send(ctx, cmdStop, fsm.ReasonUserToggle)
}

// Abort discards the current cycle. It is a no-op when idle.
func (o *Orchestrator) Abort(ctx context.Context) (Status, error) {
	return o.send(ctx, cmdAbort, fsm.ReasonAbort)
}

// Reset returns to idle from any state, aborting an open cycle.
func (o *Orchestrator) Reset(ctx context.Context) (Status, error) {
	return o.send(ctx, cmdReset, fsm.ReasonAbort)
}

// Status reports the current state.
func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	return o.send(ctx, cmdStatus, "")
}

func (o *Orchestrator) send(ctx context.Context, kind commandKind, reason fsm.Reason) (Status, error) {
	cmd := command{kind: kind, reason: reason, reply: make(chan commandReply, 1)}
	select {
	case o.commands <- cmd:
	case <-o.done:
		return Status{}, ErrNotRunning
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
	select {
	case reply := <-cmd.reply:
		return reply.status, reply.err
	case <-o.done:
		return Status{}, ErrNotRunning
	}
}

// post delivers an event to the loop unless it has exited.
func (o *Orchestrator) post(ev any) {
	select {
	case o.events <- ev:
	case <-o.done:
	}
}

func (o *Orchestrator) status() Status {
	st := Status{
		State: o.deps.Machine.State(),
		Error: o.deps.Machine.Error(),
		Last:  o.last,
	}
	if o.cycle != nil {
		st.CycleID = o.cycle.id
	}
	return st
}

func (o *Orchestrator) handleCommand(cmd command) commandReply {
	var err error
	switch cmd.kind {
	case cmdToggle:
		err = o.toggle(cmd.reason)
	case cmdStop:
		err = o.stopRequested(cmd.reason)
	case cmdAbort:
		if o.cycle != nil {
			o.abortCycle()
		} else if o.deps.Machine.State() == fsm.StateError {
			o.reset()
		}
	case cmdReset:
		if o.cycle != nil {
			o.abortCycle()
		}
		o.reset()
	case cmdStatus:
	default:
		err = fmt.Errorf("unknown command %d", cmd.kind)
	}
	return commandReply{status: o.status(), err: err}
}

func (o *Orchestrator) toggle(reason fsm.Reason) error {
	switch o.deps.Machine.State() {
	case fsm.StateIdle:
		return o.startCycle(reason)
	case fsm.StateStarting, fsm.StateListening:
		return o.stopRequested(reason)
	case fsm.StateError:
		return ErrResetRequired
	default:
		return ErrBusy
	}
}

func (o *Orchestrator) stopRequested(reason fsm.Reason) error {
	c := o.cycle
	if c == nil {
		return nil
	}
	switch o.deps.Machine.State() {
	case fsm.StateStarting:
		// Honored once capture confirms it is running.
		c.pendingStop = reason
		return nil
	case fsm.StateListening:
		o.beginStop(c, reason)
		return nil
	default:
		return nil
	}
}

func (o *Orchestrator) reset() {
	o.stopResetTimer()
	o.deps.Machine.Reset()
}

func (o *Orchestrator) stopResetTimer() {
	o.resetGen++
	if o.resetTimer != nil {
		o.resetTimer.Stop()
		o.resetTimer = nil
	}
}

func (o *Orchestrator) current(id string) *cycle {
	if o.cycle == nil || o.cycle.id != id {
		return nil
	}
	return o.cycle
}

func (o *Orchestrator) handleEvent(ev any) {
	switch e := ev.(type) {
	case captureStarted:
		if c := o.current(e.id); c != nil {
			o.onCaptureStarted(c, e.err)
		}
	case streamOpened:
		c := o.current(e.id)
		if c == nil || e.err != nil {
			if e.conn != nil {
				_ = e.conn.Close()
			}
			if c != nil {
				o.logger.Warn("streaming transcription unavailable; using batch", "cycle", c.id, "error", e.err.Error())
			}
			return
		}
		o.onStreamOpened(c, e.conn)
	case silenceTimeout:
		if c := o.current(e.id); c != nil && o.deps.Machine.State() == fsm.StateListening {
			o.beginStop(c, fsm.ReasonSilenceDetected)
		}
	case captureStopped:
		if c := o.current(e.id); c != nil && o.deps.Machine.State() == fsm.StateStopping {
			o.onCaptureStopped(c, e.err)
		}
	case transcribed:
		if c := o.current(e.id); c != nil {
			o.onTranscribed(c, e.result, e.err)
		}
	case refined:
		if c := o.current(e.id); c != nil {
			o.onRefined(c, e.result)
		}
	case delivered:
		if c := o.current(e.id); c != nil {
			o.onDelivered(c, e.outcome, e.err)
		}
	case autoReset:
		if e.gen == o.resetGen && o.deps.Machine.State() == fsm.StateError {
			o.logger.Info("auto-resetting after error")
			o.deps.Machine.Reset()
		}
	}
}

type cycle struct {
	id     string
	cfg    config.Config
	ctx    context.Context
	cancel context.CancelFunc
	span   trace.Span

	acc      *audio.Accumulator
	detector *endpoint.Detector
	record   LatencyRecord

	transcriber provider.Transcriber
	startReason fsm.Reason
	pendingStop fsm.Reason
	stopReason  fsm.Reason
	text        string
	refinement  refine.Result

	accepting atomic.Bool

	streamMu     sync.Mutex
	stream       provider.StreamConnection
	streamBroken bool

	startDone   chan struct{}
	stopDone    chan struct{}
	releaseOnce sync.Once
}

func (c *cycle) onFrame(frame []byte) {
	if !c.accepting.Load() {
		return
	}
	c.streamMu.Lock()
	c.acc.Append(frame)
	if c.stream != nil && !c.streamBroken {
		if err := c.stream.Send(frame); err != nil {
			c.streamBroken = true
		}
	}
	c.streamMu.Unlock()
	c.detector.ProcessFrame(frame)
}

func (o *Orchestrator) startCycle(reason fsm.Reason) error {
	cfg := o.deps.Settings.Current()

	transcriber, err := o.deps.Providers.Transcriber()
	if err != nil {
		if o.deps.Machine.MarkError(err.Error()) {
			o.scheduleAutoReset(cfg)
		}
		return err
	}
	if !o.deps.Machine.Start(reason) {
		return fmt.Errorf("cannot start from %s", o.deps.Machine.State())
	}

	ctx, cancel := context.WithCancel(context.Background())
	ctx, span := o.deps.Tracer.Start(ctx, "dictation.cycle")
	c := &cycle{
		id:          uuid.NewString(),
		cfg:         cfg,
		ctx:         ctx,
		cancel:      cancel,
		span:        span,
		acc:         audio.NewAccumulator(audio.DefaultFormat),
		transcriber: transcriber,
		startReason: reason,
		startDone:   make(chan struct{}),
		stopDone:    make(chan struct{}),
	}
	span.SetAttributes(
		attribute.String("cycle.id", c.id),
		attribute.String("provider", transcriber.Name()),
	)
	id := c.id
	c.detector = endpoint.NewDetector(endpoint.Config{
		ThresholdDB:     cfg.Silence.ThresholdDB,
		MinSilentFrames: cfg.Silence.MinSilentFrames,
		Timeout:         time.Duration(cfg.Silence.TimeoutSeconds) * time.Second,
	}, endpoint.Callbacks{
		OnSilenceTimeout: func() { o.post(silenceTimeout{id: id}) },
		OnLevel:          o.deps.OnLevel,
	})
	c.record.CaptureStart = o.now()
	c.accepting.Store(true)
	o.cycle = c
	o.stopResetTimer()

	o.logger.Info("dictation started", "cycle", c.id, "reason", string(reason), "provider", transcriber.Name())

	prevStop := o.lastStop
	o.lastStop = c.stopDone
	go func() {
		defer close(c.startDone)
		select {
		case <-prevStop:
		case <-ctx.Done():
			o.post(captureStarted{id: id, err: ctx.Err()})
			return
		}
		o.post(captureStarted{id: id, err: o.deps.Capture.Start(ctx, c.onFrame)})
	}()
	return nil
}

func (o *Orchestrator) onCaptureStarted(c *cycle, err error) {
	if err != nil {
		o.failCycle(c, fmt.Errorf("start capture: %w", err))
		return
	}
	if !o.deps.Machine.MarkCaptureStarted(c.startReason) {
		return
	}

	if c.cfg.Provider == config.ProviderElevenLabsStreaming {
		if st, ok := c.transcriber.(provider.StreamingTranscriber); ok && st.SupportsStreaming() {
			go func() {
				conn, err := st.OpenStream(c.ctx, provider.StreamOptions{
					Options:    provider.Options{Language: c.cfg.Language},
					SampleRate: audio.DefaultFormat.SampleRate,
					OnPartial:  o.deps.OnPartial,
				})
				o.post(streamOpened{id: c.id, conn: conn, err: err})
			}()
		}
	}

	if c.pendingStop != "" {
		o.beginStop(c, c.pendingStop)
	}
}

func (o *Orchestrator) onStreamOpened(c *cycle, conn provider.StreamConnection) {
	if o.deps.Machine.State() != fsm.StateListening {
		_ = conn.Close()
		return
	}

	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	c.stream = conn
	backlog := c.acc.Snapshot().PCM
	for len(backlog) > 0 {
		n := min(audio.FrameBytes, len(backlog))
		if err := conn.Send(backlog[:n]); err != nil {
			c.streamBroken = true
			return
		}
		backlog = backlog[n:]
	}
}

func (o *Orchestrator) beginStop(c *cycle, reason fsm.Reason) {
	if !o.deps.Machine.Stop(reason) {
		return
	}
	c.stopReason = reason
	c.record.CaptureEnd = o.now()
	c.detector.SetEnabled(false)
	o.logger.Info("dictation capture stopping", "cycle", c.id, "reason", string(reason))
	o.releaseCapture(c)
}

// releaseCapture stops the capture collaborator once its start has
// returned, then posts captureStopped. It runs once per cycle.
func (o *Orchestrator) releaseCapture(c *cycle) {
	c.releaseOnce.Do(func() {
		go func() {
			<-c.startDone
			err := o.deps.Capture.Stop()
			close(c.stopDone)
			o.post(captureStopped{id: c.id, err: err})
		}()
	})
}

func (o *Orchestrator) onCaptureStopped(c *cycle, err error) {
	c.accepting.Store(false)
	if err != nil {
		o.logger.Warn("capture stop reported an error", "cycle", c.id, "error", err.Error())
	}
	if !o.deps.Machine.MarkCaptureStopped(c.stopReason) {
		return
	}

	snapshot := c.acc.Snapshot()
	o.deps.Metrics.CapturedAudio(snapshot.Duration())
	o.deps.Metrics.ObserveStage("capture", c.record.Capture())

	c.streamMu.Lock()
	stream, broken := c.stream, c.streamBroken
	c.stream = nil
	c.streamMu.Unlock()

	if snapshot.Empty() {
		if stream != nil {
			_ = stream.Close()
		}
		o.logger.Info("no audio captured", "cycle", c.id)
		o.deps.Machine.Transition(fsm.StateIdle, fsm.ReasonAbort, "no audio captured")
		o.finish(c, OutcomeNoAudio, nil)
		return
	}

	if stream != nil && broken {
		o.logger.Warn("stream send failed; falling back to batch transcription", "cycle", c.id)
		_ = stream.Close()
		stream = nil
	}

	opts := provider.Options{Language: c.cfg.Language}
	go func() {
		ctx, span := o.deps.Tracer.Start(c.ctx, "dictation.transcribe")
		defer span.End()

		var (
			result provider.TranscribeResult
			err    error
		)
		if stream != nil {
			span.SetAttributes(attribute.Bool("streaming", true))
			result, err = stream.Finish(ctx)
		} else {
			result, err = c.transcriber.Transcribe(ctx, snapshot.Container(), opts)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		o.post(transcribed{id: c.id, result: result, err: err})
	}()
}

func (o *Orchestrator) onTranscribed(c *cycle, result provider.TranscribeResult, err error) {
	if err != nil {
		o.deps.Metrics.ProviderError(c.transcriber.Name(), provider.KindOf(err).String())
		o.failCycle(c, fmt.Errorf("transcribe: %w", err))
		return
	}

	c.record.STTComplete = o.now()
	o.deps.Metrics.ObserveStage("stt", c.record.STT())
	c.text = result.Text
	o.logger.Info("transcription complete",
		"cycle", c.id,
		"chars", len(result.Text),
		"language", result.Language,
		"audio_seconds", result.DurationSeconds,
		"stt_ms", c.record.STT().Milliseconds(),
	)

	if result.Text == "" {
		o.deps.Machine.Transition(fsm.StateIdle, fsm.ReasonSTTComplete, "empty transcript")
		o.finish(c, OutcomeEmpty, nil)
		return
	}

	pipeline := o.pipeline(c.cfg)
	if !pipeline.Enabled() {
		c.record.PostProcessComplete = c.record.STTComplete
		if !o.deps.Machine.MarkSTTComplete() {
			return
		}
		o.deliver(c, c.text)
		return
	}

	text := c.text
	rc := provider.RefineContext{Language: c.cfg.Language, Prompt: c.cfg.Refinement.Prompt}
	if rc.Language == "" {
		rc.Language = result.Language
	}
	go func() {
		ctx, span := o.deps.Tracer.Start(c.ctx, "dictation.refine")
		defer span.End()
		o.post(refined{id: c.id, result: pipeline.Run(ctx, text, rc)})
	}()
}

func (o *Orchestrator) pipeline(cfg config.Config) *refine.Pipeline {
	if !cfg.Refinement.Enable {
		return refine.New(o.logger, false)
	}

	var stages []refine.Stage
	refiner, err := o.deps.Providers.Refiner()
	if err == nil {
		stages = append(stages, refiner)
	} else {
		o.logger.Warn("remote refinement unavailable", "error", err.Error())
	}
	if cfg.Refinement.LocalCleanup {
		stages = append(stages, transcript.Cleanup{Options: transcript.Options{
			TrailingSpace:       cfg.Refinement.TrailingSpace,
			CapitalizeSentences: true,
		}})
	}
	return refine.New(o.logger, true, stages...)
}

func (o *Orchestrator) onRefined(c *cycle, result refine.Result) {
	c.record.PostProcessComplete = o.now()
	c.refinement = result
	o.deps.Metrics.ObserveStage("refine", c.record.PostProcess())
	for _, stage := range result.Stages {
		o.deps.Metrics.ObserveStage("refine_"+stage.Name, stage.Latency)
		if stage.Err != nil {
			o.deps.Metrics.ProviderError(stage.Name, provider.KindOf(stage.Err).String())
		}
	}
	if latency, ok := result.StageLatency(baseten.Name); ok {
		c.record.BasetenPostProcess = latency
		c.record.BasetenRan = true
	}

	if !o.deps.Machine.MarkPostProcessComplete() {
		return
	}
	o.deliver(c, result.Text)
}

func (o *Orchestrator) deliver(c *cycle, text string) {
	c.text = text
	go func() {
		ctx, span := o.deps.Tracer.Start(c.ctx, "dictation.deliver")
		defer span.End()
		outcome, err := o.deps.Deliverer.Deliver(ctx, text)
		span.SetAttributes(attribute.String("outcome", string(outcome)))
		o.post(delivered{id: c.id, outcome: outcome, err: err})
	}()
}

func (o *Orchestrator) onDelivered(c *cycle, outcome output.Outcome, err error) {
	c.record.InjectionComplete = o.now()
	o.deps.Metrics.ObserveStage("delivery", c.record.Delivery())
	o.deps.Metrics.ObserveStage("total", c.record.Total())
	o.deps.Metrics.Delivery(string(outcome))
	if err != nil {
		o.logger.Error("delivery failed", "cycle", c.id, "outcome", string(outcome), "error", err.Error())
	}

	if !o.deps.Machine.MarkComplete() {
		return
	}

	report := o.report(c, OutcomeSuccess, nil)
	report.Delivery = outcome
	report.DeliveryErr = err
	report.Alerts = ThresholdsFrom(c.cfg.Latency).Evaluate(c.record)
	for _, alert := range report.Alerts {
		o.deps.Metrics.ThresholdExceeded(alert.Threshold)
		o.logger.Warn("latency threshold exceeded",
			"cycle", c.id,
			"threshold", alert.Threshold,
			"actual_ms", alert.Actual.Milliseconds(),
			"limit_ms", alert.Limit.Milliseconds(),
		)
		if o.deps.OnAlert != nil {
			o.deps.OnAlert(alert)
		}
	}

	o.logger.Info("dictation complete",
		"cycle", c.id,
		"delivery", string(outcome),
		"stt_ms", c.record.STT().Milliseconds(),
		"total_ms", c.record.Total().Milliseconds(),
	)
	o.complete(c, report)
}

func (o *Orchestrator) failCycle(c *cycle, err error) {
	o.logger.Error("dictation failed", "cycle", c.id, "error", err.Error())
	c.span.RecordError(err)
	c.span.SetStatus(codes.Error, err.Error())
	if o.deps.Machine.MarkError(err.Error()) {
		o.scheduleAutoReset(c.cfg)
	}
	o.finish(c, OutcomeError, err)
}

func (o *Orchestrator) scheduleAutoReset(cfg config.Config) {
	o.stopResetTimer()
	if cfg.ErrorAutoResetMS <= 0 {
		return
	}
	gen := o.resetGen
	o.resetTimer = time.AfterFunc(time.Duration(cfg.ErrorAutoResetMS)*time.Millisecond, func() {
		o.post(autoReset{gen: gen})
	})
}

func (o *Orchestrator) abortCycle() {
	c := o.cycle
	o.logger.Info("dictation aborted", "cycle", c.id, "state", string(o.deps.Machine.State()))
	if o.deps.Machine.State() != fsm.StateError {
		o.deps.Machine.Reset()
	}
	o.finish(c, OutcomeAborted, nil)
}

func (o *Orchestrator) finish(c *cycle, outcome string, err error) {
	o.complete(c, o.report(c, outcome, err))
}

func (o *Orchestrator) report(c *cycle, outcome string, err error) CycleReport {
	return CycleReport{
		ID:            c.id,
		Outcome:       outcome,
		StopReason:    c.stopReason,
		Text:          c.text,
		Err:           err,
		Latency:       c.record,
		AudioDuration: c.acc.Duration(),
		Refinement:    c.refinement,
	}
}

// complete releases every cycle resource and publishes the report.
func (o *Orchestrator) complete(c *cycle, report CycleReport) {
	c.accepting.Store(false)
	c.detector.SetEnabled(false)
	c.cancel()
	o.releaseCapture(c)

	c.streamMu.Lock()
	if c.stream != nil {
		_ = c.stream.Close()
		c.stream = nil
	}
	c.streamMu.Unlock()

	c.span.SetAttributes(attribute.String("outcome", report.Outcome))
	c.span.End()
	c.acc.Clear()

	o.deps.Metrics.CycleFinished(report.Outcome)
	o.cycle = nil
	o.last = &report
	if o.deps.OnCycle != nil {
		o.deps.OnCycle(report)
	}
}

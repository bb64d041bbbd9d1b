package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rbright/voyc/internal/audio"
	"github.com/rbright/voyc/internal/config"
	"github.com/rbright/voyc/internal/dictation"
	"github.com/rbright/voyc/internal/fsm"
	"github.com/rbright/voyc/internal/indicator"
	"github.com/rbright/voyc/internal/ipc"
	"github.com/rbright/voyc/internal/logging"
	"github.com/rbright/voyc/internal/output"
	"github.com/rbright/voyc/internal/provider/factory"
	"github.com/rbright/voyc/internal/telemetry"
)

// daemon owns every long-lived collaborator of `voyc serve`.
type daemon struct {
	store         *config.Store
	logs          logging.Runtime
	levelPinned   bool
	logger        *slog.Logger
	providers     *factory.Factory
	capture       *audio.PulseSource
	notifier      *indicator.Notifier
	metrics       *telemetry.Metrics
	tracing       telemetry.Tracing
	machine       *fsm.Machine
	orchestrator  *dictation.Orchestrator
	unsubscribers []func()

	reloadMu sync.Mutex
}

func (r Runner) serve(ctx context.Context, store *config.Store, logs logging.Runtime, levelPinned bool, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{ProbeTimeout: 180 * time.Millisecond, Retries: 8})
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: voyc daemon is already running")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	d, err := newDaemon(ctx, store, logs, levelPinned, logger, r)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer d.close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	defer signal.Stop(hangup)

	logger.Info("voyc daemon listening", "socket", socketPath)
	if err := d.run(ctx, hangup, listener); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	logger.Info("voyc daemon stopped")
	return 0
}

func newDaemon(ctx context.Context, store *config.Store, logs logging.Runtime, levelPinned bool, logger *slog.Logger, r Runner) (*daemon, error) {
	cfg := store.Current()

	tracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry, r.Stdout, logger)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	d := &daemon{
		store:       store,
		logs:        logs,
		levelPinned: levelPinned,
		logger:      logger,
		providers:   factory.New(cfg, logger),
		capture:     &audio.PulseSource{Input: cfg.Audio.Input, Fallback: cfg.Audio.Fallback, Logger: logger},
		notifier:    indicator.New(cfg.Indicator, logger),
		metrics:     telemetry.NewMetrics(),
		tracing:     tracing,
		machine:     fsm.NewMachine(logger, cfg.HistorySize),
	}

	d.unsubscribers = append(d.unsubscribers,
		d.providers.Watch(store),
		store.Subscribe(d.applyConfig),
		d.machine.Subscribe(d.notifier.Observe),
	)

	d.orchestrator = dictation.New(dictation.Deps{
		Logger:    logger,
		Machine:   d.machine,
		Settings:  store,
		Providers: d.providers,
		Capture:   d.capture,
		Deliverer: output.NewDeliverer(store, logger),
		Metrics:   d.metrics,
		Tracer:    tracing.Tracer(),
		OnPartial: func(text string) {
			logger.Debug("partial transcript", "chars", len(text))
		},
	})
	return d, nil
}

// applyConfig pushes a reloaded config into collaborators that do not read
// the store on every use.
func (d *daemon) applyConfig(prev config.Config, next config.Config) {
	d.capture.Configure(next.Audio.Input, next.Audio.Fallback)
	d.notifier.Configure(next.Indicator)
	if !d.levelPinned && prev.LogLevel != next.LogLevel {
		if err := d.logs.SetLevel(next.LogLevel); err != nil {
			d.logger.Warn("ignoring log_level", "error", err.Error())
		}
	}
	if prev.Telemetry != next.Telemetry {
		d.logger.Warn("telemetry settings change on restart")
	}
}

func (d *daemon) run(ctx context.Context, hangup <-chan os.Signal, listener net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 3)

	wg.Add(2)
	go func() {
		defer wg.Done()
		d.notifier.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := d.orchestrator.Run(ctx); err != nil {
			errs <- err
		}
	}()

	if addr := strings.TrimSpace(d.store.Current().Telemetry.MetricsListen); addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := telemetry.Serve(ctx, addr, d.metrics.Handler(), d.logger); err != nil {
				d.logger.Error("metrics server failed", "error", err.Error())
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ipc.Serve(ctx, listener, ipc.HandlerFunc(d.handle)); err != nil {
			errs <- fmt.Errorf("ipc server: %w", err)
		}
		cancel()
	}()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-hangup:
			if _, err := d.reload(); err != nil {
				d.logger.Error("reload failed", "error", err.Error())
			}
		case err := <-errs:
			runErr = err
			cancel()
			break loop
		}
	}
	wg.Wait()
	return runErr
}

func (d *daemon) handle(ctx context.Context, req ipc.Request) ipc.Response {
	if req.Command != ipc.CommandReload {
		return d.orchestrator.Handle(ctx, req)
	}

	loaded, err := d.reload()
	if err != nil {
		return ipc.Response{OK: false, Error: err.Error()}
	}
	msg := fmt.Sprintf("reloaded %s", loaded.Path)
	if n := len(loaded.Warnings); n > 0 {
		msg += fmt.Sprintf(" (%d warnings)", n)
	}
	return ipc.Response{OK: true, State: string(d.machine.State()), Message: msg}
}

func (d *daemon) reload() (config.Loaded, error) {
	d.reloadMu.Lock()
	defer d.reloadMu.Unlock()
	return d.store.Reload()
}

func (d *daemon) close() {
	for _, unsubscribe := range d.unsubscribers {
		unsubscribe()
	}
	d.providers.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.tracing.Shutdown(ctx); err != nil {
		d.logger.Warn("trace shutdown failed", "error", err.Error())
	}
}

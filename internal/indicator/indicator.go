// Package indicator shows dictation state as desktop or Hyprland
// notifications. It observes the state machine and never blocks it.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/voyc/internal/config"
	"github.com/rbright/voyc/internal/fsm"
	"github.com/rbright/voyc/internal/hypr"
)

const (
	dispatchTimeout  = 400 * time.Millisecond
	pendingQueueSize = 16
)

// Notifier renders state transitions. Observe queues work for Run.
type Notifier struct {
	logger *slog.Logger
	queue  chan fsm.Transition

	mu        sync.Mutex
	cfg       config.IndicatorConfig
	desktopID uint32
	shown     string

	// notifyDesktop and dismissDesktop are swapped in tests.
	notifyDesktop  func(ctx context.Context, appName string, replaceID uint32, summary string, timeoutMS int) (uint32, error)
	dismissDesktop func(ctx context.Context, id uint32) error
}

// New builds a notifier from config.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{
		logger:         logger,
		queue:          make(chan fsm.Transition, pendingQueueSize),
		cfg:            cfg,
		notifyDesktop:  desktopNotify,
		dismissDesktop: desktopDismiss,
	}
}

// Configure applies a reloaded indicator config.
func (n *Notifier) Configure(cfg config.IndicatorConfig) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cfg = cfg
}

// Observe is an fsm.Observer. When the queue is full the oldest pending
// transition is dropped.
func (n *Notifier) Observe(tr fsm.Transition) {
	for {
		select {
		case n.queue <- tr:
			return
		default:
		}
		select {
		case <-n.queue:
		default:
		}
	}
}

// Run renders queued transitions until ctx ends, then clears any visible
// notification.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			n.render(context.Background(), fsm.Transition{To: fsm.StateIdle})
			return
		case tr := <-n.queue:
			n.render(ctx, tr)
		}
	}
}

func (n *Notifier) render(ctx context.Context, tr fsm.Transition) {
	n.mu.Lock()
	cfg := n.cfg
	n.mu.Unlock()
	if !cfg.Enable {
		return
	}

	if tr.To == fsm.StateIdle {
		n.hide(ctx, cfg)
		return
	}
	if c, ok := cueFor(tr, cfg.ErrorTimeoutMS); ok {
		n.show(ctx, cfg, c)
	}
}

func (n *Notifier) show(ctx context.Context, cfg config.IndicatorConfig, c cue) {
	text := c.text
	n.mu.Lock()
	if n.shown == text {
		n.mu.Unlock()
		return
	}
	replaceID := n.desktopID
	n.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	if useDesktop(cfg) {
		appName := strings.TrimSpace(cfg.DesktopAppName)
		if appName == "" {
			appName = "voyc"
		}
		id, err := n.notifyDesktop(ctx, appName, replaceID, text, c.timeoutMS)
		if err != nil {
			n.logger.Debug("indicator dispatch failed", "error", err.Error())
			return
		}
		n.mu.Lock()
		n.desktopID = id
		n.shown = text
		n.mu.Unlock()
		return
	}

	if err := hypr.Notify(ctx, c.icon, c.timeoutMS, c.color, text); err != nil {
		n.logger.Debug("indicator dispatch failed", "error", err.Error())
		return
	}
	n.mu.Lock()
	n.shown = text
	n.mu.Unlock()
}

func (n *Notifier) hide(ctx context.Context, cfg config.IndicatorConfig) {
	n.mu.Lock()
	shown := n.shown
	id := n.desktopID
	n.shown = ""
	n.desktopID = 0
	n.mu.Unlock()
	if shown == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	var err error
	if useDesktop(cfg) {
		if id != 0 {
			err = n.dismissDesktop(ctx, id)
		}
	} else {
		err = hypr.DismissNotify(ctx)
	}
	if err != nil {
		n.logger.Debug("indicator dismiss failed", "error", err.Error())
	}
}

func useDesktop(cfg config.IndicatorConfig) bool {
	return strings.EqualFold(strings.TrimSpace(cfg.Backend), "desktop")
}

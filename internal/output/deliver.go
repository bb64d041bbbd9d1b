package output

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rbright/voyc/internal/config"
	"github.com/rbright/voyc/internal/hypr"
)

// Outcome describes how far delivery got.
type Outcome string

const (
	OutcomeAutoPaste     Outcome = "auto_paste"
	OutcomeClipboardOnly Outcome = "clipboard_only"
	OutcomeFailed        Outcome = "failed"
)

// DeliveryError reports text that never reached the clipboard.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver transcript: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Settings supplies the live configuration.
type Settings interface {
	Current() config.Config
}

type pasteStep struct {
	name string
	run  func(ctx context.Context, terminal bool) error
}

// Deliverer copies text to the clipboard and then tries each paste method
// until one succeeds.
type Deliverer struct {
	settings Settings
	logger   *slog.Logger
}

// NewDeliverer builds a deliverer reading settings on every call.
func NewDeliverer(settings Settings, logger *slog.Logger) *Deliverer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Deliverer{settings: settings, logger: logger}
}

// Deliver places text on the clipboard and attempts a paste. Paste failure
// degrades to clipboard-only; clipboard failure yields a DeliveryError.
func (d *Deliverer) Deliver(ctx context.Context, text string) (Outcome, error) {
	if text == "" {
		return OutcomeClipboardOnly, nil
	}
	cfg := d.settings.Current()

	clipboardCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	err := writeClipboard(clipboardCtx, cfg.Clipboard.Argv, text)
	cancel()
	if err != nil {
		d.logger.Error("clipboard write failed", "error", err.Error())
		return OutcomeFailed, &DeliveryError{Err: fmt.Errorf("set clipboard: %w", err)}
	}

	if !cfg.Paste.Enable {
		return OutcomeClipboardOnly, nil
	}

	pasteCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	terminal := IsTerminalClass(activeWindowClass(pasteCtx))

	for _, step := range d.pasteSteps(cfg) {
		if err := step.run(pasteCtx, terminal); err != nil {
			d.logger.Debug("paste method failed", "method", step.name, "error", err.Error())
			continue
		}
		d.logger.Debug("paste dispatched", "method", step.name, "terminal", terminal)
		return OutcomeAutoPaste, nil
	}

	d.logger.Warn("no paste method succeeded; clipboard remains set")
	return OutcomeClipboardOnly, nil
}

func (d *Deliverer) pasteSteps(cfg config.Config) []pasteStep {
	var steps []pasteStep
	if argv := cfg.Paste.Cmd.Argv; len(argv) > 0 {
		steps = append(steps, pasteStep{name: "paste_cmd", run: func(ctx context.Context, _ bool) error {
			return runCommandWithInput(ctx, argv, "")
		}})
	}
	if hypr.Running() {
		shortcut := cfg.Paste.Shortcut
		steps = append(steps, pasteStep{name: "hyprctl", run: func(ctx context.Context, terminal bool) error {
			if terminal {
				return hyprPaste(ctx, terminalShortcut)
			}
			return hyprPaste(ctx, shortcut)
		}})
	}
	return append(steps,
		pasteStep{name: "ydotool", run: ydotoolPaste},
		pasteStep{name: "wtype", run: wtypePaste},
	)
}

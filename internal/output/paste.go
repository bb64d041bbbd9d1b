package output

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/voyc/internal/hypr"
)

// terminalClasses are window classes that paste with ctrl+shift+v.
var terminalClasses = []string{
	"gnome-terminal",
	"gnome-terminal-server",
	"konsole",
	"alacritty",
	"kitty",
	"foot",
	"footclient",
	"wezterm",
	"ghostty",
	"tilix",
	"xfce4-terminal",
	"terminator",
	"st",
	"rio",
	"blackbox",
	"ptyxis",
	"kgx",
}

const terminalShortcut = "CTRL SHIFT,V"

// IsTerminalClass reports whether a window class belongs to a known terminal.
func IsTerminalClass(class string) bool {
	class = strings.ToLower(strings.TrimSpace(class))
	if class == "" {
		return false
	}
	// Flatpak and reverse-DNS classes such as org.wezfurlong.wezterm.
	if i := strings.LastIndex(class, "."); i >= 0 {
		if tail := class[i+1:]; tail != "" && containsClass(tail) {
			return true
		}
	}
	return containsClass(class)
}

func containsClass(class string) bool {
	for _, known := range terminalClasses {
		if class == known {
			return true
		}
	}
	return false
}

// activeWindowClass returns the focused window class, or "" when unknown.
func activeWindowClass(ctx context.Context) string {
	if hypr.Running() {
		window, err := hypr.QueryActiveWindow(ctx)
		if err != nil {
			return ""
		}
		if window.Class != "" {
			return window.Class
		}
		return window.InitialClass
	}

	out, err := exec.CommandContext(ctx, "xdotool", "getactivewindow", "getwindowclassname").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func hyprPaste(ctx context.Context, shortcut string) error {
	window, err := activeWindowWithRetry(ctx, 5, 10*time.Millisecond)
	if err != nil {
		return err
	}

	payload, err := buildPasteShortcut(shortcut, window.Address)
	if err != nil {
		return err
	}
	return hypr.SendShortcut(ctx, payload)
}

func ydotoolPaste(ctx context.Context, terminal bool) error {
	keys := "ctrl+v"
	if terminal {
		keys = "ctrl+shift+v"
	}
	return runTool(ctx, "ydotool", "key", keys)
}

func wtypePaste(ctx context.Context, terminal bool) error {
	args := []string{"-M", "ctrl", "-P", "v", "-p", "v", "-m", "ctrl"}
	if terminal {
		args = []string{"-M", "ctrl", "-M", "shift", "-P", "v", "-p", "v", "-m", "shift", "-m", "ctrl"}
	}
	return runTool(ctx, "wtype", args...)
}

var errToolMissing = errors.New("tool not installed")

func runTool(ctx context.Context, name string, args ...string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s: %w", name, errToolMissing)
	}
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if trimmed := strings.TrimSpace(string(out)); trimmed != "" {
			return fmt.Errorf("%s failed: %w (%s)", name, err, trimmed)
		}
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}

func buildPasteShortcut(shortcut string, windowAddress string) (string, error) {
	shortcut = strings.TrimSpace(shortcut)
	if shortcut == "" {
		return "", fmt.Errorf("paste shortcut cannot be empty")
	}

	address := strings.TrimSpace(windowAddress)
	if address == "" {
		return "", fmt.Errorf("active window address is required")
	}

	return fmt.Sprintf("%s,address:%s", shortcut, address), nil
}

func activeWindowWithRetry(ctx context.Context, attempts int, delay time.Duration) (hypr.ActiveWindow, error) {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		window, err := hypr.QueryActiveWindow(ctx)
		if err == nil {
			return window, nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return hypr.ActiveWindow{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	return hypr.ActiveWindow{}, fmt.Errorf("resolve active window: %w", lastErr)
}

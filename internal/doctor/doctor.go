// Package doctor runs readiness checks for config, desktop tools, audio, and
// the configured speech providers.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/voyc/internal/audio"
	"github.com/rbright/voyc/internal/config"
	"github.com/rbright/voyc/internal/hypr"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes every check against a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{configCheck(loaded)}

	checks = append(checks, checkEnv("XDG_SESSION_TYPE", func(v string) bool {
		return strings.EqualFold(strings.TrimSpace(v), "wayland")
	}, "session type is wayland", "expected XDG_SESSION_TYPE=wayland"))

	checks = append(checks, checkCommand(cfg.Clipboard.Argv, "clipboard_cmd"))
	if cfg.Paste.Enable {
		checks = append(checks, checkPaste(cfg))
	}

	checks = append(checks, checkAudioSelection(ctx, cfg))
	checks = append(checks, checkCredential(string(cfg.Provider), cfg.APIKey(cfg.Provider)))
	checks = append(checks, checkEndpoint(ctx, "provider.endpoint", transcriptionEndpoint(cfg)))

	if cfg.Refinement.Enable && cfg.Refinement.Provider != config.RefinerNone {
		checks = append(checks, checkCredential("refinement."+string(cfg.Refinement.Provider), cfg.RefinerAPIKey()))
	}

	return Report{Checks: checks}
}

func configCheck(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", loaded.Path)}
	}
	return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", loaded.Path)}
}

func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	if predicate(os.Getenv(name)) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkPaste passes when any paste path delivery would try is usable.
func checkPaste(cfg config.Config) Check {
	if len(cfg.Paste.Cmd.Argv) > 0 {
		return checkCommand(cfg.Paste.Cmd.Argv, "paste_cmd")
	}

	var candidates []string
	if hypr.Running() {
		candidates = append(candidates, "hyprctl")
	}
	candidates = append(candidates, "ydotool", "wtype")
	for _, bin := range candidates {
		if path, err := exec.LookPath(bin); err == nil {
			return Check{Name: "paste", Pass: true, Message: fmt.Sprintf("using %s at %s", bin, path)}
		}
	}
	return Check{
		Name:    "paste",
		Pass:    false,
		Message: fmt.Sprintf("none of %s found; text will stay on the clipboard", strings.Join(candidates, ", ")),
	}
}

func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message += " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

func checkCredential(name string, key string) Check {
	if strings.TrimSpace(key) == "" {
		return Check{Name: name + ".api_key", Pass: false, Message: "API key is not configured"}
	}
	return Check{Name: name + ".api_key", Pass: true, Message: "API key is set"}
}

func transcriptionEndpoint(cfg config.Config) string {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return cfg.Endpoints.OpenAI
	default:
		return cfg.Endpoints.ElevenLabs
	}
}

// checkEndpoint treats any HTTP response as reachable; auth is not tested.
func checkEndpoint(ctx context.Context, name string, base string) Check {
	base = strings.TrimSpace(base)
	if base == "" {
		return Check{Name: name, Pass: false, Message: "endpoint is empty"}
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, base, nil)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	_ = resp.Body.Close()
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, base)}
}

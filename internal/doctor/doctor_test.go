package doctor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/voyc/internal/config"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	require.Equal(t, "[OK] one: good\n[FAIL] two: bad", report.String())
	require.True(t, Report{Checks: []Check{{Name: "one", Pass: true}}}.OK())
}

func TestCheckEnv(t *testing.T) {
	t.Setenv("TEST_DOCTOR_ENV", "Wayland")

	check := checkEnv("TEST_DOCTOR_ENV", func(v string) bool { return strings.EqualFold(v, "wayland") }, "looks good", "unexpected")
	require.True(t, check.Pass)
	require.Equal(t, "looks good", check.Message)
}

func TestCheckCommand(t *testing.T) {
	require.Contains(t, checkCommand(nil, "clipboard_cmd").Message, "command is empty")

	dir := installBinaries(t, "fake-bin")
	check := checkCommand([]string{"fake-bin", "--arg"}, "clipboard_cmd")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, filepath.Join(dir, "fake-bin"))

	missing := checkBinary("definitely-not-a-real-binary", "unused")
	require.False(t, missing.Pass)
	require.Contains(t, missing.Message, "binary not found")
}

func TestCheckPaste(t *testing.T) {
	t.Run("paste command wins", func(t *testing.T) {
		installBinaries(t, "fake-paste")
		cfg := config.Default()
		cfg.Paste.Cmd = config.CommandConfig{Raw: "fake-paste", Argv: []string{"fake-paste"}}
		check := checkPaste(cfg)
		require.True(t, check.Pass)
		require.Equal(t, "fake-paste", check.Name)
	})

	t.Run("hyprctl inside hyprland", func(t *testing.T) {
		isolateBinaries(t, "hyprctl", "wtype")
		t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "abc123")
		check := checkPaste(config.Default())
		require.True(t, check.Pass)
		require.Contains(t, check.Message, "using hyprctl")
	})

	t.Run("wtype outside hyprland", func(t *testing.T) {
		isolateBinaries(t, "hyprctl", "wtype")
		t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "")
		check := checkPaste(config.Default())
		require.True(t, check.Pass)
		require.Contains(t, check.Message, "using wtype")
	})

	t.Run("nothing available", func(t *testing.T) {
		isolateBinaries(t)
		t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "")
		check := checkPaste(config.Default())
		require.False(t, check.Pass)
		require.Contains(t, check.Message, "ydotool, wtype")
	})
}

func TestCheckCredential(t *testing.T) {
	require.False(t, checkCredential("elevenlabs", " ").Pass)
	check := checkCredential("elevenlabs", "xi-key")
	require.True(t, check.Pass)
	require.Equal(t, "elevenlabs.api_key", check.Name)
}

func TestCheckEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	check := checkEndpoint(context.Background(), "provider.endpoint", server.URL)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "HTTP 401")

	require.Contains(t, checkEndpoint(context.Background(), "provider.endpoint", "").Message, "endpoint is empty")

	server.Close()
	unreachable := checkEndpoint(context.Background(), "provider.endpoint", server.URL)
	require.False(t, unreachable.Pass)
	require.Contains(t, unreachable.Message, "request failed")
}

func TestRunReportsProviderChecks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	installBinaries(t, "wl-copy", "wtype")
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	t.Setenv("XDG_SESSION_TYPE", "wayland")
	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "")

	cfg := config.Default()
	cfg.Provider = config.ProviderOpenAI
	cfg.Endpoints.OpenAI = server.URL
	cfg.Credentials.OpenAIAPIKey = "sk-test"
	cfg.Refinement.Enable = true
	cfg.Refinement.Provider = config.RefinerBaseten
	cfg.Credentials.BasetenAPIKey = ""

	report := Run(context.Background(), config.Loaded{Path: "/tmp/config.yaml", Config: cfg, Exists: true})

	byName := map[string]Check{}
	for _, check := range report.Checks {
		byName[check.Name] = check
	}
	require.True(t, byName["openai.api_key"].Pass)
	require.True(t, byName["provider.endpoint"].Pass)
	require.False(t, byName["refinement.baseten.api_key"].Pass)
	require.False(t, byName["audio.device"].Pass)
	require.True(t, byName["paste"].Pass)
	require.False(t, report.OK())
}

func installBinaries(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755))
	}
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
	return dir
}

// isolateBinaries replaces PATH with a directory holding only names.
func isolateBinaries(t *testing.T, names ...string) {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755))
	}
	t.Setenv("PATH", dir)
}

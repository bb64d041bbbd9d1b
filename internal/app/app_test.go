package app

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/voyc/internal/ipc"
)

func TestExecuteHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "voyc")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"definitely-not-a-command"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestStatusReportsIdleWithoutDaemon(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "idle\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestForwardedCommandsFailWithoutDaemon(t *testing.T) {
	paths := setupRunnerEnv(t)

	for _, cmd := range []string{"toggle", "stop", "cancel", "reset", "reload"} {
		var stdout, stderr bytes.Buffer
		runner := Runner{Stdout: &stdout, Stderr: &stderr}

		exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, cmd})
		require.Equal(t, 1, exitCode, cmd)
		require.Contains(t, stderr.String(), "voyc daemon is not running", cmd)
	}
}

func TestRunnerForwardsCommandsToDaemon(t *testing.T) {
	paths := setupRunnerEnv(t)
	commands := make(chan string, 8)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "voyc.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		commands <- req.Command
		if req.Command == ipc.CommandStatus {
			return ipc.Response{OK: true, State: "listening", Cycle: "abc"}
		}
		return ipc.Response{OK: true, Message: req.Command + " handled"}
	})
	defer shutdown()

	for _, cmd := range ipc.Commands() {
		var stdout, stderr bytes.Buffer
		runner := Runner{Stdout: &stdout, Stderr: &stderr}

		exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, cmd})
		require.Equal(t, 0, exitCode, cmd)
		require.Empty(t, stderr.String(), cmd)
		if cmd == ipc.CommandStatus {
			require.Equal(t, "listening\n", stdout.String())
		} else {
			require.Equal(t, cmd+" handled\n", stdout.String())
		}
	}

	got := make([]string, 0, len(ipc.Commands()))
	for range ipc.Commands() {
		got = append(got, <-commands)
	}
	require.Equal(t, ipc.Commands(), got)
}

func TestStatusPrintsErrorAndLastCycle(t *testing.T) {
	paths := setupRunnerEnv(t)
	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "voyc.sock"), func(context.Context, ipc.Request) ipc.Response {
		return ipc.Response{
			OK:      true,
			State:   "error",
			Message: "transcribe: elevenlabs: provider authentication failed",
			Last:    &ipc.CycleSummary{ID: "c1", Outcome: "error", Error: "transcribe: boom"},
		}
	})
	defer shutdown()

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}
	require.Equal(t, 0, runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"}))
	require.Equal(t, strings.Join([]string{
		"error: transcribe: elevenlabs: provider authentication failed",
		"last: error delivery= chars=0 stt_ms=0 total_ms=0",
		"last error: transcribe: boom",
		"",
	}, "\n"), stdout.String())
}

func TestForwardPropagatesDaemonErrors(t *testing.T) {
	paths := setupRunnerEnv(t)
	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "voyc.sock"), func(context.Context, ipc.Request) ipc.Response {
		return ipc.Response{OK: false, State: "error", Error: "dictation is in error state; reset required"}
	})
	defer shutdown()

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}
	require.Equal(t, 1, runner.Execute(context.Background(), []string{"--config", paths.configPath, "toggle"}))
	require.Contains(t, stderr.String(), "reset required")
}

func TestServeAnswersCommandsAndCleansUpSocket(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	t.Setenv("ELEVENLABS_API_KEY", "xi-test")
	socketPath := filepath.Join(paths.runtimeDir, "voyc.sock")

	ctx, cancel := context.WithCancel(context.Background())
	var stdout, stderr bytes.Buffer
	done := make(chan int, 1)
	go func() {
		runner := Runner{Stdout: &stdout, Stderr: &stderr}
		done <- runner.Execute(ctx, []string{"--config", paths.configPath, "serve"})
	}()

	require.Eventually(t, func() bool {
		alive, err := ipc.Probe(context.Background(), socketPath, 100*time.Millisecond)
		return err == nil && alive
	}, 3*time.Second, 10*time.Millisecond)

	send := func(command string) ipc.Response {
		resp, err := ipc.Send(context.Background(), socketPath, ipc.Request{Command: command}, time.Second)
		require.NoError(t, err)
		return resp
	}

	status := send(ipc.CommandStatus)
	require.True(t, status.OK)
	require.Equal(t, "idle", status.State)

	reload := send(ipc.CommandReload)
	require.True(t, reload.OK, reload.Error)
	require.Contains(t, reload.Message, "reloaded "+paths.configPath)

	// Capture cannot start without a pulse server, so the cycle lands in error.
	toggle := send(ipc.CommandToggle)
	require.True(t, toggle.OK, toggle.Error)
	require.Eventually(t, func() bool { return send(ipc.CommandStatus).State == "error" }, 3*time.Second, 10*time.Millisecond)

	reset := send(ipc.CommandReset)
	require.True(t, reset.OK)
	require.Equal(t, "idle", reset.State)

	cancel()
	select {
	case code := <-done:
		require.Equal(t, 0, code, stderr.String())
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not exit")
	}
	_, err := os.Stat(socketPath)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestServeRefusesSecondDaemon(t *testing.T) {
	paths := setupRunnerEnv(t)
	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "voyc.sock"), func(context.Context, ipc.Request) ipc.Response {
		return ipc.Response{OK: true, State: "idle"}
	})
	defer shutdown()

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}
	require.Equal(t, 1, runner.Execute(context.Background(), []string{"--config", paths.configPath, "serve"}))
	require.Contains(t, stderr.String(), "already running")
}

func TestTryForwardSuccessAndFailureResponses(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "voyc.sock")
	shutdown := startIPCServerForRunnerTest(t, socketPath, func(_ context.Context, req ipc.Request) ipc.Response {
		if req.Command == ipc.CommandStatus {
			return ipc.Response{OK: true, State: "listening"}
		}
		return ipc.Response{OK: false, Error: "unsupported"}
	})
	defer shutdown()

	resp, handled, err := tryForward(context.Background(), socketPath, ipc.CommandStatus)
	require.True(t, handled)
	require.NoError(t, err)
	require.Equal(t, "listening", resp.State)

	_, handled, err = tryForward(context.Background(), socketPath, ipc.CommandCancel)
	require.True(t, handled)
	require.ErrorContains(t, err, "unsupported")
}

func TestTryForwardLeavesStaleSocketInPlace(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "voyc.sock")
	require.NoError(t, os.WriteFile(socketPath, []byte("stale"), 0o600))

	_, handled, err := tryForward(context.Background(), socketPath, ipc.CommandStatus)
	require.False(t, handled)
	require.NoError(t, err)

	_, statErr := os.Stat(socketPath)
	require.NoError(t, statErr)
}

func TestTryForwardTreatsReadFailuresAsHandledErrors(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "voyc.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		if conn, acceptErr := listener.Accept(); acceptErr == nil {
			_ = conn.Close()
		}
	}()

	_, handled, err := tryForward(context.Background(), socketPath, ipc.CommandStatus)
	require.True(t, handled)
	require.ErrorContains(t, err, `forward command "status":`)
}

func TestRunnerDoctorCommandPrintsReport(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("XDG_SESSION_TYPE", "x11")
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "doctor"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stdout.String(), "[OK] config: loaded")
	require.Contains(t, stdout.String(), "XDG_SESSION_TYPE")
}

func TestRunnerDevicesCommandReportsPulseFailure(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
}

func TestRunnerRejectsInvalidConfig(t *testing.T) {
	paths := setupRunnerEnv(t)
	require.NoError(t, os.WriteFile(paths.configPath, []byte("provider: [not a string\n"), 0o600))

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}
	require.Equal(t, 1, runner.Execute(context.Background(), []string{"--config", paths.configPath, "doctor"}))
	require.Contains(t, stderr.String(), "parse config")
}

type runnerPaths struct {
	configPath string
	runtimeDir string
}

func setupRunnerEnv(t *testing.T) runnerPaths {
	t.Helper()

	runtimeDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("error_auto_reset_ms: 0\nindicator:\n  enable: false\n"), 0o600))

	return runnerPaths{configPath: configPath, runtimeDir: runtimeDir}
}

func startIPCServerForRunnerTest(t *testing.T, socketPath string, handler func(context.Context, ipc.Request) ipc.Response) func() {
	t.Helper()

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ipc.Serve(ctx, listener, ipc.HandlerFunc(handler))
	}()

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}

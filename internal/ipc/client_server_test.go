package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSendRoundTrip(t *testing.T) {
	socketPath := serveForTest(t, func(_ context.Context, req Request) Response {
		if req.Command != CommandStatus {
			return Response{OK: false, Error: "unexpected " + req.Command}
		}
		return Response{OK: true, State: "listening", Cycle: "c-1", Last: &CycleSummary{ID: "c-0", Outcome: "success", Chars: 12}}
	})

	resp, err := Send(context.Background(), socketPath, Request{Command: CommandStatus}, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Equal(t, "listening", resp.State)
	require.Equal(t, "c-1", resp.Cycle)
	require.Equal(t, &CycleSummary{ID: "c-0", Outcome: "success", Chars: 12}, resp.Last)
}

func TestSendReportsMalformedReplies(t *testing.T) {
	tests := []struct {
		name  string
		reply func(net.Conn)
		want  string
	}{
		{
			name:  "not json",
			reply: func(c net.Conn) { _, _ = c.Write([]byte("not-json\n")) },
			want:  "decode response",
		},
		{
			name:  "closed without reply",
			reply: func(net.Conn) {},
			want:  "read response",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			socketPath := filepath.Join(t.TempDir(), SocketName)
			listener, err := net.Listen("unix", socketPath)
			require.NoError(t, err)
			t.Cleanup(func() { _ = listener.Close() })

			go func() {
				conn, acceptErr := listener.Accept()
				if acceptErr != nil {
					return
				}
				defer conn.Close()
				_, _ = bufio.NewReader(conn).ReadBytes('\n')
				tc.reply(conn)
			}()

			_, err = Send(context.Background(), socketPath, Request{Command: CommandStatus}, 200*time.Millisecond)
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestServeRejectsBadRequests(t *testing.T) {
	socketPath := serveForTest(t, func(context.Context, Request) Response {
		return Response{OK: true}
	})

	tests := []struct {
		name string
		line string
		want string
	}{
		{name: "not json", line: "not-json\n", want: "decode request"},
		{name: "empty command", line: `{"command":"  "}` + "\n", want: "request has no command"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := rawRoundTrip(t, socketPath, tc.line)
			require.False(t, resp.OK)
			require.Contains(t, resp.Error, tc.want)
		})
	}
}

func TestServeRecoversHandlerPanic(t *testing.T) {
	socketPath := serveForTest(t, func(_ context.Context, req Request) Response {
		if req.Command == CommandToggle {
			panic("boom")
		}
		return Response{OK: true, State: "idle"}
	})

	resp, err := Send(context.Background(), socketPath, Request{Command: CommandToggle}, time.Second)
	require.NoError(t, err)
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, `command "toggle" panicked: boom`)

	resp, err = Send(context.Background(), socketPath, Request{Command: CommandStatus}, time.Second)
	require.NoError(t, err)
	require.True(t, resp.OK)
}

func TestProbe(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), SocketName)
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(context.Context, Request) Response {
			return Response{OK: true, State: "idle"}
		}))
	}()

	alive, err := Probe(context.Background(), socketPath, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, alive)

	cancel()
	require.NoError(t, <-serveDone)

	alive, err = Probe(context.Background(), socketPath, 100*time.Millisecond)
	require.NoError(t, err)
	require.False(t, alive)
}

func TestUnavailable(t *testing.T) {
	require.False(t, Unavailable(nil))
	require.False(t, Unavailable(errors.New("other")))
	require.True(t, Unavailable(os.ErrNotExist))
	require.True(t, Unavailable(&net.OpError{Op: "dial", Net: "unix", Err: os.NewSyscallError("connect", syscall.ENOENT)}))
	require.True(t, Unavailable(&net.OpError{Op: "dial", Net: "unix", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}))
}

func serveForTest(t *testing.T, fn func(context.Context, Request) Response) string {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), SocketName)
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, listener, HandlerFunc(fn)) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return socketPath
}

func rawRoundTrip(t *testing.T, socketPath string, line string) Response {
	t.Helper()

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(line))
	require.NoError(t, err)
	reply, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(reply, &resp))
	return resp
}

package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-arndt/werkbank/internal/execute"
	"github.com/p-arndt/werkbank/internal/testutil"
	"github.com/p-arndt/werkbank/internal/workspace"
	"github.com/p-arndt/werkbank/protocol"
)

// startTestServer runs Serve on one end of an in-memory connection and
// returns a client for the other end.
func startTestServer(t *testing.T) (*testutil.Client, string) {
	t.Helper()

	dir := t.TempDir()
	ws, err := workspace.New(dir)
	require.NoError(t, err)

	cfg := testutil.TestConfig()
	runner := execute.NewRunner(ws.Root(), cfg.MaxOutputBytes, cfg.GracePeriod())
	srv := New(ws, runner, cfg, testutil.TestLogger())

	serverConn, clientConn := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Serve(ctx, serverConn)
	}()
	t.Cleanup(func() {
		cancel()
		clientConn.Close()
		serverConn.Close()
		<-done
	})

	return testutil.NewClient(clientConn), dir
}

func str(s string) *string { return &s }

func TestWriteThenRead(t *testing.T) {
	client, _ := startTestServer(t)

	resp := client.Do(t, protocol.Request{ID: "r1", Op: protocol.OpWriteFile, Path: "a/b.txt", Content: str("hello")})
	require.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, "r1", resp.ID)
	assert.Equal(t, "wrote 5 bytes to a/b.txt", resp.Data)

	resp = client.Do(t, protocol.Request{ID: "r2", Op: protocol.OpReadFile, Path: "a/b.txt"})
	require.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, "r2", resp.ID)
	assert.Equal(t, "hello", resp.Data)
}

func TestReadMissingPath(t *testing.T) {
	client, _ := startTestServer(t)

	resp := client.Do(t, protocol.Request{ID: "r1", Op: protocol.OpReadFile})
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, "missing path", resp.Error)
}

func TestWriteMissingContent(t *testing.T) {
	client, _ := startTestServer(t)

	resp := client.Do(t, protocol.Request{ID: "r1", Op: protocol.OpWriteFile, Path: "a.txt"})
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, "missing content", resp.Error)
}

func TestWriteEmptyContent(t *testing.T) {
	client, _ := startTestServer(t)

	resp := client.Do(t, protocol.Request{ID: "r1", Op: protocol.OpWriteFile, Path: "a.txt", Content: str("")})
	require.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, "wrote 0 bytes to a.txt", resp.Data)
}

func TestReadTraversalRejected(t *testing.T) {
	client, _ := startTestServer(t)

	resp := client.Do(t, protocol.Request{ID: "r4", Op: protocol.OpReadFile, Path: "../etc/passwd"})
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, "r4", resp.ID)
	assert.Contains(t, resp.Error, "escapes workspace")
}

func TestListDir(t *testing.T) {
	client, _ := startTestServer(t)

	client.Do(t, protocol.Request{ID: "w1", Op: protocol.OpWriteFile, Path: "sub/x.txt", Content: str("x")})

	resp := client.Do(t, protocol.Request{ID: "l1", Op: protocol.OpListDir, Path: "."})
	require.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, "[dir] sub", resp.Data)

	resp = client.Do(t, protocol.Request{ID: "l2", Op: protocol.OpListDir, Path: "sub"})
	require.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, "[file] x.txt", resp.Data)
}

func TestListDirEmptySentinel(t *testing.T) {
	client, _ := startTestServer(t)

	resp := client.Do(t, protocol.Request{ID: "l1", Op: protocol.OpListDir, Path: "."})
	require.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, "directory is empty", resp.Data)
}

func TestExecSuccess(t *testing.T) {
	client, _ := startTestServer(t)

	resp := client.Do(t, protocol.Request{ID: "e1", Op: protocol.OpExec, Command: "echo hello"})
	require.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, "hello\n", resp.Data)
	require.NotNil(t, resp.ExitCode)
	assert.Equal(t, 0, *resp.ExitCode)
}

func TestExecNonZeroExitTrailer(t *testing.T) {
	client, _ := startTestServer(t)

	resp := client.Do(t, protocol.Request{ID: "e1", Op: protocol.OpExec, Command: "echo boom >&2; exit 3"})
	require.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, "STDERR:\nboom\n\nExit code: 3", resp.Data)
	require.NotNil(t, resp.ExitCode)
	assert.Equal(t, 3, *resp.ExitCode)
}

func TestExecNoOutputSentinel(t *testing.T) {
	client, _ := startTestServer(t)

	resp := client.Do(t, protocol.Request{ID: "e1", Op: protocol.OpExec, Command: "true"})
	require.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, "[no output]", resp.Data)
}

func TestExecTimeout(t *testing.T) {
	client, _ := startTestServer(t)

	start := time.Now()
	resp := client.Do(t, protocol.Request{ID: "r3", Op: protocol.OpExec, Command: "sleep 5", Timeout: 1})
	elapsed := time.Since(start)

	require.Equal(t, protocol.StatusOK, resp.Status)
	require.NotNil(t, resp.ExitCode)
	assert.Equal(t, protocol.TimeoutExitCode, *resp.ExitCode)
	assert.NotContains(t, resp.Data, "Exit code:")
	assert.Less(t, elapsed, 2500*time.Millisecond)
}

func TestExecMissingCommand(t *testing.T) {
	client, _ := startTestServer(t)

	resp := client.Do(t, protocol.Request{ID: "e1", Op: protocol.OpExec})
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, "missing command", resp.Error)
}

func TestUnknownOperation(t *testing.T) {
	client, _ := startTestServer(t)

	resp := client.Do(t, protocol.Request{ID: "x1", Op: "compress"})
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, "x1", resp.ID)
	assert.Contains(t, resp.Error, "unknown operation: compress")
}

func TestMalformedRecord(t *testing.T) {
	client, _ := startTestServer(t)

	resp := client.SendRaw(t, "{not json")
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, protocol.PlaceholderID, resp.ID)
	assert.Contains(t, resp.Error, "invalid request")
}

func TestConnectionSurvivesErrors(t *testing.T) {
	client, _ := startTestServer(t)

	client.SendRaw(t, "garbage")
	client.Do(t, protocol.Request{ID: "b1", Op: "bogus"})

	// The connection is still serving after two failures.
	resp := client.Do(t, protocol.Request{ID: "e1", Op: protocol.OpExec, Command: "echo alive"})
	require.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, "alive\n", resp.Data)
}

func TestFormatExecBody(t *testing.T) {
	tests := []struct {
		name string
		res  execute.Result
		want string
	}{
		{"stdout only", execute.Result{Stdout: "out\n"}, "out\n"},
		{"stderr only", execute.Result{Stderr: "err\n"}, "STDERR:\nerr\n"},
		{"both with failure", execute.Result{ExitCode: 2, Stdout: "out\n", Stderr: "err\n"}, "out\n\nSTDERR:\nerr\n\nExit code: 2"},
		{"timeout has no trailer", execute.Result{ExitCode: protocol.TimeoutExitCode, Stdout: "partial\n"}, "partial\n"},
		{"all empty", execute.Result{}, "[no output]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatExecBody(&tt.res))
		})
	}
}

// Package execute runs shell commands in the workspace with capped
// output capture and timeout supervision.
package execute

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/p-arndt/werkbank/protocol"
)

// Result is the captured outcome of one command: termination status plus
// both output streams.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner supervises command execution in a fixed working directory.
type Runner struct {
	dir       string
	maxOutput int
	grace     time.Duration
}

// NewRunner creates a runner rooted at dir. Zero values for maxOutput and
// grace fall back to the protocol defaults.
func NewRunner(dir string, maxOutput int, grace time.Duration) *Runner {
	if maxOutput <= 0 {
		maxOutput = protocol.MaxOutputBytes
	}
	if grace <= 0 {
		grace = protocol.GracePeriod
	}
	return &Runner{dir: dir, maxOutput: maxOutput, grace: grace}
}

// Run hands command to `sh -c` with the workspace as working directory,
// drains stdout and stderr concurrently with the wait, and races natural
// completion against timeout. On timeout the child is terminated with
// SIGTERM, given a grace period, then SIGKILL, and reaped; the exit code
// becomes the timeout sentinel. Both drains are joined before the result
// is assembled, whichever way the race went.
func (r *Runner) Run(ctx context.Context, command string, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		timeout = protocol.DefaultExecTimeout
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = r.dir
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	// Own process group, so escalation reaches the shell's children too.
	// Otherwise an orphaned child would keep the pipe write ends open and
	// stall the drains past the kill.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return nil, fmt.Errorf("start: %w", err)
	}

	// The child holds its own copies of the write ends; close ours so
	// the drains see EOF once the child exits.
	stdoutW.Close()
	stderrW.Close()

	outCh := make(chan string, 1)
	errCh := make(chan string, 1)
	go func() { outCh <- capture(stdoutR, r.maxOutput) }()
	go func() { errCh <- capture(stderrR, r.maxOutput) }()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var exitCode int
	var runErr error
	select {
	case waitErr := <-done:
		exitCode = exitStatus(waitErr)
	case <-timer.C:
		exitCode = r.terminate(cmd, done)
	case <-ctx.Done():
		r.terminate(cmd, done)
		runErr = ctx.Err()
	}

	// Join both drains unconditionally before releasing the pipes.
	stdout := <-outCh
	stderr := <-errCh
	stdoutR.Close()
	stderrR.Close()

	if runErr != nil {
		return nil, runErr
	}
	return &Result{ExitCode: exitCode, Stdout: stdout, Stderr: stderr}, nil
}

// terminate escalates SIGTERM, a grace period, then SIGKILL, addressed
// to the whole process group, and always reaps the child. Returns the
// timeout sentinel exit code.
func (r *Runner) terminate(cmd *exec.Cmd, done <-chan error) int {
	signalGroup(cmd, unix.SIGTERM)
	select {
	case <-done:
	case <-time.After(r.grace):
		signalGroup(cmd, unix.SIGKILL)
		<-done
	}
	return protocol.TimeoutExitCode
}

// signalGroup delivers sig to the child's process group, falling back to
// the child alone if the group is already gone.
func signalGroup(cmd *exec.Cmd, sig unix.Signal) {
	if err := unix.Kill(-cmd.Process.Pid, sig); err != nil {
		cmd.Process.Signal(sig)
	}
}

// exitStatus maps cmd.Wait's error into a numeric exit code. A process
// killed by a signal reports -1.
func exitStatus(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

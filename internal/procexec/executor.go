// Package procexec runs the external tools clipforge manages. An Executor
// owns at most one child process at a time and exposes a streaming run with
// merged output, a capturing run with separated output, and cancellation
// that is reported distinctly from process exit codes.
package procexec

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

var (
	// ErrExecutableNotFound marks a process that could not be spawned.
	ErrExecutableNotFound = errors.New("executable not found")
	// ErrCancelled marks a run terminated by Cancel or context cancellation.
	ErrCancelled = errors.New("run cancelled")
	// ErrBusy marks an invocation attempted while another run is in flight.
	ErrBusy = errors.New("executor busy")
)

// ExitError wraps a nonzero exit status for callers that treat it as fatal.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Capture holds the separated output of a completed RunCapture call.
type Capture struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Executor runs one external process at a time. Overlapping invocations are
// rejected with ErrBusy; Cancel kills whatever is in flight.
type Executor struct {
	mu        sync.Mutex
	cmd       *exec.Cmd
	cancelled bool
}

// New constructs an idle Executor.
func New() *Executor {
	return &Executor{}
}

// Run executes the binary with stdout and stderr merged into a single stream
// and forwards each non-blank line to onLine. The stream is drained to EOF
// before the exit code is returned, so every line the process wrote is
// delivered first. A nonzero exit code is returned with a nil error; callers
// decide severity.
func (e *Executor) Run(ctx context.Context, binary string, args []string, onLine func(string)) (int, error) {
	cmd := newCommand(ctx, binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := e.start(binary, cmd); err != nil {
		return 0, err
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanSeparatedLines)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if onLine != nil {
			onLine(line)
		}
	}
	scanErr := scanner.Err()
	if scanErr != nil {
		// Unblock Wait if the process is still writing.
		_ = terminate(cmd)
	}

	return e.finish(ctx, cmd, scanErr)
}

// RunCapture executes the binary with stdout and stderr captured separately.
// Both pipes are drained by concurrent readers that are joined before the
// process is reaped, so output larger than the pipe buffer cannot deadlock
// the child. A nonzero exit code is returned in the Capture with a nil error.
func (e *Executor) RunCapture(ctx context.Context, binary string, args []string) (Capture, error) {
	cmd := newCommand(ctx, binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Capture{}, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Capture{}, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := e.start(binary, cmd); err != nil {
		return Capture{}, err
	}

	var outBuf, errBuf bytes.Buffer
	var wg sync.WaitGroup
	var copyErr error
	var once sync.Once

	drain := func(dst *bytes.Buffer, src io.Reader) {
		defer wg.Done()
		if _, err := io.Copy(dst, src); err != nil {
			once.Do(func() {
				copyErr = err
			})
		}
	}

	wg.Add(2)
	go drain(&outBuf, stdout)
	go drain(&errBuf, stderr)
	wg.Wait()

	code, err := e.finish(ctx, cmd, copyErr)
	if err != nil {
		return Capture{}, err
	}
	return Capture{ExitCode: code, Stdout: outBuf.Bytes(), Stderr: errBuf.Bytes()}, nil
}

// Cancel kills the in-flight process, if any. The interrupted run reports
// ErrCancelled instead of an exit code. Cancelling an idle executor is a
// no-op.
func (e *Executor) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd == nil || e.cmd.Process == nil {
		return
	}
	e.cancelled = true
	_ = terminate(e.cmd)
}

func newCommand(ctx context.Context, binary string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		return terminate(cmd)
	}
	return cmd
}

func (e *Executor) start(binary string, cmd *exec.Cmd) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd != nil {
		return fmt.Errorf("%w: %s still running", ErrBusy, e.cmd.Path)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrExecutableNotFound, binary, err)
	}
	e.cmd = cmd
	e.cancelled = false
	return nil
}

func (e *Executor) finish(ctx context.Context, cmd *exec.Cmd, readErr error) (int, error) {
	waitErr := cmd.Wait()

	e.mu.Lock()
	cancelled := e.cancelled
	e.cmd = nil
	e.cancelled = false
	e.mu.Unlock()

	if cancelled || ctx.Err() != nil {
		return 0, ErrCancelled
	}
	if readErr != nil {
		return 0, fmt.Errorf("read output: %w", readErr)
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 0, fmt.Errorf("wait command: %w", waitErr)
	}
	return 0, nil
}

// scanSeparatedLines splits on both newline and carriage return so progress
// output rewritten in place with \r is surfaced line by line.
func scanSeparatedLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

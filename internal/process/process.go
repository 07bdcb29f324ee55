// Package process runs external tools and forwards their diagnostic output
// line by line while they run.
package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"songstream/internal/metrics"
)

const maxLineBytes = 1024 * 1024

// Runner starts external processes. Exec is the production implementation;
// tests substitute fakes.
type Runner interface {
	// Stream runs name with args and calls onLine for every line written to
	// stdout or stderr as it arrives. It returns once the process has exited
	// and both streams are drained.
	Stream(ctx context.Context, name string, args []string, onLine func(string)) error
	// Output runs name with args to completion and returns its stdout.
	Output(ctx context.Context, name string, args []string) ([]byte, error)
}

// State is the lifecycle position of one invocation.
type State string

const (
	StateNotStarted State = "not_started"
	StateRunning    State = "running"
	StateExited     State = "exited"
)

// SpawnError means the process never started.
type SpawnError struct {
	Name string
	Err  error
}

func (e *SpawnError) Error() string { return fmt.Sprintf("spawn %s: %v", e.Name, e.Err) }
func (e *SpawnError) Unwrap() error { return e.Err }

// ExitError means the process ran and exited unsuccessfully.
type ExitError struct {
	Name   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s exited with code %d: %s", e.Name, e.Code, e.Stderr)
	}
	return fmt.Sprintf("%s exited with code %d", e.Name, e.Code)
}

// Exec runs processes with os/exec.
type Exec struct{}

// invocation tracks a single command through not_started, running and exited.
type invocation struct {
	mu       sync.Mutex
	name     string
	state    State
	exitCode int
}

func newInvocation(name string) *invocation {
	return &invocation{name: filepath.Base(name), state: StateNotStarted, exitCode: -1}
}

func (i *invocation) State() (State, int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state, i.exitCode
}

func (i *invocation) running(pid int) {
	i.mu.Lock()
	i.state = StateRunning
	i.mu.Unlock()
	log.Debug().Str("binary", i.name).Int("pid", pid).Msg("process running")
}

func (i *invocation) exited(code int) {
	i.mu.Lock()
	i.state = StateExited
	i.exitCode = code
	i.mu.Unlock()

	outcome := "success"
	if code != 0 {
		outcome = "failure"
	}
	metrics.ProcessExits.WithLabelValues(i.name, outcome).Inc()
	log.Debug().Str("binary", i.name).Int("exit_code", code).Msg("process exited")
}

func (Exec) Stream(ctx context.Context, name string, args []string, onLine func(string)) error {
	inv := newInvocation(name)
	cmd := exec.CommandContext(ctx, name, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &SpawnError{Name: name, Err: fmt.Errorf("pipe stdout: %w", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &SpawnError{Name: name, Err: fmt.Errorf("pipe stderr: %w", err)}
	}
	if err := cmd.Start(); err != nil {
		return &SpawnError{Name: name, Err: err}
	}
	inv.running(cmd.Process.Pid)

	// Both pipes must be drained before Wait closes them.
	var g errgroup.Group
	g.Go(func() error { return forwardLines(stdout, onLine) })
	g.Go(func() error { return forwardLines(stderr, onLine) })
	scanErr := g.Wait()

	waitErr := cmd.Wait()
	code := exitCode(cmd, waitErr)
	inv.exited(code)

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return &ExitError{Name: name, Code: code}
		}
		return fmt.Errorf("wait %s: %w", name, waitErr)
	}
	if scanErr != nil {
		return fmt.Errorf("read %s output: %w", name, scanErr)
	}
	return nil
}

func (Exec) Output(ctx context.Context, name string, args []string) ([]byte, error) {
	inv := newInvocation(name)
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Name: name, Err: err}
	}
	inv.running(cmd.Process.Pid)

	waitErr := cmd.Wait()
	code := exitCode(cmd, waitErr)
	inv.exited(code)
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return stdout.Bytes(), &ExitError{Name: name, Code: code, Stderr: string(bytes.TrimSpace(stderr.Bytes()))}
		}
		return stdout.Bytes(), fmt.Errorf("wait %s: %w", name, waitErr)
	}
	return stdout.Bytes(), nil
}

func forwardLines(r io.Reader, onLine func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		onLine(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		// keep draining so the child never blocks on a full pipe
		_, _ = io.Copy(io.Discard, r)
		return err
	}
	return nil
}

func exitCode(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		return -1
	}
	return 0
}

// Describe renders a command line for log lines.
func Describe(name string, args []string) string {
	out := filepath.Base(name)
	for _, a := range args {
		out += " " + strconv.Quote(a)
	}
	return out
}

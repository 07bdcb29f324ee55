package process

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

type lineSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *lineSink) add(line string) {
	s.mu.Lock()
	s.lines = append(s.lines, line)
	s.mu.Unlock()
}

func TestStreamForwardsBothStreams(t *testing.T) {
	sh := requireShell(t)
	sink := &lineSink{}

	err := Exec{}.Stream(context.Background(), sh, []string{"-c", "echo out-1; echo err-1 1>&2; echo out-2"}, sink.add)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"out-1", "err-1", "out-2"}, sink.lines)

	// per-stream order holds
	var outs []string
	for _, l := range sink.lines {
		if l == "out-1" || l == "out-2" {
			outs = append(outs, l)
		}
	}
	require.Equal(t, []string{"out-1", "out-2"}, outs)
}

func TestStreamNonZeroExit(t *testing.T) {
	sh := requireShell(t)
	sink := &lineSink{}

	err := Exec{}.Stream(context.Background(), sh, []string{"-c", "echo boom 1>&2; exit 3"}, sink.add)
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "got %v", err)
	require.Equal(t, 3, exitErr.Code)
	require.Equal(t, []string{"boom"}, sink.lines)
}

func TestStreamSpawnFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	err := Exec{}.Stream(context.Background(), missing, nil, func(string) {})
	var spawnErr *SpawnError
	require.True(t, errors.As(err, &spawnErr), "got %v", err)
}

func TestOutput(t *testing.T) {
	sh := requireShell(t)

	out, err := Exec{}.Output(context.Background(), sh, []string{"-c", "printf 'Title|||3:25\\n'"})
	require.NoError(t, err)
	require.Equal(t, "Title|||3:25\n", string(out))

	_, err = Exec{}.Output(context.Background(), sh, []string{"-c", "echo nope 1>&2; exit 1"})
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "got %v", err)
	require.Equal(t, "nope", exitErr.Stderr)
}

func TestInvocationTransitions(t *testing.T) {
	inv := newInvocation("/usr/bin/ffmpeg")
	state, code := inv.State()
	require.Equal(t, StateNotStarted, state)
	require.Equal(t, -1, code)

	inv.running(42)
	state, _ = inv.State()
	require.Equal(t, StateRunning, state)

	inv.exited(1)
	state, code = inv.State()
	require.Equal(t, StateExited, state)
	require.Equal(t, 1, code)
}

func TestDescribe(t *testing.T) {
	require.Equal(t, `ffmpeg "-i" "a b.mp3"`, Describe("/usr/bin/ffmpeg", []string{"-i", "a b.mp3"}))
}

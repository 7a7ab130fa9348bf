package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Launcher abstracts process spawning and duplicate detection so the restart
// policy stays testable without actually spawning processes.
type Launcher interface {
	// DuplicateRunning reports whether another instance of this program is
	// already alive.
	DuplicateRunning(ctx context.Context) (bool, error)
	// SpawnReplacement starts a fresh detached instance with the same
	// arguments and environment.
	SpawnReplacement(ctx context.Context) error
}

// ExecLauncher is the real Launcher: pgrep for duplicate detection, re-exec of
// the current binary for replacement.
type ExecLauncher struct{}

func (ExecLauncher) DuplicateRunning(ctx context.Context) (bool, error) {
	exe, err := os.Executable()
	if err != nil {
		return false, err
	}
	out, err := exec.CommandContext(ctx, "pgrep", "-f", exe).Output()
	if err != nil {
		// pgrep exits 1 when nothing matches
		if ee, ok := err.(*exec.ExitError); ok && ee.ExitCode() == 1 {
			return false, nil
		}
		return false, fmt.Errorf("checking for duplicate instance: %w", err)
	}
	self := os.Getpid()
	for _, field := range strings.Fields(string(out)) {
		pid, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		if pid != self {
			return true, nil
		}
	}
	return false, nil
}

func (ExecLauncher) SpawnReplacement(ctx context.Context) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = os.Environ()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawning replacement process: %w", err)
	}
	return cmd.Process.Release()
}

var _ Launcher = ExecLauncher{}

package util

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// RequireBinary verifies the binary is on PATH.
func RequireBinary(name string) error {
	_, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("required binary not found: %s", name)
	}
	return nil
}

// Command builds an exec.Cmd with extra env entries merged onto the current
// process environment.
func Command(ctx context.Context, name string, args []string, env map[string]string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	extra := make([]string, 0, len(env))
	for k, v := range env {
		extra = append(extra, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = MergeEnv(extra)
	return cmd
}

// CmdExitCode extracts the process exit code from a command error; -1 when
// the process never ran.
func CmdExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

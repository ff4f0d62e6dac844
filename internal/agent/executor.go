package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"time"
)

const waitDelay = 2 * time.Second

// ExecResult is the captured output of one command.
type ExecResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Output is stdout followed by stderr, as sent back to the dispatcher.
func (r ExecResult) Output() []byte {
	out := make([]byte, 0, len(r.Stdout)+len(r.Stderr))
	out = append(out, r.Stdout...)
	return append(out, r.Stderr...)
}

// ShellCommand wraps command in the host shell.
func ShellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", command)
	}
	return exec.CommandContext(ctx, "sh", "-c", command)
}

// Execute runs command in dir. A non-zero exit is reported through ExitCode,
// not as an error; errors mean the shell could not be run at all or the
// timeout fired.
func Execute(ctx context.Context, command, dir string, timeout time.Duration) (ExecResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := ShellCommand(ctx, command)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children of the shell can hold the output pipes open after it is killed.
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	result := ExecResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		return result, fmt.Errorf("command interrupted after %s: %w", result.Duration.Round(time.Millisecond), ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		result.ExitCode = -1
		return result, fmt.Errorf("failed to run command: %w", err)
	}
	return result, nil
}

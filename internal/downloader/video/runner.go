package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes an external command and returns its captured output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// ExecError describes a failed yt-dlp invocation.
type ExecError struct {
	Cmd      string
	Args     []string
	ExitCode int
	Stderr   string
	Cause    error
}

func (e *ExecError) Error() string {
	cmdline := strings.TrimSpace(e.Cmd + " " + strings.Join(e.Args, " "))
	if e.ExitCode != 0 {
		return fmt.Sprintf("yt-dlp: command failed (exit %d): %s", e.ExitCode, cmdline)
	}
	return fmt.Sprintf("yt-dlp: command failed: %s", cmdline)
}

func (e *ExecError) Unwrap() error { return e.Cause }

func wrapExecError(name string, args []string, stderr []byte, err error) error {
	exitCode := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return &ExecError{
		Cmd:      name,
		Args:     args,
		ExitCode: exitCode,
		Stderr:   strings.TrimSpace(string(stderr)),
		Cause:    err,
	}
}

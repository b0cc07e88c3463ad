// Package runner executes external tools and classifies their failures.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	"go.uber.org/zap"
)

// Result holds the buffered streams of a process that exited with status 0.
type Result struct {
	Stdout string
	Stderr string
}

// LaunchError reports a process that could not be started at all.
type LaunchError struct {
	Name string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Name, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// ExitError reports a process that exited with a non-zero status.
type ExitError struct {
	Name   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited with status %d", e.Name, e.Code)
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Name, e.Code, e.Stderr)
}

// InterruptedError reports a process terminated by a signal. There is no exit code.
type InterruptedError struct {
	Name   string
	Signal string
	Stderr string
}

func (e *InterruptedError) Error() string {
	msg := fmt.Sprintf("%s interrupted", e.Name)
	if e.Signal != "" {
		msg += " by " + e.Signal
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Runner executes external binaries synchronously with both output streams
// buffered in memory.
type Runner struct {
	Logger *zap.Logger
}

// New returns a Runner that logs each invocation at debug level.
func New(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Logger: logger}
}

// Run executes name with args and waits for it, buffering both output streams.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	logger := r.log()

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("running external tool", zap.String("tool", name), zap.Strings("args", args))
	if err := cmd.Start(); err != nil {
		return Result{}, &LaunchError{Name: name, Err: err}
	}

	err := cmd.Wait()
	res := Result{Stdout: stdout.String(), Stderr: strings.TrimSpace(stderr.String())}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return Result{}, &LaunchError{Name: name, Err: err}
	}

	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		logger.Debug("external tool stopped by signal", zap.String("tool", name), zap.String("signal", status.Signal().String()))
		return Result{}, &InterruptedError{Name: name, Signal: status.Signal().String(), Stderr: res.Stderr}
	}

	code := exitErr.ExitCode()
	if code < 0 {
		return Result{}, &InterruptedError{Name: name, Stderr: res.Stderr}
	}

	return Result{}, &ExitError{Name: name, Code: code, Stderr: res.Stderr}
}

func (r *Runner) log() *zap.Logger {
	if r == nil || r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

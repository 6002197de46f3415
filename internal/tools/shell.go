// ABOUTME: Shell executors: a unary run that buffers output and a streaming run
// ABOUTME: The streaming run emits stdout and stderr chunks, then one exit event

package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// ShellArgs describes a command run through sh -c.
type ShellArgs struct {
	Command          string `json:"command"`
	WorkingDirectory string `json:"workingDirectory,omitempty"`
	TimeoutMs        int    `json:"timeout,omitempty"`
}

// ShellResult is the outcome of a unary shell run.
type ShellResult struct {
	Command  string `json:"command"`
	ExitCode int    `json:"exitCode"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	TimedOut bool   `json:"timedOut,omitempty"`
}

// Shell stream event kinds.
const (
	EventStdout = "stdout"
	EventStderr = "stderr"
	EventExit   = "exit"
)

// ShellEvent is one item of a streaming shell run.
type ShellEvent struct {
	Kind     string `json:"kind"`
	Data     string `json:"data,omitempty"`
	ExitCode *int   `json:"exitCode,omitempty"`
	TimedOut bool   `json:"timedOut,omitempty"`
}

func (w *Workspace) command(ctx context.Context, args ShellArgs) (*exec.Cmd, context.Context, context.CancelFunc, error) {
	if args.Command == "" {
		return nil, nil, nil, fmt.Errorf("command is required")
	}
	dir := w.Root
	if args.WorkingDirectory != "" {
		var err error
		if dir, err = w.Resolve(args.WorkingDirectory); err != nil {
			return nil, nil, nil, err
		}
	}
	timeout := w.ShellTimeout
	if args.TimeoutMs > 0 {
		timeout = time.Duration(args.TimeoutMs) * time.Millisecond
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	cmd := exec.CommandContext(runCtx, "sh", "-c", args.Command)
	cmd.Dir = dir
	cmd.WaitDelay = time.Second
	return cmd, runCtx, cancel, nil
}

// exitCode extracts the process exit status. A non-exit error is returned as is.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// Shell runs a command to completion. A non-zero exit is a result, not an error.
func (w *Workspace) Shell(ctx context.Context, args ShellArgs) (ShellResult, error) {
	cmd, runCtx, cancel, err := w.command(ctx, args)
	if err != nil {
		return ShellResult{}, err
	}
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	res := ShellResult{Command: args.Command, Stdout: stdout.String(), Stderr: stderr.String()}
	if ctx.Err() != nil {
		return ShellResult{}, ctx.Err()
	}
	res.TimedOut = errors.Is(runCtx.Err(), context.DeadlineExceeded)
	code, err := exitCode(runErr)
	if err != nil && !res.TimedOut {
		return ShellResult{}, fmt.Errorf("shell: %w", err)
	}
	res.ExitCode = code
	return res, nil
}

type chunk struct {
	kind string
	data []byte
}

// ShellStream runs a command and emits its output as it is produced.
func (w *Workspace) ShellStream(ctx context.Context, args ShellArgs, emit func(ShellEvent) error) error {
	cmd, runCtx, cancel, err := w.command(ctx, args)
	if err != nil {
		return err
	}
	defer cancel()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("shell: %w", err)
	}

	chunks := make(chan chunk)
	done := make(chan struct{}, 2)
	pump := func(kind string, r io.Reader) {
		defer func() { done <- struct{}{} }()
		buf := make([]byte, 4096)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				chunks <- chunk{kind: kind, data: data}
			}
			if err != nil {
				return
			}
		}
	}
	go pump(EventStdout, stdout)
	go pump(EventStderr, stderr)

	var emitErr error
	for open := 2; open > 0; {
		select {
		case c := <-chunks:
			if emitErr == nil {
				if emitErr = emit(ShellEvent{Kind: c.kind, Data: string(c.data)}); emitErr != nil {
					cancel()
				}
			}
		case <-done:
			open--
		}
	}
	waitErr := cmd.Wait()

	if emitErr != nil {
		return emitErr
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)
	code, err := exitCode(waitErr)
	if err != nil && !timedOut {
		return fmt.Errorf("shell: %w", err)
	}
	return emit(ShellEvent{Kind: EventExit, ExitCode: &code, TimedOut: timedOut})
}

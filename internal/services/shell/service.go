// Package shell runs external commands and reports failures with their captured output.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Command describes one external process invocation.
type Command struct {
	Name  string
	Args  []string
	Dir   string // working directory; empty means the current one
	Stdin string // fed to the process; never logged
}

// String renders the command line for logs and errors.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result holds the captured output of a successful command.
type Result struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// ShellError is returned when a command exits non-zero or cannot be started.
type ShellError struct {
	Command  string
	Dir      string
	ExitCode int    // -1 if the process never ran or was killed by a signal
	Signal   string // set when a signal terminated the process
	Stdout   string
	Stderr   string
	Err      error
}

func (e *ShellError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "command %q", e.Command)
	if e.Dir != "" {
		fmt.Fprintf(&b, " in %s", e.Dir)
	}
	switch {
	case e.Signal != "":
		fmt.Fprintf(&b, " terminated by signal %s", e.Signal)
	case e.ExitCode < 0:
		fmt.Fprintf(&b, " failed to start: %v", e.Err)
	default:
		fmt.Fprintf(&b, " exited with status %d", e.ExitCode)
	}
	writeBlock(&b, "Standard Out", e.Stdout)
	writeBlock(&b, "Standard Err", e.Stderr)
	return b.String()
}

func (e *ShellError) Unwrap() error {
	return e.Err
}

func writeBlock(b *strings.Builder, name, output string) {
	output = strings.TrimRight(output, "\n")
	if output == "" {
		return
	}
	fmt.Fprintf(b, "\n  <%s>\n", name)
	for _, line := range strings.Split(output, "\n") {
		b.WriteString("    ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	fmt.Fprintf(b, "  </%s>", name)
}

// ExitCode returns the exit status carried by a *ShellError anywhere in err's chain.
func ExitCode(err error) (int, bool) {
	var shellErr *ShellError
	if errors.As(err, &shellErr) {
		return shellErr.ExitCode, true
	}
	return 0, false
}

// Service defines the interface for running external commands.
type Service interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Impl implements the Service interface using os/exec.
type Impl struct {
	logger zerolog.Logger
}

// New creates a new shell service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{logger: logger}
}

// Run executes cmd and blocks until it exits. A non-zero exit yields a *ShellError.
func (s *Impl) Run(ctx context.Context, cmd Command) (*Result, error) {
	s.logger.Debug().
		Str("command", cmd.String()).
		Str("dir", cmd.Dir).
		Bool("stdin", cmd.Stdin != "").
		Msg("running command")

	start := time.Now()

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...) //nolint:gosec // argument vector, no shell
	c.Dir = cmd.Dir
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err == nil {
		s.logger.Debug().
			Str("command", cmd.Name).
			Dur("duration", result.Duration).
			Msg("command completed")
		return result, nil
	}

	shellErr := &ShellError{
		Command:  cmd.String(),
		Dir:      cmd.Dir,
		ExitCode: -1,
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		shellErr.ExitCode = exitErr.ExitCode()
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			shellErr.Signal = status.Signal().String()
		}
	}
	return nil, shellErr
}

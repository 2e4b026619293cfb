// Package execcmd runs external pipeline tools to completion.
package execcmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/wzhanglab/nabainfer/internal/ctxlog"
	"github.com/wzhanglab/nabainfer/internal/tools"
)

// Invoker runs one external command and reports whether it exited
// successfully. The orchestrator depends on this interface so tests can
// substitute a stub for the real process spawner.
type Invoker interface {
	Invoke(ctx context.Context, cmd tools.Command) error
}

// ExitError reports a tool that ran and returned a non-zero status.
type ExitError struct {
	Argv []string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Argv[0], e.Code)
}

// Runner spawns one blocking child process per Invoke call. Standard
// streams are inherited so external tool progress stays visible; the
// command line itself is echoed to Progress first.
type Runner struct {
	// VirtualDisplay prefixes display-requiring commands with xvfb-run.
	VirtualDisplay bool
	// ExtraEnv entries are appended to the inherited environment.
	ExtraEnv []string
	// Progress receives each command line before execution. Defaults to
	// os.Stdout.
	Progress io.Writer
}

// New returns a Runner writing progress to stdout.
func New(virtualDisplay bool, extraEnv []string) *Runner {
	return &Runner{VirtualDisplay: virtualDisplay, ExtraEnv: extraEnv, Progress: os.Stdout}
}

// Invoke runs cmd to completion. No retries, no timeout: a hung tool hangs
// the run, which is acceptable for a one-case batch invocation.
func (r *Runner) Invoke(ctx context.Context, cmd tools.Command) error {
	argv := r.buildArgv(cmd)
	fmt.Fprintln(r.progress(), strings.Join(argv, " "))
	ctxlog.FromContext(ctx).Debug("Invoking external tool.", "argv", argv)

	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if len(r.ExtraEnv) > 0 {
		c.Env = append(os.Environ(), r.ExtraEnv...)
	}

	err := c.Run()
	if err == nil {
		return nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return &ExitError{Argv: argv, Code: exitErr.ExitCode()}
	}
	return fmt.Errorf("starting %s: %w", argv[0], err)
}

// buildArgv applies the virtual-display wrapper when the command needs a
// display and the runner has one enabled.
func (r *Runner) buildArgv(cmd tools.Command) []string {
	if cmd.Display && r.VirtualDisplay {
		return append([]string{"xvfb-run", "-a"}, cmd.Argv...)
	}
	return cmd.Argv
}

func (r *Runner) progress() io.Writer {
	if r.Progress != nil {
		return r.Progress
	}
	return os.Stdout
}

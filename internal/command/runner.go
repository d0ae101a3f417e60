package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"
)

// DefaultShell runs commands when the target does not opt out of the shell.
const DefaultShell = "sh"

// NotStartedExitCode is reported when the command could not be started.
const NotStartedExitCode = 127

// Invocation is one command to run.
type Invocation struct {
	Command string
	// Stdin is fed to the command when non-nil.
	Stdin []byte
	// Dir is the working directory; empty means the current one.
	Dir string
	// Shell selects `sh -c`. Otherwise the command is split into words and
	// executed directly.
	Shell bool
}

// Runner executes invocations and reports their exit code. A non-zero exit is
// not an error; err is set only when the command could not be run at all.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (int, error)
}

// ExecRunner runs commands as child processes.
type ExecRunner struct {
	Shell  string
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner returns a runner writing to the process's stdout and stderr.
// An empty shell selects DefaultShell.
func NewExecRunner(shell string) *ExecRunner {
	if shell == "" {
		shell = DefaultShell
	}
	return &ExecRunner{Shell: shell, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (int, error) {
	cmd, err := r.command(ctx, inv)
	if err != nil {
		return NotStartedExitCode, err
	}
	cmd.Dir = inv.Dir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if inv.Stdin != nil {
		cmd.Stdin = bytes.NewReader(inv.Stdin)
	}

	err = cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return NotStartedExitCode, fmt.Errorf("run %q: %w", inv.Command, err)
}

func (r *ExecRunner) command(ctx context.Context, inv Invocation) (*exec.Cmd, error) {
	if inv.Shell {
		return exec.CommandContext(ctx, r.Shell, "-c", inv.Command), nil
	}
	args, err := SplitWords(inv.Command)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	return exec.CommandContext(ctx, args[0], args[1:]...), nil
}

// SplitWords splits a command for direct execution. Backslash-newline
// continuations and newlines are treated as plain whitespace.
func SplitWords(command string) ([]string, error) {
	flat := strings.NewReplacer("\\\r\n", " ", "\\\n", " ", "\r\n", " ", "\n", " ").Replace(command)
	args, err := shellwords.Parse(flat)
	if err != nil {
		return nil, fmt.Errorf("split command: %w", err)
	}
	return args, nil
}

// RecordingRunner records invocations instead of running them.
type RecordingRunner struct {
	// Codes maps a command string to the exit code it reports; others exit 0.
	Codes map[string]int

	mu    sync.Mutex
	calls []Invocation
}

// Run implements Runner.
func (r *RecordingRunner) Run(_ context.Context, inv Invocation) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, inv)
	return r.Codes[inv.Command], nil
}

// Calls returns the recorded invocations in order.
func (r *RecordingRunner) Calls() []Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Invocation(nil), r.calls...)
}

// Commands returns the recorded command strings in order.
func (r *RecordingRunner) Commands() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Command
	}
	return out
}

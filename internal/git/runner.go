package git

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// CommandResult is the outcome of running an external command.
type CommandResult struct {
	Args     []string
	Stdout   []string // output split into lines, trailing newline dropped
	ExitCode int      // -1 when the process never ran or was killed
	Err      error
}

// Success reports whether the command ran and exited with status 0.
func (r CommandResult) Success() bool {
	return r.Err == nil && r.ExitCode == 0
}

// FirstLine returns the first line of output or "".
func (r CommandResult) FirstLine() string {
	if len(r.Stdout) == 0 {
		return ""
	}
	return r.Stdout[0]
}

// Runner runs a command in dir and collects its standard output.
type Runner interface {
	Run(ctx context.Context, dir string, name string, args ...string) CommandResult
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir string, name string, args ...string) CommandResult {
	result := CommandResult{Args: append([]string{name}, args...), ExitCode: -1}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	output, err := cmd.Output()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		result.Err = err
	default:
		result.Err = err
	}
	if ctxErr := ctx.Err(); ctxErr != nil && result.Err != nil {
		result.Err = ctxErr
	}

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		result.Stdout = append(result.Stdout, scanner.Text())
	}
	return result
}

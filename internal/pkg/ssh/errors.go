package ssh

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSSHClientMissing      = errors.New("ssh client not found in PATH")
	ErrPasswordHelperMissing = errors.New("sshpass not found in PATH, required for password authentication")
)

type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// PreconditionError marks a local failure that retrying cannot fix.
type PreconditionError struct {
	Tool string
	Err  error
}

func (e *PreconditionError) Error() string {
	if e.Tool == "" {
		return fmt.Sprintf("precondition failed: %v", e.Err)
	}
	return fmt.Sprintf("precondition failed (%s): %v", e.Tool, e.Err)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// CommandError is returned once a command has exhausted its retry budget.
// Stdout and Stderr hold the output of the last attempt.
type CommandError struct {
	Host     string
	Command  string
	Stdout   string
	Stderr   string
	ExitCode int
	Attempts int
	Err      error
}

func (e *CommandError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "command failed on %s after %d attempt(s): %s: %v", e.Host, e.Attempts, e.Command, e.Err)
	if e.Stderr != "" {
		fmt.Fprintf(&b, "\nstderr: %s", e.Stderr)
	}
	if e.Stdout != "" {
		fmt.Fprintf(&b, "\nstdout: %s", e.Stdout)
	}
	return b.String()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

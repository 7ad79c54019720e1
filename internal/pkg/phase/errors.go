package phase

import (
	"errors"
	"fmt"
	"time"
)

var ErrReadinessTimeout = errors.New("readiness timeout")

// Error is the single failure of a phase. errors.Is matches both the phase Kind and the cause.
type Error struct {
	Phase string
	Kind  error
	Step  string
	Host  string
	Err   error
}

func (e *Error) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("%s failed on %s: %v", e.Phase, e.Host, e.Err)
	}
	return fmt.Sprintf("%s failed on %s at step %q: %v", e.Phase, e.Host, e.Step, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}
	return []error{e.Kind, e.Err}
}

// Wrap attaches phase context to err. Errors already carrying phase context are returned as is.
func Wrap(p Phase, step, host string, err error) error {
	if err == nil {
		return nil
	}
	var phaseErr *Error
	if errors.As(err, &phaseErr) && phaseErr.Kind == p.Kind {
		return err
	}
	return &Error{Phase: p.Name, Kind: p.Kind, Step: step, Host: host, Err: err}
}

// TimeoutError reports a condition that never held within its timeout.
type TimeoutError struct {
	Condition string
	Host      string
	Timeout   time.Duration
	Last      error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%q not reached on %s within %s", e.Condition, e.Host, e.Timeout)
	if e.Last != nil {
		msg += fmt.Sprintf(": %v", e.Last)
	}
	return msg
}

func (e *TimeoutError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrReadinessTimeout}
	}
	return []error{ErrReadinessTimeout, e.Last}
}

type UnexpectedOutputError struct {
	Host     string
	Command  string
	Expected string
	Actual   string
}

func (e *UnexpectedOutputError) Error() string {
	return fmt.Sprintf("unexpected output from %q on %s: expected %q, got %q", e.Command, e.Host, e.Expected, e.Actual)
}

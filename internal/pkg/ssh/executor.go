package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"k8s-simplify/internal/pkg/logger"
	"k8s-simplify/internal/pkg/metrics"
)

// DefaultRetries is the number of additional attempts after a failed command.
const DefaultRetries = 2

// Executor runs commands through a Transport with a bounded, delay-free retry budget.
type Executor struct {
	transport Transport
	logger    *logger.Logger
	metrics   *metrics.Metrics
	retries   int
	stream    io.Writer
}

type ExecutorOption func(*Executor)

func WithRetries(n int) ExecutorOption {
	return func(e *Executor) {
		if n >= 0 {
			e.retries = n
		}
	}
}

// WithStream tees the output of non-captured commands to w.
func WithStream(w io.Writer) ExecutorOption {
	return func(e *Executor) {
		e.stream = w
	}
}

func WithMetrics(m *metrics.Metrics) ExecutorOption {
	return func(e *Executor) {
		e.metrics = m
	}
}

func NewExecutor(transport Transport, log *logger.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		transport: transport,
		logger:    log,
		retries:   DefaultRetries,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Retries() int {
	return e.retries
}

func (e *Executor) Transport() Transport {
	return e.transport
}

// Command builds a Command for target using the executor's default retry budget.
func (e *Executor) Command(target Target, script string, capture bool) Command {
	return Command{
		Target:  target,
		Script:  script,
		Retries: e.retries,
		Capture: capture,
	}
}

// Execute runs cmd, retrying up to cmd.Retries more times on failure. Preconditions and
// context cancellation stop the loop immediately.
func (e *Executor) Execute(ctx context.Context, cmd Command) (*CommandResult, error) {
	attempts := cmd.Retries + 1
	if attempts < 1 {
		attempts = 1
	}

	var (
		last    *CommandResult
		lastErr error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			break
		}

		var stdout, stderr bytes.Buffer
		outW, errW := io.Writer(&stdout), io.Writer(&stderr)
		if !cmd.Capture && e.stream != nil {
			outW = io.MultiWriter(&stdout, e.stream)
			errW = io.MultiWriter(&stderr, e.stream)
		}

		e.logger.CommandAttempt(cmd.Target.Host, cmd.display(), attempt, attempts)
		err := e.transport.Run(ctx, cmd.Target, cmd.Script, outW, errW)

		result := &CommandResult{
			Stdout:   strings.TrimSpace(stdout.String()),
			Stderr:   strings.TrimSpace(stderr.String()),
			ExitCode: exitCode(err),
			Attempts: attempt,
		}
		if err == nil {
			e.metrics.ObserveCommand(attempt, nil)
			return result, nil
		}

		var pre *PreconditionError
		if errors.As(err, &pre) {
			e.metrics.ObserveCommand(attempt, err)
			return result, err
		}

		// 被取消的进程通常以 exit -1 返回，这里保留取消原因
		if ctxErr := ctx.Err(); ctxErr != nil {
			if !errors.Is(err, ctxErr) {
				err = fmt.Errorf("%w: %w", ctxErr, err)
			}
			last, lastErr = result, err
			break
		}

		last, lastErr = result, err
		e.logger.Warn("remote command failed",
			zap.String("host", cmd.Target.Host),
			zap.String("command", cmd.display()),
			zap.Int("attempt", attempt),
			zap.Int("attempts", attempts),
			zap.Int("exit_code", result.ExitCode),
			zap.Error(err),
		)
	}

	cmdErr := &CommandError{
		Host:    cmd.Target.Host,
		Command: cmd.display(),
		Err:     lastErr,
	}
	if last != nil {
		cmdErr.Stdout = last.Stdout
		cmdErr.Stderr = last.Stderr
		cmdErr.ExitCode = last.ExitCode
		cmdErr.Attempts = last.Attempts
	}
	e.metrics.ObserveCommand(cmdErr.Attempts, cmdErr)
	return last, cmdErr
}

// Run is a shorthand for a captured command with the default retry budget.
func (e *Executor) Run(ctx context.Context, target Target, script string) (string, error) {
	result, err := e.Execute(ctx, e.Command(target, script, true))
	if err != nil {
		return "", err
	}
	return result.Stdout, nil
}

func (e *Executor) Close() error {
	if e.transport == nil {
		return nil
	}
	if err := e.transport.Close(); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}

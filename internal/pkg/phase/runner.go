package phase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"
	"time"

	"go.uber.org/zap"

	"k8s-simplify/internal/pkg/logger"
	"k8s-simplify/internal/pkg/metrics"
	"k8s-simplify/internal/pkg/ssh"
)

type Runner struct {
	executor      *ssh.Executor
	logger        *logger.Logger
	metrics       *metrics.Metrics
	awaitTimeout  time.Duration
	awaitInterval time.Duration
}

type RunnerOption func(*Runner)

// WithAwaitDefaults sets the timeout and interval used by conditions that leave them zero.
func WithAwaitDefaults(timeout, interval time.Duration) RunnerOption {
	return func(r *Runner) {
		if timeout > 0 {
			r.awaitTimeout = timeout
		}
		if interval > 0 {
			r.awaitInterval = interval
		}
	}
}

func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

func NewRunner(executor *ssh.Executor, log *logger.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		executor:      executor,
		logger:        log,
		awaitTimeout:  DefaultAwaitTimeout,
		awaitInterval: DefaultAwaitInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Executor() *ssh.Executor {
	return r.executor
}

// Run executes the steps of p on target in order and stops at the first failure.
func (r *Runner) Run(ctx context.Context, p Phase, target ssh.Target, data any) (outputs Outputs, err error) {
	started := time.Now()
	defer func() {
		r.metrics.ObservePhase(p.Name, started, err)
		if err != nil {
			r.logger.PhaseError(p.Name, target.Host, err)
		} else {
			r.logger.PhaseSuccess(p.Name, target.Host)
		}
	}()

	outputs = Outputs{}
	for _, step := range p.Steps {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return outputs, Wrap(p, step.Name, target.Host, ctxErr)
		}
		r.logger.PhaseStep(p.Name, step.Name, target.Host)

		if step.Unless != "" {
			satisfied, guardErr := r.satisfied(ctx, step.Unless, target, data)
			if guardErr != nil {
				return outputs, Wrap(p, step.Name, target.Host, guardErr)
			}
			if satisfied {
				r.logger.Debug("step already satisfied",
					zap.String("phase", p.Name),
					zap.String("step", step.Name),
					zap.String("host", target.Host),
				)
				continue
			}
		}

		if step.Command != "" {
			out, runErr := r.runStep(ctx, step, target, data)
			if runErr != nil {
				return outputs, Wrap(p, step.Name, target.Host, runErr)
			}
			if step.Output != "" {
				outputs[step.Output] = out
			}
		}

		if step.Await != nil {
			if awaitErr := r.Await(ctx, *step.Await, target, data); awaitErr != nil {
				return outputs, Wrap(p, step.Name, target.Host, awaitErr)
			}
		}
	}
	return outputs, nil
}

func (r *Runner) runStep(ctx context.Context, step Step, target ssh.Target, data any) (string, error) {
	script, err := Render(step.Command, data)
	if err != nil {
		return "", err
	}

	cmd := ssh.Command{
		Target:  target,
		Script:  script,
		Retries: r.retries(step.Retries),
		Capture: step.Capture || step.Expect != "" || step.Output != "",
		Redact:  step.Redact,
	}
	result, err := r.executor.Execute(ctx, cmd)
	if err != nil {
		return "", err
	}

	if step.Expect != "" && result.Stdout != step.Expect {
		display := script
		if step.Redact {
			display = "<redacted>"
		}
		return "", &UnexpectedOutputError{
			Host:     target.Host,
			Command:  display,
			Expected: step.Expect,
			Actual:   result.Stdout,
		}
	}
	return result.Stdout, nil
}

// satisfied runs a guard once. A non-zero exit means the step still has work to do; local
// preconditions and cancellation are returned as errors.
func (r *Runner) satisfied(ctx context.Context, guard string, target ssh.Target, data any) (bool, error) {
	script, err := Render(guard, data)
	if err != nil {
		return false, err
	}
	_, err = r.executor.Execute(ctx, ssh.Command{Target: target, Script: script, Capture: true})
	if err == nil {
		return true, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	var pre *ssh.PreconditionError
	if errors.As(err, &pre) {
		return false, err
	}
	return false, nil
}

func (r *Runner) retries(n int) int {
	switch {
	case n == NoRetry:
		return 0
	case n > 0:
		return n
	default:
		return r.executor.Retries()
	}
}

// Await polls c on target until it succeeds, the timeout elapses or ctx is done.
func (r *Runner) Await(ctx context.Context, c Condition, target ssh.Target, data any) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = r.awaitTimeout
	}
	interval := c.Interval
	if interval <= 0 {
		interval = r.awaitInterval
	}

	script, err := Render(c.Command, data)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	for attempt := 1; ; attempt++ {
		_, last := r.executor.Execute(ctx, ssh.Command{Target: target, Script: script, Capture: true})
		if last == nil {
			r.logger.Debug("condition reached",
				zap.String("condition", c.Name),
				zap.String("host", target.Host),
				zap.Int("attempt", attempt),
			)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if time.Now().Add(interval).After(deadline) {
			return &TimeoutError{Condition: c.Name, Host: target.Host, Timeout: timeout, Last: last}
		}

		r.logger.Info("waiting for condition",
			zap.String("condition", c.Name),
			zap.String("host", target.Host),
			zap.Duration("interval", interval),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Render expands a step command template. Commands without template actions are returned unchanged.
func Render(command string, data any) (string, error) {
	tmpl, err := template.New("command").Option("missingkey=error").Parse(command)
	if err != nil {
		return "", fmt.Errorf("parse command template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render command template: %w", err)
	}
	return buf.String(), nil
}

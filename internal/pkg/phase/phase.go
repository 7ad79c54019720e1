// Package phase runs declarative tables of remote steps against one host.
//
// A Phase is an ordered list of Steps. The Runner executes them in order through an
// ssh.Executor and stops at the first failure, returning a single *Error that carries the
// phase kind, the failing step, the host and the typed cause.
package phase

import (
	"time"
)

// NoRetry disables retries for a step. A zero Step.Retries uses the executor default.
const NoRetry = -1

const (
	DefaultAwaitTimeout  = 60 * time.Second
	DefaultAwaitInterval = 5 * time.Second
)

type Phase struct {
	Name string
	// Kind is the sentinel error matched by errors.Is on failures of this phase.
	Kind  error
	Steps []Step
}

// Step is one remote command. Command is a text/template rendered with the data passed to Run.
type Step struct {
	Name    string
	Command string
	Capture bool
	Retries int
	// Expect, when set, must equal the captured output.
	Expect string
	// Output stores the captured output under this key in the returned Outputs.
	Output string
	Redact bool
	// Unless is a guard command. The step is skipped when it exits 0.
	Unless string
	// Await is polled after Command succeeds; the next step only runs once it holds.
	Await *Condition
}

// Condition is a command that succeeds once an asynchronous side effect has taken hold.
type Condition struct {
	Name     string
	Command  string
	Timeout  time.Duration
	Interval time.Duration
}

// Outputs maps Step.Output keys to captured output.
type Outputs map[string]string

func (o Outputs) Get(key string) string {
	if o == nil {
		return ""
	}
	return o[key]
}

// WithKind returns a copy of p reporting failures as kind.
func (p Phase) WithKind(name string, kind error) Phase {
	steps := make([]Step, len(p.Steps))
	copy(steps, p.Steps)
	return Phase{Name: name, Kind: kind, Steps: steps}
}

// Concat returns a phase running the steps of all parts in order.
func Concat(name string, kind error, parts ...Phase) Phase {
	var steps []Step
	for _, part := range parts {
		steps = append(steps, part.Steps...)
	}
	return Phase{Name: name, Kind: kind, Steps: steps}
}

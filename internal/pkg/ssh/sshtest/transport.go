// Package sshtest provides a scripted in-memory ssh.Transport for tests.
package sshtest

import (
	"context"
	"io"
	"strings"
	"sync"

	"k8s-simplify/internal/pkg/ssh"
)

type Call struct {
	Host        string
	User        string
	UsePassword bool
	Script      string
}

type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
	// UntilCancel blocks the command until its context is done and then reports a killed process.
	UntilCancel bool
}

func OK(stdout string) Response {
	return Response{Stdout: stdout}
}

func Fail(code int, stderr string) Response {
	return Response{ExitCode: code, Stderr: stderr}
}

// Killed behaves like a local process started with exec.CommandContext whose context gets cancelled.
func Killed() Response {
	return Response{UntilCancel: true}
}

type rule struct {
	host      string
	contains  string
	responses []Response
	hits      int
}

// Transport answers every script with the responses of the most recently registered matching
// rule, or with an empty success. The last response of a rule repeats once the others are used up.
type Transport struct {
	mu     sync.Mutex
	rules  []*rule
	calls  []Call
	closed bool
}

func New() *Transport {
	return &Transport{}
}

// On registers responses for scripts on host containing substr. An empty host matches every host.
func (t *Transport) On(host, substr string, responses ...Response) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(responses) == 0 {
		responses = []Response{OK("")}
	}
	t.rules = append(t.rules, &rule{host: host, contains: substr, responses: responses})
	return t
}

func (t *Transport) Run(ctx context.Context, target ssh.Target, script string, stdout, stderr io.Writer) error {
	t.mu.Lock()
	t.calls = append(t.calls, Call{
		Host:        target.Host,
		User:        target.Credentials.User,
		UsePassword: target.Credentials.UsePassword(),
		Script:      script,
	})
	resp := t.match(target.Host, script)
	t.mu.Unlock()

	if resp.UntilCancel {
		<-ctx.Done()
		return &ssh.ExitError{Code: -1}
	}
	if resp.Stdout != "" {
		_, _ = io.WriteString(stdout, resp.Stdout)
	}
	if resp.Stderr != "" {
		_, _ = io.WriteString(stderr, resp.Stderr)
	}
	if resp.Err != nil {
		return resp.Err
	}
	if resp.ExitCode != 0 {
		return &ssh.ExitError{Code: resp.ExitCode}
	}
	return nil
}

func (t *Transport) match(host, script string) Response {
	for i := len(t.rules) - 1; i >= 0; i-- {
		r := t.rules[i]
		if r.host != "" && r.host != host {
			continue
		}
		if !strings.Contains(script, r.contains) {
			continue
		}
		idx := r.hits
		if idx >= len(r.responses) {
			idx = len(r.responses) - 1
		}
		r.hits++
		return r.responses[idx]
	}
	return Response{}
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Transport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Call(nil), t.calls...)
}

// Hosts returns the host of every call in order.
func (t *Transport) Hosts() []string {
	var hosts []string
	for _, c := range t.Calls() {
		hosts = append(hosts, c.Host)
	}
	return hosts
}

// Count returns how many scripts on host contained substr. An empty host matches every host.
func (t *Transport) Count(host, substr string) int {
	n := 0
	for _, c := range t.Calls() {
		if (host == "" || c.Host == host) && strings.Contains(c.Script, substr) {
			n++
		}
	}
	return n
}

func (t *Transport) Called(host, substr string) bool {
	return t.Count(host, substr) > 0
}

package ssh

import (
	"context"
	"io"
)

// Credentials 是登录远程主机的用户名和可选密码。密码为空时走密钥认证。
type Credentials struct {
	User     string
	Password string
}

func (c Credentials) UsePassword() bool {
	return c.Password != ""
}

// String never includes the password.
func (c Credentials) String() string {
	return c.User
}

type Target struct {
	Host        string
	Credentials Credentials
}

// Login returns user@host, or just host when no user is set.
func (t Target) Login() string {
	if t.Credentials.User == "" {
		return t.Host
	}
	return t.Credentials.User + "@" + t.Host
}

// Command is one remote invocation. Retries counts additional attempts after the first.
type Command struct {
	Target  Target
	Script  string
	Retries int
	Capture bool
	// Redact hides Script from logs and errors, e.g. for join commands carrying a token.
	Redact bool
}

func (c Command) display() string {
	if c.Redact {
		return "<redacted>"
	}
	return c.Script
}

type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Attempts int
}

// Transport runs a single script on a remote host. A non-zero remote exit is reported as *ExitError;
// local preconditions that can never succeed on retry are reported as *PreconditionError.
type Transport interface {
	Run(ctx context.Context, target Target, script string, stdout, stderr io.Writer) error
	Close() error
}

// ToolChecker is implemented by transports that depend on local executables.
type ToolChecker interface {
	CheckLocalTools(usePassword bool) error
}

// CheckPreconditions verifies the local tools required by t, if any.
func CheckPreconditions(t Transport, usePassword bool) error {
	if checker, ok := t.(ToolChecker); ok {
		return checker.CheckLocalTools(usePassword)
	}
	return nil
}

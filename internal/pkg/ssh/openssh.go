package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	sshBinary     = "ssh"
	sshpassBinary = "sshpass"
)

type OpenSSHConfig struct {
	Port                  int
	KeyPath               string
	ConnectTimeout        time.Duration
	StrictHostKeyChecking bool
}

type runFunc func(ctx context.Context, name string, args, env []string, stdout, stderr io.Writer) error

// OpenSSHTransport shells out to the local ssh client, wrapped by sshpass when a password is set.
type OpenSSHTransport struct {
	config   OpenSSHConfig
	lookPath func(string) (string, error)
	run      runFunc
}

func NewOpenSSHTransport(config OpenSSHConfig) *OpenSSHTransport {
	return &OpenSSHTransport{
		config:   config,
		lookPath: exec.LookPath,
		run:      runLocal,
	}
}

// CheckLocalTools requires ssh, and sshpass only when password authentication is used.
func (t *OpenSSHTransport) CheckLocalTools(usePassword bool) error {
	var missing []string
	if _, err := t.lookPath(sshBinary); err != nil {
		missing = append(missing, sshBinary)
	}
	if usePassword {
		if _, err := t.lookPath(sshpassBinary); err != nil {
			missing = append(missing, sshpassBinary)
		}
	}
	if len(missing) > 0 {
		return &PreconditionError{
			Tool: strings.Join(missing, ", "),
			Err:  fmt.Errorf("missing required local tools: %s", strings.Join(missing, ", ")),
		}
	}
	return nil
}

// Invocation returns the local program, its arguments and extra environment for running script on target.
func (t *OpenSSHTransport) Invocation(target Target, script string) (string, []string, []string) {
	args := []string{"-o", "StrictHostKeyChecking=" + t.hostKeyPolicy()}
	if t.config.ConnectTimeout > 0 {
		args = append(args, "-o", "ConnectTimeout="+strconv.Itoa(int(t.config.ConnectTimeout.Seconds())))
	}
	if !target.Credentials.UsePassword() {
		// 密钥认证时禁止交互式密码提示，避免命令挂起
		args = append(args, "-o", "BatchMode=yes")
		if t.config.KeyPath != "" {
			args = append(args, "-i", expandHome(t.config.KeyPath))
		}
	}
	if t.config.Port != 0 && t.config.Port != 22 {
		args = append(args, "-p", strconv.Itoa(t.config.Port))
	}
	args = append(args, target.Login(), script)

	if !target.Credentials.UsePassword() {
		return sshBinary, args, nil
	}
	// 密码通过环境变量传给sshpass，不出现在进程参数里
	return sshpassBinary, append([]string{"-e", sshBinary}, args...), []string{"SSHPASS=" + target.Credentials.Password}
}

func (t *OpenSSHTransport) Run(ctx context.Context, target Target, script string, stdout, stderr io.Writer) error {
	if target.Credentials.UsePassword() {
		if _, err := t.lookPath(sshpassBinary); err != nil {
			return &PreconditionError{Tool: sshpassBinary, Err: ErrPasswordHelperMissing}
		}
	}

	name, args, env := t.Invocation(target, script)
	return t.run(ctx, name, args, env, stdout, stderr)
}

func (t *OpenSSHTransport) Close() error {
	return nil
}

func (t *OpenSSHTransport) hostKeyPolicy() string {
	if t.config.StrictHostKeyChecking {
		return "yes"
	}
	return "no"
}

func runLocal(ctx context.Context, name string, args, env []string, stdout, stderr io.Writer) error {
	// #nosec G204 - name is ssh or sshpass, args are built by Invocation
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.ExitCode()}
	}
	if errors.Is(err, exec.ErrNotFound) {
		return &PreconditionError{Tool: name, Err: err}
	}
	return fmt.Errorf("run %s: %w", name, err)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return home + path[1:]
}

package ssh_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"k8s-simplify/internal/pkg/logger"
	"k8s-simplify/internal/pkg/ssh"
	"k8s-simplify/internal/pkg/ssh/sshtest"
)

var target = ssh.Target{
	Host:        "10.0.0.1",
	Credentials: ssh.Credentials{User: "root", Password: "s3cret"},
}

func TestExecute_SucceedsWithinRetryBudget(t *testing.T) {
	fake := sshtest.New().On("", "apt-get update",
		sshtest.Fail(100, "lock held"),
		sshtest.Fail(100, "lock held"),
		sshtest.OK("done"),
	)
	exec := ssh.NewExecutor(fake, logger.NewNop())

	result, err := exec.Execute(context.Background(), exec.Command(target, "sudo apt-get update -y", true))
	require.NoError(t, err)
	assert.Equal(t, "done", result.Stdout)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 3, fake.Count("", "apt-get update"))
}

func TestExecute_FailsAfterRetriesExhausted(t *testing.T) {
	fake := sshtest.New().On("", "kubeadm init",
		sshtest.Response{Stdout: "first", Stderr: "boom 1", ExitCode: 1},
		sshtest.Response{Stdout: "second", Stderr: "boom 2", ExitCode: 1},
		sshtest.Response{Stdout: "third", Stderr: "boom 3", ExitCode: 2},
	)
	exec := ssh.NewExecutor(fake, logger.NewNop())

	_, err := exec.Execute(context.Background(), exec.Command(target, "sudo kubeadm init", true))
	require.Error(t, err)

	var cmdErr *ssh.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "10.0.0.1", cmdErr.Host)
	assert.Equal(t, "sudo kubeadm init", cmdErr.Command)
	assert.Equal(t, "third", cmdErr.Stdout)
	assert.Equal(t, "boom 3", cmdErr.Stderr)
	assert.Equal(t, 2, cmdErr.ExitCode)
	assert.Equal(t, 3, cmdErr.Attempts)
	assert.Equal(t, 3, fake.Count("", "kubeadm init"))
}

func TestExecute_ErrorNeverContainsPassword(t *testing.T) {
	fake := sshtest.New().On("", "", sshtest.Fail(1, "denied"))
	exec := ssh.NewExecutor(fake, logger.NewNop(), ssh.WithRetries(0))

	_, err := exec.Execute(context.Background(), exec.Command(target, "true", true))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "s3cret")
	assert.Contains(t, err.Error(), "10.0.0.1")
}

func TestExecute_RedactedCommand(t *testing.T) {
	fake := sshtest.New().On("", "kubeadm join", sshtest.Fail(1, "unauthorized"))
	exec := ssh.NewExecutor(fake, logger.NewNop(), ssh.WithRetries(0))

	cmd := exec.Command(target, "sudo kubeadm join 10.0.0.1:6443 --token abc.def", false)
	cmd.Redact = true
	_, err := exec.Execute(context.Background(), cmd)

	var cmdErr *ssh.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "<redacted>", cmdErr.Command)
	assert.NotContains(t, err.Error(), "abc.def")
}

func TestExecute_PreconditionIsNotRetried(t *testing.T) {
	fake := sshtest.New().On("", "", sshtest.Response{
		Err: &ssh.PreconditionError{Tool: "sshpass", Err: ssh.ErrPasswordHelperMissing},
	})
	exec := ssh.NewExecutor(fake, logger.NewNop())

	_, err := exec.Execute(context.Background(), exec.Command(target, "true", false))
	require.Error(t, err)
	assert.ErrorIs(t, err, ssh.ErrPasswordHelperMissing)
	assert.Len(t, fake.Calls(), 1)
}

func TestExecute_StopsOnCancelledContext(t *testing.T) {
	fake := sshtest.New()
	exec := ssh.NewExecutor(fake, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Execute(ctx, exec.Command(target, "true", false))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, fake.Calls())
}

func TestExecute_KilledByCancellationReportsCancel(t *testing.T) {
	fake := sshtest.New().On("", "apt-get", sshtest.Killed())
	exec := ssh.NewExecutor(fake, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := exec.Execute(ctx, exec.Command(target, "sudo apt-get update -y", false))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var cmdErr *ssh.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, -1, cmdErr.ExitCode)
	assert.Len(t, fake.Calls(), 1, "a cancelled command is not retried")
}

func TestExecute_StreamsNonCapturedOutput(t *testing.T) {
	fake := sshtest.New().On("", "apt-get", sshtest.OK("Reading package lists..."))
	var stream bytes.Buffer
	exec := ssh.NewExecutor(fake, logger.NewNop(), ssh.WithStream(&stream))

	_, err := exec.Execute(context.Background(), exec.Command(target, "sudo apt-get update -y", false))
	require.NoError(t, err)
	assert.Equal(t, "Reading package lists...", stream.String())

	stream.Reset()
	_, err = exec.Execute(context.Background(), exec.Command(target, "sudo apt-get update -y", true))
	require.NoError(t, err)
	assert.Empty(t, stream.String())
}

func TestRun_ReturnsTrimmedStdout(t *testing.T) {
	fake := sshtest.New().On("", "kubelet --version", sshtest.OK("Kubernetes v1.33.1\n"))
	exec := ssh.NewExecutor(fake, logger.NewNop())

	out, err := exec.Run(context.Background(), target, "kubelet --version")
	require.NoError(t, err)
	assert.Equal(t, "Kubernetes v1.33.1", out)
}

func TestCheckPreconditions_SkipsTransportsWithoutTools(t *testing.T) {
	assert.NoError(t, ssh.CheckPreconditions(sshtest.New(), true))
}

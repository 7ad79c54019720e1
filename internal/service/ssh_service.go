package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"k8s-simplify/internal/model"
	"k8s-simplify/internal/pkg/logger"
	"k8s-simplify/internal/pkg/ssh"
)

// 连接测试时依次执行的探测命令
var probes = []struct {
	label   string
	command string
}{
	{"当前用户", "whoami"},
	{"系统信息", "uname -a"},
	{"kubelet", "kubelet --version"},
}

type SSHService struct {
	executor *ssh.Executor
	logger   *logger.Logger
}

func NewSSHService(executor *ssh.Executor, log *logger.Logger) *SSHService {
	return &SSHService{
		executor: executor,
		logger:   log,
	}
}

// TestConnection checks the local tools, opens a session to the host and runs a few read-only probes.
func (s *SSHService) TestConnection(ctx context.Context, req *model.SSHTestRequest) *model.SSHTestResponse {
	target := ssh.Target{Host: req.Host, Credentials: ssh.Credentials{User: req.User, Password: req.Password}}
	s.logger.Info("testing ssh connection", zap.String("host", req.Host), zap.String("user", req.User))

	if err := ssh.CheckPreconditions(s.executor.Transport(), target.Credentials.UsePassword()); err != nil {
		return &model.SSHTestResponse{
			Success: false,
			Message: "本地依赖缺失",
			Details: []string{"✗ " + err.Error()},
		}
	}

	cmd := s.executor.Command(target, "true", true)
	cmd.Retries = 0
	if _, err := s.executor.Execute(ctx, cmd); err != nil {
		s.logger.Warn("ssh connection failed", zap.String("host", req.Host), zap.Error(err))
		return &model.SSHTestResponse{
			Success: false,
			Message: "SSH连接测试失败",
			Details: []string{"✗ SSH连接测试失败", fmt.Sprintf("错误信息: %s", err.Error())},
		}
	}

	details := []string{"✓ SSH连接成功"}
	for _, p := range probes {
		cmd := s.executor.Command(target, p.command, true)
		cmd.Retries = 0
		result, err := s.executor.Execute(ctx, cmd)
		if err != nil {
			details = append(details, fmt.Sprintf("- %s: 不可用", p.label))
			continue
		}
		details = append(details, fmt.Sprintf("✓ %s: %s", p.label, result.Stdout))
	}

	s.logger.Info("ssh connection successful", zap.String("host", req.Host))
	return &model.SSHTestResponse{
		Success: true,
		Message: "SSH连接成功",
		Details: details,
	}
}

package kubeadm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"k8s-simplify/internal/model"
	"k8s-simplify/internal/pkg/logger"
	"k8s-simplify/internal/pkg/ssh"
)

// Services are the node services reported for every host.
var Services = []string{"containerd", "kubelet"}

// Manager reads cluster state from the master and the individual hosts.
type Manager struct {
	executor      *ssh.Executor
	logger        *logger.Logger
	dashboardPort int
}

func NewManager(executor *ssh.Executor, log *logger.Logger, dashboardPort int) *Manager {
	if dashboardPort == 0 {
		dashboardPort = DefaultDashboardPort
	}
	return &Manager{
		executor:      executor,
		logger:        log,
		dashboardPort: dashboardPort,
	}
}

// JoinCommand asks the master for a fresh worker join command. The result carries a bootstrap token.
func (m *Manager) JoinCommand(ctx context.Context, master ssh.Target) (string, error) {
	cmd := m.executor.Command(master, "sudo kubeadm token create --print-join-command", true)
	result, err := m.executor.Execute(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("fetch join command: %w", err)
	}
	if result.Stdout == "" {
		return "", fmt.Errorf("fetch join command: empty output from %s", master.Host)
	}
	m.logger.Info("获取join命令成功", zap.String("host", master.Host))
	return result.Stdout, nil
}

// ListNodes returns the raw node listing as printed by kubectl on the master.
func (m *Manager) ListNodes(ctx context.Context, master ssh.Target) (string, error) {
	out, err := m.executor.Run(ctx, master, "kubectl get nodes --no-headers -o wide")
	if err != nil {
		return "", fmt.Errorf("list nodes: %w", err)
	}
	return out, nil
}

// ParseNodes reads name and status from each listing line. Lines with fewer than two fields are skipped.
func ParseNodes(listing string) []model.NodeStatus {
	var nodes []model.NodeStatus
	for _, line := range strings.Split(listing, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		nodes = append(nodes, model.NodeStatus{Name: fields[0], Status: fields[1]})
	}
	return nodes
}

// CheckHealth returns an *UnhealthyNodesError naming every node that is not Ready.
func CheckHealth(nodes []model.NodeStatus) error {
	var unhealthy []model.NodeStatus
	for _, n := range nodes {
		if !n.Ready() {
			unhealthy = append(unhealthy, n)
		}
	}
	if len(unhealthy) == 0 {
		return nil
	}
	return &UnhealthyNodesError{Nodes: unhealthy}
}

// Health lists and parses the nodes and checks that every one is Ready.
func (m *Manager) Health(ctx context.Context, master ssh.Target) ([]model.NodeStatus, error) {
	listing, err := m.ListNodes(ctx, master)
	if err != nil {
		return nil, err
	}
	nodes := ParseNodes(listing)
	return nodes, CheckHealth(nodes)
}

// ServiceStatus never fails: a query that cannot be answered yields ServiceUnknown.
func (m *Manager) ServiceStatus(ctx context.Context, target ssh.Target, service string) model.ServiceState {
	cmd := m.executor.Command(target, "systemctl is-active "+service, true)
	cmd.Retries = 0
	result, err := m.executor.Execute(ctx, cmd)
	if err == nil {
		return stateOf(result.Stdout)
	}

	// systemctl is-active 对非 active 的服务返回非零退出码
	var cmdErr *ssh.CommandError
	if errors.As(err, &cmdErr) && stateOf(cmdErr.Stdout) == model.ServiceInactive {
		return model.ServiceInactive
	}
	m.logger.Warn("service status unavailable",
		zap.String("host", target.Host),
		zap.String("service", service),
		zap.Error(err),
	)
	return model.ServiceUnknown
}

func stateOf(out string) model.ServiceState {
	switch strings.TrimSpace(out) {
	case string(model.ServiceActive):
		return model.ServiceActive
	case "inactive", "failed", "activating", "deactivating":
		return model.ServiceInactive
	default:
		return model.ServiceUnknown
	}
}

// HostServices reports every service of Services on each host, in host order.
func (m *Manager) HostServices(ctx context.Context, cfg model.ClusterConfig) []model.HostServices {
	hosts := cfg.Hosts()
	report := make([]model.HostServices, 0, len(hosts))
	for _, host := range hosts {
		target := cfg.Target(host)
		hs := model.HostServices{Host: host}
		for _, svc := range Services {
			hs.Services = append(hs.Services, model.ServiceStatus{Name: svc, State: m.ServiceStatus(ctx, target, svc)})
		}
		report = append(report, hs)
	}
	return report
}

func (m *Manager) DashboardURL(master string) string {
	return fmt.Sprintf("https://%s:%d", master, m.dashboardPort)
}

// Summarize collects the node listing and the per-host service states. Only the node listing can fail.
func (m *Manager) Summarize(ctx context.Context, cfg model.ClusterConfig) (*model.ClusterSummary, error) {
	listing, err := m.ListNodes(ctx, cfg.Target(cfg.Master))
	if err != nil {
		return nil, err
	}
	return &model.ClusterSummary{
		DashboardURL:   m.DashboardURL(cfg.Master),
		DashboardToken: cfg.DashboardToken,
		NodeListing:    listing,
		Nodes:          ParseNodes(listing),
		Hosts:          m.HostServices(ctx, cfg),
	}, nil
}

// Versions queries the kubelet version of every host. Failures are reported as unknown.
func (m *Manager) Versions(ctx context.Context, cfg model.ClusterConfig) []model.NodeVersion {
	hosts := cfg.Hosts()
	versions := make([]model.NodeVersion, 0, len(hosts))
	for _, host := range hosts {
		cmd := m.executor.Command(cfg.Target(host), "kubelet --version", true)
		cmd.Retries = 0
		version := model.UnknownVersion
		result, err := m.executor.Execute(ctx, cmd)
		if err == nil {
			if fields := strings.Fields(result.Stdout); len(fields) > 0 {
				version = fields[len(fields)-1]
			}
		} else {
			m.logger.Warn("kubelet version unavailable", zap.String("host", host), zap.Error(err))
		}
		versions = append(versions, model.NodeVersion{Host: host, Version: version})
	}
	return versions
}

// RenderSummary formats s as the text printed at the end of an install and written to the export file.
func RenderSummary(s *model.ClusterSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dashboard URL: %s\n", s.DashboardURL)
	fmt.Fprintf(&b, "Dashboard token: %s\n", s.DashboardToken)
	b.WriteString("\nNode status:\n")
	if s.NodeListing != "" {
		b.WriteString(s.NodeListing)
		b.WriteString("\n")
	}
	b.WriteString("\nService status:\n")
	for _, h := range s.Hosts {
		fmt.Fprintf(&b, "%s:\n", h.Host)
		for _, svc := range h.Services {
			fmt.Fprintf(&b, "  %s: %s\n", svc.Name, svc.State)
		}
	}
	return b.String()
}

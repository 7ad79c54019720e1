package kubeadm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"k8s-simplify/internal/model"
	"k8s-simplify/internal/pkg/kubeadm"
	"k8s-simplify/internal/pkg/logger"
	"k8s-simplify/internal/pkg/ssh"
	"k8s-simplify/internal/pkg/ssh/sshtest"
)

const nodeListing = `master   Ready      control-plane   10m   v1.33.1   10.0.0.1   <none>   Ubuntu 24.04 LTS   6.8.0   containerd://1.7.12
node-a   Ready      <none>          8m    v1.33.1   10.0.0.2   <none>   Ubuntu 24.04 LTS   6.8.0   containerd://1.7.12
node-b   NotReady   <none>          8m    v1.33.1   10.0.0.3   <none>   Ubuntu 24.04 LTS   6.8.0   containerd://1.7.12`

var cluster = model.ClusterConfig{
	Master:         "10.0.0.1",
	Workers:        []string{"10.0.0.2", "10.0.0.3"},
	User:           "ubuntu",
	Password:       "s3cret",
	DashboardToken: "eyJhbGciOi",
}

func newManager(fake *sshtest.Transport) *kubeadm.Manager {
	return kubeadm.NewManager(ssh.NewExecutor(fake, logger.NewNop()), logger.NewNop(), 0)
}

func TestParseNodes(t *testing.T) {
	tests := []struct {
		name    string
		listing string
		want    []model.NodeStatus
	}{
		{
			name:    "wide listing",
			listing: nodeListing,
			want: []model.NodeStatus{
				{Name: "master", Status: "Ready"},
				{Name: "node-a", Status: "Ready"},
				{Name: "node-b", Status: "NotReady"},
			},
		},
		{
			name:    "short lines skipped",
			listing: "master Ready\n\nbroken\n  \nnode-a Ready,SchedulingDisabled",
			want: []model.NodeStatus{
				{Name: "master", Status: "Ready"},
				{Name: "node-a", Status: "Ready,SchedulingDisabled"},
			},
		},
		{name: "empty", listing: "", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, kubeadm.ParseNodes(tt.listing))
		})
	}
}

func TestCheckHealth(t *testing.T) {
	assert.NoError(t, kubeadm.CheckHealth(nil))
	assert.NoError(t, kubeadm.CheckHealth([]model.NodeStatus{{Name: "master", Status: "Ready"}}))

	err := kubeadm.CheckHealth(kubeadm.ParseNodes(nodeListing + "\nnode-c Unknown"))
	require.Error(t, err)

	var unhealthy *kubeadm.UnhealthyNodesError
	require.ErrorAs(t, err, &unhealthy)
	assert.Len(t, unhealthy.Nodes, 2)
	assert.Equal(t, "unhealthy nodes detected: node-b (NotReady), node-c (Unknown)", err.Error())

	// 只有字面值 Ready 视为健康
	err = kubeadm.CheckHealth([]model.NodeStatus{{Name: "node-a", Status: "Ready,SchedulingDisabled"}})
	assert.Error(t, err)
}

func TestServiceStatus(t *testing.T) {
	target := cluster.Target("10.0.0.2")
	tests := []struct {
		name string
		resp sshtest.Response
		want model.ServiceState
	}{
		{name: "active", resp: sshtest.OK("active\n"), want: model.ServiceActive},
		{name: "inactive exit code", resp: sshtest.Response{Stdout: "inactive", ExitCode: 3}, want: model.ServiceInactive},
		{name: "failed unit", resp: sshtest.Response{Stdout: "failed", ExitCode: 3}, want: model.ServiceInactive},
		{name: "unreachable host", resp: sshtest.Fail(255, "ssh: connect to host 10.0.0.2 port 22: No route to host"), want: model.ServiceUnknown},
		{name: "transport error", resp: sshtest.Response{Err: errors.New("broken pipe")}, want: model.ServiceUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := sshtest.New().On("", "systemctl is-active kubelet", tt.resp)
			assert.Equal(t, tt.want, newManager(fake).ServiceStatus(context.Background(), target, "kubelet"))
			// 状态查询不重试
			assert.Equal(t, 1, fake.Count("", "is-active"))
		})
	}
}

func TestJoinCommand(t *testing.T) {
	join := "kubeadm join 10.0.0.1:6443 --token abcdef.0123456789abcdef --discovery-token-ca-cert-hash sha256:1234"
	fake := sshtest.New().On("10.0.0.1", "token create --print-join-command", sshtest.OK(join+"\n"))

	got, err := newManager(fake).JoinCommand(context.Background(), cluster.Target(cluster.Master))
	require.NoError(t, err)
	assert.Equal(t, join, got)

	fake = sshtest.New().On("10.0.0.1", "token create", sshtest.OK(""))
	_, err = newManager(fake).JoinCommand(context.Background(), cluster.Target(cluster.Master))
	assert.ErrorContains(t, err, "empty output")
}

func TestSummarize(t *testing.T) {
	fake := sshtest.New().
		On("10.0.0.1", "kubectl get nodes", sshtest.OK(nodeListing)).
		On("", "systemctl is-active", sshtest.OK("active")).
		On("10.0.0.3", "is-active kubelet", sshtest.Response{Stdout: "inactive", ExitCode: 3}).
		On("10.0.0.2", "is-active containerd", sshtest.Fail(255, "timeout"))

	summary, err := newManager(fake).Summarize(context.Background(), cluster)
	require.NoError(t, err)

	assert.Equal(t, "https://10.0.0.1:32443", summary.DashboardURL)
	assert.Equal(t, "eyJhbGciOi", summary.DashboardToken)
	assert.Len(t, summary.Nodes, 3)
	require.Len(t, summary.Hosts, 3)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"},
		[]string{summary.Hosts[0].Host, summary.Hosts[1].Host, summary.Hosts[2].Host})
	assert.Equal(t, model.ServiceUnknown, summary.Hosts[1].Services[0].State)
	assert.Equal(t, model.ServiceActive, summary.Hosts[1].Services[1].State)
	assert.Equal(t, model.ServiceInactive, summary.Hosts[2].Services[1].State)

	expected := "Dashboard URL: https://10.0.0.1:32443\n" +
		"Dashboard token: eyJhbGciOi\n" +
		"\n" +
		"Node status:\n" +
		nodeListing + "\n" +
		"\n" +
		"Service status:\n" +
		"10.0.0.1:\n  containerd: active\n  kubelet: active\n" +
		"10.0.0.2:\n  containerd: unknown\n  kubelet: active\n" +
		"10.0.0.3:\n  containerd: active\n  kubelet: inactive\n"
	assert.Equal(t, expected, kubeadm.RenderSummary(summary))
}

func TestSummarize_NodeListingFailure(t *testing.T) {
	fake := sshtest.New().On("", "kubectl get nodes", sshtest.Fail(1, "connection refused"))

	_, err := newManager(fake).Summarize(context.Background(), cluster)
	var cmdErr *ssh.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "connection refused", cmdErr.Stderr)
	assert.NotContains(t, err.Error(), cluster.Password)
}

func TestVersions(t *testing.T) {
	fake := sshtest.New().
		On("", "kubelet --version", sshtest.OK("Kubernetes v1.33.1")).
		On("10.0.0.3", "kubelet --version", sshtest.Fail(127, "kubelet: command not found"))

	versions := newManager(fake).Versions(context.Background(), cluster)
	assert.Equal(t, []model.NodeVersion{
		{Host: "10.0.0.1", Version: "v1.33.1"},
		{Host: "10.0.0.2", Version: "v1.33.1"},
		{Host: "10.0.0.3", Version: model.UnknownVersion},
	}, versions)
}

package kubeadm

import (
	"time"

	"k8s-simplify/internal/model"
	"k8s-simplify/internal/pkg/phase"
)

const (
	DefaultKubernetesChannel = "v1.33"
	DefaultPodNetworkCIDR    = "10.244.0.0/16"
	DefaultDashboardPort     = 32443
	DefaultTokenDuration     = "8760h"
	DefaultAdminUser         = "k8sadmin"
	DefaultNetworkManifest   = "https://raw.githubusercontent.com/flannel-io/flannel/master/Documentation/kube-flannel.yml"
	DefaultDashboardManifest = "https://raw.githubusercontent.com/kubernetes/dashboard/v2.7.0/aio/deploy/recommended.yaml"
	DefaultRolloutTimeout    = 5 * time.Minute

	// TokenOutput is the Outputs key holding the issued dashboard token.
	TokenOutput = "dashboardToken"
)

type Options struct {
	KubernetesChannel string
	PodNetworkCIDR    string
	DashboardPort     int
	TokenDuration     string
	AdminUser         string
	NetworkManifest   string
	DashboardManifest string
	RolloutTimeout    time.Duration
}

func DefaultOptions() Options {
	return Options{
		KubernetesChannel: DefaultKubernetesChannel,
		PodNetworkCIDR:    DefaultPodNetworkCIDR,
		DashboardPort:     DefaultDashboardPort,
		TokenDuration:     DefaultTokenDuration,
		AdminUser:         DefaultAdminUser,
		NetworkManifest:   DefaultNetworkManifest,
		DashboardManifest: DefaultDashboardManifest,
		RolloutTimeout:    DefaultRolloutTimeout,
	}
}

// Params is the data every step command template is rendered with.
type Params struct {
	Options
	Master      string
	JoinCommand string
	Version     string
}

// Installer holds the step tables of every lifecycle phase.
type Installer struct {
	options Options
}

func NewInstaller(options Options) *Installer {
	defaults := DefaultOptions()
	if options.KubernetesChannel == "" {
		options.KubernetesChannel = defaults.KubernetesChannel
	}
	if options.PodNetworkCIDR == "" {
		options.PodNetworkCIDR = defaults.PodNetworkCIDR
	}
	if options.DashboardPort == 0 {
		options.DashboardPort = defaults.DashboardPort
	}
	if options.TokenDuration == "" {
		options.TokenDuration = defaults.TokenDuration
	}
	if options.AdminUser == "" {
		options.AdminUser = defaults.AdminUser
	}
	if options.NetworkManifest == "" {
		options.NetworkManifest = defaults.NetworkManifest
	}
	if options.DashboardManifest == "" {
		options.DashboardManifest = defaults.DashboardManifest
	}
	if options.RolloutTimeout == 0 {
		options.RolloutTimeout = defaults.RolloutTimeout
	}
	return &Installer{options: options}
}

func (i *Installer) Options() Options {
	return i.options
}

func (i *Installer) Params(master string) Params {
	return Params{Options: i.options, Master: master}
}

// Prepare installs the container runtime and kubeadm tooling and configures the kernel.
// Every step tolerates already-satisfied state so the phase can be re-run.
func (i *Installer) Prepare() phase.Phase {
	return phase.Phase{
		Name: "prepare",
		Kind: ErrPrepare,
		Steps: []phase.Step{
			{Name: "update package index", Command: "sudo apt-get update -y"},
			{Name: "install base packages", Command: "sudo apt-get install -y containerd apt-transport-https ca-certificates curl gpg"},
			{Name: "create containerd config directory", Command: "sudo mkdir -p /etc/containerd"},
			{Name: "write containerd config", Command: "sudo sh -c 'containerd config default >/etc/containerd/config.toml'"},
			{Name: "enable systemd cgroup driver", Command: "sudo sed -i 's/SystemdCgroup = false/SystemdCgroup = true/' /etc/containerd/config.toml"},
			{Name: "restart containerd", Command: "sudo systemctl restart containerd"},
			{Name: "create apt keyring directory", Command: "sudo mkdir -p -m 755 /etc/apt/keyrings"},
			{
				Name: "add kubernetes apt key",
				Command: "curl -fsSL https://pkgs.k8s.io/core:/stable:/{{.KubernetesChannel}}/deb/Release.key | " +
					"sudo gpg --batch --yes --dearmor -o /etc/apt/keyrings/kubernetes-apt-keyring.gpg",
			},
			{
				Name: "add kubernetes apt source",
				Command: "echo 'deb [signed-by=/etc/apt/keyrings/kubernetes-apt-keyring.gpg] " +
					"https://pkgs.k8s.io/core:/stable:/{{.KubernetesChannel}}/deb/ /' | " +
					"sudo tee /etc/apt/sources.list.d/kubernetes.list",
			},
			{Name: "refresh package index", Command: "sudo apt-get update -y"},
			{
				Name:    "install kubelet, kubeadm and kubectl",
				Command: "sudo apt-get install -y kubelet kubeadm kubectl && sudo apt-mark hold kubelet kubeadm kubectl",
			},
			{Name: "disable swap", Command: "sudo swapoff -a"},
			{Name: "disable swap on boot", Command: "sudo sed -i '/ swap / s/^/#/' /etc/fstab"},
			{Name: "enable IPv4 forwarding", Command: "sudo sysctl -w net.ipv4.ip_forward=1"},
			{
				Name:    "persist IPv4 forwarding",
				Unless:  "grep -q '^net.ipv4.ip_forward=1' /etc/sysctl.conf",
				Command: "echo 'net.ipv4.ip_forward=1' | sudo tee -a /etc/sysctl.conf",
			},
			{
				Name:    "create admin account",
				Unless:  "id {{.AdminUser}}",
				Command: "sudo useradd -m -s /bin/bash {{.AdminUser}}",
			},
			{
				Name:    "grant admin account sudo",
				Command: "echo '{{.AdminUser}} ALL=(ALL) NOPASSWD:ALL' | sudo tee /etc/sudoers.d/{{.AdminUser}}",
			},
		},
	}
}

// InstallMaster bootstraps the control plane, the pod network and the dashboard, and issues
// the dashboard token under TokenOutput. Steps that depend on asynchronous cluster state wait
// for an explicit condition instead of sleeping.
func (i *Installer) InstallMaster() phase.Phase {
	return phase.Phase{
		Name: "install",
		Kind: ErrInstall,
		Steps: []phase.Step{
			{
				Name:    "initialize control plane",
				Command: "sudo kubeadm init --pod-network-cidr={{.PodNetworkCIDR}}",
				Retries: phase.NoRetry,
				Await: &phase.Condition{
					Name:    "API server reachable",
					Command: "sudo kubectl --kubeconfig=/etc/kubernetes/admin.conf get --raw=/readyz",
				},
			},
			{Name: "create kubeconfig directory", Command: "mkdir -p $HOME/.kube"},
			{Name: "copy admin kubeconfig", Command: "sudo cp /etc/kubernetes/admin.conf $HOME/.kube/config"},
			{
				Name:    "take ownership of kubeconfig",
				Command: "sudo chown $(id -u):$(id -g) $HOME/.kube/config",
				Await: &phase.Condition{
					Name:    "kubeconfig readable",
					Command: "test -r $HOME/.kube/config && kubectl get --raw=/readyz",
				},
			},
			{
				Name:    "deploy pod network",
				Command: "kubectl apply -f {{.NetworkManifest}}",
				Await: &phase.Condition{
					Name:    "pod network namespace created",
					Command: "kubectl get namespace kube-flannel",
				},
			},
			{
				Name:    "deploy dashboard",
				Command: "kubectl apply -f {{.DashboardManifest}}",
				Await: &phase.Condition{
					Name:    "dashboard service created",
					Command: "kubectl -n kubernetes-dashboard get service kubernetes-dashboard",
				},
			},
			{
				Name: "create dashboard service account",
				Command: "kubectl -n kubernetes-dashboard create serviceaccount dashboard-admin --dry-run=client -o yaml | " +
					"kubectl apply -f -",
				Await: &phase.Condition{
					Name:    "dashboard service account created",
					Command: "kubectl -n kubernetes-dashboard get serviceaccount dashboard-admin",
				},
			},
			{
				Name: "bind dashboard account to cluster-admin",
				Command: "kubectl create clusterrolebinding dashboard-admin --clusterrole=cluster-admin " +
					"--serviceaccount=kubernetes-dashboard:dashboard-admin --dry-run=client -o yaml | kubectl apply -f -",
			},
			{
				Name: "expose dashboard",
				Command: "kubectl -n kubernetes-dashboard patch svc kubernetes-dashboard --type='json' " +
					`-p='[{"op":"replace","path":"/spec/type","value":"NodePort"},` +
					`{"op":"add","path":"/spec/ports/0/nodePort","value":{{.DashboardPort}}}]'`,
				Await: &phase.Condition{
					Name:    "dashboard available",
					Command: "kubectl -n kubernetes-dashboard rollout status deployment/kubernetes-dashboard --timeout=10s",
					Timeout: i.options.RolloutTimeout,
				},
			},
			{
				Name:    "issue dashboard token",
				Command: "kubectl -n kubernetes-dashboard create token dashboard-admin --duration={{.TokenDuration}}",
				Output:  TokenOutput,
			},
		},
	}
}

// Verify checks the runtime and node agent services, API connectivity and dashboard reachability.
func (i *Installer) Verify() phase.Phase {
	return phase.Phase{
		Name: "verify",
		Kind: ErrVerify,
		Steps: []phase.Step{
			{Name: "container runtime active", Command: "systemctl is-active containerd", Expect: string(model.ServiceActive)},
			{Name: "node agent active", Command: "systemctl is-active kubelet", Expect: string(model.ServiceActive)},
			{Name: "cluster API reachable", Command: "kubectl get nodes"},
			{Name: "dashboard reachable", Command: "curl -ks https://{{.Master}}:{{.DashboardPort}} >/dev/null"},
		},
	}
}

// Join registers a prepared node with the control plane. The join command carries a bootstrap token.
func (i *Installer) Join() phase.Phase {
	return phase.Phase{
		Name: "join",
		Kind: ErrDeployWorkers,
		Steps: []phase.Step{
			{Name: "join cluster", Command: "sudo {{.JoinCommand}}", Redact: true},
		},
	}
}

// DeployWorker prepares a worker and joins it to the cluster.
func (i *Installer) DeployWorker() phase.Phase {
	return phase.Concat("deploy-workers", ErrDeployWorkers, i.Prepare(), i.Join())
}

// RejoinWorker is DeployWorker reported as part of a rollback.
func (i *Installer) RejoinWorker() phase.Phase {
	return i.DeployWorker().WithKind("rejoin", ErrRollback)
}

func (i *Installer) UpdateMaster() phase.Phase {
	return phase.Phase{
		Name: "update-master",
		Kind: ErrUpdate,
		Steps: []phase.Step{
			{Name: "apply control plane upgrade", Command: "sudo kubeadm upgrade apply -y {{.Version}}", Retries: phase.NoRetry},
			{Name: "reinstall kubernetes tooling", Command: reinstallTooling},
			{Name: "restart node agent", Command: "sudo systemctl daemon-reload && sudo systemctl restart kubelet"},
		},
	}
}

func (i *Installer) UpdateWorker() phase.Phase {
	return phase.Phase{
		Name: "update-worker",
		Kind: ErrUpdate,
		Steps: []phase.Step{
			{Name: "upgrade node configuration", Command: "sudo kubeadm upgrade node"},
			{Name: "reinstall kubernetes tooling", Command: reinstallTooling},
			{Name: "restart node agent", Command: "sudo systemctl daemon-reload && sudo systemctl restart kubelet"},
		},
	}
}

// Reset removes the kubeadm state from a node.
func (i *Installer) Reset() phase.Phase {
	return phase.Phase{
		Name: "reset",
		Kind: ErrRollback,
		Steps: []phase.Step{
			{Name: "reset kubeadm state", Command: "sudo kubeadm reset -f"},
			{Name: "restart container runtime", Command: "sudo systemctl restart containerd"},
		},
	}
}

const reinstallTooling = "sudo apt-mark unhold kubelet kubeadm kubectl && " +
	"sudo apt-get install -y kubelet kubeadm kubectl && " +
	"sudo apt-mark hold kubelet kubeadm kubectl"

// Package app wires the configured transport, executor, phase runner and services together.
package app

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"k8s-simplify/internal/config"
	"k8s-simplify/internal/pkg/kubeadm"
	"k8s-simplify/internal/pkg/logger"
	"k8s-simplify/internal/pkg/metrics"
	"k8s-simplify/internal/pkg/phase"
	"k8s-simplify/internal/pkg/ssh"
	"k8s-simplify/internal/service"
)

type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Metrics  *metrics.Metrics
	Executor *ssh.Executor
	Cluster  *service.ClusterService
	SSH      *service.SSHService
}

type Options struct {
	// Stream receives the output of long-running remote commands, nil to discard it.
	Stream io.Writer
	// Registerer receives the metrics collectors, nil to keep them unregistered.
	Registerer prometheus.Registerer
	Observer   service.Observer
	// Transport replaces the transport selected by the ssh config.
	Transport ssh.Transport
}

func New(cfg *config.Config, log *logger.Logger, opts Options) (*App, error) {
	transport := opts.Transport
	if transport == nil {
		var err error
		if transport, err = NewTransport(cfg.SSH); err != nil {
			return nil, err
		}
	}

	m := metrics.New(opts.Registerer)
	executor := ssh.NewExecutor(transport, log.Named("ssh"),
		ssh.WithRetries(cfg.SSH.Retries),
		ssh.WithStream(opts.Stream),
		ssh.WithMetrics(m),
	)
	runner := phase.NewRunner(executor, log.Named("phase"),
		phase.WithAwaitDefaults(cfg.Install.ReadinessTimeout, cfg.Install.ReadinessInterval),
		phase.WithMetrics(m),
	)
	installer := kubeadm.NewInstaller(kubeadm.Options{
		KubernetesChannel: cfg.Install.KubernetesChannel,
		PodNetworkCIDR:    cfg.Install.PodNetworkCIDR,
		DashboardPort:     cfg.Install.DashboardPort,
		TokenDuration:     cfg.Install.TokenDuration,
		AdminUser:         cfg.Install.AdminUser,
		NetworkManifest:   cfg.Install.NetworkManifest,
		DashboardManifest: cfg.Install.DashboardManifest,
		RolloutTimeout:    cfg.Install.RolloutTimeout,
	})
	manager := kubeadm.NewManager(executor, log.Named("kubeadm"), installer.Options().DashboardPort)

	cluster := service.NewClusterService(runner, installer, manager, log.Named("cluster"),
		service.WithWorkerPolicy(service.WorkerPolicy{
			Concurrency:     cfg.Workers.Concurrency,
			ContinueOnError: cfg.Workers.ContinueOnError,
			Dedupe:          cfg.Workers.Dedupe,
		}),
		service.WithMetrics(m),
		service.WithObserver(opts.Observer),
	)

	return &App{
		Config:   cfg,
		Logger:   log,
		Metrics:  m,
		Executor: executor,
		Cluster:  cluster,
		SSH:      service.NewSSHService(executor, log.Named("ssh")),
	}, nil
}

// NewTransport builds the transport selected by cfg.Transport.
func NewTransport(cfg config.SSHConfig) (ssh.Transport, error) {
	switch cfg.Transport {
	case config.TransportOpenSSH, "":
		return ssh.NewOpenSSHTransport(ssh.OpenSSHConfig{
			Port:                  cfg.Port,
			KeyPath:               cfg.KeyPath,
			ConnectTimeout:        cfg.ConnectTimeout,
			StrictHostKeyChecking: cfg.StrictHostKeyChecking,
		}), nil
	case config.TransportNative:
		return ssh.NewNativeTransport(ssh.NativeConfig{
			Port:                  cfg.Port,
			KeyPath:               cfg.KeyPath,
			ConnectTimeout:        cfg.ConnectTimeout,
			StrictHostKeyChecking: cfg.StrictHostKeyChecking,
			KnownHostsPath:        cfg.KnownHostsPath,
		}), nil
	default:
		return nil, fmt.Errorf("unknown ssh transport %q", cfg.Transport)
	}
}

// CheckPreconditions verifies the local tools once before any workflow starts.
func (a *App) CheckPreconditions(usePassword bool) error {
	return ssh.CheckPreconditions(a.Executor.Transport(), usePassword)
}

func (a *App) Close() error {
	return a.Executor.Close()
}

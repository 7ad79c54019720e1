package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"k8s-simplify/internal/model"
	"k8s-simplify/internal/pkg/kubeadm"
	"k8s-simplify/internal/pkg/logger"
	"k8s-simplify/internal/pkg/metrics"
	"k8s-simplify/internal/pkg/phase"
	"k8s-simplify/internal/pkg/ssh"
)

const (
	WorkflowInstall  = "install"
	WorkflowUpdate   = "update"
	WorkflowRollback = "rollback"
)

// Observer is notified around every stage a workflow runs on a host.
type Observer interface {
	PhaseStarted(phase, host string)
	PhaseFinished(phase, host string, err error)
}

type nopObserver struct{}

func (nopObserver) PhaseStarted(string, string)         {}
func (nopObserver) PhaseFinished(string, string, error) {}

// WorkerPolicy controls how per-worker stages run. The zero value is sequential and stops at the first failure.
type WorkerPolicy struct {
	Concurrency     int
	ContinueOnError bool
	Dedupe          bool
}

type ClusterService struct {
	runner    *phase.Runner
	installer *kubeadm.Installer
	manager   *kubeadm.Manager
	logger    *logger.Logger
	metrics   *metrics.Metrics
	policy    WorkerPolicy
	observer  Observer
}

type ClusterOption func(*ClusterService)

func WithWorkerPolicy(policy WorkerPolicy) ClusterOption {
	return func(s *ClusterService) {
		s.policy = policy
	}
}

func WithMetrics(m *metrics.Metrics) ClusterOption {
	return func(s *ClusterService) {
		s.metrics = m
	}
}

func WithObserver(o Observer) ClusterOption {
	return func(s *ClusterService) {
		if o != nil {
			s.observer = o
		}
	}
}

func NewClusterService(runner *phase.Runner, installer *kubeadm.Installer, manager *kubeadm.Manager, log *logger.Logger, opts ...ClusterOption) *ClusterService {
	s := &ClusterService{
		runner:    runner,
		installer: installer,
		manager:   manager,
		logger:    log,
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Observe returns a copy of s that reports to o.
func (s *ClusterService) Observe(o Observer) *ClusterService {
	next := *s
	WithObserver(o)(&next)
	return &next
}

// Install runs Prepare, Install and Verify on the master, deploys the workers, checks node health
// and finalizes. The returned config carries the dashboard token once the master is installed.
func (s *ClusterService) Install(ctx context.Context, cfg model.ClusterConfig) (_ model.ClusterConfig, _ *model.ClusterSummary, err error) {
	defer func() { s.metrics.ObserveWorkflow(WorkflowInstall, err) }()
	s.logger.Info("开始安装集群",
		zap.String("cluster", cfg.Name),
		zap.String("master", cfg.Master),
		zap.Int("workers", len(cfg.Workers)),
	)

	master := cfg.Target(cfg.Master)
	params := s.installer.Params(cfg.Master)

	if _, err := s.run(ctx, s.installer.Prepare(), master, params); err != nil {
		return cfg, nil, err
	}

	outputs, err := s.run(ctx, s.installer.InstallMaster(), master, params)
	if err != nil {
		return cfg, nil, err
	}
	next, err := withToken(cfg, outputs, "install", kubeadm.ErrInstall)
	if err != nil {
		return cfg, nil, err
	}
	cfg = next

	if _, err := s.run(ctx, s.installer.Verify(), master, params); err != nil {
		return cfg, nil, err
	}

	if len(cfg.Workers) > 0 {
		if err := s.deployWorkers(ctx, cfg, s.installer.DeployWorker()); err != nil {
			return cfg, nil, err
		}
	}

	if err := s.healthCheck(ctx, cfg); err != nil {
		return cfg, nil, err
	}

	summary, err := s.finalize(ctx, cfg)
	if err != nil {
		return cfg, nil, err
	}
	s.logger.Info("集群安装完成", zap.String("cluster", cfg.Name), zap.String("dashboard", summary.DashboardURL))
	return cfg, summary, nil
}

// Update upgrades the control plane to version, then every worker, and validates the result.
func (s *ClusterService) Update(ctx context.Context, cfg model.ClusterConfig, version string) (_ *model.UpdateReport, err error) {
	defer func() { s.metrics.ObserveWorkflow(WorkflowUpdate, err) }()
	if version == "" {
		return nil, fmt.Errorf("%w: target version is required", kubeadm.ErrUpdate)
	}
	s.logger.Info("开始升级集群", zap.String("master", cfg.Master), zap.String("version", version))

	report := &model.UpdateReport{TargetVersion: version}
	_ = s.stage("versions", cfg.Master, func() error {
		report.Before = s.manager.Versions(ctx, cfg)
		return nil
	})
	for _, v := range report.Before {
		s.logger.Info("当前版本", zap.String("host", v.Host), zap.String("version", v.Version))
	}

	params := s.installer.Params(cfg.Master)
	params.Version = version
	if _, err := s.run(ctx, s.installer.UpdateMaster(), cfg.Target(cfg.Master), params); err != nil {
		return report, err
	}
	err = s.eachWorker(ctx, cfg.Workers, func(ctx context.Context, host string) error {
		_, err := s.run(ctx, s.installer.UpdateWorker(), cfg.Target(host), params)
		return err
	})
	if err != nil {
		return report, err
	}

	summary, err := s.validate(ctx, cfg)
	if err != nil {
		return report, err
	}
	report.Summary = summary
	return report, nil
}

// Rollback resets every node and rejoins the workers. Without reinstallMaster the master stays reset,
// so rejoining requires a control plane that can still issue join commands.
func (s *ClusterService) Rollback(ctx context.Context, cfg model.ClusterConfig) (*model.ClusterSummary, error) {
	return s.RollbackWith(ctx, cfg, false)
}

func (s *ClusterService) RollbackWith(ctx context.Context, cfg model.ClusterConfig, reinstallMaster bool) (_ *model.ClusterSummary, err error) {
	defer func() { s.metrics.ObserveWorkflow(WorkflowRollback, err) }()
	s.logger.Info("开始回滚集群",
		zap.String("master", cfg.Master),
		zap.Int("workers", len(cfg.Workers)),
		zap.Bool("reinstall_master", reinstallMaster),
	)

	master := cfg.Target(cfg.Master)
	params := s.installer.Params(cfg.Master)

	if _, err := s.run(ctx, s.installer.Reset(), master, params); err != nil {
		return nil, err
	}
	err = s.eachWorker(ctx, cfg.Workers, func(ctx context.Context, host string) error {
		_, err := s.run(ctx, s.installer.Reset(), cfg.Target(host), params)
		return err
	})
	if err != nil {
		return nil, err
	}

	if reinstallMaster {
		outputs, err := s.run(ctx, s.installer.InstallMaster().WithKind("reinstall", kubeadm.ErrRollback), master, params)
		if err != nil {
			return nil, err
		}
		if cfg.DashboardToken == "" {
			next, err := withToken(cfg, outputs, "reinstall", kubeadm.ErrRollback)
			if err != nil {
				return nil, err
			}
			cfg = next
		}
	}

	if len(cfg.Workers) > 0 {
		if err := s.deployWorkers(ctx, cfg, s.installer.RejoinWorker()); err != nil {
			return nil, err
		}
	}
	return s.validate(ctx, cfg)
}

// withToken stores the dashboard token issued by an InstallMaster run in a new snapshot of cfg.
func withToken(cfg model.ClusterConfig, outputs phase.Outputs, phaseName string, kind error) (model.ClusterConfig, error) {
	token := outputs.Get(kubeadm.TokenOutput)
	if token == "" {
		return cfg, &phase.Error{Phase: phaseName, Kind: kind, Host: cfg.Master, Err: errors.New("empty dashboard token")}
	}
	next, err := cfg.WithDashboardToken(token)
	if err != nil {
		return cfg, &phase.Error{Phase: phaseName, Kind: kind, Host: cfg.Master, Err: err}
	}
	return next, nil
}

// Stages returns how many observer stages a workflow on cfg reports, for progress tracking.
func (s *ClusterService) Stages(workflow string, cfg model.ClusterConfig, reinstallMaster bool) int {
	workers := len(s.workers(cfg.Workers))
	deploy := 0
	if workers > 0 {
		deploy = 1 + workers
	}
	switch workflow {
	case WorkflowInstall:
		return 3 + deploy + 2
	case WorkflowUpdate:
		return 2 + workers + 3
	case WorkflowRollback:
		n := 1 + workers + deploy + 3
		if reinstallMaster {
			n++
		}
		return n
	default:
		return 0
	}
}

// validate checks the master and node health, then summarizes the cluster.
func (s *ClusterService) validate(ctx context.Context, cfg model.ClusterConfig) (*model.ClusterSummary, error) {
	params := s.installer.Params(cfg.Master)
	if _, err := s.run(ctx, s.installer.Verify(), cfg.Target(cfg.Master), params); err != nil {
		return nil, err
	}
	if err := s.healthCheck(ctx, cfg); err != nil {
		return nil, err
	}
	return s.summarize(ctx, cfg)
}

// deployWorkers fetches a join command from the master and runs p on every worker with it.
func (s *ClusterService) deployWorkers(ctx context.Context, cfg model.ClusterConfig, p phase.Phase) error {
	master := cfg.Target(cfg.Master)
	params := s.installer.Params(cfg.Master)

	err := s.stage("join-command", cfg.Master, func() error {
		join, err := s.manager.JoinCommand(ctx, master)
		if err != nil {
			return phase.Wrap(p, "fetch join command", cfg.Master, err)
		}
		params.JoinCommand = join
		return nil
	})
	if err != nil {
		return err
	}

	return s.eachWorker(ctx, cfg.Workers, func(ctx context.Context, host string) error {
		_, err := s.run(ctx, p, cfg.Target(host), params)
		return err
	})
}

func (s *ClusterService) healthCheck(ctx context.Context, cfg model.ClusterConfig) error {
	p := phase.Phase{Name: "health-check", Kind: kubeadm.ErrHealthCheck}
	return s.stage(p.Name, cfg.Master, func() error {
		nodes, err := s.manager.Health(ctx, cfg.Target(cfg.Master))
		if err != nil {
			return phase.Wrap(p, "", cfg.Master, err)
		}
		s.logger.Info("所有节点就绪", zap.Int("nodes", len(nodes)))
		return nil
	})
}

func (s *ClusterService) summarize(ctx context.Context, cfg model.ClusterConfig) (*model.ClusterSummary, error) {
	p := phase.Phase{Name: "finalize", Kind: kubeadm.ErrFinalize}
	var summary *model.ClusterSummary
	err := s.stage(p.Name, cfg.Master, func() error {
		var err error
		summary, err = s.manager.Summarize(ctx, cfg)
		return phase.Wrap(p, "summarize", cfg.Master, err)
	})
	return summary, err
}

// finalize summarizes the cluster and writes the rendered summary to the export path, if any.
func (s *ClusterService) finalize(ctx context.Context, cfg model.ClusterConfig) (*model.ClusterSummary, error) {
	summary, err := s.summarize(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.ExportPath == "" {
		return summary, nil
	}
	if err := os.WriteFile(cfg.ExportPath, []byte(kubeadm.RenderSummary(summary)), 0o600); err != nil {
		return summary, &phase.Error{Phase: "finalize", Kind: kubeadm.ErrFinalize, Step: "export", Host: cfg.Master, Err: err}
	}
	s.logger.Info("集群信息已导出", zap.String("path", cfg.ExportPath))
	return summary, nil
}

func (s *ClusterService) run(ctx context.Context, p phase.Phase, target ssh.Target, data any) (phase.Outputs, error) {
	var outputs phase.Outputs
	err := s.stage(p.Name, target.Host, func() error {
		var err error
		outputs, err = s.runner.Run(ctx, p, target, data)
		return err
	})
	return outputs, err
}

func (s *ClusterService) stage(name, host string, fn func() error) error {
	s.observer.PhaseStarted(name, host)
	err := fn()
	s.observer.PhaseFinished(name, host, err)
	return err
}

func (s *ClusterService) workers(hosts []string) []string {
	if !s.policy.Dedupe {
		return hosts
	}
	seen := make(map[string]struct{}, len(hosts))
	unique := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		unique = append(unique, h)
	}
	return unique
}

// eachWorker runs fn for every worker under the worker policy. Without ContinueOnError the first
// failure, by worker order, is returned and workers not yet started are skipped.
func (s *ClusterService) eachWorker(ctx context.Context, hosts []string, fn func(context.Context, string) error) error {
	hosts = s.workers(hosts)
	if s.policy.Concurrency <= 1 {
		var errs []error
		for _, host := range hosts {
			if err := fn(ctx, host); err != nil {
				if !s.policy.ContinueOnError {
					return err
				}
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	errs := make([]error, len(hosts))
	var g *errgroup.Group
	gctx := ctx
	if s.policy.ContinueOnError {
		g = &errgroup.Group{}
	} else {
		g, gctx = errgroup.WithContext(ctx)
	}
	g.SetLimit(s.policy.Concurrency)

	for i, host := range hosts {
		i, host := i, host
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			errs[i] = fn(gctx, host)
			if s.policy.ContinueOnError {
				return nil
			}
			return errs[i]
		})
	}
	first := g.Wait()

	if s.policy.ContinueOnError {
		return errors.Join(errs...)
	}
	// 优先返回序号最小的真实失败，而不是被取消的兄弟任务
	for _, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	if first == nil {
		return ctx.Err()
	}
	return first
}

package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"k8s-simplify/internal/model"
	"k8s-simplify/internal/pkg/kubeadm"
	"k8s-simplify/internal/pkg/logger"
	"k8s-simplify/pkg/utils"
)

const subscriberBuffer = 64

type task struct {
	id          string
	workflow    string
	status      model.TaskStatus
	total       int
	done        int
	logs        []string
	summary     *model.ClusterSummary
	err         *utils.APIError
	subscribers map[chan string]struct{}
}

// TaskService runs cluster workflows in the background and tracks their progress by task ID.
type TaskService struct {
	mu      sync.RWMutex
	tasks   map[string]*task
	cluster *ClusterService
	logger  *logger.Logger
	now     func() time.Time
}

func NewTaskService(cluster *ClusterService, log *logger.Logger) *TaskService {
	return &TaskService{
		tasks:   make(map[string]*task),
		cluster: cluster,
		logger:  log,
		now:     time.Now,
	}
}

func (s *TaskService) StartInstall(ctx context.Context, cfg model.ClusterConfig) string {
	total := s.cluster.Stages(WorkflowInstall, cfg, false)
	return s.start(ctx, WorkflowInstall, total, func(ctx context.Context, cluster *ClusterService) (*model.ClusterSummary, error) {
		_, summary, err := cluster.Install(ctx, cfg)
		return summary, err
	})
}

func (s *TaskService) StartUpdate(ctx context.Context, cfg model.ClusterConfig, version string) string {
	total := s.cluster.Stages(WorkflowUpdate, cfg, false)
	return s.start(ctx, WorkflowUpdate, total, func(ctx context.Context, cluster *ClusterService) (*model.ClusterSummary, error) {
		report, err := cluster.Update(ctx, cfg, version)
		if report == nil {
			return nil, err
		}
		return report.Summary, err
	})
}

func (s *TaskService) StartRollback(ctx context.Context, cfg model.ClusterConfig, reinstallMaster bool) string {
	total := s.cluster.Stages(WorkflowRollback, cfg, reinstallMaster)
	return s.start(ctx, WorkflowRollback, total, func(ctx context.Context, cluster *ClusterService) (*model.ClusterSummary, error) {
		return cluster.RollbackWith(ctx, cfg, reinstallMaster)
	})
}

type workflowFunc func(ctx context.Context, cluster *ClusterService) (*model.ClusterSummary, error)

func (s *TaskService) start(ctx context.Context, workflow string, total int, fn workflowFunc) string {
	id := uuid.New().String()

	s.mu.Lock()
	s.tasks[id] = &task{
		id:          id,
		workflow:    workflow,
		status:      model.TaskRunning,
		total:       total,
		subscribers: make(map[chan string]struct{}),
	}
	s.mu.Unlock()

	s.logger.Info("task started", zap.String("task_id", id), zap.String("workflow", workflow))
	go func() {
		summary, err := fn(ctx, s.cluster.Observe(&taskObserver{service: s, id: id}))
		s.finish(id, summary, err)
	}()
	return id
}

func (s *TaskService) finish(id string, summary *model.ClusterSummary, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return
	}
	t.summary = summary
	if err != nil {
		t.status = model.TaskFailed
		t.err = utils.NewWorkflowError(t.workflow, err)
		s.appendLocked(t, "✗ "+t.workflow+" failed: "+err.Error())
		s.logger.Error("task failed", zap.String("task_id", id), zap.Error(err))
	} else {
		t.status = model.TaskSuccess
		t.done = t.total
		s.appendLocked(t, "✓ "+t.workflow+" completed")
		s.logger.Info("task completed", zap.String("task_id", id))
	}
	for ch := range t.subscribers {
		close(ch)
	}
	t.subscribers = nil
}

func (s *TaskService) appendLog(id, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		s.appendLocked(t, line)
	}
}

func (s *TaskService) appendLocked(t *task, line string) {
	line = fmt.Sprintf("[%s] %s", s.now().Format("15:04:05"), line)
	t.logs = append(t.logs, line)
	for ch := range t.subscribers {
		select {
		case ch <- line:
		default:
			// 订阅者消费过慢时丢弃，完整日志仍可通过进度接口获取
		}
	}
}

func (s *TaskService) Progress(id string) (*model.ProgressResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	progress := 0.0
	if t.total > 0 {
		progress = float64(t.done) / float64(t.total) * 100
	}
	resp := &model.ProgressResponse{
		Success:  t.status != model.TaskFailed,
		Workflow: t.workflow,
		Progress: progress,
		Status:   t.status,
		Logs:     append([]string(nil), t.logs...),
		Summary:  t.summary,
	}
	if t.summary != nil {
		resp.Report = kubeadm.RenderSummary(t.summary)
	}
	if t.err != nil {
		resp.Code = t.err.Code
		resp.Error = t.err.Details
	}
	return resp, true
}

// Subscribe returns the log lines so far and a channel receiving the following ones. The channel is
// closed when the task ends; cancel detaches it early.
func (s *TaskService) Subscribe(id string) (backlog []string, lines <-chan string, cancel func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, found := s.tasks[id]
	if !found {
		return nil, nil, nil, false
	}
	ch := make(chan string, subscriberBuffer)
	backlog = append([]string(nil), t.logs...)
	if t.subscribers == nil {
		close(ch)
		return backlog, ch, func() {}, true
	}
	t.subscribers[ch] = struct{}{}

	cancel = func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := t.subscribers[ch]; ok {
			delete(t.subscribers, ch)
			close(ch)
		}
	}
	return backlog, ch, cancel, true
}

type taskObserver struct {
	service *TaskService
	id      string
}

func (o *taskObserver) PhaseStarted(phase, host string) {
	o.service.appendLog(o.id, fmt.Sprintf("▶ %s @ %s", phase, host))
}

func (o *taskObserver) PhaseFinished(phase, host string, err error) {
	if err != nil {
		o.service.appendLog(o.id, fmt.Sprintf("✗ %s @ %s", phase, host))
		return
	}
	o.service.mu.Lock()
	defer o.service.mu.Unlock()
	if t, ok := o.service.tasks[o.id]; ok {
		t.done++
		o.service.appendLocked(t, fmt.Sprintf("✓ %s @ %s", phase, host))
	}
}

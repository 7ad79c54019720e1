package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"k8s-simplify/internal/model"
	"k8s-simplify/internal/pkg/kubeadm"
	"k8s-simplify/internal/pkg/logger"
	"k8s-simplify/internal/pkg/ssh/sshtest"
	"k8s-simplify/pkg/utils"
)

func waitDone(t *testing.T, tasks *TaskService, id string) *model.ProgressResponse {
	t.Helper()
	var progress *model.ProgressResponse
	require.Eventually(t, func() bool {
		p, ok := tasks.Progress(id)
		if !ok {
			return false
		}
		progress = p
		return p.Status != model.TaskRunning
	}, 5*time.Second, 5*time.Millisecond)
	return progress
}

func TestTaskService_Install(t *testing.T) {
	tasks := NewTaskService(newService(healthyCluster()), logger.NewNop())

	id := tasks.StartInstall(context.Background(), testConfig("10.0.0.2"))
	require.NotEmpty(t, id)

	progress := waitDone(t, tasks, id)
	assert.True(t, progress.Success)
	assert.Equal(t, model.TaskSuccess, progress.Status)
	assert.Equal(t, WorkflowInstall, progress.Workflow)
	assert.InDelta(t, 100, progress.Progress, 0.001)
	require.NotNil(t, progress.Summary)
	assert.Equal(t, testToken, progress.Summary.DashboardToken)
	assert.Equal(t, kubeadm.RenderSummary(progress.Summary), progress.Report)
	assert.Zero(t, progress.Code)

	joined := strings.Join(progress.Logs, "\n")
	assert.Contains(t, joined, "▶ prepare @ 10.0.0.1")
	assert.Contains(t, joined, "✓ deploy-workers @ 10.0.0.2")
	assert.Contains(t, joined, "install completed")
	assert.NotContains(t, joined, "s3cret")
}

func TestTaskService_Failure(t *testing.T) {
	fake := healthyCluster().On("10.0.0.1", "upgrade apply", sshtest.Fail(1, "version skew"))
	tasks := NewTaskService(newService(fake), logger.NewNop())

	id := tasks.StartUpdate(context.Background(), testConfig(), "v1.40.0")
	progress := waitDone(t, tasks, id)

	assert.False(t, progress.Success)
	assert.Equal(t, model.TaskFailed, progress.Status)
	assert.Equal(t, utils.CodeWorkflow, progress.Code)
	assert.Contains(t, progress.Error, "version skew")
	assert.Empty(t, progress.Report)
	assert.Less(t, progress.Progress, 100.0)
}

func TestTaskService_Subscribe(t *testing.T) {
	tasks := NewTaskService(newService(healthyCluster()), logger.NewNop())

	_, _, _, ok := tasks.Subscribe("missing")
	assert.False(t, ok)
	_, ok = tasks.Progress("missing")
	assert.False(t, ok)

	id := tasks.StartRollback(context.Background(), testConfig("10.0.0.2"), false)
	backlog, lines, cancel, ok := tasks.Subscribe(id)
	require.True(t, ok)
	defer cancel()

	received := append([]string(nil), backlog...)
	for line := range lines {
		received = append(received, line)
	}
	// channel 在任务结束时关闭
	assert.Contains(t, received[len(received)-1], "rollback completed")

	backlog, lines, cancel, ok = tasks.Subscribe(id)
	require.True(t, ok)
	cancel()
	_, open := <-lines
	assert.False(t, open)
	assert.NotEmpty(t, backlog)
}

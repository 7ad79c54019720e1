package kubeadm

import (
	"errors"
	"fmt"
	"strings"

	"k8s-simplify/internal/model"
)

// 每个阶段一种错误类型，通过 errors.Is 判断
var (
	ErrPrepare       = errors.New("node preparation failed")
	ErrInstall       = errors.New("master installation failed")
	ErrVerify        = errors.New("master verification failed")
	ErrDeployWorkers = errors.New("worker deployment failed")
	ErrHealthCheck   = errors.New("node health check failed")
	ErrFinalize      = errors.New("finalization failed")
	ErrUpdate        = errors.New("cluster update failed")
	ErrRollback      = errors.New("cluster rollback failed")
)

// UnhealthyNodesError lists every node that did not report Ready.
type UnhealthyNodesError struct {
	Nodes []model.NodeStatus
}

func (e *UnhealthyNodesError) Error() string {
	parts := make([]string, len(e.Nodes))
	for i, n := range e.Nodes {
		parts[i] = fmt.Sprintf("%s (%s)", n.Name, n.Status)
	}
	return "unhealthy nodes detected: " + strings.Join(parts, ", ")
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"k8s-simplify/internal/model"
	"k8s-simplify/internal/service"
	"k8s-simplify/pkg/utils"
)

// PreconditionFunc verifies the local tools needed to reach the hosts.
type PreconditionFunc func(usePassword bool) error

type ClusterHandler struct {
	tasks         *service.TaskService
	preconditions PreconditionFunc
}

func NewClusterHandler(tasks *service.TaskService, preconditions PreconditionFunc) *ClusterHandler {
	if preconditions == nil {
		preconditions = func(bool) error { return nil }
	}
	return &ClusterHandler{
		tasks:         tasks,
		preconditions: preconditions,
	}
}

func (h *ClusterHandler) Install(c *gin.Context) {
	var req model.InstallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, http.StatusBadRequest, err)
		return
	}
	if err := utils.ValidateClusterName(req.Name); err != nil {
		writeError(c, http.StatusBadRequest, utils.NewValidationError("name", err))
		return
	}
	if !h.check(c, req.ClusterRequest) {
		return
	}

	cfg := req.Config()
	cfg.Name = req.Name
	id := h.tasks.StartInstall(detach(c), cfg)
	h.accepted(c, id, "集群安装任务已创建")
}

func (h *ClusterHandler) Update(c *gin.Context) {
	var req model.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, http.StatusBadRequest, err)
		return
	}
	if err := utils.ValidateVersion(req.TargetVersion); err != nil {
		writeError(c, http.StatusBadRequest, utils.NewValidationError("targetVersion", err))
		return
	}
	if !h.check(c, req.ClusterRequest) {
		return
	}

	id := h.tasks.StartUpdate(detach(c), req.Config(), req.TargetVersion)
	h.accepted(c, id, "集群升级任务已创建")
}

func (h *ClusterHandler) Rollback(c *gin.Context) {
	var req model.RollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, http.StatusBadRequest, err)
		return
	}
	if !h.check(c, req.ClusterRequest) {
		return
	}

	id := h.tasks.StartRollback(detach(c), req.Config(), req.ReinstallMaster)
	h.accepted(c, id, "集群回滚任务已创建")
}

func (h *ClusterHandler) check(c *gin.Context, req model.ClusterRequest) bool {
	if apiErr := utils.ValidateClusterTargets(req.Master, req.Workers, req.User); apiErr != nil {
		writeError(c, http.StatusBadRequest, apiErr)
		return false
	}
	if err := h.preconditions(req.Password != ""); err != nil {
		writeError(c, http.StatusFailedDependency, utils.NewSSHError(err))
		return false
	}
	return true
}

func (h *ClusterHandler) accepted(c *gin.Context, id, message string) {
	c.JSON(http.StatusAccepted, model.TaskResponse{
		Success: true,
		TaskID:  id,
		Message: message,
	})
}

// 任务在请求结束后继续运行
func detach(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

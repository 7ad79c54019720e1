package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"k8s-simplify/internal/model"
	"k8s-simplify/internal/service"
	"k8s-simplify/pkg/utils"
)

type SSHHandler struct {
	sshService *service.SSHService
}

func NewSSHHandler(sshService *service.SSHService) *SSHHandler {
	return &SSHHandler{
		sshService: sshService,
	}
}

func (h *SSHHandler) TestConnection(c *gin.Context) {
	var req model.SSHTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, http.StatusBadRequest, err)
		return
	}
	if err := utils.ValidateHost(req.Host); err != nil {
		writeError(c, http.StatusBadRequest, utils.NewValidationError("host", err))
		return
	}

	result := h.sshService.TestConnection(c.Request.Context(), &req)
	c.JSON(http.StatusOK, result)
}

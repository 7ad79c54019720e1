package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"k8s-simplify/internal/model"
	"k8s-simplify/pkg/utils"
)

func writeError(c *gin.Context, status int, err error) {
	apiErr := utils.AsAPIError(err)
	c.JSON(status, model.ErrorResponse{
		Success: false,
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	})
}

func bindError(c *gin.Context, status int, err error) {
	c.JSON(status, model.ErrorResponse{
		Success: false,
		Code:    utils.CodeValidation,
		Message: "请求参数无效",
		Details: err.Error(),
	})
}

// Recovery turns a handler panic into a system error response.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		writeError(c, http.StatusInternalServerError, fmt.Errorf("%v", recovered))
		c.Abort()
	})
}

package utils

import (
	"errors"
	"fmt"
)

const (
	CodeSSH        = 1001
	CodeWorkflow   = 2001
	CodeValidation = 3001
	CodeNotFound   = 4001
	CodeSystem     = 5001
)

type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

func NewSSHError(err error) *APIError {
	return &APIError{
		Code:    CodeSSH,
		Message: "SSH连接错误",
		Details: err.Error(),
	}
}

func NewWorkflowError(workflow string, err error) *APIError {
	return &APIError{
		Code:    CodeWorkflow,
		Message: fmt.Sprintf("集群%s失败", workflow),
		Details: err.Error(),
	}
}

func NewValidationError(field string, err error) *APIError {
	return &APIError{
		Code:    CodeValidation,
		Message: fmt.Sprintf("参数验证失败: %s", field),
		Details: err.Error(),
	}
}

func NewNotFoundError(kind, id string) *APIError {
	return &APIError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s不存在", kind),
		Details: id,
	}
}

func NewSystemError(err error) *APIError {
	return &APIError{
		Code:    CodeSystem,
		Message: "系统错误",
		Details: err.Error(),
	}
}

// AsAPIError returns err as an *APIError, wrapping anything else as a system error.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewSystemError(err)
}

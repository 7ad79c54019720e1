package model

type SSHTestResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
}

type TaskResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"taskId"`
	Message string `json:"message,omitempty"`
}

type TaskStatus string

const (
	TaskRunning TaskStatus = "running"
	TaskSuccess TaskStatus = "success"
	TaskFailed  TaskStatus = "error"
)

type ProgressResponse struct {
	Success  bool            `json:"success"`
	Workflow string          `json:"workflow"`
	Progress float64         `json:"progress"`
	Status   TaskStatus      `json:"status"`
	Logs     []string        `json:"logs"`
	Summary  *ClusterSummary `json:"summary,omitempty"`
	// Report is the rendered cluster summary, the same text the CLI exports to a file.
	Report string `json:"report,omitempty"`
	Code   int    `json:"code,omitempty"`
	Error  string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

package model

const ReadyStatus = "Ready"

type NodeStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

func (n NodeStatus) Ready() bool {
	return n.Status == ReadyStatus
}

type ServiceState string

const (
	ServiceActive   ServiceState = "active"
	ServiceInactive ServiceState = "inactive"
	ServiceUnknown  ServiceState = "unknown"
)

type ServiceStatus struct {
	Name  string       `json:"name"`
	State ServiceState `json:"state"`
}

type HostServices struct {
	Host     string          `json:"host"`
	Services []ServiceStatus `json:"services"`
}

// ClusterSummary is the post-workflow report. Hosts are ordered master first, then workers.
type ClusterSummary struct {
	DashboardURL   string         `json:"dashboardUrl"`
	DashboardToken string         `json:"dashboardToken,omitempty"`
	NodeListing    string         `json:"nodeListing"`
	Nodes          []NodeStatus   `json:"nodes"`
	Hosts          []HostServices `json:"hosts"`
}

// NodeVersion is the kubelet version reported by a host, or "unknown".
type NodeVersion struct {
	Host    string `json:"host"`
	Version string `json:"version"`
}

const UnknownVersion = "unknown"

type UpdateReport struct {
	TargetVersion string          `json:"targetVersion"`
	Before        []NodeVersion   `json:"before"`
	Summary       *ClusterSummary `json:"summary,omitempty"`
}

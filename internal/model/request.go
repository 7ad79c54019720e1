package model

type SSHTestRequest struct {
	Host     string `json:"host" binding:"required"`
	User     string `json:"user" binding:"required"`
	Password string `json:"password"`
}

type ClusterRequest struct {
	Master   string   `json:"master" binding:"required"`
	Workers  []string `json:"workers"`
	User     string   `json:"user" binding:"required"`
	Password string   `json:"password"`
}

type InstallRequest struct {
	ClusterRequest
	Name string `json:"name" binding:"required"`
}

type UpdateRequest struct {
	ClusterRequest
	TargetVersion string `json:"targetVersion" binding:"required"`
}

type RollbackRequest struct {
	ClusterRequest
	ReinstallMaster bool `json:"reinstallMaster"`
}

func (r ClusterRequest) Config() ClusterConfig {
	return ClusterConfig{
		Master:   r.Master,
		Workers:  append([]string(nil), r.Workers...),
		User:     r.User,
		Password: r.Password,
	}
}

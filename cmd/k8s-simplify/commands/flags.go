package commands

import (
	"github.com/spf13/cobra"

	"k8s-simplify/internal/model"
	"k8s-simplify/pkg/utils"
)

const defaultUser = "root"

// targetFlags are the host and credential flags shared by every workflow command.
type targetFlags struct {
	master   string
	workers  []string
	user     string
	password string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.master, "master", "", "Master node address")
	cmd.Flags().StringSliceVar(&f.workers, "workers", nil, "Worker node addresses, comma separated")
	cmd.Flags().StringVar(&f.user, "user", defaultUser, "SSH user")
	cmd.Flags().StringVar(&f.password, "password", "", "SSH password, empty for key-based authentication")

	// MarkFlagRequired cannot fail for flags defined on the same command
	_ = cmd.MarkFlagRequired("master")
}

func (f *targetFlags) validate() error {
	if apiErr := utils.ValidateClusterTargets(f.master, f.workers, f.user); apiErr != nil {
		return apiErr
	}
	return nil
}

func (f *targetFlags) config() model.ClusterConfig {
	return model.ClusterRequest{
		Master:   f.master,
		Workers:  f.workers,
		User:     f.user,
		Password: f.password,
	}.Config()
}

package commands

import (
	"github.com/spf13/cobra"
)

// rollback returns the command that resets every node and rejoins the workers.
func (c *cli) rollback() *cobra.Command {
	var (
		targets         targetFlags
		reinstallMaster bool
	)

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Reset all nodes and rejoin the workers",
		Long: `Reset kubeadm state on the master and every worker, then rejoin the workers.

Without --reinstall-master the master is left reset, so rejoining only succeeds if it can
still issue join commands. With --reinstall-master the control plane is initialized again
before the workers rejoin.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := targets.validate(); err != nil {
				return err
			}

			a, err := c.setup(targets.password != "")
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.Cluster.RollbackWith(cmd.Context(), targets.config(), reinstallMaster)
			if err != nil {
				return err
			}

			c.printf("\nCluster rolled back.\n\nNode status:\n%s\n", summary.NodeListing)
			return nil
		},
	}

	targets.register(cmd)
	cmd.Flags().BoolVar(&reinstallMaster, "reinstall-master", false, "Initialize the control plane again after the reset")

	return cmd
}

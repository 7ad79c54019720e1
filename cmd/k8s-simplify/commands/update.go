package commands

import (
	"github.com/spf13/cobra"

	"k8s-simplify/pkg/utils"
)

// update returns the command that upgrades the control plane and then every worker.
func (c *cli) update() *cobra.Command {
	var (
		targets targetFlags
		version string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Upgrade the cluster to a Kubernetes version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := utils.ValidateVersion(version); err != nil {
				return err
			}
			if err := targets.validate(); err != nil {
				return err
			}

			a, err := c.setup(targets.password != "")
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Cluster.Update(cmd.Context(), targets.config(), version)
			if report != nil && len(report.Before) > 0 {
				c.printf("\nVersions before update:\n")
				for _, v := range report.Before {
					c.printf("  %s: %s\n", v.Host, v.Version)
				}
			}
			if err != nil {
				return err
			}

			c.printf("\nCluster updated to %s.\n", version)
			if report.Summary != nil {
				c.printf("\nNode status:\n%s\n", report.Summary.NodeListing)
			}
			return nil
		},
	}

	targets.register(cmd)
	cmd.Flags().StringVar(&version, "target-version", "", "Kubernetes version to upgrade to, e.g. v1.33.2")
	_ = cmd.MarkFlagRequired("target-version")

	return cmd
}

package commands

import (
	"github.com/spf13/cobra"

	"k8s-simplify/internal/pkg/kubeadm"
	"k8s-simplify/pkg/utils"
)

// install returns the command that creates a new cluster.
//
// The master is prepared, initialized and verified first; workers are then prepared and joined,
// node health is checked and the summary is printed and optionally exported.
func (c *cli) install() *cobra.Command {
	var (
		targets    targetFlags
		name       string
		exportPath string
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install a new kubeadm cluster",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := utils.ValidateClusterName(name); err != nil {
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

			cfg := targets.config()
			cfg.Name = name
			cfg.ExportPath = exportPath

			_, summary, err := a.Cluster.Install(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			c.printf("\nCluster %s installed.\n\n", name)
			c.printf("%s", kubeadm.RenderSummary(summary))
			if exportPath != "" {
				c.printf("\nCluster information exported to %s\n", exportPath)
			}
			return nil
		},
	}

	targets.register(cmd)
	cmd.Flags().StringVar(&name, "name", "", "Cluster name")
	cmd.Flags().StringVar(&exportPath, "export", "", "Write the cluster summary to this file")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

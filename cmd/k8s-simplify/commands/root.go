// Package commands defines the CLI command structure and flag bindings.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"k8s-simplify/internal/app"
	"k8s-simplify/internal/config"
	"k8s-simplify/internal/pkg/logger"
	"k8s-simplify/internal/pkg/ssh"
)

// cli carries the state shared by all subcommands of one invocation.
type cli struct {
	v          *viper.Viper
	configPath string
	verbose    bool
	stdout     io.Writer
	stderr     io.Writer
	// transport overrides the configured transport, used by tests.
	transport ssh.Transport
}

// Root returns the root command for the k8s-simplify CLI.
func Root() *cobra.Command {
	return newRoot(&cli{v: viper.New(), stdout: os.Stdout, stderr: os.Stderr})
}

func newRoot(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "k8s-simplify",
		Short:         "Install, update and roll back kubeadm clusters over SSH",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(c.stdout)
	cmd.SetErr(c.stderr)

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "Path to configuration file (YAML)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "console", "Log format (console, json)")
	flags.String("transport", config.TransportOpenSSH, "SSH transport (openssh, native)")
	flags.Int("retries", ssh.DefaultRetries, "Additional attempts for failed remote commands")
	flags.Int("concurrency", 1, "Number of workers processed in parallel")
	flags.Bool("continue-on-error", false, "Keep processing remaining workers after a worker fails")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "Stream remote command output")

	bindings := map[string]string{
		"log.level":                 "log-level",
		"log.format":                "log-format",
		"ssh.transport":             "transport",
		"ssh.retries":               "retries",
		"workers.concurrency":       "concurrency",
		"workers.continue_on_error": "continue-on-error",
	}
	for key, name := range bindings {
		// BindPFlag only fails for a nil flag
		_ = c.v.BindPFlag(key, flags.Lookup(name))
	}

	cmd.AddCommand(c.install())
	cmd.AddCommand(c.update())
	cmd.AddCommand(c.rollback())
	cmd.AddCommand(Version())

	return cmd
}

// setup loads the configuration and wires the application for one workflow run.
func (c *cli) setup(usePassword bool) (*app.App, error) {
	cfg, err := config.Load(c.v, c.configPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	opts := app.Options{
		Observer:  &progressPrinter{out: c.stdout},
		Transport: c.transport,
	}
	if c.verbose {
		opts.Stream = c.stdout
	}
	a, err := app.New(cfg, log, opts)
	if err != nil {
		return nil, err
	}
	if err := a.CheckPreconditions(usePassword); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (c *cli) printf(format string, args ...any) {
	fmt.Fprintf(c.stdout, format, args...)
}

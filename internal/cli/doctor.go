package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDoctorCmd returns a health-check command validating config and environment.
func NewDoctorCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config OK. Providers: %d, models: %d\n", len(cfg.Providers), len(cfg.Models))
			fmt.Fprintf(out, "Workspace: %s, metrics: %v, transport: %s\n",
				cfg.Workspace.WorkingDir, cfg.Server.MetricsEnabled, cfg.Server.Transport)
			fmt.Fprintf(out, "Loop policy: max_iterations=%d stagnation_threshold=%d analysis=%v\n",
				cfg.Agent.MaxIterations, cfg.Agent.StagnationThreshold, cfg.Agent.EnableAnalysis)
			return nil
		},
	}
}

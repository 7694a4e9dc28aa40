package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/reprolab/reproagent/internal/llm/configbuilder"
	"github.com/reprolab/reproagent/internal/logging"
	"github.com/reprolab/reproagent/internal/plan"
	"github.com/reprolab/reproagent/internal/search"
)

// NewGateCmd evaluates the search gate for a plan without starting a run.
func NewGateCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "gate <plan.json>",
		Short: "Check whether a plan needs research before the next run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort

			p, err := plan.FromFile(args[0])
			if err != nil {
				return err
			}

			registry, err := configbuilder.Build(cfg)
			if err != nil {
				return err
			}

			gate := &search.Gate{
				Registry:       registry,
				Logger:         logger,
				ReasonMaxChars: cfg.Agent.ReasonMaxChars,
			}
			reasons, err := gate.Evaluate(cmd.Context(), p)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(reasons) == 0 {
				fmt.Fprintln(out, "no research needed")
				return nil
			}

			comms := search.RecordRequests(p, reasons)
			outPath := filepath.Join(cfg.Workspace.WorkingDir, cfg.Workspace.PlanOutFile)
			if err := p.Save(outPath); err != nil {
				return err
			}
			for _, c := range comms {
				fmt.Fprintf(out, "research needed: %s (request %s)\n", c.Request, c.ID)
			}
			fmt.Fprintf(out, "%d request(s) written to %s\n", len(comms), outPath)
			return nil
		},
	}
}

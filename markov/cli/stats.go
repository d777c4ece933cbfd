package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wbrown/dadacore/markov/report"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show model and store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			setupLogging(rootOpts, cmd)
			cfg, err := loadConfig(rootOpts, cmd)
			if err != nil {
				return err
			}
			b, err := openBrain(commandContext(cmd), rootOpts, cmd, cfg)
			if err != nil {
				return err
			}
			defer closeBrain(b, &err)

			stats, err := b.Stats()
			if err != nil {
				return WrapExitError(ExitFailure, "failed to collect stats", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), report.NewFormatter().FormatStats(stats))
			return nil
		},
	}
}

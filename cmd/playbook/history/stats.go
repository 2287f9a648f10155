package historycmder

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/playbook/pkg/cliui"
	"github.com/papercomputeco/playbook/pkg/logger"
)

const statsLongDesc string = `Show aggregate statistics from the delta log.

Scans the full log and reports totals per operation type and per source.

Examples:
  playbook history stats`

const statsShortDesc string = "Show aggregate delta statistics"

func newStatsCmd() *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: statsShortDesc,
		Long:  statsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.runStats()
		},
	}

	return cmd
}

func (c *historyCommander) runStats() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	ledger, err := c.openLedger()
	if err != nil {
		return err
	}

	stats, err := ledger.Statistics()
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}

	if stats.TotalUpdates == 0 {
		fmt.Printf("\n  %s No deltas recorded yet.\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Printf("\n  %s  %d\n", cliui.KeyStyle.Render("Updates:      "), stats.TotalUpdates)
	fmt.Printf("  %s  %d\n", cliui.KeyStyle.Render("Additions:    "), stats.TotalAdditions)
	fmt.Printf("  %s  %d\n", cliui.KeyStyle.Render("Archivals:    "), stats.TotalArchivals)
	fmt.Printf("  %s  %d\n\n", cliui.KeyStyle.Render("Score updates:"), stats.TotalScoreUpdates)

	sources := make([]string, 0, len(stats.UpdatesBySource))
	for source := range stats.UpdatesBySource {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	for _, source := range sources {
		fmt.Printf("  %s %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("%4d", stats.UpdatesBySource[source])),
			cliui.NameStyle.Render(source),
		)
	}
	fmt.Println()

	return nil
}

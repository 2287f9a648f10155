// Package historycmder provides the history command for inspecting the
// delta ledger.
package historycmder

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/pkg/cliui"
	"github.com/papercomputeco/playbook/pkg/dotdir"
	"github.com/papercomputeco/playbook/pkg/history"
	"github.com/papercomputeco/playbook/pkg/logger"
)

type historyCommander struct {
	limit int

	configDir string
	debug     bool
	logger    *zap.Logger
}

const historyLongDesc string = `Show recent playbook deltas.

Reads the append-only delta log and displays the most recent updates with
their operation counts and the playbook size after each one. The log is the
full audit trail of every mutation; the snapshot can always be explained by
replaying it.

Use "playbook history stats" for aggregate counts across the whole log.

Examples:
  playbook history
  playbook history --limit 25
  playbook history stats`

const historyShortDesc string = "Show recent playbook deltas"

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: historyShortDesc,
		Long:  historyLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 10, "Number of recent deltas to show")

	cmd.AddCommand(newStatsCmd())

	return cmd
}

func (c *historyCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	ledger, err := c.openLedger()
	if err != nil {
		return err
	}

	records, err := ledger.Recent(c.limit)
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}

	if len(records) == 0 {
		fmt.Printf("\n  %s No deltas recorded yet.\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Println()
	for _, record := range records {
		fmt.Printf("  %s  %s  %s\n",
			cliui.ValueStyle.Render(record.Timestamp.Format("2006-01-02 15:04:05")),
			cliui.NameStyle.Render(fmt.Sprintf("%-20s", record.Source)),
			cliui.DimStyle.Render(fmt.Sprintf("%d ops, %d entries, avg %.1f",
				record.OpCount, record.PlaybookSize, record.AvgScore)),
		)
	}
	fmt.Println()

	return nil
}

func (c *historyCommander) openLedger() (*history.Ledger, error) {
	ddm := dotdir.NewManager()
	historyPath, err := ddm.HistoryPath(c.configDir)
	if err != nil {
		return nil, err
	}
	return history.NewLedger(historyPath, c.logger), nil
}

// Package prunecmder provides the prune command for removing long-archived
// playbook entries.
package prunecmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/pkg/cliui"
	"github.com/papercomputeco/playbook/pkg/config"
	"github.com/papercomputeco/playbook/pkg/dotdir"
	"github.com/papercomputeco/playbook/pkg/engine"
	"github.com/papercomputeco/playbook/pkg/logger"
	"github.com/papercomputeco/playbook/pkg/retrieval"
)

type pruneCommander struct {
	days       int
	keepRecent int

	configDir string
	debug     bool
	logger    *zap.Logger
}

const pruneLongDesc string = `Remove old archived entries from the playbook.

Archived entries older than the age threshold are removed from the snapshot
for good, except for the most recently archived ones which are always kept.
Active entries are never pruned, and names of pruned entries are never
reused. The delta log keeps the full record of every pruned entry's life.

Pruned entries are also removed from the vector backend when one is
reachable.

Examples:
  playbook prune
  playbook prune --days 60 --keep-recent 5`

const pruneShortDesc string = "Remove old archived entries"

func NewPruneCmd() *cobra.Command {
	cmder := &pruneCommander{}

	cmd := &cobra.Command{
		Use:   "prune",
		Short: pruneShortDesc,
		Long:  pruneLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.configDir = configDir

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("days") {
				cmder.days = v.GetInt("retention.prune_days")
			}
			if !cmd.Flags().Changed("keep-recent") {
				cmder.keepRecent = v.GetInt("retention.prune_keep_recent")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().IntVar(&cmder.days, "days", defaults.Retention.PruneDays, "Prune entries archived more than this many days ago")
	cmd.Flags().IntVar(&cmder.keepRecent, "keep-recent", defaults.Retention.PruneKeepRecent, "Always keep this many recently archived entries")

	return cmd
}

func (c *pruneCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	ddm := dotdir.NewManager()

	snapshotPath, err := ddm.SnapshotPath(c.configDir)
	if err != nil {
		return err
	}
	historyPath, err := ddm.HistoryPath(c.configDir)
	if err != nil {
		return err
	}

	eng, err := engine.New(engine.Config{
		PlaybookPath: snapshotPath,
		HistoryPath:  historyPath,
		Logger:       c.logger,
	})
	if err != nil {
		return err
	}

	pruned, err := eng.Prune(c.days, c.keepRecent)
	if err != nil {
		return fmt.Errorf("pruning: %w", err)
	}

	if len(pruned) == 0 {
		fmt.Printf("\n  %s Nothing to prune.\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Printf("\n  %s Pruned %d archived entries\n", cliui.SuccessMark, len(pruned))
	for _, name := range pruned {
		fmt.Printf("    %s\n", cliui.DimStyle.Render(name))
	}
	fmt.Println()

	c.cleanVectors(pruned)

	return nil
}

// cleanVectors removes pruned entries from the vector backend. Failures are
// reported but never fail the prune, the snapshot is already saved.
func (c *pruneCommander) cleanVectors(names []string) {
	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		c.logger.Warn("skipping vector cleanup", zap.Error(err))
		return
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		c.logger.Warn("skipping vector cleanup", zap.Error(err))
		return
	}

	ddm := dotdir.NewManager()
	dbPath, err := ddm.VectorDBPath(c.configDir)
	if err != nil {
		c.logger.Warn("skipping vector cleanup", zap.Error(err))
		return
	}

	coordinator, err := retrieval.Build(cfg, dbPath, c.logger)
	if err != nil {
		c.logger.Warn("skipping vector cleanup", zap.Error(err))
		return
	}
	defer func() { _ = coordinator.Close() }()

	if err := coordinator.RemoveEntries(context.Background(), names); err != nil {
		c.logger.Warn("vector cleanup failed", zap.Error(err))
	}
}

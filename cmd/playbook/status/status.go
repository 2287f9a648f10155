// Package statuscmder provides the status command for displaying the current
// state of the local .playbook directory.
package statuscmder

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/pkg/cliui"
	"github.com/papercomputeco/playbook/pkg/config"
	"github.com/papercomputeco/playbook/pkg/dotdir"
	"github.com/papercomputeco/playbook/pkg/logger"
	"github.com/papercomputeco/playbook/pkg/playbook"
	"github.com/papercomputeco/playbook/pkg/retrieval"
	"github.com/papercomputeco/playbook/pkg/utils"
)

type statusCommander struct {
	showEntries bool
	probe       bool

	configDir string
	debug     bool
	logger    *zap.Logger
}

const statusLongDesc string = `Show the current playbook state.

Reads the local .playbook/ directory (or ~/.playbook/) to display entry
counts, the average score, and the last update. With --entries the active
entries are listed sorted by score. With --probe the embedder and vector
backend are health checked as well.

Examples:
  playbook status
  playbook status --entries
  playbook status --probe`

const statusShortDesc string = "Show current playbook state"

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
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

	cmd.Flags().BoolVarP(&cmder.showEntries, "entries", "e", false, "List active entries sorted by score")
	cmd.Flags().BoolVarP(&cmder.probe, "probe", "p", false, "Health check the embedder and vector backend")

	return cmd
}

func (c *statusCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	ddm := dotdir.NewManager()

	snapshotPath, err := ddm.SnapshotPath(c.configDir)
	if err != nil {
		return err
	}

	store, err := playbook.Load(snapshotPath)
	if err != nil {
		return fmt.Errorf("loading playbook: %w", err)
	}

	active := store.ActiveCount()
	archived := store.Len() - active

	fmt.Printf("\n  %s  %s\n", cliui.KeyStyle.Render("Playbook:  "), cliui.DimStyle.Render(snapshotPath))
	fmt.Printf("  %s  %d active, %d archived\n", cliui.KeyStyle.Render("Entries:   "), active, archived)
	fmt.Printf("  %s  %.1f\n", cliui.KeyStyle.Render("Avg score: "), store.AverageActiveScore())

	if !store.LastUpdated.IsZero() {
		fmt.Printf("  %s  %s (%s)\n",
			cliui.KeyStyle.Render("Updated:   "),
			cliui.ValueStyle.Render(store.LastUpdated.Format("2006-01-02 15:04:05")),
			cliui.DimStyle.Render(store.LastDeltaSource),
		)
	} else {
		fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Updated:   "), cliui.DimStyle.Render("never"))
	}
	fmt.Println()

	if c.showEntries {
		c.printEntries(store)
	}

	if c.probe {
		if err := c.probeBackends(); err != nil {
			return err
		}
	}

	return nil
}

func (c *statusCommander) printEntries(store *playbook.Store) {
	entries := store.ListActive()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})

	for _, entry := range entries {
		text := utils.Truncate(strings.ReplaceAll(entry.Text, "\n", " "), 72)
		fmt.Printf("  %s %s %s\n",
			cliui.ScoreStyle.Render(fmt.Sprintf("%+3d", entry.Score)),
			cliui.NameStyle.Render(entry.Name),
			cliui.PreviewStyle.Render(text),
		)
	}
	fmt.Println()
}

func (c *statusCommander) probeBackends() error {
	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ddm := dotdir.NewManager()
	dbPath, err := ddm.VectorDBPath(c.configDir)
	if err != nil {
		return err
	}

	coordinator, err := retrieval.Build(cfg, dbPath, c.logger)
	if err != nil {
		return fmt.Errorf("building retrieval coordinator: %w", err)
	}
	defer func() { _ = coordinator.Close() }()

	ctx := context.Background()
	stats, err := coordinator.Stats(ctx)

	backend := coordinator.Backend()
	switch {
	case backend == retrieval.BackendDisabled:
		fmt.Printf("  %s  %s\n\n",
			cliui.KeyStyle.Render("Retrieval: "),
			cliui.WarnStyle.Render(fmt.Sprintf("disabled (%s)", coordinator.Reason())),
		)
	case err != nil:
		fmt.Printf("  %s  %s backend, stats unavailable: %v\n\n",
			cliui.KeyStyle.Render("Retrieval: "), backend, err,
		)
	default:
		fmt.Printf("  %s  %s backend, %d vectors in %s\n\n",
			cliui.KeyStyle.Render("Retrieval: "),
			cliui.NameStyle.Render(backend.String()),
			stats.PointsCount,
			cliui.DimStyle.Render(stats.Collection),
		)
	}

	return nil
}

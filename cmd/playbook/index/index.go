// Package indexcmder provides the index command for pushing active playbook
// entries to the vector backend.
package indexcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/pkg/cliui"
	"github.com/papercomputeco/playbook/pkg/config"
	"github.com/papercomputeco/playbook/pkg/dotdir"
	"github.com/papercomputeco/playbook/pkg/logger"
	"github.com/papercomputeco/playbook/pkg/playbook"
	"github.com/papercomputeco/playbook/pkg/retrieval"
)

type indexCommander struct {
	source string
	force  bool

	configDir string
	debug     bool
	logger    *zap.Logger
}

const indexLongDesc string = `Embed and index active playbook entries.

Generates embeddings for every active entry and upserts them to the vector
backend. The production backend (Qdrant) is preferred; when it is
unreachable the embedded fallback (sqlite-vec) is used instead. Re-indexing
an entry supersedes its previous vector.

Indexing is skipped while the playbook has fewer entries than the
configured minimum; pass --force to index anyway.

Examples:
  playbook index
  playbook index --source "nightly" --force`

const indexShortDesc string = "Index active entries to the vector backend"

func NewIndexCmd() *cobra.Command {
	cmder := &indexCommander{}

	cmd := &cobra.Command{
		Use:   "index",
		Short: indexShortDesc,
		Long:  indexLongDesc,
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

	cmd.Flags().StringVarP(&cmder.source, "source", "s", "manual", "Source tag stored on indexed documents")
	cmd.Flags().BoolVar(&cmder.force, "force", false, "Index even below the minimum entry count")

	return cmd
}

func (c *indexCommander) run() error {
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

	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if c.force {
		cfg.VectorStore.MinEntriesForIndex = 1
	}

	dbPath, err := ddm.VectorDBPath(c.configDir)
	if err != nil {
		return err
	}

	coordinator, err := retrieval.Build(cfg, dbPath, c.logger)
	if err != nil {
		return fmt.Errorf("building retrieval coordinator: %w", err)
	}
	defer func() { _ = coordinator.Close() }()

	report, err := coordinator.IndexActive(context.Background(), store, c.source)
	if err != nil {
		return fmt.Errorf("indexing: %w", err)
	}

	if report.Skipped {
		if report.Backend == retrieval.BackendDisabled {
			fmt.Printf("\n  %s %s\n\n",
				cliui.WarnStyle.Render("!"),
				cliui.DimStyle.Render(fmt.Sprintf("retrieval disabled: %s", coordinator.Reason())),
			)
			return nil
		}
		fmt.Printf("\n  %s %s\n\n",
			cliui.DimStyle.Render("●"),
			cliui.DimStyle.Render(fmt.Sprintf(
				"playbook has %d active entries, below the indexing minimum of %d (use --force)",
				store.ActiveCount(), cfg.VectorStore.MinEntriesForIndex,
			)),
		)
		return nil
	}

	fmt.Printf("\n  %s Indexed %s entries to %s backend",
		cliui.SuccessMark,
		cliui.NameStyle.Render(fmt.Sprintf("%d", report.Indexed)),
		cliui.ValueStyle.Render(report.Backend.String()),
	)
	if report.Failed > 0 {
		fmt.Printf(" %s", cliui.WarnStyle.Render(fmt.Sprintf("(%d failed to embed)", report.Failed)))
	}
	fmt.Printf("\n\n")

	return nil
}

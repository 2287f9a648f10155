// Package updatecmder provides the update command for applying a reflection
// result to the playbook.
package updatecmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/pkg/cliui"
	"github.com/papercomputeco/playbook/pkg/config"
	"github.com/papercomputeco/playbook/pkg/curate"
	"github.com/papercomputeco/playbook/pkg/dotdir"
	"github.com/papercomputeco/playbook/pkg/engine"
	"github.com/papercomputeco/playbook/pkg/logger"
	"github.com/papercomputeco/playbook/pkg/retrieval"
)

type updateCommander struct {
	inputPath string
	source    string
	reindex   bool

	archiveThreshold int
	minAtomicity     float64

	configDir string
	debug     bool
	logger    *zap.Logger
}

const updateLongDesc string = `Apply a reflection result to the playbook.

Reads a reflection result (new key points and evaluations of existing
entries) from a JSON file or stdin, stages a delta through curation and
retention, applies it atomically, and records it in the history log.

Key points failing the atomicity gate, duplicating an active entry, or
lacking actionable content are rejected and reported. Entries whose score
falls to the archive threshold are archived in the same delta.

Examples:
  playbook update reflection.json
  cat reflection.json | playbook update -
  playbook update reflection.json --source "episode-42" --reindex`

const updateShortDesc string = "Apply a reflection result to the playbook"

func NewUpdateCmd() *cobra.Command {
	cmder := &updateCommander{}

	cmd := &cobra.Command{
		Use:   "update <file>",
		Short: updateShortDesc,
		Long:  updateLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.configDir = configDir

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			fs := config.DefaultFlagSet()
			config.BindRegisteredFlags(v, cmd, fs, []string{
				config.FlagArchiveThreshold,
				config.FlagMinAtomicity,
			})

			cmder.archiveThreshold = v.GetInt("retention.archive_threshold")
			cmder.minAtomicity = v.GetFloat64("curation.min_atomicity")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.inputPath = args[0]

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	fs := config.DefaultFlagSet()
	config.AddIntFlag(cmd, fs, config.FlagArchiveThreshold, &cmder.archiveThreshold)
	config.AddFloat64Flag(cmd, fs, config.FlagMinAtomicity, &cmder.minAtomicity)
	cmd.Flags().StringVarP(&cmder.source, "source", "s", "reflection", "Source tag recorded on the delta")
	cmd.Flags().BoolVar(&cmder.reindex, "reindex", false, "Re-index active entries after applying the delta")

	return cmd
}

func (c *updateCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	result, err := c.readResult()
	if err != nil {
		return err
	}

	eng, cfg, err := c.buildEngine()
	if err != nil {
		return err
	}

	cycle, err := eng.RunCycle(c.source, result)
	if err != nil {
		return fmt.Errorf("applying update: %w", err)
	}

	c.printCycle(cycle)

	if c.reindex && cycle.Recorded {
		if err := c.reindexStore(cfg, cycle); err != nil {
			fmt.Printf("  %s %s\n\n",
				cliui.WarnStyle.Render("!"),
				cliui.DimStyle.Render(fmt.Sprintf("re-index skipped: %v", err)),
			)
		}
	}

	return nil
}

func (c *updateCommander) readResult() (*curate.Result, error) {
	var data []byte
	var err error

	if c.inputPath == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(c.inputPath)
	}
	if err != nil {
		return nil, fmt.Errorf("reading reflection result: %w", err)
	}

	var result curate.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parsing reflection result: %w", err)
	}

	return &result, nil
}

func (c *updateCommander) buildEngine() (*engine.Engine, *config.Config, error) {
	ddm := dotdir.NewManager()

	snapshotPath, err := ddm.SnapshotPath(c.configDir)
	if err != nil {
		return nil, nil, err
	}

	historyPath, err := ddm.HistoryPath(c.configDir)
	if err != nil {
		return nil, nil, err
	}

	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	eng, err := engine.New(engine.Config{
		PlaybookPath:     snapshotPath,
		HistoryPath:      historyPath,
		ArchiveThreshold: c.archiveThreshold,
		MinAtomicity:     c.minAtomicity,
		ScoreDeltas: curate.ScoreDeltas{
			Helpful: cfg.Scoring.Helpful,
			Neutral: cfg.Scoring.Neutral,
			Harmful: cfg.Scoring.Harmful,
		},
		Logger: c.logger,
	})
	if err != nil {
		return nil, nil, err
	}

	return eng, cfg, nil
}

func (c *updateCommander) printCycle(cycle *engine.CycleResult) {
	if !cycle.Recorded {
		fmt.Printf("\n  %s No changes to apply.\n\n", cliui.DimStyle.Render("●"))
		c.printRejections(cycle)
		return
	}

	fmt.Printf("\n  %s Applied delta from %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(cycle.Delta.Source),
	)

	fmt.Printf("  %s  %d\n", cliui.KeyStyle.Render("Operations:"), cycle.Delta.OpCount)
	fmt.Printf("  %s  %d added, %d evaluated, %d archived\n",
		cliui.KeyStyle.Render("Breakdown: "),
		cycle.Report.Accepted,
		cycle.Report.Evaluated,
		cycle.Archived,
	)
	fmt.Printf("  %s  %d active entries, avg score %.1f\n",
		cliui.KeyStyle.Render("Playbook:  "),
		cycle.Store.ActiveCount(),
		cycle.Store.AverageActiveScore(),
	)

	c.printRejections(cycle)
}

func (c *updateCommander) printRejections(cycle *engine.CycleResult) {
	if cycle.Report == nil || len(cycle.Report.Rejected) == 0 {
		fmt.Println()
		return
	}

	for _, rejection := range cycle.Report.Rejected {
		fmt.Printf("  %s %s %s\n",
			cliui.FailMark,
			cliui.PreviewStyle.Render(rejection.Text),
			cliui.DimStyle.Render("("+rejection.Reason+")"),
		)
	}
	fmt.Println()
}

func (c *updateCommander) reindexStore(cfg *config.Config, cycle *engine.CycleResult) error {
	ddm := dotdir.NewManager()
	dbPath, err := ddm.VectorDBPath(c.configDir)
	if err != nil {
		return err
	}

	coordinator, err := retrieval.Build(cfg, dbPath, c.logger)
	if err != nil {
		return err
	}
	defer func() { _ = coordinator.Close() }()

	report, err := coordinator.IndexActive(context.Background(), cycle.Store, c.source)
	if err != nil {
		return err
	}

	if report.Skipped {
		return fmt.Errorf("indexing skipped (backend %s)", report.Backend)
	}

	fmt.Printf("  %s Indexed %d entries to %s backend\n\n",
		cliui.SuccessMark, report.Indexed, report.Backend,
	)
	return nil
}

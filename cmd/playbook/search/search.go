// Package searchcmder provides the search command for semantic retrieval of
// playbook strategies.
package searchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/playbook/pkg/cliui"
	"github.com/papercomputeco/playbook/pkg/config"
	"github.com/papercomputeco/playbook/pkg/dotdir"
	"github.com/papercomputeco/playbook/pkg/logger"
	"github.com/papercomputeco/playbook/pkg/retrieval"
)

type searchCommander struct {
	query      string
	maxEntries int
	minScore   int
	scored     bool
	jsonOut    bool

	configDir string
	debug     bool
	logger    *zap.Logger
}

const searchLongDesc string = `Find playbook strategies relevant to a task.

Embeds the query and returns the most similar active strategies from the
vector backend, ranked by similarity. Only active entries are returned;
archived strategies never appear in results.

When no backend or embedder is reachable the search degrades to an empty
result instead of failing, so callers can always inject whatever comes back.

Use --json to emit results as a JSON array for piping into agent prompts.

Examples:
  playbook search "flaky integration test retries"
  playbook search "database migrations" --max-entries 5 --min-score 0
  playbook search "error handling" --json`

const searchShortDesc string = "Find strategies relevant to a task"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.configDir = configDir

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			fs := config.DefaultFlagSet()
			config.BindRegisteredFlags(v, cmd, fs, []string{config.FlagMaxEntries})

			cmder.maxEntries = v.GetInt("inject.max_entries")
			cmder.scored = cmd.Flags().Changed("min-score")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	fs := config.DefaultFlagSet()
	config.AddIntFlag(cmd, fs, config.FlagMaxEntries, &cmder.maxEntries)
	cmd.Flags().IntVar(&cmder.minScore, "min-score", 0, "Only return entries with at least this playbook score")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Emit results as JSON")

	return cmd
}

func (c *searchCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

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

	var minScore *int
	if c.scored {
		minScore = &c.minScore
	}

	matches, err := coordinator.Search(context.Background(), c.query, c.maxEntries, minScore)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if c.jsonOut {
		return json.NewEncoder(os.Stdout).Encode(matches)
	}

	if len(matches) == 0 {
		if coordinator.Backend() == retrieval.BackendDisabled {
			fmt.Printf("\n  %s %s\n\n",
				cliui.WarnStyle.Render("!"),
				cliui.DimStyle.Render(fmt.Sprintf("retrieval disabled: %s", coordinator.Reason())),
			)
			return nil
		}
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("\n  %s %s\n\n",
		cliui.KeyStyle.Render("Strategies for:"),
		cliui.ValueStyle.Render(fmt.Sprintf("%q", c.query)),
	)

	for i, match := range matches {
		c.printMatch(i+1, match)
	}

	return nil
}

func (c *searchCommander) printMatch(rank int, match retrieval.Match) {
	text := strings.ReplaceAll(match.Text, "\n", " ")

	fmt.Printf("  %s  %s  %s\n",
		cliui.NameStyle.Render(fmt.Sprintf("#%d", rank)),
		cliui.DimStyle.Render(fmt.Sprintf("similarity: %.4f", match.Similarity)),
		cliui.KeyStyle.Render(match.Name),
	)
	fmt.Printf("      %s\n", cliui.PreviewStyle.Render(text))
	fmt.Printf("      %s\n\n",
		cliui.DimStyle.Render(fmt.Sprintf("score: %+d  source: %s", match.Score, match.Source)),
	)
}

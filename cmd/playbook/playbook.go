// Package playbookcmder
package playbookcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/playbook/cmd/playbook/config"
	historycmder "github.com/papercomputeco/playbook/cmd/playbook/history"
	indexcmder "github.com/papercomputeco/playbook/cmd/playbook/index"
	prunecmder "github.com/papercomputeco/playbook/cmd/playbook/prune"
	searchcmder "github.com/papercomputeco/playbook/cmd/playbook/search"
	statuscmder "github.com/papercomputeco/playbook/cmd/playbook/status"
	updatecmder "github.com/papercomputeco/playbook/cmd/playbook/update"
	versioncmder "github.com/papercomputeco/playbook/cmd/version"
)

const playbookLongDesc string = `Playbook is a self-improving strategy store for your agents.

Learn from reflections, score what worked, and retrieve relevant
strategies by semantic similarity:
  playbook update      Apply a reflection result to the playbook
  playbook search      Find strategies relevant to a task
  playbook index       Push active strategies to the vector backend`

const playbookShortDesc string = "Playbook - Agent Strategy Memory"

func NewPlaybookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playbook",
		Short: playbookShortDesc,
		Long:  playbookLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .playbook directory location")

	// Add subcommands
	cmd.AddCommand(updatecmder.NewUpdateCmd())
	cmd.AddCommand(indexcmder.NewIndexCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(prunecmder.NewPruneCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

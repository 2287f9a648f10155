// Package configcmder provides the config command for managing persistent
// playbook configuration stored in the .playbook/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent playbook configuration.

Configuration is stored as config.toml in the .playbook/ directory and
provides default values for command flags. CLI flags always take precedence
over config file values.

Keys use dotted notation matching the TOML section structure:
  scoring.helpful, scoring.neutral, scoring.harmful,
  retention.archive_threshold, retention.prune_days, retention.prune_keep_recent,
  curation.min_atomicity, inject.max_entries,
  vector_store.qdrant_host, vector_store.qdrant_port,
  vector_store.collection, vector_store.min_entries_for_index,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions

Use subcommands to get, set, or list configuration values:
  playbook config set <key> <value>    Set a configuration value
  playbook config get <key>            Get a configuration value
  playbook config list                 List all configuration values

Examples:
  playbook config set retention.archive_threshold -8
  playbook config set embedding.model nomic-embed-text
  playbook config get scoring.harmful
  playbook config list`

const configShortDesc string = "Manage persistent playbook configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

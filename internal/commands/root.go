// Package commands holds the kasa command line interface.
package commands

import (
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "kasa",
		Short:   "Community membership ledger and calendar automations",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newServeCommand(),
		newRunCommand(),
		newMigrateCommand(),
		newSeedCommand(),
		newHebrewCommand(),
	)

	return rootCmd
}

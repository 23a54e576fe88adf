package main

import (
	"github.com/spf13/cobra"
)

// Version information
var (
	Version = "dev"
	Commit  = "none"
)

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "cims",
		Short: "Construction inventory and procurement service",
		Long: `cims runs the construction inventory management API and the
maintenance tasks around it: schema migration, admin seeding, material
imports and material requirements planning.`,
		Version:       Version + " (" + Commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file (environment variables override it)")

	cmd.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newSeedCommand(opts),
		newImportCommand(opts),
		newPlanCommand(opts),
	)
	return cmd
}

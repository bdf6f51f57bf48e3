package commands

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
	format     string

	openBackend  BackendOpener
	openMigrator MigratorOpener
}

// NewRootCommand builds the rfqgen command tree backed by PostgreSQL
func NewRootCommand() *cobra.Command {
	return newRootCommand(postgresBackend, postgresMigrator)
}

func newRootCommand(openBackend BackendOpener, openMigrator MigratorOpener) *cobra.Command {
	opts := &rootOptions{
		openBackend:  openBackend,
		openMigrator: openMigrator,
	}

	rootCmd := &cobra.Command{
		Use:   "rfqgen",
		Short: "Builds ERP RFQs and quote assembly trees from a requested-parts sheet",
		Long: `rfqgen reads a requested-parts spreadsheet and creates the RFQ, items,
quotes, bills of material, finish routers and quote assembly tree for it
in the ERP database, filing the supporting documents on the way.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to the YAML configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	flags.StringVar(&opts.format, "format", "text", "Output format (text, json, html)")

	rootCmd.AddCommand(
		newGenerateCobra(opts),
		newUpdateCobra(opts),
		newValidateCobra(opts),
		newCategorizeCobra(opts),
		newMigrateCobra(opts),
	)
	return rootCmd
}

func (o *rootOptions) environment(cmd *cobra.Command) (*Environment, error) {
	return loadEnvironment(o, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

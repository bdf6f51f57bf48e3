package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// MigrateCommand creates the ERP tables the generator writes to
type MigrateCommand struct {
	env *Environment
}

// NewMigrateCommand creates a new migrate command
func NewMigrateCommand(env *Environment) *MigrateCommand {
	return &MigrateCommand{env: env}
}

// Execute runs the migrate command
func (c *MigrateCommand) Execute(ctx context.Context) error {
	migrator, err := c.env.openMigrator(ctx, c.env.Config, c.env.Logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	fmt.Fprintf(c.env.Out, "✅ Schema applied\n")
	return nil
}

func newMigrateCobra(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the ERP tables when they are missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.environment(cmd)
			if err != nil {
				return err
			}
			return NewMigrateCommand(env).Execute(cmd.Context())
		},
	}
}

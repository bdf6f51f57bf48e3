package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/services"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/infrastructure/repositories/spreadsheet"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/interfaces/cli/output"
)

// ValidateConfig holds configuration for the validate command
type ValidateConfig struct {
	Sheet string
}

// ValidateCommand checks a parts sheet without touching the database
type ValidateCommand struct {
	config ValidateConfig
	env    *Environment
}

// NewValidateCommand creates a new validate command
func NewValidateCommand(env *Environment, config ValidateConfig) *ValidateCommand {
	return &ValidateCommand{config: config, env: env}
}

// Execute runs the validate command. A sheet with structural problems is
// reported and then returned as an error.
func (c *ValidateCommand) Execute(ctx context.Context) error {
	records, err := spreadsheet.NewLoader(c.env.Logger).Load(c.config.Sheet)
	if err != nil {
		return fmt.Errorf("failed to load parts sheet: %w", err)
	}

	validator := services.NewRecordValidator()
	result := validator.ValidateRecords(records)

	// Suggest an order the single-pass build accepts
	var reordered *entities.PartRecords
	if len(result.OutOfOrder) > 0 {
		reordered = validator.OrderParentsFirst(records)
	}
	if err := output.WriteValidation(c.env.Out, c.env.Format, records, reordered, result); err != nil {
		return err
	}
	if !result.Valid() {
		return fmt.Errorf("parts sheet has %d problems", len(result.Errors))
	}
	return nil
}

func newValidateCobra(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [sheet]",
		Short: "Check a requested-parts sheet for a well-formed assembly tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.environment(cmd)
			if err != nil {
				return err
			}
			return NewValidateCommand(env, ValidateConfig{Sheet: args[0]}).Execute(cmd.Context())
		},
	}
}

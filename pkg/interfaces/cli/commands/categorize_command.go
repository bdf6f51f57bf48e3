package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/services"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/infrastructure/documents"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/interfaces/cli/output"
)

// CategorizeConfig holds configuration for the categorize command
type CategorizeConfig struct {
	Files []string
	Dest  string // Copy the files here before classifying; empty classifies in place
}

// CategorizeCommand reports the document group of each file
type CategorizeCommand struct {
	config CategorizeConfig
	env    *Environment
}

// NewCategorizeCommand creates a new categorize command
func NewCategorizeCommand(env *Environment, config CategorizeConfig) *CategorizeCommand {
	return &CategorizeCommand{config: config, env: env}
}

// Execute runs the categorize command
func (c *CategorizeCommand) Execute(ctx context.Context) error {
	var files []entities.CategorizedFile
	if c.config.Dest != "" {
		copied, err := documents.NewTransferer(c.env.Logger).TransferAndCategorize(c.config.Files, c.config.Dest)
		if err != nil {
			return err
		}
		files = copied
	} else {
		for _, path := range c.config.Files {
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("failed to read document %s: %w", path, err)
			}
			files = append(files, entities.CategorizedFile{Path: path, Group: services.CategorizeDocument(path)})
		}
	}
	return output.WriteCategorized(c.env.Out, c.env.Format, files)
}

func newCategorizeCobra(opts *rootOptions) *cobra.Command {
	var config CategorizeConfig
	cmd := &cobra.Command{
		Use:   "categorize [files...]",
		Short: "Show the ERP document group each file would be filed under",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.environment(cmd)
			if err != nil {
				return err
			}
			config.Files = args
			return NewCategorizeCommand(env, config).Execute(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&config.Dest, "dest", "", "Copy the files into this folder first")
	return cmd
}

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/application/dto"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/application/services/generation"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/services"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/infrastructure/events"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/infrastructure/metrics"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/infrastructure/repositories/spreadsheet"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/interfaces/cli/output"
)

// GenerateConfig holds configuration for one generation run
type GenerateConfig struct {
	Sheet             string // Requested-parts sheet (.xlsx or .csv)
	Customer          int64
	CustomerName      string
	Buyer             int64
	CustomerRFQNumber string
	InquiryDate       string // MM-DD-YYYY
	DueDate           string // MM-DD-YYYY
	UpdateRFQ         int64  // Existing RFQ to regenerate, 0 creates a new one
	Restricted        bool
	PartFiles         []string
	EstimationFiles   []string
	Resolve           string // Overrides quote.resolve_deferred when set
	MetricsFile       string // Prometheus textfile written after the run
	Progress          bool
	Journal           bool // Print the run journal to stderr
}

// GenerateCommand creates or updates an RFQ from a parts sheet
type GenerateCommand struct {
	config GenerateConfig
	env    *Environment
}

// NewGenerateCommand creates a new generate command
func NewGenerateCommand(env *Environment, config GenerateConfig) *GenerateCommand {
	return &GenerateCommand{
		config: config,
		env:    env,
	}
}

// Execute runs the generate command
func (c *GenerateCommand) Execute(ctx context.Context) error {
	logger := c.env.Logger

	records, err := spreadsheet.NewLoader(logger).Load(c.config.Sheet)
	if err != nil {
		return fmt.Errorf("failed to load parts sheet: %w", err)
	}

	inquiry, err := entities.ParseDate(c.config.InquiryDate)
	if err != nil {
		return fmt.Errorf("invalid inquiry date: %w", err)
	}
	due, err := entities.ParseDate(c.config.DueDate)
	if err != nil {
		return fmt.Errorf("invalid due date: %w", err)
	}

	opts := c.env.GenerationOptions()
	if c.config.Resolve != "" {
		mode, err := services.ParseResolveMode(c.config.Resolve)
		if err != nil {
			return err
		}
		opts.Mode = mode
	}

	backend, err := c.env.openBackend(ctx, c.env.Config, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	store := events.NewInMemoryEventStore(logger)
	if c.config.Progress {
		_ = store.Subscribe([]string{events.RunProgressEvent}, events.HandlerFunc(func(e events.Event) error {
			if p, ok := e.Data().(events.RunProgress); ok {
				fmt.Fprintf(c.env.Err, "⏳ %3d%% %s\n", p.Percent, p.Stage)
			}
			return nil
		}))
	}
	recorder := metrics.NewRecorder()

	generator, err := generation.NewGenerator(backend, store, recorder, logger, opts)
	if err != nil {
		return err
	}

	result, genErr := generator.Generate(ctx, dto.GenerationRequest{
		Records:           records,
		Customer:          entities.Handle(c.config.Customer),
		CustomerName:      c.config.CustomerName,
		Buyer:             entities.Handle(c.config.Buyer),
		CustomerRFQNumber: c.config.CustomerRFQNumber,
		InquiryDate:       inquiry,
		DueDate:           due,
		UpdateRFQ:         entities.Handle(c.config.UpdateRFQ),
		Restricted:        c.config.Restricted,
		PartFiles:         c.config.PartFiles,
		EstimationFiles:   c.config.EstimationFiles,
	})

	if c.config.MetricsFile != "" {
		if err := recorder.WriteTextfile(c.config.MetricsFile); err != nil {
			logger.Warn("failed to write metrics textfile", zap.String("path", c.config.MetricsFile), zap.Error(err))
		}
	}
	if c.config.Journal {
		c.writeJournal(store, result)
	}
	if genErr != nil {
		return genErr
	}

	return output.WriteGeneration(c.env.Out, c.env.Format, result)
}

// writeJournal prints the run's journal. A failed run has no result, so the
// whole store is printed; it only ever holds this invocation's run.
func (c *GenerateCommand) writeJournal(store *events.InMemoryEventStore, result *dto.GenerationResult) {
	var journal []events.Event
	var err error
	if result != nil {
		journal, err = store.ReadRun(result.RunID, 1)
	} else {
		journal, err = store.ReadAllEvents(0)
	}
	if err == nil {
		err = output.WriteJournal(c.env.Err, journal)
	}
	if err != nil {
		c.env.Logger.Warn("failed to write run journal", zap.Error(err))
	}
}

func bindGenerateFlags(cmd *cobra.Command, config *GenerateConfig) {
	flags := cmd.Flags()
	flags.StringVarP(&config.Sheet, "sheet", "s", "", "Requested-parts sheet (.xlsx or .csv)")
	flags.Int64Var(&config.Customer, "customer", 0, "Customer party handle")
	flags.StringVar(&config.CustomerName, "customer-name", "", "Customer name used for the document folders")
	flags.Int64Var(&config.Buyer, "buyer", 0, "Buyer contact handle")
	flags.StringVar(&config.CustomerRFQNumber, "customer-rfq", "", "Customer RFQ number")
	flags.StringVar(&config.InquiryDate, "inquiry-date", "", "Inquiry date (MM-DD-YYYY)")
	flags.StringVar(&config.DueDate, "due-date", "", "Due date (MM-DD-YYYY)")
	flags.BoolVar(&config.Restricted, "restricted", false, "File documents under the restricted folders and mark them secure")
	flags.StringSliceVar(&config.PartFiles, "part-file", nil, "Part document to file (repeatable)")
	flags.StringSliceVar(&config.EstimationFiles, "estimation-file", nil, "Estimation document to file (repeatable)")
	flags.StringVar(&config.Resolve, "resolve", "", "Resolve mode for rows listed before their parent (single-pass, deferred)")
	flags.StringVar(&config.MetricsFile, "metrics-file", "", "Write run metrics to this Prometheus textfile")
	flags.BoolVar(&config.Progress, "progress", false, "Print progress to stderr")
	flags.BoolVar(&config.Journal, "journal", false, "Print the run journal to stderr")

	_ = cmd.MarkFlagRequired("sheet")
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("customer-name")
}

func newGenerateCobra(opts *rootOptions) *cobra.Command {
	var config GenerateConfig
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Create a new RFQ from a requested-parts sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.environment(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Logger.Sync() }()
			return NewGenerateCommand(env, config).Execute(cmd.Context())
		},
	}
	bindGenerateFlags(cmd, &config)
	return cmd
}

func newUpdateCobra(opts *rootOptions) *cobra.Command {
	var config GenerateConfig
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Reset an existing RFQ and regenerate it from a requested-parts sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.UpdateRFQ <= 0 {
				return fmt.Errorf("--rfq must be a positive RFQ handle")
			}
			env, err := opts.environment(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Logger.Sync() }()
			return NewGenerateCommand(env, config).Execute(cmd.Context())
		},
	}
	bindGenerateFlags(cmd, &config)
	cmd.Flags().Int64Var(&config.UpdateRFQ, "rfq", 0, "RFQ handle to regenerate")
	_ = cmd.MarkFlagRequired("rfq")
	return cmd
}

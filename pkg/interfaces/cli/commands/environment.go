package commands

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/application/services/generation"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/repositories"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/services"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/infrastructure/config"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/infrastructure/documents"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/infrastructure/logging"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/infrastructure/repositories/postgres"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/interfaces/cli/output"
)

// Backend is the ERP database a generation run writes to
type Backend interface {
	repositories.Transactor
	Close()
}

// Migrator applies the ERP schema
type Migrator interface {
	Migrate(ctx context.Context) error
	Close()
}

// BackendOpener connects to the ERP database described by cfg
type BackendOpener func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Backend, error)

// MigratorOpener connects to the database the schema is applied to
type MigratorOpener func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Migrator, error)

// OpenPostgres creates a client for the configured database
func OpenPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*postgres.Client, error) {
	client, err := postgres.NewClient(ctx, postgres.Config{
		DSN:            cfg.Database.DSN(),
		MaxConns:       int32(cfg.Database.MaxConns),
		ConnectTimeout: cfg.Database.ConnectTimeout,
		TemplateQuote:  entities.Handle(cfg.Quote.TemplateQuote),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return client, nil
}

func postgresBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Backend, error) {
	client, err := OpenPostgres(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func postgresMigrator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Migrator, error) {
	client, err := OpenPostgres(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Environment is what every subcommand runs with once the root flags are parsed
type Environment struct {
	Config *config.Config
	Logger *zap.Logger
	Format output.Format
	Out    io.Writer
	Err    io.Writer

	openBackend  BackendOpener
	openMigrator MigratorOpener
}

func loadEnvironment(opts *rootOptions, out, errOut io.Writer) (*Environment, error) {
	format, err := output.ParseFormat(opts.format)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &Environment{
		Config:       cfg,
		Logger:       logger,
		Format:       format,
		Out:          out,
		Err:          errOut,
		openBackend:  opts.openBackend,
		openMigrator: opts.openMigrator,
	}, nil
}

// Layout returns the document folders of the configuration
func (e *Environment) Layout() documents.Layout {
	d := e.Config.Documents
	return documents.Layout{
		PDMRoot:         d.PDMRoot,
		EstimatingRoot:  d.EstimatingRoot,
		RestrictedDir:   d.RestrictedDir,
		UnrestrictedDir: d.UnrestrictedDir,
	}
}

// GenerationOptions maps the quote, document and retry settings to generator options
func (e *Environment) GenerationOptions() generation.Options {
	q := e.Config.Quote
	opts := generation.DefaultOptions()
	opts.QuoteType = q.QuoteType
	opts.Division = q.Division
	opts.Operations = q.Operations
	opts.LineItemStart = q.LineItemStart
	if q.ResolveDeferred {
		opts.Mode = services.Deferred
	}
	opts.Layout = e.Layout()
	opts.Retry = generation.RetryPolicy{
		MaxAttempts: e.Config.Retry.MaxAttempts,
		Backoff:     e.Config.Retry.Backoff,
	}
	return opts
}

package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/repositories"
)

//go:embed schema.sql
var schemaSQL string

// Config holds the connection settings of the ERP database
type Config struct {
	DSN            string
	MaxConns       int32
	ConnectTimeout time.Duration

	// TemplateQuote is the quote whose operation rows every new quote copies
	TemplateQuote entities.Handle
}

// Client wraps a pgx pool and hands out gateways bound to it
type Client struct {
	pool          *pgxpool.Pool
	logger        *zap.Logger
	templateQuote entities.Handle
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Verify interface compliance
var _ repositories.Transactor = (*Client)(nil)
var _ repositories.Gateway = (*gateway)(nil)

// NewClient opens a connection pool
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30
	if cfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, classify("create connection pool", err)
	}

	return &Client{
		pool:          pool,
		logger:        logger.Named("postgres"),
		templateQuote: cfg.TemplateQuote,
	}, nil
}

func (c *Client) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

func (c *Client) Ping(ctx context.Context) error {
	return classify("ping database", c.pool.Ping(ctx))
}

// Migrate creates the tables the generator writes to when they are missing
func (c *Client) Migrate(ctx context.Context) error {
	if _, err := c.pool.Exec(ctx, schemaSQL); err != nil {
		return classify("apply schema", err)
	}
	c.logger.Info("schema applied")
	return nil
}

// Gateway returns a gateway whose statements autocommit
func (c *Client) Gateway() repositories.Gateway {
	return c.newGateway(c.pool)
}

func (c *Client) newGateway(q querier) *gateway {
	return &gateway{q: q, logger: c.logger, templateQuote: c.templateQuote}
}

// WithinTx runs fn inside one transaction, committing when it returns nil
func (c *Client) WithinTx(ctx context.Context, fn func(ctx context.Context, gw repositories.Gateway) error) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return classify("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, c.newGateway(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return classify("commit transaction", err)
	}
	return nil
}

// classify wraps err with the failed operation and marks connectivity
// failures as transient
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTransient(err) {
		return fmt.Errorf("failed to %s: %w: %w", op, entities.ErrTransient, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func isTransient(err error) bool {
	if pgconn.Timeout(err) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// connection exceptions, serialization failures and deadlocks
		return strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// nullable maps NoHandle to SQL NULL
func nullable(h entities.Handle) any {
	if !h.Valid() {
		return nil
	}
	return int64(h)
}

// nullableTime maps the zero time to SQL NULL
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

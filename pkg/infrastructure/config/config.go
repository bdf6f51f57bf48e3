// Package config loads generator settings from a YAML file with RFQGEN_*
// environment overrides
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/infrastructure/logging"
)

// EnvPrefix starts every environment override
const EnvPrefix = "RFQGEN_"

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Log       logging.Config  `yaml:"log"`
	Quote     QuoteConfig     `yaml:"quote"`
	Documents DocumentsConfig `yaml:"documents"`
	Retry     RetryConfig     `yaml:"retry"`
}

type DatabaseConfig struct {
	// URL, when set, is used as the DSN and the fields below are ignored
	URL            string        `yaml:"url"`
	Host           string        `yaml:"host" validate:"required_without=URL"`
	Port           int           `yaml:"port" validate:"gte=0,lte=65535"`
	Name           string        `yaml:"name" validate:"required_without=URL"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	SSLMode        string        `yaml:"sslmode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	MaxConns       int           `yaml:"max_conns" validate:"gte=0"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" validate:"gte=0"`
}

// DSN returns the connection string for the pool
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Name,
	}
	if d.User != "" {
		u.User = url.UserPassword(d.User, d.Password)
	}
	q := url.Values{}
	if d.SSLMode != "" {
		q.Set("sslmode", d.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

type QuoteConfig struct {
	TemplateQuote int64                       `yaml:"template_quote" validate:"gt=0"`
	QuoteType     int                         `yaml:"quote_type" validate:"gte=0"`
	Division      int                         `yaml:"division" validate:"gt=0"`
	Operations    entities.OperationSequences `yaml:"operations"`
	LineItemStart int                         `yaml:"line_item_start" validate:"gte=0"`

	// ResolveDeferred enables the fixpoint resolver for rows listed before their parent
	ResolveDeferred bool `yaml:"resolve_deferred"`
}

type DocumentsConfig struct {
	PDMRoot         string `yaml:"pdm_root" validate:"required"`
	EstimatingRoot  string `yaml:"estimating_root" validate:"required"`
	RestrictedDir   string `yaml:"restricted_dir" validate:"required"`
	UnrestrictedDir string `yaml:"unrestricted_dir" validate:"required"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" validate:"gte=1"`
	Backoff     time.Duration `yaml:"backoff" validate:"gte=0"`
}

// Default returns the settings used when neither file nor environment sets a value
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			Name:           "erp",
			SSLMode:        "prefer",
			MaxConns:       4,
			ConnectTimeout: 30 * time.Second,
		},
		Log: logging.Config{
			Level:  "info",
			Format: "console",
		},
		Quote: QuoteConfig{
			TemplateQuote: 494,
			QuoteType:     0,
			Division:      1,
			Operations:    entities.DefaultOperationSequences(),
			LineItemStart: 1,
		},
		Documents: DocumentsConfig{
			PDMRoot:         `y:\PDM`,
			EstimatingRoot:  `y:\Estimating`,
			RestrictedDir:   "Restricted",
			UnrestrictedDir: "Non-restricted",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			Backoff:     2 * time.Second,
		},
	}
}

// Load reads path (skipped when empty) on top of Default, applies environment
// overrides and validates the result
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv(envLookup{})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks every section against its constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("invalid configuration: %s", verrs.Error())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(env envLookup) {
	db := &c.Database
	db.URL = env.GetString("DATABASE_URL", db.URL)
	db.Host = env.GetString("DB_HOST", db.Host)
	db.Port = env.GetInt("DB_PORT", db.Port)
	db.Name = env.GetString("DB_NAME", db.Name)
	db.User = env.GetString("DB_USER", db.User)
	db.Password = env.GetString("DB_PASSWORD", db.Password)
	db.SSLMode = env.GetString("DB_SSLMODE", db.SSLMode)
	db.MaxConns = env.GetInt("DB_MAX_CONNS", db.MaxConns)
	db.ConnectTimeout = env.GetDuration("DB_CONNECT_TIMEOUT", db.ConnectTimeout)

	c.Log.Level = env.GetString("LOG_LEVEL", c.Log.Level)
	c.Log.Format = env.GetString("LOG_FORMAT", c.Log.Format)
	c.Log.OutputPath = env.GetString("LOG_OUTPUT_PATH", c.Log.OutputPath)

	c.Quote.TemplateQuote = int64(env.GetInt("TEMPLATE_QUOTE", int(c.Quote.TemplateQuote)))
	c.Quote.ResolveDeferred = env.GetBool("RESOLVE_DEFERRED", c.Quote.ResolveDeferred)

	c.Documents.PDMRoot = env.GetString("PDM_ROOT", c.Documents.PDMRoot)
	c.Documents.EstimatingRoot = env.GetString("ESTIMATING_ROOT", c.Documents.EstimatingRoot)

	c.Retry.MaxAttempts = env.GetInt("RETRY_MAX_ATTEMPTS", c.Retry.MaxAttempts)
	c.Retry.Backoff = env.GetDuration("RETRY_BACKOFF", c.Retry.Backoff)
}

// envLookup reads RFQGEN_<key>. A value that fails to parse keeps the default.
type envLookup struct{}

func (envLookup) GetString(key, defaultValue string) string {
	if value, ok := os.LookupEnv(EnvPrefix + key); ok && value != "" {
		return value
	}
	return defaultValue
}

func (e envLookup) GetInt(key string, defaultValue int) int {
	if value := e.GetString(key, ""); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (e envLookup) GetBool(key string, defaultValue bool) bool {
	if value := e.GetString(key, ""); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func (e envLookup) GetDuration(key string, defaultValue time.Duration) time.Duration {
	if value := e.GetString(key, ""); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

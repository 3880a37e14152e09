package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultDatabasePath is where the SQLite database lives unless configured.
const DefaultDatabasePath = "~/.local/share/qflow/qflow.db"

// Config is the resolved application configuration.
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Logging  LoggingConfig
	Ledger   LedgerConfig
	Queue    QueueConfig
}

// DatabaseConfig selects and locates the store.
type DatabaseConfig struct {
	Driver string
	Path   string // sqlite
	URL    string // postgres
}

// QueueConfig tunes the engine and the board.
type QueueConfig struct {
	MaxQuantity  int
	PollInterval time.Duration
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Addr      string
	RateLimit float64 // requests per second per client
	RateBurst int
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	Level  string
	Format string
}

// LedgerConfig configures ledger presentation and exports.
type LedgerConfig struct {
	Currency string
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("queue.max_quantity", model.DefaultMaxQuantity)
	v.SetDefault("queue.poll_interval", 10*time.Second)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("ledger.currency", "USD")
}

// Load reads and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Driver: strings.ToLower(strings.TrimSpace(v.GetString("database.driver"))),
			Path:   ExpandPath(v.GetString("database.path")),
			URL:    v.GetString("database.url"),
		},
		Queue: QueueConfig{
			MaxQuantity:  v.GetInt("queue.max_quantity"),
			PollInterval: v.GetDuration("queue.poll_interval"),
		},
		Server: ServerConfig{
			Addr:      v.GetString("server.addr"),
			RateLimit: v.GetFloat64("server.rate_limit"),
			RateBurst: v.GetInt("server.rate_burst"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Ledger: LedgerConfig{
			Currency: strings.ToUpper(strings.TrimSpace(v.GetString("ledger.currency"))),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("%w: database.path is required for sqlite", common.ErrMissingConfig)
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("%w: database.url is required for postgres", common.ErrMissingConfig)
		}
	default:
		return fmt.Errorf("%w: unknown database.driver %q", common.ErrInvalidConfig, c.Database.Driver)
	}

	if c.Queue.MaxQuantity <= 0 {
		return fmt.Errorf("%w: queue.max_quantity must be positive", common.ErrInvalidConfig)
	}
	if c.Queue.PollInterval <= 0 {
		return fmt.Errorf("%w: queue.poll_interval must be positive", common.ErrInvalidConfig)
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return fmt.Errorf("%w: server rate limits cannot be negative", common.ErrInvalidConfig)
	}
	if len(c.Ledger.Currency) != 3 {
		return fmt.Errorf("%w: ledger.currency must be an ISO 4217 code", common.ErrInvalidConfig)
	}
	return nil
}

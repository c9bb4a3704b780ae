// Package config loads service settings from a YAML file, a .env file and
// STOCKLEDGER_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix is prepended to every environment override, e.g. STOCKLEDGER_HTTP_ADDR.
const EnvPrefix = "STOCKLEDGER"

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	App struct {
		Name    string `mapstructure:"name"`
		Env     string `mapstructure:"env"`
		Version string `mapstructure:"version"`
	} `mapstructure:"app"`

	HTTP struct {
		Addr            string        `mapstructure:"addr"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"http"`

	Database struct {
		Driver            string        `mapstructure:"driver"`
		DSN               string        `mapstructure:"dsn"`
		AutoMigrate       bool          `mapstructure:"auto_migrate"`
		MaxConns          int32         `mapstructure:"max_conns"`
		MinConns          int32         `mapstructure:"min_conns"`
		MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
		MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
		StatementTimeout  time.Duration `mapstructure:"statement_timeout"`
		LockTimeout       time.Duration `mapstructure:"lock_timeout"`
		HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	} `mapstructure:"database"`

	Log struct {
		Level    string `mapstructure:"level"`
		Encoding string `mapstructure:"encoding"`
	} `mapstructure:"log"`

	Auth struct {
		Enabled   bool          `mapstructure:"enabled"`
		JWTSecret string        `mapstructure:"jwt_secret"`
		Issuer    string        `mapstructure:"issuer"`
		TokenTTL  time.Duration `mapstructure:"token_ttl"`
	} `mapstructure:"auth"`

	Ledger struct {
		AllowAdjustInactiveItem bool  `mapstructure:"allow_adjust_inactive_item"`
		LowStockThreshold       int64 `mapstructure:"low_stock_threshold"`
		DefaultPageSize         int   `mapstructure:"default_page_size"`
		MaxPageSize             int   `mapstructure:"max_page_size"`
	} `mapstructure:"ledger"`

	// Visibility maps a role name to a CEL predicate over warehouse and user.
	Visibility map[string]string `mapstructure:"visibility"`

	Idempotency struct {
		TTL time.Duration `mapstructure:"ttl"`
	} `mapstructure:"idempotency"`

	Worker struct {
		PollInterval    time.Duration `mapstructure:"poll_interval"`
		BatchSize       int           `mapstructure:"batch_size"`
		CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	} `mapstructure:"worker"`

	Metrics struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"metrics"`
}

// IsDevelopment reports a non-production environment.
func (c Config) IsDevelopment() bool {
	return c.App.Env != "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "stockledger")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.version", "dev")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)
	v.SetDefault("database.statement_timeout", 30*time.Second)
	v.SetDefault("database.lock_timeout", 5*time.Second)
	v.SetDefault("database.health_check_period", time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "")

	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "stockledger")
	v.SetDefault("auth.token_ttl", 12*time.Hour)

	v.SetDefault("ledger.allow_adjust_inactive_item", true)
	v.SetDefault("ledger.low_stock_threshold", 10)
	v.SetDefault("ledger.default_page_size", 50)
	v.SetDefault("ledger.max_page_size", 500)

	v.SetDefault("visibility", map[string]string{})

	v.SetDefault("idempotency.ttl", 24*time.Hour)

	v.SetDefault("worker.poll_interval", 2*time.Second)
	v.SetDefault("worker.batch_size", 100)
	v.SetDefault("worker.cleanup_interval", time.Hour)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads configuration. path may be empty, in which case only defaults,
// .env and the environment are used.
func Load(path string) (Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Auth.Enabled && len(c.Auth.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 characters when auth is enabled")
	}
	if c.Ledger.DefaultPageSize <= 0 || c.Ledger.MaxPageSize < c.Ledger.DefaultPageSize {
		return fmt.Errorf("invalid page sizes: default=%d max=%d", c.Ledger.DefaultPageSize, c.Ledger.MaxPageSize)
	}
	if c.Ledger.LowStockThreshold < 0 {
		return errors.New("ledger.low_stock_threshold must not be negative")
	}
	return nil
}

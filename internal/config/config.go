// Package config provides application configuration loaded from the
// environment, an optional config.yaml and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string `validate:"required,numeric"`
	ReadTimeout  int    `validate:"gte=1"` // seconds
	WriteTimeout int    `validate:"gte=1"` // seconds
	IdleTimeout  int    `validate:"gte=1"` // seconds
}

// DatabaseConfig holds the storage connection settings. ConnString, when
// set, wins over the individual Postgres fields.
type DatabaseConfig struct {
	Driver     string `validate:"oneof=postgres sqlite"`
	ConnString string
	Host       string
	Port       int `validate:"gte=0,lte=65535"`
	User       string
	Password   string
	DBName     string
	SSLMode    string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
	Debug      bool
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Env                string
	Dev                bool
	Migrations         bool
	StorageErrorPolicy string `validate:"oneof=report swallow"`
}

// CacheConfig holds the page cache settings.
type CacheConfig struct {
	TTL time.Duration `validate:"gte=0"`
}

// RedisConfig enables cross-instance revalidation when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int `validate:"gte=0"`
	Channel  string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=console json"`
}

// DSN returns the connection string handed to the driver.
func (d DatabaseConfig) DSN() string {
	if d.ConnString != "" {
		return d.ConnString
	}
	if d.Driver == "sqlite" {
		return d.DBName + ".db"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("server_read_timeout", 15)
	v.SetDefault("server_write_timeout", 15)
	v.SetDefault("server_idle_timeout", 60)

	v.SetDefault("database_driver", "postgres")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "invoices")
	v.SetDefault("db_password", "invoices123")
	v.SetDefault("db_name", "invoices")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("db_debug", false)

	v.SetDefault("app_env", "development")
	v.SetDefault("dev", true)
	v.SetDefault("migrations", false)
	v.SetDefault("invoices_storage_error_policy", "report")

	v.SetDefault("cache_ttl", "5m")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_channel", "invoices:revalidate")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}

// Load reads configuration. Priority (highest to lowest):
// environment variables, config.yaml in one of paths (or the working
// directory), built-in defaults.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	setDefaults(v)
	v.AutomaticEnv()
	// POSTGRES_URL is the legacy name of the connection string.
	if err := v.BindEnv("database_dsn", "DATABASE_DSN", "POSTGRES_URL"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("port"),
			ReadTimeout:  v.GetInt("server_read_timeout"),
			WriteTimeout: v.GetInt("server_write_timeout"),
			IdleTimeout:  v.GetInt("server_idle_timeout"),
		},
		Database: DatabaseConfig{
			Driver:     v.GetString("database_driver"),
			ConnString: v.GetString("database_dsn"),
			Host:       v.GetString("db_host"),
			Port:       v.GetInt("db_port"),
			User:       v.GetString("db_user"),
			Password:   v.GetString("db_password"),
			DBName:     v.GetString("db_name"),
			SSLMode:    v.GetString("db_sslmode"),
			Debug:      v.GetBool("db_debug"),
		},
		App: AppConfig{
			Env:                v.GetString("app_env"),
			Dev:                v.GetBool("dev"),
			Migrations:         v.GetBool("migrations"),
			StorageErrorPolicy: v.GetString("invoices_storage_error_policy"),
		},
		Cache: CacheConfig{
			TTL: v.GetDuration("cache_ttl"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
			Channel:  v.GetString("redis_channel"),
		},
		Log: LogConfig{
			Level:  v.GetString("log_level"),
			Format: v.GetString("log_format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

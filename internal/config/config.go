// Package config loads service settings from defaults, an optional
// .env file and EPH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Mail providers.
const (
	MailLog      = "log"
	MailSendgrid = "sendgrid"
)

// Config holds all application configuration.
type Config struct {
	Env      string
	LogLevel string
	AppName  string
	Server   ServerConfig
	Store    StoreConfig
	Postgres PostgresConfig
	Mongo    MongoConfig
	Mail     MailConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectAttempts int
}

// DSN builds a libpq-compatible connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// MongoConfig holds MongoDB settings.
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// MailConfig holds notification settings.
type MailConfig struct {
	Provider       string
	SendgridAPIKey string
	FromName       string
	FromAddress    string
	SendTimeout    time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("app.name", "EPH Competitions")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", "*")

	v.SetDefault("store.driver", DriverPostgres)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "competitions")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_conns", 20)
	v.SetDefault("db.min_conns", 2)
	v.SetDefault("db.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("db.max_conn_idle_time", 5*time.Minute)
	v.SetDefault("db.connect_attempts", 5)

	v.SetDefault("mongo.uri", "mongodb://127.0.0.1:27017")
	v.SetDefault("mongo.database", "competitions")
	v.SetDefault("mongo.connect_timeout", 10*time.Second)

	v.SetDefault("mail.provider", MailLog)
	v.SetDefault("mail.sendgrid_api_key", "")
	v.SetDefault("mail.from_name", "EPH Competitions")
	v.SetDefault("mail.from_address", "noreply@localhost")
	v.SetDefault("mail.send_timeout", 10*time.Second)
}

// Load reads configuration. A .env file in the working directory (or the
// path in EPH_ENV_FILE) is loaded first if present; real environment
// variables take precedence over it.
func Load() (*Config, error) {
	envFile := os.Getenv("EPH_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", envFile, err)
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)
	v.SetEnvPrefix("EPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return FromViper(v), nil
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Env:      v.GetString("env"),
		LogLevel: v.GetString("log.level"),
		AppName:  v.GetString("app.name"),
		Server: ServerConfig{
			Port:            v.GetString("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			IdleTimeout:     v.GetDuration("server.idle_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			AllowedOrigins:  splitList(v.GetString("server.allowed_origins")),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(v.GetString("store.driver")),
		},
		Postgres: PostgresConfig{
			Host:            v.GetString("db.host"),
			Port:            v.GetString("db.port"),
			User:            v.GetString("db.user"),
			Password:        v.GetString("db.password"),
			DBName:          v.GetString("db.name"),
			SSLMode:         v.GetString("db.sslmode"),
			MaxConns:        v.GetInt32("db.max_conns"),
			MinConns:        v.GetInt32("db.min_conns"),
			MaxConnLifetime: v.GetDuration("db.max_conn_lifetime"),
			MaxConnIdleTime: v.GetDuration("db.max_conn_idle_time"),
			ConnectAttempts: v.GetInt("db.connect_attempts"),
		},
		Mongo: MongoConfig{
			URI:            v.GetString("mongo.uri"),
			Database:       v.GetString("mongo.database"),
			ConnectTimeout: v.GetDuration("mongo.connect_timeout"),
		},
		Mail: MailConfig{
			Provider:       strings.ToLower(v.GetString("mail.provider")),
			SendgridAPIKey: v.GetString("mail.sendgrid_api_key"),
			FromName:       v.GetString("mail.from_name"),
			FromAddress:    v.GetString("mail.from_address"),
			SendTimeout:    v.GetDuration("mail.send_timeout"),
		},
	}
}

// Defaults returns the configuration with no overrides applied.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	return FromViper(v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate rejects configurations that cannot start.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverPostgres, DriverMongo, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	switch c.Mail.Provider {
	case MailLog:
	case MailSendgrid:
		if c.Mail.SendgridAPIKey == "" {
			errs = append(errs, errors.New("mail provider sendgrid requires EPH_MAIL_SENDGRID_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mail provider %q", c.Mail.Provider))
	}
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	if c.Store.Driver == DriverPostgres && c.Postgres.ConnectAttempts < 1 {
		errs = append(errs, errors.New("db connect attempts must be at least 1"))
	}
	if c.IsProduction() && c.Store.Driver == DriverMemory {
		errs = append(errs, errors.New("memory store is not allowed in production"))
	}
	return errors.Join(errs...)
}

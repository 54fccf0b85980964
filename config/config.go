// Package config loads the settings of a validation run and of the report
// service. Values come from built-in defaults, an optional YAML file and the
// environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	sqlrunner "github.com/interop-masterdata/dataquality/lib"
)

// EnvFiles are loaded by LoadEnv when present. Variables already set in the
// process environment win over both files.
var EnvFiles = []string{".env", ".env.local"}

type DatabaseOptions struct {
	Driver   string `yaml:"driver" env:"DB_DRIVER"`
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     string `yaml:"port" env:"DB_PORT"`
	Name     string `yaml:"name" env:"DB_NAME"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	// DSN replaces the connection string built from the fields above.
	DSN string `yaml:"dsn" env:"DB_DSN"`
}

type ServeOptions struct {
	Addr string `yaml:"addr"`
	// Port, when set, listens on all interfaces and replaces Addr.
	Port    string `yaml:"-" env:"PORT"`
	History int    `yaml:"history" env:"RUN_HISTORY_SIZE"`
}

type TelemetryOptions struct {
	TracesExporter string `yaml:"traces_exporter" env:"OTEL_TRACES_EXPORTER"`
	LogsExporter   string `yaml:"logs_exporter" env:"OTEL_LOGS_EXPORTER"`
	Protocol       string `yaml:"protocol" env:"OTEL_EXPORTER_OTLP_PROTOCOL"`
	TracesProtocol string `yaml:"traces_protocol" env:"OTEL_EXPORTER_OTLP_TRACES_PROTOCOL"`
	LogsProtocol   string `yaml:"logs_protocol" env:"OTEL_EXPORTER_OTLP_LOGS_PROTOCOL"`
}

type Config struct {
	Database  DatabaseOptions  `yaml:"database"`
	ReportDir string           `yaml:"report_dir" env:"REPORT_DIR"`
	LogLevel  string           `yaml:"log_level" env:"LOG_LEVEL"`
	Serve     ServeOptions     `yaml:"serve"`
	Telemetry TelemetryOptions `yaml:"telemetry"`
}

// Default returns the configuration used when nothing else is given.
func Default() *Config {
	return &Config{
		Database: DatabaseOptions{
			Driver:   "pgx",
			Host:     "localhost",
			Port:     "5432",
			Name:     "interop_db",
			User:     "postgres",
			Password: "postgres",
		},
		ReportDir: "reports",
		LogLevel:  "info",
		Serve: ServeOptions{
			Addr:    ":8080",
			History: 100,
		},
		Telemetry: TelemetryOptions{
			TracesExporter: "none",
			LogsExporter:   "none",
			Protocol:       "grpc",
		},
	}
}

// LoadEnv loads the env files that exist and returns how many were loaded.
func LoadEnv(files []string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load builds the configuration from the defaults, the YAML file at path
// (skipped when path is empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file not found: %w", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.Serve.Port != "" {
		cfg.Serve.Addr = ":" + cfg.Serve.Port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if !slices.Contains(sqlrunner.Drivers, c.Database.Driver) {
		return fmt.Errorf("database.driver must be one of %v, got %q", sqlrunner.Drivers, c.Database.Driver)
	}
	if c.Database.DSN == "" && c.Database.Name == "" {
		return errors.New("database.name is required")
	}
	if c.ReportDir == "" {
		return errors.New("report_dir is required")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.Serve.History <= 0 {
		return fmt.Errorf("serve.history must be positive, got %d", c.Serve.History)
	}
	for _, exporter := range []string{c.Telemetry.TracesExporter, c.Telemetry.LogsExporter} {
		switch exporter {
		case "none", "console", "otlp":
		default:
			return fmt.Errorf("unsupported exporter: %s", exporter)
		}
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// TracesOTLPProtocol is the OTLP protocol for traces, falling back to the shared
// protocol.
func (t TelemetryOptions) TracesOTLPProtocol() string {
	return firstNonEmpty(t.TracesProtocol, t.Protocol, "grpc")
}

// LogsOTLPProtocol is the OTLP protocol for logs, falling back to the shared
// protocol.
func (t TelemetryOptions) LogsOTLPProtocol() string {
	return firstNonEmpty(t.LogsProtocol, t.Protocol, "grpc")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ConnectionString returns the data source name for the configured driver.
func (d *DatabaseOptions) ConnectionString() string {
	if d.DSN != "" {
		return d.DSN
	}

	switch d.Driver {
	case "mysql":
		cfg := mysql.NewConfig()
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(d.Host, d.Port)
		cfg.DBName = d.Name
		cfg.ParseTime = true
		return cfg.FormatDSN()
	case "sqlserver":
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(d.User, d.Password),
			Host:     net.JoinHostPort(d.Host, d.Port),
			RawQuery: url.Values{"database": {d.Name}}.Encode(),
		}
		return u.String()
	case "sqlite":
		return d.Name
	default:
		return fmt.Sprintf(
			"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
			d.Host, d.Port, d.User, d.Name, d.Password,
		)
	}
}

// Redacted returns the connection target without credentials, for logging.
func (d *DatabaseOptions) Redacted() string {
	if d.DSN != "" {
		if i := strings.LastIndex(d.DSN, "@"); i >= 0 {
			return d.Driver + "://…" + d.DSN[i:]
		}
		return d.Driver
	}
	if d.Driver == "sqlite" {
		return "sqlite:" + d.Name
	}
	return fmt.Sprintf("%s://%s/%s", d.Driver, net.JoinHostPort(d.Host, d.Port), d.Name)
}

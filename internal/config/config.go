/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config holds the operator's process-level configuration: log
// level, evaluator deadline, history capacity, the optional persistence
// backend, and the manager's metrics/probes/leader-election/webhook
// settings. This is distinct from the cluster-delivered freeze policy
// (internal/policyconfig), which arrives via CRDs, not flags/env/file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for the operator process.
type Config struct {
	// configFileUsed is the path to the config file that was loaded (empty if none)
	configFileUsed string

	// LogLevel is the logging level (debug, info, warn, error)
	LogLevel string `mapstructure:"log-level"`

	// Evaluator configures the policy evaluator's runtime bounds
	Evaluator EvaluatorConfig `mapstructure:"evaluator"`

	// History configures the bounded history recorder
	History HistoryConfig `mapstructure:"history"`

	// Storage configures the optional crash-recovery persistence backend
	Storage StorageConfig `mapstructure:"storage"`

	// Diagnostics configures the read-only diagnostics HTTP surface
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`

	// Metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Probes configuration
	Probes ProbesConfig `mapstructure:"probes"`

	// LeaderElection configuration
	LeaderElection LeaderElectionConfig `mapstructure:"leader-election"`

	// Webhook configuration
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// EvaluatorConfig configures the policy evaluator.
type EvaluatorConfig struct {
	// Deadline is the timeout put on each Evaluate call's context. The
	// evaluator checks it once, on entry: a context already past it maps to
	// INTERNAL_ERROR and the fail-closed rule applies; an evaluation that has
	// started runs to completion.
	Deadline time.Duration `mapstructure:"deadline"`
}

// HistoryConfig configures the bounded history recorder.
type HistoryConfig struct {
	// Capacity is the maximum number of events retained (default 1000).
	Capacity int `mapstructure:"capacity"`
}

// StorageConfig configures the optional persistence backend. Disabled by
// default: the in-memory ring is the source of truth at runtime regardless.
type StorageConfig struct {
	// Enabled turns on crash-recovery persistence of history events and
	// exemptions. Disabled by default (in-memory only).
	Enabled bool `mapstructure:"enabled"`

	// Type is the storage backend type (sqlite, postgres, mysql)
	Type string `mapstructure:"type"`

	// SQLite configuration
	SQLite SQLiteConfig `mapstructure:"sqlite"`

	// PostgreSQL configuration
	PostgreSQL PostgreSQLConfig `mapstructure:"postgres"`

	// MySQL configuration
	MySQL MySQLConfig `mapstructure:"mysql"`
}

// SQLiteConfig configures SQLite storage
type SQLiteConfig struct {
	// Path to database file
	Path string `mapstructure:"path"`
}

// PostgreSQLConfig configures PostgreSQL storage
type PostgreSQLConfig struct {
	// Host is the database host
	Host string `mapstructure:"host"`

	// Port is the database port
	Port int `mapstructure:"port"`

	// Database name
	Database string `mapstructure:"database"`

	// Username for authentication
	Username string `mapstructure:"username"`

	// Password for authentication (omitted from JSON for security)
	Password string `mapstructure:"password" json:"-"`

	// SSLMode for connection
	SSLMode string `mapstructure:"ssl-mode"`
}

// MySQLConfig configures MySQL/MariaDB storage
type MySQLConfig struct {
	// Host is the database host
	Host string `mapstructure:"host"`

	// Port is the database port
	Port int `mapstructure:"port"`

	// Database name
	Database string `mapstructure:"database"`

	// Username for authentication
	Username string `mapstructure:"username"`

	// Password for authentication (omitted from JSON for security)
	Password string `mapstructure:"password" json:"-"`
}

// DiagnosticsConfig configures the read-only diagnostics HTTP surface ([M-DIAG]).
type DiagnosticsConfig struct {
	// Enabled turns on the diagnostics server
	Enabled bool `mapstructure:"enabled"`

	// Port for the diagnostics server
	Port int `mapstructure:"port"`
}

// MetricsConfig configures the metrics server
type MetricsConfig struct {
	// BindAddress is the address to bind to (use 0 to disable)
	BindAddress string `mapstructure:"bind-address"`

	// Secure enables HTTPS for metrics
	Secure bool `mapstructure:"secure"`

	// CertPath is the directory containing TLS certificates
	CertPath string `mapstructure:"cert-path"`

	// CertName is the certificate file name
	CertName string `mapstructure:"cert-name"`

	// CertKey is the key file name
	CertKey string `mapstructure:"cert-key"`
}

// ProbesConfig configures health probes
type ProbesConfig struct {
	// BindAddress is the address for health probes
	BindAddress string `mapstructure:"bind-address"`
}

// LeaderElectionConfig configures leader election
type LeaderElectionConfig struct {
	// Enabled turns on leader election
	Enabled bool `mapstructure:"enabled"`

	// LeaseDuration is the leader lease duration
	LeaseDuration time.Duration `mapstructure:"lease-duration"`

	// RenewDeadline is the leader renew deadline
	RenewDeadline time.Duration `mapstructure:"renew-deadline"`

	// RetryPeriod is the leader retry period
	RetryPeriod time.Duration `mapstructure:"retry-period"`
}

// WebhookConfig configures webhook server TLS
type WebhookConfig struct {
	// CertPath is the directory containing webhook TLS certificates
	CertPath string `mapstructure:"cert-path"`

	// CertName is the certificate file name
	CertName string `mapstructure:"cert-name"`

	// CertKey is the key file name
	CertKey string `mapstructure:"cert-key"`

	// EnableHTTP2 enables HTTP/2 for the webhook server
	EnableHTTP2 bool `mapstructure:"enable-http2"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Evaluator: EvaluatorConfig{
			Deadline: 250 * time.Millisecond,
		},
		History: HistoryConfig{
			Capacity: 1000,
		},
		Storage: StorageConfig{
			Enabled: false,
			Type:    "sqlite",
			SQLite: SQLiteConfig{
				Path: "/data/kubefreezer.db",
			},
			PostgreSQL: PostgreSQLConfig{
				Port:    5432,
				SSLMode: "require",
			},
			MySQL: MySQLConfig{
				Port: 3306,
			},
		},
		Diagnostics: DiagnosticsConfig{
			Enabled: true,
			Port:    8081,
		},
		Metrics: MetricsConfig{
			BindAddress: "0",
			Secure:      true,
			CertName:    "tls.crt",
			CertKey:     "tls.key",
		},
		Probes: ProbesConfig{
			BindAddress: ":8082",
		},
		LeaderElection: LeaderElectionConfig{
			Enabled:       false,
			LeaseDuration: 15 * time.Second,
			RenewDeadline: 10 * time.Second,
			RetryPeriod:   2 * time.Second,
		},
		Webhook: WebhookConfig{
			CertName:    "tls.crt",
			CertKey:     "tls.key",
			EnableHTTP2: false,
		},
	}
}

// BindFlags binds configuration flags to pflags
func BindFlags(flags *pflag.FlagSet) {
	// Top-level
	flags.String("config", "", "Path to config file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")

	// Evaluator
	flags.Duration("evaluator.deadline", 250*time.Millisecond, "Hard deadline applied to each admission evaluation")

	// History
	flags.Int("history.capacity", 1000, "Maximum number of history events retained")

	// Storage
	flags.Bool("storage.enabled", false, "Enable crash-recovery persistence of history/exemptions")
	flags.String("storage.type", "sqlite", "Storage backend type (sqlite, postgres, mysql)")
	flags.String("storage.sqlite.path", "/data/kubefreezer.db", "Path to SQLite database file")
	flags.String("storage.postgres.host", "", "PostgreSQL host")
	flags.Int("storage.postgres.port", 5432, "PostgreSQL port")
	flags.String("storage.postgres.database", "", "PostgreSQL database name")
	flags.String("storage.postgres.username", "", "PostgreSQL username")
	flags.String("storage.postgres.password", "", "PostgreSQL password")
	flags.String("storage.postgres.ssl-mode", "require", "PostgreSQL SSL mode")
	flags.String("storage.mysql.host", "", "MySQL host")
	flags.Int("storage.mysql.port", 3306, "MySQL port")
	flags.String("storage.mysql.database", "", "MySQL database name")
	flags.String("storage.mysql.username", "", "MySQL username")
	flags.String("storage.mysql.password", "", "MySQL password")

	// Diagnostics
	flags.Bool("diagnostics.enabled", true, "Enable the read-only diagnostics HTTP server")
	flags.Int("diagnostics.port", 8081, "Diagnostics server port")

	// Metrics
	flags.String("metrics.bind-address", "0", "Metrics endpoint bind address (0 to disable)")
	flags.Bool("metrics.secure", true, "Enable HTTPS for metrics")
	flags.String("metrics.cert-path", "", "Path to metrics TLS certificate directory")
	flags.String("metrics.cert-name", "tls.crt", "Metrics TLS certificate file name")
	flags.String("metrics.cert-key", "tls.key", "Metrics TLS key file name")

	// Probes
	flags.String("probes.bind-address", ":8082", "Health probes bind address")

	// Leader election
	flags.Bool("leader-election.enabled", false, "Enable leader election")
	flags.Duration("leader-election.lease-duration", 15*time.Second, "Leader lease duration")
	flags.Duration("leader-election.renew-deadline", 10*time.Second, "Leader renew deadline")
	flags.Duration("leader-election.retry-period", 2*time.Second, "Leader retry period")

	// Webhook
	flags.String("webhook.cert-path", "", "Path to webhook TLS certificate directory")
	flags.String("webhook.cert-name", "tls.crt", "Webhook TLS certificate file name")
	flags.String("webhook.cert-key", "tls.key", "Webhook TLS key file name")
	flags.Bool("webhook.enable-http2", false, "Enable HTTP/2 for webhook server")
}

// Load loads configuration from flags, environment, and config file
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults from DefaultConfig
	defaults := DefaultConfig()
	v.SetDefault("log-level", defaults.LogLevel)
	v.SetDefault("evaluator.deadline", defaults.Evaluator.Deadline)
	v.SetDefault("history.capacity", defaults.History.Capacity)
	v.SetDefault("storage.enabled", defaults.Storage.Enabled)
	v.SetDefault("storage.type", defaults.Storage.Type)
	v.SetDefault("storage.sqlite.path", defaults.Storage.SQLite.Path)
	v.SetDefault("storage.postgres.port", defaults.Storage.PostgreSQL.Port)
	v.SetDefault("storage.postgres.ssl-mode", defaults.Storage.PostgreSQL.SSLMode)
	v.SetDefault("storage.mysql.port", defaults.Storage.MySQL.Port)
	v.SetDefault("diagnostics.enabled", defaults.Diagnostics.Enabled)
	v.SetDefault("diagnostics.port", defaults.Diagnostics.Port)
	v.SetDefault("metrics.bind-address", defaults.Metrics.BindAddress)
	v.SetDefault("metrics.secure", defaults.Metrics.Secure)
	v.SetDefault("metrics.cert-name", defaults.Metrics.CertName)
	v.SetDefault("metrics.cert-key", defaults.Metrics.CertKey)
	v.SetDefault("probes.bind-address", defaults.Probes.BindAddress)
	v.SetDefault("leader-election.enabled", defaults.LeaderElection.Enabled)
	v.SetDefault("leader-election.lease-duration", defaults.LeaderElection.LeaseDuration)
	v.SetDefault("leader-election.renew-deadline", defaults.LeaderElection.RenewDeadline)
	v.SetDefault("leader-election.retry-period", defaults.LeaderElection.RetryPeriod)
	v.SetDefault("webhook.cert-name", defaults.Webhook.CertName)
	v.SetDefault("webhook.cert-key", defaults.Webhook.CertKey)
	v.SetDefault("webhook.enable-http2", defaults.Webhook.EnableHTTP2)

	// Bind flags
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	// Environment variables
	v.SetEnvPrefix("KUBEFREEZER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	// Config file
	var configFileUsed string
	if configFile, _ := flags.GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		configFileUsed = v.ConfigFileUsed()
	} else {
		// Try default locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/kubefreezer")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err == nil {
			configFileUsed = v.ConfigFileUsed()
		}
		// Ignore error if no config file found - will use defaults
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Store which config file was used (empty string if none)
	cfg.configFileUsed = configFileUsed

	return cfg, nil
}

// ConfigFileUsed returns the path to the config file that was loaded (empty if none)
func (c *Config) ConfigFileUsed() string {
	return c.configFileUsed
}

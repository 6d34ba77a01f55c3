// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package config loads the connection settings used by the surrealq
// command. Settings are read from a YAML file, then from an optional env
// file and finally from SURREALQ_* environment variables, later sources
// taking precedence.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Drivers.
const (
	DriverWS     = "ws"
	DriverSQLite = "sqlite3"
	DriverDqlite = "dqlite"
)

// Config holds the settings needed to connect to a database.
type Config struct {
	// Driver is one of "ws", "sqlite3" or "dqlite".
	Driver string `yaml:"driver"`

	// URL is the websocket RPC endpoint, used by the ws driver.
	URL string `yaml:"url,omitempty"`
	// Namespace and Database are selected before running queries over ws.
	Namespace string `yaml:"namespace,omitempty"`
	Database  string `yaml:"database,omitempty"`
	// Encoding is "cbor" or "json".
	Encoding string `yaml:"encoding,omitempty"`

	// DSN is the data source name of the sqlite3 driver or the database
	// name of the dqlite driver.
	DSN string `yaml:"dsn,omitempty"`
	// Nodes lists the dqlite node addresses.
	Nodes []string `yaml:"nodes,omitempty"`

	// EnvFile is loaded into the environment before the SURREALQ_*
	// variables are read. Variables already set are not replaced.
	EnvFile string `yaml:"env_file,omitempty"`

	// Timeout bounds connecting and running a query. Zero means no limit.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Driver:   DriverWS,
		URL:      "ws://localhost:8000/rpc",
		Encoding: "cbor",
		Timeout:  30 * time.Second,
	}
}

// Load reads the configuration file at path, if path is not empty, applies
// the environment and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config: %w", err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config %q: %w", path, err)
		}
	}

	envFile := cfg.EnvFile
	if v, ok := os.LookupEnv("SURREALQ_ENV_FILE"); ok {
		envFile = v
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("cannot load env file: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnv() error {
	strs := map[string]*string{
		"SURREALQ_DRIVER":    &cfg.Driver,
		"SURREALQ_URL":       &cfg.URL,
		"SURREALQ_NAMESPACE": &cfg.Namespace,
		"SURREALQ_DATABASE":  &cfg.Database,
		"SURREALQ_ENCODING":  &cfg.Encoding,
		"SURREALQ_DSN":       &cfg.DSN,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv("SURREALQ_NODES"); ok {
		cfg.Nodes = nil
		for _, node := range strings.Split(v, ",") {
			if node = strings.TrimSpace(node); node != "" {
				cfg.Nodes = append(cfg.Nodes, node)
			}
		}
	}
	if v, ok := os.LookupEnv("SURREALQ_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SURREALQ_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}
	return nil
}

// Validate checks that the settings needed by the selected driver are
// present.
func (cfg *Config) Validate() error {
	if cfg.Timeout < 0 {
		return fmt.Errorf("invalid config: negative timeout %s", cfg.Timeout)
	}
	switch cfg.Driver {
	case DriverWS:
		if cfg.URL == "" {
			return fmt.Errorf("invalid config: ws driver needs a url")
		}
		if cfg.Namespace == "" || cfg.Database == "" {
			return fmt.Errorf("invalid config: ws driver needs a namespace and a database")
		}
		if cfg.Encoding != "cbor" && cfg.Encoding != "json" {
			return fmt.Errorf("invalid config: unknown encoding %q", cfg.Encoding)
		}
	case DriverSQLite:
		if cfg.DSN == "" {
			return fmt.Errorf("invalid config: sqlite3 driver needs a dsn")
		}
	case DriverDqlite:
		if cfg.DSN == "" {
			return fmt.Errorf("invalid config: dqlite driver needs a dsn")
		}
		if len(cfg.Nodes) == 0 {
			return fmt.Errorf("invalid config: dqlite driver needs node addresses")
		}
	default:
		return fmt.Errorf("invalid config: unknown driver %q", cfg.Driver)
	}
	return nil
}

// Package config handles loading and parsing application configuration.
//
// Both binaries share one Config. The reference backend finds its file the
// way it always has:
//  1. An environment variable:  CONFIG_PATH=/path/to/config.yaml
//  2. A command-line flag:      --config=/path/to/config.yaml
//
// The console passes the path from its own cobra flag to Load, and runs
// from environment variables and defaults alone when no file is given.
package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root configuration structure.
// Every field maps to a key in the YAML file AND can be overridden
// by the corresponding environment variable (env:"...").
type Config struct {
	// Env controls log format and verbosity.
	// Valid values: "dev", "staging", "prod"
	Env string `yaml:"env" env:"ENV" env-default:"dev"`

	// StoragePath is the SQLite file used by the reference backend.
	StoragePath string `yaml:"storage_path" env:"STORAGE_PATH" env-default:"storage/students.db"`

	HTTPServer `yaml:"http_server"`

	API     API     `yaml:"api"`
	Cache   Cache   `yaml:"cache"`
	Metrics Metrics `yaml:"metrics"`
}

// HTTPServer holds settings for the reference backend's listener.
type HTTPServer struct {
	// Addr is the TCP address the server listens on, e.g. "localhost:8085".
	Addr string `yaml:"address" env:"HTTP_SERVER_ADDR" env-default:"localhost:8085"`
}

// API configures the transport client.
type API struct {
	// BaseURL is host:port plus the /api prefix.
	BaseURL string `yaml:"base_url" env:"STUDENTS_API_URL" env-default:"http://localhost:8085/api"`

	// Timeout bounds a single HTTP round trip.
	Timeout time.Duration `yaml:"timeout" env:"STUDENTS_API_TIMEOUT" env-default:"10s"`

	// RequestsPerSecond throttles outgoing requests. Zero disables the limiter.
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"STUDENTS_API_RPS" env-default:"0"`
}

// Cache configures the query cache of the synchronization layer.
type Cache struct {
	// StaleTime is how long fetched data counts as fresh.
	// Zero keeps data fresh until it is invalidated.
	StaleTime time.Duration `yaml:"stale_time" env:"CACHE_STALE_TIME" env-default:"0s"`

	// GCTime is how long an entry nobody observes is kept.
	GCTime time.Duration `yaml:"gc_time" env:"CACHE_GC_TIME" env-default:"5m"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	// Addr serves /metrics when non-empty.
	Addr string `yaml:"address" env:"METRICS_ADDR"`
}

// Load reads the YAML file at path, then applies environment overrides and
// defaults. An empty path reads the environment only.
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config.Load: read env: %w", err)
		}
		return &cfg, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config.Load: config file does not exist: %s", path)
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: read %s: %w", path, err)
	}

	return &cfg, nil
}

// MustLoad reads, validates, and returns the application config.
//
// Functions prefixed with "Must" are allowed to fatal on failure: if this
// returns, the config is valid.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path to the configuration YAML file")
		flag.Parse()
		configPath = *flags
	}

	if configPath == "" {
		log.Fatal("config path is not set: use --config flag or CONFIG_PATH env var")
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err.Error())
	}

	return cfg
}

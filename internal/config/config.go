package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the main structure mapping the entire application configuration.
// This struct uses mapstructure tags to map YAML/JSON keys to Go struct fields.
type Config struct {
	// Server configuration section containing HTTP server settings
	Server struct {
		Port    int    `mapstructure:"port"`     // HTTP server port (default: 8080)
		BaseURL string `mapstructure:"base_url"` // Base URL used when rendering download links
	} `mapstructure:"server"`

	// Database configuration section for SQLite settings
	Database struct {
		Name string `mapstructure:"name"` // SQLite database file name
	} `mapstructure:"database"`

	// Storage configuration for the on-disk object store
	Storage struct {
		Directory string `mapstructure:"directory"` // Directory holding uploaded file blobs
	} `mapstructure:"storage"`

	// Upload configuration for intake validation
	Upload struct {
		MaxSizeBytes int64 `mapstructure:"max_size_bytes"` // Upload size ceiling in bytes
	} `mapstructure:"upload"`

	// Reaper configuration for the background expiry sweep
	Reaper struct {
		IntervalSeconds int `mapstructure:"interval_seconds"` // Seconds between reaper cycles
	} `mapstructure:"reaper"`

	// Events configuration for asynchronous download tracking
	Events struct {
		BufferSize  int `mapstructure:"buffer_size"`  // Size of the download event channel buffer
		WorkerCount int `mapstructure:"worker_count"` // Number of worker goroutines persisting events
	} `mapstructure:"events"`
}

// LoadConfig loads the application configuration using Viper.
// It supports environment variable overrides and YAML configuration files.
// Returns a populated Config struct or an error if configuration loading fails.
func LoadConfig() (*Config, error) {
	// Enable automatic environment variable binding.
	// This allows config values to be overridden via environment variables.
	viper.AutomaticEnv()

	// Replace dots with underscores in environment variable names,
	// e.g. "server.port" becomes "SERVER_PORT".
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.AddConfigPath("./configs")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Defaults used when no config file is found or specific keys are missing.
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.base_url", "http://localhost:8080")
	viper.SetDefault("database.name", "hideshare.db")
	viper.SetDefault("storage.directory", "uploads")
	viper.SetDefault("upload.max_size_bytes", 50*1024*1024)
	viper.SetDefault("reaper.interval_seconds", 60)
	viper.SetDefault("events.buffer_size", 1000)
	viper.SetDefault("events.worker_count", 5)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Not fatal, the defaults above cover every key.
			log.Println("Config file not found, using default values")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	log.Printf("Configuration loaded: Server Port=%d, DB Name=%s, Storage Dir=%s, Reaper Interval=%ds",
		cfg.Server.Port, cfg.Database.Name, cfg.Storage.Directory, cfg.Reaper.IntervalSeconds)

	return &cfg, nil
}

package main

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
)

// Config holds shmhost configuration, read from SHMHOST_* variables.
type Config struct {
	// ProcessID keys the region name; zero means the current process id.
	ProcessID    int  `envconfig:"PROCESS_ID" default:"0"`
	Identity     int  `envconfig:"IDENTITY" default:"1"`
	ReservedSize int  `envconfig:"RESERVED_SIZE" default:"1048576"`
	DebugPort    int  `envconfig:"DEBUG_PORT" default:"20000"`
	LogWorkers   int  `envconfig:"LOG_WORKERS" default:"4"`
	LogDev       bool `envconfig:"LOG_DEV" default:"false"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("SHMHOST", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.ProcessID == 0 {
		cfg.ProcessID = os.Getpid()
	}
	if cfg.LogWorkers <= 0 {
		return nil, fmt.Errorf("SHMHOST_LOG_WORKERS must be positive, got %d", cfg.LogWorkers)
	}
	return &cfg, nil
}

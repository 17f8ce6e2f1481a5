// Package config provides configuration loading and management for edgeflow.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"edgeflow/pkg/sink"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// Mode selects the gradient computation: "still", "2d", or "3d"
		Mode string `yaml:"mode"`

		// GridRows is the number of region rows the frame interior is split into
		GridRows int `yaml:"gridRows"`

		// GridCols is the number of region columns the frame interior is split into
		GridCols int `yaml:"gridCols"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Dir is the directory the per-channel output files are written to
		Dir string `yaml:"dir"`

		// FPS is the frame rate stamped on the encoded output streams
		FPS float64 `yaml:"fps"`

		// Candidates is the ordered codec/container fallback list tried when
		// opening the output sink
		Candidates []sink.Candidate `yaml:"candidates"`

		// Loop restarts playback from the first frame at end of stream
		Loop bool `yaml:"loop"`

		// Snapshots additionally saves every derived frame as a PNG sequence
		Snapshots bool `yaml:"snapshots"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.Mode = "2d"
	cfg.Processing.GridRows = 2
	cfg.Processing.GridCols = 2

	cfg.Output.Dir = "edgeflow_out"
	cfg.Output.FPS = 25
	cfg.Output.Candidates = sink.DefaultCandidates()
	cfg.Output.Loop = false
	cfg.Output.Snapshots = false
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

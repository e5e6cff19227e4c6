// Package config is the ambient JSON-file-plus-CLI-flag overlay the
// cmd/ drivers use to build a sampler.System, in the same two-step
// Load-then-Resolve shape as the teacher's internal/config package.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
)

// Config holds everything a driver needs to stand up a sampler.System.
type Config struct {
	SearchPath   string `json:"search_path"`
	MaxOpenFiles int    `json:"max_open_files"`
	MaxMemoryMB  int    `json:"max_memory_mb"`
	Workers      int    `json:"workers"`
}

// Load reads a JSON config file. Fields absent from the file keep their
// zero values, left for Resolve to default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Flags holds CLI flag values that override the config file.
type Flags struct {
	SearchPath   string
	MaxOpenFiles int
	MaxMemoryMB  int
	Workers      int
}

// Resolve overrides fields with any flags that are set, then fills
// fields that are still empty with the same default
// budgets registry.New and tilecache.New fall back to on their own, plus
// one worker per CPU for the batch drivers.
func (c *Config) Resolve(flags Flags) {
	if flags.SearchPath != "" {
		c.SearchPath = flags.SearchPath
	}
	if flags.MaxOpenFiles > 0 {
		c.MaxOpenFiles = flags.MaxOpenFiles
	}
	if flags.MaxMemoryMB > 0 {
		c.MaxMemoryMB = flags.MaxMemoryMB
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}

	if c.MaxOpenFiles <= 0 {
		c.MaxOpenFiles = 100
	}
	if c.MaxMemoryMB <= 0 {
		c.MaxMemoryMB = 50
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
}

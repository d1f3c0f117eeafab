// Package config holds the immutable run profile for a seqharness
// invocation: the harness shape (client count, seed cells, duration)
// plus the protocol-behavior flags of spec §6.
//
// Mirrors the teacher's config/config.go load/save-from-YAML shape,
// repurposed from named daemon connection contexts to a single flat
// run profile.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full set of flags a harness run is parameterized by.
// Zero value is not meaningful on its own — use Default() or Load().
type Config struct {
	Clients   int           `yaml:"clients"`
	SeedCells int           `yaml:"seed-cells"`
	Duration  time.Duration `yaml:"duration"`

	UserSendLoadState bool `yaml:"user-send-load-state"`
	UserSendSync      bool `yaml:"user-send-sync"`
	WithStateChecking bool `yaml:"with-state-checking"`
	WithDelayedHistory bool `yaml:"with-delayed-history"`
	WithSizeCalculation bool `yaml:"with-size-calculation"`
}

// Default returns the profile a bare `seqharness` uses absent any
// flags or config file: every request kind enabled, checking on,
// delayed history and size bookkeeping off.
func Default() Config {
	return Config{
		Clients:           4,
		SeedCells:         8,
		Duration:          5 * time.Second,
		UserSendLoadState: true,
		UserSendSync:      true,
		WithStateChecking: true,
	}
}

// Load reads a YAML run profile from path, starting from Default() so
// an omitted field keeps its default rather than zeroing out.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

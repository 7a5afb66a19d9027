// Package config loads the YAML-driven configuration for an engine
// embedding, matching the teacher's own config file conventions
// (gopkg.in/yaml.v3) rather than flags or environment variables alone.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names which substrate.Store implementation to construct.
type Backend string

const (
	// BackendMemory selects substrate/memstore: in-memory, non-durable.
	BackendMemory Backend = "memory"
	// BackendBolt selects substrate/boltstore: durable, backed by a bolt
	// file on disk.
	BackendBolt Backend = "bolt"
)

// Config is the top-level shape of a recordvcs config file.
type Config struct {
	Substrate SubstrateConfig `yaml:"substrate"`
	Cache     CacheConfig     `yaml:"cache"`
	// Digest names the digest algorithm. Validate accepts only "sha256" (or
	// an empty value); the engine always digests with SHA-256 and produced
	// checksums are plain lowercase hex with no algorithm tag in them.
	Digest string `yaml:"digest"`
}

// SubstrateConfig selects and configures the storage substrate.
type SubstrateConfig struct {
	Backend Backend `yaml:"backend"`
	// BoltPath is the database file path, required when Backend is "bolt".
	BoltPath string `yaml:"bolt_path"`
	// BoltTimeout bounds how long Open waits to acquire the file lock.
	BoltTimeout time.Duration `yaml:"bolt_timeout"`
}

// CacheConfig configures the version_for memoization cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	// Size is the LRU cache's entry capacity. Ignored when Enabled is
	// false.
	Size int `yaml:"size"`
}

// Default returns the configuration an embedding gets with no config file:
// an in-memory substrate and a 4096-entry cache, matching engine.New's own
// defaults.
func Default() Config {
	return Config{
		Substrate: SubstrateConfig{Backend: BackendMemory},
		Cache:     CacheConfig{Enabled: true, Size: 4096},
		Digest:    "sha256",
	}
}

// Load reads and parses a YAML config file at path, applying Default()
// first so a partial file only overrides the fields it sets.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports whether cfg is internally consistent.
func (c Config) Validate() error {
	switch c.Substrate.Backend {
	case BackendMemory:
	case BackendBolt:
		if c.Substrate.BoltPath == "" {
			return fmt.Errorf("config: substrate.bolt_path is required when substrate.backend is %q", BackendBolt)
		}
	default:
		return fmt.Errorf("config: unknown substrate.backend %q", c.Substrate.Backend)
	}
	if c.Digest != "" && c.Digest != "sha256" {
		return fmt.Errorf("config: unsupported digest algorithm %q", c.Digest)
	}
	return nil
}

// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

// Package config loads the service configuration in three layers: struct
// defaults, an optional YAML file, then AFFINITY_-prefixed environment
// variables. The merged result is validated before use.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/bantulink/affinity/internal/api"
	"github.com/bantulink/affinity/internal/candidates"
	"github.com/bantulink/affinity/internal/digest"
	"github.com/bantulink/affinity/internal/digest/scheduler"
	"github.com/bantulink/affinity/internal/logging"
	"github.com/bantulink/affinity/internal/mailer"
	"github.com/bantulink/affinity/internal/store/sqlstore"
)

// DefaultConfigPaths lists where a config file is searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/affinity/config.yaml",
	"/etc/affinity/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "AFFINITY_CONFIG"

// envPrefix is stripped from environment variables before mapping them to
// koanf paths: AFFINITY_MAILER_HOST -> mailer.host.
const envPrefix = "AFFINITY_"

// ScoringConfig holds scorer tunables.
type ScoringConfig struct {
	// JitterEnabled adds the bounded random spread to job scores.
	JitterEnabled bool `koanf:"jitter_enabled"`

	// JitterSeed seeds the jitter RNG; zero picks the fixed default.
	JitterSeed int64 `koanf:"jitter_seed"`
}

// Config is the root configuration tree.
type Config struct {
	Logging    logging.Config    `koanf:"logging"`
	HTTP       api.Config        `koanf:"http"`
	Store      sqlstore.Config   `koanf:"store"`
	Mailer     mailer.Config     `koanf:"mailer"`
	Scheduler  scheduler.Config  `koanf:"scheduler"`
	Candidates candidates.Config `koanf:"candidates"`
	Digest     digest.Config     `koanf:"digest"`
	Scoring    ScoringConfig     `koanf:"scoring"`
}

// defaultConfig returns the full default tree.
func defaultConfig() *Config {
	return &Config{
		Logging:   logging.DefaultConfig(),
		HTTP:      api.DefaultConfig(),
		Store:     sqlstore.DefaultConfig(),
		Mailer:    mailer.DefaultConfig(),
		Scheduler: scheduler.DefaultConfig(),
		Candidates: candidates.Config{
			BaseURL:        "https://bantulink.com",
			UserFetchLimit: candidates.DefaultUserFetchLimit,
			JobFetchLimit:  candidates.DefaultJobFetchLimit,
		},
		Digest: digest.Config{
			TopN: digest.DefaultTopN,
		},
		Scoring: ScoringConfig{
			JitterEnabled: true,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks field formats and cross-field rules.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return err
	}

	var errs []error
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr must not be empty"))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path must not be empty"))
	}
	if c.Scheduler.Enabled {
		// A live scheduler needs a working transport.
		if c.Mailer.Host == "" {
			errs = append(errs, errors.New("mailer.host is required when the scheduler is enabled"))
		}
		if c.Mailer.From == "" {
			errs = append(errs, errors.New("mailer.from is required when the scheduler is enabled"))
		}
	}
	return errors.Join(errs...)
}

// envTransform maps AFFINITY_SECTION_KEY_WITH_WORDS to section.key_with_words.
// Only the first underscore becomes a path separator; the rest belong to the
// snake_case key inside the section.
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	section, key, found := strings.Cut(s, "_")
	if !found {
		return section
	}
	return section + "." + key
}

// findConfigFile returns the first existing config file path.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

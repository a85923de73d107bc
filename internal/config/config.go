// Package config loads the optional YAML file that presets schemadiff's options.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tordrt/schemadiff/internal/dialect"
	"github.com/tordrt/schemadiff/internal/diff"
	"github.com/tordrt/schemadiff/internal/migration"
)

// MigrationConfig holds the migration flags. Unset fields keep the dialect defaults.
type MigrationConfig struct {
	UseIfExists     *bool `json:"useIfExists,omitempty" yaml:"use_if_exists,omitempty"`
	UseCascade      *bool `json:"useCascade,omitempty" yaml:"use_cascade,omitempty"`
	IncludeComments *bool `json:"includeComments,omitempty" yaml:"include_comments,omitempty"`
}

// Config represents a schemadiff configuration file
type Config struct {
	Dialect       string          `json:"dialect,omitempty" yaml:"dialect,omitempty"`
	Schema        string          `json:"schema,omitempty" yaml:"schema,omitempty"`
	Tables        []string        `json:"tables,omitempty" yaml:"tables,omitempty"`
	ExcludeTables []string        `json:"excludeTables,omitempty" yaml:"exclude_tables,omitempty"`
	Migration     MigrationConfig `json:"migration" yaml:"migration"`
	Diff          diff.Options    `json:"diff" yaml:"diff"`
}

// LoadFromFile loads a configuration from a YAML file
func LoadFromFile(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", filepath, err)
	}
	return &cfg, nil
}

// Validate checks the dialect name and rename hints
func (c *Config) Validate() error {
	if c.Dialect != "" {
		if _, err := dialect.Parse(c.Dialect); err != nil {
			return err
		}
	}
	for i, r := range c.Diff.Renames {
		switch r.Kind {
		case diff.RenameTable:
		case diff.RenameColumn:
			if r.Table == "" {
				return fmt.Errorf("rename %d: column rename needs a table", i)
			}
		default:
			return fmt.Errorf("rename %d: unknown kind %q (must be table or column)", i, r.Kind)
		}
		if r.From == "" || r.To == "" {
			return fmt.Errorf("rename %d: from and to are required", i)
		}
	}
	return nil
}

// ResolveDialect returns the configured dialect, or fallback when none is set
func (c *Config) ResolveDialect(fallback dialect.Dialect) (dialect.Dialect, error) {
	if c.Dialect == "" {
		return fallback, nil
	}
	return dialect.Parse(c.Dialect)
}

// MigrationFor returns the migration config for d with the file's overrides applied
func (c *Config) MigrationFor(d dialect.Dialect) migration.Config {
	cfg := migration.ConfigFor(d)
	if c.Migration.UseIfExists != nil {
		cfg.UseIfExists = *c.Migration.UseIfExists
	}
	if c.Migration.UseCascade != nil {
		cfg.UseCascade = *c.Migration.UseCascade
	}
	if c.Migration.IncludeComments != nil {
		cfg.IncludeComments = *c.Migration.IncludeComments
	}
	return cfg
}

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openmigrate/openmigrate/pkg/engine"
	"github.com/openmigrate/openmigrate/pkg/telemetry"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns a configuration with every optional field at its
// default.
func Default() *File {
	return &File{
		State: StateConfig{
			Dir:         ".openmigrate",
			KeepBackups: 10,
		},
		Journal: JournalConfig{
			Enabled: true,
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Load reads, defaults, and validates a configuration file.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, engine.NewConfigError(fmt.Sprintf("failed to read config file %s", path), err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, engine.NewConfigError(fmt.Sprintf("failed to parse config file %s", path), err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills derived defaults after parsing.
func (f *File) applyDefaults() {
	if f.State.Dir == "" {
		f.State.Dir = ".openmigrate"
	}
	if f.Journal.Enabled && f.Journal.Path == "" {
		f.Journal.Path = filepath.Join(f.State.Dir, "journal.db")
	}
	if f.Telemetry == nil {
		f.Telemetry = telemetry.DefaultConfig()
	}
}

// Validate checks the configuration against its struct tags and the
// telemetry section's own rules.
func (f *File) Validate() error {
	if err := validate.Struct(f); err != nil {
		return engine.NewConfigError("invalid configuration", err)
	}
	if f.Telemetry != nil {
		if err := f.Telemetry.Validate(); err != nil {
			return engine.NewConfigError("invalid telemetry configuration", err)
		}
	}
	return nil
}

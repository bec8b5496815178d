// Package config defines the file-level configuration for openmigrate
// and its YAML loader. The subset a step executor needs is captured
// immutably into the migration state at initialization as engine.Config.
package config

import (
	"github.com/openmigrate/openmigrate/pkg/engine"
	"github.com/openmigrate/openmigrate/pkg/telemetry"
)

// File is the top-level configuration document.
type File struct {
	// Migration configures the migration itself.
	Migration MigrationConfig `json:"migration" yaml:"migration" validate:"required"`

	// State configures snapshot and backup persistence.
	State StateConfig `json:"state" yaml:"state"`

	// Checkpoints configures gating behavior.
	Checkpoints CheckpointConfig `json:"checkpoints" yaml:"checkpoints"`

	// Journal configures the audit journal.
	Journal JournalConfig `json:"journal" yaml:"journal"`

	// Telemetry configures logging, metrics, and tracing.
	Telemetry *telemetry.Config `json:"telemetry,omitempty" yaml:"telemetry,omitempty"`
}

// MigrationConfig describes what is being migrated.
type MigrationConfig struct {
	// TemplatePath is the directory holding the declarative templates.
	TemplatePath string `json:"template_path" yaml:"template_path" validate:"required"`

	// OutputPath is where generated imperative code is written.
	OutputPath string `json:"output_path" yaml:"output_path" validate:"required"`

	// MappingPath optionally maps logical IDs to physical identifiers.
	MappingPath string `json:"mapping_path,omitempty" yaml:"mapping_path,omitempty"`

	// WorkDir is the scratch directory for intermediate artifacts.
	WorkDir string `json:"work_dir" yaml:"work_dir" validate:"required"`

	// Region is the cloud region the resources live in.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// DryRun makes every run a dry run unless overridden on the command
	// line.
	DryRun bool `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`

	// Parameters are free-form key-value settings passed to executors.
	Parameters map[string]string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// StateConfig configures snapshot persistence.
type StateConfig struct {
	// Dir is the state directory. Defaults to ".openmigrate".
	Dir string `json:"dir" yaml:"dir"`

	// BackupDir overrides the backup location. Defaults to Dir/backups.
	BackupDir string `json:"backup_dir,omitempty" yaml:"backup_dir,omitempty"`

	// KeepBackups bounds how many backups `backups prune` retains.
	KeepBackups int `json:"keep_backups" yaml:"keep_backups" validate:"gte=0"`
}

// CheckpointConfig configures gating behavior.
type CheckpointConfig struct {
	// DisableBuiltins skips registration of the default gate set.
	DisableBuiltins bool `json:"disable_builtins" yaml:"disable_builtins"`

	// ApprovalDir, when set, replaces the pause handlers of the built-in
	// gates with interactive approval-file handlers watching this
	// directory.
	ApprovalDir string `json:"approval_dir,omitempty" yaml:"approval_dir,omitempty"`

	// PolicyDir, when set, loads additional rego checkpoint gates from
	// `<step>_<name>.rego` files in this directory.
	PolicyDir string `json:"policy_dir,omitempty" yaml:"policy_dir,omitempty"`
}

// JournalConfig configures the audit journal.
type JournalConfig struct {
	// Enabled controls whether the journal database is opened.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the SQLite database path. Defaults to
	// "<state dir>/journal.db".
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// EngineConfig returns the executor-facing subset captured into the
// migration state.
func (f *File) EngineConfig() engine.Config {
	return engine.Config{
		TemplatePath: f.Migration.TemplatePath,
		OutputPath:   f.Migration.OutputPath,
		MappingPath:  f.Migration.MappingPath,
		WorkDir:      f.Migration.WorkDir,
		Region:       f.Migration.Region,
		Parameters:   f.Migration.Parameters,
	}
}

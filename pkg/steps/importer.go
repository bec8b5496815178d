package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/openmigrate/openmigrate/pkg/engine"
)

// importManifestFile carries the resources queued for import from the
// preparation step to the import step.
const importManifestFile = "import-manifest.yaml"

// importManifest is the document written by ImportPreparation and read
// by Import.
type importManifest struct {
	Resources []manifestEntry `yaml:"resources"`
}

type manifestEntry struct {
	LogicalID  string `yaml:"logical_id"`
	Type       string `yaml:"type"`
	PhysicalID string `yaml:"physical_id"`
}

type prepareResult struct {
	Manifest string `json:"manifest"`
	Queued   int    `json:"queued"`
	DryRun   bool   `json:"dry_run,omitempty"`
}

// ImportPreparation returns the executor for the import_preparation
// step. It assembles the import manifest from every resource with a
// resolved physical identifier.
func ImportPreparation() engine.StepExecutor {
	return engine.ExecutorFunc(func(_ context.Context, state *engine.MigrationState, opts engine.ExecOptions) (json.RawMessage, error) {
		manifest := importManifest{}
		for _, r := range state.Resources {
			if r.PhysicalID == "" {
				continue
			}
			manifest.Resources = append(manifest.Resources, manifestEntry{
				LogicalID:  r.LogicalID,
				Type:       r.Type,
				PhysicalID: r.PhysicalID,
			})
		}

		path := filepath.Join(state.Config.WorkDir, importManifestFile)
		if opts.DryRun {
			return json.Marshal(prepareResult{Manifest: path, Queued: len(manifest.Resources), DryRun: true})
		}

		if err := os.MkdirAll(state.Config.WorkDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create work directory: %w", err)
		}
		raw, err := yaml.Marshal(manifest)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write import manifest: %w", err)
		}

		return json.Marshal(prepareResult{Manifest: path, Queued: len(manifest.Resources)})
	})
}

type importResult struct {
	Imported int  `json:"imported"`
	DryRun   bool `json:"dry_run,omitempty"`
}

// Import returns the executor for the import step. The interactive
// resource-import execution belongs to the import subsystem; the
// built-in consumes the manifest and reports what it would have
// imported.
func Import() engine.StepExecutor {
	return engine.ExecutorFunc(func(_ context.Context, state *engine.MigrationState, opts engine.ExecOptions) (json.RawMessage, error) {
		path := filepath.Join(state.Config.WorkDir, importManifestFile)

		if opts.DryRun {
			queued := 0
			for _, r := range state.Resources {
				if r.PhysicalID != "" {
					queued++
				}
			}
			return json.Marshal(importResult{Imported: queued, DryRun: true})
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read import manifest: %w", err)
		}
		var manifest importManifest
		if err := yaml.Unmarshal(raw, &manifest); err != nil {
			return nil, fmt.Errorf("failed to parse import manifest: %w", err)
		}

		return json.Marshal(importResult{Imported: len(manifest.Resources)})
	})
}

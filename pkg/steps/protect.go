package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openmigrate/openmigrate/pkg/engine"
)

// protectManifestFile records which resources were marked for deletion
// protection, for the cleanup step to remove.
const protectManifestFile = "protection-manifest.yaml"

type protectResult struct {
	Protected []string `json:"protected"`
	DryRun    bool     `json:"dry_run,omitempty"`
}

// Protect returns the executor for the protect step. Resource types
// listed in the "protect_types" parameter (comma-separated) are marked
// critical and recorded in a protection manifest under the work
// directory. In dry-run mode nothing is written.
func Protect() engine.StepExecutor {
	return engine.ExecutorFunc(func(_ context.Context, state *engine.MigrationState, opts engine.ExecOptions) (json.RawMessage, error) {
		protectTypes := map[string]bool{}
		for _, t := range strings.Split(state.Config.Parameters["protect_types"], ",") {
			if t = strings.TrimSpace(t); t != "" {
				protectTypes[t] = true
			}
		}

		var protected []string
		for i := range state.Resources {
			if protectTypes[state.Resources[i].Type] {
				state.Resources[i].Critical = true
				protected = append(protected, state.Resources[i].LogicalID)
			}
		}

		if opts.DryRun {
			return json.Marshal(protectResult{Protected: protected, DryRun: true})
		}

		if err := os.MkdirAll(state.Config.WorkDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create work directory: %w", err)
		}
		raw, err := yaml.Marshal(map[string][]string{"protected": protected})
		if err != nil {
			return nil, err
		}
		manifest := filepath.Join(state.Config.WorkDir, protectManifestFile)
		if err := os.WriteFile(manifest, raw, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write protection manifest: %w", err)
		}

		return json.Marshal(protectResult{Protected: protected})
	})
}

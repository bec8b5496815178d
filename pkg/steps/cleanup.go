package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openmigrate/openmigrate/pkg/engine"
)

type cleanupResult struct {
	Removed []string `json:"removed,omitempty"`
	DryRun  bool     `json:"dry_run,omitempty"`
}

// Cleanup returns the executor for the cleanup step. It removes the work
// artifacts earlier steps wrote. Missing files are fine: cleanup must be
// safe to re-run after a resume.
func Cleanup() engine.StepExecutor {
	return engine.ExecutorFunc(func(_ context.Context, state *engine.MigrationState, opts engine.ExecOptions) (json.RawMessage, error) {
		artifacts := []string{
			filepath.Join(state.Config.WorkDir, importManifestFile),
			filepath.Join(state.Config.WorkDir, protectManifestFile),
		}

		if opts.DryRun {
			return json.Marshal(cleanupResult{Removed: artifacts, DryRun: true})
		}

		var removed []string
		for _, path := range artifacts {
			err := os.Remove(path)
			if os.IsNotExist(err) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to remove %s: %w", path, err)
			}
			removed = append(removed, path)
		}

		return json.Marshal(cleanupResult{Removed: removed})
	})
}

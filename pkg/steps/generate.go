package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openmigrate/openmigrate/pkg/engine"
)

type generateResult struct {
	Files  []string `json:"files"`
	DryRun bool     `json:"dry_run,omitempty"`
}

// Generate returns the executor for the generate step. It emits one stub
// construct source per tracked resource into the output path. The actual
// code generation algorithm belongs to the generation subsystem; this
// built-in produces placeholder constructs so the pipeline is runnable
// end-to-end.
func Generate() engine.StepExecutor {
	return engine.ExecutorFunc(func(_ context.Context, state *engine.MigrationState, opts engine.ExecOptions) (json.RawMessage, error) {
		var files []string
		for _, r := range state.Resources {
			files = append(files, filepath.Join(state.Config.OutputPath, constructFileName(r.LogicalID)))
		}

		if opts.DryRun {
			return json.Marshal(generateResult{Files: files, DryRun: true})
		}

		if err := os.MkdirAll(state.Config.OutputPath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output path: %w", err)
		}
		for i, r := range state.Resources {
			src := fmt.Sprintf("// Construct for %s (%s)\n// Physical ID: %s\n", r.LogicalID, r.Type, r.PhysicalID)
			if err := os.WriteFile(files[i], []byte(src), 0o644); err != nil {
				return nil, fmt.Errorf("failed to write construct for %s: %w", r.LogicalID, err)
			}
		}

		return json.Marshal(generateResult{Files: files})
	})
}

// constructFileName flattens a logical ID into a file name.
func constructFileName(logicalID string) string {
	name := strings.ToLower(strings.ReplaceAll(logicalID, "/", "-"))
	return name + ".construct.ts"
}

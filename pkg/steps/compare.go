package steps

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/openmigrate/openmigrate/pkg/engine"
)

type compareResult struct {
	Identical  int `json:"identical"`
	Acceptable int `json:"acceptable"`
	Critical   int `json:"critical"`
}

// Compare returns the executor for the compare step. The property-level
// comparison algorithm lives outside this core; the built-in classifies
// resources by simple rules: resources of a type listed in the
// "critical_types" parameter are critical, resolved resources are
// identical, the rest acceptable. The critical-difference checkpoint
// reacts to the classification, not to how it was computed.
func Compare() engine.StepExecutor {
	return engine.ExecutorFunc(func(_ context.Context, state *engine.MigrationState, _ engine.ExecOptions) (json.RawMessage, error) {
		criticalTypes := map[string]bool{}
		for _, t := range strings.Split(state.Config.Parameters["critical_types"], ",") {
			if t = strings.TrimSpace(t); t != "" {
				criticalTypes[t] = true
			}
		}

		result := compareResult{}
		for i := range state.Resources {
			switch {
			case criticalTypes[state.Resources[i].Type]:
				state.Resources[i].Classification = "critical"
				result.Critical++
			case state.Resources[i].PhysicalID != "":
				state.Resources[i].Classification = "identical"
				result.Identical++
			default:
				state.Resources[i].Classification = "acceptable"
				result.Acceptable++
			}
		}

		return json.Marshal(result)
	})
}

package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/openmigrate/openmigrate/pkg/engine"
)

type discoveryResult struct {
	Resolved   int `json:"resolved"`
	Unresolved int `json:"unresolved"`
}

// Discovery returns the executor for the discovery step. It resolves
// physical identifiers from the configured mapping file, a YAML document
// of logical ID to physical ID. Resources absent from the mapping stay
// unresolved; that is an ordinary domain outcome, not an error, and the
// physical-identifier checkpoint decides what happens next.
func Discovery() engine.StepExecutor {
	return engine.ExecutorFunc(func(_ context.Context, state *engine.MigrationState, _ engine.ExecOptions) (json.RawMessage, error) {
		mapping := map[string]string{}
		if state.Config.MappingPath != "" {
			raw, err := os.ReadFile(state.Config.MappingPath)
			if err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read mapping file %s: %w", state.Config.MappingPath, err)
			}
			if err == nil {
				if err := yaml.Unmarshal(raw, &mapping); err != nil {
					return nil, fmt.Errorf("failed to parse mapping file %s: %w", state.Config.MappingPath, err)
				}
			}
		}

		result := discoveryResult{}
		for i := range state.Resources {
			if physical, ok := mapping[state.Resources[i].LogicalID]; ok {
				state.Resources[i].PhysicalID = physical
				result.Resolved++
			} else if state.Resources[i].PhysicalID == "" {
				result.Unresolved++
			} else {
				result.Resolved++
			}
		}

		return json.Marshal(result)
	})
}

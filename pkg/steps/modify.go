package steps

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/openmigrate/openmigrate/pkg/engine"
)

type modifyResult struct {
	Drifted []string `json:"drifted,omitempty"`
}

// TemplateModification returns the executor for the
// template_modification step. Real drift detection compares declared
// against provisioned configuration through cloud APIs; the built-in
// marks the resources listed in the "drifted_ids" parameter. Finding no
// drift is an ordinary outcome, not an error.
func TemplateModification() engine.StepExecutor {
	return engine.ExecutorFunc(func(_ context.Context, state *engine.MigrationState, _ engine.ExecOptions) (json.RawMessage, error) {
		driftedIDs := map[string]bool{}
		for _, id := range strings.Split(state.Config.Parameters["drifted_ids"], ",") {
			if id = strings.TrimSpace(id); id != "" {
				driftedIDs[id] = true
			}
		}

		var drifted []string
		for i := range state.Resources {
			if driftedIDs[state.Resources[i].LogicalID] {
				state.Resources[i].Drifted = true
				drifted = append(drifted, state.Resources[i].LogicalID)
			}
		}

		return json.Marshal(modifyResult{Drifted: drifted})
	})
}

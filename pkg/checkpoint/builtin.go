package checkpoint

import (
	"context"
	"fmt"
	"strings"

	"github.com/openmigrate/openmigrate/pkg/engine"
)

// Builtins returns the default gate set. It is a factory, not a shared
// registry: each orchestrator merges a fresh copy into its own manager,
// so concurrent orchestrators (and tests) never share mutable state.
// Every gate here is replaceable policy layered on the manager mechanism.
func Builtins() []engine.Checkpoint {
	return []engine.Checkpoint{
		PhysicalIDGate(),
		CriticalDifferenceGate(),
		DriftGate(),
		PreImportGate(),
	}
}

// PhysicalIDGate fires after discovery when any tracked resource is left
// without a resolved real-world identifier. Importing a resource without
// its physical ID cannot succeed, so the run pauses for manual mapping.
func PhysicalIDGate() engine.Checkpoint {
	return engine.Checkpoint{
		ID:          "builtin-physical-id-resolution",
		Step:        engine.StepDiscovery,
		Name:        "physical-identifier-resolution",
		Description: "Pauses when discovery leaves tracked resources without a physical identifier",
		Condition: func(_ context.Context, state *engine.MigrationState) (bool, error) {
			return len(state.UnresolvedResources()) > 0, nil
		},
		Handler: func(_ context.Context, state *engine.MigrationState) (engine.CheckpointResult, error) {
			unresolved := state.UnresolvedResources()
			ids := make([]string, 0, len(unresolved))
			for _, r := range unresolved {
				ids = append(ids, r.LogicalID)
			}
			return engine.CheckpointResult{
				Action: engine.ActionPause,
				Message: fmt.Sprintf("%d resource(s) lack a physical identifier: %s",
					len(unresolved), strings.Join(ids, ", ")),
			}, nil
		},
	}
}

// CriticalDifferenceGate fires after compare when any resource carries a
// critical classification.
func CriticalDifferenceGate() engine.Checkpoint {
	return engine.Checkpoint{
		ID:          "builtin-critical-difference",
		Step:        engine.StepCompare,
		Name:        "critical-difference",
		Description: "Pauses when comparison classifies any difference as critical",
		Condition: func(_ context.Context, state *engine.MigrationState) (bool, error) {
			return len(state.CriticalResources()) > 0, nil
		},
		Handler: func(_ context.Context, state *engine.MigrationState) (engine.CheckpointResult, error) {
			critical := state.CriticalResources()
			ids := make([]string, 0, len(critical))
			for _, r := range critical {
				ids = append(ids, r.LogicalID)
			}
			return engine.CheckpointResult{
				Action: engine.ActionPause,
				Message: fmt.Sprintf("critical differences on %d resource(s): %s",
					len(critical), strings.Join(ids, ", ")),
			}, nil
		},
	}
}

// DriftGate fires after template modification when drift was detected
// between declared and provisioned configuration.
func DriftGate() engine.Checkpoint {
	return engine.Checkpoint{
		ID:          "builtin-drift",
		Step:        engine.StepTemplateModification,
		Name:        "drift-detected",
		Description: "Pauses when template modification detects drift",
		Condition: func(_ context.Context, state *engine.MigrationState) (bool, error) {
			return len(state.DriftedResources()) > 0, nil
		},
		Handler: func(_ context.Context, state *engine.MigrationState) (engine.CheckpointResult, error) {
			drifted := state.DriftedResources()
			ids := make([]string, 0, len(drifted))
			for _, r := range drifted {
				ids = append(ids, r.LogicalID)
			}
			return engine.CheckpointResult{
				Action: engine.ActionPause,
				Message: fmt.Sprintf("drift detected on %d resource(s): %s",
					len(drifted), strings.Join(ids, ", ")),
			}, nil
		},
	}
}

// PreImportGate always fires before import and continues by default. It
// exists as the hook point where operators substitute a stricter
// verification handler (see ApprovalHandler).
func PreImportGate() engine.Checkpoint {
	return engine.Checkpoint{
		ID:          "builtin-pre-import-verification",
		Step:        engine.StepImportPreparation,
		Name:        "pre-import-verification",
		Description: "Runs before import; continues unless replaced with a stricter handler",
		Condition: func(_ context.Context, _ *engine.MigrationState) (bool, error) {
			return true, nil
		},
		Handler: func(_ context.Context, _ *engine.MigrationState) (engine.CheckpointResult, error) {
			return engine.CheckpointResult{
				Action:  engine.ActionContinue,
				Message: "pre-import verification passed",
			}, nil
		},
	}
}

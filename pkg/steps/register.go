package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openmigrate/openmigrate/pkg/engine"
)

// RegisterDefaults binds the built-in executor for every executable step
// onto the orchestrator.
func RegisterDefaults(o *engine.Orchestrator) error {
	executors := map[engine.MigrationStep]engine.StepExecutor{
		engine.StepScan:                 Scan(),
		engine.StepDiscovery:            Discovery(),
		engine.StepProtect:              Protect(),
		engine.StepGenerate:             Generate(),
		engine.StepCompare:              Compare(),
		engine.StepTemplateModification: TemplateModification(),
		engine.StepImportPreparation:    ImportPreparation(),
		engine.StepImport:               Import(),
		engine.StepCleanup:              Cleanup(),
	}
	for step, exec := range executors {
		if err := o.RegisterExecutor(step, exec); err != nil {
			return err
		}
	}
	return nil
}

// RegisterProbes binds the default verification probes onto the
// orchestrator.
func RegisterProbes(o *engine.Orchestrator) {
	o.RegisterProbe(engine.ProbeFunc{
		ProbeName: "steps-in-order",
		Fn: func(_ context.Context, state *engine.MigrationState) engine.VerificationCheck {
			last := -1
			for _, step := range state.CompletedSteps {
				idx := engine.StepIndex(step)
				if idx <= last {
					return engine.VerificationCheck{
						Passed: false,
						Detail: fmt.Sprintf("completed steps out of order at %s", step),
					}
				}
				last = idx
			}
			return engine.VerificationCheck{Passed: true, Detail: fmt.Sprintf("%d step(s) completed in order", len(state.CompletedSteps))}
		},
	})

	o.RegisterProbe(engine.ProbeFunc{
		ProbeName: "physical-ids-resolved",
		Fn: func(_ context.Context, state *engine.MigrationState) engine.VerificationCheck {
			if !state.HasCompleted(engine.StepDiscovery) {
				return engine.VerificationCheck{Passed: true, Detail: "discovery not yet run"}
			}
			unresolved := state.UnresolvedResources()
			if len(unresolved) > 0 {
				return engine.VerificationCheck{
					Passed: false,
					Detail: fmt.Sprintf("%d resource(s) without a physical identifier", len(unresolved)),
				}
			}
			return engine.VerificationCheck{Passed: true, Detail: "all tracked resources resolved"}
		},
	})

	o.RegisterProbe(engine.ProbeFunc{
		ProbeName: "generated-code-present",
		Fn: func(_ context.Context, state *engine.MigrationState) engine.VerificationCheck {
			if !state.HasCompleted(engine.StepGenerate) {
				return engine.VerificationCheck{Passed: true, Detail: "generate not yet run"}
			}
			for _, r := range state.Resources {
				path := filepath.Join(state.Config.OutputPath, constructFileName(r.LogicalID))
				if _, err := os.Stat(path); err != nil {
					return engine.VerificationCheck{
						Passed: false,
						Detail: fmt.Sprintf("missing generated construct for %s", r.LogicalID),
					}
				}
			}
			return engine.VerificationCheck{Passed: true, Detail: "generated constructs present"}
		},
	})
}

package engine

import "fmt"

// MigrationStep is one stage in the fixed, totally ordered migration
// workflow. No step may be skipped going forward; the order below is the
// single source of truth consulted by every other component.
type MigrationStep string

const (
	// StepScan enumerates template definitions under management.
	StepScan MigrationStep = "scan"

	// StepDiscovery resolves live resources and their physical identifiers.
	StepDiscovery MigrationStep = "discovery"

	// StepProtect applies deletion protection to critical resources.
	StepProtect MigrationStep = "protect"

	// StepGenerate produces imperative code from the scanned templates.
	StepGenerate MigrationStep = "generate"

	// StepCompare compares generated definitions against the originals.
	StepCompare MigrationStep = "compare"

	// StepTemplateModification adjusts templates and detects drift.
	StepTemplateModification MigrationStep = "template_modification"

	// StepImportPreparation assembles the import manifest.
	StepImportPreparation MigrationStep = "import_preparation"

	// StepImport imports live resources under the new management system.
	StepImport MigrationStep = "import"

	// StepCleanup removes migration work artifacts.
	StepCleanup MigrationStep = "cleanup"

	// StepComplete is the terminal marker; it has no executor.
	StepComplete MigrationStep = "complete"
)

// stepOrder lists every step in execution order, terminal marker last.
var stepOrder = []MigrationStep{
	StepScan,
	StepDiscovery,
	StepProtect,
	StepGenerate,
	StepCompare,
	StepTemplateModification,
	StepImportPreparation,
	StepImport,
	StepCleanup,
	StepComplete,
}

// Steps returns the full step sequence in execution order.
func Steps() []MigrationStep {
	out := make([]MigrationStep, len(stepOrder))
	copy(out, stepOrder)
	return out
}

// ExecutableSteps returns the steps that have executors, excluding the
// terminal marker.
func ExecutableSteps() []MigrationStep {
	return Steps()[:len(stepOrder)-1]
}

// StepIndex returns the position of step in the sequence, or -1 if the
// step is unknown.
func StepIndex(step MigrationStep) int {
	for i, s := range stepOrder {
		if s == step {
			return i
		}
	}
	return -1
}

// IsValidStep reports whether step is a member of the sequence.
func IsValidStep(step MigrationStep) bool {
	return StepIndex(step) >= 0
}

// ParseStep converts a textual step name into a MigrationStep.
func ParseStep(name string) (MigrationStep, error) {
	step := MigrationStep(name)
	if !IsValidStep(step) {
		return "", NewTransitionError(fmt.Sprintf("unknown migration step: %q", name), nil)
	}
	return step, nil
}

// NextStep returns the step following the given one. The second return
// value is false at the terminal step.
func NextStep(step MigrationStep) (MigrationStep, bool) {
	idx := StepIndex(step)
	if idx < 0 || idx >= len(stepOrder)-1 {
		return "", false
	}
	return stepOrder[idx+1], true
}

// PreviousStep returns the step preceding the given one. The second
// return value is false at the first step.
func PreviousStep(step MigrationStep) (MigrationStep, bool) {
	idx := StepIndex(step)
	if idx <= 0 {
		return "", false
	}
	return stepOrder[idx-1], true
}

// Progress returns the completion percentage for a migration positioned
// at step: 0 at the first step, 100 at the terminal step, monotonically
// increasing with position.
func Progress(step MigrationStep) float64 {
	idx := StepIndex(step)
	if idx < 0 {
		return 0
	}
	return float64(idx) / float64(len(stepOrder)-1) * 100
}

// TransitionCheck is the result of validating a step transition.
type TransitionCheck struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// ValidateTransition checks whether moving from one step to another is
// legal. Forward movement is valid only to the immediate next step;
// moving to any step at or before from is structurally valid, which is
// what rollback relies on.
func ValidateTransition(from, to MigrationStep) TransitionCheck {
	fromIdx := StepIndex(from)
	toIdx := StepIndex(to)

	if fromIdx < 0 {
		return TransitionCheck{Valid: false, Reason: fmt.Sprintf("unknown step %q", from)}
	}
	if toIdx < 0 {
		return TransitionCheck{Valid: false, Reason: fmt.Sprintf("unknown step %q", to)}
	}
	if toIdx <= fromIdx {
		return TransitionCheck{Valid: true}
	}
	if toIdx == fromIdx+1 {
		return TransitionCheck{Valid: true}
	}
	return TransitionCheck{
		Valid:  false,
		Reason: fmt.Sprintf("cannot skip from %s to %s: steps must run in order", from, to),
	}
}

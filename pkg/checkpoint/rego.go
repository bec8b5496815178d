package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"

	"github.com/openmigrate/openmigrate/pkg/engine"
)

var packagePattern = regexp.MustCompile(`(?m)^\s*package\s+([a-zA-Z0-9_.]+)`)

// RegoCondition builds a checkpoint condition from a rego module. The
// module's `trigger` rule decides eligibility: the condition is true when
// `data.<package>.trigger` evaluates to true against the migration state
// as input. This lets operators express gating policy as policy files
// instead of Go code.
func RegoCondition(name, module string) (engine.CheckpointCondition, error) {
	pkg := packagePattern.FindStringSubmatch(module)
	if pkg == nil {
		return nil, engine.NewCheckpointError(fmt.Sprintf("rego module %s has no package declaration", name), nil)
	}
	query := fmt.Sprintf("data.%s.trigger", pkg[1])

	return func(ctx context.Context, state *engine.MigrationState) (bool, error) {
		r := rego.New(
			rego.SetRegoVersion(ast.RegoV1),
			rego.Module(name, module),
			rego.Query(query),
			rego.Input(state),
		)

		results, err := r.Eval(ctx)
		if err != nil {
			return false, fmt.Errorf("rego evaluation failed for %s: %w", name, err)
		}

		for _, result := range results {
			for _, expr := range result.Expressions {
				if v, ok := expr.Value.(bool); ok && v {
					return true, nil
				}
			}
		}
		return false, nil
	}, nil
}

// LoadRegoCheckpoints reads every .rego file under dir and builds a
// checkpoint per file. The gated step is taken from the file name,
// `<step>_<name>.rego` (e.g. `compare_tag_budget.rego`); the handler
// pauses with the policy name as the message.
func LoadRegoCheckpoints(dir string) ([]engine.Checkpoint, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read policy directory: %w", err)
	}

	var checkpoints []engine.Checkpoint
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".rego") {
			continue
		}

		base := strings.TrimSuffix(name, ".rego")
		step, policyName, ok := splitPolicyName(base)
		if !ok {
			return nil, engine.NewConfigError(
				fmt.Sprintf("policy file %s must be named <step>_<name>.rego", name), nil)
		}

		module, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read policy file %s: %w", name, err)
		}

		condition, err := RegoCondition(base, string(module))
		if err != nil {
			return nil, err
		}

		checkpoints = append(checkpoints, engine.Checkpoint{
			ID:          "rego-" + base,
			Step:        step,
			Name:        policyName,
			Description: fmt.Sprintf("rego policy gate loaded from %s", name),
			Condition:   condition,
			Handler: func(_ context.Context, _ *engine.MigrationState) (engine.CheckpointResult, error) {
				return engine.CheckpointResult{
					Action:  engine.ActionPause,
					Message: fmt.Sprintf("policy %s requires review", policyName),
				}, nil
			},
		})
	}

	return checkpoints, nil
}

// splitPolicyName resolves the step prefix of a policy file base name.
// Step names themselves contain underscores, so the longest matching
// prefix wins: import_preparation_check binds to import_preparation,
// not to import.
func splitPolicyName(base string) (engine.MigrationStep, string, bool) {
	var (
		match engine.MigrationStep
		rest  string
		found bool
	)
	for _, step := range engine.Steps() {
		prefix := string(step) + "_"
		if strings.HasPrefix(base, prefix) && len(base) > len(prefix) && len(step) > len(match) {
			match = step
			rest = base[len(prefix):]
			found = true
		}
	}
	return match, rest, found
}

package engine

import (
	"context"
	"encoding/json"
	"time"
)

// Status represents the lifecycle status of a migration attempt.
type Status string

const (
	// StatusInitialized means the migration has been created but no step
	// has executed yet.
	StatusInitialized Status = "initialized"

	// StatusInProgress means steps are executing.
	StatusInProgress Status = "in_progress"

	// StatusPaused means a checkpoint paused the run for review.
	StatusPaused Status = "paused"

	// StatusCompleted means every step finished successfully.
	StatusCompleted Status = "completed"

	// StatusFailed means a step failed and the run halted.
	StatusFailed Status = "failed"

	// StatusRolledBack means the migration was restored to an earlier step.
	StatusRolledBack Status = "rolled_back"
)

// IsTerminal reports whether the status ends a run loop. Paused and
// rolled_back migrations may re-enter in_progress via resume.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusRolledBack
}

// Config is the migration configuration captured immutably at
// initialization time. It carries only what step executors need; the
// richer file-level configuration lives in pkg/config.
type Config struct {
	// TemplatePath is the directory holding the declarative templates to
	// migrate.
	TemplatePath string `json:"template_path"`

	// OutputPath is where generated imperative code is written.
	OutputPath string `json:"output_path"`

	// MappingPath is an optional file mapping logical IDs to physical
	// identifiers, consumed by the discovery step.
	MappingPath string `json:"mapping_path,omitempty"`

	// WorkDir is the scratch directory for intermediate artifacts.
	WorkDir string `json:"work_dir"`

	// Region is the cloud region the migrated resources live in.
	Region string `json:"region,omitempty"`

	// Parameters are free-form key-value settings passed to executors.
	Parameters map[string]string `json:"parameters,omitempty"`
}

// ResourceRecord tracks one resource across the migration.
type ResourceRecord struct {
	// LogicalID is the resource's name within the template.
	LogicalID string `json:"logical_id"`

	// Type is the resource type (e.g., "storage.bucket").
	Type string `json:"type"`

	// PhysicalID is the real-world identifier of the provisioned
	// resource, resolved during discovery. Empty until resolved.
	PhysicalID string `json:"physical_id,omitempty"`

	// Region is the region the resource lives in.
	Region string `json:"region,omitempty"`

	// Critical marks resources whose differences block the migration.
	Critical bool `json:"critical,omitempty"`

	// Drifted marks resources whose live configuration diverged from the
	// template.
	Drifted bool `json:"drifted,omitempty"`

	// Classification is the comparison outcome (e.g., "identical",
	// "acceptable", "critical").
	Classification string `json:"classification,omitempty"`
}

// FailedStep records one step failure.
type FailedStep struct {
	// Step is the step that failed.
	Step MigrationStep `json:"step"`

	// Error is the failure message.
	Error string `json:"error"`

	// Timestamp is when the failure occurred.
	Timestamp time.Time `json:"timestamp"`
}

// MigrationState is the durable snapshot of one migration attempt. It is
// created by Orchestrator.Initialize and mutated only by the orchestrator
// after each step, checkpoint, rollback, or resume. Reaching completed or
// rolled_back archives it; the persisted record remains for audit.
type MigrationState struct {
	// ID is the opaque identifier, unique per attempt and stable for the
	// attempt's lifetime.
	ID string `json:"id"`

	// Status is the lifecycle status.
	Status Status `json:"status"`

	// CurrentStep is the next step to execute, or complete.
	CurrentStep MigrationStep `json:"current_step"`

	// CompletedSteps is the append-only ordered sequence of finished
	// steps. While in_progress it is strictly increasing in step order
	// with no gaps.
	CompletedSteps []MigrationStep `json:"completed_steps"`

	// FailedSteps records every step failure for the attempt.
	FailedSteps []FailedStep `json:"failed_steps"`

	// StartedAt is when the attempt was initialized.
	StartedAt time.Time `json:"started_at"`

	// UpdatedAt is when the snapshot was last mutated.
	UpdatedAt time.Time `json:"updated_at"`

	// EndTime is set when the attempt reaches completed.
	EndTime *time.Time `json:"end_time,omitempty"`

	// Config is the configuration captured at initialization.
	Config Config `json:"config"`

	// StepResults holds the data payload returned by each completed
	// step's executor.
	StepResults map[MigrationStep]json.RawMessage `json:"step_results,omitempty"`

	// Resources are the tracked resource records.
	Resources []ResourceRecord `json:"resources,omitempty"`
}

// HasCompleted reports whether step is present in CompletedSteps.
func (s *MigrationState) HasCompleted(step MigrationStep) bool {
	for _, done := range s.CompletedSteps {
		if done == step {
			return true
		}
	}
	return false
}

// RecordResult stores a step's result payload.
func (s *MigrationState) RecordResult(step MigrationStep, data json.RawMessage) {
	if s.StepResults == nil {
		s.StepResults = make(map[MigrationStep]json.RawMessage)
	}
	s.StepResults[step] = data
}

// UnresolvedResources returns tracked resources without a physical
// identifier.
func (s *MigrationState) UnresolvedResources() []ResourceRecord {
	var out []ResourceRecord
	for _, r := range s.Resources {
		if r.PhysicalID == "" {
			out = append(out, r)
		}
	}
	return out
}

// CriticalResources returns tracked resources classified as critical.
func (s *MigrationState) CriticalResources() []ResourceRecord {
	var out []ResourceRecord
	for _, r := range s.Resources {
		if r.Critical || r.Classification == "critical" {
			out = append(out, r)
		}
	}
	return out
}

// DriftedResources returns tracked resources marked as drifted.
func (s *MigrationState) DriftedResources() []ResourceRecord {
	var out []ResourceRecord
	for _, r := range s.Resources {
		if r.Drifted {
			out = append(out, r)
		}
	}
	return out
}

// Clone returns a deep copy of the state via JSON round-trip. Used where
// a caller must not observe later mutations.
func (s *MigrationState) Clone() (*MigrationState, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out MigrationState
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StepOutcome is the structured result of executing one step.
type StepOutcome struct {
	// Success reports whether the executor completed without error.
	Success bool `json:"success"`

	// Step is the step that was executed.
	Step MigrationStep `json:"step"`

	// Data is the executor's result payload, if any.
	Data json.RawMessage `json:"data,omitempty"`

	// Err is the failure, if any. Never set alongside Success.
	Err error `json:"-"`

	// Halt is set when a checkpoint outcome (pause or abort) must stop
	// the caller's run loop.
	Halt bool `json:"halt,omitempty"`

	// HaltReason is the checkpoint message that stopped the run.
	HaltReason string `json:"halt_reason,omitempty"`
}

// RunResult is the outcome of driving a migration across the sequence.
type RunResult struct {
	// Success reports whether the terminal step was reached.
	Success bool `json:"success"`

	// FailedStep is the step that halted the run, if any.
	FailedStep MigrationStep `json:"failed_step,omitempty"`

	// Reason describes why a run stopped short of completion.
	Reason string `json:"reason,omitempty"`
}

// VerificationCheck is the result of one verification probe.
type VerificationCheck struct {
	// Name identifies the probe.
	Name string `json:"name"`

	// Passed reports whether the check passed.
	Passed bool `json:"passed"`

	// Detail is the probe's explanation.
	Detail string `json:"detail,omitempty"`
}

// VerificationReport aggregates verification probe results.
type VerificationReport struct {
	// Success is true when every check passed.
	Success bool `json:"success"`

	// Checks lists individual probe results.
	Checks []VerificationCheck `json:"checks"`

	// Errors lists the names of failed checks with their details.
	Errors []string `json:"errors,omitempty"`
}

// BackupInfo describes one state backup.
type BackupInfo struct {
	// ID is the backup identifier, a sortable timestamp-suffixed name.
	ID string `json:"id"`

	// CreatedAt is when the backup was created.
	CreatedAt time.Time `json:"created_at"`
}

// CheckpointAction is the action a checkpoint handler requests.
type CheckpointAction string

const (
	// ActionContinue proceeds with the run.
	ActionContinue CheckpointAction = "continue"

	// ActionPause suspends the run for human or policy review.
	ActionPause CheckpointAction = "pause"

	// ActionAbort stops the run.
	ActionAbort CheckpointAction = "abort"

	// ActionRetry re-invokes the gated step once.
	ActionRetry CheckpointAction = "retry"
)

// CheckpointResult is what a checkpoint handler returns.
type CheckpointResult struct {
	// Action is the requested action.
	Action CheckpointAction `json:"action"`

	// Message explains the decision, surfaced as the stopping reason for
	// pause and abort.
	Message string `json:"message,omitempty"`

	// Modifications is an optional shallow state patch applied before the
	// result is persisted. Recognized keys: "status", "resources",
	// "step_results".
	Modifications map[string]json.RawMessage `json:"modifications,omitempty"`
}

// CheckpointCondition decides whether a checkpoint fires for a state.
// Synchronous implementations simply return immediately.
type CheckpointCondition func(ctx context.Context, state *MigrationState) (bool, error)

// CheckpointHandler performs the checkpoint's review and returns the
// resulting action.
type CheckpointHandler func(ctx context.Context, state *MigrationState) (CheckpointResult, error)

// Checkpoint is a named conditional gate on a step. Multiple checkpoints
// may target the same step; registration order decides precedence.
type Checkpoint struct {
	// ID is the unique checkpoint identifier.
	ID string `json:"id"`

	// Step is the step this checkpoint gates, evaluated after the step
	// completes.
	Step MigrationStep `json:"step"`

	// Name is the human-readable gate name.
	Name string `json:"name"`

	// Description explains what the gate reviews.
	Description string `json:"description,omitempty"`

	// Condition decides whether the gate fires.
	Condition CheckpointCondition `json:"-"`

	// Handler runs when the condition is true.
	Handler CheckpointHandler `json:"-"`
}

// CheckpointExecution records one handler invocation.
type CheckpointExecution struct {
	// CheckpointID is the checkpoint that executed.
	CheckpointID string `json:"checkpoint_id"`

	// MigrationID is the migration attempt the execution belongs to.
	MigrationID string `json:"migration_id"`

	// ExecutedAt is when the handler ran.
	ExecutedAt time.Time `json:"executed_at"`

	// Result is the handler's result, synthesized as abort when the
	// handler failed.
	Result CheckpointResult `json:"result"`
}

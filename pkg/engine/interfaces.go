package engine

import (
	"context"
	"encoding/json"
	"time"
)

// ExecOptions carries per-invocation options for a step executor.
type ExecOptions struct {
	// DryRun asks the executor to describe what it would do without
	// performing side effects.
	DryRun bool `json:"dry_run"`
}

// StepExecutor performs the substantive work of one migration step. One
// implementation exists per step, supplied by the scanning, generation,
// comparison, and import subsystems. Executors must return an error only
// for truly exceptional conditions (I/O failure, malformed input), not
// for ordinary negative domain outcomes such as "no drift found".
type StepExecutor interface {
	// Execute performs the step and returns its result payload.
	Execute(ctx context.Context, state *MigrationState, opts ExecOptions) (json.RawMessage, error)
}

// ExecutorFunc adapts a function to the StepExecutor interface.
type ExecutorFunc func(ctx context.Context, state *MigrationState, opts ExecOptions) (json.RawMessage, error)

// Execute implements StepExecutor.
func (f ExecutorFunc) Execute(ctx context.Context, state *MigrationState, opts ExecOptions) (json.RawMessage, error) {
	return f(ctx, state, opts)
}

// VerificationProbe is a named check supplied by a collaborator and
// aggregated by Orchestrator.Verify. The orchestrator knows nothing
// cloud-specific; probes do.
type VerificationProbe interface {
	// Name identifies the probe in the verification report.
	Name() string

	// Check inspects the migration and reports pass/fail with detail.
	Check(ctx context.Context, state *MigrationState) VerificationCheck
}

// ProbeFunc adapts a function to the VerificationProbe interface.
type ProbeFunc struct {
	// ProbeName is the probe's report name.
	ProbeName string

	// Fn performs the check.
	Fn func(ctx context.Context, state *MigrationState) VerificationCheck
}

// Name implements VerificationProbe.
func (p ProbeFunc) Name() string { return p.ProbeName }

// Check implements VerificationProbe.
func (p ProbeFunc) Check(ctx context.Context, state *MigrationState) VerificationCheck {
	return p.Fn(ctx, state)
}

// StateStore is the durable persistence contract for one migration's
// snapshot. Implemented by pkg/state.Manager. Write failures must
// propagate unchanged: an inability to durably record progress is fatal.
type StateStore interface {
	// Save persists the snapshot, unconditionally backing up the prior
	// snapshot first.
	Save(ctx context.Context, state *MigrationState) error

	// Load returns the persisted snapshot. ok is false when no snapshot
	// exists yet; a snapshot that exists but cannot be parsed yields a
	// state_corrupt error.
	Load(ctx context.Context) (state *MigrationState, ok bool, err error)

	// ListBackups returns backup descriptors sorted newest-first.
	ListBackups(ctx context.Context) ([]BackupInfo, error)

	// RestoreFromBackup reads a backup without mutating the live
	// snapshot. The caller decides whether to re-commit it.
	RestoreFromBackup(ctx context.Context, id string) (*MigrationState, error)

	// CleanupOldBackups deletes all but the newest keep backups and
	// returns the count removed.
	CleanupOldBackups(ctx context.Context, keep int) (int, error)
}

// CheckpointGate is the checkpoint evaluation contract consumed by the
// orchestrator. Implemented by pkg/checkpoint.Manager.
type CheckpointGate interface {
	// FirstTriggered evaluates the conditions of every checkpoint
	// registered for step, in registration order, and returns the first
	// whose condition is true, or nil.
	FirstTriggered(ctx context.Context, state *MigrationState, step MigrationStep) (*Checkpoint, error)

	// Execute invokes the checkpoint's handler. A failing handler never
	// escapes; it is converted into an abort result.
	Execute(ctx context.Context, cp *Checkpoint, state *MigrationState) CheckpointResult
}

// JournalEntry is one append-only record of engine activity.
type JournalEntry struct {
	// MigrationID is the migration attempt the entry belongs to.
	MigrationID string `json:"migration_id"`

	// Step is the step involved, if any.
	Step MigrationStep `json:"step,omitempty"`

	// Kind categorizes the entry (e.g., "step_completed",
	// "checkpoint_executed", "rollback").
	Kind string `json:"kind"`

	// Message is the human-readable entry text.
	Message string `json:"message"`

	// Details is an optional JSON payload.
	Details json.RawMessage `json:"details,omitempty"`

	// Timestamp is when the entry was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// Journal is the append-only audit trail consumed by the orchestrator.
// Implemented by pkg/journal.Store. Journal failures are logged, never
// fatal: the snapshot, not the journal, is the source of truth.
type Journal interface {
	// Append records one entry.
	Append(ctx context.Context, entry *JournalEntry) error
}

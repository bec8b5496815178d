package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openmigrate/openmigrate/pkg/telemetry"
)

// RunMode selects how Run walks the step sequence.
type RunMode string

const (
	// RunModeAutomatic walks every remaining step without stopping
	// between steps.
	RunModeAutomatic RunMode = "automatic"

	// RunModeSingle executes exactly one step and returns.
	RunModeSingle RunMode = "single"
)

// Orchestrator drives one migration attempt through the step sequence.
// It owns the attempt's state, delegates step work to registered
// executors, sequencing to the step order helpers, persistence to the
// StateStore, and gating to the CheckpointGate.
//
// One orchestrator drives one migration at a time. Running two
// orchestrators against the same state location concurrently is
// unsupported: the snapshot contract is last-write-wins, and backups
// exist to recover from a bad overwrite.
type Orchestrator struct {
	store     StateStore
	gate      CheckpointGate
	journal   Journal
	logger    zerolog.Logger
	metrics   *telemetry.Metrics
	tracer    trace.Tracer
	executors map[MigrationStep]StepExecutor
	probes    []VerificationProbe

	state     *MigrationState
	dryRun    bool
	narrative []string
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithJournal attaches an append-only audit journal.
func WithJournal(j Journal) OrchestratorOption {
	return func(o *Orchestrator) { o.journal = j }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *telemetry.Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTracer attaches a tracer; spans wrap Run and each step execution.
func WithTracer(t trace.Tracer) OrchestratorOption {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithDryRun makes every executor invocation a dry run. Sequencing,
// persistence, and gating are unaffected; executors report what they
// would do and the orchestrator accumulates the narrative.
func WithDryRun(dryRun bool) OrchestratorOption {
	return func(o *Orchestrator) { o.dryRun = dryRun }
}

// NewOrchestrator creates an orchestrator bound to a state store and a
// checkpoint gate.
func NewOrchestrator(store StateStore, gate CheckpointGate, logger zerolog.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		store:     store,
		gate:      gate,
		logger:    logger.With().Str("component", "orchestrator").Logger(),
		executors: make(map[MigrationStep]StepExecutor),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RegisterExecutor binds an executor to a step, replacing any previous
// registration.
func (o *Orchestrator) RegisterExecutor(step MigrationStep, exec StepExecutor) error {
	if !IsValidStep(step) || step == StepComplete {
		return NewTransitionError(fmt.Sprintf("cannot register executor for step %q", step), nil)
	}
	o.executors[step] = exec
	return nil
}

// RegisterProbe adds a verification probe.
func (o *Orchestrator) RegisterProbe(probe VerificationProbe) {
	o.probes = append(o.probes, probe)
}

// State returns the orchestrator's current in-memory state.
func (o *Orchestrator) State() *MigrationState {
	return o.state
}

// Narrative returns the accumulated dry-run narrative lines.
func (o *Orchestrator) Narrative() []string {
	out := make([]string, len(o.narrative))
	copy(out, o.narrative)
	return out
}

// Initialize builds a fresh migration state with a new unique ID and
// persists it immediately.
func (o *Orchestrator) Initialize(ctx context.Context, cfg Config) (*MigrationState, error) {
	now := time.Now()
	state := &MigrationState{
		ID:             uuid.New().String(),
		Status:         StatusInitialized,
		CurrentStep:    StepScan,
		CompletedSteps: []MigrationStep{},
		FailedSteps:    []FailedStep{},
		StartedAt:      now,
		UpdatedAt:      now,
		Config:         cfg,
	}

	if err := o.store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to persist initial state: %w", err)
	}
	o.state = state

	o.logger.Info().
		Str("migration_id", state.ID).
		Str("template_path", cfg.TemplatePath).
		Msg("Migration initialized")
	o.record(ctx, "", "initialized", "migration initialized", nil)
	o.metrics.RecordMigrationStarted()

	return state, nil
}

// LoadPersisted loads the persisted state into the orchestrator without
// running anything. Used by callers that need to roll back, verify, or
// inspect an existing migration.
func (o *Orchestrator) LoadPersisted(ctx context.Context) (*MigrationState, error) {
	state, ok, err := o.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewNotFoundError("no persisted migration state", nil)
	}
	o.state = state
	return state, nil
}

// ExecuteStep runs the executor registered for step. On success the step
// is appended to CompletedSteps, CurrentStep advances, the snapshot is
// persisted, and the checkpoint gate is consulted. On executor failure
// the failure is recorded, status becomes failed, and the outcome carries
// Success=false; executor errors never propagate to the caller. State
// store failures do propagate: they are fatal.
func (o *Orchestrator) ExecuteStep(ctx context.Context, step MigrationStep) (StepOutcome, error) {
	return o.executeStep(ctx, step, true)
}

func (o *Orchestrator) executeStep(ctx context.Context, step MigrationStep, allowRetry bool) (StepOutcome, error) {
	if o.state == nil {
		return StepOutcome{}, NewNotFoundError("no migration state: initialize or resume first", nil)
	}

	exec, ok := o.executors[step]
	if !ok {
		return StepOutcome{}, NewNotFoundError(fmt.Sprintf("no executor registered for step %s", step), nil).
			WithStep(step).WithMigration(o.state.ID)
	}

	if check := ValidateTransition(o.state.CurrentStep, step); !check.Valid {
		return StepOutcome{}, NewTransitionError(check.Reason, nil).
			WithStep(step).WithMigration(o.state.ID)
	}

	if o.tracer != nil {
		var span trace.Span
		ctx, span = o.tracer.Start(ctx, "migration.step",
			trace.WithAttributes(
				attribute.String("migration.id", o.state.ID),
				attribute.String("migration.step", string(step)),
			))
		defer span.End()
	}

	logger := o.logger.With().
		Str("migration_id", o.state.ID).
		Str("step", string(step)).
		Logger()

	o.state.Status = StatusInProgress
	started := time.Now()

	if o.dryRun {
		o.narrative = append(o.narrative, fmt.Sprintf("would execute step %s (%.0f%% of sequence)", step, Progress(step)))
	}

	logger.Info().Bool("dry_run", o.dryRun).Msg("Executing step")
	data, err := exec.Execute(ctx, o.state, ExecOptions{DryRun: o.dryRun})
	duration := time.Since(started)

	if err != nil {
		return o.handleStepFailure(ctx, logger, step, duration, err)
	}

	o.state.CompletedSteps = append(o.state.CompletedSteps, step)
	o.state.RecordResult(step, data)
	if next, ok := NextStep(step); ok {
		o.state.CurrentStep = next
	} else {
		o.state.CurrentStep = StepComplete
	}
	o.state.UpdatedAt = time.Now()

	if err := o.store.Save(ctx, o.state); err != nil {
		return StepOutcome{}, fmt.Errorf("failed to persist state after step %s: %w", step, err)
	}

	logger.Info().Dur("duration", duration).Msg("Step completed")
	o.metrics.RecordStepExecuted(string(step), "succeeded", duration)
	o.record(ctx, step, "step_completed", fmt.Sprintf("step %s completed", step), data)

	outcome := StepOutcome{Success: true, Step: step, Data: data}
	return o.consultCheckpoints(ctx, logger, step, outcome, allowRetry)
}

// handleStepFailure records the failure and persists the failed state.
func (o *Orchestrator) handleStepFailure(ctx context.Context, logger zerolog.Logger, step MigrationStep, duration time.Duration, execErr error) (StepOutcome, error) {
	o.state.FailedSteps = append(o.state.FailedSteps, FailedStep{
		Step:      step,
		Error:     execErr.Error(),
		Timestamp: time.Now(),
	})
	o.state.Status = StatusFailed
	o.state.UpdatedAt = time.Now()

	if err := o.store.Save(ctx, o.state); err != nil {
		return StepOutcome{}, fmt.Errorf("failed to persist state after step %s failure: %w", step, err)
	}

	logger.Error().Err(execErr).Dur("duration", duration).Msg("Step failed")
	o.metrics.RecordStepExecuted(string(step), "failed", duration)
	o.record(ctx, step, "step_failed", execErr.Error(), nil)

	return StepOutcome{
		Success: false,
		Step:    step,
		Err:     NewStepFailedError(fmt.Sprintf("step %s failed", step), execErr).WithStep(step).WithMigration(o.state.ID),
	}, nil
}

// consultCheckpoints evaluates the gate for a completed step and applies
// the resulting action to the outcome.
func (o *Orchestrator) consultCheckpoints(ctx context.Context, logger zerolog.Logger, step MigrationStep, outcome StepOutcome, allowRetry bool) (StepOutcome, error) {
	if o.gate == nil {
		return outcome, nil
	}

	cp, err := o.gate.FirstTriggered(ctx, o.state, step)
	if err != nil {
		// Condition evaluation errors are logged, not fatal: a faulty
		// gate must not crash the run.
		logger.Warn().Err(err).Msg("Checkpoint condition evaluation failed")
		return outcome, nil
	}
	if cp == nil {
		return outcome, nil
	}

	logger.Info().Str("checkpoint", cp.Name).Msg("Checkpoint triggered")
	o.metrics.RecordCheckpointTriggered(cp.ID)

	result := o.gate.Execute(ctx, cp, o.state)
	o.applyModifications(result.Modifications)
	if len(result.Modifications) > 0 {
		o.state.UpdatedAt = time.Now()
		if err := o.store.Save(ctx, o.state); err != nil {
			return StepOutcome{}, fmt.Errorf("failed to persist checkpoint modifications: %w", err)
		}
	}
	o.record(ctx, step, "checkpoint_executed",
		fmt.Sprintf("checkpoint %s: %s", cp.Name, result.Action), nil)

	switch result.Action {
	case ActionContinue:
		return outcome, nil

	case ActionPause:
		o.state.Status = StatusPaused
		o.state.UpdatedAt = time.Now()
		if err := o.store.Save(ctx, o.state); err != nil {
			return StepOutcome{}, fmt.Errorf("failed to persist paused state: %w", err)
		}
		outcome.Halt = true
		outcome.HaltReason = result.Message
		return outcome, nil

	case ActionAbort:
		o.state.Status = StatusFailed
		o.state.UpdatedAt = time.Now()
		if err := o.store.Save(ctx, o.state); err != nil {
			return StepOutcome{}, fmt.Errorf("failed to persist aborted state: %w", err)
		}
		outcome.Success = false
		outcome.Halt = true
		outcome.HaltReason = result.Message
		outcome.Err = NewCheckpointError(result.Message, nil).WithStep(step).WithMigration(o.state.ID)
		return outcome, nil

	case ActionRetry:
		if !allowRetry {
			// One retry per checkpoint evaluation; treat a second request
			// as continue to avoid an unbounded loop.
			return outcome, nil
		}
		logger.Info().Str("checkpoint", cp.Name).Msg("Checkpoint requested retry")
		o.rewindStep(step)
		if err := o.store.Save(ctx, o.state); err != nil {
			return StepOutcome{}, fmt.Errorf("failed to persist state before retry of %s: %w", step, err)
		}
		return o.executeStep(ctx, step, false)

	default:
		logger.Warn().Str("action", string(result.Action)).Msg("Unknown checkpoint action, continuing")
		return outcome, nil
	}
}

// rewindStep removes a just-completed step so it can run again.
func (o *Orchestrator) rewindStep(step MigrationStep) {
	if n := len(o.state.CompletedSteps); n > 0 && o.state.CompletedSteps[n-1] == step {
		o.state.CompletedSteps = o.state.CompletedSteps[:n-1]
	}
	delete(o.state.StepResults, step)
	o.state.CurrentStep = step
	o.state.UpdatedAt = time.Now()
}

// applyModifications applies a checkpoint's shallow state patch.
func (o *Orchestrator) applyModifications(mods map[string]json.RawMessage) {
	for key, raw := range mods {
		switch key {
		case "status":
			var status Status
			if err := json.Unmarshal(raw, &status); err == nil {
				o.state.Status = status
			}
		case "resources":
			var resources []ResourceRecord
			if err := json.Unmarshal(raw, &resources); err == nil {
				o.state.Resources = resources
			}
		case "step_results":
			var results map[MigrationStep]json.RawMessage
			if err := json.Unmarshal(raw, &results); err == nil {
				for step, data := range results {
					o.state.RecordResult(step, data)
				}
			}
		default:
			o.logger.Warn().Str("key", key).Msg("Ignoring unknown checkpoint modification key")
		}
	}
}

// Run drives ExecuteStep across the sequence starting at CurrentStep,
// skipping steps already completed so a resumed run never re-executes
// finished work. It stops at the first failing step or at a pause/abort
// checkpoint outcome. Reaching the terminal step with no failures sets
// status to completed and records the end time.
func (o *Orchestrator) Run(ctx context.Context, mode RunMode) (RunResult, error) {
	if o.state == nil {
		return RunResult{}, NewNotFoundError("no migration state: initialize or resume first", nil)
	}

	if o.tracer != nil {
		var span trace.Span
		ctx, span = o.tracer.Start(ctx, "migration.run",
			trace.WithAttributes(attribute.String("migration.id", o.state.ID)))
		defer span.End()
	}

	start := StepIndex(o.state.CurrentStep)
	if start < 0 {
		return RunResult{}, NewTransitionError(fmt.Sprintf("state has invalid current step %q", o.state.CurrentStep), nil).
			WithMigration(o.state.ID)
	}

	for _, step := range ExecutableSteps()[min(start, len(ExecutableSteps())):] {
		if err := ctx.Err(); err != nil {
			return RunResult{Success: false, Reason: "cancelled"}, err
		}
		if o.state.HasCompleted(step) {
			continue
		}

		outcome, err := o.ExecuteStep(ctx, step)
		if err != nil {
			return RunResult{}, err
		}
		if !outcome.Success {
			reason := outcome.HaltReason
			if reason == "" && outcome.Err != nil {
				reason = outcome.Err.Error()
			}
			return RunResult{Success: false, FailedStep: step, Reason: reason}, nil
		}
		if outcome.Halt {
			return RunResult{Success: false, FailedStep: step, Reason: outcome.HaltReason}, nil
		}
		if mode == RunModeSingle {
			return RunResult{Success: true}, nil
		}
	}

	now := time.Now()
	o.state.Status = StatusCompleted
	o.state.CurrentStep = StepComplete
	o.state.EndTime = &now
	o.state.UpdatedAt = now
	if err := o.store.Save(ctx, o.state); err != nil {
		return RunResult{}, fmt.Errorf("failed to persist completed state: %w", err)
	}

	o.logger.Info().Str("migration_id", o.state.ID).Msg("Migration completed")
	o.metrics.RecordMigrationCompleted(string(StatusCompleted))
	o.record(ctx, StepComplete, "completed", "migration completed", nil)

	return RunResult{Success: true}, nil
}

// Rollback restores the most recent backup at or before the target step,
// truncates CompletedSteps to exclude anything after it, and marks the
// migration rolled back.
func (o *Orchestrator) Rollback(ctx context.Context, target MigrationStep) error {
	if o.state == nil {
		return NewNotFoundError("no migration state: initialize or resume first", nil)
	}
	targetIdx := StepIndex(target)
	if targetIdx < 0 {
		return NewTransitionError(fmt.Sprintf("unknown rollback target %q", target), nil).WithMigration(o.state.ID)
	}
	if targetIdx > StepIndex(o.state.CurrentStep) {
		return NewTransitionError(
			fmt.Sprintf("cannot roll back from %s forward to %s", o.state.CurrentStep, target), nil).
			WithMigration(o.state.ID)
	}

	restored, err := o.findBackupAtOrBefore(ctx, target)
	if err != nil {
		return err
	}
	if restored != nil {
		o.state = restored
	}

	o.state.CurrentStep = target
	var kept []MigrationStep
	for _, done := range o.state.CompletedSteps {
		if StepIndex(done) < targetIdx {
			kept = append(kept, done)
		}
	}
	o.state.CompletedSteps = kept
	for step := range o.state.StepResults {
		if StepIndex(step) >= targetIdx {
			delete(o.state.StepResults, step)
		}
	}
	o.state.Status = StatusRolledBack
	o.state.UpdatedAt = time.Now()

	if err := o.store.Save(ctx, o.state); err != nil {
		return fmt.Errorf("failed to persist rolled back state: %w", err)
	}

	o.logger.Info().
		Str("migration_id", o.state.ID).
		Str("target", string(target)).
		Msg("Migration rolled back")
	o.metrics.RecordMigrationCompleted(string(StatusRolledBack))
	o.record(ctx, target, "rollback", fmt.Sprintf("rolled back to step %s", target), nil)

	return nil
}

// findBackupAtOrBefore scans backups newest-first for the most recent
// snapshot positioned at or before the target step.
func (o *Orchestrator) findBackupAtOrBefore(ctx context.Context, target MigrationStep) (*MigrationState, error) {
	backups, err := o.store.ListBackups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	targetIdx := StepIndex(target)

	for _, info := range backups {
		candidate, err := o.store.RestoreFromBackup(ctx, info.ID)
		if err != nil {
			o.logger.Warn().Err(err).Str("backup", info.ID).Msg("Skipping unreadable backup")
			continue
		}
		if candidate.ID == o.state.ID && StepIndex(candidate.CurrentStep) <= targetIdx {
			return candidate, nil
		}
	}
	// No suitable backup: rollback still truncates the live state.
	return nil, nil
}

// Resume loads the persisted state and continues the run from the loaded
// current step. Calling Resume on a completed migration executes zero
// additional steps.
func (o *Orchestrator) Resume(ctx context.Context) (RunResult, error) {
	state, ok, err := o.store.Load(ctx)
	if err != nil {
		return RunResult{}, err
	}
	if !ok {
		return RunResult{}, NewNotFoundError("no persisted migration state to resume", nil)
	}
	o.state = state

	if state.Status == StatusCompleted {
		o.logger.Info().Str("migration_id", state.ID).Msg("Migration already completed, nothing to resume")
		return RunResult{Success: true}, nil
	}

	o.state.Status = StatusInProgress
	o.logger.Info().
		Str("migration_id", state.ID).
		Str("current_step", string(state.CurrentStep)).
		Msg("Resuming migration")
	o.record(ctx, state.CurrentStep, "resume", "migration resumed", nil)

	return o.Run(ctx, RunModeAutomatic)
}

// Verify aggregates pass/fail results from the registered verification
// probes.
func (o *Orchestrator) Verify(ctx context.Context) (VerificationReport, error) {
	if o.state == nil {
		return VerificationReport{}, NewNotFoundError("no migration state: initialize or resume first", nil)
	}

	report := VerificationReport{Success: true}
	for _, probe := range o.probes {
		check := probe.Check(ctx, o.state)
		check.Name = probe.Name()
		report.Checks = append(report.Checks, check)
		if !check.Passed {
			report.Success = false
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", check.Name, check.Detail))
		}
	}

	o.logger.Info().
		Str("migration_id", o.state.ID).
		Bool("success", report.Success).
		Int("checks", len(report.Checks)).
		Msg("Verification finished")

	return report, nil
}

// record appends a journal entry, logging and swallowing journal errors.
func (o *Orchestrator) record(ctx context.Context, step MigrationStep, kind, message string, details json.RawMessage) {
	if o.journal == nil || o.state == nil {
		return
	}
	entry := &JournalEntry{
		MigrationID: o.state.ID,
		Step:        step,
		Kind:        kind,
		Message:     message,
		Details:     details,
		Timestamp:   time.Now(),
	}
	if err := o.journal.Append(ctx, entry); err != nil {
		o.logger.Warn().Err(err).Str("kind", kind).Msg("Failed to append journal entry")
	}
}

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
)

// memStore is an in-memory StateStore for orchestrator tests. Save
// backs up the prior snapshot first, mirroring the durable
// implementation's contract.
type memStore struct {
	snapshot *MigrationState
	backups  []*MigrationState
	failSave bool
}

func (s *memStore) Save(_ context.Context, state *MigrationState) error {
	if s.failSave {
		return NewPersistenceError("save disabled", nil)
	}
	if s.snapshot != nil {
		s.backups = append(s.backups, s.snapshot)
	}
	clone, err := state.Clone()
	if err != nil {
		return err
	}
	s.snapshot = clone
	return nil
}

func (s *memStore) Load(_ context.Context) (*MigrationState, bool, error) {
	if s.snapshot == nil {
		return nil, false, nil
	}
	clone, err := s.snapshot.Clone()
	if err != nil {
		return nil, false, err
	}
	return clone, true, nil
}

func (s *memStore) ListBackups(_ context.Context) ([]BackupInfo, error) {
	out := make([]BackupInfo, 0, len(s.backups))
	for i := len(s.backups) - 1; i >= 0; i-- {
		out = append(out, BackupInfo{ID: fmt.Sprintf("backup-%d", i)})
	}
	return out, nil
}

func (s *memStore) RestoreFromBackup(_ context.Context, id string) (*MigrationState, error) {
	var idx int
	if _, err := fmt.Sscanf(id, "backup-%d", &idx); err != nil || idx < 0 || idx >= len(s.backups) {
		return nil, NewNotFoundError(fmt.Sprintf("backup %s does not exist", id), nil)
	}
	return s.backups[idx].Clone()
}

func (s *memStore) CleanupOldBackups(_ context.Context, keep int) (int, error) {
	if len(s.backups) <= keep {
		return 0, nil
	}
	removed := len(s.backups) - keep
	s.backups = s.backups[removed:]
	return removed, nil
}

// fakeGate evaluates a fixed checkpoint list the way the checkpoint
// manager does, without the history bookkeeping.
type fakeGate struct {
	checkpoints []Checkpoint
}

func (g *fakeGate) FirstTriggered(ctx context.Context, state *MigrationState, step MigrationStep) (*Checkpoint, error) {
	for i := range g.checkpoints {
		cp := &g.checkpoints[i]
		if cp.Step != step {
			continue
		}
		eligible, err := cp.Condition(ctx, state)
		if err != nil {
			return nil, err
		}
		if eligible {
			return cp, nil
		}
	}
	return nil, nil
}

func (g *fakeGate) Execute(ctx context.Context, cp *Checkpoint, state *MigrationState) CheckpointResult {
	res, err := cp.Handler(ctx, state)
	if err != nil {
		return CheckpointResult{Action: ActionAbort, Message: err.Error()}
	}
	return res
}

// countingExecutor records how many times each step ran.
type countingExecutor struct {
	counts map[MigrationStep]int
	failAt map[MigrationStep]bool
}

func newCountingExecutor() *countingExecutor {
	return &countingExecutor{
		counts: make(map[MigrationStep]int),
		failAt: make(map[MigrationStep]bool),
	}
}

func (e *countingExecutor) register(t *testing.T, o *Orchestrator) {
	t.Helper()
	for _, step := range ExecutableSteps() {
		step := step
		err := o.RegisterExecutor(step, ExecutorFunc(func(_ context.Context, _ *MigrationState, _ ExecOptions) (json.RawMessage, error) {
			e.counts[step]++
			if e.failAt[step] {
				return nil, fmt.Errorf("executor for %s failed", step)
			}
			return json.RawMessage(fmt.Sprintf(`{"step":%q}`, step)), nil
		}))
		if err != nil {
			t.Fatalf("failed to register executor for %s: %v", step, err)
		}
	}
}

func (e *countingExecutor) total() int {
	total := 0
	for _, n := range e.counts {
		total += n
	}
	return total
}

func newTestOrchestrator(t *testing.T, store StateStore, gate CheckpointGate, opts ...OrchestratorOption) (*Orchestrator, *countingExecutor) {
	t.Helper()
	o := NewOrchestrator(store, gate, zerolog.Nop(), opts...)
	exec := newCountingExecutor()
	exec.register(t, o)
	return o, exec
}

func testConfig() Config {
	return Config{
		TemplatePath: "templates",
		OutputPath:   "out",
		WorkDir:      "work",
	}
}

func TestOrchestrator_Initialize(t *testing.T) {
	store := &memStore{}
	o, _ := newTestOrchestrator(t, store, nil)

	st, err := o.Initialize(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.ID == "" {
		t.Errorf("expected a migration ID")
	}
	if st.Status != StatusInitialized {
		t.Errorf("expected status initialized, got %s", st.Status)
	}
	if st.CurrentStep != StepScan {
		t.Errorf("expected current step scan, got %s", st.CurrentStep)
	}
	if store.snapshot == nil {
		t.Errorf("expected initial state to be persisted")
	}
}

func TestOrchestrator_Run_CompletesAllSteps(t *testing.T) {
	store := &memStore{}
	o, exec := newTestOrchestrator(t, store, nil)

	if _, err := o.Initialize(context.Background(), testConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := o.Run(context.Background(), RunModeAutomatic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}

	st := o.State()
	if st.Status != StatusCompleted {
		t.Errorf("expected status completed, got %s", st.Status)
	}
	if st.CurrentStep != StepComplete {
		t.Errorf("expected current step complete, got %s", st.CurrentStep)
	}
	if len(st.CompletedSteps) != 9 {
		t.Errorf("expected 9 completed steps, got %d", len(st.CompletedSteps))
	}
	if st.EndTime == nil {
		t.Errorf("expected end time to be set")
	}
	if exec.total() != 9 {
		t.Errorf("expected 9 executions, got %d", exec.total())
	}
	if len(st.StepResults) != 9 {
		t.Errorf("expected 9 step results, got %d", len(st.StepResults))
	}
}

func TestOrchestrator_ExecuteStep_RejectsSkip(t *testing.T) {
	store := &memStore{}
	o, exec := newTestOrchestrator(t, store, nil)

	if _, err := o.Initialize(context.Background(), testConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := o.ExecuteStep(context.Background(), StepProtect)
	if err == nil {
		t.Fatalf("expected a transition error")
	}
	if !IsKind(err, ErrorKindTransition) {
		t.Errorf("expected transition kind, got %v", err)
	}
	if exec.total() != 0 {
		t.Errorf("expected no executions, got %d", exec.total())
	}
}

func TestOrchestrator_ExecuteStep_WithoutState(t *testing.T) {
	o, _ := newTestOrchestrator(t, &memStore{}, nil)

	if _, err := o.ExecuteStep(context.Background(), StepScan); !IsNotFound(err) {
		t.Errorf("expected not_found error, got %v", err)
	}
	if _, err := o.Run(context.Background(), RunModeAutomatic); !IsNotFound(err) {
		t.Errorf("expected not_found error, got %v", err)
	}
}

func TestOrchestrator_Run_StepFailureHalts(t *testing.T) {
	store := &memStore{}
	o, exec := newTestOrchestrator(t, store, nil)
	exec.failAt[StepCompare] = true

	if _, err := o.Initialize(context.Background(), testConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := o.Run(context.Background(), RunModeAutomatic)
	if err != nil {
		t.Fatalf("executor failure must not propagate as an error: %v", err)
	}
	if res.Success {
		t.Fatalf("expected failure result")
	}
	if res.FailedStep != StepCompare {
		t.Errorf("expected failure at compare, got %s", res.FailedStep)
	}

	st := o.State()
	if st.Status != StatusFailed {
		t.Errorf("expected status failed, got %s", st.Status)
	}
	if len(st.CompletedSteps) != 4 {
		t.Errorf("expected 4 completed steps before the failure, got %d", len(st.CompletedSteps))
	}
	if len(st.FailedSteps) != 1 || st.FailedSteps[0].Step != StepCompare {
		t.Errorf("expected one recorded failure at compare, got %+v", st.FailedSteps)
	}
	if st.CurrentStep != StepCompare {
		t.Errorf("failed step must not advance, current step is %s", st.CurrentStep)
	}
}

func TestOrchestrator_Resume_AfterFailure(t *testing.T) {
	store := &memStore{}
	o, exec := newTestOrchestrator(t, store, nil)
	exec.failAt[StepCompare] = true

	if _, err := o.Initialize(context.Background(), testConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := o.Run(context.Background(), RunModeAutomatic); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A fresh orchestrator with a fixed executor picks up the run.
	o2, exec2 := newTestOrchestrator(t, store, nil)
	res, err := o2.Resume(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected resumed run to complete, got %+v", res)
	}

	st := o2.State()
	if len(st.CompletedSteps) != 9 {
		t.Errorf("expected 9 completed steps, got %d", len(st.CompletedSteps))
	}
	seen := make(map[MigrationStep]bool)
	for _, step := range st.CompletedSteps {
		if seen[step] {
			t.Errorf("step %s completed twice", step)
		}
		seen[step] = true
	}
	// The resumed run must not re-execute the four steps that finished
	// before the failure.
	if exec2.counts[StepScan] != 0 {
		t.Errorf("expected scan to be skipped on resume, ran %d times", exec2.counts[StepScan])
	}
	if exec2.counts[StepCompare] != 1 {
		t.Errorf("expected compare to run once on resume, ran %d times", exec2.counts[StepCompare])
	}
}

func TestOrchestrator_Resume_CompletedIsNoop(t *testing.T) {
	store := &memStore{}
	o, _ := newTestOrchestrator(t, store, nil)
	if _, err := o.Initialize(context.Background(), testConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := o.Run(context.Background(), RunModeAutomatic); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	o2, exec2 := newTestOrchestrator(t, store, nil)
	res, err := o2.Resume(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Errorf("expected success resuming a completed migration")
	}
	if exec2.total() != 0 {
		t.Errorf("expected zero executions, got %d", exec2.total())
	}
}

func TestOrchestrator_Resume_WithoutState(t *testing.T) {
	o, _ := newTestOrchestrator(t, &memStore{}, nil)
	if _, err := o.Resume(context.Background()); !IsNotFound(err) {
		t.Errorf("expected not_found error, got %v", err)
	}
}

func TestOrchestrator_Run_SingleMode(t *testing.T) {
	store := &memStore{}
	o, exec := newTestOrchestrator(t, store, nil)
	if _, err := o.Initialize(context.Background(), testConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := o.Run(context.Background(), RunModeSingle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if exec.total() != 1 {
		t.Errorf("expected exactly one execution, got %d", exec.total())
	}
	if o.State().CurrentStep != StepDiscovery {
		t.Errorf("expected current step discovery, got %s", o.State().CurrentStep)
	}
}

func TestOrchestrator_Checkpoint_PauseAndResume(t *testing.T) {
	store := &memStore{}
	paused := true
	gate := &fakeGate{checkpoints: []Checkpoint{{
		ID:   "gate-discovery",
		Step: StepDiscovery,
		Name: "discovery-review",
		Condition: func(_ context.Context, _ *MigrationState) (bool, error) {
			return paused, nil
		},
		Handler: func(_ context.Context, _ *MigrationState) (CheckpointResult, error) {
			return CheckpointResult{Action: ActionPause, Message: "review discovery output"}, nil
		},
	}}}

	o, _ := newTestOrchestrator(t, store, gate)
	if _, err := o.Initialize(context.Background(), testConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := o.Run(context.Background(), RunModeAutomatic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Fatalf("expected run to halt at the checkpoint")
	}
	if res.Reason != "review discovery output" {
		t.Errorf("unexpected halt reason: %s", res.Reason)
	}
	if o.State().Status != StatusPaused {
		t.Errorf("expected status paused, got %s", o.State().Status)
	}
	// The gated step itself completed before the pause.
	if !o.State().HasCompleted(StepDiscovery) {
		t.Errorf("expected discovery to be completed")
	}

	paused = false
	o2, _ := newTestOrchestrator(t, store, gate)
	res, err = o2.Resume(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected resumed run to complete, got %+v", res)
	}
	if o2.State().Status != StatusCompleted {
		t.Errorf("expected status completed, got %s", o2.State().Status)
	}
}

func TestOrchestrator_Checkpoint_Abort(t *testing.T) {
	store := &memStore{}
	gate := &fakeGate{checkpoints: []Checkpoint{{
		ID:   "gate-protect",
		Step: StepProtect,
		Condition: func(_ context.Context, _ *MigrationState) (bool, error) {
			return true, nil
		},
		Handler: func(_ context.Context, _ *MigrationState) (CheckpointResult, error) {
			return CheckpointResult{Action: ActionAbort, Message: "rejected"}, nil
		},
	}}}

	o, _ := newTestOrchestrator(t, store, gate)
	if _, err := o.Initialize(context.Background(), testConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := o.Run(context.Background(), RunModeAutomatic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Fatalf("expected aborted run")
	}
	if res.FailedStep != StepProtect || res.Reason != "rejected" {
		t.Errorf("unexpected result: %+v", res)
	}
	if o.State().Status != StatusFailed {
		t.Errorf("expected status failed, got %s", o.State().Status)
	}
}

func TestOrchestrator_Checkpoint_RetryRunsStepTwice(t *testing.T) {
	store := &memStore{}
	gate := &fakeGate{checkpoints: []Checkpoint{{
		ID:   "gate-generate",
		Step: StepGenerate,
		Condition: func(_ context.Context, _ *MigrationState) (bool, error) {
			return true, nil
		},
		Handler: func(_ context.Context, _ *MigrationState) (CheckpointResult, error) {
			return CheckpointResult{Action: ActionRetry, Message: "regenerate"}, nil
		},
	}}}

	o, exec := newTestOrchestrator(t, store, gate)
	if _, err := o.Initialize(context.Background(), testConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := o.Run(context.Background(), RunModeAutomatic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected run to complete, got %+v", res)
	}
	// One retry per evaluation; a second retry request is treated as
	// continue.
	if exec.counts[StepGenerate] != 2 {
		t.Errorf("expected generate to run twice, ran %d times", exec.counts[StepGenerate])
	}
	if got := exec.total(); got != 10 {
		t.Errorf("expected 10 executions in total, got %d", got)
	}
}

func TestOrchestrator_Checkpoint_ConditionErrorContinues(t *testing.T) {
	store := &memStore{}
	gate := &fakeGate{checkpoints: []Checkpoint{{
		ID:   "gate-broken",
		Step: StepScan,
		Condition: func(_ context.Context, _ *MigrationState) (bool, error) {
			return false, fmt.Errorf("condition exploded")
		},
		Handler: func(_ context.Context, _ *MigrationState) (CheckpointResult, error) {
			return CheckpointResult{Action: ActionAbort}, nil
		},
	}}}

	o, _ := newTestOrchestrator(t, store, gate)
	if _, err := o.Initialize(context.Background(), testConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := o.Run(context.Background(), RunModeAutomatic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("a faulty condition must not stop the run: %+v", res)
	}
}

func TestOrchestrator_Checkpoint_Modifications(t *testing.T) {
	store := &memStore{}
	patched, _ := json.Marshal([]ResourceRecord{{LogicalID: "bucket", Type: "storage.bucket", PhysicalID: "b-123"}})
	gate := &fakeGate{checkpoints: []Checkpoint{{
		ID:   "gate-scan",
		Step: StepScan,
		Condition: func(_ context.Context, _ *MigrationState) (bool, error) {
			return true, nil
		},
		Handler: func(_ context.Context, _ *MigrationState) (CheckpointResult, error) {
			return CheckpointResult{
				Action:        ActionContinue,
				Modifications: map[string]json.RawMessage{"resources": patched},
			}, nil
		},
	}}}

	o, _ := newTestOrchestrator(t, store, gate)
	if _, err := o.Initialize(context.Background(), testConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := o.ExecuteStep(context.Background(), StepScan); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st := o.State()
	if len(st.Resources) != 1 || st.Resources[0].PhysicalID != "b-123" {
		t.Errorf("expected checkpoint modification to be applied, got %+v", st.Resources)
	}

	// The patched state must survive a reload, not just live in memory.
	persisted, ok, err := store.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected a persisted snapshot, got ok=%v err=%v", ok, err)
	}
	if len(persisted.Resources) != 1 || persisted.Resources[0].PhysicalID != "b-123" {
		t.Errorf("expected checkpoint modification to be persisted, got %+v", persisted.Resources)
	}
}

func TestOrchestrator_DryRun_Narrative(t *testing.T) {
	store := &memStore{}
	var sawDryRun bool
	o := NewOrchestrator(store, nil, zerolog.Nop(), WithDryRun(true))
	for _, step := range ExecutableSteps() {
		if err := o.RegisterExecutor(step, ExecutorFunc(func(_ context.Context, _ *MigrationState, opts ExecOptions) (json.RawMessage, error) {
			if opts.DryRun {
				sawDryRun = true
			}
			return nil, nil
		})); err != nil {
			t.Fatalf("failed to register executor: %v", err)
		}
	}

	if _, err := o.Initialize(context.Background(), testConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := o.Run(context.Background(), RunModeAutomatic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected dry run to complete, got %+v", res)
	}
	if !sawDryRun {
		t.Errorf("expected executors to see the dry-run option")
	}
	narrative := o.Narrative()
	if len(narrative) != 9 {
		t.Fatalf("expected 9 narrative lines, got %d", len(narrative))
	}
	if narrative[0] != "would execute step scan (0% of sequence)" {
		t.Errorf("unexpected first narrative line: %s", narrative[0])
	}
}

func TestOrchestrator_Rollback(t *testing.T) {
	store := &memStore{}
	o, _ := newTestOrchestrator(t, store, nil)
	if _, err := o.Initialize(context.Background(), testConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := o.Run(context.Background(), RunModeAutomatic); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := o.Rollback(context.Background(), StepCompare); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st := o.State()
	if st.Status != StatusRolledBack {
		t.Errorf("expected status rolled_back, got %s", st.Status)
	}
	if st.CurrentStep != StepCompare {
		t.Errorf("expected current step compare, got %s", st.CurrentStep)
	}
	if len(st.CompletedSteps) != 4 {
		t.Errorf("expected 4 completed steps after rollback, got %d", len(st.CompletedSteps))
	}
	for _, done := range st.CompletedSteps {
		if StepIndex(done) >= StepIndex(StepCompare) {
			t.Errorf("step %s should have been rolled back", done)
		}
	}
	for step := range st.StepResults {
		if StepIndex(step) >= StepIndex(StepCompare) {
			t.Errorf("result for %s should have been discarded", step)
		}
	}

	// The rolled back migration re-runs from the target step.
	o2, exec2 := newTestOrchestrator(t, store, nil)
	res, err := o2.Resume(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected resumed run to complete, got %+v", res)
	}
	if exec2.counts[StepCompare] != 1 {
		t.Errorf("expected compare to re-run once, ran %d times", exec2.counts[StepCompare])
	}
	if exec2.counts[StepScan] != 0 {
		t.Errorf("expected scan to stay completed, ran %d times", exec2.counts[StepScan])
	}
}

func TestOrchestrator_Rollback_UnknownTarget(t *testing.T) {
	store := &memStore{}
	o, _ := newTestOrchestrator(t, store, nil)
	if _, err := o.Initialize(context.Background(), testConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := o.Rollback(context.Background(), "bogus"); !IsKind(err, ErrorKindTransition) {
		t.Errorf("expected transition error, got %v", err)
	}
}

func TestOrchestrator_Rollback_RejectsForwardTarget(t *testing.T) {
	store := &memStore{}
	o, _ := newTestOrchestrator(t, store, nil)
	if _, err := o.Initialize(context.Background(), testConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := o.ExecuteStep(context.Background(), StepScan); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := o.Rollback(context.Background(), StepImport); !IsKind(err, ErrorKindTransition) {
		t.Fatalf("expected transition error for a target ahead of the current step, got %v", err)
	}

	st := o.State()
	if st.CurrentStep != StepDiscovery {
		t.Errorf("expected current step to stay at discovery, got %s", st.CurrentStep)
	}
	if len(st.CompletedSteps) != 1 || st.CompletedSteps[0] != StepScan {
		t.Errorf("expected completed steps to stay [scan], got %v", st.CompletedSteps)
	}
	if st.Status == StatusRolledBack {
		t.Errorf("rejected rollback must not change the migration status")
	}

	// Resuming still continues from discovery instead of skipping ahead.
	o2, exec2 := newTestOrchestrator(t, store, nil)
	res, err := o2.Resume(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected resumed run to complete, got %+v", res)
	}
	if exec2.counts[StepDiscovery] != 1 {
		t.Errorf("expected discovery to run once, ran %d times", exec2.counts[StepDiscovery])
	}
	if exec2.counts[StepScan] != 0 {
		t.Errorf("expected scan to stay completed, ran %d times", exec2.counts[StepScan])
	}
}

func TestOrchestrator_SaveFailureIsFatal(t *testing.T) {
	store := &memStore{}
	o, _ := newTestOrchestrator(t, store, nil)
	if _, err := o.Initialize(context.Background(), testConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.failSave = true
	if _, err := o.ExecuteStep(context.Background(), StepScan); err == nil {
		t.Fatalf("expected persistence failure to propagate")
	}
}

func TestOrchestrator_Run_Cancelled(t *testing.T) {
	store := &memStore{}
	o, exec := newTestOrchestrator(t, store, nil)
	if _, err := o.Initialize(context.Background(), testConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := o.Run(ctx, RunModeAutomatic); err == nil {
		t.Fatalf("expected cancellation error")
	}
	if exec.total() != 0 {
		t.Errorf("expected no executions after cancellation, got %d", exec.total())
	}
}

func TestOrchestrator_Verify(t *testing.T) {
	store := &memStore{}
	o, _ := newTestOrchestrator(t, store, nil)
	o.RegisterProbe(ProbeFunc{
		ProbeName: "always-passes",
		Fn: func(_ context.Context, _ *MigrationState) VerificationCheck {
			return VerificationCheck{Passed: true, Detail: "fine"}
		},
	})
	o.RegisterProbe(ProbeFunc{
		ProbeName: "always-fails",
		Fn: func(_ context.Context, _ *MigrationState) VerificationCheck {
			return VerificationCheck{Passed: false, Detail: "broken"}
		},
	})

	if _, err := o.Initialize(context.Background(), testConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	report, err := o.Verify(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Success {
		t.Errorf("expected report to fail")
	}
	if len(report.Checks) != 2 {
		t.Errorf("expected 2 checks, got %d", len(report.Checks))
	}
	if len(report.Errors) != 1 || report.Errors[0] != "always-fails: broken" {
		t.Errorf("unexpected errors: %v", report.Errors)
	}
}

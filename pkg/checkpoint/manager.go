// Package checkpoint implements conditional gates on migration steps. A
// checkpoint pauses, aborts, or retries a fully automatic pipeline when
// its condition matches, putting a human or a policy in the loop without
// the orchestrator knowing why.
package checkpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openmigrate/openmigrate/pkg/engine"
)

// Manager implements engine.CheckpointGate. It keeps a registry of
// checkpoints keyed by step, evaluates trigger conditions in
// registration order, executes matching handlers, and records a
// per-migration execution history.
//
// Precedence between checkpoints on the same step is first-registered
// wins; swapping gating policy means building the manager with a
// different checkpoint list.
type Manager struct {
	mu      sync.RWMutex
	byStep  map[engine.MigrationStep][]*engine.Checkpoint
	ordered []*engine.Checkpoint
	history map[string][]engine.CheckpointExecution
	logger  zerolog.Logger
}

// NewManager creates an empty checkpoint manager.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		byStep:  make(map[engine.MigrationStep][]*engine.Checkpoint),
		history: make(map[string][]engine.CheckpointExecution),
		logger:  logger.With().Str("component", "checkpoint-manager").Logger(),
	}
}

// Register adds a checkpoint to the registry. Any number of checkpoints
// may share a step.
func (m *Manager) Register(cp engine.Checkpoint) error {
	if cp.ID == "" {
		return engine.NewCheckpointError("checkpoint id is required", nil)
	}
	if !engine.IsValidStep(cp.Step) {
		return engine.NewCheckpointError(fmt.Sprintf("checkpoint %s targets unknown step %q", cp.ID, cp.Step), nil)
	}
	if cp.Condition == nil || cp.Handler == nil {
		return engine.NewCheckpointError(fmt.Sprintf("checkpoint %s needs both a condition and a handler", cp.ID), nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stored := cp
	m.byStep[cp.Step] = append(m.byStep[cp.Step], &stored)
	m.ordered = append(m.ordered, &stored)

	m.logger.Debug().Str("checkpoint", cp.ID).Str("step", string(cp.Step)).Msg("Checkpoint registered")
	return nil
}

// Checkpoints exposes the full registry, in registration order, for
// introspection.
func (m *Manager) Checkpoints() []engine.Checkpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]engine.Checkpoint, 0, len(m.ordered))
	for _, cp := range m.ordered {
		out = append(out, *cp)
	}
	return out
}

// FirstTriggered evaluates, in registration order, the condition of every
// checkpoint registered for step and returns the first whose condition is
// true, or nil. A condition error disqualifies that checkpoint and is
// reported after the scan so a later checkpoint can still fire.
func (m *Manager) FirstTriggered(ctx context.Context, state *engine.MigrationState, step engine.MigrationStep) (*engine.Checkpoint, error) {
	m.mu.RLock()
	candidates := make([]*engine.Checkpoint, len(m.byStep[step]))
	copy(candidates, m.byStep[step])
	m.mu.RUnlock()

	var condErr error
	for _, cp := range candidates {
		eligible, err := cp.Condition(ctx, state)
		if err != nil {
			m.logger.Warn().Err(err).Str("checkpoint", cp.ID).Msg("Checkpoint condition failed")
			if condErr == nil {
				condErr = engine.NewCheckpointError(fmt.Sprintf("condition of checkpoint %s failed", cp.ID), err)
			}
			continue
		}
		if eligible {
			return cp, nil
		}
	}
	return nil, condErr
}

// Execute invokes the checkpoint's handler. A handler that returns an
// error or panics is converted into an abort result carrying the error
// text: a checkpoint must never crash the orchestrator. Every execution,
// successful or synthesized, is appended to the per-migration history.
func (m *Manager) Execute(ctx context.Context, cp *engine.Checkpoint, state *engine.MigrationState) engine.CheckpointResult {
	result := m.runHandler(ctx, cp, state)

	execution := engine.CheckpointExecution{
		CheckpointID: cp.ID,
		MigrationID:  state.ID,
		ExecutedAt:   time.Now(),
		Result:       result,
	}

	m.mu.Lock()
	m.history[state.ID] = append(m.history[state.ID], execution)
	m.mu.Unlock()

	m.logger.Info().
		Str("checkpoint", cp.ID).
		Str("migration_id", state.ID).
		Str("action", string(result.Action)).
		Msg("Checkpoint executed")

	return result
}

// runHandler isolates handler faults.
func (m *Manager) runHandler(ctx context.Context, cp *engine.Checkpoint, state *engine.MigrationState) (result engine.CheckpointResult) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Str("checkpoint", cp.ID).Interface("panic", r).Msg("Checkpoint handler panicked")
			result = engine.CheckpointResult{
				Action:  engine.ActionAbort,
				Message: fmt.Sprintf("checkpoint %s panicked: %v", cp.ID, r),
			}
		}
	}()

	res, err := cp.Handler(ctx, state)
	if err != nil {
		m.logger.Error().Err(err).Str("checkpoint", cp.ID).Msg("Checkpoint handler failed")
		return engine.CheckpointResult{
			Action:  engine.ActionAbort,
			Message: err.Error(),
		}
	}
	return res
}

// History returns the execution history for a migration, oldest first.
func (m *Manager) History(migrationID string) []engine.CheckpointExecution {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]engine.CheckpointExecution, len(m.history[migrationID]))
	copy(out, m.history[migrationID])
	return out
}

// ClearHistory discards all recorded executions.
func (m *Manager) ClearHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = make(map[string][]engine.CheckpointExecution)
}

package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/openmigrate/openmigrate/pkg/engine"
)

// ApprovalHandler returns a checkpoint handler that blocks until a human
// drops an approval marker into dir: `<migration id>.approve` continues
// the run, `<migration id>.reject` aborts it. The wait is cooperative;
// cancelling the context aborts with the cancellation reason.
//
// Pair it with any condition (built-in or rego) to turn that gate into an
// interactive one.
func ApprovalHandler(dir string) engine.CheckpointHandler {
	return func(ctx context.Context, state *engine.MigrationState) (engine.CheckpointResult, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return engine.CheckpointResult{}, fmt.Errorf("failed to create approval directory: %w", err)
		}

		approvePath := filepath.Join(dir, state.ID+".approve")
		rejectPath := filepath.Join(dir, state.ID+".reject")

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return engine.CheckpointResult{}, fmt.Errorf("failed to create approval watcher: %w", err)
		}
		defer func() { _ = watcher.Close() }()

		if err := watcher.Add(dir); err != nil {
			return engine.CheckpointResult{}, fmt.Errorf("failed to watch approval directory: %w", err)
		}

		// A marker dropped before the watch started must still count.
		if result, ok := checkMarkers(approvePath, rejectPath); ok {
			return result, nil
		}

		for {
			select {
			case <-ctx.Done():
				return engine.CheckpointResult{
					Action:  engine.ActionAbort,
					Message: fmt.Sprintf("approval wait cancelled: %v", ctx.Err()),
				}, nil

			case event, ok := <-watcher.Events:
				if !ok {
					return engine.CheckpointResult{}, fmt.Errorf("approval watcher closed")
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}
				if result, ok := checkMarkers(approvePath, rejectPath); ok {
					return result, nil
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return engine.CheckpointResult{}, fmt.Errorf("approval watcher closed")
				}
				return engine.CheckpointResult{}, fmt.Errorf("approval watcher error: %w", err)
			}
		}
	}
}

// checkMarkers consumes an approval or rejection marker if present.
func checkMarkers(approvePath, rejectPath string) (engine.CheckpointResult, bool) {
	if _, err := os.Stat(rejectPath); err == nil {
		_ = os.Remove(rejectPath)
		return engine.CheckpointResult{
			Action:  engine.ActionAbort,
			Message: "migration rejected by operator",
		}, true
	}
	if _, err := os.Stat(approvePath); err == nil {
		_ = os.Remove(approvePath)
		return engine.CheckpointResult{
			Action:  engine.ActionContinue,
			Message: "migration approved by operator",
		}, true
	}
	return engine.CheckpointResult{}, false
}

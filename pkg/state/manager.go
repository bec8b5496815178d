// Package state persists one migration's state snapshot to disk with
// mandatory timestamped backups. The snapshot is a single JSON document;
// backups are copies of that document named with a sortable timestamp
// suffix so listing newest-first is a reverse lexical sort.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openmigrate/openmigrate/pkg/engine"
	"github.com/openmigrate/openmigrate/pkg/telemetry"
)

const (
	snapshotFile = "migration.json"
	backupPrefix = "migration-"
	backupSuffix = ".json"

	// backupTimeLayout is sortable and collision-resistant down to
	// nanoseconds.
	backupTimeLayout = "20060102T150405.000000000Z"
)

// Manager implements engine.StateStore on the local filesystem.
type Manager struct {
	dir       string
	backupDir string
	logger    zerolog.Logger
	metrics   *telemetry.Metrics
}

// NewManager creates a state manager rooted at dir. backupDir may be
// empty, in which case backups live under dir/backups.
func NewManager(dir, backupDir string, logger zerolog.Logger) *Manager {
	if backupDir == "" {
		backupDir = filepath.Join(dir, "backups")
	}
	return &Manager{
		dir:       dir,
		backupDir: backupDir,
		logger:    logger.With().Str("component", "state-manager").Logger(),
	}
}

// SetMetrics attaches a metrics collector; a nil collector is a no-op.
func (m *Manager) SetMetrics(metrics *telemetry.Metrics) {
	m.metrics = metrics
}

// Dir returns the state directory.
func (m *Manager) Dir() string { return m.dir }

// BackupDir returns the backup directory.
func (m *Manager) BackupDir() string { return m.backupDir }

func (m *Manager) snapshotPath() string {
	return filepath.Join(m.dir, snapshotFile)
}

func (m *Manager) backupPath(id string) string {
	return filepath.Join(m.backupDir, id)
}

// Save persists the snapshot. Before overwriting, the prior snapshot is
// unconditionally copied into a timestamp-named backup: a destructive
// migration must always be recoverable. Write failures propagate
// unchanged to the caller.
func (m *Manager) Save(ctx context.Context, state *engine.MigrationState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return engine.NewPersistenceError("failed to create state directory", err)
	}

	if err := m.backupCurrent(); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return engine.NewPersistenceError("failed to encode state", err)
	}

	// Write through a temp file so a crash mid-write cannot corrupt the
	// live snapshot.
	tmp := m.snapshotPath() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return engine.NewPersistenceError("failed to write state snapshot", err)
	}
	if err := os.Rename(tmp, m.snapshotPath()); err != nil {
		return engine.NewPersistenceError("failed to commit state snapshot", err)
	}

	m.logger.Debug().Str("migration_id", state.ID).Msg("State saved")
	return nil
}

// backupCurrent copies the existing snapshot, if any, into the backup
// directory.
func (m *Manager) backupCurrent() error {
	raw, err := os.ReadFile(m.snapshotPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return engine.NewPersistenceError("failed to read snapshot for backup", err)
	}

	if err := os.MkdirAll(m.backupDir, 0o755); err != nil {
		return engine.NewPersistenceError("failed to create backup directory", err)
	}

	id := backupPrefix + time.Now().UTC().Format(backupTimeLayout) + backupSuffix
	if err := os.WriteFile(m.backupPath(id), raw, 0o644); err != nil {
		return engine.NewPersistenceError("failed to write backup", err)
	}

	m.logger.Debug().Str("backup", id).Msg("Backup created")
	m.metrics.RecordBackupCreated()
	return nil
}

// Load returns the persisted snapshot. A missing state directory or
// snapshot yields ok=false rather than an error; a snapshot that exists
// but cannot be parsed yields a distinct state_corrupt error. Date fields
// are reconstructed by the JSON decoder.
func (m *Manager) Load(ctx context.Context) (*engine.MigrationState, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	raw, err := os.ReadFile(m.snapshotPath())
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, engine.NewPersistenceError("failed to read state snapshot", err)
	}

	var state engine.MigrationState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, false, engine.NewStateCorruptError(
			fmt.Sprintf("state snapshot %s is unreadable; restore from a backup", m.snapshotPath()), err)
	}

	return &state, true, nil
}

// ListBackups returns backup descriptors sorted newest-first.
func (m *Manager) ListBackups(ctx context.Context) ([]engine.BackupInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(m.backupDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, engine.NewPersistenceError("failed to read backup directory", err)
	}

	var backups []engine.BackupInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
			continue
		}
		backups = append(backups, engine.BackupInfo{
			ID:        name,
			CreatedAt: backupCreatedAt(name, entry),
		})
	}

	// The timestamp in the name is sortable text, so reverse lexical
	// order is newest-first.
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].ID > backups[j].ID
	})
	return backups, nil
}

// backupCreatedAt parses the creation time out of the backup name,
// falling back to the file's modification time.
func backupCreatedAt(name string, entry os.DirEntry) time.Time {
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), backupSuffix)
	if t, err := time.Parse(backupTimeLayout, stamp); err == nil {
		return t
	}
	if info, err := entry.Info(); err == nil {
		return info.ModTime()
	}
	return time.Time{}
}

// RestoreFromBackup reads a backup without mutating the live snapshot.
// The caller decides whether to re-commit it via Save.
func (m *Manager) RestoreFromBackup(ctx context.Context, id string) (*engine.MigrationState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(m.backupPath(id))
	if os.IsNotExist(err) {
		return nil, engine.NewNotFoundError(fmt.Sprintf("backup %s does not exist", id), err)
	}
	if err != nil {
		return nil, engine.NewPersistenceError("failed to read backup", err)
	}

	var state engine.MigrationState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, engine.NewStateCorruptError(fmt.Sprintf("backup %s is unreadable", id), err)
	}
	return &state, nil
}

// CleanupOldBackups deletes all but the newest keep backups and returns
// the count removed.
func (m *Manager) CleanupOldBackups(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	backups, err := m.ListBackups(ctx)
	if err != nil {
		return 0, err
	}
	if len(backups) <= keep {
		return 0, nil
	}

	removed := 0
	for _, backup := range backups[keep:] {
		if err := os.Remove(m.backupPath(backup.ID)); err != nil {
			return removed, engine.NewPersistenceError(fmt.Sprintf("failed to remove backup %s", backup.ID), err)
		}
		removed++
	}

	m.logger.Info().Int("removed", removed).Int("kept", keep).Msg("Pruned old backups")
	return removed, nil
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fasttrack/core/internal/domain/entities"
	"github.com/fasttrack/core/internal/infrastructure/logger"
	"github.com/fasttrack/core/internal/ports"
	"github.com/fasttrack/core/internal/sync"
)

// BackupService exports the signed-in user's full data set to a JSON
// envelope and restores it with merge semantics.
type BackupService struct {
	store  ports.Store
	ctrl   *sync.Controller
	logger *logger.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(store ports.Store, ctrl *sync.Controller, log *logger.Logger) *BackupService {
	return &BackupService{store: store, ctrl: ctrl, logger: log}
}

// backupProbe checks structure before the full decode, so a file missing
// either array is rejected outright instead of restoring half a backup.
type backupProbe struct {
	Projects *json.RawMessage `json:"projects"`
	Tasks    *json.RawMessage `json:"tasks"`
}

// Export reads both collections straight from the store and wraps them
// in a versioned envelope stamped with the current time, owner and
// backend kind. Soft-deleted records are included.
func (s *BackupService) Export(ctx context.Context) (*entities.Backup, error) {
	identity := s.ctrl.Identity()
	if identity == nil {
		return nil, entities.ErrNotAuthenticated
	}

	projects, err := s.store.ListProjects(ctx, identity.UID)
	if err != nil {
		return nil, fmt.Errorf("failed to export projects: %w", err)
	}
	tasks, err := s.store.ListTasks(ctx, identity.UID)
	if err != nil {
		return nil, fmt.Errorf("failed to export tasks: %w", err)
	}

	backup := &entities.Backup{
		Timestamp: entities.Now(),
		Version:   entities.BackupVersion,
		UserID:    identity.UID,
		Source:    string(s.store.Mode()),
		Projects:  projects,
		Tasks:     tasks,
	}

	s.logger.Infow("Backup exported", "projects", len(projects), "tasks", len(tasks))
	return backup, nil
}

// FileName returns the suggested download name for a backup taken now.
func (s *BackupService) FileName() string {
	return fmt.Sprintf("fasttrack-backup-%s.json", time.Now().Format("2006-01-02"))
}

// Import restores a backup with merge semantics: records whose IDs
// already exist are replaced, everything else is appended, and nothing
// outside the backup is touched. Every restored record is forced to the
// signed-in user's ownership regardless of the userId recorded in the
// file, so a backup from one account can be restored into another.
func (s *BackupService) Import(ctx context.Context, data []byte) (int, int, error) {
	identity := s.ctrl.Identity()
	if identity == nil {
		return 0, 0, entities.ErrNotAuthenticated
	}

	var probe backupProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", entities.ErrInvalidBackup, err)
	}
	if probe.Projects == nil || probe.Tasks == nil {
		return 0, 0, entities.ErrInvalidBackup
	}

	var backup entities.Backup
	if err := json.Unmarshal(data, &backup); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", entities.ErrInvalidBackup, err)
	}

	ops := make([]ports.BatchOp, 0, len(backup.Projects)+len(backup.Tasks))
	for i := range backup.Projects {
		p := backup.Projects[i]
		p.OwnerID = identity.UID
		ops = append(ops, ports.BatchOp{
			Collection: ports.CollectionProjects,
			Kind:       ports.OpPut,
			ID:         p.ID,
			Project:    &p,
		})
	}
	for i := range backup.Tasks {
		t := backup.Tasks[i]
		t.OwnerID = identity.UID
		ops = append(ops, ports.BatchOp{
			Collection: ports.CollectionTasks,
			Kind:       ports.OpPut,
			ID:         t.ID,
			Task:       &t,
		})
	}

	if len(ops) > 0 {
		if err := s.store.BatchWrite(ctx, identity.UID, ops); err != nil {
			return 0, 0, fmt.Errorf("failed to restore backup: %w", err)
		}
	}

	s.logger.Infow("Backup restored",
		"projects", len(backup.Projects), "tasks", len(backup.Tasks), "source", backup.Source)

	if s.store.Mode() == ports.ModeLocal {
		if err := s.ctrl.Refresh(ctx); err != nil {
			s.logger.Warnw("Local refresh failed", "error", err)
		}
	}
	return len(backup.Projects), len(backup.Tasks), nil
}

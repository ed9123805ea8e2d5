package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fasttrack/core/internal/domain/entities"
	"github.com/fasttrack/core/internal/infrastructure/logger"
	"github.com/fasttrack/core/internal/ports"
)

// Fixed file names, independent of the signed-in identity. Local mode is
// single-tenant per data directory.
const (
	localProjectsFile = "ft_projects_local.json"
	localTasksFile    = "ft_tasks_local.json"
)

// LocalStore persists the two collections as flat JSON arrays on disk.
// Every mutation is a read-modify-write of the whole array followed by an
// atomic rewrite, serialized by a single mutex so mutation operations
// never interleave mid-cycle.
type LocalStore struct {
	dir    string
	mu     sync.Mutex
	logger *logger.Logger
}

// NewLocalStore creates the data directory if needed and returns a store
// over it.
func NewLocalStore(dir string, log *logger.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &LocalStore{dir: dir, logger: log}, nil
}

// Mode reports ModeLocal.
func (s *LocalStore) Mode() ports.Mode { return ports.ModeLocal }

// Close is a no-op; the store holds no open resources between calls.
func (s *LocalStore) Close() error { return nil }

// ListProjects loads the full project array. Local mode is single-tenant,
// so the owner filter is not applied.
func (s *LocalStore) ListProjects(_ context.Context, _ string) ([]entities.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadProjects()
}

// ListTasks loads the full task array.
func (s *LocalStore) ListTasks(_ context.Context, _ string) ([]entities.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadTasks()
}

// CreateProject appends the project and rewrites the array.
func (s *LocalStore) CreateProject(_ context.Context, project *entities.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.loadProjects()
	if err != nil {
		return err
	}
	projects = append(projects, *project)
	return s.saveProjects(projects)
}

// PatchProject shallow-merges the patch into the matching array element.
func (s *LocalStore) PatchProject(_ context.Context, _, id string, patch entities.ProjectPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.loadProjects()
	if err != nil {
		return err
	}
	found := false
	for i := range projects {
		if projects[i].ID == id {
			patch.Apply(&projects[i])
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("patch project %s: %w", id, entities.ErrProjectNotFound)
	}
	return s.saveProjects(projects)
}

// DeleteProject filters the project out of the array.
func (s *LocalStore) DeleteProject(_ context.Context, _, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.loadProjects()
	if err != nil {
		return err
	}
	kept := projects[:0]
	for _, p := range projects {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	return s.saveProjects(kept)
}

// CreateTask appends the task and rewrites the array.
func (s *LocalStore) CreateTask(_ context.Context, task *entities.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.loadTasks()
	if err != nil {
		return err
	}
	tasks = append(tasks, *task)
	return s.saveTasks(tasks)
}

// PatchTask shallow-merges the patch into the matching array element.
func (s *LocalStore) PatchTask(_ context.Context, _, id string, patch entities.TaskPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.loadTasks()
	if err != nil {
		return err
	}
	found := false
	for i := range tasks {
		if tasks[i].ID == id {
			patch.Apply(&tasks[i])
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("patch task %s: %w", id, entities.ErrTaskNotFound)
	}
	return s.saveTasks(tasks)
}

// DeleteTask filters the task out of the array.
func (s *LocalStore) DeleteTask(_ context.Context, _, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.loadTasks()
	if err != nil {
		return err
	}
	kept := tasks[:0]
	for _, t := range tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	return s.saveTasks(kept)
}

// BatchWrite applies every op against in-memory copies of both arrays and
// rewrites each touched array exactly once. The whole batch is one
// synchronous update; chunking is not needed locally but the op limit is
// honored anyway so both backends behave alike at the call site.
func (s *LocalStore) BatchWrite(_ context.Context, _ string, ops []ports.BatchOp) error {
	if len(ops) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.loadProjects()
	if err != nil {
		return err
	}
	tasks, err := s.loadTasks()
	if err != nil {
		return err
	}

	touchedProjects, touchedTasks := false, false
	for _, chunk := range Chunk(ops, ports.MaxBatchOps) {
		for _, op := range chunk {
			switch op.Collection {
			case ports.CollectionProjects:
				projects = applyProjectOp(projects, op)
				touchedProjects = true
			case ports.CollectionTasks:
				tasks = applyTaskOp(tasks, op)
				touchedTasks = true
			}
		}
	}

	if touchedProjects {
		if err := s.saveProjects(projects); err != nil {
			return err
		}
	}
	if touchedTasks {
		if err := s.saveTasks(tasks); err != nil {
			return err
		}
	}
	return nil
}

func applyProjectOp(projects []entities.Project, op ports.BatchOp) []entities.Project {
	switch op.Kind {
	case ports.OpPut:
		for i := range projects {
			if projects[i].ID == op.ID {
				projects[i] = *op.Project
				return projects
			}
		}
		return append(projects, *op.Project)
	case ports.OpPatch:
		for i := range projects {
			if projects[i].ID == op.ID {
				op.ProjectPatch.Apply(&projects[i])
				break
			}
		}
		return projects
	case ports.OpDelete:
		kept := projects[:0]
		for _, p := range projects {
			if p.ID != op.ID {
				kept = append(kept, p)
			}
		}
		return kept
	}
	return projects
}

func applyTaskOp(tasks []entities.Task, op ports.BatchOp) []entities.Task {
	switch op.Kind {
	case ports.OpPut:
		for i := range tasks {
			if tasks[i].ID == op.ID {
				tasks[i] = *op.Task
				return tasks
			}
		}
		return append(tasks, *op.Task)
	case ports.OpPatch:
		for i := range tasks {
			if tasks[i].ID == op.ID {
				op.TaskPatch.Apply(&tasks[i])
				break
			}
		}
		return tasks
	case ports.OpDelete:
		kept := tasks[:0]
		for _, t := range tasks {
			if t.ID != op.ID {
				kept = append(kept, t)
			}
		}
		return kept
	}
	return tasks
}

// WatchProjects delivers the initial snapshot and nothing more; local
// mode has no push channel, callers refresh after every write.
func (s *LocalStore) WatchProjects(ctx context.Context, ownerID string) (<-chan []entities.Project, <-chan error, error) {
	projects, err := s.ListProjects(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}

	snapshots := make(chan []entities.Project, 1)
	errs := make(chan error, 1)
	snapshots <- projects
	go func() {
		<-ctx.Done()
		close(snapshots)
		close(errs)
	}()
	return snapshots, errs, nil
}

// WatchTasks delivers the initial snapshot and nothing more.
func (s *LocalStore) WatchTasks(ctx context.Context, ownerID string) (<-chan []entities.Task, <-chan error, error) {
	tasks, err := s.ListTasks(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}

	snapshots := make(chan []entities.Task, 1)
	errs := make(chan error, 1)
	snapshots <- tasks
	go func() {
		<-ctx.Done()
		close(snapshots)
		close(errs)
	}()
	return snapshots, errs, nil
}

func (s *LocalStore) loadProjects() ([]entities.Project, error) {
	var projects []entities.Project
	if err := s.loadArray(localProjectsFile, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (s *LocalStore) loadTasks() ([]entities.Task, error) {
	var tasks []entities.Task
	if err := s.loadArray(localTasksFile, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *LocalStore) saveProjects(projects []entities.Project) error {
	return s.saveArray(localProjectsFile, projects)
}

func (s *LocalStore) saveTasks(tasks []entities.Task) error {
	return s.saveArray(localTasksFile, tasks)
}

func (s *LocalStore) loadArray(name string, out interface{}) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

// saveArray rewrites the whole array through a temp file so a crash never
// leaves a half-written collection behind.
func (s *LocalStore) saveArray(name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

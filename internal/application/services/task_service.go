package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fasttrack/core/internal/domain/entities"
	"github.com/fasttrack/core/internal/infrastructure/logger"
	"github.com/fasttrack/core/internal/ports"
	"github.com/fasttrack/core/internal/sync"
)

// TaskService handles single-task and bulk task mutation operations.
type TaskService struct {
	store  ports.Store
	ctrl   *sync.Controller
	logger *logger.Logger
}

// NewTaskService creates a new task service
func NewTaskService(store ports.Store, ctrl *sync.Controller, log *logger.Logger) *TaskService {
	return &TaskService{store: store, ctrl: ctrl, logger: log}
}

func (s *TaskService) requireIdentity() (*ports.Identity, error) {
	identity := s.ctrl.Identity()
	if identity == nil {
		return nil, entities.ErrNotAuthenticated
	}
	return identity, nil
}

func (s *TaskService) refreshLocal(ctx context.Context) {
	if s.store.Mode() != ports.ModeLocal {
		return
	}
	if err := s.ctrl.Refresh(ctx); err != nil {
		s.logger.Warnw("Local refresh failed", "error", err)
	}
}

// Add creates a task in the active project. New tasks default to TODO
// status and MEDIUM priority; sectionID is optional.
func (s *TaskService) Add(ctx context.Context, title, description string, sectionID *string) (*entities.Task, error) {
	identity, err := s.requireIdentity()
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, entities.ErrEmptyTitle
	}
	projectID := s.ctrl.ActiveProjectID()
	if projectID == "" {
		return nil, entities.ErrNoActiveProject
	}

	task := &entities.Task{
		ID:          uuid.New().String(),
		OwnerID:     identity.UID,
		ProjectID:   projectID,
		SectionID:   sectionID,
		Title:       title,
		Description: strings.TrimSpace(description),
		Status:      entities.StatusTodo,
		Priority:    entities.PriorityMedium,
		CreatedAt:   entities.Now(),
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Infow("Task created", "task_id", task.ID, "project_id", projectID)
	s.refreshLocal(ctx)
	return task, nil
}

// Update applies a general patch to a task. A patch that sets the title
// to an empty trimmed string is rejected.
func (s *TaskService) Update(ctx context.Context, taskID string, patch entities.TaskPatch) error {
	identity, err := s.requireIdentity()
	if err != nil {
		return err
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return entities.ErrEmptyTitle
		}
		patch.Title = &title
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return entities.ErrInvalidStatus
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return entities.ErrInvalidPriority
	}
	if patch.Empty() {
		return nil
	}

	if err := s.store.PatchTask(ctx, identity.UID, taskID, patch); err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	s.refreshLocal(ctx)
	return nil
}

// CycleStatus advances the task's status one step along the fixed
// TODO, TEST, DONE cycle.
func (s *TaskService) CycleStatus(ctx context.Context, taskID string) (entities.TaskStatus, error) {
	identity, err := s.requireIdentity()
	if err != nil {
		return "", err
	}
	task := s.ctrl.Task(taskID)
	if task == nil {
		return "", entities.ErrTaskNotFound
	}

	next := task.Status.Next()
	err = s.store.PatchTask(ctx, identity.UID, taskID, entities.TaskPatch{Status: &next})
	if err != nil {
		return "", fmt.Errorf("failed to cycle status: %w", err)
	}
	s.refreshLocal(ctx)
	return next, nil
}

// CyclePriority advances the task's priority one step along the fixed
// LOW, MEDIUM, HIGH cycle.
func (s *TaskService) CyclePriority(ctx context.Context, taskID string) (entities.TaskPriority, error) {
	identity, err := s.requireIdentity()
	if err != nil {
		return "", err
	}
	task := s.ctrl.Task(taskID)
	if task == nil {
		return "", entities.ErrTaskNotFound
	}

	next := task.Priority.Next()
	err = s.store.PatchTask(ctx, identity.UID, taskID, entities.TaskPatch{Priority: &next})
	if err != nil {
		return "", fmt.Errorf("failed to cycle priority: %w", err)
	}
	s.refreshLocal(ctx)
	return next, nil
}

// Move updates a task's status and/or section in a single patch, the
// shape produced by dropping a card onto a column, a section, or both at
// once. An explicit null section files the task under no section; an
// absent one leaves the section untouched.
func (s *TaskService) Move(ctx context.Context, taskID string, req ports.MoveTaskRequest) error {
	identity, err := s.requireIdentity()
	if err != nil {
		return err
	}

	var patch entities.TaskPatch
	if req.Status != nil {
		if !req.Status.Valid() {
			return entities.ErrInvalidStatus
		}
		patch.Status = req.Status
	}
	if req.SectionID != nil {
		patch.SectionID = entities.NullableString{Defined: true, Value: *req.SectionID}
	}
	if patch.Empty() {
		return nil
	}

	if err := s.store.PatchTask(ctx, identity.UID, taskID, patch); err != nil {
		return fmt.Errorf("failed to move task: %w", err)
	}
	s.refreshLocal(ctx)
	return nil
}

// SoftDelete marks a task deleted by stamping deletedAt. The record is
// retained and hidden from display lists.
func (s *TaskService) SoftDelete(ctx context.Context, taskID string) error {
	identity, err := s.requireIdentity()
	if err != nil {
		return err
	}
	patch := entities.TaskPatch{DeletedAt: entities.SetInt64(entities.Now())}
	if err := s.store.PatchTask(ctx, identity.UID, taskID, patch); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	s.refreshLocal(ctx)
	return nil
}

// Restore clears a task's deletedAt stamp, returning it to display
// lists.
func (s *TaskService) Restore(ctx context.Context, taskID string) error {
	identity, err := s.requireIdentity()
	if err != nil {
		return err
	}
	patch := entities.TaskPatch{DeletedAt: entities.NullInt64()}
	if err := s.store.PatchTask(ctx, identity.UID, taskID, patch); err != nil {
		return fmt.Errorf("failed to restore task: %w", err)
	}
	s.refreshLocal(ctx)
	return nil
}

// BulkStatus sets the same status on every listed task in one batched
// write and clears the selection set afterwards.
func (s *TaskService) BulkStatus(ctx context.Context, taskIDs []string, status entities.TaskStatus) error {
	identity, err := s.requireIdentity()
	if err != nil {
		return err
	}
	if !status.Valid() {
		return entities.ErrInvalidStatus
	}
	if len(taskIDs) == 0 {
		return nil
	}

	ops := make([]ports.BatchOp, 0, len(taskIDs))
	for _, id := range taskIDs {
		st := status
		ops = append(ops, ports.BatchOp{
			Collection: ports.CollectionTasks,
			Kind:       ports.OpPatch,
			ID:         id,
			TaskPatch:  &entities.TaskPatch{Status: &st},
		})
	}

	if err := s.store.BatchWrite(ctx, identity.UID, ops); err != nil {
		return fmt.Errorf("failed to bulk update status: %w", err)
	}

	s.ctrl.ClearSelection()
	s.refreshLocal(ctx)
	return nil
}

// BulkSoftDelete soft-deletes every listed task in one batched write and
// clears the selection set afterwards.
func (s *TaskService) BulkSoftDelete(ctx context.Context, taskIDs []string) error {
	identity, err := s.requireIdentity()
	if err != nil {
		return err
	}
	if len(taskIDs) == 0 {
		return nil
	}

	now := entities.Now()
	ops := make([]ports.BatchOp, 0, len(taskIDs))
	for _, id := range taskIDs {
		ops = append(ops, ports.BatchOp{
			Collection: ports.CollectionTasks,
			Kind:       ports.OpPatch,
			ID:         id,
			TaskPatch:  &entities.TaskPatch{DeletedAt: entities.SetInt64(now)},
		})
	}

	if err := s.store.BatchWrite(ctx, identity.UID, ops); err != nil {
		return fmt.Errorf("failed to bulk delete tasks: %w", err)
	}

	s.logger.Infow("Tasks bulk deleted", "count", len(taskIDs))
	s.ctrl.ClearSelection()
	s.refreshLocal(ctx)
	return nil
}

// BulkCopyText renders the listed tasks as a plain-text checklist, one
// "- title description" line per task, with newlines inside descriptions
// collapsed to spaces. Unknown IDs are skipped.
func (s *TaskService) BulkCopyText(taskIDs []string) string {
	var b strings.Builder
	for _, id := range taskIDs {
		task := s.ctrl.Task(id)
		if task == nil {
			continue
		}
		b.WriteString("- ")
		b.WriteString(task.Title)
		if desc := strings.TrimSpace(task.Description); desc != "" {
			b.WriteString(" ")
			b.WriteString(strings.Join(strings.Fields(desc), " "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// List returns the display list of the active project, optionally
// filtered by a search query.
func (s *TaskService) List(query string) []entities.Task {
	return s.ctrl.ActiveTasks(query)
}

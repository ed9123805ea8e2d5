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

// GenerateService turns a free-text prompt into a batch of tasks via the
// configured task generator. The batch lands all-or-none: a generation
// or write failure leaves the project untouched.
type GenerateService struct {
	store  ports.Store
	ctrl   *sync.Controller
	gen    ports.TaskGenerator
	logger *logger.Logger
}

// NewGenerateService creates a new generate service
func NewGenerateService(store ports.Store, ctrl *sync.Controller, gen ports.TaskGenerator, log *logger.Logger) *GenerateService {
	return &GenerateService{store: store, ctrl: ctrl, gen: gen, logger: log}
}

// Enabled reports whether a generator is configured.
func (s *GenerateService) Enabled() bool {
	return s.gen != nil
}

// Generate asks the generator for task drafts and materializes them in
// the active project. Drafts with an empty title become "Untitled Task"
// rather than being dropped, so the created count always matches what
// the generator proposed.
func (s *GenerateService) Generate(ctx context.Context, prompt string) ([]entities.Task, error) {
	if s.gen == nil {
		return nil, fmt.Errorf("task generation is not configured")
	}
	identity := s.ctrl.Identity()
	if identity == nil {
		return nil, entities.ErrNotAuthenticated
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, entities.ErrEmptyPrompt
	}
	projectID := s.ctrl.ActiveProjectID()
	if projectID == "" {
		return nil, entities.ErrNoActiveProject
	}

	drafts, err := s.gen.Generate(ctx, prompt, projectID)
	if err != nil {
		return nil, fmt.Errorf("task generation failed: %w", err)
	}
	if len(drafts) == 0 {
		return nil, nil
	}

	now := entities.Now()
	tasks := make([]entities.Task, 0, len(drafts))
	ops := make([]ports.BatchOp, 0, len(drafts))
	for _, d := range drafts {
		title := strings.TrimSpace(d.Title)
		if title == "" {
			title = "Untitled Task"
		}
		task := entities.Task{
			ID:          uuid.New().String(),
			OwnerID:     identity.UID,
			ProjectID:   projectID,
			Title:       title,
			Description: strings.TrimSpace(d.Description),
			Status:      entities.StatusTodo,
			Priority:    entities.PriorityMedium,
			CreatedAt:   now,
		}
		tasks = append(tasks, task)
		t := task
		ops = append(ops, ports.BatchOp{
			Collection: ports.CollectionTasks,
			Kind:       ports.OpPut,
			ID:         task.ID,
			Task:       &t,
		})
	}

	if err := s.store.BatchWrite(ctx, identity.UID, ops); err != nil {
		return nil, fmt.Errorf("failed to store generated tasks: %w", err)
	}

	s.logger.Infow("Tasks generated", "project_id", projectID, "count", len(tasks))

	if s.store.Mode() == ports.ModeLocal {
		if err := s.ctrl.Refresh(ctx); err != nil {
			s.logger.Warnw("Local refresh failed", "error", err)
		}
	}
	return tasks, nil
}

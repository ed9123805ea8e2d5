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

// ProjectService handles project and section mutation operations. Every
// operation validates locally before touching the store. In local mode
// the controller is refreshed synchronously after each write; in cloud
// mode state updates arrive through the subscription echo.
type ProjectService struct {
	store  ports.Store
	ctrl   *sync.Controller
	logger *logger.Logger
}

// NewProjectService creates a new project service
func NewProjectService(store ports.Store, ctrl *sync.Controller, log *logger.Logger) *ProjectService {
	return &ProjectService{store: store, ctrl: ctrl, logger: log}
}

func (s *ProjectService) requireIdentity() (*ports.Identity, error) {
	identity := s.ctrl.Identity()
	if identity == nil {
		return nil, entities.ErrNotAuthenticated
	}
	return identity, nil
}

func (s *ProjectService) refreshLocal(ctx context.Context) {
	if s.store.Mode() != ports.ModeLocal {
		return
	}
	if err := s.ctrl.Refresh(ctx); err != nil {
		s.logger.Warnw("Local refresh failed", "error", err)
	}
}

// Create creates a project with the next free sidebar order. In local
// mode the new project becomes active immediately; in cloud mode the
// subscription echo makes it selectable once it appears.
func (s *ProjectService) Create(ctx context.Context, name string) (*entities.Project, error) {
	identity, err := s.requireIdentity()
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, entities.ErrEmptyName
	}

	order := s.ctrl.MaxProjectOrder() + 1
	project := &entities.Project{
		ID:        uuid.New().String(),
		OwnerID:   identity.UID,
		Name:      name,
		CreatedAt: entities.Now(),
		Order:     &order,
	}

	if err := s.store.CreateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.logger.Infow("Project created", "project_id", project.ID, "name", project.Name)

	if s.store.Mode() == ports.ModeLocal {
		s.refreshLocal(ctx)
		s.ctrl.SetActiveProject(project.ID)
	}
	return project, nil
}

// Rename renames a project. An empty trimmed name is a no-op, not an
// error.
func (s *ProjectService) Rename(ctx context.Context, projectID, name string) error {
	if _, err := s.requireIdentity(); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	identity := s.ctrl.Identity()
	err := s.store.PatchProject(ctx, identity.UID, projectID, entities.ProjectPatch{Name: &name})
	if err != nil {
		return fmt.Errorf("failed to rename project: %w", err)
	}
	s.refreshLocal(ctx)
	return nil
}

// Delete removes a project and cascades to its tasks. Local mode filters
// project and tasks out in one synchronous batch; cloud mode deletes the
// project and then each task individually, with no atomicity across the
// cascade; an interruption can leave tasks referencing a deleted
// project. The next active project is re-derived by the controller when
// the removal lands.
func (s *ProjectService) Delete(ctx context.Context, projectID string) error {
	identity, err := s.requireIdentity()
	if err != nil {
		return err
	}

	var taskIDs []string
	for _, t := range s.ctrl.Tasks() {
		if t.ProjectID == projectID {
			taskIDs = append(taskIDs, t.ID)
		}
	}

	if s.store.Mode() == ports.ModeLocal {
		ops := make([]ports.BatchOp, 0, len(taskIDs)+1)
		ops = append(ops, ports.BatchOp{
			Collection: ports.CollectionProjects,
			Kind:       ports.OpDelete,
			ID:         projectID,
		})
		for _, id := range taskIDs {
			ops = append(ops, ports.BatchOp{
				Collection: ports.CollectionTasks,
				Kind:       ports.OpDelete,
				ID:         id,
			})
		}
		if err := s.store.BatchWrite(ctx, identity.UID, ops); err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
		s.refreshLocal(ctx)
		return nil
	}

	if err := s.store.DeleteProject(ctx, identity.UID, projectID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	for _, id := range taskIDs {
		if err := s.store.DeleteTask(ctx, identity.UID, id); err != nil {
			s.logger.Errorw("Cascade task delete failed", "task_id", id, "error", err)
		}
	}

	s.logger.Infow("Project deleted", "project_id", projectID, "cascaded_tasks", len(taskIDs))
	return nil
}

// Reorder moves a project to toIndex in the sidebar, then re-derives
// every project's order as its new array index and persists all changed
// orders in one batch.
func (s *ProjectService) Reorder(ctx context.Context, projectID string, toIndex int) error {
	identity, err := s.requireIdentity()
	if err != nil {
		return err
	}

	projects := s.ctrl.Projects()
	from := -1
	for i := range projects {
		if projects[i].ID == projectID {
			from = i
			break
		}
	}
	if from < 0 {
		return entities.ErrProjectNotFound
	}

	moved := projects[from]
	projects = append(projects[:from], projects[from+1:]...)
	if toIndex < 0 {
		toIndex = 0
	}
	if toIndex > len(projects) {
		toIndex = len(projects)
	}
	projects = append(projects[:toIndex], append([]entities.Project{moved}, projects[toIndex:]...)...)

	var ops []ports.BatchOp
	for i := range projects {
		if projects[i].Order != nil && *projects[i].Order == i {
			continue
		}
		order := i
		ops = append(ops, ports.BatchOp{
			Collection:   ports.CollectionProjects,
			Kind:         ports.OpPatch,
			ID:           projects[i].ID,
			ProjectPatch: &entities.ProjectPatch{Order: &order},
		})
	}
	if len(ops) == 0 {
		return nil
	}

	if err := s.store.BatchWrite(ctx, identity.UID, ops); err != nil {
		return fmt.Errorf("failed to reorder projects: %w", err)
	}
	s.refreshLocal(ctx)
	return nil
}

// AddSection appends a named section to the project's embedded section
// list. Section mutations read-modify-write the whole list.
func (s *ProjectService) AddSection(ctx context.Context, projectID, name string) (*entities.Section, error) {
	identity, err := s.requireIdentity()
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, entities.ErrEmptyName
	}

	project := s.findProject(projectID)
	if project == nil {
		return nil, entities.ErrProjectNotFound
	}

	section := entities.Section{
		ID:    uuid.New().String(),
		Name:  name,
		Order: len(project.Sections),
	}
	sections := append(append([]entities.Section{}, project.Sections...), section)

	err = s.store.PatchProject(ctx, identity.UID, projectID, entities.ProjectPatch{Sections: &sections})
	if err != nil {
		return nil, fmt.Errorf("failed to add section: %w", err)
	}
	s.refreshLocal(ctx)
	return &section, nil
}

// RenameSection renames an embedded section. An empty trimmed name is a
// no-op.
func (s *ProjectService) RenameSection(ctx context.Context, projectID, sectionID, name string) error {
	identity, err := s.requireIdentity()
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	project := s.findProject(projectID)
	if project == nil {
		return entities.ErrProjectNotFound
	}

	sections := append([]entities.Section{}, project.Sections...)
	found := false
	for i := range sections {
		if sections[i].ID == sectionID {
			sections[i].Name = name
			found = true
			break
		}
	}
	if !found {
		return entities.ErrSectionNotFound
	}

	err = s.store.PatchProject(ctx, identity.UID, projectID, entities.ProjectPatch{Sections: &sections})
	if err != nil {
		return fmt.Errorf("failed to rename section: %w", err)
	}
	s.refreshLocal(ctx)
	return nil
}

// DeleteSection removes a section and, in the same logical operation,
// clears the section reference on every task that pointed at it, so no
// task is ever left referencing a section that no longer exists.
func (s *ProjectService) DeleteSection(ctx context.Context, projectID, sectionID string) error {
	identity, err := s.requireIdentity()
	if err != nil {
		return err
	}

	project := s.findProject(projectID)
	if project == nil {
		return entities.ErrProjectNotFound
	}
	if project.Section(sectionID) == nil {
		return entities.ErrSectionNotFound
	}

	sections := make([]entities.Section, 0, len(project.Sections))
	for _, sec := range project.Sections {
		if sec.ID != sectionID {
			sec.Order = len(sections)
			sections = append(sections, sec)
		}
	}

	ops := []ports.BatchOp{{
		Collection:   ports.CollectionProjects,
		Kind:         ports.OpPatch,
		ID:           projectID,
		ProjectPatch: &entities.ProjectPatch{Sections: &sections},
	}}
	for _, t := range s.ctrl.Tasks() {
		if t.ProjectID == projectID && t.SectionID != nil && *t.SectionID == sectionID {
			ops = append(ops, ports.BatchOp{
				Collection: ports.CollectionTasks,
				Kind:       ports.OpPatch,
				ID:         t.ID,
				TaskPatch:  &entities.TaskPatch{SectionID: entities.NullString()},
			})
		}
	}

	if err := s.store.BatchWrite(ctx, identity.UID, ops); err != nil {
		return fmt.Errorf("failed to delete section: %w", err)
	}

	s.logger.Infow("Section deleted", "project_id", projectID, "section_id", sectionID,
		"cleared_tasks", len(ops)-1)
	s.refreshLocal(ctx)
	return nil
}

func (s *ProjectService) findProject(id string) *entities.Project {
	for _, p := range s.ctrl.Projects() {
		if p.ID == id {
			return &p
		}
	}
	return nil
}

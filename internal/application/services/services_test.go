package services

import (
	"context"
	"testing"
	"time"

	"github.com/fasttrack/core/internal/adapters/identity"
	"github.com/fasttrack/core/internal/adapters/repository"
	"github.com/fasttrack/core/internal/domain/entities"
	"github.com/fasttrack/core/internal/infrastructure/logger"
	"github.com/fasttrack/core/internal/sync"
)

// env wires the local backend end to end: file store, mock identity,
// controller and services, signed in and settled.
type env struct {
	store    *repository.LocalStore
	ctrl     *sync.Controller
	provider *identity.LocalProvider
	projects *ProjectService
	tasks    *TaskService
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// newEnv seeds one project and one task before sign-in so the initial
// watch snapshots are observable; once both have landed, every later
// state change flows through the services' synchronous refresh.
func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	store, err := repository.NewLocalStore(t.TempDir(), logger.NewNop())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	seedProject := entities.Project{ID: "seed-project", OwnerID: "local-user", Name: "Seed", CreatedAt: 1}
	seedTask := entities.Task{
		ID: "seed-task", OwnerID: "local-user", ProjectID: "seed-project",
		Title: "Seed task", Status: entities.StatusTodo, Priority: entities.PriorityMedium, CreatedAt: 1,
	}
	if err := store.CreateProject(ctx, &seedProject); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateTask(ctx, &seedTask); err != nil {
		t.Fatal(err)
	}

	ctrl := sync.New(store, logger.NewNop())
	provider := identity.NewLocalProvider()
	ctrl.Bind(provider)
	t.Cleanup(ctrl.Close)

	if _, err := provider.SignIn(ctx, "", ""); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	waitFor(t, func() bool {
		return len(ctrl.Projects()) == 1 && len(ctrl.Tasks()) == 1
	})

	log := logger.NewNop()
	return &env{
		store:    store,
		ctrl:     ctrl,
		provider: provider,
		projects: NewProjectService(store, ctrl, log),
		tasks:    NewTaskService(store, ctrl, log),
	}
}

func TestCreateProjectBecomesActive(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	project, err := e.projects.Create(ctx, "  Ship v2  ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if project.Name != "Ship v2" {
		t.Errorf("name not trimmed: %q", project.Name)
	}
	if project.Order == nil || *project.Order != 0 {
		t.Errorf("first explicit order should be 0, got %v", project.Order)
	}
	if e.ctrl.ActiveProjectID() != project.ID {
		t.Error("new project should become active in local mode")
	}
}

func TestCreateProjectEmptyName(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	if _, err := e.projects.Create(context.Background(), "   "); err != entities.ErrEmptyName {
		t.Fatalf("got %v, want ErrEmptyName", err)
	}
}

func TestCreateProjectRequiresIdentity(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	if err := e.provider.SignOut(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := e.projects.Create(ctx, "Orphan"); err != entities.ErrNotAuthenticated {
		t.Fatalf("got %v, want ErrNotAuthenticated", err)
	}
}

func TestRenameProjectEmptyIsNoop(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	if err := e.projects.Rename(ctx, "seed-project", "   "); err != nil {
		t.Fatalf("empty rename should be a silent no-op, got %v", err)
	}
	if e.ctrl.Projects()[0].Name != "Seed" {
		t.Error("name should be unchanged")
	}

	if err := e.projects.Rename(ctx, "seed-project", "Renamed"); err != nil {
		t.Fatal(err)
	}
	if e.ctrl.Projects()[0].Name != "Renamed" {
		t.Error("rename should apply")
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	if err := e.projects.Delete(ctx, "seed-project"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(e.ctrl.Projects()) != 0 {
		t.Error("project should be gone")
	}
	if len(e.ctrl.Tasks()) != 0 {
		t.Error("tasks should be cascade-deleted")
	}
	if e.ctrl.ActiveProjectID() != "" {
		t.Error("active project should clear when the last project goes")
	}
}

func TestReorderRewritesAllOrders(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.projects.Create(ctx, "Second"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.projects.Create(ctx, "Third"); err != nil {
		t.Fatal(err)
	}

	// Move the last sidebar entry to the front.
	projects := e.ctrl.Projects()
	last := projects[len(projects)-1]

	if err := e.projects.Reorder(ctx, last.ID, 0); err != nil {
		t.Fatalf("Reorder: %v", err)
	}

	projects = e.ctrl.Projects()
	if projects[0].ID != last.ID {
		t.Fatalf("moved project should be first, got %s", projects[0].ID)
	}
	for i := range projects {
		if projects[i].Order == nil || *projects[i].Order != i {
			t.Errorf("project %d order = %v, want %d", i, projects[i].Order, i)
		}
	}
}

func TestReorderUnknownProject(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	err := e.projects.Reorder(context.Background(), "missing", 0)
	if err != entities.ErrProjectNotFound {
		t.Fatalf("got %v, want ErrProjectNotFound", err)
	}
}

func TestSectionLifecycle(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	section, err := e.projects.AddSection(ctx, "seed-project", "Backend")
	if err != nil {
		t.Fatalf("AddSection: %v", err)
	}
	if section.Order != 0 {
		t.Errorf("first section order = %d, want 0", section.Order)
	}

	if err := e.projects.RenameSection(ctx, "seed-project", section.ID, "Platform"); err != nil {
		t.Fatalf("RenameSection: %v", err)
	}
	got := e.ctrl.Projects()[0].Section(section.ID)
	if got == nil || got.Name != "Platform" {
		t.Fatalf("section rename not applied: %+v", got)
	}

	if err := e.projects.RenameSection(ctx, "seed-project", "missing", "x"); err != entities.ErrSectionNotFound {
		t.Fatalf("got %v, want ErrSectionNotFound", err)
	}
}

func TestDeleteSectionUnfilesTasks(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	section, err := e.projects.AddSection(ctx, "seed-project", "Doomed")
	if err != nil {
		t.Fatal(err)
	}
	task, err := e.tasks.Add(ctx, "Filed task", "", &section.ID)
	if err != nil {
		t.Fatal(err)
	}

	if err := e.projects.DeleteSection(ctx, "seed-project", section.ID); err != nil {
		t.Fatalf("DeleteSection: %v", err)
	}

	if e.ctrl.Projects()[0].Section(section.ID) != nil {
		t.Error("section should be removed")
	}
	got := e.ctrl.Task(task.ID)
	if got == nil {
		t.Fatal("task vanished")
	}
	if got.SectionID != nil {
		t.Error("task should be unfiled, not deleted, when its section goes")
	}
}

func TestAddTaskDefaults(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	task, err := e.tasks.Add(context.Background(), "  Wire the API  ", "  desc  ", nil)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if task.Title != "Wire the API" || task.Description != "desc" {
		t.Errorf("fields not trimmed: %+v", task)
	}
	if task.Status != entities.StatusTodo || task.Priority != entities.PriorityMedium {
		t.Errorf("defaults wrong: status=%s priority=%s", task.Status, task.Priority)
	}
	if task.ProjectID != "seed-project" {
		t.Errorf("task should land in the active project, got %s", task.ProjectID)
	}
}

func TestAddTaskValidation(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.tasks.Add(ctx, "   ", "", nil); err != entities.ErrEmptyTitle {
		t.Fatalf("got %v, want ErrEmptyTitle", err)
	}

	// No active project left after deleting the only one.
	if err := e.projects.Delete(ctx, "seed-project"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.tasks.Add(ctx, "Homeless", "", nil); err != entities.ErrNoActiveProject {
		t.Fatalf("got %v, want ErrNoActiveProject", err)
	}
}

func TestUpdateTaskRejectsEmptyTitle(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	empty := "   "
	err := e.tasks.Update(context.Background(), "seed-task", entities.TaskPatch{Title: &empty})
	if err != entities.ErrEmptyTitle {
		t.Fatalf("got %v, want ErrEmptyTitle", err)
	}
}

func TestCycleStatusAndPriority(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	status, err := e.tasks.CycleStatus(ctx, "seed-task")
	if err != nil {
		t.Fatalf("CycleStatus: %v", err)
	}
	if status != entities.StatusTest {
		t.Errorf("TODO should cycle to TEST, got %s", status)
	}

	priority, err := e.tasks.CyclePriority(ctx, "seed-task")
	if err != nil {
		t.Fatalf("CyclePriority: %v", err)
	}
	if priority != entities.PriorityHigh {
		t.Errorf("MEDIUM should cycle to HIGH, got %s", priority)
	}

	got := e.ctrl.Task("seed-task")
	if got.Status != entities.StatusTest || got.Priority != entities.PriorityHigh {
		t.Errorf("cycles not persisted: %+v", got)
	}

	if _, err := e.tasks.CycleStatus(ctx, "missing"); err != entities.ErrTaskNotFound {
		t.Fatalf("got %v, want ErrTaskNotFound", err)
	}
}

func TestSoftDeleteAndRestore(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	if err := e.tasks.SoftDelete(ctx, "seed-task"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	got := e.ctrl.Task("seed-task")
	if got == nil || !got.Deleted() {
		t.Fatal("task should be retained but marked deleted")
	}
	if len(e.tasks.List("")) != 0 {
		t.Error("soft-deleted task should be hidden from the display list")
	}

	if err := e.tasks.Restore(ctx, "seed-task"); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if e.ctrl.Task("seed-task").Deleted() {
		t.Error("restored task should not be deleted")
	}
	if len(e.tasks.List("")) != 1 {
		t.Error("restored task should reappear in the display list")
	}
}

func TestBulkStatusClearsSelection(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	other, err := e.tasks.Add(ctx, "Another", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	e.ctrl.ToggleSelection("seed-task")
	e.ctrl.ToggleSelection(other.ID)

	err = e.tasks.BulkStatus(ctx, []string{"seed-task", other.ID}, entities.StatusDone)
	if err != nil {
		t.Fatalf("BulkStatus: %v", err)
	}

	for _, id := range []string{"seed-task", other.ID} {
		if got := e.ctrl.Task(id); got.Status != entities.StatusDone {
			t.Errorf("task %s status = %s, want DONE", id, got.Status)
		}
	}
	if len(e.ctrl.Selection()) != 0 {
		t.Error("bulk operation should clear the selection")
	}

	if err := e.tasks.BulkStatus(ctx, []string{"x"}, "NOPE"); err != entities.ErrInvalidStatus {
		t.Fatalf("got %v, want ErrInvalidStatus", err)
	}
}

func TestBulkSoftDelete(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	other, err := e.tasks.Add(ctx, "Another", "", nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := e.tasks.BulkSoftDelete(ctx, []string{"seed-task", other.ID}); err != nil {
		t.Fatalf("BulkSoftDelete: %v", err)
	}
	if len(e.tasks.List("")) != 0 {
		t.Error("all tasks should be hidden after bulk delete")
	}
	if len(e.ctrl.Tasks()) != 2 {
		t.Error("soft delete should retain the records")
	}
}

func TestBulkCopyText(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	multiline, err := e.tasks.Add(ctx, "Deploy", "step one\nstep two", nil)
	if err != nil {
		t.Fatal(err)
	}

	text := e.tasks.BulkCopyText([]string{"seed-task", multiline.ID, "missing"})
	want := "- Seed task\n- Deploy step one step two\n"
	if text != want {
		t.Errorf("BulkCopyText = %q, want %q", text, want)
	}
}

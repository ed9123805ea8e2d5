package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/fasttrack/core/internal/adapters/identity"
	"github.com/fasttrack/core/internal/domain/entities"
	"github.com/fasttrack/core/internal/infrastructure/logger"
	"github.com/fasttrack/core/internal/ports"
)

// fakeStore is a push-driven test double. Tests feed snapshots and
// errors through the channels handed out by Watch.
type fakeStore struct {
	mu       gosync.Mutex
	projects []entities.Project
	tasks    []entities.Task

	projSnaps chan []entities.Project
	taskSnaps chan []entities.Task
	projErrs  chan error
	taskErrs  chan error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		projSnaps: make(chan []entities.Project, 4),
		taskSnaps: make(chan []entities.Task, 4),
		projErrs:  make(chan error, 4),
		taskErrs:  make(chan error, 4),
	}
}

func (f *fakeStore) Mode() ports.Mode { return ports.ModeCloud }
func (f *fakeStore) Close() error     { return nil }

func (f *fakeStore) ListProjects(context.Context, string) ([]entities.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entities.Project{}, f.projects...), nil
}

func (f *fakeStore) ListTasks(context.Context, string) ([]entities.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entities.Task{}, f.tasks...), nil
}

func (f *fakeStore) CreateProject(context.Context, *entities.Project) error { return nil }
func (f *fakeStore) PatchProject(context.Context, string, string, entities.ProjectPatch) error {
	return nil
}
func (f *fakeStore) DeleteProject(context.Context, string, string) error    { return nil }
func (f *fakeStore) CreateTask(context.Context, *entities.Task) error       { return nil }
func (f *fakeStore) PatchTask(context.Context, string, string, entities.TaskPatch) error {
	return nil
}
func (f *fakeStore) DeleteTask(context.Context, string, string) error           { return nil }
func (f *fakeStore) BatchWrite(context.Context, string, []ports.BatchOp) error { return nil }

func (f *fakeStore) WatchProjects(context.Context, string) (<-chan []entities.Project, <-chan error, error) {
	return f.projSnaps, f.projErrs, nil
}

func (f *fakeStore) WatchTasks(context.Context, string) (<-chan []entities.Task, <-chan error, error) {
	return f.taskSnaps, f.taskErrs, nil
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

func signedInController(t *testing.T) (*Controller, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	ctrl := New(store, logger.NewNop())
	provider := identity.NewLocalProvider()
	ctrl.Bind(provider)
	t.Cleanup(ctrl.Close)

	if _, err := provider.SignIn(context.Background(), "", ""); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	waitFor(t, func() bool { return ctrl.State() == StateAuthenticated })
	return ctrl, store
}

func TestBindResolvesAuthenticatingState(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	ctrl := New(store, logger.NewNop())
	provider := identity.NewLocalProvider()
	ctrl.Bind(provider)
	defer ctrl.Close()

	// The provider calls back immediately with no identity.
	if got := ctrl.State(); got != StateUnauthenticated {
		t.Fatalf("state after bind = %v, want unauthenticated", got)
	}
}

func TestSnapshotSelectsFirstProject(t *testing.T) {
	t.Parallel()
	ctrl, store := signedInController(t)

	deleted := int64(50)
	store.projSnaps <- []entities.Project{
		{ID: "gone", CreatedAt: 10, DeletedAt: &deleted},
		{ID: "second", CreatedAt: 300},
		{ID: "first", CreatedAt: 200},
	}

	waitFor(t, func() bool { return ctrl.ActiveProjectID() == "first" })

	projects := ctrl.Projects()
	if len(projects) != 3 {
		t.Fatalf("got %d projects, want 3", len(projects))
	}
	// Soft-deleted projects stay in the list but are never auto-selected.
	if projects[0].ID != "gone" {
		t.Errorf("sorted head = %s, want gone (oldest)", projects[0].ID)
	}
}

func TestExplicitSelectionSurvivesSnapshots(t *testing.T) {
	t.Parallel()
	ctrl, store := signedInController(t)

	store.projSnaps <- []entities.Project{
		{ID: "a", CreatedAt: 100},
		{ID: "b", CreatedAt: 200},
	}
	waitFor(t, func() bool { return ctrl.ActiveProjectID() == "a" })

	ctrl.SetActiveProject("b")

	store.projSnaps <- []entities.Project{
		{ID: "a", CreatedAt: 100},
		{ID: "b", CreatedAt: 200},
		{ID: "c", CreatedAt: 50},
	}
	waitFor(t, func() bool { return len(ctrl.Projects()) == 3 })

	if got := ctrl.ActiveProjectID(); got != "b" {
		t.Fatalf("explicit selection lost: active = %s, want b", got)
	}
}

func TestDeletedActiveFallsBack(t *testing.T) {
	t.Parallel()
	ctrl, store := signedInController(t)

	store.projSnaps <- []entities.Project{
		{ID: "a", CreatedAt: 100},
		{ID: "b", CreatedAt: 200},
	}
	waitFor(t, func() bool { return ctrl.ActiveProjectID() == "a" })

	deleted := entities.Now()
	store.projSnaps <- []entities.Project{
		{ID: "a", CreatedAt: 100, DeletedAt: &deleted},
		{ID: "b", CreatedAt: 200},
	}

	waitFor(t, func() bool { return ctrl.ActiveProjectID() == "b" })
}

func TestDataErrorFirstWins(t *testing.T) {
	t.Parallel()
	ctrl, store := signedInController(t)

	store.projErrs <- errors.New("first failure")
	waitFor(t, func() bool { return ctrl.DataError() != "" })

	store.taskErrs <- errors.New("second failure")
	time.Sleep(20 * time.Millisecond)

	if got := ctrl.DataError(); got != "first failure" {
		t.Fatalf("DataError = %q, want the first error to stick", got)
	}
}

func TestSignOutClearsEverything(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	ctrl := New(store, logger.NewNop())
	provider := identity.NewLocalProvider()
	ctrl.Bind(provider)
	defer ctrl.Close()

	ctx := context.Background()
	if _, err := provider.SignIn(ctx, "", ""); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return ctrl.State() == StateAuthenticated })

	store.projSnaps <- []entities.Project{{ID: "p1", CreatedAt: 1}}
	store.taskSnaps <- []entities.Task{{ID: "t1", ProjectID: "p1"}}
	store.projErrs <- errors.New("boom")
	waitFor(t, func() bool {
		return len(ctrl.Projects()) == 1 && len(ctrl.Tasks()) == 1 && ctrl.DataError() != ""
	})
	ctrl.ToggleSelection("t1")

	if err := provider.SignOut(ctx); err != nil {
		t.Fatal(err)
	}

	// The broadcaster notifies synchronously, so everything is gone the
	// moment SignOut returns.
	if ctrl.State() != StateUnauthenticated {
		t.Error("state should be unauthenticated")
	}
	if ctrl.Identity() != nil {
		t.Error("identity should be nil")
	}
	if len(ctrl.Projects()) != 0 || len(ctrl.Tasks()) != 0 {
		t.Error("collections should be empty")
	}
	if ctrl.ActiveProjectID() != "" {
		t.Error("active project should be cleared")
	}
	if ctrl.DataError() != "" {
		t.Error("data error should be cleared")
	}
	if len(ctrl.Selection()) != 0 {
		t.Error("selection should be cleared")
	}
}

func TestStaleSnapshotDroppedAfterSignOut(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	ctrl := New(store, logger.NewNop())
	provider := identity.NewLocalProvider()
	ctrl.Bind(provider)
	defer ctrl.Close()

	ctx := context.Background()
	if _, err := provider.SignIn(ctx, "", ""); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return ctrl.State() == StateAuthenticated })

	if err := provider.SignOut(ctx); err != nil {
		t.Fatal(err)
	}

	// A snapshot or error from the cancelled session must never land.
	store.projSnaps <- []entities.Project{{ID: "stale"}}
	store.projErrs <- errors.New("stale error")
	time.Sleep(20 * time.Millisecond)

	if len(ctrl.Projects()) != 0 {
		t.Error("stale snapshot applied after sign-out")
	}
	if ctrl.DataError() != "" {
		t.Error("stale error surfaced after sign-out")
	}
}

func TestProjectSwitchClearsSelection(t *testing.T) {
	t.Parallel()
	ctrl, store := signedInController(t)

	store.projSnaps <- []entities.Project{
		{ID: "a", CreatedAt: 100},
		{ID: "b", CreatedAt: 200},
	}
	waitFor(t, func() bool { return ctrl.ActiveProjectID() == "a" })

	ctrl.ToggleSelection("t1")
	ctrl.ToggleSelection("t2")
	if len(ctrl.Selection()) != 2 {
		t.Fatal("selection should hold two tasks")
	}

	ctrl.SetActiveProject("b")
	if len(ctrl.Selection()) != 0 {
		t.Error("switching projects should clear the selection")
	}

	// Re-selecting the same project is a no-op and keeps the selection.
	ctrl.ToggleSelection("t3")
	ctrl.SetActiveProject("b")
	if len(ctrl.Selection()) != 1 {
		t.Error("re-selecting the active project should not clear the selection")
	}
}

func TestActiveTasksFilterSearchSort(t *testing.T) {
	t.Parallel()
	ctrl, store := signedInController(t)

	store.projSnaps <- []entities.Project{{ID: "p1", CreatedAt: 1}}
	deleted := entities.Now()
	store.taskSnaps <- []entities.Task{
		{ID: "t1", ProjectID: "p1", Title: "build pipeline", Priority: entities.PriorityLow},
		{ID: "t2", ProjectID: "p1", Title: "Audit deps", Priority: entities.PriorityHigh},
		{ID: "t3", ProjectID: "p1", Title: "removed", Priority: entities.PriorityHigh, DeletedAt: &deleted},
		{ID: "t4", ProjectID: "other", Title: "elsewhere", Priority: entities.PriorityHigh},
	}
	waitFor(t, func() bool { return len(ctrl.Tasks()) == 4 && ctrl.ActiveProjectID() == "p1" })

	tasks := ctrl.ActiveTasks("")
	if len(tasks) != 2 {
		t.Fatalf("got %d display tasks, want 2", len(tasks))
	}
	if tasks[0].ID != "t2" {
		t.Errorf("high priority should sort first, got %s", tasks[0].ID)
	}

	found := ctrl.ActiveTasks("PIPELINE")
	if len(found) != 1 || found[0].ID != "t1" {
		t.Errorf("search failed: %+v", found)
	}
}

func TestRefreshReappliesStoreState(t *testing.T) {
	t.Parallel()
	ctrl, store := signedInController(t)

	store.mu.Lock()
	store.projects = []entities.Project{{ID: "p1", CreatedAt: 1}}
	store.tasks = []entities.Task{{ID: "t1", ProjectID: "p1"}}
	store.mu.Unlock()

	if err := ctrl.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(ctrl.Projects()) != 1 || len(ctrl.Tasks()) != 1 {
		t.Error("refresh should load both collections")
	}
	if ctrl.ActiveProjectID() != "p1" {
		t.Error("refresh should derive the active project")
	}
}

func TestRefreshRequiresIdentity(t *testing.T) {
	t.Parallel()
	ctrl := New(newFakeStore(), logger.NewNop())

	err := ctrl.Refresh(context.Background())
	if !errors.Is(err, entities.ErrNotAuthenticated) {
		t.Fatalf("got %v, want ErrNotAuthenticated", err)
	}
}

func TestMaxProjectOrder(t *testing.T) {
	t.Parallel()
	ctrl, store := signedInController(t)

	if got := ctrl.MaxProjectOrder(); got != -1 {
		t.Fatalf("empty list MaxProjectOrder = %d, want -1", got)
	}

	two, seven := 2, 7
	store.projSnaps <- []entities.Project{
		{ID: "a", Order: &two, CreatedAt: 1},
		{ID: "b", Order: &seven, CreatedAt: 2},
		{ID: "c", CreatedAt: 3},
	}
	waitFor(t, func() bool { return ctrl.MaxProjectOrder() == 7 })
}

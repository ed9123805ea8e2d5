// Package sync owns the in-memory projects/tasks collections, keeps them
// consistent with whichever persistence backend is active, and tracks the
// identity session and active-project selection.
package sync

import (
	"context"
	gosync "sync"

	"github.com/fasttrack/core/internal/domain/entities"
	"github.com/fasttrack/core/internal/infrastructure/logger"
	"github.com/fasttrack/core/internal/ports"
)

// State is the identity session state.
type State int

const (
	// StateUnauthenticated is the initial state and the state after
	// sign-out.
	StateUnauthenticated State = iota
	// StateAuthenticating is the transient state while the identity
	// provider resolves the session.
	StateAuthenticating
	// StateAuthenticated drives the live subscriptions.
	StateAuthenticated
)

// session scopes one authenticated subscription lifetime. Snapshots and
// errors from a cancelled session are dropped, so a permission error from
// a stale subscription can never resurface after sign-out.
type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	owner  string
}

// Controller is the synchronization controller.
type Controller struct {
	store  ports.Store
	logger *logger.Logger

	mu              gosync.RWMutex
	state           State
	identity        *ports.Identity
	projects        []entities.Project
	tasks           []entities.Task
	activeProjectID string
	dataErr         string
	selected        map[string]struct{}
	session         *session
	unbind          func()
}

// New returns a controller over the given store.
func New(store ports.Store, log *logger.Logger) *Controller {
	return &Controller{
		store:    store,
		logger:   log.WithComponent("sync"),
		selected: make(map[string]struct{}),
	}
}

// Bind subscribes the controller to identity changes. The provider calls
// back immediately with the current state, resolving the transient
// Authenticating state before Bind returns.
func (c *Controller) Bind(provider ports.IdentityProvider) {
	c.mu.Lock()
	c.state = StateAuthenticating
	c.mu.Unlock()

	c.unbind = provider.OnChange(c.setIdentity)
}

// Close cancels the active session and detaches from the identity
// provider.
func (c *Controller) Close() {
	if c.unbind != nil {
		c.unbind()
		c.unbind = nil
	}
	c.setIdentity(nil)
}

// setIdentity drives the session state machine. Sign-out synchronously
// clears projects, tasks, the active selection and the in-flight task
// selection before returning.
func (c *Controller) setIdentity(identity *ports.Identity) {
	c.mu.Lock()

	if c.session != nil {
		c.session.cancel()
		c.session = nil
	}

	if identity == nil {
		c.state = StateUnauthenticated
		c.identity = nil
		c.projects = nil
		c.tasks = nil
		c.activeProjectID = ""
		c.dataErr = ""
		c.selected = make(map[string]struct{})
		c.mu.Unlock()
		return
	}

	c.state = StateAuthenticated
	c.identity = identity
	c.dataErr = ""

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{ctx: ctx, cancel: cancel, owner: identity.UID}
	c.session = s
	c.mu.Unlock()

	c.openWatches(s)
}

// openWatches starts the two collection subscriptions for the session.
// In local mode each watch delivers only the initial snapshot; mutation
// operations call Refresh afterwards.
func (c *Controller) openWatches(s *session) {
	projects, projErrs, err := c.store.WatchProjects(s.ctx, s.owner)
	if err != nil {
		c.reportError(s, err)
		return
	}
	tasks, taskErrs, err := c.store.WatchTasks(s.ctx, s.owner)
	if err != nil {
		c.reportError(s, err)
		return
	}

	go func() {
		for {
			select {
			case <-s.ctx.Done():
				return
			case snap, ok := <-projects:
				if !ok {
					return
				}
				c.applyProjects(s, snap)
			case err, ok := <-projErrs:
				if ok && err != nil {
					c.reportError(s, err)
				}
			}
		}
	}()

	go func() {
		for {
			select {
			case <-s.ctx.Done():
				return
			case snap, ok := <-tasks:
				if !ok {
					return
				}
				c.applyTasks(s, snap)
			case err, ok := <-taskErrs:
				if ok && err != nil {
					c.reportError(s, err)
				}
			}
		}
	}()
}

func (c *Controller) applyProjects(s *session, snapshot []entities.Project) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != s {
		return
	}
	c.setProjectsLocked(snapshot)
}

func (c *Controller) applyTasks(s *session, snapshot []entities.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != s {
		return
	}
	c.tasks = snapshot
}

// setProjectsLocked installs a sorted snapshot and re-derives the active
// selection: keep an explicit selection while its project is still
// present and not deleted, otherwise fall back to the first non-deleted
// project in sort order, or none.
func (c *Controller) setProjectsLocked(snapshot []entities.Project) {
	entities.SortProjects(snapshot)
	c.projects = snapshot

	if c.activeProjectID != "" {
		for i := range snapshot {
			if snapshot[i].ID == c.activeProjectID && !snapshot[i].Deleted() {
				return
			}
		}
		c.activeProjectID = ""
	}
	for i := range snapshot {
		if !snapshot[i].Deleted() {
			c.activeProjectID = snapshot[i].ID
			return
		}
	}
}

// reportError records a data error. First error wins; later errors never
// overwrite an already-set message. Errors from stale sessions are
// dropped.
func (c *Controller) reportError(s *session, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != s {
		return
	}
	c.logger.Errorw("Subscription error", "error", err)
	if c.dataErr == "" {
		c.dataErr = err.Error()
	}
}

// Refresh re-reads both collections from the store and reapplies them.
// Local mode has no push channel, so mutation operations call this after
// every write; it is also used after a restore.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.RLock()
	identity := c.identity
	c.mu.RUnlock()
	if identity == nil {
		return entities.ErrNotAuthenticated
	}

	projects, err := c.store.ListProjects(ctx, identity.UID)
	if err != nil {
		return err
	}
	tasks, err := c.store.ListTasks(ctx, identity.UID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil || c.identity.UID != identity.UID {
		return nil
	}
	c.setProjectsLocked(projects)
	c.tasks = tasks
	return nil
}

// State returns the identity session state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Identity returns the signed-in identity, or nil.
func (c *Controller) Identity() *ports.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// Projects returns a copy of the sorted project list.
func (c *Controller) Projects() []entities.Project {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]entities.Project, len(c.projects))
	copy(out, c.projects)
	return out
}

// Tasks returns a copy of the raw task list.
func (c *Controller) Tasks() []entities.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]entities.Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

// Task returns the task with the given ID, or nil.
func (c *Controller) Task(id string) *entities.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.tasks {
		if c.tasks[i].ID == id {
			t := c.tasks[i]
			return &t
		}
	}
	return nil
}

// ActiveProjectID returns the current selection, or "".
func (c *Controller) ActiveProjectID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeProjectID
}

// ActiveProject returns a copy of the selected project, or nil.
func (c *Controller) ActiveProject() *entities.Project {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.projects {
		if c.projects[i].ID == c.activeProjectID {
			p := c.projects[i]
			return &p
		}
	}
	return nil
}

// SetActiveProject switches the selection and clears the task selection
// set, mirroring the view reset that follows a project switch.
func (c *Controller) SetActiveProject(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeProjectID == id {
		return
	}
	c.activeProjectID = id
	c.selected = make(map[string]struct{})
}

// DataError returns the sticky subscription error message, or "".
func (c *Controller) DataError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dataErr
}

// ToggleSelection adds or removes a task from the selection set.
func (c *Controller) ToggleSelection(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.selected[taskID]; ok {
		delete(c.selected, taskID)
	} else {
		c.selected[taskID] = struct{}{}
	}
}

// Selection returns the selected task IDs.
func (c *Controller) Selection() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.selected))
	for id := range c.selected {
		out = append(out, id)
	}
	return out
}

// ClearSelection empties the selection set; bulk operations call this
// after dispatching.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = make(map[string]struct{})
}

// ActiveTasks returns the display list: tasks of the active project that
// are not soft-deleted, optionally narrowed by a case-insensitive
// substring search over title and description, sorted by priority weight
// descending then title ascending.
func (c *Controller) ActiveTasks(query string) []entities.Task {
	c.mu.RLock()
	active := c.activeProjectID
	tasks := make([]entities.Task, 0, len(c.tasks))
	for i := range c.tasks {
		t := c.tasks[i]
		if t.ProjectID != active || t.Deleted() {
			continue
		}
		if !t.MatchesSearch(query) {
			continue
		}
		tasks = append(tasks, t)
	}
	c.mu.RUnlock()

	entities.SortTasksForDisplay(tasks)
	return tasks
}

// MaxProjectOrder returns the highest explicit order among the loaded
// projects, or -1 when none defines one.
func (c *Controller) MaxProjectOrder() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	max := -1
	for i := range c.projects {
		if c.projects[i].Order != nil && *c.projects[i].Order > max {
			max = *c.projects[i].Order
		}
	}
	return max
}

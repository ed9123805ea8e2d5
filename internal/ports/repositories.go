package ports

import (
	"context"

	"github.com/fasttrack/core/internal/domain/entities"
)

// Mode identifies which concrete backend is active. It is decided once at
// process start and never changes at runtime except through an explicit
// reconfigure-and-restart.
type Mode string

const (
	// ModeCloud stores entities in Postgres and pushes changes to
	// watchers; writes only become visible through the subscription.
	ModeCloud Mode = "cloud"
	// ModeLocal stores entities as flat JSON arrays on disk; there is
	// no push channel, the caller refreshes after every write.
	ModeLocal Mode = "local"
)

// Collection names one of the two flat entity collections.
type Collection string

const (
	CollectionProjects Collection = "projects"
	CollectionTasks    Collection = "tasks"
)

// OpKind is the kind of a single batched write.
type OpKind int

const (
	// OpPut upserts a full record by ID (merge semantics: an existing
	// record is replaced wholesale, a missing one is created).
	OpPut OpKind = iota
	// OpPatch applies a partial update to an existing record.
	OpPatch
	// OpDelete removes the record from storage.
	OpDelete
)

// MaxBatchOps is the working per-chunk ceiling for batched writes,
// comfortably under the backend's 500-operation atomic limit.
const MaxBatchOps = 450

// BatchOp is one write inside a batch. Exactly one of the payload fields
// matching the collection and kind is set; a single op never spans more
// than one entity, so chunking on op boundaries can never split an
// entity's update.
type BatchOp struct {
	Collection Collection
	Kind       OpKind
	ID         string

	Project      *entities.Project
	Task         *entities.Task
	ProjectPatch *entities.ProjectPatch
	TaskPatch    *entities.TaskPatch
}

// Store is the capability-uniform persistence surface over the two
// backends. Every mutation accepts a partial payload; callers never
// resend unchanged fields.
type Store interface {
	Mode() Mode

	ListProjects(ctx context.Context, ownerID string) ([]entities.Project, error)
	ListTasks(ctx context.Context, ownerID string) ([]entities.Task, error)

	CreateProject(ctx context.Context, project *entities.Project) error
	PatchProject(ctx context.Context, ownerID, id string, patch entities.ProjectPatch) error
	DeleteProject(ctx context.Context, ownerID, id string) error

	CreateTask(ctx context.Context, task *entities.Task) error
	PatchTask(ctx context.Context, ownerID, id string, patch entities.TaskPatch) error
	DeleteTask(ctx context.Context, ownerID, id string) error

	// BatchWrite applies the ops in chunks of at most MaxBatchOps.
	// Chunks commit sequentially; a failed chunk leaves prior chunks
	// committed.
	BatchWrite(ctx context.Context, ownerID string, ops []BatchOp) error

	// WatchProjects opens a live, owner-scoped subscription delivering
	// full snapshots. The cloud backend pushes a new snapshot after
	// every observed change; the local backend delivers the initial
	// snapshot only. Subscription errors (permission denied and the
	// like) arrive on the error channel without closing the snapshot
	// channel. Both channels close when ctx is cancelled.
	WatchProjects(ctx context.Context, ownerID string) (<-chan []entities.Project, <-chan error, error)
	WatchTasks(ctx context.Context, ownerID string) (<-chan []entities.Task, <-chan error, error)

	Close() error
}

// Identity describes the signed-in user as seen by the rest of the
// system.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// IdentityProvider is the authenticated-identity collaborator: sign-in,
// sign-up, sign-out and a current-user-changed subscription. The local
// backend replaces it with an in-process mock with no real
// authentication.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password, displayName string) (*Identity, error)
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	SignOut(ctx context.Context) error

	// Current returns the signed-in identity, or nil.
	Current() *Identity

	// OnChange registers a callback invoked with the new identity (nil
	// on sign-out) every time the current user changes, and once
	// immediately with the current state. It returns an unsubscribe
	// function.
	OnChange(fn func(*Identity)) (unsubscribe func())
}

// TaskDraft is a candidate task returned by the AI generator.
type TaskDraft struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// TaskGenerator is the external AI collaborator: free-text prompt in,
// task drafts out. Implementations may fail with network, quota or
// malformed-response errors.
type TaskGenerator interface {
	Generate(ctx context.Context, prompt, projectID string) ([]TaskDraft, error)
}

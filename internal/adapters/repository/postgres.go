package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/fasttrack/core/internal/domain/entities"
	"github.com/fasttrack/core/internal/infrastructure/database"
	"github.com/fasttrack/core/internal/infrastructure/logger"
	"github.com/fasttrack/core/internal/ports"
)

// Notification channels, one per collection. The payload is the owner ID
// so watchers can ignore other tenants' changes.
const (
	channelProjects = "fasttrack_projects"
	channelTasks    = "fasttrack_tasks"
)

// PostgresStore is the cloud-mode backend: two flat tables, every row
// tagged with owner_id, live subscriptions via LISTEN/NOTIFY. Every
// mutation notifies the collection channel inside its own transaction so
// watchers observe the change only after commit.
type PostgresStore struct {
	db     *database.DB
	dsn    string
	logger *logger.Logger
}

// NewPostgresStore returns a store over an open connection. The DSN is
// kept for the dedicated listener connections opened by Watch.
func NewPostgresStore(db *database.DB, dsn string, log *logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, dsn: dsn, logger: log}
}

// Mode reports ModeCloud.
func (s *PostgresStore) Mode() ports.Mode { return ports.ModeCloud }

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

type projectRow struct {
	ID        string  `db:"id"`
	OwnerID   string  `db:"owner_id"`
	Name      string  `db:"name"`
	CreatedAt int64   `db:"created_at"`
	Order     *int    `db:"ord"`
	Sections  []byte  `db:"sections"`
	DeletedAt *int64  `db:"deleted_at"`
}

func (r projectRow) toEntity() (entities.Project, error) {
	p := entities.Project{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
		Order:     r.Order,
		DeletedAt: r.DeletedAt,
	}
	if len(r.Sections) > 0 {
		if err := json.Unmarshal(r.Sections, &p.Sections); err != nil {
			return p, fmt.Errorf("failed to decode sections for project %s: %w", r.ID, err)
		}
	}
	return p, nil
}

// ListProjects returns every project owned by ownerID.
func (s *PostgresStore) ListProjects(ctx context.Context, ownerID string) ([]entities.Project, error) {
	var rows []projectRow
	query := `SELECT id, owner_id, name, created_at, ord, sections, deleted_at
	          FROM projects WHERE owner_id = $1`
	if err := s.db.DB.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, mapPgError("list projects", err)
	}

	projects := make([]entities.Project, 0, len(rows))
	for _, r := range rows {
		p, err := r.toEntity()
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// ListTasks returns every task owned by ownerID.
func (s *PostgresStore) ListTasks(ctx context.Context, ownerID string) ([]entities.Task, error) {
	var tasks []entities.Task
	query := `SELECT id, owner_id, project_id, section_id, title, description,
	                 status, priority, created_at, deleted_at
	          FROM tasks WHERE owner_id = $1`
	if err := s.db.DB.SelectContext(ctx, &tasks, query, ownerID); err != nil {
		return nil, mapPgError("list tasks", err)
	}
	return tasks, nil
}

// CreateProject inserts the project and notifies watchers.
func (s *PostgresStore) CreateProject(ctx context.Context, project *entities.Project) error {
	return s.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if err := insertProject(ctx, tx, project); err != nil {
			return err
		}
		return notify(ctx, tx, channelProjects, project.OwnerID)
	})
}

// PatchProject applies a partial update to the matching row.
func (s *PostgresStore) PatchProject(ctx context.Context, ownerID, id string, patch entities.ProjectPatch) error {
	return s.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if err := patchProjectTx(ctx, tx, ownerID, id, patch); err != nil {
			return err
		}
		return notify(ctx, tx, channelProjects, ownerID)
	})
}

// DeleteProject removes the project row. Cascading task deletion is the
// caller's responsibility; cloud mode deletes tasks individually with no
// atomicity across the project and its tasks.
func (s *PostgresStore) DeleteProject(ctx context.Context, ownerID, id string) error {
	return s.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM projects WHERE id = $1 AND owner_id = $2`, id, ownerID); err != nil {
			return mapPgError("delete project", err)
		}
		return notify(ctx, tx, channelProjects, ownerID)
	})
}

// CreateTask inserts the task and notifies watchers.
func (s *PostgresStore) CreateTask(ctx context.Context, task *entities.Task) error {
	return s.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if err := insertTask(ctx, tx, task); err != nil {
			return err
		}
		return notify(ctx, tx, channelTasks, task.OwnerID)
	})
}

// PatchTask applies a partial update to the matching row.
func (s *PostgresStore) PatchTask(ctx context.Context, ownerID, id string, patch entities.TaskPatch) error {
	return s.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if err := patchTaskTx(ctx, tx, ownerID, id, patch); err != nil {
			return err
		}
		return notify(ctx, tx, channelTasks, ownerID)
	})
}

// DeleteTask removes the task row.
func (s *PostgresStore) DeleteTask(ctx context.Context, ownerID, id string) error {
	return s.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM tasks WHERE id = $1 AND owner_id = $2`, id, ownerID); err != nil {
			return mapPgError("delete task", err)
		}
		return notify(ctx, tx, channelTasks, ownerID)
	})
}

// BatchWrite applies the ops in chunks of at most MaxBatchOps. Each chunk
// is one atomic transaction; chunks commit sequentially, so a failed
// chunk leaves prior chunks committed and later ones unapplied.
func (s *PostgresStore) BatchWrite(ctx context.Context, ownerID string, ops []ports.BatchOp) error {
	for i, chunk := range Chunk(ops, ports.MaxBatchOps) {
		chunk := chunk
		err := s.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			touchedProjects, touchedTasks := false, false
			for _, op := range chunk {
				if err := applyOpTx(ctx, tx, ownerID, op); err != nil {
					return err
				}
				switch op.Collection {
				case ports.CollectionProjects:
					touchedProjects = true
				case ports.CollectionTasks:
					touchedTasks = true
				}
			}
			if touchedProjects {
				if err := notify(ctx, tx, channelProjects, ownerID); err != nil {
					return err
				}
			}
			if touchedTasks {
				if err := notify(ctx, tx, channelTasks, ownerID); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("batch chunk %d failed: %w", i+1, err)
		}
	}
	return nil
}

func applyOpTx(ctx context.Context, tx *sqlx.Tx, ownerID string, op ports.BatchOp) error {
	switch op.Collection {
	case ports.CollectionProjects:
		switch op.Kind {
		case ports.OpPut:
			return upsertProject(ctx, tx, op.Project)
		case ports.OpPatch:
			return patchProjectTx(ctx, tx, ownerID, op.ID, *op.ProjectPatch)
		case ports.OpDelete:
			_, err := tx.ExecContext(ctx,
				`DELETE FROM projects WHERE id = $1 AND owner_id = $2`, op.ID, ownerID)
			return mapPgError("batch delete project", err)
		}
	case ports.CollectionTasks:
		switch op.Kind {
		case ports.OpPut:
			return upsertTask(ctx, tx, op.Task)
		case ports.OpPatch:
			return patchTaskTx(ctx, tx, ownerID, op.ID, *op.TaskPatch)
		case ports.OpDelete:
			_, err := tx.ExecContext(ctx,
				`DELETE FROM tasks WHERE id = $1 AND owner_id = $2`, op.ID, ownerID)
			return mapPgError("batch delete task", err)
		}
	}
	return fmt.Errorf("unknown batch op: collection=%s kind=%d", op.Collection, op.Kind)
}

func insertProject(ctx context.Context, tx *sqlx.Tx, p *entities.Project) error {
	sections, err := marshalSections(p.Sections)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO projects (id, owner_id, name, created_at, ord, sections, deleted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.OwnerID, p.Name, p.CreatedAt, p.Order, sections, p.DeletedAt)
	return mapPgError("insert project", err)
}

func upsertProject(ctx context.Context, tx *sqlx.Tx, p *entities.Project) error {
	sections, err := marshalSections(p.Sections)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO projects (id, owner_id, name, created_at, ord, sections, deleted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   owner_id = EXCLUDED.owner_id,
		   name = EXCLUDED.name,
		   created_at = EXCLUDED.created_at,
		   ord = EXCLUDED.ord,
		   sections = EXCLUDED.sections,
		   deleted_at = EXCLUDED.deleted_at`,
		p.ID, p.OwnerID, p.Name, p.CreatedAt, p.Order, sections, p.DeletedAt)
	return mapPgError("upsert project", err)
}

func insertTask(ctx context.Context, tx *sqlx.Tx, t *entities.Task) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO tasks (id, owner_id, project_id, section_id, title, description,
		                    status, priority, created_at, deleted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.OwnerID, t.ProjectID, t.SectionID, t.Title, t.Description,
		t.Status, t.Priority, t.CreatedAt, t.DeletedAt)
	return mapPgError("insert task", err)
}

func upsertTask(ctx context.Context, tx *sqlx.Tx, t *entities.Task) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO tasks (id, owner_id, project_id, section_id, title, description,
		                    status, priority, created_at, deleted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   owner_id = EXCLUDED.owner_id,
		   project_id = EXCLUDED.project_id,
		   section_id = EXCLUDED.section_id,
		   title = EXCLUDED.title,
		   description = EXCLUDED.description,
		   status = EXCLUDED.status,
		   priority = EXCLUDED.priority,
		   created_at = EXCLUDED.created_at,
		   deleted_at = EXCLUDED.deleted_at`,
		t.ID, t.OwnerID, t.ProjectID, t.SectionID, t.Title, t.Description,
		t.Status, t.Priority, t.CreatedAt, t.DeletedAt)
	return mapPgError("upsert task", err)
}

func patchProjectTx(ctx context.Context, tx *sqlx.Tx, ownerID, id string, patch entities.ProjectPatch) error {
	if patch.Empty() {
		return nil
	}

	sets := make([]string, 0, 4)
	args := make([]interface{}, 0, 6)
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Order != nil {
		add("ord", *patch.Order)
	}
	if patch.Sections != nil {
		sections, err := marshalSections(*patch.Sections)
		if err != nil {
			return err
		}
		add("sections", sections)
	}
	if patch.DeletedAt.Defined {
		add("deleted_at", patch.DeletedAt.Value)
	}

	args = append(args, id, ownerID)
	query := fmt.Sprintf(`UPDATE projects SET %s WHERE id = $%d AND owner_id = $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return mapPgError("patch project", err)
	}
	return checkAffected(res, entities.ErrProjectNotFound)
}

func patchTaskTx(ctx context.Context, tx *sqlx.Tx, ownerID, id string, patch entities.TaskPatch) error {
	if patch.Empty() {
		return nil
	}

	sets := make([]string, 0, 6)
	args := make([]interface{}, 0, 8)
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.Priority != nil {
		add("priority", *patch.Priority)
	}
	if patch.SectionID.Defined {
		add("section_id", patch.SectionID.Value)
	}
	if patch.DeletedAt.Defined {
		add("deleted_at", patch.DeletedAt.Value)
	}

	args = append(args, id, ownerID)
	query := fmt.Sprintf(`UPDATE tasks SET %s WHERE id = $%d AND owner_id = $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return mapPgError("patch task", err)
	}
	return checkAffected(res, entities.ErrTaskNotFound)
}

func marshalSections(sections []entities.Section) ([]byte, error) {
	if sections == nil {
		sections = []entities.Section{}
	}
	data, err := json.Marshal(sections)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sections: %w", err)
	}
	return data, nil
}

func notify(ctx context.Context, tx *sqlx.Tx, channel, ownerID string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, channel, ownerID); err != nil {
		return fmt.Errorf("failed to notify %s: %w", channel, err)
	}
	return nil
}

func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// mapPgError translates backend authorization failures into the domain
// permission error so the controller can surface them as a sticky banner.
func mapPgError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "42501" {
		return fmt.Errorf("%s: %w", op, entities.ErrPermissionDenied)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Listener reconnect bounds for Watch subscriptions.
const (
	listenMinReconnect = 2 * time.Second
	listenMaxReconnect = 30 * time.Second
)

// WatchProjects opens a dedicated LISTEN connection and re-queries the
// owner-scoped snapshot on every notification for this owner. Query
// failures go to the error channel without tearing down the snapshot
// stream; stale data keeps rendering.
func (s *PostgresStore) WatchProjects(ctx context.Context, ownerID string) (<-chan []entities.Project, <-chan error, error) {
	return watch(ctx, s, channelProjects, ownerID, s.ListProjects)
}

// WatchTasks is the task-collection counterpart of WatchProjects.
func (s *PostgresStore) WatchTasks(ctx context.Context, ownerID string) (<-chan []entities.Task, <-chan error, error) {
	return watch(ctx, s, channelTasks, ownerID, s.ListTasks)
}

func watch[T any](
	ctx context.Context,
	s *PostgresStore,
	channel, ownerID string,
	query func(context.Context, string) ([]T, error),
) (<-chan []T, <-chan error, error) {
	listener := pq.NewListener(s.dsn, listenMinReconnect, listenMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				s.logger.Warnw("Listener event error", "channel", channel, "error", err)
			}
		})
	if err := listener.Listen(channel); err != nil {
		listener.Close()
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", channel, err)
	}

	snapshots := make(chan []T, 1)
	errs := make(chan error, 1)

	go func() {
		defer close(snapshots)
		defer close(errs)
		defer listener.Close()

		push := func() {
			snap, err := query(ctx, ownerID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				sendLatest(errs, err)
				return
			}
			sendLatest(snapshots, snap)
		}

		push()
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				// n is nil when the connection was re-established;
				// re-query to catch anything missed while down.
				if n == nil || n.Extra == ownerID {
					push()
				}
			}
		}
	}()

	return snapshots, errs, nil
}

// sendLatest delivers v on a 1-buffered channel, replacing any undrained
// previous value so slow consumers always see the newest snapshot.
func sendLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

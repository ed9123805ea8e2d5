package entities

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"
)

// Common errors
var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrTaskNotFound     = errors.New("task not found")
	ErrSectionNotFound  = errors.New("section not found")
	ErrEmptyName        = errors.New("name must not be empty")
	ErrEmptyTitle       = errors.New("title must not be empty")
	ErrEmptyPrompt      = errors.New("prompt must not be empty")
	ErrNoActiveProject  = errors.New("no active project selected")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidStatus    = errors.New("invalid task status")
	ErrInvalidPriority  = errors.New("invalid task priority")
	ErrInvalidBackup    = errors.New("invalid backup format")
	ErrPermissionDenied = errors.New("permission denied")
)

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	StatusTodo TaskStatus = "TODO"
	StatusTest TaskStatus = "TEST"
	StatusDone TaskStatus = "DONE"
)

// Valid reports whether s is one of the three known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusTest, StatusDone:
		return true
	}
	return false
}

// Next returns the following status in the fixed TODO→TEST→DONE→TODO cycle.
func (s TaskStatus) Next() TaskStatus {
	switch s {
	case StatusTodo:
		return StatusTest
	case StatusTest:
		return StatusDone
	default:
		return StatusTodo
	}
}

// TaskPriority is the urgency level of a task.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
)

// Valid reports whether p is one of the three known priorities.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Next returns the following priority in the fixed LOW→MEDIUM→HIGH→LOW cycle.
func (p TaskPriority) Next() TaskPriority {
	switch p {
	case PriorityLow:
		return PriorityMedium
	case PriorityMedium:
		return PriorityHigh
	default:
		return PriorityLow
	}
}

// Weight returns the sort weight of a priority; higher sorts first.
func (p TaskPriority) Weight() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

// Section is a named sub-grouping of tasks embedded inside a project.
type Section struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// Project groups tasks for a single owner. Sections are embedded in the
// project record, not stored as a separate collection.
type Project struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"userId" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt int64     `json:"createdAt" db:"created_at"`
	Order     *int      `json:"order,omitempty" db:"ord"`
	Sections  []Section `json:"sections,omitempty" db:"-"`
	DeletedAt *int64    `json:"deletedAt,omitempty" db:"deleted_at"`
}

// Deleted reports whether the project has been soft-deleted.
func (p *Project) Deleted() bool { return p.DeletedAt != nil }

// Section returns the embedded section with the given ID, or nil.
func (p *Project) Section(id string) *Section {
	for i := range p.Sections {
		if p.Sections[i].ID == id {
			return &p.Sections[i]
		}
	}
	return nil
}

// Task is a single unit of work inside a project.
type Task struct {
	ID          string       `json:"id" db:"id"`
	OwnerID     string       `json:"userId" db:"owner_id"`
	ProjectID   string       `json:"projectId" db:"project_id"`
	SectionID   *string      `json:"sectionId,omitempty" db:"section_id"`
	Title       string       `json:"title" db:"title"`
	Description string       `json:"description,omitempty" db:"description"`
	Status      TaskStatus   `json:"status" db:"status"`
	Priority    TaskPriority `json:"priority" db:"priority"`
	CreatedAt   int64        `json:"createdAt" db:"created_at"`
	DeletedAt   *int64       `json:"deletedAt,omitempty" db:"deleted_at"`
}

// Deleted reports whether the task has been soft-deleted.
func (t *Task) Deleted() bool { return t.DeletedAt != nil }

// Now returns the current time as epoch milliseconds, the timestamp unit
// used by every entity in the store.
func Now() int64 {
	return time.Now().UnixMilli()
}

// LessProjects is the ordering contract for the project list. Each
// project sorts on the key (explicit order, creation time, ID); a
// project without an explicit order keys after every ordered one.
// Comparing complete keys makes the relation a total order, so any
// permutation of the same set sorts to the same sequence.
func LessProjects(a, b *Project) bool {
	ao, bo := orderKey(a), orderKey(b)
	if ao != bo {
		return ao < bo
	}
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt < b.CreatedAt
	}
	return a.ID < b.ID
}

func orderKey(p *Project) int {
	if p.Order == nil {
		return math.MaxInt
	}
	return *p.Order
}

// SortProjects sorts the slice in place per LessProjects.
func SortProjects(projects []Project) {
	sort.SliceStable(projects, func(i, j int) bool {
		return LessProjects(&projects[i], &projects[j])
	})
}

// SortTasksForDisplay sorts tasks by descending priority weight, then by
// title ascending ignoring case.
func SortTasksForDisplay(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		wi, wj := tasks[i].Priority.Weight(), tasks[j].Priority.Weight()
		if wi != wj {
			return wi > wj
		}
		ti := strings.ToLower(tasks[i].Title)
		tj := strings.ToLower(tasks[j].Title)
		if ti != tj {
			return ti < tj
		}
		return tasks[i].Title < tasks[j].Title
	})
}

// MatchesSearch reports whether the task matches a case-insensitive
// substring search against title or description. An empty query matches
// everything.
func (t *Task) MatchesSearch(query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Title), query) ||
		strings.Contains(strings.ToLower(t.Description), query)
}

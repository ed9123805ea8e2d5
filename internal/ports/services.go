package ports

import "github.com/fasttrack/core/internal/domain/entities"

// Request/response shapes shared between the HTTP adapters and the
// application services.

// RegisterRequest creates a new account (cloud mode only).
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"displayName" validate:"max=120"`
}

// LoginRequest authenticates an existing account. In local mode the
// fields are ignored and the mock identity is returned.
type LoginRequest struct {
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password"`
}

// AuthResponse carries the bearer token issued on sign-in/sign-up.
type AuthResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresIn   int64     `json:"expiresIn"`
	User        *Identity `json:"user"`
}

// CreateProjectRequest creates a project.
type CreateProjectRequest struct {
	Name string `json:"name" validate:"required"`
}

// RenameRequest renames a project or section.
type RenameRequest struct {
	Name string `json:"name" validate:"required"`
}

// ReorderProjectRequest moves a project to a new sidebar position.
type ReorderProjectRequest struct {
	ToIndex int `json:"toIndex" validate:"min=0"`
}

// AddSectionRequest adds a section to a project.
type AddSectionRequest struct {
	Name string `json:"name" validate:"required"`
}

// AddTaskRequest creates a task in the active project.
type AddTaskRequest struct {
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description"`
	SectionID   *string `json:"sectionId,omitempty"`
}

// UpdateTaskRequest is the wire form of a task patch. A present-but-null
// sectionId moves the task to "no section"; an absent one leaves it
// alone, which is why both fields are double pointers after decoding.
type UpdateTaskRequest struct {
	Title       *string                `json:"title,omitempty"`
	Description *string                `json:"description,omitempty"`
	Status      *entities.TaskStatus   `json:"status,omitempty"`
	Priority    *entities.TaskPriority `json:"priority,omitempty"`
	SectionID   **string               `json:"sectionId,omitempty"`
}

// Patch converts the request into a typed TaskPatch.
func (r UpdateTaskRequest) Patch() entities.TaskPatch {
	p := entities.TaskPatch{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Priority:    r.Priority,
	}
	if r.SectionID != nil {
		p.SectionID = entities.NullableString{Defined: true, Value: *r.SectionID}
	}
	return p
}

// MoveTaskRequest updates status and/or section in one combined patch,
// the shape produced by dropping a task onto a column, a section, or a
// (section, status) pair.
type MoveTaskRequest struct {
	Status    *entities.TaskStatus `json:"status,omitempty"`
	SectionID **string             `json:"sectionId,omitempty"`
}

// BulkStatusRequest changes status on an explicit set of selected tasks.
type BulkStatusRequest struct {
	TaskIDs []string            `json:"taskIds" validate:"required,min=1"`
	Status  entities.TaskStatus `json:"status" validate:"required"`
}

// BulkDeleteRequest soft-deletes an explicit set of selected tasks.
type BulkDeleteRequest struct {
	TaskIDs []string `json:"taskIds" validate:"required,min=1"`
}

// GenerateRequest asks the AI collaborator for task drafts.
type GenerateRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

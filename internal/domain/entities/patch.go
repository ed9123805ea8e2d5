package entities

// NullableString is a patch field that distinguishes three states:
// not set (leave unchanged), set to a value, and set to null.
type NullableString struct {
	Defined bool
	Value   *string
}

// SetString returns a NullableString carrying a value.
func SetString(v string) NullableString {
	return NullableString{Defined: true, Value: &v}
}

// NullString returns a NullableString that clears the field.
func NullString() NullableString {
	return NullableString{Defined: true}
}

// NullableInt64 is the int64 counterpart of NullableString.
type NullableInt64 struct {
	Defined bool
	Value   *int64
}

// SetInt64 returns a NullableInt64 carrying a value.
func SetInt64(v int64) NullableInt64 {
	return NullableInt64{Defined: true, Value: &v}
}

// NullInt64 returns a NullableInt64 that clears the field.
func NullInt64() NullableInt64 {
	return NullableInt64{Defined: true}
}

// ProjectPatch is a partial update of a project. Nil pointer fields are
// left unchanged; callers never resend unchanged fields.
type ProjectPatch struct {
	Name     *string
	Order    *int
	Sections *[]Section
	DeletedAt NullableInt64
}

// Empty reports whether the patch would change nothing.
func (p ProjectPatch) Empty() bool {
	return p.Name == nil && p.Order == nil && p.Sections == nil && !p.DeletedAt.Defined
}

// Apply merges the patch into the project in place.
func (p ProjectPatch) Apply(proj *Project) {
	if p.Name != nil {
		proj.Name = *p.Name
	}
	if p.Order != nil {
		proj.Order = p.Order
	}
	if p.Sections != nil {
		proj.Sections = *p.Sections
	}
	if p.DeletedAt.Defined {
		proj.DeletedAt = p.DeletedAt.Value
	}
}

// TaskPatch is a partial update of a task. SectionID and DeletedAt keep
// the absent-vs-null distinction: moving a task to "no section" and
// restoring a soft-deleted task both write an explicit null.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	Priority    *TaskPriority
	SectionID   NullableString
	DeletedAt   NullableInt64
}

// Empty reports whether the patch would change nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && !p.SectionID.Defined && !p.DeletedAt.Defined
}

// Apply merges the patch into the task in place.
func (p TaskPatch) Apply(task *Task) {
	if p.Title != nil {
		task.Title = *p.Title
	}
	if p.Description != nil {
		task.Description = *p.Description
	}
	if p.Status != nil {
		task.Status = *p.Status
	}
	if p.Priority != nil {
		task.Priority = *p.Priority
	}
	if p.SectionID.Defined {
		task.SectionID = p.SectionID.Value
	}
	if p.DeletedAt.Defined {
		task.DeletedAt = p.DeletedAt.Value
	}
}

// Backup is the portable export envelope for a full working set.
type Backup struct {
	Timestamp int64     `json:"timestamp"`
	Version   string    `json:"version"`
	UserID    string    `json:"userId"`
	Source    string    `json:"source"`
	Projects  []Project `json:"projects"`
	Tasks     []Task    `json:"tasks"`
}

// BackupVersion is the format version written into every export.
const BackupVersion = "1.0"

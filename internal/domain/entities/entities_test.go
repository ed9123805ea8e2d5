package entities

import (
	"testing"
)

func TestStatusCycle(t *testing.T) {
	t.Parallel()

	steps := []TaskStatus{StatusTodo, StatusTest, StatusDone, StatusTodo}
	for i := 0; i < len(steps)-1; i++ {
		if got := steps[i].Next(); got != steps[i+1] {
			t.Errorf("Next(%s) = %s, want %s", steps[i], got, steps[i+1])
		}
	}

	// Unknown values fold back to the start of the cycle.
	if got := TaskStatus("BOGUS").Next(); got != StatusTodo {
		t.Errorf("Next(BOGUS) = %s, want %s", got, StatusTodo)
	}
}

func TestPriorityCycle(t *testing.T) {
	t.Parallel()

	steps := []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityLow}
	for i := 0; i < len(steps)-1; i++ {
		if got := steps[i].Next(); got != steps[i+1] {
			t.Errorf("Next(%s) = %s, want %s", steps[i], got, steps[i+1])
		}
	}
}

func TestPriorityWeight(t *testing.T) {
	t.Parallel()

	if PriorityHigh.Weight() <= PriorityMedium.Weight() {
		t.Error("high priority should outweigh medium")
	}
	if PriorityMedium.Weight() <= PriorityLow.Weight() {
		t.Error("medium priority should outweigh low")
	}
}

func TestStatusValid(t *testing.T) {
	t.Parallel()

	for _, s := range []TaskStatus{StatusTodo, StatusTest, StatusDone} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if TaskStatus("DOING").Valid() {
		t.Error("DOING should not be valid")
	}
}

func intPtr(v int) *int { return &v }

func TestSortProjectsExplicitOrder(t *testing.T) {
	t.Parallel()

	projects := []Project{
		{ID: "b", Order: intPtr(2)},
		{ID: "a", Order: intPtr(0)},
		{ID: "c", Order: intPtr(1)},
	}
	SortProjects(projects)

	want := []string{"a", "c", "b"}
	for i, id := range want {
		if projects[i].ID != id {
			t.Fatalf("position %d = %s, want %s", i, projects[i].ID, id)
		}
	}
}

func TestSortProjectsCreatedAtFallback(t *testing.T) {
	t.Parallel()

	// Ordered projects come first; the rest sort by creation time.
	projects := []Project{
		{ID: "new", CreatedAt: 200},
		{ID: "old", CreatedAt: 100},
		{ID: "ordered", CreatedAt: 300, Order: intPtr(5)},
	}
	SortProjects(projects)

	want := []string{"ordered", "old", "new"}
	for i, id := range want {
		if projects[i].ID != id {
			t.Fatalf("position %d = %s, want %s", i, projects[i].ID, id)
		}
	}
}

func TestSortProjectsPermutationInvariant(t *testing.T) {
	t.Parallel()

	// A mix of ordered and unordered projects whose creation times run
	// against the explicit order must still sort the same from every
	// starting arrangement.
	base := []Project{
		{ID: "a", Order: intPtr(1), CreatedAt: 100},
		{ID: "b", CreatedAt: 75},
		{ID: "c", Order: intPtr(2), CreatedAt: 50},
	}

	perms := [][]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}
	want := []string{"a", "c", "b"}
	for _, perm := range perms {
		projects := make([]Project, len(base))
		for i, idx := range perm {
			projects[i] = base[idx]
		}
		SortProjects(projects)
		for i, id := range want {
			if projects[i].ID != id {
				t.Fatalf("permutation %v: position %d = %s, want %s",
					perm, i, projects[i].ID, id)
			}
		}
	}
}

func TestSortProjectsDeterministicTie(t *testing.T) {
	t.Parallel()

	a := []Project{{ID: "x", CreatedAt: 100}, {ID: "y", CreatedAt: 100}}
	b := []Project{{ID: "y", CreatedAt: 100}, {ID: "x", CreatedAt: 100}}
	SortProjects(a)
	SortProjects(b)

	if a[0].ID != b[0].ID || a[1].ID != b[1].ID {
		t.Error("equal-timestamp projects should sort identically regardless of input order")
	}
}

func TestSortTasksForDisplay(t *testing.T) {
	t.Parallel()

	tasks := []Task{
		{Title: "zeta", Priority: PriorityLow},
		{Title: "Beta", Priority: PriorityHigh},
		{Title: "alpha", Priority: PriorityHigh},
		{Title: "gamma", Priority: PriorityMedium},
	}
	SortTasksForDisplay(tasks)

	want := []string{"alpha", "Beta", "gamma", "zeta"}
	for i, title := range want {
		if tasks[i].Title != title {
			t.Fatalf("position %d = %s, want %s", i, tasks[i].Title, title)
		}
	}
}

func TestMatchesSearch(t *testing.T) {
	t.Parallel()

	task := Task{Title: "Deploy Service", Description: "roll out to production"}

	cases := []struct {
		query string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"deploy", true},
		{"SERVICE", true},
		{"production", true},
		{"staging", false},
	}
	for _, tc := range cases {
		if got := task.MatchesSearch(tc.query); got != tc.want {
			t.Errorf("MatchesSearch(%q) = %v, want %v", tc.query, got, tc.want)
		}
	}
}

func TestTaskPatchSectionTristate(t *testing.T) {
	t.Parallel()

	section := "sec-1"
	task := Task{SectionID: &section}

	// Absent leaves the section alone.
	title := "renamed"
	(TaskPatch{Title: &title}).Apply(&task)
	if task.SectionID == nil || *task.SectionID != "sec-1" {
		t.Error("patch without sectionId should not touch the section")
	}

	// Explicit null clears it.
	(TaskPatch{SectionID: NullString()}).Apply(&task)
	if task.SectionID != nil {
		t.Error("null sectionId should clear the section")
	}

	// Explicit value sets it.
	(TaskPatch{SectionID: SetString("sec-2")}).Apply(&task)
	if task.SectionID == nil || *task.SectionID != "sec-2" {
		t.Error("sectionId value should be applied")
	}
}

func TestTaskPatchDeleteRestore(t *testing.T) {
	t.Parallel()

	var task Task
	(TaskPatch{DeletedAt: SetInt64(12345)}).Apply(&task)
	if !task.Deleted() {
		t.Fatal("task should be soft-deleted")
	}

	(TaskPatch{DeletedAt: NullInt64()}).Apply(&task)
	if task.Deleted() {
		t.Fatal("restored task should not be deleted")
	}
}

func TestPatchEmpty(t *testing.T) {
	t.Parallel()

	if !(TaskPatch{}).Empty() {
		t.Error("zero task patch should be empty")
	}
	if (TaskPatch{SectionID: NullString()}).Empty() {
		t.Error("null sectionId is a change, not empty")
	}
	if !(ProjectPatch{}).Empty() {
		t.Error("zero project patch should be empty")
	}
	name := "x"
	if (ProjectPatch{Name: &name}).Empty() {
		t.Error("name change should not be empty")
	}
}

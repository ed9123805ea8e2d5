package services

import (
	"context"
	"errors"
	"testing"

	"github.com/fasttrack/core/internal/domain/entities"
	"github.com/fasttrack/core/internal/infrastructure/logger"
	"github.com/fasttrack/core/internal/ports"
)

type fakeGenerator struct {
	drafts []ports.TaskDraft
	err    error
	prompt string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt, _ string) ([]ports.TaskDraft, error) {
	f.prompt = prompt
	return f.drafts, f.err
}

func TestGenerateMaterializesDrafts(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	gen := &fakeGenerator{drafts: []ports.TaskDraft{
		{Title: "Set up CI", Description: "pipeline config"},
		{Title: "", Description: "draft with no title"},
	}}
	svc := NewGenerateService(e.store, e.ctrl, gen, logger.NewNop())

	tasks, err := svc.Generate(context.Background(), "  ship the project  ")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gen.prompt != "ship the project" {
		t.Errorf("prompt not trimmed: %q", gen.prompt)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}

	for _, task := range tasks {
		if task.ProjectID != "seed-project" {
			t.Errorf("task landed in %s, want the active project", task.ProjectID)
		}
		if task.Status != entities.StatusTodo || task.Priority != entities.PriorityMedium {
			t.Errorf("generated task should use defaults: %+v", task)
		}
	}
	if tasks[1].Title != "Untitled Task" {
		t.Errorf("empty draft title = %q, want Untitled Task", tasks[1].Title)
	}

	// Seed task plus the two generated ones.
	if got := len(e.ctrl.Tasks()); got != 3 {
		t.Errorf("store holds %d tasks, want 3", got)
	}
}

func TestGenerateFailureWritesNothing(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	svc := NewGenerateService(e.store, e.ctrl, gen, logger.NewNop())

	if _, err := svc.Generate(context.Background(), "anything"); err == nil {
		t.Fatal("expected error from failed generation")
	}
	if got := len(e.ctrl.Tasks()); got != 1 {
		t.Errorf("failed generation must not create tasks, store holds %d", got)
	}
}

func TestGenerateValidation(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	gen := &fakeGenerator{drafts: []ports.TaskDraft{{Title: "x"}}}
	svc := NewGenerateService(e.store, e.ctrl, gen, logger.NewNop())
	ctx := context.Background()

	if _, err := svc.Generate(ctx, "   "); err != entities.ErrEmptyPrompt {
		t.Fatalf("got %v, want ErrEmptyPrompt", err)
	}

	if err := e.projects.Delete(ctx, "seed-project"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Generate(ctx, "plan"); err != entities.ErrNoActiveProject {
		t.Fatalf("got %v, want ErrNoActiveProject", err)
	}
}

func TestGenerateDisabled(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	svc := NewGenerateService(e.store, e.ctrl, nil, logger.NewNop())

	if svc.Enabled() {
		t.Error("service without a generator should report disabled")
	}
	if _, err := svc.Generate(context.Background(), "plan"); err == nil {
		t.Fatal("expected error when no generator is configured")
	}
}

func TestGenerateEmptyDrafts(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	gen := &fakeGenerator{}
	svc := NewGenerateService(e.store, e.ctrl, gen, logger.NewNop())

	tasks, err := svc.Generate(context.Background(), "plan")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("no drafts should mean no tasks, got %d", len(tasks))
	}
}

package corrections

import (
	"context"
	"testing"
	"time"

	"github.com/jnyross/secondbrain/internal/audit"
	"github.com/jnyross/secondbrain/internal/kb"
	"github.com/jnyross/secondbrain/internal/patterns"
	"github.com/jnyross/secondbrain/internal/recent"
	"github.com/jnyross/secondbrain/internal/softdelete"
	"github.com/jnyross/secondbrain/internal/types"
)

func TestIsCorrection(t *testing.T) {
	cases := map[string]bool{
		"That's wrong":              true,
		"no, call him tomorrow":     true,
		"I meant Sarah not Sam":     true,
		"actually let's do 5pm":     true,
		"undo":                      true,
		"cancel that":               true,
		"buy milk tomorrow":         false,
		"call Sarah at 3pm":         false,
	}
	for text, want := range cases {
		if got := IsCorrection(text); got != want {
			t.Errorf("IsCorrection(%q) = %v, want %v", text, got, want)
		}
	}
}

func TestIsUndoOrDelete(t *testing.T) {
	if !IsUndoOrDelete("undo") {
		t.Fatal("expected undo to match")
	}
	if IsUndoOrDelete("that's wrong, I meant 5pm") {
		t.Fatal("expected plain correction to not match undo")
	}
}

func TestExtract_ChangeXToY(t *testing.T) {
	e := Extract("change milk to bread")
	if !e.Ok || e.Wrong != "milk" || e.Correct != "bread" {
		t.Fatalf("got %+v", e)
	}
}

func TestExtract_ItWasXNotY(t *testing.T) {
	e := Extract("it was Sam not Sarah")
	if !e.Ok || e.Wrong != "Sam" || e.Correct != "Sarah" {
		t.Fatalf("got %+v", e)
	}
}

func TestExtract_IMeant(t *testing.T) {
	e := Extract("I meant Sarah")
	if !e.Ok || e.Correct != "Sarah" {
		t.Fatalf("got %+v", e)
	}
}

func TestExtract_Unparseable(t *testing.T) {
	e := Extract("that's wrong")
	if e.Ok {
		t.Fatalf("expected no extraction, got %+v", e)
	}
}

func newHandler() (*Handler, kb.Gateway, *recent.ActionRing) {
	gw := kb.NewMemory()
	auditor := audit.New(gw, nil)
	actions := recent.NewActionRing(10, 30*time.Minute)
	deletedRing := recent.NewDeletedRing(50, softdelete.UndoWindow())
	deletes := softdelete.New(gw, auditor, deletedRing)
	detector := patterns.NewDetector()
	return New(gw, auditor, actions, deletes, detector), gw, actions
}

func TestProcess_NoRecentAction(t *testing.T) {
	h, _, _ := newHandler()
	reply, handled, err := h.Process(context.Background(), "that's wrong, I meant 5pm", "chat1", "msg1")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !handled {
		t.Fatal("expected handled=true")
	}
	if reply != "No recent action to fix. What would you like to change?" {
		t.Fatalf("got %q", reply)
	}
}

func TestProcess_NotACorrection(t *testing.T) {
	h, _, _ := newHandler()
	_, handled, err := h.Process(context.Background(), "buy milk tomorrow", "chat1", "msg1")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if handled {
		t.Fatal("expected handled=false for a non-correction message")
	}
}

func TestProcess_FieldCorrection(t *testing.T) {
	h, gw, actions := newHandler()
	ctx := context.Background()

	task, err := gw.CreateTask(ctx, types.Task{Title: "call Sam"})
	if err != nil {
		t.Fatalf("createTask: %v", err)
	}
	actions.Track("chat1", types.RecentAction{
		EntityType: "task", EntityID: task.ID, Title: task.Title,
		Timestamp: time.Now().UTC(), ChatID: "chat1",
	}, time.Now().UTC())

	reply, handled, err := h.Process(ctx, "I meant call Sarah", "chat1", "msg1")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !handled {
		t.Fatal("expected handled=true")
	}
	want := `Fixed. Changed "call Sam" to "call Sarah".`
	if reply != want {
		t.Fatalf("got %q, want %q", reply, want)
	}

	tasks, _ := gw.QueryTasks(ctx, kb.TaskFilter{})
	if len(tasks) != 1 || tasks[0].Title != "call Sarah" {
		t.Fatalf("task not updated: %+v", tasks)
	}
}

func TestProcess_UndoDelegation(t *testing.T) {
	h, gw, actions := newHandler()
	ctx := context.Background()

	task, _ := gw.CreateTask(ctx, types.Task{Title: "old task"})
	actions.Track("chat1", types.RecentAction{
		EntityType: "task", EntityID: task.ID, Title: task.Title,
		Timestamp: time.Now().UTC(), ChatID: "chat1",
	}, time.Now().UTC())

	reply, handled, err := h.Process(ctx, "cancel that", "chat1", "msg1")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !handled {
		t.Fatal("expected handled=true")
	}
	if reply == "" {
		t.Fatal("expected a reply message from soft-delete")
	}

	tasks, _ := gw.QueryTasks(ctx, kb.TaskFilter{})
	if len(tasks) != 0 {
		t.Fatalf("expected task hidden after delegated delete, got %d", len(tasks))
	}
}

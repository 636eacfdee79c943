package softdelete

import (
	"context"
	"testing"
	"time"

	"github.com/jnyross/secondbrain/internal/audit"
	"github.com/jnyross/secondbrain/internal/kb"
	"github.com/jnyross/secondbrain/internal/recent"
	"github.com/jnyross/secondbrain/internal/types"
)

func newService() (*Service, kb.Gateway) {
	gw := kb.NewMemory()
	auditor := audit.New(gw, nil)
	ring := recent.NewDeletedRing(50, UndoWindow())
	return New(gw, auditor, ring), gw
}

func TestSoftDeleteThenUndo(t *testing.T) {
	svc, gw := newService()
	ctx := context.Background()

	task, err := gw.CreateTask(ctx, types.Task{Title: "buy milk"})
	if err != nil {
		t.Fatalf("createTask: %v", err)
	}

	result, err := svc.SoftDelete(ctx, "task", task.ID, task.Title, "chat1", "msg1")
	if err != nil || !result.Success {
		t.Fatalf("softDelete: result=%+v err=%v", result, err)
	}

	tasks, _ := gw.QueryTasks(ctx, kb.TaskFilter{})
	if len(tasks) != 0 {
		t.Fatalf("expected task hidden from default query, got %d", len(tasks))
	}

	undo, err := svc.UndoLastDelete(ctx, "chat1")
	if err != nil || !undo.Success {
		t.Fatalf("undo: result=%+v err=%v", undo, err)
	}

	tasks, _ = gw.QueryTasks(ctx, kb.TaskFilter{})
	if len(tasks) != 1 {
		t.Fatalf("expected task restored, got %d", len(tasks))
	}
}

func TestUndoWithNothingPending(t *testing.T) {
	svc, _ := newService()
	result, err := svc.UndoLastDelete(context.Background(), "chat-empty")
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure, nothing to undo")
	}
}

func TestRestoreByID_WorksEvenIfUntracked(t *testing.T) {
	svc, gw := newService()
	ctx := context.Background()
	task, _ := gw.CreateTask(ctx, types.Task{Title: "x"})
	_ = gw.SoftDeleteTask(ctx, task.ID)

	result, err := svc.RestoreByID(ctx, "task", task.ID, "chat1")
	if err != nil || !result.Success {
		t.Fatalf("restoreByID: result=%+v err=%v", result, err)
	}
}

func TestExpiredDeletionNotUndoableButListedAsExpiredExcluded(t *testing.T) {
	gw := kb.NewMemory()
	auditor := audit.New(gw, nil)
	ring := recent.NewDeletedRing(50, UndoWindow())
	svc := New(gw, auditor, ring)
	ctx := context.Background()

	task, _ := gw.CreateTask(ctx, types.Task{Title: "old"})
	_, err := svc.SoftDelete(ctx, "task", task.ID, task.Title, "chat1", "msg1")
	if err != nil {
		t.Fatalf("softDelete: %v", err)
	}

	// Simulate 31 days passing by directly manipulating the ring via a fresh one with
	// an action timestamped in the past.
	expiredRing := recent.NewDeletedRing(50, UndoWindow())
	expiredRing.Track("chat1", types.DeletedAction{
		EntityType: "task", EntityID: task.ID, Title: task.Title,
		DeletedAt: time.Now().UTC().Add(-31 * 24 * time.Hour), ChatID: "chat1",
	})
	if _, ok := expiredRing.PopLastUndoable("chat1", time.Now().UTC()); ok {
		t.Fatalf("expected expired deletion to not be undoable via pop")
	}
	if len(expiredRing.PendingDeletes("chat1", time.Now().UTC())) != 0 {
		t.Fatalf("expected expired deletion excluded from pending list")
	}
}

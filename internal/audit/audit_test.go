package audit

import (
	"context"
	"testing"

	"github.com/jnyross/secondbrain/internal/kb"
)

func TestCheckAndLog_NewThenDuplicate(t *testing.T) {
	gw := kb.NewMemory()
	logger := New(gw, nil)
	ctx := context.Background()
	key := TransportKey("telegram", "chat1", "msg1")

	dup, _, err := logger.CheckAndLog(ctx, key)
	if err != nil {
		t.Fatalf("checkAndLog: %v", err)
	}
	if dup {
		t.Fatalf("expected first check to be new")
	}

	if _, err := logger.LogCapture(ctx, key, "call mom", nil); err != nil {
		t.Fatalf("logCapture: %v", err)
	}

	dup, originalID, err := logger.CheckAndLog(ctx, key)
	if err != nil {
		t.Fatalf("checkAndLog second: %v", err)
	}
	if !dup {
		t.Fatalf("expected second check to be duplicate")
	}
	if originalID == "" {
		t.Fatalf("expected original log id")
	}
}

func TestLogDelete_SetsUndoWindow(t *testing.T) {
	gw := kb.NewMemory()
	logger := New(gw, nil)
	entry, err := logger.LogDelete(context.Background(), "k1", "task-1", LogParams{ActionTaken: "removed"})
	if err != nil {
		t.Fatalf("logDelete: %v", err)
	}
	if entry.UndoAvailableUntil == nil {
		t.Fatalf("expected undo window to be set")
	}
}

func TestTransportKey_Shape(t *testing.T) {
	if got := TransportKey("telegram", "42", "99"); got != "telegram:42:99" {
		t.Fatalf("got %q", got)
	}
}

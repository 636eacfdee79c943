package briefing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jnyross/secondbrain/internal/audit"
	"github.com/jnyross/secondbrain/internal/kb"
)

func newTestClarifier(t *testing.T) (*Clarifier, *kb.Memory) {
	t.Helper()
	gw := kb.NewMemory()
	auditor := audit.New(gw, nil)
	return NewClarifier(gw, auditor), gw
}

func TestHandleDebrief_NoFlaggedItems(t *testing.T) {
	c, _ := newTestClarifier(t)
	reply, err := c.HandleDebrief(context.Background(), "chat-1", time.Now())
	if err != nil {
		t.Fatalf("debrief: %v", err)
	}
	if !strings.Contains(reply, "Nothing needs clarification") {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestHandleDebrief_ListsFlaggedItems(t *testing.T) {
	c, gw := newTestClarifier(t)
	mustCreateInboxItem(t, gw, "buy something for mum", true)
	mustCreateInboxItem(t, gw, "follow up with the plumber", true)
	mustCreateInboxItem(t, gw, "already handled", false)

	reply, err := c.HandleDebrief(context.Background(), "chat-1", time.Now())
	if err != nil {
		t.Fatalf("debrief: %v", err)
	}
	if !strings.Contains(reply, "1. buy something for mum") || !strings.Contains(reply, "2. follow up with the plumber") {
		t.Fatalf("expected numbered list, got %q", reply)
	}
	if strings.Contains(reply, "already handled") {
		t.Fatalf("expected processed item to be excluded, got %q", reply)
	}
}

func TestHandleReply_SelectionOutOfRange_Reprompts(t *testing.T) {
	c, gw := newTestClarifier(t)
	mustCreateInboxItem(t, gw, "item one", true)
	now := time.Now()
	if _, err := c.HandleDebrief(context.Background(), "chat-1", now); err != nil {
		t.Fatalf("debrief: %v", err)
	}

	reply, ok, err := c.HandleReply(context.Background(), "chat-1", "9", now)
	if err != nil || !ok {
		t.Fatalf("handle reply: ok=%v err=%v", ok, err)
	}
	if !strings.Contains(reply, "number from the list") {
		t.Fatalf("expected reprompt, got %q", reply)
	}
}

func TestHandleReply_SkipAdvancesAndEndsWhenExhausted(t *testing.T) {
	c, gw := newTestClarifier(t)
	mustCreateInboxItem(t, gw, "only item", true)
	now := time.Now()
	if _, err := c.HandleDebrief(context.Background(), "chat-1", now); err != nil {
		t.Fatalf("debrief: %v", err)
	}

	if _, ok, err := c.HandleReply(context.Background(), "chat-1", "1", now); err != nil || !ok {
		t.Fatalf("select: ok=%v err=%v", ok, err)
	}

	reply, ok, err := c.HandleReply(context.Background(), "chat-1", "skip", now)
	if err != nil || !ok {
		t.Fatalf("skip: ok=%v err=%v", ok, err)
	}
	if !strings.Contains(reply, "Nothing else to clarify") {
		t.Fatalf("expected loop to end, got %q", reply)
	}

	if _, ok, err := c.HandleReply(context.Background(), "chat-1", "anything", now); err != nil || ok {
		t.Fatalf("expected loop to be idle after exhausting the list: ok=%v err=%v", ok, err)
	}
}

func TestHandleReply_DismissMarksProcessed(t *testing.T) {
	c, gw := newTestClarifier(t)
	item := mustCreateInboxItem(t, gw, "something to dismiss", true)
	now := time.Now()
	if _, err := c.HandleDebrief(context.Background(), "chat-1", now); err != nil {
		t.Fatalf("debrief: %v", err)
	}
	if _, ok, err := c.HandleReply(context.Background(), "chat-1", "1", now); err != nil || !ok {
		t.Fatalf("select: ok=%v err=%v", ok, err)
	}
	if _, ok, err := c.HandleReply(context.Background(), "chat-1", "dismiss", now); err != nil || !ok {
		t.Fatalf("dismiss: ok=%v err=%v", ok, err)
	}

	got, err := gw.GetInboxItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("get inbox item: %v", err)
	}
	if !got.Processed {
		t.Fatalf("expected item to be marked processed")
	}
	if got.LinkedTaskID != "" {
		t.Fatalf("expected no linked task for a dismiss, got %q", got.LinkedTaskID)
	}
}

func TestHandleReply_TaskCreatesAndLinksTask(t *testing.T) {
	c, gw := newTestClarifier(t)
	item := mustCreateInboxItem(t, gw, "call the dentist about something", true)
	now := time.Now()
	if _, err := c.HandleDebrief(context.Background(), "chat-1", now); err != nil {
		t.Fatalf("debrief: %v", err)
	}
	if _, ok, err := c.HandleReply(context.Background(), "chat-1", "1", now); err != nil || !ok {
		t.Fatalf("select: ok=%v err=%v", ok, err)
	}

	reply, ok, err := c.HandleReply(context.Background(), "chat-1", "task: call dentist to reschedule", now)
	if err != nil || !ok {
		t.Fatalf("decision: ok=%v err=%v", ok, err)
	}
	if !strings.Contains(reply, "call dentist to reschedule") {
		t.Fatalf("unexpected reply: %q", reply)
	}

	got, err := gw.GetInboxItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("get inbox item: %v", err)
	}
	if !got.Processed || got.LinkedTaskID == "" {
		t.Fatalf("expected item processed and linked to a task, got %+v", got)
	}

	tasks, err := gw.QueryTasks(context.Background(), kb.TaskFilter{})
	if err != nil {
		t.Fatalf("query tasks: %v", err)
	}
	found := false
	for _, tsk := range tasks {
		if tsk.ID == got.LinkedTaskID && tsk.Title == "call dentist to reschedule" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected created task to be queryable, tasks=%+v", tasks)
	}
}

func TestHandleReply_UnrecognizedDecision_Reprompts(t *testing.T) {
	c, gw := newTestClarifier(t)
	mustCreateInboxItem(t, gw, "item one", true)
	now := time.Now()
	if _, err := c.HandleDebrief(context.Background(), "chat-1", now); err != nil {
		t.Fatalf("debrief: %v", err)
	}
	if _, ok, err := c.HandleReply(context.Background(), "chat-1", "1", now); err != nil || !ok {
		t.Fatalf("select: ok=%v err=%v", ok, err)
	}

	reply, ok, err := c.HandleReply(context.Background(), "chat-1", "maybe later", now)
	if err != nil || !ok {
		t.Fatalf("decision: ok=%v err=%v", ok, err)
	}
	if !strings.Contains(reply, "skip") || !strings.Contains(reply, "dismiss") {
		t.Fatalf("expected guidance on valid replies, got %q", reply)
	}
}

func TestHandleReply_IdleChat_IsNotConsumed(t *testing.T) {
	c, _ := newTestClarifier(t)
	_, ok, err := c.HandleReply(context.Background(), "never-debriefed", "1", time.Now())
	if err != nil {
		t.Fatalf("handle reply: %v", err)
	}
	if ok {
		t.Fatalf("expected an idle chat's reply not to be consumed by the clarification loop")
	}
}

func TestHandleReply_SelectionTimesOut(t *testing.T) {
	c, gw := newTestClarifier(t)
	mustCreateInboxItem(t, gw, "item one", true)
	now := time.Now()
	if _, err := c.HandleDebrief(context.Background(), "chat-1", now); err != nil {
		t.Fatalf("debrief: %v", err)
	}

	later := now.Add(31 * time.Minute)
	_, ok, err := c.HandleReply(context.Background(), "chat-1", "1", later)
	if err != nil {
		t.Fatalf("handle reply: %v", err)
	}
	if ok {
		t.Fatalf("expected the selection window to have timed out")
	}
}

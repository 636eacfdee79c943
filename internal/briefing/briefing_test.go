package briefing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jnyross/secondbrain/internal/audit"
	"github.com/jnyross/secondbrain/internal/emailintel"
	"github.com/jnyross/secondbrain/internal/kb"
	"github.com/jnyross/secondbrain/internal/types"
)

func newTestGenerator(t *testing.T) (*Generator, *kb.Memory) {
	t.Helper()
	gw := kb.NewMemory()
	auditor := audit.New(gw, nil)
	return NewGenerator(gw, auditor, nil), gw
}

func mustCreateTask(t *testing.T, gw *kb.Memory, title string, dueAt time.Time) types.Task {
	t.Helper()
	task, err := gw.CreateTask(context.Background(), types.Task{Title: title, DueAt: &dueAt, Status: types.TaskStatusTodo})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func mustCreateInboxItem(t *testing.T, gw *kb.Memory, raw string, needsClarification bool) types.InboxItem {
	t.Helper()
	item, err := gw.CreateInboxItem(context.Background(), types.InboxItem{RawInput: raw, NeedsClarification: needsClarification})
	if err != nil {
		t.Fatalf("create inbox item: %v", err)
	}
	return item
}

func TestRun_ComposesSectionsWithFallback(t *testing.T) {
	g, gw := newTestGenerator(t)
	date := time.Date(2026, 7, 31, 7, 0, 0, 0, time.UTC)

	mustCreateTask(t, gw, "Submit expense report", time.Date(2026, 7, 31, 17, 0, 0, 0, time.UTC))
	mustCreateTask(t, gw, "Renew passport", time.Date(2026, 7, 20, 9, 0, 0, 0, time.UTC))
	mustCreateInboxItem(t, gw, "something about a meeting", true)

	text, dup, err := g.Run(context.Background(), date, "chat-1", nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if dup {
		t.Fatalf("expected first run not to be a duplicate")
	}
	for _, want := range []string{
		"DUE TODAY", "Submit expense report",
		"OVERDUE", "Renew passport",
		"NEEDS CLARIFICATION", "something about a meeting",
		"/debrief",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected briefing to contain %q, got:\n%s", want, text)
		}
	}
	if strings.Contains(text, "EMAIL FOLLOW-UPS") {
		t.Fatalf("expected no email section without mail analyzer, got:\n%s", text)
	}
}

func TestRun_EmptySections_RenderNoneFallback(t *testing.T) {
	g, _ := newTestGenerator(t)
	date := time.Date(2026, 7, 31, 7, 0, 0, 0, time.UTC)

	text, dup, err := g.Run(context.Background(), date, "chat-2", nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if dup {
		t.Fatalf("expected first run not to be a duplicate")
	}
	if strings.Count(text, "(none)") != 3 {
		t.Fatalf("expected three (none) fallbacks, got:\n%s", text)
	}
}

func TestRun_SecondRunSameDay_IsDuplicate(t *testing.T) {
	g, _ := newTestGenerator(t)
	date := time.Date(2026, 7, 31, 7, 0, 0, 0, time.UTC)

	first, dup, err := g.Run(context.Background(), date, "chat-3", nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if dup || first == "" {
		t.Fatalf("expected first run to produce text and not be a duplicate")
	}

	second, dup, err := g.Run(context.Background(), date.Add(3*time.Hour), "chat-3", nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !dup {
		t.Fatalf("expected same-day re-run to be flagged as duplicate")
	}
	if second != "" {
		t.Fatalf("expected duplicate run to return empty text, got %q", second)
	}
}

func TestRun_DifferentChats_AreIndependent(t *testing.T) {
	g, _ := newTestGenerator(t)
	date := time.Date(2026, 7, 31, 7, 0, 0, 0, time.UTC)

	if _, dup, err := g.Run(context.Background(), date, "chat-a", nil); err != nil || dup {
		t.Fatalf("chat-a run: dup=%v err=%v", dup, err)
	}
	if _, dup, err := g.Run(context.Background(), date, "chat-b", nil); err != nil || dup {
		t.Fatalf("chat-b run for a different chat should not be a duplicate: dup=%v err=%v", dup, err)
	}
}

type stubMailReader struct {
	messages []kb.SentMessage
}

func (s *stubMailReader) SentTo(_ context.Context, _ string, _ int) ([]kb.SentMessage, error) {
	return s.messages, nil
}

func TestRun_WithMailAnalyzer_RendersEmailSection(t *testing.T) {
	gw := kb.NewMemory()
	auditor := audit.New(gw, nil)
	mail := emailintel.NewAnalyzer(&stubMailReader{messages: []kb.SentMessage{
		{Body: "Hi Mike,\n\nSounds good.\n\nBest,"},
		{Body: "Hi Mike,\n\nWorks for me.\n\nBest,"},
	}})
	g := NewGenerator(gw, auditor, mail)
	date := time.Date(2026, 7, 31, 7, 0, 0, 0, time.UTC)

	text, dup, err := g.Run(context.Background(), date, "chat-4", []string{"mike@example.com"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if dup {
		t.Fatalf("expected first run not to be a duplicate")
	}
	if !strings.Contains(text, "EMAIL FOLLOW-UPS") || !strings.Contains(text, "mike@example.com") {
		t.Fatalf("expected email follow-up section, got:\n%s", text)
	}
}

func TestRun_WithMailAnalyzer_NoQualifyingSenders_RendersNoneFallback(t *testing.T) {
	gw := kb.NewMemory()
	auditor := audit.New(gw, nil)
	mail := emailintel.NewAnalyzer(&stubMailReader{})
	g := NewGenerator(gw, auditor, mail)
	date := time.Date(2026, 7, 31, 7, 0, 0, 0, time.UTC)

	text, _, err := g.Run(context.Background(), date, "chat-5", []string{"nobody@example.com"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(text, "EMAIL FOLLOW-UPS") {
		t.Fatalf("expected email section heading even with no qualifying senders, got:\n%s", text)
	}
}

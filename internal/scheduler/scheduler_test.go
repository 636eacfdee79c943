package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jnyross/secondbrain/internal/kb"
	"github.com/jnyross/secondbrain/internal/types"
)

func TestScan_ClassifiesDueTodayTomorrowOverdue(t *testing.T) {
	gw := kb.NewMemory()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	dueToday := now
	dueTomorrow := now.AddDate(0, 0, 1)
	overdue := now.AddDate(0, 0, -2)

	mustCreate(t, gw, "pay rent", &dueToday, types.PriorityMedium)
	mustCreate(t, gw, "call landlord", &dueTomorrow, types.PriorityMedium)
	mustCreate(t, gw, "renew passport", &overdue, types.PriorityMedium)
	mustCreate(t, gw, "escalate outage", &dueToday, types.PriorityUrgent)

	candidates, err := Scan(context.Background(), gw, now)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	byType := map[NudgeType]int{}
	for _, c := range candidates {
		byType[c.Type]++
	}
	if byType[NudgeDueToday] != 1 || byType[NudgeDueTomorrow] != 1 || byType[NudgeOverdue] != 1 || byType[NudgeHighPriority] != 1 {
		t.Fatalf("unexpected distribution: %+v (candidates=%+v)", byType, candidates)
	}
}

func mustCreate(t *testing.T, gw kb.Gateway, title string, due *time.Time, priority types.TaskPriority) {
	t.Helper()
	if _, err := gw.CreateTask(context.Background(), types.Task{
		Title: title, Status: types.TaskStatusTodo, Priority: priority, DueAt: due,
		Source: types.SourceTelegramText, CreatedBy: types.CreatedByAI,
	}); err != nil {
		t.Fatalf("createTask(%s): %v", title, err)
	}
}

func TestInWindow(t *testing.T) {
	if !InWindow(NudgeDueToday, 15) {
		t.Fatal("expected 15:00 to be in DUE_TODAY window")
	}
	if InWindow(NudgeDueToday, 6) {
		t.Fatal("expected 06:00 to be outside DUE_TODAY window")
	}
}

func TestMessage_RendersFixedTemplates(t *testing.T) {
	cases := []struct {
		c    NudgeCandidate
		want string
	}{
		{NudgeCandidate{Title: "buy milk", Type: NudgeDueToday}, "Don't forget: buy milk is due today"},
		{NudgeCandidate{Title: "buy milk", Type: NudgeDueTomorrow}, "Heads up: buy milk is due tomorrow"},
		{NudgeCandidate{Title: "buy milk", Type: NudgeOverdue, DaysOverdue: 3}, "Overdue (3 days): buy milk"},
		{NudgeCandidate{Title: "buy milk", Type: NudgeHighPriority}, "Urgent reminder: buy milk"},
	}
	for _, tc := range cases {
		if got := Message(tc.c); got != tc.want {
			t.Fatalf("Message(%+v) = %q, want %q", tc.c, got, tc.want)
		}
	}
}

func TestLedger_DedupesAndPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nudges", "sent.json")

	l, err := OpenLedger(path)
	if err != nil {
		t.Fatalf("openLedger: %v", err)
	}
	c := NudgeCandidate{TaskID: "t1", Type: NudgeDueToday}
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	if l.Sent(c, now) {
		t.Fatal("expected not sent yet")
	}
	if err := l.MarkSent(c, now); err != nil {
		t.Fatalf("markSent: %v", err)
	}
	if !l.Sent(c, now) {
		t.Fatal("expected sent after markSent")
	}

	reloaded, err := OpenLedger(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !reloaded.Sent(c, now) {
		t.Fatal("expected dedupe entry to survive reload")
	}
}

func TestLedger_PrunesOlderThan7Days(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sent.json")
	l, _ := OpenLedger(path)

	old := NudgeCandidate{TaskID: "old", Type: NudgeOverdue}
	oldNow := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := l.MarkSent(old, oldNow); err != nil {
		t.Fatalf("markSent old: %v", err)
	}

	fresh := NudgeCandidate{TaskID: "fresh", Type: NudgeOverdue}
	freshNow := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	if err := l.MarkSent(fresh, freshNow); err != nil {
		t.Fatalf("markSent fresh: %v", err)
	}

	if l.Sent(old, oldNow) {
		t.Fatal("expected pruned entry to no longer be recorded as sent")
	}
	if !l.Sent(fresh, freshNow) {
		t.Fatal("expected fresh entry to remain")
	}
}

type stubSender struct{ sent []string }

func (s *stubSender) Send(ctx context.Context, chatID, text string) error {
	s.sent = append(s.sent, text)
	return nil
}

func TestTick_SendsInWindowAndDedupesAcrossTicks(t *testing.T) {
	gw := kb.NewMemory()
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	mustCreate(t, gw, "buy milk", &now, types.PriorityMedium)

	dir := t.TempDir()
	ledger, _ := OpenLedger(filepath.Join(dir, "sent.json"))
	sender := &stubSender{}

	res, err := Tick(context.Background(), gw, ledger, sender, "chat1", now)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if res.Sent != 1 {
		t.Fatalf("expected 1 sent, got %+v", res)
	}

	res2, err := Tick(context.Background(), gw, ledger, sender, "chat1", now)
	if err != nil {
		t.Fatalf("tick 2: %v", err)
	}
	if res2.Sent != 0 || res2.Skipped != 1 {
		t.Fatalf("expected second tick fully deduped, got %+v", res2)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly 1 message sent total, got %d", len(sender.sent))
	}
}

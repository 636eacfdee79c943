// Package scheduler implements the Scheduler / Nudge Engine (C12, §4.12): four
// fixed local-tz windows scan open tasks for due-today / due-tomorrow / overdue
// candidates, dedupe against a per-day ledger, and render the fixed per-type nudge
// text. Grounded on the teacher's internal/domain/notifications/queue.go
// scheduleEntry/scheduleKeyResolution minute-granularity dedupe window, generalized
// here to a day-granularity (task-id, type, date) ledger key.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jnyross/secondbrain/internal/kb"
	"github.com/jnyross/secondbrain/internal/storage"
	"github.com/jnyross/secondbrain/internal/types"
)

// NudgeType enumerates the kinds of reminder the scan can surface (§4.12).
type NudgeType string

const (
	NudgeDueToday     NudgeType = "DUE_TODAY"
	NudgeDueTomorrow  NudgeType = "DUE_TOMORROW"
	NudgeOverdue      NudgeType = "OVERDUE"
	NudgeHighPriority NudgeType = "HIGH_PRIORITY"
)

// window is a [startHour, endHour) local-time range within which a NudgeType may fire.
type window struct{ startHour, endHour int }

var windows = map[NudgeType]window{
	NudgeDueToday:     {14, 20},
	NudgeDueTomorrow:  {18, 21},
	NudgeOverdue:      {9, 20},
	NudgeHighPriority: {14, 20},
}

// DefaultMorningBriefingHour is the configurable default from §6.
const DefaultMorningBriefingHour = 7

// NudgeCandidate is one task surfaced by a scan, paired with the reminder type chosen
// for it (§4.12).
type NudgeCandidate struct {
	TaskID      string
	Title       string
	Type        NudgeType
	DaysOverdue int
}

// Scan queries C3 for the three task windows (due today, due tomorrow, overdue) and
// builds one NudgeCandidate per task, upgrading DUE_TODAY to HIGH_PRIORITY when the
// task's priority is urgent or high.
func Scan(ctx context.Context, gw kb.Gateway, now time.Time) ([]NudgeCandidate, error) {
	loc := now.Location()
	todayMidnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	tomorrowMidnight := todayMidnight.AddDate(0, 0, 1)
	dayAfter := tomorrowMidnight.AddDate(0, 0, 1)

	exclude := []types.TaskStatus{types.TaskStatusDone, types.TaskStatusCancelled, types.TaskStatusDeleted}

	// DueAfter is a strict '>' bound (§4.3); step one nanosecond earlier so a task due
	// exactly at a window's lower boundary is still included in that window.
	justBeforeToday := todayMidnight.Add(-time.Nanosecond)
	justBeforeTomorrow := tomorrowMidnight.Add(-time.Nanosecond)

	var candidates []NudgeCandidate

	dueToday, err := gw.QueryTasks(ctx, kb.TaskFilter{DueAfter: &justBeforeToday, DueBefore: &tomorrowMidnight, ExcludeStatus: exclude})
	if err != nil {
		return nil, err
	}
	for _, t := range dueToday {
		nt := NudgeDueToday
		if t.Priority == types.PriorityUrgent || t.Priority == types.PriorityHigh {
			nt = NudgeHighPriority
		}
		candidates = append(candidates, NudgeCandidate{TaskID: t.ID, Title: t.Title, Type: nt})
	}

	dueTomorrow, err := gw.QueryTasks(ctx, kb.TaskFilter{DueAfter: &justBeforeTomorrow, DueBefore: &dayAfter, ExcludeStatus: exclude})
	if err != nil {
		return nil, err
	}
	for _, t := range dueTomorrow {
		candidates = append(candidates, NudgeCandidate{TaskID: t.ID, Title: t.Title, Type: NudgeDueTomorrow})
	}

	overdue, err := gw.QueryTasks(ctx, kb.TaskFilter{DueBefore: &todayMidnight, ExcludeStatus: exclude})
	if err != nil {
		return nil, err
	}
	for _, t := range overdue {
		days := 0
		if t.DueAt != nil {
			days = int(todayMidnight.Sub(t.DueAt.In(loc).Truncate(24*time.Hour)).Hours() / 24)
			if days < 0 {
				days = 0
			}
		}
		candidates = append(candidates, NudgeCandidate{TaskID: t.ID, Title: t.Title, Type: NudgeOverdue, DaysOverdue: days})
	}

	return candidates, nil
}

// InWindow reports whether localHour falls within nt's fixed firing window (§4.12).
func InWindow(nt NudgeType, localHour int) bool {
	w, ok := windows[nt]
	if !ok {
		return false
	}
	return localHour >= w.startHour && localHour < w.endHour
}

// Message renders the fixed per-type nudge text (§4.12).
func Message(c NudgeCandidate) string {
	switch c.Type {
	case NudgeDueToday:
		return fmt.Sprintf("Don't forget: %s is due today", c.Title)
	case NudgeDueTomorrow:
		return fmt.Sprintf("Heads up: %s is due tomorrow", c.Title)
	case NudgeOverdue:
		return fmt.Sprintf("Overdue (%d days): %s", c.DaysOverdue, c.Title)
	case NudgeHighPriority:
		return fmt.Sprintf("Urgent reminder: %s", c.Title)
	default:
		return c.Title
	}
}

// Ledger is the (task-id, type, yyyy-mm-dd) → sent-timestamp dedupe file (§4.12),
// persisted as a flat JSON object and pruned to the last 7 days on every write.
type Ledger struct {
	path    string
	entries map[string]time.Time
}

// OpenLedger loads path if it exists, or starts empty.
func OpenLedger(path string) (*Ledger, error) {
	l := &Ledger{path: path, entries: map[string]time.Time{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, err
	}
	raw := map[string]time.Time{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	l.entries = raw
	return l, nil
}

func ledgerKey(c NudgeCandidate, now time.Time) string {
	return fmt.Sprintf("%s:%s:%s", c.TaskID, c.Type, now.Format("2006-01-02"))
}

// Sent reports whether this candidate already fired today.
func (l *Ledger) Sent(c NudgeCandidate, now time.Time) bool {
	_, ok := l.entries[ledgerKey(c, now)]
	return ok
}

// MarkSent records the candidate as sent and persists the ledger, pruning entries
// older than 7 days (§4.12).
func (l *Ledger) MarkSent(c NudgeCandidate, now time.Time) error {
	l.entries[ledgerKey(c, now)] = now.UTC()
	cutoff := now.AddDate(0, 0, -7)
	for k, t := range l.entries {
		if t.Before(cutoff) {
			delete(l.entries, k)
		}
	}
	return l.persist()
}

func (l *Ledger) persist() error {
	if err := storage.EnsureDir(dirOf(l.path)); err != nil {
		return err
	}
	data, err := json.Marshal(l.entries)
	if err != nil {
		return err
	}
	return storage.AtomicWriteFile(l.path, data)
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// Sender is the outbound transport boundary the scheduler tick sends through.
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

// Result summarises one Tick's outcome.
type Result struct {
	Scanned, Sent, Skipped int
}

// Tick runs one full scan-filter-dispatch pass (§4.12): queries candidates, keeps
// those whose window matches the local hour and aren't already in the ledger, sends
// each, and marks it sent.
func Tick(ctx context.Context, gw kb.Gateway, ledger *Ledger, sender Sender, chatID string, now time.Time) (Result, error) {
	candidates, err := Scan(ctx, gw, now)
	if err != nil {
		return Result{}, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Type < candidates[j].Type })

	var res Result
	res.Scanned = len(candidates)
	for _, c := range candidates {
		if !InWindow(c.Type, now.Hour()) || ledger.Sent(c, now) {
			res.Skipped++
			continue
		}
		if err := sender.Send(ctx, chatID, Message(c)); err != nil {
			return res, err
		}
		if err := ledger.MarkSent(c, now); err != nil {
			return res, err
		}
		res.Sent++
	}
	return res, nil
}

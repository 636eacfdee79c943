// Package briefing implements the Briefing Generator (C13, §4.13): a once-per-day
// summary of due-today/overdue/needs-clarification tasks, keyed through the audit
// idempotency cache so repeated runs never duplicate the message. Grounded on the
// teacher's internal/domain/briefing-style "compose sections, render once" shape
// (internal/domain/notifications), generalized from calendar-event summaries to the
// task/inbox sections this spec names.
package briefing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jnyross/secondbrain/internal/audit"
	"github.com/jnyross/secondbrain/internal/emailintel"
	"github.com/jnyross/secondbrain/internal/kb"
	"github.com/jnyross/secondbrain/internal/types"
)

// Generator composes and dispatches the morning briefing.
type Generator struct {
	gw      kb.Gateway
	auditor *audit.Logger
	mail    *emailintel.Analyzer // nil when the email scanner isn't configured (§1)
}

// NewGenerator builds a Generator. mail may be nil to omit the "EMAIL FOLLOW-UPS"
// section entirely (§4.13: optional fourth section).
func NewGenerator(gw kb.Gateway, auditor *audit.Logger, mail *emailintel.Analyzer) *Generator {
	return &Generator{gw: gw, auditor: auditor, mail: mail}
}

// Run composes the briefing for date/chatID and logs it under the idempotency key
// "briefing:<date>:<chat>" (§4.9, §4.13). dup=true means a briefing already ran today
// and text is empty — callers should not re-send.
func (g *Generator) Run(ctx context.Context, date time.Time, chatID string, senderEmails []string) (text string, dup bool, err error) {
	key := audit.BriefingKey(date, chatID)
	alreadySent, _, err := g.auditor.CheckAndLog(ctx, key)
	if err != nil {
		return "", false, err
	}
	if alreadySent {
		return "", true, nil
	}

	loc := date.Location()
	todayMidnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	tomorrowMidnight := todayMidnight.AddDate(0, 0, 1)
	justBeforeToday := todayMidnight.Add(-time.Nanosecond)

	exclude := []types.TaskStatus{types.TaskStatusDone, types.TaskStatusCancelled, types.TaskStatusDeleted}

	dueToday, err := g.gw.QueryTasks(ctx, kb.TaskFilter{DueAfter: &justBeforeToday, DueBefore: &tomorrowMidnight, ExcludeStatus: exclude})
	if err != nil {
		return "", false, err
	}
	overdue, err := g.gw.QueryTasks(ctx, kb.TaskFilter{DueBefore: &todayMidnight, ExcludeStatus: exclude})
	if err != nil {
		return "", false, err
	}
	needsClarification := true
	flagged, err := g.gw.QueryInboxItems(ctx, kb.InboxFilter{Processed: boolPtr(false), NeedsClarification: &needsClarification})
	if err != nil {
		return "", false, err
	}

	var b strings.Builder
	writeTaskSection(&b, "DUE TODAY", dueToday)
	writeTaskSection(&b, "OVERDUE", overdue)
	writeInboxSection(&b, "NEEDS CLARIFICATION", flagged)

	if g.mail != nil && len(senderEmails) > 0 {
		writeEmailSection(ctx, &b, g.mail, senderEmails, date)
	}

	b.WriteString("\nSay /debrief to work through what needs clarification.")

	if _, err := g.auditor.LogBriefing(ctx, key, audit.LogParams{
		ActionTaken: "sent morning briefing",
	}); err != nil {
		return "", false, err
	}

	return strings.TrimSpace(b.String()), false, nil
}

func writeTaskSection(b *strings.Builder, heading string, tasks []types.Task) {
	b.WriteString(heading + "\n")
	if len(tasks) == 0 {
		b.WriteString("(none)\n\n")
		return
	}
	for _, t := range tasks {
		b.WriteString("• " + t.Title + "\n")
	}
	b.WriteString("\n")
}

func writeInboxSection(b *strings.Builder, heading string, items []types.InboxItem) {
	b.WriteString(heading + "\n")
	if len(items) == 0 {
		b.WriteString("(none)\n\n")
		return
	}
	for _, item := range items {
		b.WriteString("• " + item.RawInput + "\n")
	}
	b.WriteString("\n")
}

func writeEmailSection(ctx context.Context, b *strings.Builder, mail *emailintel.Analyzer, senderEmails []string, now time.Time) {
	b.WriteString("EMAIL FOLLOW-UPS\n")
	wroteAny := false
	for _, sender := range senderEmails {
		pattern, err := mail.Analyze(ctx, sender, now)
		if err != nil || pattern.ReplyCount == 0 {
			continue
		}
		wroteAny = true
		b.WriteString(fmt.Sprintf("• %s (%s tone, %d%% confidence)\n", sender, pattern.Tone, pattern.Confidence))
	}
	if !wroteAny {
		b.WriteString("(none)\n")
	}
	b.WriteString("\n")
}

func boolPtr(v bool) *bool { return &v }

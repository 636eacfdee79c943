package briefing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jnyross/secondbrain/internal/audit"
	"github.com/jnyross/secondbrain/internal/kb"
	"github.com/jnyross/secondbrain/internal/recent"
	"github.com/jnyross/secondbrain/internal/types"
)

// phase enumerates the clarification loop's per-chat state (§4.13).
type phase string

const (
	phaseListing           phase = "listing"
	phaseAwaitingSelection phase = "awaiting_selection"
	phaseAwaitingDecision  phase = "awaiting_decision"
)

// selectionTimeout is the §4.13 "awaiting_selection" timeout: 30 minutes of inactivity
// drops the chat back to idle.
const selectionTimeout = 30 * time.Minute

// listingSize is "top N" unprocessed flagged inbox items shown per /debrief (§4.13).
const listingSize = 10

// clarifyState is the value held in the per-chat recent.StateSlot: which phase the chat
// is in, plus (once past listing) the items shown and which one was selected.
type clarifyState struct {
	phase    phase
	items    []types.InboxItem
	selected *types.InboxItem
}

// Clarifier drives the /debrief clarification loop (§4.13): idle -> listing ->
// awaiting_selection -> awaiting_decision -> idle, one state machine per chat.
type Clarifier struct {
	gw      kb.Gateway
	auditor *audit.Logger
	state   *recent.StateSlot[clarifyState]
}

// NewClarifier builds a Clarifier. The StateSlot expires an in-flight session after
// selectionTimeout of inactivity (§4.13's "awaiting_selection: ... timeout 30 min -> idle").
func NewClarifier(gw kb.Gateway, auditor *audit.Logger) *Clarifier {
	return &Clarifier{gw: gw, auditor: auditor, state: recent.NewStateSlot[clarifyState](selectionTimeout)}
}

// HandleDebrief starts (or restarts) the loop for chatID: idle -> listing (§4.13).
func (c *Clarifier) HandleDebrief(ctx context.Context, chatID string, now time.Time) (string, error) {
	needsClarification := true
	items, err := c.gw.QueryInboxItems(ctx, kb.InboxFilter{
		Processed:          boolPtr(false),
		NeedsClarification: &needsClarification,
		Limit:              listingSize,
	})
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		c.state.Clear(chatID)
		return "Nothing needs clarification right now.", nil
	}

	c.state.Set(chatID, clarifyState{phase: phaseAwaitingSelection, items: items}, now)

	var b strings.Builder
	b.WriteString("What needs clarification:\n")
	for i, item := range items {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, item.RawInput))
	}
	b.WriteString("\nReply with a number to work through one.")
	return strings.TrimSpace(b.String()), nil
}

// HandleReply dispatches text per the chat's current phase. ok=false means text didn't
// match anything this loop understands in the current phase — the caller should fall
// through to normal message processing instead of treating it as consumed.
func (c *Clarifier) HandleReply(ctx context.Context, chatID, text string, now time.Time) (reply string, ok bool, err error) {
	st, active := c.state.Get(chatID, now)
	if !active {
		return "", false, nil
	}

	switch st.phase {
	case phaseAwaitingSelection:
		return c.handleSelection(ctx, chatID, st, text, now)
	case phaseAwaitingDecision:
		return c.handleDecision(ctx, chatID, st, text, now)
	default:
		return "", false, nil
	}
}

func (c *Clarifier) handleSelection(_ context.Context, chatID string, st clarifyState, text string, now time.Time) (string, bool, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 || n > len(st.items) {
		return "Reply with a number from the list, or /debrief to see it again.", true, nil
	}

	item := st.items[n-1]
	st.phase = phaseAwaitingDecision
	st.selected = &item
	c.state.Set(chatID, st, now)

	return fmt.Sprintf("%q — reply \"skip\", \"dismiss\", or \"task: <text>\".", item.RawInput), true, nil
}

func (c *Clarifier) handleDecision(ctx context.Context, chatID string, st clarifyState, text string, now time.Time) (string, bool, error) {
	item := st.selected
	if item == nil {
		c.state.Clear(chatID)
		return "", false, nil
	}
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	switch {
	case lower == "skip":
		return "Skipped. " + c.advance(chatID, st, now), true, nil

	case lower == "dismiss":
		if err := c.markProcessed(ctx, item.ID, "", "dismissed clarification item"); err != nil {
			return "", true, err
		}
		return "Dismissed. " + c.advance(chatID, st, now), true, nil

	case strings.HasPrefix(lower, "task:"):
		title := strings.TrimSpace(trimmed[len("task:"):])
		if title == "" {
			return "Reply \"task: <text>\" with a title for the task.", true, nil
		}
		task, err := c.gw.CreateTask(ctx, types.Task{
			Title:     title,
			Status:    types.TaskStatusTodo,
			Source:    item.Source,
			CreatedBy: types.CreatedByHuman,
			Relations: types.Relations{},
		})
		if err != nil {
			return "", true, err
		}
		if err := c.markProcessed(ctx, item.ID, task.ID, "created task from clarification: "+title); err != nil {
			return "", true, err
		}
		return fmt.Sprintf("Created task %q. %s", title, c.advance(chatID, st, now)), true, nil

	default:
		return "Reply \"skip\", \"dismiss\", or \"task: <text>\".", true, nil
	}
}

// markProcessed marks the inbox item processed (optionally linking a newly created task)
// and logs the transition with action-type update or create, per §4.13's closing line.
func (c *Clarifier) markProcessed(ctx context.Context, itemID, linkedTaskID, actionTaken string) error {
	if err := c.gw.MarkInboxProcessed(ctx, itemID, linkedTaskID); err != nil {
		return err
	}
	key := "debrief:" + itemID
	if linkedTaskID != "" {
		_, err := c.auditor.LogCreate(ctx, key, "task", linkedTaskID, audit.LogParams{ActionTaken: actionTaken, EntitiesAffected: []string{itemID}})
		return err
	}
	_, err := c.auditor.LogUpdate(ctx, key, itemID, audit.LogParams{ActionTaken: actionTaken})
	return err
}

// advance drops the just-decided item from the listing and either re-offers the next one
// (back to awaiting_selection against the remaining list) or returns the chat to idle,
// returning the prompt text to append to the decision's confirmation message.
func (c *Clarifier) advance(chatID string, st clarifyState, now time.Time) string {
	remaining := make([]types.InboxItem, 0, len(st.items))
	for _, it := range st.items {
		if st.selected != nil && it.ID == st.selected.ID {
			continue
		}
		remaining = append(remaining, it)
	}
	if len(remaining) == 0 {
		c.state.Clear(chatID)
		return "Nothing else to clarify."
	}
	c.state.Set(chatID, clarifyState{phase: phaseAwaitingSelection, items: remaining}, now)
	return "Reply with a number to keep going, or /debrief to see the list again."
}

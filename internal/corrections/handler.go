package corrections

import (
	"context"
	"fmt"
	"time"

	"github.com/jnyross/secondbrain/internal/audit"
	"github.com/jnyross/secondbrain/internal/kb"
	"github.com/jnyross/secondbrain/internal/patterns"
	"github.com/jnyross/secondbrain/internal/recent"
	"github.com/jnyross/secondbrain/internal/softdelete"
	"github.com/jnyross/secondbrain/internal/types"
)

// Handler is the C7 component: detects that an inbound message is correcting the AI's
// last action against a chat and routes it to an undo/delete or a field rewrite (§4.7).
type Handler struct {
	gw       kb.Gateway
	auditor  *audit.Logger
	actions  *recent.ActionRing
	deletes  *softdelete.Service
	detector *patterns.Detector
}

// New builds a Handler wired to its collaborators.
func New(gw kb.Gateway, auditor *audit.Logger, actions *recent.ActionRing, deletes *softdelete.Service, detector *patterns.Detector) *Handler {
	return &Handler{gw: gw, auditor: auditor, actions: actions, deletes: deletes, detector: detector}
}

// Process runs the §4.7 flow. handled=false means text was not a correction at all, and
// the caller should fall through to normal message classification.
func (h *Handler) Process(ctx context.Context, text, chatID, msgID string) (reply string, handled bool, err error) {
	if !IsCorrection(text) {
		return "", false, nil
	}

	now := time.Now().UTC()
	last, ok := h.actions.Last(chatID, now)
	if !ok {
		return "No recent action to fix. What would you like to change?", true, nil
	}

	if IsUndoOrDelete(text) {
		result, err := h.deletes.SoftDelete(ctx, last.EntityType, last.EntityID, last.Title, chatID, msgID)
		if err != nil {
			return "", true, err
		}
		return result.Message, true, nil
	}

	extraction := Extract(text)
	if !extraction.Ok || extraction.Correct == "" {
		return "What should it be instead?", true, nil
	}

	oldTitle := last.Title
	newTitle := extraction.Correct

	if err := h.applyFieldUpdate(ctx, last.EntityType, last.EntityID, newTitle); err != nil {
		return "", true, err
	}

	key := last.EntityType + ":" + last.EntityID + ":correction:" + msgID
	if _, err := h.auditor.LogUpdate(ctx, key, last.EntityID, audit.LogParams{
		ActionTaken: "corrected " + last.EntityType,
		Correction:  oldTitle + " → " + newTitle,
	}); err != nil {
		return "", true, err
	}

	h.actions.UpdateLastTitle(chatID, newTitle, now)

	reply = fmt.Sprintf(`Fixed. Changed "%s" to "%s".`, oldTitle, newTitle)

	if h.detector != nil {
		if detected, found := h.detector.Observe(oldTitle, newTitle, last.EntityType, patternTypeFor(last.EntityType), now); found {
			if _, err := patterns.Persist(ctx, h.gw, detected); err == nil {
				reply += " I'll remember this."
			}
		}
	}

	return reply, true, nil
}

func (h *Handler) applyFieldUpdate(ctx context.Context, entityType, id, newTitle string) error {
	switch entityType {
	case "task":
		_, err := h.gw.UpdateTaskFields(ctx, id, kb.TaskFieldUpdate{Title: &newTitle})
		return err
	case "person":
		_, err := h.gw.UpdatePersonFields(ctx, id, map[string]any{"name": newTitle})
		return err
	case "place":
		_, err := h.gw.UpdatePlaceFields(ctx, id, map[string]any{"name": newTitle})
		return err
	case "project":
		_, err := h.gw.UpdateProjectFields(ctx, id, map[string]any{"name": newTitle})
		return err
	default:
		return nil
	}
}

func patternTypeFor(entityType string) types.PatternType {
	switch entityType {
	case "person":
		return types.PatternTypePerson
	case "place":
		return types.PatternTypePlace
	default:
		return types.PatternTypeName
	}
}

// Package softdelete implements the Soft-Delete Service (§4.8): mark-deleted with a
// 30-day undo window, hidden from default queries, restorable by chat-tracked undo or by
// id. Grounded on the teacher's command-executor pattern in
// internal/domain/commands/executor.go (a small set of named actions each wrapping a
// store mutation plus a log call).
package softdelete

import (
	"context"
	"time"

	"github.com/jnyross/secondbrain/internal/audit"
	"github.com/jnyross/secondbrain/internal/kb"
	"github.com/jnyross/secondbrain/internal/recent"
	"github.com/jnyross/secondbrain/internal/types"
)

const undoWindow = 30 * 24 * time.Hour

// Result is the outcome of a soft-delete or undo call (§4.8).
type Result struct {
	Success bool
	CanUndo bool
	Message string
}

// Service is the C8 component.
type Service struct {
	gw      kb.Gateway
	auditor *audit.Logger
	deleted *recent.DeletedRing
}

// New builds a Service bound to gw and auditor, tracking deletions in a DeletedRing
// capped at 50 entries per chat (§3).
func New(gw kb.Gateway, auditor *audit.Logger, deleted *recent.DeletedRing) *Service {
	return &Service{gw: gw, auditor: auditor, deleted: deleted}
}

// SoftDelete marks entityType/entityID deleted, logs it, and tracks it for undo (§4.8).
func (s *Service) SoftDelete(ctx context.Context, entityType, entityID, title, chatID, msgID string) (Result, error) {
	if err := s.softDeleteByType(ctx, entityType, entityID); err != nil {
		return Result{}, err
	}

	key := entityType + ":" + entityID + ":delete"
	if _, err := s.auditor.LogDelete(ctx, key, entityID, audit.LogParams{ActionTaken: "soft-deleted " + entityType + " " + title}); err != nil {
		return Result{}, err
	}

	s.deleted.Track(chatID, types.DeletedAction{
		EntityType: entityType, EntityID: entityID, Title: title,
		DeletedAt: time.Now().UTC(), ChatID: chatID,
	})

	return Result{Success: true, CanUndo: true, Message: `Done. Removed "` + title + `". Say "undo" to restore.`}, nil
}

// UndoLastDelete pops the newest non-expired DeletedAction for chatID and restores it
// (§4.8).
func (s *Service) UndoLastDelete(ctx context.Context, chatID string) (Result, error) {
	action, ok := s.deleted.PopLastUndoable(chatID, time.Now().UTC())
	if !ok {
		return Result{Success: false, Message: "nothing to undo"}, nil
	}

	if err := s.undoDeleteByType(ctx, action.EntityType, action.EntityID); err != nil {
		return Result{}, err
	}

	key := action.EntityType + ":" + action.EntityID + ":undo"
	if _, err := s.auditor.LogAction(ctx, types.ActionUpdate, key, audit.LogParams{
		ActionTaken: "restored " + action.EntityType + " " + action.Title,
	}); err != nil {
		return Result{}, err
	}

	return Result{Success: true, Message: `Restored "` + action.Title + `".`}, nil
}

// RestoreByID restores entityType/entityID unconditionally, even if it was never tracked
// in the chat's DeletedRing (§4.8).
func (s *Service) RestoreByID(ctx context.Context, entityType, entityID, chatID string) (Result, error) {
	if err := s.undoDeleteByType(ctx, entityType, entityID); err != nil {
		return Result{}, err
	}
	s.deleted.Remove(chatID, entityID)

	key := entityType + ":" + entityID + ":undo"
	if _, err := s.auditor.LogAction(ctx, types.ActionUpdate, key, audit.LogParams{
		ActionTaken: "restored " + entityType + " " + entityID,
	}); err != nil {
		return Result{}, err
	}
	return Result{Success: true, Message: "Restored."}, nil
}

// PendingDeletes returns non-expired deletions for chatID (§4.8's get_pending_deletes).
func (s *Service) PendingDeletes(chatID string) []types.DeletedAction {
	return s.deleted.PendingDeletes(chatID, time.Now().UTC())
}

func (s *Service) softDeleteByType(ctx context.Context, entityType, id string) error {
	switch entityType {
	case "task":
		return s.gw.SoftDeleteTask(ctx, id)
	case "person":
		return s.gw.SoftDeletePerson(ctx, id)
	case "place":
		return s.gw.SoftDeletePlace(ctx, id)
	case "project":
		return s.gw.SoftDeleteProject(ctx, id)
	default:
		return nil
	}
}

func (s *Service) undoDeleteByType(ctx context.Context, entityType, id string) error {
	switch entityType {
	case "task":
		return s.gw.UndoDeleteTask(ctx, id)
	case "person":
		return s.gw.UndoDeletePerson(ctx, id)
	case "place":
		return s.gw.UndoDeletePlace(ctx, id)
	case "project":
		return s.gw.UndoDeleteProject(ctx, id)
	default:
		return nil
	}
}

// UndoWindow exposes the 30-day constant for callers formatting expiry messages.
func UndoWindow() time.Duration { return undoWindow }

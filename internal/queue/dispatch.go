package queue

import (
	"context"

	"github.com/jnyross/secondbrain/internal/apperrors"
	"github.com/jnyross/secondbrain/internal/kb"
	"github.com/jnyross/secondbrain/internal/types"
)

// Dispatcher replays one QueuedAction against the knowledge-base gateway (§4.10). It is
// the lowest-level replay point: queued actions are raw gateway calls deferred while the
// store was unreachable, not re-runs of the higher-level services that originally built
// them.
type Dispatcher struct {
	gw kb.Gateway
}

// NewDispatcher builds a Dispatcher bound to gw.
func NewDispatcher(gw kb.Gateway) *Dispatcher {
	return &Dispatcher{gw: gw}
}

// Dispatch applies action. A non-nil error means the action should be retried (per
// Drain's retry-count bookkeeping), not that it is permanently broken.
func (d *Dispatcher) Dispatch(ctx context.Context, action types.QueuedAction) error {
	switch action.ActionType {
	case types.QueuedActionCreateInbox:
		_, err := d.gw.CreateInboxItem(ctx, types.InboxItem{
			RawInput:           action.Data["raw_input"],
			Source:             types.Source(action.Data["source"]),
			TransportChatID:    action.Data["transport_chat_id"],
			TransportMessageID: action.Data["transport_message_id"],
		})
		return err

	case types.QueuedActionCreateTask:
		_, err := d.gw.CreateTask(ctx, types.Task{
			Title:  action.Data["title"],
			Status: types.TaskStatus(orDefault(action.Data["status"], string(types.TaskStatusTodo))),
			Source: types.Source(action.Data["source"]),
		})
		return err

	case types.QueuedActionUpdateTask:
		title := action.Data["title"]
		_, err := d.gw.UpdateTaskFields(ctx, action.Data["id"], kb.TaskFieldUpdate{Title: &title})
		return err

	case types.QueuedActionSoftDelete:
		return d.softDelete(ctx, action.Data["entity_type"], action.Data["entity_id"])

	case types.QueuedActionUndoDelete:
		return d.undoDelete(ctx, action.Data["entity_type"], action.Data["entity_id"])

	case types.QueuedActionCreatePerson:
		_, err := d.gw.CreatePerson(ctx, types.Person{Name: action.Data["name"]})
		return err

	case types.QueuedActionCreatePlace:
		_, err := d.gw.CreatePlace(ctx, types.Place{Name: action.Data["name"]})
		return err

	default:
		return apperrors.Invariant("unknown queued action type: "+string(action.ActionType), nil)
	}
}

func (d *Dispatcher) softDelete(ctx context.Context, entityType, id string) error {
	switch entityType {
	case "task":
		return d.gw.SoftDeleteTask(ctx, id)
	case "person":
		return d.gw.SoftDeletePerson(ctx, id)
	case "place":
		return d.gw.SoftDeletePlace(ctx, id)
	case "project":
		return d.gw.SoftDeleteProject(ctx, id)
	default:
		return apperrors.Invariant("unknown entity type for soft-delete: "+entityType, nil)
	}
}

func (d *Dispatcher) undoDelete(ctx context.Context, entityType, id string) error {
	switch entityType {
	case "task":
		return d.gw.UndoDeleteTask(ctx, id)
	case "person":
		return d.gw.UndoDeletePerson(ctx, id)
	case "place":
		return d.gw.UndoDeletePlace(ctx, id)
	case "project":
		return d.gw.UndoDeleteProject(ctx, id)
	default:
		return apperrors.Invariant("unknown entity type for undo-delete: "+entityType, nil)
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

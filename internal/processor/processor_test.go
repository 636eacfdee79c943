package processor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jnyross/secondbrain/internal/audit"
	"github.com/jnyross/secondbrain/internal/corrections"
	"github.com/jnyross/secondbrain/internal/entities"
	"github.com/jnyross/secondbrain/internal/geo"
	"github.com/jnyross/secondbrain/internal/kb"
	"github.com/jnyross/secondbrain/internal/patterns"
	"github.com/jnyross/secondbrain/internal/recent"
	"github.com/jnyross/secondbrain/internal/relations"
	"github.com/jnyross/secondbrain/internal/softdelete"
	"github.com/jnyross/secondbrain/internal/types"
)

func newTestProcessor(t *testing.T, proximity *ProximityService, research *Pipeline) (*Processor, kb.Gateway) {
	t.Helper()
	gw := kb.NewMemory()
	auditor := audit.New(gw, nil)
	actions := recent.NewActionRing(10, 30*time.Minute)
	deletes := recent.NewDeletedRing(50, softdelete.UndoWindow())
	sd := softdelete.New(gw, auditor, deletes)
	detector := patterns.NewDetector()
	ch := corrections.New(gw, auditor, actions, sd, detector)
	applicator := patterns.NewApplicator()
	linker := relations.New(entities.NewPeopleService(gw), entities.NewPlacesService(gw, nil, nil), entities.NewProjectsService(gw))

	dir := t.TempDir()
	cfg := Config{ConfidenceThreshold: 80, UserTimezone: "UTC", QueuePath: dir + "/queue.jsonl"}
	return New(gw, auditor, ch, applicator, linker, actions, proximity, research, cfg), gw
}

func TestProcess_CreatesTask_WithImperativeVerb(t *testing.T) {
	p, gw := newTestProcessor(t, nil, nil)

	reply, err := p.Process(context.Background(), "call Sam tomorrow at 2pm", "telegram-text", "chat1", "msg1")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !strings.HasPrefix(reply, "Got it. call Sam") {
		t.Fatalf("unexpected reply: %q", reply)
	}

	tasks, _ := gw.QueryTasks(context.Background(), kb.TaskFilter{})
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
}

func TestProcess_CreatesInboxItem_WhenNoTaskSignal(t *testing.T) {
	p, gw := newTestProcessor(t, nil, nil)

	_, err := p.Process(context.Background(), "thinking about the garden layout", "telegram-text", "chat1", "msg1")
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	tasks, _ := gw.QueryTasks(context.Background(), kb.TaskFilter{})
	if len(tasks) != 0 {
		t.Fatalf("expected no task created, got %d", len(tasks))
	}
}

func TestProcess_DuplicateMessage_IsIdempotent(t *testing.T) {
	p, gw := newTestProcessor(t, nil, nil)

	if _, err := p.Process(context.Background(), "buy milk", "telegram-text", "chat1", "msg1"); err != nil {
		t.Fatalf("first process: %v", err)
	}
	reply, err := p.Process(context.Background(), "buy milk", "telegram-text", "chat1", "msg1")
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if reply != "Got it." {
		t.Fatalf("expected neutral duplicate ack, got %q", reply)
	}

	tasks, _ := gw.QueryTasks(context.Background(), kb.TaskFilter{})
	if len(tasks) != 1 {
		t.Fatalf("expected exactly 1 task despite duplicate delivery, got %d", len(tasks))
	}
}

func TestProcess_CorrectionDelegatesAndShortCircuits(t *testing.T) {
	p, gw := newTestProcessor(t, nil, nil)

	if _, err := p.Process(context.Background(), "call Sam", "telegram-text", "chat1", "msg1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	reply, err := p.Process(context.Background(), "I meant call Sarah", "telegram-text", "chat1", "msg2")
	if err != nil {
		t.Fatalf("correction: %v", err)
	}
	if reply != `Fixed. Changed "call Sam" to "call Sarah".` {
		t.Fatalf("unexpected correction reply: %q", reply)
	}

	tasks, _ := gw.QueryTasks(context.Background(), kb.TaskFilter{})
	if len(tasks) != 1 || tasks[0].Title != "call Sarah" {
		t.Fatalf("expected title corrected in place, got %+v", tasks)
	}
}

type stubMaps struct {
	origin geo.Point
}

func (s stubMaps) Geocode(ctx context.Context, query string) (geo.Point, error) { return s.origin, nil }
func (s stubMaps) TravelTime(ctx context.Context, from, to geo.Point) (time.Duration, bool, error) {
	return 0, false, nil
}

func placeNear(lat, lng float64) types.Place {
	return types.Place{Name: "home", Type: types.PlaceTypeOther, Geo: &types.Geo{Lat: lat, Lng: lng}}
}

func taskAt(placeID string) types.Task {
	return types.Task{
		Title: "water the plants", Status: types.TaskStatusTodo, Priority: types.PriorityMedium,
		Source: types.SourceTelegramText, CreatedBy: types.CreatedByAI,
		Relations: types.Relations{PlaceIDs: []string{placeID}},
	}
}

func TestProcess_ProximityQuery_ListsNearbyTasks(t *testing.T) {
	gw := kb.NewMemory()
	proximity := NewProximityService(gw, stubMaps{origin: geo.Point{Lat: 51.5074, Lng: -0.1278}}, 10)
	auditor := audit.New(gw, nil)
	actions := recent.NewActionRing(10, 30*time.Minute)
	deletes := recent.NewDeletedRing(50, softdelete.UndoWindow())
	sd := softdelete.New(gw, auditor, deletes)
	ch := corrections.New(gw, auditor, actions, sd, patterns.NewDetector())
	applicator := patterns.NewApplicator()
	linker := relations.New(entities.NewPeopleService(gw), entities.NewPlacesService(gw, nil, nil), entities.NewProjectsService(gw))
	dir := t.TempDir()
	p := New(gw, auditor, ch, applicator, linker, actions, proximity, nil, Config{QueuePath: dir + "/q.jsonl"})

	createdPlace, err := gw.CreatePlace(context.Background(), placeNear(51.51, -0.13))
	if err != nil {
		t.Fatalf("createPlace: %v", err)
	}
	task, err := gw.CreateTask(context.Background(), taskAt(createdPlace.ID))
	if err != nil {
		t.Fatalf("createTask: %v", err)
	}

	reply, err := p.Process(context.Background(), "what can i do near home", "telegram-text", "chat1", "msg1")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !strings.Contains(reply, task.Title) {
		t.Fatalf("expected nearby task in reply, got %q", reply)
	}
}

package kb

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jnyross/secondbrain/internal/apperrors"
	"github.com/jnyross/secondbrain/internal/types"
)

// Memory is an in-process Gateway used by tests and by the `check` CLI subcommand's
// dry-run path. It has no durability of its own; internal/queue is what makes the
// offline case survive restarts, not this type.
type Memory struct {
	mu sync.Mutex

	tasks    map[string]types.Task
	people   map[string]types.Person
	places   map[string]types.Place
	projects map[string]types.Project
	inbox    map[string]types.InboxItem
	patterns map[string]types.Pattern
	log      []types.LogEntry
	dedupe   map[string]string // db:key -> log id
	sheets   map[string]ComparisonSheet
	sent     []SentMessage
}

// NewMemory returns an empty Memory gateway.
func NewMemory() *Memory {
	return &Memory{
		tasks:    map[string]types.Task{},
		people:   map[string]types.Person{},
		places:   map[string]types.Place{},
		projects: map[string]types.Project{},
		inbox:    map[string]types.InboxItem{},
		patterns: map[string]types.Pattern{},
		dedupe:   map[string]string{},
		sheets:   map[string]ComparisonSheet{},
	}
}

func newID() string { return uuid.NewString() }

func (m *Memory) CreateTask(_ context.Context, t types.Task) (types.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = newID()
	t.CreatedAt = time.Now().UTC()
	t.LastModifiedAt = t.CreatedAt
	m.tasks[t.ID] = t
	return t, nil
}

func (m *Memory) QueryTasks(_ context.Context, f TaskFilter) ([]types.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	excluded := map[types.TaskStatus]bool{}
	for _, s := range f.ExcludeStatus {
		excluded[s] = true
	}
	var out []types.Task
	for _, t := range m.tasks {
		if !f.IncludeDeleted && !t.Visible() {
			continue
		}
		if excluded[t.Status] {
			continue
		}
		if f.DueBefore != nil && (t.DueAt == nil || !t.DueAt.Before(*f.DueBefore)) {
			continue
		}
		if f.DueAfter != nil && (t.DueAt == nil || !t.DueAt.After(*f.DueAfter)) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return limitTasks(out, f.Limit), nil
}

func limitTasks(ts []types.Task, limit int) []types.Task {
	if limit > 0 && len(ts) > limit {
		return ts[:limit]
	}
	return ts
}

func (m *Memory) UpdateTaskFields(_ context.Context, id string, u TaskFieldUpdate) (types.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return types.Task{}, apperrors.NotFound("task not found: "+id)
	}
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.DueAt != nil {
		t.DueAt = u.DueAt
	}
	if u.DueTZName != nil {
		t.DueTZName = *u.DueTZName
	}
	if u.Notes != nil {
		t.Notes = *u.Notes
	}
	if u.Relations != nil {
		t.Relations = *u.Relations
	}
	t.LastModifiedAt = time.Now().UTC()
	m.tasks[id] = t
	return t, nil
}

func (m *Memory) SoftDeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return apperrors.NotFound("task not found: "+id)
	}
	now := time.Now().UTC()
	t.DeletedAt = &now
	m.tasks[id] = t
	return nil
}

func (m *Memory) UndoDeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return apperrors.NotFound("task not found: "+id)
	}
	t.DeletedAt = nil
	m.tasks[id] = t
	return nil
}

func (m *Memory) CreatePerson(_ context.Context, p types.Person) (types.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = newID()
	p.CreatedAt = time.Now().UTC()
	p.LastModifiedAt = p.CreatedAt
	m.people[p.ID] = p
	return p, nil
}

func (m *Memory) QueryPeople(_ context.Context, f PersonFilter) ([]types.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Person
	for _, p := range m.people {
		if !f.IncludeDeleted && !p.Visible() {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) UpdatePersonFields(_ context.Context, id string, fields map[string]any) (types.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.people[id]
	if !ok {
		return types.Person{}, apperrors.NotFound("person not found: "+id)
	}
	if v, ok := fields["name"].(string); ok {
		p.Name = v
	}
	p.LastModifiedAt = time.Now().UTC()
	m.people[id] = p
	return p, nil
}

func (m *Memory) SoftDeletePerson(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.people[id]
	if !ok {
		return apperrors.NotFound("person not found: "+id)
	}
	now := time.Now().UTC()
	p.DeletedAt = &now
	m.people[id] = p
	return nil
}

func (m *Memory) UndoDeletePerson(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.people[id]
	if !ok {
		return apperrors.NotFound("person not found: "+id)
	}
	p.DeletedAt = nil
	m.people[id] = p
	return nil
}

func (m *Memory) CreatePlace(_ context.Context, p types.Place) (types.Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = newID()
	p.CreatedAt = time.Now().UTC()
	p.LastModifiedAt = p.CreatedAt
	m.places[p.ID] = p
	return p, nil
}

func (m *Memory) QueryPlaces(_ context.Context, f PlaceFilter) ([]types.Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Place
	for _, p := range m.places {
		if !f.IncludeDeleted && !p.Visible() {
			continue
		}
		if f.Type != "" && p.Type != f.Type {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) UpdatePlaceFields(_ context.Context, id string, fields map[string]any) (types.Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.places[id]
	if !ok {
		return types.Place{}, apperrors.NotFound("place not found: "+id)
	}
	if v, ok := fields["geo"].(*types.Geo); ok {
		p.Geo = v
	}
	if v, ok := fields["address"].(string); ok {
		p.Address = v
	}
	if v, ok := fields["name"].(string); ok {
		p.Name = v
	}
	p.LastModifiedAt = time.Now().UTC()
	m.places[id] = p
	return p, nil
}

func (m *Memory) SoftDeletePlace(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.places[id]
	if !ok {
		return apperrors.NotFound("place not found: "+id)
	}
	now := time.Now().UTC()
	p.DeletedAt = &now
	m.places[id] = p
	return nil
}

func (m *Memory) UndoDeletePlace(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.places[id]
	if !ok {
		return apperrors.NotFound("place not found: "+id)
	}
	p.DeletedAt = nil
	m.places[id] = p
	return nil
}

func (m *Memory) CreateProject(_ context.Context, p types.Project) (types.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = newID()
	p.CreatedAt = time.Now().UTC()
	p.LastModifiedAt = p.CreatedAt
	m.projects[p.ID] = p
	return p, nil
}

func (m *Memory) QueryProjects(_ context.Context, f ProjectFilter) ([]types.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Project
	for _, p := range m.projects {
		if !f.IncludeDeleted && !p.Visible() {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) UpdateProjectFields(_ context.Context, id string, fields map[string]any) (types.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return types.Project{}, apperrors.NotFound("project not found: "+id)
	}
	if v, ok := fields["status"].(types.ProjectStatus); ok {
		p.Status = v
	}
	if v, ok := fields["name"].(string); ok {
		p.Name = v
	}
	p.LastModifiedAt = time.Now().UTC()
	m.projects[id] = p
	return p, nil
}

func (m *Memory) SoftDeleteProject(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return apperrors.NotFound("project not found: "+id)
	}
	now := time.Now().UTC()
	p.DeletedAt = &now
	m.projects[id] = p
	return nil
}

func (m *Memory) UndoDeleteProject(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return apperrors.NotFound("project not found: "+id)
	}
	p.DeletedAt = nil
	m.projects[id] = p
	return nil
}

func (m *Memory) CreateInboxItem(_ context.Context, item types.InboxItem) (types.InboxItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = newID()
	item.CreatedAt = time.Now().UTC()
	m.inbox[item.ID] = item
	return item, nil
}

func (m *Memory) QueryInboxItems(_ context.Context, f InboxFilter) ([]types.InboxItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.InboxItem
	for _, item := range m.inbox {
		if f.Processed != nil && item.Processed != *f.Processed {
			continue
		}
		if f.NeedsClarification != nil && item.NeedsClarification != *f.NeedsClarification {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) GetInboxItem(_ context.Context, id string) (types.InboxItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.inbox[id]
	if !ok {
		return types.InboxItem{}, apperrors.NotFound("inbox item not found: " + id)
	}
	return item, nil
}

func (m *Memory) MarkInboxProcessed(_ context.Context, id string, linkedTaskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.inbox[id]
	if !ok {
		return apperrors.NotFound("inbox item not found: "+id)
	}
	item.Processed = true
	item.LinkedTaskID = linkedTaskID
	m.inbox[id] = item
	return nil
}

func (m *Memory) CreatePattern(_ context.Context, p types.Pattern) (types.Pattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = newID()
	m.patterns[p.ID] = p
	return p, nil
}

func (m *Memory) QueryPatterns(_ context.Context, f PatternFilter) ([]types.Pattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Pattern
	for _, p := range m.patterns {
		if p.Confidence < f.MinConfidence {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUsed.After(out[j].LastUsed) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) UpdatePatternConfidence(_ context.Context, id string, confidence int, timesConfirmed int) (types.Pattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patterns[id]
	if !ok {
		return types.Pattern{}, apperrors.NotFound("pattern not found: "+id)
	}
	p.Confidence = confidence
	p.TimesConfirmed = timesConfirmed
	p.LastUsed = time.Now().UTC()
	m.patterns[id] = p
	return p, nil
}

func (m *Memory) CreateLogEntry(_ context.Context, entry types.LogEntry) (types.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = newID()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	m.log = append(m.log, entry)
	if entry.IdempotencyKey != "" {
		// Application-level uniqueness check-then-insert, per §4.3: the in-memory store
		// has no native unique-constraint support, so the caller's idempotency key is
		// the enforcement boundary. Log entries are the only writer of the index, so the
		// dedupe namespace is always the log table regardless of which db the action
		// logically concerns.
		m.dedupe[string(DbLog)+":"+entry.IdempotencyKey] = entry.ID
	}
	return entry, nil
}

func (m *Memory) CheckDedupe(_ context.Context, db Db, idempotencyKey string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.dedupe[string(db)+":"+idempotencyKey]
	return id, ok, nil
}

func (m *Memory) QueryLog(_ context.Context, f LogFilter) ([]types.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.LogEntry
	for _, e := range m.log {
		if f.ActionType != nil && e.ActionType != *f.ActionType {
			continue
		}
		if f.Since != nil && e.Timestamp.Before(*f.Since) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) CreateComparisonSheet(_ context.Context, sheet ComparisonSheet) (ComparisonSheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sheet.ID = newID()
	sheet.CreatedAt = time.Now().UTC()
	m.sheets[sheet.ID] = sheet
	return sheet, nil
}

func (m *Memory) QuerySentHistory(_ context.Context, senderEmail string, limit int) ([]SentMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SentMessage
	for _, s := range m.sent {
		if s.ToAddress == senderEmail {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SeedSentMessage is a test/dev helper to pre-populate sent history.
func (m *Memory) SeedSentMessage(msg SentMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
}

var _ Gateway = (*Memory)(nil)

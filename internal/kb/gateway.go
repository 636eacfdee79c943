// Package kb is the single choke point for the external knowledge-base store (§4.3): all
// other components hold ids and call through Gateway rather than touching the store
// directly. The wire transport to the actual store (a Notion-shaped paged REST API) is an
// out-of-scope collaborator per spec §6; this package owns the typed CRUD surface, the
// query-filter shapes, and the row mapping, grounded on the teacher's choke-point pattern
// in internal/domain/notifications (one package owns all durable state transitions).
package kb

import (
	"context"
	"time"

	"github.com/jnyross/secondbrain/internal/types"
)

// TaskFilter selects tasks for QueryTasks (§4.3).
type TaskFilter struct {
	DueBefore      *time.Time
	DueAfter       *time.Time
	ExcludeStatus  []types.TaskStatus
	IncludeDeleted bool
	Limit          int
}

// PersonFilter selects people for QueryPeople.
type PersonFilter struct {
	Name           string
	IncludeDeleted bool
	Limit          int
}

// PlaceFilter selects places for QueryPlaces.
type PlaceFilter struct {
	Name           string
	Type           types.PlaceType
	IncludeDeleted bool
	Limit          int
}

// ProjectFilter selects projects for QueryProjects.
type ProjectFilter struct {
	Name           string
	Status         types.ProjectStatus
	IncludeDeleted bool
	Limit          int
}

// InboxFilter selects inbox items for QueryInboxItems.
type InboxFilter struct {
	Processed          *bool
	NeedsClarification *bool
	Limit              int
}

// PatternFilter selects patterns for QueryPatterns.
type PatternFilter struct {
	MinConfidence int
	Limit         int
}

// LogFilter selects log rows for QueryLog.
type LogFilter struct {
	ActionType *types.ActionType
	Since      *time.Time
	Limit      int
}

// TaskFieldUpdate is a sparse set of Task field changes for UpdateTaskFields; nil pointers
// mean "leave unchanged".
type TaskFieldUpdate struct {
	Title      *string
	Status     *types.TaskStatus
	Priority   *types.TaskPriority
	DueAt      *time.Time
	DueTZName  *string
	Notes      *string
	Relations  *types.Relations
}

// Db names the logical table a dedupe/log check runs against.
type Db string

const (
	DbTasks    Db = "tasks"
	DbPeople   Db = "people"
	DbPlaces   Db = "places"
	DbProjects Db = "projects"
	DbInbox    Db = "inbox"
	DbPatterns Db = "patterns"
	DbLog      Db = "log"
	DbEmails   Db = "emails"
)

// Gateway is the typed CRUD surface over the external store (§4.3). All queries exclude
// deleted-at != null unless the filter's IncludeDeleted is set. soft_delete/undo_delete
// touch only deleted-at. Implementations do no retry of their own; retry lives in
// internal/queue and internal/retry, one layer up.
type Gateway interface {
	CreateTask(ctx context.Context, t types.Task) (types.Task, error)
	QueryTasks(ctx context.Context, f TaskFilter) ([]types.Task, error)
	UpdateTaskFields(ctx context.Context, id string, u TaskFieldUpdate) (types.Task, error)
	SoftDeleteTask(ctx context.Context, id string) error
	UndoDeleteTask(ctx context.Context, id string) error

	CreatePerson(ctx context.Context, p types.Person) (types.Person, error)
	QueryPeople(ctx context.Context, f PersonFilter) ([]types.Person, error)
	UpdatePersonFields(ctx context.Context, id string, fields map[string]any) (types.Person, error)
	SoftDeletePerson(ctx context.Context, id string) error
	UndoDeletePerson(ctx context.Context, id string) error

	CreatePlace(ctx context.Context, p types.Place) (types.Place, error)
	QueryPlaces(ctx context.Context, f PlaceFilter) ([]types.Place, error)
	UpdatePlaceFields(ctx context.Context, id string, fields map[string]any) (types.Place, error)
	SoftDeletePlace(ctx context.Context, id string) error
	UndoDeletePlace(ctx context.Context, id string) error

	CreateProject(ctx context.Context, p types.Project) (types.Project, error)
	QueryProjects(ctx context.Context, f ProjectFilter) ([]types.Project, error)
	UpdateProjectFields(ctx context.Context, id string, fields map[string]any) (types.Project, error)
	SoftDeleteProject(ctx context.Context, id string) error
	UndoDeleteProject(ctx context.Context, id string) error

	CreateInboxItem(ctx context.Context, item types.InboxItem) (types.InboxItem, error)
	QueryInboxItems(ctx context.Context, f InboxFilter) ([]types.InboxItem, error)
	GetInboxItem(ctx context.Context, id string) (types.InboxItem, error)
	MarkInboxProcessed(ctx context.Context, id string, linkedTaskID string) error

	CreatePattern(ctx context.Context, p types.Pattern) (types.Pattern, error)
	QueryPatterns(ctx context.Context, f PatternFilter) ([]types.Pattern, error)
	UpdatePatternConfidence(ctx context.Context, id string, confidence int, timesConfirmed int) (types.Pattern, error)

	CreateLogEntry(ctx context.Context, entry types.LogEntry) (types.LogEntry, error)
	CheckDedupe(ctx context.Context, db Db, idempotencyKey string) (existingID string, found bool, err error)
	QueryLog(ctx context.Context, f LogFilter) ([]types.LogEntry, error)

	// CreateComparisonSheet and QuerySentHistory are restored from the original
	// implementation's research/email-intelligence features (SPEC_FULL supplement).
	CreateComparisonSheet(ctx context.Context, sheet ComparisonSheet) (ComparisonSheet, error)
	QuerySentHistory(ctx context.Context, senderEmail string, limit int) ([]SentMessage, error)
}

// ComparisonSheet is a side-by-side research artifact for "compare X vs Y" requests.
type ComparisonSheet struct {
	ID        string
	Subject   string
	Options   []string
	Findings  map[string][]string // option -> bullet findings
	SourceURLs []string
	CreatedAt time.Time
}

// SentMessage is one row of outbound email/message history, used by internal/emailintel
// to derive SenderPattern.
type SentMessage struct {
	ID        string
	ToAddress string
	Body      string
	SentAt    time.Time
}

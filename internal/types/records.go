package types

import "time"

// Relations bundles the entity ids a Task/InboxItem may reference.
type Relations struct {
	PersonIDs []string
	PlaceIDs  []string
	ProjectID string
}

// Task is the primary actionable record (§3). DeletedAt == nil means the task is
// visible in default queries; the invariant is enforced by internal/kb, not by callers.
type Task struct {
	ID               string
	Title            string
	Status           TaskStatus
	Priority         TaskPriority
	DueAt            *time.Time // nil if no due date
	DueTZName        string     // IANA name the due instant was resolved in
	Source           Source
	Confidence       *int // 0-100, nil if not applicable
	CreatedBy        CreatedBy
	Relations        Relations
	ExternalDocID    string
	ExternalDocURL   string
	Notes            string
	DeletedAt        *time.Time
	CreatedAt        time.Time
	LastModifiedAt   time.Time
}

// Visible reports whether the task should appear in default (non-include-deleted)
// queries.
func (t Task) Visible() bool { return t.DeletedAt == nil }

// Person is a contact record (§3).
type Person struct {
	ID            string
	Name          string
	Aliases       []string
	Relationship  Relationship
	LastContact   *time.Time
	Notes         string
	DeletedAt     *time.Time
	CreatedAt     time.Time
	LastModifiedAt time.Time
}

func (p Person) Visible() bool { return p.DeletedAt == nil }

// Geo is a latitude/longitude pair.
type Geo struct {
	Lat float64
	Lng float64
}

// Place is a location record (§3).
type Place struct {
	ID             string
	Name           string
	Type           PlaceType
	Address        string
	Geo            *Geo
	ExternalPlaceID string
	LastVisit      *time.Time
	Rating         *int // 0-5
	Notes          string
	DeletedAt      *time.Time
	CreatedAt      time.Time
	LastModifiedAt time.Time
}

func (p Place) Visible() bool { return p.DeletedAt == nil }

// Enriched reports whether the place has already been through maps geocoding, used by
// internal/entities to enforce "at most once per record".
func (p Place) Enriched() bool { return p.Geo != nil }

// Project is a tracked project record (§3).
type Project struct {
	ID             string
	Name           string
	Type           ProjectType
	Status         ProjectStatus
	Deadline       *time.Time
	NextAction     string
	Notes          string
	DeletedAt      *time.Time
	CreatedAt      time.Time
	LastModifiedAt time.Time
}

func (p Project) Visible() bool { return p.DeletedAt == nil }

// InboxItem is a captured-but-not-yet-a-task message (§3).
type InboxItem struct {
	ID                 string
	RawInput           string
	Source             Source
	TransportChatID    string
	TransportMessageID string
	Confidence         int
	NeedsClarification bool
	AIInterpretation   string
	Processed          bool
	LinkedTaskID       string
	CreatedAt          time.Time
}

// LogEntry is one audit-log row (§3).
type LogEntry struct {
	ID                 string
	ActionType         ActionType
	IdempotencyKey     string
	InputText          string
	Interpretation     string
	ActionTaken        string
	Confidence         *int
	EntitiesAffected   []string
	ExternalAPI        string
	ExternalResourceID string
	ErrorCode          string
	ErrorMessage       string
	RetryCount         int
	Correction         string
	CorrectedAt        *time.Time
	UndoAvailableUntil *time.Time
	Timestamp          time.Time
}

// Pattern is a learned correction rule (§3). Invariants enforced by internal/patterns:
// TimesConfirmed >= 3 for anything persisted, AutoApplicable iff Confidence >= 70.
type Pattern struct {
	ID             string
	Trigger        string
	Meaning        string
	Confidence     int
	TimesConfirmed int
	Type           PatternType
	LastUsed       time.Time
}

// AutoApplicable reports whether the pattern meets the confidence threshold for
// unattended application (§4.6).
func (p Pattern) AutoApplicable() bool { return p.Confidence >= 70 }

// QueuedAction is one append-only offline-queue entry (§3).
type QueuedAction struct {
	ActionType     QueuedActionType
	IdempotencyKey string
	Data           map[string]string
	RetryCount     int
	ChatID         string
	MessageID      string
	EnqueuedAt     time.Time
}

// RecentAction is an in-memory, per-chat record of a just-created entity, used by the
// correction/undo handlers to target "the last thing I created" (§3, LIFO semantics).
type RecentAction struct {
	ActionType string
	EntityType string // "task" | "person" | "place" | "project" | "inbox"
	EntityID   string
	Title      string
	Timestamp  time.Time
	ChatID     string
	MessageID  string
}

// DeletedAction is an in-memory, per-chat record backing the 30-day undo window (§3).
type DeletedAction struct {
	EntityType string
	EntityID   string
	Title      string
	DeletedAt  time.Time
	ChatID     string
}

// SenderPattern is a cached email-intelligence derivation (§3), refreshed at most once
// per 24h.
type SenderPattern struct {
	SenderEmail     string
	ReplyCount      int
	TypicalGreeting string
	TypicalSignoff  string
	Tone            string // formal | casual | neutral
	Confidence      int
	CachedAt        time.Time
}

// Package types holds the typed records the core operates on (§3). These are in-memory
// representations of knowledge-base rows; internal/kb is the only package that persists
// or queries them against the external store.
package types

// TaskStatus enumerates a Task's lifecycle states.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusCancelled  TaskStatus = "cancelled"
	TaskStatusDeleted    TaskStatus = "deleted"
)

// TaskPriority enumerates a Task's priority.
type TaskPriority string

const (
	PriorityUrgent TaskPriority = "urgent"
	PriorityHigh   TaskPriority = "high"
	PriorityMedium TaskPriority = "medium"
	PriorityLow    TaskPriority = "low"
)

// CreatedBy records whether a human or the AI classifier authored a record.
type CreatedBy string

const (
	CreatedByHuman CreatedBy = "human"
	CreatedByAI    CreatedBy = "ai"
)

// Source enumerates where a captured message originated.
type Source string

const (
	SourceTelegramText  Source = "telegram-text"
	SourceTelegramVoice Source = "telegram-voice"
	SourceWhatsAppText  Source = "whatsapp-text"
	SourceWhatsAppVoice Source = "whatsapp-voice"
)

// Relationship enumerates a Person's relationship to the user. Priority for
// disambiguation tie-breaks is partner > family > friend > colleague > acquaintance.
type Relationship string

const (
	RelationshipPartner      Relationship = "partner"
	RelationshipFamily       Relationship = "family"
	RelationshipFriend       Relationship = "friend"
	RelationshipColleague    Relationship = "colleague"
	RelationshipAcquaintance Relationship = "acquaintance"
)

// RelationshipPriority gives lower numbers to higher-priority relationships, used by
// internal/entities' disambiguation tie-break.
var RelationshipPriority = map[Relationship]int{
	RelationshipPartner:      0,
	RelationshipFamily:       1,
	RelationshipFriend:       2,
	RelationshipColleague:    3,
	RelationshipAcquaintance: 4,
}

// PlaceType enumerates a Place's kind. Priority for tie-breaks is
// home > office > restaurant > cinema > venue > other.
type PlaceType string

const (
	PlaceTypeHome       PlaceType = "home"
	PlaceTypeOffice     PlaceType = "office"
	PlaceTypeRestaurant PlaceType = "restaurant"
	PlaceTypeCinema     PlaceType = "cinema"
	PlaceTypeVenue      PlaceType = "venue"
	PlaceTypeOther      PlaceType = "other"
)

// PlaceTypePriority mirrors RelationshipPriority for places.
var PlaceTypePriority = map[PlaceType]int{
	PlaceTypeHome:       0,
	PlaceTypeOffice:     1,
	PlaceTypeRestaurant: 2,
	PlaceTypeCinema:     3,
	PlaceTypeVenue:      4,
	PlaceTypeOther:      5,
}

// ProjectType enumerates a Project's kind.
type ProjectType string

const (
	ProjectTypeWork     ProjectType = "work"
	ProjectTypePersonal ProjectType = "personal"
)

// ProjectStatus enumerates a Project's lifecycle state. Active is preferred over
// non-active in disambiguation tie-breaks.
type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusPaused    ProjectStatus = "paused"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusCancelled ProjectStatus = "cancelled"
)

// ProjectStatusPriority gives "active" priority 0 and everything else 1, matching the
// spec's binary active/non-active tie-break rather than a full ranking.
var ProjectStatusPriority = map[ProjectStatus]int{
	ProjectStatusActive:    0,
	ProjectStatusPaused:    1,
	ProjectStatusCompleted: 1,
	ProjectStatusCancelled: 1,
}

// ActionType enumerates the audit log's action-type taxonomy (§3 LogEntry).
type ActionType string

const (
	ActionCapture         ActionType = "capture"
	ActionCreate          ActionType = "create"
	ActionUpdate          ActionType = "update"
	ActionDelete          ActionType = "delete"
	ActionSend            ActionType = "send"
	ActionResearch        ActionType = "research"
	ActionCalendarCreate  ActionType = "calendar-create"
	ActionError           ActionType = "error"
)

// PatternType enumerates what kind of value a learned Pattern rewrites.
type PatternType string

const (
	PatternTypeName     PatternType = "name"
	PatternTypePerson   PatternType = "person"
	PatternTypePlace    PatternType = "place"
	PatternTypePriority PatternType = "priority"
	PatternTypeDate     PatternType = "date"
)

// MatchedBy enumerates how an entity-service lookup matched a candidate (§4.4).
type MatchedBy string

const (
	MatchedByName    MatchedBy = "name"
	MatchedByAlias   MatchedBy = "alias"
	MatchedByAddress MatchedBy = "address"
	MatchedByType    MatchedBy = "type"
	MatchedByPartial MatchedBy = "partial"
	MatchedByCreated MatchedBy = "created"
)

// QueuedActionType enumerates the offline queue's action kinds (§3 QueuedAction).
type QueuedActionType string

const (
	QueuedActionCreateInbox  QueuedActionType = "create-inbox"
	QueuedActionCreateTask   QueuedActionType = "create-task"
	QueuedActionUpdateTask   QueuedActionType = "update-task"
	QueuedActionSoftDelete   QueuedActionType = "soft-delete"
	QueuedActionUndoDelete   QueuedActionType = "undo-delete"
	QueuedActionCreatePerson QueuedActionType = "create-person"
	QueuedActionCreatePlace  QueuedActionType = "create-place"
)

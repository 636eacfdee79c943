// Package audit implements the Audit Logger & Idempotency Index (§4.9): every action is
// recorded as a LogEntry, and the idempotency cache catches replays before they re-run a
// side effect. Grounded on the teacher's internal/domain/notifications/idempotency.go key
// discipline, generalized from "dedupe a single notification send" to the broader action
// taxonomy of §3's LogEntry.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jnyross/secondbrain/internal/kb"
	"github.com/jnyross/secondbrain/internal/types"
)

// CheckResult is the outcome of CheckIdempotency (§4.9).
type CheckResult struct {
	Duplicate    bool
	OriginalLogID string
}

// Logger is the C9 audit/idempotency component. The in-memory cache is checked first;
// a miss goes next, if durable is set, to a bbolt secondary index that survives process
// restarts (the in-memory cache alone would silently reopen the idempotency window on
// every redeploy), and finally to kb.Gateway.CheckDedupe.
type Logger struct {
	gw      kb.Gateway
	durable *DurableIndex

	mu    sync.Mutex
	cache map[string]string // idempotency key -> log id
}

// New builds a Logger bound to gw. durable may be nil to run with in-memory-only
// dedupe (acceptable for `check`/tests; production wiring always sets it).
func New(gw kb.Gateway, durable *DurableIndex) *Logger {
	return &Logger{gw: gw, durable: durable, cache: map[string]string{}}
}

// TransportKey builds the idempotency key shape for chat-transport messages (§4.9).
func TransportKey(source, chatID, msgID string) string {
	return fmt.Sprintf("%s:%s:%s", source, chatID, msgID)
}

// CalendarKey builds the idempotency key shape for calendar event creation (§4.9).
func CalendarKey(taskID string, date time.Time) string {
	return fmt.Sprintf("calendar:%s:%s", taskID, date.Format("2006-01-02"))
}

// BriefingKey builds the idempotency key shape for the daily briefing (§4.9).
func BriefingKey(date time.Time, chatID string) string {
	return fmt.Sprintf("briefing:%s:%s", date.Format("2006-01-02"), chatID)
}

// CheckIdempotency looks up key in the in-memory cache, then the durable index, then
// falls through to the KB gateway's dedupe check (§4.9).
func (l *Logger) CheckIdempotency(ctx context.Context, key string) (CheckResult, error) {
	l.mu.Lock()
	if id, ok := l.cache[key]; ok {
		l.mu.Unlock()
		return CheckResult{Duplicate: true, OriginalLogID: id}, nil
	}
	l.mu.Unlock()

	if l.durable != nil {
		if id, found, err := l.durable.Lookup(key); err != nil {
			return CheckResult{}, err
		} else if found {
			l.cacheKey(key, id)
			return CheckResult{Duplicate: true, OriginalLogID: id}, nil
		}
	}

	id, found, err := l.gw.CheckDedupe(ctx, kb.DbLog, key)
	if err != nil {
		return CheckResult{}, err
	}
	if found {
		l.cacheKey(key, id)
		return CheckResult{Duplicate: true, OriginalLogID: id}, nil
	}
	return CheckResult{Duplicate: false}, nil
}

func (l *Logger) cacheKey(key, logID string) {
	l.mu.Lock()
	l.cache[key] = logID
	l.mu.Unlock()
	if l.durable != nil {
		_ = l.durable.Record(key, logID)
	}
}

// LogParams carries the optional fields of log_action (§4.9).
type LogParams struct {
	InputText          string
	Interpretation     string
	ActionTaken        string
	Confidence         *int
	EntitiesAffected   []string
	ExternalAPI        string
	ExternalResourceID string
	ErrorCode          string
	ErrorMessage       string
	IncludeUndoWindow  bool
	Correction         string
}

// LogAction writes a LogEntry for actionType under key (§4.9): an undo window of 5
// minutes is attached when requested, and CorrectedAt is stamped when Correction is set.
func (l *Logger) LogAction(ctx context.Context, actionType types.ActionType, key string, p LogParams) (types.LogEntry, error) {
	now := time.Now().UTC()
	entry := types.LogEntry{
		ActionType:         actionType,
		IdempotencyKey:     key,
		InputText:          p.InputText,
		Interpretation:     p.Interpretation,
		ActionTaken:        p.ActionTaken,
		Confidence:         p.Confidence,
		EntitiesAffected:   p.EntitiesAffected,
		ExternalAPI:        p.ExternalAPI,
		ExternalResourceID: p.ExternalResourceID,
		ErrorCode:          p.ErrorCode,
		ErrorMessage:       p.ErrorMessage,
		Correction:         p.Correction,
		Timestamp:          now,
	}
	if p.IncludeUndoWindow {
		until := now.Add(5 * time.Minute)
		entry.UndoAvailableUntil = &until
	}
	if p.Correction != "" {
		entry.CorrectedAt = &now
	}

	stored, err := l.gw.CreateLogEntry(ctx, entry)
	if err != nil {
		return types.LogEntry{}, err
	}
	l.cacheKey(key, stored.ID)
	return stored, nil
}

// LogDeduplicated writes a dedupe marker entry (§4.9): key is prefixed with "dedupe:",
// and entities-affected includes the original log id.
func (l *Logger) LogDeduplicated(ctx context.Context, key, originalLogID string) (types.LogEntry, error) {
	entry := types.LogEntry{
		ActionType:       types.ActionCapture,
		IdempotencyKey:   "dedupe:" + key,
		ActionTaken:      "deduplicated: action already processed as " + originalLogID,
		EntitiesAffected: []string{originalLogID},
		Timestamp:        time.Now().UTC(),
	}
	return l.gw.CreateLogEntry(ctx, entry)
}

// CheckAndLog combines CheckIdempotency with the deduplicated-marker path (§4.9): if key
// is a duplicate, a dedupe marker is written and dup=true is returned so the caller skips
// the real action; otherwise the caller proceeds and is responsible for calling LogAction
// itself once the action completes.
func (l *Logger) CheckAndLog(ctx context.Context, key string) (dup bool, originalLogID string, err error) {
	result, err := l.CheckIdempotency(ctx, key)
	if err != nil {
		return false, "", err
	}
	if !result.Duplicate {
		return false, "", nil
	}
	if _, err := l.LogDeduplicated(ctx, key, result.OriginalLogID); err != nil {
		return true, result.OriginalLogID, err
	}
	return true, result.OriginalLogID, nil
}

// LogCapture is the log_capture convenience helper (§4.9).
func (l *Logger) LogCapture(ctx context.Context, key, inputText string, confidence *int) (types.LogEntry, error) {
	return l.LogAction(ctx, types.ActionCapture, key, LogParams{InputText: inputText, Confidence: confidence, ActionTaken: "captured"})
}

// LogCreate chooses CREATE vs CALENDAR_CREATE by entityType (§4.9).
func (l *Logger) LogCreate(ctx context.Context, key, entityType, entityID string, p LogParams) (types.LogEntry, error) {
	actionType := types.ActionCreate
	if entityType == "calendar" {
		actionType = types.ActionCalendarCreate
	}
	p.EntitiesAffected = append(p.EntitiesAffected, entityID)
	return l.LogAction(ctx, actionType, key, p)
}

// LogUpdate is the log_update convenience helper (§4.9).
func (l *Logger) LogUpdate(ctx context.Context, key, entityID string, p LogParams) (types.LogEntry, error) {
	p.EntitiesAffected = append(p.EntitiesAffected, entityID)
	return l.LogAction(ctx, types.ActionUpdate, key, p)
}

// LogDelete is the log_delete convenience helper (§4.9).
func (l *Logger) LogDelete(ctx context.Context, key, entityID string, p LogParams) (types.LogEntry, error) {
	p.EntitiesAffected = append(p.EntitiesAffected, entityID)
	p.IncludeUndoWindow = true
	return l.LogAction(ctx, types.ActionDelete, key, p)
}

// LogCalendarCreate is the log_calendar_create convenience helper (§4.9).
func (l *Logger) LogCalendarCreate(ctx context.Context, key, eventID string, p LogParams) (types.LogEntry, error) {
	p.ExternalAPI = "calendar"
	p.ExternalResourceID = eventID
	return l.LogAction(ctx, types.ActionCalendarCreate, key, p)
}

// LogBriefing is the log_briefing convenience helper (§4.9).
func (l *Logger) LogBriefing(ctx context.Context, key string, p LogParams) (types.LogEntry, error) {
	return l.LogAction(ctx, types.ActionSend, key, p)
}

// LogError is the log_error convenience helper (§4.9).
func (l *Logger) LogError(ctx context.Context, key, errorCode, errorMessage string) (types.LogEntry, error) {
	return l.LogAction(ctx, types.ActionError, key, LogParams{ErrorCode: errorCode, ErrorMessage: errorMessage})
}

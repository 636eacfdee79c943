// Package processor implements the Message Processor (C11, §4.11): the single
// orchestration point for one inbound message, sequencing the idempotency check,
// correction/undo delegation, proximity/research subservices, and the normal
// extract-apply-link-persist classification path. Grounded on the teacher's top-level
// dispatch-then-branch shape in internal/app/app.go (one function owns the whole
// request lifecycle and delegates to narrow collaborators, rather than each collaborator
// reaching back into the others).
package processor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jnyross/secondbrain/internal/apperrors"
	"github.com/jnyross/secondbrain/internal/audit"
	"github.com/jnyross/secondbrain/internal/corrections"
	"github.com/jnyross/secondbrain/internal/extractor"
	"github.com/jnyross/secondbrain/internal/kb"
	"github.com/jnyross/secondbrain/internal/patterns"
	"github.com/jnyross/secondbrain/internal/queue"
	"github.com/jnyross/secondbrain/internal/recent"
	"github.com/jnyross/secondbrain/internal/relations"
	"github.com/jnyross/secondbrain/internal/timeparse"
	"github.com/jnyross/secondbrain/internal/types"
)

// Config carries the tunables §6 exposes for the processor.
type Config struct {
	ConfidenceThreshold int    // default 80
	UserTimezone        string // IANA name, default UTC
	QueuePath           string // offline-queue JSONL file
}

// Processor is the C11 component.
type Processor struct {
	gw          kb.Gateway
	auditor     *audit.Logger
	corrections *corrections.Handler
	applicator  *patterns.Applicator
	linker      *relations.Linker
	actions     *recent.ActionRing
	proximity   *ProximityService // nil if not configured
	research    *Pipeline         // nil if not configured
	cfg         Config
}

// New builds a Processor. proximity and research may be nil when those subservices
// aren't configured (§4.11 steps 4/5 are then simply skipped).
func New(gw kb.Gateway, auditor *audit.Logger, correctionsHandler *corrections.Handler, applicator *patterns.Applicator, linker *relations.Linker, actions *recent.ActionRing, proximity *ProximityService, research *Pipeline, cfg Config) *Processor {
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = 80
	}
	if cfg.UserTimezone == "" {
		cfg.UserTimezone = "UTC"
	}
	return &Processor{
		gw: gw, auditor: auditor, corrections: correctionsHandler, applicator: applicator,
		linker: linker, actions: actions, proximity: proximity, research: research, cfg: cfg,
	}
}

// Process runs the full §4.11 flow for one inbound message.
func (p *Processor) Process(ctx context.Context, text, source, chatID, msgID string) (string, error) {
	key := audit.TransportKey(source, chatID, msgID)
	dup, _, err := p.auditor.CheckAndLog(ctx, key)
	if err != nil {
		return "", err
	}
	if dup {
		return "Got it.", nil
	}

	if reply, handled, err := p.corrections.Process(ctx, text, chatID, msgID); handled {
		return reply, err
	}

	if p.proximity != nil {
		if location, ok := parseProximityQuery(text); ok {
			return p.proximity.Query(ctx, location)
		}
	}

	if p.research != nil {
		if reply, ok, err := p.research.Handle(ctx, text, chatID, msgID); ok {
			return reply, err
		}
	}

	return p.classify(ctx, text, source, chatID, msgID)
}

var reImperativeVerb = regexp.MustCompile(`(?i)\b(call|email|text|meet|see|contact|tell|ask|buy|pay|finish|submit|send|pick up|drop off|review|schedule|book|order|cancel|renew|file|return)\b`)

// classify implements §4.11 step 6: extract -> pattern-apply -> link -> persist.
func (p *Processor) classify(ctx context.Context, text, source, chatID, msgID string) (string, error) {
	key := audit.TransportKey(source, chatID, msgID)
	extracted := extractor.Extract(text)

	peopleNames := make([]string, len(extracted.People))
	for i, person := range extracted.People {
		peopleNames[i] = person.Name
	}
	placeNames := make([]string, len(extracted.Places))
	for i, place := range extracted.Places {
		placeNames[i] = place.Name
	}

	applied := p.applicator.Apply(peopleNames, placeNames, text)
	for i := range extracted.People {
		extracted.People[i].Name = applied.People[i]
	}
	for i := range extracted.Places {
		extracted.Places[i].Name = applied.Places[i]
	}
	title := applied.Title

	linked, err := p.linker.Link(ctx, extracted, "", true)
	if err != nil {
		return "", err
	}

	var due *time.Time
	var dueTZName string
	if len(extracted.Dates) > 0 {
		if parsed, tzName, ok := timeparse.Parse(extracted.Dates[0].Text, p.cfg.UserTimezone, time.Now().UTC()); ok {
			due = &parsed
			dueTZName = tzName
		}
	}

	isTask := due != nil || reImperativeVerb.MatchString(text)
	confidence := computeConfidence(linked)

	reply := buildResponse(title, due, dueTZName, namesOf(linked.People), firstNameOf(linked.Places), projectNameOf(linked))

	relationsBundle := types.Relations{
		PersonIDs: idsOf(linked.People),
		PlaceIDs:  idsOf(linked.Places),
	}
	if linked.Project != nil {
		relationsBundle.ProjectID = linked.Project.ID
	}

	var entityID, entityType string
	if isTask {
		conf := confidence
		task, err := p.gw.CreateTask(ctx, types.Task{
			Title: title, Status: types.TaskStatusTodo, Priority: types.PriorityMedium,
			DueAt: due, DueTZName: dueTZName, Source: types.Source(source), Confidence: &conf,
			CreatedBy: types.CreatedByAI, Relations: relationsBundle,
		})
		if err != nil {
			return p.deferToQueue(err, queue.QueuedActionCreateTask, map[string]string{"title": title, "source": source}, source, chatID, msgID)
		}
		entityID, entityType = task.ID, "task"

		if _, err := p.auditor.LogCreate(ctx, key, "task", task.ID, audit.LogParams{
			InputText: text, ActionTaken: "created task", Confidence: &conf,
		}); err != nil {
			return "", err
		}
	} else {
		item, err := p.gw.CreateInboxItem(ctx, types.InboxItem{
			RawInput: text, Source: types.Source(source), TransportChatID: chatID, TransportMessageID: msgID,
			Confidence: confidence, NeedsClarification: confidence < p.cfg.ConfidenceThreshold,
		})
		if err != nil {
			return p.deferToQueue(err, queue.QueuedActionCreateInbox, map[string]string{"raw_input": text, "source": source, "transport_chat_id": chatID, "transport_message_id": msgID}, source, chatID, msgID)
		}
		entityID, entityType = item.ID, "inbox"

		conf := confidence
		if _, err := p.auditor.LogCreate(ctx, key, "inbox", item.ID, audit.LogParams{
			InputText: text, ActionTaken: "captured inbox item", Confidence: &conf,
		}); err != nil {
			return "", err
		}
	}

	p.actions.Track(chatID, types.RecentAction{
		ActionType: "create", EntityType: entityType, EntityID: entityID, Title: title,
		Timestamp: time.Now().UTC(), ChatID: chatID, MessageID: msgID,
	}, time.Now().UTC())

	return reply, nil
}

// deferToQueue implements §4.11 step 7: a transient KB failure routes the write to the
// offline queue and replies with the fixed offline string instead of surfacing the error.
// The queued action reuses the online-path idempotency key so a replayed delivery dedupes
// through C9 the same way a successful online write would.
func (p *Processor) deferToQueue(cause error, actionType types.QueuedActionType, data map[string]string, source, chatID, msgID string) (string, error) {
	if apperrors.KindOf(cause) != apperrors.KindTransientExternal {
		return "", cause
	}
	if err := queue.Enqueue(p.cfg.QueuePath, types.QueuedAction{
		ActionType: actionType, IdempotencyKey: audit.TransportKey(source, chatID, msgID), Data: data, ChatID: chatID, MessageID: msgID,
	}); err != nil {
		return "", err
	}
	return queue.SavedLocallyMessage, nil
}

func computeConfidence(rel relations.LinkedRelations) int {
	total := 0.0
	count := 0
	for _, e := range rel.People {
		total += e.CombinedConfidence
		count++
	}
	for _, e := range rel.Places {
		total += e.CombinedConfidence
		count++
	}
	if rel.Project != nil {
		total += rel.Project.CombinedConfidence
		count++
	}
	if count == 0 {
		return 50
	}
	conf := int(total / float64(count) * 100)
	if rel.NeedsReview && conf > 70 {
		conf = 70
	}
	if conf > 100 {
		conf = 100
	}
	return conf
}

func namesOf(entities []relations.LinkedEntity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.Name
	}
	return out
}

func firstNameOf(entities []relations.LinkedEntity) string {
	if len(entities) == 0 {
		return ""
	}
	return entities[0].Name
}

func projectNameOf(rel relations.LinkedRelations) string {
	if rel.Project == nil {
		return ""
	}
	return rel.Project.Name
}

func idsOf(entities []relations.LinkedEntity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.ID
	}
	return out
}

// buildResponse renders the deterministic acknowledgement text (§4.11): missing
// fragments are omitted along with their separators.
func buildResponse(title string, due *time.Time, tzName string, people []string, place, project string) string {
	var b strings.Builder
	b.WriteString("Got it. ")
	b.WriteString(title)

	if due != nil {
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			loc = time.UTC
		}
		local := due.In(loc)
		b.WriteString(fmt.Sprintf(", %s at %s", local.Weekday(), formatClock(local)))
	}
	if len(people) > 0 {
		b.WriteString(" with " + strings.Join(people, ", "))
	}
	if place != "" {
		b.WriteString(", at " + place)
	}
	if project != "" {
		b.WriteString(", for " + project)
	}
	b.WriteString(".")
	return b.String()
}

func formatClock(t time.Time) string {
	hour := t.Hour()
	suffix := "am"
	if hour >= 12 {
		suffix = "pm"
	}
	h12 := hour % 12
	if h12 == 0 {
		h12 = 12
	}
	if t.Minute() == 0 {
		return fmt.Sprintf("%d%s", h12, suffix)
	}
	return fmt.Sprintf("%d:%02d%s", h12, t.Minute(), suffix)
}

var reProximity = regexp.MustCompile(`(?i)\b(?:what can i do|tasks?|anything)\b.*\bnear\s+(.+)$`)

func parseProximityQuery(text string) (string, bool) {
	m := reProximity.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(strings.TrimRight(m[1], "?.! ")), true
}

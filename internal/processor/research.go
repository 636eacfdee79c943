package processor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jnyross/secondbrain/internal/audit"
	"github.com/jnyross/secondbrain/internal/kb"
	"github.com/jnyross/secondbrain/internal/types"
)

// Findings is a single research result: a summary plus the sources it was drawn from.
type Findings struct {
	Summary    string
	SourceURLs []string
}

// Comparison is a side-by-side research result for "compare X vs Y" requests.
type Comparison struct {
	Findings   map[string][]string // option -> bullet findings
	SourceURLs []string
}

// Researcher is the out-of-scope collaborator (§6) that performs the actual web research;
// a black box behind this port per SPEC_FULL's research-pipeline supplement.
type Researcher interface {
	Research(ctx context.Context, query string) (Findings, error)
	Compare(ctx context.Context, subject string, options []string) (Comparison, error)
}

// DocCreator is the out-of-scope collaborator that files a findings write-up in an
// external document store, returning an id and a shareable URL.
type DocCreator interface {
	CreateDoc(ctx context.Context, title, body string) (docID, docURL string, err error)
}

// Pipeline is the C11 research subservice (§4.11 step 5): it detects "research X" /
// "compare X vs Y" requests, runs the Researcher, files a findings Doc, and creates a
// linked follow-up Task. Grounded on the teacher's two-stage external-call-then-persist
// shape in internal/domain/calendar (call out, then record the durable side effect).
type Pipeline struct {
	gw         kb.Gateway
	auditor    *audit.Logger
	researcher Researcher
	docs       DocCreator
}

// NewPipeline builds a research Pipeline.
func NewPipeline(gw kb.Gateway, auditor *audit.Logger, researcher Researcher, docs DocCreator) *Pipeline {
	return &Pipeline{gw: gw, auditor: auditor, researcher: researcher, docs: docs}
}

var (
	reCompare  = regexp.MustCompile(`(?i)^compare\s+(.+?)\s+vs\.?\s+(.+?)[.?!]?$`)
	reResearch = regexp.MustCompile(`(?i)^(?:research|find out about|what(?:'s| is) the best|what are the best)\s+(.+?)[.?!]?$`)
)

// Handle returns ok=false when text doesn't match a research pattern, in which case the
// caller should fall through to normal classification.
func (p *Pipeline) Handle(ctx context.Context, text, chatID, msgID string) (string, bool, error) {
	if m := reCompare.FindStringSubmatch(text); m != nil {
		reply, err := p.handleCompare(ctx, strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), chatID, msgID)
		return reply, true, err
	}
	if m := reResearch.FindStringSubmatch(text); m != nil {
		reply, err := p.handleResearch(ctx, strings.TrimSpace(m[1]), chatID, msgID)
		return reply, true, err
	}
	return "", false, nil
}

func (p *Pipeline) handleResearch(ctx context.Context, query, chatID, msgID string) (string, error) {
	findings, err := p.researcher.Research(ctx, query)
	if err != nil {
		return "", err
	}

	docID, docURL, err := p.docs.CreateDoc(ctx, "Research: "+query, findings.Summary+"\n\nSources:\n"+strings.Join(findings.SourceURLs, "\n"))
	if err != nil {
		return "", err
	}

	task, err := p.gw.CreateTask(ctx, types.Task{
		Title: "Review research: " + query, Status: types.TaskStatusTodo, Priority: types.PriorityMedium,
		ExternalDocID: docID, ExternalDocURL: docURL, Notes: "Findings doc: " + docURL,
		Source: types.SourceTelegramText, CreatedBy: types.CreatedByAI,
	})
	if err != nil {
		return "", err
	}

	if _, err := p.auditor.LogCreate(ctx, audit.TransportKey("research", chatID, msgID)+":"+task.ID, "task", task.ID, audit.LogParams{
		InputText: query, ActionTaken: "created research task",
	}); err != nil {
		return "", err
	}

	return fmt.Sprintf("Done. Findings: %s — follow-up task created: %q.", docURL, task.Title), nil
}

func (p *Pipeline) handleCompare(ctx context.Context, subject string, rest, chatID, msgID string) (string, error) {
	options := []string{subject, rest}
	comparison, err := p.researcher.Compare(ctx, subject+" vs "+rest, options)
	if err != nil {
		return "", err
	}

	sheet, err := p.gw.CreateComparisonSheet(ctx, kb.ComparisonSheet{
		Subject: subject + " vs " + rest, Options: options, Findings: comparison.Findings,
		SourceURLs: comparison.SourceURLs, CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}

	task, err := p.gw.CreateTask(ctx, types.Task{
		Title: "Decide: " + subject + " vs " + rest, Status: types.TaskStatusTodo, Priority: types.PriorityMedium,
		Notes: "Comparison sheet: " + sheet.ID, Source: types.SourceTelegramText, CreatedBy: types.CreatedByAI,
	})
	if err != nil {
		return "", err
	}

	if _, err := p.auditor.LogCreate(ctx, audit.TransportKey("research", chatID, msgID)+":"+task.ID, "task", task.ID, audit.LogParams{
		InputText: subject + " vs " + rest, ActionTaken: "created comparison sheet and decision task",
	}); err != nil {
		return "", err
	}

	return fmt.Sprintf("Done. Comparison ready — decision task created: %q.", task.Title), nil
}

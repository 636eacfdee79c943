package kb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jnyross/secondbrain/internal/apperrors"
	"github.com/jnyross/secondbrain/internal/retry"
	"github.com/jnyross/secondbrain/internal/types"
)

// TableIDs routes logical db names to the external store's per-table page/database ids
// (§6 config: kb_db_tasks, kb_db_people, ...).
type TableIDs struct {
	Tasks    string
	People   string
	Places   string
	Projects string
	Inbox    string
	Patterns string
	Log      string
	Emails   string
}

// HTTPClient is the real Gateway implementation: a typed, paged JSON REST client against
// the knowledge-base wire contract (§6). The actual HTTP shape of that store is an
// out-of-scope external collaborator; this client only needs to speak generic "paged
// object CRUD over JSON", the same shape the teacher's adapters package uses against
// Telegram's Bot API HTTP surface.
type HTTPClient struct {
	baseURL string
	apiKey  string
	tables  TableIDs

	httpClient *http.Client
	limiter    *retry.Limiter
}

// NewHTTPClient builds a client against baseURL, authenticating with apiKey and routing
// table operations per tables. rps/burst bound outbound request rate (§5 concurrency
// budget for the KB gateway).
func NewHTTPClient(baseURL, apiKey string, tables TableIDs, rps float64, burst int) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		tables:     tables,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    retry.NewLimiter(rps, burst),
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return apperrors.Transient("kb: rate limit wait cancelled", err)
	}

	var reqBody bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reqBody).Encode(body); err != nil {
			return apperrors.Invariant("kb: encode request body", err)
		}
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return apperrors.Config("kb: invalid base url", err)
	}
	u.Path = u.Path + path

	req, err := http.NewRequestWithContext(ctx, method, u.String(), &reqBody)
	if err != nil {
		return apperrors.Invariant("kb: build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Transient("kb: request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return apperrors.Transient(fmt.Sprintf("kb: transient status %d", resp.StatusCode), nil)
	}
	if resp.StatusCode == http.StatusNotFound {
		return apperrors.NotFound("kb: resource not found")
	}
	if resp.StatusCode >= 400 {
		return apperrors.Permanent(fmt.Sprintf("kb: status %d", resp.StatusCode), nil)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.Transient("kb: decode response body", err)
		}
	}
	return nil
}

// RetryAfterExtractor reads a Retry-After-style hint carried on apperrors.Error.Cause,
// wired into internal/retry.Do by callers that want server-specified backoff honored
// (§5 "honors retry-after").
func RetryAfterExtractor(err error) (time.Duration, bool) {
	type retryAfterer interface{ RetryAfter() time.Duration }
	var ra retryAfterer
	if e, ok := err.(interface{ Unwrap() error }); ok {
		if inner, ok2 := e.Unwrap().(retryAfterer); ok2 {
			ra = inner
		}
	}
	if ra == nil {
		return 0, false
	}
	return ra.RetryAfter(), true
}

func (c *HTTPClient) CreateTask(ctx context.Context, t types.Task) (types.Task, error) {
	var out types.Task
	err := c.do(ctx, http.MethodPost, "/"+c.tables.Tasks, t, &out)
	return out, err
}

func (c *HTTPClient) QueryTasks(ctx context.Context, f TaskFilter) ([]types.Task, error) {
	var out []types.Task
	path := "/" + c.tables.Tasks + "/query?" + taskFilterQuery(f)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func taskFilterQuery(f TaskFilter) string {
	v := url.Values{}
	if f.DueBefore != nil {
		v.Set("due_before", f.DueBefore.Format(time.RFC3339))
	}
	if f.DueAfter != nil {
		v.Set("due_after", f.DueAfter.Format(time.RFC3339))
	}
	for _, s := range f.ExcludeStatus {
		v.Add("exclude_status", string(s))
	}
	if f.IncludeDeleted {
		v.Set("include_deleted", "true")
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	return v.Encode()
}

func (c *HTTPClient) UpdateTaskFields(ctx context.Context, id string, u TaskFieldUpdate) (types.Task, error) {
	var out types.Task
	err := c.do(ctx, http.MethodPatch, "/"+c.tables.Tasks+"/"+id, u, &out)
	return out, err
}

func (c *HTTPClient) SoftDeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/"+c.tables.Tasks+"/"+id+"/soft-delete", nil, nil)
}

func (c *HTTPClient) UndoDeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/"+c.tables.Tasks+"/"+id+"/undo-delete", nil, nil)
}

func (c *HTTPClient) CreatePerson(ctx context.Context, p types.Person) (types.Person, error) {
	var out types.Person
	err := c.do(ctx, http.MethodPost, "/"+c.tables.People, p, &out)
	return out, err
}

func (c *HTTPClient) QueryPeople(ctx context.Context, f PersonFilter) ([]types.Person, error) {
	var out []types.Person
	v := url.Values{}
	if f.Name != "" {
		v.Set("name", f.Name)
	}
	if f.IncludeDeleted {
		v.Set("include_deleted", "true")
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	err := c.do(ctx, http.MethodGet, "/"+c.tables.People+"/query?"+v.Encode(), nil, &out)
	return out, err
}

func (c *HTTPClient) UpdatePersonFields(ctx context.Context, id string, fields map[string]any) (types.Person, error) {
	var out types.Person
	err := c.do(ctx, http.MethodPatch, "/"+c.tables.People+"/"+id, fields, &out)
	return out, err
}

func (c *HTTPClient) SoftDeletePerson(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/"+c.tables.People+"/"+id+"/soft-delete", nil, nil)
}

func (c *HTTPClient) UndoDeletePerson(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/"+c.tables.People+"/"+id+"/undo-delete", nil, nil)
}

func (c *HTTPClient) CreatePlace(ctx context.Context, p types.Place) (types.Place, error) {
	var out types.Place
	err := c.do(ctx, http.MethodPost, "/"+c.tables.Places, p, &out)
	return out, err
}

func (c *HTTPClient) QueryPlaces(ctx context.Context, f PlaceFilter) ([]types.Place, error) {
	var out []types.Place
	v := url.Values{}
	if f.Name != "" {
		v.Set("name", f.Name)
	}
	if f.Type != "" {
		v.Set("type", string(f.Type))
	}
	if f.IncludeDeleted {
		v.Set("include_deleted", "true")
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	err := c.do(ctx, http.MethodGet, "/"+c.tables.Places+"/query?"+v.Encode(), nil, &out)
	return out, err
}

func (c *HTTPClient) UpdatePlaceFields(ctx context.Context, id string, fields map[string]any) (types.Place, error) {
	var out types.Place
	err := c.do(ctx, http.MethodPatch, "/"+c.tables.Places+"/"+id, fields, &out)
	return out, err
}

func (c *HTTPClient) SoftDeletePlace(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/"+c.tables.Places+"/"+id+"/soft-delete", nil, nil)
}

func (c *HTTPClient) UndoDeletePlace(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/"+c.tables.Places+"/"+id+"/undo-delete", nil, nil)
}

func (c *HTTPClient) CreateProject(ctx context.Context, p types.Project) (types.Project, error) {
	var out types.Project
	err := c.do(ctx, http.MethodPost, "/"+c.tables.Projects, p, &out)
	return out, err
}

func (c *HTTPClient) QueryProjects(ctx context.Context, f ProjectFilter) ([]types.Project, error) {
	var out []types.Project
	v := url.Values{}
	if f.Name != "" {
		v.Set("name", f.Name)
	}
	if f.Status != "" {
		v.Set("status", string(f.Status))
	}
	if f.IncludeDeleted {
		v.Set("include_deleted", "true")
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	err := c.do(ctx, http.MethodGet, "/"+c.tables.Projects+"/query?"+v.Encode(), nil, &out)
	return out, err
}

func (c *HTTPClient) UpdateProjectFields(ctx context.Context, id string, fields map[string]any) (types.Project, error) {
	var out types.Project
	err := c.do(ctx, http.MethodPatch, "/"+c.tables.Projects+"/"+id, fields, &out)
	return out, err
}

func (c *HTTPClient) SoftDeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/"+c.tables.Projects+"/"+id+"/soft-delete", nil, nil)
}

func (c *HTTPClient) UndoDeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/"+c.tables.Projects+"/"+id+"/undo-delete", nil, nil)
}

func (c *HTTPClient) CreateInboxItem(ctx context.Context, item types.InboxItem) (types.InboxItem, error) {
	var out types.InboxItem
	err := c.do(ctx, http.MethodPost, "/"+c.tables.Inbox, item, &out)
	return out, err
}

func (c *HTTPClient) QueryInboxItems(ctx context.Context, f InboxFilter) ([]types.InboxItem, error) {
	var out []types.InboxItem
	v := url.Values{}
	if f.Processed != nil {
		v.Set("processed", strconv.FormatBool(*f.Processed))
	}
	if f.NeedsClarification != nil {
		v.Set("needs_clarification", strconv.FormatBool(*f.NeedsClarification))
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	err := c.do(ctx, http.MethodGet, "/"+c.tables.Inbox+"/query?"+v.Encode(), nil, &out)
	return out, err
}

func (c *HTTPClient) GetInboxItem(ctx context.Context, id string) (types.InboxItem, error) {
	var out types.InboxItem
	err := c.do(ctx, http.MethodGet, "/"+c.tables.Inbox+"/"+id, nil, &out)
	return out, err
}

func (c *HTTPClient) MarkInboxProcessed(ctx context.Context, id string, linkedTaskID string) error {
	body := map[string]string{"linked_task_id": linkedTaskID}
	return c.do(ctx, http.MethodPatch, "/"+c.tables.Inbox+"/"+id+"/processed", body, nil)
}

func (c *HTTPClient) CreatePattern(ctx context.Context, p types.Pattern) (types.Pattern, error) {
	var out types.Pattern
	err := c.do(ctx, http.MethodPost, "/"+c.tables.Patterns, p, &out)
	return out, err
}

func (c *HTTPClient) QueryPatterns(ctx context.Context, f PatternFilter) ([]types.Pattern, error) {
	var out []types.Pattern
	v := url.Values{}
	v.Set("min_confidence", strconv.Itoa(f.MinConfidence))
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	err := c.do(ctx, http.MethodGet, "/"+c.tables.Patterns+"/query?"+v.Encode(), nil, &out)
	return out, err
}

func (c *HTTPClient) UpdatePatternConfidence(ctx context.Context, id string, confidence int, timesConfirmed int) (types.Pattern, error) {
	var out types.Pattern
	body := map[string]int{"confidence": confidence, "times_confirmed": timesConfirmed}
	err := c.do(ctx, http.MethodPatch, "/"+c.tables.Patterns+"/"+id, body, &out)
	return out, err
}

func (c *HTTPClient) CreateLogEntry(ctx context.Context, entry types.LogEntry) (types.LogEntry, error) {
	var out types.LogEntry
	err := c.do(ctx, http.MethodPost, "/"+c.tables.Log, entry, &out)
	return out, err
}

// CheckDedupe performs an application-level check-then-insert lookup (§4.3: "unique
// constraint on (db, idempotency-key) ... application-level check is acceptable").
func (c *HTTPClient) CheckDedupe(ctx context.Context, db Db, idempotencyKey string) (string, bool, error) {
	var out struct {
		ID    string `json:"id"`
		Found bool   `json:"found"`
	}
	v := url.Values{}
	v.Set("db", string(db))
	v.Set("key", idempotencyKey)
	err := c.do(ctx, http.MethodGet, "/"+c.tables.Log+"/dedupe?"+v.Encode(), nil, &out)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	return out.ID, out.Found, nil
}

func (c *HTTPClient) QueryLog(ctx context.Context, f LogFilter) ([]types.LogEntry, error) {
	var out []types.LogEntry
	v := url.Values{}
	if f.ActionType != nil {
		v.Set("action_type", string(*f.ActionType))
	}
	if f.Since != nil {
		v.Set("since", f.Since.Format(time.RFC3339))
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	err := c.do(ctx, http.MethodGet, "/"+c.tables.Log+"/query?"+v.Encode(), nil, &out)
	return out, err
}

func (c *HTTPClient) CreateComparisonSheet(ctx context.Context, sheet ComparisonSheet) (ComparisonSheet, error) {
	var out ComparisonSheet
	err := c.do(ctx, http.MethodPost, "/"+c.tables.Inbox+"/comparison-sheets", sheet, &out)
	return out, err
}

func (c *HTTPClient) QuerySentHistory(ctx context.Context, senderEmail string, limit int) ([]SentMessage, error) {
	var out []SentMessage
	v := url.Values{}
	v.Set("sender", senderEmail)
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	err := c.do(ctx, http.MethodGet, "/"+c.tables.Emails+"/sent?"+v.Encode(), nil, &out)
	return out, err
}

var _ Gateway = (*HTTPClient)(nil)

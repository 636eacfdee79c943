// Package appwiring assembles the C1-C14 components into one running Application,
// replacing the teacher's module-level singletons (internal/app/app.go builds one App
// by hand, field by field, from a loaded config) with the same shape generalized to this
// spec's larger component graph. Out-of-scope collaborators (maps, research, mail
// history, calendar, the two transport wire clients) are injected via Dependencies and
// left nil when not configured — every subsystem that depends on one degrades
// gracefully rather than failing to wire, exactly as §4.11/§4.12/§4.13 describe those
// subservices as optional.
package appwiring

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jnyross/secondbrain/internal/appconfig"
	"github.com/jnyross/secondbrain/internal/audit"
	"github.com/jnyross/secondbrain/internal/briefing"
	"github.com/jnyross/secondbrain/internal/corrections"
	"github.com/jnyross/secondbrain/internal/emailintel"
	"github.com/jnyross/secondbrain/internal/entities"
	"github.com/jnyross/secondbrain/internal/kb"
	"github.com/jnyross/secondbrain/internal/logging"
	"github.com/jnyross/secondbrain/internal/patterns"
	"github.com/jnyross/secondbrain/internal/processor"
	"github.com/jnyross/secondbrain/internal/queue"
	"github.com/jnyross/secondbrain/internal/recent"
	"github.com/jnyross/secondbrain/internal/relations"
	"github.com/jnyross/secondbrain/internal/scheduler"
	"github.com/jnyross/secondbrain/internal/softdelete"
	"github.com/jnyross/secondbrain/internal/storage"
	"github.com/jnyross/secondbrain/internal/transport"
	"github.com/jnyross/secondbrain/internal/transport/telegram"
	"github.com/jnyross/secondbrain/internal/transport/whatsapp"
	"go.uber.org/zap"
)

// actionRingSize/actionRingAge/deletedRingCap are the §3 RecentAction/DeletedAction
// ring defaults: "≤10, ≤30 min" for corrections, "≤50" for the 30-day undo window (the
// age bound there comes from softdelete.UndoWindow()).
const (
	actionRingSize = 10
	actionRingAge  = 30 * time.Minute
	deletedRingCap = 50
)

// Dependencies are the out-of-scope collaborators from §1/§6: real SDKs and external
// service clients the core depends on but does not implement. A nil field disables the
// feature that needs it rather than failing Application construction.
type Dependencies struct {
	MapsClient     processor.MapsClient        // geocode/travel-time, §4.11 step 4
	TravelTimer    scheduler.TravelTimer       // schedule-conflict travel estimate
	Researcher     processor.Researcher        // "research X" / "compare X vs Y", §4.11 step 5
	DocCreator     processor.DocCreator        // findings doc creation
	MailHistory    emailintel.MailHistoryReader // sent-mail history for §4.13's email section
	PlacesEnricher entities.MapsEnricher       // one-time place geocoding/enrichment
	TelegramClient telegram.BotAPIClient
	WhatsAppClient whatsapp.CloudAPIClient
}

// Application holds every wired component plus the resources (durable indexes, caches)
// that need an explicit Close.
type Application struct {
	Config appconfig.Config

	GW        kb.Gateway
	Auditor   *audit.Logger
	Processor *processor.Processor
	Ledger    *scheduler.Ledger
	Conflicts *scheduler.ConflictDetector
	Briefing  *briefing.Generator
	Clarifier *briefing.Clarifier
	Dispatch  *queue.Dispatcher

	Telegram *telegram.Transport
	WhatsApp *whatsapp.Transport

	durable     *audit.DurableIndex
	enrichCache *entities.BoltEnrichmentCache
}

// New builds and wires every component from cfg and deps. The knowledge-base gateway is
// an HTTPClient when KBBaseURL is set, otherwise an in-memory Gateway (used by `check`'s
// dry-run path and local smoke-testing per §6's CLI surface).
func New(cfg appconfig.Config, deps Dependencies) (*Application, error) {
	gw, err := buildGateway(cfg)
	if err != nil {
		return nil, err
	}

	// EnsureDir only creates the parent of the path it's given, so it's handed a
	// placeholder file inside cfg.DataDir rather than cfg.DataDir itself.
	if err := storage.EnsureDir(filepath.Join(cfg.DataDir, ".touch")); err != nil {
		return nil, fmt.Errorf("appwiring: prepare data dir: %w", err)
	}

	durable, err := audit.OpenDurableIndex(filepath.Join(cfg.DataDir, "audit-idempotency.bbolt"))
	if err != nil {
		return nil, fmt.Errorf("appwiring: open audit index: %w", err)
	}
	auditor := audit.New(gw, durable)

	actions := recent.NewActionRing(actionRingSize, actionRingAge)
	deleted := recent.NewDeletedRing(deletedRingCap, softdelete.UndoWindow())
	softdeleteSvc := softdelete.New(gw, auditor, deleted)

	detector := patterns.NewDetector()
	applicator := patterns.NewApplicator()
	correctionsHandler := corrections.New(gw, auditor, actions, softdeleteSvc, detector)

	var enrichCache *entities.BoltEnrichmentCache
	if deps.PlacesEnricher != nil {
		enrichCache, err = entities.OpenBoltEnrichmentCache(filepath.Join(cfg.DataDir, "place-enrichment.bbolt"))
		if err != nil {
			_ = durable.Close()
			return nil, fmt.Errorf("appwiring: open enrichment cache: %w", err)
		}
	}
	peopleSvc := entities.NewPeopleService(gw)
	placesSvc := entities.NewPlacesService(gw, deps.PlacesEnricher, enrichCache)
	projectsSvc := entities.NewProjectsService(gw)
	linker := relations.New(peopleSvc, placesSvc, projectsSvc)

	var proximity *processor.ProximityService
	if deps.MapsClient != nil {
		proximity = processor.NewProximityService(gw, deps.MapsClient, 0)
	}
	var pipeline *processor.Pipeline
	if deps.Researcher != nil && deps.DocCreator != nil {
		pipeline = processor.NewPipeline(gw, auditor, deps.Researcher, deps.DocCreator)
	}

	proc := processor.New(gw, auditor, correctionsHandler, applicator, linker, actions, proximity, pipeline, processor.Config{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		UserTimezone:        cfg.UserTimezone,
		QueuePath:           queuePath(cfg),
	})

	ledger, err := scheduler.OpenLedger(filepath.Join(cfg.DataDir, "nudges", "sent.json"))
	if err != nil {
		_ = durable.Close()
		closeEnrichCache(enrichCache)
		return nil, fmt.Errorf("appwiring: open nudge ledger: %w", err)
	}
	conflicts := scheduler.NewConflictDetector(gw, deps.TravelTimer)

	var mailAnalyzer *emailintel.Analyzer
	if deps.MailHistory != nil {
		mailAnalyzer = emailintel.NewAnalyzer(deps.MailHistory)
	}
	briefingGen := briefing.NewGenerator(gw, auditor, mailAnalyzer)
	clarifier := briefing.NewClarifier(gw, auditor)

	dispatcher := queue.NewDispatcher(gw)

	var telegramTransport *telegram.Transport
	if deps.TelegramClient != nil {
		telegramTransport = telegram.New(deps.TelegramClient, 0)
	}
	var whatsappTransport *whatsapp.Transport
	if deps.WhatsAppClient != nil {
		whatsappTransport = whatsapp.New(deps.WhatsAppClient, whatsapp.Config{
			VerifyToken: cfg.WhatsAppVerifyToken,
			AppSecret:   cfg.WhatsAppAppSecret,
		}, 0)
	}

	return &Application{
		Config:      cfg,
		GW:          gw,
		Auditor:     auditor,
		Processor:   proc,
		Ledger:      ledger,
		Conflicts:   conflicts,
		Briefing:    briefingGen,
		Clarifier:   clarifier,
		Dispatch:    dispatcher,
		Telegram:    telegramTransport,
		WhatsApp:    whatsappTransport,
		durable:     durable,
		enrichCache: enrichCache,
	}, nil
}

func buildGateway(cfg appconfig.Config) (kb.Gateway, error) {
	if cfg.KBBaseURL == "" {
		return kb.NewMemory(), nil
	}
	tables := kb.TableIDs{
		Tasks:    cfg.KBDBTasks,
		People:   cfg.KBDBPeople,
		Places:   cfg.KBDBPlaces,
		Projects: cfg.KBDBProjects,
		Inbox:    cfg.KBDBInbox,
		Patterns: cfg.KBDBPatterns,
		Log:      cfg.KBDBLog,
		Emails:   cfg.KBDBEmails,
	}
	return kb.NewHTTPClient(cfg.KBBaseURL, cfg.KBAPIKey, tables, 3, 5), nil
}

func queuePath(cfg appconfig.Config) string {
	return filepath.Join(cfg.DataDir, "queue", "pending.jsonl")
}

func closeEnrichCache(c *entities.BoltEnrichmentCache) {
	if c != nil {
		_ = c.Close()
	}
}

// Close releases durable resources. Safe to call once after the Application is no
// longer in use.
func (a *Application) Close() error {
	var errs error
	if a.durable != nil {
		if err := a.durable.Close(); err != nil {
			errs = joinErr(errs, err)
		}
	}
	if a.enrichCache != nil {
		if err := a.enrichCache.Close(); err != nil {
			errs = joinErr(errs, err)
		}
	}
	return errs
}

func joinErr(a, b error) error {
	if a == nil {
		return b
	}
	return fmt.Errorf("%w; %v", a, b)
}

// HandleMessage is the full C11+C13 inbound entrypoint: "/debrief" starts the
// clarification loop, an in-flight clarification session consumes the reply, otherwise
// the message falls through to the normal message processor (§4.11, §4.13).
func (a *Application) HandleMessage(ctx context.Context, env transport.Envelope) (string, error) {
	now := time.Now()
	if env.Text == "/debrief" {
		return a.Clarifier.HandleDebrief(ctx, env.ChatID, now)
	}
	if reply, ok, err := a.Clarifier.HandleReply(ctx, env.ChatID, env.Text, now); ok {
		return reply, err
	}
	return a.Processor.Process(ctx, env.Text, string(env.Source), env.ChatID, env.MessageID)
}

// transportSender adapts a transport.Transport to scheduler.Sender so the nudge tick
// loop can dispatch through whichever transport the chat belongs to.
type transportSender struct{ t transport.Transport }

func (s transportSender) Send(ctx context.Context, chatID, text string) error {
	return s.t.Send(ctx, transport.Envelope{ChatID: chatID, Text: text})
}

// RunNudgeTick runs one scheduler pass against t for the configured user chat (§4.12).
func (a *Application) RunNudgeTick(ctx context.Context, t transport.Transport, chatID string) (scheduler.Result, error) {
	return scheduler.Tick(ctx, a.GW, a.Ledger, transportSender{t}, chatID, time.Now())
}

// RunBriefing renders and dispatches the morning briefing through t for chatID (§4.13).
// A no-op (empty text) result means a briefing already ran today for that chat.
func (a *Application) RunBriefing(ctx context.Context, t transport.Transport, chatID string, senderEmails []string) error {
	text, dup, err := a.Briefing.Run(ctx, time.Now().In(timezoneOrUTC(a.Config.UserTimezone)), chatID, senderEmails)
	if err != nil {
		return err
	}
	if dup {
		logging.Debug("briefing already sent today", zap.String("chat_id", chatID))
		return nil
	}
	return t.Send(ctx, transport.Envelope{ChatID: chatID, Text: text})
}

// DrainQueue replays the offline queue (§4.10, CLI `drain-queue`).
func (a *Application) DrainQueue(ctx context.Context) (queue.Result, error) {
	return queue.Drain(ctx, queuePath(a.Config), a.Dispatch)
}

func timezoneOrUTC(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

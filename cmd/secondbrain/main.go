// Command secondbrain is the CLI entrypoint: load config, build the wired Application,
// and either run it long-lived or perform one of the one-shot operations (§6's CLI
// surface). Grounded on the teacher's cmd/userbot/main.go for the bootstrap/signal/
// graceful-shutdown shape and on thrapt-picobot's cmd/picobot/main.go for the
// cobra subcommand tree itself.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jnyross/secondbrain/internal/appconfig"
	"github.com/jnyross/secondbrain/internal/appwiring"
	"github.com/jnyross/secondbrain/internal/kb"
	"github.com/jnyross/secondbrain/internal/lifecycle"
	"github.com/jnyross/secondbrain/internal/logging"
	"github.com/jnyross/secondbrain/internal/transport"
	"go.uber.org/zap"
)

const (
	nudgeTickInterval  = time.Minute
	queueDrainInterval = 5 * time.Minute
)

// errPartialFailure carries no message of its own; the command that returns it has
// already printed its result line and just needs Execute to exit 1 without a redundant
// error message.
var errPartialFailure = fmt.Errorf("partial failure")

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		if err != errPartialFailure {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envPath string

	root := &cobra.Command{
		Use:           "secondbrain",
		Short:         "Personal-assistant message broker",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&envPath, "env", "e", ".env", "path to .env file")

	root.AddCommand(newRunCmd(&envPath))
	root.AddCommand(newCheckCmd(&envPath))
	root.AddCommand(newBriefingCmd(&envPath))
	root.AddCommand(newNudgeCmd(&envPath))
	root.AddCommand(newDrainQueueCmd(&envPath))
	return root
}

// bootstrap loads config and initializes logging, the two steps every subcommand needs
// before touching the Application.
func bootstrap(envPath string) (*appconfig.Loaded, error) {
	loaded, err := appconfig.Load(envPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := loaded.Get()
	logging.Init(logging.Options{Level: cfg.LogLevel})
	for _, w := range loaded.Warnings() {
		logging.Warn(w)
	}
	return loaded, nil
}

func newRunCmd(envPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start all configured transports and schedulers",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := bootstrap(*envPath)
			if err != nil {
				return err
			}
			cfg := loaded.Get()

			app, err := appwiring.New(cfg, appwiring.Dependencies{})
			if err != nil {
				return fmt.Errorf("build application: %w", err)
			}
			defer func() { _ = app.Close() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mgr := lifecycle.New(ctx)
			registerTransports(mgr, app)
			registerScheduler(mgr, app, cfg)
			registerQueueDrain(mgr, app)

			if err := mgr.StartAll(); err != nil {
				return fmt.Errorf("start subsystems: %w", err)
			}
			logging.Info("secondbrain running")

			<-ctx.Done()
			logging.Info("shutting down")
			if err := mgr.Shutdown(); err != nil {
				logging.Error("shutdown had errors", zap.Error(err))
			}
			return nil
		},
	}
}

// registerTransports wires one lifecycle node per configured-and-injected transport:
// it runs the transport's own receive loop and, for each normalized envelope, calls
// Application.HandleMessage and sends the reply back through the same transport.
func registerTransports(mgr *lifecycle.Manager, app *appwiring.Application) {
	if app.Telegram != nil {
		registerTransportNode(mgr, "telegram-receiver", app, app.Telegram)
	}
	if app.WhatsApp != nil {
		registerTransportNode(mgr, "whatsapp-receiver", app, app.WhatsApp)
	}
}

func registerTransportNode(mgr *lifecycle.Manager, name string, app *appwiring.Application, t transport.Transport) {
	done := make(chan struct{})
	_ = mgr.Register(name, "", nil,
		func(ctx context.Context) (context.Context, error) {
			go func() {
				defer close(done)
				pumpTransport(ctx, app, t)
			}()
			return nil, nil
		},
		func(ctx context.Context) error {
			<-done
			return nil
		},
	)
}

func pumpTransport(ctx context.Context, app *appwiring.Application, t transport.Transport) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-t.Receive():
			if !ok {
				return
			}
			reply, err := app.HandleMessage(ctx, env)
			if err != nil {
				logging.Error("handle message failed", zap.Error(err), zap.String("chat_id", env.ChatID))
				continue
			}
			if reply == "" {
				continue
			}
			if err := t.Send(ctx, transport.Envelope{ChatID: env.ChatID, Text: reply}); err != nil {
				logging.Error("send reply failed", zap.Error(err), zap.String("chat_id", env.ChatID))
			}
		}
	}
}

// registerScheduler runs the nudge tick loop and the morning briefing, both addressed to
// cfg.UserTransportChatID and dispatched through whichever transport is configured.
func registerScheduler(mgr *lifecycle.Manager, app *appwiring.Application, cfg appconfig.Config) {
	sender := primaryTransport(app)
	if sender == nil || cfg.UserTransportChatID == "" {
		logging.Warn("no transport or chat configured, scheduler disabled")
		return
	}

	done := make(chan struct{})
	_ = mgr.Register("scheduler", "", nil,
		func(ctx context.Context) (context.Context, error) {
			go func() {
				defer close(done)
				runSchedulerLoop(ctx, app, sender, cfg)
			}()
			return nil, nil
		},
		func(ctx context.Context) error {
			<-done
			return nil
		},
	)
}

func runSchedulerLoop(ctx context.Context, app *appwiring.Application, sender transport.Transport, cfg appconfig.Config) {
	ticker := time.NewTicker(nudgeTickInterval)
	defer ticker.Stop()

	lastBriefingDate := ""
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			if _, err := app.RunNudgeTick(ctx, sender, cfg.UserTransportChatID); err != nil {
				logging.Error("nudge tick failed", zap.Error(err))
			}

			if now.Hour() == cfg.MorningBriefingHour {
				today := now.Format("2006-01-02")
				if today != lastBriefingDate {
					if err := app.RunBriefing(ctx, sender, cfg.UserTransportChatID, nil); err != nil {
						logging.Error("briefing failed", zap.Error(err))
					}
					lastBriefingDate = today
				}
			}
		}
	}
}

func registerQueueDrain(mgr *lifecycle.Manager, app *appwiring.Application) {
	done := make(chan struct{})
	_ = mgr.Register("queue-drain", "", nil,
		func(ctx context.Context) (context.Context, error) {
			go func() {
				defer close(done)
				runQueueDrainLoop(ctx, app)
			}()
			return nil, nil
		},
		func(ctx context.Context) error {
			<-done
			return nil
		},
	)
}

func runQueueDrainLoop(ctx context.Context, app *appwiring.Application) {
	ticker := time.NewTicker(queueDrainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := app.DrainQueue(ctx); err != nil {
				logging.Error("queue drain failed", zap.Error(err))
			}
		}
	}
}

func primaryTransport(app *appwiring.Application) transport.Transport {
	if app.Telegram != nil {
		return app.Telegram
	}
	if app.WhatsApp != nil {
		return app.WhatsApp
	}
	return nil
}

func newCheckCmd(envPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Self-test: configuration parseable, knowledge base reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := bootstrap(*envPath)
			if err != nil {
				return err
			}
			cfg := loaded.Get()

			app, err := appwiring.New(cfg, appwiring.Dependencies{})
			if err != nil {
				return fmt.Errorf("build application: %w", err)
			}
			defer func() { _ = app.Close() }()

			if cfg.KBBaseURL != "" {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if _, err := app.GW.QueryTasks(ctx, kb.TaskFilter{Limit: 1}); err != nil {
					return fmt.Errorf("knowledge base unreachable: %w", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func newBriefingCmd(envPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "briefing",
		Short: "Run the morning briefing once",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := bootstrap(*envPath)
			if err != nil {
				return err
			}
			cfg := loaded.Get()

			app, err := appwiring.New(cfg, appwiring.Dependencies{})
			if err != nil {
				return fmt.Errorf("build application: %w", err)
			}
			defer func() { _ = app.Close() }()

			sender := primaryTransport(app)
			if sender == nil {
				return fmt.Errorf("no transport configured")
			}

			if err := app.RunBriefing(context.Background(), sender, cfg.UserTransportChatID, nil); err != nil {
				return fmt.Errorf("briefing failed: %w", err)
			}
			return nil
		},
	}
}

func newNudgeCmd(envPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "nudge",
		Short: "Run one nudge pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := bootstrap(*envPath)
			if err != nil {
				return err
			}
			cfg := loaded.Get()

			app, err := appwiring.New(cfg, appwiring.Dependencies{})
			if err != nil {
				return fmt.Errorf("build application: %w", err)
			}
			defer func() { _ = app.Close() }()

			sender := primaryTransport(app)
			if sender == nil {
				return fmt.Errorf("no transport configured")
			}

			result, err := app.RunNudgeTick(context.Background(), sender, cfg.UserTransportChatID)
			if err != nil {
				return fmt.Errorf("nudge failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d sent=%d skipped=%d\n", result.Scanned, result.Sent, result.Skipped)
			return nil
		},
	}
}

func newDrainQueueCmd(envPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "drain-queue",
		Short: "Replay the offline queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := bootstrap(*envPath)
			if err != nil {
				return err
			}
			cfg := loaded.Get()

			app, err := appwiring.New(cfg, appwiring.Dependencies{})
			if err != nil {
				return fmt.Errorf("build application: %w", err)
			}
			defer func() { _ = app.Close() }()

			result, err := app.DrainQueue(context.Background())
			if err != nil {
				return fmt.Errorf("drain failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed=%d retained=%d dropped=%d skipped=%d\n",
				result.Processed, result.Retained, result.Dropped, result.Skipped)
			if result.Retained > 0 || result.Dropped > 0 {
				return errPartialFailure
			}
			return nil
		},
	}
}

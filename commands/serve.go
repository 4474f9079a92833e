// commands/serve.go
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"promo-task-bot/bot"
	"promo-task-bot/config"
	"promo-task-bot/handlers"
	"promo-task-bot/middleware"
	"promo-task-bot/services"
	"promo-task-bot/telegram"
	"promo-task-bot/utils"
	"promo-task-bot/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot, the operator API and scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, log := opts.cfg, opts.log
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := migrate(ctx, db); err != nil {
		return err
	}

	tg := telegram.NewClient(cfg.TelegramAPIURL, cfg.BotToken, utils.NewHTTPClient(cfg.PollTimeout))
	svc := services.New(db, tg, serviceOptions(cfg), log)
	if _, err := svc.Config.EnsureSettings(ctx); err != nil {
		return err
	}
	if cfg.SeedFile != "" {
		n, err := seedFromFile(ctx, svc.Admin, cfg.SeedFile)
		if err != nil {
			return fmt.Errorf("seed %s: %w", cfg.SeedFile, err)
		}
		log.Info("🌱 seed applied", zap.String("file", cfg.SeedFile), zap.Int("inserted", n))
	}
	if err := attachUploader(ctx, cfg, svc.Export, log); err != nil {
		return err
	}

	broadcasts := &services.BroadcastService{
		DB:     db,
		Admin:  svc.Admin,
		FanOut: workers.NewBroadcaster(cfg.BroadcastConcurrency, log),
		Send: func(ctx context.Context, chatID int64, text string) error {
			_, err := tg.SendMessage(ctx, telegram.SendMessageParams{ChatID: chatID, Text: text})
			return err
		},
		Log:     log,
		BaseCtx: ctx,
	}
	dispatcher := &bot.Dispatcher{
		Engine:     svc.Engine,
		Admin:      svc.Admin,
		Broadcasts: broadcasts,
		Messenger:  tg,
		IsAdmin:    cfg.IsAdmin,
		Log:        log,
	}

	sched, err := services.StartMaintenanceScheduler(ctx, svc.Admin, svc.Export, cfg.AuditExportCron, log)
	if err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() { _ = sched.Shutdown() }()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	app.Use(middleware.RequestLogger(log))
	handlers.SetupHealthRoutes(app, db)
	if cfg.OperatorAPIToken == "" {
		log.Warn("⚠️ OPERATOR_API_TOKEN not set, operator API will reject every request")
	}
	handlers.SetupAdminRoutes(app, handlers.AdminDeps{
		Admin:         svc.Admin,
		Broadcasts:    broadcasts,
		Export:        svc.Export,
		OperatorToken: cfg.OperatorAPIToken,
		Log:           log,
	})

	g, gctx := errgroup.WithContext(ctx)

	var webhook *handlers.WebhookReceiver
	switch cfg.TelegramMode {
	case config.ModeWebhook:
		webhook = &handlers.WebhookReceiver{Secret: cfg.WebhookSecret, Handler: dispatcher, Ctx: gctx, Log: log}
		handlers.SetupWebhookRoutes(app, webhook)
		hookURL := strings.TrimRight(cfg.WebhookURL, "/") + "/telegram/webhook/" + cfg.WebhookSecret
		if err := tg.SetWebhook(ctx, hookURL, cfg.WebhookSecret); err != nil {
			return fmt.Errorf("set webhook: %w", err)
		}
		log.Info("✅ Telegram webhook registered")
	default:
		if err := tg.DeleteWebhook(ctx); err != nil {
			log.Warn("⚠️ deleteWebhook failed, long polling may be rejected", zap.Error(err))
		}
		poller := workers.NewUpdatePoller(tg, dispatcher, cfg.PollTimeout, log)
		g.Go(func() error {
			poller.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		log.Info("✅ Server running", zap.String("port", cfg.Port), zap.String("mode", cfg.TelegramMode))
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	err = g.Wait()
	if webhook != nil {
		webhook.Wait()
	}
	return err
}

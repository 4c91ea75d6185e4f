package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"substitute_sms_notifier/internal/app"
	"substitute_sms_notifier/internal/domain/sms"
	"substitute_sms_notifier/internal/infra/config"
	idb "substitute_sms_notifier/internal/infra/database"
	"substitute_sms_notifier/internal/infra/httpapi"
	"substitute_sms_notifier/internal/infra/jobs"
	"substitute_sms_notifier/internal/infra/logger"
	"substitute_sms_notifier/internal/infra/metrics"
	"substitute_sms_notifier/internal/infra/scheduler"
	smsinfra "substitute_sms_notifier/internal/infra/sms"
	"substitute_sms_notifier/internal/infra/storage"
	"substitute_sms_notifier/internal/infra/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")

	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"admin_id":    cfg.AdminTelegramID,
		"data_dir":    cfg.DataDir,
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewFileStore(cfg.DataDir, logger.Component("storage"))
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not prepare data directory")
	}

	var history sms.HistoryRepository = store
	if cfg.DatabaseURL != "" {
		db, err := idb.OpenHistoryDB(ctx, cfg.DatabaseURL)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not connect to database")
		}
		defer db.Close()
		pgHistory := idb.NewPostgresHistoryRepository(db)
		if err := pgHistory.EnsureSchema(ctx); err != nil {
			mainLogger.WithError(err).Fatal("Could not prepare sent_messages table")
		}
		history = storage.NewMirroredHistory(logger.Component("history"), store, pgHistory)
		mainLogger.Info("SMS history mirrored to PostgreSQL")
	}

	queue := jobs.NewQueue(jobs.QueueConfig{Workers: 1, MaxRetries: 2, Logger: logger.Component("jobs")})
	queue.Start(context.Background())

	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := logger.Component("telebot").WithError(err)
			if c != nil && c.Sender() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID)
			}
			entry.Error("Telegram handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not create Telegram bot")
	}
	client := telegram.NewTelebotAdapter(bot)

	var sender sms.Sender
	if cfg.SMSCommand == "" {
		sender = smsinfra.NewDryRunSender(logger.Component("sms"))
		mainLogger.Warn("SMS_COMMAND is not set, messages will only be logged")
	} else {
		sender, err = smsinfra.NewCommandSender(cfg.SMSCommand, 30*time.Second, logger.Component("sms"))
		if err != nil {
			mainLogger.WithError(err).Fatal("Invalid SMS_COMMAND")
		}
	}

	var gate sms.PermissionGate
	var operatorGate *telegram.OperatorGate
	if cfg.PermissionMode == config.PermissionModeGranted {
		gate = smsinfra.StaticGate{Granted: true}
	} else {
		operatorGate = telegram.NewOperatorGate(client, cfg.AdminTelegramID, logger.Component("gate"))
		gate = operatorGate
	}

	promMetrics := metrics.New()
	dispatcher := app.NewDispatcher(sender, gate, logger.Component("dispatcher"),
		app.WithSendInterval(cfg.SendInterval),
		app.WithMetrics(promMetrics),
	)
	session := app.NewSession(app.SessionDeps{
		Assignments: store,
		Contacts:    store,
		History:     history,
		Dispatcher:  dispatcher,
		Gate:        gate,
		Tasks:       queue,
		Metrics:     promMetrics,
		Logger:      logger.Component("session"),
	})

	if err := session.LoadHistory(ctx); err != nil {
		mainLogger.WithError(err).Warn("Could not load SMS history")
	}
	if err := session.Refresh(ctx); err != nil {
		mainLogger.WithError(err).Warn("Initial assignment load failed")
	}
	if n, err := session.RestoreSelection(ctx); err != nil {
		mainLogger.WithError(err).Warn("Could not restore saved selection")
	} else if n > 0 {
		session.PrepareWorklist()
		mainLogger.WithField("teachers", n).Info("Restored previous selection")
	}

	console := telegram.NewConsole(session, operatorGate, client, cfg.AdminTelegramID, logger.Component("console"))
	console.Register(ctx, bot)

	refreshScheduler := scheduler.NewRefreshScheduler(session, console, logger.Component("scheduler"),
		cfg.CronSpecRefresh, cfg.CronSpecDigest)
	if err := refreshScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start scheduler")
	}

	var statusServer *httpapi.Server
	if cfg.HTTPAddr != "" {
		statusServer = httpapi.NewServer(cfg.HTTPAddr, session, promMetrics, logger.Component("http"))
		statusServer.Start()
	}

	go bot.Start()
	mainLogger.Info("Substitute SMS notifier is running")

	<-ctx.Done()

	mainLogger.Info("Shutting down...")
	mainLogger.Info("Waiting for running campaign to finish...")
	session.Wait()
	bot.Stop()
	refreshScheduler.Stop()
	if statusServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			mainLogger.WithError(err).Warn("Status server shutdown failed")
		}
		cancel()
	}
	queue.Stop()
	mainLogger.Info("Application shut down gracefully.")
}

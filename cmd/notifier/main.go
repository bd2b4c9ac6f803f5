package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"laborx-notifier/internal/browser"
	"laborx-notifier/internal/config"
	"laborx-notifier/internal/dedup"
	"laborx-notifier/internal/httpfetch"
	"laborx-notifier/internal/logging"
	"laborx-notifier/internal/pipeline"
	"laborx-notifier/internal/scraper"
	"laborx-notifier/internal/scraper/laborx"
	"laborx-notifier/internal/server"
	"laborx-notifier/internal/telegram"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	flag.Parse()

	//load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("❌ Failed to init logger: %v", err)
	}
	logger.WithField("admins", len(cfg.Telegram.AdminIDs)).Info("🔧 Config loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//known links store
	store, err := dedup.OpenStore(ctx, cfg.Store)
	if err != nil {
		logger.WithError(err).Fatal("❌ Failed to open known links store")
	}
	defer store.Close()
	known := dedup.NewKnownSet(store, logging.Component(logger, "dedup"))

	//init telegram bot
	api, err := telegram.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.WithError(err).Fatal("❌ Failed to init Telegram Bot")
	}
	logger.WithField("bot", api.Self.UserName).Info("🤖 Telegram Bot initialized")

	notifier := telegram.NewNotifier(
		api,
		cfg.Telegram.AdminIDs,
		cfg.Telegram.ShowDeleteButton(),
		cfg.Telegram.Throttle(),
		logging.Component(logger, "telegram"),
	)
	callbacks := telegram.NewCallbackHandler(api, logging.Component(logger, "callbacks"))

	var transport scraper.Transport
	switch cfg.Fetch.Transport {
	case config.TransportHTTP:
		transport = httpfetch.NewTransport(cfg.Fetch)
	default:
		transport = browser.NewTransport(cfg.Browser, cfg.Fetch, logging.Component(logger, "browser"))
	}

	scraperLog := logging.Component(logger, "laborx")
	processor := pipeline.NewProcessor(
		laborx.NewExtractor(cfg.Site.Origin, cfg.Site.Selectors),
		notifier,
		pipeline.RetryPolicy{
			MaxAttempts:       cfg.Fetch.MaxAttempts,
			BackoffBase:       cfg.Fetch.BackoffBase,
			WaitAfterNavigate: cfg.Fetch.WaitAfterNavigate(),
		},
		scraperLog,
	)
	p := pipeline.New(
		transport,
		cfg.Site.IndexURL,
		cfg.Pipeline.Interval,
		laborx.NewDiscoverer(cfg.Site.Origin, cfg.Site.Selectors, scraperLog),
		processor,
		known,
		logging.Component(logger, "pipeline"),
	)
	controller := pipeline.NewController(p, logging.Component(logger, "controller"))

	//callback updates
	switch cfg.Telegram.Updates {
	case config.UpdatesPolling:
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		go callbacks.Listen(ctx, api.GetUpdatesChan(u))
		defer api.StopReceivingUpdates()
	case config.UpdatesWebhook:
		if !cfg.Server.Enabled {
			logger.Warn("⚠️ Webhook updates need server.enabled, delete buttons will not work")
			break
		}
		if err := telegram.RegisterWebhook(api, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			logger.WithError(err).Fatal("❌ Failed to register Telegram webhook")
		}
		logger.WithField("url", cfg.Telegram.WebhookURL).Info("🔗 Telegram webhook registered")
	}

	//admin server
	var srv *server.Server
	if cfg.Server.Enabled {
		var webhook *server.Webhook
		if cfg.Telegram.Updates == config.UpdatesWebhook {
			webhook = &server.Webhook{Handler: callbacks, Secret: cfg.Telegram.WebhookSecret}
		}
		srv, err = server.New(cfg.Server.Port, controller, p, webhook, logging.Component(logger, "server"))
		if err != nil {
			logger.WithError(err).Fatal("❌ Failed to init server")
		}
		go func() {
			if err := srv.Run(); err != nil {
				logger.WithError(err).Error("❌ Server failed")
				stop()
			}
		}()
	}

	if err := controller.Start(); err != nil {
		logger.WithError(err).Fatal("❌ Failed to start parsing")
	}

	<-ctx.Done()
	logger.Info("👋 Shutting down")

	if controller.Running() {
		if err := controller.Stop(); err != nil {
			logger.WithError(err).Error("❌ Failed to stop parsing")
		}
	}
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("❌ Server shutdown failed")
		}
	}
}

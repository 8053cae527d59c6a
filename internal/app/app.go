// Package app assembles the lead bot service: configuration, storage,
// abuse controls, the Telegram bot and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vektor-web/leadbot/internal/abuse"
	"github.com/vektor-web/leadbot/internal/ai"
	"github.com/vektor-web/leadbot/internal/bot"
	"github.com/vektor-web/leadbot/internal/catalog"
	"github.com/vektor-web/leadbot/internal/config"
	"github.com/vektor-web/leadbot/internal/db"
	"github.com/vektor-web/leadbot/internal/httpapi"
	"github.com/vektor-web/leadbot/internal/leads"
	"github.com/vektor-web/leadbot/internal/telegram"
)

const shutdownTimeout = 10 * time.Second

// RunServer boots the full service and blocks until the context is
// cancelled or the HTTP server fails.
func RunServer(ctx context.Context, cfg *config.Config, overridePort int) error {
	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	policy := abuse.DefaultPolicy()
	policy.ResetViolationsOnBanExpiry = cfg.Abuse.ResetViolationsOnBanExpiry
	guard := abuse.NewGuard(policy, abuse.NewStateStore(cfg.Abuse.StatePath), nil)
	limiter := abuse.NewLimiter(abuse.DefaultLimiterConfig(), nil)

	cooldown := leads.NewCooldown(
		cfg.Leads.RedisURL,
		time.Duration(cfg.Leads.CooldownSeconds)*time.Second,
		nil, nil,
	)
	store := leads.NewStore(conn)

	tg := telegram.NewClient(cfg.Telegram.Token, "", nil)
	notifier := leads.NewNotifier(tg, cfg.Telegram.NotifyChatID)

	cat, errCatalog := catalog.New(cfg.CatalogPath)
	if errCatalog != nil {
		return errCatalog
	}
	if cfg.CatalogPath != "" {
		go func() {
			if errWatch := cat.Watch(ctx); errWatch != nil {
				log.WithError(errWatch).Warn("catalog watcher stopped")
			}
		}()
	}

	aiClient := ai.NewClient(ai.Options{
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		BaseURL:     cfg.AI.BaseURL,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
		Timeout:     time.Duration(cfg.AI.TimeoutSec) * time.Second,
	}, nil)

	b := bot.New(
		bot.Config{BrandName: cfg.BrandName, DefaultLang: cfg.DefaultLang},
		tg, limiter, guard, cooldown, store, notifier, cat, aiClient,
	)

	router := httpapi.NewRouter(httpapi.Deps{
		DB:             conn,
		Bot:            b,
		WebhookSecret:  cfg.Telegram.WebhookSecret,
		LeadSecret:     cfg.Leads.Secret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		WebLimiter:     abuse.NewLimiter(httpapi.WebLimiterConfig(), nil),
		Guard:          guard,
		Store:          store,
		Notifier:       notifier,
		Admin:          cfg.Admin,
	})

	if errDelivery := setupDelivery(ctx, cfg, tg, b); errDelivery != nil {
		return errDelivery
	}

	port := cfg.Server.Port
	if overridePort > 0 {
		port = overridePort
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("port", port).Info("http server listening")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.WithError(errShutdown).Warn("http server shutdown failed")
		}
		return ctx.Err()
	case errServe := <-serveErr:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// setupDelivery switches the bot between webhook and long-poll delivery
// based on the configured webhook URL. Without a token the bot is left
// off and only the web endpoints run.
func setupDelivery(ctx context.Context, cfg *config.Config, tg *telegram.Client, b *bot.Bot) error {
	if cfg.Telegram.Token == "" {
		log.Warn("telegram token not configured, bot disabled")
		return nil
	}

	me, errMe := tg.GetMe(ctx)
	if errMe != nil {
		return fmt.Errorf("telegram getMe: %w", errMe)
	}
	log.WithField("username", me.Username).Info("telegram bot authorized")

	allowed := []string{"message", "callback_query"}
	if cfg.Telegram.WebhookURL != "" {
		if errHook := tg.SetWebhook(ctx, telegram.SetWebhookRequest{
			URL:                cfg.Telegram.WebhookURL,
			SecretToken:        cfg.Telegram.WebhookSecret,
			AllowedUpdates:     allowed,
			DropPendingUpdates: true,
		}); errHook != nil {
			return fmt.Errorf("telegram setWebhook: %w", errHook)
		}
		log.WithField("url", cfg.Telegram.WebhookURL).Info("webhook delivery enabled")
		return nil
	}

	if errDrop := tg.DeleteWebhook(ctx, true); errDrop != nil {
		log.WithError(errDrop).Warn("delete webhook failed")
	}
	go func() {
		if errPoll := b.Poll(ctx, cfg.Telegram.PollTimeoutSec); errPoll != nil && !errors.Is(errPoll, context.Canceled) {
			log.WithError(errPoll).Error("poller stopped")
		}
	}()
	log.Info("long-poll delivery enabled")
	return nil
}

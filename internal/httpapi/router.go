// Package httpapi exposes the HTTP surface of the lead bot: the Telegram
// webhook, the public web lead form and the admin API.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vektor-web/leadbot/internal/abuse"
	"github.com/vektor-web/leadbot/internal/config"
	"github.com/vektor-web/leadbot/internal/leads"
	"github.com/vektor-web/leadbot/internal/telegram"
	"gorm.io/gorm"
)

// UpdateHandler consumes Telegram updates delivered over the webhook.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd telegram.Update)
}

// Deps bundles the dependencies of the HTTP layer.
type Deps struct {
	DB             *gorm.DB
	Bot            UpdateHandler
	WebhookSecret  string        // Verified against X-Telegram-Bot-Api-Secret-Token.
	LeadSecret     string        // Shared secret for the web form; empty disables the check.
	AllowedOrigins []string      // CORS allow-list for the lead endpoint.
	WebLimiter     *abuse.Limiter // Per-IP bucket for the web form.
	Guard          *abuse.Guard
	Store          *leads.Store
	Notifier       *leads.Notifier
	Admin          config.AdminConfig
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", healthz(d.DB, d.WebhookSecret != "", len(d.AllowedOrigins)))

	webhookHandler := NewWebhookHandler(d.Bot, d.WebhookSecret)
	r.POST("/webhook", webhookHandler.Handle)

	leadHandler := NewLeadHandler(d.Store, d.Notifier, d.WebLimiter, d.LeadSecret)
	leadGroup := r.Group("/lead")
	leadGroup.Use(corsMiddleware(d.AllowedOrigins))
	leadGroup.POST("", leadHandler.Create)
	leadGroup.OPTIONS("", leadHandler.Preflight)

	adminGroup := r.Group("/v0/admin")

	authHandler := NewAuthHandler(d.Admin)
	adminGroup.POST("/login", authHandler.Login)

	authed := adminGroup.Group("")
	authed.Use(adminAuthMiddleware(d.Admin.JWT))

	leadsHandler := NewAdminLeadsHandler(d.Store)
	authed.GET("/leads", leadsHandler.List)

	abuseHandler := NewAbuseHandler(d.Guard)
	authed.GET("/abuse/:id", abuseHandler.Get)

	return r
}

// healthz reports liveness; with a database attached it pings it too.
func healthz(conn *gorm.DB, webhookSecured bool, origins int) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		state := "ok"
		if conn != nil {
			if sqlDB, errDB := conn.DB(); errDB != nil {
				status, state = http.StatusServiceUnavailable, "degraded"
			} else if errPing := sqlDB.PingContext(c.Request.Context()); errPing != nil {
				status, state = http.StatusServiceUnavailable, "degraded"
			}
		}
		c.JSON(status, gin.H{
			"status":          state,
			"webhook_secured": webhookSecured,
			"allowed_origins": origins,
		})
	}
}

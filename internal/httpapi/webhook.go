package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vektor-web/leadbot/internal/telegram"
)

const webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookHandler receives Telegram updates pushed by the Bot API.
type WebhookHandler struct {
	bot    UpdateHandler
	secret string
}

// NewWebhookHandler constructs a webhook handler. An empty secret skips
// the header check.
func NewWebhookHandler(bot UpdateHandler, secret string) *WebhookHandler {
	return &WebhookHandler{bot: bot, secret: secret}
}

// Handle validates the secret token and dispatches the update.
func (h *WebhookHandler) Handle(c *gin.Context) {
	if h.secret != "" && c.GetHeader(webhookSecretHeader) != h.secret {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	var upd telegram.Update
	if errBind := c.ShouldBindJSON(&upd); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	h.bot.HandleUpdate(c.Request.Context(), upd)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

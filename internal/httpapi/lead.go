package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/vektor-web/leadbot/internal/abuse"
	"github.com/vektor-web/leadbot/internal/leads"
	"github.com/vektor-web/leadbot/internal/models"
	"gorm.io/datatypes"
)

const leadSecretHeader = "X-Lead-Secret"

// Per-IP bucket settings for the web form. Tighter than the generic IP
// defaults: the form is a single action, not a conversation.
const (
	WebLeadCapacity     = 20.0
	WebLeadRefillPerSec = 0.7
	webLeadCost         = 1.0
)

// WebLimiterConfig returns the limiter settings used for the web form.
func WebLimiterConfig() abuse.LimiterConfig {
	cfg := abuse.DefaultLimiterConfig()
	cfg.IPCapacity = WebLeadCapacity
	cfg.IPRefillPerSec = WebLeadRefillPerSec
	return cfg
}

// LeadHandler accepts lead submissions from the website form.
type LeadHandler struct {
	store    *leads.Store
	notifier *leads.Notifier
	limiter  *abuse.Limiter
	secret   string
}

// NewLeadHandler constructs a web lead handler. An empty secret skips
// the header check.
func NewLeadHandler(store *leads.Store, notifier *leads.Notifier, limiter *abuse.Limiter, secret string) *LeadHandler {
	return &LeadHandler{store: store, notifier: notifier, limiter: limiter, secret: secret}
}

// leadRequest captures the website form payload.
type leadRequest struct {
	Name    string            `json:"name"`    // Visitor name.
	Contact string            `json:"contact"` // Phone, email or messenger handle.
	Package string            `json:"package"` // Selected package, if any.
	Message string            `json:"message"` // Free-form brief.
	Page    string            `json:"page"`    // Page the form was submitted from.
	Source  string            `json:"source"`  // Traffic source tag.
	UTM     map[string]string `json:"utm"`     // UTM parameters.
}

// Preflight terminates CORS preflight requests. Headers are set by the
// CORS middleware.
func (h *LeadHandler) Preflight(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Create validates, sanitizes and stores one web lead, then notifies the
// owner chat best-effort.
func (h *LeadHandler) Create(c *gin.Context) {
	if h.secret != "" && c.GetHeader(leadSecretHeader) != h.secret {
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "code": "forbidden"})
		return
	}

	ip := clientIP(c)
	if ok, retry := h.limiter.AllowIP(ip, webLeadCost); !ok {
		c.JSON(http.StatusTooManyRequests, gin.H{"ok": false, "code": "rate_limited", "retry_after": retry})
		return
	}

	var body leadRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "code": "bad_json"})
		return
	}

	name := leads.Sanitize(body.Name, leads.NameLimit)
	contact := leads.Sanitize(body.Contact, leads.ContactLimit)
	if name == "" && contact == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "code": "empty"})
		return
	}

	source := leads.Sanitize(body.Source, leads.SourceLimit)
	if source == "" {
		source = "web"
	}

	lead := &models.Lead{
		RequestID: leads.NewRequestID(),
		Source:    source,
		Name:      name,
		Contact:   contact,
		Package:   leads.Sanitize(body.Package, leads.PackageLimit),
		Message:   leads.Sanitize(body.Message, leads.MessageLimit),
		Page:      leads.Sanitize(body.Page, leads.PageLimit),
		IP:        ip,
		UserAgent: leads.Sanitize(c.GetHeader("User-Agent"), leads.UALimit),
		UTM:       encodeUTM(body.UTM),
	}

	if errCreate := h.store.Create(c.Request.Context(), lead); errCreate != nil {
		log.WithError(errCreate).WithField("request_id", lead.RequestID).Error("lead: store failed")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "code": "internal"})
		return
	}

	if h.notifier.Enabled() {
		if errNotify := h.notifier.Notify(c.Request.Context(), lead); errNotify != nil {
			log.WithError(errNotify).WithField("request_id", lead.RequestID).Error("lead: notification failed")
		} else if errMark := h.store.MarkDelivered(c.Request.Context(), lead.RequestID); errMark != nil {
			log.WithError(errMark).WithField("request_id", lead.RequestID).Warn("lead: mark delivered failed")
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "request_id": lead.RequestID})
}

// encodeUTM serializes the UTM map, dropping it entirely when the
// serialized form exceeds the storage limit.
func encodeUTM(utm map[string]string) datatypes.JSON {
	if len(utm) == 0 {
		return nil
	}
	raw, errMarshal := json.Marshal(utm)
	if errMarshal != nil || len(raw) > leads.UTMLimit {
		return nil
	}
	return datatypes.JSON(raw)
}

// clientIP resolves the real client address behind the edge proxy:
// Fly-Client-IP first, then the first X-Forwarded-For hop, then the
// connection address.
func clientIP(c *gin.Context) string {
	if ip := strings.TrimSpace(c.GetHeader("Fly-Client-IP")); ip != "" {
		return ip
	}
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		if ip := strings.TrimSpace(strings.Split(fwd, ",")[0]); ip != "" {
			return ip
		}
	}
	return c.ClientIP()
}

package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/vektor-web/leadbot/internal/abuse"
	"github.com/vektor-web/leadbot/internal/config"
	"github.com/vektor-web/leadbot/internal/leads"
	"github.com/vektor-web/leadbot/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// adminClaims is the JWT payload issued on admin login.
type adminClaims struct {
	Username string `json:"username"` // Authenticated admin username.
	jwt.RegisteredClaims
}

// issueAdminToken signs a fresh HS256 token for the admin session.
func issueAdminToken(cfg config.JWTConfig, username string) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(cfg.Expiry)
	claims := adminClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, errSign := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if errSign != nil {
		return "", time.Time{}, errSign
	}
	return signed, expires, nil
}

// parseAdminToken validates an admin JWT and returns its claims.
func parseAdminToken(secret, raw string) (*adminClaims, error) {
	claims := &adminClaims{}
	token, errParse := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if errParse != nil {
		return nil, errParse
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// adminAuthMiddleware validates admin JWTs from the Authorization header.
func adminAuthMiddleware(jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := parseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("adminUsername", claims.Username)
		c.Next()
	}
}

// AuthHandler serves admin login.
type AuthHandler struct {
	cfg config.AdminConfig
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(cfg config.AdminConfig) *AuthHandler {
	return &AuthHandler{cfg: cfg}
}

// loginRequest captures the admin login payload.
type loginRequest struct {
	Username string `json:"username"` // Admin username.
	Password string `json:"password"` // Admin password.
}

// Login verifies credentials against the configured bcrypt hash and
// issues a JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if h.cfg.PasswordHash == "" || h.cfg.JWT.Secret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin login disabled"})
		return
	}
	if body.Username != h.cfg.Username {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if errCompare := bcrypt.CompareHashAndPassword([]byte(h.cfg.PasswordHash), []byte(body.Password)); errCompare != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, expires, errIssue := issueAdminToken(h.cfg.JWT, body.Username)
	if errIssue != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_at": expires.Unix()})
}

// AdminLeadsHandler serves the lead listing for the admin UI.
type AdminLeadsHandler struct {
	store *leads.Store
}

// NewAdminLeadsHandler constructs an admin leads handler.
func NewAdminLeadsHandler(store *leads.Store) *AdminLeadsHandler {
	return &AdminLeadsHandler{store: store}
}

// List returns leads newest first with filtering and paging.
func (h *AdminLeadsHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	rows, total, errList := h.store.List(c.Request.Context(), leads.ListOptions{
		Limit:  limit,
		Offset: offset,
		Source: c.Query("source"),
		Search: c.Query("q"),
	})
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list leads failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, formatLead(&row))
	}
	c.JSON(http.StatusOK, gin.H{"leads": out, "total": total})
}

// formatLead shapes one lead row for the admin API.
func formatLead(lead *models.Lead) gin.H {
	return gin.H{
		"id":         lead.ID,
		"request_id": lead.RequestID,
		"source":     lead.Source,
		"user_id":    lead.UserID,
		"username":   lead.Username,
		"name":       lead.Name,
		"contact":    lead.Contact,
		"package":    lead.Package,
		"message":    lead.Message,
		"page":       lead.Page,
		"utm":        lead.UTM,
		"ip":         lead.IP,
		"user_agent": lead.UserAgent,
		"delivered":  lead.Delivered,
		"created_at": lead.CreatedAt,
	}
}

// AbuseHandler exposes per-user penalty state for support lookups.
type AbuseHandler struct {
	guard *abuse.Guard
}

// NewAbuseHandler constructs an abuse handler.
func NewAbuseHandler(guard *abuse.Guard) *AbuseHandler {
	return &AbuseHandler{guard: guard}
}

// Get returns the stored abuse state and current status for one user id.
func (h *AbuseHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	snap := h.guard.Snapshot(id)
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	status, left := h.guard.Status(id)
	c.JSON(http.StatusOK, gin.H{
		"user_id":      id,
		"status":       status,
		"seconds_left": left,
		"state":        snap,
	})
}

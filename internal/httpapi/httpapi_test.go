package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/vektor-web/leadbot/internal/abuse"
	"github.com/vektor-web/leadbot/internal/config"
	"github.com/vektor-web/leadbot/internal/leads"
	"github.com/vektor-web/leadbot/internal/models"
	"github.com/vektor-web/leadbot/internal/telegram"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// recordingBot captures updates the webhook hands over.
type recordingBot struct {
	updates []telegram.Update
}

func (b *recordingBot) HandleUpdate(_ context.Context, upd telegram.Update) {
	b.updates = append(b.updates, upd)
}

func openTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.Lead{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func testAdminConfig(t *testing.T) config.AdminConfig {
	t.Helper()
	hash, errHash := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	return config.AdminConfig{
		Username:     "admin",
		PasswordHash: string(hash),
		JWT:          config.JWTConfig{Secret: "test-secret", Expiry: time.Hour},
	}
}

func newTestRouter(t *testing.T, name string) (*gin.Engine, *recordingBot, *gorm.DB) {
	t.Helper()
	conn := openTestDB(t, name)
	bot := &recordingBot{}
	store := leads.NewStore(conn)
	guard := abuse.NewGuard(abuse.DefaultPolicy(), nil, nil)
	guard.OnMessage(42)

	r := NewRouter(Deps{
		DB:             conn,
		Bot:            bot,
		WebhookSecret:  "hook-secret",
		LeadSecret:     "lead-secret",
		AllowedOrigins: []string{"https://vektor-web.ru"},
		WebLimiter:     abuse.NewLimiter(WebLimiterConfig(), nil),
		Guard:          guard,
		Store:          store,
		Notifier:       leads.NewNotifier(nil, 0),
		Admin:          testAdminConfig(t),
	})
	return r, bot, conn
}

func postJSON(r *gin.Engine, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r, _, _ := newTestRouter(t, "api_health")
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestWebhookSecretCheck(t *testing.T) {
	r, bot, _ := newTestRouter(t, "api_webhook")

	upd := telegram.Update{UpdateID: 10}
	if w := postJSON(r, "/webhook", upd, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without secret, got %d", w.Code)
	}
	if len(bot.updates) != 0 {
		t.Fatalf("update must not reach the bot")
	}

	w := postJSON(r, "/webhook", upd, map[string]string{webhookSecretHeader: "hook-secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(bot.updates) != 1 || bot.updates[0].UpdateID != 10 {
		t.Fatalf("expected the update to reach the bot, got %+v", bot.updates)
	}
}

func TestWebLeadCreate(t *testing.T) {
	r, _, conn := newTestRouter(t, "api_lead")

	body := map[string]any{
		"name":    "Клара",
		"contact": "clara@example.com",
		"message": "Нужен магазин",
		"page":    "/pricing",
		"utm":     map[string]string{"utm_source": "yandex"},
	}
	w := postJSON(r, "/lead", body, map[string]string{
		leadSecretHeader: "lead-secret",
		"Fly-Client-IP":  "203.0.113.9",
		"User-Agent":     "Mozilla/5.0",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		OK        bool   `json:"ok"`
		RequestID string `json:"request_id"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if !resp.OK || len(resp.RequestID) != 12 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	var lead models.Lead
	if errFind := conn.Where("request_id = ?", resp.RequestID).First(&lead).Error; errFind != nil {
		t.Fatalf("load lead: %v", errFind)
	}
	if lead.Source != "web" || lead.IP != "203.0.113.9" || lead.UserAgent != "Mozilla/5.0" {
		t.Fatalf("unexpected lead: %+v", lead)
	}
	if !strings.Contains(string(lead.UTM), "yandex") {
		t.Fatalf("expected utm to be stored, got %s", lead.UTM)
	}
}

func TestWebLeadValidation(t *testing.T) {
	r, _, _ := newTestRouter(t, "api_lead_validate")
	secret := map[string]string{leadSecretHeader: "lead-secret"}

	if w := postJSON(r, "/lead", map[string]any{"contact": "x"}, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without secret, got %d", w.Code)
	}
	if w := postJSON(r, "/lead", map[string]any{"name": "", "contact": "  "}, secret); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty lead, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/lead", strings.NewReader("{not json"))
	req.Header.Set(leadSecretHeader, "lead-secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "bad_json") {
		t.Fatalf("expected bad_json code, got %s", w.Body.String())
	}
}

func TestWebLeadRateLimit(t *testing.T) {
	conn := openTestDB(t, "api_lead_rl")
	handler := NewLeadHandler(
		leads.NewStore(conn),
		leads.NewNotifier(nil, 0),
		abuse.NewLimiter(abuse.LimiterConfig{IPCapacity: 2, IPRefillPerSec: 0.5}, nil),
		"",
	)
	r := gin.New()
	r.POST("/lead", handler.Create)

	body := map[string]any{"contact": "clara@example.com"}
	headers := map[string]string{"Fly-Client-IP": "198.51.100.7"}
	for i := 0; i < 2; i++ {
		if w := postJSON(r, "/lead", body, headers); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}

	w := postJSON(r, "/lead", body, headers)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	var resp struct {
		Code       string `json:"code"`
		RetryAfter int    `json:"retry_after"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.Code != "rate_limited" || resp.RetryAfter < 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	// A different address keeps its own bucket.
	if w := postJSON(r, "/lead", body, map[string]string{"Fly-Client-IP": "198.51.100.8"}); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for a fresh ip, got %d", w.Code)
	}
}

func TestLeadCORSPreflight(t *testing.T) {
	r, _, _ := newTestRouter(t, "api_cors")

	req := httptest.NewRequest(http.MethodOptions, "/lead", nil)
	req.Header.Set("Origin", "https://vektor-web.ru")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://vektor-web.ru" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, leadSecretHeader) {
		t.Fatalf("expected lead secret header allowed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/lead", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unknown origin must get no CORS headers, got %q", got)
	}
}

func TestAdminLoginAndLeadsList(t *testing.T) {
	r, _, conn := newTestRouter(t, "api_admin")

	if w := postJSON(r, "/v0/admin/login", map[string]string{"username": "admin", "password": "wrong"}, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", w.Code)
	}

	w := postJSON(r, "/v0/admin/login", map[string]string{"username": "admin", "password": "hunter2"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var login struct {
		Token string `json:"token"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &login); errDecode != nil {
		t.Fatalf("decode login: %v", errDecode)
	}
	if login.Token == "" {
		t.Fatalf("expected a token")
	}

	if errCreate := conn.Create(&models.Lead{RequestID: "req000000001", Source: "web", Contact: "clara@example.com"}).Error; errCreate != nil {
		t.Fatalf("seed lead: %v", errCreate)
	}

	req := httptest.NewRequest(http.MethodGet, "/v0/admin/leads", nil)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	if w2.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w2.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v0/admin/leads?source=web", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	w3 := httptest.NewRecorder()
	r.ServeHTTP(w3, req)
	if w3.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w3.Code, w3.Body.String())
	}
	var listing struct {
		Total int `json:"total"`
	}
	if errDecode := json.Unmarshal(w3.Body.Bytes(), &listing); errDecode != nil {
		t.Fatalf("decode listing: %v", errDecode)
	}
	if listing.Total != 1 {
		t.Fatalf("expected one lead, got %d", listing.Total)
	}
}

func TestAdminAbuseLookup(t *testing.T) {
	r, _, _ := newTestRouter(t, "api_abuse")

	w := postJSON(r, "/v0/admin/login", map[string]string{"username": "admin", "password": "hunter2"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d", w.Code)
	}
	var login struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &login)

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+login.Token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	if rec := get("/v0/admin/abuse/9999"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unseen user, got %d", rec.Code)
	}
	if rec := get("/v0/admin/abuse/nope"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}

	rec := get("/v0/admin/abuse/42")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Status string `json:"status"`
		UserID int64  `json:"user_id"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if resp.Status != string(abuse.StatusOK) || resp.UserID != 42 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

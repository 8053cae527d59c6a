package leads

import (
	"strings"
	"testing"

	"github.com/vektor-web/leadbot/internal/models"
)

func TestFormatHTMLWebLead(t *testing.T) {
	card := FormatHTML(&models.Lead{
		RequestID: "abc123def456",
		Source:    "web",
		Name:      "Клара <b>",
		Contact:   "clara@example.com",
		Page:      "/pricing",
		IP:        "203.0.113.9",
	})

	if !strings.HasPrefix(card, "<b>Новая заявка с сайта</b>") {
		t.Fatalf("unexpected title: %q", card)
	}
	if !strings.Contains(card, "<code>abc123def456</code>") {
		t.Fatalf("expected request id, got %q", card)
	}
	if strings.Contains(card, "Клара <b>") || !strings.Contains(card, "Клара &lt;b&gt;") {
		t.Fatalf("user input must be escaped, got %q", card)
	}
	if strings.Contains(card, "Пакет:") {
		t.Fatalf("empty fields must be omitted, got %q", card)
	}
}

func TestFormatHTMLBotLeadTelegramTag(t *testing.T) {
	userID := int64(7)
	card := FormatHTML(&models.Lead{
		RequestID: "abc123def456",
		Source:    "consult",
		UserID:    &userID,
		Username:  "ivan",
		Contact:   "@ivan",
	})
	if !strings.HasPrefix(card, "<b>Новая заявка из бота</b>") {
		t.Fatalf("unexpected title: %q", card)
	}
	if !strings.Contains(card, "<b>Telegram:</b> @ivan") {
		t.Fatalf("expected username tag, got %q", card)
	}

	card = FormatHTML(&models.Lead{RequestID: "x", Source: "consult", UserID: &userID, Contact: "c"})
	if !strings.Contains(card, "<b>Telegram:</b> ID:7") {
		t.Fatalf("expected numeric fallback tag, got %q", card)
	}
}

func TestNotifierDisabled(t *testing.T) {
	n := NewNotifier(nil, 0)
	if n.Enabled() {
		t.Fatalf("notifier without a chat must be disabled")
	}
	var nilNotifier *Notifier
	if nilNotifier.Enabled() {
		t.Fatalf("nil notifier must be disabled")
	}
}

package leads

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/vektor-web/leadbot/internal/models"
	"github.com/vektor-web/leadbot/internal/telegram"
)

// Notifier delivers new-lead notifications to the owner chat.
type Notifier struct {
	tg     *telegram.Client
	chatID int64
}

// NewNotifier constructs a Notifier. A zero chatID disables delivery.
func NewNotifier(tg *telegram.Client, chatID int64) *Notifier {
	return &Notifier{tg: tg, chatID: chatID}
}

// Enabled reports whether an owner chat is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.tg != nil && n.chatID != 0
}

// Notify sends the lead card to the owner chat.
func (n *Notifier) Notify(ctx context.Context, lead *models.Lead) error {
	if !n.Enabled() {
		return fmt.Errorf("leads: notifier disabled")
	}
	_, errSend := n.tg.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID:                n.chatID,
		Text:                  FormatHTML(lead),
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	return errSend
}

// FormatHTML renders the manager-facing lead card. Every user-supplied
// value is escaped.
func FormatHTML(lead *models.Lead) string {
	esc := html.EscapeString

	title := "Новая заявка из бота"
	if lead.Source == "web" || strings.HasPrefix(lead.Source, "site") {
		title = "Новая заявка с сайта"
	}
	ts := lead.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	lines := []string{
		"<b>" + title + "</b>",
		fmt.Sprintf("<b>request_id:</b> <code>%s</code>", esc(lead.RequestID)),
		fmt.Sprintf("<b>ts:</b> <code>%s</code>", esc(ts.UTC().Format(time.RFC3339))),
		fmt.Sprintf("<b>source:</b> %s", esc(lead.Source)),
	}
	if lead.UserID != nil {
		tag := fmt.Sprintf("ID:%d", *lead.UserID)
		if lead.Username != "" {
			tag = "@" + lead.Username
		}
		lines = append(lines, fmt.Sprintf("<b>Telegram:</b> %s", esc(tag)))
	}
	if lead.Name != "" {
		lines = append(lines, fmt.Sprintf("<b>Имя:</b> %s", esc(lead.Name)))
	}
	if lead.Contact != "" {
		lines = append(lines, fmt.Sprintf("<b>Контакт:</b> %s", esc(lead.Contact)))
	}
	if lead.Package != "" {
		lines = append(lines, fmt.Sprintf("<b>Пакет:</b> %s", esc(lead.Package)))
	}
	if lead.Page != "" {
		lines = append(lines, fmt.Sprintf("<b>Страница:</b> %s", esc(lead.Page)))
	}
	if lead.IP != "" {
		lines = append(lines, fmt.Sprintf("<b>IP:</b> <code>%s</code>", esc(lead.IP)))
	}
	if lead.UserAgent != "" {
		lines = append(lines, fmt.Sprintf("<b>UA:</b> <code>%s</code>", esc(lead.UserAgent)))
	}
	if len(lead.UTM) > 0 {
		lines = append(lines, fmt.Sprintf("<b>UTM:</b> <code>%s</code>", esc(Sanitize(string(lead.UTM), UTMLimit))))
	}
	if lead.Message != "" {
		lines = append(lines, fmt.Sprintf("<b>Сообщение:</b>\n%s", esc(lead.Message)))
	}
	return strings.Join(lines, "\n")
}

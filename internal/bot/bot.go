package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vektor-web/leadbot/internal/abuse"
	"github.com/vektor-web/leadbot/internal/ai"
	"github.com/vektor-web/leadbot/internal/catalog"
	"github.com/vektor-web/leadbot/internal/leads"
	"github.com/vektor-web/leadbot/internal/models"
	"github.com/vektor-web/leadbot/internal/telegram"
	"github.com/vektor-web/leadbot/internal/texts"
)

// Costs charged against the per-user token bucket. An AI answer is
// noticeably more expensive than a plain interaction.
const (
	textCost = 1.0
	aiCost   = 2.5
)

// Inbound and outbound text length caps, in runes.
const (
	maxUserText = 4000
	maxAIReply  = 3500
)

// Config holds the presentation settings of the bot.
type Config struct {
	BrandName   string
	DefaultLang string
}

// Bot wires the Telegram transport to the abuse controls, the lead
// funnel and the AI fallback.
type Bot struct {
	cfg      Config
	tg       *telegram.Client
	limiter  *abuse.Limiter
	guard    *abuse.Guard
	cooldown *leads.Cooldown
	store    *leads.Store
	notifier *leads.Notifier
	catalog  *catalog.Catalog
	ai       *ai.Client
	sessions *SessionStore
}

// New constructs a Bot.
func New(
	cfg Config,
	tg *telegram.Client,
	limiter *abuse.Limiter,
	guard *abuse.Guard,
	cooldown *leads.Cooldown,
	store *leads.Store,
	notifier *leads.Notifier,
	cat *catalog.Catalog,
	aiClient *ai.Client,
) *Bot {
	return &Bot{
		cfg:      cfg,
		tg:       tg,
		limiter:  limiter,
		guard:    guard,
		cooldown: cooldown,
		store:    store,
		notifier: notifier,
		catalog:  cat,
		ai:       aiClient,
		sessions: NewSessionStore(),
	}
}

// HandleUpdate processes one update from the webhook or the poller.
func (b *Bot) HandleUpdate(ctx context.Context, upd telegram.Update) {
	switch {
	case upd.Message != nil:
		b.handleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		b.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) {
	from := msg.From
	if from == nil || from.IsBot {
		return
	}
	chatID := msg.Chat.ID
	lang := b.lang(from)
	s := texts.ForLang(lang)

	// The escalation guard sees every message first, including the ones
	// the limiter would drop.
	status, left := b.guard.OnMessage(from.ID)
	if status != abuse.StatusOK {
		b.sendPenaltyNotice(ctx, chatID, from.ID, status, left, lang, s)
		return
	}

	if ok, retry := b.limiter.AllowUser(from.ID, textCost); !ok {
		if b.guard.ShouldNotice(from.ID) {
			b.send(ctx, chatID, fmt.Sprintf(s.RateLimitedTpl, retry), nil)
			b.guard.MarkNotice(from.ID)
		}
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	switch {
	case text == "/start" || strings.HasPrefix(text, "/start "):
		b.sessions.Reset(from.ID)
		b.send(ctx, chatID, s.MenuBody(b.cfg.BrandName), menuKeyboard(s))
		return
	case text == "/packages":
		b.send(ctx, chatID, s.ChoosePackage, packagesKeyboard(s, b.catalog.Packages()))
		return
	}

	sess := b.sessions.Get(from.ID)
	switch sess.State {
	case StateBrief:
		b.handleBrief(ctx, chatID, from, sess, text, s)
	case StateContact:
		b.handleContact(ctx, chatID, from, sess, text, lang, s)
	default:
		b.handleIdleText(ctx, chatID, from, text, s)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	if errAns := b.tg.AnswerCallbackQuery(ctx, cb.ID, ""); errAns != nil {
		log.WithError(errAns).Debug("bot: answer callback failed")
	}

	from := cb.From
	chatID := from.ID
	if cb.Message != nil {
		chatID = cb.Message.Chat.ID
	}
	lang := b.lang(&from)
	s := texts.ForLang(lang)

	// Button presses do not feed the guard, but penalized users still
	// get nothing new.
	if status, left := b.guard.Status(from.ID); status != abuse.StatusOK {
		b.sendPenaltyNotice(ctx, chatID, from.ID, status, left, lang, s)
		return
	}

	data := cb.Data
	switch {
	case data == cbMenu:
		b.sessions.Reset(from.ID)
		b.navigate(ctx, cb, chatID, s.MenuBody(b.cfg.BrandName), "", menuKeyboard(s))
	case data == cbPackages:
		b.navigate(ctx, cb, chatID, s.ChoosePackage, "", packagesKeyboard(s, b.catalog.Packages()))
	case data == cbHow:
		b.navigate(ctx, cb, chatID, s.How, "", howKeyboard(s))
	case data == cbConsult:
		b.sessions.Set(from.ID, Session{State: StateBrief, Source: SourceConsult})
		b.send(ctx, chatID, s.AskBrief, leadCancelKeyboard(s))
	case data == cbOrder:
		sess := b.sessions.Get(from.ID)
		pkgName := ""
		if _, ok := b.catalog.Find(sess.Package); ok {
			pkgName = sess.Package
		}
		b.sessions.Set(from.ID, Session{State: StateBrief, Source: SourceOrder, Package: pkgName})
		b.send(ctx, chatID, s.AskBrief, leadCancelKeyboard(s))
	case data == cbCancel:
		b.cancelLead(ctx, chatID, from.ID, s)
	case strings.HasPrefix(data, cbPkg):
		name := strings.TrimPrefix(data, cbPkg)
		p, ok := b.catalog.Find(name)
		if !ok {
			b.navigate(ctx, cb, chatID, s.ChoosePackage, "", packagesKeyboard(s, b.catalog.Packages()))
			return
		}
		sess := b.sessions.Get(from.ID)
		sess.Package = p.Name
		b.sessions.Set(from.ID, sess)
		b.navigate(ctx, cb, chatID, packageCard(p), "HTML", packageDetailsKeyboard(s))
	}
}

// navigate rewrites the tapped menu message in place; when the original
// message is unavailable or the edit fails it falls back to a new one.
func (b *Bot) navigate(ctx context.Context, cb *telegram.CallbackQuery, chatID int64, text, parseMode string, markup any) {
	if cb.Message != nil {
		errEdit := b.tg.EditMessageText(ctx, telegram.EditMessageTextRequest{
			ChatID:                cb.Message.Chat.ID,
			MessageID:             cb.Message.MessageID,
			Text:                  text,
			ParseMode:             parseMode,
			DisableWebPagePreview: parseMode != "",
			ReplyMarkup:           markup,
		})
		if errEdit == nil {
			return
		}
		log.WithError(errEdit).Debug("bot: edit message failed")
	}
	if parseMode == "HTML" {
		b.sendHTML(ctx, chatID, text, markup)
		return
	}
	b.send(ctx, chatID, text, markup)
}

func (b *Bot) handleBrief(ctx context.Context, chatID int64, from *telegram.User, sess Session, text string, s texts.Strings) {
	if text == cancelLabel {
		b.cancelLead(ctx, chatID, from.ID, s)
		return
	}
	if len([]rune(text)) > maxUserText {
		b.send(ctx, chatID, s.TooLong, nil)
		return
	}
	sess.Brief = text
	sess.State = StateContact
	b.sessions.Set(from.ID, sess)
	b.send(ctx, chatID, s.AskContact, contactsKeyboard(from.Username, from.ID))
}

func (b *Bot) handleContact(ctx context.Context, chatID int64, from *telegram.User, sess Session, text, lang string, s texts.Strings) {
	switch text {
	case backLabel:
		sess.State = StateBrief
		b.sessions.Set(from.ID, sess)
		b.send(ctx, chatID, s.AskBrief, leadCancelKeyboard(s))
		return
	case cancelLabel:
		b.cancelLead(ctx, chatID, from.ID, s)
		return
	}
	if len([]rune(text)) > maxUserText {
		b.send(ctx, chatID, s.TooLong, nil)
		return
	}
	b.submitLead(ctx, chatID, from, sess, text, lang, s)
}

func (b *Bot) handleIdleText(ctx context.Context, chatID int64, from *telegram.User, text string, s texts.Strings) {
	if len([]rune(text)) > maxUserText {
		b.send(ctx, chatID, s.TooLong, nil)
		return
	}
	if !b.ai.Enabled() {
		b.send(ctx, chatID, s.AIDisabled, nil)
		return
	}
	if ok, retry := b.limiter.AllowUser(from.ID, aiCost); !ok {
		b.send(ctx, chatID, fmt.Sprintf(s.RateLimitedTpl, retry), nil)
		return
	}
	answer, errReply := b.ai.Reply(ctx, text)
	if errReply != nil {
		log.WithError(errReply).Warn("bot: ai reply failed")
		b.send(ctx, chatID, s.AIFallback, nil)
		return
	}
	if runes := []rune(answer); len(runes) > maxAIReply {
		answer = string(runes[:maxAIReply])
	}
	b.send(ctx, chatID, answer, nil)
}

func (b *Bot) submitLead(ctx context.Context, chatID int64, from *telegram.User, sess Session, contact, lang string, s texts.Strings) {
	identity := "tg:" + strconv.FormatInt(from.ID, 10)
	if ok, wait := b.cooldown.TryAcquire(ctx, identity); !ok {
		b.sessions.Reset(from.ID)
		b.send(ctx, chatID, fmt.Sprintf(s.LeadCooldownTpl, texts.HumanDuration(int(wait.Seconds()), lang)), removeKeyboard())
		return
	}

	userID := from.ID
	lead := &models.Lead{
		RequestID: leads.NewRequestID(),
		Source:    sess.Source,
		UserID:    &userID,
		Username:  from.Username,
		Name:      leads.Sanitize(from.FirstName, leads.NameLimit),
		Contact:   leads.Sanitize(contact, leads.ContactLimit),
		Package:   leads.Sanitize(sess.Package, leads.PackageLimit),
		Message:   leads.Sanitize(sess.Brief, leads.MessageLimit),
	}
	if lead.Source == "" {
		lead.Source = SourceConsult
	}

	if errCreate := b.store.Create(ctx, lead); errCreate != nil {
		log.WithError(errCreate).WithField("request_id", lead.RequestID).Error("bot: store lead failed")
		// The lead is lost, so give the cooldown slot back and own up to
		// the failure instead of claiming success.
		b.cooldown.Release(ctx, identity)
		b.sessions.Reset(from.ID)
		b.send(ctx, chatID, s.SendFail, removeKeyboard())
		return
	}
	if b.notifier.Enabled() {
		if errNotify := b.notifier.Notify(ctx, lead); errNotify != nil {
			log.WithError(errNotify).WithField("request_id", lead.RequestID).Error("bot: lead notification failed")
		} else if errMark := b.store.MarkDelivered(ctx, lead.RequestID); errMark != nil {
			log.WithError(errMark).WithField("request_id", lead.RequestID).Warn("bot: mark delivered failed")
		}
	} else {
		log.WithField("request_id", lead.RequestID).Warn("bot: owner chat not configured, lead not delivered")
	}

	b.sessions.Reset(from.ID)
	done := s.SentOK
	if lead.Source == SourceOrder {
		done = s.SentOKAlt
	}
	b.send(ctx, chatID, done, removeKeyboard())
}

func (b *Bot) cancelLead(ctx context.Context, chatID, userID int64, s texts.Strings) {
	b.sessions.Reset(userID)
	b.send(ctx, chatID, s.Canceled, removeKeyboard())
	b.send(ctx, chatID, s.MenuBody(b.cfg.BrandName), menuKeyboard(s))
}

func (b *Bot) sendPenaltyNotice(ctx context.Context, chatID, userID int64, status abuse.Status, secondsLeft int, lang string, s texts.Strings) {
	if !b.guard.ShouldNotice(userID) {
		return
	}
	human := texts.HumanDuration(secondsLeft, lang)
	notice := fmt.Sprintf(s.CooldownNoticeTpl, human)
	if status == abuse.StatusBan {
		notice = fmt.Sprintf(s.BanNoticeTpl, human)
	}
	b.send(ctx, chatID, notice, nil)
	b.guard.MarkNotice(userID)
}

// lang picks the string set for a user: their own language when it is
// one the bot speaks, the configured default otherwise.
func (b *Bot) lang(u *telegram.User) string {
	if u != nil {
		code := strings.ToLower(strings.TrimSpace(u.LanguageCode))
		if strings.HasPrefix(code, "ru") || strings.HasPrefix(code, "en") {
			return code
		}
	}
	return b.cfg.DefaultLang
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, markup any) {
	_, errSend := b.tg.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
	})
	if errSend != nil {
		log.WithError(errSend).Warn("bot: send message failed")
	}
}

func (b *Bot) sendHTML(ctx context.Context, chatID int64, text string, markup any) {
	_, errSend := b.tg.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
		ReplyMarkup:           markup,
	})
	if errSend != nil {
		log.WithError(errSend).Warn("bot: send message failed")
	}
}

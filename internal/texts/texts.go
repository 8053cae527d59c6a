package texts

import (
	"fmt"
	"strings"
)

// Strings holds every user-visible bot message for one language.
// Fields ending in Tpl are fmt templates.
type Strings struct {
	MenuBodyTpl   string // Takes the brand name.
	How           string
	ChoosePackage string
	Back          string
	Cancel        string
	AskBrief      string
	AskContact    string
	SentOK        string
	SentOKAlt     string
	SendFail      string
	Canceled      string
	TooLong       string
	AIDisabled    string
	AIFallback    string

	CooldownNoticeTpl string // Takes a formatted duration.
	BanNoticeTpl      string // Takes a formatted duration.
	LeadCooldownTpl   string // Takes a formatted duration.
	RateLimitedTpl    string // Takes seconds until the next attempt.

	ButtonPackages string
	ButtonConsult  string
	ButtonHow      string
	ButtonSupport  string
	ButtonMenu     string
	ButtonOrder    string
	ButtonBack     string
}

var ru = Strings{
	MenuBodyTpl:   "%s — сайты и Telegram-боты под задачу.\n\nВыберите действие кнопками ниже или напишите вопрос.",
	How:           "Как мы работаем:\n\n1) Вы выбираете пакет или оставляете заявку на консультацию\n2) Пишете ТЗ одним сообщением (что нужно сделать, примеры, сроки)\n3) Оставляете контакт для связи\n4) Менеджер связывается, уточняет детали, фиксирует стоимость/сроки\n5) Оплата и старт работ\n\nВажно: стоимость и сроки финально подтверждает менеджер после уточнения ТЗ.",
	ChoosePackage: "Выберите пакет:",
	Back:          "Назад",
	Cancel:        "Отмена",
	AskBrief:      "Коротко опишите задачу.",
	AskContact:    "Напишите контакт для связи (Telegram/телефон/почта).",
	SentOK:        "Заявка отправлена. Менеджер свяжется с вами.",
	SentOKAlt:     "Передал информацию менеджеру, в ближайшие 5 минут с вами свяжется менеджер для уточнения деталей.",
	SendFail:      "Не получилось отправить заявку. Попробуйте позже.",
	Canceled:      "Хорошо, отменил. Возвращаю в меню.",
	TooLong:       "Слишком длинное сообщение.",
	AIDisabled:    "AI сейчас отключен.",
	AIFallback:    "Напишите вопрос.",

	CooldownNoticeTpl: "Слишком много сообщений подряд. Подождите %s.",
	BanNoticeTpl:      "Вы временно заблокированы за спам. Осталось %s.",
	LeadCooldownTpl:   "Вы недавно отправляли заявку. Попробуйте снова через %s.",
	RateLimitedTpl:    "Слишком часто. Повторите через %d сек.",

	ButtonPackages: "📦 Пакеты",
	ButtonConsult:  "📝 Бесплатная консультация",
	ButtonHow:      "ℹ️ Как мы работаем?",
	ButtonSupport:  "🆘 Поддержка",
	ButtonMenu:     "🏠 Меню",
	ButtonOrder:    "✅ Оформить заказ",
	ButtonBack:     "⬅️ Назад к пакетам",
}

var en = Strings{
	MenuBodyTpl:   "%s — websites and Telegram bots built to order.\n\nPick an action below or just type a question.",
	How:           "How we work:\n\n1) Pick a package or request a free consultation\n2) Describe the task in one message (goals, examples, deadlines)\n3) Leave a contact\n4) A manager follows up, clarifies details and fixes the price and timing\n5) Payment and kickoff\n\nNote: the final price and timing are confirmed by the manager.",
	ChoosePackage: "Choose a package:",
	Back:          "Back",
	Cancel:        "Cancel",
	AskBrief:      "Describe your request briefly.",
	AskContact:    "Type your contact (Telegram/phone/email).",
	SentOK:        "Sent. A manager will contact you.",
	SentOKAlt:     "Sent to the manager. They will contact you within a few minutes.",
	SendFail:      "Could not send your request. Please try again later.",
	Canceled:      "Cancelled. Back to the menu.",
	TooLong:       "Message is too long.",
	AIDisabled:    "AI is disabled.",
	AIFallback:    "Type your question.",

	CooldownNoticeTpl: "Too many messages. Please wait %s.",
	BanNoticeTpl:      "You are temporarily blocked for spam. %s left.",
	LeadCooldownTpl:   "You submitted a request recently. Try again in %s.",
	RateLimitedTpl:    "Too fast. Retry in %d s.",

	ButtonPackages: "📦 Packages",
	ButtonConsult:  "📝 Free consultation",
	ButtonHow:      "ℹ️ How we work",
	ButtonSupport:  "🆘 Support",
	ButtonMenu:     "🏠 Menu",
	ButtonOrder:    "✅ Place an order",
	ButtonBack:     "⬅️ Back to packages",
}

// ForLang returns the string set for a language code. Anything that does
// not start with "en" falls back to Russian.
func ForLang(lang string) Strings {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(lang)), "en") {
		return en
	}
	return ru
}

// MenuBody renders the main menu text with the brand name.
func (s Strings) MenuBody(brand string) string {
	return fmt.Sprintf(s.MenuBodyTpl, brand)
}

// HumanDuration renders a seconds-left value the way the bot talks about
// penalties: whole minutes, with hours split off past sixty.
func HumanDuration(secondsLeft int, lang string) string {
	english := strings.HasPrefix(strings.ToLower(strings.TrimSpace(lang)), "en")
	if secondsLeft <= 0 {
		if english {
			return "0 minutes"
		}
		return "0 минут"
	}
	if secondsLeft < 60 {
		if english {
			return fmt.Sprintf("%d s", secondsLeft)
		}
		return fmt.Sprintf("%d сек", secondsLeft)
	}
	mins := secondsLeft / 60
	hours := mins / 60
	mins = mins % 60
	if hours <= 0 {
		if english {
			return fmt.Sprintf("%d min", mins)
		}
		return fmt.Sprintf("%d мин", mins)
	}
	if english {
		return fmt.Sprintf("%d h %d min", hours, mins)
	}
	return fmt.Sprintf("%d ч %d мин", hours, mins)
}

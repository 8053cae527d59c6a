package bot

import (
	"fmt"
	"html"
	"strings"

	"github.com/vektor-web/leadbot/internal/catalog"
	"github.com/vektor-web/leadbot/internal/telegram"
	"github.com/vektor-web/leadbot/internal/texts"
)

const supportURL = "https://t.me/bloknotpr"

// Callback data values used on inline keyboards.
const (
	cbMenu     = "NAV:MENU"
	cbPackages = "NAV:PACKAGES"
	cbConsult  = "NAV:CONSULT"
	cbHow      = "NAV:HOW"
	cbPkg      = "PKG:"
	cbOrder    = "LEAD:ORDER"
	cbCancel   = "LEAD:CANCEL"
)

// Reply-keyboard control labels during the contact step.
const (
	backLabel   = "⬅️ Назад"
	cancelLabel = "❌ Отмена"
)

func menuKeyboard(s texts.Strings) telegram.InlineKeyboardMarkup {
	return telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: s.ButtonPackages, CallbackData: cbPackages}},
		{{Text: s.ButtonConsult, CallbackData: cbConsult}},
		{{Text: s.ButtonHow, CallbackData: cbHow}},
		{{Text: s.ButtonSupport, URL: supportURL}},
	}}
}

func howKeyboard(s texts.Strings) telegram.InlineKeyboardMarkup {
	return telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: s.ButtonMenu, CallbackData: cbMenu}},
		{{Text: s.ButtonPackages, CallbackData: cbPackages}},
		{{Text: s.ButtonSupport, URL: supportURL}},
	}}
}

func packagesKeyboard(s texts.Strings, list []catalog.Package) telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(list)+1)
	for _, p := range list {
		rows = append(rows, []telegram.InlineKeyboardButton{{Text: p.Name, CallbackData: cbPkg + p.Name}})
	}
	rows = append(rows, []telegram.InlineKeyboardButton{{Text: s.ButtonMenu, CallbackData: cbMenu}})
	return telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func packageDetailsKeyboard(s texts.Strings) telegram.InlineKeyboardMarkup {
	return telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: s.ButtonOrder, CallbackData: cbOrder}},
		{{Text: s.ButtonBack, CallbackData: cbPackages}},
		{{Text: s.ButtonMenu, CallbackData: cbMenu}},
		{{Text: s.ButtonSupport, URL: supportURL}},
	}}
}

func leadCancelKeyboard(s texts.Strings) telegram.InlineKeyboardMarkup {
	return telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: cancelLabel, CallbackData: cbCancel}},
		{{Text: s.ButtonMenu, CallbackData: cbMenu}},
		{{Text: s.ButtonSupport, URL: supportURL}},
	}}
}

// contactsKeyboard offers the user's own handle as a one-tap contact.
func contactsKeyboard(username string, userID int64) telegram.ReplyKeyboardMarkup {
	tag := fmt.Sprintf("ID:%d", userID)
	if username != "" {
		tag = "@" + username
	}
	return telegram.ReplyKeyboardMarkup{
		Keyboard: [][]telegram.KeyboardButton{
			{{Text: tag}},
			{{Text: backLabel}, {Text: cancelLabel}},
		},
		ResizeKeyboard:        true,
		InputFieldPlaceholder: "Выберите кнопку или напишите контакт",
	}
}

func removeKeyboard() telegram.ReplyKeyboardRemove {
	return telegram.ReplyKeyboardRemove{RemoveKeyboard: true}
}

// packageCard renders the HTML details card for one package.
func packageCard(p catalog.Package) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 <b>%s</b>\n", html.EscapeString(p.Name))
	fmt.Fprintf(&b, "%s · %s\n\n", html.EscapeString(p.Price), html.EscapeString(p.Time))
	if p.Desc != "" {
		fmt.Fprintf(&b, "%s\n\n", html.EscapeString(p.Desc))
	}
	for _, f := range p.Features {
		fmt.Fprintf(&b, "• %s\n", html.EscapeString(f))
	}
	return strings.TrimRight(b.String(), "\n")
}

package menu

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"transmissionbot/internal/callback"
)

// Settings renders the settings entry menu.
func Settings() (string, tgbotapi.InlineKeyboardMarkup) {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💻 Change server", callback.ChangeServerMenu(0)),
		),
	)
	return "Settings", markup
}

// ServerMenu renders the server selection view. servers are the configured
// profile names, active is the index of the one in use.
func ServerMenu(servers []string, active int, page int) (string, tgbotapi.InlineKeyboardMarkup) {
	var sb strings.Builder
	sb.WriteString("Servers:\n")

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, name := range servers {
		line := fmt.Sprintf("%d. %s", i+1, name)
		if i == active {
			line += " ✅"
		}
		sb.WriteString(escape(line) + "\n")

		rows = packRow(rows, tgbotapi.NewInlineKeyboardButtonData(
			strconv.Itoa(i+1), callback.Server(i, page)))
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⏪ Back", callback.Settings()),
	))
	return sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

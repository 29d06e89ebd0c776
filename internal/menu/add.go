package menu

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"transmissionbot/internal/callback"
	"transmissionbot/internal/models"
	"transmissionbot/internal/utils"
)

// AddTorrent renders the menu shown after a torrent was added paused.
// freeSpaceLine comes from FreeSpace so the render itself stays pure.
func AddTorrent(t *models.Torrent, freeSpaceLine string) (string, tgbotapi.InlineKeyboardMarkup) {
	text := fmt.Sprintf("*%s*\n", escape(t.Name))
	text += escape(downloadSummary(t) + "\n" + freeSpaceLine + "\n")

	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📂 Files", callback.SelectFiles(t.ID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("▶️ Start", callback.Add(t.ID, callback.AddStart)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", callback.Add(t.ID, callback.AddCancel)),
		),
	)
	return text, markup
}

// SelectFilesAdd renders the add-flow file selection view. Unlike the
// files view it shows sizes only, no completion.
func SelectFilesAdd(t *models.Torrent) (string, tgbotapi.InlineKeyboardMarkup) {
	text := fmt.Sprintf("*%s*\n", escape(utils.Truncate(t.Name, maxFileNameLen)))
	text += "Files:\n"

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, f := range t.Files {
		filename := utils.Truncate(utils.FileDisplayName(f.Name), maxFileNameLen)
		number := escape(fmt.Sprintf("%d. ", i+1))
		fileSize := escape(size(f.Size))

		var button tgbotapi.InlineKeyboardButton
		if f.Wanted {
			text += fmt.Sprintf("*%s*`%s`  %s\n", number, escapePre(filename), fileSize)
			button = tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%d. ✅", i+1), callback.FileSelect(t.ID, i, false))
		} else {
			text += fmt.Sprintf("*%s*~%s~  %s\n", number, escape(filename), fileSize)
			button = tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%d. ❌", i+1), callback.FileSelect(t.ID, i, true))
		}
		rows = packRow(rows, button)
	}

	text += escape(downloadSummary(t))

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⏪ Back", callback.AddMenu(t.ID)),
	))
	return text, tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// Started renders the confirmation after starting a torrent from the add
// flow.
func Started(t *models.Torrent) (string, tgbotapi.InlineKeyboardMarkup) {
	text := fmt.Sprintf("*%s*\n%s\n", escape(t.Name), escape("Torrent started"))

	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📄 Status", callback.Torrent(t.ID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏪ Back", callback.Goto(0)),
		),
	)
	return text, markup
}

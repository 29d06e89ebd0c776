package menu

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"transmissionbot/internal/callback"
	"transmissionbot/internal/models"
	"transmissionbot/internal/utils"
)

// TorrentFiles renders the per-file view with wanted toggles. File buttons
// carry the file's ordinal and the state the press switches to.
func TorrentFiles(t *models.Torrent) (string, tgbotapi.InlineKeyboardMarkup) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s*\n", escape(utils.Truncate(t.Name, maxFileNameLen)))
	sb.WriteString("Files:\n")

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, f := range t.Files {
		filename := utils.Truncate(utils.FileDisplayName(f.Name), maxFileNameLen)
		number := escape(fmt.Sprintf("%d. ", i+1))
		sizes := escape(fmt.Sprintf("%s / %s", size(f.Completed), size(f.Size)))
		progress := escape(fmt.Sprintf("%.1f%%", f.Progress()))

		var button tgbotapi.InlineKeyboardButton
		if f.Wanted {
			fmt.Fprintf(&sb, "*%s*`%s`\n", number, escapePre(filename))
			button = tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%d. ✅", i+1), callback.EditFile(t.ID, i, false))
		} else {
			fmt.Fprintf(&sb, "*%s*~%s~\n", number, escape(filename))
			button = tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%d. ❌", i+1), callback.EditFile(t.ID, i, true))
		}
		fmt.Fprintf(&sb, "Size: %s %s\n", sizes, progress)

		rows = packRow(rows, button)
	}

	sb.WriteString(escape(strings.Repeat("-", 60) + "\n"))
	sb.WriteString(escape(downloadSummary(t)))

	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Reload", callback.FilesReload(t.ID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏪ Back", callback.Torrent(t.ID)),
		),
	)
	return sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func downloadSummary(t *models.Torrent) string {
	return fmt.Sprintf("Size to download: %s / %s",
		size(t.SizeWhenDone), size(t.TotalSize))
}

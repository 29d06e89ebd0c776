package menu

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"transmissionbot/internal/callback"
	"transmissionbot/internal/models"
	"transmissionbot/internal/utils"
)

// TorrentDetail renders the detail view for one torrent.
// refreshRemaining is the auto-refresh countdown in seconds; zero or less
// renders the plain reload label.
func TorrentDetail(t *models.Torrent, refreshRemaining int) (string, tgbotapi.InlineKeyboardMarkup) {
	text := fmt.Sprintf("*%s*\n", escape(t.Name))
	text += escape(statusLine(t)) + "\n"

	var startStop tgbotapi.InlineKeyboardButton
	if t.Status == models.StatusStopped {
		startStop = tgbotapi.NewInlineKeyboardButtonData(
			"▶️ Start", callback.TorrentWithAction(t.ID, callback.ActionStart))
	} else {
		startStop = tgbotapi.NewInlineKeyboardButtonData(
			"⏹️ Stop", callback.TorrentWithAction(t.ID, callback.ActionStop))
	}

	reloadLabel := "🔄 Reload"
	if refreshRemaining > 0 {
		reloadLabel = fmt.Sprintf("🔄 %ds", refreshRemaining)
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			startStop,
			tgbotapi.NewInlineKeyboardButtonData("📂 Files", callback.Files(t.ID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔁 Verify", callback.TorrentWithAction(t.ID, callback.ActionVerify)),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", callback.DeleteMenu(t.ID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(reloadLabel, callback.TorrentWithAction(t.ID, callback.ActionReload)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏪ Back", callback.Goto(0)),
		),
	)
	return text, markup
}

// statusLine formats the one-line status summary. The shape depends on the
// torrent's status; completion decisions use raw byte counts, the percent
// is display-only.
func statusLine(t *models.Torrent) string {
	switch t.Status {
	case models.StatusChecking:
		return fmt.Sprintf("Checking %.1f%%", t.RecheckProgress*100)
	case models.StatusCheckPending:
		return "Check pending"
	case models.StatusStopped:
		return fmt.Sprintf("Stopped %s of %s (%.1f%%)",
			size(t.Downloaded()), size(t.SizeWhenDone), t.Progress())
	case models.StatusSeeding:
		return fmt.Sprintf("Seeding %s ↑ %s (%s)",
			size(t.SizeWhenDone), speed(t.RateUpload), size(t.UploadedEver))
	default:
		line := fmt.Sprintf("Downloading %s of %s (%.1f%%)\n↓ %s ↑ %s (%s)",
			size(t.Downloaded()), size(t.SizeWhenDone), t.Progress(),
			speed(t.RateDownload), speed(t.RateUpload), size(t.UploadedEver))
		if eta := utils.FormatETA(t.ETA); eta != "Unavailable" {
			line += " - " + eta
		}
		return line
	}
}

// DeleteConfirm renders the delete confirmation view. The text is plain,
// not MarkdownV2.
func DeleteConfirm(t *models.Torrent) (string, tgbotapi.InlineKeyboardMarkup) {
	text := "⚠️Do you really want to delete this torrent?⚠️\n" +
		t.Name + "\n" +
		"You also can delete torrent with all downloaded data."

	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Yes", callback.Delete(t.ID, false)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Yes, with data", callback.Delete(t.ID, true)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏪ Back", callback.Torrent(t.ID)),
		),
	)
	return text, markup
}

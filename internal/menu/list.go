package menu

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"transmissionbot/internal/callback"
	"transmissionbot/internal/models"
	"transmissionbot/internal/utils"
)

// TorrentList renders one page of the torrent list starting at offset.
// An out-of-range offset is clamped to 0 so the view never shows an empty
// page while torrents exist.
func TorrentList(torrents []models.Torrent, offset int) (string, tgbotapi.InlineKeyboardMarkup) {
	if offset < 0 || offset >= len(torrents) {
		offset = 0
	}

	page := torrents[offset:]
	more := false
	if len(page) > PageSize {
		page = page[:PageSize]
		more = true
	}

	var sb strings.Builder
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := range page {
		t := &page[i]
		ordinal := offset + i + 1
		number := escape(fmt.Sprintf("%d. ", ordinal))
		name := escape(utils.Truncate(t.Name, maxListNameLen))
		fmt.Fprintf(&sb, "*%s* %s %s\n", number, t.Status.Glyph(), name)

		rows = packRow(rows, tgbotapi.NewInlineKeyboardButtonData(
			strconv.Itoa(ordinal), callback.Torrent(t.ID)))
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Reload", callback.GotoReload(offset))))

	var nav []tgbotapi.InlineKeyboardButton
	if offset > 0 {
		back := offset - PageSize
		if back < 0 {
			back = 0
		}
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⏪ Back", callback.Goto(back)))
	}
	if more {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ⏩", callback.Goto(offset+PageSize)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	text := sb.String()
	if text == "" {
		text = EmptyListText
	}
	return text, tgbotapi.NewInlineKeyboardMarkup(rows...)
}

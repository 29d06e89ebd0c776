// Package menu renders every bot view as message text plus an inline
// keyboard. All functions are pure: they take snapshots and view
// parameters and perform no I/O, so the dispatcher and refresher share
// them safely.
package menu

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	// PageSize is how many torrents one list page shows.
	PageSize = 15

	// keyboardWidth is the number of compact buttons per keyboard row.
	keyboardWidth = 5

	maxListNameLen = 30
	maxFileNameLen = 100
)

// EmptyListText is the placeholder rendered when there are no torrents.
const EmptyListText = "Nothing to display"

// MainMenu returns the plain /start command overview.
func MainMenu() string {
	return "Commands:\n" +
		"/add - add torrent\n" +
		"/torrents - list all torrents\n" +
		"/memory - available memory\n" +
		"/settings - server settings"
}

// AddPrompt returns the plain /add instruction text.
func AddPrompt() string {
	return "Just send me torrent file, magnet url or link to torrent file"
}

// FreeSpace renders the free disk space line. ok=false means the engine
// could not answer.
func FreeSpace(bytes int64, ok bool) string {
	if !ok {
		return "Free disk space: unknown"
	}
	return fmt.Sprintf("Free disk space: %s", size(bytes))
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, s)
}

// escapePre escapes text placed inside a MarkdownV2 code entity, where
// only backslashes and backticks are special.
func escapePre(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "`", "\\`")
}

// size is the single byte-scaling function every view shares. Display
// rounding never feeds back into control decisions.
func size(b int64) string {
	if b < 0 {
		b = 0
	}
	return humanize.Bytes(uint64(b))
}

func speed(b int64) string {
	return size(b) + "/s"
}

// packRow appends a button to rows, keyboardWidth per row.
func packRow(rows [][]tgbotapi.InlineKeyboardButton, button tgbotapi.InlineKeyboardButton) [][]tgbotapi.InlineKeyboardButton {
	if len(rows) == 0 || len(rows[len(rows)-1]) >= keyboardWidth {
		return append(rows, []tgbotapi.InlineKeyboardButton{button})
	}
	rows[len(rows)-1] = append(rows[len(rows)-1], button)
	return rows
}

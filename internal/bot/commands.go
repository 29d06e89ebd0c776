package bot

import (
	"context"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"transmissionbot/internal/menu"
	"transmissionbot/internal/models"
)

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	ctx := context.Background()

	text := strings.TrimSpace(msg.Text)
	switch {
	case msg.Document != nil && strings.HasSuffix(strings.ToLower(msg.Document.FileName), ".torrent"):
		b.handleTorrentDocument(ctx, msg)
	case b.magnetRe.MatchString(text) || b.torrentURLRe.MatchString(text):
		b.handleTorrentLink(ctx, msg, text)
	case msg.IsCommand():
		b.handleCommand(ctx, msg)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch strings.ToLower(msg.Command()) {
	case "start", "menu", "help":
		b.reply(msg.Chat.ID, menu.MainMenu())
	case "add":
		b.reply(msg.Chat.ID, menu.AddPrompt())
	case "memory":
		free, ok := b.engine().FreeSpace(ctx)
		b.reply(msg.Chat.ID, menu.FreeSpace(free, ok))
	case "torrents":
		b.sendTorrentList(ctx, msg.Chat.ID)
	case "settings":
		text, markup := menu.Settings()
		b.sendView(msg.Chat.ID, text, markup, false)
	default:
		b.reply(msg.Chat.ID, "Unknown command. Type /start for the command list.")
	}
}

func (b *Bot) sendTorrentList(ctx context.Context, chatID int64) {
	torrents, err := b.engine().Torrents(ctx)
	if err != nil {
		b.log.WithError(err).Error("Failed to list torrents")
		b.reply(chatID, "Transmission is unavailable")
		return
	}

	text, markup := menu.TorrentList(torrents, 0)
	b.sendView(chatID, text, markup, true)
}

// handleTorrentDocument downloads a .torrent attachment from Telegram and
// feeds its metainfo to the engine.
func (b *Bot) handleTorrentDocument(ctx context.Context, msg *tgbotapi.Message) {
	url, err := b.tg.GetFileDirectURL(msg.Document.FileID)
	if err != nil {
		b.log.WithError(err).Error("Failed to resolve document URL")
		b.replyTo(msg, "❌Error❌")
		return
	}

	metainfo, err := download(ctx, url)
	if err != nil {
		b.log.WithError(err).Error("Failed to download torrent file")
		b.replyTo(msg, "❌Error❌")
		return
	}

	torrent, err := b.engine().AddMetainfo(ctx, metainfo)
	if err != nil {
		b.log.WithError(err).Error("Failed to add torrent")
		b.replyTo(msg, "❌Error❌")
		return
	}

	b.replyTo(msg, "Torrent added")
	b.sendAddMenu(ctx, msg.Chat.ID, torrent)
}

// handleTorrentLink covers magnet links and direct http(s) .torrent URLs,
// which Transmission fetches itself.
func (b *Bot) handleTorrentLink(ctx context.Context, msg *tgbotapi.Message, link string) {
	torrent, err := b.engine().AddURL(ctx, link)
	if err != nil {
		b.log.WithError(err).Error("Failed to add torrent")
		b.replyTo(msg, "❌Error❌")
		return
	}

	b.replyTo(msg, "Torrent added")
	b.sendAddMenu(ctx, msg.Chat.ID, torrent)
}

func (b *Bot) sendAddMenu(ctx context.Context, chatID int64, torrent *models.Torrent) {
	free, ok := b.engine().FreeSpace(ctx)
	text, markup := menu.AddTorrent(torrent, menu.FreeSpace(free, ok))
	b.sendView(chatID, text, markup, true)
}

func (b *Bot) sendView(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup, markdown bool) {
	m := tgbotapi.NewMessage(chatID, text)
	m.ReplyMarkup = markup
	if markdown {
		m.ParseMode = tgbotapi.ModeMarkdownV2
	}
	if _, err := b.api.Send(m); err != nil {
		b.log.WithError(err).Warn("Failed to send message")
	}
}

func (b *Bot) replyTo(msg *tgbotapi.Message, text string) {
	m := tgbotapi.NewMessage(msg.Chat.ID, text)
	m.ReplyToMessageID = msg.MessageID
	if _, err := b.api.Send(m); err != nil {
		b.log.WithError(err).Warn("Failed to send reply")
	}
}

func download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch file")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetch file: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

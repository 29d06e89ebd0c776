package bot

import (
	"context"
	"regexp"
	"runtime/debug"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"transmissionbot/internal/callback"
	"transmissionbot/internal/client"
	"transmissionbot/internal/config"
	"transmissionbot/internal/logger"
	"transmissionbot/internal/menu"
)

// deleteSettleDelay smooths over the engine's eventual-consistency window
// between a remove call and the list reflecting it. Best effort only; the
// list render tolerates the deleted torrent still appearing.
const deleteSettleDelay = 100 * time.Millisecond

// Bot wires the Telegram transport to the torrent engines and owns the
// refresh scheduler.
type Bot struct {
	api       sender
	tg        *tgbotapi.BotAPI
	cfg       *config.Config
	refresher *Refresher

	mu      sync.Mutex
	engines []client.Interface
	active  int

	magnetRe     *regexp.Regexp
	torrentURLRe *regexp.Regexp

	log *logrus.Entry
}

// NewBot creates the bot and one engine client per configured server.
func NewBot(cfg *config.Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, errors.Wrap(err, "create telegram bot")
	}

	engines := make([]client.Interface, 0, len(cfg.Servers))
	for _, srv := range cfg.Servers {
		engines = append(engines, client.NewTransmission(srv))
	}

	b := &Bot{
		api:          api,
		tg:           api,
		cfg:          cfg,
		engines:      engines,
		magnetRe:     regexp.MustCompile(`(?i)^magnet:\?xt=urn:btih:`),
		torrentURLRe: regexp.MustCompile(`(?i)^https?://.*\.torrent\b`),
		log:          logger.GetLogger("bot"),
	}
	b.refresher = NewRefresher(api, b.engine)
	return b, nil
}

// engine returns the active server's client. The refresher gets this as a
// provider so ticks follow server switches.
func (b *Bot) engine() client.Interface {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engines[b.active]
}

// switchServer pings the target server before making it active.
func (b *Bot) switchServer(ctx context.Context, index int) bool {
	if index < 0 || index >= len(b.engines) {
		return false
	}

	if err := b.engines[index].Ping(ctx); err != nil {
		b.log.WithError(err).Warnf("Server %s did not answer", b.engines[index].Name())
		return false
	}

	b.mu.Lock()
	b.active = index
	b.mu.Unlock()
	return true
}

func (b *Bot) serverNames() ([]string, int) {
	names := make([]string, 0, len(b.engines))
	for _, e := range b.engines {
		names = append(names, e.Name())
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return names, b.active
}

// Start runs the update loop. Each update is handled in its own goroutine.
func (b *Bot) Start() error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := b.tg.GetUpdatesChan(updateConfig)
	b.log.Infof("Authorized on account %s", b.tg.Self.UserName)

	for update := range updates {
		go b.safeHandle(update)
	}
	return nil
}

// Stop closes the update channel, letting Start return.
func (b *Bot) Stop() {
	b.tg.StopReceivingUpdates()
}

// safeHandle keeps a panicking handler from taking the process down and
// gives the user a generic failure notice.
func (b *Bot) safeHandle(update tgbotapi.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			b.log.Errorf("Panic while handling update: %v\n%s", rec, debug.Stack())
			b.reportFailure(update)
		}
	}()

	b.handleUpdate(update)
}

func (b *Bot) reportFailure(update tgbotapi.Update) {
	const text = "Something went wrong"
	if query := update.CallbackQuery; query != nil && query.Message != nil {
		edit := tgbotapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID, text)
		b.api.Send(edit)
		return
	}
	if update.Message != nil {
		b.reply(update.Message.Chat.ID, text)
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	if query := update.CallbackQuery; query != nil {
		if !b.cfg.Authorized(query.From.ID) {
			b.log.Warnf("Unauthorized access denied for %d", query.From.ID)
			return
		}
		b.handleCallbackQuery(query)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !b.cfg.Authorized(msg.From.ID) {
		b.log.Warnf("Unauthorized access denied for %d", msg.From.ID)
		return
	}
	b.handleMessage(msg)
}

// handleCallbackQuery routes a button press by its token prefix. Every
// message-targeting interaction cancels the refresh job for that message
// before re-rendering.
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	if query.Message == nil {
		b.answer(query.ID, "")
		return
	}

	ctx := context.Background()

	switch callback.Prefix(query.Data) {
	case callback.PrefixGoto:
		b.handleGoto(ctx, query)
	case callback.PrefixTorrent:
		b.handleTorrent(ctx, query)
	case callback.PrefixFiles:
		b.handleFiles(ctx, query)
	case callback.PrefixDeleteMenu:
		b.handleDeleteMenu(ctx, query)
	case callback.PrefixDelete:
		b.handleDelete(ctx, query)
	case callback.PrefixEditFile:
		b.handleEditFile(ctx, query)
	case callback.PrefixSelectFiles:
		b.handleSelectFiles(ctx, query)
	case callback.PrefixFileSelect:
		b.handleFileSelect(ctx, query)
	case callback.PrefixAddMenu:
		b.handleAddMenu(ctx, query)
	case callback.PrefixAddAction:
		b.handleAdd(ctx, query)
	case callback.PrefixSettings:
		b.handleSettings(query)
	case callback.PrefixChangeServerMenu:
		b.handleChangeServerMenu(query)
	case callback.PrefixServer:
		b.handleServer(ctx, query)
	default:
		b.log.Warnf("Unknown callback data %q", query.Data)
		b.answer(query.ID, "Unknown button")
	}
}

/* Callback handlers */

func (b *Bot) handleGoto(ctx context.Context, query *tgbotapi.CallbackQuery) {
	offset, reload, err := callback.ParseGoto(query.Data)
	if err != nil {
		b.rejectMalformed(query, err)
		return
	}

	b.refresher.Cancel(query.Message.Chat.ID, query.Message.MessageID)

	torrents, err := b.engine().Torrents(ctx)
	if err != nil {
		b.reportEngineError(query, err)
		return
	}

	text, markup := menu.TorrentList(torrents, offset)
	editErr := b.edit(query, text, &markup, true)
	b.ackEdit(query, reload, "", editErr)
}

func (b *Bot) handleTorrent(ctx context.Context, query *tgbotapi.CallbackQuery) {
	id, action, err := callback.ParseTorrent(query.Data)
	if err != nil {
		b.rejectMalformed(query, err)
		return
	}

	var ack string
	switch action {
	case callback.ActionStart:
		err = b.engine().Start(ctx, id)
		ack = "Started"
	case callback.ActionStop:
		err = b.engine().Stop(ctx, id)
		ack = "Stopped"
	case callback.ActionVerify:
		err = b.engine().Verify(ctx, id)
		ack = "Verifying"
	}
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			b.redirectToList(ctx, query)
			return
		}
		b.reportEngineError(query, err)
		return
	}

	torrent, err := b.engine().Torrent(ctx, id)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			b.redirectToList(ctx, query)
			return
		}
		b.reportEngineError(query, err)
		return
	}

	shouldRefresh := torrent.Status.AutoRefresh() ||
		action == callback.ActionStart || action == callback.ActionVerify

	countdown := 0
	if shouldRefresh {
		countdown = int(refreshDeadline / time.Second)
	}

	text, markup := menu.TorrentDetail(torrent, countdown)

	b.refresher.Cancel(query.Message.Chat.ID, query.Message.MessageID)
	editErr := b.edit(query, text, &markup, true)
	b.ackEdit(query, action == callback.ActionReload, ack, editErr)
	if editErr != nil && !isNotModified(editErr) {
		return
	}

	if shouldRefresh {
		b.refresher.Arm(query.Message.Chat.ID, query.Message.MessageID, id)
	}
}

func (b *Bot) handleFiles(ctx context.Context, query *tgbotapi.CallbackQuery) {
	id, reload, err := callback.ParseFiles(query.Data)
	if err != nil {
		b.rejectMalformed(query, err)
		return
	}

	b.refresher.Cancel(query.Message.Chat.ID, query.Message.MessageID)

	torrent, err := b.engine().Torrent(ctx, id)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			b.redirectToList(ctx, query)
			return
		}
		b.reportEngineError(query, err)
		return
	}

	text, markup := menu.TorrentFiles(torrent)
	editErr := b.edit(query, text, &markup, true)
	b.ackEdit(query, reload, "", editErr)
}

func (b *Bot) handleDeleteMenu(ctx context.Context, query *tgbotapi.CallbackQuery) {
	id, err := callback.ParseDeleteMenu(query.Data)
	if err != nil {
		b.rejectMalformed(query, err)
		return
	}

	b.refresher.Cancel(query.Message.Chat.ID, query.Message.MessageID)

	torrent, err := b.engine().Torrent(ctx, id)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			b.redirectToList(ctx, query)
			return
		}
		b.reportEngineError(query, err)
		return
	}

	text, markup := menu.DeleteConfirm(torrent)
	// Confirmation text is plain, not MarkdownV2.
	b.completeEdit(query, "", text, &markup, false)
}

func (b *Bot) handleDelete(ctx context.Context, query *tgbotapi.CallbackQuery) {
	id, withData, err := callback.ParseDelete(query.Data)
	if err != nil {
		b.rejectMalformed(query, err)
		return
	}

	b.refresher.Cancel(query.Message.Chat.ID, query.Message.MessageID)

	if err := b.engine().Remove(ctx, id, withData); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			b.redirectToList(ctx, query)
			return
		}
		b.reportEngineError(query, err)
		return
	}

	b.answer(query.ID, "✅Deleted")
	time.Sleep(deleteSettleDelay)

	torrents, err := b.engine().Torrents(ctx)
	if err != nil {
		b.log.WithError(err).Warn("Failed to list torrents after delete")
		return
	}

	text, markup := menu.TorrentList(torrents, 0)
	if text == menu.EmptyListText {
		b.api.Request(tgbotapi.NewDeleteMessage(query.Message.Chat.ID, query.Message.MessageID))
		return
	}
	if err := b.edit(query, text, &markup, true); err != nil && !isNotModified(err) {
		b.failEdit(query, err)
	}
}

func (b *Bot) handleEditFile(ctx context.Context, query *tgbotapi.CallbackQuery) {
	id, file, wanted, err := callback.ParseEditFile(query.Data)
	if err != nil {
		b.rejectMalformed(query, err)
		return
	}

	b.refresher.Cancel(query.Message.Chat.ID, query.Message.MessageID)

	if err := b.engine().SetFileWanted(ctx, id, file, wanted); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			b.redirectToList(ctx, query)
			return
		}
		b.reportEngineError(query, err)
		return
	}

	// File ordinals are only valid against a fresh snapshot, so the view
	// is always re-fetched after a toggle.
	torrent, err := b.engine().Torrent(ctx, id)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			b.redirectToList(ctx, query)
			return
		}
		b.reportEngineError(query, err)
		return
	}

	text, markup := menu.TorrentFiles(torrent)
	b.completeEdit(query, "", text, &markup, true)
}

func (b *Bot) handleSelectFiles(ctx context.Context, query *tgbotapi.CallbackQuery) {
	id, err := callback.ParseSelectFiles(query.Data)
	if err != nil {
		b.rejectMalformed(query, err)
		return
	}

	b.refresher.Cancel(query.Message.Chat.ID, query.Message.MessageID)

	torrent, err := b.engine().Torrent(ctx, id)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			b.redirectToList(ctx, query)
			return
		}
		b.reportEngineError(query, err)
		return
	}

	text, markup := menu.SelectFilesAdd(torrent)
	b.completeEdit(query, "", text, &markup, true)
}

func (b *Bot) handleFileSelect(ctx context.Context, query *tgbotapi.CallbackQuery) {
	id, file, wanted, err := callback.ParseFileSelect(query.Data)
	if err != nil {
		b.rejectMalformed(query, err)
		return
	}

	b.refresher.Cancel(query.Message.Chat.ID, query.Message.MessageID)

	if err := b.engine().SetFileWanted(ctx, id, file, wanted); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			b.redirectToList(ctx, query)
			return
		}
		b.reportEngineError(query, err)
		return
	}

	torrent, err := b.engine().Torrent(ctx, id)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			b.redirectToList(ctx, query)
			return
		}
		b.reportEngineError(query, err)
		return
	}

	text, markup := menu.SelectFilesAdd(torrent)
	b.completeEdit(query, "", text, &markup, true)
}

func (b *Bot) handleAddMenu(ctx context.Context, query *tgbotapi.CallbackQuery) {
	id, err := callback.ParseAddMenu(query.Data)
	if err != nil {
		b.rejectMalformed(query, err)
		return
	}

	b.refresher.Cancel(query.Message.Chat.ID, query.Message.MessageID)

	torrent, err := b.engine().Torrent(ctx, id)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			b.redirectToList(ctx, query)
			return
		}
		b.reportEngineError(query, err)
		return
	}

	free, ok := b.engine().FreeSpace(ctx)
	text, markup := menu.AddTorrent(torrent, menu.FreeSpace(free, ok))
	b.completeEdit(query, "", text, &markup, true)
}

func (b *Bot) handleAdd(ctx context.Context, query *tgbotapi.CallbackQuery) {
	id, action, err := callback.ParseAdd(query.Data)
	if err != nil {
		b.rejectMalformed(query, err)
		return
	}

	b.refresher.Cancel(query.Message.Chat.ID, query.Message.MessageID)

	switch action {
	case callback.AddStart:
		if err := b.engine().Start(ctx, id); err != nil {
			if errors.Is(err, client.ErrNotFound) {
				b.redirectToList(ctx, query)
				return
			}
			b.reportEngineError(query, err)
			return
		}

		torrent, err := b.engine().Torrent(ctx, id)
		if err != nil {
			if errors.Is(err, client.ErrNotFound) {
				b.redirectToList(ctx, query)
				return
			}
			b.reportEngineError(query, err)
			return
		}

		text, markup := menu.Started(torrent)
		b.completeEdit(query, "✅Started", text, &markup, true)

	case callback.AddCancel:
		if err := b.engine().Remove(ctx, id, true); err != nil && !errors.Is(err, client.ErrNotFound) {
			b.reportEngineError(query, err)
			return
		}
		b.completeEdit(query, "✅Canceled", "Torrent deleted🗑", nil, false)
	}
}

func (b *Bot) handleSettings(query *tgbotapi.CallbackQuery) {
	b.refresher.Cancel(query.Message.Chat.ID, query.Message.MessageID)

	text, markup := menu.Settings()
	b.completeEdit(query, "", text, &markup, false)
}

func (b *Bot) handleChangeServerMenu(query *tgbotapi.CallbackQuery) {
	page, err := callback.ParseChangeServerMenu(query.Data)
	if err != nil {
		b.rejectMalformed(query, err)
		return
	}

	b.refresher.Cancel(query.Message.Chat.ID, query.Message.MessageID)

	names, active := b.serverNames()
	text, markup := menu.ServerMenu(names, active, page)
	b.completeEdit(query, "", text, &markup, true)
}

func (b *Bot) handleServer(ctx context.Context, query *tgbotapi.CallbackQuery) {
	index, page, err := callback.ParseServer(query.Data)
	if err != nil {
		b.rejectMalformed(query, err)
		return
	}

	b.refresher.Cancel(query.Message.Chat.ID, query.Message.MessageID)

	if b.switchServer(ctx, index) {
		b.answer(query.ID, "✅Success")
	} else {
		b.answer(query.ID, "❌Error❌")
	}

	names, active := b.serverNames()
	text, markup := menu.ServerMenu(names, active, page)
	if err := b.edit(query, text, &markup, true); err != nil && !isNotModified(err) {
		b.failEdit(query, err)
	}
}

/* Shared plumbing */

// redirectToList falls back to the torrent list after the referenced
// torrent vanished. Never surfaces the raw not-found to the user.
func (b *Bot) redirectToList(ctx context.Context, query *tgbotapi.CallbackQuery) {
	b.answer(query.ID, "Torrent no longer exists")
	b.refresher.Cancel(query.Message.Chat.ID, query.Message.MessageID)

	torrents, err := b.engine().Torrents(ctx)
	if err != nil {
		b.log.WithError(err).Warn("Failed to list torrents for redirect")
		return
	}

	text, markup := menu.TorrentList(torrents, 0)
	if err := b.edit(query, text, &markup, true); err != nil && !isNotModified(err) {
		b.failEdit(query, err)
	}
}

// rejectMalformed acknowledges a bad token without touching any state.
func (b *Bot) rejectMalformed(query *tgbotapi.CallbackQuery, err error) {
	b.log.WithError(err).Warnf("Rejected callback %q", query.Data)
	b.answer(query.ID, "Invalid button")
}

func (b *Bot) reportEngineError(query *tgbotapi.CallbackQuery, err error) {
	if errors.Is(err, client.ErrRejected) {
		b.log.WithError(err).Warn("Engine rejected operation")
		b.answer(query.ID, "❌Error❌")
		return
	}
	b.log.WithError(err).Error("Engine call failed")
	b.answer(query.ID, "Transmission is unavailable")
}

// ackEdit answers the interaction after an edit, with reload presses
// getting the Reloaded / Nothing to reload texts. Content-unchanged edits
// count as success; any other edit failure is surfaced to the user instead
// of being acknowledged as done.
func (b *Bot) ackEdit(query *tgbotapi.CallbackQuery, reload bool, ack string, editErr error) {
	if editErr != nil && !isNotModified(editErr) {
		b.answer(query.ID, "❌Error❌")
		b.failEdit(query, editErr)
		return
	}

	if reload {
		if isNotModified(editErr) {
			b.answer(query.ID, "Nothing to reload")
		} else {
			b.answer(query.ID, "Reloaded")
		}
		return
	}
	b.answer(query.ID, ack)
}

// completeEdit performs the view edit and acknowledges the press only when
// the message actually reflects the new view.
func (b *Bot) completeEdit(query *tgbotapi.CallbackQuery, ack, text string, markup *tgbotapi.InlineKeyboardMarkup, markdown bool) {
	if err := b.edit(query, text, markup, markdown); err != nil && !isNotModified(err) {
		b.answer(query.ID, "❌Error❌")
		b.failEdit(query, err)
		return
	}
	b.answer(query.ID, ack)
}

// failEdit puts the generic failure notice on the message itself, the same
// notice the panic handler uses. Best effort: the notice edit can fail for
// the same reason the view edit did.
func (b *Bot) failEdit(query *tgbotapi.CallbackQuery, err error) {
	b.log.WithError(err).Error("Failed to edit message")
	edit := tgbotapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID, "Something went wrong")
	if _, sendErr := b.api.Send(edit); sendErr != nil {
		b.log.WithError(sendErr).Warn("Failed to report edit failure")
	}
}

func (b *Bot) edit(query *tgbotapi.CallbackQuery, text string, markup *tgbotapi.InlineKeyboardMarkup, markdown bool) error {
	chatID := query.Message.Chat.ID
	messageID := query.Message.MessageID

	var edit tgbotapi.EditMessageTextConfig
	if markup != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *markup)
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	if markdown {
		edit.ParseMode = tgbotapi.ModeMarkdownV2
	}

	_, err := b.api.Send(edit)
	return err
}

func (b *Bot) answer(queryID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(queryID, text)); err != nil {
		b.log.WithError(err).Warn("Failed to answer callback query")
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.WithError(err).Warn("Failed to send message")
	}
}

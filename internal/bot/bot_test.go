package bot

import (
	"regexp"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transmissionbot/internal/callback"
	"transmissionbot/internal/client"
	"transmissionbot/internal/config"
	"transmissionbot/internal/logger"
	"transmissionbot/internal/models"
)

func newTestBot(engine *fakeEngine, sender *fakeSender) *Bot {
	b := &Bot{
		api:          sender,
		cfg:          &config.Config{Whitelist: []int64{1}},
		engines:      []client.Interface{engine},
		magnetRe:     regexp.MustCompile(`(?i)^magnet:\?xt=urn:btih:`),
		torrentURLRe: regexp.MustCompile(`(?i)^https?://.*\.torrent\b`),
		log:          logger.GetLogger("bot"),
	}
	b.refresher = NewRefresher(sender, b.engine)
	return b
}

func callbackUpdate(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "q1",
		From: &tgbotapi.User{ID: userID},
		Data: data,
		Message: &tgbotapi.Message{
			MessageID: 10,
			Chat:      &tgbotapi.Chat{ID: 100},
		},
	}}
}

func commandUpdate(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 20,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: 100},
		Text:      text,
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: len(text)},
		},
	}}
}

func (f *fakeSender) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var messages []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			messages = append(messages, m)
		}
	}
	return messages
}

func (f *fakeSender) deletions() []tgbotapi.DeleteMessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deletions []tgbotapi.DeleteMessageConfig
	for _, c := range f.sent {
		if d, ok := c.(tgbotapi.DeleteMessageConfig); ok {
			deletions = append(deletions, d)
		}
	}
	return deletions
}

func TestUnauthorizedUpdateDropped(t *testing.T) {
	engine := &fakeEngine{}
	sender := &fakeSender{}
	b := newTestBot(engine, sender)

	b.handleUpdate(callbackUpdate(99, callback.Torrent(1)))
	b.handleUpdate(commandUpdate(99, "/torrents"))

	assert.Empty(t, sender.sent)
	assert.Zero(t, engine.fetchCount())
}

func TestMalformedCallbackIsNoOp(t *testing.T) {
	engine := &fakeEngine{}
	sender := &fakeSender{}
	b := newTestBot(engine, sender)

	b.handleUpdate(callbackUpdate(1, "deletetorrent_abc"))

	answers := sender.answers()
	require.Len(t, answers, 1)
	assert.Equal(t, "Invalid button", answers[0].Text)

	assert.Empty(t, engine.removed)
	assert.Empty(t, sender.edits())
}

func TestTorrentViewStopped(t *testing.T) {
	engine := &fakeEngine{torrent: models.Torrent{ID: 1, Name: "idle", Status: models.StatusStopped}}
	sender := &fakeSender{}
	b := newTestBot(engine, sender)

	b.handleUpdate(callbackUpdate(1, callback.Torrent(1)))

	edits := sender.edits()
	require.Len(t, edits, 1)
	assert.Contains(t, edits[0].Text, "Stopped")

	// A stopped torrent never arms the scheduler.
	assert.False(t, b.refresher.active(100, 10))
}

func TestTorrentViewArmsRefresh(t *testing.T) {
	engine := &fakeEngine{torrent: models.Torrent{ID: 1, Name: "busy", Status: models.StatusDownloading}}
	sender := &fakeSender{}
	b := newTestBot(engine, sender)

	b.handleUpdate(callbackUpdate(1, callback.Torrent(1)))

	assert.True(t, b.refresher.active(100, 10))
	b.refresher.Cancel(100, 10)
}

func TestTorrentStartAnswer(t *testing.T) {
	engine := &fakeEngine{torrent: models.Torrent{ID: 1, Name: "idle", Status: models.StatusStopped}}
	sender := &fakeSender{}
	b := newTestBot(engine, sender)

	b.handleUpdate(callbackUpdate(1, callback.TorrentWithAction(1, callback.ActionStart)))

	answers := sender.answers()
	require.Len(t, answers, 1)
	assert.Equal(t, "Started", answers[0].Text)

	// An explicit start arms the scheduler even while the engine still
	// reports the torrent stopped.
	assert.True(t, b.refresher.active(100, 10))
	b.refresher.Cancel(100, 10)
}

func TestTorrentNotFoundRedirectsToList(t *testing.T) {
	engine := &fakeEngine{torrents: []models.Torrent{{ID: 2, Name: "survivor", Status: models.StatusSeeding}}}
	engine.setErr(client.ErrNotFound)
	sender := &fakeSender{}
	b := newTestBot(engine, sender)

	b.handleUpdate(callbackUpdate(1, callback.Torrent(5)))

	answers := sender.answers()
	require.Len(t, answers, 1)
	assert.Equal(t, "Torrent no longer exists", answers[0].Text)

	edits := sender.edits()
	require.Len(t, edits, 1)
	assert.Contains(t, edits[0].Text, "survivor")
}

func TestDeleteLastTorrentRemovesMessage(t *testing.T) {
	engine := &fakeEngine{}
	sender := &fakeSender{}
	b := newTestBot(engine, sender)

	b.handleUpdate(callbackUpdate(1, callback.Delete(1, false)))

	assert.Equal(t, []int64{1}, engine.removed)

	answers := sender.answers()
	require.Len(t, answers, 1)
	assert.Equal(t, "✅Deleted", answers[0].Text)

	// Empty list after the delete, the message is removed instead of
	// edited to a placeholder.
	deletions := sender.deletions()
	require.Len(t, deletions, 1)
	assert.Equal(t, int64(100), deletions[0].ChatID)
	assert.Equal(t, 10, deletions[0].MessageID)
	assert.Empty(t, sender.edits())
}

func TestDeleteWithRemainingTorrentsEditsList(t *testing.T) {
	engine := &fakeEngine{torrents: []models.Torrent{{ID: 2, Name: "keeper", Status: models.StatusSeeding}}}
	sender := &fakeSender{}
	b := newTestBot(engine, sender)

	b.handleUpdate(callbackUpdate(1, callback.Delete(1, true)))

	assert.Equal(t, []int64{1}, engine.removed)
	assert.Empty(t, sender.deletions())

	edits := sender.edits()
	require.Len(t, edits, 1)
	assert.Contains(t, edits[0].Text, "keeper")
}

func TestGotoReloadAnswers(t *testing.T) {
	engine := &fakeEngine{torrents: []models.Torrent{{ID: 1, Name: "one", Status: models.StatusDownloading}}}
	sender := &fakeSender{}
	b := newTestBot(engine, sender)

	b.handleUpdate(callbackUpdate(1, callback.GotoReload(0)))

	answers := sender.answers()
	require.Len(t, answers, 1)
	assert.Equal(t, "Reloaded", answers[0].Text)
}

func TestGotoReloadUnchangedContent(t *testing.T) {
	engine := &fakeEngine{torrents: []models.Torrent{{ID: 1, Name: "one", Status: models.StatusDownloading}}}
	sender := &fakeSender{sendErr: errors.New("Bad Request: message is not modified")}
	b := newTestBot(engine, sender)

	b.handleUpdate(callbackUpdate(1, callback.GotoReload(0)))

	answers := sender.answers()
	require.Len(t, answers, 1)
	assert.Equal(t, "Nothing to reload", answers[0].Text)
}

func TestFailedReloadEditReportsError(t *testing.T) {
	engine := &fakeEngine{torrents: []models.Torrent{{ID: 1, Name: "one", Status: models.StatusDownloading}}}
	sender := &fakeSender{sendErr: errors.New("Bad Request: message to edit not found")}
	b := newTestBot(engine, sender)

	b.handleUpdate(callbackUpdate(1, callback.GotoReload(0)))

	// A reload whose edit failed must not claim success.
	answers := sender.answers()
	require.Len(t, answers, 1)
	assert.Equal(t, "❌Error❌", answers[0].Text)

	edits := sender.edits()
	require.Len(t, edits, 2)
	assert.Equal(t, "Something went wrong", edits[1].Text)
}

func TestFailedDetailEditDoesNotArmRefresh(t *testing.T) {
	engine := &fakeEngine{torrent: models.Torrent{ID: 1, Name: "busy", Status: models.StatusDownloading}}
	sender := &fakeSender{sendErr: errors.New("Bad Request: message to edit not found")}
	b := newTestBot(engine, sender)

	b.handleUpdate(callbackUpdate(1, callback.Torrent(1)))

	answers := sender.answers()
	require.Len(t, answers, 1)
	assert.Equal(t, "❌Error❌", answers[0].Text)
	assert.False(t, b.refresher.active(100, 10))
}

func TestFailedViewEditReportsError(t *testing.T) {
	engine := &fakeEngine{}
	sender := &fakeSender{sendErr: errors.New("Bad Request: message to edit not found")}
	b := newTestBot(engine, sender)

	b.handleUpdate(callbackUpdate(1, callback.Settings()))

	answers := sender.answers()
	require.Len(t, answers, 1)
	assert.Equal(t, "❌Error❌", answers[0].Text)

	edits := sender.edits()
	require.Len(t, edits, 2)
	assert.Equal(t, "Something went wrong", edits[1].Text)
}

func TestDeleteMenuShowsConfirmation(t *testing.T) {
	engine := &fakeEngine{torrent: models.Torrent{ID: 1, Name: "victim", Status: models.StatusStopped}}
	sender := &fakeSender{}
	b := newTestBot(engine, sender)

	b.handleUpdate(callbackUpdate(1, callback.DeleteMenu(1)))

	edits := sender.edits()
	require.Len(t, edits, 1)
	assert.Contains(t, edits[0].Text, "Do you really want to delete this torrent?")
	// Confirmation is plain text.
	assert.Empty(t, edits[0].ParseMode)
}

func TestFileToggleRerenders(t *testing.T) {
	engine := &fakeEngine{torrent: models.Torrent{
		ID:     1,
		Name:   "pack",
		Status: models.StatusStopped,
		Files: []models.File{
			{Name: "pack/a.bin", Size: 10, Wanted: true},
		},
	}}
	sender := &fakeSender{}
	b := newTestBot(engine, sender)

	// Toggling off re-fetches and renders the file struck through, with the
	// button offering the opposite state.
	b.handleUpdate(callbackUpdate(1, callback.EditFile(1, 0, false)))

	edits := sender.edits()
	require.Len(t, edits, 1)
	assert.Contains(t, edits[0].Text, "~a\\.bin~")
	assert.NotContains(t, edits[0].Text, "`a.bin`")

	require.NotNil(t, edits[0].ReplyMarkup)
	var toggle *tgbotapi.InlineKeyboardButton
	for _, row := range edits[0].ReplyMarkup.InlineKeyboard {
		for i := range row {
			if row[i].Text == "1. ❌" {
				toggle = &row[i]
			}
		}
	}
	require.NotNil(t, toggle)
	assert.Equal(t, callback.EditFile(1, 0, true), *toggle.CallbackData)

	// Toggling back on restores the code-styled name.
	b.handleUpdate(callbackUpdate(1, callback.EditFile(1, 0, true)))

	edits = sender.edits()
	require.Len(t, edits, 2)
	assert.Contains(t, edits[1].Text, "`a.bin`")
}

func TestStartCommand(t *testing.T) {
	engine := &fakeEngine{}
	sender := &fakeSender{}
	b := newTestBot(engine, sender)

	b.handleUpdate(commandUpdate(1, "/start"))

	messages := sender.messages()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Text, "/torrents")
	assert.Contains(t, messages[0].Text, "/settings")
}

func TestTorrentsCommandSendsList(t *testing.T) {
	engine := &fakeEngine{torrents: []models.Torrent{{ID: 1, Name: "one", Status: models.StatusSeeding}}}
	sender := &fakeSender{}
	b := newTestBot(engine, sender)

	b.handleUpdate(commandUpdate(1, "/torrents"))

	messages := sender.messages()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Text, "one")
	assert.Equal(t, tgbotapi.ModeMarkdownV2, messages[0].ParseMode)
}

func TestMagnetLinkAddsTorrent(t *testing.T) {
	engine := &fakeEngine{torrent: models.Torrent{ID: 3, Name: "fresh", Status: models.StatusStopped}}
	sender := &fakeSender{}
	b := newTestBot(engine, sender)

	update := tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 21,
		From:      &tgbotapi.User{ID: 1},
		Chat:      &tgbotapi.Chat{ID: 100},
		Text:      "magnet:?xt=urn:btih:deadbeef",
	}}
	b.handleUpdate(update)

	messages := sender.messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "Torrent added", messages[0].Text)
	assert.Equal(t, 21, messages[0].ReplyToMessageID)
	assert.Contains(t, messages[1].Text, "fresh")
	assert.Equal(t, tgbotapi.ModeMarkdownV2, messages[1].ParseMode)
}

func TestServerSwitch(t *testing.T) {
	first := &fakeEngine{}
	second := &fakeEngine{}
	sender := &fakeSender{}
	b := newTestBot(first, sender)
	b.engines = append(b.engines, second)

	b.handleUpdate(callbackUpdate(1, callback.Server(1, 0)))

	answers := sender.answers()
	require.Len(t, answers, 1)
	assert.Equal(t, "✅Success", answers[0].Text)
	assert.Same(t, second, b.engine().(*fakeEngine))

	// Out of range indexes never switch.
	b.handleUpdate(callbackUpdate(1, callback.Server(5, 0)))
	answers = sender.answers()
	require.Len(t, answers, 2)
	assert.Equal(t, "❌Error❌", answers[1].Text)
	assert.Same(t, second, b.engine().(*fakeEngine))
}

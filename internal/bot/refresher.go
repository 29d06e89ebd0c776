package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"transmissionbot/internal/client"
	"transmissionbot/internal/logger"
	"transmissionbot/internal/menu"
)

const (
	refreshInterval = time.Second
	refreshDeadline = 60 * time.Second
)

// jobKey identifies one live message eligible for auto-refresh.
type jobKey struct {
	ChatID    int64
	MessageID int
}

type job struct {
	torrentID int64
	cancel    context.CancelFunc
	done      chan struct{}
}

// sender is the slice of the Telegram API the bot needs for outbound
// traffic. *tgbotapi.BotAPI satisfies it.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Refresher keeps at most one repeating re-render job per (chat, message)
// key. Arming cancels any existing job for the key under one lock, which
// is the sole guarantee against duplicate timers.
type Refresher struct {
	api    sender
	engine func() client.Interface

	interval time.Duration
	deadline time.Duration

	mu   sync.Mutex
	jobs map[jobKey]*job

	log *logrus.Entry
}

func NewRefresher(api sender, engine func() client.Interface) *Refresher {
	return &Refresher{
		api:      api,
		engine:   engine,
		interval: refreshInterval,
		deadline: refreshDeadline,
		jobs:     make(map[jobKey]*job),
		log:      logger.GetLogger("refresher"),
	}
}

// Arm starts a refresh job for the message, replacing any job already
// registered under the same key.
func (r *Refresher) Arm(chatID int64, messageID int, torrentID int64) {
	key := jobKey{ChatID: chatID, MessageID: messageID}

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		torrentID: torrentID,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	if existing, ok := r.jobs[key]; ok {
		existing.cancel()
	}
	r.jobs[key] = j
	r.mu.Unlock()

	go r.run(ctx, key, j)
}

// Cancel stops the job for the message, if any. Cancellation is
// cooperative: a tick already in flight finishes its edit first.
func (r *Refresher) Cancel(chatID int64, messageID int) {
	key := jobKey{ChatID: chatID, MessageID: messageID}

	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[key]; ok {
		j.cancel()
		delete(r.jobs, key)
	}
}

func (r *Refresher) active(chatID int64, messageID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[jobKey{ChatID: chatID, MessageID: messageID}]
	return ok
}

// run is the tick loop for one job. Ticks of one job are serialized by
// this goroutine.
func (r *Refresher) run(ctx context.Context, key jobKey, j *job) {
	defer close(j.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var elapsed time.Duration
	for {
		select {
		case <-ctx.Done():
			r.remove(key, j)
			return
		case <-ticker.C:
		}

		elapsed += r.interval

		torrent, err := r.engine().Torrent(ctx, j.torrentID)
		if err != nil {
			if errors.Is(err, client.ErrNotFound) || ctx.Err() != nil {
				// The torrent vanished, the message no longer tracks
				// anything worth refreshing.
				r.remove(key, j)
				return
			}
			r.log.WithError(err).Warnf("Failed to fetch torrent %d for refresh", j.torrentID)
			continue
		}

		remaining := r.deadline - elapsed
		stop := !torrent.Status.AutoRefresh() || remaining <= 0

		countdown := int(remaining / time.Second)
		if stop {
			countdown = 0
		}

		text, markup := menu.TorrentDetail(torrent, countdown)
		edit := tgbotapi.NewEditMessageTextAndMarkup(key.ChatID, key.MessageID, text, markup)
		edit.ParseMode = tgbotapi.ModeMarkdownV2

		if _, err := r.api.Send(edit); err != nil && !isNotModified(err) {
			// Transient delivery failures must not kill the schedule.
			r.log.WithError(err).Warnf("Failed to edit message %d/%d", key.ChatID, key.MessageID)
		}

		if stop {
			r.remove(key, j)
			return
		}
	}
}

// remove unregisters the job only if it still owns the key; a newer job
// armed for the same key stays untouched.
func (r *Refresher) remove(key jobKey, j *job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.jobs[key] == j {
		delete(r.jobs, key)
	}
}

// isNotModified matches Telegram's "message is not modified" edit error,
// which is the expected steady state while a torrent's numbers hold still.
func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

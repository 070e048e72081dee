// Package bot forwards log records of the sample runner to Telegram admins.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"docsample/internal/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
)

const levelsHelp = "Available levels: debug, info, warn, error"

// sender is the part of the Telegram API the bot talks to.
type sender interface {
	SendMessage(chatId int64, text string, opts *tgbotapi.SendMessageOpts) (*tgbotapi.Message, error)
}

type TgBot struct {
	log      *slog.Logger
	api      *tgbotapi.Bot
	send     sender
	adminIds []int64
	levels   map[int64]slog.Level
	mu       sync.RWMutex
}

// NewTgBot connects to the bot API. adminIds is a comma separated list of
// chat ids; every admin starts at the given level.
func NewTgBot(apiKey, adminIds string, level slog.Level, log *slog.Logger) (*TgBot, error) {
	ids, err := ParseAdminIds(adminIds)
	if err != nil {
		return nil, err
	}
	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %w", err)
	}
	t := newBot(api, ids, level, log)
	t.api = api
	return t, nil
}

func newBot(send sender, ids []int64, level slog.Level, log *slog.Logger) *TgBot {
	levels := make(map[int64]slog.Level, len(ids))
	for _, id := range ids {
		levels[id] = level
	}
	return &TgBot{
		log:      log.With(sl.Module("tgbot")),
		send:     send,
		adminIds: ids,
		levels:   levels,
	}
}

// Start polls for the /level command until ctx is done.
func (t *TgBot) Start(ctx context.Context) error {
	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(_ *tgbotapi.Bot, _ *ext.Context, err error) ext.DispatcherAction {
			t.log.Warn("handling update", sl.Err(err))
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	dispatcher.AddHandler(handlers.NewCommand("level", t.level))

	updater := ext.NewUpdater(dispatcher, nil)
	err := updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: 10 * time.Second,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("start polling: %w", err)
	}

	<-ctx.Done()
	return updater.Stop()
}

func (t *TgBot) level(b *tgbotapi.Bot, ctx *ext.Context) error {
	userId := ctx.EffectiveUser.Id
	if _, ok := t.adminLevel(userId); !ok {
		_, err := ctx.EffectiveMessage.Reply(b, "You are not authorized to use this command.", nil)
		return err
	}
	t.plainResponse(userId, t.handleLevel(userId, ctx.EffectiveMessage.Text))
	return nil
}

// handleLevel answers "/level" with the current level and "/level <name>"
// by changing it.
func (t *TgBot) handleLevel(userId int64, text string) string {
	args := strings.Fields(text)
	if len(args) < 2 {
		current, _ := t.adminLevel(userId)
		return fmt.Sprintf("Your current log level: %s\n%s", current, levelsHelp)
	}
	level, err := ParseLevel(args[1])
	if err != nil {
		return fmt.Sprintf("Invalid level: %s\n%s", args[1], levelsHelp)
	}
	t.SetAdminLogLevel(userId, level)
	return fmt.Sprintf("Your log level set to: %s", level)
}

func (t *TgBot) SetAdminLogLevel(adminId int64, level slog.Level) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.levels[adminId] = level
}

func (t *TgBot) adminLevel(adminId int64) (slog.Level, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	level, ok := t.levels[adminId]
	return level, ok
}

// recipients lists the admins whose level admits a message of level.
func (t *TgBot) recipients(level slog.Level) []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var ids []int64
	for _, id := range t.adminIds {
		if level >= t.levels[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// SendMessageWithLevel delivers msg to every admin whose level admits it.
func (t *TgBot) SendMessageWithLevel(msg string, level slog.Level) {
	for _, id := range t.recipients(level) {
		t.plainResponse(id, msg)
	}
}

func (t *TgBot) plainResponse(chatId int64, text string) {
	if text == "" {
		t.log.Debug("empty message", slog.Int64("id", chatId))
		return
	}
	_, err := t.send.SendMessage(chatId, Sanitize(text), &tgbotapi.SendMessageOpts{ParseMode: "MarkdownV2"})
	if err == nil {
		return
	}
	// logging here would loop back through the telegram handler
	_, err = t.send.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{})
	if err != nil {
		t.log.Debug("sending message", slog.Int64("id", chatId), sl.Err(err))
	}
}

func ParseAdminIds(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin_id value: %q, must be a comma-separated list of integers", s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s))))
	return level, err
}

// Sanitize escapes the MarkdownV2 reserved characters.
func Sanitize(input string) string {
	const reserved = "\\_{}#+-.!|()[]=*`>~"
	var b strings.Builder
	b.Grow(len(input))
	for _, char := range input {
		if strings.ContainsRune(reserved, char) {
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

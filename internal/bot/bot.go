package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sentiment_bot/internal/config"
	"sentiment_bot/internal/model"
	"sentiment_bot/internal/provider"
	"sentiment_bot/internal/scheduler"
	"sentiment_bot/internal/storage"
	"sentiment_bot/internal/updater"
)

// Version is reported by /about. Overridden at build time with -ldflags.
var Version = "1.1.0"

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Updater runs forced updates and previews on behalf of operator commands.
type Updater interface {
	UpdateOne(ctx context.Context, tenantID int64) model.Outcome
	Preview(ctx context.Context, tenantID int64) (updater.Preview, error)
}

// Schedule reports the state of scheduled updates.
type Schedule interface {
	Status() scheduler.Status
}

// Bot is the Telegram bot that handles operator commands and applies chat titles and descriptions.
type Bot struct {
	api       telegramAPI
	store     storage.Storage
	cfg       *config.Config
	providers []provider.Provider
	updater   Updater
	schedule  Schedule
	log       *slog.Logger
}

// New creates a Bot with the given Telegram token, storage, and config.
func New(token string, store storage.Storage, cfg *config.Config, providers []provider.Provider, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:       api,
		store:     store,
		cfg:       cfg,
		providers: providers,
		log:       log,
	}, nil
}

// Wire attaches the updater and schedule, which in turn depend on the bot as their target.
func (b *Bot) Wire(u Updater, s Schedule) {
	b.updater = u
	b.schedule = s
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query", "my_chat_member"}

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.MyChatMember != nil:
		b.handleMembership(ctx, update.MyChatMember)
	case update.CallbackQuery != nil:
		if !b.cfg.IsUserAllowed(update.CallbackQuery.From.ID) {
			b.ackCallback(update.CallbackQuery.ID, "Access denied.")
			return
		}
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		if update.Message.From == nil || !b.cfg.IsUserAllowed(update.Message.From.ID) {
			b.reply(update.Message.Chat.ID, "Access denied.")
			return
		}
		b.handleCommand(ctx, update.Message)
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
		return
	case "help":
		b.handleHelp(chatID)
		return
	case "about":
		b.handleAbout(chatID)
		return
	case "keys":
		b.handleKeys(chatID)
		return
	case "next":
		b.handleNext(ctx, chatID, !msg.Chat.IsPrivate())
		return
	}

	if !isTenantCommand(cmd) {
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
		return
	}
	if msg.Chat.IsPrivate() {
		b.reply(chatID, "This command only works in a group. Add me to a group as an admin first.")
		return
	}

	switch cmd {
	case cmdShow:
		b.handleShow(ctx, chatID)
	case string(model.SlotNickname):
		b.handleSetTemplate(ctx, chatID, model.SlotNickname, args)
	case string(model.SlotStatus):
		b.handleSetTemplate(ctx, chatID, model.SlotStatus, args)
	case cmdTimezone:
		b.handleTimezone(ctx, chatID, args)
	case cmdReset:
		b.handleResetConfirm(chatID)
	case cmdUpdate:
		b.handleForceUpdate(ctx, chatID)
	}
}

func isTenantCommand(cmd string) bool {
	switch cmd {
	case cmdShow, string(model.SlotNickname), string(model.SlotStatus), cmdTimezone, cmdReset, cmdUpdate:
		return true
	}
	return false
}

package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cmdShow     = "show"
	cmdTimezone = "timezone"
	cmdReset    = "reset"
	cmdUpdate   = "update"

	cbNoop = "noop"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	b.ackCallback(cb.ID, "")
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	b.log.Info("callback",
		"action", cb.Data,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	if cb.Message.Chat.IsPrivate() {
		return
	}

	switch cb.Data {
	case cmdUpdate:
		b.handleForceUpdate(ctx, chatID)
	case cmdShow:
		b.handleShow(ctx, chatID)
	case cmdReset:
		b.handleReset(ctx, chatID)
	case cbNoop:
		b.reply(chatID, "Cancelled.")
	}
}

func (b *Bot) ackCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.log.Error("send callback ack", "error", err)
	}
}

func (b *Bot) handleResetConfirm(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "Reset templates and timezone to defaults? This cannot be undone.")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes, reset", cmdReset),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", cbNoop),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send reset confirmation", "error", err)
	}
}

func showKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Update now", cmdUpdate),
		),
	)
}

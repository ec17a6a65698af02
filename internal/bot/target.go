package bot

import (
	"context"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram limit for chat descriptions.
const maxDescriptionLength = 255

type applyResult int

const (
	applyOK applyResult = iota
	applyForbidden
	applyTooLong
	applyTransient
)

func (r applyResult) String() string {
	switch r {
	case applyOK:
		return "ok"
	case applyForbidden:
		return "permission denied"
	case applyTooLong:
		return "value too long"
	default:
		return "transient error"
	}
}

// classifyApplyError maps a Bot API error onto the outcome of an apply call.
// An unchanged value is reported by Telegram as an error but counts as applied.
func classifyApplyError(err error) applyResult {
	if err == nil {
		return applyOK
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "is not modified"):
		return applyOK
	case strings.Contains(msg, "not enough rights"),
		strings.Contains(msg, "have no rights"),
		strings.Contains(msg, "forbidden"),
		strings.Contains(msg, "chat_admin_required"):
		return applyForbidden
	case strings.Contains(msg, "too long"):
		return applyTooLong
	}
	return applyTransient
}

// Rename sets the chat title of a tenant.
func (b *Bot) Rename(_ context.Context, chatID int64, text string) bool {
	if strings.TrimSpace(text) == "" {
		b.log.Warn("skip empty chat title", "tenant_id", chatID)
		return false
	}
	return b.apply(chatID, "title", tgbotapi.SetChatTitleConfig{ChatID: chatID, Title: text})
}

// SetStatus sets the chat description of a tenant.
func (b *Bot) SetStatus(_ context.Context, chatID int64, text string) bool {
	if n := utf8.RuneCountInString(text); n > maxDescriptionLength {
		b.log.Warn("chat description too long", "tenant_id", chatID, "length", n, "max", maxDescriptionLength)
		return false
	}
	return b.apply(chatID, "description", tgbotapi.SetChatDescriptionConfig{ChatID: chatID, Description: text})
}

func (b *Bot) apply(chatID int64, what string, c tgbotapi.Chattable) bool {
	_, err := b.api.Request(c)
	res := classifyApplyError(err)
	switch res {
	case applyOK:
		return true
	case applyForbidden:
		b.log.Warn("missing rights to change chat "+what, "tenant_id", chatID, "error", err)
	default:
		b.log.Warn("change chat "+what, "tenant_id", chatID, "reason", res.String(), "error", err)
	}
	return false
}

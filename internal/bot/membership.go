package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const welcomeText = `Hi! I keep this chat's title and description in sync with market sentiment.

Make me an admin with the "Change group info" right, then use /show to see the current setup or /help for all commands.`

// handleMembership tracks tenants as the bot joins and leaves chats.
func (b *Bot) handleMembership(ctx context.Context, upd *tgbotapi.ChatMemberUpdated) {
	chat := upd.Chat
	if chat.IsPrivate() {
		return
	}

	oldStatus := upd.OldChatMember.Status
	newStatus := upd.NewChatMember.Status
	b.log.Debug("membership changed", "chat_id", chat.ID, "old", oldStatus, "new", newStatus)

	switch {
	case isMemberStatus(newStatus):
		if _, err := b.store.GetTenant(ctx, chat.ID); err != nil {
			b.log.Error("register tenant", "chat_id", chat.ID, "error", err)
			return
		}
		if !isMemberStatus(oldStatus) {
			b.log.Info("added to chat", "chat_id", chat.ID, "title", chat.Title, "status", newStatus)
			b.reply(chat.ID, welcomeText)
		}
	case newStatus == "left" || newStatus == "kicked":
		if err := b.store.RemoveTenant(ctx, chat.ID); err != nil {
			b.log.Error("remove tenant", "chat_id", chat.ID, "error", err)
			return
		}
		b.log.Info("removed from chat", "chat_id", chat.ID, "title", chat.Title, "status", newStatus)
	}
}

func isMemberStatus(status string) bool {
	return status == "member" || status == "administrator" || status == "creator"
}

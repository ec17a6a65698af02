package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sentiment_bot/internal/model"
	"sentiment_bot/internal/provider"
	"sentiment_bot/internal/scheduler"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to Sentiment Bot!

I rename a group chat and update its description with live Fear & Greed readings.

Quick start:
1. Add me to a group and make me an admin with the "Change group info" right
2. /show — see the current templates and a preview
3. /nickname <template> — e.g. /nickname F/G: {m.index} {m.emoji}

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Templates (in a group):
/show — current templates, preview and schedule
/nickname <template> — set the chat title template (max 32 characters)
/status <template> — set the chat description template
/timezone <name> — set the timezone used in replies, e.g. Europe/Berlin
/reset — restore default templates and timezone
/update — apply the templates now

Info:
/keys — list available placeholders
/next — next scheduled update
/about — bot information

Placeholders look like {provider.key}, e.g. {m.index} or {c.emotion}.`)
}

func (b *Bot) handleAbout(chatID int64) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Sentiment Bot v%s\n\nTracks market sentiment indicators.\n\nData sources:\n", Version)
	for _, p := range b.providers {
		fmt.Fprintf(&sb, "• %s — {%s.*}\n", provider.Describe(p), p.Name())
	}
	b.reply(chatID, strings.TrimRight(sb.String(), "\n"))
}

func (b *Bot) handleKeys(chatID int64) {
	b.reply(chatID, FormatKeys(b.providers))
}

func (b *Bot) handleNext(ctx context.Context, chatID int64, group bool) {
	st := b.scheduleStatus()
	loc := time.UTC
	if group {
		if cfg, err := b.store.GetTenant(ctx, chatID); err == nil {
			loc = cfg.Location()
		}
	}
	b.reply(chatID, FormatNextRun(st, loc))
}

func (b *Bot) handleShow(ctx context.Context, chatID int64) {
	cfg, err := b.store.GetTenant(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	preview, err := b.updater.Preview(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	msg := tgbotapi.NewMessage(chatID, FormatTenantConfig(cfg, preview, b.scheduleStatus()))
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = showKeyboard()
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send tenant config", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleSetTemplate(ctx context.Context, chatID int64, slot model.Slot, args string) {
	tmpl, err := ParseTemplateArg(args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Usage: /%s <template>", slot))
		return
	}

	if err := b.store.SetTemplate(ctx, chatID, slot, tmpl); err != nil {
		switch {
		case errors.Is(err, model.ErrTemplateTooLong):
			b.reply(chatID, fmt.Sprintf("Template is too long: a %s can have at most %d characters.", slot, model.MaxNameLength))
		default:
			b.reply(chatID, fmt.Sprintf("Error: %v", err))
		}
		return
	}

	reply := fmt.Sprintf("%s template set to: %s", capitalize(string(slot)), tmpl)
	if preview, err := b.updater.Preview(ctx, chatID); err == nil {
		if slot == model.SlotNickname {
			reply += "\nPreview: " + preview.Nickname
		} else {
			reply += "\nPreview: " + preview.Status
		}
	}
	if warn := FormatUnknownPlaceholders(UnknownPlaceholders(tmpl, b.providers)); warn != "" {
		reply += "\n\n" + warn
	}
	reply += "\n\nUse /update to apply it now."
	b.reply(chatID, reply)
}

func (b *Bot) handleTimezone(ctx context.Context, chatID int64, args string) {
	tz, err := ParseTimezoneArg(args)
	if err != nil {
		b.reply(chatID, capitalize(err.Error()))
		return
	}

	if err := b.store.SetTimezone(ctx, chatID, tz); err != nil {
		if errors.Is(err, model.ErrInvalidTimezone) {
			b.reply(chatID, fmt.Sprintf("Unknown timezone %q. Use an IANA name such as Europe/Berlin or America/New_York.", tz))
			return
		}
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Timezone set to %s.", tz))
}

func (b *Bot) handleReset(ctx context.Context, chatID int64) {
	if err := b.store.ResetTenant(ctx, chatID); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Templates reset to defaults:\nNickname: %s\nStatus: %s\nTimezone: %s",
		model.DefaultNicknameTemplate, model.DefaultStatusTemplate, model.DefaultTimezone))
}

func (b *Bot) handleForceUpdate(ctx context.Context, chatID int64) {
	out := b.updater.UpdateOne(ctx, chatID)
	b.log.Info("forced update", "chat_id", chatID, "ok", out.OK(),
		"nickname_applied", out.NameApplied, "status_applied", out.StatusApplied)
	b.reply(chatID, FormatOutcome(out))
}

func (b *Bot) scheduleStatus() scheduler.Status {
	if b.schedule == nil {
		return scheduler.Status{State: scheduler.StateDisabled}
	}
	return b.schedule.Status()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

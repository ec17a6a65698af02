package bot

import (
	"fmt"
	"strings"
	"time"

	"sentiment_bot/internal/model"
	"sentiment_bot/internal/provider"
	"sentiment_bot/internal/render"
	"sentiment_bot/internal/scheduler"
	"sentiment_bot/internal/updater"
)

const timeFormat = "2006-01-02 15:04 MST"

// FormatTime formats t in loc for operator replies.
func FormatTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(timeFormat)
}

// FormatNextRun describes the state of scheduled updates and the next run, if armed.
func FormatNextRun(st scheduler.Status, loc *time.Location) string {
	switch st.State {
	case scheduler.StateDisabled:
		return "Scheduled updates are disabled."
	case scheduler.StateFiring:
		return "A scheduled update is in progress."
	case scheduler.StateBackoff:
		return "The last scheduled update failed, retrying shortly."
	}
	if st.Next.IsZero() {
		return "Scheduled updates are starting."
	}
	return "Next scheduled update: " + FormatTime(st.Next, loc)
}

// FormatTenantConfig formats the templates, their preview and the update status of a tenant.
func FormatTenantConfig(cfg *model.TenantConfig, preview updater.Preview, st scheduler.Status) string {
	loc := cfg.Location()

	var b strings.Builder
	b.WriteString("Nickname (chat title):\n")
	fmt.Fprintf(&b, "  template: %s\n", cfg.NicknameTemplate)
	fmt.Fprintf(&b, "  preview:  %s\n", preview.Nickname)
	b.WriteString("\nStatus (chat description):\n")
	fmt.Fprintf(&b, "  template: %s\n", cfg.StatusTemplate)
	fmt.Fprintf(&b, "  preview:  %s\n", preview.Status)

	if phs := render.Placeholders(cfg.NicknameTemplate + "\n" + cfg.StatusTemplate); len(phs) > 0 {
		names := make([]string, len(phs))
		for i, ph := range phs {
			names[i] = ph.String()
		}
		fmt.Fprintf(&b, "\nPlaceholders: %s\n", strings.Join(names, ", "))
	}

	fmt.Fprintf(&b, "\nTimezone: %s\n", cfg.Timezone)
	if cfg.LastUpdateAt != nil {
		result := "ok"
		if !cfg.LastUpdateOK {
			result = "failed"
		}
		fmt.Fprintf(&b, "Last update: %s (%s)\n", FormatTime(*cfg.LastUpdateAt, loc), result)
	} else {
		b.WriteString("Last update: never\n")
	}
	b.WriteString(FormatNextRun(st, loc))
	return b.String()
}

// FormatKeys lists the placeholders every provider can fill.
func FormatKeys(providers []provider.Provider) string {
	var b strings.Builder
	b.WriteString("Available placeholders:\n")
	for _, p := range providers {
		fmt.Fprintf(&b, "\n%s:\n", provider.Describe(p))
		for _, k := range p.AvailableKeys() {
			fmt.Fprintf(&b, "  %s\n", render.Placeholder{Provider: p.Name(), Key: k})
		}
	}
	b.WriteString("\nExample: /nickname F/G: {m.index} {m.emoji}")
	return b.String()
}

// FormatOutcome summarizes a forced update for the operator.
func FormatOutcome(out model.Outcome) string {
	const hint = `Make sure I am an admin with the "Change group info" right.`
	switch {
	case out.Err != nil:
		return fmt.Sprintf("Update failed: %v", out.Err)
	case out.NameApplied && out.StatusApplied:
		return "Update succeeded."
	case out.NameApplied:
		return "Update completed with some errors: the chat description could not be changed. " + hint
	case out.StatusApplied:
		return "Update completed with some errors: the chat title could not be changed. " + hint
	}
	return "Update failed: neither the chat title nor the description could be changed. " + hint
}

// FormatUnknownPlaceholders warns about placeholders no provider can fill.
func FormatUnknownPlaceholders(phs []render.Placeholder) string {
	if len(phs) == 0 {
		return ""
	}
	names := make([]string, len(phs))
	for i, ph := range phs {
		names[i] = ph.String()
	}
	return fmt.Sprintf("Warning: unknown placeholders %s. Use /keys to list valid ones.", strings.Join(names, ", "))
}

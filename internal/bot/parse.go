package bot

import (
	"fmt"
	"slices"
	"strings"

	"sentiment_bot/internal/provider"
	"sentiment_bot/internal/render"
)

// ParseTemplateArg extracts a template from command arguments.
// One pair of surrounding double quotes is stripped so leading or trailing spaces can be kept.
func ParseTemplateArg(args string) (string, error) {
	s := strings.TrimSpace(args)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = s[1 : len(s)-1]
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("template cannot be empty")
	}
	return s, nil
}

// ParseTimezoneArg extracts an IANA timezone name from command arguments.
func ParseTimezoneArg(args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return "", fmt.Errorf("usage: /timezone <IANA name>, e.g. /timezone Europe/Berlin")
	}
	return fields[0], nil
}

// UnknownPlaceholders returns the placeholders of template that no provider can fill.
func UnknownPlaceholders(template string, providers []provider.Provider) []render.Placeholder {
	var unknown []render.Placeholder
	for _, ph := range render.Placeholders(template) {
		idx := slices.IndexFunc(providers, func(p provider.Provider) bool { return p.Name() == ph.Provider })
		if idx >= 0 && slices.Contains(providers[idx].AvailableKeys(), ph.Key) {
			continue
		}
		unknown = append(unknown, ph)
	}
	return unknown
}

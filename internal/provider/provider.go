// Package provider fetches sentiment readings from upstream data sources.
//
// Every provider absorbs its own failures: Fetch always returns usable Fields,
// falling back to Default when the upstream is unreachable or returns garbage.
package provider

import (
	"context"
	"slices"

	"sentiment_bot/internal/model"
	"sentiment_bot/internal/render"
)

// Field keys emitted by every provider.
const (
	KeyIndex     = "index"
	KeyEmotion   = "emotion"
	KeyEmoji     = "emoji"
	KeyTrend     = "trend"
	KeyTimestamp = "timestamp"
)

// Trend labels.
const (
	TrendRising  = "↗️ rising"
	TrendFalling = "↘️ falling"
	TrendStable  = "→ stable"
)

var availableKeys = []string{KeyIndex, KeyEmotion, KeyEmoji, KeyTrend, KeyTimestamp}

// Provider is a source of one category of sentiment data.
type Provider interface {
	// Name is the placeholder prefix used in templates, e.g. "m" in {m.index}.
	Name() string
	// Fetch returns the latest reading. It never fails; see Default.
	Fetch(ctx context.Context) model.Fields
	// AvailableKeys lists every key Fetch can emit.
	AvailableKeys() []string
}

// Describe returns a human-readable description of p, falling back to its name.
func Describe(p Provider) string {
	if d, ok := p.(interface{ Description() string }); ok {
		return d.Description()
	}
	return p.Name()
}

// Default is the reading used when an upstream fetch fails.
func Default() model.Fields {
	return model.Fields{
		KeyIndex:     50,
		KeyEmotion:   unknownEmotion,
		KeyEmoji:     unknownEmoji,
		KeyTrend:     TrendStable,
		KeyTimestamp: nil,
	}
}

// IsDefault reports whether f looks like the fallback reading.
func IsDefault(f model.Fields) bool {
	return f[KeyEmotion] == unknownEmotion && f[KeyTimestamp] == nil
}

// RequiredKeys returns the keys of p referenced by template.
func RequiredKeys(p Provider, template string) []string {
	var keys []string
	for _, ph := range render.Placeholders(template) {
		if ph.Provider != p.Name() {
			continue
		}
		if slices.Contains(p.AvailableKeys(), ph.Key) && !slices.Contains(keys, ph.Key) {
			keys = append(keys, ph.Key)
		}
	}
	return keys
}

// Trend compares the current reading with the previous one.
// previous is compared unrounded, so a fractional previous close still counts.
func Trend(current int, previous float64) string {
	c := float64(current)
	switch {
	case c > previous:
		return TrendRising
	case c < previous:
		return TrendFalling
	default:
		return TrendStable
	}
}

func reading(index int, previous *float64, timestamp any) model.Fields {
	emotion, emoji := Classify(index)
	trend := TrendStable
	if previous != nil {
		trend = Trend(index, *previous)
	}
	return model.Fields{
		KeyIndex:     index,
		KeyEmotion:   emotion,
		KeyEmoji:     emoji,
		KeyTrend:     trend,
		KeyTimestamp: timestamp,
	}
}

// All returns the full, fixed set of providers sharing opts.
func All(opts Options) []Provider {
	return []Provider{NewMarket(opts), NewCrypto(opts)}
}

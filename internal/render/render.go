// Package render substitutes {provider.key} placeholders in user templates.
package render

import (
	"regexp"
	"strings"

	"sentiment_bot/internal/model"
)

var placeholderRe = regexp.MustCompile(`\{(\w+)\.(\w+)\}`)

// Placeholder is one {provider.key} reference found in a template.
type Placeholder struct {
	Provider string
	Key      string
}

// String returns the placeholder in template syntax.
func (p Placeholder) String() string {
	return "{" + p.Provider + "." + p.Key + "}"
}

// Render replaces every placeholder in template with the matching value from snap.
// A provider missing from snap yields ?provider?, a missing key yields ?key?.
// Text outside placeholders is copied unchanged.
func Render(template string, snap model.Snapshot) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		ph := parse(m)
		fields, ok := snap[ph.Provider]
		if !ok {
			return "?" + ph.Provider + "?"
		}
		v, ok := fields[ph.Key]
		if !ok {
			return "?" + ph.Key + "?"
		}
		return model.FormatValue(v)
	})
}

// Placeholders returns the placeholders referenced by template in order of appearance, without duplicates.
func Placeholders(template string) []Placeholder {
	var out []Placeholder
	seen := make(map[Placeholder]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(template, -1) {
		ph := Placeholder{Provider: m[1], Key: m[2]}
		if seen[ph] {
			continue
		}
		seen[ph] = true
		out = append(out, ph)
	}
	return out
}

// Providers returns the provider names referenced by any of the templates.
func Providers(templates ...string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range templates {
		for _, ph := range Placeholders(t) {
			if !seen[ph.Provider] {
				seen[ph.Provider] = true
				out = append(out, ph.Provider)
			}
		}
	}
	return out
}

func parse(m string) Placeholder {
	inner := m[1 : len(m)-1]
	provider, key, _ := strings.Cut(inner, ".")
	return Placeholder{Provider: provider, Key: key}
}

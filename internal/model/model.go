// Package model defines the domain types used across the application.
package model

import (
	"errors"
	"fmt"
	"strconv"
	"time"
	_ "time/tzdata" // Tenant and schedule timezones must resolve on images without a zone database.
	"unicode/utf8"
)

// MaxNameLength is the display-name limit applied to rendered nickname templates.
const MaxNameLength = 32

// Default per-tenant configuration.
const (
	DefaultNicknameTemplate = "F/G: {m.index}"
	DefaultStatusTemplate   = "{m.emotion} {m.emoji}"
	DefaultTimezone         = "UTC"
)

// Validation errors returned by the config store.
var (
	ErrTemplateTooLong = errors.New("template too long")
	ErrUnknownSlot     = errors.New("unknown template slot")
	ErrInvalidTimezone = errors.New("invalid timezone")
)

// Fields is one provider reading. Values are string, int, float64 or nil.
type Fields map[string]any

// Snapshot maps provider name to its latest Fields for one update cycle.
// A Snapshot is never mutated after it has been published.
type Snapshot map[string]Fields

// FormatValue returns the text form of a field value as it appears in rendered templates.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "n/a"
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Slot identifies one of the two template slots of a tenant.
type Slot string

// Supported slots.
const (
	SlotNickname Slot = "nickname"
	SlotStatus   Slot = "status"
)

// TenantConfig holds the templates and timezone of one tenant.
type TenantConfig struct {
	TenantID         int64
	NicknameTemplate string
	StatusTemplate   string
	Timezone         string
	LastUpdateAt     *time.Time
	LastUpdateOK     bool
	CreatedAt        time.Time
}

// DefaultTenantConfig returns the configuration given to a previously unseen tenant.
func DefaultTenantConfig(tenantID int64) TenantConfig {
	return TenantConfig{
		TenantID:         tenantID,
		NicknameTemplate: DefaultNicknameTemplate,
		StatusTemplate:   DefaultStatusTemplate,
		Timezone:         DefaultTimezone,
	}
}

// Template returns the template stored in the given slot.
func (c TenantConfig) Template(slot Slot) string {
	if slot == SlotNickname {
		return c.NicknameTemplate
	}
	return c.StatusTemplate
}

// Location resolves the tenant timezone, falling back to UTC.
func (c TenantConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseSlot converts user input into a Slot.
func ParseSlot(s string) (Slot, error) {
	switch Slot(s) {
	case SlotNickname, SlotStatus:
		return Slot(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSlot, s)
}

// ValidateTemplate checks a template before it is stored.
func ValidateTemplate(slot Slot, template string) error {
	switch slot {
	case SlotNickname:
		if n := utf8.RuneCountInString(template); n > MaxNameLength {
			return fmt.Errorf("%w: %d characters, max %d", ErrTemplateTooLong, n, MaxNameLength)
		}
	case SlotStatus:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	return nil
}

// ValidateTimezone checks that tz names a loadable IANA location.
func ValidateTimezone(tz string) error {
	if tz == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTimezone)
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	return nil
}

// Truncate shortens s to at most n characters.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Outcome is the result of applying rendered templates to one tenant.
type Outcome struct {
	TenantID      int64
	NameApplied   bool
	StatusApplied bool
	Err           error
}

// OK reports whether at least one slot was applied.
func (o Outcome) OK() bool {
	return o.NameApplied || o.StatusApplied
}

package scheduler

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Plan computes fire instants. Next always returns an instant strictly after now,
// or the zero time when no further instant exists.
type Plan interface {
	Next(now time.Time) time.Time
	String() string
}

// NewPlan builds a Plan from schedule configuration. A cron expression takes
// precedence over fixed times. An unknown timezone falls back to UTC.
// It returns nil when no valid schedule is configured.
func NewPlan(cronExpr string, times []string, tz string, log *slog.Logger) Plan {
	loc := resolveLocation(tz, log)

	if cronExpr = strings.TrimSpace(cronExpr); cronExpr != "" {
		if len(times) > 0 {
			log.Warn("both cron and fixed times configured, using cron", "cron", cronExpr)
		}
		p, err := NewCronPlan(cronExpr, loc)
		if err != nil {
			log.Warn("invalid cron expression, scheduling disabled", "cron", cronExpr, "error", err)
			return nil
		}
		if p.Next(time.Now()).IsZero() {
			log.Warn("cron expression never fires, scheduling disabled", "cron", cronExpr)
			return nil
		}
		return p
	}

	if len(times) == 0 {
		log.Info("no schedule configured, scheduling disabled")
		return nil
	}

	clocks, invalid := ParseTimes(times)
	for _, s := range invalid {
		log.Warn("ignoring invalid time of day", "value", s)
	}
	if len(clocks) == 0 {
		log.Warn("no valid times of day, scheduling disabled")
		return nil
	}
	return NewTimesPlan(clocks, loc)
}

func resolveLocation(tz string, log *slog.Logger) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("unknown timezone, falling back to UTC", "timezone", tz, "error", err)
		return time.UTC
	}
	return loc
}

// CronPlan fires according to a standard 5-field cron expression in a timezone.
type CronPlan struct {
	expr  string
	sched cron.Schedule
	loc   *time.Location
}

// NewCronPlan parses expr with standard cron semantics, including descriptors such as @daily.
func NewCronPlan(expr string, loc *time.Location) (*CronPlan, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", expr, err)
	}
	return &CronPlan{expr: expr, sched: sched, loc: loc}, nil
}

// Next returns the next matching instant after now, evaluated in the plan timezone.
func (p *CronPlan) Next(now time.Time) time.Time {
	return p.sched.Next(now.In(p.loc))
}

func (p *CronPlan) String() string {
	return fmt.Sprintf("cron %q (%s)", p.expr, p.loc)
}

// Clock is a time of day.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClock parses an HH:MM time of day.
func ParseClock(s string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Clock{}, fmt.Errorf("time of day %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || len(hh) > 2 || h < 0 || h > 23 {
		return Clock{}, fmt.Errorf("time of day %q: invalid hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("time of day %q: invalid minute", s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

// ParseTimes parses HH:MM values, returning the valid ones sorted and
// deduplicated together with the raw values that failed to parse.
func ParseTimes(values []string) ([]Clock, []string) {
	var clocks []Clock
	var invalid []string
	for _, v := range values {
		c, err := ParseClock(v)
		if err != nil {
			invalid = append(invalid, v)
			continue
		}
		clocks = append(clocks, c)
	}
	slices.SortFunc(clocks, func(a, b Clock) int {
		return (a.Hour*60 + a.Minute) - (b.Hour*60 + b.Minute)
	})
	return slices.Compact(clocks), invalid
}

// TimesPlan fires once per listed time of day in a timezone.
type TimesPlan struct {
	clocks []Clock
	loc    *time.Location
}

// NewTimesPlan creates a TimesPlan. clocks must be sorted, as returned by ParseTimes.
func NewTimesPlan(clocks []Clock, loc *time.Location) *TimesPlan {
	return &TimesPlan{clocks: clocks, loc: loc}
}

// Next returns the first listed time of day after now, rolling over to the next day.
func (p *TimesPlan) Next(now time.Time) time.Time {
	if len(p.clocks) == 0 {
		return time.Time{}
	}
	local := now.In(p.loc)
	y, m, d := local.Date()
	for _, c := range p.clocks {
		t := time.Date(y, m, d, c.Hour, c.Minute, 0, 0, p.loc)
		if t.After(local) {
			return t
		}
	}
	first := p.clocks[0]
	return time.Date(y, m, d+1, first.Hour, first.Minute, 0, 0, p.loc)
}

func (p *TimesPlan) String() string {
	parts := make([]string, len(p.clocks))
	for i, c := range p.clocks {
		parts[i] = c.String()
	}
	return fmt.Sprintf("times %s (%s)", strings.Join(parts, ","), p.loc)
}

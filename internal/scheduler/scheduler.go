// Package scheduler fires update cycles according to a cron or fixed-times plan.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sentiment_bot/internal/model"
)

const (
	defaultBackoff = 60 * time.Second
	minWait        = time.Second
)

// State is the scheduler lifecycle state.
type State int

// Scheduler states.
const (
	StateDisabled State = iota
	StateIdle
	StateFiring
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateIdle:
		return "idle"
	case StateFiring:
		return "firing"
	case StateBackoff:
		return "backoff"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Cycle runs one update over every tenant.
type Cycle interface {
	UpdateAll(ctx context.Context) (map[int64]model.Outcome, error)
}

var errNoNextRun = errors.New("plan has no next run")

// Scheduler drives a single background loop that fires one Cycle at a time.
type Scheduler struct {
	plan    Plan
	cycle   Cycle
	log     *slog.Logger
	backoff time.Duration
	minWait time.Duration
	now     func() time.Time

	mu    sync.Mutex
	state State
	next  time.Time
}

// New creates a Scheduler. A nil plan yields a permanently disabled scheduler.
func New(plan Plan, cycle Cycle, log *slog.Logger) *Scheduler {
	s := &Scheduler{
		plan:    plan,
		cycle:   cycle,
		log:     log,
		backoff: defaultBackoff,
		minWait: minWait,
		now:     time.Now,
		state:   StateIdle,
	}
	if plan == nil {
		s.state = StateDisabled
	}
	return s
}

// SetBackoff overrides the delay used after a failed firing.
func (s *Scheduler) SetBackoff(d time.Duration) {
	s.backoff = d
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status is a consistent view of the scheduler state and its armed fire instant.
// Next is zero unless State is StateIdle and the plan has been armed.
type Status struct {
	State State
	Next  time.Time
}

// Status returns the current state together with the armed fire instant.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{State: s.state, Next: s.next}
}

// NextRun returns the armed fire instant. ok is false unless the scheduler is idle and armed.
func (s *Scheduler) NextRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle || s.next.IsZero() {
		return time.Time{}, false
	}
	return s.next, true
}

// Run blocks until ctx is cancelled, firing the cycle at every planned instant.
// It returns immediately when the scheduler is disabled. A firing in progress
// is allowed to finish after ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	if s.plan == nil {
		s.log.Info("scheduler disabled")
		return
	}
	s.log.Info("scheduler started", "plan", s.plan.String())

	for {
		next, err := s.arm()
		if err != nil {
			s.log.Error("compute next run", "error", err)
			if !s.sleepBackoff(ctx) {
				return
			}
			continue
		}

		s.log.Info("next update scheduled", "next_run", next)
		if !s.sleep(ctx, next.Sub(s.now())) {
			s.log.Info("scheduler stopped")
			return
		}

		s.setState(StateFiring, time.Time{})
		if err := s.fire(context.WithoutCancel(ctx)); err != nil {
			s.log.Error("scheduled update failed", "error", err)
			if !s.sleepBackoff(ctx) {
				return
			}
			continue
		}
		if ctx.Err() != nil {
			s.log.Info("scheduler stopped")
			return
		}
	}
}

func (s *Scheduler) arm() (next time.Time, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plan panicked: %v", r)
		}
	}()
	next = s.plan.Next(s.now())
	if next.IsZero() {
		return time.Time{}, errNoNextRun
	}
	s.setState(StateIdle, next)
	return next, nil
}

func (s *Scheduler) fire(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("update cycle panicked: %v", r)
		}
	}()
	start := s.now()
	outcomes, err := s.cycle.UpdateAll(ctx)
	if err != nil {
		return err
	}
	s.log.Info("scheduled update done", "tenants", len(outcomes), "duration", s.now().Sub(start))
	return nil
}

func (s *Scheduler) sleepBackoff(ctx context.Context) bool {
	s.setState(StateBackoff, time.Time{})
	s.log.Info("scheduler backing off", "delay", s.backoff)
	return s.sleep(ctx, s.backoff)
}

// sleep waits for d, clamped to the minimum wait. It returns false if ctx was cancelled first.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	d = max(d, s.minWait)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Scheduler) setState(state State, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.next = next
}

// Package updater renders tenant templates against the provider cache and applies them.
package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"sentiment_bot/internal/cache"
	"sentiment_bot/internal/model"
	"sentiment_bot/internal/render"
	"sentiment_bot/internal/storage"
)

const defaultConcurrency = 4

// Target applies rendered values to a tenant on the host platform.
// Implementations absorb their own errors and report only whether the value was applied.
type Target interface {
	Rename(ctx context.Context, tenantID int64, text string) bool
	SetStatus(ctx context.Context, tenantID int64, text string) bool
}

// ConfigStore is the subset of storage.Storage the updater needs.
type ConfigStore interface {
	GetTenant(ctx context.Context, tenantID int64) (*model.TenantConfig, error)
	LookupTenant(ctx context.Context, tenantID int64) (*model.TenantConfig, error)
	ListTenantIDs(ctx context.Context) ([]int64, error)
	RecordOutcome(ctx context.Context, tenantID int64, ok bool, at time.Time) error
}

// Preview is the rendered form of both template slots.
type Preview struct {
	Nickname string
	Status   string
}

// Updater runs single-tenant and all-tenant update cycles.
type Updater struct {
	cache       *cache.Cache
	store       ConfigStore
	target      Target
	log         *slog.Logger
	tracer      trace.Tracer
	concurrency int
	now         func() time.Time
}

// New creates an Updater.
func New(c *cache.Cache, store ConfigStore, target Target, log *slog.Logger) *Updater {
	return &Updater{
		cache:       c,
		store:       store,
		target:      target,
		log:         log,
		tracer:      noop.NewTracerProvider().Tracer("updater"),
		concurrency: defaultConcurrency,
		now:         time.Now,
	}
}

// SetConcurrency limits how many tenants are applied at once within one cycle.
func (u *Updater) SetConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	u.concurrency = n
}

// SetTracer overrides the default noop tracer.
func (u *Updater) SetTracer(t trace.Tracer) {
	u.tracer = t
}

// UpdateOne applies both templates of one tenant, populating the cache first if it is empty.
// An unseen tenant is created with default templates.
func (u *Updater) UpdateOne(ctx context.Context, tenantID int64) model.Outcome {
	snap := u.cache.Ensure(ctx)
	return u.apply(ctx, tenantID, snap, u.store.GetTenant)
}

// UpdateAll refreshes the cache once and applies every known tenant against that snapshot.
// The returned map has an entry for every listed tenant, including failed ones.
// A tenant removed while the cycle runs is skipped, not re-created; its outcome
// carries storage.ErrNotFound.
func (u *Updater) UpdateAll(ctx context.Context) (map[int64]model.Outcome, error) {
	ctx, span := u.tracer.Start(ctx, "updater.update_all")
	defer span.End()

	ids, err := u.store.ListTenantIDs(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	snap := u.cache.Refresh(ctx)

	var (
		mu       sync.Mutex
		outcomes = make(map[int64]model.Outcome, len(ids))
	)
	var g errgroup.Group
	g.SetLimit(u.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			out := u.apply(ctx, id, snap, u.store.LookupTenant)
			mu.Lock()
			outcomes[id] = out
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	ok, skipped := 0, 0
	for _, out := range outcomes {
		switch {
		case out.OK():
			ok++
		case errors.Is(out.Err, storage.ErrNotFound):
			skipped++
		}
	}
	span.SetAttributes(
		attribute.Int("tenants", len(ids)),
		attribute.Int("succeeded", ok),
		attribute.Int("skipped", skipped),
	)
	u.log.Info("update cycle finished", "tenants", len(ids), "succeeded", ok,
		"skipped", skipped, "failed", len(ids)-ok-skipped)

	return outcomes, nil
}

// Preview renders both templates of a tenant without applying them.
func (u *Updater) Preview(ctx context.Context, tenantID int64) (Preview, error) {
	cfg, err := u.store.GetTenant(ctx, tenantID)
	if err != nil {
		return Preview{}, fmt.Errorf("get tenant: %w", err)
	}
	snap := u.cache.Ensure(ctx)
	return renderConfig(cfg, snap), nil
}

func renderConfig(cfg *model.TenantConfig, snap model.Snapshot) Preview {
	return Preview{
		Nickname: model.Truncate(render.Render(cfg.NicknameTemplate, snap), model.MaxNameLength),
		Status:   render.Render(cfg.StatusTemplate, snap),
	}
}

type loadFunc func(ctx context.Context, tenantID int64) (*model.TenantConfig, error)

func (u *Updater) apply(ctx context.Context, tenantID int64, snap model.Snapshot, load loadFunc) (out model.Outcome) {
	out.TenantID = tenantID
	defer func() {
		if r := recover(); r != nil {
			u.log.Error("tenant update panicked", "tenant_id", tenantID, "panic", r)
			out = model.Outcome{TenantID: tenantID, Err: fmt.Errorf("tenant update panicked: %v", r)}
		}
		if errors.Is(out.Err, storage.ErrNotFound) {
			return
		}
		u.record(ctx, out)
	}()

	cfg, err := load(ctx, tenantID)
	if errors.Is(err, storage.ErrNotFound) {
		u.log.Info("tenant removed during update, skipping", "tenant_id", tenantID)
		out.Err = err
		return out
	}
	if err != nil {
		u.log.Error("load tenant config", "tenant_id", tenantID, "error", err)
		out.Err = fmt.Errorf("load config: %w", err)
		return out
	}

	p := renderConfig(cfg, snap)
	out.NameApplied = u.target.Rename(ctx, tenantID, p.Nickname)
	out.StatusApplied = u.target.SetStatus(ctx, tenantID, p.Status)

	switch {
	case out.NameApplied && out.StatusApplied:
		u.log.Debug("tenant updated", "tenant_id", tenantID, "nickname", p.Nickname)
	case out.OK():
		u.log.Warn("tenant partially updated", "tenant_id", tenantID,
			"nickname_applied", out.NameApplied, "status_applied", out.StatusApplied)
	default:
		u.log.Warn("tenant update failed", "tenant_id", tenantID)
	}
	return out
}

func (u *Updater) record(ctx context.Context, out model.Outcome) {
	err := u.store.RecordOutcome(context.WithoutCancel(ctx), out.TenantID, out.OK(), u.now().UTC())
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		u.log.Debug("tenant removed during update", "tenant_id", out.TenantID)
	default:
		u.log.Error("record outcome", "tenant_id", out.TenantID, "error", err)
	}
}

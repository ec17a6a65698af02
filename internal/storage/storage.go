// Package storage persists per-tenant configuration.
package storage

import (
	"context"
	"errors"
	"time"

	"sentiment_bot/internal/model"
)

// ErrNotFound is returned when a tenant has no stored configuration.
var ErrNotFound = errors.New("tenant not found")

// Storage is the interface for all tenant configuration operations.
type Storage interface {
	// GetTenant returns the tenant configuration, creating defaults for an unseen tenant.
	GetTenant(ctx context.Context, tenantID int64) (*model.TenantConfig, error)
	// LookupTenant returns the stored configuration, or ErrNotFound. It never creates a tenant.
	LookupTenant(ctx context.Context, tenantID int64) (*model.TenantConfig, error)
	// SetTemplate validates and stores one template slot. The store is unchanged on error.
	SetTemplate(ctx context.Context, tenantID int64, slot model.Slot, template string) error
	SetTimezone(ctx context.Context, tenantID int64, tz string) error
	ResetTenant(ctx context.Context, tenantID int64) error
	RemoveTenant(ctx context.Context, tenantID int64) error
	ListTenantIDs(ctx context.Context) ([]int64, error)
	RecordOutcome(ctx context.Context, tenantID int64, ok bool, at time.Time) error

	Close() error
}

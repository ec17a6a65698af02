package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"sentiment_bot/internal/model"
	"sentiment_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

const tenantColumns = `id, nickname_template, status_template, timezone, last_update_at, last_update_ok, created_at`

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := migrations.Run(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// GetTenant returns the configuration of a tenant, inserting defaults on first use.
func (s *SQLite) GetTenant(ctx context.Context, tenantID int64) (*model.TenantConfig, error) {
	if err := s.ensureTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.LookupTenant(ctx, tenantID)
}

// LookupTenant returns the configuration of a known tenant, or ErrNotFound.
func (s *SQLite) LookupTenant(ctx context.Context, tenantID int64) (*model.TenantConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = ?`, tenantID,
	)
	c, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup tenant %d: %w", tenantID, ErrNotFound)
	}
	return c, err
}

// SetTemplate validates and stores a template for one slot.
func (s *SQLite) SetTemplate(ctx context.Context, tenantID int64, slot model.Slot, template string) error {
	if err := model.ValidateTemplate(slot, template); err != nil {
		return err
	}
	if err := s.ensureTenant(ctx, tenantID); err != nil {
		return err
	}

	column := "nickname_template"
	if slot == model.SlotStatus {
		column = "status_template"
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE tenants SET `+column+` = ? WHERE id = ?`, template, tenantID,
	); err != nil {
		return fmt.Errorf("update %s template: %w", slot, err)
	}
	return nil
}

// SetTimezone validates and stores the tenant timezone.
func (s *SQLite) SetTimezone(ctx context.Context, tenantID int64, tz string) error {
	if err := model.ValidateTimezone(tz); err != nil {
		return err
	}
	if err := s.ensureTenant(ctx, tenantID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE tenants SET timezone = ? WHERE id = ?`, tz, tenantID,
	); err != nil {
		return fmt.Errorf("update timezone: %w", err)
	}
	return nil
}

// ResetTenant restores the default templates and timezone.
func (s *SQLite) ResetTenant(ctx context.Context, tenantID int64) error {
	if err := s.ensureTenant(ctx, tenantID); err != nil {
		return err
	}
	def := model.DefaultTenantConfig(tenantID)
	if _, err := s.db.ExecContext(ctx,
		`UPDATE tenants SET nickname_template = ?, status_template = ?, timezone = ? WHERE id = ?`,
		def.NicknameTemplate, def.StatusTemplate, def.Timezone, tenantID,
	); err != nil {
		return fmt.Errorf("reset tenant: %w", err)
	}
	return nil
}

// RemoveTenant deletes a tenant. Removing an unknown tenant is not an error.
func (s *SQLite) RemoveTenant(ctx context.Context, tenantID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, tenantID); err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	return nil
}

// ListTenantIDs returns the ids of all known tenants.
func (s *SQLite) ListTenantIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM tenants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query tenants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tenant id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecordOutcome stores the result of the latest update of a tenant.
func (s *SQLite) RecordOutcome(ctx context.Context, tenantID int64, ok bool, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tenants SET last_update_at = ?, last_update_ok = ? WHERE id = ?`,
		at.UTC().Format(timeLayout), boolToInt(ok), tenantID,
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("record outcome for %d: %w", tenantID, ErrNotFound)
	}
	return nil
}

func (s *SQLite) ensureTenant(ctx context.Context, tenantID int64) error {
	def := model.DefaultTenantConfig(tenantID)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO tenants (id, nickname_template, status_template, timezone, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		tenantID, def.NicknameTemplate, def.StatusTemplate, def.Timezone, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTenant(row scannable) (*model.TenantConfig, error) {
	var c model.TenantConfig
	var lastOK int
	var lastUpdate, created sql.NullString
	err := row.Scan(&c.TenantID, &c.NicknameTemplate, &c.StatusTemplate, &c.Timezone, &lastUpdate, &lastOK, &created)
	if err != nil {
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	c.LastUpdateOK = lastOK == 1
	if lastUpdate.Valid {
		t, _ := time.Parse(timeLayout, lastUpdate.String)
		c.LastUpdateAt = &t
	}
	if created.Valid {
		c.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	return &c, nil
}

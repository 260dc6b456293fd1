package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shakvilla/petroleum-saas-sub005/internal/platform/db"
)

const uniqueViolation = "23505"

// PGStore persists records in the tenant_records table, one jsonb document
// per record partitioned by tenant_id. Mutations run inside a transaction so
// the tenant check always sees the row's current state.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// List implements Store.
func (s *PGStore) List(ctx context.Context, resource, tenantID string) ([]Record, error) {
	query := `
		SELECT id, tenant_id, data, created_at, updated_at
		FROM tenant_records
		WHERE resource = $1`
	args := []any{resource}
	if tenantID != "" {
		query += ` AND tenant_id = $2`
		args = append(args, tenantID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("gateway: list %s: %w", resource, err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("gateway: list %s: %w", resource, err)
	}
	return records, nil
}

// Get implements Store.
func (s *PGStore) Get(ctx context.Context, resource, id, tenantID string) (Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, data, created_at, updated_at
		FROM tenant_records
		WHERE resource = $1 AND id = $2`, resource, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	if tenantID != "" && rec.TenantID != tenantID {
		return Record{}, &CrossTenantError{Resource: resource, RecordID: id, TenantID: tenantID, ownerTenant: rec.TenantID}
	}
	return rec, nil
}

// Insert implements Store.
func (s *PGStore) Insert(ctx context.Context, resource string, rec Record) (Record, error) {
	payload, err := json.Marshal(rec.Data)
	if err != nil {
		return Record{}, fmt.Errorf("gateway: encode record: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO tenant_records (resource, id, tenant_id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		resource, rec.ID, rec.TenantID, payload, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Record{}, ErrRecordExists
		}
		return Record{}, fmt.Errorf("gateway: insert %s: %w", resource, err)
	}
	return rec, nil
}

// Update implements Store. The row is locked, checked against the requesting
// tenant, then merged; a mismatch aborts with no mutation.
func (s *PGStore) Update(ctx context.Context, resource, id, tenantID string, data map[string]any) (Record, error) {
	var updated Record
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		rec, err := lockRecord(ctx, tx, resource, id, tenantID)
		if err != nil {
			return err
		}
		for k, v := range data {
			rec.Data[k] = v
		}
		payload, err := json.Marshal(rec.Data)
		if err != nil {
			return fmt.Errorf("gateway: encode record: %w", err)
		}
		rec.UpdatedAt = time.Now().UTC()
		if _, err := tx.Exec(ctx, `
			UPDATE tenant_records SET data = $1, updated_at = $2
			WHERE resource = $3 AND id = $4`,
			payload, rec.UpdatedAt, resource, id); err != nil {
			return fmt.Errorf("gateway: update %s: %w", resource, err)
		}
		updated = rec
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return updated, nil
}

// Delete implements Store.
func (s *PGStore) Delete(ctx context.Context, resource, id, tenantID string) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := lockRecord(ctx, tx, resource, id, tenantID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM tenant_records WHERE resource = $1 AND id = $2`, resource, id); err != nil {
			return fmt.Errorf("gateway: delete %s: %w", resource, err)
		}
		return nil
	})
}

func lockRecord(ctx context.Context, tx pgx.Tx, resource, id, tenantID string) (Record, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, tenant_id, data, created_at, updated_at
		FROM tenant_records
		WHERE resource = $1 AND id = $2
		FOR UPDATE`, resource, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	if tenantID != "" && rec.TenantID != tenantID {
		return Record{}, &CrossTenantError{Resource: resource, RecordID: id, TenantID: tenantID, ownerTenant: rec.TenantID}
	}
	return rec, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec     Record
		payload []byte
	)
	if err := row.Scan(&rec.ID, &rec.TenantID, &payload, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	rec.Data = make(map[string]any)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &rec.Data); err != nil {
			return Record{}, fmt.Errorf("gateway: decode record %s: %w", rec.ID, err)
		}
	}
	return rec, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lightcurvedb/internal/domain"
	"lightcurvedb/internal/storage"
)

// ObjectStore implements storage.ObjectStore using SQLite.
type ObjectStore struct {
	db *DB
}

// NewObjectStore creates a new ObjectStore.
func NewObjectStore(db *DB) *ObjectStore {
	return &ObjectStore{db: db}
}

// Compile-time interface check.
var _ storage.ObjectStore = (*ObjectStore)(nil)

// GetOrCreate inserts the object if its ID is new, otherwise returns the
// existing row unchanged.
func (s *ObjectStore) GetOrCreate(ctx context.Context, obj *domain.TrackedObject) (*domain.TrackedObject, error) {
	if obj == nil || obj.ID == "" {
		return nil, storage.ErrInvalidInput
	}

	var extra any
	if obj.Extra != nil {
		data, err := json.Marshal(obj.Extra)
		if err != nil {
			return nil, fmt.Errorf("encode object metadata: %w", err)
		}
		extra = string(data)
	}

	for attempt := 0; attempt < 2; attempt++ {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO objects (id, label, ra, dec, extra, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			obj.ID, obj.Label, obj.RA, obj.Dec, extra, time.Now().UnixMilli(),
		)
		if err != nil {
			return nil, fmt.Errorf("insert object: %w", err)
		}

		existing, err := s.Get(ctx, obj.ID)
		if err == nil {
			return existing, nil
		}
		if err != storage.ErrNotFound {
			return nil, err
		}
	}

	return nil, fmt.Errorf("get or create object %s: %w", obj.ID, storage.ErrConflict)
}

// Get retrieves an object by ID. Returns ErrNotFound if it does not exist.
func (s *ObjectStore) Get(ctx context.Context, id string) (*domain.TrackedObject, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, label, ra, dec, extra, created_at FROM objects WHERE id = ?`, id)

	obj, err := scanObject(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	return obj, nil
}

// List retrieves all objects ordered by ID.
func (s *ObjectStore) List(ctx context.Context) ([]*domain.TrackedObject, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, ra, dec, extra, created_at FROM objects ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	defer rows.Close()

	var objects []*domain.TrackedObject
	for rows.Next() {
		obj, err := scanObject(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan object row: %w", err)
		}
		objects = append(objects, obj)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate object rows: %w", err)
	}

	return objects, nil
}

// Delete removes an object according to the deletion policy.
func (s *ObjectStore) Delete(ctx context.Context, id string, policy domain.DeletionPolicy) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if policy == domain.DeleteCascade {
		if _, err := tx.ExecContext(ctx, `DELETE FROM observations WHERE object_id = ?`, id); err != nil {
			return fmt.Errorf("delete observations: %w", err)
		}
	} else {
		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM observations WHERE object_id = ?`, id).Scan(&count); err != nil {
			return fmt.Errorf("count observations: %w", err)
		}
		if count > 0 {
			return storage.ErrIntegrity
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM objects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// scanObject scans one object row, decoding the metadata JSON column.
func scanObject(scan func(...any) error) (*domain.TrackedObject, error) {
	var obj domain.TrackedObject
	var extra sql.NullString

	if err := scan(&obj.ID, &obj.Label, &obj.RA, &obj.Dec, &extra, &obj.CreatedAt); err != nil {
		return nil, err
	}

	if extra.Valid && extra.String != "" {
		var meta domain.ObjectMetadata
		if err := json.Unmarshal([]byte(extra.String), &meta); err != nil {
			return nil, fmt.Errorf("decode object metadata: %w", err)
		}
		obj.Extra = &meta
	}

	return &obj, nil
}

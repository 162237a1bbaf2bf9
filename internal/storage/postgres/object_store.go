package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"lightcurvedb/internal/domain"
	"lightcurvedb/internal/storage"
)

// ObjectStore implements storage.ObjectStore using PostgreSQL.
type ObjectStore struct {
	pool *Pool
}

// NewObjectStore creates a new ObjectStore.
func NewObjectStore(pool *Pool) *ObjectStore {
	return &ObjectStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ObjectStore = (*ObjectStore)(nil)

const objectColumns = `id, label, ra, dec, extra, created_at`

// GetOrCreate inserts the object if its ID is new, otherwise returns the
// existing row unchanged. The unique constraint on id resolves concurrent
// races; the losing caller re-reads the winner's row. One bounded retry,
// then storage.ErrConflict.
func (s *ObjectStore) GetOrCreate(ctx context.Context, obj *domain.TrackedObject) (*domain.TrackedObject, error) {
	if obj == nil || obj.ID == "" {
		return nil, storage.ErrInvalidInput
	}

	// Two attempts: insert, re-read on conflict. A second conflict means the
	// row was created and deleted between our statements.
	for attempt := 0; attempt < 2; attempt++ {
		created, err := s.tryInsert(ctx, obj)
		if err != nil {
			return nil, err
		}
		if created != nil {
			return created, nil
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

// tryInsert attempts the insert. Returns (nil, nil) when the ID already
// exists.
func (s *ObjectStore) tryInsert(ctx context.Context, obj *domain.TrackedObject) (*domain.TrackedObject, error) {
	extra, err := marshalExtra(obj.Extra)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO objects (id, label, ra, dec, extra)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
		RETURNING ` + objectColumns

	row := s.pool.QueryRow(ctx, query, obj.ID, obj.Label, obj.RA, obj.Dec, extra)

	created, err := scanObject(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil // conflict, row already exists
		}
		return nil, fmt.Errorf("insert object: %w", err)
	}
	return created, nil
}

// Get retrieves an object by ID. Returns ErrNotFound if it does not exist.
func (s *ObjectStore) Get(ctx context.Context, id string) (*domain.TrackedObject, error) {
	query := `SELECT ` + objectColumns + ` FROM objects WHERE id = $1`

	obj, err := scanObject(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	return obj, nil
}

// List retrieves all objects ordered by ID.
func (s *ObjectStore) List(ctx context.Context) ([]*domain.TrackedObject, error) {
	query := `SELECT ` + objectColumns + ` FROM objects ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	defer rows.Close()

	var objects []*domain.TrackedObject
	for rows.Next() {
		obj, err := scanObject(rows)
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

// Delete removes an object according to the deletion policy. Everything
// happens in a single transaction so a cancelled call commits nothing.
func (s *ObjectStore) Delete(ctx context.Context, id string, policy domain.DeletionPolicy) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if policy == domain.DeleteCascade {
		if _, err := tx.Exec(ctx, `DELETE FROM observations WHERE object_id = $1`, id); err != nil {
			return fmt.Errorf("delete observations: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM objects WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyError(err) {
			// Restrict policy with observations still referencing the object.
			return storage.ErrIntegrity
		}
		return fmt.Errorf("delete object: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// rowScanner covers pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanObject scans one object row including the JSONB metadata column.
func scanObject(row rowScanner) (*domain.TrackedObject, error) {
	var obj domain.TrackedObject
	var extra []byte

	err := row.Scan(&obj.ID, &obj.Label, &obj.RA, &obj.Dec, &extra, &obj.CreatedAt)
	if err != nil {
		return nil, err
	}

	if len(extra) > 0 {
		var meta domain.ObjectMetadata
		if err := json.Unmarshal(extra, &meta); err != nil {
			return nil, fmt.Errorf("decode object metadata: %w", err)
		}
		obj.Extra = &meta
	}

	return &obj, nil
}

// marshalExtra encodes optional metadata for the JSONB column.
func marshalExtra(extra *domain.ObjectMetadata) ([]byte, error) {
	if extra == nil {
		return nil, nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("encode object metadata: %w", err)
	}
	return data, nil
}

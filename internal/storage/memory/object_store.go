package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"lightcurvedb/internal/domain"
	"lightcurvedb/internal/storage"
)

// ObjectStore is an in-memory implementation of storage.ObjectStore.
// Used by tests and by CLIs running with --use-memory.
type ObjectStore struct {
	mu      sync.RWMutex
	objects map[string]*domain.TrackedObject

	// observations is shared with the ObservationStore created alongside so
	// deletion policy checks see the same rows.
	observations *observationTable
}

// ObservationStore is an in-memory implementation of storage.ObservationStore.
type ObservationStore struct {
	observations *observationTable
	objects      *ObjectStore
}

// observationTable holds observations keyed per object, timestamp-indexed.
type observationTable struct {
	mu   sync.RWMutex
	rows map[string]map[float64]*domain.Observation
}

// NewStores creates a linked pair of in-memory stores sharing one dataset,
// so referential integrity between objects and observations holds the same
// way it does in the relational backends.
func NewStores() (*ObjectStore, *ObservationStore) {
	table := &observationTable{rows: make(map[string]map[float64]*domain.Observation)}
	objects := &ObjectStore{
		objects:      make(map[string]*domain.TrackedObject),
		observations: table,
	}
	return objects, &ObservationStore{observations: table, objects: objects}
}

// Compile-time interface checks.
var (
	_ storage.ObjectStore      = (*ObjectStore)(nil)
	_ storage.ObservationStore = (*ObservationStore)(nil)
)

// GetOrCreate inserts the object if its ID is new, otherwise returns the
// existing row unchanged.
func (s *ObjectStore) GetOrCreate(_ context.Context, obj *domain.TrackedObject) (*domain.TrackedObject, error) {
	if obj == nil || obj.ID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.objects[obj.ID]; ok {
		cp := *existing
		return &cp, nil
	}

	cp := *obj
	cp.CreatedAt = time.Now().UnixMilli()
	s.objects[obj.ID] = &cp

	out := cp
	return &out, nil
}

// Get retrieves an object by ID. Returns ErrNotFound if it does not exist.
func (s *ObjectStore) Get(_ context.Context, id string) (*domain.TrackedObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *obj
	return &cp, nil
}

// List retrieves all objects ordered by ID.
func (s *ObjectStore) List(_ context.Context) ([]*domain.TrackedObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TrackedObject, 0, len(s.objects))
	for _, obj := range s.objects {
		cp := *obj
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Delete removes an object according to the deletion policy.
func (s *ObjectStore) Delete(_ context.Context, id string, policy domain.DeletionPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[id]; !ok {
		return storage.ErrNotFound
	}

	s.observations.mu.Lock()
	defer s.observations.mu.Unlock()

	if len(s.observations.rows[id]) > 0 {
		if policy != domain.DeleteCascade {
			return storage.ErrIntegrity
		}
		delete(s.observations.rows, id)
	}

	delete(s.objects, id)
	return nil
}

// exists reports whether an object ID is present, for use by the linked
// observation store.
func (s *ObjectStore) exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[id]
	return ok
}

package jobs

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/hyperjump/paaexplorer/internal/models"
)

// Store holds job records. Implementations must be safe for concurrent use.
type Store interface {
	Create(rec *models.JobRecord) error
	// Get returns a copy of the record.
	Get(id string) (*models.JobRecord, error)
	// Update applies fn to a copy of the record and stores the copy when fn
	// succeeds and the change is a legal transition with non-decreasing progress.
	Update(id string, fn func(*models.JobRecord) error) error
	Delete(id string) error
	List(filter Filter) []*models.JobRecord
	Len() int
}

// Filter selects records in List. Zero fields match everything.
type Filter struct {
	Owner string
	State models.JobState
	// Terminal restricts the listing to completed and failed jobs.
	Terminal bool
}

func (f Filter) match(r *models.JobRecord) bool {
	if f.Owner != "" && r.Owner != f.Owner {
		return false
	}
	if f.State != "" && r.State != f.State {
		return false
	}
	if f.Terminal && !r.State.Terminal() {
		return false
	}
	return true
}

const shardCount = 16

type entry struct {
	mu  sync.Mutex
	rec *models.JobRecord
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// MemoryStore is a sharded in-memory Store. Writers to one record serialize
// on that record only.
type MemoryStore struct {
	shards [shardCount]*shard
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	return s
}

func (s *MemoryStore) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[h.Sum32()%shardCount]
}

func (s *MemoryStore) entry(id string) (*entry, error) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	e, ok := sh.entries[id]
	sh.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

// Create stores a copy of rec.
func (s *MemoryStore) Create(rec *models.JobRecord) error {
	sh := s.shardFor(rec.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.entries[rec.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
	}
	sh.entries[rec.ID] = &entry{rec: rec.Clone()}
	return nil
}

// Get returns a copy of the record with the given id.
func (s *MemoryStore) Get(id string) (*models.JobRecord, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.Clone(), nil
}

// Update applies fn under the record's lock.
func (s *MemoryStore) Update(id string, fn func(*models.JobRecord) error) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.rec.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if !e.rec.State.CanTransition(next.State) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, e.rec.State, next.State)
	}
	if next.Progress < e.rec.Progress {
		return fmt.Errorf("%w: %.2f -> %.2f", ErrProgressRegression, e.rec.Progress, next.Progress)
	}
	next.ID = e.rec.ID
	e.rec = next
	return nil
}

// Delete removes the record.
func (s *MemoryStore) Delete(id string) error {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.entries[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(sh.entries, id)
	return nil
}

// List returns copies of matching records, oldest first.
func (s *MemoryStore) List(filter Filter) []*models.JobRecord {
	var out []*models.JobRecord
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, e := range sh.entries {
			e.mu.Lock()
			if filter.match(e.rec) {
				out = append(out, e.rec.Clone())
			}
			e.mu.Unlock()
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

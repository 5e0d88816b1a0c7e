// Package memory provides the in-process JobStore backend.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/minhvt/imagedit-be/internal/domain"
	"github.com/minhvt/imagedit-be/internal/storage"
)

type entry struct {
	job domain.Job
	seq uint64
}

// Store keeps job records in a mutex-guarded map. A monotonically increasing
// sequence number per insert breaks ordering ties between jobs created within
// the same timestamp granularity.
type Store struct {
	mu      sync.RWMutex
	jobs    map[string]entry
	nextSeq uint64
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]entry),
	}
}

func (s *Store) Create(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return nil, domain.ErrJobExists
	}

	s.nextSeq++
	s.jobs[job.ID] = entry{job: *job, seq: s.nextSeq}

	out := *job
	return &out, nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}

	out := e.job
	return &out, nil
}

func (s *Store) List(ctx context.Context) ([]domain.Job, error) {
	s.mu.RLock()
	entries := make([]entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	// Newest first; the insertion sequence decides between equal timestamps
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].job.CreatedAt.Equal(entries[j].job.CreatedAt) {
			return entries[i].job.CreatedAt.After(entries[j].job.CreatedAt)
		}
		return entries[i].seq > entries[j].seq
	})

	jobs := make([]domain.Job, len(entries))
	for i, e := range entries {
		jobs[i] = e.job
	}
	return jobs, nil
}

func (s *Store) Update(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[job.ID]
	if !ok {
		// Absent id: no-op, hand the record back untouched
		out := *job
		return &out, nil
	}

	e.job = *job
	s.jobs[job.ID] = e

	out := *job
	return &out, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return false, nil
	}
	delete(s.jobs, id)
	return true, nil
}

var _ storage.JobStore = (*Store)(nil)

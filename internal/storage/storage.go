// Package storage defines the contract every job store backend implements.
package storage

import (
	"context"

	"github.com/minhvt/imagedit-be/internal/domain"
)

// JobStore is a concurrency-safe keyed collection of job records. All
// implementations must serialize conflicting writes to the same record and
// must be safe to call from the lifecycle engine's background task and from
// request handlers at the same time.
type JobStore interface {
	// Create inserts a new job. Returns domain.ErrJobExists if the id is
	// already present.
	Create(ctx context.Context, job *domain.Job) (*domain.Job, error)

	// Get returns the job with the given id, or domain.ErrJobNotFound.
	Get(ctx context.Context, id string) (*domain.Job, error)

	// List returns all jobs ordered by creation time descending (newest
	// first), ties broken by insertion order. The returned slice is a
	// snapshot; concurrent mutations do not corrupt it.
	List(ctx context.Context) ([]domain.Job, error)

	// Update replaces the stored record. Updating an absent id is a silent
	// no-op that returns the input record unchanged.
	Update(ctx context.Context, job *domain.Job) (*domain.Job, error)

	// Delete removes the job if present and reports whether it did.
	Delete(ctx context.Context, id string) (bool, error)
}

package postgres

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvt/imagedit-be/internal/domain"
)

// newTestStore connects to the database named by TEST_DATABASE_DSN. Tests
// are skipped when the variable is unset so the suite stays runnable without
// a local PostgreSQL.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set, skipping postgres store tests")
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewStore(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, store.EnsureSchema(context.Background()))

	_, err = db.Exec("TRUNCATE TABLE jobs")
	require.NoError(t, err)

	return store
}

func testJob(id string, createdAt time.Time) *domain.Job {
	return &domain.Job{
		ID:            id,
		OriginalImage: "data:image/png;base64,aGVsbG8=",
		Prompt:        "add a hat",
		Status:        domain.StatusProcessing,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func TestStore_CreateGetDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, testJob("job-1", time.Now().UTC()))
	require.NoError(t, err)

	_, err = store.Create(ctx, testJob("job-1", time.Now().UTC()))
	assert.ErrorIs(t, err, domain.ErrJobExists)

	got, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, created.Prompt, got.Prompt)
	assert.Equal(t, domain.StatusProcessing, got.Status)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	deleted, err := store.Delete(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete(ctx, "job-1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestStore_UpdateLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.Create(ctx, testJob("job-1", time.Now().UTC()))
	require.NoError(t, err)

	job.Status = domain.StatusCompleted
	job.Progress = 100
	job.EditedImage = "https://cdn.example.com/edited.png"
	job.UpdatedAt = time.Now().UTC()

	_, err = store.Update(ctx, job)
	require.NoError(t, err)

	got, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, "https://cdn.example.com/edited.png", got.EditedImage)

	// Absent id: silent no-op per the store contract
	ghost := testJob("ghost", time.Now().UTC())
	returned, err := store.Update(ctx, ghost)
	require.NoError(t, err)
	assert.Equal(t, "ghost", returned.ID)

	_, err = store.Get(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestStore_ListNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 3; i++ {
		_, err := store.Create(ctx, testJob(fmt.Sprintf("job-%d", i), base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	jobs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	assert.Equal(t, "job-2", jobs[0].ID)
	assert.Equal(t, "job-1", jobs[1].ID)
	assert.Equal(t, "job-0", jobs[2].ID)
}

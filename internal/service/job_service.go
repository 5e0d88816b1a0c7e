// Package service implements the job lifecycle engine: submission, detached
// background editing, progress reporting, and terminal state transitions.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/minhvt/imagedit-be/internal/domain"
	"github.com/minhvt/imagedit-be/internal/imaging"
	"github.com/minhvt/imagedit-be/internal/provider"
	"github.com/minhvt/imagedit-be/internal/storage"
)

const (
	defaultProgressTick    = 500 * time.Millisecond
	defaultProgressStep    = 7
	defaultProgressCeiling = 90
)

// Options configures the job service
type Options struct {
	Store  storage.JobStore
	Editor provider.Editor
	Logger *slog.Logger

	// Synthetic progress settings, used while the remote call is
	// outstanding. Zero values fall back to defaults.
	ProgressTick    time.Duration
	ProgressStep    int
	ProgressCeiling int
}

// JobService drives a job from submission through background editing to a
// terminal state. Each submitted job is owned by exactly one background
// goroutine; request handlers only ever read.
type JobService struct {
	store  storage.JobStore
	editor provider.Editor
	logger *slog.Logger

	progressTick    time.Duration
	progressStep    int
	progressCeiling int

	wg sync.WaitGroup
}

// NewJobService creates a job service instance
func NewJobService(opts Options) (*JobService, error) {
	if opts.Store == nil {
		return nil, errors.New("store is nil")
	}
	if opts.Editor == nil {
		return nil, errors.New("editor is nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tick := opts.ProgressTick
	if tick <= 0 {
		tick = defaultProgressTick
	}
	step := opts.ProgressStep
	if step <= 0 {
		step = defaultProgressStep
	}
	ceiling := opts.ProgressCeiling
	if ceiling <= 0 || ceiling > 100 {
		ceiling = defaultProgressCeiling
	}

	return &JobService{
		store:           opts.Store,
		editor:          opts.Editor,
		logger:          logger,
		progressTick:    tick,
		progressStep:    step,
		progressCeiling: ceiling,
	}, nil
}

// Submit validates the request, persists a new job in processing state, and
// dispatches the editing work to a detached goroutine. It returns the created
// job immediately; callers must poll for completion.
func (s *JobService) Submit(ctx context.Context, image []byte, contentType, prompt string) (*domain.Job, error) {
	promptLen := utf8.RuneCountInString(prompt)
	if promptLen < domain.MinPromptLength {
		return nil, domain.NewValidationError("prompt", "must not be empty")
	}
	if promptLen > domain.MaxPromptLength {
		return nil, domain.NewValidationError("prompt",
			fmt.Sprintf("must be at most %d characters", domain.MaxPromptLength))
	}
	if len(image) == 0 {
		return nil, domain.NewValidationError("image", "payload is empty")
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:            uuid.New().String(),
		OriginalImage: imaging.EncodeDataURI(image, contentType),
		Prompt:        prompt,
		Status:        domain.StatusProcessing,
		Progress:      0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	created, err := s.store.Create(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("Job submitted",
		slog.String("job_id", created.ID),
		slog.Int("prompt_length", promptLen),
		slog.Int("image_bytes", len(image)),
	)

	s.wg.Add(1)
	go s.runEditing(created.ID)

	return created, nil
}

// Get returns the job with the given id
func (s *JobService) Get(ctx context.Context, id string) (*domain.Job, error) {
	return s.store.Get(ctx, id)
}

// List returns all jobs, newest first
func (s *JobService) List(ctx context.Context) ([]domain.Job, error) {
	return s.store.List(ctx)
}

// Delete removes the job and reports whether it existed
func (s *JobService) Delete(ctx context.Context, id string) (bool, error) {
	return s.store.Delete(ctx, id)
}

// Wait blocks until all dispatched background tasks have finished. Used
// during shutdown and in tests.
func (s *JobService) Wait() {
	s.wg.Wait()
}

// runEditing executes the editing work for one job. It runs detached from
// the request that created the job; failures are recorded on the job record
// and never propagate to a caller.
func (s *JobService) runEditing(id string) {
	defer s.wg.Done()

	// The originating request is long gone; background work gets its own
	// context.
	ctx := context.Background()

	job, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			// Deleted before the task got scheduled
			return
		}
		s.logger.Error("Failed to reload job for editing",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
		return
	}

	image, format, err := imaging.DecodeDataURI(job.OriginalImage)
	if err != nil {
		s.markFailed(ctx, id, fmt.Errorf("failed to decode image payload: %w", err))
		return
	}

	// Synthetic progress keeps pollers seeing forward motion while the
	// remote call is outstanding. It must be fully stopped before the
	// terminal state is written so no stale tick lands afterwards.
	done := make(chan struct{})
	var ticking sync.WaitGroup
	ticking.Add(1)
	go s.simulateProgress(ctx, id, done, &ticking)

	result, editErr := s.editor.Edit(ctx, provider.EditRequest{
		Image:  image,
		Prompt: job.Prompt,
		Format: format,
	}, func(percent int) {
		s.updateProgress(ctx, id, percent)
	})

	close(done)
	ticking.Wait()

	if editErr != nil {
		s.markFailed(ctx, id, editErr)
		return
	}
	if result == nil || result.ImageURL == "" {
		s.markFailed(ctx, id, errors.New("editing provider returned no image"))
		return
	}

	s.markCompleted(ctx, id, result)
}

// simulateProgress advances the job's progress in fixed steps up to the
// configured ceiling until done is closed
func (s *JobService) simulateProgress(ctx context.Context, id string, done <-chan struct{}, ticking *sync.WaitGroup) {
	defer ticking.Done()

	ticker := time.NewTicker(s.progressTick)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			job, err := s.store.Get(ctx, id)
			if err != nil || job.Status.IsTerminal() {
				return
			}
			next := job.Progress + s.progressStep
			if next > s.progressCeiling {
				next = s.progressCeiling
			}
			s.updateProgress(ctx, id, next)
		}
	}
}

// updateProgress persists a monotonic, clamped progress value. Store errors
// are logged and skipped; a failed progress write must not abort the edit.
func (s *JobService) updateProgress(ctx context.Context, id string, percent int) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return
	}
	if job.Status.IsTerminal() {
		return
	}

	percent = domain.ClampProgress(percent)
	if percent <= job.Progress {
		return
	}

	job.Progress = percent
	job.UpdatedAt = time.Now().UTC()
	if _, err := s.store.Update(ctx, job); err != nil {
		s.logger.Warn("Failed to persist progress update",
			slog.String("job_id", id),
			slog.Int("progress", percent),
			slog.String("error", err.Error()),
		)
	}
}

func (s *JobService) markCompleted(ctx context.Context, id string, result *provider.EditResult) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		// Deleted mid-flight; nothing left to finish
		return
	}
	if job.Status.IsTerminal() {
		return
	}

	job.Status = domain.StatusCompleted
	job.Progress = 100
	job.EditedImage = result.ImageURL
	job.ErrorMessage = ""
	job.UpdatedAt = time.Now().UTC()

	if _, err := s.store.Update(ctx, job); err != nil {
		s.logger.Error("Failed to persist completed job",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Info("Job completed",
		slog.String("job_id", id),
		slog.String("request_id", result.RequestID),
		slog.Int("width", result.Width),
		slog.Int("height", result.Height),
	)
}

func (s *JobService) markFailed(ctx context.Context, id string, cause error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return
	}
	if job.Status.IsTerminal() {
		return
	}

	message := cause.Error()
	if message == "" {
		message = "image editing failed"
	}

	job.Status = domain.StatusFailed
	job.ErrorMessage = message
	job.UpdatedAt = time.Now().UTC()

	if _, err := s.store.Update(ctx, job); err != nil {
		s.logger.Error("Failed to persist failed job",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Error("Job failed",
		slog.String("job_id", id),
		slog.String("error", message),
	)
}

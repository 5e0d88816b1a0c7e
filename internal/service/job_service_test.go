package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvt/imagedit-be/internal/domain"
	"github.com/minhvt/imagedit-be/internal/provider"
	"github.com/minhvt/imagedit-be/internal/storage/memory"
)

var testImage = []byte("\x89PNG\r\n\x1a\nfake image payload")

// fakeEditor is a scriptable Editor implementation for driving the engine
type fakeEditor struct {
	result   *provider.EditResult
	err      error
	progress []int
	block    chan struct{}

	mu    sync.Mutex
	calls int
}

func (f *fakeEditor) Edit(ctx context.Context, req provider.EditRequest, onProgress provider.ProgressFunc) (*provider.EditResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	for _, p := range f.progress {
		if onProgress != nil {
			onProgress(p)
		}
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeEditor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestService(t *testing.T, editor provider.Editor) (*JobService, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	svc, err := NewJobService(Options{
		Store:           store,
		Editor:          editor,
		ProgressTick:    5 * time.Millisecond,
		ProgressStep:    10,
		ProgressCeiling: 90,
	})
	require.NoError(t, err)
	return svc, store
}

func TestSubmit_ReturnsImmediatelyInProcessing(t *testing.T) {
	ctx := context.Background()
	editor := &fakeEditor{
		result: &provider.EditResult{ImageURL: "https://cdn.example.com/edited.png"},
		block:  make(chan struct{}),
	}
	svc, _ := newTestService(t, editor)

	job, err := svc.Submit(ctx, testImage, "image/png", "add a hat")
	require.NoError(t, err)

	// Returned before the editor resolved
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, domain.StatusProcessing, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.Empty(t, job.EditedImage)
	assert.Empty(t, job.ErrorMessage)
	assert.True(t, strings.HasPrefix(job.OriginalImage, "data:image/png;base64,"))

	close(editor.block)
	svc.Wait()

	got, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, "https://cdn.example.com/edited.png", got.EditedImage)
	assert.Empty(t, got.ErrorMessage)
}

func TestSubmit_Validation(t *testing.T) {
	tests := []struct {
		name    string
		image   []byte
		prompt  string
		wantErr bool
	}{
		{
			name:    "empty prompt",
			image:   testImage,
			prompt:  "",
			wantErr: true,
		},
		{
			name:    "prompt at max length",
			image:   testImage,
			prompt:  strings.Repeat("a", 1000),
			wantErr: false,
		},
		{
			name:    "prompt over max length",
			image:   testImage,
			prompt:  strings.Repeat("a", 1001),
			wantErr: true,
		},
		{
			name:    "multibyte runes counted as one",
			image:   testImage,
			prompt:  strings.Repeat("猫", 1000),
			wantErr: false,
		},
		{
			name:    "empty image payload",
			image:   nil,
			prompt:  "add a hat",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			editor := &fakeEditor{
				result: &provider.EditResult{ImageURL: "https://cdn.example.com/edited.png"},
			}
			svc, _ := newTestService(t, editor)

			job, err := svc.Submit(ctx, tt.image, "image/png", tt.prompt)

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, domain.IsValidation(err))
				assert.Nil(t, job)

				// Rejected submissions leave no record behind
				jobs, listErr := svc.List(ctx)
				require.NoError(t, listErr)
				assert.Empty(t, jobs)
			} else {
				require.NoError(t, err)
				require.NotNil(t, job)
			}
			svc.Wait()
		})
	}
}

func TestRunEditing_ProviderFailure(t *testing.T) {
	ctx := context.Background()
	editor := &fakeEditor{
		err: errors.New("connection reset by peer"),
	}
	svc, _ := newTestService(t, editor)

	job, err := svc.Submit(ctx, testImage, "image/png", "add a hat")
	require.NoError(t, err)

	svc.Wait()

	got, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "connection reset")
	assert.Empty(t, got.EditedImage)

	// Terminal state never regresses
	got, err = svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
}

func TestRunEditing_EmptyProviderResult(t *testing.T) {
	ctx := context.Background()
	editor := &fakeEditor{
		result: &provider.EditResult{},
	}
	svc, _ := newTestService(t, editor)

	job, err := svc.Submit(ctx, testImage, "image/png", "add a hat")
	require.NoError(t, err)

	svc.Wait()

	got, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.NotEmpty(t, got.ErrorMessage)
}

func TestRunEditing_UndecodableStoredPayload(t *testing.T) {
	ctx := context.Background()
	editor := &fakeEditor{
		result: &provider.EditResult{ImageURL: "https://cdn.example.com/edited.png"},
	}
	svc, store := newTestService(t, editor)

	// Corrupt the stored payload before the background task reloads it
	job, err := svc.Submit(ctx, testImage, "image/png", "add a hat")
	require.NoError(t, err)
	svc.Wait()

	stored, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	stored.Status = domain.StatusProcessing
	stored.OriginalImage = "data:image/png;base64,!!!corrupt!!!"
	_, err = store.Update(ctx, stored)
	require.NoError(t, err)

	svc.wg.Add(1)
	go svc.runEditing(job.ID)
	svc.Wait()

	got, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "decode")
}

func TestRunEditing_ProviderProgressPersisted(t *testing.T) {
	ctx := context.Background()
	editor := &fakeEditor{
		result:   &provider.EditResult{ImageURL: "https://cdn.example.com/edited.png"},
		progress: []int{30, 50, 70},
		block:    make(chan struct{}),
	}
	svc, _ := newTestService(t, editor)

	job, err := svc.Submit(ctx, testImage, "image/png", "add a hat")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := svc.Get(ctx, job.ID)
		return err == nil && got.Progress >= 70
	}, time.Second, 5*time.Millisecond)

	got, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, got.Status)

	close(editor.block)
	svc.Wait()
}

func TestRunEditing_SyntheticProgressAdvances(t *testing.T) {
	ctx := context.Background()
	editor := &fakeEditor{
		result: &provider.EditResult{ImageURL: "https://cdn.example.com/edited.png"},
		block:  make(chan struct{}),
	}
	svc, _ := newTestService(t, editor)

	job, err := svc.Submit(ctx, testImage, "image/png", "add a hat")
	require.NoError(t, err)

	// Forward motion with no provider signal at all
	require.Eventually(t, func() bool {
		got, err := svc.Get(ctx, job.ID)
		return err == nil && got.Progress > 0
	}, time.Second, 5*time.Millisecond)

	// The synthetic ticker respects its ceiling while processing
	require.Eventually(t, func() bool {
		got, err := svc.Get(ctx, job.ID)
		return err == nil && got.Progress == 90
	}, time.Second, 5*time.Millisecond)

	got, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, got.Status)

	close(editor.block)
	svc.Wait()

	got, err = svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
}

func TestRunEditing_JobDeletedMidFlight(t *testing.T) {
	ctx := context.Background()
	editor := &fakeEditor{
		result: &provider.EditResult{ImageURL: "https://cdn.example.com/edited.png"},
		block:  make(chan struct{}),
	}
	svc, _ := newTestService(t, editor)

	job, err := svc.Submit(ctx, testImage, "image/png", "add a hat")
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	close(editor.block)
	svc.Wait()

	// The background task must not resurrect the record
	_, err = svc.Get(ctx, job.ID)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestSubmit_ConcurrentJobsAreIsolated(t *testing.T) {
	ctx := context.Background()
	editorA := &fakeEditor{result: &provider.EditResult{ImageURL: "https://cdn.example.com/a.png"}}

	store := memory.NewStore()
	svc, err := NewJobService(Options{
		Store:        store,
		Editor:       editorA,
		ProgressTick: 5 * time.Millisecond,
	})
	require.NoError(t, err)

	jobA, err := svc.Submit(ctx, testImage, "image/png", "make it sunny")
	require.NoError(t, err)
	jobB, err := svc.Submit(ctx, testImage, "image/png", "make it rainy")
	require.NoError(t, err)

	assert.NotEqual(t, jobA.ID, jobB.ID)

	svc.Wait()
	assert.Equal(t, 2, editorA.callCount())

	gotA, err := svc.Get(ctx, jobA.ID)
	require.NoError(t, err)
	gotB, err := svc.Get(ctx, jobB.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, gotA.Status)
	assert.Equal(t, domain.StatusCompleted, gotB.Status)
	assert.Equal(t, "make it sunny", gotA.Prompt)
	assert.Equal(t, "make it rainy", gotB.Prompt)
}

func TestUpdateProgress_MonotonicAndClamped(t *testing.T) {
	ctx := context.Background()
	editor := &fakeEditor{result: &provider.EditResult{ImageURL: "https://cdn.example.com/a.png"}}
	svc, store := newTestService(t, editor)

	now := time.Now().UTC()
	_, err := store.Create(ctx, &domain.Job{
		ID:            "job-1",
		OriginalImage: "data:image/png;base64,aGVsbG8=",
		Prompt:        "p",
		Status:        domain.StatusProcessing,
		Progress:      40,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	require.NoError(t, err)

	// Lower value ignored
	svc.updateProgress(ctx, "job-1", 20)
	got, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 40, got.Progress)

	// Higher value persisted
	svc.updateProgress(ctx, "job-1", 55)
	got, err = store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 55, got.Progress)

	// Out-of-range value clamped
	svc.updateProgress(ctx, "job-1", 250)
	got, err = store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress)

	// Terminal records are frozen
	got.Status = domain.StatusFailed
	got.ErrorMessage = "boom"
	got.Progress = 55
	_, err = store.Update(ctx, got)
	require.NoError(t, err)

	svc.updateProgress(ctx, "job-1", 80)
	got, err = store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 55, got.Progress)
	assert.Equal(t, domain.StatusFailed, got.Status)
}

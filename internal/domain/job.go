package domain

import "time"

// Status represents the lifecycle state of an image editing job
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the status permits no further transitions
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

const (
	// MinPromptLength is the minimum prompt length in runes
	MinPromptLength = 1
	// MaxPromptLength is the maximum prompt length in runes
	MaxPromptLength = 1000
)

// Job represents one image editing request and its tracked outcome.
// After creation a job is mutated only by the background task that owns it;
// readers receive copies and never write back.
type Job struct {
	ID            string    `db:"id"`
	OriginalImage string    `db:"original_image"`
	EditedImage   string    `db:"edited_image"`
	Prompt        string    `db:"prompt"`
	Status        Status    `db:"status"`
	Progress      int       `db:"progress"`
	ErrorMessage  string    `db:"error_message"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// ClampProgress bounds a progress value to the valid [0,100] range
func ClampProgress(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

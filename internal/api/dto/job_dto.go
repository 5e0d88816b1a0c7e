package dto

import (
	"time"

	"github.com/minhvt/imagedit-be/internal/domain"
)

// JobResponse is the externally visible shape of a job record
type JobResponse struct {
	ID               string `json:"id"`
	OriginalImageURL string `json:"original_image_url"`
	EditedImageURL   string `json:"edited_image_url,omitempty"`
	Prompt           string `json:"prompt"`
	Status           string `json:"status"`
	Progress         int    `json:"progress"`
	ErrorMessage     string `json:"error_message,omitempty"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

// FromJob maps an internal job record to its response shape
func FromJob(job *domain.Job) JobResponse {
	return JobResponse{
		ID:               job.ID,
		OriginalImageURL: job.OriginalImage,
		EditedImageURL:   job.EditedImage,
		Prompt:           job.Prompt,
		Status:           string(job.Status),
		Progress:         job.Progress,
		ErrorMessage:     job.ErrorMessage,
		CreatedAt:        job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        job.UpdatedAt.Format(time.RFC3339),
	}
}

// FromJobs maps a list of job records, preserving order
func FromJobs(jobs []domain.Job) []JobResponse {
	out := make([]JobResponse, len(jobs))
	for i := range jobs {
		out[i] = FromJob(&jobs[i])
	}
	return out
}

package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/minhvt/imagedit-be/internal/api/dto"
	"github.com/minhvt/imagedit-be/internal/domain"
)

// CreateJob handles POST /api/v1/jobs
// Accepts a multipart form with an image file and a prompt, creates the job,
// and returns immediately while editing continues in the background
func (h *JobHandler) CreateJob(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "image file is required",
		})
		return
	}

	prompt := c.PostForm("prompt")

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded image", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unable to read image file",
		})
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Failed to read uploaded image", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unable to read image file",
		})
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")

	job, err := h.service.Submit(c.Request.Context(), image, contentType, prompt)
	if err != nil {
		if domain.IsValidation(err) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to create job",
		})
		return
	}

	h.logger.Info("Job created",
		slog.String("job_id", job.ID),
		slog.String("content_type", contentType),
	)

	c.JSON(http.StatusCreated, dto.FromJob(job))
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.service.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": fmt.Sprintf("job %s not found", jobID),
			})
			return
		}
		h.logger.Error("Failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// ListJobs handles GET /api/v1/jobs
// Returns every job, newest first
func (h *JobHandler) ListJobs(c *gin.Context) {
	jobs, err := h.service.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to list jobs",
		})
		return
	}

	c.JSON(http.StatusOK, dto.FromJobs(jobs))
}

// DeleteJob handles DELETE /api/v1/jobs/:job_id
func (h *JobHandler) DeleteJob(c *gin.Context) {
	jobID := c.Param("job_id")

	deleted, err := h.service.Delete(c.Request.Context(), jobID)
	if err != nil {
		h.logger.Error("Failed to delete job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to delete job",
		})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{
			"error": fmt.Sprintf("job %s not found", jobID),
		})
		return
	}

	h.logger.Info("Job deleted", slog.String("job_id", jobID))

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("job %s deleted", jobID),
	})
}

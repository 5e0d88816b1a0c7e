// Package seedream implements the Editor contract against the hosted
// Seedream v4 image edit API.
package seedream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/minhvt/imagedit-be/internal/imaging"
	"github.com/minhvt/imagedit-be/internal/provider"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("seedream: api key is required")

const (
	defaultBaseURL      = "https://queue.fal.run"
	defaultModel        = "fal-ai/bytedance/seedream/v4/edit"
	defaultPollInterval = 2 * time.Second
	defaultTimeout      = 3 * time.Minute
)

// Options configures the Seedream client
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *slog.Logger
	PollInterval   time.Duration
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Seedream queue API: submit, poll status,
// fetch result.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	httpClient   *http.Client
	logger       *slog.Logger
	pollInterval time.Duration
	timeout      time.Duration
}

type editRequest struct {
	Prompt              string   `json:"prompt"`
	ImageURLs           []string `json:"image_urls"`
	NumImages           int      `json:"num_images"`
	EnableSafetyChecker bool     `json:"enable_safety_checker"`
}

type queuedResponse struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type statusResponse struct {
	Status string `json:"status"`
	Logs   []struct {
		Message string `json:"message"`
	} `json:"logs"`
}

type resultResponse struct {
	Images []struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"images"`
}

type errorResponse struct {
	Detail any `json:"detail"`
}

// NewClient constructs a client with sane defaults
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		apiKey:       opts.APIKey,
		baseURL:      baseURL,
		model:        model,
		httpClient:   httpClient,
		logger:       log,
		pollInterval: pollInterval,
		timeout:      timeout,
	}, nil
}

// Edit submits the image and prompt to the queue, polls until the remote job
// resolves, and fetches the normalized result. Coarse progress is estimated
// from the remote log stream and reported through onProgress.
func (c *Client) Edit(ctx context.Context, req provider.EditRequest, onProgress provider.ProgressFunc) (*provider.EditResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	imageURI := imaging.EncodeDataURI(req.Image, "image/"+req.Format)

	queued, err := c.submit(ctx, editRequest{
		Prompt:              req.Prompt,
		ImageURLs:           []string{imageURI},
		NumImages:           1,
		EnableSafetyChecker: true,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Edit request queued",
		slog.String("request_id", queued.RequestID),
	)

	report(onProgress, 10)

	if err := c.waitForCompletion(ctx, queued, onProgress); err != nil {
		return nil, err
	}

	result, err := c.fetchResult(ctx, queued)
	if err != nil {
		return nil, err
	}

	if len(result.Images) == 0 {
		return nil, fmt.Errorf("seedream: response contained no images (request %s)", queued.RequestID)
	}
	first := result.Images[0]
	if first.URL == "" {
		return nil, fmt.Errorf("seedream: response image has no url (request %s)", queued.RequestID)
	}

	return &provider.EditResult{
		ImageURL:  first.URL,
		Width:     first.Width,
		Height:    first.Height,
		RequestID: queued.RequestID,
	}, nil
}

func (c *Client) submit(ctx context.Context, body editRequest) (*queuedResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("seedream: failed to encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("seedream: failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var queued queuedResponse
	if err := c.do(httpReq, &queued); err != nil {
		return nil, err
	}
	if queued.StatusURL == "" || queued.ResponseURL == "" {
		return nil, fmt.Errorf("seedream: queue response missing status or response url")
	}
	return &queued, nil
}

func (c *Client) waitForCompletion(ctx context.Context, queued *queuedResponse, onProgress provider.ProgressFunc) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.fetchStatus(ctx, queued)
		if err != nil {
			return err
		}

		for _, entry := range status.Logs {
			report(onProgress, estimateFromLog(entry.Message))
		}

		switch status.Status {
		case "COMPLETED":
			return nil
		case "IN_QUEUE", "IN_PROGRESS":
		default:
			return fmt.Errorf("seedream: request %s ended with status %q", queued.RequestID, status.Status)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("seedream: wait for request %s: %w", queued.RequestID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) fetchStatus(ctx context.Context, queued *queuedResponse) (*statusResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, queued.StatusURL+"?logs=1", nil)
	if err != nil {
		return nil, fmt.Errorf("seedream: failed to build status request: %w", err)
	}

	var status statusResponse
	if err := c.do(httpReq, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) fetchResult(ctx context.Context, queued *queuedResponse) (*resultResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, queued.ResponseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("seedream: failed to build result request: %w", err)
	}

	var result resultResponse
	if err := c.do(httpReq, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Key "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("seedream: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("seedream: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Detail != nil {
			return fmt.Errorf("seedream: api error (status %d): %v", resp.StatusCode, apiErr.Detail)
		}
		return fmt.Errorf("seedream: unexpected status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("seedream: failed to decode response: %w", err)
	}
	return nil
}

// estimateFromLog maps remote log lines onto coarse progress milestones
func estimateFromLog(message string) int {
	switch {
	case strings.Contains(message, "Downloading"):
		return 30
	case strings.Contains(message, "Processing"):
		return 50
	case strings.Contains(message, "Generating"):
		return 70
	default:
		return 0
	}
}

func report(onProgress provider.ProgressFunc, percent int) {
	if onProgress != nil && percent > 0 {
		onProgress(percent)
	}
}

var _ provider.Editor = (*Client)(nil)

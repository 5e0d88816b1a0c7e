// Package provider defines the contract for the external image editing
// service.
package provider

import "context"

// ProgressFunc receives progress estimates in percent while an edit is
// outstanding. Implementations may call it zero or more times before Edit
// returns; values outside [0,100] are clamped by the receiver.
type ProgressFunc func(percent int)

// EditRequest carries the inputs for one image edit
type EditRequest struct {
	Image  []byte
	Prompt string
	Format string
}

// EditResult is the normalized response from an editing provider. ImageURL
// is always non-empty on success; dimensions are optional metadata.
type EditResult struct {
	ImageURL  string
	Width     int
	Height    int
	RequestID string
}

// Editor performs the actual image transformation. Edit blocks until the
// remote service resolves, reporting coarse progress through onProgress
// when a signal is available.
type Editor interface {
	Edit(ctx context.Context, req EditRequest, onProgress ProgressFunc) (*EditResult, error)
}

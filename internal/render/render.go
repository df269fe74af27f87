// Package render talks to the remote video-rendering service. A Backend
// submits and polls render jobs, an Uploader moves local sources to a
// publicly reachable URL, and every failure is normalized into *APIError.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/heimdex/clipdiary/internal/logging"
)

// Status is the normalized state of a render job across backends.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRendering Status = "rendering"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether polling can stop.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// ErrUnknownStatus is returned when a backend reports a state we cannot map.
var ErrUnknownStatus = errors.New("unknown render status")

// NormalizeStatus maps every backend vocabulary onto Status.
func NormalizeStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "succeeded", "done":
		return StatusSucceeded, nil
	case "failed":
		return StatusFailed, nil
	case "rendering", "transcribing", "fetching", "saving":
		return StatusRendering, nil
	case "queued", "planned", "waiting":
		return StatusQueued, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
}

// JobStatus is the result of a single status check.
type JobStatus struct {
	ID        string `json:"id"`
	Status    Status `json:"status"`
	OutputURL string `json:"url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Backend is one remote rendering service.
type Backend interface {
	Name() string
	// SubmitRender asks for the segment [start, start+duration) of sourceURL
	// and returns the backend's job id.
	SubmitRender(ctx context.Context, sourceURL string, start, duration float64) (string, error)
	// PollStatus performs exactly one status request.
	PollStatus(ctx context.Context, jobID string) (*JobStatus, error)
	Authorizer
}

// Uploader transfers a local file and returns the URL the render backend
// should fetch it from, exactly as the storage side reported it.
type Uploader interface {
	UploadSource(ctx context.Context, localPath string) (string, error)
}

// Client is the stateless façade the crop orchestrator drives. It never
// loops; retry and polling policy belong to the caller.
type Client struct {
	backend    Backend
	uploader   Uploader
	downloader *Downloader
	logger     *slog.Logger
}

func NewClient(backend Backend, uploader Uploader, downloader *Downloader, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{
		backend:    backend,
		uploader:   uploader,
		downloader: downloader,
		logger:     logging.WithComponent(logger, "render"),
	}
}

func (c *Client) Backend() string {
	return c.backend.Name()
}

func (c *Client) UploadSource(ctx context.Context, localPath string) (string, error) {
	if c.uploader == nil {
		return "", &APIError{Message: "no uploader configured"}
	}
	url, err := c.uploader.UploadSource(ctx, localPath)
	if err != nil {
		return "", err
	}
	c.logger.Info("source uploaded", "path", logging.SanitizePath(localPath), "url", logging.SanitizeURL(url))
	return url, nil
}

func (c *Client) SubmitRender(ctx context.Context, sourceURL string, start, duration float64) (string, error) {
	id, err := c.backend.SubmitRender(ctx, sourceURL, start, duration)
	if err != nil {
		return "", err
	}
	c.logger.Info("render submitted", "backend", c.backend.Name(), "render_id", id,
		"trim_start", start, "trim_duration", duration)
	return id, nil
}

func (c *Client) PollStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	st, err := c.backend.PollStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("render status", "render_id", jobID, "status", st.Status)
	return st, nil
}

// Download fetches url into destPath and returns the byte count.
func (c *Client) Download(ctx context.Context, url, destPath string) (int64, error) {
	return c.downloader.Download(ctx, url, destPath)
}

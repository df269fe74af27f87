package render

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/heimdex/clipdiary/internal/config"
)

// NewFromConfig selects the backend and upload strategy named in cfg.
func NewFromConfig(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Client, error) {
	hc := NewHTTPClient()

	var backend Backend
	switch cfg.RenderBackend() {
	case config.BackendCreatomate:
		backend = NewCreatomate(cfg.RenderBaseURL(), cfg.RenderAPIKey(), hc)
	case config.BackendShotstack:
		backend = NewShotstack(cfg.RenderBaseURL(), cfg.RenderAPIKey(), hc)
	default:
		return nil, fmt.Errorf("unknown render backend %q", cfg.RenderBackend())
	}

	var uploader Uploader
	switch cfg.UploadStrategy() {
	case config.UploadObjectStore:
		u, err := NewObjectStoreUploader(cfg.Minio(), logger)
		if err != nil {
			return nil, err
		}
		if err := u.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		uploader = u
	default:
		uploader = NewDirectUploader(cfg.RenderIngestURL(), backend, hc)
	}

	return NewClient(backend, uploader, NewDownloader(hc), logger), nil
}

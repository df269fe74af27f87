// Package crop turns a selected window of a diary video into a new, shorter
// diary video rendered by a remote backend.
package crop

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/heimdex/clipdiary/internal/diary"
	"github.com/heimdex/clipdiary/internal/events"
	"github.com/heimdex/clipdiary/internal/logging"
	"github.com/heimdex/clipdiary/internal/pipeline"
	"github.com/heimdex/clipdiary/internal/render"
)

const (
	// MinOutputBytes is the size floor below which a download is corrupt.
	MinOutputBytes = 1000
	// VerifyAttempts bounds the playability probe.
	VerifyAttempts = 3
	// TrimTolerance is how far past the requested length the rendered file
	// may run before it is trimmed locally.
	TrimTolerance = 0.5

	CropsDir = "crops"
	TempDir  = "temp"
)

// Renderer is the remote render surface. *render.Client implements it.
type Renderer interface {
	UploadSource(ctx context.Context, localPath string) (string, error)
	SubmitRender(ctx context.Context, sourceURL string, start, duration float64) (string, error)
	PollStatus(ctx context.Context, jobID string) (*render.JobStatus, error)
	Download(ctx context.Context, url, destPath string) (int64, error)
}

// VideoSink persists the cropped video. *diary.Service implements it, which
// keeps the list cache coherent.
type VideoSink interface {
	AddVideo(ctx context.Context, v *diary.Video) error
	Thumbnail(ctx context.Context, uri string) (string, error)
}

// Request is one crop of Source between StartTime and EndTime seconds.
type Request struct {
	ID        string
	Source    *diary.Video
	StartTime float64
	EndTime   float64
}

// Options tunes polling and retry behaviour.
type Options struct {
	PollInterval    time.Duration
	PollMaxAttempts int
	// TransferRetries is the number of extra upload and download attempts.
	TransferRetries int
	// RetryBackoff is multiplied by the attempt number between retries.
	RetryBackoff time.Duration
}

// DefaultOptions matches the configuration defaults.
var DefaultOptions = Options{
	PollInterval:    2 * time.Second,
	PollMaxAttempts: 30,
	TransferRetries: 2,
	RetryBackoff:    time.Second,
}

// Orchestrator runs the crop state machine. It holds no per-crop state, so
// crops of different sources run in parallel on one orchestrator.
type Orchestrator struct {
	renderer     Renderer
	ffmpeg       pipeline.FFmpeg
	sink         VideoSink
	publisher    events.Publisher
	documentsDir string
	opts         Options
	logger       *slog.Logger

	// OnCropStart fires after validation, before any transfer begins.
	OnCropStart func(req Request)
	// OnStage fires as each stage begins.
	OnStage func(req Request, stage Stage)

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(renderer Renderer, ffmpeg pipeline.FFmpeg, sink VideoSink, publisher events.Publisher, documentsDir string, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Discard()
	}
	if publisher == nil {
		publisher = events.NewLogPublisher(logger)
	}
	if opts.PollMaxAttempts < 1 {
		opts.PollMaxAttempts = 1
	}
	if opts.TransferRetries < 0 {
		opts.TransferRetries = 0
	}
	return &Orchestrator{
		renderer:     renderer,
		ffmpeg:       ffmpeg,
		sink:         sink,
		publisher:    publisher,
		documentsDir: documentsDir,
		opts:         opts,
		logger:       logging.WithComponent(logger, "crop"),
		now:          time.Now,
		sleep:        sleepContext,
	}
}

// Run executes every stage in order and returns the persisted cropped video.
// On failure from the download onward the output file is removed, except
// when only the final database write failed. The scratch directory is
// always removed.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*diary.Video, error) {
	if req.ID == "" {
		req.ID = diary.NewID()
	}
	logger := logging.WithCropID(o.logger, req.ID)

	video, err := o.run(ctx, req, logger)
	if err != nil {
		var ce *Error
		if !errors.As(err, &ce) {
			ce = fail(KindRenderFailed, StageRendering, err)
			err = ce
		}
		logger.Error("crop failed", "stage", ce.Stage, "kind", ce.Kind, "error", ce.Err)
		o.publish(ctx, logger, events.Event{
			Type:     events.TypeCropFailed,
			CropID:   req.ID,
			SourceID: sourceID(req),
			Stage:    string(ce.Stage),
			Kind:     string(ce.Kind),
			Error:    ce.Err.Error(),
		})
		return nil, err
	}

	logger.Info("crop completed", "video_id", video.ID, "output", logging.SanitizePath(video.URI))
	o.publish(ctx, logger, events.Event{
		Type:     events.TypeCropCompleted,
		CropID:   req.ID,
		SourceID: sourceID(req),
		VideoID:  video.ID,
	})
	return video, nil
}

func (o *Orchestrator) run(ctx context.Context, req Request, logger *slog.Logger) (*diary.Video, error) {
	o.stage(ctx, req, logger, StageValidating)
	cfg, err := validate(req)
	if err != nil {
		return nil, err
	}

	if o.OnCropStart != nil {
		o.OnCropStart(req)
	}
	o.publish(ctx, logger, events.Event{Type: events.TypeCropStarted, CropID: req.ID, SourceID: req.Source.ID})

	scratch := filepath.Join(o.documentsDir, TempDir, "crop_"+req.ID)
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return nil, fail(KindDownloadVerificationFailed, StageValidating, fmt.Errorf("create scratch directory: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.Warn("failed to remove scratch directory", "path", logging.SanitizePath(scratch), "error", err)
		}
	}()

	sourceURL := req.Source.URI
	if !diary.IsRemote(sourceURL) {
		o.stage(ctx, req, logger, StageUploading)
		err := o.withRetries(ctx, logger, StageUploading, func() error {
			var uerr error
			sourceURL, uerr = o.renderer.UploadSource(ctx, diary.LocalPath(req.Source.URI))
			return uerr
		})
		if err != nil {
			return nil, fail(KindUploadFailed, StageUploading, err)
		}
	}

	o.stage(ctx, req, logger, StageRendering)
	renderID, err := o.renderer.SubmitRender(ctx, sourceURL, cfg.StartTime, cfg.Duration)
	if err != nil {
		return nil, fail(KindRenderFailed, StageRendering, err)
	}

	o.stage(ctx, req, logger, StagePolling)
	outputURL, err := o.poll(ctx, logger, renderID)
	if err != nil {
		return nil, err
	}

	o.stage(ctx, req, logger, StageDownloading)
	output, err := o.reserveOutput()
	if err != nil {
		return nil, fail(KindDownloadVerificationFailed, StageDownloading, err)
	}

	keepOutput := false
	defer func() {
		if keepOutput {
			return
		}
		if err := os.Remove(output); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("failed to remove partial output", "path", logging.SanitizePath(output), "error", err)
		}
		if err := os.Remove(diary.SidecarPath(output)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("failed to remove partial metadata", "error", err)
		}
	}()

	err = o.withRetries(ctx, logger, StageDownloading, func() error {
		_, derr := o.renderer.Download(ctx, outputURL, output)
		return derr
	})
	if err != nil {
		return nil, fail(KindDownloadVerificationFailed, StageDownloading, err)
	}

	o.stage(ctx, req, logger, StageVerifying)
	if err := o.verify(ctx, logger, output, scratch); err != nil {
		return nil, err
	}

	o.stage(ctx, req, logger, StageTrimming)
	if err := o.trimToLength(ctx, logger, output, scratch, cfg.Duration); err != nil {
		return nil, fail(KindDownloadVerificationFailed, StageTrimming, err)
	}

	o.stage(ctx, req, logger, StageMetadata)
	meta := diary.VideoMetadata{
		OriginalURI: req.Source.URI,
		StartTime:   cfg.StartTime,
		EndTime:     cfg.EndTime,
		Duration:    cfg.Duration,
		CreatedAt:   o.now().UnixMilli(),
	}
	if _, err := diary.WriteSidecar(output, meta); err != nil {
		return nil, fail(KindDownloadVerificationFailed, StageMetadata, err)
	}

	o.stage(ctx, req, logger, StageMaterializing)
	cfg.OutputURI = output
	video := &diary.Video{
		ID:          diary.NewID(),
		URI:         output,
		Title:       req.Source.Title + diary.CroppedTitleSuffix,
		Description: "Cropped from " + req.Source.Title,
		CreatedAt:   meta.CreatedAt,
		Duration:    int(math.Round(cfg.Duration)),
		Thumbnail:   o.thumbnail(ctx, logger, output, req.Source.Thumbnail),
		CropConfig:  &cfg,
	}
	if err := o.sink.AddVideo(ctx, video); err != nil {
		// The verified artifact and its sidecar stay on disk.
		keepOutput = true
		logger.Warn("crop artifact left without a video record", "path", logging.SanitizePath(output))
		return nil, fail(KindPersistenceFailed, StageMaterializing, err)
	}
	keepOutput = true
	return video, nil
}

func validate(req Request) (diary.CropConfig, error) {
	if req.Source == nil {
		return diary.CropConfig{}, fail(KindInvalidInput, StageValidating, fmt.Errorf("%w: no source video", diary.ErrInvalidInput))
	}
	cfg := diary.CropConfig{
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Duration:  req.EndTime - req.StartTime,
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fail(KindInvalidInput, StageValidating, err)
	}
	if d := float64(req.Source.Duration); d > 0 && cfg.StartTime >= d {
		return cfg, fail(KindInvalidInput, StageValidating,
			fmt.Errorf("%w: start %.2fs is past the end of a %.0fs video", diary.ErrInvalidInput, cfg.StartTime, d))
	}
	if diary.IsRemote(req.Source.URI) {
		return cfg, nil
	}
	info, err := os.Stat(diary.LocalPath(req.Source.URI))
	switch {
	case errors.Is(err, fs.ErrPermission):
		return cfg, fail(KindPermissionDenied, StageValidating, err)
	case err != nil:
		return cfg, fail(KindInvalidInput, StageValidating, fmt.Errorf("%w: source file does not exist", diary.ErrInvalidInput))
	case info.IsDir():
		return cfg, fail(KindInvalidInput, StageValidating, fmt.Errorf("%w: source is a directory", diary.ErrInvalidInput))
	}
	return cfg, nil
}

// poll checks the render status up to PollMaxAttempts times, sleeping
// PollInterval between checks. A retryable status error costs one attempt.
func (o *Orchestrator) poll(ctx context.Context, logger *slog.Logger, renderID string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= o.opts.PollMaxAttempts; attempt++ {
		st, err := o.renderer.PollStatus(ctx, renderID)
		switch {
		case err != nil && !render.IsRetryable(err):
			return "", fail(KindRenderFailed, StagePolling, err)
		case err != nil:
			lastErr = err
			logger.Warn("render status check failed", "attempt", attempt, "error", err)
		case st.Status == render.StatusSucceeded:
			logger.Info("render succeeded", "render_id", renderID, "attempts", attempt)
			return st.OutputURL, nil
		case st.Status == render.StatusFailed:
			msg := st.Error
			if msg == "" {
				msg = "render failed"
			}
			return "", fail(KindRenderFailed, StagePolling, errors.New(msg))
		}

		if attempt == o.opts.PollMaxAttempts {
			break
		}
		if err := o.sleep(ctx, o.opts.PollInterval); err != nil {
			// Cancellation is not the backend running out of time.
			return "", fail(KindRenderFailed, StagePolling, err)
		}
	}

	err := fmt.Errorf("%w after %d attempts", ErrTimeout, o.opts.PollMaxAttempts)
	if lastErr != nil {
		err = fmt.Errorf("%w (last error: %v)", err, lastErr)
	}
	return "", fail(KindRenderTimeout, StagePolling, err)
}

// verify checks the size floor once and then probes for a frame, retrying
// only the probe.
func (o *Orchestrator) verify(ctx context.Context, logger *slog.Logger, output, scratch string) error {
	info, err := os.Stat(output)
	if err != nil {
		return fail(KindDownloadVerificationFailed, StageVerifying, fmt.Errorf("%w: %v", ErrTooSmall, err))
	}
	if info.Size() < MinOutputBytes {
		return fail(KindDownloadVerificationFailed, StageVerifying,
			fmt.Errorf("%w: %d bytes", ErrTooSmall, info.Size()))
	}

	if pipeline.IsStub(o.ffmpeg) {
		logger.Warn("ffmpeg unavailable, output playability not checked", "bytes", info.Size())
	}

	probe := filepath.Join(scratch, "probe.jpg")
	var probeErr error
	for attempt := 1; attempt <= VerifyAttempts; attempt++ {
		probeErr = o.ffmpeg.GenerateThumbnail(ctx, output, probe, 0)
		if probeErr == nil {
			_ = os.Remove(probe)
			return nil
		}
		logger.Warn("playability probe failed", "attempt", attempt, "error", probeErr)
		if attempt == VerifyAttempts {
			break
		}
		if err := o.sleep(ctx, time.Duration(attempt)*o.opts.RetryBackoff); err != nil {
			probeErr = err
			break
		}
	}
	return fail(KindDownloadVerificationFailed, StageVerifying, fmt.Errorf("%w: %v", ErrUnplayable, probeErr))
}

// trimToLength cuts the file down when the backend returned more than was
// asked for. An unreadable duration leaves the file as rendered.
func (o *Orchestrator) trimToLength(ctx context.Context, logger *slog.Logger, output, scratch string, duration float64) error {
	if pipeline.IsStub(o.ffmpeg) {
		logger.Warn("ffmpeg unavailable, output length not checked or trimmed", "requested", duration)
		return nil
	}
	probe, err := o.ffmpeg.Probe(ctx, output)
	if err != nil {
		logger.Warn("could not probe output duration", "error", err)
		return nil
	}
	if probe.Duration <= duration+TrimTolerance {
		return nil
	}

	logger.Info("trimming output", "rendered", probe.Duration, "requested", duration)
	trimmed := filepath.Join(scratch, "trimmed"+filepath.Ext(output))
	if err := o.ffmpeg.Trim(ctx, output, trimmed, duration); err != nil {
		return err
	}
	if err := os.Rename(trimmed, output); err != nil {
		return fmt.Errorf("replace output with trimmed file: %w", err)
	}
	return nil
}

func (o *Orchestrator) thumbnail(ctx context.Context, logger *slog.Logger, output, inherited string) string {
	thumb, err := o.sink.Thumbnail(ctx, output)
	if err != nil {
		logger.Warn("falling back to source thumbnail", "error", err)
		return inherited
	}
	return thumb
}

// reserveOutput claims crops/crop_<unix ms>.mp4, adding a counter if two
// crops land in the same millisecond.
func (o *Orchestrator) reserveOutput() (string, error) {
	dir := filepath.Join(o.documentsDir, CropsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create crops directory: %w", err)
	}
	base := "crop_" + strconv.FormatInt(o.now().UnixMilli(), 10)
	for n := 0; n < 100; n++ {
		name := base
		if n > 0 {
			name += "_" + strconv.Itoa(n)
		}
		path := filepath.Join(dir, name+".mp4")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create output file: %w", err)
		}
		f.Close()
		return path, nil
	}
	return "", fmt.Errorf("no free output name for %s", base)
}

// withRetries runs fn once plus TransferRetries more times while it fails
// with a retryable render error, backing off linearly.
func (o *Orchestrator) withRetries(ctx context.Context, logger *slog.Logger, stage Stage, fn func() error) error {
	var err error
	for attempt := 0; attempt <= o.opts.TransferRetries; attempt++ {
		if attempt > 0 {
			logger.Warn("retrying transfer", "stage", stage, "attempt", attempt, "error", err)
			if serr := o.sleep(ctx, time.Duration(attempt)*o.opts.RetryBackoff); serr != nil {
				return serr
			}
		}
		if err = fn(); err == nil || !render.IsRetryable(err) {
			return err
		}
	}
	return err
}

func (o *Orchestrator) stage(ctx context.Context, req Request, logger *slog.Logger, stage Stage) {
	logger.Info("crop stage", "stage", stage)
	if o.OnStage != nil {
		o.OnStage(req, stage)
	}
	o.publish(ctx, logger, events.Event{Type: events.TypeCropStage, CropID: req.ID, SourceID: sourceID(req), Stage: string(stage)})
}

func (o *Orchestrator) publish(ctx context.Context, logger *slog.Logger, ev events.Event) {
	if ev.At.IsZero() {
		ev.At = o.now().UTC()
	}
	if err := o.publisher.Publish(ctx, ev); err != nil {
		logger.Warn("failed to publish crop event", "type", ev.Type, "error", err)
	}
}

func sourceID(req Request) string {
	if req.Source == nil {
		return ""
	}
	return req.Source.ID
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
